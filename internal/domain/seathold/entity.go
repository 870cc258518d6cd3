package seathold

import (
	"strings"
	"time"
)

// DefaultWindow は保留の有効期間
const DefaultWindow = 30 * time.Minute

// ClientMeta は保留を作成したクライアントの情報
type ClientMeta struct {
	IP        string         `json:"ip,omitempty"`
	UserAgent string         `json:"userAgent,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// SeatHold は座席の一時確保を表す
// closedAt が nil かつ expireAt が現在より後の間だけ有効
type SeatHold struct {
	ID              int64
	Code            string
	EventID         int64
	EventScheduleID string
	SeatNames       []string
	ExpireAt        time.Time
	ClosedAt        *time.Time
	ClientMeta      ClientMeta
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// New は新しい保留を作成する
func New(code string, eventID int64, scheduleID string, seats []string, meta ClientMeta, now time.Time, window time.Duration) *SeatHold {
	return &SeatHold{
		Code:            code,
		EventID:         eventID,
		EventScheduleID: scheduleID,
		SeatNames:       NormalizeSeatNames(seats),
		ExpireAt:        now.Add(window),
		ClientMeta:      meta,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// IsActive は保留が有効かを返す
func (h *SeatHold) IsActive(now time.Time) bool {
	return h.ClosedAt == nil && h.ExpireAt.After(now)
}

// Covers は同じイベント・日程の保留かを返す
func (h *SeatHold) Covers(eventID int64, scheduleID string) bool {
	return h.EventID == eventID && h.EventScheduleID == scheduleID
}

// Renew は座席を置き換えて有効期限を延長する
func (h *SeatHold) Renew(seats []string, meta ClientMeta, now time.Time, window time.Duration) error {
	if !h.IsActive(now) {
		return ErrHoldNotActive
	}
	h.SeatNames = NormalizeSeatNames(seats)
	h.ExpireAt = now.Add(window)
	h.ClientMeta = meta
	h.UpdatedAt = now
	return nil
}

// Close は保留を解放済みにする
func (h *SeatHold) Close(now time.Time) {
	if h.ClosedAt != nil {
		return
	}
	h.ClosedAt = &now
	h.UpdatedAt = now
}

// Joined はカンマ区切りの座席名を返す
func (h *SeatHold) Joined() string {
	return strings.Join(h.SeatNames, ",")
}

// Overlap は requested のうちこの保留に含まれる座席を requested の順序で返す
func (h *SeatHold) Overlap(requested []string) []string {
	held := make(map[string]struct{}, len(h.SeatNames))
	for _, s := range h.SeatNames {
		held[s] = struct{}{}
	}
	var out []string
	for _, s := range requested {
		if _, ok := held[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

// ConflictingSeats は他の保留と重なる座席を重複なく返す
// holds は有効期限の早い順に並んでいる前提
func ConflictingSeats(holds []*SeatHold, requested []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, h := range holds {
		for _, s := range h.Overlap(requested) {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// NormalizeSeatNames は前後の空白を除き、空要素と重複を取り除く
func NormalizeSeatNames(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// ParseSeatNames はカンマ区切りの座席名を分解する
func ParseSeatNames(joined string) []string {
	return NormalizeSeatNames(strings.Split(joined, ","))
}
