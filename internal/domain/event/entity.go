package event

import "time"

// Status はイベントの公開状態
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusCancelled Status = "cancelled"
)

// BookingMode は座席指定か券種の数量指定か
type BookingMode string

const (
	BookingModeSeat        BookingMode = "seat"
	BookingModeTicketClass BookingMode = "ticket_class"
)

// Event はイベントエンティティを表す
type Event struct {
	ID          int64
	Title       string
	Status      Status
	BookingMode BookingMode
	StartAt     time.Time
	EndAt       time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsOnSale は販売中かを返す
func (e *Event) IsOnSale() bool {
	return e.Status == StatusPublished
}

// IsSeatBooking は座席指定イベントかを返す
func (e *Event) IsSeatBooking() bool {
	return e.BookingMode == BookingModeSeat
}

// HasEnded はイベントが終了済みかを返す
func (e *Event) HasEnded(now time.Time) bool {
	return !e.EndAt.IsZero() && now.After(e.EndAt)
}

// CheckBookable は予約を受け付けられる状態かを検証する
func (e *Event) CheckBookable(now time.Time) error {
	if !e.IsOnSale() {
		return ErrEventNotOnSale
	}
	if e.HasEnded(now) {
		return ErrEventEnded
	}
	return nil
}

// Schedule はイベントの開催日程
type Schedule struct {
	ID       string
	EventID  int64
	StartsAt time.Time
	EndsAt   time.Time
}

// IsPast は日程が終了済みかを返す
func (s *Schedule) IsPast(now time.Time) bool {
	end := s.EndsAt
	if end.IsZero() {
		end = s.StartsAt
	}
	return now.After(end)
}

// CheckBelongsTo は日程が指定イベントのものかを検証する
func (s *Schedule) CheckBelongsTo(eventID int64) error {
	if s.EventID != eventID {
		return ErrScheduleNotInEvent
	}
	return nil
}

// TicketClass は券種（価格と日程ごとの販売枠）
type TicketClass struct {
	ID       int64
	EventID  int64
	Name     string
	Price    int64
	Currency string
	Quantity int
}

// CheckBelongsTo は券種が指定イベントのものかを検証する
func (tc *TicketClass) CheckBelongsTo(eventID int64) error {
	if tc.EventID != eventID {
		return ErrTicketClassNotInEvent
	}
	return nil
}

// CheckPrice はクライアントが送った価格が現在の価格と一致するかを検証する
func (tc *TicketClass) CheckPrice(submitted int64) error {
	if submitted != tc.Price {
		return ErrTicketPriceMismatch.WithDetails(map[string]any{
			"ticketPriceId": tc.ID,
			"price":         tc.Price,
		})
	}
	return nil
}
