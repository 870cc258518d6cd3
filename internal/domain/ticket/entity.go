package ticket

import "time"

// Status はチケットの状態を表す
type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusHold           Status = "hold"
	StatusBooked         Status = "booked"
	StatusCancelled      Status = "cancelled"
)

// PriceInfo は発券時点の券種情報のスナップショット
type PriceInfo struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Currency string `json:"currency"`
}

// GiftInfo は譲渡の記録
type GiftInfo struct {
	FromUserID   int64     `json:"fromUserId"`
	ToUserID     int64     `json:"toUserId"`
	ToEmail      string    `json:"toEmail"`
	Message      string    `json:"message,omitempty"`
	GiftedAt     time.Time `json:"giftedAt"`
	PrevAttendee string    `json:"prevAttendee,omitempty"`
}

// Ticket は発行済みチケット
type Ticket struct {
	ID              int64
	TicketCode      string
	AttendeeName    string
	Seat            string
	Status          Status
	PriceInfo       PriceInfo
	EventID         int64
	EventScheduleID string
	OrderItemID     int64
	OrderID         int64
	UserID          int64
	Gift            *GiftInfo
	CheckedInAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ClassKey は券種在庫の集計単位（日程 × 券種）
type ClassKey struct {
	EventScheduleID string
	TicketPriceID   int64
}

// CheckGiftable は譲渡可能かを検証する
// scheduleEnd は開催日程の終了時刻
func (t *Ticket) CheckGiftable(scheduleEnd, now time.Time) error {
	if t.Status != StatusBooked {
		return ErrTicketNotGiftable
	}
	if t.CheckedInAt != nil {
		return ErrTicketCheckedIn
	}
	if now.After(scheduleEnd) {
		return ErrTicketEventPassed
	}
	return nil
}

// GiftTo は所有者を受取人に移す
func (t *Ticket) GiftTo(toUserID int64, toEmail, attendeeName, message string, now time.Time) {
	t.Gift = &GiftInfo{
		FromUserID:   t.UserID,
		ToUserID:     toUserID,
		ToEmail:      toEmail,
		Message:      message,
		GiftedAt:     now,
		PrevAttendee: t.AttendeeName,
	}
	t.UserID = toUserID
	t.AttendeeName = attendeeName
	t.UpdatedAt = now
}
