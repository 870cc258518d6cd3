package order

import (
	"strings"
	"time"
)

// Status は注文の状態を表す
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCanceled   Status = "canceled"
	StatusFailed     Status = "failed"
)

// DefaultPaymentWindow は決済期限
const DefaultPaymentWindow = 15 * time.Minute

// CustomerSnapshot は購入時点の購入者情報
type CustomerSnapshot struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phoneNumber"`
}

// FullName は表示用の氏名を返す
func (c CustomerSnapshot) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Totals は注文金額
type Totals struct {
	BeforeDiscount int64
	Discount       int64
	Total          int64
}

// Order は注文エンティティを表す
type Order struct {
	ID                  int64
	OrderCode           string
	UserID              int64
	Status              Status
	TotalBeforeDiscount int64
	TotalDiscount       int64
	Total               int64
	Currency            string
	PromotionID         *int64
	PromotionCode       string
	Customer            CustomerSnapshot
	ExpireAt            time.Time
	CompletedAt         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Item は注文明細（座席1つ、または券種 × 枚数）
type Item struct {
	ID              int64
	OrderID         int64
	EventID         int64
	EventScheduleID string
	TicketPriceID   int64
	TicketPriceName string
	Seat            string
	Price           int64
	Quantity        int
	Status          Status
}

// Subtotal は明細の小計を返す
func (i *Item) Subtotal() int64 {
	return i.Price * int64(i.Quantity)
}

// NewOrder は処理中の注文を作成する
func NewOrder(code string, userID int64, customer CustomerSnapshot, currency string, totals Totals, now time.Time, paymentWindow time.Duration) (*Order, error) {
	o := &Order{
		OrderCode:           code,
		UserID:              userID,
		Status:              StatusProcessing,
		TotalBeforeDiscount: totals.BeforeDiscount,
		TotalDiscount:       totals.Discount,
		Total:               totals.Total,
		Currency:            currency,
		Customer:            customer,
		ExpireAt:            now.Add(paymentWindow),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := o.ValidateTotals(); err != nil {
		return nil, err
	}
	return o, nil
}

// ValidateTotals は total = totalBeforeDiscount - totalDiscount >= 0 を検証する
func (o *Order) ValidateTotals() error {
	if o.TotalDiscount < 0 || o.Total < 0 || o.Total != o.TotalBeforeDiscount-o.TotalDiscount {
		return ErrInvalidTotals
	}
	return nil
}

// IsExpired は決済期限を過ぎているかを返す
func (o *Order) IsExpired(now time.Time) bool {
	return now.After(o.ExpireAt)
}

// IsTerminal は終端状態かを返す
func (o *Order) IsTerminal() bool {
	return o.Status != StatusProcessing
}

// Complete は決済完了で注文を確定する
func (o *Order) Complete(now time.Time) error {
	if o.Status != StatusProcessing {
		return ErrInvalidTransition.WithDetails(map[string]any{"from": o.Status, "to": StatusCompleted})
	}
	if o.IsExpired(now) {
		return ErrOrderExpired
	}
	o.Status = StatusCompleted
	o.CompletedAt = &now
	o.UpdatedAt = now
	return nil
}

// Cancel は注文をキャンセルする
func (o *Order) Cancel(now time.Time) error {
	return o.terminate(StatusCanceled, now)
}

// Fail は決済失敗で注文を失敗にする
func (o *Order) Fail(now time.Time) error {
	return o.terminate(StatusFailed, now)
}

func (o *Order) terminate(to Status, now time.Time) error {
	if o.Status != StatusProcessing {
		return ErrInvalidTransition.WithDetails(map[string]any{"from": o.Status, "to": to})
	}
	o.Status = to
	o.UpdatedAt = now
	return nil
}
