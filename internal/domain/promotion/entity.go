package promotion

import "time"

// DiscountType は割引の種類
type DiscountType string

const (
	DiscountPercentage  DiscountType = "percentage"
	DiscountFixedAmount DiscountType = "fixed_amount"
)

// Scope は割引の適用単位
type Scope string

const (
	// ScopePerOrderItem は対象明細ごとに割引する
	ScopePerOrderItem Scope = "per_order_item"
	// ScopeTotalOrderValue は対象明細の合計に対して割引する
	ScopeTotalOrderValue Scope = "total_order_value"
)

// Status はプロモーションの状態
type Status string

const (
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
)

// Promotion はプロモーションコード
type Promotion struct {
	ID                   int64
	Code                 string
	EventID              *int64
	DiscountType         DiscountType
	DiscountValue        float64
	Scope                Scope
	AppliedTicketClasses []string
	MinTickets           int
	MaxRedemptions       int
	TotalUsed            int
	StartAt              *time.Time
	EndAt                *time.Time
	Status               Status
}

// CheckUsable は now 時点で利用可能かを検証する
func (p *Promotion) CheckUsable(now time.Time) error {
	if p.Status != StatusActive {
		return ErrPromotionExpired
	}
	if p.StartAt != nil && now.Before(*p.StartAt) {
		return ErrPromotionNotStarted
	}
	if p.EndAt != nil && now.After(*p.EndAt) {
		return ErrPromotionExpired
	}
	if p.MaxRedemptions > 0 && p.TotalUsed >= p.MaxRedemptions {
		return ErrPromotionExhausted
	}
	return nil
}

// AppliesToEvent はイベントが対象かを返す
func (p *Promotion) AppliesToEvent(eventID int64) bool {
	return p.EventID == nil || *p.EventID == eventID
}

// AppliesToClass は券種名が対象かを返す。対象一覧が空なら全券種
func (p *Promotion) AppliesToClass(name string) bool {
	if len(p.AppliedTicketClasses) == 0 {
		return true
	}
	for _, c := range p.AppliedTicketClasses {
		if c == name {
			return true
		}
	}
	return false
}
