package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/promotion"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/transaction"
)

type promotionRow struct {
	ID                   int64          `db:"id"`
	Code                 string         `db:"code"`
	EventID              *int64         `db:"event_id"`
	DiscountType         string         `db:"discount_type"`
	DiscountValue        float64        `db:"discount_value"`
	Scope                string         `db:"scope"`
	AppliedTicketClasses pq.StringArray `db:"applied_ticket_classes"`
	MinTickets           int            `db:"min_tickets"`
	MaxRedemptions       int            `db:"max_redemptions"`
	TotalUsed            int            `db:"total_used"`
	StartAt              *time.Time     `db:"start_at"`
	EndAt                *time.Time     `db:"end_at"`
	Status               string         `db:"status"`
}

func (r *promotionRow) toEntity() *promotion.Promotion {
	return &promotion.Promotion{
		ID:                   r.ID,
		Code:                 r.Code,
		EventID:              r.EventID,
		DiscountType:         promotion.DiscountType(r.DiscountType),
		DiscountValue:        r.DiscountValue,
		Scope:                promotion.Scope(r.Scope),
		AppliedTicketClasses: []string(r.AppliedTicketClasses),
		MinTickets:           r.MinTickets,
		MaxRedemptions:       r.MaxRedemptions,
		TotalUsed:            r.TotalUsed,
		StartAt:              r.StartAt,
		EndAt:                r.EndAt,
		Status:               promotion.Status(r.Status),
	}
}

// PromotionRepository はプロモーションの参照と利用回数の更新を行う
type PromotionRepository struct {
	db *sqlx.DB
}

func NewPromotionRepository(db *sqlx.DB) *PromotionRepository {
	return &PromotionRepository{db: db}
}

func (r *PromotionRepository) GetByCode(ctx context.Context, code string) (*promotion.Promotion, error) {
	var row promotionRow
	query := `SELECT id, code, event_id, discount_type, discount_value, scope, applied_ticket_classes,
		min_tickets, max_redemptions, total_used, start_at, end_at, status
		FROM promotions WHERE code = $1`
	if err := r.db.GetContext(ctx, &row, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, promotion.ErrPromotionNotFound
		}
		return nil, wrapErr("プロモーション取得に失敗", err)
	}
	return row.toEntity(), nil
}

// Redeem は上限を超えない場合に限り利用回数を1増やす
func (r *PromotionRepository) Redeem(ctx context.Context, tx transaction.Tx, id int64) error {
	t, err := mustTx(tx)
	if err != nil {
		return err
	}
	res, err := t.ExecContext(ctx,
		`UPDATE promotions SET total_used = total_used + 1
		 WHERE id = $1 AND (max_redemptions = 0 OR total_used < max_redemptions)`, id)
	if err != nil {
		return wrapErr("プロモーション利用回数の更新に失敗", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新件数の取得に失敗: %w", err)
	}
	if n == 0 {
		return promotion.ErrPromotionExhausted
	}
	return nil
}

var _ promotion.Repository = (*PromotionRepository)(nil)
