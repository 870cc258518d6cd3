package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/order"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/transaction"
)

type orderRow struct {
	ID                  int64          `db:"id"`
	OrderCode           string         `db:"order_code"`
	UserID              int64          `db:"user_id"`
	Status              string         `db:"status"`
	TotalBeforeDiscount int64          `db:"total_before_discount"`
	TotalDiscount       int64          `db:"total_discount"`
	Total               int64          `db:"total"`
	Currency            string         `db:"currency"`
	PromotionID         *int64         `db:"promotion_id"`
	PromotionCode       sql.NullString `db:"promotion_code"`
	Customer            types.JSONText `db:"customer_snapshot"`
	ExpireAt            time.Time      `db:"expire_at"`
	CompletedAt         *time.Time     `db:"completed_at"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
}

func (r *orderRow) toEntity() (*order.Order, error) {
	o := &order.Order{
		ID:                  r.ID,
		OrderCode:           r.OrderCode,
		UserID:              r.UserID,
		Status:              order.Status(r.Status),
		TotalBeforeDiscount: r.TotalBeforeDiscount,
		TotalDiscount:       r.TotalDiscount,
		Total:               r.Total,
		Currency:            r.Currency,
		PromotionID:         r.PromotionID,
		PromotionCode:       r.PromotionCode.String,
		ExpireAt:            r.ExpireAt,
		CompletedAt:         r.CompletedAt,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
	if err := r.Customer.Unmarshal(&o.Customer); err != nil {
		return nil, fmt.Errorf("購入者情報の復元に失敗: %w", err)
	}
	return o, nil
}

type orderItemRow struct {
	ID              int64          `db:"id"`
	OrderID         int64          `db:"order_id"`
	EventID         int64          `db:"event_id"`
	EventScheduleID string         `db:"event_schedule_id"`
	TicketPriceID   int64          `db:"ticket_price_id"`
	TicketPriceName string         `db:"ticket_price_name"`
	Seat            sql.NullString `db:"seat"`
	Price           int64          `db:"price"`
	Quantity        int            `db:"quantity"`
	Status          string         `db:"status"`
}

func (r *orderItemRow) toEntity() *order.Item {
	return &order.Item{
		ID:              r.ID,
		OrderID:         r.OrderID,
		EventID:         r.EventID,
		EventScheduleID: r.EventScheduleID,
		TicketPriceID:   r.TicketPriceID,
		TicketPriceName: r.TicketPriceName,
		Seat:            r.Seat.String,
		Price:           r.Price,
		Quantity:        r.Quantity,
		Status:          order.Status(r.Status),
	}
}

const orderColumns = `id, order_code, user_id, status, total_before_discount, total_discount, total, currency,
	promotion_id, promotion_code, customer_snapshot, expire_at, completed_at, created_at, updated_at`

// OrderRepository は注文と注文明細の永続化を行う
type OrderRepository struct {
	db *sqlx.DB
}

func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, tx transaction.Tx, o *order.Order) error {
	t, err := mustTx(tx)
	if err != nil {
		return err
	}
	customer, err := json.Marshal(o.Customer)
	if err != nil {
		return fmt.Errorf("購入者情報の変換に失敗: %w", err)
	}
	promoCode := sql.NullString{String: o.PromotionCode, Valid: o.PromotionCode != ""}
	query := `INSERT INTO orders (order_code, user_id, status, total_before_discount, total_discount, total, currency,
		promotion_id, promotion_code, customer_snapshot, expire_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) RETURNING id`
	err = t.QueryRowxContext(ctx, query,
		o.OrderCode, o.UserID, string(o.Status), o.TotalBeforeDiscount, o.TotalDiscount, o.Total, o.Currency,
		o.PromotionID, promoCode, types.JSONText(customer), o.ExpireAt, o.CreatedAt, o.UpdatedAt,
	).Scan(&o.ID)
	if err != nil {
		return wrapErr("注文作成に失敗", err)
	}
	return nil
}

func (r *OrderRepository) CreateItems(ctx context.Context, tx transaction.Tx, items []*order.Item) error {
	t, err := mustTx(tx)
	if err != nil {
		return err
	}
	query := `INSERT INTO order_items (order_id, event_id, event_schedule_id, ticket_price_id, ticket_price_name, seat, price, quantity, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`
	for _, it := range items {
		seat := sql.NullString{String: it.Seat, Valid: it.Seat != ""}
		err := t.QueryRowxContext(ctx, query,
			it.OrderID, it.EventID, it.EventScheduleID, it.TicketPriceID, it.TicketPriceName, seat, it.Price, it.Quantity, string(it.Status),
		).Scan(&it.ID)
		if err != nil {
			return wrapErr("注文明細作成に失敗", err)
		}
	}
	return nil
}

func (r *OrderRepository) GetByCode(ctx context.Context, code string) (*order.Order, error) {
	return r.get(ctx, r.db, `SELECT `+orderColumns+` FROM orders WHERE order_code = $1`, code)
}

func (r *OrderRepository) GetByCodeForUpdate(ctx context.Context, tx transaction.Tx, code string) (*order.Order, error) {
	t, err := mustTx(tx)
	if err != nil {
		return nil, err
	}
	return r.get(ctx, t, `SELECT `+orderColumns+` FROM orders WHERE order_code = $1 FOR UPDATE`, code)
}

func (r *OrderRepository) get(ctx context.Context, q sqlx.QueryerContext, query string, arg any) (*order.Order, error) {
	var row orderRow
	if err := sqlx.GetContext(ctx, q, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, order.ErrOrderNotFound
		}
		return nil, wrapErr("注文取得に失敗", err)
	}
	return row.toEntity()
}

func (r *OrderRepository) ListItems(ctx context.Context, orderID int64) ([]*order.Item, error) {
	var rows []orderItemRow
	query := `SELECT id, order_id, event_id, event_schedule_id, ticket_price_id, ticket_price_name, seat, price, quantity, status
		FROM order_items WHERE order_id = $1 ORDER BY id`
	if err := r.db.SelectContext(ctx, &rows, query, orderID); err != nil {
		return nil, wrapErr("注文明細の取得に失敗", err)
	}
	items := make([]*order.Item, len(rows))
	for i := range rows {
		items[i] = rows[i].toEntity()
	}
	return items, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, tx transaction.Tx, o *order.Order) error {
	t, err := mustTx(tx)
	if err != nil {
		return err
	}
	if _, err := t.ExecContext(ctx,
		`UPDATE orders SET status = $2, completed_at = $3, updated_at = $4 WHERE id = $1`,
		o.ID, string(o.Status), o.CompletedAt, o.UpdatedAt); err != nil {
		return wrapErr("注文状態の更新に失敗", err)
	}
	if _, err := t.ExecContext(ctx,
		`UPDATE order_items SET status = $2 WHERE order_id = $1`, o.ID, string(o.Status)); err != nil {
		return wrapErr("注文明細状態の更新に失敗", err)
	}
	return nil
}

// CancelExpired は期限切れの処理中注文をキャンセルし、明細とチケットも合わせて取り消す
func (r *OrderRepository) CancelExpired(ctx context.Context, tx transaction.Tx, ids []int64, now time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `WITH canceled AS (
			UPDATE orders SET status = 'canceled', updated_at = $2
			WHERE id = ANY($1) AND status = 'processing' AND expire_at < $2
			RETURNING id
		), items AS (
			UPDATE order_items SET status = 'canceled' WHERE order_id IN (SELECT id FROM canceled)
		), released AS (
			UPDATE tickets SET status = 'cancelled', updated_at = $2
			WHERE order_id IN (SELECT id FROM canceled) AND status <> 'cancelled'
		)
		SELECT COUNT(*) FROM canceled`
	var n int
	if err := sqlx.GetContext(ctx, conn(r.db, tx), &n, query, pq.Array(ids), now); err != nil {
		return 0, wrapErr("期限切れ注文のキャンセルに失敗", err)
	}
	return n, nil
}

func (r *OrderRepository) ListExpiredProcessing(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	var ids []int64
	query := `SELECT id FROM orders WHERE status = 'processing' AND expire_at < $1 ORDER BY expire_at ASC LIMIT $2`
	if err := r.db.SelectContext(ctx, &ids, query, now, limit); err != nil {
		return nil, wrapErr("期限切れ注文の検索に失敗", err)
	}
	return ids, nil
}

var _ order.Repository = (*OrderRepository)(nil)
