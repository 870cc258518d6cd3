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

	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/seathold"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/ticket"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/transaction"
)

// activeSeatConstraint は有効チケットの座席一意制約
const activeSeatConstraint = "uq_tickets_active_seat"

type ticketRow struct {
	ID              int64              `db:"id"`
	TicketCode      string             `db:"ticket_code"`
	AttendeeName    string             `db:"attendee_name"`
	Seat            sql.NullString     `db:"seat"`
	Status          string             `db:"status"`
	PriceInfo       types.JSONText     `db:"ticket_price_info"`
	EventID         int64              `db:"event_id"`
	EventScheduleID string             `db:"event_schedule_id"`
	OrderItemID     int64              `db:"order_item_id"`
	OrderID         int64              `db:"order_id"`
	UserID          int64              `db:"user_id"`
	GiftInfo        types.NullJSONText `db:"gift_info"`
	CheckedInAt     *time.Time         `db:"checked_in_at"`
	CreatedAt       time.Time          `db:"created_at"`
	UpdatedAt       time.Time          `db:"updated_at"`
}

func (r *ticketRow) toEntity() (*ticket.Ticket, error) {
	t := &ticket.Ticket{
		ID:              r.ID,
		TicketCode:      r.TicketCode,
		AttendeeName:    r.AttendeeName,
		Seat:            r.Seat.String,
		Status:          ticket.Status(r.Status),
		EventID:         r.EventID,
		EventScheduleID: r.EventScheduleID,
		OrderItemID:     r.OrderItemID,
		OrderID:         r.OrderID,
		UserID:          r.UserID,
		CheckedInAt:     r.CheckedInAt,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if err := r.PriceInfo.Unmarshal(&t.PriceInfo); err != nil {
		return nil, fmt.Errorf("券種情報の復元に失敗: %w", err)
	}
	if r.GiftInfo.Valid {
		var g ticket.GiftInfo
		if err := r.GiftInfo.Unmarshal(&g); err != nil {
			return nil, fmt.Errorf("譲渡情報の復元に失敗: %w", err)
		}
		t.Gift = &g
	}
	return t, nil
}

const ticketColumns = `id, ticket_code, attendee_name, seat, status, ticket_price_info, event_id, event_schedule_id,
	order_item_id, order_id, user_id, gift_info, checked_in_at, created_at, updated_at`

// 決済済み、または決済期限内（expire_at ちょうどを含む）の注文に属するチケットを「押さえ済み」とみなす条件
const takenOrderCondition = `(o.status = 'completed' OR (o.status = 'processing' AND o.expire_at >= $%d))`

// TicketRepository はチケットの永続化を行う
type TicketRepository struct {
	db *sqlx.DB
}

func NewTicketRepository(db *sqlx.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

func (r *TicketRepository) CreateBulk(ctx context.Context, tx transaction.Tx, tickets []*ticket.Ticket) error {
	t, err := mustTx(tx)
	if err != nil {
		return err
	}
	query := `INSERT INTO tickets (ticket_code, attendee_name, seat, status, ticket_price_info, event_id, event_schedule_id,
		ticket_price_id, order_item_id, order_id, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) RETURNING id`
	for _, tk := range tickets {
		info, err := json.Marshal(tk.PriceInfo)
		if err != nil {
			return fmt.Errorf("券種情報の変換に失敗: %w", err)
		}
		seat := sql.NullString{String: tk.Seat, Valid: tk.Seat != ""}
		err = t.QueryRowxContext(ctx, query,
			tk.TicketCode, tk.AttendeeName, seat, string(tk.Status), types.JSONText(info), tk.EventID, tk.EventScheduleID,
			tk.PriceInfo.ID, tk.OrderItemID, tk.OrderID, tk.UserID, tk.CreatedAt, tk.UpdatedAt,
		).Scan(&tk.ID)
		if err != nil {
			var pgErr *pq.Error
			if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.Constraint == activeSeatConstraint {
				return seathold.AlreadyBooked([]string{tk.Seat})
			}
			return wrapErr("チケット作成に失敗", err)
		}
	}
	return nil
}

func (r *TicketRepository) FindTakenSeats(ctx context.Context, tx transaction.Tx, eventID int64, scheduleID string, seats []string, now time.Time) ([]string, error) {
	if len(seats) == 0 {
		return nil, nil
	}
	query := `SELECT DISTINCT t.seat FROM tickets t
		JOIN orders o ON o.id = t.order_id
		WHERE t.event_id = $1 AND t.event_schedule_id = $2 AND t.seat = ANY($3)
		  AND t.status <> 'cancelled' AND ` + fmt.Sprintf(takenOrderCondition, 4) + `
		ORDER BY t.seat`
	var taken []string
	if err := sqlx.SelectContext(ctx, conn(r.db, tx), &taken, query, eventID, scheduleID, pq.Array(seats), now); err != nil {
		return nil, wrapErr("予約済み座席の検索に失敗", err)
	}
	return taken, nil
}

func (r *TicketRepository) CountTaken(ctx context.Context, tx transaction.Tx, keys []ticket.ClassKey, now time.Time) (map[ticket.ClassKey]int, error) {
	counts := make(map[ticket.ClassKey]int, len(keys))
	if len(keys) == 0 {
		return counts, nil
	}
	schedules := make([]string, len(keys))
	classes := make([]int64, len(keys))
	for i, k := range keys {
		schedules[i] = k.EventScheduleID
		classes[i] = k.TicketPriceID
	}
	query := `SELECT t.event_schedule_id, t.ticket_price_id, COUNT(*) AS taken FROM tickets t
		JOIN orders o ON o.id = t.order_id
		WHERE (t.event_schedule_id, t.ticket_price_id) IN (SELECT * FROM unnest($1::text[], $2::bigint[]))
		  AND t.status <> 'cancelled' AND ` + fmt.Sprintf(takenOrderCondition, 3) + `
		GROUP BY t.event_schedule_id, t.ticket_price_id`
	var rows []struct {
		ScheduleID    string `db:"event_schedule_id"`
		TicketPriceID int64  `db:"ticket_price_id"`
		Taken         int    `db:"taken"`
	}
	if err := sqlx.SelectContext(ctx, conn(r.db, tx), &rows, query, pq.Array(schedules), pq.Array(classes), now); err != nil {
		return nil, wrapErr("販売済み枚数の集計に失敗", err)
	}
	for _, row := range rows {
		counts[ticket.ClassKey{EventScheduleID: row.ScheduleID, TicketPriceID: row.TicketPriceID}] = row.Taken
	}
	return counts, nil
}

func (r *TicketRepository) ReleaseExpiredSeats(ctx context.Context, tx transaction.Tx, eventID int64, scheduleID string, seats []string, now time.Time) ([]int64, error) {
	if len(seats) == 0 {
		return nil, nil
	}
	t, err := mustTx(tx)
	if err != nil {
		return nil, err
	}
	query := `UPDATE tickets t SET status = 'cancelled', updated_at = $4
		FROM orders o
		WHERE o.id = t.order_id
		  AND t.event_id = $1 AND t.event_schedule_id = $2 AND t.seat = ANY($3)
		  AND t.status <> 'cancelled'
		  AND (o.status IN ('canceled', 'failed') OR (o.status = 'processing' AND o.expire_at < $4))
		RETURNING t.order_id`
	var orderIDs []int64
	if err := t.SelectContext(ctx, &orderIDs, query, eventID, scheduleID, pq.Array(seats), now); err != nil {
		return nil, wrapErr("期限切れ座席の解放に失敗", err)
	}
	return uniqueIDs(orderIDs), nil
}

func (r *TicketRepository) UpdateStatusByOrder(ctx context.Context, tx transaction.Tx, orderID int64, status ticket.Status) (int, error) {
	res, err := conn(r.db, tx).ExecContext(ctx,
		`UPDATE tickets SET status = $2, updated_at = NOW() WHERE order_id = $1 AND status <> 'cancelled'`,
		orderID, string(status))
	if err != nil {
		return 0, wrapErr("チケット状態の更新に失敗", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("更新件数の取得に失敗: %w", err)
	}
	return int(n), nil
}

func (r *TicketRepository) ListByOrder(ctx context.Context, orderID int64) ([]*ticket.Ticket, error) {
	var rows []ticketRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+ticketColumns+` FROM tickets WHERE order_id = $1 ORDER BY id`, orderID); err != nil {
		return nil, wrapErr("チケット一覧の取得に失敗", err)
	}
	tickets := make([]*ticket.Ticket, 0, len(rows))
	for i := range rows {
		tk, err := rows[i].toEntity()
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, tk)
	}
	return tickets, nil
}

func (r *TicketRepository) GetByCodeForUpdate(ctx context.Context, tx transaction.Tx, code string) (*ticket.Ticket, error) {
	t, err := mustTx(tx)
	if err != nil {
		return nil, err
	}
	var row ticketRow
	if err := t.GetContext(ctx, &row, `SELECT `+ticketColumns+` FROM tickets WHERE ticket_code = $1 FOR UPDATE`, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ticket.ErrTicketNotFound
		}
		return nil, wrapErr("チケット取得に失敗", err)
	}
	return row.toEntity()
}

func (r *TicketRepository) UpdateOwner(ctx context.Context, tx transaction.Tx, tk *ticket.Ticket) error {
	var gift types.NullJSONText
	if tk.Gift != nil {
		b, err := json.Marshal(tk.Gift)
		if err != nil {
			return fmt.Errorf("譲渡情報の変換に失敗: %w", err)
		}
		gift = types.NullJSONText{JSONText: b, Valid: true}
	}
	_, err := conn(r.db, tx).ExecContext(ctx,
		`UPDATE tickets SET user_id = $2, attendee_name = $3, gift_info = $4, updated_at = $5 WHERE id = $1`,
		tk.ID, tk.UserID, tk.AttendeeName, gift, tk.UpdatedAt)
	if err != nil {
		return wrapErr("チケット所有者の更新に失敗", err)
	}
	return nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

var _ ticket.Repository = (*TicketRepository)(nil)
