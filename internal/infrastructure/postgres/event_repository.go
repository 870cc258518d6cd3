package postgres

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/event"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/transaction"
)

// eventRow はDBの行を表す構造体
type eventRow struct {
	ID          int64      `db:"id"`
	Title       string     `db:"title"`
	Status      string     `db:"status"`
	BookingMode string     `db:"booking_mode"`
	StartAt     *time.Time `db:"start_at"`
	EndAt       *time.Time `db:"end_at"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

func (r *eventRow) toEntity() *event.Event {
	e := &event.Event{
		ID:          r.ID,
		Title:       r.Title,
		Status:      event.Status(r.Status),
		BookingMode: event.BookingMode(r.BookingMode),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.StartAt != nil {
		e.StartAt = *r.StartAt
	}
	if r.EndAt != nil {
		e.EndAt = *r.EndAt
	}
	return e
}

type scheduleRow struct {
	ID       string     `db:"id"`
	EventID  int64      `db:"event_id"`
	StartsAt time.Time  `db:"starts_at"`
	EndsAt   *time.Time `db:"ends_at"`
}

func (r *scheduleRow) toEntity() *event.Schedule {
	s := &event.Schedule{ID: r.ID, EventID: r.EventID, StartsAt: r.StartsAt}
	if r.EndsAt != nil {
		s.EndsAt = *r.EndsAt
	}
	return s
}

type ticketClassRow struct {
	ID       int64  `db:"id"`
	EventID  int64  `db:"event_id"`
	Name     string `db:"name"`
	Price    int64  `db:"price"`
	Currency string `db:"currency"`
	Quantity int    `db:"quantity"`
}

func (r *ticketClassRow) toEntity() *event.TicketClass {
	return &event.TicketClass{
		ID:       r.ID,
		EventID:  r.EventID,
		Name:     r.Name,
		Price:    r.Price,
		Currency: r.Currency,
		Quantity: r.Quantity,
	}
}

// EventRepository はイベント・日程・券種の参照を提供する
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository は新しいEventRepositoryを作成する
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// GetByID はIDからイベントを取得する
func (r *EventRepository) GetByID(ctx context.Context, id int64) (*event.Event, error) {
	var row eventRow
	query := `SELECT id, title, status, booking_mode, start_at, end_at, created_at, updated_at FROM events WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, event.ErrEventNotFound
		}
		return nil, wrapErr("イベント取得に失敗", err)
	}
	return row.toEntity(), nil
}

// GetSchedule は日程を取得する
func (r *EventRepository) GetSchedule(ctx context.Context, id string) (*event.Schedule, error) {
	var row scheduleRow
	query := `SELECT id, event_id, starts_at, ends_at FROM event_schedules WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, event.ErrScheduleNotFound
		}
		return nil, wrapErr("開催日程取得に失敗", err)
	}
	return row.toEntity(), nil
}

// GetTicketClass は券種を取得する
func (r *EventRepository) GetTicketClass(ctx context.Context, id int64) (*event.TicketClass, error) {
	var row ticketClassRow
	query := `SELECT id, event_id, name, price, currency, quantity FROM ticket_prices WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, event.ErrTicketClassNotFound
		}
		return nil, wrapErr("券種取得に失敗", err)
	}
	return row.toEntity(), nil
}

// LockTicketClasses は券種行を ID 順に FOR UPDATE でロックする
func (r *EventRepository) LockTicketClasses(ctx context.Context, tx transaction.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	t, err := mustTx(tx)
	if err != nil {
		return err
	}
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var locked []int64
	query := `SELECT id FROM ticket_prices WHERE id = ANY($1) ORDER BY id FOR UPDATE`
	if err := t.SelectContext(ctx, &locked, query, pq.Array(sorted)); err != nil {
		return wrapErr("券種ロックに失敗", err)
	}
	return nil
}

var _ event.Repository = (*EventRepository)(nil)
