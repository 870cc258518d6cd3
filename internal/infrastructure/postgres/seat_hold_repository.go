package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/seathold"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/transaction"
)

type seatHoldRow struct {
	ID              int64          `db:"id"`
	Code            string         `db:"code"`
	EventID         int64          `db:"event_id"`
	EventScheduleID string         `db:"event_schedule_id"`
	SeatNames       pq.StringArray `db:"seat_names"`
	ExpireAt        time.Time      `db:"expire_at"`
	ClosedAt        *time.Time     `db:"closed_at"`
	ClientMeta      types.JSONText `db:"client_meta"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (r *seatHoldRow) toEntity() (*seathold.SeatHold, error) {
	h := &seathold.SeatHold{
		ID:              r.ID,
		Code:            r.Code,
		EventID:         r.EventID,
		EventScheduleID: r.EventScheduleID,
		SeatNames:       []string(r.SeatNames),
		ExpireAt:        r.ExpireAt,
		ClosedAt:        r.ClosedAt,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if len(r.ClientMeta) > 0 {
		if err := r.ClientMeta.Unmarshal(&h.ClientMeta); err != nil {
			return nil, fmt.Errorf("クライアント情報の復元に失敗: %w", err)
		}
	}
	return h, nil
}

const seatHoldColumns = `id, code, event_id, event_schedule_id, seat_names, expire_at, closed_at, client_meta, created_at, updated_at`

// SeatHoldRepository は座席保留の永続化を行う
type SeatHoldRepository struct {
	db *sqlx.DB
}

func NewSeatHoldRepository(db *sqlx.DB) *SeatHoldRepository {
	return &SeatHoldRepository{db: db}
}

func (r *SeatHoldRepository) FindActiveOverlaps(ctx context.Context, tx transaction.Tx, eventID int64, scheduleID string, seats []string, excludeCode string, now time.Time) ([]*seathold.SeatHold, error) {
	if len(seats) == 0 {
		return nil, nil
	}
	var rows []seatHoldRow
	query := `SELECT ` + seatHoldColumns + ` FROM seat_holdings
		WHERE event_id = $1 AND event_schedule_id = $2
		  AND closed_at IS NULL AND expire_at > $3
		  AND seat_names && $4 AND code <> $5
		ORDER BY expire_at ASC`
	if err := sqlx.SelectContext(ctx, conn(r.db, tx), &rows, query, eventID, scheduleID, now, pq.Array(seats), excludeCode); err != nil {
		return nil, wrapErr("座席保留の検索に失敗", err)
	}
	holds := make([]*seathold.SeatHold, 0, len(rows))
	for i := range rows {
		h, err := rows[i].toEntity()
		if err != nil {
			return nil, err
		}
		holds = append(holds, h)
	}
	return holds, nil
}

func (r *SeatHoldRepository) GetActiveByCode(ctx context.Context, tx transaction.Tx, code string, now time.Time) (*seathold.SeatHold, error) {
	var row seatHoldRow
	query := `SELECT ` + seatHoldColumns + ` FROM seat_holdings WHERE code = $1 AND closed_at IS NULL AND expire_at > $2`
	if err := sqlx.GetContext(ctx, conn(r.db, tx), &row, query, code, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, seathold.ErrHoldNotFound
		}
		return nil, wrapErr("座席保留の取得に失敗", err)
	}
	return row.toEntity()
}

func (r *SeatHoldRepository) Create(ctx context.Context, tx transaction.Tx, h *seathold.SeatHold) error {
	meta, err := json.Marshal(h.ClientMeta)
	if err != nil {
		return fmt.Errorf("クライアント情報の変換に失敗: %w", err)
	}
	query := `INSERT INTO seat_holdings (code, event_id, event_schedule_id, seat_names, expire_at, client_meta, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	err = conn(r.db, tx).QueryRowxContext(ctx, query,
		h.Code, h.EventID, h.EventScheduleID, pq.Array(h.SeatNames), h.ExpireAt, types.JSONText(meta), h.CreatedAt, h.UpdatedAt,
	).Scan(&h.ID)
	if err != nil {
		return wrapErr("座席保留の作成に失敗", err)
	}
	return nil
}

func (r *SeatHoldRepository) Update(ctx context.Context, tx transaction.Tx, h *seathold.SeatHold) error {
	meta, err := json.Marshal(h.ClientMeta)
	if err != nil {
		return fmt.Errorf("クライアント情報の変換に失敗: %w", err)
	}
	query := `UPDATE seat_holdings SET seat_names = $2, expire_at = $3, client_meta = $4, updated_at = $5
		WHERE code = $1 AND closed_at IS NULL`
	res, err := conn(r.db, tx).ExecContext(ctx, query, h.Code, pq.Array(h.SeatNames), h.ExpireAt, types.JSONText(meta), h.UpdatedAt)
	if err != nil {
		return wrapErr("座席保留の更新に失敗", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新件数の取得に失敗: %w", err)
	}
	if n == 0 {
		return seathold.ErrHoldNotActive
	}
	return nil
}

func (r *SeatHoldRepository) Close(ctx context.Context, code string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE seat_holdings SET closed_at = $2, updated_at = $2 WHERE code = $1 AND closed_at IS NULL`, code, now)
	if err != nil {
		return false, wrapErr("座席保留の解放に失敗", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新件数の取得に失敗: %w", err)
	}
	return n > 0, nil
}

func (r *SeatHoldRepository) DeleteStale(ctx context.Context, before time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM seat_holdings WHERE expire_at < $1 OR (closed_at IS NOT NULL AND closed_at < $1)`, before)
	if err != nil {
		return 0, wrapErr("古い座席保留の削除に失敗", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	return int(n), nil
}

var _ seathold.Repository = (*SeatHoldRepository)(nil)

// SeatLocker は pg_advisory_xact_lock で座席単位の排他を取る
// ロックはトランザクション終了で自動的に解放される
type SeatLocker struct{}

func NewSeatLocker() *SeatLocker {
	return &SeatLocker{}
}

func (l *SeatLocker) LockSeats(ctx context.Context, tx transaction.Tx, eventID int64, scheduleID string, seats []string) error {
	t, err := mustTx(tx)
	if err != nil {
		return err
	}
	keys := SeatLockKeys(eventID, scheduleID, seats)
	for _, key := range keys {
		if _, err := t.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
			return wrapErr("座席ロックの取得に失敗", err)
		}
	}
	return nil
}

// SeatLockKeys は座席名の昇順に並べたロックキーを返す
func SeatLockKeys(eventID int64, scheduleID string, seats []string) []string {
	sorted := seathold.NormalizeSeatNames(seats)
	sort.Strings(sorted)
	keys := make([]string, len(sorted))
	for i, s := range sorted {
		keys[i] = fmt.Sprintf("seat:%d:%s:%s", eventID, scheduleID, s)
	}
	return keys
}

var _ seathold.SeatLocker = (*SeatLocker)(nil)
