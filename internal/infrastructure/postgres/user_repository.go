package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/customer"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/transaction"
)

type userRow struct {
	ID           int64          `db:"id"`
	Email        string         `db:"email"`
	FirstName    string         `db:"first_name"`
	LastName     string         `db:"last_name"`
	PhoneNumbers pq.StringArray `db:"phone_numbers"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r *userRow) toEntity() *customer.User {
	return &customer.User{
		ID:           r.ID,
		Email:        r.Email,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		PhoneNumbers: []string(r.PhoneNumbers),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// UserRepository は購入者アカウントの永続化を行う
type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByEmailForUpdate(ctx context.Context, tx transaction.Tx, email string) (*customer.User, error) {
	t, err := mustTx(tx)
	if err != nil {
		return nil, err
	}
	var row userRow
	query := `SELECT id, email, first_name, last_name, phone_numbers, created_at, updated_at FROM users WHERE email = $1 FOR UPDATE`
	if err := t.GetContext(ctx, &row, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customer.ErrUserNotFound
		}
		return nil, wrapErr("ユーザー取得に失敗", err)
	}
	return row.toEntity(), nil
}

// Create は同じメールアドレスの行が先に作られていた場合、その行に電話番号を追記して ID を返す。
// 既存の番号の並びは保ち、新しい番号だけを末尾に足す
func (r *UserRepository) Create(ctx context.Context, tx transaction.Tx, u *customer.User) error {
	t, err := mustTx(tx)
	if err != nil {
		return err
	}
	query := `INSERT INTO users (email, first_name, last_name, phone_numbers, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (email) DO UPDATE SET
			phone_numbers = users.phone_numbers || ARRAY(
				SELECT p FROM unnest(EXCLUDED.phone_numbers) WITH ORDINALITY AS x(p, n)
				WHERE p <> ALL(users.phone_numbers) ORDER BY n),
			updated_at = EXCLUDED.updated_at
		RETURNING id, phone_numbers`
	var phones pq.StringArray
	if err := t.QueryRowxContext(ctx, query,
		u.Email, u.FirstName, u.LastName, pq.StringArray(append([]string{}, u.PhoneNumbers...)), u.CreatedAt, u.UpdatedAt,
	).Scan(&u.ID, &phones); err != nil {
		return wrapErr("ユーザー作成に失敗", err)
	}
	u.PhoneNumbers = []string(phones)
	return nil
}

func (r *UserRepository) UpdatePhoneNumbers(ctx context.Context, tx transaction.Tx, u *customer.User) error {
	_, err := conn(r.db, tx).ExecContext(ctx,
		`UPDATE users SET phone_numbers = $2, updated_at = $3 WHERE id = $1`,
		u.ID, pq.StringArray(append([]string{}, u.PhoneNumbers...)), u.UpdatedAt)
	if err != nil {
		return wrapErr("電話番号の更新に失敗", err)
	}
	return nil
}

var _ customer.Repository = (*UserRepository)(nil)
