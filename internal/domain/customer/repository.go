package customer

import (
	"context"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/transaction"
)

// Repository はユーザーリポジトリのインターフェース
type Repository interface {
	// GetByEmailForUpdate はメールアドレスでユーザーをロックして取得する（トランザクション必須）
	GetByEmailForUpdate(ctx context.Context, tx transaction.Tx, email string) (*User, error)

	// Create はユーザーを作成し ID を設定する
	// 同じメールアドレスが同時に作成された場合は既存行の ID を設定する
	Create(ctx context.Context, tx transaction.Tx, u *User) error

	// UpdatePhoneNumbers は電話番号一覧を更新する
	UpdatePhoneNumbers(ctx context.Context, tx transaction.Tx, u *User) error
}
