package order

import (
	"context"
	"time"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/transaction"
)

// Repository は注文リポジトリのインターフェース
type Repository interface {
	// Create は注文を作成し ID を設定する（トランザクション必須）
	Create(ctx context.Context, tx transaction.Tx, order *Order) error

	// CreateItems は注文明細を作成し ID を設定する（トランザクション必須）
	CreateItems(ctx context.Context, tx transaction.Tx, items []*Item) error

	// GetByCode は注文コードから注文を取得する
	GetByCode(ctx context.Context, code string) (*Order, error)

	// GetByCodeForUpdate は注文をロックして取得する（トランザクション必須）
	GetByCodeForUpdate(ctx context.Context, tx transaction.Tx, code string) (*Order, error)

	// ListItems は注文明細を取得する
	ListItems(ctx context.Context, orderID int64) ([]*Item, error)

	// UpdateStatus は注文と明細の状態を更新する（トランザクション必須）
	UpdateStatus(ctx context.Context, tx transaction.Tx, order *Order) error

	// CancelExpired は指定注文のうち決済期限切れの処理中注文をキャンセルにする
	// 明細とチケットも同時に取り消し、キャンセルした件数を返す
	CancelExpired(ctx context.Context, tx transaction.Tx, ids []int64, now time.Time) (int, error)

	// ListExpiredProcessing は決済期限切れの処理中注文IDを古い順に返す
	ListExpiredProcessing(ctx context.Context, now time.Time, limit int) ([]int64, error)
}
