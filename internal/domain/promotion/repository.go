package promotion

import (
	"context"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/transaction"
)

// Repository はプロモーションリポジトリのインターフェース
type Repository interface {
	// GetByCode はコードからプロモーションを取得する
	GetByCode(ctx context.Context, code string) (*Promotion, error)

	// Redeem は利用回数を1増やす。上限に達していれば ErrPromotionExhausted（トランザクション必須）
	Redeem(ctx context.Context, tx transaction.Tx, id int64) error
}
