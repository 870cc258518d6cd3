package event

import (
	"context"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/transaction"
)

// Repository はイベント・日程・券種の参照リポジトリ
// 管理画面からの登録は別システムが行う
type Repository interface {
	// GetByID はIDからイベントを取得する
	GetByID(ctx context.Context, id int64) (*Event, error)

	// GetSchedule は日程を取得する
	GetSchedule(ctx context.Context, id string) (*Schedule, error)

	// GetTicketClass は券種を取得する
	GetTicketClass(ctx context.Context, id int64) (*TicketClass, error)

	// LockTicketClasses は券種行を ID 順に FOR UPDATE でロックする（トランザクション必須）
	LockTicketClasses(ctx context.Context, tx transaction.Tx, ids []int64) error
}
