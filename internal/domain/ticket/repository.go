package ticket

import (
	"context"
	"time"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/transaction"
)

// Repository はチケットリポジトリのインターフェース
// tx が nil の場合はトランザクション外で実行する
type Repository interface {
	// CreateBulk はチケットを一括作成し ID を設定する（トランザクション必須）
	// 有効な同一座席のチケットが既にある場合は座席予約済みエラーを返す
	CreateBulk(ctx context.Context, tx transaction.Tx, tickets []*Ticket) error

	// FindTakenSeats は完了済み、または期限内の処理中注文に紐づく座席名を返す
	FindTakenSeats(ctx context.Context, tx transaction.Tx, eventID int64, scheduleID string, seats []string, now time.Time) ([]string, error)

	// CountTaken は日程 × 券種ごとの販売済み・決済待ち枚数を返す
	CountTaken(ctx context.Context, tx transaction.Tx, keys []ClassKey, now time.Time) (map[ClassKey]int, error)

	// ReleaseExpiredSeats は決済期限切れの処理中注文が持つ座席チケットを取り消し、その注文IDを返す
	ReleaseExpiredSeats(ctx context.Context, tx transaction.Tx, eventID int64, scheduleID string, seats []string, now time.Time) ([]int64, error)

	// UpdateStatusByOrder は注文に属する取り消されていないチケットの状態を変更し、件数を返す
	UpdateStatusByOrder(ctx context.Context, tx transaction.Tx, orderID int64, status Status) (int, error)

	// ListByOrder は注文のチケット一覧を返す
	ListByOrder(ctx context.Context, orderID int64) ([]*Ticket, error)

	// GetByCodeForUpdate はチケットをロックして取得する（トランザクション必須）
	GetByCodeForUpdate(ctx context.Context, tx transaction.Tx, code string) (*Ticket, error)

	// UpdateOwner は所有者・入場者名・譲渡情報を更新する
	UpdateOwner(ctx context.Context, tx transaction.Tx, t *Ticket) error
}
