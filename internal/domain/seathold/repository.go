package seathold

import (
	"context"
	"time"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/transaction"
)

// Repository は座席保留リポジトリのインターフェース
// tx が nil の場合はトランザクション外で実行する
type Repository interface {
	// FindActiveOverlaps は同じイベント・日程で座席が重なる有効な保留を expireAt の昇順で返す
	// excludeCode の保留は除外する
	FindActiveOverlaps(ctx context.Context, tx transaction.Tx, eventID int64, scheduleID string, seats []string, excludeCode string, now time.Time) ([]*SeatHold, error)

	// GetActiveByCode は有効な保留をコードで取得する
	GetActiveByCode(ctx context.Context, tx transaction.Tx, code string, now time.Time) (*SeatHold, error)

	// Create は保留を作成する
	Create(ctx context.Context, tx transaction.Tx, hold *SeatHold) error

	// Update は座席と有効期限を更新する
	Update(ctx context.Context, tx transaction.Tx, hold *SeatHold) error

	// Close は未解放の保留に closedAt を設定する。既に解放済みなら false
	Close(ctx context.Context, code string, now time.Time) (bool, error)

	// DeleteStale は before より前に失効・解放された保留を削除する
	DeleteStale(ctx context.Context, before time.Time) (int, error)
}

// SeatLocker は (イベント, 日程, 座席) 単位の排他を提供する
// 保留作成と注文作成の両方が同じ鍵を使う
type SeatLocker interface {
	// LockSeats はトランザクション終了まで有効なロックを座席名の昇順で取得する
	LockSeats(ctx context.Context, tx transaction.Tx, eventID int64, scheduleID string, seats []string) error
}
