package application

import (
	"context"
	"errors"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/order"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/seathold"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/transaction"
	redislock "github.com/sanosuguru/go-event-ticket-checkout/internal/infrastructure/redis"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/pkg/apperror"
)

// Notifier は注文イベントを外部に通知する（確認メール送信キューなど）
type Notifier interface {
	OrderCreated(ctx context.Context, o *order.Order) error
	OrderStatusChanged(ctx context.Context, o *order.Order) error
}

// AuditRecorder は操作履歴を記録する
type AuditRecorder interface {
	RecordHold(ctx context.Context, action string, h *seathold.SeatHold) error
	RecordOrder(ctx context.Context, action string, o *order.Order) error
}

// ScheduleLocker は日程単位の分散ロックを提供する
type ScheduleLocker interface {
	LockSchedule(ctx context.Context, eventID int64, scheduleID string) (redislock.Unlock, error)
}

// toInfraError はトランザクション外の想定外エラーを SYS001 に変換する
func toInfraError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperror.As(err); ok {
		return err
	}
	return apperror.Infrastructure(err)
}

// toTxError はトランザクション経路のエラーを分類する
// Begin 失敗は基盤エラー、それ以外の想定外エラーは ORD009
func toTxError(err error) error {
	if err == nil {
		return nil
	}
	var beginErr *transaction.BeginError
	if errors.As(err, &beginErr) {
		return apperror.Infrastructure(err)
	}
	if _, ok := apperror.As(err); ok {
		return err
	}
	return order.ErrTransactionFailed.Wrap(err)
}

// resultLabel はメトリクス用の結果ラベル
func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	if ae, ok := apperror.As(err); ok {
		return string(ae.Kind)
	}
	return "error"
}
