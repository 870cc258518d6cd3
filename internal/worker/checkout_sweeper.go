package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/pkg/logger"
)

// OrderExpirer は決済期限切れの注文をキャンセルする
type OrderExpirer interface {
	CancelExpiredOrders(ctx context.Context, batchSize int) (int, error)
}

// HoldPurger は失効・解放済みの座席保留を削除する
type HoldPurger interface {
	PurgeStaleHolds(ctx context.Context, retention time.Duration) (int, error)
}

// maxBatchesPerSweep は1回の掃除で処理するバッチ数の上限
const maxBatchesPerSweep = 10

// CheckoutSweeper は期限切れの注文と古い座席保留を定期的に片付けるワーカー
// 座席と在庫の空き判定は期限で行うため、このワーカーが止まっていても販売は正しく動く
type CheckoutSweeper struct {
	orders        OrderExpirer
	holds         HoldPurger
	interval      time.Duration
	batchSize     int
	holdRetention time.Duration
	stopCh        chan struct{}
	doneCh        chan struct{}
}

// NewCheckoutSweeper は新しいワーカーを作成
func NewCheckoutSweeper(orders OrderExpirer, holds HoldPurger, interval time.Duration, batchSize int, holdRetention time.Duration) *CheckoutSweeper {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &CheckoutSweeper{
		orders:        orders,
		holds:         holds,
		interval:      interval,
		batchSize:     batchSize,
		holdRetention: holdRetention,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Start はワーカーを開始
func (s *CheckoutSweeper) Start(ctx context.Context) {
	logger.Info("チェックアウト掃除ワーカー開始",
		zap.Duration("interval", s.interval),
		zap.Int("batch_size", s.batchSize),
		zap.Duration("hold_retention", s.holdRetention),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(s.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("チェックアウト掃除ワーカー停止（コンテキストキャンセル）")
			return
		case <-s.stopCh:
			logger.Info("チェックアウト掃除ワーカー停止（シグナル受信）")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Stop はワーカーを停止
func (s *CheckoutSweeper) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

// sweep は期限切れ注文をバッチ単位でキャンセルし、古い保留を削除する
func (s *CheckoutSweeper) sweep(ctx context.Context) {
	log := logger.Get()

	total := 0
	for i := 0; i < maxBatchesPerSweep; i++ {
		n, err := s.orders.CancelExpiredOrders(ctx, s.batchSize)
		if err != nil {
			log.Error("期限切れ注文のキャンセル失敗", zap.Error(err))
			break
		}
		total += n
		if n < s.batchSize {
			break
		}
	}
	if total > 0 {
		log.Info("期限切れ注文をキャンセル", zap.Int("count", total))
	}

	if s.holds == nil {
		return
	}
	n, err := s.holds.PurgeStaleHolds(ctx, s.holdRetention)
	if err != nil {
		log.Error("座席保留の削除失敗", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("古い座席保留を削除", zap.Int("count", n))
	} else {
		log.Debug("削除対象の座席保留なし")
	}
}
