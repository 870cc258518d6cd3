package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/pkg/metrics"
)

var (
	ErrLockNotAcquired = errors.New("ロックを取得できませんでした")
	ErrLockNotOwned    = errors.New("ロックの所有者ではありません")
)

// トークンが一致するときだけ削除する
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ScheduleLocker は公演日程ごとの分散ロック。
// 同じ日程への保留処理を複数インスタンス間で直列化するための補助で、座席の排他は DB 側で保証する
type ScheduleLocker struct {
	client     *redis.Client
	metrics    *metrics.Metrics
	ttl        time.Duration
	retries    int
	retryDelay time.Duration
}

// Unlock は取得したロックを解放する
type Unlock func(ctx context.Context) error

func NewScheduleLocker(client *redis.Client, m *metrics.Metrics) *ScheduleLocker {
	return &ScheduleLocker{
		client:     client,
		metrics:    m,
		ttl:        10 * time.Second,
		retries:    3,
		retryDelay: 100 * time.Millisecond,
	}
}

// WithRetry は取得の試行回数と待ち時間を変える
func (l *ScheduleLocker) WithRetry(retries int, delay time.Duration) *ScheduleLocker {
	if retries > 0 {
		l.retries = retries
	}
	l.retryDelay = delay
	return l
}

// WithTTL はロックの自動失効までの時間を変える
func (l *ScheduleLocker) WithTTL(ttl time.Duration) *ScheduleLocker {
	if ttl > 0 {
		l.ttl = ttl
	}
	return l
}

func scheduleLockKey(eventID int64, scheduleID string) string {
	return fmt.Sprintf("checkout:lock:schedule:%d:%s", eventID, scheduleID)
}

// LockSchedule は日程のロックを取得する。
// 他が保持中なら retries 回まで待ち、それでも取れなければ ErrLockNotAcquired を返す
func (l *ScheduleLocker) LockSchedule(ctx context.Context, eventID int64, scheduleID string) (Unlock, error) {
	key := scheduleLockKey(eventID, scheduleID)
	token := uuid.NewString()
	start := time.Now()

	for attempt := 1; ; attempt++ {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			l.metrics.ObserveLock("acquire", "error", time.Since(start).Seconds())
			return nil, fmt.Errorf("ロック取得に失敗 (%s): %w", key, err)
		}
		if ok {
			l.metrics.ObserveLock("acquire", "ok", time.Since(start).Seconds())
			return l.unlocker(key, token), nil
		}
		if attempt >= l.retries {
			l.metrics.ObserveLock("acquire", "busy", time.Since(start).Seconds())
			return nil, ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryDelay):
		}
	}
}

func (l *ScheduleLocker) unlocker(key, token string) Unlock {
	return func(ctx context.Context) error {
		n, err := unlockScript.Run(ctx, l.client, []string{key}, token).Int()
		if err != nil {
			return fmt.Errorf("ロック解放に失敗 (%s): %w", key, err)
		}
		if n == 0 {
			// TTL 切れで他に取られた、または解放済み
			return ErrLockNotOwned
		}
		return nil
	}
}
