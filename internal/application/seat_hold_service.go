package application

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/event"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/seathold"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/transaction"
	redislock "github.com/sanosuguru/go-event-ticket-checkout/internal/infrastructure/redis"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/pkg/clock"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/pkg/logger"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/pkg/metrics"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/pkg/token"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/pkg/tracing"
)

// SeatHoldService は座席保留の作成・更新・解放を行う
type SeatHoldService struct {
	txManager    transaction.Manager
	holdRepo     seathold.Repository
	locker       seathold.SeatLocker
	eventRepo    event.Repository
	checker      *AvailabilityChecker
	clock        clock.Clock
	window       time.Duration
	scheduleLock ScheduleLocker
	audit        AuditRecorder
	metrics      *metrics.Metrics
}

func NewSeatHoldService(
	tm transaction.Manager,
	hr seathold.Repository,
	sl seathold.SeatLocker,
	er event.Repository,
	checker *AvailabilityChecker,
	clk clock.Clock,
	window time.Duration,
) *SeatHoldService {
	if window <= 0 {
		window = seathold.DefaultWindow
	}
	return &SeatHoldService{
		txManager: tm,
		holdRepo:  hr,
		locker:    sl,
		eventRepo: er,
		checker:   checker,
		clock:     clk,
		window:    window,
	}
}

// WithScheduleLocker は日程単位の分散ロックを有効にする
func (s *SeatHoldService) WithScheduleLocker(l ScheduleLocker) *SeatHoldService {
	s.scheduleLock = l
	return s
}

func (s *SeatHoldService) WithAudit(a AuditRecorder) *SeatHoldService {
	s.audit = a
	return s
}

func (s *SeatHoldService) WithMetrics(m *metrics.Metrics) *SeatHoldService {
	s.metrics = m
	return s
}

// AcquireHoldInput は座席保留の入力
type AcquireHoldInput struct {
	SeatNames        []string
	EventID          int64
	EventScheduleID  string
	ExistingHoldCode string
	ClientMeta       seathold.ClientMeta
}

// AcquireOrRenewHold は座席を保留する
// 同じイベント・日程の有効な保留コードが渡された場合はその保留を上書きして延長する
func (s *SeatHoldService) AcquireOrRenewHold(ctx context.Context, in AcquireHoldInput) (hold *seathold.SeatHold, err error) {
	ctx, span := tracing.Start(ctx, "SeatHoldService.AcquireOrRenewHold",
		trace.WithAttributes(attribute.Int64("event.id", in.EventID), attribute.String("schedule.id", in.EventScheduleID)))
	defer func() { tracing.End(span, err) }()

	seats := seathold.NormalizeSeatNames(in.SeatNames)
	if len(seats) == 0 {
		return nil, seathold.ErrSeatRequired
	}
	if in.EventID <= 0 {
		return nil, event.ErrEventIDRequired
	}
	if in.EventScheduleID == "" {
		return nil, event.ErrScheduleIDRequired
	}

	now := s.clock.Now()
	ev, sched, err := s.resolveSchedule(ctx, in.EventID, in.EventScheduleID, now)
	if err != nil {
		return nil, err
	}

	if s.scheduleLock != nil {
		unlock, err := s.scheduleLock.LockSchedule(ctx, ev.ID, sched.ID)
		switch {
		case errors.Is(err, redislock.ErrLockNotAcquired):
			s.metrics.IncHold("busy")
			return nil, seathold.Unavailable(seats)
		case err != nil:
			// Redis 障害時は DB のロックだけで続行する
			logger.Warn("分散ロックを取得できません", zap.Error(err))
		default:
			defer func() {
				if rerr := unlock(context.WithoutCancel(ctx)); rerr != nil {
					logger.Warn("分散ロックの解放に失敗", zap.Error(rerr))
				}
			}()
		}
	}

	action := "hold.created"
	start := time.Now()
	err = transaction.WithTransaction(ctx, s.txManager, func(tx transaction.Tx) error {
		if err := s.locker.LockSeats(ctx, tx, ev.ID, sched.ID, seats); err != nil {
			return err
		}
		group := []SeatGroup{{EventID: ev.ID, EventScheduleID: sched.ID, Seats: seats}}
		if err := s.checker.AssertSeatsAvailable(ctx, tx, group, in.ExistingHoldCode); err != nil {
			return err
		}

		if in.ExistingHoldCode != "" {
			existing, err := s.holdRepo.GetActiveByCode(ctx, tx, in.ExistingHoldCode, now)
			switch {
			case err == nil && existing.Covers(ev.ID, sched.ID):
				if err := existing.Renew(seats, in.ClientMeta, now, s.window); err != nil {
					return err
				}
				if err := s.holdRepo.Update(ctx, tx, existing); err != nil {
					return err
				}
				hold = existing
				action = "hold.renewed"
				return nil
			case err != nil && !errors.Is(err, seathold.ErrHoldNotFound):
				return err
			}
		}

		code, err := token.HoldCode()
		if err != nil {
			return err
		}
		hold = seathold.New(code, ev.ID, sched.ID, seats, in.ClientMeta, now, s.window)
		return s.holdRepo.Create(ctx, tx, hold)
	})
	s.metrics.ObserveTx("seat_hold", time.Since(start).Seconds())
	if err != nil {
		err = toInfraError(err)
		s.metrics.IncHold(resultLabel(err))
		return nil, err
	}

	s.metrics.IncHold(action)
	logger.Info("座席を保留しました",
		zap.String("action", action),
		zap.Int64("event_id", ev.ID),
		zap.String("schedule_id", sched.ID),
		zap.Strings("seats", hold.SeatNames),
		zap.Time("expire_at", hold.ExpireAt),
	)
	s.recordHold(ctx, action, hold)
	return hold, nil
}

// resolveSchedule はイベントと日程が保留可能か確認する
func (s *SeatHoldService) resolveSchedule(ctx context.Context, eventID int64, scheduleID string, now time.Time) (*event.Event, *event.Schedule, error) {
	ev, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, nil, toInfraError(err)
	}
	if err := ev.CheckBookable(now); err != nil {
		return nil, nil, err
	}
	if !ev.IsSeatBooking() {
		return nil, nil, event.ErrBookingModeMismatch
	}
	sched, err := s.eventRepo.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, nil, toInfraError(err)
	}
	if err := sched.CheckBelongsTo(ev.ID); err != nil {
		return nil, nil, err
	}
	if sched.IsPast(now) {
		return nil, nil, event.ErrSchedulePassed
	}
	return ev, sched, nil
}

// ReleaseHold は保留を解放する。空のコードや解放済みのコードは何もしない
func (s *SeatHoldService) ReleaseHold(ctx context.Context, code string) error {
	if code == "" {
		return nil
	}
	closed, err := s.holdRepo.Close(ctx, code, s.clock.Now())
	if err != nil {
		return toInfraError(err)
	}
	if closed {
		s.metrics.IncHold("released")
		logger.Debug("座席保留を解放しました")
	}
	return nil
}

// PurgeStaleHolds は retention より前に失効・解放された保留を削除する
func (s *SeatHoldService) PurgeStaleHolds(ctx context.Context, retention time.Duration) (int, error) {
	n, err := s.holdRepo.DeleteStale(ctx, s.clock.Now().Add(-retention))
	if err != nil {
		return 0, toInfraError(err)
	}
	s.metrics.AddSwept("seat_holdings", n)
	return n, nil
}

func (s *SeatHoldService) recordHold(ctx context.Context, action string, h *seathold.SeatHold) {
	if s.audit == nil {
		return
	}
	if err := s.audit.RecordHold(context.WithoutCancel(ctx), action, h); err != nil {
		logger.Warn("監査ログの記録に失敗", zap.String("action", action), zap.Error(err))
	}
}
