package application

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/event"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/seathold"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/ticket"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/transaction"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/pkg/clock"
)

// SeatGroup は同じイベント・日程の座席のまとまり
type SeatGroup struct {
	EventID         int64
	EventScheduleID string
	Seats           []string
}

// ClassRequest は券種ごとの要求枚数
type ClassRequest struct {
	EventScheduleID string
	TicketClass     *event.TicketClass
	Quantity        int
}

// AvailabilityChecker は座席と券種在庫の空きを確認する
type AvailabilityChecker struct {
	holdRepo   seathold.Repository
	ticketRepo ticket.Repository
	clock      clock.Clock
}

func NewAvailabilityChecker(hr seathold.Repository, tr ticket.Repository, clk clock.Clock) *AvailabilityChecker {
	return &AvailabilityChecker{holdRepo: hr, ticketRepo: tr, clock: clk}
}

// AssertSeatsAvailable は他セッションの保留と販売済み座席がないことを確認する
// tx が nil の場合はグループごとに並行して確認する
func (c *AvailabilityChecker) AssertSeatsAvailable(ctx context.Context, tx transaction.Tx, groups []SeatGroup, holdCode string) error {
	now := c.clock.Now()
	if tx != nil || len(groups) <= 1 {
		for _, g := range groups {
			if err := c.checkGroup(ctx, tx, g, holdCode, now); err != nil {
				return err
			}
		}
		return nil
	}

	errs := make([]error, len(groups))
	eg, gctx := errgroup.WithContext(ctx)
	for i, g := range groups {
		i, g := i, g
		eg.Go(func() error {
			errs[i] = c.checkGroup(gctx, nil, g, holdCode, now)
			return errs[i]
		})
	}
	waitErr := eg.Wait()

	// 先頭のグループから順に、キャンセル以外の最初のエラーを返す
	for _, err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return waitErr
}

func (c *AvailabilityChecker) checkGroup(ctx context.Context, tx transaction.Tx, g SeatGroup, holdCode string, now time.Time) error {
	seats := seathold.NormalizeSeatNames(g.Seats)
	if len(seats) == 0 {
		return nil
	}

	holds, err := c.holdRepo.FindActiveOverlaps(ctx, tx, g.EventID, g.EventScheduleID, seats, holdCode, now)
	if err != nil {
		return err
	}
	if conflict := seathold.ConflictingSeats(holds, seats); len(conflict) > 0 {
		return seathold.Unavailable(conflict)
	}

	taken, err := c.ticketRepo.FindTakenSeats(ctx, tx, g.EventID, g.EventScheduleID, seats, now)
	if err != nil {
		return err
	}
	if len(taken) > 0 {
		return seathold.AlreadyBooked(taken)
	}
	return nil
}

// AssertTicketClassCapacity は日程 × 券種の残り枚数が要求枚数以上あることを確認する
func (c *AvailabilityChecker) AssertTicketClassCapacity(ctx context.Context, tx transaction.Tx, reqs []ClassRequest) error {
	if len(reqs) == 0 {
		return nil
	}

	requested := make(map[ticket.ClassKey]int, len(reqs))
	classes := make(map[ticket.ClassKey]*event.TicketClass, len(reqs))
	keys := make([]ticket.ClassKey, 0, len(reqs))
	for _, r := range reqs {
		key := ticket.ClassKey{EventScheduleID: r.EventScheduleID, TicketPriceID: r.TicketClass.ID}
		if _, ok := requested[key]; !ok {
			keys = append(keys, key)
			classes[key] = r.TicketClass
		}
		requested[key] += r.Quantity
	}

	taken, err := c.ticketRepo.CountTaken(ctx, tx, keys, c.clock.Now())
	if err != nil {
		return err
	}

	for _, key := range keys {
		remaining := classes[key].Quantity - taken[key]
		if remaining < 0 {
			remaining = 0
		}
		if requested[key] > remaining {
			return event.ErrCapacityExceeded.WithDetails(map[string]any{
				"ticketPriceId":   key.TicketPriceID,
				"eventScheduleId": key.EventScheduleID,
				"requested":       requested[key],
				"remaining":       remaining,
			})
		}
	}
	return nil
}
