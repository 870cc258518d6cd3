package application

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/customer"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/event"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/order"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/promotion"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/ticket"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/pkg/clock"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/pkg/metrics"
)

var baseTime = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

// カタログ
const (
	seatEventID    int64 = 1 // 座席指定、公開中
	classEventID   int64 = 2 // 券種指定、公開中
	draftEventID   int64 = 3 // 非公開
	seatScheduleID       = "S1"
	classSchedule        = "S2"
	pastScheduleID       = "S-past"
	vipClassID     int64 = 10 // VIP 100 JPY
	stdClassID     int64 = 11 // Standard 50 JPY
	generalClassID int64 = 20 // General 3000 JPY、定員5
)

type fixture struct {
	store   *memStore
	clock   *clock.Fake
	checker *AvailabilityChecker
	holds   *SeatHoldService
	orders  *OrderService
	tickets *TicketService
	metrics *metrics.Metrics
}

func newFixture(t testing.TB) *fixture {
	t.Helper()
	store := newMemStore()
	clk := clock.NewFake(baseTime)

	store.events[seatEventID] = event.Event{ID: seatEventID, Title: "Hall concert", Status: event.StatusPublished, BookingMode: event.BookingModeSeat, EndAt: baseTime.AddDate(0, 1, 0)}
	store.events[classEventID] = event.Event{ID: classEventID, Title: "Festival", Status: event.StatusPublished, BookingMode: event.BookingModeTicketClass}
	store.events[draftEventID] = event.Event{ID: draftEventID, Title: "Draft", Status: event.StatusDraft, BookingMode: event.BookingModeSeat}

	store.schedules[seatScheduleID] = event.Schedule{ID: seatScheduleID, EventID: seatEventID, StartsAt: baseTime.AddDate(0, 0, 7), EndsAt: baseTime.AddDate(0, 0, 7).Add(2 * time.Hour)}
	store.schedules[classSchedule] = event.Schedule{ID: classSchedule, EventID: classEventID, StartsAt: baseTime.AddDate(0, 0, 14)}
	store.schedules[pastScheduleID] = event.Schedule{ID: pastScheduleID, EventID: seatEventID, StartsAt: baseTime.AddDate(0, 0, -1)}

	store.classes[vipClassID] = event.TicketClass{ID: vipClassID, EventID: seatEventID, Name: "VIP", Price: 100, Currency: "JPY"}
	store.classes[stdClassID] = event.TicketClass{ID: stdClassID, EventID: seatEventID, Name: "Standard", Price: 50, Currency: "JPY"}
	store.classes[generalClassID] = event.TicketClass{ID: generalClassID, EventID: classEventID, Name: "General", Price: 3000, Currency: "JPY", Quantity: 5}

	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	checker := NewAvailabilityChecker(memHoldRepo{store}, memTicketRepo{store}, clk)
	holds := NewSeatHoldService(store, memHoldRepo{store}, memLocker{store}, memEventRepo{store}, checker, clk, 30*time.Minute).
		WithMetrics(m)
	orders := NewOrderService(store, OrderRepos{
		Events:     memEventRepo{store},
		Holds:      memHoldRepo{store},
		Locker:     memLocker{store},
		Orders:     memOrderRepo{store},
		Tickets:    memTicketRepo{store},
		Promotions: memPromoRepo{store},
		Users:      memUserRepo{store},
	}, checker, clk, 15*time.Minute, 5).WithMetrics(m)
	tickets := NewTicketService(store, memTicketRepo{store}, memEventRepo{store}, memUserRepo{store}, clk)

	return &fixture{store: store, clock: clk, checker: checker, holds: holds, orders: orders, tickets: tickets, metrics: m}
}

func (f *fixture) addPromotion(p promotion.Promotion) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	p.ID = f.store.id()
	if p.Status == "" {
		p.Status = promotion.StatusActive
	}
	f.store.state.promos = append(f.store.state.promos, p)
}

// seedTickets は指定状態の注文とチケットを直接作る
func (f *fixture) seedTickets(t testing.TB, status order.Status, expireAt time.Time, eventID int64, scheduleID string, classID int64, seats []string, quantity int) *order.Order {
	t.Helper()
	f.store.mu.Lock()
	defer f.store.mu.Unlock()

	orderID := f.store.id()
	o := order.Order{ID: orderID, OrderCode: fmt.Sprintf("SEED-%d", orderID), Status: status, Currency: "JPY", ExpireAt: expireAt}
	f.store.state.orders = append(f.store.state.orders, o)
	ticketStatus := ticket.StatusPendingPayment
	if status == order.StatusCompleted {
		ticketStatus = ticket.StatusBooked
	}
	add := func(seat string) {
		id := f.store.id()
		f.store.state.tickets = append(f.store.state.tickets, ticket.Ticket{
			ID: id, TicketCode: fmt.Sprintf("T-%d", id), Seat: seat, Status: ticketStatus,
			PriceInfo: ticket.PriceInfo{ID: classID}, EventID: eventID, EventScheduleID: scheduleID, OrderID: o.ID,
		})
	}
	for _, s := range seats {
		add(s)
	}
	for i := 0; i < quantity; i++ {
		add("")
	}
	return &o
}

func buyer() customer.Input {
	return customer.Input{FirstName: "Taro", LastName: "Yamada", Email: "taro@example.com", Phone: "09012345678"}
}

func (f *fixture) hold(t *testing.T, code string, seats ...string) string {
	t.Helper()
	h, err := f.holds.AcquireOrRenewHold(context.Background(), AcquireHoldInput{
		SeatNames: seats, EventID: seatEventID, EventScheduleID: seatScheduleID, ExistingHoldCode: code,
	})
	require.NoError(t, err)
	return h.Code
}

func seatItem(seat string, classID, price int64) OrderItemInput {
	return OrderItemInput{EventID: seatEventID, EventScheduleID: seatScheduleID, TicketPriceID: classID, Seat: seat, Price: price, Quantity: 1}
}

func classItem(quantity int) OrderItemInput {
	return OrderItemInput{EventID: classEventID, EventScheduleID: classSchedule, TicketPriceID: generalClassID, Price: 3000, Quantity: quantity}
}
