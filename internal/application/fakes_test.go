package application

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/customer"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/event"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/order"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/promotion"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/seathold"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/ticket"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/transaction"
	redislock "github.com/sanosuguru/go-event-ticket-checkout/internal/infrastructure/redis"
)

// === インメモリストア ===
// トランザクション開始時に状態を退避し、Rollback で戻す

type memState struct {
	holds   []seathold.SeatHold
	orders  []order.Order
	items   []order.Item
	tickets []ticket.Ticket
	users   []customer.User
	promos  []promotion.Promotion
	nextID  int64
}

func (s memState) clone() memState {
	return memState{
		holds:   append([]seathold.SeatHold(nil), s.holds...),
		orders:  append([]order.Order(nil), s.orders...),
		items:   append([]order.Item(nil), s.items...),
		tickets: append([]ticket.Ticket(nil), s.tickets...),
		users:   append([]customer.User(nil), s.users...),
		promos:  append([]promotion.Promotion(nil), s.promos...),
		nextID:  s.nextID,
	}
}

type memStore struct {
	mu    sync.Mutex
	state memState

	events    map[int64]event.Event
	schedules map[string]event.Schedule
	classes   map[int64]event.TicketClass

	// failTicketAt が n>0 なら CreateBulk の n 件目で失敗する
	failTicketAt int
	// dropItemIDs が true なら CreateItems で ID を採番しない
	dropItemIDs bool

	lockedSeats   [][]string
	lockedClasses [][]int64
	commits       int
	rollbacks     int
}

func newMemStore() *memStore {
	return &memStore{
		events:    make(map[int64]event.Event),
		schedules: make(map[string]event.Schedule),
		classes:   make(map[int64]event.TicketClass),
	}
}

func (m *memStore) id() int64 {
	m.state.nextID++
	return m.state.nextID
}

func (m *memStore) snapshot() memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

type memTx struct {
	store    *memStore
	saved    memState
	finished bool
}

func (t *memTx) Commit() error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.finished = true
	t.store.commits++
	return nil
}

func (t *memTx) Rollback() error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.finished {
		return nil
	}
	t.finished = true
	t.store.state = t.saved
	t.store.rollbacks++
	return nil
}

func (m *memStore) Begin(ctx context.Context) (transaction.Tx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &memTx{store: m, saved: m.state.clone()}, nil
}

func (m *memStore) orderByID(id int64) *order.Order {
	for i := range m.state.orders {
		if m.state.orders[i].ID == id {
			return &m.state.orders[i]
		}
	}
	return nil
}

// isTaken は決済済み、または決済期限内の注文のチケットかどうか
func (m *memStore) isTaken(t ticket.Ticket, now time.Time) bool {
	if t.Status == ticket.StatusCancelled {
		return false
	}
	o := m.orderByID(t.OrderID)
	if o == nil {
		return false
	}
	return o.Status == order.StatusCompleted || (o.Status == order.StatusProcessing && !o.IsExpired(now))
}

// === event.Repository ===

type memEventRepo struct{ *memStore }

func (r memEventRepo) GetByID(ctx context.Context, id int64) (*event.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return nil, event.ErrEventNotFound
	}
	return &e, nil
}

func (r memEventRepo) GetSchedule(ctx context.Context, id string) (*event.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok {
		return nil, event.ErrScheduleNotFound
	}
	return &s, nil
}

func (r memEventRepo) GetTicketClass(ctx context.Context, id int64) (*event.TicketClass, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tc, ok := r.classes[id]
	if !ok {
		return nil, event.ErrTicketClassNotFound
	}
	return &tc, nil
}

func (r memEventRepo) LockTicketClasses(ctx context.Context, tx transaction.Tx, ids []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lockedClasses = append(r.lockedClasses, ids)
	return nil
}

// === seathold.Repository / SeatLocker ===

type memHoldRepo struct{ *memStore }

func (r memHoldRepo) FindActiveOverlaps(ctx context.Context, tx transaction.Tx, eventID int64, scheduleID string, seats []string, excludeCode string, now time.Time) ([]*seathold.SeatHold, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*seathold.SeatHold
	for _, h := range r.state.holds {
		if !h.Covers(eventID, scheduleID) || !h.IsActive(now) || h.Code == excludeCode {
			continue
		}
		if len(h.Overlap(seats)) == 0 {
			continue
		}
		h := h
		out = append(out, &h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpireAt.Before(out[j].ExpireAt) })
	return out, nil
}

func (r memHoldRepo) GetActiveByCode(ctx context.Context, tx transaction.Tx, code string, now time.Time) (*seathold.SeatHold, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.state.holds {
		if h.Code == code && h.IsActive(now) {
			return &h, nil
		}
	}
	return nil, seathold.ErrHoldNotFound
}

func (r memHoldRepo) Create(ctx context.Context, tx transaction.Tx, h *seathold.SeatHold) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h.ID = r.id()
	r.state.holds = append(r.state.holds, *h)
	return nil
}

func (r memHoldRepo) Update(ctx context.Context, tx transaction.Tx, h *seathold.SeatHold) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.state.holds {
		if r.state.holds[i].Code == h.Code && r.state.holds[i].ClosedAt == nil {
			r.state.holds[i] = *h
			return nil
		}
	}
	return seathold.ErrHoldNotActive
}

func (r memHoldRepo) Close(ctx context.Context, code string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.state.holds {
		if r.state.holds[i].Code == code && r.state.holds[i].ClosedAt == nil {
			r.state.holds[i].Close(now)
			return true, nil
		}
	}
	return false, nil
}

func (r memHoldRepo) DeleteStale(ctx context.Context, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.state.holds[:0]
	n := 0
	for _, h := range r.state.holds {
		if h.ExpireAt.Before(before) || (h.ClosedAt != nil && h.ClosedAt.Before(before)) {
			n++
			continue
		}
		kept = append(kept, h)
	}
	r.state.holds = kept
	return n, nil
}

type memLocker struct{ *memStore }

func (l memLocker) LockSeats(ctx context.Context, tx transaction.Tx, eventID int64, scheduleID string, seats []string) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lockedSeats = append(l.lockedSeats, append([]string(nil), seats...))
	return nil
}

// === ticket.Repository ===

type memTicketRepo struct{ *memStore }

var errInsertFailed = errors.New("insert failed")

func (r memTicketRepo) CreateBulk(ctx context.Context, tx transaction.Tx, tickets []*ticket.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, t := range tickets {
		if r.failTicketAt > 0 && i+1 == r.failTicketAt {
			return errInsertFailed
		}
		if t.Seat != "" {
			for _, existing := range r.state.tickets {
				if existing.Status != ticket.StatusCancelled && existing.EventID == t.EventID &&
					existing.EventScheduleID == t.EventScheduleID && existing.Seat == t.Seat {
					return seathold.AlreadyBooked([]string{t.Seat})
				}
			}
		}
		t.ID = r.id()
		r.state.tickets = append(r.state.tickets, *t)
	}
	return nil
}

func (r memTicketRepo) FindTakenSeats(ctx context.Context, tx transaction.Tx, eventID int64, scheduleID string, seats []string, now time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := make(map[string]bool, len(seats))
	for _, s := range seats {
		want[s] = true
	}
	seen := make(map[string]bool)
	var out []string
	for _, t := range r.state.tickets {
		if t.EventID != eventID || t.EventScheduleID != scheduleID || !want[t.Seat] || seen[t.Seat] {
			continue
		}
		if r.isTaken(t, now) {
			seen[t.Seat] = true
			out = append(out, t.Seat)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r memTicketRepo) CountTaken(ctx context.Context, tx transaction.Tx, keys []ticket.ClassKey, now time.Time) (map[ticket.ClassKey]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := make(map[ticket.ClassKey]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	counts := make(map[ticket.ClassKey]int)
	for _, t := range r.state.tickets {
		k := ticket.ClassKey{EventScheduleID: t.EventScheduleID, TicketPriceID: t.PriceInfo.ID}
		if want[k] && r.isTaken(t, now) {
			counts[k]++
		}
	}
	return counts, nil
}

func (r memTicketRepo) ReleaseExpiredSeats(ctx context.Context, tx transaction.Tx, eventID int64, scheduleID string, seats []string, now time.Time) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := make(map[string]bool, len(seats))
	for _, s := range seats {
		want[s] = true
	}
	seen := make(map[int64]bool)
	var ids []int64
	for i := range r.state.tickets {
		t := &r.state.tickets[i]
		if t.EventID != eventID || t.EventScheduleID != scheduleID || !want[t.Seat] || t.Status == ticket.StatusCancelled {
			continue
		}
		o := r.orderByID(t.OrderID)
		stale := o.Status == order.StatusCanceled || o.Status == order.StatusFailed ||
			(o.Status == order.StatusProcessing && o.IsExpired(now))
		if !stale {
			continue
		}
		t.Status = ticket.StatusCancelled
		if !seen[t.OrderID] {
			seen[t.OrderID] = true
			ids = append(ids, t.OrderID)
		}
	}
	return ids, nil
}

func (r memTicketRepo) UpdateStatusByOrder(ctx context.Context, tx transaction.Tx, orderID int64, status ticket.Status) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for i := range r.state.tickets {
		if r.state.tickets[i].OrderID == orderID && r.state.tickets[i].Status != ticket.StatusCancelled {
			r.state.tickets[i].Status = status
			n++
		}
	}
	return n, nil
}

func (r memTicketRepo) ListByOrder(ctx context.Context, orderID int64) ([]*ticket.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*ticket.Ticket
	for _, t := range r.state.tickets {
		if t.OrderID == orderID {
			t := t
			out = append(out, &t)
		}
	}
	return out, nil
}

func (r memTicketRepo) GetByCodeForUpdate(ctx context.Context, tx transaction.Tx, code string) (*ticket.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.state.tickets {
		if t.TicketCode == code {
			return &t, nil
		}
	}
	return nil, ticket.ErrTicketNotFound
}

func (r memTicketRepo) UpdateOwner(ctx context.Context, tx transaction.Tx, t *ticket.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.state.tickets {
		if r.state.tickets[i].ID == t.ID {
			r.state.tickets[i].UserID = t.UserID
			r.state.tickets[i].AttendeeName = t.AttendeeName
			r.state.tickets[i].Gift = t.Gift
			r.state.tickets[i].UpdatedAt = t.UpdatedAt
			return nil
		}
	}
	return ticket.ErrTicketNotFound
}

// === order.Repository ===

type memOrderRepo struct{ *memStore }

func (r memOrderRepo) Create(ctx context.Context, tx transaction.Tx, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o.ID = r.id()
	r.state.orders = append(r.state.orders, *o)
	return nil
}

func (r memOrderRepo) CreateItems(ctx context.Context, tx transaction.Tx, items []*order.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, it := range items {
		if !r.dropItemIDs {
			it.ID = r.id()
		}
		r.state.items = append(r.state.items, *it)
	}
	return nil
}

func (r memOrderRepo) find(code string) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.state.orders {
		if o.OrderCode == code {
			return &o, nil
		}
	}
	return nil, order.ErrOrderNotFound
}

func (r memOrderRepo) GetByCode(ctx context.Context, code string) (*order.Order, error) {
	return r.find(code)
}

func (r memOrderRepo) GetByCodeForUpdate(ctx context.Context, tx transaction.Tx, code string) (*order.Order, error) {
	return r.find(code)
}

func (r memOrderRepo) ListItems(ctx context.Context, orderID int64) ([]*order.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*order.Item
	for _, it := range r.state.items {
		if it.OrderID == orderID {
			it := it
			out = append(out, &it)
		}
	}
	return out, nil
}

func (r memOrderRepo) UpdateStatus(ctx context.Context, tx transaction.Tx, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := r.orderByID(o.ID)
	if stored == nil {
		return order.ErrOrderNotFound
	}
	stored.Status = o.Status
	stored.CompletedAt = o.CompletedAt
	stored.UpdatedAt = o.UpdatedAt
	for i := range r.state.items {
		if r.state.items[i].OrderID == o.ID {
			r.state.items[i].Status = o.Status
		}
	}
	return nil
}

func (r memOrderRepo) CancelExpired(ctx context.Context, tx transaction.Tx, ids []int64, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, id := range ids {
		o := r.orderByID(id)
		if o == nil || o.Status != order.StatusProcessing || !o.IsExpired(now) {
			continue
		}
		o.Status = order.StatusCanceled
		o.UpdatedAt = now
		n++
		for i := range r.state.items {
			if r.state.items[i].OrderID == id {
				r.state.items[i].Status = order.StatusCanceled
			}
		}
		for i := range r.state.tickets {
			if r.state.tickets[i].OrderID == id {
				r.state.tickets[i].Status = ticket.StatusCancelled
			}
		}
	}
	return n, nil
}

func (r memOrderRepo) ListExpiredProcessing(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var expired []order.Order
	for _, o := range r.state.orders {
		if o.Status == order.StatusProcessing && o.IsExpired(now) {
			expired = append(expired, o)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].ExpireAt.Before(expired[j].ExpireAt) })
	var ids []int64
	for i, o := range expired {
		if i >= limit {
			break
		}
		ids = append(ids, o.ID)
	}
	return ids, nil
}

// === promotion.Repository ===

type memPromoRepo struct{ *memStore }

func (r memPromoRepo) GetByCode(ctx context.Context, code string) (*promotion.Promotion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.state.promos {
		if p.Code == code {
			return &p, nil
		}
	}
	return nil, promotion.ErrPromotionNotFound
}

func (r memPromoRepo) Redeem(ctx context.Context, tx transaction.Tx, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.state.promos {
		p := &r.state.promos[i]
		if p.ID != id {
			continue
		}
		if p.MaxRedemptions > 0 && p.TotalUsed >= p.MaxRedemptions {
			return promotion.ErrPromotionExhausted
		}
		p.TotalUsed++
		return nil
	}
	return promotion.ErrPromotionNotFound
}

// === customer.Repository ===

type memUserRepo struct{ *memStore }

func (r memUserRepo) GetByEmailForUpdate(ctx context.Context, tx transaction.Tx, email string) (*customer.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.state.users {
		if u.Email == email {
			u.PhoneNumbers = append([]string(nil), u.PhoneNumbers...)
			return &u, nil
		}
	}
	return nil, customer.ErrUserNotFound
}

func (r memUserRepo) Create(ctx context.Context, tx transaction.Tx, u *customer.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.state.users {
		existing := &r.state.users[i]
		if existing.Email != u.Email {
			continue
		}
		for _, p := range u.PhoneNumbers {
			if !slices.Contains(existing.PhoneNumbers, p) {
				existing.PhoneNumbers = append(existing.PhoneNumbers, p)
			}
		}
		u.ID = existing.ID
		u.PhoneNumbers = append([]string(nil), existing.PhoneNumbers...)
		return nil
	}
	u.ID = r.id()
	r.state.users = append(r.state.users, *u)
	return nil
}

func (r memUserRepo) UpdatePhoneNumbers(ctx context.Context, tx transaction.Tx, u *customer.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.state.users {
		if r.state.users[i].ID == u.ID {
			r.state.users[i].PhoneNumbers = append([]string(nil), u.PhoneNumbers...)
			return nil
		}
	}
	return customer.ErrUserNotFound
}

// === testify mocks ===

// MockTxManager implements transaction.Manager
type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) Begin(ctx context.Context) (transaction.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(transaction.Tx), args.Error(1)
}

// MockNotifier implements Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) OrderCreated(ctx context.Context, o *order.Order) error {
	return m.Called(ctx, o).Error(0)
}

func (m *MockNotifier) OrderStatusChanged(ctx context.Context, o *order.Order) error {
	return m.Called(ctx, o).Error(0)
}

// MockAudit implements AuditRecorder
type MockAudit struct {
	mock.Mock
}

func (m *MockAudit) RecordHold(ctx context.Context, action string, h *seathold.SeatHold) error {
	return m.Called(ctx, action, h).Error(0)
}

func (m *MockAudit) RecordOrder(ctx context.Context, action string, o *order.Order) error {
	return m.Called(ctx, action, o).Error(0)
}

// MockScheduleLocker implements ScheduleLocker
type MockScheduleLocker struct {
	mock.Mock
}

func (m *MockScheduleLocker) LockSchedule(ctx context.Context, eventID int64, scheduleID string) (redislock.Unlock, error) {
	args := m.Called(ctx, eventID, scheduleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(redislock.Unlock), args.Error(1)
}
