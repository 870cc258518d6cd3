package application

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/customer"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/event"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/order"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/promotion"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/seathold"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/ticket"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/transaction"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/pkg/clock"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/pkg/logger"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/pkg/metrics"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/pkg/token"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/pkg/tracing"
)

// DefaultMaxItemsPerOrder は1注文あたりの明細数の上限
const DefaultMaxItemsPerOrder = 20

// OrderRepos は OrderService が使うリポジトリ一式
type OrderRepos struct {
	Events     event.Repository
	Holds      seathold.Repository
	Locker     seathold.SeatLocker
	Orders     order.Repository
	Tickets    ticket.Repository
	Promotions promotion.Repository
	Users      customer.Repository
}

// OrderService は注文・明細・チケットを1トランザクションで作成し、注文の状態遷移を扱う
type OrderService struct {
	txManager     transaction.Manager
	repos         OrderRepos
	checker       *AvailabilityChecker
	clock         clock.Clock
	paymentWindow time.Duration
	maxItems      int
	notifier      Notifier
	audit         AuditRecorder
	metrics       *metrics.Metrics
}

func NewOrderService(tm transaction.Manager, repos OrderRepos, checker *AvailabilityChecker, clk clock.Clock, paymentWindow time.Duration, maxItems int) *OrderService {
	if paymentWindow <= 0 {
		paymentWindow = order.DefaultPaymentWindow
	}
	if maxItems <= 0 {
		maxItems = DefaultMaxItemsPerOrder
	}
	return &OrderService{
		txManager:     tm,
		repos:         repos,
		checker:       checker,
		clock:         clk,
		paymentWindow: paymentWindow,
		maxItems:      maxItems,
	}
}

func (s *OrderService) WithNotifier(n Notifier) *OrderService {
	s.notifier = n
	return s
}

func (s *OrderService) WithAudit(a AuditRecorder) *OrderService {
	s.audit = a
	return s
}

func (s *OrderService) WithMetrics(m *metrics.Metrics) *OrderService {
	s.metrics = m
	return s
}

// OrderItemInput は注文明細の入力
// 座席指定イベントは Seat を指定し Quantity は 1
type OrderItemInput struct {
	EventID         int64
	EventScheduleID string
	TicketPriceID   int64
	Seat            string
	Price           int64
	Quantity        int
}

// CreateOrderInput は注文作成の入力
type CreateOrderInput struct {
	Customer      customer.Input
	Currency      string
	Items         []OrderItemInput
	PromotionCode string
	HoldCode      string
	ClientMeta    seathold.ClientMeta
}

// CheckoutResult は作成された注文
type CheckoutResult struct {
	Order   *order.Order
	Items   []*order.Item
	Tickets []*ticket.Ticket
}

// OrderDetail は注文照会の結果
type OrderDetail = CheckoutResult

// resolvedItem はカタログ照合済みの明細
type resolvedItem struct {
	in       OrderItemInput
	event    *event.Event
	schedule *event.Schedule
	class    *event.TicketClass
}

func (r resolvedItem) isSeat() bool {
	return r.event.IsSeatBooking()
}

// CreateOrderWithTickets は注文を作成する
func (s *OrderService) CreateOrderWithTickets(ctx context.Context, in CreateOrderInput) (result *CheckoutResult, err error) {
	ctx, span := tracing.Start(ctx, "OrderService.CreateOrderWithTickets",
		trace.WithAttributes(attribute.Int("order.items", len(in.Items))))
	defer func() {
		tracing.End(span, err)
		if err != nil {
			s.metrics.IncOrder(resultLabel(err))
		}
	}()

	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	in.PromotionCode = strings.TrimSpace(in.PromotionCode)
	in.Customer = in.Customer.Normalize()
	for i := range in.Items {
		in.Items[i].Seat = strings.TrimSpace(in.Items[i].Seat)
	}
	if err := s.validateShape(in); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	items, err := s.resolveCatalog(ctx, in, now)
	if err != nil {
		return nil, err
	}

	var promo *promotion.Promotion
	if in.PromotionCode != "" {
		promo, err = s.repos.Promotions.GetByCode(ctx, in.PromotionCode)
		if err != nil {
			return nil, toInfraError(err)
		}
		if err := promo.CheckUsable(now); err != nil {
			return nil, err
		}
	}

	lines := make([]promotion.Line, len(items))
	for i, it := range items {
		lines[i] = promotion.Line{
			EventID:         it.event.ID,
			TicketClassName: it.class.Name,
			UnitPrice:       it.class.Price,
			Quantity:        it.in.Quantity,
		}
	}
	summary, err := promotion.Calculate(lines, promo)
	if err != nil {
		return nil, err
	}

	groups, classReqs := availabilityRequests(items)

	// トランザクション前の事前確認
	if err := s.checker.AssertSeatsAvailable(ctx, nil, groups, in.HoldCode); err != nil {
		return nil, toInfraError(err)
	}
	if err := s.checker.AssertTicketClassCapacity(ctx, nil, classReqs); err != nil {
		return nil, toInfraError(err)
	}

	start := time.Now()
	err = transaction.WithTransaction(ctx, s.txManager, func(tx transaction.Tx) error {
		var txErr error
		result, txErr = s.writeOrder(ctx, tx, in, items, groups, classReqs, promo, summary, now)
		return txErr
	})
	s.metrics.ObserveTx("create_order", time.Since(start).Seconds())
	if err != nil {
		err = toTxError(err)
		logger.Warn("注文作成に失敗しました", zap.Error(err))
		return nil, err
	}

	s.afterCreate(ctx, in.HoldCode, result)
	return result, nil
}

// validateShape は I/O なしで入力の形式を確認する
func (s *OrderService) validateShape(in CreateOrderInput) error {
	if len(in.Items) == 0 {
		return order.ErrItemsRequired
	}
	if len(in.Items) > s.maxItems {
		return order.ErrTooManyItems.WithDetails(map[string]any{"max": s.maxItems})
	}
	if in.Currency == "" {
		return order.ErrInvalidCurrency
	}

	type seatKey struct {
		schedule string
		seat     string
	}
	type classKey struct {
		schedule string
		class    int64
	}
	seats := make(map[seatKey]struct{})
	classes := make(map[classKey]struct{})
	for _, it := range in.Items {
		if it.EventID <= 0 {
			return event.ErrEventIDRequired
		}
		if it.EventScheduleID == "" {
			return event.ErrScheduleIDRequired
		}
		if it.TicketPriceID <= 0 {
			return event.ErrTicketClassIDRequired
		}
		if it.Quantity < 1 {
			return event.ErrInvalidQuantity
		}
		if it.Seat != "" {
			k := seatKey{it.EventScheduleID, it.Seat}
			if _, dup := seats[k]; dup {
				return seathold.ErrDuplicateSeat.WithDetails(map[string]any{"seats": []string{it.Seat}})
			}
			seats[k] = struct{}{}
			continue
		}
		k := classKey{it.EventScheduleID, it.TicketPriceID}
		if _, dup := classes[k]; dup {
			return event.ErrDuplicateTicketClass.WithDetails(map[string]any{"ticketPriceId": it.TicketPriceID})
		}
		classes[k] = struct{}{}
	}

	return in.Customer.Validate()
}

// resolveCatalog はイベント・日程・券種を照合する
func (s *OrderService) resolveCatalog(ctx context.Context, in CreateOrderInput, now time.Time) ([]resolvedItem, error) {
	events := make(map[int64]*event.Event)
	schedules := make(map[string]*event.Schedule)
	classes := make(map[int64]*event.TicketClass)

	out := make([]resolvedItem, 0, len(in.Items))
	for _, it := range in.Items {
		ev, ok := events[it.EventID]
		if !ok {
			var err error
			if ev, err = s.repos.Events.GetByID(ctx, it.EventID); err != nil {
				return nil, toInfraError(err)
			}
			if err := ev.CheckBookable(now); err != nil {
				return nil, err
			}
			events[ev.ID] = ev
		}

		sched, ok := schedules[it.EventScheduleID]
		if !ok {
			var err error
			if sched, err = s.repos.Events.GetSchedule(ctx, it.EventScheduleID); err != nil {
				return nil, toInfraError(err)
			}
			schedules[sched.ID] = sched
		}
		if err := sched.CheckBelongsTo(ev.ID); err != nil {
			return nil, err
		}
		if sched.IsPast(now) {
			return nil, event.ErrSchedulePassed
		}

		tc, ok := classes[it.TicketPriceID]
		if !ok {
			var err error
			if tc, err = s.repos.Events.GetTicketClass(ctx, it.TicketPriceID); err != nil {
				return nil, toInfraError(err)
			}
			classes[tc.ID] = tc
		}
		if err := tc.CheckBelongsTo(ev.ID); err != nil {
			return nil, err
		}
		if err := tc.CheckPrice(it.Price); err != nil {
			return nil, err
		}
		if !strings.EqualFold(tc.Currency, in.Currency) {
			return nil, order.ErrInvalidCurrency.WithDetails(map[string]any{"currency": tc.Currency})
		}

		if ev.IsSeatBooking() {
			if it.Seat == "" {
				return nil, seathold.ErrSeatRequired
			}
			if it.Quantity != 1 {
				return nil, event.ErrInvalidQuantity
			}
			if in.HoldCode == "" {
				return nil, seathold.ErrHoldCodeMissing
			}
		} else if it.Seat != "" {
			return nil, event.ErrBookingModeMismatch
		}

		out = append(out, resolvedItem{in: it, event: ev, schedule: sched, class: tc})
	}
	return out, nil
}

// availabilityRequests は座席をイベント・日程ごとにまとめ、券種指定の要求枚数を集める
// グループはロック順を固定するためイベントID・日程IDの昇順
func availabilityRequests(items []resolvedItem) ([]SeatGroup, []ClassRequest) {
	type groupKey struct {
		eventID    int64
		scheduleID string
	}
	index := make(map[groupKey]int)
	var groups []SeatGroup
	var classReqs []ClassRequest
	for _, it := range items {
		if !it.isSeat() {
			classReqs = append(classReqs, ClassRequest{
				EventScheduleID: it.schedule.ID,
				TicketClass:     it.class,
				Quantity:        it.in.Quantity,
			})
			continue
		}
		k := groupKey{it.event.ID, it.schedule.ID}
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, SeatGroup{EventID: k.eventID, EventScheduleID: k.scheduleID})
		}
		groups[i].Seats = append(groups[i].Seats, it.in.Seat)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].EventID != groups[j].EventID {
			return groups[i].EventID < groups[j].EventID
		}
		return groups[i].EventScheduleID < groups[j].EventScheduleID
	})
	return groups, classReqs
}

// writeOrder はトランザクション内で注文・明細・チケットを作成する
func (s *OrderService) writeOrder(
	ctx context.Context,
	tx transaction.Tx,
	in CreateOrderInput,
	items []resolvedItem,
	groups []SeatGroup,
	classReqs []ClassRequest,
	promo *promotion.Promotion,
	summary promotion.Summary,
	now time.Time,
) (*CheckoutResult, error) {
	// 座席と券種をロック
	for _, g := range groups {
		if err := s.repos.Locker.LockSeats(ctx, tx, g.EventID, g.EventScheduleID, g.Seats); err != nil {
			return nil, err
		}
	}
	if len(classReqs) > 0 {
		ids := make([]int64, 0, len(classReqs))
		for _, r := range classReqs {
			ids = append(ids, r.TicketClass.ID)
		}
		if err := s.repos.Events.LockTicketClasses(ctx, tx, ids); err != nil {
			return nil, err
		}
	}

	// ロック取得後に再確認
	if err := s.checker.AssertSeatsAvailable(ctx, tx, groups, in.HoldCode); err != nil {
		return nil, err
	}
	if err := s.checker.AssertTicketClassCapacity(ctx, tx, classReqs); err != nil {
		return nil, err
	}

	// 決済期限切れの注文が持つ座席チケットを取り消す
	for _, g := range groups {
		stale, err := s.repos.Tickets.ReleaseExpiredSeats(ctx, tx, g.EventID, g.EventScheduleID, g.Seats, now)
		if err != nil {
			return nil, err
		}
		if len(stale) > 0 {
			if _, err := s.repos.Orders.CancelExpired(ctx, tx, stale, now); err != nil {
				return nil, err
			}
		}
	}

	user, err := findOrCreateUser(ctx, tx, s.repos.Users, in.Customer, now)
	if err != nil {
		return nil, err
	}

	if promo != nil {
		if err := s.repos.Promotions.Redeem(ctx, tx, promo.ID); err != nil {
			return nil, err
		}
	}

	code, err := token.Code("ORD-", 10)
	if err != nil {
		return nil, err
	}
	snapshot := order.CustomerSnapshot{
		FirstName: in.Customer.FirstName,
		LastName:  in.Customer.LastName,
		Email:     in.Customer.Email,
		Phone:     in.Customer.Phone,
	}
	totals := order.Totals{
		BeforeDiscount: summary.TotalBeforeDiscount,
		Discount:       summary.TotalDiscount,
		Total:          summary.Total,
	}
	o, err := order.NewOrder(code, user.ID, snapshot, in.Currency, totals, now, s.paymentWindow)
	if err != nil {
		return nil, err
	}
	if promo != nil {
		id := promo.ID
		o.PromotionID = &id
		o.PromotionCode = promo.Code
	}
	if err := s.repos.Orders.Create(ctx, tx, o); err != nil {
		return nil, err
	}

	orderItems := make([]*order.Item, len(items))
	for i, it := range items {
		orderItems[i] = &order.Item{
			OrderID:         o.ID,
			EventID:         it.event.ID,
			EventScheduleID: it.schedule.ID,
			TicketPriceID:   it.class.ID,
			TicketPriceName: it.class.Name,
			Seat:            it.in.Seat,
			Price:           it.class.Price,
			Quantity:        it.in.Quantity,
			Status:          order.StatusProcessing,
		}
	}
	if err := s.repos.Orders.CreateItems(ctx, tx, orderItems); err != nil {
		return nil, err
	}

	tickets, err := buildTickets(o, orderItems, snapshot.FullName(), now)
	if err != nil {
		return nil, err
	}
	if err := s.repos.Tickets.CreateBulk(ctx, tx, tickets); err != nil {
		return nil, err
	}

	return &CheckoutResult{Order: o, Items: orderItems, Tickets: tickets}, nil
}

// findOrCreateUser はメールアドレスで購入者を探し、なければ作成する。電話番号は追記する
func findOrCreateUser(ctx context.Context, tx transaction.Tx, repo customer.Repository, in customer.Input, now time.Time) (*customer.User, error) {
	u, err := repo.GetByEmailForUpdate(ctx, tx, in.Email)
	if errors.Is(err, customer.ErrUserNotFound) {
		u = customer.NewUser(in, now)
		if err := repo.Create(ctx, tx, u); err != nil {
			return nil, err
		}
		return u, nil
	}
	if err != nil {
		return nil, err
	}
	if u.MergePhone(in.Phone) {
		u.UpdatedAt = now
		if err := repo.UpdatePhoneNumbers(ctx, tx, u); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// buildTickets は明細ごとにチケットを作る。座席明細は1枚、券種明細は枚数分
func buildTickets(o *order.Order, items []*order.Item, attendee string, now time.Time) ([]*ticket.Ticket, error) {
	var tickets []*ticket.Ticket
	for _, it := range items {
		if it.ID == 0 {
			return nil, order.ErrOrderItemMismatch
		}
		for n := 0; n < it.Quantity; n++ {
			code, err := token.Code("TKT-", 12)
			if err != nil {
				return nil, err
			}
			tickets = append(tickets, &ticket.Ticket{
				TicketCode:   code,
				AttendeeName: attendee,
				Seat:         it.Seat,
				Status:       ticket.StatusPendingPayment,
				PriceInfo: ticket.PriceInfo{
					ID:       it.TicketPriceID,
					Name:     it.TicketPriceName,
					Price:    it.Price,
					Currency: o.Currency,
				},
				EventID:         it.EventID,
				EventScheduleID: it.EventScheduleID,
				OrderItemID:     it.ID,
				OrderID:         o.ID,
				UserID:          o.UserID,
				CreatedAt:       now,
				UpdatedAt:       now,
			})
		}
	}
	return tickets, nil
}

// afterCreate はコミット後の副作用を実行する。失敗してもレスポンスは変えない
func (s *OrderService) afterCreate(ctx context.Context, holdCode string, r *CheckoutResult) {
	ctx = context.WithoutCancel(ctx)
	s.metrics.IncOrder("created")
	s.metrics.AddTickets(string(ticket.StatusPendingPayment), len(r.Tickets))

	logger.Info("注文を作成しました",
		zap.String("order_code", r.Order.OrderCode),
		zap.Int64("order_id", r.Order.ID),
		zap.Int("tickets", len(r.Tickets)),
		zap.Int64("total", r.Order.Total),
	)

	if holdCode != "" {
		if _, err := s.repos.Holds.Close(ctx, holdCode, s.clock.Now()); err != nil {
			logger.Warn("座席保留の解放に失敗", zap.String("order_code", r.Order.OrderCode), zap.Error(err))
		}
	}
	if s.notifier != nil {
		if err := s.notifier.OrderCreated(ctx, r.Order); err != nil {
			logger.Warn("注文作成の通知に失敗", zap.String("order_code", r.Order.OrderCode), zap.Error(err))
		}
	}
	s.recordOrder(ctx, "order.created", r.Order)
}

// CompleteOrder は決済完了で注文を確定し、チケットを発券済みにする
func (s *OrderService) CompleteOrder(ctx context.Context, orderCode string) (*order.Order, error) {
	return s.transition(ctx, orderCode, "OrderService.CompleteOrder", (*order.Order).Complete, ticket.StatusBooked)
}

// FailOrder は決済失敗で注文を失敗にし、チケットを取り消す
func (s *OrderService) FailOrder(ctx context.Context, orderCode string) (*order.Order, error) {
	return s.transition(ctx, orderCode, "OrderService.FailOrder", (*order.Order).Fail, ticket.StatusCancelled)
}

// CancelOrder は処理中の注文をキャンセルし、チケットを取り消す
func (s *OrderService) CancelOrder(ctx context.Context, orderCode string) (*order.Order, error) {
	return s.transition(ctx, orderCode, "OrderService.CancelOrder", (*order.Order).Cancel, ticket.StatusCancelled)
}

func (s *OrderService) transition(
	ctx context.Context,
	orderCode, spanName string,
	apply func(*order.Order, time.Time) error,
	ticketStatus ticket.Status,
) (o *order.Order, err error) {
	ctx, span := tracing.Start(ctx, spanName, trace.WithAttributes(attribute.String("order.code", orderCode)))
	defer func() { tracing.End(span, err) }()

	now := s.clock.Now()
	var changed int
	err = transaction.WithTransaction(ctx, s.txManager, func(tx transaction.Tx) error {
		var err error
		o, err = s.repos.Orders.GetByCodeForUpdate(ctx, tx, orderCode)
		if err != nil {
			return err
		}
		if err := apply(o, now); err != nil {
			return err
		}
		if err := s.repos.Orders.UpdateStatus(ctx, tx, o); err != nil {
			return err
		}
		changed, err = s.repos.Tickets.UpdateStatusByOrder(ctx, tx, o.ID, ticketStatus)
		return err
	})
	if err != nil {
		return nil, toTxError(err)
	}

	ctx = context.WithoutCancel(ctx)
	s.metrics.IncOrder(string(o.Status))
	s.metrics.AddTickets(string(ticketStatus), changed)
	logger.Info("注文の状態を変更しました",
		zap.String("order_code", o.OrderCode),
		zap.String("status", string(o.Status)),
		zap.Int("tickets", changed),
	)
	if s.notifier != nil {
		if err := s.notifier.OrderStatusChanged(ctx, o); err != nil {
			logger.Warn("注文状態の通知に失敗", zap.String("order_code", o.OrderCode), zap.Error(err))
		}
	}
	s.recordOrder(ctx, "order."+string(o.Status), o)
	return o, nil
}

// GetOrder は注文と明細・チケットを返す
func (s *OrderService) GetOrder(ctx context.Context, orderCode string) (*OrderDetail, error) {
	o, err := s.repos.Orders.GetByCode(ctx, orderCode)
	if err != nil {
		return nil, toInfraError(err)
	}
	items, err := s.repos.Orders.ListItems(ctx, o.ID)
	if err != nil {
		return nil, toInfraError(err)
	}
	tickets, err := s.repos.Tickets.ListByOrder(ctx, o.ID)
	if err != nil {
		return nil, toInfraError(err)
	}
	return &OrderDetail{Order: o, Items: items, Tickets: tickets}, nil
}

// CancelExpiredOrders は決済期限切れの処理中注文を最大 batchSize 件キャンセルする
func (s *OrderService) CancelExpiredOrders(ctx context.Context, batchSize int) (int, error) {
	now := s.clock.Now()
	ids, err := s.repos.Orders.ListExpiredProcessing(ctx, now, batchSize)
	if err != nil {
		return 0, toInfraError(err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	var n int
	err = transaction.WithTransaction(ctx, s.txManager, func(tx transaction.Tx) error {
		var err error
		n, err = s.repos.Orders.CancelExpired(ctx, tx, ids, now)
		return err
	})
	if err != nil {
		return 0, toTxError(err)
	}
	s.metrics.AddSwept("orders", n)
	return n, nil
}

func (s *OrderService) recordOrder(ctx context.Context, action string, o *order.Order) {
	if s.audit == nil {
		return
	}
	if err := s.audit.RecordOrder(ctx, action, o); err != nil {
		logger.Warn("監査ログの記録に失敗", zap.String("action", action), zap.Error(err))
	}
}
