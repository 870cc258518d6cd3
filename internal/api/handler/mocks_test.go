package handler

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/application"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/order"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/seathold"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/ticket"
)

// MockSeatHoldService はSeatHoldServiceInterfaceのモック
type MockSeatHoldService struct {
	mock.Mock
}

func (m *MockSeatHoldService) AcquireOrRenewHold(ctx context.Context, input application.AcquireHoldInput) (*seathold.SeatHold, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*seathold.SeatHold), args.Error(1)
}

func (m *MockSeatHoldService) ReleaseHold(ctx context.Context, code string) error {
	return m.Called(ctx, code).Error(0)
}

// MockOrderService はOrderServiceInterfaceのモック
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) CreateOrderWithTickets(ctx context.Context, input application.CreateOrderInput) (*application.CheckoutResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.CheckoutResult), args.Error(1)
}

func (m *MockOrderService) GetOrder(ctx context.Context, orderCode string) (*application.OrderDetail, error) {
	args := m.Called(ctx, orderCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.OrderDetail), args.Error(1)
}

func (m *MockOrderService) transition(ctx context.Context, method, orderCode string) (*order.Order, error) {
	args := m.MethodCalled(method, ctx, orderCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) CancelOrder(ctx context.Context, orderCode string) (*order.Order, error) {
	return m.transition(ctx, "CancelOrder", orderCode)
}

func (m *MockOrderService) CompleteOrder(ctx context.Context, orderCode string) (*order.Order, error) {
	return m.transition(ctx, "CompleteOrder", orderCode)
}

func (m *MockOrderService) FailOrder(ctx context.Context, orderCode string) (*order.Order, error) {
	return m.transition(ctx, "FailOrder", orderCode)
}

// MockTicketService はTicketServiceInterfaceのモック
type MockTicketService struct {
	mock.Mock
}

func (m *MockTicketService) GiftTicket(ctx context.Context, ticketCode string, input application.GiftInput) (*ticket.Ticket, error) {
	args := m.Called(ctx, ticketCode, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ticket.Ticket), args.Error(1)
}
