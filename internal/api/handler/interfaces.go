package handler

import (
	"context"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/application"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/order"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/seathold"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/ticket"
)

// SeatHoldServiceInterface は座席保留サービスのインターフェース
type SeatHoldServiceInterface interface {
	AcquireOrRenewHold(ctx context.Context, input application.AcquireHoldInput) (*seathold.SeatHold, error)
	ReleaseHold(ctx context.Context, code string) error
}

// OrderServiceInterface は注文サービスのインターフェース
type OrderServiceInterface interface {
	CreateOrderWithTickets(ctx context.Context, input application.CreateOrderInput) (*application.CheckoutResult, error)
	GetOrder(ctx context.Context, orderCode string) (*application.OrderDetail, error)
	CancelOrder(ctx context.Context, orderCode string) (*order.Order, error)
	CompleteOrder(ctx context.Context, orderCode string) (*order.Order, error)
	FailOrder(ctx context.Context, orderCode string) (*order.Order, error)
}

// TicketServiceInterface はチケットサービスのインターフェース
type TicketServiceInterface interface {
	GiftTicket(ctx context.Context, ticketCode string, input application.GiftInput) (*ticket.Ticket, error)
}
