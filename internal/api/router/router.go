package router

import (
	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/api/handler"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/api/middleware"
)

// Handlers はルーティング対象のハンドラー一式
type Handlers struct {
	Health      *handler.HealthHandler
	SeatHolding *handler.SeatHoldingHandler
	Order       *handler.OrderHandler
	Payment     *handler.PaymentHandler
	Ticket      *handler.TicketHandler
}

// RegisterRoutes は /api/v1 配下のルートを登録する
// limiter が nil の場合はレート制限を行わない
func RegisterRoutes(e *echo.Echo, h Handlers, limiter middleware.Limiter) *echo.Group {
	v1 := e.Group("/api/v1")

	v1.GET("/health", h.Health.Check)

	// 座席保留
	v1.POST("/seat-holdings", h.SeatHolding.Hold, middleware.RateLimit(limiter, "hold"))
	v1.DELETE("/seat-holdings/:code", h.SeatHolding.Release)

	// 注文
	orders := v1.Group("/orders")
	orders.POST("", h.Order.Create, middleware.RateLimit(limiter, "order"))
	orders.GET("/:code", h.Order.GetByCode)
	orders.POST("/:code/cancel", h.Order.Cancel)

	// 決済結果の通知
	v1.POST("/payments/callback", h.Payment.Callback)

	// チケット譲渡
	v1.POST("/tickets/:code/gift", h.Ticket.Gift)

	return v1
}
