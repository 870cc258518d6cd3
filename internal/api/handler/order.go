package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/api"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/application"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/customer"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/order"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/seathold"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/ticket"
)

type OrderHandler struct {
	service      OrderServiceInterface
	cookieSecure bool
}

func NewOrderHandler(s OrderServiceInterface, cookieSecure bool) *OrderHandler {
	return &OrderHandler{service: s, cookieSecure: cookieSecure}
}

type CustomerRequest struct {
	FirstName   string `json:"firstName" example:"Taro"`
	LastName    string `json:"lastName" example:"Yamada"`
	PhoneNumber string `json:"phoneNumber" example:"09012345678"`
	Email       string `json:"email" example:"taro@example.com"`
}

type OrderItemRequest struct {
	EventID         int64  `json:"eventId" example:"1"`
	TicketPriceID   int64  `json:"ticketPriceId" example:"10"`
	EventScheduleID string `json:"eventScheduleId" example:"2026-06-08-evening"`
	Seat            string `json:"seat,omitempty" example:"A1"`
	Price           int64  `json:"price" example:"5000"`
	Quantity        int    `json:"quantity" example:"1"`
}

type OrderBody struct {
	Currency      string             `json:"currency" example:"JPY"`
	OrderItems    []OrderItemRequest `json:"orderItems"`
	PromotionCode string             `json:"promotionCode,omitempty"`
}

// CreateOrderRequest は注文作成のリクエスト
type CreateOrderRequest struct {
	Customer CustomerRequest `json:"customer"`
	Order    OrderBody       `json:"order"`
}

type TicketResponse struct {
	TicketCode      string     `json:"ticketCode"`
	AttendeeName    string     `json:"attendeeName"`
	Seat            string     `json:"seat,omitempty"`
	Status          string     `json:"status"`
	TicketPriceID   int64      `json:"ticketPriceId"`
	TicketPriceName string     `json:"ticketPriceName"`
	Price           int64      `json:"price"`
	Currency        string     `json:"currency"`
	EventID         int64      `json:"eventId"`
	EventScheduleID string     `json:"eventScheduleId"`
	CheckedInAt     *time.Time `json:"checkedInAt,omitempty"`
}

type OrderItemResponse struct {
	ID              int64  `json:"id"`
	EventID         int64  `json:"eventId"`
	EventScheduleID string `json:"eventScheduleId"`
	TicketPriceID   int64  `json:"ticketPriceId"`
	TicketPriceName string `json:"ticketPriceName"`
	Seat            string `json:"seat,omitempty"`
	Price           int64  `json:"price"`
	Quantity        int    `json:"quantity"`
	Status          string `json:"status"`
}

type OrderResponse struct {
	OrderID             int64               `json:"orderId"`
	OrderCode           string              `json:"orderCode"`
	Status              string              `json:"status"`
	TotalBeforeDiscount int64               `json:"totalBeforeDiscount"`
	TotalDiscount       int64               `json:"totalDiscount"`
	Total               int64               `json:"total"`
	Currency            string              `json:"currency"`
	PromotionCode       string              `json:"promotionCode,omitempty"`
	ExpireAt            time.Time           `json:"expireAt"`
	CompletedAt         *time.Time          `json:"completedAt,omitempty"`
	CreatedAt           time.Time           `json:"createdAt"`
	Items               []OrderItemResponse `json:"items,omitempty"`
	Tickets             []TicketResponse    `json:"tickets,omitempty"`
}

func toTicketResponse(t *ticket.Ticket) TicketResponse {
	return TicketResponse{
		TicketCode: t.TicketCode, AttendeeName: t.AttendeeName, Seat: t.Seat,
		Status: string(t.Status), TicketPriceID: t.PriceInfo.ID, TicketPriceName: t.PriceInfo.Name,
		Price: t.PriceInfo.Price, Currency: t.PriceInfo.Currency,
		EventID: t.EventID, EventScheduleID: t.EventScheduleID, CheckedInAt: t.CheckedInAt,
	}
}

func toOrderResponse(o *order.Order, items []*order.Item, tickets []*ticket.Ticket) OrderResponse {
	resp := OrderResponse{
		OrderID: o.ID, OrderCode: o.OrderCode, Status: string(o.Status),
		TotalBeforeDiscount: o.TotalBeforeDiscount, TotalDiscount: o.TotalDiscount, Total: o.Total,
		Currency: o.Currency, PromotionCode: o.PromotionCode,
		ExpireAt: o.ExpireAt, CompletedAt: o.CompletedAt, CreatedAt: o.CreatedAt,
	}
	for _, it := range items {
		resp.Items = append(resp.Items, OrderItemResponse{
			ID: it.ID, EventID: it.EventID, EventScheduleID: it.EventScheduleID,
			TicketPriceID: it.TicketPriceID, TicketPriceName: it.TicketPriceName,
			Seat: it.Seat, Price: it.Price, Quantity: it.Quantity, Status: string(it.Status),
		})
	}
	for _, t := range tickets {
		resp.Tickets = append(resp.Tickets, toTicketResponse(t))
	}
	return resp
}

// Create godoc
// @Summary 注文を作成
// @Description 座席保留クッキー（または X-Seat-Holding-Code）を使って注文とチケットを作成します
// @Tags orders
// @Accept json
// @Produce json
// @Param request body CreateOrderRequest true "注文内容"
// @Success 200 {object} OrderResponse
// @Failure 400 {object} api.ErrorResponse
// @Router /orders [post]
func (h *OrderHandler) Create(c echo.Context) error {
	var req CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return api.ErrInvalidRequest.Wrap(err)
	}

	items := make([]application.OrderItemInput, len(req.Order.OrderItems))
	for i, it := range req.Order.OrderItems {
		items[i] = application.OrderItemInput{
			EventID:         it.EventID,
			EventScheduleID: it.EventScheduleID,
			TicketPriceID:   it.TicketPriceID,
			Seat:            it.Seat,
			Price:           it.Price,
			Quantity:        it.Quantity,
		}
	}

	result, err := h.service.CreateOrderWithTickets(c.Request().Context(), application.CreateOrderInput{
		Customer: customer.Input{
			FirstName: req.Customer.FirstName,
			LastName:  req.Customer.LastName,
			Email:     req.Customer.Email,
			Phone:     req.Customer.PhoneNumber,
		},
		Currency:      req.Order.Currency,
		Items:         items,
		PromotionCode: req.Order.PromotionCode,
		HoldCode:      holdCodeFrom(c),
		ClientMeta: seathold.ClientMeta{
			IP:        c.RealIP(),
			UserAgent: c.Request().UserAgent(),
		},
	})
	if err != nil {
		return err
	}

	c.SetCookie(clearHoldCookie(h.cookieSecure))
	return c.JSON(http.StatusOK, toOrderResponse(result.Order, result.Items, result.Tickets))
}

// GetByCode godoc
// @Summary 注文を取得
// @Tags orders
// @Produce json
// @Param code path string true "注文コード"
// @Success 200 {object} OrderResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /orders/{code} [get]
func (h *OrderHandler) GetByCode(c echo.Context) error {
	detail, err := h.service.GetOrder(c.Request().Context(), c.Param("code"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toOrderResponse(detail.Order, detail.Items, detail.Tickets))
}

// Cancel godoc
// @Summary 注文をキャンセル
// @Description 決済前の注文をキャンセルし、座席と在庫を解放します
// @Tags orders
// @Produce json
// @Param code path string true "注文コード"
// @Success 200 {object} OrderResponse
// @Failure 400 {object} api.ErrorResponse "ORD007: 状態を変更できません"
// @Router /orders/{code}/cancel [post]
func (h *OrderHandler) Cancel(c echo.Context) error {
	o, err := h.service.CancelOrder(c.Request().Context(), c.Param("code"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toOrderResponse(o, nil, nil))
}
