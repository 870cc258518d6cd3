package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/api"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/order"
)

// PaymentHandler は決済サービスからの結果通知を受ける
type PaymentHandler struct {
	service OrderServiceInterface
}

func NewPaymentHandler(s OrderServiceInterface) *PaymentHandler {
	return &PaymentHandler{service: s}
}

type PaymentCallbackRequest struct {
	OrderCode string `json:"orderCode" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=success failed" example:"success"`
}

// Callback godoc
// @Summary 決済結果の通知
// @Description success で注文を確定しチケットを発券、failed で注文を失敗にして座席を解放します
// @Tags payments
// @Accept json
// @Produce json
// @Param request body PaymentCallbackRequest true "決済結果"
// @Success 200 {object} OrderResponse
// @Failure 400 {object} api.ErrorResponse "ORD010: 決済期限切れ"
// @Router /payments/callback [post]
func (h *PaymentHandler) Callback(c echo.Context) error {
	var req PaymentCallbackRequest
	if err := c.Bind(&req); err != nil {
		return api.ErrInvalidRequest.Wrap(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	var (
		o   *order.Order
		err error
	)
	if req.Status == "success" {
		o, err = h.service.CompleteOrder(c.Request().Context(), req.OrderCode)
	} else {
		o, err = h.service.FailOrder(c.Request().Context(), req.OrderCode)
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toOrderResponse(o, nil, nil))
}
