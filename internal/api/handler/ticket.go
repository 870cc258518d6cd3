package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/api"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/application"
)

type TicketHandler struct {
	service TicketServiceInterface
}

func NewTicketHandler(s TicketServiceInterface) *TicketHandler {
	return &TicketHandler{service: s}
}

type GiftTicketRequest struct {
	RecipientEmail     string `json:"recipientEmail" example:"hanako@example.com"`
	RecipientFirstName string `json:"recipientFirstName" example:"Hanako"`
	RecipientLastName  string `json:"recipientLastName" example:"Suzuki"`
	Message            string `json:"message,omitempty" validate:"max=500"`
}

// Gift godoc
// @Summary チケットを譲渡
// @Tags tickets
// @Accept json
// @Produce json
// @Param code path string true "チケットコード"
// @Param request body GiftTicketRequest true "譲渡先"
// @Success 200 {object} TicketResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /tickets/{code}/gift [post]
func (h *TicketHandler) Gift(c echo.Context) error {
	var req GiftTicketRequest
	if err := c.Bind(&req); err != nil {
		return api.ErrInvalidRequest.Wrap(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	t, err := h.service.GiftTicket(c.Request().Context(), c.Param("code"), application.GiftInput{
		RecipientEmail:     req.RecipientEmail,
		RecipientFirstName: req.RecipientFirstName,
		RecipientLastName:  req.RecipientLastName,
		Message:            req.Message,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toTicketResponse(t))
}
