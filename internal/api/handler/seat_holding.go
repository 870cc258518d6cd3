package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/api"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/application"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/seathold"
)

// HoldCookieName は座席保留コードを保持するクッキー名
const HoldCookieName = "seatHoldingCode"

// HoldHeaderName はクッキーを使えないクライアント向けのヘッダー名
const HoldHeaderName = "X-Seat-Holding-Code"

type SeatHoldingHandler struct {
	service      SeatHoldServiceInterface
	cookieSecure bool
}

func NewSeatHoldingHandler(s SeatHoldServiceInterface, cookieSecure bool) *SeatHoldingHandler {
	return &SeatHoldingHandler{service: s, cookieSecure: cookieSecure}
}

// SeatHoldingRequest は座席保留のリクエスト
// seatName はカンマ区切りで複数指定できる
type SeatHoldingRequest struct {
	SeatName        string         `json:"seatName" example:"A1,A2"`
	EventID         int64          `json:"eventId" example:"1"`
	EventScheduleID string         `json:"eventScheduleId" example:"2026-06-08-evening"`
	SeatHoldingCode string         `json:"seatHoldingCode,omitempty"`
	UserInfo        map[string]any `json:"userInfo,omitempty"`
}

type SeatHoldingResponse struct {
	SeatHoldingCode string    `json:"seatHoldingCode"`
	SeatNames       []string  `json:"seatNames"`
	ExpireTime      time.Time `json:"expireTime"`
}

// Hold godoc
// @Summary 座席を保留
// @Description 座席を一定時間確保します。同じ保留コードで呼ぶと座席を置き換えて延長します
// @Tags seat-holdings
// @Accept json
// @Produce json
// @Param request body SeatHoldingRequest true "保留する座席"
// @Success 200 {object} SeatHoldingResponse
// @Failure 400 {object} api.ErrorResponse "SEAT002: 他のお客様が確保中 / SEAT003: 予約済み"
// @Router /seat-holdings [post]
func (h *SeatHoldingHandler) Hold(c echo.Context) error {
	var req SeatHoldingRequest
	if err := c.Bind(&req); err != nil {
		return api.ErrInvalidRequest.Wrap(err)
	}

	code := req.SeatHoldingCode
	if code == "" {
		code = holdCodeFrom(c)
	}

	hold, err := h.service.AcquireOrRenewHold(c.Request().Context(), application.AcquireHoldInput{
		SeatNames:        seathold.ParseSeatNames(req.SeatName),
		EventID:          req.EventID,
		EventScheduleID:  req.EventScheduleID,
		ExistingHoldCode: code,
		ClientMeta: seathold.ClientMeta{
			IP:        c.RealIP(),
			UserAgent: c.Request().UserAgent(),
			Extra:     req.UserInfo,
		},
	})
	if err != nil {
		return err
	}

	c.SetCookie(h.holdCookie(hold.Code, hold.ExpireAt))
	return c.JSON(http.StatusOK, SeatHoldingResponse{
		SeatHoldingCode: hold.Code,
		SeatNames:       hold.SeatNames,
		ExpireTime:      hold.ExpireAt,
	})
}

// Release godoc
// @Summary 座席保留を解放
// @Tags seat-holdings
// @Param code path string true "保留コード"
// @Success 204
// @Router /seat-holdings/{code} [delete]
func (h *SeatHoldingHandler) Release(c echo.Context) error {
	if err := h.service.ReleaseHold(c.Request().Context(), c.Param("code")); err != nil {
		return err
	}
	c.SetCookie(h.clearCookie())
	return c.NoContent(http.StatusNoContent)
}

func (h *SeatHoldingHandler) holdCookie(code string, expireAt time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     HoldCookieName,
		Value:    code,
		Path:     "/",
		Expires:  expireAt,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *SeatHoldingHandler) clearCookie() *http.Cookie {
	return clearHoldCookie(h.cookieSecure)
}

func clearHoldCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     HoldCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// holdCodeFrom はクッキー、なければヘッダーから保留コードを取り出す
func holdCodeFrom(c echo.Context) string {
	if ck, err := c.Cookie(HoldCookieName); err == nil && ck.Value != "" {
		return ck.Value
	}
	return c.Request().Header.Get(HoldHeaderName)
}
