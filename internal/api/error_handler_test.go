package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/pkg/apperror"
)

func TestCustomHTTPErrorHandler(t *testing.T) {
	conflict := apperror.New(apperror.KindConflict, "SEAT002", "選択した座席は他のお客様が確保中です")
	txFailed := apperror.New(apperror.KindTransaction, "ORD009", "注文処理に失敗しました。もう一度お試しください")
	notFound := apperror.New(apperror.KindNotFound, "ORD006", "注文が見つかりません")

	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantDetails bool
	}{
		{"競合は400で詳細付き", fmt.Errorf("wrap: %w", conflict.WithDetails(map[string]any{"seats": []string{"A1"}})), http.StatusBadRequest, "SEAT002", true},
		{"トランザクション失敗は400で詳細なし", txFailed.Wrap(errors.New("deadlock")).WithDetails(map[string]any{"sql": "x"}), http.StatusBadRequest, "ORD009", false},
		{"照会の不在は404", notFound, http.StatusNotFound, "ORD006", false},
		{"基盤エラーは500", apperror.Infrastructure(errors.New("connection refused")), http.StatusInternalServerError, "SYS001", false},
		{"レート制限は429", apperror.ErrRateLimited, http.StatusTooManyRequests, "SYS002", false},
		{"echoのエラー", echo.NewHTTPError(http.StatusMethodNotAllowed, "method not allowed"), http.StatusMethodNotAllowed, "HTTP405", false},
		{"想定外のエラーは500", errors.New("boom"), http.StatusInternalServerError, "SYS001", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			CustomHTTPErrorHandler(tt.err, c)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.NotEmpty(t, resp.Message)
			assert.Equal(t, tt.wantDetails, resp.Details != nil)
			assert.NotContains(t, rec.Body.String(), "connection refused")
			assert.NotContains(t, rec.Body.String(), "deadlock")
		})
	}
}

func TestCustomHTTPErrorHandler_Head(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodHead, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	CustomHTTPErrorHandler(apperror.Infrastructure(errors.New("down")), c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestValidator(t *testing.T) {
	type payload struct {
		OrderCode string `validate:"required"`
		Status    string `validate:"oneof=success failed"`
	}
	v := NewValidator()

	assert.NoError(t, v.Validate(&payload{OrderCode: "ORD-1", Status: "success"}))

	err := v.Validate(&payload{Status: "unknown"})
	require.ErrorIs(t, err, ErrInvalidRequest)
	ae, _ := apperror.As(err)
	assert.Equal(t, []string{"payload.OrderCode", "payload.Status"}, ae.Details["fields"])
}
