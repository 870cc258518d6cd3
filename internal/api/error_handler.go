package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/pkg/apperror"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/pkg/logger"
)

// ErrInvalidRequest はリクエストボディが読めない・必須項目がない場合のエラー
var ErrInvalidRequest = apperror.New(apperror.KindValidation, "REQ001", "リクエストの形式が正しくありません")

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// StatusFor はエラー分類から HTTP ステータスを決める
// 入力不備・競合・トランザクション失敗は 400、照会の不在は 404、基盤エラーは 500
func StatusFor(ae *apperror.Error) int {
	if ae.Code == apperror.ErrRateLimited.Code {
		return http.StatusTooManyRequests
	}
	switch ae.Kind {
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindInfrastructure:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// toResponse はエラーをステータスとレスポンスボディに変換する
func toResponse(err error) (int, ErrorResponse) {
	if ae, ok := apperror.As(err); ok {
		resp := ErrorResponse{Code: ae.Code, Message: ae.Message}
		if ae.IsClientSafe() {
			resp.Details = ae.Details
		}
		return StatusFor(ae), resp
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		message := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			message = m
		}
		return he.Code, ErrorResponse{Code: fmt.Sprintf("HTTP%d", he.Code), Message: message}
	}

	return http.StatusInternalServerError, ErrorResponse{
		Code:    apperror.ErrInfrastructure.Code,
		Message: apperror.ErrInfrastructure.Message,
	}
}

// CustomHTTPErrorHandler はカスタムエラーハンドラー
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, resp := toResponse(err)

	// 基盤エラーとトランザクション失敗は原因ごと記録する
	ae, ok := apperror.As(err)
	if status >= 500 || (ok && ae.Kind == apperror.KindTransaction) {
		logger.ForRequest(c.Response().Header().Get(echo.HeaderXRequestID)).Error("サーバーエラー",
			zap.Int("status", status),
			zap.String("code", resp.Code),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, resp)
	}
	if err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}
