package middleware

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/pkg/apperror"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/pkg/logger"
)

// RequestLogger はアクセスログを出力する。status はエラーから解決した値
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := responseStatus(c, err)
			log := logger.ForRequest(requestIDOf(c))
			fields := accessFields(c, status, time.Since(start))

			var appErr *apperror.Error
			switch {
			case errors.As(err, &appErr):
				fields = append(fields, zap.String("error_code", appErr.Code), zap.String("error", appErr.Message))
			case err != nil:
				fields = append(fields, zap.Error(err))
			}

			switch {
			case status >= 500:
				log.Error("リクエスト失敗", fields...)
			case status >= 400:
				log.Warn("リクエスト拒否", fields...)
			default:
				log.Info("リクエスト完了", fields...)
			}
			return err
		}
	}
}

func accessFields(c echo.Context, status int, latency time.Duration) []zap.Field {
	req := c.Request()
	route := c.Path()
	if route == "" {
		route = req.URL.Path
	}
	return []zap.Field{
		zap.String("method", req.Method),
		zap.String("route", route),
		zap.String("path", req.URL.Path),
		zap.Int("status", status),
		zap.Int64("bytes_out", c.Response().Size),
		zap.Duration("latency", latency),
		zap.String("remote_ip", c.RealIP()),
		zap.Bool("has_hold", hasHoldingCode(c)),
	}
}

// hasHoldingCode は保留コードがクッキーかヘッダで送られてきたかを返す
func hasHoldingCode(c echo.Context) bool {
	if c.Request().Header.Get(holdHeader) != "" {
		return true
	}
	ck, err := c.Cookie(holdCookie)
	return err == nil && ck.Value != ""
}

// RequestIDMiddleware は X-Request-ID を引き継ぐか、なければ UUID を払い出す
func RequestIDMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(echo.HeaderXRequestID)
			if id == "" || len(id) > maxRequestIDLen {
				id = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			return next(c)
		}
	}
}

const maxRequestIDLen = 128

func requestIDOf(c echo.Context) string {
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}
