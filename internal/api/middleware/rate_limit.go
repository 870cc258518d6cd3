package middleware

import (
	"context"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/pkg/apperror"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/pkg/logger"
)

// Limiter はキーごとにリクエストを許可するか判定する
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimit はクライアントIP単位でリクエスト数を制限する
// limiter が使えない場合は制限せずに通す
func RateLimit(l Limiter, scope string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if l == nil {
				return next(c)
			}
			ok, err := l.Allow(c.Request().Context(), scope+":"+c.RealIP())
			if err != nil {
				logger.Warn("レート制限を確認できません", zap.String("scope", scope), zap.Error(err))
				return next(c)
			}
			if !ok {
				return apperror.ErrRateLimited
			}
			return next(c)
		}
	}
}
