package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// holdHeader は座席保留コードを運ぶヘッダー（クッキーを使えないクライアント向け）
const holdHeader = "X-Seat-Holding-Code"

// holdCookie はハンドラが発行する保留コードのクッキー名
const holdCookie = "seatHoldingCode"

// SetupMiddleware は共通ミドルウェアを設定する
func SetupMiddleware(e *echo.Echo, allowOrigins ...string) {
	// リクエストID
	e.Use(RequestIDMiddleware())

	// 構造化リクエストログ（zap）
	e.Use(RequestLogger())

	// パニックリカバリー
	e.Use(middleware.Recover())

	// 注文リクエストは小さいので上限を設ける
	e.Use(middleware.BodyLimit("1M"))

	e.Use(middleware.CORSWithConfig(corsConfig(allowOrigins)))
}

// corsConfig は保留クッキーを使うため、オリジンを限定した場合だけ credentials を許可する
func corsConfig(allowOrigins []string) middleware.CORSConfig {
	if len(allowOrigins) == 0 {
		allowOrigins = []string{"*"}
	}
	cfg := middleware.CORSConfig{
		AllowOrigins:  allowOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodDelete},
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, holdHeader},
		ExposeHeaders: []string{echo.HeaderXRequestID},
	}
	for _, o := range allowOrigins {
		if o == "*" {
			return cfg
		}
	}
	cfg.AllowCredentials = true
	return cfg
}
