package e2e

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/api"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/api/handler"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/api/middleware"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/api/router"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/application"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/config"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/infrastructure/postgres"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/pkg/clock"
)

// TestServer はE2Eテスト用のサーバー
type TestServer struct {
	Echo *echo.Echo
}

var (
	testServer *TestServer
	testDB     *sqlx.DB
)

// TestMain はE2Eテストのエントリポイント
// パッケージ全体で1回だけサーバーを起動することで高速化
func TestMain(m *testing.M) {
	cfg := config.Load()

	// DB接続
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		os.Exit(0) // DB未起動時はスキップ
	}
	if _, err := postgres.RunMigrations(db.DB, "../migrations"); err != nil {
		db.Close()
		os.Exit(0)
	}
	testDB = db

	// サービス初期化（Redis なし）
	clk := clock.Real{}
	txManager := postgres.NewTxManager(db)
	eventRepo := postgres.NewEventRepository(db)
	holdRepo := postgres.NewSeatHoldRepository(db)
	ticketRepo := postgres.NewTicketRepository(db)
	userRepo := postgres.NewUserRepository(db)
	locker := postgres.NewSeatLocker()

	checker := application.NewAvailabilityChecker(holdRepo, ticketRepo, clk)
	holdService := application.NewSeatHoldService(txManager, holdRepo, locker, eventRepo, checker, clk, 30*time.Minute)
	orderService := application.NewOrderService(txManager, application.OrderRepos{
		Events:     eventRepo,
		Holds:      holdRepo,
		Locker:     locker,
		Orders:     postgres.NewOrderRepository(db),
		Tickets:    ticketRepo,
		Promotions: postgres.NewPromotionRepository(db),
		Users:      userRepo,
	}, checker, clk, 15*time.Minute, 20)
	ticketService := application.NewTicketService(txManager, ticketRepo, eventRepo, userRepo, clk)

	// Echo セットアップ
	e := echo.New()
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	middleware.SetupMiddleware(e)

	router.RegisterRoutes(e, router.Handlers{
		Health:      handler.NewHealthHandler(handler.HealthCheck{Name: "database", Ping: db.PingContext}),
		SeatHolding: handler.NewSeatHoldingHandler(holdService, false),
		Order:       handler.NewOrderHandler(orderService, false),
		Payment:     handler.NewPaymentHandler(orderService),
		Ticket:      handler.NewTicketHandler(ticketService),
	}, nil)

	testServer = &TestServer{Echo: e}

	// テスト実行
	code := m.Run()

	// 最終クリーンアップ
	cleanupTables()
	db.Close()

	os.Exit(code)
}

// cleanupTables はテーブルをクリーンアップ
func cleanupTables() {
	testDB.Exec(`TRUNCATE TABLE tickets, order_items, orders, seat_holdings, promotions, users,
		ticket_prices, event_schedules, events RESTART IDENTITY CASCADE`)
}

// getTestServer は共有サーバーを取得（テスト前にテーブルをクリーンアップ）
func getTestServer(t *testing.T) *TestServer {
	t.Helper()
	if testServer == nil {
		t.Skip("テスト環境が利用できません")
	}
	cleanupTables()
	return testServer
}

// Request はHTTPリクエストを実行
func (s *TestServer) Request(method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var reqBody []byte
	if body != nil {
		reqBody, _ = json.Marshal(body)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(reqBody))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}
