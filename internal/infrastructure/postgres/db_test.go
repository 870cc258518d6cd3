package postgres

import (
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/config"
)

func TestApplyPool(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.DatabaseConfig
		wantOpen int
	}{
		{name: "未設定はデフォルト", cfg: config.DatabaseConfig{}, wantOpen: 25},
		{name: "指定値", cfg: config.DatabaseConfig{MaxOpenConns: 8, MaxIdleConns: 2, ConnMaxLifetime: time.Minute}, wantOpen: 8},
		{name: "idleがopenを超える", cfg: config.DatabaseConfig{MaxOpenConns: 3, MaxIdleConns: 10}, wantOpen: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Open は接続しないのでDBなしで検証できる
			db, err := sqlx.Open("postgres", "host=127.0.0.1 port=1 sslmode=disable")
			require.NoError(t, err)
			defer db.Close()

			applyPool(db, &tt.cfg)

			assert.Equal(t, tt.wantOpen, db.Stats().MaxOpenConnections)
		})
	}
}

func TestNewConnection_Unreachable(t *testing.T) {
	_, err := NewConnection(&config.DatabaseConfig{
		Host: "127.0.0.1", Port: "1", User: "u", Password: "p", DBName: "checkout",
		SSLMode: "disable", ConnectTimeout: 200 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "127.0.0.1:1/checkout")
}
