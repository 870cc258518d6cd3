package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/pkg/logger"
)

// migrationsTable はスキーマバージョンの管理テーブル
const migrationsTable = "checkout_schema_migrations"

// ErrDirtySchema は前回のマイグレーションが途中で失敗したまま残っている
var ErrDirtySchema = errors.New("スキーマが dirty 状態です。手動で修正してください")

// RunMigrations は migrationsPath 配下のマイグレーションを最新まで適用し、適用後のバージョンを返す。
// m.Close は呼ばない（渡された *sql.DB まで閉じてしまうため）
func RunMigrations(db *sql.DB, migrationsPath string) (uint, error) {
	m, err := newMigrator(db, migrationsPath)
	if err != nil {
		return 0, err
	}

	before, dirty, err := schemaVersion(m)
	if err != nil {
		return 0, err
	}
	if dirty {
		return before, fmt.Errorf("version %d: %w", before, ErrDirtySchema)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return before, fmt.Errorf("マイグレーション実行エラー: %w", err)
	}

	after, _, err := schemaVersion(m)
	if err != nil {
		return before, err
	}
	if after != before {
		logger.Info("マイグレーション適用", zap.Uint("from", before), zap.Uint("to", after))
	}
	return after, nil
}

func newMigrator(db *sql.DB, migrationsPath string) (*migrate.Migrate, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return nil, fmt.Errorf("マイグレーションドライバー作成エラー: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("マイグレーションソース読み込みエラー (%s): %w", migrationsPath, err)
	}
	return m, nil
}

// 未適用のデータベースはバージョン 0 として扱う
func schemaVersion(m *migrate.Migrate) (uint, bool, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("スキーマバージョン取得エラー: %w", err)
	}
	return v, dirty, nil
}
