package transaction

import (
	"context"
	"fmt"
)

// Tx はトランザクションを表すインターフェース
// ドメイン層がインフラ層（sqlx等）に依存しないようにするための抽象化
type Tx interface {
	// Commit はトランザクションをコミットする
	Commit() error
	// Rollback はトランザクションをロールバックする
	Rollback() error
}

// Manager はトランザクションを管理するインターフェース
type Manager interface {
	// Begin は新しいトランザクションを開始する
	Begin(ctx context.Context) (Tx, error)
}

// BeginError は Begin の失敗を表す。呼び出し側は基盤エラーとして扱う
type BeginError struct {
	Err error
}

func (e *BeginError) Error() string {
	return fmt.Sprintf("トランザクション開始に失敗: %v", e.Err)
}

func (e *BeginError) Unwrap() error { return e.Err }

// CommitError は Commit の失敗を表す
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("コミットに失敗: %v", e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// WithTransaction は fn をひとつのトランザクションで実行する
// fn がエラーを返すかパニックした場合はロールバックする
func WithTransaction(ctx context.Context, m Manager, fn func(tx Tx) error) (err error) {
	tx, err := m.Begin(ctx)
	if err != nil {
		return &BeginError{Err: err}
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return &CommitError{Err: err}
	}
	return nil
}
