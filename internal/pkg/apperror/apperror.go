// Package apperror はクライアントに返すエラーコード体系を定義する
package apperror

import (
	"errors"
	"fmt"
)

// Kind はエラーの分類
type Kind string

const (
	// KindValidation は入力不備。そのままクライアントに返してよい
	KindValidation Kind = "validation"
	// KindConflict は座席・在庫・プロモーションの競合
	KindConflict Kind = "conflict"
	// KindNotFound は参照対象が存在しない（GET 系）
	KindNotFound Kind = "not_found"
	// KindTransaction はトランザクション中の失敗。ロールバック済みで再試行を促す
	KindTransaction Kind = "transaction"
	// KindInfrastructure はDB接続不可などの基盤エラー
	KindInfrastructure Kind = "infrastructure"
)

// Error はコード付きのアプリケーションエラー
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any
	cause   error
}

// New は新しいエラー定義を作成する
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is はコードが一致すれば同じエラーとみなす
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetails は詳細情報を付与したコピーを返す
func (e *Error) WithDetails(details map[string]any) *Error {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	for k, v := range details {
		cp.Details[k] = v
	}
	return &cp
}

// Wrap は原因エラーを保持したコピーを返す
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.cause = cause
	return &cp
}

// IsClientSafe はメッセージをそのまま返してよいかを返す
func (e *Error) IsClientSafe() bool {
	return e.Kind == KindValidation || e.Kind == KindConflict || e.Kind == KindNotFound
}

// As は err の連鎖から *Error を取り出す
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

var (
	ErrInfrastructure = New(KindInfrastructure, "SYS001", "システムエラーが発生しました。しばらくしてから再度お試しください")
	ErrRateLimited    = New(KindValidation, "SYS002", "リクエストが多すぎます。しばらくしてから再度お試しください")
)

// Infrastructure は基盤エラーとしてラップする
func Infrastructure(cause error) *Error {
	return ErrInfrastructure.Wrap(cause)
}
