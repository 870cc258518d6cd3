package order

import (
	"errors"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/pkg/apperror"
)

// 注文のエラー定義
var (
	ErrItemsRequired     = apperror.New(apperror.KindValidation, "ORD001", "注文明細は1件以上必要です")
	ErrInvalidCurrency   = apperror.New(apperror.KindValidation, "ORD005", "通貨が指定されていないか、券種の通貨と一致しません")
	ErrOrderNotFound     = apperror.New(apperror.KindNotFound, "ORD006", "注文が見つかりません")
	ErrInvalidTransition = apperror.New(apperror.KindValidation, "ORD007", "この注文の状態は変更できません")
	ErrOrderItemMismatch = apperror.New(apperror.KindTransaction, "ORD008", "チケットを注文明細に紐づけできませんでした")
	ErrTransactionFailed = apperror.New(apperror.KindTransaction, "ORD009", "注文処理に失敗しました。もう一度お試しください")
	ErrOrderExpired      = apperror.New(apperror.KindValidation, "ORD010", "決済期限を過ぎています")
	ErrTooManyItems      = apperror.New(apperror.KindValidation, "ORD002", "注文明細が多すぎます")
)

var ErrInvalidTotals = errors.New("注文金額の整合性がありません")
