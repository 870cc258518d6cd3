package event

import (
	"github.com/sanosuguru/go-event-ticket-checkout/internal/pkg/apperror"
)

// イベント・日程のエラー定義
var (
	ErrEventIDRequired     = apperror.New(apperror.KindValidation, "EVT001", "イベントIDは必須です")
	ErrEventNotFound       = apperror.New(apperror.KindValidation, "EVT002", "イベントが見つかりません")
	ErrScheduleIDRequired  = apperror.New(apperror.KindValidation, "EVT003", "開催日程IDは必須です")
	ErrScheduleNotFound    = apperror.New(apperror.KindValidation, "EVT004", "開催日程が見つかりません")
	ErrEventNotOnSale      = apperror.New(apperror.KindValidation, "EVT005", "このイベントは販売されていません")
	ErrSchedulePassed      = apperror.New(apperror.KindValidation, "EVT006", "開催日程は終了しています")
	ErrScheduleNotInEvent  = apperror.New(apperror.KindValidation, "EVT007", "開催日程がイベントに属していません")
	ErrBookingModeMismatch = apperror.New(apperror.KindValidation, "EVT008", "このイベントは座席指定ではありません")
	ErrEventEnded          = apperror.New(apperror.KindValidation, "EVT009", "イベントは終了しています")
)

// 券種のエラー定義
var (
	ErrTicketClassIDRequired = apperror.New(apperror.KindValidation, "TICK004", "券種IDは必須です")
	ErrTicketClassNotFound   = apperror.New(apperror.KindValidation, "TICK005", "券種が見つかりません")
	ErrTicketClassNotInEvent = apperror.New(apperror.KindValidation, "TICK006", "券種がイベントに属していません")
	ErrInvalidQuantity       = apperror.New(apperror.KindValidation, "TICK007", "枚数は1以上の整数である必要があります")
	ErrCapacityExceeded      = apperror.New(apperror.KindConflict, "TICK008", "券種の残り枚数が不足しています")
	ErrDuplicateTicketClass  = apperror.New(apperror.KindValidation, "TICK009", "同じ券種・日程が重複しています")
	ErrTicketPriceMismatch   = apperror.New(apperror.KindValidation, "TICK010", "券種の価格が変更されています")
)
