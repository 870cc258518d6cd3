package seathold

import (
	"errors"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/pkg/apperror"
)

// 座席保留のエラー定義
var (
	ErrSeatRequired      = apperror.New(apperror.KindValidation, "SEAT001", "座席を選択してください")
	ErrSeatUnavailable   = apperror.New(apperror.KindConflict, "SEAT002", "選択した座席は他のお客様が確保中です")
	ErrSeatAlreadyBooked = apperror.New(apperror.KindConflict, "SEAT003", "選択した座席は既に予約されています")
	ErrHoldCodeMissing   = apperror.New(apperror.KindValidation, "SEAT004", "座席の確保情報がありません。座席を選び直してください")
	ErrDuplicateSeat     = apperror.New(apperror.KindValidation, "SEAT005", "同じ座席が重複して指定されています")
)

var (
	ErrHoldNotFound  = errors.New("座席保留が見つかりません")
	ErrHoldNotActive = errors.New("座席保留は有効期限切れまたは解放済みです")
)

// Unavailable は競合した座席名を付けた SEAT002 を返す
func Unavailable(seats []string) error {
	return ErrSeatUnavailable.WithDetails(map[string]any{"seats": seats})
}

// AlreadyBooked は予約済み座席名を付けた SEAT003 を返す
func AlreadyBooked(seats []string) error {
	return ErrSeatAlreadyBooked.WithDetails(map[string]any{"seats": seats})
}
