package customer

import (
	"errors"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/pkg/apperror"
)

// 購入者情報のエラー定義
var (
	ErrNameRequired  = apperror.New(apperror.KindValidation, "CUS001", "姓と名を入力してください")
	ErrEmailRequired = apperror.New(apperror.KindValidation, "CUS002", "メールアドレスを入力してください")
	ErrEmailInvalid  = apperror.New(apperror.KindValidation, "CUS003", "メールアドレスの形式が正しくありません")
	ErrPhoneRequired = apperror.New(apperror.KindValidation, "CUS004", "電話番号を入力してください")
	ErrPhoneInvalid  = apperror.New(apperror.KindValidation, "CUS005", "電話番号の形式が正しくありません")
)

var ErrUserNotFound = errors.New("ユーザーが見つかりません")
