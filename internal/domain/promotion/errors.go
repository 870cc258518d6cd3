package promotion

import (
	"github.com/sanosuguru/go-event-ticket-checkout/internal/pkg/apperror"
)

// プロモーションのエラー定義
var (
	ErrPromotionNotFound         = apperror.New(apperror.KindValidation, "PROMO002", "プロモーションコードが見つかりません")
	ErrPromotionNotStarted       = apperror.New(apperror.KindValidation, "PROMO003", "プロモーションはまだ開始されていません")
	ErrPromotionExpired          = apperror.New(apperror.KindValidation, "PROMO004", "プロモーションの有効期限が切れています")
	ErrPromotionExhausted        = apperror.New(apperror.KindConflict, "PROMO005", "プロモーションの利用上限に達しました")
	ErrPromotionConditionsNotMet = apperror.New(apperror.KindValidation, "PROMO006", "プロモーションの適用条件を満たしていません")
	ErrPromotionNotApplicable    = apperror.New(apperror.KindValidation, "PROMO007", "このプロモーションは選択した券種に適用できません")
)
