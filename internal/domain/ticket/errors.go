package ticket

import (
	"github.com/sanosuguru/go-event-ticket-checkout/internal/pkg/apperror"
)

// チケットのエラー定義
var (
	ErrTicketNotFound    = apperror.New(apperror.KindNotFound, "TICK011", "チケットが見つかりません")
	ErrTicketNotGiftable = apperror.New(apperror.KindValidation, "TICK012", "このチケットは譲渡できません")
	ErrTicketCheckedIn   = apperror.New(apperror.KindValidation, "TICK013", "入場済みのチケットは譲渡できません")
	ErrTicketEventPassed = apperror.New(apperror.KindValidation, "TICK014", "終了した公演のチケットは譲渡できません")
)
