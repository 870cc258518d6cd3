package application

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/customer"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/event"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/ticket"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/domain/transaction"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/pkg/clock"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/pkg/logger"
)

// TicketService は発券済みチケットの譲渡を扱う
type TicketService struct {
	txManager  transaction.Manager
	ticketRepo ticket.Repository
	eventRepo  event.Repository
	userRepo   customer.Repository
	clock      clock.Clock
}

func NewTicketService(tm transaction.Manager, tr ticket.Repository, er event.Repository, ur customer.Repository, clk clock.Clock) *TicketService {
	return &TicketService{txManager: tm, ticketRepo: tr, eventRepo: er, userRepo: ur, clock: clk}
}

// GiftInput は譲渡先の情報
type GiftInput struct {
	RecipientEmail     string
	RecipientFirstName string
	RecipientLastName  string
	Message            string
}

// GiftTicket はチケットを別のユーザーに譲渡する
func (s *TicketService) GiftTicket(ctx context.Context, ticketCode string, in GiftInput) (*ticket.Ticket, error) {
	recipient := customer.Input{
		FirstName: in.RecipientFirstName,
		LastName:  in.RecipientLastName,
		Email:     in.RecipientEmail,
	}.Normalize()
	if recipient.FirstName == "" || recipient.LastName == "" {
		return nil, customer.ErrNameRequired
	}
	if err := customer.ValidateEmail(recipient.Email); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var t *ticket.Ticket
	err := transaction.WithTransaction(ctx, s.txManager, func(tx transaction.Tx) error {
		var err error
		t, err = s.ticketRepo.GetByCodeForUpdate(ctx, tx, ticketCode)
		if err != nil {
			return err
		}
		sched, err := s.eventRepo.GetSchedule(ctx, t.EventScheduleID)
		if err != nil {
			return err
		}
		end := sched.EndsAt
		if end.IsZero() {
			end = sched.StartsAt
		}
		if err := t.CheckGiftable(end, now); err != nil {
			return err
		}

		to, err := findOrCreateUser(ctx, tx, s.userRepo, recipient, now)
		if err != nil {
			return err
		}
		if to.ID == t.UserID {
			return ticket.ErrTicketNotGiftable
		}
		t.GiftTo(to.ID, to.Email, strings.TrimSpace(recipient.FirstName+" "+recipient.LastName), strings.TrimSpace(in.Message), now)
		return s.ticketRepo.UpdateOwner(ctx, tx, t)
	})
	if err != nil {
		return nil, toTxError(err)
	}

	logger.Info("チケットを譲渡しました",
		zap.String("ticket_code", t.TicketCode),
		zap.Int64("from_user_id", t.Gift.FromUserID),
		zap.Int64("to_user_id", t.UserID),
	)
	return t, nil
}
