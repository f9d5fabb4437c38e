package service

import (
	"context"
	"fmt"

	"github.com/LungheSam/FareFlow-Server/internal/domain"
	"github.com/LungheSam/FareFlow-Server/internal/logging"
	"github.com/LungheSam/FareFlow-Server/internal/notify"
)

// Balance returns a rider's current balance.
func (s *FareService) Balance(ctx context.Context, cardUID string) (int64, error) {
	rider, err := s.ledger.GetRider(ctx, cardUID)
	if err != nil {
		return 0, err
	}
	return rider.Balance, nil
}

// AddFunds credits a rider's balance and appends the top-up record to their
// history. The top-up notification is a separate call from the payment
// gateway callback (NotifyTopUp), matching the upstream flow.
func (s *FareService) AddFunds(ctx context.Context, cardUID string, amount int64) (int64, error) {
	newBalance, err := s.ledger.Credit(ctx, cardUID, amount)
	if err != nil {
		return 0, err
	}
	logging.Info().Str("card_uid", cardUID).Int64("amount", amount).Int64("new_balance", newBalance).Msg("funds added")
	return newBalance, nil
}

// historyLimit caps the records returned per history request.
const historyLimit = 50

// History returns a rider's recent transaction records, newest first.
func (s *FareService) History(ctx context.Context, cardUID string) ([]domain.TransactionRecord, error) {
	if _, err := s.ledger.GetRider(ctx, cardUID); err != nil {
		return nil, err
	}
	return s.ledger.RiderHistory(ctx, cardUID, historyLimit)
}

// RegisterRider creates the account and enqueues the welcome notification.
func (s *FareService) RegisterRider(ctx context.Context, rider *domain.Rider, password string) error {
	if err := s.ledger.CreateRider(ctx, rider); err != nil {
		return err
	}

	p := notify.Payload{
		CardUID:   rider.CardUID,
		FirstName: rider.FirstName,
		Email:     rider.Email,
		Phone:     rider.Phone,
		Password:  password,
	}
	if err := s.outbox.Enqueue(ctx, notify.KindWelcome, p); err != nil {
		// The account exists; delivery is owed but must not fail creation.
		logging.Error().Err(err).Str("card_uid", rider.CardUID).Msg("failed to enqueue welcome notification")
	}
	return nil
}

// TopUpNotice carries the fields of a /notify-balance-load request. The
// balance mutation already happened upstream; this only queues delivery.
type TopUpNotice struct {
	CardUID    string
	Amount     int64
	NewBalance int64
	Email      string
	Phone      string
	FirstName  string
}

// NotifyTopUp enqueues the top-up confirmation for SMS and email delivery.
func (s *FareService) NotifyTopUp(ctx context.Context, n TopUpNotice) error {
	now := s.now()
	p := notify.Payload{
		CardUID:         n.CardUID,
		FirstName:       n.FirstName,
		Email:           n.Email,
		Phone:           n.Phone,
		TransactionID:   notify.TransactionID(n.CardUID, now),
		TransactionDate: now,
		Amount:          n.Amount,
		NewBalance:      n.NewBalance,
		PreviousBalance: n.NewBalance - n.Amount,
		Currency:        s.cfg.Currency,
		StatusTitle:     "Balance Top-Up Successful",
		StatusMessage: fmt.Sprintf(
			"You have successfully added %d %s to your FareFlow account.\nThank you for using FareFlow....",
			n.Amount, s.cfg.Currency,
		),
	}
	return s.outbox.Enqueue(ctx, notify.KindTopUp, p)
}

// Earnings returns the rollup ledger for one bus.
func (s *FareService) Earnings(ctx context.Context, plate string) (*domain.BusEarnings, error) {
	return s.earnings.BusEarnings(ctx, plate)
}
