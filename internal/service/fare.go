package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/LungheSam/FareFlow-Server/internal/config"
	"github.com/LungheSam/FareFlow-Server/internal/domain"
	"github.com/LungheSam/FareFlow-Server/internal/logging"
	"github.com/LungheSam/FareFlow-Server/internal/notify"
	"github.com/LungheSam/FareFlow-Server/internal/store"
)

var settlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fareflow_settlements_total",
	Help: "Settlement runs by terminal hardware code",
}, []string{"code"})

// Ledger is the rider-account side of the durable store.
type Ledger interface {
	GetRider(ctx context.Context, cardUID string) (*domain.Rider, error)
	CreateRider(ctx context.Context, r *domain.Rider) error
	Credit(ctx context.Context, cardUID string, amount int64) (int64, error)
	RiderHistory(ctx context.Context, cardUID string, limit int) ([]domain.TransactionRecord, error)
	SettleFare(ctx context.Context, p store.SettleParams) (*store.SettleResult, error)
}

// EarningsLedger rolls settled fares into per-bus totals.
type EarningsLedger interface {
	Accrue(ctx context.Context, plate string, amount int64, at time.Time) error
	BusEarnings(ctx context.Context, plate string) (*domain.BusEarnings, error)
}

// Outbox persists notification intents for asynchronous delivery.
type Outbox interface {
	Enqueue(ctx context.Context, kind notify.Kind, payload notify.Payload) error
}

// BusState reads bus live records.
type BusState interface {
	Live(ctx context.Context, plate string) (*domain.BusLiveState, error)
}

// FareService orchestrates the fare-settlement pipeline for tap events and
// carries the account operations around it.
type FareService struct {
	ledger   Ledger
	earnings EarningsLedger
	busState BusState
	outbox   Outbox
	cfg      config.FareConfig
	now      func() time.Time
}

func NewFareService(ledger Ledger, earnings EarningsLedger, busState BusState, outbox Outbox, cfg config.FareConfig) *FareService {
	return &FareService{
		ledger:   ledger,
		earnings: earnings,
		busState: busState,
		outbox:   outbox,
		cfg:      cfg,
		now:      time.Now,
	}
}

// ProcessFare runs the settlement state machine for one tap. Guards are
// evaluated strictly in order and each failure is terminal. Identity and
// availability failures produce a hardware-only outcome; business-outcome
// failures and success additionally enqueue exactly one rider notification.
func (s *FareService) ProcessFare(ctx context.Context, cardUID, busPlate string) domain.Outcome {
	outcome := s.processFare(ctx, cardUID, busPlate)
	settlementsTotal.WithLabelValues(string(outcome.Code)).Inc()
	return outcome
}

func (s *FareService) processFare(ctx context.Context, cardUID, busPlate string) domain.Outcome {
	if busPlate == "" {
		busPlate = s.cfg.DefaultPlate
	}
	log := logging.Logger().With().Str("card_uid", cardUID).Str("bus_plate", busPlate).Logger()

	// 1-2. Load rider, block check.
	rider, err := s.ledger.GetRider(ctx, cardUID)
	if err != nil {
		if errors.Is(err, domain.ErrRiderNotFound) {
			return domain.Outcome{Code: domain.CodeUserNotFound, Message: "User not found"}
		}
		log.Error().Err(err).Msg("rider lookup failed")
		return serverError()
	}
	if rider.Blocked {
		return domain.Outcome{Code: domain.CodeUserBlocked, Message: "User Blocked"}
	}

	// 3. Bus live state and pricing path.
	state, err := s.busState.Live(ctx, busPlate)
	if err != nil {
		if errors.Is(err, domain.ErrBusNotFound) {
			return domain.Outcome{Code: domain.CodeBusNotFound, Message: "Bus not found"}
		}
		log.Error().Err(err).Msg("bus live-state lookup failed")
		return serverError()
	}
	pricing, err := ResolvePolicy(state, s.cfg.DefaultFare)
	if err != nil {
		if errors.Is(err, domain.ErrBusInactive) {
			return domain.Outcome{Code: domain.CodeBusInactive, Message: "Bus is currently inactive"}
		}
		log.Error().Err(err).Msg("policy resolution failed")
		return serverError()
	}
	if pricing.Dynamic {
		return domain.Outcome{
			Code:    domain.CodeDynamicWelcome,
			Message: "Welcome aboard. Dynamic pricing not implemented yet.",
		}
	}
	fare := pricing.FareAmount

	// 4-5. Balance guards on the orchestrator's read. The store re-checks
	// both against the locked balance before debiting.
	if rider.Balance < s.cfg.MinBalance {
		return s.rejectPayment(ctx, rider, domain.CodeLowBalance, fare, rider.Balance)
	}
	if rider.Balance < fare {
		return s.rejectPayment(ctx, rider, domain.CodeInsufficientFare, fare, rider.Balance)
	}

	// 6. Settle.
	now := s.now()
	result, err := s.ledger.SettleFare(ctx, store.SettleParams{
		CardUID:    cardUID,
		BusPlate:   busPlate,
		FareAmount: fare,
		MinBalance: s.cfg.MinBalance,
		Now:        now,
		BuildNotification: func(prev, newBalance int64) notify.Payload {
			p := s.basePayload(rider, fare, now)
			p.PreviousBalance = prev
			p.NewBalance = newBalance
			p.StatusTitle = "Success"
			p.StatusMessage = "Your fare payment has been processed successfully."
			p.Departure = state.Route.Departure
			p.Destination = state.Route.Destination
			return p
		},
	})
	if err != nil {
		// Not-found and blocked at this point mean the account changed
		// between the guard read and the lock; both are terminal.
		if errors.Is(err, domain.ErrRiderNotFound) {
			return domain.Outcome{Code: domain.CodeUserNotFound, Message: "User not found"}
		}
		if errors.Is(err, domain.ErrRiderBlocked) {
			return domain.Outcome{Code: domain.CodeUserBlocked, Message: "User Blocked"}
		}
		log.Error().Err(err).Msg("settlement failed")
		return serverError()
	}
	if !result.Settled {
		// A concurrent tap debited the account first; reject on the fresh
		// balance.
		return s.rejectPayment(ctx, rider, result.RejectCode, fare, result.PreviousBalance)
	}

	// Secondary writes are best-effort once the debit is committed: failures
	// are logged, never unwound.
	if err := s.earnings.Accrue(ctx, busPlate, fare, now); err != nil {
		if errors.Is(err, domain.ErrBusNotFound) {
			log.Debug().Msg("bus not registered, earnings accrual skipped")
		} else {
			log.Warn().Err(err).Msg("earnings accrual failed after settlement")
		}
	}

	log.Info().Int64("fare", fare).Int64("new_balance", result.NewBalance).Str("log_id", result.LogID).Msg("fare settled")
	return domain.Outcome{
		Code:            domain.CodePaymentSuccess,
		Message:         "Fare processed successfully",
		FareAmount:      fare,
		PreviousBalance: result.PreviousBalance,
		NewBalance:      result.NewBalance,
		HasBalance:      true,
	}
}

// rejectPayment builds the guard-failure outcome and enqueues the single
// rider notification it owes. The hardware message, SMS text and email body
// all derive from the same reason string.
func (s *FareService) rejectPayment(ctx context.Context, rider *domain.Rider, code domain.Code, fare, balance int64) domain.Outcome {
	var reason string
	switch code {
	case domain.CodeLowBalance:
		reason = fmt.Sprintf("Low balance. Minimum required: %d %s", s.cfg.MinBalance, s.cfg.Currency)
	case domain.CodeInsufficientFare:
		reason = fmt.Sprintf("Insufficient balance for the fare. Needed: %d %s", fare, s.cfg.Currency)
	}

	p := s.basePayload(rider, fare, s.now())
	p.PreviousBalance = balance
	p.NewBalance = balance
	p.Failed = true
	p.Reason = reason
	p.StatusTitle = "Payment Failed"
	p.StatusMessage = "Unfortunately, your fare payment could not be processed. " + reason +
		"\nPlease ensure you have sufficient balance or contact support."

	if err := s.outbox.Enqueue(ctx, notify.KindPayment, p); err != nil {
		logging.Error().Err(err).Str("card_uid", rider.CardUID).Msg("failed to enqueue payment-failure notification")
	}

	return domain.Outcome{
		Code:            code,
		Message:         fmt.Sprintf("FareFlow Payment Unsuccessful\n%s\nThank you for using FareFlow", reason),
		FareAmount:      fare,
		PreviousBalance: balance,
		NewBalance:      balance,
	}
}

func (s *FareService) basePayload(rider *domain.Rider, amount int64, at time.Time) notify.Payload {
	return notify.Payload{
		CardUID:         rider.CardUID,
		FirstName:       rider.FirstName,
		Email:           rider.Email,
		Phone:           rider.Phone,
		TransactionID:   notify.TransactionID(rider.CardUID, at),
		TransactionDate: at,
		Amount:          amount,
		Currency:        s.cfg.Currency,
	}
}

func serverError() domain.Outcome {
	return domain.Outcome{Code: domain.CodeServerError, Message: "Server error"}
}
