package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LungheSam/FareFlow-Server/internal/domain"
	"github.com/LungheSam/FareFlow-Server/internal/notify"
)

// Store wraps the Postgres pool holding riders, transaction history, the
// global settlement log, bus earnings and the notification outbox.
type Store struct {
	db *pgxpool.Pool
}

func New(ctx context.Context, connString string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: pool}, nil
}

// NewWithPool wires an existing pool; the caller owns its lifecycle.
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

func (s *Store) Close() {
	s.db.Close()
}

// GetRider retrieves a rider account by card UID.
func (s *Store) GetRider(ctx context.Context, cardUID string) (*domain.Rider, error) {
	var r domain.Rider
	err := s.db.QueryRow(ctx,
		`SELECT card_uid, first_name, last_name, email, phone, balance, blocked, created_at
		 FROM riders WHERE card_uid = $1`,
		cardUID,
	).Scan(&r.CardUID, &r.FirstName, &r.LastName, &r.Email, &r.Phone, &r.Balance, &r.Blocked, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRiderNotFound
		}
		return nil, fmt.Errorf("get rider: %w", err)
	}
	return &r, nil
}

// CreateRider registers a new account with zero balance and empty history.
func (s *Store) CreateRider(ctx context.Context, r *domain.Rider) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO riders (card_uid, first_name, last_name, email, phone, balance, blocked)
		 VALUES ($1, $2, $3, $4, $5, 0, FALSE)`,
		r.CardUID, r.FirstName, r.LastName, r.Email, r.Phone,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrRiderExists
		}
		return fmt.Errorf("create rider: %w", err)
	}
	return nil
}

// Credit applies a funds top-up: balance increment plus one top-up record in
// the rider's history, atomically.
func (s *Store) Credit(ctx context.Context, cardUID string, amount int64) (int64, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("tx begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var balance int64
	err = tx.QueryRow(ctx,
		"SELECT balance FROM riders WHERE card_uid = $1 FOR UPDATE", cardUID,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrRiderNotFound
		}
		return 0, fmt.Errorf("lock rider: %w", err)
	}

	newBalance := balance + amount
	if _, err := tx.Exec(ctx,
		"UPDATE riders SET balance = $1 WHERE card_uid = $2", newBalance, cardUID,
	); err != nil {
		return 0, fmt.Errorf("credit balance: %w", err)
	}

	if _, err := tx.Exec(ctx,
		"INSERT INTO rider_transactions (card_uid, amount, type) VALUES ($1, $2, $3)",
		cardUID, amount, domain.TransactionTopUp,
	); err != nil {
		return 0, fmt.Errorf("append topup record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("tx commit: %w", err)
	}
	return newBalance, nil
}

// RiderHistory returns the rider's transaction records, newest first.
func (s *Store) RiderHistory(ctx context.Context, cardUID string, limit int) ([]domain.TransactionRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, card_uid, amount, type, bus_plate, created_at
		 FROM rider_transactions WHERE card_uid = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2`,
		cardUID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []domain.TransactionRecord
	for rows.Next() {
		var rec domain.TransactionRecord
		if err := rows.Scan(&rec.ID, &rec.CardUID, &rec.Amount, &rec.Type, &rec.BusPlate, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SettleParams carries one settlement attempt into the store.
type SettleParams struct {
	CardUID    string
	BusPlate   string
	FareAmount int64
	MinBalance int64
	Now        time.Time
	// BuildNotification produces the success notification payload once the
	// debited balances are known; it is persisted in the same transaction as
	// the debit.
	BuildNotification func(prev, newBalance int64) notify.Payload
}

// SettleResult reports what happened under the row lock.
type SettleResult struct {
	Settled bool
	// RejectCode is LOW_BALANCE or INSUFFICIENT_FARE when a guard failed on
	// the locked balance (a concurrent tap won the race).
	RejectCode      domain.Code
	PreviousBalance int64
	NewBalance      int64
	LogID           string
}

// SettleFare runs the debit pipeline in a single transaction: lock the rider
// row, re-evaluate both balance guards against the locked value, debit,
// append the rider-history record, insert the global log entry and the
// success-notification outbox row. Either all of it commits or none does,
// and the row lock serializes concurrent taps on one card.
func (s *Store) SettleFare(ctx context.Context, p SettleParams) (*SettleResult, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("tx begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		balance             int64
		firstName, lastName string
		blocked             bool
	)
	err = tx.QueryRow(ctx,
		"SELECT balance, first_name, last_name, blocked FROM riders WHERE card_uid = $1 FOR UPDATE",
		p.CardUID,
	).Scan(&balance, &firstName, &lastName, &blocked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRiderNotFound
		}
		return nil, fmt.Errorf("lock rider: %w", err)
	}
	if blocked {
		return nil, domain.ErrRiderBlocked
	}

	// Guards re-run on the locked balance: a concurrent tap may have debited
	// the account after the orchestrator's initial read.
	if balance < p.MinBalance {
		return &SettleResult{RejectCode: domain.CodeLowBalance, PreviousBalance: balance, NewBalance: balance}, nil
	}
	if balance < p.FareAmount {
		return &SettleResult{RejectCode: domain.CodeInsufficientFare, PreviousBalance: balance, NewBalance: balance}, nil
	}

	newBalance := balance - p.FareAmount
	if _, err := tx.Exec(ctx,
		"UPDATE riders SET balance = $1 WHERE card_uid = $2", newBalance, p.CardUID,
	); err != nil {
		return nil, fmt.Errorf("debit balance: %w", err)
	}

	if _, err := tx.Exec(ctx,
		"INSERT INTO rider_transactions (card_uid, amount, type, bus_plate, created_at) VALUES ($1, $2, $3, $4, $5)",
		p.CardUID, p.FareAmount, domain.TransactionPayment, p.BusPlate, p.Now,
	); err != nil {
		return nil, fmt.Errorf("append payment record: %w", err)
	}

	rider := domain.Rider{FirstName: firstName, LastName: lastName}
	entry := domain.LogEntry{
		ID:            uuid.NewString(),
		CardUID:       p.CardUID,
		BusPlate:      p.BusPlate,
		PassengerName: rider.DisplayName(),
		Amount:        p.FareAmount,
		CreatedAt:     p.Now,
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO transactions (id, card_uid, bus_plate, passenger_name, amount, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.CardUID, entry.BusPlate, entry.PassengerName, entry.Amount, entry.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("append settlement log: %w", err)
	}

	if p.BuildNotification != nil {
		payload := p.BuildNotification(balance, newBalance)
		if err := enqueueTx(ctx, tx, notify.KindPayment, payload); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("tx commit: %w", err)
	}

	return &SettleResult{
		Settled:         true,
		PreviousBalance: balance,
		NewBalance:      newBalance,
		LogID:           entry.ID,
	}, nil
}
