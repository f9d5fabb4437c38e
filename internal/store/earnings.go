package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/LungheSam/FareFlow-Server/internal/domain"
)

// Accrue rolls one settled fare into the bus's daily, monthly and lifetime
// totals as a single transaction. Returns domain.ErrBusNotFound for an
// unregistered plate; the caller treats that as a silent skip.
func (s *Store) Accrue(ctx context.Context, plate string, amount int64, at time.Time) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("tx begin: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the registry row so concurrent settlements serialize their
	// rollup increments per bus.
	var plateNumber string
	err = tx.QueryRow(ctx,
		"SELECT plate_number FROM buses WHERE plate_number = $1 FOR UPDATE", plate,
	).Scan(&plateNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrBusNotFound
		}
		return fmt.Errorf("lock bus: %w", err)
	}

	day := domain.DayKey(at)
	month := domain.MonthKey(at)

	if _, err := tx.Exec(ctx,
		`INSERT INTO bus_earnings_daily (plate_number, day, amount) VALUES ($1, $2, $3)
		 ON CONFLICT (plate_number, day) DO UPDATE SET amount = bus_earnings_daily.amount + EXCLUDED.amount`,
		plate, day, amount,
	); err != nil {
		return fmt.Errorf("accrue daily: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO bus_earnings_monthly (plate_number, month, amount) VALUES ($1, $2, $3)
		 ON CONFLICT (plate_number, month) DO UPDATE SET amount = bus_earnings_monthly.amount + EXCLUDED.amount`,
		plate, month, amount,
	); err != nil {
		return fmt.Errorf("accrue monthly: %w", err)
	}

	if _, err := tx.Exec(ctx,
		"UPDATE buses SET total_earnings = total_earnings + $1, updated_at = now() WHERE plate_number = $2",
		amount, plate,
	); err != nil {
		return fmt.Errorf("accrue lifetime: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx commit: %w", err)
	}
	return nil
}

// BusEarnings returns the rollup state for one bus: the last seven daily
// buckets, all monthly buckets and the lifetime total.
func (s *Store) BusEarnings(ctx context.Context, plate string) (*domain.BusEarnings, error) {
	var e domain.BusEarnings
	err := s.db.QueryRow(ctx,
		"SELECT plate_number, total_earnings FROM buses WHERE plate_number = $1", plate,
	).Scan(&e.PlateNumber, &e.TotalEarnings)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBusNotFound
		}
		return nil, fmt.Errorf("get bus: %w", err)
	}

	weekly, err := s.earningEntries(ctx,
		`SELECT day, amount FROM bus_earnings_daily WHERE plate_number = $1
		 ORDER BY day DESC LIMIT 7`, plate)
	if err != nil {
		return nil, err
	}
	e.WeeklyEarnings = weekly

	monthly, err := s.earningEntries(ctx,
		`SELECT month, amount FROM bus_earnings_monthly WHERE plate_number = $1
		 ORDER BY month`, plate)
	if err != nil {
		return nil, err
	}
	e.MonthlyEarnings = monthly

	return &e, nil
}

func (s *Store) earningEntries(ctx context.Context, query, plate string) ([]domain.EarningEntry, error) {
	rows, err := s.db.Query(ctx, query, plate)
	if err != nil {
		return nil, fmt.Errorf("query earnings: %w", err)
	}
	defer rows.Close()

	var entries []domain.EarningEntry
	for rows.Next() {
		var entry domain.EarningEntry
		if err := rows.Scan(&entry.Key, &entry.Amount); err != nil {
			return nil, fmt.Errorf("scan earnings row: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
