package domain

import "time"

// Rider represents a registered card holder. Balance is in currency minor
// units and must never go negative; only the settlement and top-up paths in
// the store mutate it, always under a row lock.
type Rider struct {
	CardUID   string    `json:"cardUID"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Balance   int64     `json:"balance"`
	Blocked   bool      `json:"blocked"`
	CreatedAt time.Time `json:"createdAt"`
}

// DisplayName is the passenger name recorded on global transaction-log rows.
func (r *Rider) DisplayName() string {
	if r.LastName == "" {
		return r.FirstName
	}
	return r.FirstName + " " + r.LastName
}

// RouteType distinguishes fixed-fare routes from dynamic (distance-priced)
// ones. Dynamic pricing is not settled by this service.
type RouteType string

const (
	RouteFixed   RouteType = "fixed"
	RouteDynamic RouteType = "dynamic"
)

// Route is the pricing descriptor carried in a bus's live state.
type Route struct {
	Type        RouteType `json:"type"`
	FareAmount  int64     `json:"fareAmount"`
	Departure   string    `json:"departure"`
	Destination string    `json:"destination"`
}

// BusLiveState is the telemetry-maintained record read from the low-latency
// store at tap time. Status false means the bus is not accepting fares.
type BusLiveState struct {
	PlateNumber string `json:"plateNumber"`
	Status      bool   `json:"status"`
	Route       Route  `json:"route"`
}

// TransactionType tags entries in a rider's history.
type TransactionType string

const (
	TransactionPayment TransactionType = "payment"
	TransactionTopUp   TransactionType = "topup"
)

// TransactionRecord is one immutable entry in a rider's embedded history.
type TransactionRecord struct {
	ID        int64           `json:"id"`
	CardUID   string          `json:"cardUID"`
	Amount    int64           `json:"amount"`
	Type      TransactionType `json:"type"`
	BusPlate  string          `json:"busPlate,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// LogEntry is the global, append-only settlement log row. It duplicates the
// rider-history record on purpose: the two live in independent tables and
// are written together in the settlement transaction.
type LogEntry struct {
	ID            string    `json:"id"`
	CardUID       string    `json:"cardUID"`
	BusPlate      string    `json:"busPlate"`
	PassengerName string    `json:"passengerName"`
	Amount        int64     `json:"amount"`
	CreatedAt     time.Time `json:"createdAt"`
}

// EarningEntry is one rollup bucket (a calendar day or a month label).
type EarningEntry struct {
	Key    string `json:"key"`
	Amount int64  `json:"amount"`
}

// BusEarnings is the durable ledger sub-state for one bus: at most one
// weekly entry per day, one monthly entry per month, amounts monotonically
// non-decreasing within a period.
type BusEarnings struct {
	PlateNumber     string         `json:"plateNumber"`
	WeeklyEarnings  []EarningEntry `json:"weeklyEarnings"`
	MonthlyEarnings []EarningEntry `json:"monthlyEarnings"`
	TotalEarnings   int64          `json:"totalEarnings"`
}

// DayKey returns the weekly-rollup bucket key for t, e.g. "2026-08-28".
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// MonthKey returns the monthly-rollup bucket key for t, e.g. "Aug".
func MonthKey(t time.Time) string {
	return t.Format("Jan")
}
