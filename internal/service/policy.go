package service

import "github.com/LungheSam/FareFlow-Server/internal/domain"

// Pricing is the fare policy resolved from a bus's live state.
type Pricing struct {
	// Dynamic means distance-based pricing applies; the orchestrator must
	// short-circuit with the boarding welcome and not debit.
	Dynamic    bool
	FareAmount int64
}

// ResolvePolicy decides the pricing path for one tap. Returns
// domain.ErrBusInactive when the bus is not accepting fares. A fixed route
// without a positive fare amount falls back to defaultFare; that fallback is
// policy, not an error.
func ResolvePolicy(state *domain.BusLiveState, defaultFare int64) (Pricing, error) {
	if !state.Status {
		return Pricing{}, domain.ErrBusInactive
	}
	if state.Route.Type == domain.RouteDynamic {
		return Pricing{Dynamic: true}, nil
	}
	fare := state.Route.FareAmount
	if fare <= 0 {
		fare = defaultFare
	}
	return Pricing{FareAmount: fare}, nil
}
