package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter mounts the fare-settlement surface. Paths match the deployed
// terminal firmware and mobile app, so they are versionless by necessity.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()

	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.HealthHandler).Methods(http.MethodGet)

	r.HandleFunc("/process-fare", h.ProcessFareHandler).Methods(http.MethodPost)
	r.HandleFunc("/notify-balance-load", h.NotifyBalanceLoadHandler).Methods(http.MethodPost)
	r.HandleFunc("/send-welcome-message", h.SendWelcomeHandler).Methods(http.MethodPost)
	r.HandleFunc("/user-balance/{cardUID}", h.UserBalanceHandler).Methods(http.MethodGet)
	r.HandleFunc("/user-transactions/{cardUID}", h.UserTransactionsHandler).Methods(http.MethodGet)
	r.HandleFunc("/add-funds", h.AddFundsHandler).Methods(http.MethodPost)
	r.HandleFunc("/buses/{plate}/earnings", h.BusEarningsHandler).Methods(http.MethodGet)

	return r
}
