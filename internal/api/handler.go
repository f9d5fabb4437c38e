package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/LungheSam/FareFlow-Server/internal/domain"
	"github.com/LungheSam/FareFlow-Server/internal/logging"
	"github.com/LungheSam/FareFlow-Server/internal/service"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fareflow_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fareflow_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

// FareAPI is the service surface the handlers call.
type FareAPI interface {
	ProcessFare(ctx context.Context, cardUID, busPlate string) domain.Outcome
	Balance(ctx context.Context, cardUID string) (int64, error)
	AddFunds(ctx context.Context, cardUID string, amount int64) (int64, error)
	RegisterRider(ctx context.Context, rider *domain.Rider, password string) error
	History(ctx context.Context, cardUID string) ([]domain.TransactionRecord, error)
	NotifyTopUp(ctx context.Context, n service.TopUpNotice) error
	Earnings(ctx context.Context, plate string) (*domain.BusEarnings, error)
}

type Handler struct {
	svc      FareAPI
	validate *validator.Validate
}

func NewHandler(svc FareAPI) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

type processFareRequest struct {
	CardUID  string `json:"cardUID" validate:"required"`
	BusPlate string `json:"busPlate"`
}

// fareResponse is the terminal-facing settlement response.
type fareResponse struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	NewBalance   *int64 `json:"newBalance,omitempty"`
	HardwareCode string `json:"hardwareCode"`
}

func (h *Handler) ProcessFareHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/process-fare"
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", endpoint))
	defer timer.ObserveDuration()

	var req processFareRequest
	if !h.decode(w, r, endpoint, &req) {
		return
	}

	outcome := h.svc.ProcessFare(r.Context(), req.CardUID, req.BusPlate)

	resp := fareResponse{
		Status:       outcomeStatus(outcome.Code),
		Message:      outcome.Message,
		HardwareCode: string(outcome.Code),
	}
	if outcome.HasBalance {
		resp.NewBalance = &outcome.NewBalance
	}
	h.respondJSON(w, outcome.Code.HTTPStatus(), resp, "POST", endpoint)
}

type balanceLoadRequest struct {
	CardUID    string `json:"cardUID" validate:"required"`
	Amount     int64  `json:"amount" validate:"gt=0"`
	NewBalance int64  `json:"newBalance" validate:"gte=0"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone" validate:"required"`
	FirstName  string `json:"firstName" validate:"required"`
}

func (h *Handler) NotifyBalanceLoadHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/notify-balance-load"

	var req balanceLoadRequest
	if !h.decode(w, r, endpoint, &req) {
		return
	}

	err := h.svc.NotifyTopUp(r.Context(), service.TopUpNotice{
		CardUID:    req.CardUID,
		Amount:     req.Amount,
		NewBalance: req.NewBalance,
		Email:      req.Email,
		Phone:      req.Phone,
		FirstName:  req.FirstName,
	})
	if err != nil {
		logging.Error().Err(err).Str("card_uid", req.CardUID).Msg("top-up notification enqueue failed")
		h.respondJSON(w, http.StatusInternalServerError,
			map[string]string{"status": "error", "message": "Failed to send notifications"}, "POST", endpoint)
		return
	}
	h.respondJSON(w, http.StatusOK,
		map[string]string{"status": "success", "message": "Notifications sent"}, "POST", endpoint)
}

type welcomeRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName"`
	CardUID   string `json:"cardUID" validate:"required"`
	Password  string `json:"password" validate:"required"`
}

func (h *Handler) SendWelcomeHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/send-welcome-message"

	var req welcomeRequest
	if !h.decode(w, r, endpoint, &req) {
		return
	}

	rider := &domain.Rider{
		CardUID:   req.CardUID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
	}
	if err := h.svc.RegisterRider(r.Context(), rider, req.Password); err != nil {
		if errors.Is(err, domain.ErrRiderExists) {
			h.respondJSON(w, http.StatusBadRequest,
				map[string]any{"success": false, "error": "User with this card UID already exists"}, "POST", endpoint)
			return
		}
		logging.Error().Err(err).Str("card_uid", req.CardUID).Msg("rider registration failed")
		h.respondError(w, http.StatusInternalServerError, "Registration failed", "POST", endpoint)
		return
	}
	h.respondJSON(w, http.StatusOK,
		map[string]any{"success": true, "message": "Registration successful! Email and SMS sent."}, "POST", endpoint)
}

func (h *Handler) UserBalanceHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/user-balance/{cardUID}"

	cardUID := mux.Vars(r)["cardUID"]
	balance, err := h.svc.Balance(r.Context(), cardUID)
	if err != nil {
		if errors.Is(err, domain.ErrRiderNotFound) {
			h.respondError(w, http.StatusNotFound, "User not found", "GET", endpoint)
			return
		}
		logging.Error().Err(err).Str("card_uid", cardUID).Msg("balance lookup failed")
		h.respondError(w, http.StatusInternalServerError, "Server error", "GET", endpoint)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]int64{"balance": balance}, "GET", endpoint)
}

func (h *Handler) UserTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/user-transactions/{cardUID}"

	cardUID := mux.Vars(r)["cardUID"]
	records, err := h.svc.History(r.Context(), cardUID)
	if err != nil {
		if errors.Is(err, domain.ErrRiderNotFound) {
			h.respondError(w, http.StatusNotFound, "User not found", "GET", endpoint)
			return
		}
		logging.Error().Err(err).Str("card_uid", cardUID).Msg("history lookup failed")
		h.respondError(w, http.StatusInternalServerError, "Server error", "GET", endpoint)
		return
	}
	if records == nil {
		records = []domain.TransactionRecord{}
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"transactions": records}, "GET", endpoint)
}

type addFundsRequest struct {
	CardUID string `json:"cardUID" validate:"required"`
	Amount  int64  `json:"amount" validate:"gt=0"`
}

func (h *Handler) AddFundsHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/add-funds"

	var req addFundsRequest
	if !h.decode(w, r, endpoint, &req) {
		return
	}

	newBalance, err := h.svc.AddFunds(r.Context(), req.CardUID, req.Amount)
	if err != nil {
		if errors.Is(err, domain.ErrRiderNotFound) {
			h.respondError(w, http.StatusNotFound, "User not found", "POST", endpoint)
			return
		}
		logging.Error().Err(err).Str("card_uid", req.CardUID).Msg("add funds failed")
		h.respondError(w, http.StatusInternalServerError, "Server error", "POST", endpoint)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{
		"message":    "Added " + strconv.FormatInt(req.Amount, 10) + " to account",
		"newBalance": newBalance,
	}, "POST", endpoint)
}

func (h *Handler) BusEarningsHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/buses/{plate}/earnings"

	plate := mux.Vars(r)["plate"]
	earnings, err := h.svc.Earnings(r.Context(), plate)
	if err != nil {
		if errors.Is(err, domain.ErrBusNotFound) {
			h.respondError(w, http.StatusNotFound, "Bus not found", "GET", endpoint)
			return
		}
		logging.Error().Err(err).Str("bus_plate", plate).Msg("earnings lookup failed")
		h.respondError(w, http.StatusInternalServerError, "Server error", "GET", endpoint)
		return
	}
	h.respondJSON(w, http.StatusOK, earnings, "GET", endpoint)
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"}, "GET", "/health")
}

// outcomeStatus maps a hardware code to the legacy status word the
// terminals and app expect.
func outcomeStatus(code domain.Code) string {
	switch code {
	case domain.CodePaymentSuccess:
		return "success"
	case domain.CodeDynamicWelcome:
		return "info"
	default:
		return "error"
	}
}

// decode unmarshals and validates a JSON request body, replying 400 and
// returning false on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, endpoint string, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.respondError(w, http.StatusBadRequest, "Malformed JSON body", r.Method, endpoint)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request: "+err.Error(), r.Method, endpoint)
		return false
	}
	return true
}

func (h *Handler) respondJSON(w http.ResponseWriter, code int, payload any, method, endpoint string) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, code int, message, method, endpoint string) {
	h.respondJSON(w, code, map[string]string{"error": message}, method, endpoint)
}
