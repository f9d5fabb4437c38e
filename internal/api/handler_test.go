package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/LungheSam/FareFlow-Server/internal/domain"
	"github.com/LungheSam/FareFlow-Server/internal/service"
)

type fakeService struct {
	outcome     domain.Outcome
	balance     int64
	balanceErr  error
	addFundsErr error
	registerErr error
	notifyErr   error
	earnings    *domain.BusEarnings
	earningsErr error
	records     []domain.TransactionRecord
	historyErr  error

	registered []*domain.Rider
	notices    []service.TopUpNotice
}

func (f *fakeService) ProcessFare(ctx context.Context, cardUID, busPlate string) domain.Outcome {
	return f.outcome
}

func (f *fakeService) Balance(ctx context.Context, cardUID string) (int64, error) {
	return f.balance, f.balanceErr
}

func (f *fakeService) AddFunds(ctx context.Context, cardUID string, amount int64) (int64, error) {
	if f.addFundsErr != nil {
		return 0, f.addFundsErr
	}
	return f.balance + amount, nil
}

func (f *fakeService) RegisterRider(ctx context.Context, rider *domain.Rider, password string) error {
	if f.registerErr != nil {
		return f.registerErr
	}
	f.registered = append(f.registered, rider)
	return nil
}

func (f *fakeService) History(ctx context.Context, cardUID string) ([]domain.TransactionRecord, error) {
	return f.records, f.historyErr
}

func (f *fakeService) NotifyTopUp(ctx context.Context, n service.TopUpNotice) error {
	if f.notifyErr != nil {
		return f.notifyErr
	}
	f.notices = append(f.notices, n)
	return nil
}

func (f *fakeService) Earnings(ctx context.Context, plate string) (*domain.BusEarnings, error) {
	return f.earnings, f.earningsErr
}

func doRequest(t *testing.T, svc FareAPI, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	router := NewRouter(NewHandler(svc))

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestProcessFareSuccess(t *testing.T) {
	svc := &fakeService{outcome: domain.Outcome{
		Code:            domain.CodePaymentSuccess,
		Message:         "Payment successful",
		FareAmount:      800,
		PreviousBalance: 1000,
		NewBalance:      200,
		HasBalance:      true,
	}}

	rec := doRequest(t, svc, http.MethodPost, "/process-fare", `{"cardUID":"CARD-1","busPlate":"UAZ-123"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "success" {
		t.Errorf("status field = %v", body["status"])
	}
	if body["hardwareCode"] != "PAYMENT_SUCCESS" {
		t.Errorf("hardwareCode = %v", body["hardwareCode"])
	}
	if body["newBalance"] != float64(200) {
		t.Errorf("newBalance = %v, want 200", body["newBalance"])
	}
}

func TestProcessFareStatusMapping(t *testing.T) {
	tests := []struct {
		code       domain.Code
		wantHTTP   int
		wantStatus string
	}{
		{domain.CodeUserNotFound, http.StatusNotFound, "error"},
		{domain.CodeUserBlocked, http.StatusBadRequest, "error"},
		{domain.CodeBusNotFound, http.StatusNotFound, "error"},
		{domain.CodeBusInactive, http.StatusForbidden, "error"},
		{domain.CodeDynamicWelcome, http.StatusOK, "info"},
		{domain.CodeLowBalance, http.StatusBadRequest, "error"},
		{domain.CodeInsufficientFare, http.StatusBadRequest, "error"},
		{domain.CodeServerError, http.StatusInternalServerError, "error"},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			svc := &fakeService{outcome: domain.Outcome{Code: tt.code, Message: "msg"}}
			rec := doRequest(t, svc, http.MethodPost, "/process-fare", `{"cardUID":"CARD-1"}`)

			if rec.Code != tt.wantHTTP {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantHTTP)
			}
			body := decodeBody(t, rec)
			if body["status"] != tt.wantStatus {
				t.Errorf("status field = %v, want %s", body["status"], tt.wantStatus)
			}
			if _, present := body["newBalance"]; present {
				t.Errorf("newBalance present on %s response", tt.code)
			}
		})
	}
}

func TestProcessFareRejectionCarriesBalance(t *testing.T) {
	svc := &fakeService{outcome: domain.Outcome{
		Code:            domain.CodeLowBalance,
		Message:         "Low balance. Minimum required: 500 UGX",
		PreviousBalance: 400,
		NewBalance:      400,
		HasBalance:      true,
	}}

	rec := doRequest(t, svc, http.MethodPost, "/process-fare", `{"cardUID":"CARD-1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["newBalance"] != float64(400) {
		t.Errorf("newBalance = %v, want 400", body["newBalance"])
	}
}

func TestProcessFareBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"cardUID":`},
		{"missing cardUID", `{"busPlate":"UAZ-123"}`},
		{"empty body", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			rec := doRequest(t, svc, http.MethodPost, "/process-fare", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestUserBalance(t *testing.T) {
	svc := &fakeService{balance: 2500}
	rec := doRequest(t, svc, http.MethodGet, "/user-balance/CARD-1", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := decodeBody(t, rec); body["balance"] != float64(2500) {
		t.Errorf("balance = %v, want 2500", body["balance"])
	}
}

func TestUserBalanceNotFound(t *testing.T) {
	svc := &fakeService{balanceErr: domain.ErrRiderNotFound}
	rec := doRequest(t, svc, http.MethodGet, "/user-balance/CARD-404", "")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "User not found" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestUserTransactions(t *testing.T) {
	svc := &fakeService{records: []domain.TransactionRecord{
		{CardUID: "CARD-1", Amount: 800, Type: domain.TransactionPayment, BusPlate: "UAZ-123"},
		{CardUID: "CARD-1", Amount: 2000, Type: domain.TransactionTopUp},
	}}
	rec := doRequest(t, svc, http.MethodGet, "/user-transactions/CARD-1", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	txs, ok := body["transactions"].([]any)
	if !ok || len(txs) != 2 {
		t.Fatalf("transactions = %v, want 2 records", body["transactions"])
	}
}

func TestUserTransactionsEmpty(t *testing.T) {
	svc := &fakeService{}
	rec := doRequest(t, svc, http.MethodGet, "/user-transactions/CARD-1", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if txs, ok := body["transactions"].([]any); !ok || len(txs) != 0 {
		t.Errorf("transactions = %v, want empty array not null", body["transactions"])
	}
}

func TestUserTransactionsNotFound(t *testing.T) {
	svc := &fakeService{historyErr: domain.ErrRiderNotFound}
	rec := doRequest(t, svc, http.MethodGet, "/user-transactions/CARD-404", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestAddFunds(t *testing.T) {
	svc := &fakeService{balance: 400}
	rec := doRequest(t, svc, http.MethodPost, "/add-funds", `{"cardUID":"CARD-1","amount":2000}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["newBalance"] != float64(2400) {
		t.Errorf("newBalance = %v, want 2400", body["newBalance"])
	}
	if body["message"] != "Added 2000 to account" {
		t.Errorf("message = %v", body["message"])
	}
}

func TestAddFundsRejectsNonPositiveAmount(t *testing.T) {
	svc := &fakeService{}
	rec := doRequest(t, svc, http.MethodPost, "/add-funds", `{"cardUID":"CARD-1","amount":0}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAddFundsUnknownRider(t *testing.T) {
	svc := &fakeService{addFundsErr: domain.ErrRiderNotFound}
	rec := doRequest(t, svc, http.MethodPost, "/add-funds", `{"cardUID":"CARD-404","amount":500}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSendWelcome(t *testing.T) {
	svc := &fakeService{}
	body := `{"cardUID":"CARD-9","email":"amina@example.com","phone":"+256700000001","firstName":"Amina","lastName":"Okello","password":"s3cret"}`
	rec := doRequest(t, svc, http.MethodPost, "/send-welcome-message", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeBody(t, rec)
	if resp["success"] != true {
		t.Errorf("success = %v", resp["success"])
	}
	if len(svc.registered) != 1 || svc.registered[0].CardUID != "CARD-9" {
		t.Errorf("registered = %+v", svc.registered)
	}
}

func TestSendWelcomeDuplicate(t *testing.T) {
	svc := &fakeService{registerErr: domain.ErrRiderExists}
	body := `{"cardUID":"CARD-9","email":"amina@example.com","phone":"+256700000001","firstName":"Amina","password":"s3cret"}`
	rec := doRequest(t, svc, http.MethodPost, "/send-welcome-message", body)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	resp := decodeBody(t, rec)
	if resp["success"] != false {
		t.Errorf("success = %v, want false", resp["success"])
	}
	if resp["error"] != "User with this card UID already exists" {
		t.Errorf("error = %v", resp["error"])
	}
}

func TestSendWelcomeRejectsBadEmail(t *testing.T) {
	svc := &fakeService{}
	body := `{"cardUID":"CARD-9","email":"not-an-email","phone":"+256700000001","firstName":"Amina","password":"s3cret"}`
	rec := doRequest(t, svc, http.MethodPost, "/send-welcome-message", body)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if len(svc.registered) != 0 {
		t.Errorf("invalid request reached the service")
	}
}

func TestNotifyBalanceLoad(t *testing.T) {
	svc := &fakeService{}
	body := `{"cardUID":"CARD-1","amount":3000,"newBalance":5000,"email":"amina@example.com","phone":"+256700000001","firstName":"Amina"}`
	rec := doRequest(t, svc, http.MethodPost, "/notify-balance-load", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(svc.notices) != 1 {
		t.Fatalf("notices = %d, want 1", len(svc.notices))
	}
	if n := svc.notices[0]; n.Amount != 3000 || n.NewBalance != 5000 {
		t.Errorf("notice = %+v", n)
	}
}

func TestNotifyBalanceLoadEnqueueFailure(t *testing.T) {
	svc := &fakeService{notifyErr: errors.New("outbox unavailable")}
	body := `{"cardUID":"CARD-1","amount":3000,"newBalance":5000,"email":"amina@example.com","phone":"+256700000001","firstName":"Amina"}`
	rec := doRequest(t, svc, http.MethodPost, "/notify-balance-load", body)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if resp := decodeBody(t, rec); resp["message"] != "Failed to send notifications" {
		t.Errorf("message = %v", resp["message"])
	}
}

func TestBusEarnings(t *testing.T) {
	svc := &fakeService{earnings: &domain.BusEarnings{
		PlateNumber:   "UAZ-123",
		TotalEarnings: 45000,
		WeeklyEarnings: []domain.EarningEntry{
			{Key: "2026-08-28", Amount: 1500},
		},
	}}
	rec := doRequest(t, svc, http.MethodGet, "/buses/UAZ-123/earnings", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["plateNumber"] != "UAZ-123" || body["totalEarnings"] != float64(45000) {
		t.Errorf("earnings = %v", body)
	}
}

func TestBusEarningsNotFound(t *testing.T) {
	svc := &fakeService{earningsErr: domain.ErrBusNotFound}
	rec := doRequest(t, svc, http.MethodGet, "/buses/NOPE/earnings", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	rec := doRequest(t, &fakeService{}, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := decodeBody(t, rec); body["status"] != "ok" {
		t.Errorf("status = %v", body["status"])
	}
}

func TestMethodNotAllowed(t *testing.T) {
	rec := doRequest(t, &fakeService{}, http.MethodGet, "/process-fare", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
