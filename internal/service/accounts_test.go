package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/LungheSam/FareFlow-Server/internal/domain"
	"github.com/LungheSam/FareFlow-Server/internal/notify"
)

func TestAddFunds(t *testing.T) {
	svc, f := setup(t)
	addRider(f, 400, false)

	newBalance, err := svc.AddFunds(context.Background(), "CARD-1", 2000)
	if err != nil {
		t.Fatalf("AddFunds: %v", err)
	}
	if newBalance != 2400 {
		t.Errorf("newBalance = %d, want 2400", newBalance)
	}
	if len(f.history) != 1 || f.history[0].Type != domain.TransactionTopUp || f.history[0].Amount != 2000 {
		t.Errorf("history = %+v, want one topup record of 2000", f.history)
	}
}

func TestAddFunds_UnknownRider(t *testing.T) {
	svc, _ := setup(t)
	if _, err := svc.AddFunds(context.Background(), "CARD-404", 2000); !errors.Is(err, domain.ErrRiderNotFound) {
		t.Fatalf("err = %v, want ErrRiderNotFound", err)
	}
}

func TestBalance(t *testing.T) {
	svc, f := setup(t)
	addRider(f, 750, false)

	balance, err := svc.Balance(context.Background(), "CARD-1")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance != 750 {
		t.Errorf("balance = %d, want 750", balance)
	}
}

func TestHistory(t *testing.T) {
	svc, f := setup(t)
	addRider(f, 5000, false)
	addBus(f, 800)

	if _, err := svc.AddFunds(context.Background(), "CARD-1", 2000); err != nil {
		t.Fatalf("AddFunds: %v", err)
	}
	if out := svc.ProcessFare(context.Background(), "CARD-1", ""); !out.Success() {
		t.Fatalf("ProcessFare = %s", out.Code)
	}

	records, err := svc.History(context.Background(), "CARD-1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	// Newest first: the payment came after the top-up.
	if records[0].Type != domain.TransactionPayment || records[1].Type != domain.TransactionTopUp {
		t.Errorf("order = %s, %s, want payment then topup", records[0].Type, records[1].Type)
	}
}

func TestHistory_UnknownRider(t *testing.T) {
	svc, _ := setup(t)
	if _, err := svc.History(context.Background(), "CARD-404"); !errors.Is(err, domain.ErrRiderNotFound) {
		t.Fatalf("err = %v, want ErrRiderNotFound", err)
	}
}

func TestRegisterRider(t *testing.T) {
	svc, f := setup(t)

	rider := &domain.Rider{CardUID: "CARD-9", FirstName: "Ann", Email: "ann@example.com", Phone: "+256700000009"}
	if err := svc.RegisterRider(context.Background(), rider, "hunter2"); err != nil {
		t.Fatalf("RegisterRider: %v", err)
	}

	if len(f.queue) != 1 || f.queue[0].kind != notify.KindWelcome {
		t.Fatalf("queue = %+v, want one welcome notification", f.queue)
	}
	if f.queue[0].payload.Password != "hunter2" {
		t.Errorf("welcome payload password missing")
	}

	// Duplicate registration is rejected before any notification.
	if err := svc.RegisterRider(context.Background(), rider, "hunter2"); !errors.Is(err, domain.ErrRiderExists) {
		t.Fatalf("duplicate err = %v, want ErrRiderExists", err)
	}
	if len(f.queue) != 1 {
		t.Errorf("duplicate registration enqueued a notification")
	}
}

func TestNotifyTopUp(t *testing.T) {
	svc, f := setup(t)

	err := svc.NotifyTopUp(context.Background(), TopUpNotice{
		CardUID:    "CARD-1",
		Amount:     3000,
		NewBalance: 5000,
		Email:      "sam@example.com",
		Phone:      "+256700000001",
		FirstName:  "Sam",
	})
	if err != nil {
		t.Fatalf("NotifyTopUp: %v", err)
	}

	if len(f.queue) != 1 || f.queue[0].kind != notify.KindTopUp {
		t.Fatalf("queue = %+v, want one topup notification", f.queue)
	}
	p := f.queue[0].payload
	if p.Amount != 3000 || p.NewBalance != 5000 || p.PreviousBalance != 2000 {
		t.Errorf("payload amounts = %+v, want 3000 onto 2000 -> 5000", p)
	}
	if !strings.HasPrefix(p.TransactionID, "CARD-1-") {
		t.Errorf("transaction id = %q, want cardUID-epochMillis", p.TransactionID)
	}
}
