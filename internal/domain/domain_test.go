package domain

import (
	"net/http"
	"testing"
	"time"
)

func TestPeriodKeys(t *testing.T) {
	at := time.Date(2026, 8, 28, 23, 59, 0, 0, time.UTC)
	if got := DayKey(at); got != "2026-08-28" {
		t.Errorf("DayKey = %q, want 2026-08-28", got)
	}
	if got := MonthKey(at); got != "Aug" {
		t.Errorf("MonthKey = %q, want Aug", got)
	}

	// Same calendar day, different clock time: one bucket.
	later := time.Date(2026, 8, 28, 6, 0, 0, 0, time.UTC)
	if DayKey(at) != DayKey(later) {
		t.Errorf("same-day taps must share a bucket: %q vs %q", DayKey(at), DayKey(later))
	}
}

func TestCodeHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodePaymentSuccess, http.StatusOK},
		{CodeDynamicWelcome, http.StatusOK},
		{CodeUserNotFound, http.StatusNotFound},
		{CodeBusNotFound, http.StatusNotFound},
		{CodeBusInactive, http.StatusForbidden},
		{CodeUserBlocked, http.StatusBadRequest},
		{CodeLowBalance, http.StatusBadRequest},
		{CodeInsufficientFare, http.StatusBadRequest},
		{CodeServerError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := tt.code.HTTPStatus(); got != tt.want {
			t.Errorf("%s -> %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestRiderDisplayName(t *testing.T) {
	r := Rider{FirstName: "Sam", LastName: "Lunghe"}
	if got := r.DisplayName(); got != "Sam Lunghe" {
		t.Errorf("DisplayName = %q", got)
	}
	r.LastName = ""
	if got := r.DisplayName(); got != "Sam" {
		t.Errorf("DisplayName without last name = %q", got)
	}
}
