package domain

import "net/http"

// Code is the stable machine code returned to the fare terminal for display.
type Code string

const (
	CodeUserNotFound     Code = "USER_NOT_FOUND"
	CodeUserBlocked      Code = "USER_BLOCKED"
	CodeBusNotFound      Code = "BUS_NOT_FOUND"
	CodeBusInactive      Code = "BUS_INACTIVE"
	CodeDynamicWelcome   Code = "DYNAMIC_ROUTE_WELCOME"
	CodeLowBalance       Code = "LOW_BALANCE"
	CodeInsufficientFare Code = "INSUFFICIENT_FARE"
	CodePaymentSuccess   Code = "PAYMENT_SUCCESS"
	CodeServerError      Code = "SERVER_ERROR"
)

// HTTPStatus maps a hardware code to the wire status the terminal firmware
// expects. The mapping mirrors the deployed terminals and must not change
// without a firmware rollout.
func (c Code) HTTPStatus() int {
	switch c {
	case CodePaymentSuccess, CodeDynamicWelcome:
		return http.StatusOK
	case CodeUserNotFound, CodeBusNotFound:
		return http.StatusNotFound
	case CodeBusInactive:
		return http.StatusForbidden
	case CodeUserBlocked, CodeLowBalance, CodeInsufficientFare:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Outcome is the terminal state of one settlement run. The hardware response
// and the rider notification are both derived from it, so the two can never
// disagree on amounts or balances.
type Outcome struct {
	Code            Code
	Message         string
	FareAmount      int64
	PreviousBalance int64
	NewBalance      int64
	// HasBalance is true when NewBalance is meaningful for this code.
	HasBalance bool
}

// Success reports whether the run debited the rider.
func (o Outcome) Success() bool {
	return o.Code == CodePaymentSuccess
}
