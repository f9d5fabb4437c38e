package notify

import (
	"fmt"
	"time"
)

// Kind selects the message template family for a notification.
type Kind string

const (
	KindPayment Kind = "payment"
	KindTopUp   Kind = "topup"
	KindWelcome Kind = "welcome"
)

// Payload is the structured notification content. Both the SMS text and the
// email template variables are rendered from it, so the two channels cannot
// carry mismatched amounts or balances.
type Payload struct {
	CardUID   string `json:"cardUID"`
	FirstName string `json:"firstName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`

	// TransactionID is the rider-facing reference, "{cardUID}-{epochMillis}".
	TransactionID   string    `json:"transactionID"`
	TransactionDate time.Time `json:"transactionDate"`

	Amount          int64  `json:"amount"`
	PreviousBalance int64  `json:"previousBalance"`
	NewBalance      int64  `json:"newBalance"`
	Currency        string `json:"currency"`

	StatusTitle   string `json:"statusTitle"`
	StatusMessage string `json:"statusMessage"`

	// Failed marks an unsuccessful payment; Reason carries the short
	// rider-facing explanation ("Low balance. Minimum required: 500 UGX").
	Failed bool   `json:"failed,omitempty"`
	Reason string `json:"reason,omitempty"`

	// Route endpoints, set on successful payments only.
	Departure   string `json:"departure,omitempty"`
	Destination string `json:"destination,omitempty"`

	// Password is set on welcome notifications only.
	Password string `json:"password,omitempty"`
}

// TransactionID formats the rider-facing transaction reference.
func TransactionID(cardUID string, at time.Time) string {
	return fmt.Sprintf("%s-%d", cardUID, at.UnixMilli())
}

// SMSText renders the single-channel text message for a notification.
func SMSText(kind Kind, p Payload) string {
	switch kind {
	case KindPayment:
		if p.Failed {
			return fmt.Sprintf(
				"FareFlow Payment Unsuccessful\n%s\nThank you for using FareFlow",
				p.Reason,
			)
		}
		return fmt.Sprintf(
			"FareFlow Payment Successful\n\nA fare of %d %s has been deducted from your account\nRoute: %s to %s\nYour new balance is %d %s.\n\nThank you for riding with us.\nThank you for using FareFlow",
			p.Amount, p.Currency, p.Departure, p.Destination, p.NewBalance, p.Currency,
		)
	case KindTopUp:
		return fmt.Sprintf(
			"\n------\nFareFlow TopUp Successful\n------\nHello %s, Your FareFlow account %s has been topped up with %d %s.\nNew Balance: %d %s.\nThank you for using FareFlow...",
			p.FirstName, p.CardUID, p.Amount, p.Currency, p.NewBalance, p.Currency,
		)
	case KindWelcome:
		return fmt.Sprintf(
			"Hello %s,\nThank you for registering on FareFlow.\nEmail: %s\nCardUID: %s\nPassword: %s",
			p.FirstName, p.Email, p.CardUID, p.Password,
		)
	default:
		return p.StatusMessage
	}
}

// EmailParams renders the EmailJS template variables for a notification.
func EmailParams(kind Kind, p Payload) map[string]any {
	if kind == KindWelcome {
		return map[string]any{
			"to_email":   p.Email,
			"subject":    "Welcome to FareFlow",
			"message":    SMSText(KindWelcome, p),
			"email":      p.Email,
			"first_name": p.FirstName,
			"card_uid":   p.CardUID,
			"password":   p.Password,
		}
	}
	return map[string]any{
		"first_name":       p.FirstName,
		"transaction_id":   p.TransactionID,
		"transaction_date": p.TransactionDate.Format("1/2/2006, 3:04:05 PM"),
		"card_uid":         p.CardUID,
		"fare_amount":      p.Amount,
		"previous_balance": p.PreviousBalance,
		"current_balance":  p.NewBalance,
		"email":            p.Email,
		"status_title":     p.StatusTitle,
		"status_message":   p.StatusMessage,
	}
}
