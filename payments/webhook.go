package payments

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
)

var ErrBadSignature = errors.New("payments: webhook signature verification failed")

// IntentEvent is the part of a provider webhook the site acts on.
type IntentEvent struct {
	Type     stripe.EventType
	IntentID string
	Purpose  string
	Amount   int64
}

// Succeeded reports whether the intent was paid.
func (e *IntentEvent) Succeeded() bool {
	return e.Type == stripe.EventTypePaymentIntentSucceeded
}

// Failed reports whether the intent failed or was canceled, so anything
// held for it can be released.
func (e *IntentEvent) Failed() bool {
	return e.Type == stripe.EventTypePaymentIntentPaymentFailed || e.Type == stripe.EventTypePaymentIntentCanceled
}

// ParseWebhook verifies the signature header against secret and extracts
// the payment intent. Events that do not carry an intent return nil, nil.
func ParseWebhook(payload []byte, signature, secret string) (*IntentEvent, error) {
	if secret == "" {
		return nil, errors.New("payments: webhook secret not configured")
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded, stripe.EventTypePaymentIntentPaymentFailed, stripe.EventTypePaymentIntentCanceled:
	default:
		return nil, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("payments: decoding payment intent: %w", err)
	}
	return &IntentEvent{
		Type:     event.Type,
		IntentID: pi.ID,
		Purpose:  pi.Metadata["purpose"],
		Amount:   pi.Amount,
	}, nil
}
