// Package payments creates payment intents for membership sign-ups and
// ticket purchases. The browser confirms the intent with the returned
// client secret; this package never sees card details.
package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/paymentintent"
	"go.uber.org/zap"

	"filmsociety/api/logger"
	"filmsociety/api/metrics"
)

var (
	ErrNotConfigured = errors.New("payments secret key not configured")
	ErrInvalidAmount = errors.New("payment amount must be positive")
)

const (
	PurposeMembership = "membership"
	PurposeTickets    = "tickets"
)

type Config struct {
	SecretKey string
	Currency  string
	// BaseURL overrides the provider API host, e.g. for tests.
	BaseURL string
}

type IntentRequest struct {
	AmountPence int64
	Purpose     string
	Email       string
	Description string
	Metadata    map[string]string
}

type Intent struct {
	ID           string
	ClientSecret string
	AmountPence  int64
	Currency     string
	Status       string
}

// Creator is what the membership and ticket handlers depend on.
type Creator interface {
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error)
}

type Client struct {
	currency string
	intents  *paymentintent.Client
	cb       *gobreaker.CircuitBreaker[*stripe.PaymentIntent]
	logger   *zap.Logger
}

func New(cfg Config, l *zap.Logger) *Client {
	if cfg.Currency == "" {
		cfg.Currency = string(stripe.CurrencyGBP)
	}
	log := logger.OrNop(l).Named("payments")

	backendConfig := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: 15 * time.Second},
		MaxNetworkRetries: stripe.Int64(1),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	if cfg.BaseURL != "" {
		backendConfig.URL = stripe.String(cfg.BaseURL)
	}

	cb := gobreaker.NewCircuitBreaker[*stripe.PaymentIntent](gobreaker.Settings{
		Name:        "payments-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		// Card and validation errors are the customer's, not an outage.
		IsSuccessful: func(err error) bool {
			var se *stripe.Error
			if errors.As(err, &se) {
				return se.HTTPStatusCode < http.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state transition",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	var intents *paymentintent.Client
	if cfg.SecretKey != "" {
		intents = &paymentintent.Client{
			B:   stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig),
			Key: cfg.SecretKey,
		}
	}

	return &Client{
		currency: cfg.Currency,
		intents:  intents,
		cb:       cb,
		logger:   log,
	}
}

func (c *Client) Configured() bool {
	return c.intents != nil
}

// CreatePaymentIntent asks the provider for an intent covering req.AmountPence.
func (c *Client) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if req.AmountPence <= 0 {
		return nil, ErrInvalidAmount
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountPence),
		Currency: stripe.String(c.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if req.Email != "" {
		params.ReceiptEmail = stripe.String(req.Email)
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	params.AddMetadata("purpose", req.Purpose)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := c.cb.Execute(func() (*stripe.PaymentIntent, error) {
		return c.intents.New(params)
	})
	if err != nil {
		outcome := "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = "open"
		}
		metrics.PaymentIntents.WithLabelValues(req.Purpose, outcome).Inc()
		c.logger.Error("failed to create payment intent",
			zap.String("purpose", req.Purpose),
			zap.Int64("amount", req.AmountPence),
			zap.Error(err),
		)
		return nil, fmt.Errorf("payments: failed to create intent: %w", err)
	}

	metrics.PaymentIntents.WithLabelValues(req.Purpose, "ok").Inc()
	c.logger.Info("created payment intent",
		zap.String("purpose", req.Purpose),
		zap.String("intent_id", pi.ID),
		zap.Int64("amount", pi.Amount),
	)

	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountPence:  pi.Amount,
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
	}, nil
}

var _ Creator = (*Client)(nil)
