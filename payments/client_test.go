package payments

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePaymentIntent_FormEncodesRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "3000", r.PostForm.Get("amount"))
		assert.Equal(t, "gbp", r.PostForm.Get("currency"))
		assert.Equal(t, "membership", r.PostForm.Get("metadata[purpose]"))
		assert.Equal(t, "standard", r.PostForm.Get("metadata[tier]"))
		assert.Equal(t, "ada@example.org", r.PostForm.Get("receipt_email"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            "pi_123",
			"object":        "payment_intent",
			"amount":        3000,
			"currency":      "gbp",
			"client_secret": "pi_123_secret_abc",
			"status":        "requires_payment_method",
		})
	}))
	defer srv.Close()

	c := New(Config{SecretKey: "sk_test_123", BaseURL: srv.URL}, nil)
	intent, err := c.CreatePaymentIntent(context.Background(), IntentRequest{
		AmountPence: 3000,
		Purpose:     PurposeMembership,
		Email:       "ada@example.org",
		Metadata:    map[string]string{"tier": "standard"},
	})
	require.NoError(t, err)

	assert.Equal(t, "pi_123", intent.ID)
	assert.Equal(t, "pi_123_secret_abc", intent.ClientSecret)
	assert.Equal(t, int64(3000), intent.AmountPence)
	assert.Equal(t, "gbp", intent.Currency)
}

func TestCreatePaymentIntent_NotConfigured(t *testing.T) {
	c := New(Config{}, nil)
	assert.False(t, c.Configured())
	_, err := c.CreatePaymentIntent(context.Background(), IntentRequest{AmountPence: 100})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCreatePaymentIntent_RejectsNonPositiveAmount(t *testing.T) {
	c := New(Config{SecretKey: "sk_test_123", BaseURL: "http://127.0.0.1:1"}, nil)
	_, err := c.CreatePaymentIntent(context.Background(), IntentRequest{AmountPence: 0})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCreatePaymentIntent_CardErrorsDoNotTripBreaker(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"Amount must be at least 30 pence"}}`))
	}))
	defer srv.Close()

	c := New(Config{SecretKey: "sk_test_123", BaseURL: srv.URL}, nil)
	for i := 0; i < 5; i++ {
		_, err := c.CreatePaymentIntent(context.Background(), IntentRequest{AmountPence: 10, Purpose: PurposeTickets})
		require.Error(t, err)
	}
	assert.Equal(t, int32(5), atomic.LoadInt32(&hits))
}
