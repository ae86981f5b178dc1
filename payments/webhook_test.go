package payments

import (
	"testing"
	"time"

	"github.com/stripe/stripe-go/v81/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, payload, secret string) *webhook.SignedPayload {
	t.Helper()
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    secret,
		Timestamp: time.Now(),
	})
}

const succeededPayload = `{
	"id": "evt_1", "object": "event", "type": "payment_intent.succeeded",
	"data": {"object": {"id": "pi_42", "object": "payment_intent", "amount": 1600,
		"metadata": {"purpose": "tickets"}}}
}`

func TestParseWebhook_Succeeded(t *testing.T) {
	sp := signed(t, succeededPayload, "whsec_test")

	ev, err := ParseWebhook(sp.Payload, sp.Header, "whsec_test")
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.True(t, ev.Succeeded())
	assert.Equal(t, "pi_42", ev.IntentID)
	assert.Equal(t, PurposeTickets, ev.Purpose)
	assert.Equal(t, int64(1600), ev.Amount)
}

func TestParseWebhook_BadSignature(t *testing.T) {
	sp := signed(t, succeededPayload, "whsec_other")

	_, err := ParseWebhook(sp.Payload, sp.Header, "whsec_test")
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestParseWebhook_IgnoresOtherEvents(t *testing.T) {
	sp := signed(t, `{"id": "evt_2", "object": "event", "type": "customer.created", "data": {"object": {"id": "cus_1"}}}`, "whsec_test")

	ev, err := ParseWebhook(sp.Payload, sp.Header, "whsec_test")
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestParseWebhook_CanceledIsFailed(t *testing.T) {
	payload := `{
	"id": "evt_3", "object": "event", "type": "payment_intent.canceled",
	"data": {"object": {"id": "pi_43", "object": "payment_intent", "metadata": {"purpose": "tickets"}}}
}`
	sp := signed(t, payload, "whsec_test")

	ev, err := ParseWebhook(sp.Payload, sp.Header, "whsec_test")
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.True(t, ev.Failed())
	assert.False(t, ev.Succeeded())
	assert.Equal(t, "pi_43", ev.IntentID)
}
