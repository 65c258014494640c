package stripe

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

func TestNewClientValidatesKeyAgainstEnvironment(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.StripeConfig
		wantEnv string
		wantErr bool
	}{
		{name: "test key in test env", cfg: config.StripeConfig{APIKey: "sk_test_123", Secret: "whsec_1", Env: "test"}, wantEnv: testEnv},
		{name: "restricted live key", cfg: config.StripeConfig{APIKey: "rk_live_123", Secret: "whsec_1", Env: "LIVE"}, wantEnv: liveEnv},
		{name: "blank env defaults to test", cfg: config.StripeConfig{APIKey: "sk_test_123", Secret: "whsec_1"}, wantEnv: testEnv},
		{name: "live key in test env", cfg: config.StripeConfig{APIKey: "sk_live_123", Secret: "whsec_1", Env: "test"}, wantErr: true},
		{name: "publishable key", cfg: config.StripeConfig{APIKey: "pk_test_123", Secret: "whsec_1", Env: "test"}, wantErr: true},
		{name: "unknown env", cfg: config.StripeConfig{APIKey: "sk_test_123", Secret: "whsec_1", Env: "staging"}, wantErr: true},
		{name: "missing key", cfg: config.StripeConfig{Secret: "whsec_1"}, wantErr: true},
		{name: "missing secret", cfg: config.StripeConfig{APIKey: "sk_test_123"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(context.Background(), tt.cfg, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantEnv, client.Environment())
			assert.Equal(t, webhook.DefaultTolerance, client.tolerance)
		})
	}
}

func TestVerifyEvent(t *testing.T) {
	client, err := NewClient(context.Background(), config.StripeConfig{
		APIKey: "sk_test_123",
		Secret: "whsec_verify",
	}, nil)
	require.NoError(t, err)

	payload, err := json.Marshal(map[string]any{
		"id":          "evt_1",
		"object":      "event",
		"type":        "checkout.session.completed",
		"api_version": "2020-08-27",
		"data":        map[string]any{"object": map[string]any{"id": "cs_test_1", "object": "checkout.session"}},
	})
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_verify",
		Timestamp: time.Now(),
	})
	event, err := client.VerifyEvent(signed.Payload, signed.Header)
	require.NoError(t, err)
	assert.Equal(t, stripe.EventTypeCheckoutSessionCompleted, event.Type)

	stale := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_verify",
		Timestamp: time.Now().Add(-time.Hour),
	})
	_, err = client.VerifyEvent(stale.Payload, stale.Header)
	assert.Error(t, err)

	forged := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_other",
		Timestamp: time.Now(),
	})
	_, err = client.VerifyEvent(forged.Payload, forged.Header)
	assert.Error(t, err)
}

func TestNilClient(t *testing.T) {
	var client *Client
	assert.Empty(t, client.Environment())
	_, err := client.VerifyEvent([]byte(`{}`), "t=1,v1=x")
	assert.ErrorIs(t, err, errSecretRequired)
}
