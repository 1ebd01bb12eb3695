package textbee

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"sms-campaign-engine/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() domain.ProviderConfig {
	return domain.ProviderConfig{KeyAPIKey: "key-1", KeyDeviceID: "device-1"}
}

func TestSendSuccess(t *testing.T) {
	var gotPath, gotKey string
	var gotReq sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"tb-7"}}`))
	}))
	defer srv.Close()

	out, err := New(srv.URL).Send(context.Background(), "+15551234567", "hello", validConfig())
	require.NoError(t, err)

	assert.True(t, out.Success)
	assert.Equal(t, "tb-7", out.ProviderMessageID)
	assert.Equal(t, "/api/v1/gateway/devices/device-1/send-sms", gotPath)
	assert.Equal(t, "key-1", gotKey)
	assert.Equal(t, []string{"+15551234567"}, gotReq.Recipients)
	assert.Equal(t, "hello", gotReq.Message)
}

func TestSendSuccessWithoutID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"message":"queued"}`))
	}))
	defer srv.Close()

	out, err := New(srv.URL).Send(context.Background(), "+15551234567", "hello", validConfig())
	require.NoError(t, err)

	// The driver substitutes a placeholder for the empty identifier.
	assert.True(t, out.Success)
	assert.Empty(t, out.ProviderMessageID)
}

func TestSendAPIErrorIsOutcomeNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"invalid api key"}`))
	}))
	defer srv.Close()

	out, err := New(srv.URL).Send(context.Background(), "+15551234567", "hello", validConfig())
	require.NoError(t, err)

	assert.False(t, out.Success)
	assert.Equal(t, "invalid api key", out.Error)
}

func TestSendMissingCredentials(t *testing.T) {
	out, err := New("http://unused").Send(context.Background(), "+15551234567", "hello", domain.ProviderConfig{KeyAPIKey: "k"})
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, "missing TextBee API key or device ID", out.Error)
}
