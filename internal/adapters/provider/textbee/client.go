// Package textbee implements ports.ProviderGateway against the TextBee
// Android-gateway API.
package textbee

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sms-campaign-engine/internal/domain"
	"sms-campaign-engine/internal/ports"
)

// Credential keys expected in the campaign's provider config.
const (
	KeyAPIKey   = "apiKey"
	KeyDeviceID = "deviceId"
)

// Client posts JSON send requests to a TextBee device endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client against the public TextBee API. A non-empty
// baseURL overrides the target.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://api.textbee.dev"
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type sendRequest struct {
	Recipients []string `json:"recipients"`
	Message    string   `json:"message"`
}

type sendResponse struct {
	Message string `json:"message"`
	Data    struct {
		ID string `json:"id"`
	} `json:"data"`
}

// Send submits one SMS through the configured device. The provider may
// accept a message without returning an ID; the outcome then carries an
// empty ProviderMessageID and the driver stores a placeholder.
func (c *Client) Send(ctx context.Context, to, body string, cfg domain.ProviderConfig) (ports.Outcome, error) {
	apiKey, deviceID := cfg[KeyAPIKey], cfg[KeyDeviceID]
	if apiKey == "" || deviceID == "" {
		return ports.Outcome{Success: false, Error: "missing TextBee API key or device ID"}, nil
	}

	payload, err := json.Marshal(sendRequest{Recipients: []string{to}, Message: body})
	if err != nil {
		return ports.Outcome{}, fmt.Errorf("marshal send request: %w", err)
	}

	endpoint := c.baseURL + "/api/v1/gateway/devices/" + url.PathEscape(deviceID) + "/send-sms"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return ports.Outcome{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ports.Outcome{}, fmt.Errorf("textbee request: %w", err)
	}
	defer resp.Body.Close()

	var sr sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil && resp.StatusCode < 300 {
		return ports.Outcome{}, fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode >= 300 {
		errText := sr.Message
		if errText == "" {
			errText = resp.Status
		}
		return ports.Outcome{Success: false, Error: errText}, nil
	}

	return ports.Outcome{Success: true, ProviderMessageID: sr.Data.ID}, nil
}
