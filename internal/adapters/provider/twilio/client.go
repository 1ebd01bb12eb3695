// Package twilio implements ports.ProviderGateway against the Twilio
// Messages API.
package twilio

import (
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
	KeyAccountSID = "accountSid"
	KeyAuthToken  = "authToken"
	KeyFromNumber = "fromNumber"
)

// Client posts form-encoded send requests to Twilio.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client against the public Twilio API. A non-empty baseURL
// overrides the target, which lets local runs point at a mock server.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://api.twilio.com"
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		// The core imposes no send timeout; the transport bound lives here.
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type sendResponse struct {
	Sid     string `json:"sid"`
	Message string `json:"message"`
}

// Send submits one SMS. Missing credentials and API-level rejections are
// reported as unsuccessful outcomes, not errors.
func (c *Client) Send(ctx context.Context, to, body string, cfg domain.ProviderConfig) (ports.Outcome, error) {
	sid, token, from := cfg[KeyAccountSID], cfg[KeyAuthToken], cfg[KeyFromNumber]
	if sid == "" || token == "" || from == "" {
		return ports.Outcome{Success: false, Error: "missing Twilio credentials"}, nil
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", from)
	form.Set("Body", body)

	endpoint := c.baseURL + "/2010-04-01/Accounts/" + url.PathEscape(sid) + "/Messages.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return ports.Outcome{}, fmt.Errorf("new request: %w", err)
	}
	req.SetBasicAuth(sid, token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ports.Outcome{}, fmt.Errorf("twilio request: %w", err)
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

	return ports.Outcome{Success: true, ProviderMessageID: sr.Sid}, nil
}
