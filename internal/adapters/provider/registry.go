// Package provider selects the gateway adapter for a campaign's
// configured provider type.
package provider

import (
	"time"

	"sms-campaign-engine/internal/adapters/provider/mock"
	"sms-campaign-engine/internal/adapters/provider/textbee"
	"sms-campaign-engine/internal/adapters/provider/twilio"
	"sms-campaign-engine/internal/domain"
	"sms-campaign-engine/internal/ports"
)

// Options tune the adapters; zero values pick the real public endpoints
// and a mock gateway with modest simulated latency.
type Options struct {
	TwilioBaseURL   string
	TextBeeBaseURL  string
	MockFailureRate float64
	MockLatency     time.Duration
}

// Registry resolves provider types to gateways. Adapters are constructed
// once and shared; all of them are safe for concurrent use.
type Registry struct {
	mock    ports.ProviderGateway
	twilio  ports.ProviderGateway
	textbee ports.ProviderGateway
}

// NewRegistry builds the adapter set.
func NewRegistry(opts Options) *Registry {
	latency := opts.MockLatency
	if latency == 0 {
		latency = 500 * time.Millisecond
	}
	return &Registry{
		mock:    mock.New(opts.MockFailureRate, latency),
		twilio:  twilio.New(opts.TwilioBaseURL),
		textbee: textbee.New(opts.TextBeeBaseURL),
	}
}

// ForType returns the gateway for a provider type. Unknown types fall
// back to the mock gateway, matching the submission default.
func (r *Registry) ForType(providerType string) ports.ProviderGateway {
	switch providerType {
	case domain.ProviderTwilio:
		return r.twilio
	case domain.ProviderTextBee:
		return r.textbee
	default:
		return r.mock
	}
}
