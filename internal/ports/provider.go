package ports

import (
	"context"

	"sms-campaign-engine/internal/domain"
)

// Outcome is the gateway's verdict on a single send attempt. Ordinary
// delivery failures (auth errors, rate limits, invalid numbers) are
// reported with Success=false and Error set; only transport-level faults
// surface as a Go error from Send. Drivers treat both the same way.
type Outcome struct {
	Success           bool
	ProviderMessageID string // Opaque ID assigned by the provider; may be empty
	Error             string
}

// ProviderGateway abstracts an external SMS provider. Implementations
// must bound their own transport timeouts; the drivers impose none.
type ProviderGateway interface {
	Send(ctx context.Context, to, body string, cfg domain.ProviderConfig) (Outcome, error)
}
