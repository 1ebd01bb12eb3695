package provider

import (
	"testing"
	"time"

	"sms-campaign-engine/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestForTypeSelection(t *testing.T) {
	r := NewRegistry(Options{MockLatency: time.Millisecond})

	assert.Same(t, r.twilio, r.ForType(domain.ProviderTwilio))
	assert.Same(t, r.textbee, r.ForType(domain.ProviderTextBee))
	assert.Same(t, r.mock, r.ForType(domain.ProviderMock))
	assert.Same(t, r.mock, r.ForType("unknown"))
	assert.Same(t, r.mock, r.ForType(""))
}
