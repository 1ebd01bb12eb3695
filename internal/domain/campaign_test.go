package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCampaignStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to CampaignStatus
		ok       bool
	}{
		{CampaignPending, CampaignSending, true},
		{CampaignPending, CampaignPaused, true},
		{CampaignPending, CampaignCompleted, false},
		{CampaignPending, CampaignPending, false},
		{CampaignSending, CampaignCompleted, true},
		{CampaignSending, CampaignPaused, true},
		{CampaignSending, CampaignPending, false},
		{CampaignPaused, CampaignPending, true},
		{CampaignPaused, CampaignSending, false},
		{CampaignPaused, CampaignCompleted, false},
		{CampaignCompleted, CampaignPending, false},
		{CampaignCompleted, CampaignSending, false},
		{CampaignCompleted, CampaignPaused, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestProviderConfigRoundTrip(t *testing.T) {
	cfg := ProviderConfig{"apiKey": "k", "deviceId": "d"}

	v, err := cfg.Value()
	require.NoError(t, err)

	var got ProviderConfig
	require.NoError(t, got.Scan(v))
	assert.Equal(t, cfg, got)
}

func TestProviderConfigScanNil(t *testing.T) {
	var got ProviderConfig
	require.NoError(t, got.Scan(nil))
	assert.Nil(t, got)
}
