package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, DefaultEndpoint, cfg.Endpoint)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 10*time.Second, cfg.FlushInterval)
	assert.Equal(t, 1000, cfg.MaxQueueSize)
	assert.Equal(t, 30*time.Minute, cfg.SessionTimeout)
	assert.True(t, cfg.FingerprintingEnabled)
	assert.True(t, cfg.PrivacyCompliant)
	assert.False(t, cfg.EnableDebug)
	assert.Equal(t, SinkHTTP, cfg.Sink)
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("TELEMETRY_BATCH_SIZE", "2")
	t.Setenv("TELEMETRY_FLUSH_INTERVAL", "250ms")
	t.Setenv("TELEMETRY_PRIVACY_COMPLIANT", "false")
	t.Setenv("TELEMETRY_SINK", " OTel ")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.FlushInterval)
	assert.False(t, cfg.PrivacyCompliant)
	assert.Equal(t, SinkOTel, cfg.Sink)
}

func TestParse_InvalidValue(t *testing.T) {
	t.Setenv("TELEMETRY_BATCH_SIZE", "lots")

	_, err := Parse()
	require.Error(t, err)
}

func TestNormalize_RepairsNonPositive(t *testing.T) {
	cfg := Config{BatchSize: -1, MaxQueueSize: 0, FlushInterval: -time.Second}
	cfg.Normalize()

	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
	assert.Equal(t, DefaultMaxQueueSize, cfg.MaxQueueSize)
	assert.Equal(t, DefaultFlushInterval, cfg.FlushInterval)
	assert.Equal(t, DefaultMaxStackLength, cfg.MaxStackLength)
	assert.Equal(t, DefaultPrivacyEndpoint, cfg.PrivacyEndpoint)
}

func TestParseConsent(t *testing.T) {
	got := ParseConsent("essential=true, analytics_consent=1,behavioral_analysis=no,broken,=true,x=maybe")
	assert.Equal(t, map[string]bool{
		"essential":           true,
		"analytics_consent":   true,
		"behavioral_analysis": false,
	}, got)
}
