package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pacsforge/dicomnet/config"
)

func TestDefault(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, uint32(16384), cfg.MaxPDUSize)
	assert.Equal(t, 30*time.Second, cfg.ConnectTimeout.Std())
	assert.Equal(t, 300*time.Second, cfg.IdleTimeout.Std())
	assert.Equal(t, 5, cfg.FailureThreshold)
	assert.Equal(t, 2, cfg.SuccessThreshold)
	assert.Equal(t, 60*time.Second, cfg.FailureWindow.Std())
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 10, cfg.MaxRetryAttempts)
	assert.Equal(t, time.Hour, cfg.CompletedRetentionDuration.Std())
	assert.Equal(t, 1, cfg.MaxConcurrentTransfers)
	assert.True(t, cfg.PriorityOrdering)
	assert.True(t, cfg.AutoRetryOnConnectivityRestored)
}

func TestParse_Overrides(t *testing.T) {
	cfg, err := config.Parse([]byte(`
max_pdu_size: 32768
connect_timeout: 10s
failure_threshold: 7
idle_timeout: 120
priority_ordering: false
`))
	require.NoError(t, err)

	assert.Equal(t, uint32(32768), cfg.MaxPDUSize)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout.Std())
	assert.Equal(t, 7, cfg.FailureThreshold)
	// Bare numbers are seconds.
	assert.Equal(t, 120*time.Second, cfg.IdleTimeout.Std())
	assert.False(t, cfg.PriorityOrdering)
	// Untouched values keep their defaults.
	assert.Equal(t, 3, cfg.MaxAttempts)
}

func TestParse_InvalidRejected(t *testing.T) {
	_, err := config.Parse([]byte("max_pdu_size: 10\n"))
	require.Error(t, err)

	_, err = config.Parse([]byte("max_attempts: 0\n"))
	require.Error(t, err)

	_, err = config.Parse([]byte("connect_timeout: banana\n"))
	require.Error(t, err)
}

func TestAdapters(t *testing.T) {
	cfg := config.Default()

	timeouts := cfg.Timeouts()
	assert.Equal(t, 30*time.Second, timeouts.Connect)

	breaker := cfg.BreakerConfig()
	assert.Equal(t, 5, breaker.FailureThreshold)
	assert.Equal(t, 60*time.Second, breaker.FailureWindow)

	retry := cfg.RetryPolicy()
	assert.Equal(t, 3, retry.MaxAttempts)
	assert.Equal(t, time.Second, retry.InitialDelay)

	qc := cfg.QueueConfig()
	assert.Equal(t, 10, qc.MaxRetryAttempts)
	assert.True(t, qc.PriorityOrdering)
}
