package config

import (
	"github.com/pacsforge/dicomnet/dimse/dul"
	"github.com/pacsforge/dicomnet/queue"
	"github.com/pacsforge/dicomnet/reliability"
)

// Timeouts maps the configuration onto connection timeouts.
func (c Config) Timeouts() dul.Timeouts {
	return dul.Timeouts{
		Connect:     c.ConnectTimeout.Std(),
		Read:        c.ReadTimeout.Std(),
		Write:       c.WriteTimeout.Std(),
		Association: c.AssociationTimeout.Std(),
	}
}

// BreakerConfig maps the configuration onto circuit breaker settings.
func (c Config) BreakerConfig() reliability.BreakerConfig {
	return reliability.BreakerConfig{
		FailureThreshold: c.FailureThreshold,
		SuccessThreshold: c.SuccessThreshold,
		ResetTimeout:     c.ResetTimeout.Std(),
		FailureWindow:    c.FailureWindow.Std(),
	}
}

// RetryPolicy maps the configuration onto the default retry policy.
func (c Config) RetryPolicy() reliability.RetryPolicy {
	return reliability.RetryPolicy{
		MaxAttempts:       c.MaxAttempts,
		InitialDelay:      c.InitialDelay.Std(),
		MaxDelay:          c.MaxDelay.Std(),
		Strategy:          reliability.ExponentialStrategy{Factor: 2},
		UseCircuitBreaker: true,
	}
}

// PoolConfig maps the configuration onto connection pool settings.
func (c Config) PoolConfig() reliability.PoolConfig {
	return reliability.PoolConfig{
		MaxConnections: c.MaxConnections,
		MinConnections: c.MinConnections,
		AcquireTimeout: c.AcquireTimeout.Std(),
		IdleTimeout:    c.IdleTimeout.Std(),
	}
}

// QueueConfig maps the configuration onto store-and-forward queue settings.
func (c Config) QueueConfig() queue.Config {
	qc := queue.DefaultConfig()
	qc.MaxQueueItems = c.MaxQueueItems
	qc.MaxQueueSizeBytes = c.MaxQueueSizeBytes
	qc.MaxRetryAttempts = c.MaxRetryAttempts
	qc.MaxConcurrentTransfers = c.MaxConcurrentTransfers
	qc.PriorityOrdering = c.PriorityOrdering
	qc.CompletedRetentionDuration = c.CompletedRetentionDuration.Std()
	return qc
}
