package config

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/mbright-io/guardrail/breaker"
	"github.com/mbright-io/guardrail/bulkhead"
	"github.com/mbright-io/guardrail/retry"
)

// BreakerSettings are the tunables for one circuit breaker.
type BreakerSettings struct {
	FailureThreshold   int           `mapstructure:"failure_threshold"`
	SuccessThreshold   int           `mapstructure:"success_threshold"`
	OpenTimeout        time.Duration `mapstructure:"open_timeout"`
	FailureResetWindow time.Duration `mapstructure:"failure_reset_window"`
}

// Validate checks the settings.
func (b BreakerSettings) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.FailureThreshold, validation.Required, validation.Min(1)),
		validation.Field(&b.SuccessThreshold, validation.Required, validation.Min(1)),
		validation.Field(&b.OpenTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&b.FailureResetWindow, validation.Required, validation.Min(time.Millisecond)),
	)
}

// Config converts the settings into a breaker config.
func (b BreakerSettings) Config() breaker.Config {
	return breaker.Config{
		FailureThreshold:   b.FailureThreshold,
		SuccessThreshold:   b.SuccessThreshold,
		OpenTimeout:        b.OpenTimeout,
		FailureResetWindow: b.FailureResetWindow,
	}
}

// Limits converts the settings into hot-reloadable breaker limits.
func (b BreakerSettings) Limits() breaker.Limits {
	return breaker.Limits{
		FailureThreshold:   b.FailureThreshold,
		SuccessThreshold:   b.SuccessThreshold,
		OpenTimeout:        b.OpenTimeout,
		FailureResetWindow: b.FailureResetWindow,
	}
}

func (b BreakerSettings) override(o BreakerSettings) BreakerSettings {
	if o.FailureThreshold != 0 {
		b.FailureThreshold = o.FailureThreshold
	}
	if o.SuccessThreshold != 0 {
		b.SuccessThreshold = o.SuccessThreshold
	}
	if o.OpenTimeout != 0 {
		b.OpenTimeout = o.OpenTimeout
	}
	if o.FailureResetWindow != 0 {
		b.FailureResetWindow = o.FailureResetWindow
	}
	return b
}

// BulkheadSettings are the tunables for one slot pool.
type BulkheadSettings struct {
	MaxConcurrent   int           `mapstructure:"max_concurrent"`
	MaxWaiting      int           `mapstructure:"max_waiting"`
	CheckoutTimeout time.Duration `mapstructure:"checkout_timeout"`
	LeaseTTL        time.Duration `mapstructure:"lease_ttl"`
}

// Validate checks the settings. LeaseTTL may be zero: that disables the
// janitor.
func (b BulkheadSettings) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.MaxConcurrent, validation.Required, validation.Min(1)),
		validation.Field(&b.MaxWaiting, validation.Required, validation.Min(1)),
		validation.Field(&b.CheckoutTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&b.LeaseTTL, validation.Min(time.Duration(0))),
	)
}

// Config converts the settings into a bulkhead config.
func (b BulkheadSettings) Config() bulkhead.Config {
	return bulkhead.Config{
		MaxConcurrent:   b.MaxConcurrent,
		MaxWaiting:      b.MaxWaiting,
		CheckoutTimeout: b.CheckoutTimeout,
		LeaseTTL:        b.LeaseTTL,
	}
}

// Limits converts the settings into hot-reloadable bulkhead limits.
func (b BulkheadSettings) Limits() bulkhead.Limits {
	return bulkhead.Limits{
		MaxWaiting:      b.MaxWaiting,
		CheckoutTimeout: b.CheckoutTimeout,
	}
}

func (b BulkheadSettings) override(o BulkheadSettings) BulkheadSettings {
	if o.MaxConcurrent != 0 {
		b.MaxConcurrent = o.MaxConcurrent
	}
	if o.MaxWaiting != 0 {
		b.MaxWaiting = o.MaxWaiting
	}
	if o.CheckoutTimeout != 0 {
		b.CheckoutTimeout = o.CheckoutTimeout
	}
	if o.LeaseTTL != 0 {
		b.LeaseTTL = o.LeaseTTL
	}
	return b
}

// RetrySettings are the tunables for one retry policy.
type RetrySettings struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseBackoff time.Duration `mapstructure:"base_backoff"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff"`
	Multiplier  float64       `mapstructure:"multiplier"`
	Jitter      bool          `mapstructure:"jitter"`
	Adaptive    bool          `mapstructure:"adaptive"`
}

// Validate checks the settings.
func (r RetrySettings) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.MaxAttempts, validation.Required, validation.Min(1)),
		validation.Field(&r.BaseBackoff, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&r.MaxBackoff, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&r.Multiplier, validation.Required, validation.Min(1.0)),
	)
}

// Policy converts the settings into a retry policy for the named operation.
func (r RetrySettings) Policy(name string) retry.Policy {
	return retry.Policy{
		Name:          name,
		MaxAttempts:   r.MaxAttempts,
		BaseBackoff:   r.BaseBackoff,
		MaxBackoff:    r.MaxBackoff,
		Multiplier:    r.Multiplier,
		DisableJitter: !r.Jitter,
		Adaptive:      r.Adaptive,
	}
}

func (r RetrySettings) override(o RetrySettings) RetrySettings {
	if o.MaxAttempts != 0 {
		r.MaxAttempts = o.MaxAttempts
	}
	if o.BaseBackoff != 0 {
		r.BaseBackoff = o.BaseBackoff
	}
	if o.MaxBackoff != 0 {
		r.MaxBackoff = o.MaxBackoff
	}
	if o.Multiplier != 0 {
		r.Multiplier = o.Multiplier
	}
	return r
}

// HealthSettings are the monitor tunables.
type HealthSettings struct {
	CheckInterval time.Duration `mapstructure:"check_interval"`
}

// Validate checks the settings.
func (h HealthSettings) Validate() error {
	return validation.ValidateStruct(&h,
		validation.Field(&h.CheckInterval, validation.Required, validation.Min(time.Millisecond)),
	)
}

// Settings is the full configuration: one set of defaults per concern plus
// per-name override maps. An override only needs the fields it changes;
// the rest fall back to the section defaults.
type Settings struct {
	Breaker  BreakerSettings  `mapstructure:"breaker"`
	Bulkhead BulkheadSettings `mapstructure:"bulkhead"`
	Retry    RetrySettings    `mapstructure:"retry"`
	Health   HealthSettings   `mapstructure:"health"`

	Breakers  map[string]BreakerSettings  `mapstructure:"breakers"`
	Bulkheads map[string]BulkheadSettings `mapstructure:"bulkheads"`
	Retries   map[string]RetrySettings    `mapstructure:"retries"`
}

// Validate checks the section defaults and every merged per-name override.
func (s Settings) Validate() error {
	if err := s.Breaker.Validate(); err != nil {
		return fieldError("breaker", err)
	}
	if err := s.Bulkhead.Validate(); err != nil {
		return fieldError("bulkhead", err)
	}
	if err := s.Retry.Validate(); err != nil {
		return fieldError("retry", err)
	}
	if err := s.Health.Validate(); err != nil {
		return fieldError("health", err)
	}
	for name, o := range s.Breakers {
		if err := s.Breaker.override(o).Validate(); err != nil {
			return fieldError("breakers."+name, err)
		}
	}
	for name, o := range s.Bulkheads {
		if err := s.Bulkhead.override(o).Validate(); err != nil {
			return fieldError("bulkheads."+name, err)
		}
	}
	for name, o := range s.Retries {
		if err := s.Retry.override(o).Validate(); err != nil {
			return fieldError("retries."+name, err)
		}
	}
	return nil
}

func fieldError(field string, err error) error {
	return validation.Errors{field: err}
}

// ForBreaker returns the named breaker's settings: the defaults with the
// name's override, if any, merged on top.
func (s Settings) ForBreaker(name string) BreakerSettings {
	if o, ok := s.Breakers[name]; ok {
		return s.Breaker.override(o)
	}
	return s.Breaker
}

// ForBulkhead returns the named pool's settings.
func (s Settings) ForBulkhead(name string) BulkheadSettings {
	if o, ok := s.Bulkheads[name]; ok {
		return s.Bulkhead.override(o)
	}
	return s.Bulkhead
}

// ForRetry returns the named operation's retry settings.
func (s Settings) ForRetry(name string) RetrySettings {
	if o, ok := s.Retries[name]; ok {
		return s.Retry.override(o)
	}
	return s.Retry
}
