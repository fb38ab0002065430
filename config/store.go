package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/mbright-io/guardrail/breaker"
	"github.com/mbright-io/guardrail/bulkhead"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.success_threshold", 3)
	v.SetDefault("breaker.open_timeout", "30s")
	v.SetDefault("breaker.failure_reset_window", "60s")

	v.SetDefault("bulkhead.max_concurrent", 10)
	v.SetDefault("bulkhead.max_waiting", 50)
	v.SetDefault("bulkhead.checkout_timeout", "5s")
	v.SetDefault("bulkhead.lease_ttl", "0s")

	v.SetDefault("retry.max_attempts", 5)
	v.SetDefault("retry.base_backoff", "100ms")
	v.SetDefault("retry.max_backoff", "30s")
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter", true)
	v.SetDefault("retry.adaptive", false)

	v.SetDefault("health.check_interval", "30s")
}

// Store loads settings once and serves them to the rest of the process.
// The core packages never read files or environment themselves; everything
// flows through a Store.
type Store struct {
	v *viper.Viper

	mu       sync.RWMutex
	settings Settings
	watchers []func(Settings)
	watching bool
}

// Load builds a store from defaults, the optional config file, and
// GUARDRAIL_* environment variables (file overrides defaults, environment
// overrides both). An empty file path skips the file.
func Load(file string) (*Store, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("GUARDRAIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", file, err)
		}
	}

	settings, err := unmarshal(v)
	if err != nil {
		return nil, err
	}

	return &Store{v: v, settings: settings}, nil
}

func unmarshal(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("config: invalid: %w", err)
	}
	return s, nil
}

// Settings returns the current settings.
func (st *Store) Settings() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.settings
}

// ForBreaker returns the named breaker's current settings.
func (st *Store) ForBreaker(name string) BreakerSettings {
	return st.Settings().ForBreaker(name)
}

// ForBulkhead returns the named pool's current settings.
func (st *Store) ForBulkhead(name string) BulkheadSettings {
	return st.Settings().ForBulkhead(name)
}

// ForRetry returns the named operation's current retry settings.
func (st *Store) ForRetry(name string) RetrySettings {
	return st.Settings().ForRetry(name)
}

// Health returns the monitor settings.
func (st *Store) Health() HealthSettings {
	return st.Settings().Health
}

// Watch registers fn to run with the new settings after every successful
// config file reload, and starts watching the file on first use. A reload
// that fails to parse or validate is discarded; the previous settings stay
// in effect and no watcher runs.
func (st *Store) Watch(fn func(Settings)) {
	st.mu.Lock()
	st.watchers = append(st.watchers, fn)
	start := !st.watching
	st.watching = true
	st.mu.Unlock()

	if start {
		st.v.OnConfigChange(func(fsnotify.Event) {
			st.reload()
		})
		st.v.WatchConfig()
	}
}

func (st *Store) reload() {
	settings, err := unmarshal(st.v)
	if err != nil {
		return
	}

	st.mu.Lock()
	st.settings = settings
	watchers := make([]func(Settings), len(st.watchers))
	copy(watchers, st.watchers)
	st.mu.Unlock()

	for _, fn := range watchers {
		fn(settings)
	}
}

// Push applies the current per-name overrides to already-created instances
// in the registries. Combined with Watch, this retunes a live process:
//
//	store.Watch(func(config.Settings) {
//	    store.Push(breakers, pools)
//	})
func (st *Store) Push(breakers *breaker.Registry, pools *bulkhead.Registry) {
	s := st.Settings()
	for name := range s.Breakers {
		breakers.SetLimits(name, s.ForBreaker(name).Limits())
	}
	for name := range s.Bulkheads {
		pools.SetLimits(name, s.ForBulkhead(name).Limits())
	}
}
