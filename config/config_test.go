package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mbright-io/guardrail/breaker"
	"github.com/mbright-io/guardrail/bulkhead"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guardrail.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	st, err := Load("")
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}

	s := st.Settings()
	if s.Breaker.FailureThreshold != 5 || s.Breaker.SuccessThreshold != 3 {
		t.Errorf("breaker thresholds = %d/%d, want 5/3",
			s.Breaker.FailureThreshold, s.Breaker.SuccessThreshold)
	}
	if s.Breaker.OpenTimeout != 30*time.Second || s.Breaker.FailureResetWindow != 60*time.Second {
		t.Errorf("breaker timings = %v/%v", s.Breaker.OpenTimeout, s.Breaker.FailureResetWindow)
	}
	if s.Bulkhead.MaxConcurrent != 10 || s.Bulkhead.MaxWaiting != 50 {
		t.Errorf("bulkhead sizes = %d/%d, want 10/50",
			s.Bulkhead.MaxConcurrent, s.Bulkhead.MaxWaiting)
	}
	if s.Bulkhead.CheckoutTimeout != 5*time.Second {
		t.Errorf("checkout timeout = %v, want 5s", s.Bulkhead.CheckoutTimeout)
	}
	if s.Retry.MaxAttempts != 5 || s.Retry.BaseBackoff != 100*time.Millisecond {
		t.Errorf("retry = %d/%v, want 5/100ms", s.Retry.MaxAttempts, s.Retry.BaseBackoff)
	}
	if s.Retry.MaxBackoff != 30*time.Second || s.Retry.Multiplier != 2.0 {
		t.Errorf("retry backoff = %v/%v", s.Retry.MaxBackoff, s.Retry.Multiplier)
	}
	if !s.Retry.Jitter {
		t.Error("jitter must default to on")
	}
	if s.Health.CheckInterval != 30*time.Second {
		t.Errorf("check interval = %v, want 30s", s.Health.CheckInterval)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
breaker:
  failure_threshold: 8
retry:
  jitter: false
breakers:
  payments:
    failure_threshold: 2
    open_timeout: 10s
`)

	st, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}

	if got := st.ForBreaker("search").FailureThreshold; got != 8 {
		t.Errorf("search threshold = %d, want section default 8", got)
	}

	// The override merges over the section defaults.
	payments := st.ForBreaker("payments")
	if payments.FailureThreshold != 2 || payments.OpenTimeout != 10*time.Second {
		t.Errorf("payments = %d/%v, want 2/10s",
			payments.FailureThreshold, payments.OpenTimeout)
	}
	if payments.SuccessThreshold != 3 {
		t.Errorf("payments success threshold = %d, want inherited 3", payments.SuccessThreshold)
	}

	if st.Settings().Retry.Jitter {
		t.Error("jitter = true, want file override off")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GUARDRAIL_BREAKER_FAILURE_THRESHOLD", "7")

	st, err := Load("")
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if got := st.Settings().Breaker.FailureThreshold; got != 7 {
		t.Errorf("failure threshold = %d, want 7 from environment", got)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"negative threshold", "breaker:\n  failure_threshold: -1\n"},
		{"multiplier below one", "retry:\n  multiplier: 0.5\n"},
		{"zero pool", "bulkhead:\n  max_concurrent: -3\n"},
		{"bad override", "breakers:\n  payments:\n    open_timeout: -5s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Error("Load() accepted invalid settings")
			}
		})
	}
}

func TestRetrySettings_Policy(t *testing.T) {
	p := RetrySettings{
		MaxAttempts: 4,
		BaseBackoff: 50 * time.Millisecond,
		MaxBackoff:  time.Second,
		Multiplier:  3,
		Jitter:      false,
		Adaptive:    true,
	}.Policy("publish")

	if p.Name != "publish" || p.MaxAttempts != 4 || !p.Adaptive {
		t.Errorf("policy = %+v", p)
	}
	if !p.DisableJitter {
		t.Error("jitter off must map to DisableJitter")
	}
}

func TestStore_Push(t *testing.T) {
	path := writeConfig(t, `
breakers:
  payments:
    failure_threshold: 2
bulkheads:
  db:
    max_waiting: 7
`)
	st, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}

	breakers := breaker.NewRegistry(breaker.Config{})
	pools := bulkhead.NewRegistry(bulkhead.Config{})
	defer pools.Close()
	breakers.Get("payments")
	pool := pools.Get("db")

	st.Push(breakers, pools)

	if got := breakers.Get("payments").Snapshot().FailureThreshold; got != 2 {
		t.Errorf("payments threshold = %d, want 2 after push", got)
	}
	if got := pool.Snapshot().MaxWaiting; got != 7 {
		t.Errorf("db max waiting = %d, want 7 after push", got)
	}
}

func TestStore_WatchReloads(t *testing.T) {
	path := writeConfig(t, "breaker:\n  failure_threshold: 5\n")
	st, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}

	reloaded := make(chan Settings, 1)
	st.Watch(func(s Settings) {
		select {
		case reloaded <- s:
		default:
		}
	})

	if err := os.WriteFile(path, []byte("breaker:\n  failure_threshold: 9\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case s := <-reloaded:
		if s.Breaker.FailureThreshold != 9 {
			t.Errorf("reloaded threshold = %d, want 9", s.Breaker.FailureThreshold)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not fire within 2s")
	}

	if got := st.Settings().Breaker.FailureThreshold; got != 9 {
		t.Errorf("store threshold = %d, want 9 after reload", got)
	}
}
