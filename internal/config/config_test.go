package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "SERVER_PORT")
	unsetEnvWithCleanup(t, "PORT")
	unsetEnvWithCleanup(t, "MOVEMENT_EVENT_EXCHANGE")
	unsetEnvWithCleanup(t, "CACHE_TTL_SECONDS")
	unsetEnvWithCleanup(t, "STATUS_RETRY_ATTEMPTS")
	unsetEnvWithCleanup(t, "RECONCILE_CRON_SPEC")
	unsetEnvWithCleanup(t, "RECONCILE_PENDING_AFTER_MINUTES")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Fatalf("expected default ServerPort 8080, got %q", cfg.ServerPort)
	}
	if cfg.MovementEventExchange != "movement_events" {
		t.Fatalf("expected default exchange movement_events, got %q", cfg.MovementEventExchange)
	}
	if cfg.CacheTTLSeconds != 300 {
		t.Fatalf("expected default CacheTTLSeconds 300, got %d", cfg.CacheTTLSeconds)
	}
	if cfg.StatusRetryAttempts != 3 {
		t.Fatalf("expected default StatusRetryAttempts 3, got %d", cfg.StatusRetryAttempts)
	}
	if cfg.ReconcileCronSpec != "*/5 * * * *" {
		t.Fatalf("expected default reconcile cron spec, got %q", cfg.ReconcileCronSpec)
	}
	if cfg.ReconcilePendingAfterMinute != 15 {
		t.Fatalf("expected default ReconcilePendingAfterMinute 15, got %d", cfg.ReconcilePendingAfterMinute)
	}
}

func TestLoadConfig_PlatformPortOverridesServerPort(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "SERVER_PORT", "8080")
	setEnvWithCleanup(t, "PORT", "9090")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "9090" {
		t.Fatalf("expected PORT to override SERVER_PORT, got %q", cfg.ServerPort)
	}
}

func TestLoadConfig_CoercesInvalidNumericSettings(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "CACHE_TTL_SECONDS", "-10")
	setEnvWithCleanup(t, "STATUS_RETRY_ATTEMPTS", "0")
	setEnvWithCleanup(t, "RECONCILE_PENDING_AFTER_MINUTES", "-1")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.CacheTTLSeconds != 300 {
		t.Fatalf("expected negative ttl coerced to 300, got %d", cfg.CacheTTLSeconds)
	}
	if cfg.StatusRetryAttempts != 3 {
		t.Fatalf("expected zero retry attempts coerced to 3, got %d", cfg.StatusRetryAttempts)
	}
	if cfg.ReconcilePendingAfterMinute != 15 {
		t.Fatalf("expected negative pending window coerced to 15, got %d", cfg.ReconcilePendingAfterMinute)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}
