package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/brutalpush/pushclient/pkg/logging"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(map[string]string{})
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if cfg.APIURL != "http://localhost:3000" {
		t.Errorf("APIURL = %q, want http://localhost:3000", cfg.APIURL)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
	if cfg.MaxRetries != 0 {
		t.Errorf("MaxRetries = %d, want 0", cfg.MaxRetries)
	}
	if cfg.SubscriptionsPerPage != 20 {
		t.Errorf("SubscriptionsPerPage = %d, want 20", cfg.SubscriptionsPerPage)
	}
	if cfg.NotificationsPerPage != 50 {
		t.Errorf("NotificationsPerPage = %d, want 50", cfg.NotificationsPerPage)
	}
	if cfg.AMQPQueue != "push.device" {
		t.Errorf("AMQPQueue = %q, want push.device", cfg.AMQPQueue)
	}
	if cfg.RedisURL != "" {
		t.Errorf("RedisURL = %q, want empty", cfg.RedisURL)
	}
}

func TestParse_Overrides(t *testing.T) {
	cfg, err := Parse(map[string]string{
		"PUSH_API_URL":                "https://api.example.com",
		"PUSH_TIMEOUT":                "5s",
		"PUSH_MAX_RETRIES":            "2",
		"PUSH_CIRCUIT_BREAKER":        "true",
		"PUSH_REDIS_URL":              "redis://localhost:6379/0",
		"LOG_LEVEL":                   "debug",
		"LOG_PRETTY":                  "true",
		"PUSH_SUBSCRIPTIONS_PER_PAGE": "10",
	})
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if cfg.APIURL != "https://api.example.com" || cfg.Timeout != 5*time.Second || cfg.MaxRetries != 2 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if !cfg.CircuitBreaker {
		t.Error("CircuitBreaker = false, want true")
	}
	if cfg.SubscriptionsPerPage != 10 {
		t.Errorf("SubscriptionsPerPage = %d, want 10", cfg.SubscriptionsPerPage)
	}

	lc := cfg.Logging()
	if lc.Level != logging.LevelDebug || !lc.Pretty {
		t.Errorf("Logging() = %+v, want debug pretty", lc)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		environ map[string]string
		want    string
	}{
		{"bad duration", map[string]string{"PUSH_TIMEOUT": "soon"}, "parse environment"},
		{"bad int", map[string]string{"PUSH_MAX_RETRIES": "many"}, "parse environment"},
		{"relative url", map[string]string{"PUSH_API_URL": "localhost:3000"}, "PUSH_API_URL"},
		{"zero timeout", map[string]string{"PUSH_TIMEOUT": "0s"}, "PUSH_TIMEOUT"},
		{"negative retries", map[string]string{"PUSH_MAX_RETRIES": "-1"}, "PUSH_MAX_RETRIES"},
		{"zero per page", map[string]string{"PUSH_NOTIFICATIONS_PER_PAGE": "0"}, "PUSH_NOTIFICATIONS_PER_PAGE"},
		{"bad log level", map[string]string{"LOG_LEVEL": "chatty"}, "LOG_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.environ)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	// Register restore of the real value, then clear it so the file applies.
	t.Setenv("PUSH_API_URL", "")
	os.Unsetenv("PUSH_API_URL")
	t.Setenv("PUSH_NOTIFICATIONS_PER_PAGE", "25")

	path := filepath.Join(t.TempDir(), "test.env")
	content := "PUSH_API_URL=https://env-file.example.com\nPUSH_NOTIFICATIONS_PER_PAGE=99\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.APIURL != "https://env-file.example.com" {
		t.Errorf("APIURL = %q, want value from env file", cfg.APIURL)
	}
	if cfg.NotificationsPerPage != 25 {
		t.Errorf("NotificationsPerPage = %d, want 25 (existing env wins)", cfg.NotificationsPerPage)
	}
}

func TestLoad_MissingFileIgnored(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
}
