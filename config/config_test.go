package config

import "testing"

func withEnv(t *testing.T, kv map[string]string, fn func()) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
	fn()
}

func TestLoadRejectsShortSecret(t *testing.T) {
	withEnv(t, map[string]string{"LOANADVISOR_SESSION_SECRET": "too-short"}, func() {
		if _, err := Load(); err == nil {
			t.Fatalf("expected error for short session secret")
		}
	})
}

func TestLoadDefaults(t *testing.T) {
	withEnv(t, map[string]string{"LOANADVISOR_SESSION_SECRET": "12345678901234567890123456789012"}, func() {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.Store.Backend != StoreBackendMemory {
			t.Fatalf("Store.Backend = %q, want memory", cfg.Store.Backend)
		}
		if cfg.HTTP.Port != 8080 {
			t.Fatalf("HTTP.Port = %d, want 8080", cfg.HTTP.Port)
		}
		if cfg.Scoring.MatchTopK != 5 {
			t.Fatalf("Scoring.MatchTopK = %d, want 5", cfg.Scoring.MatchTopK)
		}
	})
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	withEnv(t, map[string]string{
		"LOANADVISOR_SESSION_SECRET": "12345678901234567890123456789012",
		"LOANADVISOR_STORE_BACKEND":  "redis",
	}, func() {
		if _, err := Load(); err == nil {
			t.Fatalf("expected error for unknown store backend")
		}
	})
}

func TestCORSOriginsParsed(t *testing.T) {
	withEnv(t, map[string]string{
		"LOANADVISOR_SESSION_SECRET": "12345678901234567890123456789012",
		"LOANADVISOR_CORS_ORIGINS":   "https://a.example, https://b.example",
	}, func() {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if len(cfg.HTTP.CORSOrigins) != 2 {
			t.Fatalf("CORSOrigins = %v, want 2 entries", cfg.HTTP.CORSOrigins)
		}
	})
}

func TestAddress(t *testing.T) {
	h := HTTPConfig{Host: "127.0.0.1", Port: 9090}
	if got := h.Address(); got != "127.0.0.1:9090" {
		t.Fatalf("Address() = %q, want 127.0.0.1:9090", got)
	}
}
