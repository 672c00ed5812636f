package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "SESSION_TTL", "SESSION_SWEEP_SCHEDULE", "BACKEND_FAILURE_THRESHOLD", "GEMINI_MODEL", "QDRANT_COLLECTION"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.Server.Addr != ":8000" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if cfg.Session.TTL != time.Hour {
		t.Fatalf("unexpected ttl %s", cfg.Session.TTL)
	}
	if cfg.Session.SweepSchedule != "0 * * * *" {
		t.Fatalf("unexpected schedule %q", cfg.Session.SweepSchedule)
	}
	if cfg.Models.FailureThreshold != 3 {
		t.Fatalf("unexpected threshold %d", cfg.Models.FailureThreshold)
	}
	if cfg.Models.Gemini.Model != "gemini-2.0-flash" {
		t.Fatalf("unexpected gemini model %q", cfg.Models.Gemini.Model)
	}
	if cfg.Retrieval.Collection != "amazon_products" {
		t.Fatalf("unexpected collection %q", cfg.Retrieval.Collection)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("GEMINI_TOKEN", "secret")
	t.Setenv("BACKEND_FAILURE_THRESHOLD", "5")
	t.Setenv("FALLBACK_MODEL", "huggingface")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.Server.Addr != ":9090" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if cfg.Session.TTL != 30*time.Minute {
		t.Fatalf("unexpected ttl %s", cfg.Session.TTL)
	}
	if !cfg.Models.Gemini.Enabled() {
		t.Fatal("gemini should be enabled with a token")
	}
	if cfg.Models.HuggingFace.Enabled() {
		t.Fatal("huggingface should stay disabled without a token")
	}
	if cfg.Models.FailureThreshold != 5 {
		t.Fatalf("unexpected threshold %d", cfg.Models.FailureThreshold)
	}
	if cfg.Models.FallbackModel != "huggingface" {
		t.Fatalf("unexpected fallback %q", cfg.Models.FallbackModel)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("SESSION_TTL", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid SESSION_TTL")
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("PORT", "80 80")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid PORT")
	}
}
