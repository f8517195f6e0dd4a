package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8000" {
		t.Errorf("addr: got %q", cfg.Addr)
	}
	if cfg.Agent.Alpha != 0.1 || cfg.Agent.Gamma != 0.6 || cfg.Agent.Epsilon != 0.1 {
		t.Errorf("agent defaults: got %+v", cfg.Agent)
	}
	if cfg.RateLimit.Max != 5 || cfg.RateLimit.Period != time.Minute {
		t.Errorf("rate limit defaults: got %+v", cfg.RateLimit)
	}
	if cfg.Primary.Kind != "" {
		t.Errorf("expected no primary, got %q", cfg.Primary.Kind)
	}
	if cfg.RateLimitMode != "window" {
		t.Errorf("rate limit mode: got %q", cfg.RateLimitMode)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("REFINER_EPSILON", "0")
	t.Setenv("REFINER_RATE_LIMIT_PERIOD", "30s")
	t.Setenv("REFINER_PRIMARY_KIND", "S3")
	t.Setenv("REFINER_PRIMARY_BUCKET", "optimizer-demo")
	t.Setenv("REFINER_API_KEY", "secret123")

	cfg, err := Load(New())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Agent.Epsilon != 0 {
		t.Errorf("epsilon: got %v", cfg.Agent.Epsilon)
	}
	if cfg.RateLimit.Period != 30*time.Second {
		t.Errorf("period: got %v", cfg.RateLimit.Period)
	}
	if cfg.Primary.Kind != "s3" || cfg.Primary.Bucket != "optimizer-demo" {
		t.Errorf("primary: got %+v", cfg.Primary)
	}
	if cfg.APIKey != "secret123" {
		t.Errorf("api key: got %q", cfg.APIKey)
	}
}

func TestBindFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	v := New()
	if err := BindFlags(v, fs); err != nil {
		t.Fatalf("BindFlags: %v", err)
	}
	if err := fs.Parse([]string{"--seed=42", "--primary-kind=gcs", "--addr=:9000"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Seed != 42 || cfg.Primary.Kind != "gcs" || cfg.Addr != ":9000" {
		t.Errorf("flags not applied: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	v := New()
	v.Set("alpha", 0)
	v.Set("gamma", 1)
	v.Set("log-format", "xml")
	v.Set("rate-limit.mode", "leaky")

	_, err := Load(v)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"alpha", "gamma", "log format", "rate limit mode"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

func TestLoadDotEnv(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing file must be ignored: %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("REFINER_TEST_DOTENV=loaded\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("REFINER_TEST_DOTENV") })
	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if os.Getenv("REFINER_TEST_DOTENV") != "loaded" {
		t.Fatal("expected variable from .env")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Config{LogLevel: "warn", LogFormat: "json"}, &buf)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "component", "test")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info must be filtered at warn level")
	}
	if !strings.Contains(out, `"component":"test"`) {
		t.Errorf("expected json output, got %s", out)
	}

	if _, err := NewLogger(Config{LogLevel: "loud"}, &buf); err == nil {
		t.Fatal("expected error for bad level")
	}
}
