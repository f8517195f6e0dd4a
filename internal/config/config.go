// Package config binds flags, environment and an optional .env file into
// one Config for the refiner binary.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/agent"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/durable"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/ratelimit"
)

// EnvPrefix is prepended to every environment key: REFINER_ADDR, REFINER_PRIMARY_KIND, ...
const EnvPrefix = "REFINER"

// #region config
// Config is the resolved runtime configuration.
type Config struct {
	Addr        string
	DB          string
	Outputs     string
	FallbackDir string
	LogLevel    string
	LogFormat   string

	APIKey    string
	JWTSecret string
	RateLimit ratelimit.Config
	// RateLimitMode picks the in-process limiter when RedisAddr is empty:
	// "window" (strict) or "bucket" (approximate token bucket).
	RateLimitMode string
	RedisAddr     string

	ClassifierAddr  string
	ExtractorAddr   string
	ClassifyTimeout time.Duration
	Prefetch        int

	Agent     agent.Config
	Seed      uint64 // 0 = random per batch
	Continual bool
	Primary   durable.PrimaryConfig
}
// #endregion config

// #region defaults
func setDefaults(v *viper.Viper) {
	ac := agent.DefaultConfig()
	rl := ratelimit.DefaultConfig()

	v.SetDefault("addr", ":8000")
	v.SetDefault("db", "refiner.db")
	v.SetDefault("outputs", "outputs")
	v.SetDefault("fallback-dir", "outputs/blob")
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "text")
	v.SetDefault("rate-limit.max", rl.Max)
	v.SetDefault("rate-limit.period", rl.Period)
	v.SetDefault("rate-limit.mode", "window")
	v.SetDefault("classify-timeout", 10*time.Second)
	v.SetDefault("prefetch", 4)
	v.SetDefault("alpha", ac.Alpha)
	v.SetDefault("gamma", ac.Gamma)
	v.SetDefault("epsilon", ac.Epsilon)
	v.SetDefault("seed", 0)
	v.SetDefault("continual", false)
}
// #endregion defaults

// #region flags
// RegisterFlags adds the shared persistent flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("addr", ":8000", "HTTP listen address")
	fs.String("db", "refiner.db", "path to the SQLite run ledger")
	fs.String("outputs", "outputs", "directory for per-run artifact files (empty disables)")
	fs.String("fallback-dir", "outputs/blob", "local fallback directory for the durable store")
	fs.String("log-level", "info", "debug | info | warn | error")
	fs.String("log-format", "text", "text | json")
	fs.String("api-key", "", "API key accepted in X-API-Key for /retrieve")
	fs.String("jwt-secret", "", "HS256 secret for bearer tokens on /retrieve")
	fs.String("redis-addr", "", "Redis address for a shared rate limit (empty = in-process)")
	fs.String("classifier-addr", "", "gRPC address of the sentiment classifier (empty = neutral)")
	fs.String("extractor-addr", "", "gRPC address of the entity extractor (empty = none)")
	fs.Int("prefetch", 4, "max concurrent classifier calls")
	fs.Uint64("seed", 0, "random seed for the agent (0 = random per batch)")
	fs.Bool("continual", false, "seed each batch's agent from the latest stored table")
	fs.String("primary-kind", "", "primary store: s3 | gcs | mongo (empty = fallback only)")
	fs.String("primary-bucket", "", "bucket for s3/gcs")
}

// BindFlags maps registered flags onto their config keys.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	keys := map[string]string{
		"primary-kind":   "primary.kind",
		"primary-bucket": "primary.bucket",
	}
	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		key := f.Name
		if k, ok := keys[f.Name]; ok {
			key = k
		}
		if err := v.BindPFlag(key, f); err != nil {
			errs = append(errs, fmt.Errorf("bind %s: %w", f.Name, err))
		}
	})
	return errors.Join(errs...)
}
// #endregion flags

// #region load
// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// LoadDotEnv loads path (default ".env") into the process environment.
// A missing file is not an error; existing variables are not overridden.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load resolves a Config from v.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Addr:        v.GetString("addr"),
		DB:          v.GetString("db"),
		Outputs:     v.GetString("outputs"),
		FallbackDir: v.GetString("fallback-dir"),
		LogLevel:    v.GetString("log-level"),
		LogFormat:   v.GetString("log-format"),
		APIKey:      v.GetString("api-key"),
		JWTSecret:   v.GetString("jwt-secret"),
		RateLimit: ratelimit.Config{
			Max:    v.GetInt("rate-limit.max"),
			Period: v.GetDuration("rate-limit.period"),
		},
		RateLimitMode:   strings.ToLower(v.GetString("rate-limit.mode")),
		RedisAddr:       v.GetString("redis-addr"),
		ClassifierAddr:  v.GetString("classifier-addr"),
		ExtractorAddr:   v.GetString("extractor-addr"),
		ClassifyTimeout: v.GetDuration("classify-timeout"),
		Prefetch:        v.GetInt("prefetch"),
		Agent: agent.Config{
			Alpha:   v.GetFloat64("alpha"),
			Gamma:   v.GetFloat64("gamma"),
			Epsilon: v.GetFloat64("epsilon"),
		},
		Seed:      v.GetUint64("seed"),
		Continual: v.GetBool("continual"),
		Primary: durable.PrimaryConfig{
			Kind:       strings.ToLower(v.GetString("primary.kind")),
			Bucket:     v.GetString("primary.bucket"),
			Prefix:     v.GetString("primary.prefix"),
			Region:     v.GetString("primary.region"),
			Endpoint:   v.GetString("primary.endpoint"),
			AccessKey:  v.GetString("primary.access-key"),
			SecretKey:  v.GetString("primary.secret-key"),
			MongoURI:   v.GetString("primary.mongo-uri"),
			Database:   v.GetString("primary.database"),
			Collection: v.GetString("primary.collection"),
		},
	}
	return cfg, cfg.Validate()
}

// Validate checks ranges that would otherwise fail deep inside a batch.
func (c Config) Validate() error {
	var errs []error
	if c.Agent.Alpha <= 0 || c.Agent.Alpha > 1 {
		errs = append(errs, fmt.Errorf("alpha %v not in (0,1]", c.Agent.Alpha))
	}
	if c.Agent.Gamma < 0 || c.Agent.Gamma >= 1 {
		errs = append(errs, fmt.Errorf("gamma %v not in [0,1)", c.Agent.Gamma))
	}
	if c.Agent.Epsilon < 0 || c.Agent.Epsilon > 1 {
		errs = append(errs, fmt.Errorf("epsilon %v not in [0,1]", c.Agent.Epsilon))
	}
	if c.Prefetch < 1 {
		errs = append(errs, fmt.Errorf("prefetch must be >= 1, got %d", c.Prefetch))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.RateLimitMode != "window" && c.RateLimitMode != "bucket" {
		errs = append(errs, fmt.Errorf("rate limit mode %q: want window or bucket", c.RateLimitMode))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log format %q: want text or json", c.LogFormat))
	}
	return errors.Join(errs...)
}
// #endregion load

// #region logger
// NewLogger builds the root logger for the configured level and format.
func NewLogger(c Config, w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", s, err)
	}
	return level, nil
}
// #endregion logger
