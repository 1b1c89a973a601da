package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/Potency/internal/store"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Hermes   HermesConfig   `yaml:"hermes"`
	Model    ModelConfig    `yaml:"model"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Plot     PlotConfig     `yaml:"plot"`
	Session  SessionConfig  `yaml:"session"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port        int      `yaml:"port"`
	MetricsPort int      `yaml:"metrics_port"`
	AdminToken  string   `yaml:"admin_token"`
	CORSOrigins []string `yaml:"cors_origins"`
	RateLimit   int      `yaml:"rate_limit_per_minute"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type HermesConfig struct {
	URL string `yaml:"url"`
}

type ModelConfig struct {
	Strategy  string  `yaml:"strategy"`
	TestRatio float64 `yaml:"test_ratio"`
	Seed      int64   `yaml:"seed"`
	Store     string  `yaml:"store"`
	Path      string  `yaml:"path"`
	Name      string  `yaml:"name"`
	SQLiteDSN string  `yaml:"sqlite_dsn"`
}

type IngestConfig struct {
	SkipMalformed  bool  `yaml:"skip_malformed"`
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	PreviewRows    int   `yaml:"preview_rows"`
}

type PlotConfig struct {
	Width       int `yaml:"width"`
	Height      int `yaml:"height"`
	CurvePoints int `yaml:"curve_points"`
}

type SessionConfig struct {
	IdleTimeoutSec   int `yaml:"idle_timeout_sec"`
	SweepIntervalSec int `yaml:"sweep_interval_sec"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Session.IdleTimeoutSec) * time.Second
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Session.SweepIntervalSec) * time.Second
}

// Logger builds the process logger. Unknown levels fall back to info.
func (l LoggingConfig) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(l.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        8700,
			MetricsPort: 8701,
			CORSOrigins: []string{"*"},
			RateLimit:   120,
		},
		Hermes: HermesConfig{
			URL: "nats://localhost:4222",
		},
		Model: ModelConfig{
			Strategy:  "linear",
			TestRatio: 0.2,
			Seed:      42,
			Store:     "file",
			Path:      store.DefaultModelFile,
			Name:      "potency_prediction_model",
			SQLiteDSN: store.DefaultSQLiteDSN,
		},
		Ingest: IngestConfig{
			MaxUploadBytes: 10 << 20,
			PreviewRows:    5,
		},
		Plot: PlotConfig{
			Width:       800,
			Height:      480,
			CurvePoints: 100,
		},
		Session: SessionConfig{
			IdleTimeoutSec:   1800,
			SweepIntervalSec: 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("POTENCY_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("POTENCY_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("POTENCY_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("POTENCY_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("POTENCY_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v, ok := os.LookupEnv("POTENCY_HERMES_URL"); ok {
		cfg.Hermes.URL = v
	}
	if v := os.Getenv("POTENCY_STRATEGY"); v != "" {
		cfg.Model.Strategy = v
	}
	if v := os.Getenv("POTENCY_TEST_RATIO"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Model.TestRatio = f
		}
	}
	if v := os.Getenv("POTENCY_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Model.Seed = n
		}
	}
	if v := os.Getenv("POTENCY_MODEL_STORE"); v != "" {
		cfg.Model.Store = v
	}
	if v := os.Getenv("POTENCY_MODEL_PATH"); v != "" {
		cfg.Model.Path = v
	}
	if v := os.Getenv("POTENCY_SQLITE_DSN"); v != "" {
		cfg.Model.SQLiteDSN = v
	}
	if v := os.Getenv("POTENCY_SKIP_MALFORMED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Ingest.SkipMalformed = b
		}
	}
	if v := os.Getenv("POTENCY_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Ingest.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("POTENCY_IDLE_TIMEOUT_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Session.IdleTimeoutSec = n
		}
	}
	if v := os.Getenv("POTENCY_SWEEP_INTERVAL_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Session.SweepIntervalSec = n
		}
	}
	if v := os.Getenv("POTENCY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("POTENCY_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
