package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/AngelCh415/moi-etl/internal/aggregate"
	"github.com/AngelCh415/moi-etl/internal/daterange"
	"github.com/AngelCh415/moi-etl/internal/metrics"
)

const (
	EnvConfigPath   = "MOI_CONFIG"
	DefaultFileName = "moi.yaml"
)

type Config struct {
	Server   Server   `yaml:"server"`
	Logging  Logging  `yaml:"logging"`
	Storage  Storage  `yaml:"storage"`
	Sources  Sources  `yaml:"sources"`
	Sink     Sink     `yaml:"sink"`
	Tunables Tunables `yaml:"tunables"`
}

type Server struct {
	Port        string        `yaml:"port"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
}

type Logging struct {
	Level string `yaml:"level"`
}

type Storage struct {
	// DBPath is the SQLite file; empty or ":memory:" keeps state in memory.
	DBPath string `yaml:"db_path"`
}

// Sources are default export locations, each a path or an http(s) URL.
type Sources struct {
	Meta    string `yaml:"meta"`
	Google  string `yaml:"google"`
	Shopify string `yaml:"shopify"`
}

type Sink struct {
	URL    string `yaml:"url"`
	Secret string `yaml:"secret"`
}

// Tunables only take effect on runs that ask for configurable logic.
type Tunables struct {
	QualifySeconds    float64            `yaml:"qualify_seconds"`
	PageviewThreshold float64            `yaml:"pageview_threshold"`
	DominantThreshold float64            `yaml:"dominant_threshold"`
	Tiers             metrics.Thresholds `yaml:"tiers"`
	OutputTTL         time.Duration      `yaml:"output_ttl"`
	SampleRows        int                `yaml:"sample_rows"`
}

func DefaultTunables() Tunables {
	agg := aggregate.DefaultOptions()
	return Tunables{
		QualifySeconds:    agg.QualifySeconds,
		PageviewThreshold: agg.PageviewThreshold,
		DominantThreshold: 0.95,
		Tiers:             metrics.DefaultThresholds(),
		OutputTTL:         24 * time.Hour,
		SampleRows:        10,
	}
}

// Effective returns t when configurable is set and the defaults otherwise.
func (t Tunables) Effective(configurable bool) Tunables {
	if configurable {
		return t
	}
	return DefaultTunables()
}

func (t Tunables) AggregateOptions() aggregate.Options {
	return aggregate.Options{QualifySeconds: t.QualifySeconds, PageviewThreshold: t.PageviewThreshold}
}

// Detector builds a date range detector with these thresholds.
func (t Tunables) Detector(log *slog.Logger) *daterange.Detector {
	det := daterange.New(log)
	det.DominantThreshold = t.DominantThreshold
	det.SampleRows = t.SampleRows
	return det
}

func (s Storage) InMemory() bool { return s.DBPath == "" || s.DBPath == ":memory:" }

func Default() Config {
	return Config{
		Server:   Server{Port: "8080", HTTPTimeout: 15 * time.Second},
		Logging:  Logging{Level: "info"},
		Storage:  Storage{DBPath: "moi.db"},
		Tunables: DefaultTunables(),
	}
}

// ResolvePath picks the config file: explicit path > $MOI_CONFIG > ./moi.yaml.
// An empty result means none exists and defaults apply.
func ResolvePath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}
	if p := os.Getenv(EnvConfigPath); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("%s points to missing file: %s", EnvConfigPath, p)
		}
		return p, nil
	}
	if _, err := os.Stat(DefaultFileName); err == nil {
		return DefaultFileName, nil
	}
	return "", nil
}

// Load reads the resolved config file, then .env, then environment overrides.
func Load(explicit string) (Config, error) {
	path, err := ResolvePath(explicit)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
		if cfg, err = Parse(data); err != nil {
			return Config{}, err
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}
	cfg.applyEnv()
	return cfg, nil
}

// Parse unmarshals YAML over the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// FromEnv is Default with environment overrides applied.
func FromEnv() Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyEnv() {
	if v := os.Getenv("HTTP_TIMEOUT_SECONDS"); v != "" {
		if d, err := time.ParseDuration(v + "s"); err == nil {
			c.Server.HTTPTimeout = d
		}
	}
	c.Server.Port = envOr("PORT", c.Server.Port)
	c.Logging.Level = envOr("LOG_LEVEL", c.Logging.Level)
	c.Storage.DBPath = envOr("MOI_DB_PATH", c.Storage.DBPath)
	c.Sources.Meta = envOr("META_CSV_URL", c.Sources.Meta)
	c.Sources.Google = envOr("GOOGLE_CSV_URL", c.Sources.Google)
	c.Sources.Shopify = envOr("SHOPIFY_CSV_URL", c.Sources.Shopify)
	c.Sink.URL = envOr("SINK_URL", c.Sink.URL)
	c.Sink.Secret = envOr("SINK_SECRET", c.Sink.Secret)
}

func (c Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
