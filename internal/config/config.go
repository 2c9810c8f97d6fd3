package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/Uuq114/JanusRelay/internal/balancer"
	"github.com/Uuq114/JanusRelay/internal/models"
)

// Profile names a deployment configuration set.
type Profile string

const (
	ProfileDevelopment Profile = "development"
	ProfileProduction  Profile = "production"
	ProfileTesting     Profile = "testing"
)

const (
	DefaultAPIURL         = "https://api.groq.com/openai/v1/chat/completions"
	DefaultPort           = "5000"
	DefaultConfigPath     = "config/config.yaml"
	DefaultRequestTimeout = 30 * time.Second
	DefaultUpstreamName   = "groq"

	// AnyOrigin allows every cross-origin caller.
	AnyOrigin = "*"
)

var (
	ErrUnknownProfile = errors.New("unknown profile")
	ErrMissingOrigin  = errors.New("profile requires a permitted origin")
	ErrInvalidLevel   = errors.New("invalid log level")
	ErrNegativePrice  = errors.New("negative token price")
)

// envRef matches ${VAR} only, so a bare $ in a value stays literal.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Config is resolved once at start and never mutated afterwards.
type Config struct {
	Profile        Profile
	Port           string
	AllowedOrigin  string
	LogLevel       string
	RequestTimeout time.Duration
	Strategy       string
	Upstreams      []models.Upstream

	// AccessToken guards POST /chat when set.
	AccessToken string
	// MetricsToken guards GET /metrics when set.
	MetricsToken string
}

// AllowsAnyOrigin reports whether cross-origin requests are open to all callers.
func (c *Config) AllowsAnyOrigin() bool {
	return c.AllowedOrigin == AnyOrigin
}

// AllowedOrigins is the origin list handed to the CORS layer.
func (c *Config) AllowedOrigins() []string {
	return []string{c.AllowedOrigin}
}

// Override is the per-profile section of the YAML file.
type Override struct {
	AllowedOrigin  string            `yaml:"allowed_origin"`
	LogLevel       string            `yaml:"log_level"`
	RequestTimeout time.Duration     `yaml:"request_timeout"`
	Strategy       string            `yaml:"strategy"`
	Upstreams      []models.Upstream `yaml:"upstreams"`
}

type file struct {
	Profiles map[Profile]Override `yaml:"profiles"`
}

// defaults for every known profile
var profiles = map[Profile]Config{
	ProfileDevelopment: {
		AllowedOrigin: AnyOrigin,
		LogLevel:      "debug",
	},
	ProfileProduction: {
		LogLevel: "info",
	},
	ProfileTesting: {
		AllowedOrigin: AnyOrigin,
		LogLevel:      "warn",
	},
}

// Load reads .env if present and resolves the configuration.
func Load() (*Config, error) {
	// a missing .env is fine, the process environment still applies
	_ = godotenv.Load()

	return FromEnv()
}

// FromEnv resolves the configuration from the process environment and the
// optional YAML profile file.
func FromEnv() (*Config, error) {
	profile := Profile(getEnvOrDefault("APP_ENV", string(ProfileDevelopment)))
	base, ok := profiles[profile]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, profile)
	}

	cfg := base
	cfg.Profile = profile
	cfg.Port = getEnvOrDefault("PORT", DefaultPort)
	cfg.RequestTimeout = DefaultRequestTimeout
	cfg.Strategy = balancer.StrategyRoundRobin
	cfg.AccessToken = os.Getenv("RELAY_ACCESS_TOKEN")
	cfg.MetricsToken = os.Getenv("METRICS_TOKEN")

	override, err := loadOverride(getEnvOrDefault("CONFIG_PATH", DefaultConfigPath), profile)
	if err != nil {
		return nil, err
	}
	apply(&cfg, override)

	if profile == ProfileProduction {
		if origin := os.Getenv("CORS_ORIGIN"); origin != "" {
			cfg.AllowedOrigin = origin
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if len(cfg.Upstreams) == 0 {
		cfg.Upstreams = []models.Upstream{{
			Name:    DefaultUpstreamName,
			BaseURL: getEnvOrDefault("GROQ_API_URL", DefaultAPIURL),
			APIKey:  os.Getenv("GROQ_API_KEY"),
			Weight:  1,
		}}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadOverride returns the section for profile. A missing file yields an empty override.
func loadOverride(path string, profile Profile) (Override, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Override{}, nil
		}
		return Override{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var f file
	if err := yaml.Unmarshal(expandEnvRefs(data), &f); err != nil {
		return Override{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	return f.Profiles[profile], nil
}

func expandEnvRefs(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		name := envRef.FindSubmatch(ref)[1]
		return []byte(os.Getenv(string(name)))
	})
}

func apply(cfg *Config, o Override) {
	if o.AllowedOrigin != "" {
		cfg.AllowedOrigin = o.AllowedOrigin
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	if o.RequestTimeout > 0 {
		cfg.RequestTimeout = o.RequestTimeout
	}
	if o.Strategy != "" {
		cfg.Strategy = o.Strategy
	}
	if len(o.Upstreams) == 0 {
		return
	}

	cfg.Upstreams = make([]models.Upstream, 0, len(o.Upstreams))
	for i, upstream := range o.Upstreams {
		if upstream.Name == "" {
			upstream.Name = fmt.Sprintf("upstream-%d", i+1)
		}
		if upstream.BaseURL == "" {
			upstream.BaseURL = getEnvOrDefault("GROQ_API_URL", DefaultAPIURL)
		}
		cfg.Upstreams = append(cfg.Upstreams, upstream)
	}
}

func (c *Config) Validate() error {
	if c.AllowedOrigin == "" {
		return fmt.Errorf("%w: set CORS_ORIGIN for %s", ErrMissingOrigin, c.Profile)
	}
	if _, err := balancer.New(c.Strategy); err != nil {
		return err
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLevel, c.LogLevel)
	}
	for _, upstream := range c.Upstreams {
		if upstream.InputPrice < 0 || upstream.OutputPrice < 0 {
			return fmt.Errorf("%w: upstream %s", ErrNegativePrice, upstream.Name)
		}
	}
	return nil
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}
