// Package config loads serpent settings from defaults, an optional config
// file, SERPENT_* environment variables and command-line flags, in rising
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FranksOps/serpent/internal/fingerprint"
	"github.com/FranksOps/serpent/internal/serp"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SERPENT_AUDIT_DSN.
const EnvPrefix = "SERPENT"

// Config is the resolved configuration.
type Config struct {
	Endpoint      string         `mapstructure:"endpoint"`
	Lang          string         `mapstructure:"lang"`
	Num           int            `mapstructure:"num"`
	Timeout       time.Duration  `mapstructure:"timeout"`
	Sleep         time.Duration  `mapstructure:"sleep"`
	Jitter        float64        `mapstructure:"jitter"`
	Proxy         string         `mapstructure:"proxy"`
	ProxyFile     string         `mapstructure:"proxy_file"`
	Fingerprint   string         `mapstructure:"fingerprint"`
	RPS           float64        `mapstructure:"rps"`
	MaxEmptyPages int            `mapstructure:"max_empty_pages"`
	MaxStalls     int            `mapstructure:"max_stalls"`
	UserAgents    []string       `mapstructure:"user_agents"`
	UAMode        string         `mapstructure:"ua_mode"`
	RespectRobots bool           `mapstructure:"respect_robots"`
	Selectors     serp.Selectors `mapstructure:"selectors"`
	Audit         Audit          `mapstructure:"audit"`
	Metrics       Metrics        `mapstructure:"metrics"`
	Log           Log            `mapstructure:"log"`
}

// Audit selects the page audit backend.
type Audit struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// Metrics configures the Prometheus endpoint. Port 0 disables it.
type Metrics struct {
	Port int `mapstructure:"port"`
}

// Log configures the slog handler.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// New returns a viper instance with every key defaulted and environment
// overrides enabled.
func New() *viper.Viper {
	v := viper.New()

	sel := serp.DefaultSelectors()
	defaults := map[string]any{
		"endpoint":          serp.DefaultEndpoint,
		"lang":              serp.DefaultLang,
		"num":               0,
		"timeout":           serp.DefaultTimeout,
		"sleep":             time.Duration(0),
		"jitter":            0.0,
		"proxy":             "",
		"proxy_file":        "",
		"fingerprint":       string(fingerprint.ProfileChrome),
		"rps":               0.0,
		"max_empty_pages":   serp.DefaultMaxEmptyPages,
		"max_stalls":        serp.DefaultMaxStalls,
		"user_agents":       []string{},
		"ua_mode":           "random",
		"respect_robots":    false,
		"selectors.block":   sel.Block,
		"selectors.link":    sel.Link,
		"selectors.title":   sel.Title,
		"selectors.snippet": sel.Snippet,
		"audit.driver":      "none",
		"audit.dsn":         "",
		"metrics.port":      0,
		"log.level":         "info",
		"log.format":        "text",
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads file (if not empty) into v and decodes the result.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Num < 0 {
		errs = append(errs, fmt.Errorf("num must not be negative, got %d", c.Num))
	}
	if c.Timeout < 0 || c.Sleep < 0 {
		errs = append(errs, errors.New("timeout and sleep must not be negative"))
	}
	if c.Jitter < 0 || c.Jitter > 1 {
		errs = append(errs, fmt.Errorf("jitter must be within [0, 1], got %v", c.Jitter))
	}
	if c.RPS < 0 {
		errs = append(errs, fmt.Errorf("rps must not be negative, got %v", c.RPS))
	}
	if _, err := fingerprint.ParseProfile(c.Fingerprint); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log format must be text or json, got %q", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
