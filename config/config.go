package config

import (
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// DefaultPath is loaded when no explicit config file is given and it exists.
const DefaultPath = "bounce.yaml"

const (
	StoreBolt   = "bolt"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

//go:embed default.yaml
var defaultConfig []byte

type Config struct {
	Target     string         `key:"target" json:"target"`
	Bind       string         `key:"bind" json:"bind"`
	Upstream   string         `key:"upstream" json:"upstream"`
	Debounce   time.Duration  `key:"debounce" json:"debounce"`
	Extensions []string       `key:"extensions" json:"extensions"`
	Ignore     []string       `key:"ignore" json:"ignore"`
	TUI        bool           `key:"tui" json:"tui"`
	Verbose    bool           `key:"verbose" json:"verbose"`
	LogFile    string         `key:"logFile" json:"log_file"`
	Identity   IdentityConfig `key:"identity" json:"identity"`
}

// IdentityConfig selects where the workspace identifier is persisted.
type IdentityConfig struct {
	Store     string `key:"store" json:"store"` // "bolt", "redis" or "memory"
	Path      string `key:"path" json:"path"`   // bolt file
	RedisAddr string `key:"redisAddr" json:"redis_addr"`
}

// Load layers the embedded defaults, the YAML file at path and overrides, in
// that order. Override keys use koanf's dotted paths, e.g. "identity.store".
func Load(path string, overrides map[string]any) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(defaultConfig), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	for key, value := range overrides {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("override %s: %w", key, err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "key"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Debounce < 0 {
		errs = append(errs, fmt.Errorf("debounce must not be negative, got %s", c.Debounce))
	}
	if c.Bind == "" {
		errs = append(errs, errors.New("bind is empty"))
	}
	if _, err := c.UpstreamURL(); err != nil {
		errs = append(errs, err)
	}
	switch c.Identity.Store {
	case StoreBolt:
		if c.Identity.Path == "" {
			errs = append(errs, errors.New("identity.path is empty"))
		}
	case StoreRedis:
		if c.Identity.RedisAddr == "" {
			errs = append(errs, errors.New("identity.redisAddr is empty"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown identity store %q", c.Identity.Store))
	}
	return errors.Join(errs...)
}

func (c *Config) UpstreamURL() (*url.URL, error) {
	u, err := url.Parse(c.Upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream %q: %w", c.Upstream, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream %q: need scheme and host", c.Upstream)
	}
	return u, nil
}
