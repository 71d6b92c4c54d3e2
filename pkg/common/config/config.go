package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/imdario/mergo"
)

var validate = validator.New()

type Config struct {
	Environment string        `yaml:"environment" validate:"required,oneof=production development"`
	Client      ClientCfg     `yaml:"client"`
	Pool        PoolCfg       `yaml:"pool"`
	RateLimit   RateLimitCfg  `yaml:"rate_limit"`
	Discovery   DiscoveryCfg  `yaml:"discovery"`
	Cache       CacheCfg      `yaml:"cache"`
	NATS        NATSConfig    `yaml:"nats"`
	Store       StoreCfg      `yaml:"store"`
	Endpoints   EndpointsCfg  `yaml:"endpoints" validate:"required"`
	Providers   []ProviderCfg `yaml:"providers" validate:"dive"`
}

type ClientCfg struct {
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries" validate:"min=0"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

type PoolCfg struct {
	MaxEndpoints int `yaml:"max_endpoints" validate:"min=0"`
	MaxTest      int `yaml:"max_test" validate:"min=0"`
}

type RateLimitCfg struct {
	InitialRate             float64       `yaml:"initial_rate"`
	MinRate                 float64       `yaml:"min_rate"`
	MaxRate                 float64       `yaml:"max_rate"`
	IncreaseFactor          float64       `yaml:"increase_factor"`
	DecreaseFactor          float64       `yaml:"decrease_factor"`
	Burst                   int           `yaml:"burst"`
	CircuitBreakerThreshold int           `yaml:"circuit_breaker_threshold"`
	CooldownDuration        time.Duration `yaml:"cooldown_duration"`
}

type DiscoveryCfg struct {
	Quick     bool     `yaml:"quick"`
	DenyHosts []string `yaml:"deny_hosts"`
}

type CacheCfg struct {
	StatusTTL  time.Duration `yaml:"status_ttl"`
	NodesTTL   time.Duration `yaml:"nodes_ttl"`
	SamplesTTL time.Duration `yaml:"samples_ttl"`
}

type NATSConfig struct {
	URL           string `yaml:"url" validate:"omitempty,url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type StoreCfg struct {
	Directory string `yaml:"directory"`
	Prefix    string `yaml:"prefix"`
}

type EndpointsCfg struct {
	Defaults EndpointDefaults `yaml:"defaults"`
	Static   []Node           `yaml:"static" validate:"dive"`
}

type EndpointDefaults struct {
	Headers map[string]string `yaml:"headers,omitempty"`
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}

	// merge endpoint defaults
	for i, node := range cfg.Endpoints.Static {
		if err := mergo.Merge(&node, Node{Headers: cfg.Endpoints.Defaults.Headers}); err != nil {
			return cfg, err
		}
		cfg.Endpoints.Static[i] = node
	}

	// finalize nodes and providers
	if err := cfg.FinalizeNodes(); err != nil {
		return cfg, err
	}

	// validate
	if err := validate.Struct(cfg); err != nil {
		return cfg, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Client.Timeout == 0 {
		c.Client.Timeout = 30 * time.Second
	}
	if c.Client.MaxRetries == 0 {
		c.Client.MaxRetries = 3
	}
	if c.Client.RetryDelay == 0 {
		c.Client.RetryDelay = time.Second
	}
	if c.Client.MaxBackoff == 0 {
		c.Client.MaxBackoff = 30 * time.Second
	}
	if c.Pool.MaxEndpoints == 0 {
		c.Pool.MaxEndpoints = 5
	}
	if c.Pool.MaxTest == 0 {
		c.Pool.MaxTest = 15
	}
	if c.Cache.StatusTTL == 0 {
		c.Cache.StatusTTL = 15 * time.Second
	}
	if c.Cache.NodesTTL == 0 {
		c.Cache.NodesTTL = 120 * time.Second
	}
	if c.Cache.SamplesTTL == 0 {
		c.Cache.SamplesTTL = 30 * time.Second
	}
}
