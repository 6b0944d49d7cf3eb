// Package config holds the runtime settings of the miner id service
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Defaults
const (
	// DefaultFromBlock is the height the crawler starts from
	DefaultFromBlock int32 = 620538

	// DefaultChainAPIEndpoint is a WhatsOnChain compatible REST endpoint
	DefaultChainAPIEndpoint = "https://api.whatsonchain.com/v1/bsv/main"

	DefaultListenAddress = ":8888"
	DefaultLogLevel      = "info"
	DefaultPollInterval  = 30 * time.Second
	DefaultWorkers       = 4
)

// Environment variables read by FromEnv
const (
	EnvFromBlock        = "MINERID_FROM_BLOCK"
	EnvChainAPIEndpoint = "MINERID_CHAIN_API"
	EnvChainAPIToken    = "MINERID_CHAIN_API_TOKEN"
	EnvListenAddress    = "MINERID_LISTEN"
	EnvLogLevel         = "MINERID_LOG_LEVEL"
	EnvDevelopment      = "MINERID_DEV"
	EnvPollInterval     = "MINERID_POLL_INTERVAL"
	EnvWorkers          = "MINERID_WORKERS"
)

// Config is the service configuration
type Config struct {
	FromBlock        int32
	ChainAPIEndpoint string
	ChainAPIToken    string
	ListenAddress    string
	LogLevel         string
	Development      bool
	PollInterval     time.Duration
	Workers          int
}

// Default returns the built in configuration
func Default() *Config {
	return &Config{
		FromBlock:        DefaultFromBlock,
		ChainAPIEndpoint: DefaultChainAPIEndpoint,
		ListenAddress:    DefaultListenAddress,
		LogLevel:         DefaultLogLevel,
		PollInterval:     DefaultPollInterval,
		Workers:          DefaultWorkers,
	}
}

// FromEnv returns the defaults overridden by any MINERID_* variables set
func FromEnv() (*Config, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (*Config, error) {
	c := Default()

	if v, ok := lookup(EnvFromBlock); ok {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvFromBlock, err)
		}
		c.FromBlock = int32(n)
	}
	if v, ok := lookup(EnvChainAPIEndpoint); ok {
		c.ChainAPIEndpoint = v
	}
	if v, ok := lookup(EnvChainAPIToken); ok {
		c.ChainAPIToken = v
	}
	if v, ok := lookup(EnvListenAddress); ok {
		c.ListenAddress = v
	}
	if v, ok := lookup(EnvLogLevel); ok {
		c.LogLevel = v
	}
	if v, ok := lookup(EnvDevelopment); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvDevelopment, err)
		}
		c.Development = b
	}
	if v, ok := lookup(EnvPollInterval); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvPollInterval, err)
		}
		c.PollInterval = d
	}
	if v, ok := lookup(EnvWorkers); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvWorkers, err)
		}
		c.Workers = n
	}
	return c, c.Validate()
}

// Validate checks the values that have no sensible fallback
func (c *Config) Validate() error {
	if c.FromBlock < 0 {
		return fmt.Errorf("from block must not be negative, got %d", c.FromBlock)
	}
	if c.ChainAPIEndpoint == "" {
		return fmt.Errorf("chain api endpoint is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	return nil
}
