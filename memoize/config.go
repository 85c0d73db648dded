/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package memoize

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/acronis/go-memoize/config"
)

const cfgDefaultKeyPrefix = "memoize"

// Rate-limiting algorithm names used in configuration.
const (
	RateLimitAlgNameSlidingWindowLog = "sliding_window_log"
	RateLimitAlgNameSlidingWindow    = "sliding_window"
	RateLimitAlgNameLeakyBucket      = "leaky_bucket"
	RateLimitAlgNameTokenBucket      = "token_bucket"
)

// Rate-limiting policy names used in configuration.
const (
	RateLimitPolicyNameWait   = "wait"
	RateLimitPolicyNameReject = "reject"
)

// Config represents a set of configuration parameters for a memoized function.
// Configuration can be loaded in different formats (YAML, JSON) using config.Loader, viper,
// or with json.Unmarshal/yaml.Unmarshal functions directly.
type Config struct {
	// MaxSize limits the number of cache entries. Zero means unbounded cache.
	MaxSize int `mapstructure:"maxSize" yaml:"maxSize" json:"maxSize"`

	// TTL is the time after which a cache entry is considered stale.
	// Zero means entries never expire.
	TTL config.TimeDuration `mapstructure:"ttl" yaml:"ttl" json:"ttl"`

	// Typed caches arguments of different dynamic types separately.
	Typed bool `mapstructure:"typed" yaml:"typed" json:"typed"`

	// DisableCaching turns the cache off entirely.
	DisableCaching bool `mapstructure:"disableCaching" yaml:"disableCaching" json:"disableCaching"`

	// SingleFlight collapses concurrent calls with the same key into a single invocation.
	SingleFlight bool `mapstructure:"singleFlight" yaml:"singleFlight" json:"singleFlight"`

	// RateLimit contains rate limiting parameters.
	RateLimit RateLimitConfig `mapstructure:"rateLimit" yaml:"rateLimit" json:"rateLimit"`

	keyPrefix string
}

// RateLimitConfig represents configuration parameters for rate limiting of actual invocations.
type RateLimitConfig struct {
	// Calls and Period limit the rate of actual invocations to no more than
	// Calls per Period. Both must be provided together.
	Calls  int                 `mapstructure:"calls" yaml:"calls" json:"calls"`
	Period config.TimeDuration `mapstructure:"period" yaml:"period" json:"period"`

	// CacheAware documents that calls served from the cache must not consume quota.
	CacheAware bool `mapstructure:"cacheAware" yaml:"cacheAware" json:"cacheAware"`

	// Alg is the rate-limiting algorithm name; empty means sliding_window_log.
	Alg string `mapstructure:"alg" yaml:"alg" json:"alg"`

	// Policy is what happens when the rate limit is exceeded ("wait" or "reject");
	// empty means wait.
	Policy string `mapstructure:"policy" yaml:"policy" json:"policy"`

	// MaxBurst is used by the leaky bucket and token bucket algorithms.
	MaxBurst int `mapstructure:"maxBurst" yaml:"maxBurst" json:"maxBurst"`
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// ConfigOption is a type for functional options for the Config.
type ConfigOption func(*configOptions)

type configOptions struct {
	keyPrefix string
}

// WithKeyPrefix returns a ConfigOption that sets a key prefix for parsing configuration parameters.
// This prefix will be used by config.Loader.
func WithKeyPrefix(keyPrefix string) ConfigOption {
	return func(o *configOptions) {
		o.keyPrefix = keyPrefix
	}
}

// NewConfig creates a new instance of the Config.
func NewConfig(options ...ConfigOption) *Config {
	opts := configOptions{keyPrefix: cfgDefaultKeyPrefix}
	for _, opt := range options {
		opt(&opts)
	}
	return &Config{keyPrefix: opts.keyPrefix}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
// Implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	if c.keyPrefix == "" {
		return cfgDefaultKeyPrefix
	}
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(_ config.DataProvider) {
}

// Set sets memoizer configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	if err := dp.Unmarshal(c, func(decoderConfig *mapstructure.DecoderConfig) {
		decoderConfig.DecodeHook = MapstructureDecodeHook()
	}); err != nil {
		return err
	}
	return c.Validate()
}

// Validate validates configuration.
func (c *Config) Validate() error {
	_, err := c.ToOpts()
	return err
}

// ToOpts converts the configuration into runtime options for NewWithOpts.
// MetricsCollector and Logger are not configurable from files and stay unset.
func (c *Config) ToOpts() (Opts, error) {
	alg, err := parseRateLimitAlg(c.RateLimit.Alg)
	if err != nil {
		return Opts{}, err
	}
	policy, err := parseRateLimitPolicy(c.RateLimit.Policy)
	if err != nil {
		return Opts{}, err
	}
	opts := Opts{
		MaxSize:         c.MaxSize,
		TTL:             time.Duration(c.TTL),
		Typed:           c.Typed,
		DisableCaching:  c.DisableCaching,
		SingleFlight:    c.SingleFlight,
		Calls:           c.RateLimit.Calls,
		Period:          time.Duration(c.RateLimit.Period),
		CacheAware:      c.RateLimit.CacheAware,
		RateLimitAlg:    alg,
		RateLimitPolicy: policy,
		MaxBurst:        c.RateLimit.MaxBurst,
	}
	if err = opts.Validate(); err != nil {
		return Opts{}, err
	}
	return opts, nil
}

func parseRateLimitAlg(alg string) (RateLimitAlg, error) {
	switch alg {
	case "", RateLimitAlgNameSlidingWindowLog:
		return RateLimitAlgSlidingWindowLog, nil
	case RateLimitAlgNameSlidingWindow:
		return RateLimitAlgSlidingWindow, nil
	case RateLimitAlgNameLeakyBucket:
		return RateLimitAlgLeakyBucket, nil
	case RateLimitAlgNameTokenBucket:
		return RateLimitAlgTokenBucket, nil
	}
	return 0, fmt.Errorf("unknown rate limit alg %q", alg)
}

func parseRateLimitPolicy(policy string) (RateLimitPolicy, error) {
	switch policy {
	case "", RateLimitPolicyNameWait:
		return RateLimitPolicyWait, nil
	case RateLimitPolicyNameReject:
		return RateLimitPolicyReject, nil
	}
	return 0, fmt.Errorf("unknown rate limit policy %q", policy)
}

// MapstructureDecodeHook returns a DecodeHookFunc for mapstructure to handle custom types.
func MapstructureDecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	)
}
