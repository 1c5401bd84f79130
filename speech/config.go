package speech

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"
)

// Config holds orchestrator configuration.
type Config struct {
	// Chain is the ordered provider preference for fallback. Operators may
	// put free providers first; order is explicit, never quality-derived.
	Chain []string `env:"VOICEMOTION_CHAIN" envSeparator:","`

	// ProviderTimeout bounds each provider invocation.
	ProviderTimeout time.Duration `env:"VOICEMOTION_PROVIDER_TIMEOUT"`

	// FrameRate is the authoritative animation sampling rate. The envelope
	// window size and the text-driven fallback both derive from it.
	FrameRate float64 `env:"VOICEMOTION_FRAME_RATE"`

	// Lip-sync shaping parameters; zero values select generator defaults.
	LipSyncGamma     float64 `env:"VOICEMOTION_LIPSYNC_GAMMA"`
	LipSyncSmoothing float64 `env:"VOICEMOTION_LIPSYNC_SMOOTHING"`

	// Result cache bounds.
	CacheMaxEntries  int           `env:"VOICEMOTION_CACHE_MAX_ENTRIES"`
	CacheMaxBytes    int64         `env:"VOICEMOTION_CACHE_MAX_BYTES"`
	CacheMaxAge      time.Duration `env:"VOICEMOTION_CACHE_MAX_AGE"`
	CacheCompression bool          `env:"VOICEMOTION_CACHE_COMPRESSION"`
}

// DefaultConfig returns the defaults used when neither file nor environment
// sets a value.
func DefaultConfig() Config {
	return Config{
		ProviderTimeout:  10 * time.Second,
		FrameRate:        30,
		CacheMaxEntries:  512,
		CacheMaxBytes:    64 << 20,
		CacheMaxAge:      time.Hour,
		CacheCompression: true,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.ProviderTimeout <= 0 {
		c.ProviderTimeout = def.ProviderTimeout
	}
	if c.FrameRate <= 0 {
		c.FrameRate = def.FrameRate
	}
	if c.CacheMaxEntries <= 0 {
		c.CacheMaxEntries = def.CacheMaxEntries
	}
	if c.CacheMaxBytes <= 0 {
		c.CacheMaxBytes = def.CacheMaxBytes
	}
	return c
}

// Validate rejects configurations no deployment can want.
func (c Config) Validate() error {
	if c.FrameRate < 1 || c.FrameRate > 120 {
		return fmt.Errorf("%w: frame rate %.1f out of range [1,120]", ErrInvalidConfig, c.FrameRate)
	}
	if c.ProviderTimeout < 100*time.Millisecond {
		return fmt.Errorf("%w: provider timeout %s too small", ErrInvalidConfig, c.ProviderTimeout)
	}
	return nil
}

// LoadConfigFromViper reads configuration keys under "speech." from Viper,
// overriding defaults only for keys that are set.
func LoadConfigFromViper() (Config, error) {
	cfg := DefaultConfig()

	if viper.IsSet("speech.chain") {
		cfg.Chain = viper.GetStringSlice("speech.chain")
	}
	if viper.IsSet("speech.provider_timeout") {
		cfg.ProviderTimeout = viper.GetDuration("speech.provider_timeout")
	}
	if viper.IsSet("speech.frame_rate") {
		cfg.FrameRate = viper.GetFloat64("speech.frame_rate")
	}
	if viper.IsSet("speech.lipsync_gamma") {
		cfg.LipSyncGamma = viper.GetFloat64("speech.lipsync_gamma")
	}
	if viper.IsSet("speech.lipsync_smoothing") {
		cfg.LipSyncSmoothing = viper.GetFloat64("speech.lipsync_smoothing")
	}
	if viper.IsSet("speech.cache_max_entries") {
		cfg.CacheMaxEntries = viper.GetInt("speech.cache_max_entries")
	}
	if viper.IsSet("speech.cache_max_bytes") {
		cfg.CacheMaxBytes = viper.GetInt64("speech.cache_max_bytes")
	}
	if viper.IsSet("speech.cache_max_age") {
		cfg.CacheMaxAge = viper.GetDuration("speech.cache_max_age")
	}
	if viper.IsSet("speech.cache_compression") {
		cfg.CacheCompression = viper.GetBool("speech.cache_compression")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadConfigFromEnv overlays VOICEMOTION_* environment variables on top of
// the given configuration.
func LoadConfigFromEnv(cfg Config) (Config, error) {
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
