// Package config loads and validates the immutable configuration record
// that drives a compositor instance for its entire lifetime.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values, named after the keys they back.
const (
	defaultFallbackPath     = "background.mp4"
	defaultOutWidth         = 1280
	defaultOutHeight        = 720
	defaultOutFPS           = 30
	defaultVideoBitrate     = 4_000_000
	defaultAudioBitrate     = 128_000
	defaultSampleRate       = 48_000
	defaultBGUnmuteDelaySec = 5.0
	defaultPrimaryTimeoutUS = 2_000_000
	defaultPrimaryRetryUS   = 500_000
	defaultJitterBudgetMS   = 300
	defaultAudioChannels    = 2
	defaultVideoCodec       = "h264"
	defaultAudioCodec       = "aac"
	defaultOutputContainer  = "mpegts"
	defaultOutputSinkStdout = "-"
	defaultLoggingLevel     = "info"
	defaultLoggingFormat    = "json"
)

// Config is the immutable record loaded once at startup. Nothing in
// this process ever mutates a Config after Load/Validate returns.
type Config struct {
	// PrimaryURL (aka srt_url) is the live network source descriptor.
	PrimaryURL string `mapstructure:"primary_url"`
	// FallbackPath (aka bg_file) is the local looping media file.
	FallbackPath string `mapstructure:"fallback_path"`
	// StreamID is an opaque identifier attached to every event for logging.
	StreamID string `mapstructure:"stream_id"`

	OutWidth  int `mapstructure:"out_width"`
	OutHeight int `mapstructure:"out_height"`
	OutFPS    int `mapstructure:"out_fps"`

	VideoBitrate int `mapstructure:"video_bitrate"`
	AudioBitrate int `mapstructure:"audio_bitrate"`
	SampleRate   int `mapstructure:"sample_rate"`

	// AudioChannels is fixed at 2; not independently configurable.
	AudioChannels int `mapstructure:"-"`

	// BGUnmuteDelaySec is the fallback-audio grace period, in seconds.
	BGUnmuteDelaySec float64 `mapstructure:"bg_unmute_delay"`
	// PrimaryTimeoutUS is the stall timeout, in microseconds.
	PrimaryTimeoutUS int64 `mapstructure:"primary_timeout_us"`
	// PrimaryRetryUS is the reconnect delay, in microseconds.
	PrimaryRetryUS int64 `mapstructure:"primary_retry_us"`
	// PrimaryAudioJitterMS is the local jitter budget, in milliseconds.
	PrimaryAudioJitterMS int64 `mapstructure:"primary_audio_jitter_ms"`

	VideoCodec   string `mapstructure:"video_codec"`
	AudioCodec   string `mapstructure:"audio_codec"`
	OutputFormat string `mapstructure:"output_format"`

	Logging LoggingConfig `mapstructure:"logging"`
}

// LoggingConfig controls the debug/diagnostic slog stream, distinct from
// the structured event stream emitted during a run.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// GracePeriod returns bg_unmute_delay as a time.Duration.
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.BGUnmuteDelaySec * float64(time.Second))
}

// StallTimeout returns primary_timeout_us as a time.Duration.
func (c *Config) StallTimeout() time.Duration {
	return time.Duration(c.PrimaryTimeoutUS) * time.Microsecond
}

// ReconnectDelay returns primary_retry_us as a time.Duration.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.PrimaryRetryUS) * time.Microsecond
}

// JitterBudget returns primary_audio_jitter_ms as a time.Duration.
func (c *Config) JitterBudget() time.Duration {
	return time.Duration(c.PrimaryAudioJitterMS) * time.Millisecond
}

// Kind identifies a class of configuration error, distinguishing callers
// that want to react to a missing value versus an out-of-range one.
type Kind int

const (
	// KindMissing marks a required field left empty.
	KindMissing Kind = iota
	// KindInvalid marks a field with an out-of-range or malformed value.
	KindInvalid
)

// Error is the ConfigError kind: invalid or missing configuration,
// always fatal at startup.
type Error struct {
	Kind  Kind
	Field string
	Msg   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

func missing(field string) *Error {
	return &Error{Kind: KindMissing, Field: field, Msg: "required"}
}

func invalid(field, msg string) *Error {
	return &Error{Kind: KindInvalid, Field: field, Msg: msg}
}

// Validate applies the invariants a loaded Config must satisfy.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.PrimaryURL) == "" {
		return missing("primary_url")
	}
	if c.OutWidth <= 0 {
		return invalid("out_width", "must be positive")
	}
	if c.OutWidth%2 != 0 {
		return invalid("out_width", "must be even (output is YUV420P, which subsamples chroma by 2)")
	}
	if c.OutHeight <= 0 {
		return invalid("out_height", "must be positive")
	}
	if c.OutHeight%2 != 0 {
		return invalid("out_height", "must be even (output is YUV420P, which subsamples chroma by 2)")
	}
	if c.OutFPS <= 0 {
		return invalid("out_fps", "must be positive")
	}
	if c.SampleRate <= 0 {
		return invalid("sample_rate", "must be positive")
	}
	if c.VideoBitrate <= 0 {
		return invalid("video_bitrate", "must be positive")
	}
	if c.AudioBitrate <= 0 {
		return invalid("audio_bitrate", "must be positive")
	}
	if c.BGUnmuteDelaySec < 0 {
		return invalid("bg_unmute_delay", "must not be negative")
	}
	if c.PrimaryTimeoutUS <= 0 {
		return invalid("primary_timeout_us", "must be positive")
	}
	if c.PrimaryRetryUS <= 0 {
		return invalid("primary_retry_us", "must be positive")
	}
	if c.PrimaryAudioJitterMS < 0 {
		return invalid("primary_audio_jitter_ms", "must not be negative")
	}
	return nil
}

// SetDefaults installs the default table onto v before a config file or
// environment variables are layered on top.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("fallback_path", defaultFallbackPath)
	v.SetDefault("stream_id", "")
	v.SetDefault("out_width", defaultOutWidth)
	v.SetDefault("out_height", defaultOutHeight)
	v.SetDefault("out_fps", defaultOutFPS)
	v.SetDefault("video_bitrate", defaultVideoBitrate)
	v.SetDefault("audio_bitrate", defaultAudioBitrate)
	v.SetDefault("sample_rate", defaultSampleRate)
	v.SetDefault("bg_unmute_delay", defaultBGUnmuteDelaySec)
	v.SetDefault("primary_timeout_us", defaultPrimaryTimeoutUS)
	v.SetDefault("primary_retry_us", defaultPrimaryRetryUS)
	v.SetDefault("primary_audio_jitter_ms", defaultJitterBudgetMS)
	v.SetDefault("video_codec", defaultVideoCodec)
	v.SetDefault("audio_codec", defaultAudioCodec)
	v.SetDefault("output_format", defaultOutputContainer)
	v.SetDefault("logging.level", defaultLoggingLevel)
	v.SetDefault("logging.format", defaultLoggingFormat)
}

// Load reads configuration from an optional file plus AVFAILOVER_-prefixed
// environment variables, aliasing srt_url/bg_file onto primary_url/fallback_path
// and validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("avfailover")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/avfailover")
	}

	v.SetEnvPrefix("AVFAILOVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// primary_url has no default, so AutomaticEnv alone would leave it out
	// of the keys Unmarshal sees; binding it makes AVFAILOVER_PRIMARY_URL
	// reach the Config.
	_ = v.BindEnv("primary_url")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	applyAliases(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.AudioChannels = defaultAudioChannels
	if cfg.VideoCodec == "" {
		cfg.VideoCodec = defaultVideoCodec
	}
	if cfg.AudioCodec == "" {
		cfg.AudioCodec = defaultAudioCodec
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = defaultOutputContainer
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyAliases copies the legacy srt_url/bg_file keys onto their canonical
// counterparts when only the alias is set.
func applyAliases(v *viper.Viper) {
	if v.IsSet("srt_url") && !v.IsSet("primary_url") {
		v.Set("primary_url", v.GetString("srt_url"))
	}
	// fallback_path always has a default, so IsSet cannot tell whether it
	// was given; check the config file and the environment directly.
	_, fallbackInEnv := os.LookupEnv("AVFAILOVER_FALLBACK_PATH")
	if v.IsSet("bg_file") && !v.InConfig("fallback_path") && !fallbackInEnv {
		v.Set("fallback_path", v.GetString("bg_file"))
	}
}

// FromPositional builds a Config from the legacy positional-argument CLI
// form: a bare primary URL and an optional fallback path, with every
// other field defaulted.
func FromPositional(primaryURL, fallbackPath string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.Set("primary_url", primaryURL)
	if fallbackPath != "" {
		v.Set("fallback_path", fallbackPath)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.AudioChannels = defaultAudioChannels
	if cfg.VideoCodec == "" {
		cfg.VideoCodec = defaultVideoCodec
	}
	if cfg.AudioCodec == "" {
		cfg.AudioCodec = defaultAudioCodec
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = defaultOutputContainer
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
