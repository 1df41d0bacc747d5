package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AVFAILOVER_PRIMARY_URL", "srt://example.invalid:9000")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "srt://example.invalid:9000", cfg.PrimaryURL)
	assert.Equal(t, defaultFallbackPath, cfg.FallbackPath)
	assert.Equal(t, defaultOutWidth, cfg.OutWidth)
	assert.Equal(t, defaultOutHeight, cfg.OutHeight)
	assert.Equal(t, defaultOutFPS, cfg.OutFPS)
	assert.Equal(t, defaultAudioChannels, cfg.AudioChannels)
	assert.Equal(t, 5*time.Second, cfg.GracePeriod())
	assert.Equal(t, 2*time.Second, cfg.StallTimeout())
	assert.Equal(t, 500*time.Millisecond, cfg.ReconnectDelay())
	assert.Equal(t, 300*time.Millisecond, cfg.JitterBudget())
}

func TestLoadMissingPrimaryURL(t *testing.T) {
	_, err := Load("/nonexistent/path/that/does/not/exist.yaml")
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, KindMissing, cerr.Kind)
	assert.Equal(t, "primary_url", cerr.Field)
}

func TestFromPositional(t *testing.T) {
	cfg, err := FromPositional("srt://host:1234", "/var/media/bg.mp4")
	require.NoError(t, err)
	assert.Equal(t, "srt://host:1234", cfg.PrimaryURL)
	assert.Equal(t, "/var/media/bg.mp4", cfg.FallbackPath)
}

func TestFromPositionalDefaultsFallback(t *testing.T) {
	cfg, err := FromPositional("srt://host:1234", "")
	require.NoError(t, err)
	assert.Equal(t, defaultFallbackPath, cfg.FallbackPath)
}

func TestValidateRejectsNonPositiveDimensions(t *testing.T) {
	cfg := Config{
		PrimaryURL:       "srt://host",
		OutWidth:         0,
		OutHeight:        720,
		OutFPS:           30,
		SampleRate:       48000,
		VideoBitrate:     1,
		AudioBitrate:     1,
		PrimaryTimeoutUS: 1,
		PrimaryRetryUS:   1,
	}
	err := cfg.Validate()
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "out_width", cerr.Field)
}

func TestValidateRejectsNegativeJitterBudget(t *testing.T) {
	cfg := Config{
		PrimaryURL:           "srt://host",
		OutWidth:             1280,
		OutHeight:            720,
		OutFPS:               30,
		SampleRate:           48000,
		VideoBitrate:         1,
		AudioBitrate:         1,
		PrimaryTimeoutUS:     1,
		PrimaryRetryUS:       1,
		PrimaryAudioJitterMS: -1,
	}
	err := cfg.Validate()
	require.Error(t, err)
}
