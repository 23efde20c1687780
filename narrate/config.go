package narrate

import (
	"fmt"
	"runtime"
	"time"
)

// Rate limits enforced by the engine. Requested rates outside this
// range are clamped, never rejected.
const (
	MinRate = 0.5
	MaxRate = 2.0
)

// Config contains all narration configuration options.
type Config struct {
	// Global narration settings
	Voice string  `yaml:"voice" env:"NARRATO_VOICE"`
	Rate  float64 `yaml:"rate" env:"NARRATO_RATE" envDefault:"1.0"`

	// Chunking settings
	MaxChunkLen int `yaml:"max_chunk_len" env:"NARRATO_MAX_CHUNK_LEN" envDefault:"200"`

	// Playback settings
	Repeat   bool `yaml:"repeat" env:"NARRATO_REPEAT" envDefault:"false"`
	AutoPlay bool `yaml:"auto_play" env:"NARRATO_AUTO_PLAY" envDefault:"false"`

	// Backend-specific configurations
	Remote RemoteConfig `yaml:"remote"`
	Local  LocalConfig  `yaml:"local"`
}

// RemoteConfig contains remote synthesis backend settings.
type RemoteConfig struct {
	URL               string        `yaml:"url" env:"NARRATO_REMOTE_URL"`
	APIKey            string        `yaml:"api_key" env:"NARRATO_REMOTE_API_KEY"`
	Model             string        `yaml:"model" env:"NARRATO_REMOTE_MODEL" envDefault:"tts-1"`
	Voice             string        `yaml:"voice" env:"NARRATO_REMOTE_VOICE" envDefault:"alloy"`
	Timeout           time.Duration `yaml:"timeout" env:"NARRATO_REMOTE_TIMEOUT" envDefault:"30s"`
	RequestsPerMinute int           `yaml:"requests_per_minute" env:"NARRATO_REMOTE_REQUESTS_PER_MINUTE" envDefault:"60"`
}

// LocalConfig contains platform speech backend settings.
type LocalConfig struct {
	Binary         string  `yaml:"binary" env:"NARRATO_LOCAL_BINARY"`
	Voice          string  `yaml:"voice" env:"NARRATO_LOCAL_VOICE"`
	Pitch          float64 `yaml:"pitch" env:"NARRATO_LOCAL_PITCH" envDefault:"1.0"`
	Volume         float64 `yaml:"volume" env:"NARRATO_LOCAL_VOLUME" envDefault:"1.0"`
	WordsPerMinute int     `yaml:"words_per_minute" env:"NARRATO_LOCAL_WPM" envDefault:"175"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Rate:        1.0,
		MaxChunkLen: 200,

		Repeat:   false,
		AutoPlay: false,

		Remote: DefaultRemoteConfig(),
		Local:  DefaultLocalConfig(),
	}
}

// DefaultRemoteConfig returns default remote backend configuration.
func DefaultRemoteConfig() RemoteConfig {
	return RemoteConfig{
		URL:               "https://api.openai.com/v1/audio/speech",
		Model:             "tts-1",
		Voice:             "alloy",
		Timeout:           30 * time.Second,
		RequestsPerMinute: 60,
	}
}

// DefaultLocalConfig returns default platform speech configuration.
func DefaultLocalConfig() LocalConfig {
	cfg := LocalConfig{
		Pitch:          1.0,
		Volume:         1.0,
		WordsPerMinute: 175,
	}

	// Pick the platform speech binary when none is configured
	switch runtime.GOOS {
	case "darwin":
		cfg.Binary = "say"
	case "windows":
		cfg.Binary = "powershell"
	default:
		cfg.Binary = "espeak-ng"
	}

	return cfg
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Rate < MinRate || c.Rate > MaxRate {
		return fmt.Errorf("rate must be between %.1f and %.1f, got %f", MinRate, MaxRate, c.Rate)
	}

	if c.MaxChunkLen < 1 {
		return fmt.Errorf("max_chunk_len must be positive, got %d", c.MaxChunkLen)
	}

	if err := c.Remote.Validate(); err != nil {
		return fmt.Errorf("remote config: %w", err)
	}

	if err := c.Local.Validate(); err != nil {
		return fmt.Errorf("local config: %w", err)
	}

	return nil
}

// Validate checks if the remote backend configuration is valid.
func (c *RemoteConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("remote URL cannot be empty")
	}

	if c.Timeout < time.Second {
		return fmt.Errorf("timeout must be at least 1 second, got %v", c.Timeout)
	}

	if c.RequestsPerMinute < 1 {
		return fmt.Errorf("requests_per_minute must be positive, got %d", c.RequestsPerMinute)
	}

	return nil
}

// Validate checks if the platform speech configuration is valid.
func (c *LocalConfig) Validate() error {
	if c.Binary == "" {
		return fmt.Errorf("speech binary cannot be empty")
	}

	if c.Pitch < 0.0 || c.Pitch > 2.0 {
		return fmt.Errorf("pitch must be between 0.0 and 2.0, got %f", c.Pitch)
	}

	if c.Volume < 0.0 || c.Volume > 1.0 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", c.Volume)
	}

	if c.WordsPerMinute < 50 || c.WordsPerMinute > 500 {
		return fmt.Errorf("words_per_minute must be between 50 and 500, got %d", c.WordsPerMinute)
	}

	return nil
}

// SpeechParams converts local settings to per-utterance parameters at
// the given rate.
func (c *LocalConfig) SpeechParams(rate float64) SpeechParams {
	return SpeechParams{
		Voice:  c.Voice,
		Rate:   rate,
		Pitch:  c.Pitch,
		Volume: c.Volume,
	}
}

// SynthesisOptions converts remote settings to per-request options at
// the given rate.
func (c *RemoteConfig) SynthesisOptions(rate float64) SynthesisOptions {
	return SynthesisOptions{
		Voice: c.Voice,
		Rate:  rate,
	}
}
