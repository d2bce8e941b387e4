package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete pipeline configuration
type Config struct {
	Audio    AudioConfig    `yaml:"audio"`
	VAD      VADConfig      `yaml:"vad"`
	Chunking ChunkingConfig `yaml:"chunking"`
	Engine   EngineConfig   `yaml:"engine"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Output   OutputConfig   `yaml:"output"`
	HTTP     HTTPConfig     `yaml:"http"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// AudioConfig contains audio capture parameters
type AudioConfig struct {
	SampleRate    int     `yaml:"sample_rate"`
	FrameDuration float64 `yaml:"frame_duration"` // seconds
}

// VADConfig contains voice activity detection configuration
type VADConfig struct {
	Enabled            bool    `yaml:"enabled"`
	Sensitivity        int     `yaml:"sensitivity"`
	SilenceThreshold   float64 `yaml:"silence_threshold"`    // seconds
	MaxSegmentDuration float64 `yaml:"max_segment_duration"` // seconds
}

// ChunkingConfig contains fixed-window chunking configuration, used when
// VAD segmentation is disabled
type ChunkingConfig struct {
	ChunkDuration    float64 `yaml:"chunk_duration"`     // seconds
	Overlap          float64 `yaml:"overlap"`            // seconds
	MinChunkDuration float64 `yaml:"min_chunk_duration"` // seconds
}

// EngineConfig contains inference server configuration
type EngineConfig struct {
	Endpoint   string `yaml:"endpoint"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	Language   string `yaml:"language"` // empty means auto-detect
	Timeout    int    `yaml:"timeout"`  // seconds
	MaxRetries int    `yaml:"max_retries"`
}

// PipelineConfig contains transcript assembly and queueing configuration
type PipelineConfig struct {
	QueueSize       int     `yaml:"queue_size"`
	ResultQueueSize int     `yaml:"result_queue_size"`
	MinSentenceLen  int     `yaml:"min_sentence_len"` // words
	MaxContextWords int     `yaml:"max_context_words"`
	JoinTimeout     float64 `yaml:"join_timeout"` // seconds
}

// OutputConfig contains on-disk capture configuration
type OutputConfig struct {
	Directory      string `yaml:"directory"`
	SaveAudio      bool   `yaml:"save_audio"`
	SaveTranscript bool   `yaml:"save_transcript"`
}

// HTTPConfig contains monitoring HTTP server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.VAD.Validate(); err != nil {
		return fmt.Errorf("vad config: %w", err)
	}

	if err := c.Chunking.Validate(); err != nil {
		return fmt.Errorf("chunking config: %w", err)
	}

	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine config: %w", err)
	}

	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate != 8000 && a.SampleRate != 16000 {
		return fmt.Errorf("sample_rate must be 8000 or 16000 Hz, got %d", a.SampleRate)
	}

	if a.FrameDuration <= 0 || a.FrameDuration > 1 {
		return fmt.Errorf("frame_duration must be within (0, 1] seconds, got %f", a.FrameDuration)
	}

	return nil
}

// Validate validates VAD configuration
func (v *VADConfig) Validate() error {
	if v.Sensitivity < 0 || v.Sensitivity > 3 {
		return fmt.Errorf("sensitivity must be between 0 and 3, got %d", v.Sensitivity)
	}

	if v.SilenceThreshold <= 0 {
		return fmt.Errorf("silence_threshold must be positive, got %f", v.SilenceThreshold)
	}

	if v.MaxSegmentDuration <= v.SilenceThreshold {
		return fmt.Errorf("max_segment_duration (%f) must be greater than silence_threshold (%f)",
			v.MaxSegmentDuration, v.SilenceThreshold)
	}

	return nil
}

// Validate validates chunking configuration
func (c *ChunkingConfig) Validate() error {
	if c.ChunkDuration <= 0 {
		return fmt.Errorf("chunk_duration must be positive, got %f", c.ChunkDuration)
	}

	if c.Overlap < 0 || c.Overlap >= c.ChunkDuration {
		return fmt.Errorf("overlap must be within [0, chunk_duration), got %f", c.Overlap)
	}

	if c.MinChunkDuration <= 0 || c.MinChunkDuration > c.ChunkDuration {
		return fmt.Errorf("min_chunk_duration must be within (0, chunk_duration], got %f", c.MinChunkDuration)
	}

	return nil
}

// Validate validates engine configuration
func (e *EngineConfig) Validate() error {
	if e.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if e.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", e.Timeout)
	}

	if e.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", e.MaxRetries)
	}

	return nil
}

// Validate validates pipeline configuration
func (p *PipelineConfig) Validate() error {
	if p.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1, got %d", p.QueueSize)
	}

	if p.ResultQueueSize < 1 {
		return fmt.Errorf("result_queue_size must be at least 1, got %d", p.ResultQueueSize)
	}

	if p.MinSentenceLen < 1 {
		return fmt.Errorf("min_sentence_len must be at least 1, got %d", p.MinSentenceLen)
	}

	if p.MaxContextWords < 1 {
		return fmt.Errorf("max_context_words must be at least 1, got %d", p.MaxContextWords)
	}

	if p.JoinTimeout <= 0 {
		return fmt.Errorf("join_timeout must be positive, got %f", p.JoinTimeout)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetFrameDuration returns the frame duration as a time.Duration
func (a *AudioConfig) GetFrameDuration() time.Duration {
	return time.Duration(a.FrameDuration * float64(time.Second))
}

// GetSilenceThreshold returns the silence threshold as a time.Duration
func (v *VADConfig) GetSilenceThreshold() time.Duration {
	return time.Duration(v.SilenceThreshold * float64(time.Second))
}

// GetMaxSegmentDuration returns the segment safety cap as a time.Duration
func (v *VADConfig) GetMaxSegmentDuration() time.Duration {
	return time.Duration(v.MaxSegmentDuration * float64(time.Second))
}

// GetChunkDuration returns the chunk window length as a time.Duration
func (c *ChunkingConfig) GetChunkDuration() time.Duration {
	return time.Duration(c.ChunkDuration * float64(time.Second))
}

// GetOverlap returns the chunk overlap as a time.Duration
func (c *ChunkingConfig) GetOverlap() time.Duration {
	return time.Duration(c.Overlap * float64(time.Second))
}

// GetMinChunkDuration returns the minimum chunk length as a time.Duration
func (c *ChunkingConfig) GetMinChunkDuration() time.Duration {
	return time.Duration(c.MinChunkDuration * float64(time.Second))
}

// GetTimeoutDuration returns the engine request timeout as a time.Duration
func (e *EngineConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(e.Timeout) * time.Second
}

// GetJoinTimeout returns the shutdown join timeout as a time.Duration
func (p *PipelineConfig) GetJoinTimeout() time.Duration {
	return time.Duration(p.JoinTimeout * float64(time.Second))
}
