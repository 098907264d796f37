package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application's configuration.
type Config struct {
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Server struct {
		Port      string `yaml:"port"`
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"server"`
	AudioStorage struct {
		URL string `yaml:"url"`
	} `yaml:"audio_storage"`
	Transcription struct {
		URL            string `yaml:"url"`
		TimeoutSeconds int64  `yaml:"timeout_seconds"`
	} `yaml:"transcription"`
	Analysis struct {
		URL            string `yaml:"url"`
		TimeoutSeconds int64  `yaml:"timeout_seconds"`
	} `yaml:"analysis"`
	Coaching struct {
		URL            string `yaml:"url"`
		Enabled        bool   `yaml:"enabled"`
		TimeoutSeconds int64  `yaml:"timeout_seconds"`
	} `yaml:"coaching"`
	Pipeline struct {
		Workers        int     `yaml:"workers"`
		QueueSize      int     `yaml:"queue_size"`
		MaxRetries     int     `yaml:"max_retries"`
		BackoffSeconds float64 `yaml:"backoff_seconds"`
	} `yaml:"pipeline"`
}

// LoadConfig reads configuration from the specified YAML file.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return config, nil
}

// TranscriptionTimeout returns the transcription call timeout.
func (c *Config) TranscriptionTimeout() time.Duration {
	return timeoutOrDefault(c.Transcription.TimeoutSeconds, 120*time.Second)
}

// AnalysisTimeout returns the analysis call timeout.
func (c *Config) AnalysisTimeout() time.Duration {
	return timeoutOrDefault(c.Analysis.TimeoutSeconds, 120*time.Second)
}

// CoachingTimeout returns the coaching/report call timeout.
func (c *Config) CoachingTimeout() time.Duration {
	return timeoutOrDefault(c.Coaching.TimeoutSeconds, 90*time.Second)
}

func timeoutOrDefault(seconds int64, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
