package config

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Config holds all configuration for the application
type Config struct {
	// File paths
	DBPath    string
	RulesPath string

	// Server settings
	ServerHost     string
	ServerPort     int
	APIKey         string
	RecordSearches bool

	// Ingestion settings
	MaxItems   int
	FetchDelay time.Duration
	DevToTag   string
	Interval   time.Duration

	// Summarization settings
	OpenAIAPIKey string
	OpenAIModel  string

	// Log settings
	LogLevel zerolog.Level
}

// DefaultConfig returns an initial configuration with hardcoded defaults.
func DefaultConfig() *Config {
	logLevel, _ := zerolog.ParseLevel(DefaultLogLevel)

	return &Config{
		DBPath:         DefaultDBPath,
		RulesPath:      DefaultRulesPath,
		ServerHost:     DefaultServerHost,
		ServerPort:     DefaultServerPort,
		APIKey:         GetEnvString("TECHTRENDS_API_KEY", ""),
		RecordSearches: GetEnvBool("TECHTRENDS_RECORD_SEARCHES", true),
		MaxItems:       DefaultMaxItems,
		FetchDelay:     time.Duration(DefaultFetchDelayMS) * time.Millisecond,
		DevToTag:       DefaultDevToTag,
		Interval:       time.Duration(DefaultInterval) * time.Minute,
		OpenAIAPIKey:   GetEnvString("OPENAI_API_KEY", ""),
		OpenAIModel:    GetEnvString("TECHTRENDS_OPENAI_MODEL", DefaultOpenAIModel),
		LogLevel:       GetEnvLogLevel("TECHTRENDS_LOG_LEVEL", logLevel),
	}
}

// ListenAddr returns the formatted listen address for the HTTP server.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}
