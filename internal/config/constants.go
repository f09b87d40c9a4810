package config

// Constants defining default values for application configuration
const (
	DefaultDBPath    = "./techtrends.db"
	DefaultRulesPath = "" // Empty string means built-in category rules

	DefaultServerPort = 8080
	DefaultServerHost = "" // Empty string means all interfaces

	DefaultMaxItems     = 50 // Per-source cap for one ingestion run
	DefaultFetchDelayMS = 1000
	DefaultDevToTag     = "" // Empty string means no tag filter
	DefaultInterval     = 0  // Minutes between ingestion runs, 0 for one-shot

	DefaultOpenAIModel = "gpt-4o-mini"

	DefaultLogLevel = "debug"
)
