package config

import "os"

// Config holds server configuration.
type Config struct {
	Port        string
	LogLevel    string
	DataDir     string
	ProfilePath string
}

// Load loads configuration from environment variables.
func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}

	return &Config{
		Port:        port,
		LogLevel:    logLevel,
		DataDir:     dataDir,
		ProfilePath: os.Getenv("REGISTRY_PROFILE"),
	}
}
