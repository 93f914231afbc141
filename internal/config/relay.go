package config

import "strings"

// RelayConfig holds settings for the board relay server.
type RelayConfig struct {
	BindAddr string
	LogLevel string
	LogFile  string
}

// LoadRelay reads relay configuration from environment variables.
func LoadRelay() (*RelayConfig, error) {
	loadDotEnv()
	return &RelayConfig{
		BindAddr: getEnvOrDefault("RELAY_BIND_ADDR", "0.0.0.0:5000"),
		LogLevel: strings.ToLower(getEnvOrDefault("RELAY_LOG_LEVEL", "info")),
		LogFile:  getEnvOrDefault("RELAY_LOG_FILE", "logs/relay.log"),
	}, nil
}
