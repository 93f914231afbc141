package config

import (
	"strings"
	"time"
)

// DirectorConfig holds settings for the scene director.
type DirectorConfig struct {
	OBSURL                  string
	OBSPassword             string
	OBSAutoConnect          bool
	OBSRequestTimeoutMS     int
	OBSHandshakeTimeoutMS   int
	OBSSwitchSettleMS       int
	OBSTolerateSwitchErrors bool

	RelayURL        string
	RelayPollMS     int
	PresenceEnabled bool

	BindAddr         string
	PortCandidates   []string
	PortAutoFallback bool

	MappingFile     string
	MappingRedisURL string
	MappingRedisKey string
	LichessAPIBase  string
	NTFYEndpoint    string
	JournalDir      string

	LogLevel string
	LogFile  string
}

// LoadDirector reads director configuration from environment variables.
func LoadDirector() (*DirectorConfig, error) {
	loadDotEnv()
	cfg := &DirectorConfig{
		OBSURL:                  getEnvOrDefault("OBS_WS_URL", "ws://127.0.0.1:4455"),
		OBSPassword:             getEnvOrDefault("OBS_WS_PASSWORD", ""),
		OBSAutoConnect:          getEnvBoolOrDefault("OBS_AUTO_CONNECT", true),
		OBSRequestTimeoutMS:     getEnvIntOrDefault("OBS_REQUEST_TIMEOUT_MS", 5000),
		OBSHandshakeTimeoutMS:   getEnvIntOrDefault("OBS_HANDSHAKE_TIMEOUT_MS", 10000),
		OBSSwitchSettleMS:       getEnvIntOrDefault("OBS_SWITCH_SETTLE_MS", 300),
		OBSTolerateSwitchErrors: getEnvBoolOrDefault("OBS_TOLERATE_SWITCH_ERRORS", true),
		RelayURL:                getEnvOrDefault("RELAY_URL", "http://127.0.0.1:5000"),
		RelayPollMS:             getEnvIntOrDefault("RELAY_POLL_MS", 500),
		PresenceEnabled:         getEnvBoolOrDefault("PRESENCE_ENABLED", false),
		BindAddr:                getEnvOrDefault("DIRECTOR_BIND_ADDR", "127.0.0.1:8190"),
		PortCandidates:          getEnvListOrDefault("DIRECTOR_PORT_CANDIDATES", []string{"127.0.0.1:8191", "127.0.0.1:8192"}),
		PortAutoFallback:        getEnvBoolOrDefault("DIRECTOR_PORT_AUTO_FALLBACK", true),
		MappingFile:             getEnvOrDefault("MAPPING_FILE", "./config/scene_mapping.yaml"),
		MappingRedisURL:         getEnvOrDefault("MAPPING_REDIS_URL", ""),
		MappingRedisKey:         getEnvOrDefault("MAPPING_REDIS_KEY", "chessobs:scene_mapping"),
		LichessAPIBase:          getEnvOrDefault("LICHESS_API_BASE", "https://lichess.org"),
		NTFYEndpoint:            getEnvOrDefault("NTFY_ENDPOINT", ""),
		JournalDir:              getEnvOrDefault("DIRECTOR_JOURNAL_DIR", "data/journal"),
		LogLevel:                strings.ToLower(getEnvOrDefault("DIRECTOR_LOG_LEVEL", "info")),
		LogFile:                 getEnvOrDefault("DIRECTOR_LOG_FILE", "logs/director.log"),
	}
	cfg.OBSRequestTimeoutMS = clampMin(cfg.OBSRequestTimeoutMS, 100)
	cfg.OBSHandshakeTimeoutMS = clampMin(cfg.OBSHandshakeTimeoutMS, 100)
	cfg.OBSSwitchSettleMS = clampMin(cfg.OBSSwitchSettleMS, 0)
	cfg.RelayPollMS = clampMin(cfg.RelayPollMS, 100)
	return cfg, nil
}

func (c *DirectorConfig) RequestTimeout() time.Duration {
	return time.Duration(c.OBSRequestTimeoutMS) * time.Millisecond
}

func (c *DirectorConfig) HandshakeTimeout() time.Duration {
	return time.Duration(c.OBSHandshakeTimeoutMS) * time.Millisecond
}

func (c *DirectorConfig) SettleDelay() time.Duration {
	return time.Duration(c.OBSSwitchSettleMS) * time.Millisecond
}

func (c *DirectorConfig) PollInterval() time.Duration {
	return time.Duration(c.RelayPollMS) * time.Millisecond
}
