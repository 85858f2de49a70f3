package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/titanous/json5"
)

// Default returns a Config populated with the defaults named in spec §6.
func Default() *Config {
	return &Config{
		PollTickSec:            1.5,
		BatchMax:               50,
		IdleJitterMS:           0,
		JoinIntervalSec:        180,
		JoinJitterMS:           0,
		SessRescanSec:          20,
		HealthcheckIntervalSec: 45,
		IncludeMedia:           true,
		MediaMaxMB:             50,
		BindHost:               "0.0.0.0",
		BindPort:               8080,
		DBMode:                 "file",
		StateDir:               "./data",
		TelemetryServiceName:   "chanmirror",
	}
}

// Load builds a Config by overlaying an optional JSON5 file (path from
// CHANMIRROR_CONFIG, default "./chanmirror.json5") onto Default(), then
// applying environment overrides — the same file-then-env layering the
// teacher's internal/config.Load(path) uses, except the file here is
// optional scaffolding for the handful of settings spec.md doesn't name
// an env var for (none today); every variable in spec.md §6 always comes
// through applyEnvOverrides and always wins over the file.
func Load() *Config {
	c := Default()
	if err := c.applyConfigFile(); err != nil {
		fmt.Fprintf(os.Stderr, "chanmirror: config file: %v\n", err)
	}
	c.applyEnvOverrides()
	return c
}

func (c *Config) applyConfigFile() error {
	path := os.Getenv("CHANMIRROR_CONFIG")
	if path == "" {
		path = "./chanmirror.json5"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json5.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envFloat := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}
	envInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	envBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = v == "true" || v == "1"
		}
	}

	envStr("API_ID", &c.APIID)
	envStr("API_HASH", &c.APIHash)
	envStr("API_BEARER", &c.APIBearer)

	envFloat("POLL_TICK_SEC", &c.PollTickSec)
	envInt("BATCH_MAX", &c.BatchMax)
	envInt("IDLE_JITTER_MS", &c.IdleJitterMS)

	envInt("JOIN_INTERVAL_SEC", &c.JoinIntervalSec)
	envInt("JOIN_JITTER_MS", &c.JoinJitterMS)

	envInt("SESS_RESCAN_SEC", &c.SessRescanSec)
	envInt("HEALTHCHECK_INTERVAL_SEC", &c.HealthcheckIntervalSec)

	envBool("INCLUDE_MEDIA", &c.IncludeMedia)
	envInt("MEDIA_MAX_MB", &c.MediaMaxMB)

	envStr("TELEGRAM_ALERT_BOT_TOKEN", &c.AlertBotToken)
	envStr("TELEGRAM_ALERT_CHAT_ID", &c.AlertChatID)
	envStr("TELEGRAM_ALERT_TOPIC_ID", &c.AlertTopicID)

	envStr("BIND_HOST", &c.BindHost)
	envInt("BIND_PORT", &c.BindPort)

	envStr("DB_MODE", &c.DBMode)
	envStr("POSTGRES_DSN", &c.PostgresDSN)
	envStr("STATE_DIR", &c.StateDir)
	if c.PostgresDSN != "" && os.Getenv("DB_MODE") == "" {
		c.DBMode = "postgres"
	}

	envBool("TELEMETRY_ENABLED", &c.TelemetryEnabled)
	envStr("TELEMETRY_ENDPOINT", &c.TelemetryEndpoint)
	envStr("TELEMETRY_SERVICE_NAME", &c.TelemetryServiceName)
}

// SessionsDir is where authorized session files live.
func (c *Config) SessionsDir() string { return c.StateDir + "/sessions" }

// PendingSessionsDir is where in-flight interactive logins stage their files.
func (c *Config) PendingSessionsDir() string { return c.StateDir + "/sessions_pending" }

// StatePath is the JSON snapshot file used by the file-backed store.
func (c *Config) StatePath() string { return c.StateDir + "/state.json" }
