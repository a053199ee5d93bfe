package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultListenAddr    = ":8080"
	defaultDBPath        = "cadence.db"
	defaultTickInterval  = 16 * time.Millisecond
	defaultScriptTimeout = 5 * time.Millisecond
	defaultScriptMemMB   = 50
	defaultMQTTTopic     = "cadence/snapshots"
	defaultMQTTClientID  = "cadence"

	envListenAddr    = "CADENCE_LISTEN_ADDR"
	envDBPath        = "CADENCE_DB_PATH"
	envLogLevel      = "CADENCE_LOG_LEVEL"
	envManifest      = "CADENCE_MANIFEST"
	envTickMS        = "CADENCE_TICK_MS"
	envScriptTimeout = "CADENCE_SCRIPT_TIMEOUT_MS"
	envScriptMemMB   = "CADENCE_SCRIPT_MEM_MB"
	envMQTTURL       = "CADENCE_MQTT_URL"
	envMQTTTopic     = "CADENCE_MQTT_TOPIC"
	envMQTTClientID  = "CADENCE_MQTT_CLIENT_ID"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string
	LogLevel   slog.Level

	// ManifestPath is an optional YAML timeline loaded at startup.
	ManifestPath string
	TickInterval time.Duration

	ScriptTimeout  time.Duration
	ScriptMemBytes uint64

	// MQTTURL enables the snapshot publisher when set.
	MQTTURL      string
	MQTTTopic    string
	MQTTClientID string
}

// Load reads configuration from environment variables with sensible defaults.
// Malformed numeric values fall back to their defaults.
func Load() Config {
	cfg := Config{
		ListenAddr:     defaultListenAddr,
		DBPath:         defaultDBPath,
		LogLevel:       slog.LevelInfo,
		TickInterval:   defaultTickInterval,
		ScriptTimeout:  defaultScriptTimeout,
		ScriptMemBytes: defaultScriptMemMB << 20,
		MQTTTopic:      defaultMQTTTopic,
		MQTTClientID:   defaultMQTTClientID,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	cfg.ManifestPath = os.Getenv(envManifest)
	if n, ok := positiveInt(envTickMS); ok {
		cfg.TickInterval = time.Duration(n) * time.Millisecond
	}
	if n, ok := positiveInt(envScriptTimeout); ok {
		cfg.ScriptTimeout = time.Duration(n) * time.Millisecond
	}
	if n, ok := positiveInt(envScriptMemMB); ok {
		cfg.ScriptMemBytes = uint64(n) << 20
	}
	cfg.MQTTURL = os.Getenv(envMQTTURL)
	if v := os.Getenv(envMQTTTopic); v != "" {
		cfg.MQTTTopic = v
	}
	if v := os.Getenv(envMQTTClientID); v != "" {
		cfg.MQTTClientID = v
	}

	return cfg
}

func positiveInt(env string) (int, bool) {
	n, err := strconv.Atoi(os.Getenv(env))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
