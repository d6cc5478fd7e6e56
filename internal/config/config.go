package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	PublisherDapr = "dapr"
	PublisherLog  = "log"
	PublisherNone = "none"
)

var ErrInvalidConfig = errors.New("config: invalid")

type Config struct {
	DBPath             string `yaml:"db_path"`
	HTTPAddr           string `yaml:"http_addr"`
	LogLevel           string `yaml:"log_level"`
	LogFormat          string `yaml:"log_format"`
	EventBuffer        int    `yaml:"event_buffer"`
	DaprHTTPPort       int    `yaml:"dapr_http_port"`
	PubsubName         string `yaml:"pubsub_name"`
	Topic              string `yaml:"topic"`
	Publisher          string `yaml:"publisher"`
	MaxConflictRetries int    `yaml:"max_conflict_retries"`
	SchedulerBuffer    int    `yaml:"scheduler_buffer"`
}

func Default() Config {
	return Config{
		DBPath:             "todoflow.db",
		HTTPAddr:           ":8080",
		LogLevel:           "info",
		LogFormat:          "text",
		EventBuffer:        256,
		DaprHTTPPort:       3500,
		PubsubName:         "pubsub",
		Topic:              "task-events",
		Publisher:          PublisherLog,
		MaxConflictRetries: 3,
		SchedulerBuffer:    64,
	}
}

// LoadFile overlays the YAML file at path on base. Keys missing from the
// file keep their base value.
func LoadFile(base Config, path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return base, err
	}
	cfg := base
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return base, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func FromEnv(base Config) Config {
	cfg := base
	if v, ok := getEnvString("TODOFLOW_DB_PATH"); ok {
		cfg.DBPath = v
	}
	if v, ok := getEnvString("TODOFLOW_HTTP_ADDR"); ok {
		cfg.HTTPAddr = v
	}
	if v, ok := getEnvString("TODOFLOW_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := getEnvString("TODOFLOW_LOG_FORMAT"); ok {
		cfg.LogFormat = v
	}
	if v, ok := getEnvInt("TODOFLOW_EVENT_BUFFER"); ok && v > 0 {
		cfg.EventBuffer = v
	}
	if v, ok := getEnvInt("DAPR_HTTP_PORT"); ok && v > 0 {
		cfg.DaprHTTPPort = v
	}
	if v, ok := getEnvInt("TODOFLOW_DAPR_HTTP_PORT"); ok && v > 0 {
		cfg.DaprHTTPPort = v
	}
	if v, ok := getEnvString("TODOFLOW_PUBSUB_NAME"); ok {
		cfg.PubsubName = v
	}
	if v, ok := getEnvString("TODOFLOW_TOPIC"); ok {
		cfg.Topic = v
	}
	if v, ok := getEnvString("TODOFLOW_PUBLISHER"); ok {
		cfg.Publisher = strings.ToLower(v)
	}
	if v, ok := getEnvInt("TODOFLOW_MAX_CONFLICT_RETRIES"); ok && v >= 0 {
		cfg.MaxConflictRetries = v
	}
	if v, ok := getEnvInt("TODOFLOW_SCHEDULER_BUFFER"); ok && v > 0 {
		cfg.SchedulerBuffer = v
	}
	if v, ok := getEnvBool("TODOFLOW_DISABLE_EVENTS"); ok && v {
		cfg.Publisher = PublisherNone
	}
	return cfg
}

func (c Config) Validate() error {
	switch c.Publisher {
	case PublisherDapr, PublisherLog, PublisherNone:
	default:
		return fmt.Errorf("%w: publisher %q", ErrInvalidConfig, c.Publisher)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("%w: db_path is required", ErrInvalidConfig)
	}
	if c.EventBuffer <= 0 || c.SchedulerBuffer <= 0 {
		return fmt.Errorf("%w: buffers must be positive", ErrInvalidConfig)
	}
	if c.MaxConflictRetries < 0 {
		return fmt.Errorf("%w: max_conflict_retries must not be negative", ErrInvalidConfig)
	}
	return nil
}

func (c Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	return lvl, nil
}

// NewLogger builds the process logger described by c.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	lvl, _ := c.Level()
	opts := &slog.HandlerOptions{Level: lvl}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func getEnvString(name string) (string, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	return raw, raw != ""
}

func getEnvInt(name string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func getEnvBool(name string) (bool, bool) {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return false, false
	}
	switch raw {
	case "1", "true", "yes", "y", "on":
		return true, true
	case "0", "false", "no", "n", "off":
		return false, true
	default:
		return false, false
	}
}
