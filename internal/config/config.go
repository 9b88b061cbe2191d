package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendSheets   = "sheets"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Queue     QueueConfig     `yaml:"queue"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Events    EventsConfig    `yaml:"events"`
}

type ServerConfig struct {
	Port               string   `yaml:"port"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type LedgerConfig struct {
	Backend             string        `yaml:"backend"`
	SpreadsheetID       string        `yaml:"spreadsheet_id"`
	SheetName           string        `yaml:"sheet_name"`
	ValueInputOption    string        `yaml:"value_input_option"`
	ServiceAccountEmail string        `yaml:"service_account_email"`
	PrivateKey          string        `yaml:"-"`
	DatabaseURL         string        `yaml:"-"`
	SQLitePath          string        `yaml:"sqlite_path"`
	Timeout             time.Duration `yaml:"timeout"`
}

type QueueConfig struct {
	Scope     string `yaml:"scope"`
	TimeZone  string `yaml:"time_zone"`
	Prefix    string `yaml:"prefix"`
	Pad       int    `yaml:"pad"`
	Numbering string `yaml:"numbering"`
	Serialize bool   `yaml:"serialize"`
}

type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"`
	Burst     int `yaml:"burst"`
}

type EventsConfig struct {
	NATSURL       string `yaml:"nats_url"`
	NATSToken     string `yaml:"-"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:               "8080",
			CORSAllowedOrigins: []string{"*"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Ledger: LedgerConfig{
			Backend:          BackendSheets,
			SheetName:        "Queue",
			ValueInputOption: "RAW",
			SQLitePath:       "ticket-queue.db",
			Timeout:          10 * time.Second,
		},
		Queue: QueueConfig{
			Scope:     "today",
			TimeZone:  "Asia/Seoul",
			Prefix:    "A",
			Pad:       3,
			Numbering: "scan",
			Serialize: true,
		},
		RateLimit: RateLimitConfig{
			PerMinute: 120,
			Burst:     30,
		},
		Events: EventsConfig{
			SubjectPrefix: "qms.queue",
		},
	}
}

// Load builds the configuration from defaults, an optional .env file, an
// optional YAML file (QMS_CONFIG_PATH) and environment variables, in that
// order of increasing precedence. Secrets are only read from the
// environment.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	cfg := defaults()
	if path := os.Getenv("QMS_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	readString("PORT", &cfg.Server.Port)
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.Server.CORSAllowedOrigins = splitList(origins)
	}
	readString("LOG_LEVEL", &cfg.Log.Level)
	readString("LOG_FORMAT", &cfg.Log.Format)

	readString("LEDGER_BACKEND", &cfg.Ledger.Backend)
	readString("GOOGLE_SHEET_ID", &cfg.Ledger.SpreadsheetID)
	readString("LEDGER_SHEET_NAME", &cfg.Ledger.SheetName)
	readString("LEDGER_VALUE_INPUT", &cfg.Ledger.ValueInputOption)
	readString("GOOGLE_SERVICE_ACCOUNT_EMAIL", &cfg.Ledger.ServiceAccountEmail)
	readString("GOOGLE_PRIVATE_KEY", &cfg.Ledger.PrivateKey)
	readString("DB_DSN", &cfg.Ledger.DatabaseURL)
	readString("SQLITE_PATH", &cfg.Ledger.SQLitePath)
	cfg.Ledger.Timeout = readDurationSeconds("LEDGER_TIMEOUT_SECONDS", cfg.Ledger.Timeout)

	readString("QUEUE_SCOPE", &cfg.Queue.Scope)
	readString("QUEUE_TIMEZONE", &cfg.Queue.TimeZone)
	readString("TICKET_PREFIX", &cfg.Queue.Prefix)
	cfg.Queue.Pad = readInt("TICKET_PAD", cfg.Queue.Pad)
	readString("QUEUE_NUMBERING", &cfg.Queue.Numbering)
	cfg.Queue.Serialize = readBool("QUEUE_SERIALIZE", cfg.Queue.Serialize)

	cfg.RateLimit.PerMinute = readInt("RATE_LIMIT_PER_MIN", cfg.RateLimit.PerMinute)
	cfg.RateLimit.Burst = readInt("RATE_LIMIT_BURST", cfg.RateLimit.Burst)

	readString("NATS_URL", &cfg.Events.NATSURL)
	readString("NATS_TOKEN", &cfg.Events.NATSToken)
	readString("NATS_SUBJECT_PREFIX", &cfg.Events.SubjectPrefix)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail on first use.
func (c Config) Validate() error {
	var problems []string
	switch c.Ledger.Backend {
	case BackendSheets:
		if c.Ledger.SpreadsheetID == "" {
			problems = append(problems, "GOOGLE_SHEET_ID is required for the sheets ledger")
		}
		if c.Ledger.ServiceAccountEmail == "" || c.Ledger.PrivateKey == "" {
			problems = append(problems, "GOOGLE_SERVICE_ACCOUNT_EMAIL and GOOGLE_PRIVATE_KEY are required for the sheets ledger")
		}
	case BackendPostgres:
		if c.Ledger.DatabaseURL == "" {
			problems = append(problems, "DB_DSN is required for the postgres ledger")
		}
	case BackendSQLite:
		if c.Ledger.SQLitePath == "" {
			problems = append(problems, "SQLITE_PATH is required for the sqlite ledger")
		}
	case BackendMemory:
	default:
		problems = append(problems, fmt.Sprintf("unknown LEDGER_BACKEND %q", c.Ledger.Backend))
	}
	switch strings.ToLower(c.Queue.Scope) {
	case "today", "all":
	default:
		problems = append(problems, fmt.Sprintf("unknown QUEUE_SCOPE %q", c.Queue.Scope))
	}
	switch strings.ToLower(c.Queue.Numbering) {
	case "scan", "sequence":
	default:
		problems = append(problems, fmt.Sprintf("unknown QUEUE_NUMBERING %q", c.Queue.Numbering))
	}
	if _, err := time.LoadLocation(c.Queue.TimeZone); err != nil {
		problems = append(problems, fmt.Sprintf("invalid QUEUE_TIMEZONE %q", c.Queue.TimeZone))
	}
	if c.Queue.Pad <= 0 {
		problems = append(problems, "TICKET_PAD must be positive")
	}
	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

// Location resolves the queue time zone.
func (q QueueConfig) Location() (*time.Location, error) {
	return time.LoadLocation(q.TimeZone)
}

// loadEnvFile reads QMS_ENV_FILE, or ./.env when present. Variables already
// set in the environment win.
func loadEnvFile() error {
	path := os.Getenv("QMS_ENV_FILE")
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func readString(key string, target *string) {
	if raw := os.Getenv(key); raw != "" {
		*target = raw
	}
}

func readDurationSeconds(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func readBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}
