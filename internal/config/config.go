package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config is built once at startup and passed down explicitly.
type Config struct {
	Port string
	// AllowedOrigins lists browser origins for CORS; empty allows any.
	AllowedOrigins []string
	Session        Session
	Export         ExportConfig
	LLM            LLMConfig
	Registry       RegistryConfig
}

// Session holds the per-conversation settings every session starts from.
type Session struct {
	ConfigPath          string
	SavePath            string
	Timezone            string
	BaseDate            string
	FullDayHours        decimal.Decimal
	RequireConfirmation bool
}

type ExportConfig struct {
	S3          S3Config
	PostgresDSN string
}

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// CanUse reports whether enough is set to talk to the bucket.
func (c S3Config) CanUse() bool {
	return c.Endpoint != "" && c.AccessKey != "" && c.SecretKey != "" && c.Bucket != ""
}

type LLMConfig struct {
	APIKey string
	Model  string
	// RPS <= 0 disables client-side rate limiting.
	RPS   float64
	Burst int
}

type RegistryConfig struct {
	MaxSessions int
	IdleTTL     time.Duration
}

const (
	DefaultPort        = ":8080"
	DefaultModel       = "gemini-2.5-flash"
	DefaultMaxSessions = 256
	DefaultIdleTTL     = 2 * time.Hour
)

var defaultFullDay = decimal.NewFromInt(8)

// Load reads .env (when present) and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv), nil
}

// FromEnv builds a Config from getenv. Unparsable values fall back to their
// defaults.
func FromEnv(getenv func(string) string) *Config {
	get := func(key string) string { return strings.TrimSpace(getenv(key)) }

	port := firstNonEmpty(get("PORT"), DefaultPort)
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	return &Config{
		Port:           port,
		AllowedOrigins: splitList(get("CORS_ALLOWED_ORIGINS")),
		Session: Session{
			ConfigPath:          get("TIMESHEET_CONFIG_PATH"),
			SavePath:            get("TIMESHEET_SAVE_PATH"),
			Timezone:            get("TIMESHEET_TZ"),
			BaseDate:            get("TIMESHEET_BASE_DATE"),
			FullDayHours:        ParseFullDay(get("TIMESHEET_FULL_DAY_HOURS")),
			RequireConfirmation: parseBool(get("TIMESHEET_REQUIRE_CONFIRMATION"), false),
		},
		Export: ExportConfig{
			S3: S3Config{
				Endpoint:  get("EXPORT_S3_ENDPOINT"),
				Region:    firstNonEmpty(get("EXPORT_S3_REGION"), "us-east-1"),
				AccessKey: get("EXPORT_S3_ACCESS_KEY"),
				SecretKey: get("EXPORT_S3_SECRET_KEY"),
				Bucket:    get("EXPORT_S3_BUCKET"),
				UseSSL:    parseBool(get("EXPORT_S3_USE_SSL"), true),
			},
			PostgresDSN: get("EXPORT_PG_DSN"),
		},
		LLM: LLMConfig{
			APIKey: get("GEMINI_API_KEY"),
			Model:  firstNonEmpty(get("GEMINI_MODEL"), DefaultModel),
			RPS:    parseFloat(get("GEMINI_RPS")),
			Burst:  parsePositiveInt(get("GEMINI_BURST"), 1),
		},
		Registry: RegistryConfig{
			MaxSessions: parsePositiveInt(get("SESSION_MAX"), DefaultMaxSessions),
			IdleTTL:     parseDuration(get("SESSION_IDLE_TTL"), DefaultIdleTTL),
		},
	}
}

// ParseFullDay returns 8 for empty, unparsable or non-positive input.
func ParseFullDay(raw string) decimal.Decimal {
	if raw == "" {
		return defaultFullDay
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || !d.IsPositive() {
		return defaultFullDay
	}
	return d
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

func parseBool(raw string, def bool) bool {
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

func parsePositiveInt(raw string, def int) int {
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func parseFloat(raw string) float64 {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func parseDuration(raw string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
