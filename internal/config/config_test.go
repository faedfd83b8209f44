package config

import (
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv(envMap(nil))
	if cfg.Port != DefaultPort {
		t.Fatalf("port = %q", cfg.Port)
	}
	if cfg.Session.FullDayHours.String() != "8" {
		t.Fatalf("full day = %s", cfg.Session.FullDayHours)
	}
	if cfg.Session.RequireConfirmation {
		t.Fatal("confirmation should default off")
	}
	if cfg.LLM.Model != DefaultModel {
		t.Fatalf("model = %q", cfg.LLM.Model)
	}
	if cfg.Export.S3.CanUse() {
		t.Fatal("empty s3 config should not be usable")
	}
	if !cfg.Export.S3.UseSSL || cfg.Export.S3.Region != "us-east-1" {
		t.Fatalf("s3 defaults = %+v", cfg.Export.S3)
	}
	if cfg.Registry.MaxSessions != DefaultMaxSessions || cfg.Registry.IdleTTL != DefaultIdleTTL {
		t.Fatalf("registry = %+v", cfg.Registry)
	}
	if cfg.AllowedOrigins != nil {
		t.Fatalf("origins = %v", cfg.AllowedOrigins)
	}
}

func TestAllowedOriginsList(t *testing.T) {
	cfg := FromEnv(envMap(map[string]string{"CORS_ALLOWED_ORIGINS": " https://crew.example.com, ,http://localhost:5173 "}))
	want := []string{"https://crew.example.com", "http://localhost:5173"}
	if len(cfg.AllowedOrigins) != len(want) {
		t.Fatalf("origins = %v", cfg.AllowedOrigins)
	}
	for i := range want {
		if cfg.AllowedOrigins[i] != want[i] {
			t.Fatalf("origins = %v", cfg.AllowedOrigins)
		}
	}
}

func TestFromEnvOverrides(t *testing.T) {
	cfg := FromEnv(envMap(map[string]string{
		"PORT":                           "9090",
		"TIMESHEET_CONFIG_PATH":          " company.yaml ",
		"TIMESHEET_SAVE_PATH":            "/tmp/out.csv",
		"TIMESHEET_TZ":                   "America/Los_Angeles",
		"TIMESHEET_BASE_DATE":            "2025-09-10",
		"TIMESHEET_FULL_DAY_HOURS":       "7.5",
		"TIMESHEET_REQUIRE_CONFIRMATION": "true",
		"EXPORT_S3_ENDPOINT":             "minio:9000",
		"EXPORT_S3_ACCESS_KEY":           "k",
		"EXPORT_S3_SECRET_KEY":           "s",
		"EXPORT_S3_BUCKET":               "exports",
		"EXPORT_S3_USE_SSL":              "false",
		"SESSION_MAX":                    "3",
		"SESSION_IDLE_TTL":               "90s",
	}))
	if cfg.Port != ":9090" {
		t.Fatalf("port = %q", cfg.Port)
	}
	s := cfg.Session
	if s.ConfigPath != "company.yaml" || s.SavePath != "/tmp/out.csv" || s.Timezone != "America/Los_Angeles" || s.BaseDate != "2025-09-10" {
		t.Fatalf("session = %+v", s)
	}
	if s.FullDayHours.String() != "7.5" || !s.RequireConfirmation {
		t.Fatalf("session = %+v", s)
	}
	if !cfg.Export.S3.CanUse() || cfg.Export.S3.UseSSL {
		t.Fatalf("s3 = %+v", cfg.Export.S3)
	}
	if cfg.Registry.MaxSessions != 3 || cfg.Registry.IdleTTL != 90*time.Second {
		t.Fatalf("registry = %+v", cfg.Registry)
	}
}

func TestParseFullDayFallsBack(t *testing.T) {
	for _, raw := range []string{"", "abc", "0", "-4"} {
		if got := ParseFullDay(raw); got.String() != "8" {
			t.Fatalf("ParseFullDay(%q) = %s", raw, got)
		}
	}
}
