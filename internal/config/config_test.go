package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ginjaninja78/fbr-invoicer/internal/types"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadMainConfig_MissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cfg, err := LoadMainConfig(filepath.Join(dir, "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadMainConfig: %v", err)
	}
	if cfg.FBR.ValidateURL != DefaultValidateURL || cfg.FBR.PostURL != DefaultPostURL {
		t.Fatalf("unexpected endpoints %+v", cfg.FBR)
	}
	if cfg.FBR.Timeout != 30*time.Second {
		t.Fatalf("expected 30s timeout, got %s", cfg.FBR.Timeout)
	}
	if cfg.MaxConcurrency != 4 || !cfg.ContinueOnError {
		t.Fatalf("unexpected processing defaults %+v", cfg)
	}
	if _, err := os.Stat(filepath.Join(dir, "input")); err != nil {
		t.Fatalf("expected input dir to be created: %v", err)
	}
}

func TestLoadMainConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, `
input_dir: `+filepath.Join(dir, "in")+`
output_dir: `+filepath.Join(dir, "out")+`
profiles_dir: `+filepath.Join(dir, "profiles")+`
max_concurrency: 2
fbr:
  post_url: https://example.test/post
  timeout: 5s
`)
	t.Setenv(EnvValidateURL, "https://example.test/validate")
	t.Setenv(EnvLogLevel, "debug")

	cfg, err := LoadMainConfig(path)
	if err != nil {
		t.Fatalf("LoadMainConfig: %v", err)
	}
	if cfg.FBR.PostURL != "https://example.test/post" {
		t.Fatalf("post url from file lost: %q", cfg.FBR.PostURL)
	}
	if cfg.FBR.ValidateURL != "https://example.test/validate" {
		t.Fatalf("env override ignored: %q", cfg.FBR.ValidateURL)
	}
	if cfg.FBR.Timeout != 5*time.Second {
		t.Fatalf("expected 5s, got %s", cfg.FBR.Timeout)
	}
	if cfg.MaxConcurrency != 2 || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestApplyEnv_TimeoutSeconds(t *testing.T) {
	t.Setenv(EnvTimeout, "12")
	var cfg MainConfig
	if err := ApplyEnv(&cfg); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.FBR.Timeout != 12*time.Second {
		t.Fatalf("expected 12s, got %s", cfg.FBR.Timeout)
	}

	t.Setenv(EnvTimeout, "soon")
	if err := ApplyEnv(&cfg); err == nil {
		t.Fatalf("expected an error for a bad timeout")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	writeFile(t, path, "INVOICER_TEST_VALUE=from-file\n")
	t.Setenv("INVOICER_TEST_VALUE", "")
	os.Unsetenv("INVOICER_TEST_VALUE")

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("INVOICER_TEST_VALUE"); got != "from-file" {
		t.Fatalf("expected value from .env, got %q", got)
	}
}

func TestLoadProfiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "karachi.yaml"), `
name: Karachi branch
file_patterns: ["khi_*.xlsx"]
columns:
  buyer_name: Customer
transformation_rules:
  - field: buyer_province
    actions:
      - type: lookup
        lookup_table: {KHI: Sindh}
`)
	writeFile(t, filepath.Join(dir, "lahore.yml"), `
code: lhr
file_patterns: ["lhr_*.csv"]
csv_settings:
  delimiter: ";"
`)

	profiles, err := LoadProfiles(dir)
	if err != nil {
		t.Fatalf("LoadProfiles: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(profiles))
	}
	khi := profiles["karachi"]
	if khi == nil || khi.Name != "Karachi branch" {
		t.Fatalf("karachi profile not keyed by file name: %+v", profiles)
	}
	overrides, err := khi.Overrides()
	if err != nil || overrides[types.FieldBuyerName] != "Customer" {
		t.Fatalf("unexpected overrides %v (%v)", overrides, err)
	}
	lhr := profiles["lhr"]
	if lhr.CSVSettings.Delimiter != ";" || lhr.CSVSettings.DataStartRow != 2 || lhr.CSVSettings.Encoding != "UTF-8" {
		t.Fatalf("csv defaults not applied: %+v", lhr.CSVSettings)
	}

	if p := MatchProfile("/data/khi_march.xlsx", profiles); p != khi {
		t.Fatalf("expected karachi profile, got %+v", p)
	}
	if p := MatchProfile("other.xlsx", profiles); p != nil {
		t.Fatalf("expected no profile, got %+v", p)
	}
}

func TestLoadProfile_UnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	writeFile(t, path, "columns:\n  buyer_colour: Colour\n")
	if _, err := LoadProfile(path); err == nil {
		t.Fatalf("expected unknown field error")
	}
}
