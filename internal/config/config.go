// =============================================================================
// FBR Invoicer - Configuration Module
// =============================================================================
//
// This module loads the application configuration and the spreadsheet mapping
// profiles.
//
// CONFIGURATION SOURCES (later wins):
//   1. Built-in defaults
//   2. Main config file (config.yaml)
//   3. Environment variables, optionally seeded from a .env file
//
// MAPPING PROFILES (profiles/*.yaml):
//   A profile describes one recurring spreadsheet layout: which file names it
//   applies to, explicit column bindings that override auto-detection, CSV
//   parsing settings, and value transformations applied before normalization.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/fbr-invoicer/internal/types"
)

// Default FBR sandbox endpoints.
const (
	DefaultValidateURL = "https://gw.fbr.gov.pk/di_data/v1/di/validateinvoicedata_sb"
	DefaultPostURL     = "https://gw.fbr.gov.pk/di_data/v1/di/postinvoicedata_sb"
)

// Environment variables read by ApplyEnv.
const (
	EnvDatabasePath = "INVOICER_DB_PATH"
	EnvValidateURL  = "FBR_VALIDATE_URL"
	EnvPostURL      = "FBR_POST_URL"
	EnvTimeout      = "FBR_TIMEOUT"
	EnvLogLevel     = "LOG_LEVEL"
	EnvLogFormat    = "LOG_FORMAT"
	EnvServerAddr   = "INVOICER_ADDR"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is scanned for .xlsx, .xls and .csv invoice sheets.
	InputDir string `yaml:"input_dir"`

	// OutputDir receives payload files, reports and logs.
	OutputDir string `yaml:"output_dir"`

	// InputArchiveDir receives input sheets after a clean run.
	InputArchiveDir string `yaml:"input_archive_dir"`

	// OutputArchiveDir is where CleanOldArchives prunes from.
	OutputArchiveDir string `yaml:"output_archive_dir"`

	// ProfilesDir holds the mapping profile YAML files.
	ProfilesDir string `yaml:"profiles_dir"`

	// DatabasePath is the sqlite file holding seller profiles.
	DatabasePath string `yaml:"database_path"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogFile is where logs go; "stderr" or "stdout" select a stream.
	LogFile string `yaml:"log_file"`

	// LogLevel is one of trace, debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// LogFormat is "console" or "json".
	LogFormat string `yaml:"log_format"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// UUIDFormat names payload files. Placeholders: {uuid} {timestamp} {date}
	// {time} {row} {ntn} {ref}.
	UUIDFormat string `yaml:"uuid_format"`

	// ArchiveInputs moves a sheet to InputArchiveDir when every row succeeded.
	ArchiveInputs bool `yaml:"archive_inputs"`

	// ArchiveDateSubdirs files archived inputs under YYYY/MM/DD.
	ArchiveDateSubdirs bool `yaml:"archive_date_subdirs"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// MaxConcurrency bounds the row normalization workers. 1 is sequential.
	MaxConcurrency int `yaml:"max_concurrency"`

	// ContinueOnError keeps processing the remaining files after one fails.
	ContinueOnError bool `yaml:"continue_on_error"`

	// DefaultSellerID is used when no --seller flag is given.
	DefaultSellerID int64 `yaml:"default_seller_id"`

	FBR    FBRConfig    `yaml:"fbr"`
	Server ServerConfig `yaml:"server"`
}

// FBRConfig points the client at the validate and post endpoints.
type FBRConfig struct {
	ValidateURL string        `yaml:"validate_url"`
	PostURL     string        `yaml:"post_url"`
	Timeout     time.Duration `yaml:"timeout"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// =============================================================================
// MAPPING PROFILE STRUCTURE
// =============================================================================

// MappingProfile describes a known spreadsheet layout.
type MappingProfile struct {
	// Name is used in logs and reports.
	Name string `yaml:"name"`

	// Code identifies the profile on the command line. Defaults to the file name.
	Code string `yaml:"code"`

	// FilePatterns are glob patterns matched against input file names.
	FilePatterns []string `yaml:"file_patterns"`

	// Sheet forces a sheet by name instead of the automatic pick.
	Sheet string `yaml:"sheet,omitempty"`

	// SellerID issues invoices from this seller unless a flag says otherwise.
	SellerID int64 `yaml:"seller_id,omitempty"`

	CSVSettings CSVSettings `yaml:"csv_settings"`

	// Columns binds canonical field keys to headers, overriding detection.
	//
	// Example:
	//   columns:
	//     buyer_name: "Customer"
	//     value_excl_st: "Net Amount"
	Columns map[string]string `yaml:"columns"`

	// TransformationRules rewrite raw values of canonical fields before the
	// row is normalized.
	TransformationRules []TransformationRule `yaml:"transformation_rules"`
}

// CSVSettings controls how CSV inputs are read.
type CSVSettings struct {
	// Delimiter: ",", ";", "|", "tab".
	Delimiter string `yaml:"delimiter"`

	// HeaderRows > 1 merges several header rows into one label per column.
	HeaderRows int `yaml:"header_rows"`

	// DataStartRow is the 1-based line of the first data row.
	DataStartRow int `yaml:"data_start_row"`

	// Encoding: UTF-8, Windows-1252 or ISO-8859-1.
	Encoding string `yaml:"encoding"`
}

// TransformationRule applies Actions, in order, to one canonical field.
type TransformationRule struct {
	Field   string                 `yaml:"field"`
	Actions []TransformationAction `yaml:"actions"`
}

// TransformationAction is a single value rewrite.
type TransformationAction struct {
	Type        string            `yaml:"type"`
	Value       string            `yaml:"value,omitempty"`
	Find        string            `yaml:"find,omitempty"`
	LookupTable map[string]string `yaml:"lookup_table,omitempty"`
}

// =============================================================================
// LOADING FUNCTIONS
// =============================================================================

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment. Missing files are skipped; existing variables are kept.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// LoadMainConfig reads configPath, applies environment overrides and
// defaults, and creates the working directories. A missing file is not an
// error: the defaults are used.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	cfg := &MainConfig{ContinueOnError: true}

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	applyMainConfigDefaults(cfg)

	if err := validateMainConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with any of the Env* variables that are set.
func ApplyEnv(cfg *MainConfig) error {
	if v := os.Getenv(EnvDatabasePath); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv(EnvValidateURL); v != "" {
		cfg.FBR.ValidateURL = v
	}
	if v := os.Getenv(EnvPostURL); v != "" {
		cfg.FBR.PostURL = v
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			if secs, convErr := strconv.Atoi(v); convErr == nil {
				d = time.Duration(secs) * time.Second
			} else {
				return fmt.Errorf("invalid %s %q: %w", EnvTimeout, v, err)
			}
		}
		cfg.FBR.Timeout = d
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv(EnvServerAddr); v != "" {
		cfg.Server.Addr = v
	}
	return nil
}

func applyMainConfigDefaults(cfg *MainConfig) {
	if cfg.InputDir == "" {
		cfg.InputDir = "./input"
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "./output"
	}
	if cfg.InputArchiveDir == "" {
		cfg.InputArchiveDir = "./input_archive"
	}
	if cfg.OutputArchiveDir == "" {
		cfg.OutputArchiveDir = "./output_archive"
	}
	if cfg.ProfilesDir == "" {
		cfg.ProfilesDir = "./profiles"
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "sellers.db"
	}
	if cfg.LogFile == "" {
		cfg.LogFile = "stderr"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "console"
	}
	if cfg.UUIDFormat == "" {
		cfg.UUIDFormat = "invoice_{row}_{uuid}.json"
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	if cfg.FBR.ValidateURL == "" {
		cfg.FBR.ValidateURL = DefaultValidateURL
	}
	if cfg.FBR.PostURL == "" {
		cfg.FBR.PostURL = DefaultPostURL
	}
	if cfg.FBR.Timeout <= 0 {
		cfg.FBR.Timeout = 30 * time.Second
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
}

func validateMainConfig(cfg *MainConfig) error {
	dirs := []string{
		cfg.InputDir,
		cfg.OutputDir,
		cfg.ProfilesDir,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if !strings.Contains(cfg.UUIDFormat, "{uuid}") && !strings.Contains(cfg.UUIDFormat, "{row}") {
		return fmt.Errorf("uuid_format %q must contain {uuid} or {row}", cfg.UUIDFormat)
	}
	return nil
}

// LoadProfiles reads every *.yaml and *.yml file in dir. The map key is the
// profile Code.
func LoadProfiles(dir string) (map[string]*MappingProfile, error) {
	profiles := make(map[string]*MappingProfile)

	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list profile files: %w", err)
	}
	ymlFiles, err := filepath.Glob(filepath.Join(dir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list profile files: %w", err)
	}
	files = append(files, ymlFiles...)

	for _, file := range files {
		p, err := LoadProfile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
		if _, dup := profiles[p.Code]; dup {
			return nil, fmt.Errorf("duplicate profile code %q in %s", p.Code, file)
		}
		profiles[p.Code] = p
	}
	return profiles, nil
}

// LoadProfile reads and validates a single profile file.
func LoadProfile(path string) (*MappingProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var p MappingProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse file: %w", err)
	}
	if p.Code == "" {
		p.Code = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if p.Name == "" {
		p.Name = p.Code
	}
	applyCSVDefaults(&p.CSVSettings)

	if _, err := p.Overrides(); err != nil {
		return nil, err
	}
	for _, r := range p.TransformationRules {
		if _, ok := types.ParseField(r.Field); !ok {
			return nil, fmt.Errorf("transformation rule for unknown field %q", r.Field)
		}
	}
	return &p, nil
}

func applyCSVDefaults(s *CSVSettings) {
	if s.Delimiter == "" {
		s.Delimiter = ","
	}
	if s.HeaderRows <= 0 {
		s.HeaderRows = 1
	}
	if s.DataStartRow <= 0 {
		s.DataStartRow = s.HeaderRows + 1
	}
	if s.Encoding == "" {
		s.Encoding = "UTF-8"
	}
}

// DefaultCSVSettings is used for CSV inputs no profile claims.
func DefaultCSVSettings() CSVSettings {
	var s CSVSettings
	applyCSVDefaults(&s)
	return s
}

// Overrides converts Columns into typed column bindings.
func (p *MappingProfile) Overrides() (map[types.CanonicalField]string, error) {
	out := make(map[types.CanonicalField]string, len(p.Columns))
	for key, header := range p.Columns {
		field, ok := types.ParseField(key)
		if !ok {
			return nil, fmt.Errorf("profile %s: unknown field %q in columns", p.Code, key)
		}
		out[field] = header
	}
	return out, nil
}

// MatchProfile returns the first profile, in code order, with a file pattern
// matching the base name of filePath.
func MatchProfile(filePath string, profiles map[string]*MappingProfile) *MappingProfile {
	name := filepath.Base(filePath)

	codes := make([]string, 0, len(profiles))
	for code := range profiles {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		for _, pattern := range profiles[code].FilePatterns {
			if ok, err := filepath.Match(pattern, name); err == nil && ok {
				return profiles[code]
			}
		}
	}
	return nil
}
