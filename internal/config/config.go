// =============================================================================
// TNS AT Report Builder - Configuration Module
// =============================================================================
//
// This module loads the optional YAML configuration file. Every setting has a
// default, so the tool runs without any file at all; command line flags are
// applied on top by the cmd package.
//
// EXAMPLE (tnsreport.yaml):
//   dictionary_file: ~/tns/values.json
//   catalog:
//     format: auto
//     comment_prefix: "#"
//     null_values: ["null", "None", "nan"]
//     photometry_marker: _Phot
//   validation:
//     strict: false
//     stop_on_first_error: false
//   output:
//     indent: "  "
//     escape_html: false
//   logging:
//     level: info
//     format: console
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the configuration file looked up in the working
// directory when no --config flag is given.
const DefaultFileName = "tnsreport.yaml"

// =============================================================================
// CONFIGURATION STRUCTURE
// =============================================================================

// Config holds the application configuration.
type Config struct {
	// DictionaryFile is the TNS reference dictionary (values.json).
	// Default: values.json in the working directory.
	DictionaryFile string `yaml:"dictionary_file"`

	// Catalog controls how the input catalog is read.
	Catalog CatalogSettings `yaml:"catalog"`

	// Validation controls how catalog findings are treated.
	Validation ValidationSettings `yaml:"validation"`

	// Output controls how the report is written.
	Output OutputSettings `yaml:"output"`

	// Logging controls log verbosity and format.
	Logging LoggingSettings `yaml:"logging"`
}

// CatalogSettings defines how the catalog file is parsed.
type CatalogSettings struct {
	// Format is one of: auto, csv, tsv, pipe, whitespace, xlsx.
	// "auto" picks xlsx by extension and otherwise sniffs the first line.
	Format string `yaml:"format"`

	// Delimiter overrides the delimiter for csv catalogs (e.g. ";").
	Delimiter string `yaml:"delimiter"`

	// CommentPrefix marks lines to skip in text catalogs. Default: "#".
	CommentPrefix string `yaml:"comment_prefix"`

	// Sheet is the worksheet to read from a workbook. Default: first sheet.
	Sheet string `yaml:"sheet"`

	// NullValues are cell values treated as empty, in addition to "--" and
	// the empty string. Default: ["null", "None"].
	NullValues []string `yaml:"null_values"`

	// PhotometryMarker identifies flux columns when scanning for additional
	// bands. Default: "_Phot".
	PhotometryMarker string `yaml:"photometry_marker"`
}

// ValidationSettings defines how strictly the catalog is checked.
type ValidationSettings struct {
	// Strict turns warnings into run-aborting findings. Default: false.
	Strict bool `yaml:"strict"`

	// StopOnFirstError ends validation at the first error instead of
	// collecting every finding. Default: false.
	StopOnFirstError bool `yaml:"stop_on_first_error"`
}

// OutputSettings defines how the report document is written.
type OutputSettings struct {
	// Indent is the per-level indentation. Default: two spaces.
	Indent string `yaml:"indent"`

	// EscapeHTML escapes <, > and & in strings. Default: false.
	EscapeHTML bool `yaml:"escape_html"`
}

// LoggingSettings defines log output.
type LoggingSettings struct {
	// Level is one of debug, info, warn, error. Default: info.
	Level string `yaml:"level"`

	// Format is console or json. Default: console.
	Format string `yaml:"format"`
}

// Names accepted for CatalogSettings.Format.
var catalogFormats = map[string]bool{
	"auto": true, "csv": true, "tsv": true, "pipe": true,
	"whitespace": true, "ascii": true, "basic": true,
	"xlsx": true, "excel": true,
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load loads the configuration from a YAML file. The file must exist.
//
// PARAMETERS:
//   - path: The path to the configuration file. "~" and $VARS are expanded.
//
// RETURNS:
//   - The configuration with defaults applied and paths expanded.
//   - An error if the file cannot be read, parsed or validated.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config file '%s': %w", path, err)
	}

	return cfg, nil
}

// LoadOptional behaves like Load but returns Default when the file does not
// exist.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Parse decodes YAML configuration content, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func applyDefaults(cfg *Config) {
	if cfg.DictionaryFile == "" {
		cfg.DictionaryFile = "values.json"
	}
	cfg.DictionaryFile = ExpandPath(cfg.DictionaryFile)

	if cfg.Catalog.Format == "" {
		cfg.Catalog.Format = "auto"
	}
	if cfg.Catalog.CommentPrefix == "" {
		cfg.Catalog.CommentPrefix = "#"
	}
	if cfg.Catalog.NullValues == nil {
		cfg.Catalog.NullValues = []string{"null", "None"}
	}
	if cfg.Catalog.PhotometryMarker == "" {
		cfg.Catalog.PhotometryMarker = "_Phot"
	}

	if cfg.Output.Indent == "" {
		cfg.Output.Indent = "  "
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}

// Validate checks option values. It is called again by the cmd package after
// flags have been applied.
func (c *Config) Validate() error {
	if !catalogFormats[strings.ToLower(c.Catalog.Format)] {
		return fmt.Errorf("catalog.format %q is not supported", c.Catalog.Format)
	}

	if strings.TrimSpace(c.Catalog.CommentPrefix) != c.Catalog.CommentPrefix {
		return fmt.Errorf("catalog.comment_prefix %q must not contain surrounding whitespace", c.Catalog.CommentPrefix)
	}

	if strings.Trim(c.Output.Indent, " \t") != "" {
		return fmt.Errorf("output.indent %q may only contain spaces and tabs", c.Output.Indent)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "console", "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of console, json", c.Logging.Format)
	}

	return nil
}

// =============================================================================
// PATH HELPERS
// =============================================================================

// ExpandPath expands a leading "~" to the user's home directory and then
// expands environment variables.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}

	return os.ExpandEnv(path)
}
