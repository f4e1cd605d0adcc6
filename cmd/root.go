// =============================================================================
// TNS AT Report Builder - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command is
// the base command that all other commands are attached to. Given two
// arguments it converts a catalog directly, like 'tnsreport convert'.
//
// COBRA CLI STRUCTURE:
//   rootCmd (tnsreport CATALOG OUTPUT)
//   ├── convertCmd  (tnsreport convert CATALOG OUTPUT)
//   ├── validateCmd (tnsreport validate CATALOG)
//   └── versionCmd  (tnsreport version)
//
// CONFIGURATION:
//   Settings are resolved in this order, later wins:
//   1. Built-in defaults
//   2. The YAML configuration file (tnsreport.yaml, or --config)
//   3. TNSREPORT_* environment variables
//   4. Command-line flags
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ginjaninja78/tns-at-report/internal/config"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the configuration file.
var cfgFile string

// cfg is the resolved configuration, set before any command runs.
var cfg *config.Config

// Viper keys for settings that flags and environment variables can override.
const (
	keyDictionary   = "dictionary_file"
	keyLogLevel     = "logging.level"
	keyLogFormat    = "logging.format"
	keyFormat       = "catalog.format"
	keyDelimiter    = "catalog.delimiter"
	keySheet        = "catalog.sheet"
	keyIndent       = "output.indent"
	keyMarker       = "catalog.photometry_marker"
	keyCommentStart = "catalog.comment_prefix"
)

// envPrefix prefixes environment variables, e.g. TNSREPORT_LOGGING_LEVEL.
const envPrefix = "TNSREPORT"

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "tnsreport CATALOG OUTPUT",
	Short: "TNS AT Report Builder - Convert transient catalogs to TNS bulk reports",
	Long: `TNS AT Report Builder converts a catalog of astronomical transients into
the JSON document accepted by the Transient Name Server bulk AT report
interface.

Group, filter, instrument, unit, archive and AT type labels in the catalog
are looked up in the TNS values.json dictionary. Coordinates and dates are
formatted the way the registry expects.

Example Usage:
  tnsreport catalog.csv report.json              # Convert a catalog
  tnsreport convert catalog.xlsx report.json     # Same, explicit subcommand
  tnsreport validate catalog.csv                 # Check a catalog, write nothing
  tnsreport --dictionary ~/tns/values.json catalog.ecsv report.json`,

	Args:              cobra.RangeArgs(0, 2),
	PersistentPreRunE: initConfig,
	SilenceUsage:      true,
	SilenceErrors:     true,

	RunE: func(cmd *cobra.Command, args []string) error {
		switch len(args) {
		case 0:
			return cmd.Help()
		case 2:
			return runConvert(cmd, args[0], args[1])
		default:
			return fmt.Errorf("expected CATALOG and OUTPUT, got %d argument(s)", len(args))
		}
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute adds all child commands to the root command and runs it. This is
// called by main.main(). SIGINT and SIGTERM cancel the command's context.
func Execute() {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("received interrupt signal, stopping")
		cancel()
	}()

	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	// ==========================================================================
	// PERSISTENT FLAGS
	// ==========================================================================
	// Persistent flags are available to this command and all subcommands.

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to the configuration file (default is ./"+config.DefaultFileName+" if present)")
	flags.String("dictionary", "", "Path to the TNS values.json dictionary (default is ./values.json)")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("log-format", "", "Log format (console, json)")

	_ = viper.BindPFlag(keyDictionary, flags.Lookup("dictionary"))
	_ = viper.BindPFlag(keyLogLevel, flags.Lookup("log-level"))
	_ = viper.BindPFlag(keyLogFormat, flags.Lookup("log-format"))

	addConvertFlags(rootCmd)
}

// initConfig loads the configuration file and applies environment and flag
// overrides, then sets up logging.
func initConfig(_ *cobra.Command, _ []string) error {
	var err error
	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
	} else {
		cfg, err = config.LoadOptional(config.DefaultFileName)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := applyOverrides(viper.GetViper(), cfg); err != nil {
		return err
	}

	return setupLogging(cfg.Logging)
}

// applyOverrides copies every non-empty setting found in v onto cfg and
// validates the result.
func applyOverrides(v *viper.Viper, cfg *config.Config) error {
	if s := v.GetString(keyDictionary); s != "" {
		cfg.DictionaryFile = config.ExpandPath(s)
	}

	overrides := map[string]*string{
		keyLogLevel:     &cfg.Logging.Level,
		keyLogFormat:    &cfg.Logging.Format,
		keyFormat:       &cfg.Catalog.Format,
		keyDelimiter:    &cfg.Catalog.Delimiter,
		keySheet:        &cfg.Catalog.Sheet,
		keyIndent:       &cfg.Output.Indent,
		keyMarker:       &cfg.Catalog.PhotometryMarker,
		keyCommentStart: &cfg.Catalog.CommentPrefix,
	}
	for key, field := range overrides {
		if s := v.GetString(key); s != "" {
			*field = s
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// setupLogging installs the default slog logger on stderr.
func setupLogging(settings config.LoggingSettings) error {
	var level slog.Level
	switch strings.ToLower(settings.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level: %s", settings.Level)
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(settings.Format) {
	case "console", "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("invalid log format: %s", settings.Format)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}
