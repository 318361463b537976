package cmd

import (
	"backup-compare/internal/application"
	"backup-compare/internal/compare"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// CLI flag variables
var (
	// Output flags
	findingsFile string
	outputFormat string
	noColor      bool

	// Operation flags
	verbose bool
	quiet   bool
	timeout time.Duration
	logFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "backup-compare LEFT RIGHT",
	Short: "Compare two backup snapshots and report semantic differences",
	Long: `Backup Compare validates a pair of backup snapshots against each other,
pairing records model by model and reporting every meaningful difference it
finds. Fields that are expected to differ between a backup and its restore
(timestamps, regenerated tokens, obfuscated secrets) are checked by dedicated
comparators instead of raw equality, so the report only contains findings a
human has to look at.

Snapshots can be plain files or objects in S3, GCS, or Azure Blob Storage,
optionally compressed with gzip, zstd, or lz4.

Examples:
  # Compare two local snapshot files
  backup-compare backup.json restore.json

  # Compare a local snapshot against one stored in S3
  backup-compare backup.json s3://backups/restore.json.zst

  # Machine-readable output with the findings persisted to a file
  backup-compare left.json right.json --format=json --findings-file=findings.json

  # Quiet run for scripting (no colors, errors only)
  backup-compare left.json right.json --quiet --no-color`,
	Args: cobra.ExactArgs(2),
	RunE: runCompare,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Configuration file flag
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.backup-compare.yaml)")

	// Output flags
	rootCmd.Flags().StringVar(&findingsFile, "findings-file", "", "write the JSON-encoded findings to this file")
	rootCmd.Flags().StringVar(&outputFormat, "format", "pretty", "report format (pretty, json, yaml)")
	rootCmd.Flags().BoolVar(&noColor, "no-color", false, "disable color output")

	// Operation flags
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "snapshot fetch timeout")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "write logs to file instead of stderr")

	// Bind flags to viper
	viper.BindPFlag("findings_file", rootCmd.Flags().Lookup("findings-file"))
	viper.BindPFlag("format", rootCmd.Flags().Lookup("format"))
	viper.BindPFlag("verbose", rootCmd.Flags().Lookup("verbose"))
	viper.BindPFlag("quiet", rootCmd.Flags().Lookup("quiet"))
	viper.BindPFlag("timeout", rootCmd.Flags().Lookup("timeout"))
	viper.BindPFlag("log_file", rootCmd.Flags().Lookup("log-file"))
}

// runCompare is the main execution function for the CLI
func runCompare(cmd *cobra.Command, args []string) error {
	if err := validateFlags(); err != nil {
		return err
	}

	config, err := buildConfig(cmd, args)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	app, err := application.NewApplication(*config)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(cmd.Context())
}

// validateFlags validates CLI flags and their combinations
func validateFlags() error {
	if verbose && quiet {
		return fmt.Errorf("--verbose and --quiet flags are mutually exclusive")
	}

	validFormats := []string{"pretty", "json", "yaml"}
	if !contains(validFormats, outputFormat) {
		return fmt.Errorf("invalid output format '%s', must be one of: %s", outputFormat, strings.Join(validFormats, ", "))
	}

	if timeout <= 0 {
		return fmt.Errorf("timeout must be greater than 0")
	}

	return nil
}

// contains checks if a slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// buildConfig builds the application configuration from CLI flags and config file
func buildConfig(cmd *cobra.Command, args []string) (*application.Config, error) {
	config := &application.Config{}

	// Load from viper (combines config file and CLI flags)
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// Model names contain dots (sentry.widget), which Unmarshal would split
	// on the key delimiter. UnmarshalKey decodes from the raw sub-map and
	// keeps them intact.
	if viper.IsSet("comparators") {
		var comparators compare.RegistryConfig
		if err := viper.UnmarshalKey("comparators", &comparators); err != nil {
			return nil, fmt.Errorf("failed to unmarshal comparator assignments: %w", err)
		}
		config.Comparators = comparators
	}

	config.Left = args[0]
	config.Right = args[1]

	if findingsFile != "" {
		config.FindingsFile = findingsFile
	}
	if cmd.Flags().Changed("format") || config.Format == "" {
		config.Format = outputFormat
	}
	if cmd.Flags().Changed("verbose") {
		config.Verbose = verbose
	}
	if cmd.Flags().Changed("quiet") {
		config.Quiet = quiet
	}
	if cmd.Flags().Changed("timeout") || config.Timeout == 0 {
		config.Timeout = timeout
	}
	if logFile != "" {
		config.LogFile = logFile
	}

	// Inverted flag: --no-color disables, config file may pre-disable
	if cmd.Flags().Changed("no-color") {
		config.ColorEnabled = !noColor
	} else if !viper.IsSet("color_enabled") {
		config.ColorEnabled = true
	}

	return config, nil
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".backup-compare" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".backup-compare")
	}

	// Set environment variable prefix
	viper.SetEnvPrefix("BACKUP_COMPARE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// Version information (set by main package)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
	goVersion = "unknown"
)

// SetVersionInfo sets the version information from build flags
func SetVersionInfo(v, bt, gc, gv string) {
	version = v
	buildTime = bt
	gitCommit = gc
	goVersion = gv
}

// createVersionCommand creates the version subcommand
func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Long:  "Print the version information for backup-compare",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("backup-compare version %s\n", version)
			fmt.Printf("Built: %s\n", buildTime)
			fmt.Printf("Commit: %s\n", gitCommit)
			fmt.Printf("Go version: %s\n", goVersion)
		},
	}
}

// createConfigCommand creates the config subcommand for generating sample config
func createConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Generate a sample configuration file",
		Long: `Generate a sample configuration file that can be used with the --config flag.

This command outputs a complete configuration template with all available
options, including remote snapshot sources and custom comparator assignments.
Redirect the output to a file and customize it for your environment.

Examples:
  # Generate config file
  backup-compare config > config.yaml`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Print(sampleConfig)
		},
	}
}

const sampleConfig = `# Backup Compare Configuration File
# Complete configuration template with all available options

# Output settings
format: pretty            # Report format (pretty, json, yaml)
findings_file: ""         # Optional file for the JSON-encoded findings
color_enabled: true       # Enable colorized output

# Operation settings
verbose: false            # Enable verbose output with detailed information
quiet: false              # Suppress non-error output (mutually exclusive with verbose)
timeout: 60s              # Snapshot fetch timeout
log_file: ""              # Optional log file path (empty = stderr)

# Remote snapshot sources
sources:
  s3:
    region: us-east-1     # AWS region for s3:// snapshot locations
    access_key: ""        # Leave empty to use the default credential chain
    secret_key: ""
  gcs:
    credentials_path: ""  # Service account JSON (empty = application default)
  azure:
    account_name: ""      # Storage account for azure:// snapshot locations
    account_key: ""

# Additional comparator assignments, merged over the built-in defaults,
# keyed by model name. A model of "*" applies the comparators to every model.
comparators:
  sentry.widget:
    datetime_equality: [created_at]
    ignored: [cache_key]
    secret_hex:
      - fields: [signing_token]
        bytes: 32

# Security recommendations:
# 1. Store credentials in environment variables:
#    export BACKUP_COMPARE_SOURCES_S3_ACCESS_KEY=your_key
#    export BACKUP_COMPARE_SOURCES_AZURE_ACCOUNT_KEY=your_key
# 2. Set restrictive file permissions: chmod 600 config.yaml

# Environment variable examples:
# BACKUP_COMPARE_FORMAT=json
# BACKUP_COMPARE_QUIET=1
# BACKUP_COMPARE_SOURCES_S3_REGION=eu-west-1
`

func init() {
	// Add subcommands
	rootCmd.AddCommand(createVersionCommand())
	rootCmd.AddCommand(createConfigCommand())
}
