package application

import (
	"context"
	"fmt"
	"os"
	"time"

	"backup-compare/internal/compare"
	"backup-compare/internal/display"
	apperrors "backup-compare/internal/errors"
	"backup-compare/internal/logging"
	"backup-compare/internal/snapshot"
)

// Config is the fully merged application configuration: CLI flags, config
// file, and environment, resolved by the cmd layer before the application is
// built.
type Config struct {
	// Snapshot locations (file path, s3://, gs://, or azure://). Always set
	// from the positional arguments, never from the config file.
	Left  string `mapstructure:"-"`
	Right string `mapstructure:"-"`

	// Optional file that records the JSON-encoded findings.
	FindingsFile string `mapstructure:"findings_file"`

	// Report rendering: pretty, json, or yaml.
	Format string `mapstructure:"format"`

	Quiet        bool   `mapstructure:"quiet"`
	Verbose      bool   `mapstructure:"verbose"`
	LogFile      string `mapstructure:"log_file"`
	ColorEnabled bool   `mapstructure:"color_enabled"`

	// Timeout bounds snapshot fetching. The comparison itself is a pure
	// in-memory computation and runs unbounded.
	Timeout time.Duration `mapstructure:"timeout"`

	Sources     snapshot.SourceConfig  `mapstructure:"sources"`
	Comparators compare.RegistryConfig `mapstructure:"comparators"`
}

// Application wires the snapshot loader, the comparison engine, and the
// report renderers together for one compare run.
type Application struct {
	config    Config
	logger    *logging.Logger
	loader    *snapshot.Loader
	formatter display.OutputFormatter
}

// NewApplication creates an application from a merged configuration.
func NewApplication(config Config) (*Application, error) {
	level := logging.LogLevelNormal
	if config.Quiet {
		level = logging.LogLevelQuiet
	}
	if config.Verbose {
		level = logging.LogLevelVerbose
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:   level,
		LogFile: config.LogFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	colors := display.NewColorSystem(config.ColorEnabled)
	renderer := display.NewReportRenderer(colors, 0)
	formatter, err := display.NewOutputFormatter(config.Format, renderer)
	if err != nil {
		return nil, err
	}

	return &Application{
		config:    config,
		logger:    logger,
		loader:    snapshot.NewLoader(config.Sources, logger),
		formatter: formatter,
	}, nil
}

// Run executes the comparison: load both snapshots, validate, render the
// report to stdout, and optionally write the JSON findings file. Findings are
// informational output and never produce an error; only snapshot load or
// parse failures do.
func (app *Application) Run(ctx context.Context) error {
	if app.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, app.config.Timeout)
		defer cancel()
	}

	left, err := app.loader.Load(ctx, app.config.Left)
	if err != nil {
		return app.loadError("left", err)
	}

	right, err := app.loader.Load(ctx, app.config.Right)
	if err != nil {
		return app.loadError("right", err)
	}

	start := time.Now()
	registry := compare.DefaultRegistry()
	if err := registry.ApplyConfig(app.config.Comparators); err != nil {
		return apperrors.NewAppError(apperrors.ErrorTypeValidation,
			"invalid comparator configuration", err)
	}

	findings := compare.Validate(left, right, registry)
	app.logger.LogComparison(app.config.Left, app.config.Right, findings.Len(), time.Since(start))

	if app.config.FindingsFile != "" && !findings.Empty() {
		if err := app.writeFindingsFile(findings); err != nil {
			return err
		}
	}

	rendered, err := app.formatter.FormatReport(findings)
	if err != nil {
		return err
	}
	fmt.Println(rendered)

	return nil
}

func (app *Application) loadError(side string, err error) error {
	if apperrors.IsParseError(err) {
		fmt.Fprintf(os.Stderr, "Invalid %s JSON\n", side)
	}
	return apperrors.WrapError(err, fmt.Sprintf("failed to load the %s snapshot", side))
}

func (app *Application) writeFindingsFile(findings *compare.ComparatorFindings) error {
	encoded, err := findings.JSON()
	if err != nil {
		return apperrors.WrapError(err, "failed to encode findings")
	}

	err = os.WriteFile(app.config.FindingsFile, encoded, 0644)
	app.logger.LogFindingsWrite(app.config.FindingsFile, findings.Len(), err)
	if err != nil {
		return apperrors.NewAppError(apperrors.ErrorTypeStorage,
			fmt.Sprintf("failed to write findings file %s", app.config.FindingsFile), err)
	}
	return nil
}
