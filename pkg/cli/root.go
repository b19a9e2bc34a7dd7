package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/platinummonkey/schemacompat/pkg/config"
	"github.com/platinummonkey/schemacompat/pkg/engine"
	"github.com/platinummonkey/schemacompat/pkg/history"
	"github.com/platinummonkey/schemacompat/pkg/observability"
)

// ErrIncompatible is returned by commands whose check found breaking violations.
var ErrIncompatible = errors.New("schema is not compatible")

// app holds state shared by every command of one invocation.
type app struct {
	cfgFile  string
	logLevel string

	cfg    *config.Config
	logger *observability.Logger
	tp     *sdktrace.TracerProvider

	// store overrides the configured history backend.
	store history.Store
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{})
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "schemacompat",
		Short: "Schema compatibility checks for JSON Schema, Avro and Protobuf",
		Long: `schemacompat decides whether a new schema version can be registered
without breaking readers or writers of earlier versions, under one of seven
compatibility modes, and analyses how a change ripples through schemas that
reference each other.`,
		SilenceUsage:       true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "YAML config file (default: environment only)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(
		newCheckCommand(a),
		newRegisterCommand(a),
		newBatchCommand(a),
		newExplainCommand(a),
		newSubjectsCommand(a),
		newDepsCommand(a),
		newHealthCommand(a),
	)
	return root
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	var err error
	if a.cfgFile != "" {
		a.cfg, err = config.LoadFile(a.cfgFile)
	} else {
		a.cfg, err = config.LoadConfig()
	}
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		a.cfg.Observability.LogLevel = observability.ParseLogLevel(a.logLevel)
	}

	a.logger = observability.NewLogger(a.cfg.Observability.LogLevel, cmd.ErrOrStderr())

	a.tp, err = observability.InitTracing(cmd.Context(), a.cfg.OTelConfig(), a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	return nil
}

func (a *app) teardown(cmd *cobra.Command, _ []string) error {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close history store")
		}
	}
	return observability.ShutdownTracing(context.WithoutCancel(cmd.Context()), a.tp, a.logger)
}

// openHistory returns the configured history store, opening it on first use.
func (a *app) openHistory(ctx context.Context) (history.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	store, err := a.cfg.OpenHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s history: %w", a.cfg.History.Backend, err)
	}
	a.store = store
	return store, nil
}

func (a *app) engine() (*engine.Engine, error) {
	opts := []engine.Option{engine.WithLogger(a.logger)}
	if a.cfg.Observability.MetricsEnabled {
		opts = append(opts, engine.WithMetrics(observability.NewMetrics(prometheus.NewRegistry())))
	}
	return engine.New(a.cfg.EngineConfig(), opts...)
}

func writeLine(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, format+"\n", args...)
}
