package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/schemacompat/pkg/compatibility"
	"github.com/platinummonkey/schemacompat/pkg/engine"
	"github.com/platinummonkey/schemacompat/pkg/schema"
)

// checkFlags are shared by check and register.
type checkFlags struct {
	input   schemaInput
	mode    string
	output  string
	verbose bool
}

func (f *checkFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.input.path, "schema", "", "Schema file to check (required)")
	cmd.Flags().StringVar(&f.input.format, "format", "", "Schema format: JSON, AVRO, PROTOBUF (default: from file extension)")
	cmd.Flags().StringVar(&f.input.subject, "subject", "", "Subject name (default: file name)")
	cmd.Flags().StringVar(&f.input.version, "version", "", "Semantic version of the schema (default: 1.0.0)")
	cmd.Flags().StringArrayVar(&f.input.refs, "ref", nil, "Referenced schema as name=path[#subject@version] (repeatable)")
	cmd.Flags().StringVar(&f.mode, "mode", "", "Compatibility mode: NONE, BACKWARD, FORWARD, FULL, BACKWARD_TRANSITIVE, FORWARD_TRANSITIVE, FULL_TRANSITIVE (default: from config)")
	cmd.Flags().StringVar(&f.output, "output", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&f.verbose, "verbose", false, "Show all violations including info level")
	_ = cmd.MarkFlagRequired("schema")
}

func (a *app) resolveMode(name string) (compatibility.CompatibilityMode, error) {
	if name == "" {
		return a.cfg.Engine.DefaultMode, nil
	}
	mode, err := compatibility.ParseCompatibilityMode(name)
	if err != nil {
		return 0, fmt.Errorf("invalid compatibility mode: %w", err)
	}
	return mode, nil
}

func newCheckCommand(a *app) *cobra.Command {
	var (
		flags    checkFlags
		previous []string
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check a schema against the registered versions of its subject",
		Long: `Check a candidate schema against earlier versions of its subject.

Earlier versions come from the configured history backend unless --previous
is given, in which case only the listed files are used.

Example:
  schemacompat check --schema user.json --subject users-value --version 1.1.0 --mode BACKWARD
  schemacompat check --schema user.avsc --previous 1.0.0=user-v1.avsc`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runCheck(cmd, flags, previous)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringArrayVar(&previous, "previous", nil, "Earlier version as version=path (repeatable); bypasses the history backend")
	return cmd
}

func (a *app) runCheck(cmd *cobra.Command, flags checkFlags, previous []string) error {
	ctx := cmd.Context()

	mode, err := a.resolveMode(flags.mode)
	if err != nil {
		return err
	}
	candidate, err := flags.input.load()
	if err != nil {
		return err
	}

	var provider engine.HistoryProvider
	if len(previous) > 0 {
		docs, err := loadPrevious(flags.input, previous)
		if err != nil {
			return err
		}
		provider = engine.StaticHistory(docs)
	} else {
		if provider, err = a.openHistory(ctx); err != nil {
			return err
		}
	}

	result, err := a.check(ctx, candidate, mode, provider)
	if err != nil {
		return err
	}
	return outputResult(cmd.OutOrStdout(), flags.output, result, flags.verbose)
}

func (a *app) check(ctx context.Context, candidate *schema.Document, mode compatibility.CompatibilityMode, provider engine.HistoryProvider) (*compatibility.Result, error) {
	e, err := a.engine()
	if err != nil {
		return nil, err
	}
	result, err := e.Check(ctx, candidate, mode, provider)
	if err != nil {
		return nil, fmt.Errorf("compatibility check failed: %w", err)
	}
	return result, nil
}

func newRegisterCommand(a *app) *cobra.Command {
	var flags checkFlags

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Check a schema and store it as a new version when compatible",
		Long: `Check a candidate schema against its subject's history and, if no
breaking violation is found, store it in the history backend.

Example:
  schemacompat register --schema user.json --subject users-value --version 1.1.0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runRegister(cmd, flags)
		},
	}

	flags.register(cmd)
	return cmd
}

func (a *app) runRegister(cmd *cobra.Command, flags checkFlags) error {
	ctx := cmd.Context()

	mode, err := a.resolveMode(flags.mode)
	if err != nil {
		return err
	}
	candidate, err := flags.input.load()
	if err != nil {
		return err
	}
	store, err := a.openHistory(ctx)
	if err != nil {
		return err
	}

	result, err := a.check(ctx, candidate, mode, store)
	if err != nil {
		return err
	}
	if !result.Compatible {
		return outputResult(cmd.OutOrStdout(), flags.output, result, flags.verbose)
	}

	if err := store.Register(ctx, candidate); err != nil {
		return fmt.Errorf("failed to register %s: %w", candidate.ID(), err)
	}
	a.logger.WithField("subject", candidate.Subject()).
		WithField("version", candidate.Version().String()).
		Info("Registered schema version")

	if flags.output != "json" {
		writeLine(cmd.OutOrStdout(), "Registered %s (%s)", candidate.ID(), candidate.Hash().Short())
	}
	return outputResult(cmd.OutOrStdout(), flags.output, result, flags.verbose)
}

func outputResult(w io.Writer, format string, result *compatibility.Result, verbose bool) error {
	var err error
	switch format {
	case "json":
		err = outputJSON(w, result)
	case "text", "":
		outputText(w, result, verbose)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
	if err != nil {
		return err
	}

	// Exit with non-zero status if incompatible
	if !result.Compatible {
		return ErrIncompatible
	}
	return nil
}

func outputText(w io.Writer, result *compatibility.Result, verbose bool) {
	// Print summary
	fmt.Fprintf(w, "Compatibility Check: %s\n", result.Mode)
	fmt.Fprintf(w, "Result: ")
	if result.Compatible {
		fmt.Fprintf(w, "\033[32mCOMPATIBLE\033[0m\n\n")
	} else {
		fmt.Fprintf(w, "\033[31mINCOMPATIBLE\033[0m\n\n")
	}

	// Print summary statistics
	summary := result.Summary
	fmt.Fprintf(w, "Summary:\n")
	fmt.Fprintf(w, "  Compared Versions: %d\n", len(result.ComparedVersions))
	if result.SkippedVersions > 0 {
		fmt.Fprintf(w, "  Skipped Versions:  %d\n", result.SkippedVersions)
	}
	fmt.Fprintf(w, "  Total Violations:  %d\n", summary.TotalViolations)
	if summary.Breaking > 0 {
		fmt.Fprintf(w, "  Breaking:          \033[31m%d\033[0m\n", summary.Breaking)
	} else {
		fmt.Fprintf(w, "  Breaking:          %d\n", summary.Breaking)
	}
	if summary.Warnings > 0 {
		fmt.Fprintf(w, "  Warnings:          \033[33m%d\033[0m\n", summary.Warnings)
	} else {
		fmt.Fprintf(w, "  Warnings:          %d\n", summary.Warnings)
	}
	fmt.Fprintf(w, "  Info:              %d\n\n", summary.Infos)

	if len(result.Violations) == 0 {
		return
	}

	fmt.Fprintf(w, "Violations:\n\n")
	for _, v := range result.Violations {
		// Skip info level if not verbose
		if !verbose && v.Severity == compatibility.SeverityInfo {
			continue
		}

		// Color code by level
		levelStr := v.Severity.String()
		switch v.Severity {
		case compatibility.SeverityBreaking:
			levelStr = fmt.Sprintf("\033[31m%s\033[0m", levelStr)
		case compatibility.SeverityWarning:
			levelStr = fmt.Sprintf("\033[33m%s\033[0m", levelStr)
		case compatibility.SeverityInfo:
			levelStr = fmt.Sprintf("\033[36m%s\033[0m", levelStr)
		}

		fmt.Fprintf(w, "[%s] %s\n", levelStr, v.Kind)
		fmt.Fprintf(w, "  Location: %s\n", v.Path)
		if v.Version != "" {
			fmt.Fprintf(w, "  Against:  %s\n", v.Version)
		}
		fmt.Fprintf(w, "  Message:  %s\n", v.Description)
		if v.OldValue != nil || v.NewValue != nil {
			fmt.Fprintf(w, "  Change:   %v -> %v\n", v.OldValue, v.NewValue)
		}
		if v.Suggestion != "" {
			fmt.Fprintf(w, "  Hint:     %s\n", v.Suggestion)
		}
		fmt.Fprintln(w)
	}
}

func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
