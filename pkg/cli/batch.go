package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/schemacompat/pkg/async"
	"github.com/platinummonkey/schemacompat/pkg/compatibility"
	"github.com/platinummonkey/schemacompat/pkg/engine"
	"github.com/platinummonkey/schemacompat/pkg/schema"
)

// batchEntry is one candidate in the JSON output of batch.
type batchEntry struct {
	Schema string                `json:"schema"`
	Result *compatibility.Result `json:"result,omitempty"`
	Error  string                `json:"error,omitempty"`
}

func newBatchCommand(a *app) *cobra.Command {
	var (
		mode    string
		output  string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "batch [subject@version=]path...",
		Short: "Check several schemas against the history backend concurrently",
		Long: `Check several candidate schemas at once. Each argument is a schema file,
optionally prefixed with the subject and version it would be registered as.
Without a prefix the subject is the file name and the version is 1.0.0.

Every candidate is checked even when another fails; the command reports the
first failure after printing all results.

Example:
  schemacompat batch users-value@1.1.0=user.json orders-value@2.0.0=order.avsc`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBatch(cmd, args, mode, output, verbose)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "Compatibility mode (default: from config)")
	cmd.Flags().StringVar(&output, "output", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show all violations including info level")
	return cmd
}

// parseBatchArg splits "subject@version=path" into a schemaInput.
func parseBatchArg(arg string) (schemaInput, error) {
	target, path, ok := strings.Cut(arg, "=")
	if !ok {
		return schemaInput{path: arg}, nil
	}
	subject, version, _ := strings.Cut(target, "@")
	if subject == "" || path == "" {
		return schemaInput{}, fmt.Errorf("invalid batch argument %q, want [subject@version=]path", arg)
	}
	return schemaInput{path: path, subject: subject, version: version}, nil
}

func (a *app) runBatch(cmd *cobra.Command, args []string, modeName, output string, verbose bool) error {
	ctx := cmd.Context()

	mode, err := a.resolveMode(modeName)
	if err != nil {
		return err
	}
	if output != "text" && output != "json" {
		return fmt.Errorf("unknown output format: %s", output)
	}
	store, err := a.openHistory(ctx)
	if err != nil {
		return err
	}

	requests := make([]engine.Request, len(args))
	candidates := make([]*schema.Document, len(args))
	for i, arg := range args {
		in, err := parseBatchArg(arg)
		if err != nil {
			return err
		}
		if candidates[i], err = in.load(); err != nil {
			return fmt.Errorf("%s: %w", in.path, err)
		}
		requests[i] = engine.Request{Candidate: candidates[i], Mode: mode, History: store}
	}

	e, err := a.engine()
	if err != nil {
		return err
	}
	responses := e.CheckBatch(ctx, requests)

	errs := make([]error, len(responses))
	entries := make([]batchEntry, len(responses))
	compatible := true
	for i, resp := range responses {
		entries[i] = batchEntry{Schema: candidates[i].ID(), Result: resp.Result}
		if resp.Err != nil {
			errs[i] = fmt.Errorf("%s: %w", candidates[i].ID(), resp.Err)
			entries[i].Error = resp.Err.Error()
			continue
		}
		compatible = compatible && resp.Result.Compatible
	}

	w := cmd.OutOrStdout()
	if output == "json" {
		if err := outputJSON(w, entries); err != nil {
			return err
		}
	} else {
		for _, entry := range entries {
			writeLine(w, "== %s", entry.Schema)
			if entry.Error != "" {
				writeLine(w, "Error: %s\n", entry.Error)
				continue
			}
			outputText(w, entry.Result, verbose)
		}
	}

	if err := async.FirstError(errs); err != nil {
		return fmt.Errorf("batch check failed: %w", err)
	}
	if !compatible {
		return ErrIncompatible
	}
	return nil
}
