package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newExplainCommand(a *app) *cobra.Command {
	var (
		oldInput schemaInput
		newInput schemaInput
		mode     string
		output   string
	)

	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Compare two schema versions and show the violations next to a diff",
		Long: `Check one schema version against another and print the verdict together
with a unified diff of their canonical bodies.

Example:
  schemacompat explain --old user-v1.json --new user-v2.json --mode FULL`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			compatMode, err := a.resolveMode(mode)
			if err != nil {
				return err
			}

			newInput.format = oldInput.format
			if oldInput.version == "" {
				oldInput.version = "1.0.0"
			}
			if newInput.version == "" {
				newInput.version = "2.0.0"
			}
			newInput.subject = oldInput.subjectName()
			oldInput.subject = newInput.subject

			previous, err := oldInput.load()
			if err != nil {
				return fmt.Errorf("failed to load old schema: %w", err)
			}
			candidate, err := newInput.load()
			if err != nil {
				return fmt.Errorf("failed to load new schema: %w", err)
			}

			e, err := a.engine()
			if err != nil {
				return err
			}
			explanation, err := e.Explain(cmd.Context(), candidate, previous, compatMode)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			switch output {
			case "json":
				if err := outputJSON(w, explanation); err != nil {
					return err
				}
			case "text", "":
				fmt.Fprint(w, explanation.Report)
				if explanation.Diff != "" {
					fmt.Fprintf(w, "\n%s", explanation.Diff)
				}
			default:
				return fmt.Errorf("unknown output format: %s", output)
			}

			if !explanation.Result.Compatible {
				return ErrIncompatible
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&oldInput.path, "old", "", "Earlier schema file (required)")
	cmd.Flags().StringVar(&newInput.path, "new", "", "Candidate schema file (required)")
	cmd.Flags().StringVar(&oldInput.version, "old-version", "", "Version of the earlier schema (default: 1.0.0)")
	cmd.Flags().StringVar(&newInput.version, "new-version", "", "Version of the candidate schema (default: 2.0.0)")
	cmd.Flags().StringVar(&oldInput.format, "format", "", "Schema format: JSON, AVRO, PROTOBUF (default: from file extension)")
	cmd.Flags().StringVar(&mode, "mode", "", "Compatibility mode (default: from config)")
	cmd.Flags().StringVar(&output, "output", "text", "Output format: text, json")
	_ = cmd.MarkFlagRequired("old")
	_ = cmd.MarkFlagRequired("new")
	return cmd
}
