package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

type subjectVersions struct {
	Subject  string   `json:"subject"`
	Versions []string `json:"versions"`
}

func newSubjectsCommand(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "subjects",
		Short: "List registered subjects and their versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := a.openHistory(ctx)
			if err != nil {
				return err
			}
			subjects, err := store.Subjects(ctx)
			if err != nil {
				return err
			}

			listing := make([]subjectVersions, 0, len(subjects))
			for _, subject := range subjects {
				docs, err := store.History(ctx, subject)
				if err != nil {
					return err
				}
				entry := subjectVersions{Subject: subject, Versions: make([]string, len(docs))}
				for i, d := range docs {
					entry.Versions[i] = d.Version().String()
				}
				listing = append(listing, entry)
			}

			w := cmd.OutOrStdout()
			switch output {
			case "json":
				return outputJSON(w, listing)
			case "text", "":
				if len(listing) == 0 {
					writeLine(w, "No subjects registered")
				}
				for _, entry := range listing {
					writeLine(w, "%s: %s", entry.Subject, strings.Join(entry.Versions, ", "))
				}
				return nil
			default:
				return fmt.Errorf("unknown output format: %s", output)
			}
		},
	}

	cmd.Flags().StringVar(&output, "output", "text", "Output format: text, json")
	return cmd
}
