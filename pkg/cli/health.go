package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/schemacompat/pkg/history"
	"github.com/platinummonkey/schemacompat/pkg/observability"
)

// Version is reported by the health command.
var Version = "dev"

func newHealthCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe the configured history backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openHistory(cmd.Context())
			if err != nil {
				return err
			}

			var probes []observability.Probe
			switch s := store.(type) {
			case *history.SQLStore:
				probes = append(probes, observability.DatabaseProbe("postgres", s.DB()))
			case *history.RedisStore:
				probes = append(probes, observability.RedisProbe("redis", s.Client()))
			}

			status := observability.NewHealthChecker(Version, probes...).Check(cmd.Context())
			if err := outputJSON(cmd.OutOrStdout(), status); err != nil {
				return err
			}
			if status.Status == observability.StatusUnhealthy {
				return fmt.Errorf("history backend is unhealthy")
			}
			return nil
		},
	}
}
