package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"spendy/internal/logger"
)

func newMigrateCommand(env Env, load loader) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load(cmd)
			if err != nil {
				return err
			}
			applied, err := env.Migrate(logger.WithContext(cmd.Context(), log), cfg, dir)
			if err != nil {
				return err
			}
			log.Info().Int("applied", len(applied)).Msg("migrations complete")
			for _, name := range applied {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "migrations", "directory holding *.sql migrations")

	return cmd
}
