package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newRateCommand(env Env, load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "rate FROM TO",
		Short: "Print the current exchange rate between two currencies",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load(cmd)
			if err != nil {
				return err
			}
			from, to := strings.ToUpper(args[0]), strings.ToUpper(args[1])
			rate, err := env.Rates(cfg).Rate(cmd.Context(), from, to)
			if err != nil {
				return fmt.Errorf("rate %s/%s: %w", from, to, err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "1 %s = %s %s\n", from, rate.String(), to)
			return err
		},
	}
}
