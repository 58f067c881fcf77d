package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"spendy/internal/logger"
	"spendy/internal/models"
	"spendy/internal/services"
)

func newIngestCommand(env Env, load loader) *cobra.Command {
	var sourceType string
	var cardID int64
	var accountID int64
	var at string

	cmd := &cobra.Command{
		Use:   "ingest [text...]",
		Short: "Store a notification and match it to a transaction",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := services.TextInput{
				SourceType: models.SourceType(sourceType),
				ActorID:    cliActor,
			}
			if !in.SourceType.Valid() {
				return fmt.Errorf("unknown source type %q", sourceType)
			}
			if cardID > 0 {
				in.CardID = &cardID
			}
			if accountID > 0 {
				in.AccountID = &accountID
			}
			if at != "" {
				parsed, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("parsing --at: %w", err)
				}
				parsed = parsed.UTC()
				in.TransactionDatetime = &parsed
			}
			text, err := readText(cmd, args)
			if err != nil {
				return err
			}
			in.RawText = text

			cfg, log, err := load(cmd)
			if err != nil {
				return err
			}
			ingester, closeFn, err := env.Ingester(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer closeFn()

			result, err := ingester.CreateFromText(logger.WithContext(cmd.Context(), log), in)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}

	cmd.Flags().StringVar(&sourceType, "source-type", string(models.SourceSMSText), "source type of the notification")
	cmd.Flags().Int64Var(&cardID, "card-id", 0, "card the notification belongs to")
	cmd.Flags().Int64Var(&accountID, "account-id", 0, "account used to resolve the card by last four digits")
	cmd.Flags().StringVar(&at, "at", "", "RFC3339 time used when the text carries no date")

	return cmd
}

func newReprocessCommand(env Env, load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "reprocess ID",
		Short: "Re-parse and re-match a stored source event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid source event id %q", args[0])
			}
			cfg, log, err := load(cmd)
			if err != nil {
				return err
			}
			ingester, closeFn, err := env.Ingester(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer closeFn()

			result, err := ingester.Reprocess(logger.WithContext(cmd.Context(), log), id, cliActor)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
}
