package commands

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"spendy/internal/matching"
	"spendy/internal/models"
	"spendy/internal/money"
	"spendy/internal/parser"
)

type parseOutput struct {
	Status              models.ParseStatus `json:"status"`
	Error               *string            `json:"error,omitempty"`
	Amount              string             `json:"amount,omitempty"`
	Currency            *string            `json:"currency,omitempty"`
	TransactionDatetime *time.Time         `json:"transaction_datetime,omitempty"`
	PostingDatetime     *time.Time         `json:"posting_datetime,omitempty"`
	Description         *string            `json:"description,omitempty"`
	MerchantNorm        string             `json:"merchant_norm,omitempty"`
	CardNumber          *string            `json:"card_number,omitempty"`
	Kind                *models.Kind       `json:"kind,omitempty"`
	Location            *string            `json:"location,omitempty"`
}

func newParseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "parse [text...]",
		Short: "Parse a notification without touching the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd, args)
			if err != nil {
				return err
			}
			if strings.TrimSpace(text) == "" {
				return errors.New("notification text is empty")
			}
			return printJSON(cmd, toParseOutput(parser.Parse(text)))
		},
	}
}

func toParseOutput(result parser.Result) parseOutput {
	out := parseOutput{
		Status:              result.Status,
		Error:               result.Error,
		Amount:              money.FormatNull(result.Amount),
		Currency:            result.Currency,
		TransactionDatetime: result.TransactionDatetime,
		PostingDatetime:     result.PostingDatetime,
		Description:         result.Description,
		CardNumber:          result.CardNumber,
		Kind:                result.Kind,
		Location:            result.Location,
	}
	if result.Description != nil {
		out.MerchantNorm = matching.NormalizeMerchant(*result.Description)
	}
	return out
}
