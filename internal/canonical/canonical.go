// Package canonical merges evidence from linked source events into a
// transaction record.
package canonical

import (
	"strings"
	"unicode/utf8"

	"spendy/internal/models"
)

// Canonicalize recomputes tx from every linked source. sources must be in
// link order (earliest-created first); "first" below means first in that
// order.
//
//  1. The first PDF statement overrides posting time, amount and currency
//     where it has them.
//  2. The first SMS/screenshot source with a transaction time supplies it.
//  3. The PDF description wins; otherwise the longest description (or raw
//     text) across all sources.
func Canonicalize(tx models.Transaction, sources []models.SourceEvent) models.Transaction {
	if len(sources) == 0 {
		return tx
	}
	var statement *models.SourceEvent
	for i := range sources {
		if sources[i].SourceType == models.SourcePDFStatement {
			statement = &sources[i]
			break
		}
	}

	if statement != nil {
		if statement.ParsedPostingDatetime != nil {
			tx.PostingDatetime = statement.ParsedPostingDatetime
		}
		if statement.ParsedAmount.Valid {
			tx.Amount = statement.ParsedAmount.Decimal
		}
		if nonEmpty(statement.ParsedCurrency) {
			tx.Currency = *statement.ParsedCurrency
		}
	}

	for _, source := range sources {
		if source.SourceType.IsMessage() && source.ParsedTransactionDatetime != nil {
			tx.TransactionDatetime = source.ParsedTransactionDatetime
			break
		}
	}

	if statement != nil && nonEmpty(statement.ParsedDescription) {
		tx.Description = *statement.ParsedDescription
		return tx
	}
	longest, found := "", false
	for _, source := range sources {
		var candidate string
		switch {
		case nonEmpty(source.ParsedDescription):
			candidate = *source.ParsedDescription
		case nonEmpty(source.RawText):
			candidate = *source.RawText
		default:
			continue
		}
		if !found || utf8.RuneCountInString(candidate) > utf8.RuneCountInString(longest) {
			longest, found = candidate, true
		}
	}
	if found {
		tx.Description = longest
	}
	return tx
}

// Enrich fills fields that tx is missing from a newly linked source. Populated
// fields are never overwritten. The boolean reports whether anything changed.
func Enrich(tx models.Transaction, source models.SourceEvent) (models.Transaction, bool) {
	changed := false
	if tx.Location == nil && source.ParsedLocation != nil {
		tx.Location = source.ParsedLocation
		changed = true
	}
	if strings.TrimSpace(tx.Description) == "" && nonEmpty(source.ParsedDescription) {
		tx.Description = *source.ParsedDescription
		changed = true
	}
	if tx.TransactionDatetime == nil && source.ParsedTransactionDatetime != nil {
		tx.TransactionDatetime = source.ParsedTransactionDatetime
		changed = true
	}
	if tx.PostingDatetime == nil && source.ParsedPostingDatetime != nil {
		tx.PostingDatetime = source.ParsedPostingDatetime
		changed = true
	}
	if tx.Kind == models.KindOther && source.ParsedKind != nil && *source.ParsedKind != models.KindOther {
		tx.Kind = *source.ParsedKind
		changed = true
	}
	return tx, changed
}

func nonEmpty(value *string) bool {
	return value != nil && *value != ""
}
