// Package parser turns bank notification text into structured fields.
//
// Notification shapes are matched by an ordered rule table; the first rule
// whose pattern matches decides amount, currency, sign and kind. Merchant,
// location and card suffix are extracted afterwards.
package parser

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"spendy/internal/models"
	"spendy/internal/money"

	"github.com/shopspring/decimal"
)

const billPaymentDescription = "Credit Card Bill Payment"

// Result is the fixed-shape output of Parse. Nil pointers mean the field
// could not be extracted.
type Result struct {
	Amount              decimal.NullDecimal
	Currency            *string
	TransactionDatetime *time.Time
	PostingDatetime     *time.Time
	Description         *string
	CardNumber          *string
	Kind                *models.Kind
	Location            *string
	Status              models.ParseStatus
	Error               *string
}

type skipMarker struct {
	needles []string
	reason  string
}

var skipMarkers = []skipMarker{
	{needles: []string{"mini stmt", "statement date"}, reason: "Non-transaction message (statement)"},
	{needles: []string{"this is to remind you", "upcoming payment"}, reason: "Non-transaction message (reminder)"},
	{needles: []string{"beneficiary"}, reason: "Non-transaction message (beneficiary)"},
}

type rule struct {
	name          string
	pattern       *regexp.Regexp
	currencyGroup int
	amountGroup   int
	merchantGroup int
	description   string
	kind          models.Kind
	inflow        bool
}

var rules = []rule{
	{
		name:          "refund",
		pattern:       regexp.MustCompile(`(?i)Purchase\s+amount\s+of\s+([A-Z]{3})\s+([\d,]+(?:\.\d{2})?)\s+at\s+(.+?)\s+on\s+your\s+Credit\s+Card.*?has\s+been\s+refunded`),
		currencyGroup: 1,
		amountGroup:   2,
		merchantGroup: 3,
		kind:          models.KindRefund,
		inflow:        true,
	},
	{
		name:          "merchant_credit",
		pattern:       regexp.MustCompile(`(?i)Amount\s+of\s+([A-Z]{3})\s+([\d,]+(?:\.\d{2})?)\s+from\s+(.+?)\s+has\s+been\s+credited\s+to\s+your\s+card`),
		currencyGroup: 1,
		amountGroup:   2,
		merchantGroup: 3,
		kind:          models.KindRefund,
		inflow:        true,
	},
	{
		name:          "bill_payment",
		pattern:       regexp.MustCompile(`(?i)([A-Z]{3})\s+([\d,]+(?:\.\d{2})?)\s+has\s+been\s+deducted\s+from\s+your\s+account.*?towards\s+payment\s+of\s+your\s+Credit\s+Card`),
		currencyGroup: 1,
		amountGroup:   2,
		description:   billPaymentDescription,
		kind:          models.KindTopup,
		inflow:        true,
	},
	{
		name:          "purchase",
		pattern:       regexp.MustCompile(`(?i)(Purchase|Payment)\s+of\s+([A-Z]{3})\s+([\d,]+(?:\.\d{2})?)`),
		currencyGroup: 2,
		amountGroup:   3,
		kind:          models.KindPurchase,
	},
	{
		// case-sensitive: any upper-case code followed by a number
		name:          "fallback",
		pattern:       regexp.MustCompile(`([A-Z]{3})\s+([\d,]+(?:\.\d{2})?)`),
		currencyGroup: 1,
		amountGroup:   2,
		kind:          models.KindOther,
	},
}

var (
	atPattern    = regexp.MustCompile(`(?i)\s+at\s+(.+?)(?:\.\s*Avl|\s+on\s+your\s+Credit\s+Card|\s*$)`)
	toPattern    = regexp.MustCompile(`(?i)\s+to\s+([^\.]+?)\s+with\s+Credit\s+Card`)
	cardPattern  = regexp.MustCompile(`(?i)(?:Credit\s+)?[Cc]ard\s+ending\s+(?:with\s+)?(\d{4})`)
	spacePattern = regexp.MustCompile(`\s+`)
)

var knownPlaces = map[string]struct{}{
	"dubai":         {},
	"abu dhabi":     {},
	"sharjah":       {},
	"dxb":           {},
	"uae":           {},
	"new york":      {},
	"san francisco": {},
	"ae":            {},
}

// Parse extracts transaction fields from raw notification text. It never
// fails; problems are reported through Status and Error.
func Parse(raw string) Result {
	result := Result{Status: models.ParseStatusParsed}
	text := strings.TrimSpace(raw)
	if text == "" {
		return result
	}

	lowered := strings.ToLower(text)
	for _, marker := range skipMarkers {
		for _, needle := range marker.needles {
			if strings.Contains(lowered, needle) {
				result.Status = models.ParseStatusSkipped
				result.Error = stringPtr(marker.reason)
				return result
			}
		}
	}

	matched, groups := matchRule(text)
	if matched != nil {
		amountText := strings.ReplaceAll(groups[matched.amountGroup], ",", "")
		amount, err := money.ParseAmount(amountText)
		if err != nil {
			result.Status = models.ParseStatusFailed
			result.Error = stringPtr(fmt.Sprintf("Invalid amount format: %s", amountText))
			return result
		}
		amount = amount.Abs()
		if !matched.inflow {
			amount = amount.Neg()
		}
		result.Amount = money.Null(amount)
		result.Currency = stringPtr(groups[matched.currencyGroup])
		switch {
		case matched.description != "":
			result.Description = stringPtr(matched.description)
		case matched.merchantGroup > 0:
			result.Description = stringPtr(strings.TrimSpace(groups[matched.merchantGroup]))
		}
	}

	if result.Description == nil {
		merchant, location := extractMerchant(text)
		if merchant != "" {
			result.Description = stringPtr(merchant)
			if location != "" {
				result.Location = stringPtr(location)
			}
		} else {
			result.Description = stringPtr(text)
		}
	}

	if groups := cardPattern.FindStringSubmatch(text); groups != nil {
		result.CardNumber = stringPtr(groups[1])
	}

	kind := models.KindOther
	if matched != nil {
		kind = matched.kind
	}
	result.Kind = &kind
	return result
}

func matchRule(text string) (*rule, []string) {
	for i := range rules {
		if groups := rules[i].pattern.FindStringSubmatch(text); groups != nil {
			return &rules[i], groups
		}
	}
	return nil, nil
}

// extractMerchant looks for "at MERCHANT[, PLACE]" and then "to MERCHANT
// with Credit Card". The place is split off only when the text after the
// last comma looks like one.
func extractMerchant(text string) (string, string) {
	var merchant, location string
	if groups := atPattern.FindStringSubmatch(text); groups != nil {
		clause := strings.TrimRight(strings.TrimSpace(groups[1]), ".")
		merchant = clause
		if idx := strings.LastIndex(clause, ","); idx >= 0 {
			candidate := strings.TrimRight(strings.TrimSpace(clause[idx+1:]), ".")
			if looksLikePlace(candidate) {
				merchant = strings.TrimSpace(clause[:idx])
				location = candidate
			}
		}
	}
	if merchant == "" {
		if groups := toPattern.FindStringSubmatch(text); groups != nil {
			merchant = strings.TrimSpace(groups[1])
		}
	}
	merchant = strings.TrimSpace(spacePattern.ReplaceAllString(merchant, " "))
	if merchant == "" {
		return "", ""
	}
	return merchant, location
}

func looksLikePlace(candidate string) bool {
	if candidate == "" {
		return false
	}
	first, _ := utf8.DecodeRuneInString(candidate)
	if unicode.IsUpper(first) || isAllUpper(candidate) {
		return true
	}
	_, ok := knownPlaces[strings.ToLower(candidate)]
	return ok
}

func isAllUpper(value string) bool {
	cased := false
	for _, r := range value {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}

func stringPtr(value string) *string {
	return &value
}
