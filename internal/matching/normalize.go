package matching

import (
	"regexp"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9\s]`)

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "at": {}, "in": {}, "on": {},
}

// NormalizeMerchant reduces a free-text description to a comparable key:
// lower case ASCII words with punctuation and filler words removed.
func NormalizeMerchant(description string) string {
	if description == "" {
		return ""
	}
	cleaned := nonAlnum.ReplaceAllString(strings.ToLower(strings.TrimSpace(description)), " ")
	words := strings.Fields(cleaned)
	kept := words[:0]
	for _, word := range words {
		if _, skip := stopWords[word]; skip {
			continue
		}
		kept = append(kept, word)
	}
	return strings.Join(kept, " ")
}
