package statement

import "strings"

// Confidence scores one parsed transaction out of 100. Low scores route
// the document to the extraction fallback.
func Confidence(t ParsedTransaction) int {
	score := 100

	if t.Date.IsZero() {
		score -= 30
	}
	if t.AmountCents <= 0 {
		score -= 25
	}
	switch n := len(t.Description); {
	case n < 5:
		score -= 15
	case n < 10:
		score -= 5
	}
	if t.Payee == "" {
		score -= 10
	}
	if strings.ContainsAny(t.Description, "\n\r") {
		score -= 20
	}
	if hasNonPrintable(t.Description) {
		score -= 15
	}

	if score < 0 {
		score = 0
	}
	return score
}

// AverageConfidence returns the mean confidence, or 0 for an empty batch.
func AverageConfidence(ts []ParsedTransaction) int {
	if len(ts) == 0 {
		return 0
	}
	total := 0
	for _, t := range ts {
		total += Confidence(t)
	}
	return total / len(ts)
}

func hasNonPrintable(s string) bool {
	for _, r := range s {
		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			return true
		}
		if r == 0x7f {
			return true
		}
	}
	return false
}
