// Package matching generates and scores invoice candidates for
// unallocated credit transactions and decides between auto-apply and
// human review.
package matching

import (
	"strings"
)

// Features is the explicit input vector of the match score. Keeping the
// score a pure function of this struct keeps the weights tunable and
// testable apart from candidate search.
type Features struct {
	ReferenceExact  bool
	AmountExact     bool
	AmountNear      bool    // within 1% of the invoice's outstanding balance
	PayerSimilarity float64 // token similarity in [0, 1]
	DueDaysDelta    int     // absolute days between transaction and due date
}

// Score weights. An exact reference plus an exact amount reaches 80 on
// their own, enough to auto-apply.
const (
	weightReference   = 50
	weightAmountExact = 30
	weightAmountNear  = 20
	weightPayer       = 15
	weightRecency     = 5
)

// Confidence tiers.
const (
	TierExact  = "EXACT"
	TierHigh   = "HIGH"
	TierMedium = "MEDIUM"
	TierLow    = "LOW"
)

// Auto-apply rules: the top candidate needs at least autoApplyThreshold
// and no rival within ambiguityDelta points.
const (
	autoApplyThreshold = 80
	ambiguityDelta     = 5
)

// Score computes the match score for one candidate, capped at 100.
func Score(f Features) int {
	score := 0
	if f.ReferenceExact {
		score += weightReference
	}
	switch {
	case f.AmountExact:
		score += weightAmountExact
	case f.AmountNear:
		score += weightAmountNear
	}
	score += int(f.PayerSimilarity * weightPayer)
	score += recencyPoints(f.DueDaysDelta)

	if score > 100 {
		score = 100
	}
	return score
}

func recencyPoints(days int) int {
	switch {
	case days <= 3:
		return weightRecency
	case days <= 7:
		return 3
	case days <= 30:
		return 1
	default:
		return 0
	}
}

// Tier buckets a numeric score.
func Tier(score int) string {
	switch {
	case score >= 100:
		return TierExact
	case score >= 80:
		return TierHigh
	case score >= 50:
		return TierMedium
	default:
		return TierLow
	}
}

// PayerSimilarity scores how well a bank-side payee or description
// matches an invoice payer name: each payer token takes its best
// Levenshtein similarity against the bank tokens, averaged.
func PayerSimilarity(bankText, payerName string) float64 {
	bankTokens := strings.Fields(normalizeName(bankText))
	payerTokens := strings.Fields(normalizeName(payerName))
	if len(payerTokens) == 0 || len(bankTokens) == 0 {
		return 0
	}

	total := 0.0
	for _, pt := range payerTokens {
		best := 0.0
		for _, bt := range bankTokens {
			maxLen := len(pt)
			if len(bt) > maxLen {
				maxLen = len(bt)
			}
			sim := 1 - float64(levenshtein(pt, bt))/float64(maxLen)
			if sim > best {
				best = sim
			}
		}
		total += best
	}
	return total / float64(len(payerTokens))
}

func normalizeName(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "-", " ")
	return strings.TrimSpace(s)
}

func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	dp := make([][]int, len(a)+1)
	for i := range dp {
		dp[i] = make([]int, len(b)+1)
		dp[i][0] = i
	}
	for j := 0; j <= len(b); j++ {
		dp[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			dp[i][j] = min(dp[i-1][j]+1, dp[i][j-1]+1, dp[i-1][j-1]+cost)
		}
	}
	return dp[len(a)][len(b)]
}
