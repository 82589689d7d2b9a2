package parser

import (
	"strings"
)

// Transactional markers that banks prepend to the counterparty name,
// longest first so compound prefixes strip before their components.
var payeePrefixes = []string{
	"POS PURCHASE",
	"DEBIT ORDER",
	"CARD PURCHASE",
	"INTERNET TRANSFER",
	"IMMEDIATE PAYMENT",
	"MAGTAPE CREDIT",
	"MAGTAPE DEBIT",
	"FNB APP PAYMENT FROM",
	"FNB APP PAYMENT",
	"PAYMENT FROM",
	"PAYMENT TO",
	"TRANSFER FROM",
	"TRANSFER TO",
	"PAYMENT",
	"TRANSFER",
	"POS",
	"ATM",
	"EFT",
}

const payeeMaxLen = 50

// ExtractPayeeName pulls a counterparty name out of a transaction
// description: known transactional prefixes are stripped, then the first
// one to three tokens are kept, truncated to 50 characters. Blank input
// yields an empty result.
func ExtractPayeeName(text string) string {
	s := strings.TrimSpace(text)
	if s == "" {
		return ""
	}

	for stripped := true; stripped; {
		stripped = false
		upper := strings.ToUpper(s)
		for _, prefix := range payeePrefixes {
			if strings.HasPrefix(upper, prefix) {
				s = strings.TrimSpace(s[len(prefix):])
				stripped = s != ""
				break
			}
		}
		if s == "" {
			return ""
		}
	}

	tokens := strings.Fields(s)
	if len(tokens) > 3 {
		tokens = tokens[:3]
	}
	name := strings.Join(tokens, " ")
	if runes := []rune(name); len(runes) > payeeMaxLen {
		name = string(runes[:payeeMaxLen])
	}
	return name
}
