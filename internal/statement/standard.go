package statement

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/Smashkat12/crechebooks-sub018/internal/parser"
)

// StandardRecognizer parses the Standard Bank export: one transaction per
// line as DATE DESCRIPTION SIGNED-AMOUNT. Negative amounts are debits.
type StandardRecognizer struct {
	log *zap.Logger
}

func NewStandardRecognizer(log *zap.Logger) *StandardRecognizer {
	return &StandardRecognizer{log: log}
}

func (r *StandardRecognizer) Name() string { return "standard_bank" }

func (r *StandardRecognizer) Detect(text string) bool {
	return strings.Contains(text, "Standard Bank")
}

var standardLinePattern = regexp.MustCompile(
	`^(\d{1,2}/\d{1,2}/\d{4}|\d{4}-\d{1,2}-\d{1,2}|\d{1,2}-\d{1,2}-\d{4})\s+(.+?)\s+(-?[\d,]+\.\d{2})$`,
)

// Parse never aborts on a bad line; it logs and moves on.
func (r *StandardRecognizer) Parse(text string) ([]ParsedTransaction, error) {
	var out []ParsedTransaction

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		m := standardLinePattern.FindStringSubmatch(line)
		if m == nil {
			r.log.Debug("standard line did not match grammar", zap.String("line", line))
			continue
		}

		date, err := parser.ParseDate(m[1])
		if err != nil {
			r.log.Debug("standard line has unparseable date", zap.String("line", line), zap.Error(err))
			continue
		}
		cents, err := parser.ParseCurrency(m[3])
		if err != nil {
			r.log.Debug("standard line has unparseable amount", zap.String("line", line), zap.Error(err))
			continue
		}

		description := strings.TrimSpace(m[2])
		isCredit := cents > 0
		if cents < 0 {
			cents = -cents
		}

		out = append(out, ParsedTransaction{
			Date:        date,
			Description: description,
			Payee:       parser.ExtractPayeeName(description),
			Reference:   extractReference(description),
			AmountCents: cents,
			IsCredit:    isCredit,
		})
	}

	return out, nil
}
