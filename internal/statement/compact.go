package statement

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Smashkat12/crechebooks-sub018/internal/parser"
)

// CompactRecognizer parses the FNB app export, which drops the spaces
// between fields: a day+month token runs straight into the description,
// which runs into the amount, an optional Cr indicator, the running
// balance with its own indicator, and sometimes a trailing fee amount.
// The statement year appears only in the period banner and is resolved
// once per document.
type CompactRecognizer struct {
	log *zap.Logger
}

func NewCompactRecognizer(log *zap.Logger) *CompactRecognizer {
	return &CompactRecognizer{log: log}
}

func (r *CompactRecognizer) Name() string { return "fnb_compact" }

func (r *CompactRecognizer) Detect(text string) bool {
	return strings.Contains(text, "FNB") || strings.Contains(text, "First National Bank")
}

const compactAmount = `\d{1,3}(?:,\d{3})*\.\d{2}`

var (
	compactLinePattern = regexp.MustCompile(
		`^(\d{1,2}) ([A-Z][a-z]{2})(.*?)(` + compactAmount + `)(Cr)?(` + compactAmount + `)(Cr|Dr)?(` + compactAmount + `)?$`,
	)
	bareAmountPattern = regexp.MustCompile(`^` + compactAmount + `$`)
)

func (r *CompactRecognizer) Parse(text string) ([]ParsedTransaction, error) {
	year := statementYear(text)

	var out []ParsedTransaction
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// A line that is nothing but an amount is the fee spill-over from
		// the previous transaction. Consume it, emit nothing.
		if bareAmountPattern.MatchString(line) {
			continue
		}

		m := compactLinePattern.FindStringSubmatch(line)
		if m == nil {
			r.log.Debug("compact line did not match grammar", zap.String("line", line))
			continue
		}

		day, _ := strconv.Atoi(m[1])
		month, ok := monthAbbrevs[m[2]]
		if !ok {
			r.log.Debug("compact line has unknown month token", zap.String("line", line))
			continue
		}
		cents, err := parser.ParseCurrency(m[4])
		if err != nil || cents <= 0 {
			r.log.Debug("compact line has unparseable amount", zap.String("line", line), zap.Error(err))
			continue
		}

		description := strings.TrimSpace(m[3])
		// m[6] and m[7] are the running balance; m[8] a trailing fee.
		// Both are consumed and dropped.
		out = append(out, ParsedTransaction{
			Date:        time.Date(year, month, day, 0, 0, 0, 0, time.UTC),
			Description: description,
			Payee:       parser.ExtractPayeeName(description),
			Reference:   extractReference(description),
			AmountCents: cents,
			IsCredit:    m[5] == "Cr",
		})
	}

	return out, nil
}
