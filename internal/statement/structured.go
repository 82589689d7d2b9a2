package statement

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Smashkat12/crechebooks-sub018/internal/parser"
)

// StructuredRecognizer parses the Absa export, where each transaction
// spans its own block of lines: date, description, signed amount,
// running balance, and sometimes a fee line. A bounded state machine
// walks the blocks and skips recognized boilerplate. The extraction
// fallback re-parses its recovered text with this grammar too, so it
// performs its own statement-year recovery for day+month date lines.
type StructuredRecognizer struct {
	log *zap.Logger
}

func NewStructuredRecognizer(log *zap.Logger) *StructuredRecognizer {
	return &StructuredRecognizer{log: log}
}

func (r *StructuredRecognizer) Name() string { return "absa_structured" }

func (r *StructuredRecognizer) Detect(text string) bool {
	return strings.Contains(text, "Absa") || strings.Contains(text, "ABSA")
}

var (
	boilerplatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^Page \d+(?: of \d+)?$`),
		regexp.MustCompile(`^(?i)date\s+description\s+amount\s+balance$`),
		regexp.MustCompile(`^(?i)balance (?:brought|carried) forward\b.*$`),
		regexp.MustCompile(`^(?i)(?:opening|closing) balance\b.*$`),
		regexp.MustCompile(`^(?i)statement (?:period|date)\b.*$`),
	}

	dayMonthPattern      = regexp.MustCompile(`^(\d{1,2}) ([A-Z][a-z]{2})$`)
	signedAmountPattern  = regexp.MustCompile(`^-?[\d,]+\.\d{2}$`)
	balanceAmountPattern = regexp.MustCompile(`^-?[\d,]+\.\d{2}(?:Cr|Dr)?$`)
)

type structuredState int

const (
	wantDate structuredState = iota
	wantDescription
	wantAmount
	wantBalance
	wantFeeOrDate
)

func (r *StructuredRecognizer) Parse(text string) ([]ParsedTransaction, error) {
	year := statementYear(text)

	var (
		out         []ParsedTransaction
		state       = wantDate
		date        time.Time
		description string
		cents       int64
		isCredit    bool
	)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isBoilerplate(line) {
			continue
		}

	reprocess:
		switch state {
		case wantFeeOrDate:
			state = wantDate
			if signedAmountPattern.MatchString(line) {
				continue // fee line, consumed and dropped
			}
			goto reprocess

		case wantDate:
			d, ok := r.parseDateLine(line, year)
			if !ok {
				r.log.Debug("structured parser skipping unexpected line", zap.String("line", line))
				continue
			}
			date = d
			state = wantDescription

		case wantDescription:
			if d, ok := r.parseDateLine(line, year); ok {
				// Block was truncated; start over from the new date.
				r.log.Debug("structured block missing description", zap.Time("date", date))
				date = d
				continue
			}
			description = line
			state = wantAmount

		case wantAmount:
			if !signedAmountPattern.MatchString(line) {
				r.log.Debug("structured block has unparseable amount",
					zap.String("line", line), zap.String("description", description))
				state = wantDate
				goto reprocess
			}
			v, err := parser.ParseCurrency(line)
			if err != nil {
				r.log.Debug("structured block has unparseable amount",
					zap.String("line", line), zap.Error(err))
				state = wantDate
				continue
			}
			isCredit = v > 0
			if v < 0 {
				v = -v
			}
			cents = v
			state = wantBalance

		case wantBalance:
			if !balanceAmountPattern.MatchString(line) {
				r.log.Debug("structured block missing balance line",
					zap.String("line", line), zap.String("description", description))
				state = wantDate
				goto reprocess
			}
			out = append(out, ParsedTransaction{
				Date:        date,
				Description: description,
				Payee:       parser.ExtractPayeeName(description),
				Reference:   extractReference(description),
				AmountCents: cents,
				IsCredit:    isCredit,
			})
			state = wantFeeOrDate
		}
	}

	return out, nil
}

// parseDateLine accepts a full date in any supported format or a bare
// day+month token resolved against the statement year.
func (r *StructuredRecognizer) parseDateLine(line string, year int) (time.Time, bool) {
	if m := dayMonthPattern.FindStringSubmatch(line); m != nil {
		month, ok := monthAbbrevs[m[2]]
		if !ok {
			return time.Time{}, false
		}
		day, _ := strconv.Atoi(m[1])
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), true
	}
	d, err := parser.ParseDate(line)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

func isBoilerplate(line string) bool {
	for _, p := range boilerplatePatterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}
