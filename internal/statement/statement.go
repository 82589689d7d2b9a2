// Package statement turns raw bank-export text into normalized
// transactions. Each supported source format is a Recognizer; the
// Registry picks the first one whose Detect fires. Adding a format means
// registering a recognizer, not branching pipeline code.
package statement

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Smashkat12/crechebooks-sub018/internal/apperr"
)

// ParsedTransaction is one normalized statement line. AmountCents is
// always positive; direction lives in IsCredit.
type ParsedTransaction struct {
	Date        time.Time
	Description string
	Payee       string
	Reference   string
	AmountCents int64
	IsCredit    bool
}

// Recognizer detects and parses one source format.
type Recognizer interface {
	Name() string
	Detect(text string) bool
	Parse(text string) ([]ParsedTransaction, error)
}

// Registry holds recognizers in priority order.
type Registry struct {
	recognizers []Recognizer
}

// NewRegistry builds the default registry. The compact recognizer runs
// before the single-line one because compact statements can contain
// stray lines the looser grammar would half-match.
func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{recognizers: []Recognizer{
		NewCompactRecognizer(log),
		NewStructuredRecognizer(log),
		NewStandardRecognizer(log),
	}}
}

// Detect returns the first recognizer claiming the text, or a
// BusinessError carrying a short excerpt when none does.
func (r *Registry) Detect(text string) (Recognizer, error) {
	for _, rec := range r.recognizers {
		if rec.Detect(text) {
			return rec, nil
		}
	}
	return nil, apperr.NewBusiness(apperr.CodeUnsupportedFormat,
		"no recognizer matched statement text: "+excerpt(text))
}

// Get returns a recognizer by name for callers that bypass detection.
func (r *Registry) Get(name string) (Recognizer, bool) {
	for _, rec := range r.recognizers {
		if rec.Name() == name {
			return rec, true
		}
	}
	return nil, false
}

const excerptLen = 120

func excerpt(text string) string {
	s := strings.Join(strings.Fields(text), " ")
	if len(s) > excerptLen {
		s = s[:excerptLen]
	}
	return s
}

var referencePattern = regexp.MustCompile(`(?i)\bref(?:erence)?[:.\s]+([A-Za-z0-9-]+)`)

// extractReference pulls an explicit reference token out of a
// description, or empty when none is present.
func extractReference(description string) string {
	m := referencePattern.FindStringSubmatch(description)
	if m == nil {
		return ""
	}
	return m[1]
}

var statementYearPattern = regexp.MustCompile(`(?i)statement\s+(?:period|date)[^\d]*(?:\d{1,2}\s+)?(?:[A-Za-z]+\s+)?(\d{4})`)

// statementYear recovers the statement year from a period banner,
// falling back to the current UTC year when no banner is present.
func statementYear(text string) int {
	if m := statementYearPattern.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[1])
		return year
	}
	return time.Now().UTC().Year()
}

var monthAbbrevs = map[string]time.Month{
	"Jan": time.January, "Feb": time.February, "Mar": time.March,
	"Apr": time.April, "May": time.May, "Jun": time.June,
	"Jul": time.July, "Aug": time.August, "Sep": time.September,
	"Oct": time.October, "Nov": time.November, "Dec": time.December,
}
