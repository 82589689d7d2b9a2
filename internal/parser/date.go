package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Smashkat12/crechebooks-sub018/internal/apperr"
)

const supportedDateFormats = "DD/MM/YYYY, YYYY-MM-DD, DD-MM-YYYY"

var datePatterns = []struct {
	re         *regexp.Regexp
	day, month int // submatch indexes
	year       int
}{
	{regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`), 1, 2, 3},
	{regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`), 3, 2, 1},
	{regexp.MustCompile(`^(\d{1,2})-(\d{1,2})-(\d{4})$`), 1, 2, 3},
}

// ParseDate parses a calendar date in any supported format, returning
// midnight UTC. Month must be 1-12 and day 1-31; there is deliberately no
// calendar-aware day-of-month check, so bank lines like 31/04 still parse.
func ParseDate(text string) (time.Time, error) {
	s := strings.TrimSpace(text)
	for _, p := range datePatterns {
		m := p.re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		day, _ := strconv.Atoi(m[p.day])
		month, _ := strconv.Atoi(m[p.month])
		year, _ := strconv.Atoi(m[p.year])

		if month < 1 || month > 12 {
			return time.Time{}, apperr.NewValidation("date", text, "month out of range")
		}
		if day < 1 || day > 31 {
			return time.Time{}, apperr.NewValidation("date", text, "day out of range")
		}
		return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, apperr.NewValidation("date", text, "expected one of "+supportedDateFormats)
}
