package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// MM/DD or MM/DD/YY(YY) at the start of a line, followed by whitespace or end of line.
	anchorPattern = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})(?:/(\d{2}|\d{4}))?(?:\s|$)`)
	// Any MM/DD(/YY) token, used when stripping descriptions.
	dateTokenPattern = regexp.MustCompile(`\b\d{1,2}/\d{1,2}(?:/\d{2,4})?\b`)
	// "October 17, 2024 through November 18, 2024" / "Octubre 17, 2024 a Noviembre 18, 2024"
	periodPattern = regexp.MustCompile(`(?i)\b(\p{L}+)\s+(\d{1,2}),\s*(\d{4})\s+(?:through|thru|to|al|a|-)\s+(\p{L}+)\s+(\d{1,2}),\s*(\d{4})\b`)
	yearPattern   = regexp.MustCompile(`\b(20\d{2})\b`)

	accountNumberPattern = regexp.MustCompile(`(?i)(?:account number|n[uú]mero de cuenta|cuenta principal|primary account)\s*:?\s*(\d[\d ]{6,}\d)`)
)

// parseAmount converts a string like "$1,234.56", "(25.00)" or "25.00-" to
// its magnitude. The sign is reported separately.
func parseAmount(s string) (decimal.Decimal, bool, error) {
	s = strings.TrimSpace(s)
	negative := strings.HasPrefix(s, "-") || strings.HasPrefix(s, "(") ||
		strings.HasSuffix(s, "-") || strings.HasSuffix(s, ")")
	s = strings.NewReplacer("$", "", ",", "", "(", "", ")", "", "-", "", " ", "").Replace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false, err
	}
	return d, negative, nil
}

// statementPeriod is the first/last day covered by a statement.
type statementPeriod struct {
	Start time.Time
	End   time.Time
}

func (p statementPeriod) String() string {
	return p.Start.Format("2006-01-02") + " to " + p.End.Format("2006-01-02")
}

// findPeriod returns the first statement period in text whose month names
// are known.
func findPeriod(text string, months map[string]int) (statementPeriod, bool) {
	for _, m := range periodPattern.FindAllStringSubmatch(text, -1) {
		start, ok1 := makeDate(m[1], m[2], m[3], months)
		end, ok2 := makeDate(m[4], m[5], m[6], months)
		if ok1 && ok2 && !end.Before(start) {
			return statementPeriod{Start: start, End: end}, true
		}
	}
	return statementPeriod{}, false
}

func makeDate(month, day, year string, months map[string]int) (time.Time, bool) {
	mm, ok := months[strings.ToLower(month)]
	if !ok {
		return time.Time{}, false
	}
	dd, _ := strconv.Atoi(day)
	yy, _ := strconv.Atoi(year)
	return validDate(yy, mm, dd)
}

// validDate builds a date and rejects overflow such as 02/30.
func validDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Month() != time.Month(month) || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// yearContext decides the year of MM/DD dates.
type yearContext struct {
	hint     int
	period   *statementPeriod
	fallback int
}

func newYearContext(text string, hint int, months map[string]int) yearContext {
	yc := yearContext{hint: hint}
	if p, ok := findPeriod(text, months); ok {
		yc.period = &p
	}
	if m := yearPattern.FindStringSubmatch(text); m != nil {
		yc.fallback, _ = strconv.Atoi(m[1])
	} else {
		yc.fallback = time.Now().UTC().Year()
	}
	return yc
}

// yearFor returns the year for a month. A period spanning New Year puts
// late months in the start year and early months in the end year.
func (yc yearContext) yearFor(month int) int {
	if yc.hint > 0 {
		return yc.hint
	}
	if yc.period != nil {
		if yc.period.Start.Year() == yc.period.End.Year() || month >= int(yc.period.Start.Month()) {
			return yc.period.Start.Year()
		}
		return yc.period.End.Year()
	}
	return yc.fallback
}

func (yc yearContext) periodString() string {
	if yc.period == nil {
		return ""
	}
	return yc.period.String()
}

func findAccountNumber(text string) string {
	m := accountNumberPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.ReplaceAll(m[1], " ", "")
}
