package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/insightdelivered/statement-parser/internal/models"
	"github.com/insightdelivered/statement-parser/internal/rules"
)

var (
	// centsPattern spots a money amount on a line; header lines never carry one.
	centsPattern = regexp.MustCompile(`\d\.\d{2}\b`)
	// fieldPattern spots ACH and wire qualifiers such as "Descr:Sender".
	fieldPattern = regexp.MustCompile(`[\p{L}#]:\S`)

	balanceHeaderPattern = regexp.MustCompile(`(?i)^(?:(?:date|fecha|description|descripción|descripcion|amount|cantidad)\s+)+(?:saldo|balance)$`)
)

// anchor is a line that opens a transaction block.
type anchor struct {
	Date  time.Time
	Valid bool // false for dates like 02/30 that cannot exist
}

// Scanner classifies single lines: date anchors, section headers, noise.
// It holds no per-statement state and is safe for concurrent use.
type Scanner struct {
	sections        *SectionClassifier
	summaryPrefixes []string
	noisePrefixes   []string
	noiseContains   *phraseMatcher
	noisePatterns   []*regexp.Regexp
	legal           *phraseMatcher
	months          map[string]int
}

// NewScanner compiles the line tables from r.
func NewScanner(r *rules.Rules) (*Scanner, error) {
	patterns, err := rules.CompileAll(r.Noise.Patterns)
	if err != nil {
		return nil, fmt.Errorf("noise patterns: %w", err)
	}
	return &Scanner{
		sections:        NewSectionClassifier(r.Sections),
		summaryPrefixes: r.SummaryPrefixes,
		noisePrefixes:   r.Noise.Prefixes,
		noiseContains:   newPhraseMatcher(r.Noise.Contains, false),
		noisePatterns:   patterns,
		legal:           newPhraseMatcher(r.LegalMarkers, false),
		months:          r.Months,
	}, nil
}

// IsAnchor reports whether line starts a transaction block. Legal
// boilerplate that happens to start with a date is not an anchor.
func (s *Scanner) IsAnchor(line string) bool {
	return anchorPattern.MatchString(line) && !s.IsLegal(line)
}

// Anchor parses the leading date of an anchor line. An explicit year on
// the line wins over the year context.
func (s *Scanner) Anchor(line string, years yearContext) (anchor, bool) {
	if s.IsLegal(line) {
		return anchor{}, false
	}
	m := anchorPattern.FindStringSubmatch(line)
	if m == nil {
		return anchor{}, false
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	var year int
	switch len(m[3]) {
	case 2:
		year, _ = strconv.Atoi(m[3])
		year += 2000
	case 4:
		year, _ = strconv.Atoi(m[3])
	default:
		year = years.yearFor(month)
	}
	date, ok := validDate(year, month, day)
	return anchor{Date: date, Valid: ok}, true
}

// Section returns the section named by a header line. Summary rows such
// as "Total Deposits and Additions $1,234.56", noise lines and wrapped
// description lines with "Field:value" qualifiers are not headers.
func (s *Scanner) Section(line string) (models.SectionKind, bool) {
	if line == "" || anchorPattern.MatchString(line) || centsPattern.MatchString(line) || fieldPattern.MatchString(line) {
		return models.SectionUnknown, false
	}
	if s.IsNoise(line) {
		return models.SectionUnknown, false
	}
	return s.sections.Classify(line)
}

// IsNoise reports whether a non-empty line is page furniture, a column
// header, a summary row or legal text.
func (s *Scanner) IsNoise(line string) bool {
	lower := strings.ToLower(strings.TrimSpace(line))
	if lower == "" {
		return false
	}
	if hasAnyPrefix(lower, s.noisePrefixes) || hasAnyPrefix(lower, s.summaryPrefixes) {
		return true
	}
	if s.noiseContains.any(lower) || s.legal.any(lower) {
		return true
	}
	for _, re := range s.noisePatterns {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}

// HasBalanceColumn reports whether any line is a column header ending in
// a balance column, as in "FECHA DESCRIPCIÓN CANTIDAD SALDO".
func (s *Scanner) HasBalanceColumn(lines []string) bool {
	for _, line := range lines {
		if balanceHeaderPattern.MatchString(strings.TrimSpace(line)) {
			return true
		}
	}
	return false
}

// IsLegal reports whether line belongs to the error-resolution notice.
func (s *Scanner) IsLegal(line string) bool {
	return s.legal.any(strings.ToLower(line))
}

// Years builds the year context for one statement.
func (s *Scanner) Years(raw string, hint int) yearContext {
	return newYearContext(raw, hint, s.months)
}
