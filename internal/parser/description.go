package parser

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/insightdelivered/statement-parser/internal/rules"
)

// Column headings and summary fragments that leak into wrapped blocks.
var residuePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bdaily ending balance\b`),
	regexp.MustCompile(`(?i)\bsaldo final diario\b`),
	regexp.MustCompile(`(?i)\bdate\s+amount\b`),
	regexp.MustCompile(`(?i)\bfecha\s+cantidad\b`),
}

// DescriptionNormalizer turns block text into a one-line description.
type DescriptionNormalizer struct {
	references []*regexp.Regexp
}

// NewDescriptionNormalizer compiles the reference-code patterns from r.
func NewDescriptionNormalizer(r *rules.Rules) (*DescriptionNormalizer, error) {
	refs, err := rules.CompileAll(r.ReferenceCodes)
	if err != nil {
		return nil, fmt.Errorf("reference codes: %w", err)
	}
	return &DescriptionNormalizer{references: refs}, nil
}

// Clean removes amounts, dates, reference codes and residue from text and
// collapses whitespace. Candidates rejected as phone, card, ZIP or
// reference numbers stay, since they are part of the merchant text. If
// nothing is left, the date-free raw text is returned instead.
func (n *DescriptionNormalizer) Clean(text string, res Resolution) string {
	s := cutAmounts(text, res.Candidates)
	s = dateTokenPattern.ReplaceAllString(s, " ")
	for _, re := range n.references {
		s = re.ReplaceAllString(s, " ")
	}
	for _, re := range residuePatterns {
		s = re.ReplaceAllString(s, " ")
	}
	s = tidy(s)
	if s == "" {
		s = tidy(dateTokenPattern.ReplaceAllString(text, " "))
	}
	return capitalize(s)
}

// cutAmounts blanks out the money figures of a block, working from the
// original offsets.
func cutAmounts(text string, cs []Candidate) string {
	var spans [][2]int
	for _, c := range cs {
		if !c.CurrencyShaped() {
			continue
		}
		switch c.Rejected {
		case RejectNone, RejectBalance, RejectMagnitude:
			spans = append(spans, [2]int{c.Start, c.End})
		}
	}
	if len(spans) == 0 {
		return text
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i][0] < spans[j][0] })

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, sp := range spans {
		if sp[0] < last {
			continue
		}
		b.WriteString(text[last:sp[0]])
		b.WriteByte(' ')
		last = sp[1]
	}
	b.WriteString(text[last:])
	return b.String()
}

// tidy collapses whitespace and drops separators left dangling at the ends.
func tidy(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == ',' || r == ';'
	})
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
