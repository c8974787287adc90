package parser

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// RejectReason records which filter discarded an amount candidate.
type RejectReason string

const (
	RejectNone      RejectReason = ""
	RejectPhone     RejectReason = "phone"
	RejectCard      RejectReason = "card"
	RejectZIP       RejectReason = "zip"
	RejectReference RejectReason = "reference"
	RejectGlued     RejectReason = "glued"
	RejectBalance   RejectReason = "balance"
	RejectMagnitude RejectReason = "magnitude"
)

// Candidate is one number-shaped token found in a block.
type Candidate struct {
	Text       string
	Start, End int // byte offsets into the block text
	Value      decimal.Decimal
	Dollar     bool
	Negative   bool
	HasCents   bool
	Separators bool // thousands separators
	Digits     int
	Rejected   RejectReason
}

// CurrencyShaped reports whether the candidate is written like money
// rather than like a bare integer.
func (c Candidate) CurrencyShaped() bool {
	return c.Dollar || c.HasCents || c.Separators
}

// Resolution is the outcome of amount resolution for one block.
type Resolution struct {
	Amount     decimal.Decimal // magnitude
	Negative   bool
	Found      bool
	Fallback   bool // no candidate survived; the first raw one was used
	Chosen     int  // index into Candidates, -1 when not found
	Candidates []Candidate
}

// Layout holds statement-wide column facts that some filters depend on.
type Layout struct {
	// BalanceColumn is set when the statement prints a running balance
	// next to each amount ("FECHA DESCRIPCIÓN CANTIDAD SALDO").
	BalanceColumn bool
}

// FilterContext is shared by the filters while resolving one block.
type FilterContext struct {
	Text       string
	Candidates []Candidate
	Layout     Layout
	spans      map[*regexp.Regexp][][]int
}

// Spans returns the match offsets of re in the block text, computed once.
func (fc *FilterContext) Spans(re *regexp.Regexp) [][]int {
	if s, ok := fc.spans[re]; ok {
		return s
	}
	s := re.FindAllStringIndex(fc.Text, -1)
	fc.spans[re] = s
	return s
}

// CandidateFilter rejects candidates that are not the transaction amount.
// Filters without AppliesToDollar never touch $-marked candidates.
type CandidateFilter struct {
	Reason          RejectReason
	AppliesToDollar bool
	Reject          func(fc *FilterContext, i int) bool
}

var (
	candidatePattern = regexp.MustCompile(`\(?-?\$?(?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d{2})?\)?-?`)

	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b1[-. ]\d{3}[-. ]\d{3}[-. ]\d{4}\b`),
		regexp.MustCompile(`\(\d{3}\)\s*\d{3}[-. ]\d{4}\b`),
		regexp.MustCompile(`\b\d{3}[-. ]\d{3}[-. ]\d{4}\b`),
		regexp.MustCompile(`\b\d{3}[-.]\d{7}\b`),
		regexp.MustCompile(`\b\d{3}-\d{4}\b`),
	}

	// The statement prints "Card 3116" before the amount.
	cardPrefixPattern = regexp.MustCompile(`(?i)\b(?:card|tarjeta)(?:\s+(?:#|no\.?|number|ending(?:\s+in)?|x+))?\s*[:#]?\s*$`)

	zipPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b[A-Z]{2}\s+\d{5}(?:-\d{4})?\b`),
		regexp.MustCompile(`\b\d{5}-\d{4}\b`),
	}
)

// DefaultFilters returns the filter pipeline in evaluation order.
func DefaultFilters() []CandidateFilter {
	return []CandidateFilter{
		{Reason: RejectPhone, Reject: inPhoneNumber},
		{Reason: RejectCard, Reject: afterCardLabel},
		{Reason: RejectZIP, Reject: inZIPCode},
		{Reason: RejectReference, Reject: isReferenceNumber},
		{Reason: RejectGlued, Reject: gluedToText},
		{Reason: RejectBalance, Reject: isRunningBalance},
		{Reason: RejectMagnitude, AppliesToDollar: true, Reject: outOfRange},
	}
}

// AmountResolver picks the transaction amount out of a block.
type AmountResolver struct {
	filters []CandidateFilter
}

// NewAmountResolver builds a resolver; with no filters it uses DefaultFilters.
func NewAmountResolver(filters ...CandidateFilter) *AmountResolver {
	if len(filters) == 0 {
		filters = DefaultFilters()
	}
	return &AmountResolver{filters: filters}
}

// Resolve is ResolveIn for a statement without a balance column.
func (r *AmountResolver) Resolve(text string) Resolution {
	return r.ResolveIn(text, Layout{})
}

// ResolveIn extracts candidates from text, runs the filters and selects
// one. $-marked survivors beat bare ones; within a group the largest
// magnitude wins and ties go to the rightmost.
func (r *AmountResolver) ResolveIn(text string, layout Layout) Resolution {
	fc := &FilterContext{
		Text:       text,
		Candidates: extractCandidates(text),
		Layout:     layout,
		spans:      make(map[*regexp.Regexp][][]int),
	}

	for i := range fc.Candidates {
		for _, f := range r.filters {
			if fc.Candidates[i].Dollar && !f.AppliesToDollar {
				continue
			}
			if f.Reject(fc, i) {
				fc.Candidates[i].Rejected = f.Reason
				break
			}
		}
	}

	res := Resolution{Chosen: -1, Candidates: fc.Candidates}
	best := pickLargest(fc.Candidates, true)
	if best < 0 {
		best = pickLargest(fc.Candidates, false)
	}
	if best < 0 && len(fc.Candidates) > 0 && !fc.Candidates[0].Value.IsZero() {
		best = 0
		res.Fallback = true
	}
	if best < 0 {
		return res
	}

	c := fc.Candidates[best]
	res.Chosen = best
	res.Found = true
	res.Amount = c.Value
	res.Negative = c.Negative
	return res
}

func pickLargest(cs []Candidate, dollar bool) int {
	best := -1
	for i, c := range cs {
		if c.Rejected != RejectNone || c.Dollar != dollar {
			continue
		}
		if best < 0 || c.Value.GreaterThanOrEqual(cs[best].Value) {
			best = i
		}
	}
	return best
}

// extractCandidates finds number-shaped tokens that are not part of a
// date, the tail of a word or a reference like "#123".
func extractCandidates(text string) []Candidate {
	var out []Candidate
	dates := dateTokenPattern.FindAllStringIndex(text, -1)
	for _, loc := range candidatePattern.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		if overlapsAny(dates, start, end) {
			continue
		}
		tok := text[start:end]

		// "ID:T941-25.00": the dash belongs to the preceding word.
		if strings.HasPrefix(tok, "-") && gluedBefore(text, start) {
			start++
			tok = tok[1:]
		}
		// "82801-6317": the dash separates two numbers.
		if strings.HasSuffix(tok, "-") && end < len(text) && isDigit(text[end]) {
			end--
			tok = tok[:len(tok)-1]
		}
		if strings.HasPrefix(tok, "(") != strings.HasSuffix(tok, ")") {
			if strings.HasPrefix(tok, "(") {
				start++
				tok = tok[1:]
			} else {
				end--
				tok = tok[:len(tok)-1]
			}
		}
		if tok == "" || gluedBefore(text, start) {
			continue
		}

		value, negative, err := parseAmount(tok)
		if err != nil {
			continue
		}
		out = append(out, Candidate{
			Text:       text[start:end],
			Start:      start,
			End:        end,
			Value:      value,
			Dollar:     strings.Contains(tok, "$"),
			Negative:   negative,
			HasCents:   strings.Contains(tok, "."),
			Separators: strings.Contains(tok, ","),
			Digits:     countDigits(tok),
		})
	}
	return out
}

// gluedBefore reports whether the byte at i continues a preceding token.
func gluedBefore(text string, i int) bool {
	if i == 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '/' || r == '#' || r == '_'
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func countDigits(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if isDigit(s[i]) {
			n++
		}
	}
	return n
}

func overlapsAny(spans [][]int, start, end int) bool {
	for _, s := range spans {
		if start < s[1] && s[0] < end {
			return true
		}
	}
	return false
}

// inPhoneNumber ignores phone-shaped runs that continue into cents or
// thousands, as in "101 250 1000.00".
func inPhoneNumber(fc *FilterContext, i int) bool {
	c := fc.Candidates[i]
	for _, re := range phonePatterns {
		for _, s := range fc.Spans(re) {
			if continuesNumber(fc.Text, s[1]) {
				continue
			}
			if c.Start < s[1] && s[0] < c.End {
				return true
			}
		}
	}
	return false
}

// continuesNumber reports whether text at i is "." or "," followed by a digit.
func continuesNumber(text string, i int) bool {
	return i+1 < len(text) && (text[i] == '.' || text[i] == ',') && isDigit(text[i+1])
}

func afterCardLabel(fc *FilterContext, i int) bool {
	c := fc.Candidates[i]
	return !c.HasCents && cardPrefixPattern.MatchString(fc.Text[:c.Start])
}

// inZIPCode ignores "TX 12345.67", where the digits are an amount.
func inZIPCode(fc *FilterContext, i int) bool {
	c := fc.Candidates[i]
	if c.HasCents || c.Separators {
		return false
	}
	for _, re := range zipPatterns {
		for _, s := range fc.Spans(re) {
			if s[1] < len(fc.Text) && (fc.Text[s[1]] == '.' || fc.Text[s[1]] == ',') {
				continue
			}
			if c.Start < s[1] && s[0] < c.End {
				return true
			}
		}
	}
	return false
}

// isReferenceNumber rejects long bare integers: trace numbers, IDs, dates
// printed as 240305.
func isReferenceNumber(fc *FilterContext, i int) bool {
	c := fc.Candidates[i]
	return !c.HasCents && !c.Separators && c.Digits >= 5
}

func gluedToText(fc *FilterContext, i int) bool {
	c := fc.Candidates[i]
	if c.End >= len(fc.Text) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(fc.Text[c.End:])
	if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '/' {
		return true
	}
	return r == '.' && c.End+1 < len(fc.Text) && isDigit(fc.Text[c.End+1])
}

// isRunningBalance rejects the last figure of a line when it directly
// follows another plausible amount, as in "-1,924.67 6,954.70". It only
// applies to statements with a balance column.
func isRunningBalance(fc *FilterContext, i int) bool {
	c := fc.Candidates[i]
	if !fc.Layout.BalanceColumn || !c.HasCents || i == 0 {
		return false
	}
	rest := fc.Text[c.End:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}
	if strings.TrimSpace(rest) != "" {
		return false
	}
	prev := fc.Candidates[i-1]
	if !prev.HasCents || prev.Rejected != RejectNone {
		return false
	}
	gap := fc.Text[prev.End:c.Start]
	return !strings.ContainsRune(gap, '\n') && strings.TrimSpace(gap) == ""
}

// outOfRange rejects zero everywhere and sub-dollar bare figures, which are
// almost always fragments of something else.
func outOfRange(fc *FilterContext, i int) bool {
	c := fc.Candidates[i]
	if c.Value.IsZero() {
		return true
	}
	return !c.Dollar && c.Value.LessThan(decimal.NewFromInt(1))
}
