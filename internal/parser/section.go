package parser

import (
	"regexp"
	"strings"

	"github.com/insightdelivered/statement-parser/internal/models"
	"github.com/insightdelivered/statement-parser/internal/rules"
)

// maxHeaderExtraWords bounds the words a header line may carry beyond its
// phrase. Wrapped description text that merely mentions "fees" is longer.
const maxHeaderExtraWords = 1

// pdfMarkup is the "*start*" / "*end*" framing some extractions leave around
// headers.
var pdfMarkup = regexp.MustCompile(`(?i)\*(?:start|end)\*`)

// SectionClassifier maps a header line to a statement section using an
// ordered bilingual phrase table. The first declared phrase that occurs in
// the line wins.
type SectionClassifier struct {
	matcher *phraseMatcher
	kinds   []models.SectionKind // parallel to matcher.phrases
}

// NewSectionClassifier flattens the section rules in declaration order.
func NewSectionClassifier(sections []rules.SectionRule) *SectionClassifier {
	var phrases []string
	var kinds []models.SectionKind
	for _, s := range sections {
		for _, p := range s.Phrases {
			phrases = append(phrases, p)
			kinds = append(kinds, s.Kind)
		}
	}
	return &SectionClassifier{
		matcher: newPhraseMatcher(phrases, true),
		kinds:   kinds,
	}
}

// Classify returns the section named by line, or false when the line is
// not a recognised header. The phrase must make up nearly all of the line.
func (c *SectionClassifier) Classify(line string) (models.SectionKind, bool) {
	lower := strings.ToLower(pdfMarkup.ReplaceAllString(line, " "))
	idx := c.matcher.first(lower)
	if idx < 0 {
		return models.SectionUnknown, false
	}
	if countWords(lower)-countWords(c.matcher.phrases[idx]) > maxHeaderExtraWords {
		return models.SectionUnknown, false
	}
	return c.kinds[idx], true
}

func countWords(s string) int {
	return len(strings.FieldsFunc(s, func(r rune) bool { return !isWordRune(r) }))
}
