package parser

import (
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/cloudflare/ahocorasick"
)

// phraseMatcher finds lower-case phrases in a line in a single pass.
// When wholeWord is set a hit only counts if it is not glued to letters or
// digits on either side.
type phraseMatcher struct {
	mu        sync.Mutex // Matcher.Match keeps per-call state on the trie
	matcher   *ahocorasick.Matcher
	phrases   []string
	wholeWord bool
}

func newPhraseMatcher(phrases []string, wholeWord bool) *phraseMatcher {
	m := &phraseMatcher{phrases: phrases, wholeWord: wholeWord}
	if len(phrases) > 0 {
		m.matcher = ahocorasick.NewStringMatcher(phrases)
	}
	return m
}

// first returns the lowest declared index that matches, or -1.
func (m *phraseMatcher) first(lower string) int {
	if m.matcher == nil || lower == "" {
		return -1
	}
	m.mu.Lock()
	hits := m.matcher.Match([]byte(lower))
	m.mu.Unlock()
	if len(hits) == 0 {
		return -1
	}
	sort.Ints(hits)
	for _, idx := range hits {
		if !m.wholeWord || containsWord(lower, m.phrases[idx]) {
			return idx
		}
	}
	return -1
}

func (m *phraseMatcher) any(lower string) bool {
	return m.first(lower) >= 0
}

// containsWord reports whether phrase occurs in s with word boundaries.
func containsWord(s, phrase string) bool {
	offset := 0
	for {
		i := strings.Index(s[offset:], phrase)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(phrase)
		if boundaryBefore(s, start) && boundaryAfter(s, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		offset = start + size
	}
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// hasAnyPrefix reports whether lower starts with one of prefixes.
func hasAnyPrefix(lower string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}
