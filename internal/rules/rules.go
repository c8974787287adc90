// Package rules holds the keyword tables that drive statement parsing:
// section headers, noise lines, direction patterns and reference codes.
// The tables are data, not code, so new banks or languages only need a new
// YAML file.
package rules

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/insightdelivered/statement-parser/internal/models"
)

//go:embed default.yaml
var defaultYAML []byte

// Rules is the full keyword configuration for one statement family.
type Rules struct {
	Sections        []SectionRule  `yaml:"sections"`
	SummaryPrefixes []string       `yaml:"summary_prefixes"`
	Noise           NoiseRules     `yaml:"noise"`
	LegalMarkers    []string       `yaml:"legal_markers"`
	Direction       DirectionRules `yaml:"direction"`
	ReferenceCodes  []string       `yaml:"reference_codes"`
	Months          map[string]int `yaml:"months"`
}

// SectionRule maps header phrases to a section. Phrases are matched in
// declaration order across all rules, so specific phrases go first.
type SectionRule struct {
	Kind    models.SectionKind `yaml:"kind"`
	Phrases []string           `yaml:"phrases"`
}

// NoiseRules describe boilerplate lines that never carry transaction text.
type NoiseRules struct {
	Prefixes []string `yaml:"prefixes"`
	Contains []string `yaml:"contains"`
	Patterns []string `yaml:"patterns"`
}

// PatternRule is a case-insensitive regular expression with a fixed outcome.
type PatternRule struct {
	Pattern   string           `yaml:"pattern"`
	Direction models.Direction `yaml:"direction"`
}

// DirectionRules feed the tiers of the direction classifier.
type DirectionRules struct {
	Explicit    []PatternRule `yaml:"explicit"`
	ACHMarkers  []string      `yaml:"ach_markers"`
	ACHIncoming []string      `yaml:"ach_incoming"`
	Debit       []string      `yaml:"debit"`
}

// ErrInvalidRules is wrapped by every validation failure.
var ErrInvalidRules = errors.New("invalid rules")

// Default returns the embedded Chase rules.
func Default() (*Rules, error) {
	return Parse(defaultYAML)
}

// MustDefault is Default for package-level initialisation and tests.
func MustDefault() *Rules {
	r, err := Default()
	if err != nil {
		panic(err)
	}
	return r
}

// Load reads rules from a YAML file.
func Load(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %q: %w", path, err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("rules file %q: %w", path, err)
	}
	return r, nil
}

// Parse decodes and validates YAML rules. Phrases are lower-cased so that
// matchers can compare against lower-cased input.
func Parse(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode rules: %w", err)
	}
	r.normalize()
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Rules) normalize() {
	for i := range r.Sections {
		r.Sections[i].Phrases = lowerAll(r.Sections[i].Phrases)
	}
	r.SummaryPrefixes = lowerAll(r.SummaryPrefixes)
	r.Noise.Prefixes = lowerAll(r.Noise.Prefixes)
	r.Noise.Contains = lowerAll(r.Noise.Contains)
	r.LegalMarkers = lowerAll(r.LegalMarkers)
	r.Direction.ACHMarkers = lowerAll(r.Direction.ACHMarkers)
	r.Direction.ACHIncoming = lowerAll(r.Direction.ACHIncoming)

	months := make(map[string]int, len(r.Months))
	for name, n := range r.Months {
		months[strings.ToLower(name)] = n
	}
	r.Months = months
}

// Validate checks section kinds, directions, month numbers and that every
// pattern compiles.
func (r *Rules) Validate() error {
	if len(r.Sections) == 0 {
		return fmt.Errorf("%w: no sections declared", ErrInvalidRules)
	}
	for _, s := range r.Sections {
		switch s.Kind {
		case models.SectionDeposits, models.SectionWithdrawals, models.SectionFees:
		default:
			return fmt.Errorf("%w: unknown section kind %q", ErrInvalidRules, s.Kind)
		}
		for _, p := range s.Phrases {
			if p == "" {
				return fmt.Errorf("%w: empty phrase in section %q", ErrInvalidRules, s.Kind)
			}
		}
	}

	for _, e := range r.Direction.Explicit {
		if e.Direction != models.DirectionIn && e.Direction != models.DirectionOut {
			return fmt.Errorf("%w: pattern %q has direction %q", ErrInvalidRules, e.Pattern, e.Direction)
		}
		if _, err := CompilePattern(e.Pattern); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRules, err)
		}
	}

	patterns := make([]string, 0, len(r.Noise.Patterns)+len(r.Direction.Debit)+len(r.ReferenceCodes))
	patterns = append(patterns, r.Noise.Patterns...)
	patterns = append(patterns, r.Direction.Debit...)
	patterns = append(patterns, r.ReferenceCodes...)
	for _, p := range patterns {
		if _, err := CompilePattern(p); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRules, err)
		}
	}

	for name, n := range r.Months {
		if n < 1 || n > 12 {
			return fmt.Errorf("%w: month %q maps to %d", ErrInvalidRules, name, n)
		}
	}
	return nil
}

// CompilePattern compiles a rules pattern case-insensitively.
func CompilePattern(p string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?i)" + p)
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", p, err)
	}
	return re, nil
}

// CompileAll compiles a list of patterns, stopping at the first failure.
func CompileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := CompilePattern(p)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
