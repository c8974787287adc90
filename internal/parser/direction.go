package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-parser/internal/models"
	"github.com/insightdelivered/statement-parser/internal/rules"
)

// Tier names, in evaluation order.
const (
	TierExplicit = "explicit"
	TierACH      = "ach"
	TierDebit    = "debit"
	TierSection  = "section"
	TierSign     = "sign"
)

// DirectionInput is everything a tier may look at. Section is the section
// captured at the block's date anchor.
type DirectionInput struct {
	Description string
	Section     models.SectionKind
	Amount      decimal.Decimal // signed
	FullText    string
}

// Outcome is the result of one tier: a direction, or no opinion.
type Outcome struct {
	Direction models.Direction
	Matched   bool
}

func match(d models.Direction) Outcome { return Outcome{Direction: d, Matched: true} }

var noMatch = Outcome{}

// DirectionTier is a pure rule evaluated in priority order.
type DirectionTier struct {
	Name  string
	Apply func(in DirectionInput) Outcome
}

// Decision records the direction and the tier that produced it.
type Decision struct {
	Direction models.Direction
	Tier      string
}

// DirectionClassifier evaluates tiers top-down; the first match wins.
type DirectionClassifier struct {
	tiers []DirectionTier
}

var colonSpacing = regexp.MustCompile(`\s*:\s*`)

// indicatorText lower-cases s and writes "Descr : Sender" as "descr:sender".
func indicatorText(s string) string {
	s = colonSpacing.ReplaceAllString(strings.ToLower(s), ":")
	return strings.Join(strings.Fields(s), " ")
}

// NewDirectionClassifier builds the five tiers from r.
func NewDirectionClassifier(r rules.DirectionRules) (*DirectionClassifier, error) {
	type explicitRule struct {
		re  *regexp.Regexp
		dir models.Direction
	}
	explicit := make([]explicitRule, 0, len(r.Explicit))
	for _, e := range r.Explicit {
		re, err := rules.CompilePattern(e.Pattern)
		if err != nil {
			return nil, fmt.Errorf("explicit direction: %w", err)
		}
		explicit = append(explicit, explicitRule{re: re, dir: e.Direction})
	}
	debit, err := rules.CompileAll(r.Debit)
	if err != nil {
		return nil, fmt.Errorf("debit patterns: %w", err)
	}
	achMarkers := newPhraseMatcher(r.ACHMarkers, false)
	achIncoming := newPhraseMatcher(r.ACHIncoming, false)

	tiers := []DirectionTier{
		{Name: TierExplicit, Apply: func(in DirectionInput) Outcome {
			for _, e := range explicit {
				if e.re.MatchString(in.Description) {
					return match(e.dir)
				}
			}
			return noMatch
		}},
		{Name: TierACH, Apply: func(in DirectionInput) Outcome {
			desc := indicatorText(in.Description)
			full := indicatorText(in.FullText)
			if !achMarkers.any(desc) && !achMarkers.any(full) {
				return noMatch
			}
			switch {
			case in.Section == models.SectionDeposits:
				return match(models.DirectionIn)
			case in.Section.IsOutgoing():
				return match(models.DirectionOut)
			case achIncoming.any(desc) || achIncoming.any(full):
				return match(models.DirectionIn)
			default:
				return match(models.DirectionOut)
			}
		}},
		{Name: TierDebit, Apply: func(in DirectionInput) Outcome {
			for _, re := range debit {
				if re.MatchString(in.Description) {
					return match(models.DirectionOut)
				}
			}
			return noMatch
		}},
		{Name: TierSection, Apply: func(in DirectionInput) Outcome {
			switch {
			case in.Section == models.SectionDeposits:
				return match(models.DirectionIn)
			case in.Section.IsOutgoing():
				return match(models.DirectionOut)
			}
			return noMatch
		}},
		{Name: TierSign, Apply: func(in DirectionInput) Outcome {
			if in.Amount.IsNegative() {
				return match(models.DirectionOut)
			}
			return match(models.DirectionIn)
		}},
	}
	return &DirectionClassifier{tiers: tiers}, nil
}

// Classify always returns a direction: the sign tier matches everything.
func (c *DirectionClassifier) Classify(in DirectionInput) Decision {
	for _, t := range c.tiers {
		if out := t.Apply(in); out.Matched {
			return Decision{Direction: out.Direction, Tier: t.Name}
		}
	}
	return Decision{Direction: models.DirectionIn, Tier: TierSign}
}

// Tiers returns the tier names in evaluation order.
func (c *DirectionClassifier) Tiers() []string {
	names := make([]string, len(c.tiers))
	for i, t := range c.tiers {
		names[i] = t.Name
	}
	return names
}
