package parser

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/insightdelivered/statement-parser/internal/models"
	"github.com/insightdelivered/statement-parser/internal/rules"
)

// Observer receives per-block outcomes, typically to feed metrics.
type Observer interface {
	BlockSkipped(reason string)
	TransactionParsed(direction models.Direction, tier string, fallback bool)
}

// Options configure an Engine. The zero value is usable.
type Options struct {
	// Year is used for MM/DD dates when Parse gets no year hint.
	Year int
	// BlankLineLimit overrides DefaultBlankLineLimit.
	BlankLineLimit int
	// Rules defaults to the embedded Chase tables.
	Rules *rules.Rules
	// Debug records the fate of every input line in StatementInfo.DebugLines.
	Debug    bool
	Logger   *zerolog.Logger
	Observer Observer
}

// Engine turns extracted statement text into transactions. It keeps no
// per-statement state, so one Engine can serve concurrent Parse calls.
type Engine struct {
	opts       Options
	log        zerolog.Logger
	scanner    *Scanner
	collector  *BlockCollector
	resolver   *AmountResolver
	normalizer *DescriptionNormalizer
	direction  *DirectionClassifier
}

// NewEngine compiles the rule tables.
func NewEngine(opts Options) (*Engine, error) {
	r := opts.Rules
	if r == nil {
		var err error
		if r, err = rules.Default(); err != nil {
			return nil, err
		}
	}
	scanner, err := NewScanner(r)
	if err != nil {
		return nil, err
	}
	normalizer, err := NewDescriptionNormalizer(r)
	if err != nil {
		return nil, err
	}
	direction, err := NewDirectionClassifier(r.Direction)
	if err != nil {
		return nil, err
	}

	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &Engine{
		opts:       opts,
		log:        log,
		scanner:    scanner,
		collector:  NewBlockCollector(scanner, opts.BlankLineLimit),
		resolver:   NewAmountResolver(),
		normalizer: normalizer,
		direction:  direction,
	}, nil
}

// parseRun holds the state of one Parse call.
type parseRun struct {
	info   *models.StatementInfo
	layout Layout
	debug  bool
}

func (r *parseRun) trace(idx int, text, result string, section models.SectionKind, detail string) {
	if !r.debug {
		return
	}
	r.info.DebugLines = append(r.info.DebugLines, models.DebugLine{
		LineNum: idx + 1,
		Text:    text,
		Result:  result,
		Section: section,
		Detail:  detail,
	})
}

// Parse scans raw text top to bottom and returns the transactions in
// source order. yearHint 0 means infer the year. A block that cannot be
// parsed is skipped; Parse itself never fails.
func (e *Engine) Parse(raw string, yearHint int) *models.StatementInfo {
	if yearHint <= 0 {
		yearHint = e.opts.Year
	}
	years := e.scanner.Years(raw, yearHint)
	run := &parseRun{
		info: &models.StatementInfo{
			StatementPeriod: years.periodString(),
			Year:            years.yearFor(1),
		},
		debug: e.opts.Debug,
	}
	if years.period != nil {
		run.info.Year = years.period.End.Year()
	}

	lines := splitLines(raw)
	run.layout.BalanceColumn = e.scanner.HasBalanceColumn(lines)
	section := models.SectionUnknown
	for i := 0; i < len(lines); {
		line := lines[i]
		if line == "" {
			run.trace(i, line, "blank", section, "")
			i++
			continue
		}

		if a, ok := e.scanner.Anchor(line, years); ok {
			block, next := e.collector.Collect(lines, i, section, func(idx int, result, detail string) {
				run.trace(idx, lines[idx], result, section, detail)
			})
			if !a.Valid {
				e.skip(run, i, line, section, "malformed date")
			} else {
				block.Date = a.Date
				e.process(run, block)
			}
			i = next
			continue
		}

		if kind, ok := e.scanner.Section(line); ok {
			section = kind
			run.trace(i, line, "header", section, string(kind))
			i++
			continue
		}

		if e.scanner.IsNoise(line) {
			run.trace(i, line, "noise", section, "")
		} else {
			run.trace(i, line, "skipped", section, "outside any block")
		}
		i++
	}
	sort.SliceStable(run.info.DebugLines, func(a, b int) bool {
		return run.info.DebugLines[a].LineNum < run.info.DebugLines[b].LineNum
	})

	e.log.Debug().
		Int("lines", len(lines)).
		Int("transactions", len(run.info.Transactions)).
		Str("period", run.info.StatementPeriod).
		Msg("statement parsed")
	return run.info
}

// process resolves one block into a transaction, or skips it.
func (e *Engine) process(run *parseRun, block models.Block) {
	text := strings.Join(block.Lines, "\n")
	anchorLine := block.Lines[0]

	res := e.resolver.ResolveIn(text, run.layout)
	if !res.Found {
		e.skip(run, block.StartLine, anchorLine, block.Section, "no amount")
		return
	}
	desc := e.normalizer.Clean(text, res)
	if desc == "" {
		e.skip(run, block.StartLine, anchorLine, block.Section, "empty description")
		return
	}

	signed := res.Amount
	if res.Negative {
		signed = signed.Neg()
	}
	decision := e.direction.Classify(DirectionInput{
		Description: desc,
		Section:     block.Section,
		Amount:      signed,
		FullText:    text,
	})

	run.info.Transactions = append(run.info.Transactions, models.Transaction{
		Date:        block.Date,
		Description: desc,
		Amount:      res.Amount.Abs(),
		Direction:   decision.Direction,
	})

	detail := fmt.Sprintf("amount=%s direction=%s tier=%s", res.Amount.StringFixed(2), decision.Direction, decision.Tier)
	if res.Fallback {
		detail += " fallback"
	}
	run.trace(block.StartLine, anchorLine, "parsed", block.Section, detail)
	if e.opts.Observer != nil {
		e.opts.Observer.TransactionParsed(decision.Direction, decision.Tier, res.Fallback)
	}
	if res.Fallback {
		e.log.Debug().Int("line", block.StartLine+1).Str("text", anchorLine).Msg("amount resolved by fallback")
	}
}

func (e *Engine) skip(run *parseRun, idx int, line string, section models.SectionKind, reason string) {
	run.trace(idx, line, "skipped", section, reason)
	if e.opts.Observer != nil {
		e.opts.Observer.BlockSkipped(reason)
	}
	e.log.Debug().Int("line", idx+1).Str("reason", reason).Str("text", line).Msg("block skipped")
}
