package parser

import (
	"regexp"

	"github.com/insightdelivered/statement-parser/internal/models"
)

// amountLinePattern is a line holding nothing but an amount. Outside a block
// it is a balance line; inside one it is the amount wrapped off the
// description.
var amountLinePattern = regexp.MustCompile(`^\(?-?\$?[\d,]+\.\d{2}\)?-?$`)

// DefaultBlankLineLimit is how many consecutive blank or noise lines end a
// block. Chase prints page furniture between the halves of a wrapped
// transaction, so one is not enough.
const DefaultBlankLineLimit = 2

// lineTrace receives the fate of every line consumed by a block.
type lineTrace func(idx int, result, detail string)

// BlockCollector groups an anchor line with the continuation lines that
// follow it.
type BlockCollector struct {
	scanner        *Scanner
	blankLineLimit int
}

// NewBlockCollector returns a collector; limit <= 0 means the default.
func NewBlockCollector(s *Scanner, limit int) *BlockCollector {
	if limit <= 0 {
		limit = DefaultBlankLineLimit
	}
	return &BlockCollector{scanner: s, blankLineLimit: limit}
}

// Collect gathers the block anchored at lines[start]. It stops, without
// consuming, at the next anchor or section header, and stops after
// blankLineLimit consecutive blank or noise lines. It returns the index of
// the first line it did not consume.
func (c *BlockCollector) Collect(lines []string, start int, section models.SectionKind, trace lineTrace) (models.Block, int) {
	block := models.Block{
		StartLine: start,
		Lines:     []string{lines[start]},
		Section:   section,
	}

	blanks := 0
	i := start + 1
	for ; i < len(lines); i++ {
		line := lines[i]
		if c.scanner.IsAnchor(line) {
			break
		}
		if _, ok := c.scanner.Section(line); ok {
			break
		}

		if amountLinePattern.MatchString(line) && !hasCents(block.Lines) {
			blanks = 0
			block.Lines = append(block.Lines, line)
			if trace != nil {
				trace(i, "continuation", "wrapped amount")
			}
			continue
		}

		if line == "" || c.scanner.IsNoise(line) {
			blanks++
			if trace != nil {
				if line == "" {
					trace(i, "blank", "")
				} else {
					trace(i, "noise", "inside block")
				}
			}
			if blanks >= c.blankLineLimit {
				i++
				break
			}
			continue
		}

		blanks = 0
		block.Lines = append(block.Lines, line)
		if trace != nil {
			trace(i, "continuation", "")
		}
	}
	return block, i
}

func hasCents(lines []string) bool {
	for _, l := range lines {
		if centsPattern.MatchString(l) {
			return true
		}
	}
	return false
}
