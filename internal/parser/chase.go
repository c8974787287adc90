package parser

import (
	"strings"

	"github.com/insightdelivered/statement-parser/internal/models"
)

// ChaseParser handles Chase checking statements in English and Spanish.
//
// Chase lists transactions per section (deposits, card withdrawals,
// electronic withdrawals, fees) with one MM/DD anchor per transaction:
//
//	06/04 Card Purchase 06/03 Latitude On The Riv 866.800.4656 NE Card 3116 1,254.81
//
// Long ACH and wire descriptions wrap onto following lines, sometimes with
// page furniture in between.
type ChaseParser struct {
	engine *Engine
	year   int
}

// NewChaseParser builds a parser with its own engine.
func NewChaseParser(opts Options) (*ChaseParser, error) {
	e, err := NewEngine(opts)
	if err != nil {
		return nil, err
	}
	return &ChaseParser{engine: e, year: opts.Year}, nil
}

func (p *ChaseParser) BankName() string {
	return "Chase"
}

// Parse joins the pages and runs the engine over them.
func (p *ChaseParser) Parse(pages []string) (*models.StatementInfo, error) {
	return p.ParseYear(pages, 0)
}

func (p *ChaseParser) ParseYear(pages []string, year int) (*models.StatementInfo, error) {
	raw := strings.Join(pages, "\n")
	if strings.TrimSpace(raw) == "" {
		return nil, ErrNoText
	}
	if year <= 0 {
		year = p.year
	}
	info := p.engine.Parse(raw, year)
	info.Bank = models.BankChase
	info.AccountNumber = findAccountNumber(raw)
	return info, nil
}
