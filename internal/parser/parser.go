package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/insightdelivered/statement-parser/internal/models"
)

var (
	// ErrNoText means extraction produced nothing to parse. It is the only
	// fatal parse condition.
	ErrNoText = errors.New("no extractable text in statement")
	// ErrUnknownBank is returned for unsupported or undetectable banks.
	ErrUnknownBank = errors.New("unknown bank")
)

// Parser defines the interface for bank statement parsers.
type Parser interface {
	// Parse takes raw text from PDF pages and returns structured statement data.
	Parse(pages []string) (*models.StatementInfo, error)
	// ParseYear is Parse with a per-call year for MM/DD dates; 0 means the
	// parser's configured year. It is safe for concurrent use.
	ParseYear(pages []string, year int) (*models.StatementInfo, error)
	// BankName returns the human-readable bank name.
	BankName() string
}

// New returns the appropriate parser for the given bank type.
func New(bankType models.BankType, opts Options) (Parser, error) {
	switch bankType {
	case models.BankChase:
		return NewChaseParser(opts)
	default:
		return nil, fmt.Errorf("%w: unsupported bank type %q", ErrUnknownBank, bankType)
	}
}

var bankMarkers = []struct {
	bank    models.BankType
	markers []string
}{
	{models.BankChase, []string{"jpmorgan chase", "chase.com", "chase total checking", "chase business complete", "chase savings"}},
}

// AutoDetect tries to identify the bank from the PDF text content.
func AutoDetect(pages []string) (models.BankType, error) {
	combined := strings.ToLower(strings.Join(pages, "\n"))
	for _, b := range bankMarkers {
		if containsAny(combined, b.markers) {
			return b.bank, nil
		}
	}
	return "", fmt.Errorf("%w: could not auto-detect bank from statement content; please specify -bank", ErrUnknownBank)
}

func containsAny(lower string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}
