package writer

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/insightdelivered/statement-parser/internal/models"
)

// JSONWriter writes the transaction array, or a statement object with
// metadata when IncludeHeader is set.
type JSONWriter struct {
	IncludeHeader bool
}

type jsonStatement struct {
	Bank            models.BankType      `json:"bank,omitempty"`
	AccountNumber   string               `json:"accountNumber,omitempty"`
	StatementPeriod string               `json:"statementPeriod,omitempty"`
	Transactions    []models.Transaction `json:"transactions"`
}

func (w *JSONWriter) Extension() string   { return ".json" }
func (w *JSONWriter) ContentType() string { return "application/json" }

func (w *JSONWriter) Write(out io.Writer, info *models.StatementInfo) error {
	txns := info.Transactions
	if txns == nil {
		txns = []models.Transaction{}
	}

	var v any = txns
	if w.IncludeHeader {
		v = jsonStatement{
			Bank:            info.Bank,
			AccountNumber:   info.AccountNumber,
			StatementPeriod: info.StatementPeriod,
			Transactions:    txns,
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write JSON: %w", err)
	}
	return nil
}
