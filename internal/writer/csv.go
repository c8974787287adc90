package writer

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"github.com/insightdelivered/statement-parser/internal/models"
)

// CSVWriter writes transactions to CSV format.
type CSVWriter struct {
	IncludeHeader bool
}

type csvRow struct {
	Date        string `csv:"date"`
	Description string `csv:"description"`
	Amount      string `csv:"amount"`
	Direction   string `csv:"direction"`
}

func (w *CSVWriter) Extension() string   { return ".csv" }
func (w *CSVWriter) ContentType() string { return "text/csv; charset=utf-8" }

// Write writes transactions in CSV format to the given writer. Metadata
// rows, when enabled, come first and start with "#".
func (w *CSVWriter) Write(out io.Writer, info *models.StatementInfo) error {
	if w.IncludeHeader {
		meta := csv.NewWriter(out)
		for _, kv := range metadata(info) {
			if err := meta.Write([]string{"# " + kv[0], kv[1]}); err != nil {
				return fmt.Errorf("failed to write CSV metadata: %w", err)
			}
		}
		meta.Flush()
		if err := meta.Error(); err != nil {
			return fmt.Errorf("failed to write CSV metadata: %w", err)
		}
	}

	rows := make([]csvRow, 0, len(info.Transactions))
	for _, txn := range info.Transactions {
		rows = append(rows, csvRow{
			Date:        txn.Date.Format(models.DateLayout),
			Description: txn.Description,
			Amount:      txn.Amount.StringFixed(2),
			Direction:   string(txn.Direction),
		})
	}
	if err := gocsv.Marshal(rows, out); err != nil {
		return fmt.Errorf("failed to write CSV rows: %w", err)
	}
	return nil
}

// metadata lists the non-empty statement fields as label/value pairs.
func metadata(info *models.StatementInfo) [][2]string {
	var out [][2]string
	add := func(label, value string) {
		if value != "" {
			out = append(out, [2]string{label, value})
		}
	}
	add("Bank", string(info.Bank))
	add("Account Number", info.AccountNumber)
	add("Statement Period", info.StatementPeriod)
	return out
}
