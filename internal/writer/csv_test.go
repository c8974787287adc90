package writer

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/insightdelivered/statement-parser/internal/models"
)

func sampleInfo() *models.StatementInfo {
	return &models.StatementInfo{
		Bank:            models.BankChase,
		AccountNumber:   "000000123456789",
		StatementPeriod: "2024-05-15 to 2024-06-14",
		Transactions: []models.Transaction{
			{
				Date:        time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC),
				Description: "Card Purchase Latitude On The Riv, NE",
				Amount:      decimal.RequireFromString("1254.81"),
				Direction:   models.DirectionOut,
			},
			{
				Date:        time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC),
				Description: "Zelle Payment From John Doe",
				Amount:      decimal.NewFromInt(500),
				Direction:   models.DirectionIn,
			},
		},
	}
}

func TestCSVWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	w := &CSVWriter{IncludeHeader: true}
	require.NoError(t, w.Write(&buf, sampleInfo()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	// 3 metadata lines + 1 header + 2 transactions
	require.Len(t, lines, 6)
	assert.Equal(t, "# Bank,chase", lines[0])
	assert.Equal(t, "# Statement Period,2024-05-15 to 2024-06-14", lines[2])
	assert.Equal(t, "date,description,amount,direction", lines[3])
	assert.Equal(t, `2024-06-04,"Card Purchase Latitude On The Riv, NE",1254.81,out`, lines[4])
	assert.Equal(t, "2024-06-05,Zelle Payment From John Doe,500.00,in", lines[5])
}

func TestCSVWriter_NoHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&CSVWriter{}).Write(&buf, sampleInfo()))

	assert.NotContains(t, buf.String(), "# Bank")
	assert.True(t, strings.HasPrefix(buf.String(), "date,description,amount,direction"))
}

func TestCSVWriter_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&CSVWriter{}).Write(&buf, &models.StatementInfo{}))
	assert.Equal(t, "date,description,amount,direction", strings.TrimSpace(buf.String()))
}

func TestJSONWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONWriter{}).Write(&buf, sampleInfo()))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "2024-06-04", got[0]["date"])
	assert.Equal(t, 1254.81, got[0]["amount"])
	assert.Equal(t, "out", got[0]["direction"])
	assert.Contains(t, buf.String(), `"amount": 500.00`)
}

func TestJSONWriter_EmptyIsArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONWriter{}).Write(&buf, &models.StatementInfo{}))
	assert.Equal(t, "[]", strings.TrimSpace(buf.String()))
}

func TestJSONWriter_WithHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONWriter{IncludeHeader: true}).Write(&buf, sampleInfo()))

	var got struct {
		Bank         string               `json:"bank"`
		Transactions []models.Transaction `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "chase", got.Bank)
	require.Len(t, got.Transactions, 2)
	assert.True(t, got.Transactions[0].Amount.Equal(decimal.RequireFromString("1254.81")))
}

func TestXLSXWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&XLSXWriter{IncludeHeader: true}).Write(&buf, sampleInfo()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(xlsxSheet)
	require.NoError(t, err)
	// 3 metadata rows, a blank row, the header and 2 transactions
	require.Len(t, rows, 7)
	assert.Equal(t, []string{"Bank", "chase"}, rows[0])
	assert.Equal(t, []string{"Date", "Description", "Amount", "Direction"}, rows[4])
	assert.Equal(t, "2024-06-04", rows[5][0])
	assert.Equal(t, "out", rows[5][3])

	raw, err := f.GetCellValue(xlsxSheet, "C6", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "1254.81", raw)
}

func TestNew(t *testing.T) {
	tests := []struct {
		format string
		ext    string
	}{
		{"csv", ".csv"},
		{"", ".csv"},
		{"json", ".json"},
		{"xlsx", ".xlsx"},
	}
	for _, tt := range tests {
		w, err := New(tt.format, false)
		require.NoError(t, err)
		assert.Equal(t, tt.ext, w.Extension())
	}

	_, err := New("pdf", false)
	assert.Error(t, err)
}
