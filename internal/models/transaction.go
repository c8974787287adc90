package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format for transaction dates.
const DateLayout = "2006-01-02"

// Direction is the money-flow sign of a transaction.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// SectionKind names the statement region a transaction was found in.
type SectionKind string

const (
	SectionUnknown     SectionKind = "unknown"
	SectionDeposits    SectionKind = "deposits"
	SectionWithdrawals SectionKind = "withdrawals"
	SectionFees        SectionKind = "fees"
)

// IsOutgoing reports whether the section lists money leaving the account.
func (k SectionKind) IsOutgoing() bool {
	return k == SectionWithdrawals || k == SectionFees
}

// Transaction represents a single bank statement transaction.
type Transaction struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal // always non-negative
	Direction   Direction
}

type transactionJSON struct {
	Date        string      `json:"date"`
	Description string      `json:"description"`
	Amount      json.Number `json:"amount"`
	Direction   Direction   `json:"direction"`
}

// MarshalJSON emits {date, description, amount, direction} with the amount
// as a JSON number fixed to cents.
func (t Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(transactionJSON{
		Date:        t.Date.Format(DateLayout),
		Description: t.Description,
		Amount:      json.Number(t.Amount.StringFixed(2)),
		Direction:   t.Direction,
	})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var raw transactionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	date, err := time.Parse(DateLayout, raw.Date)
	if err != nil {
		return err
	}
	amount, err := decimal.NewFromString(raw.Amount.String())
	if err != nil {
		return err
	}
	t.Date = date
	t.Description = raw.Description
	t.Amount = amount
	t.Direction = raw.Direction
	return nil
}

// Block is one date anchor line plus its continuation lines.
// Section is captured when the anchor is seen and never changes afterwards.
type Block struct {
	StartLine int
	Lines     []string
	Date      time.Time
	Section   SectionKind
}

// BankType represents supported bank statement formats.
type BankType string

const (
	BankChase BankType = "chase"
)

// DebugLine captures what the parser did with each input line.
type DebugLine struct {
	LineNum int         `json:"lineNum"`
	Text    string      `json:"text"`
	Result  string      `json:"result"` // "parsed", "skipped", "continuation", "header", "noise", "blank"
	Section SectionKind `json:"section,omitempty"`
	Detail  string      `json:"detail,omitempty"`
}

// StatementInfo holds metadata extracted from the statement.
type StatementInfo struct {
	Bank            BankType
	AccountNumber   string
	StatementPeriod string
	Year            int
	Transactions    []Transaction
	DebugLines      []DebugLine
}
