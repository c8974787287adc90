package parser

import (
	"bytes"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/statement-parser/internal/models"
)

type recordingObserver struct {
	mu      sync.Mutex
	skipped []string
	parsed  []string
}

func (o *recordingObserver) BlockSkipped(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.skipped = append(o.skipped, reason)
}

func (o *recordingObserver) TransactionParsed(direction models.Direction, tier string, fallback bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.parsed = append(o.parsed, string(direction)+"/"+tier)
}

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	e, err := NewEngine(opts)
	require.NoError(t, err)
	return e
}

func TestEngine_ScenarioA(t *testing.T) {
	e := newTestEngine(t, Options{})
	info := e.Parse("ATM & DEBIT CARD WITHDRAWALS\n06/04 Card Purchase 06/03 Latitude On The Riv 866.800.4656 NE Card 3116 1,254.81", 2024)

	require.Len(t, info.Transactions, 1)
	tx := info.Transactions[0]
	assert.Equal(t, "2024-06-04", tx.Date.Format(models.DateLayout))
	assert.Equal(t, "1254.81", tx.Amount.StringFixed(2))
	assert.Equal(t, models.DirectionOut, tx.Direction)
	assert.Equal(t, "Card Purchase Latitude On The Riv 866.800.4656 NE Card 3116", tx.Description)
}

func TestEngine_ScenarioB(t *testing.T) {
	e := newTestEngine(t, Options{})
	raw := `DEPOSITS AND ADDITIONS
03/06 Orig CO Name:Sanaa Debs Orig ID:T941687665 Desc Date:240305 CO Entry
Descr:Sender Sec:CIE Trace#:113000021971631 Eed:240305 Ind ID:Argentradeco Ll
Ind Name:705583508 Direct Debit Reversal $3,000.00`

	info := e.Parse(raw, 2024)
	require.Len(t, info.Transactions, 1)
	tx := info.Transactions[0]
	assert.Equal(t, "3000.00", tx.Amount.StringFixed(2))
	assert.Equal(t, models.DirectionIn, tx.Direction)
	assert.Contains(t, tx.Description, "Descr:Sender")
}

func TestEngine_ScenarioC(t *testing.T) {
	e := newTestEngine(t, Options{})
	raw := `DEPOSITS AND ADDITIONS
12/03 Book Transfer Credit B/O: Celio Business Services Corp Sheridan WY 82801-6317 US Trn: 3340774338Es $68,795.00`

	info := e.Parse(raw, 2024)
	require.Len(t, info.Transactions, 1)
	assert.Equal(t, "68795.00", info.Transactions[0].Amount.StringFixed(2))
	assert.Equal(t, models.DirectionIn, info.Transactions[0].Direction)
}

func TestEngine_SpanishStatement(t *testing.T) {
	e := newTestEngine(t, Options{})
	raw := `Octubre 17, 2024 a Noviembre 18, 2024
RETIROS ELECTRÓNICOS
FECHA DESCRIPCIÓN CANTIDAD SALDO
11/06 DÉbito de cÁmara de compensaciÓn automatizada. Wise US inc wise trnwise web ID: 1453233521
-1,924.67 6,954.70
Total de retiros electrónicos $1,924.67`

	info := e.Parse(raw, 0)
	assert.Equal(t, "2024-10-17 to 2024-11-18", info.StatementPeriod)
	require.Len(t, info.Transactions, 1)
	tx := info.Transactions[0]
	assert.Equal(t, "2024-11-06", tx.Date.Format(models.DateLayout))
	assert.Equal(t, "1924.67", tx.Amount.StringFixed(2))
	assert.Equal(t, models.DirectionOut, tx.Direction)
	assert.Equal(t, "DÉbito de cÁmara de compensaciÓn automatizada. Wise US inc wise trnwise", tx.Description)
}

func TestEngine_WrappedACHMentioningFees(t *testing.T) {
	e := newTestEngine(t, Options{})
	raw := `DEPOSITS AND ADDITIONS
03/06 Orig CO Name:Stripe Orig ID:1800948598 Desc Date:240305 CO Entry
Descr:Transfer Fees Sec:CCD Ind Name:Acme
$3,000.00
03/07 Remote Online Batch Credit 500.00`

	info := e.Parse(raw, 2024)
	require.Len(t, info.Transactions, 2)
	assert.Equal(t, "3000.00", info.Transactions[0].Amount.StringFixed(2))
	assert.Equal(t, models.DirectionIn, info.Transactions[0].Direction)
	assert.Contains(t, info.Transactions[0].Description, "Descr:Transfer Fees")
	assert.Equal(t, "500.00", info.Transactions[1].Amount.StringFixed(2))
	assert.Equal(t, models.DirectionIn, info.Transactions[1].Direction)
}

func TestEngine_TwoAmountsWithoutBalanceColumn(t *testing.T) {
	e := newTestEngine(t, Options{})
	info := e.Parse("ELECTRONIC WITHDRAWALS\n05/21 Zelle Payment To Ann 45.00 1,200.00", 2024)

	require.Len(t, info.Transactions, 1)
	assert.Equal(t, "1200.00", info.Transactions[0].Amount.StringFixed(2))
	assert.Equal(t, models.DirectionOut, info.Transactions[0].Direction)
}

func TestEngine_YearRollover(t *testing.T) {
	e := newTestEngine(t, Options{})
	raw := `December 15, 2023 through January 14, 2024
DEPOSITS AND ADDITIONS
12/28 Zelle Payment From Ann 100.00
01/03 Zelle Payment From Bob 200.00`

	info := e.Parse(raw, 0)
	require.Len(t, info.Transactions, 2)
	assert.Equal(t, "2023-12-28", info.Transactions[0].Date.Format(models.DateLayout))
	assert.Equal(t, "2024-01-03", info.Transactions[1].Date.Format(models.DateLayout))
	assert.Equal(t, 2024, info.Year)
}

func TestEngine_MultiLineDescription(t *testing.T) {
	e := newTestEngine(t, Options{})
	raw := "DEPOSITS AND ADDITIONS\n03/06 Fedwire Credit Via: First Bank\n\nB/O: Acme Holdings LLC\n\nRef: Invoice 77 $5,000.00"

	info := e.Parse(raw, 2024)
	require.Len(t, info.Transactions, 1)
	desc := info.Transactions[0].Description
	assert.Contains(t, desc, "Fedwire Credit Via: First Bank")
	assert.Contains(t, desc, "B/O: Acme Holdings LLC")
	assert.Contains(t, desc, "Ref: Invoice 77")
}

func TestEngine_SkipsBadBlocks(t *testing.T) {
	obs := &recordingObserver{}
	e := newTestEngine(t, Options{Observer: obs})
	raw := `ATM & DEBIT CARD WITHDRAWALS
02/30 Card Purchase Bogus Date 10.00
03/01 Card Purchase No Amount Here
03/02 Card Purchase Real One 42.00`

	info := e.Parse(raw, 2024)
	require.Len(t, info.Transactions, 1)
	assert.Equal(t, "42.00", info.Transactions[0].Amount.StringFixed(2))
	assert.Equal(t, []string{"malformed date", "no amount"}, obs.skipped)
	assert.Equal(t, []string{"out/explicit"}, obs.parsed)
}

func TestEngine_Idempotent(t *testing.T) {
	e := newTestEngine(t, Options{})
	raw := `May 15, 2024 through June 14, 2024
DEPOSITS AND ADDITIONS
05/20 Zelle Payment From John Doe 21212121 $500.00
ATM & DEBIT CARD WITHDRAWALS
06/04 Card Purchase 06/03 Latitude On The Riv 866.800.4656 NE Card 3116 1,254.81
06/17 Card Purchase 06/14 Waste Mgmt Wm Ezpay 866-834-2080 TX Card 3116 2,487.82
FEES
06/03 Online Domestic Wire Fee 25.00`

	first := e.Parse(raw, 0)
	second := e.Parse(raw, 0)
	require.Len(t, first.Transactions, 4)
	assert.Equal(t, first.Transactions, second.Transactions)
}

func TestEngine_ConcurrentParse(t *testing.T) {
	e := newTestEngine(t, Options{})
	raw := "FEES\n06/03 Online Domestic Wire Fee 25.00\n06/04 Service Charge 12.00"

	var wg sync.WaitGroup
	results := make([]*models.StatementInfo, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = e.Parse(raw, 2024)
		}(i)
	}
	wg.Wait()

	for _, info := range results {
		assert.Equal(t, results[0].Transactions, info.Transactions)
	}
}

func TestEngine_DebugLines(t *testing.T) {
	e := newTestEngine(t, Options{Debug: true})
	raw := "FEES\n06/03 Online Domestic Wire Fee\n\nmore text 25.00\nPage 1 of 2\n\nloose line"

	info := e.Parse(raw, 2024)
	require.Len(t, info.DebugLines, 7)

	results := make([]string, len(info.DebugLines))
	for i, d := range info.DebugLines {
		results[i] = d.Result
		assert.Equal(t, i+1, d.LineNum)
	}
	assert.Equal(t, []string{"header", "parsed", "blank", "continuation", "noise", "blank", "skipped"}, results)
	assert.Equal(t, models.SectionFees, info.DebugLines[1].Section)
}

func TestEngine_Logging(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)
	e := newTestEngine(t, Options{Logger: &log})

	e.Parse("02/30 Card Purchase 10.00", 2024)
	assert.Contains(t, buf.String(), `"reason":"malformed date"`)
	assert.Contains(t, buf.String(), `"message":"statement parsed"`)
}

func TestEngine_BlankLineLimitOption(t *testing.T) {
	e := newTestEngine(t, Options{BlankLineLimit: 1})
	info := e.Parse("FEES\n06/03 Wire Fee 25.00\n\nTrailing Words", 2024)
	require.Len(t, info.Transactions, 1)
	assert.Equal(t, "Wire Fee", info.Transactions[0].Description)
}
