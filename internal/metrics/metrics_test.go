package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/statement-parser/internal/models"
	"github.com/insightdelivered/statement-parser/internal/parser"
)

var _ parser.Observer = (*Recorder)(nil)

func TestRecorder(t *testing.T) {
	r := NewRecorder("test")
	reg := prometheus.NewRegistry()
	require.NoError(t, r.Register(reg))

	r.TransactionParsed(models.DirectionOut, parser.TierExplicit, false)
	r.TransactionParsed(models.DirectionOut, parser.TierExplicit, true)
	r.TransactionParsed(models.DirectionIn, parser.TierACH, false)
	r.BlockSkipped("no amount")
	r.StatementDone(models.BankChase, "pdf", nil, 20*time.Millisecond)
	r.StatementDone("", "text", errors.New("boom"), time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.transactions.WithLabelValues("out", "explicit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.transactions.WithLabelValues("in", "ach")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fallbacks))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.skippedBlocks.WithLabelValues("no amount")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.statements.WithLabelValues("chase", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.statements.WithLabelValues("unknown", "error")))
}

func TestRecorder_DoubleRegister(t *testing.T) {
	r := NewRecorder("test")
	reg := prometheus.NewRegistry()
	require.NoError(t, r.Register(reg))
	assert.Error(t, r.Register(reg))
}

func TestRecorder_FeedsFromEngine(t *testing.T) {
	r := NewRecorder("engine")
	e, err := parser.NewEngine(parser.Options{Observer: r})
	require.NoError(t, err)

	e.Parse("FEES\n06/03 Online Domestic Wire Fee 25.00\n02/30 Bad Date 1.00", 2024)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.transactions.WithLabelValues("out", "debit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.skippedBlocks.WithLabelValues("malformed date")))
}
