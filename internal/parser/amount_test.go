package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountResolver_Resolve(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
		layout   Layout
		negative bool
		fallback bool
	}{
		{
			name:     "phone fragment with dots",
			text:     "06/04 Card Purchase 06/03 Latitude On The Riv 866.800.4656 NE Card 3116 1,254.81",
			expected: "1254.81",
		},
		{
			name:     "phone fragment with dashes",
			text:     "06/17 Card Purchase 06/14 Waste Mgmt Wm Ezpay 866-834-2080 TX Card 3116 2,487.82",
			expected: "2487.82",
		},
		{
			name:     "3-7 phone",
			text:     "05/02 Card Purchase Summit Fire And Securi 651-2723262 MN Card 3116 156.80",
			expected: "156.80",
		},
		{
			name:     "zip plus four with dollar amount",
			text:     "12/03 Book Transfer Credit B/O: Celio Business Services Corp Sheridan WY 82801-6317 US Trn: 3340774338Es $68,795.00",
			expected: "68795.00",
		},
		{
			name:     "zip plus four with bare amount on next line",
			text:     "08/12 Fedwire Credit Via: Glacier Bank Kalispell MT 59901-5635\n12,500.00",
			expected: "12500.00",
		},
		{
			name:     "ach with trace numbers",
			text:     "03/06 Orig CO Name:Sanaa Debs Orig ID:T941687665 Desc Date:240305 CO Entry Descr:Sender Sec:CIE Trace#:113000021971631 Eed:240305 Ind ID:Argentradeco Ll Ind Name:705583508 $3,000.00",
			expected: "3000.00",
		},
		{
			name:     "running balance after amount",
			text:     "11/06 DÉbito de cÁmara de compensaciÓn automatizada. Wise US inc wise trnwise web ID: 1453233521\n-1,924.67 6,954.70",
			layout:   Layout{BalanceColumn: true},
			expected: "1924.67",
			negative: true,
		},
		{
			name:     "two amounts without balance column",
			text:     "05/21 Zelle Payment To Ann 45.00 1,200.00",
			expected: "1200.00",
		},
		{
			name:     "check number run is not a phone",
			text:     "06/05 Check 101 250 1000.00",
			expected: "1000.00",
		},
		{
			name:     "parenthesised negative",
			text:     "07/01 Returned Item Fee (34.00)",
			expected: "34.00",
			negative: true,
		},
		{
			name:     "dollar beats larger bare",
			text:     "07/02 Transfer 1,500.00 $25.00",
			expected: "25.00",
		},
		{
			name:     "tie goes to rightmost",
			text:     "07/03 Adjustment 10.00 Reversal 10.00",
			expected: "10.00",
		},
		{
			name:     "fallback to first raw candidate",
			text:     "07/04 Card 3116",
			expected: "3116",
			fallback: true,
		},
	}

	r := NewAmountResolver()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.ResolveIn(tt.text, tt.layout)
			require.True(t, res.Found)
			assert.Equal(t, tt.expected, res.Amount.StringFixed(int32(decimalPlaces(tt.expected))))
			assert.Equal(t, tt.negative, res.Negative)
			assert.Equal(t, tt.fallback, res.Fallback)
		})
	}
}

func decimalPlaces(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return len(s) - i - 1
		}
	}
	return 0
}

func TestAmountResolver_TieBreakRightmost(t *testing.T) {
	res := NewAmountResolver().Resolve("07/03 Adjustment 10.00 Reversal 10.00")
	require.True(t, res.Found)
	assert.Equal(t, len(res.Candidates)-1, res.Chosen)
}

func TestAmountResolver_NotFound(t *testing.T) {
	res := NewAmountResolver().Resolve("Daily ending balance")
	assert.False(t, res.Found)
	assert.Equal(t, -1, res.Chosen)
}

func TestAmountResolver_RejectionReasons(t *testing.T) {
	text := "06/04 Card Purchase Latitude 866.800.4656 NE Card 3116 Sheridan WY 82801-6317 Trace#:113000021971631 0.46 1,254.81"
	res := NewAmountResolver().Resolve(text)
	require.True(t, res.Found)

	reasons := map[string]RejectReason{}
	for _, c := range res.Candidates {
		reasons[c.Text] = c.Rejected
	}
	assert.Equal(t, RejectPhone, reasons["866.80"])
	assert.Equal(t, RejectCard, reasons["3116"])
	assert.Equal(t, RejectZIP, reasons["82801"])
	assert.Equal(t, RejectZIP, reasons["6317"])
	assert.Equal(t, RejectMagnitude, reasons["0.46"])
	assert.Equal(t, RejectReference, reasons["113000021971631"])
	assert.Equal(t, RejectNone, reasons["1,254.81"])
	assert.NotContains(t, reasons, "06", "date parts are not candidates")
}

func TestAmountResolver_ZIPIsNotAmount(t *testing.T) {
	for _, zip := range []string{"82801-6317", "59901-5635"} {
		res := NewAmountResolver().Resolve("12/03 Wire Credit Somewhere ST " + zip + " $68,795.00")
		require.True(t, res.Found)
		assert.Equal(t, "68795.00", res.Amount.StringFixed(2), zip)
	}
}

func TestAmountResolver_StateFollowedByAmount(t *testing.T) {
	res := NewAmountResolver().Resolve("07/09 Card Purchase Waste Mgmt TX 12345.67")
	require.True(t, res.Found)
	assert.Equal(t, "12345.67", res.Amount.StringFixed(2))
}

func TestAmountResolver_CustomFilters(t *testing.T) {
	onlyMagnitude := NewAmountResolver(CandidateFilter{
		Reason:          RejectMagnitude,
		AppliesToDollar: true,
		Reject:          outOfRange,
	})
	res := onlyMagnitude.Resolve("Latitude 866.800.4656 1.00")
	require.True(t, res.Found)
	assert.Equal(t, "866.80", res.Amount.StringFixed(2))
}

func TestExtractCandidates(t *testing.T) {
	cs := extractCandidates("ID:T941-25.00 82801-6317 ($1,000.00) 5.00-")
	var texts []string
	for _, c := range cs {
		texts = append(texts, c.Text)
	}
	assert.Equal(t, []string{"25.00", "82801", "6317", "($1,000.00)", "5.00-"}, texts)

	assert.False(t, cs[0].Negative, "dash glued to a word is not a sign")
	assert.True(t, cs[3].Dollar)
	assert.True(t, cs[3].Negative)
	assert.True(t, cs[4].Negative)
}
