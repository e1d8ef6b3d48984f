package quality

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/vire-recon/internal/common"
	"github.com/bobmcallan/vire-recon/internal/models"
	"github.com/bobmcallan/vire-recon/internal/services/pnl"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func trade(date time.Time, typ models.TransactionType, symbol, qty, price string) models.Transaction {
	return models.Transaction{
		Date:      date,
		Type:      typ,
		AssetType: models.AssetEquity,
		Symbol:    symbol,
		Quantity:  d(qty),
		Price:     d(price),
		Currency:  "USD",
	}
}

func newChecker() *Checker {
	cfg := common.NewDefaultConfig()
	return NewChecker(cfg, pnl.NewClassifier(cfg.Classifier), pnl.NewValuationRegistry(), common.NewSilentLogger())
}

func issue(t *testing.T, r *models.DataQualityReport, msg string) models.DataQualityIssue {
	t.Helper()
	for _, i := range r.Issues {
		if i.Message == msg {
			return i
		}
	}
	require.Failf(t, "issue not found", "%q in %+v", msg, r.Issues)
	return models.DataQualityIssue{}
}

func TestCheck_CleanInput(t *testing.T) {
	r := newChecker().Check([]models.Transaction{
		{Date: day(0), Type: models.TxDeposit, Symbol: "USD", Net: ptr(d("5000"))},
		trade(day(1), models.TxBuy, "AAPL", "10", "150"),
		trade(day(30), models.TxSell, "AAPL", "4", "170"),
		{Date: day(40), Type: models.TxDividend, Symbol: "AAPL", Net: ptr(d("3"))},
	})
	assert.True(t, r.IsClean(), "%+v", r.Issues)
	assert.Equal(t, 4, r.TotalRecords)
}

func TestCheck_EmptyInput(t *testing.T) {
	r := newChecker().Check(nil)
	require.Len(t, r.Issues, 1)
	assert.Equal(t, "No transactions provided", r.Issues[0].Message)
	assert.Equal(t, models.SeverityWarning, r.Issues[0].Severity)
}

func TestCheck_Completeness(t *testing.T) {
	r := newChecker().Check([]models.Transaction{
		trade(day(0), models.TxBuy, "", "10", "5"),
		trade(day(1), models.TxBuy, "XYZ", "0", "5"),
		trade(day(2), models.TxBuy, "XYZ", "1", "0"),
		{Date: day(3), Type: models.TxStockSplit, Symbol: "XYZ", Quantity: d("1")},
	})

	missing := issue(t, r, "Transactions with missing symbol")
	assert.Equal(t, models.SeverityCritical, missing.Severity)
	assert.Equal(t, []string{"Row 1: 2024-01-01"}, missing.AffectedRecords)

	assert.Equal(t, []string{"Row 3: 2024-01-03"}, issue(t, r, "Transactions with zero or missing price").AffectedRecords,
		"splits carry no price")
	assert.Equal(t, []string{"Row 2: 2024-01-02"}, issue(t, r, "Transactions with zero quantity").AffectedRecords)
	assert.True(t, r.HasCritical())
}

func TestCheck_OrderAndDuplicates(t *testing.T) {
	r := newChecker().Check([]models.Transaction{
		trade(day(5), models.TxBuy, "ABC", "10", "20"),
		trade(day(2), models.TxBuy, "ABC", "10", "20"),
		trade(day(5), models.TxBuy, "ABC", "10", "20"),
	})

	order := issue(t, r, "Transactions not in chronological order")
	assert.Equal(t, models.SeverityInfo, order.Severity)
	assert.Equal(t, []string{"Row 2: 2024-01-03 < 2024-01-06"}, order.AffectedRecords)

	dup := issue(t, r, "Potential duplicate transactions detected")
	assert.Equal(t, []string{"Rows [1 3]: 2024-01-06 ABC buy"}, dup.AffectedRecords)
}

func TestCheck_NegativePositions(t *testing.T) {
	r := newChecker().Check([]models.Transaction{
		trade(day(0), models.TxBuy, "ABC", "10", "20"),
		trade(day(1), models.TxSell, "ABC", "15", "21"),
		{Date: day(2), Type: models.TxWithdrawal, Symbol: "USD", Net: ptr(d("100"))},
		{Date: day(3), Type: models.TxOptionSell, AssetType: models.AssetCallOption, Symbol: "ABC_OPQ",
			Quantity: d("1"), Price: d("1.2"), InstrumentTerms: models.InstrumentTerms{Strike: d("25"), Expiry: day(60)}},
	})
	neg := issue(t, r, "Sell transactions exceed available quantity (short selling or missing buys)")
	assert.Equal(t, models.SeverityCritical, neg.Severity)
	assert.Equal(t, []string{"2024-01-02 ABC: selling 15 but only have 10"}, neg.AffectedRecords,
		"withdrawals and written options are not oversells")
}

func TestCheck_NegativePositionsFollowSplits(t *testing.T) {
	r := newChecker().Check([]models.Transaction{
		trade(day(0), models.TxBuy, "NVDA", "10", "100"),
		{Date: day(1), Type: models.TxStockSplit, Symbol: "NVDA", Quantity: d("10")},
		trade(day(2), models.TxSell, "NVDA", "20", "55"),
		trade(day(3), models.TxBuy, "RVS", "100", "1"),
		{Date: day(4), Type: models.TxReverseSplit, Symbol: "RVS", Price: d("0.1")},
		trade(day(5), models.TxSell, "RVS", "11", "10"),
	})
	neg := issue(t, r, "Sell transactions exceed available quantity (short selling or missing buys)")
	assert.Equal(t, []string{"2024-01-06 RVS: selling 11 but only have 10"}, neg.AffectedRecords,
		"the forward split doubles NVDA, the 1-for-10 leaves 10 RVS")
}

func TestCheck_SaleToOpenFollowsOptionMarkers(t *testing.T) {
	// configured marker, not the asset type, identifies a written option
	sto := trade(day(0), models.TxSell, "XYZ_OPQ", "1", "2")
	r := newChecker().Check([]models.Transaction{sto})
	assert.False(t, r.HasCritical(), "%+v", r.Issues)

	unmarked := trade(day(0), models.TxOptionSell, "XYZ C25", "1", "2")
	unmarked.AssetType = models.AssetCallOption
	unmarked.InstrumentTerms = models.InstrumentTerms{Strike: d("25"), Expiry: day(60)}
	r = newChecker().Check([]models.Transaction{unmarked})
	assert.True(t, r.HasCritical(), "the ledger disposes a sell it does not recognise as written")
}

func TestCheck_PriceAnomalies(t *testing.T) {
	r := newChecker().Check([]models.Transaction{
		trade(day(0), models.TxBuy, "JMP", "10", "10"),
		trade(day(5), models.TxBuy, "JMP", "10", "16"),
		trade(day(9), models.TxBuy, "OK", "1", "10"),
		trade(day(10), models.TxBuy, "OK", "1", "14"),
	})
	a := issue(t, r, "Large price changes detected (>50%)")
	assert.Equal(t, []string{"JMP: 10 -> 16 (60.0% change) from 2024-01-01 to 2024-01-06"}, a.AffectedRecords)
}

func TestCheck_SettlementAndFX(t *testing.T) {
	early := trade(day(5), models.TxBuy, "A", "1", "10")
	early.SettlementDate = day(4)
	late := trade(day(5), models.TxBuy, "B", "1", "10")
	late.SettlementDate = day(12)
	eur := trade(day(6), models.TxBuy, "C", "1", "10")
	eur.Currency = "EUR"
	odd := trade(day(7), models.TxBuy, "D", "1", "10")
	odd.FXRate = d("5000")

	r := newChecker().Check([]models.Transaction{early, late, eur, odd})

	settle := issue(t, r, "Settlement date anomalies")
	assert.Equal(t, []string{
		"Row 1: Settlement 2024-01-05 before trade 2024-01-06",
		"Row 2: Settlement T+7 for B",
	}, settle.AffectedRecords)

	fx := issue(t, r, "FX rate anomalies")
	assert.Equal(t, []string{
		"Row 3: Missing FX rate for EUR",
		"Row 4: Unusual FX rate 5000",
	}, fx.AffectedRecords)
}

func TestCheck_InstrumentFields(t *testing.T) {
	r := newChecker().Check([]models.Transaction{
		{Date: day(0), Type: models.TxOptionBuy, AssetType: models.AssetPutOption, Symbol: "P1",
			Quantity: d("1"), Price: d("2")},
		{Date: day(1), Type: models.TxBuy, AssetType: models.AssetCorporateBond, Symbol: "B1",
			Quantity: d("10"), Price: d("99")},
	})
	fields := issue(t, r, "Instrument transactions with missing/invalid fields")
	assert.Equal(t, []string{
		"Row 1: option P1 missing strike price",
		"Row 2: bond B1 missing maturity date",
	}, fields.AffectedRecords)
}

func TestCheck_AffectedRecordsCapped(t *testing.T) {
	var txns []models.Transaction
	for i := 0; i < 25; i++ {
		txns = append(txns, trade(day(i), models.TxBuy, "Z", "0", "10"))
	}
	r := newChecker().Check(txns)
	assert.Len(t, issue(t, r, "Transactions with zero quantity").AffectedRecords, 10)
}

func ptr(v decimal.Decimal) *decimal.Decimal { return &v }
