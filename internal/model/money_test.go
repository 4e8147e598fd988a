package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoneyValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		money   Money
		wantErr string
	}{
		{"valid usd", NewMoney(100, "USD"), ""},
		{"valid eur", NewMoney(0, "EUR"), ""},
		{"unknown code", NewMoney(100, "XQZ"), "invalid currency"},
		{"empty code", NewMoney(100, ""), "invalid currency"},
		{"negative amount", NewMoney(-5, "USD"), "negative amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.money.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestMoneyArithmetic(t *testing.T) {
	t.Parallel()

	m := NewMoney(100, "USD")
	assert.Equal(t, "150.00 USD", m.Mul(1.5).String())
	assert.Equal(t, "130.00 USD", m.Add(NewMoney(30, "USD")).String())
	assert.Equal(t, "70.00 USD", m.Sub(NewMoney(30, "USD")).String())
	assert.Equal(t, "123.46 USD", NewMoney(123.456, "USD").Round().String())

	assert.True(t, NewMoney(0, "USD").IsZero())
	assert.False(t, m.IsZero())
	assert.InDelta(t, 100.0, m.Float(), 0.0001)
}

func TestMoneyAddCurrencyMismatchPanics(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() {
		NewMoney(1, "USD").Add(NewMoney(1, "EUR"))
	})
}

func TestMoneyMulAvoidsFloatDrift(t *testing.T) {
	t.Parallel()

	// 0.1 + 0.2 style drift must not leak into prices.
	m := NewMoney(0.1, "USD").Add(NewMoney(0.2, "USD"))
	assert.Equal(t, "0.30 USD", m.String())
	assert.Equal(t, "0.3", m.Amount.String())
}

func TestMoneyJSONShape(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(NewMoney(264, "USD"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"264","currency":"USD"}`, string(data))

	var back Money
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Amount.Equal(NewMoney(264, "USD").Amount))
	assert.Equal(t, "USD", back.Currency)
}

func TestMarketDataIsStale(t *testing.T) {
	t.Parallel()

	fresh := MarketData{CollectedAt: time.Now().Add(-time.Hour)}
	assert.False(t, fresh.IsStale(24*time.Hour))

	old := MarketData{CollectedAt: time.Now().Add(-25 * time.Hour)}
	assert.True(t, old.IsStale(24*time.Hour))
}

func TestQuoteStatusTerminal(t *testing.T) {
	t.Parallel()

	assert.False(t, QuotePending.Terminal())
	for _, s := range []QuoteStatus{QuoteAccepted, QuoteRejected, QuoteExpired} {
		assert.True(t, s.Terminal(), string(s))
	}
}

func TestExperimentStatusTerminal(t *testing.T) {
	t.Parallel()

	assert.False(t, ExperimentDraft.Terminal())
	assert.False(t, ExperimentRunning.Terminal())
	assert.True(t, ExperimentStopped.Terminal())
	assert.True(t, ExperimentAnalyzed.Terminal())
}

func TestTargetMetric(t *testing.T) {
	t.Parallel()

	assert.True(t, MetricConversionRate.IsProportion())
	assert.True(t, MetricAcceptanceRate.IsProportion())
	assert.False(t, MetricRevenuePerQuote.IsProportion())
	assert.False(t, MetricAvgOrderValue.IsProportion())

	assert.True(t, MetricConversionRate.Valid())
	assert.False(t, TargetMetric("clicks").Valid())
}

func TestExperimentAccessors(t *testing.T) {
	t.Parallel()

	exp := PricingExperiment{
		Variants: []PricingVariant{
			{ID: "a", Name: "control", IsControl: true},
			{ID: "b", Name: "treatment"},
		},
	}

	require.NotNil(t, exp.Control())
	assert.Equal(t, "a", exp.Control().ID)
	require.NotNil(t, exp.Variant("b"))
	assert.Nil(t, exp.Variant("missing"))

	none := PricingExperiment{Variants: []PricingVariant{{ID: "x"}}}
	assert.Nil(t, none.Control())
}

func TestActiveWindow(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(7 * 24 * time.Hour)
	exp := PricingExperiment{StartedAt: &start, EndedAt: &end}

	assert.False(t, exp.ActiveWindow(start.Add(-time.Minute)))
	assert.True(t, exp.ActiveWindow(start))
	assert.True(t, exp.ActiveWindow(start.Add(3*24*time.Hour)))
	assert.False(t, exp.ActiveWindow(end.Add(time.Minute)))

	openEnded := PricingExperiment{StartedAt: &start}
	assert.True(t, openEnded.ActiveWindow(start.Add(365*24*time.Hour)))

	unstarted := PricingExperiment{}
	assert.False(t, unstarted.ActiveWindow(start))
}

func TestVariantStatsRates(t *testing.T) {
	t.Parallel()

	s := VariantStats{Impressions: 1000, Conversions: 140, ValueSum: 700}
	assert.InDelta(t, 0.14, s.ConversionRate(), 0.0001)
	assert.InDelta(t, 5.0, s.MeanValue(), 0.0001)

	empty := VariantStats{}
	assert.Zero(t, empty.ConversionRate())
	assert.Zero(t, empty.MeanValue())
}
