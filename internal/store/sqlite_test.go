package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pricing-engine/internal/model"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLiteModelVersioning(t *testing.T) {
	st := newSQLiteStore(t)
	ctx := context.Background()

	v1, err := st.CreatePricingModel(ctx, model.PricingModel{
		ID: "pm-1", ContentType: "blog_post", BasePrice: model.NewMoney(0.08, "USD"), PerWord: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, v1.Version)

	v2, err := st.CreatePricingModel(ctx, model.PricingModel{
		ID: "pm-2", ContentType: "blog_post", BasePrice: model.NewMoney(0.10, "USD"), PerWord: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)

	// The newest version is the only active one.
	active, err := st.GetActivePricingModel(ctx, "blog_post")
	require.NoError(t, err)
	assert.Equal(t, "pm-2", active.ID)
	assert.Equal(t, "0.10 USD", active.BasePrice.String())
	assert.True(t, active.PerWord)

	_, err = st.GetActivePricingModel(ctx, "nonexistent")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteMarketDataLatestWins(t *testing.T) {
	st := newSQLiteStore(t)
	ctx := context.Background()

	older := model.MarketData{
		ContentType: "blog_post", Segment: "default",
		AveragePrice: model.NewMoney(480, "USD"), MedianPrice: model.NewMoney(460, "USD"),
		MinPrice: model.NewMoney(300, "USD"), MaxPrice: model.NewMoney(700, "USD"),
		SampleSize: 20, Demand: model.DemandLow, Trend: model.TrendDown,
		Confidence: 0.5, CollectedAt: time.Now().UTC().Add(-2 * time.Hour),
	}
	newer := older
	newer.MedianPrice = model.NewMoney(500, "USD")
	newer.Demand = model.DemandHigh
	newer.CollectedAt = time.Now().UTC()

	require.NoError(t, st.UpsertMarketData(ctx, older))
	require.NoError(t, st.UpsertMarketData(ctx, newer))

	got, err := st.GetLatestMarketData(ctx, "blog_post", "default")
	require.NoError(t, err)
	assert.Equal(t, model.DemandHigh, got.Demand)
	assert.Equal(t, "500.00 USD", got.MedianPrice.String())

	// Re-importing the same observation overwrites in place.
	newer.SampleSize = 45
	require.NoError(t, st.UpsertMarketData(ctx, newer))
	got, err = st.GetLatestMarketData(ctx, "blog_post", "default")
	require.NoError(t, err)
	assert.Equal(t, 45, got.SampleSize)

	_, err = st.GetLatestMarketData(ctx, "blog_post", "enterprise")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteClientProfileLastWriteWins(t *testing.T) {
	st := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertClientProfile(ctx, model.ClientPricingProfile{
		ClientID: "acme", Tier: model.TierBasic, Risk: model.RiskLow, Terms: model.TermsNet30,
		CreditLimit: model.NewMoney(5000, "USD"),
	}))
	require.NoError(t, st.UpsertClientProfile(ctx, model.ClientPricingProfile{
		ClientID: "acme", Tier: model.TierEnterprise, Risk: model.RiskLow, Terms: model.TermsNet60,
		LoyaltyDiscountPct: 0.10, CreditLimit: model.NewMoney(20000, "USD"),
	}))

	got, err := st.GetClientProfile(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, model.TierEnterprise, got.Tier)
	assert.Equal(t, model.TermsNet60, got.Terms)
	assert.Equal(t, 0.10, got.LoyaltyDiscountPct)
	assert.Equal(t, "20000.00 USD", got.CreditLimit.String())
}

func seedQuote(t *testing.T, st *SQLiteStore, id, clientID string, status model.QuoteStatus, validUntil time.Time) {
	t.Helper()
	now := time.Now().UTC()
	_, err := st.CreateQuote(context.Background(), model.PriceQuote{
		ID: id, ClientID: clientID, ContentType: "blog_post",
		Price: model.NewMoney(250.80, "USD"), Status: status,
		ValidUntil: validUntil, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
}

func TestSQLiteQuoteLifecycle(t *testing.T) {
	st := newSQLiteStore(t)
	ctx := context.Background()
	seedQuote(t, st, "q-1", "client-1", model.QuotePending, time.Now().Add(72*time.Hour))

	got, err := st.GetQuote(ctx, "q-1")
	require.NoError(t, err)
	assert.Equal(t, "250.80 USD", got.Price.String())
	assert.Equal(t, model.QuotePending, got.Status)

	require.NoError(t, st.TransitionQuote(ctx, "q-1", model.QuotePending, model.QuoteAccepted))

	err = st.TransitionQuote(ctx, "q-1", model.QuotePending, model.QuoteRejected)
	require.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "q-1 is accepted, expected pending")

	err = st.TransitionQuote(ctx, "no-such-quote", model.QuotePending, model.QuoteAccepted)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = st.GetQuote(ctx, "no-such-quote")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteListQuotes(t *testing.T) {
	st := newSQLiteStore(t)
	ctx := context.Background()
	future := time.Now().Add(72 * time.Hour)

	seedQuote(t, st, "q-1", "client-1", model.QuotePending, future)
	seedQuote(t, st, "q-2", "client-1", model.QuoteAccepted, future)
	seedQuote(t, st, "q-3", "client-2", model.QuotePending, future)

	byClient, err := st.ListQuotes(ctx, QuoteFilter{ClientID: "client-1"})
	require.NoError(t, err)
	assert.Len(t, byClient, 2)

	byStatus, err := st.ListQuotes(ctx, QuoteFilter{Status: model.QuotePending})
	require.NoError(t, err)
	assert.Len(t, byStatus, 2)

	limited, err := st.ListQuotes(ctx, QuoteFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := st.ListQuotes(ctx, QuoteFilter{ClientID: "client-9"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteExpireStaleQuotes(t *testing.T) {
	st := newSQLiteStore(t)
	ctx := context.Background()

	seedQuote(t, st, "q-stale", "client-1", model.QuotePending, time.Now().UTC().Add(-time.Hour))
	seedQuote(t, st, "q-live", "client-1", model.QuotePending, time.Now().UTC().Add(time.Hour))
	seedQuote(t, st, "q-done", "client-1", model.QuoteAccepted, time.Now().UTC().Add(-time.Hour))

	n, err := st.ExpireStaleQuotes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stale, err := st.GetQuote(ctx, "q-stale")
	require.NoError(t, err)
	assert.Equal(t, model.QuoteExpired, stale.Status)

	live, err := st.GetQuote(ctx, "q-live")
	require.NoError(t, err)
	assert.Equal(t, model.QuotePending, live.Status)

	// Accepted quotes are terminal and never expire.
	done, err := st.GetQuote(ctx, "q-done")
	require.NoError(t, err)
	assert.Equal(t, model.QuoteAccepted, done.Status)
}

func seedExperiment(t *testing.T, st *SQLiteStore) *model.PricingExperiment {
	t.Helper()
	exp, err := st.CreateExperiment(context.Background(), model.PricingExperiment{
		ID: "exp-1", Name: "discount test", Metric: model.MetricConversionRate,
		Variants: []model.PricingVariant{
			{ID: "v-1", Name: "control", TrafficShare: 0.5, IsControl: true},
			{ID: "v-2", Name: "discount", TrafficShare: 0.5, Overrides: model.VariantOverrides{FlatDiscountPct: 0.1}},
		},
		Status: model.ExperimentDraft, RequiredSampleSize: 1000, SignificanceLevel: 0.05,
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	return exp
}

func TestSQLiteExperimentLifecycle(t *testing.T) {
	st := newSQLiteStore(t)
	ctx := context.Background()
	seedExperiment(t, st)

	got, err := st.GetExperiment(ctx, "exp-1")
	require.NoError(t, err)
	require.Len(t, got.Variants, 2)
	assert.Equal(t, 0.1, got.Variants[1].Overrides.FlatDiscountPct)
	assert.Nil(t, got.StartedAt)
	assert.Nil(t, got.EndedAt)

	require.NoError(t, st.TransitionExperiment(ctx, "exp-1", model.ExperimentDraft, model.ExperimentRunning))
	got, err = st.GetExperiment(ctx, "exp-1")
	require.NoError(t, err)
	assert.Equal(t, model.ExperimentRunning, got.Status)
	require.NotNil(t, got.StartedAt)
	assert.Nil(t, got.EndedAt)

	err = st.TransitionExperiment(ctx, "exp-1", model.ExperimentDraft, model.ExperimentRunning)
	require.ErrorIs(t, err, ErrConflict)

	require.NoError(t, st.TransitionExperiment(ctx, "exp-1", model.ExperimentRunning, model.ExperimentStopped))
	got, err = st.GetExperiment(ctx, "exp-1")
	require.NoError(t, err)
	require.NotNil(t, got.EndedAt)

	running, err := st.ListExperiments(ctx, ExperimentFilter{Status: model.ExperimentRunning})
	require.NoError(t, err)
	assert.Empty(t, running)
}

func TestSQLiteAssignmentFirstWriteWins(t *testing.T) {
	st := newSQLiteStore(t)
	ctx := context.Background()
	seedExperiment(t, st)
	now := time.Now().UTC()

	first, err := st.GetOrCreateAssignment(ctx, model.ExperimentAssignment{
		ExperimentID: "exp-1", ClientID: "client-1", VariantID: "v-1", AssignedAt: now,
	})
	require.NoError(t, err)
	assert.Equal(t, "v-1", first.VariantID)

	// A second insert for the same pair is ignored.
	again, err := st.GetOrCreateAssignment(ctx, model.ExperimentAssignment{
		ExperimentID: "exp-1", ClientID: "client-1", VariantID: "v-2", AssignedAt: now,
	})
	require.NoError(t, err)
	assert.Equal(t, "v-1", again.VariantID)

	_, err = st.GetAssignment(ctx, "exp-1", "client-9")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteVariantStats(t *testing.T) {
	st := newSQLiteStore(t)
	ctx := context.Background()
	seedExperiment(t, st)
	now := time.Now().UTC()

	events := []struct {
		id      string
		variant string
		typ     model.EventType
		value   float64
	}{
		{"e-1", "v-1", model.EventImpression, 0},
		{"e-2", "v-1", model.EventImpression, 0},
		{"e-3", "v-1", model.EventConversion, 100},
		{"e-4", "v-2", model.EventImpression, 0},
		{"e-5", "v-2", model.EventRevenue, 250},
	}
	for _, ev := range events {
		require.NoError(t, st.AppendEvent(ctx, model.ExperimentEvent{
			ID: ev.id, ExperimentID: "exp-1", VariantID: ev.variant,
			Type: ev.typ, Value: ev.value, OccurredAt: now,
		}))
	}

	stats, err := st.VariantStats(ctx, "exp-1")
	require.NoError(t, err)

	require.Len(t, stats, 2)
	assert.Equal(t, 2, stats["v-1"].Impressions)
	assert.Equal(t, 1, stats["v-1"].Conversions)
	assert.InDelta(t, 100, stats["v-1"].ValueSum, 0.0001)
	assert.InDelta(t, 10000, stats["v-1"].ValueSumSq, 0.0001)
	assert.Equal(t, 1, stats["v-2"].Impressions)
	assert.InDelta(t, 250, stats["v-2"].ValueSum, 0.0001)
}

func TestSQLiteElasticityWindow(t *testing.T) {
	st := newSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := st.db.ExecContext(ctx,
		`INSERT INTO elasticity_estimates (content_type, score, confidence, window_start, window_end)
		 VALUES (?, ?, ?, ?, ?)`,
		"blog_post", -1.5, 0.8, now.Add(-90*24*time.Hour), now.Add(-time.Hour),
	)
	require.NoError(t, err)

	got, err := st.GetPriceElasticity(ctx, "blog_post", 90*24*time.Hour)
	require.NoError(t, err)
	assert.InDelta(t, -1.5, got.Score, 0.0001)

	// An estimate whose window ended before the cutoff is too old to use.
	_, err = st.GetPriceElasticity(ctx, "blog_post", time.Minute)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteCompetitorAnalysis(t *testing.T) {
	st := newSQLiteStore(t)
	ctx := context.Background()

	_, err := st.db.ExecContext(ctx,
		`INSERT INTO competitor_analysis (content_type, avg_price, currency, competitors, collected_at)
		 VALUES (?, ?, ?, ?, ?)`,
		"blog_post", "600", "USD", 8, time.Now().UTC(),
	)
	require.NoError(t, err)

	got, err := st.GetCompetitorAnalysis(ctx, "blog_post")
	require.NoError(t, err)
	assert.Equal(t, "600.00 USD", got.AveragePrice.String())
	assert.Equal(t, 8, got.Competitors)

	_, err = st.GetCompetitorAnalysis(ctx, "whitepaper")
	require.ErrorIs(t, err, ErrNotFound)
}
