package pricing

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pricing-engine/internal/catalog"
	"github.com/sells-group/pricing-engine/internal/experiment"
	"github.com/sells-group/pricing-engine/internal/model"
	"github.com/sells-group/pricing-engine/internal/resilience"
	"github.com/sells-group/pricing-engine/internal/store"
)

func newTestEngine(t *testing.T, opts Options) (*Engine, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	return NewEngine(st, catalog.Default(), experiment.NewManager(st), opts), st
}

func TestCalculatePriceNoActiveModel(t *testing.T) {
	e, _ := newTestEngine(t, Options{})

	_, err := e.CalculatePrice(context.Background(), PriceRequest{
		ClientID:    "client-1",
		ContentType: "nonexistent",
		Delivery:    72 * time.Hour,
		SystemLoad:  0.5,
	})
	require.ErrorIs(t, err, ErrModelNotFound)
}

func TestCalculatePricePersistsQuote(t *testing.T) {
	e, st := newTestEngine(t, Options{QuoteValidity: 48 * time.Hour})
	ctx := context.Background()

	_, err := st.CreatePricingModel(ctx, model.PricingModel{
		ID:          "pm-engine",
		ContentType: "blog_post",
		BasePrice:   model.NewMoney(500, "USD"),
	})
	require.NoError(t, err)

	resp, err := e.CalculatePrice(ctx, PriceRequest{
		ClientID:    "client-1",
		ContentType: "blog_post",
		Delivery:    72 * time.Hour,
		SystemLoad:  0.6,
		RequestTime: tuesdayAfternoon,
	})
	require.NoError(t, err)

	assert.Equal(t, model.QuotePending, resp.Quote.Status)
	assert.Equal(t, "500.00 USD", resp.Quote.Price.String())
	assert.WithinDuration(t, time.Now().Add(48*time.Hour), resp.Quote.ValidUntil, 5*time.Second)

	stored, err := st.GetQuote(ctx, resp.Quote.ID)
	require.NoError(t, err)
	assert.True(t, stored.Price.Amount.Equal(resp.Quote.Price.Amount))
}

func TestCalculatePriceDegradesWithoutCollaborators(t *testing.T) {
	e, st := newTestEngine(t, Options{})
	ctx := context.Background()

	_, err := st.CreatePricingModel(ctx, model.PricingModel{
		ID:          "pm-degrade",
		ContentType: "article",
		BasePrice:   model.NewMoney(800, "USD"),
	})
	require.NoError(t, err)

	resp, err := e.CalculatePrice(ctx, PriceRequest{
		ClientID:    "unknown-client",
		ContentType: "article",
		Delivery:    96 * time.Hour,
		SystemLoad:  0.6,
		RequestTime: tuesdayAfternoon,
	})
	require.NoError(t, err)

	assert.Empty(t, resp.Result.MarketAdjustments)
	assert.Empty(t, resp.Result.ClientAdjustments)
	assert.Equal(t, "800.00 USD", resp.Result.FinalPrice.String())
}

func TestCalculatePriceIgnoresStaleMarketData(t *testing.T) {
	e, st := newTestEngine(t, Options{StaleAfter: 24 * time.Hour})
	ctx := context.Background()

	_, err := st.CreatePricingModel(ctx, model.PricingModel{
		ID:          "pm-stale",
		ContentType: "article",
		BasePrice:   model.NewMoney(800, "USD"),
	})
	require.NoError(t, err)

	md := *freshMarket(model.DemandVeryHigh, model.TrendUp, 800)
	md.ContentType = "article"
	md.CollectedAt = time.Now().Add(-48 * time.Hour)
	require.NoError(t, st.UpsertMarketData(ctx, md))

	resp, err := e.CalculatePrice(ctx, PriceRequest{
		ClientID:    "client-1",
		ContentType: "article",
		Delivery:    96 * time.Hour,
		SystemLoad:  0.6,
		RequestTime: tuesdayAfternoon,
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Result.MarketAdjustments, "stale observations must not move the price")
}

func TestCalculatePriceUsesFreshMarketAndProfile(t *testing.T) {
	e, st := newTestEngine(t, Options{})
	ctx := context.Background()

	_, err := st.CreatePricingModel(ctx, model.PricingModel{
		ID:          "pm-full",
		ContentType: "article",
		BasePrice:   model.NewMoney(800, "USD"),
	})
	require.NoError(t, err)

	md := *freshMarket(model.DemandModerate, model.TrendStable, 800)
	md.ContentType = "article"
	require.NoError(t, st.UpsertMarketData(ctx, md))

	require.NoError(t, st.UpsertClientProfile(ctx, model.ClientPricingProfile{
		ClientID: "client-1",
		Tier:     model.TierPremium,
		Risk:     model.RiskLow,
		Terms:    model.TermsNet15,
	}))

	resp, err := e.CalculatePrice(ctx, PriceRequest{
		ClientID:    "client-1",
		ContentType: "article",
		Delivery:    96 * time.Hour,
		SystemLoad:  0.6,
		RequestTime: tuesdayAfternoon,
	})
	require.NoError(t, err)

	assert.Len(t, resp.Result.MarketAdjustments, 3)
	assert.Len(t, resp.Result.ClientAdjustments, 3)
	// 800 x 0.95 premium tier, everything else neutral.
	assert.Equal(t, "760.00 USD", resp.Result.FinalPrice.String())
}

func TestCalculatePriceInterceptsRunningExperiment(t *testing.T) {
	e, st := newTestEngine(t, Options{})
	ctx := context.Background()
	mgr := experiment.NewManager(st)

	_, err := st.CreatePricingModel(ctx, model.PricingModel{
		ID:          "pm-exp",
		ContentType: "blog_post",
		BasePrice:   model.NewMoney(1000, "USD"),
	})
	require.NoError(t, err)

	created, err := mgr.Design(ctx, model.PricingExperiment{
		Name:               "20% off",
		Metric:             model.MetricConversionRate,
		RequiredSampleSize: 100,
		SignificanceLevel:  0.05,
		Variants: []model.PricingVariant{
			{Name: "control", TrafficShare: 0.5, IsControl: true},
			{
				Name: "discounted", TrafficShare: 0.5,
				Overrides: model.VariantOverrides{FlatDiscountPct: 0.20},
			},
		},
	})
	require.NoError(t, err)
	require.NoError(t, mgr.Start(ctx, created.ID))
	created, err = st.GetExperiment(ctx, created.ID)
	require.NoError(t, err)

	// Find one client per arm; bucketing is deterministic so scanning
	// client IDs is stable.
	var controlClient, treatClient string
	for i := 0; controlClient == "" || treatClient == ""; i++ {
		id := fmt.Sprintf("client-%d", i)
		v := experiment.ChooseVariant(created, id)
		require.NotNil(t, v)
		if v.IsControl && controlClient == "" {
			controlClient = id
		}
		if !v.IsControl && treatClient == "" {
			treatClient = id
		}
	}

	treatResp, err := e.CalculatePrice(ctx, PriceRequest{
		ClientID:    treatClient,
		ContentType: "blog_post",
		Delivery:    72 * time.Hour,
		SystemLoad:  0.6,
		RequestTime: tuesdayAfternoon,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, treatResp.Result.VariantID)
	assert.Equal(t, "800.00 USD", treatResp.Result.FinalPrice.String())

	controlResp, err := e.CalculatePrice(ctx, PriceRequest{
		ClientID:    controlClient,
		ContentType: "blog_post",
		Delivery:    72 * time.Hour,
		SystemLoad:  0.6,
		RequestTime: tuesdayAfternoon,
	})
	require.NoError(t, err)
	assert.Equal(t, "1000.00 USD", controlResp.Result.FinalPrice.String())

	// Interception records one impression per priced request.
	stats, err := st.VariantStats(ctx, created.ID)
	require.NoError(t, err)
	total := 0
	for _, s := range stats {
		total += s.Impressions
	}
	assert.Equal(t, 2, total)
}

func TestOptionsDefaults(t *testing.T) {
	t.Parallel()
	o := Options{}.withDefaults()
	assert.Equal(t, 24*time.Hour, o.StaleAfter)
	assert.Equal(t, 2*time.Second, o.CollabTimeout)
	assert.Equal(t, 72*time.Hour, o.QuoteValidity)
	assert.Equal(t, "default", o.Segment)
	assert.Equal(t, 5, o.BreakerThreshold)
	assert.Equal(t, 30*time.Second, o.BreakerCooldown)

	set := Options{
		StaleAfter:       time.Hour,
		Segment:          "enterprise",
		BreakerThreshold: 2,
		BreakerCooldown:  10 * time.Second,
	}.withDefaults()
	assert.Equal(t, time.Hour, set.StaleAfter)
	assert.Equal(t, "enterprise", set.Segment)
	assert.Equal(t, 2, set.BreakerThreshold)
	assert.Equal(t, 10*time.Second, set.BreakerCooldown)
}

// flakyModelStore fails every pricing-model lookup with a transient
// error so retry attempts can be counted.
type flakyModelStore struct {
	store.Store
	calls int
}

func (s *flakyModelStore) GetActivePricingModel(ctx context.Context, contentType string) (*model.PricingModel, error) {
	s.calls++
	return nil, context.DeadlineExceeded
}

func TestCalculatePriceUsesConfiguredRetry(t *testing.T) {
	t.Parallel()

	fs := &flakyModelStore{}
	e := NewEngine(fs, catalog.Default(), nil, Options{
		Retry: resilience.RetryConfig{
			MaxAttempts:    2,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     time.Millisecond,
		},
	})

	_, err := e.CalculatePrice(context.Background(), PriceRequest{
		ClientID:    "client-1",
		ContentType: "blog_post",
		Delivery:    72 * time.Hour,
		SystemLoad:  0.5,
	})
	require.Error(t, err)
	assert.Equal(t, 2, fs.calls)
}
