package optimize

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pricing-engine/internal/model"
)

type fakeSources struct {
	elasticity *model.ElasticityEstimate
	market     *model.MarketData
	competitor *model.CompetitorAnalysis
	err        error
}

func (f *fakeSources) GetPriceElasticity(context.Context, string, time.Duration) (*model.ElasticityEstimate, error) {
	return f.elasticity, f.err
}

func (f *fakeSources) GetLatestMarketData(context.Context, string, string) (*model.MarketData, error) {
	return f.market, f.err
}

func (f *fakeSources) GetCompetitorAnalysis(context.Context, string) (*model.CompetitorAnalysis, error) {
	return f.competitor, f.err
}

func newTestOptimizer(f *fakeSources) *Optimizer {
	return New(f, f, f, 24*time.Hour)
}

func elasticityOf(score float64) *model.ElasticityEstimate {
	return &model.ElasticityEstimate{
		ContentType: "blog_post",
		Score:       score,
		Confidence:  0.8,
		WindowStart: time.Now().Add(-90 * 24 * time.Hour),
		WindowEnd:   time.Now(),
	}
}

func TestForRevenue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	current := model.NewMoney(500, "USD")

	tests := []struct {
		name       string
		score      float64
		wantChange float64
		wantPrice  string
	}{
		{"elastic demand prices down", -1.5, -0.10, "450.00 USD"},
		{"inelastic demand prices up", -0.3, 0.10, "550.00 USD"},
		{"neutral band holds", -0.7, 0, "500.00 USD"},
		{"threshold is exclusive", -1.0, 0, "500.00 USD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			o := newTestOptimizer(&fakeSources{elasticity: elasticityOf(tt.score)})

			rec, err := o.ForRevenue(ctx, "blog_post", current)
			require.NoError(t, err)

			assert.Equal(t, "revenue", rec.Strategy)
			assert.InDelta(t, tt.wantChange, rec.PriceChangePct, 0.0001)
			assert.Equal(t, tt.wantPrice, rec.OptimalPrice.String())
			assert.InDelta(t, 0.8, rec.Confidence, 0.0001)
			assert.NotEmpty(t, rec.Rationale)
		})
	}
}

func TestForRevenueProjections(t *testing.T) {
	t.Parallel()
	o := newTestOptimizer(&fakeSources{elasticity: elasticityOf(-1.5)})

	rec, err := o.ForRevenue(context.Background(), "blog_post", model.NewMoney(500, "USD"))
	require.NoError(t, err)

	// -10% price at elasticity -1.5 projects +15% volume and
	// 0.90 x 1.15 - 1 = +3.5% revenue.
	assert.InDelta(t, 0.15, rec.ExpectedVolumePct, 0.0001)
	assert.InDelta(t, 0.035, rec.ExpectedRevenuePct, 0.0001)
}

func TestForRevenuePropagatesLookupError(t *testing.T) {
	t.Parallel()
	o := newTestOptimizer(&fakeSources{err: eris.New("no estimate")})

	_, err := o.ForRevenue(context.Background(), "blog_post", model.NewMoney(500, "USD"))
	require.Error(t, err)
}

func TestForConversion(t *testing.T) {
	t.Parallel()
	o := newTestOptimizer(&fakeSources{market: &model.MarketData{
		ContentType: "blog_post",
		Segment:     "default",
		MedianPrice: model.NewMoney(400, "USD"),
		SampleSize:  30,
		Confidence:  0.9,
		CollectedAt: time.Now(),
	}})

	rec, err := o.ForConversion(context.Background(), "blog_post", "default", model.NewMoney(500, "USD"))
	require.NoError(t, err)

	// 95% of the 400 median is 380, a -24% move from 500.
	assert.Equal(t, "380.00 USD", rec.OptimalPrice.String())
	assert.InDelta(t, -0.24, rec.PriceChangePct, 0.0001)
	assert.InDelta(t, 0.192, rec.ExpectedVolumePct, 0.0001)
	assert.InDelta(t, 0.9, rec.Confidence, 0.0001)
}

func TestForConversionRejectsStaleMarket(t *testing.T) {
	t.Parallel()
	o := newTestOptimizer(&fakeSources{market: &model.MarketData{
		ContentType: "blog_post",
		MedianPrice: model.NewMoney(400, "USD"),
		CollectedAt: time.Now().Add(-48 * time.Hour),
	}})

	_, err := o.ForConversion(context.Background(), "blog_post", "default", model.NewMoney(500, "USD"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stale")
}

func TestForMarketShare(t *testing.T) {
	t.Parallel()
	o := newTestOptimizer(&fakeSources{competitor: &model.CompetitorAnalysis{
		ContentType:  "blog_post",
		AveragePrice: model.NewMoney(600, "USD"),
		Competitors:  8,
		CollectedAt:  time.Now(),
	}})

	rec, err := o.ForMarketShare(context.Background(), "blog_post", model.NewMoney(500, "USD"))
	require.NoError(t, err)

	// 85% of the 600 competitor average is 510, a +2% move.
	assert.Equal(t, "510.00 USD", rec.OptimalPrice.String())
	assert.InDelta(t, 0.02, rec.PriceChangePct, 0.0001)
	assert.InDelta(t, -0.03, rec.ExpectedVolumePct, 0.0001)
	assert.InDelta(t, marketShareConfidence, rec.Confidence, 0.0001)
}

func TestChangeRatioZeroCurrent(t *testing.T) {
	t.Parallel()
	got := changeRatio(model.Money{Currency: "USD"}, model.NewMoney(100, "USD"))
	assert.Zero(t, got)
}
