// Package optimize proposes revised prices under a stated business
// objective. Strategies are pure functions of the current price and
// collaborator-supplied market snapshots; they are invoked on demand,
// never per-request.
package optimize

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pricing-engine/internal/model"
)

// DefaultElasticityWindow is the trailing window for elasticity lookups.
const DefaultElasticityWindow = 90 * 24 * time.Hour

// Strategy tuning. Anchor targets come from the business rules; the
// assumed elasticities feed the volume projections of the two
// anchor-based strategies.
const (
	elasticHighThreshold   = 1.0  // |e| above: demand is elastic
	elasticLowThreshold    = 0.5  // |e| below: demand is inelastic
	elasticPriceStep       = 0.10 // +/-10% recommendation step
	conversionAnchorRatio  = 0.95 // target vs market median
	marketShareAnchorRatio = 0.85 // target vs competitor average
	conversionElasticity   = -0.8
	marketShareElasticity  = -1.5
	marketShareConfidence  = 0.7 // fixed: volume-aggressive, higher risk
)

// Recommendation is the output of one optimization strategy.
type Recommendation struct {
	Strategy           string      `json:"strategy"`
	ContentType        string      `json:"content_type"`
	CurrentPrice       model.Money `json:"current_price"`
	OptimalPrice       model.Money `json:"optimal_price"`
	PriceChangePct     float64     `json:"price_change_pct"`
	ExpectedVolumePct  float64     `json:"expected_volume_pct"`
	ExpectedRevenuePct float64     `json:"expected_revenue_pct"`
	Confidence         float64     `json:"confidence"`
	Rationale          []string    `json:"rationale"`
}

// ElasticitySource supplies price-elasticity estimates.
type ElasticitySource interface {
	GetPriceElasticity(ctx context.Context, contentType string, window time.Duration) (*model.ElasticityEstimate, error)
}

// MarketSource supplies market observations.
type MarketSource interface {
	GetLatestMarketData(ctx context.Context, contentType, segment string) (*model.MarketData, error)
}

// CompetitorSource supplies competitor price surveys.
type CompetitorSource interface {
	GetCompetitorAnalysis(ctx context.Context, contentType string) (*model.CompetitorAnalysis, error)
}

// Optimizer evaluates pricing strategies. Callers pick the strategy for
// their business objective; there is no default.
type Optimizer struct {
	elasticity  ElasticitySource
	market      MarketSource
	competitors CompetitorSource
	staleAfter  time.Duration

	// ElasticityWindow is the trailing window elasticity estimates are
	// read over.
	ElasticityWindow time.Duration
}

// New creates an Optimizer. staleAfter bounds how old market data may be
// before a strategy refuses to anchor on it.
func New(el ElasticitySource, mk MarketSource, cp CompetitorSource, staleAfter time.Duration) *Optimizer {
	return &Optimizer{
		elasticity:       el,
		market:           mk,
		competitors:      cp,
		staleAfter:       staleAfter,
		ElasticityWindow: DefaultElasticityWindow,
	}
}

// ForRevenue recommends a price move from the elasticity of demand:
// elastic demand prices down, inelastic demand prices up, anything in
// between holds.
func (o *Optimizer) ForRevenue(ctx context.Context, contentType string, current model.Money) (*Recommendation, error) {
	est, err := o.elasticity.GetPriceElasticity(ctx, contentType, o.ElasticityWindow)
	if err != nil {
		return nil, eris.Wrapf(err, "optimize: elasticity for %s", contentType)
	}

	e := est.Score
	var change float64
	var why string
	switch {
	case math.Abs(e) > elasticHighThreshold:
		change = -elasticPriceStep
		why = fmt.Sprintf("demand is elastic (|%.2f| > %.1f): lower price to grow volume", e, elasticHighThreshold)
	case math.Abs(e) < elasticLowThreshold:
		change = elasticPriceStep
		why = fmt.Sprintf("demand is inelastic (|%.2f| < %.1f): raise price with little volume loss", e, elasticLowThreshold)
	default:
		why = fmt.Sprintf("elasticity %.2f is in the neutral band: hold current price", e)
	}

	volume := -e * change
	revenue := (1+change)*(1+volume) - 1

	rec := &Recommendation{
		Strategy:           "revenue",
		ContentType:        contentType,
		CurrentPrice:       current,
		OptimalPrice:       current.Mul(1 + change).Round(),
		PriceChangePct:     change,
		ExpectedVolumePct:  volume,
		ExpectedRevenuePct: revenue,
		Confidence:         est.Confidence,
		Rationale: []string{
			why,
			fmt.Sprintf("elasticity estimated over trailing window %s to %s",
				est.WindowStart.Format("2006-01-02"), est.WindowEnd.Format("2006-01-02")),
		},
	}
	o.log(rec)
	return rec, nil
}

// ForConversion targets 95% of the market median: proximity to the
// market anchor drives conversion, independent of elasticity.
func (o *Optimizer) ForConversion(ctx context.Context, contentType, segment string, current model.Money) (*Recommendation, error) {
	md, err := o.market.GetLatestMarketData(ctx, contentType, segment)
	if err != nil {
		return nil, eris.Wrapf(err, "optimize: market data for %s/%s", contentType, segment)
	}
	if md.IsStale(o.staleAfter) {
		return nil, eris.Errorf("optimize: market data for %s/%s is stale (collected %s)",
			contentType, segment, md.CollectedAt.Format(time.RFC3339))
	}

	target := md.MedianPrice.Mul(conversionAnchorRatio).Round()
	change := changeRatio(current, target)
	volume := conversionElasticity * change
	revenue := (1+change)*(1+volume) - 1

	rec := &Recommendation{
		Strategy:           "conversion",
		ContentType:        contentType,
		CurrentPrice:       current,
		OptimalPrice:       target,
		PriceChangePct:     change,
		ExpectedVolumePct:  volume,
		ExpectedRevenuePct: revenue,
		Confidence:         md.Confidence,
		Rationale: []string{
			fmt.Sprintf("target %.0f%% of market median %s", conversionAnchorRatio*100, md.MedianPrice),
			fmt.Sprintf("market sample size %d, collected %s", md.SampleSize, md.CollectedAt.Format("2006-01-02")),
		},
	}
	o.log(rec)
	return rec, nil
}

// ForMarketShare targets 85% of the competitor average. The strategy is
// volume-aggressive and carries a fixed, reduced confidence.
func (o *Optimizer) ForMarketShare(ctx context.Context, contentType string, current model.Money) (*Recommendation, error) {
	ca, err := o.competitors.GetCompetitorAnalysis(ctx, contentType)
	if err != nil {
		return nil, eris.Wrapf(err, "optimize: competitor analysis for %s", contentType)
	}

	target := ca.AveragePrice.Mul(marketShareAnchorRatio).Round()
	change := changeRatio(current, target)
	volume := marketShareElasticity * change
	revenue := (1+change)*(1+volume) - 1

	rec := &Recommendation{
		Strategy:           "market_share",
		ContentType:        contentType,
		CurrentPrice:       current,
		OptimalPrice:       target,
		PriceChangePct:     change,
		ExpectedVolumePct:  volume,
		ExpectedRevenuePct: revenue,
		Confidence:         marketShareConfidence,
		Rationale: []string{
			fmt.Sprintf("undercut to %.0f%% of competitor average %s across %d competitors",
				marketShareAnchorRatio*100, ca.AveragePrice, ca.Competitors),
			"volume-aggressive positioning: margin is traded for share, confidence reduced",
		},
	}
	o.log(rec)
	return rec, nil
}

// changeRatio is (target - current) / current.
func changeRatio(current, target model.Money) float64 {
	if current.IsZero() {
		return 0
	}
	ratio, _ := target.Amount.Sub(current.Amount).Div(current.Amount).Float64()
	return ratio
}

func (o *Optimizer) log(rec *Recommendation) {
	zap.L().Info("price recommendation",
		zap.String("strategy", rec.Strategy),
		zap.String("content_type", rec.ContentType),
		zap.String("current", rec.CurrentPrice.String()),
		zap.String("optimal", rec.OptimalPrice.String()),
		zap.Float64("price_change_pct", rec.PriceChangePct),
		zap.Float64("confidence", rec.Confidence),
	)
}
