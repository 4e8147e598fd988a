// Package pricing implements the price calculation pipeline: a fixed,
// deterministic sequence of adjustment stages folded over a base price,
// producing a final price and a full audit trail.
package pricing

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/pricing-engine/internal/catalog"
	"github.com/sells-group/pricing-engine/internal/model"
)

// DefaultConfidence is reported when no market data refines it.
const DefaultConfidence = 0.75

// CalcInput is the point-in-time snapshot a calculation runs over. All
// collaborator data is fetched before Calculate is called; the pipeline
// never re-reads mid-calculation.
type CalcInput struct {
	Model       model.PricingModel
	Spec        *model.ContentSpec            // nil = no complexity adjustments
	Market      *model.MarketData             // nil = absent or stale, no market adjustments
	Profile     *model.ClientPricingProfile   // nil = no client adjustments
	Delivery    time.Duration                 // expected delivery time (a duration, not a deadline)
	SystemLoad  float64                       // current load, 0.0-1.0
	RequestTime time.Time
	Overrides   model.VariantOverrides // experiment treatment; zero value = none
}

// ScalarFactor is one step of the sequential scalar chain applied after
// the categorized adjustments.
type ScalarFactor struct {
	Name   string  `json:"name"`
	Factor float64 `json:"factor"`
}

// Result is the outcome of one calculation, including every adjustment
// produced, whether or not it moved the price. No-ops stay in the lists:
// the audit trail shows what was considered, not just what changed.
type Result struct {
	BasePrice             model.Money             `json:"base_price"`
	ComplexityAdjustments []model.PriceAdjustment `json:"complexity_adjustments"`
	MarketAdjustments     []model.PriceAdjustment `json:"market_adjustments"`
	ClientAdjustments     []model.PriceAdjustment `json:"client_adjustments"`
	SurgeMultiplier       float64                 `json:"surge_multiplier"`
	Scalars               []ScalarFactor          `json:"scalars"` // ordered: surge, demand, capacity, timing
	FinalPrice            model.Money             `json:"final_price"`
	Confidence            float64                 `json:"confidence"`
	Breakdown             map[string]decimal.Decimal `json:"breakdown"`
	VariantID             string                  `json:"variant_id,omitempty"` // set when an experiment modulated the input
}

// Calculate runs the pipeline over a snapshot. Stage order is a design
// contract: complexity, then market, then client adjustments, then the
// scalar chain (surge, demand, capacity, timing). Reordering stages
// changes the final price.
func Calculate(cat *catalog.Catalog, in CalcInput) (*Result, error) {
	if in.SystemLoad < 0 || in.SystemLoad > 1 {
		return nil, eris.Errorf("pricing: system load %.2f outside [0,1]", in.SystemLoad)
	}

	base, err := resolveBase(cat, in)
	if err != nil {
		return nil, err
	}

	res := &Result{
		BasePrice:  base,
		Confidence: DefaultConfidence,
	}

	if in.Spec != nil {
		res.ComplexityAdjustments, err = complexityAdjustments(cat, base, *in.Spec)
		if err != nil {
			return nil, err
		}
	}

	if in.Market != nil && !in.Overrides.DisableMarketAdj {
		res.MarketAdjustments, err = marketAdjustments(cat, base, *in.Market)
		if err != nil {
			return nil, err
		}
		res.Confidence = refineConfidence(in.Market.Confidence)
	}

	if in.Profile != nil {
		res.ClientAdjustments, err = clientAdjustments(cat, base, *in.Profile, in.Overrides)
		if err != nil {
			return nil, err
		}
	}
	if in.Overrides.FlatDiscountPct > 0 {
		res.ClientAdjustments = append(res.ClientAdjustments, model.PriceAdjustment{
			Type:        model.AdjustmentClient,
			Reason:      "experiment_flat_discount",
			Amount:      base.Mul(-in.Overrides.FlatDiscountPct),
			Description: fmt.Sprintf("experiment flat discount %.0f%%", in.Overrides.FlatDiscountPct*100),
		})
	}

	res.SurgeMultiplier = surgeMultiplier(cat.DeliveryStandard(in.Model.ContentType), in.Delivery)
	if sc := in.Overrides.SurgeCap; sc > 0 && res.SurgeMultiplier > sc {
		res.SurgeMultiplier = sc
	}

	res.Scalars = []ScalarFactor{
		{Name: "surge", Factor: res.SurgeMultiplier},
		{Name: "demand", Factor: demandScalar(in.Market)},
		{Name: "capacity", Factor: capacityScalar(in.SystemLoad)},
		{Name: "timing", Factor: timingScalar(cat, in.RequestTime)},
	}

	res.FinalPrice = fold(base, res)
	res.Breakdown = breakdown(res)

	return res, nil
}

// fold combines the base price with every adjustment in pipeline order:
// a left-fold over the ordered adjustment list, then the scalar chain.
// Each adjustment applies its factor (when positive) before its amount.
func fold(base model.Money, res *Result) model.Money {
	price := base
	for _, list := range [][]model.PriceAdjustment{
		res.ComplexityAdjustments,
		res.MarketAdjustments,
		res.ClientAdjustments,
	} {
		for _, adj := range list {
			if adj.Factor > 0 {
				price = price.Mul(adj.Factor)
			}
			price = price.Add(adj.Amount)
		}
	}
	for _, s := range res.Scalars {
		price = price.Mul(s.Factor)
	}
	return price.Round()
}

// resolveBase computes the effective base price. Per-word models scale
// the rate by the spec's word count; with no spec they fall back to the
// catalog's word-count baseline so a quote is still possible.
func resolveBase(cat *catalog.Catalog, in CalcInput) (model.Money, error) {
	base := in.Model.BasePrice
	if in.Model.PerWord {
		words := cat.WordCount.Baseline
		if in.Spec != nil && in.Spec.WordCount > 0 {
			words = in.Spec.WordCount
		}
		base = base.Mul(float64(words))
	}
	if f := in.Overrides.BasePriceFactor; f > 0 {
		base = base.Mul(f)
	}
	if err := base.Validate(); err != nil {
		return model.Money{}, eris.Wrapf(err, "pricing: base price for %s", in.Model.ContentType)
	}
	return base, nil
}

// complexityAdjustments produces the word-count, complexity, research,
// technical, and special-requirement adjustments. Each discrete level is
// recorded as its own adjustment; an unmapped non-empty level is a
// validation error, an empty level is simply unspecified.
func complexityAdjustments(cat *catalog.Catalog, base model.Money, spec model.ContentSpec) ([]model.PriceAdjustment, error) {
	var adjs []model.PriceAdjustment
	zero := model.Money{Amount: decimal.Zero, Currency: base.Currency}

	if spec.WordCount > cat.WordCount.Baseline {
		extra := spec.WordCount - cat.WordCount.Baseline
		factor := 1 + cat.WordCount.ScalingRate*float64(extra)/float64(cat.WordCount.ScalingStep)
		adjs = append(adjs, model.PriceAdjustment{
			Type:        model.AdjustmentComplexity,
			Reason:      "word_count",
			Amount:      zero,
			Factor:      factor,
			Description: fmt.Sprintf("%d words above %d-word baseline", extra, cat.WordCount.Baseline),
		})
	}

	if spec.Complexity != "" {
		f, err := cat.ComplexityFactor(spec.Complexity)
		if err != nil {
			return nil, eris.Wrap(err, "pricing: complexity stage")
		}
		adjs = append(adjs, model.PriceAdjustment{
			Type:        model.AdjustmentComplexity,
			Reason:      "complexity_level",
			Amount:      zero,
			Factor:      f,
			Description: fmt.Sprintf("complexity level %s", spec.Complexity),
		})
	}

	if spec.Research != "" {
		f, err := cat.ResearchFactor(spec.Research)
		if err != nil {
			return nil, eris.Wrap(err, "pricing: complexity stage")
		}
		adjs = append(adjs, model.PriceAdjustment{
			Type:        model.AdjustmentComplexity,
			Reason:      "research_depth",
			Amount:      zero,
			Factor:      f,
			Description: fmt.Sprintf("research depth %s", spec.Research),
		})
	}

	if spec.Technical != "" {
		f, err := cat.TechnicalFactor(spec.Technical)
		if err != nil {
			return nil, eris.Wrap(err, "pricing: complexity stage")
		}
		adjs = append(adjs, model.PriceAdjustment{
			Type:        model.AdjustmentComplexity,
			Reason:      "technical_level",
			Amount:      zero,
			Factor:      f,
			Description: fmt.Sprintf("technical level %s", spec.Technical),
		})
	}

	if extra := len(spec.SpecialRequirements) - cat.FreeRequirements; extra > 0 {
		adjs = append(adjs, model.PriceAdjustment{
			Type:        model.AdjustmentComplexity,
			Reason:      "special_requirements",
			Amount:      base.Mul(cat.RequirementSurchargePct * float64(extra)),
			Description: fmt.Sprintf("%d special requirements beyond %d", extra, cat.FreeRequirements),
		})
	}

	return adjs, nil
}

// marketAdjustments prices demand level, market position, and trend
// direction from a fresh market observation.
func marketAdjustments(cat *catalog.Catalog, base model.Money, md model.MarketData) ([]model.PriceAdjustment, error) {
	zero := model.Money{Amount: decimal.Zero, Currency: base.Currency}

	demand, err := cat.DemandFactor(md.Demand)
	if err != nil {
		return nil, eris.Wrap(err, "pricing: market stage")
	}
	pos := Position(base, md.MedianPrice)
	posFactor, err := cat.PositionFactor(pos)
	if err != nil {
		return nil, eris.Wrap(err, "pricing: market stage")
	}
	trend, err := cat.TrendFactor(md.Trend)
	if err != nil {
		return nil, eris.Wrap(err, "pricing: market stage")
	}

	return []model.PriceAdjustment{
		{
			Type: model.AdjustmentMarket, Reason: "demand_level", Amount: zero, Factor: demand,
			Description: fmt.Sprintf("segment demand %s", md.Demand),
		},
		{
			Type: model.AdjustmentMarket, Reason: "market_position", Amount: zero, Factor: posFactor,
			Description: fmt.Sprintf("base price is %s vs median %s", pos, md.MedianPrice),
		},
		{
			Type: model.AdjustmentMarket, Reason: "trend_direction", Amount: zero, Factor: trend,
			Description: fmt.Sprintf("price trend %s", md.Trend),
		},
	}, nil
}

// clientAdjustments prices tier, risk, and payment terms as separate
// multiplicative records plus the loyalty discount as an additive record
// computed from the base price, kept distinct from the tier multiplier.
func clientAdjustments(cat *catalog.Catalog, base model.Money, p model.ClientPricingProfile, ov model.VariantOverrides) ([]model.PriceAdjustment, error) {
	zero := model.Money{Amount: decimal.Zero, Currency: base.Currency}

	tier, err := cat.TierFactor(p.Tier)
	if err != nil {
		return nil, eris.Wrap(err, "pricing: client stage")
	}
	risk, err := cat.RiskFactor(p.Risk)
	if err != nil {
		return nil, eris.Wrap(err, "pricing: client stage")
	}
	terms, err := cat.TermsFactor(p.Terms)
	if err != nil {
		return nil, eris.Wrap(err, "pricing: client stage")
	}

	adjs := []model.PriceAdjustment{
		{
			Type: model.AdjustmentClient, Reason: "client_tier", Amount: zero, Factor: tier,
			Description: fmt.Sprintf("tier %s", p.Tier),
		},
		{
			Type: model.AdjustmentClient, Reason: "risk_level", Amount: zero, Factor: risk,
			Description: fmt.Sprintf("risk %s", p.Risk),
		},
		{
			Type: model.AdjustmentClient, Reason: "payment_terms", Amount: zero, Factor: terms,
			Description: fmt.Sprintf("terms %s", p.Terms),
		},
	}

	if p.LoyaltyDiscountPct > 0 && !ov.DisableLoyalty {
		adjs = append(adjs, model.PriceAdjustment{
			Type:        model.AdjustmentClient,
			Reason:      "loyalty_discount",
			Amount:      base.Mul(-p.LoyaltyDiscountPct),
			Description: fmt.Sprintf("loyalty discount %.0f%% of base", p.LoyaltyDiscountPct*100),
		})
	}

	return adjs, nil
}

// Position buckets a base price against the market median.
func Position(base, median model.Money) model.MarketPosition {
	if median.IsZero() {
		return model.PositionMarketRate
	}
	ratio, _ := base.Amount.Div(median.Amount).Float64()
	switch {
	case ratio < 0.7:
		return model.PositionLowest
	case ratio < 0.9:
		return model.PositionBelowMarket
	case ratio <= 1.1:
		return model.PositionMarketRate
	case ratio <= 1.3:
		return model.PositionAboveMarket
	default:
		return model.PositionHighest
	}
}

// surgeMultiplier maps urgency (requested vs standard delivery time) to
// a surge factor. Delivery at or beyond the standard time carries none.
func surgeMultiplier(standard, requested time.Duration) float64 {
	if standard <= 0 || requested <= 0 || requested >= standard {
		return 1.0
	}
	ratio := float64(requested) / float64(standard)
	switch {
	case ratio > 0.75:
		return 1.0
	case ratio > 0.5:
		return 1.2
	case ratio > 0.25:
		return 1.5
	default:
		return 2.0
	}
}

// demandScalar is the current-demand step of the scalar chain: fresh
// market demand at the extremes nudges the price beyond the catalog's
// segment-demand adjustment. No data means no nudge.
func demandScalar(md *model.MarketData) float64 {
	if md == nil {
		return 1.0
	}
	switch md.Demand {
	case model.DemandVeryHigh:
		return 1.1
	case model.DemandHigh:
		return 1.05
	case model.DemandVeryLow:
		return 0.95
	default:
		return 1.0
	}
}

// capacityScalar discounts under light load and surcharges near saturation.
func capacityScalar(load float64) float64 {
	switch {
	case load < 0.5:
		return 0.95
	case load < 0.7:
		return 1.0
	case load < 0.85:
		return 1.10
	default:
		return 1.25
	}
}

// timingScalar stacks weekend, off-hours, and holiday premiums
// multiplicatively when simultaneously true.
func timingScalar(cat *catalog.Catalog, t time.Time) float64 {
	factor := 1.0
	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		factor *= 1.15
	}
	if h := t.Hour(); h < 9 || h >= 18 {
		factor *= 1.10
	}
	if cat.IsHoliday(t) {
		factor *= 1.20
	}
	return factor
}

// refineConfidence blends the default with market-data confidence.
func refineConfidence(market float64) float64 {
	c := DefaultConfidence + 0.2*market
	if c > 0.95 {
		c = 0.95
	}
	return c
}

// breakdown summarizes a result for auditing. The four required keys are
// always present; adjustments is final minus base.
func breakdown(res *Result) map[string]decimal.Decimal {
	b := map[string]decimal.Decimal{
		"base_price":   res.BasePrice.Amount,
		"final_price":  res.FinalPrice.Amount,
		"surge_factor": decimal.NewFromFloat(res.SurgeMultiplier),
		"adjustments":  res.FinalPrice.Amount.Sub(res.BasePrice.Amount),
	}
	for _, s := range res.Scalars {
		b["scalar_"+s.Name] = decimal.NewFromFloat(s.Factor)
	}
	return b
}
