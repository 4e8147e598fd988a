package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/pricing-engine/internal/catalog"
	"github.com/sells-group/pricing-engine/internal/experiment"
	"github.com/sells-group/pricing-engine/internal/model"
	"github.com/sells-group/pricing-engine/internal/resilience"
	"github.com/sells-group/pricing-engine/internal/store"
)

// ErrModelNotFound means no active pricing model exists for the content
// type. It is the one fatal lookup failure: without a base price there
// is nothing to calculate.
var ErrModelNotFound = eris.New("pricing: no active pricing model")

// Options tunes the engine's collaborator handling and quote lifecycle.
type Options struct {
	StaleAfter    time.Duration // market data older than this is treated as absent; default 24h
	CollabTimeout time.Duration // per-lookup bound for market data / profiles; default 2s
	QuoteValidity time.Duration // how long an issued quote stays accepting; default 72h
	Segment       string        // market segment when the request names none; default "default"

	BreakerThreshold int                    // consecutive failures before a collaborator breaker opens; default 5
	BreakerCooldown  time.Duration          // how long an open breaker rejects before probing; default 30s
	Retry            resilience.RetryConfig // model lookup retries; zero fields take the resilience defaults
}

func (o Options) withDefaults() Options {
	if o.StaleAfter <= 0 {
		o.StaleAfter = 24 * time.Hour
	}
	if o.CollabTimeout <= 0 {
		o.CollabTimeout = 2 * time.Second
	}
	if o.QuoteValidity <= 0 {
		o.QuoteValidity = 72 * time.Hour
	}
	if o.Segment == "" {
		o.Segment = "default"
	}
	if o.BreakerThreshold <= 0 {
		o.BreakerThreshold = 5
	}
	if o.BreakerCooldown <= 0 {
		o.BreakerCooldown = 30 * time.Second
	}
	return o
}

// PriceRequest is one incoming price calculation.
type PriceRequest struct {
	ClientID    string             `json:"client_id"`
	ContentType string             `json:"content_type"`
	Segment     string             `json:"segment,omitempty"`
	ProjectRef  string             `json:"project_ref,omitempty"`
	Spec        *model.ContentSpec `json:"spec,omitempty"`
	Delivery    time.Duration      `json:"delivery"`
	SystemLoad  float64            `json:"system_load"`
	RequestTime time.Time          `json:"request_time,omitempty"`
}

// PriceResponse pairs the persisted quote with the full calculation
// audit trail.
type PriceResponse struct {
	Quote  model.PriceQuote `json:"quote"`
	Result Result           `json:"result"`
}

// Engine resolves collaborator data, runs the pure pipeline over the
// snapshot, intercepts running experiments, and persists the quote.
// It holds no per-request state and is safe for concurrent use.
type Engine struct {
	store       store.Store
	cat         *catalog.Catalog
	experiments *experiment.Manager
	opts        Options

	marketBreaker  *resilience.Breaker
	profileBreaker *resilience.Breaker
}

// NewEngine wires an Engine. experiments may be nil to disable
// experiment interception.
func NewEngine(st store.Store, cat *catalog.Catalog, exps *experiment.Manager, opts Options) *Engine {
	opts = opts.withDefaults()
	return &Engine{
		store:          st,
		cat:            cat,
		experiments:    exps,
		opts:           opts,
		marketBreaker:  resilience.NewBreaker("market_data", opts.BreakerThreshold, opts.BreakerCooldown),
		profileBreaker: resilience.NewBreaker("client_profile", opts.BreakerThreshold, opts.BreakerCooldown),
	}
}

// CalculatePrice prices one request. The pricing model lookup is
// mandatory and fatal on failure; market data and client profile are
// fetched concurrently under a bounded timeout and degrade to the
// absent-data path when missing, stale, timed out, or circuit-broken.
func (e *Engine) CalculatePrice(ctx context.Context, req PriceRequest) (*PriceResponse, error) {
	if req.RequestTime.IsZero() {
		req.RequestTime = time.Now().UTC()
	}
	segment := req.Segment
	if segment == "" {
		segment = e.opts.Segment
	}

	pm, err := resilience.Do(ctx, e.opts.Retry, "pricing_model",
		func(ctx context.Context) (*model.PricingModel, error) {
			return e.store.GetActivePricingModel(ctx, req.ContentType)
		})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, eris.Wrapf(ErrModelNotFound, "content type %s", req.ContentType)
		}
		return nil, eris.Wrapf(err, "pricing: resolve model for %s", req.ContentType)
	}

	// Snapshot the remaining collaborator data before calculating;
	// nothing is re-read mid-pipeline.
	var md *model.MarketData
	var profile *model.ClientPricingProfile

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		md = e.fetchMarketData(gctx, req.ContentType, segment)
		return nil
	})
	g.Go(func() error {
		profile = e.fetchProfile(gctx, req.ClientID)
		return nil
	})
	_ = g.Wait()

	in := CalcInput{
		Model:       *pm,
		Spec:        req.Spec,
		Market:      md,
		Profile:     profile,
		Delivery:    req.Delivery,
		SystemLoad:  req.SystemLoad,
		RequestTime: req.RequestTime,
	}

	variantID := e.intercept(ctx, req.ClientID, &in)

	res, err := Calculate(e.cat, in)
	if err != nil {
		return nil, eris.Wrapf(err, "pricing: calculate for client %s content %s", req.ClientID, req.ContentType)
	}
	res.VariantID = variantID

	now := time.Now().UTC()
	quote, err := e.store.CreateQuote(ctx, model.PriceQuote{
		ID:          uuid.New().String(),
		ClientID:    req.ClientID,
		ContentType: req.ContentType,
		ProjectRef:  req.ProjectRef,
		Price:       res.FinalPrice,
		Status:      model.QuotePending,
		ValidUntil:  now.Add(e.opts.QuoteValidity),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "pricing: persist quote for client %s", req.ClientID)
	}

	zap.L().Info("price calculated",
		zap.String("quote_id", quote.ID),
		zap.String("client_id", req.ClientID),
		zap.String("content_type", req.ContentType),
		zap.String("final_price", res.FinalPrice.String()),
		zap.Float64("surge", res.SurgeMultiplier),
		zap.Bool("market_data", md != nil),
		zap.Bool("client_profile", profile != nil),
		zap.String("variant_id", variantID),
	)

	return &PriceResponse{Quote: *quote, Result: *res}, nil
}

// fetchMarketData returns the freshest non-stale observation, or nil on
// any failure: missing, stale, timeout, or open breaker. The degraded
// path is never an error.
func (e *Engine) fetchMarketData(ctx context.Context, contentType, segment string) *model.MarketData {
	ctx, cancel := context.WithTimeout(ctx, e.opts.CollabTimeout)
	defer cancel()

	md, err := resilience.Guard(ctx, e.marketBreaker, func(ctx context.Context) (*model.MarketData, error) {
		m, err := e.store.GetLatestMarketData(ctx, contentType, segment)
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil // absent data is not a collaborator failure
		}
		return m, err
	})
	if err != nil {
		zap.L().Warn("market data unavailable, pricing without market adjustments",
			zap.String("content_type", contentType),
			zap.String("segment", segment),
			zap.Error(err),
		)
		return nil
	}
	if md == nil {
		return nil
	}
	if md.IsStale(e.opts.StaleAfter) {
		zap.L().Debug("market data stale, treating as absent",
			zap.String("content_type", contentType),
			zap.Time("collected_at", md.CollectedAt),
		)
		return nil
	}
	return md
}

// fetchProfile returns the client profile, or nil on any failure.
func (e *Engine) fetchProfile(ctx context.Context, clientID string) *model.ClientPricingProfile {
	if clientID == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.opts.CollabTimeout)
	defer cancel()

	p, err := resilience.Guard(ctx, e.profileBreaker, func(ctx context.Context) (*model.ClientPricingProfile, error) {
		p, err := e.store.GetClientProfile(ctx, clientID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return p, err
	})
	if err != nil {
		zap.L().Warn("client profile unavailable, pricing without client adjustments",
			zap.String("client_id", clientID),
			zap.Error(err),
		)
		return nil
	}
	return p
}

// intercept checks the client into the first running experiment, applies
// the assigned variant's overrides to the calc input, and records an
// impression. Holdout clients and any interception failure leave the
// input untouched: experiments must never break pricing.
func (e *Engine) intercept(ctx context.Context, clientID string, in *CalcInput) string {
	if e.experiments == nil || clientID == "" {
		return ""
	}

	exps, err := e.store.ListExperiments(ctx, store.ExperimentFilter{
		Status: model.ExperimentRunning,
		Limit:  1,
	})
	if err != nil || len(exps) == 0 {
		return ""
	}
	exp := exps[0]

	a, err := e.experiments.Assign(ctx, exp.ID, clientID)
	if err != nil {
		zap.L().Warn("experiment assignment failed, pricing without overrides",
			zap.String("experiment_id", exp.ID),
			zap.String("client_id", clientID),
			zap.Error(err),
		)
		return ""
	}
	if a == nil {
		return "" // holdout
	}

	v := exp.Variant(a.VariantID)
	if v == nil {
		return ""
	}
	in.Overrides = v.Overrides

	if err := e.experiments.RecordEvent(ctx, model.ExperimentEvent{
		ExperimentID: exp.ID,
		VariantID:    v.ID,
		ClientID:     clientID,
		Type:         model.EventImpression,
		OccurredAt:   in.RequestTime,
	}); err != nil {
		zap.L().Warn("impression not recorded", zap.String("experiment_id", exp.ID), zap.Error(err))
	}
	return v.ID
}
