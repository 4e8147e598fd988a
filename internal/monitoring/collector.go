package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pricing-engine/internal/model"
	"github.com/sells-group/pricing-engine/internal/store"
)

// MetricsSnapshot holds a point-in-time view of quoting and
// experimentation health.
type MetricsSnapshot struct {
	// Quote metrics (within lookback window).
	QuotesTotal    int     `json:"quotes_total"`
	QuotesPending  int     `json:"quotes_pending"`
	QuotesAccepted int     `json:"quotes_accepted"`
	QuotesRejected int     `json:"quotes_rejected"`
	QuotesExpired  int     `json:"quotes_expired"`
	AcceptanceRate float64 `json:"acceptance_rate"` // accepted over decided
	AvgQuoteValue  float64 `json:"avg_quote_value"`

	// Experiment metrics.
	ExperimentsRunning int `json:"experiments_running"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// MetricsSource abstracts the store reads the collector needs.
type MetricsSource interface {
	ListQuotes(ctx context.Context, filter store.QuoteFilter) ([]model.PriceQuote, error)
	ListExperiments(ctx context.Context, filter store.ExperimentFilter) ([]model.PricingExperiment, error)
}

// Collector gathers metrics from the store.
type Collector struct {
	store MetricsSource
}

// NewCollector creates a new metrics collector.
func NewCollector(st MetricsSource) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of quoting metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)

	quotes, err := c.store.ListQuotes(ctx, store.QuoteFilter{
		CreatedAfter: cutoff,
		Limit:        10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list quotes")
	}

	snap.QuotesTotal = len(quotes)
	var valueSum float64
	for _, q := range quotes {
		switch q.Status {
		case model.QuotePending:
			snap.QuotesPending++
		case model.QuoteAccepted:
			snap.QuotesAccepted++
		case model.QuoteRejected:
			snap.QuotesRejected++
		case model.QuoteExpired:
			snap.QuotesExpired++
		}
		valueSum += q.Price.Float()
	}

	decided := snap.QuotesAccepted + snap.QuotesRejected
	if decided > 0 {
		snap.AcceptanceRate = float64(snap.QuotesAccepted) / float64(decided)
	}
	if snap.QuotesTotal > 0 {
		snap.AvgQuoteValue = valueSum / float64(snap.QuotesTotal)
	}

	running, err := c.store.ListExperiments(ctx, store.ExperimentFilter{
		Status: model.ExperimentRunning,
		Limit:  1000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list experiments")
	}
	snap.ExperimentsRunning = len(running)

	return snap, nil
}
