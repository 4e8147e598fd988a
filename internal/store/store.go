package store

import (
	"context"
	"time"

	"github.com/sells-group/pricing-engine/internal/model"
)

// QuoteFilter specifies criteria for listing quotes.
type QuoteFilter struct {
	ClientID     string            `json:"client_id,omitempty"`
	ContentType  string            `json:"content_type,omitempty"`
	Status       model.QuoteStatus `json:"status,omitempty"`
	CreatedAfter time.Time         `json:"created_after,omitempty"`
	Limit        int               `json:"limit,omitempty"`
	Offset       int               `json:"offset,omitempty"`
}

// ExperimentFilter specifies criteria for listing experiments.
type ExperimentFilter struct {
	Status model.ExperimentStatus `json:"status,omitempty"`
	Limit  int                    `json:"limit,omitempty"`
}

// Store defines the persistence interface for the pricing engine.
type Store interface {
	// Pricing models. Creating a model for a content type deactivates
	// prior versions; versions themselves are never edited.
	CreatePricingModel(ctx context.Context, m model.PricingModel) (*model.PricingModel, error)
	GetActivePricingModel(ctx context.Context, contentType string) (*model.PricingModel, error)

	// Market data (written by the market intelligence collaborator).
	UpsertMarketData(ctx context.Context, md model.MarketData) error
	GetLatestMarketData(ctx context.Context, contentType, segment string) (*model.MarketData, error)

	// Client profiles. Last-write-wins.
	UpsertClientProfile(ctx context.Context, p model.ClientPricingProfile) error
	GetClientProfile(ctx context.Context, clientID string) (*model.ClientPricingProfile, error)

	// Quotes. TransitionQuote is conditional on the current status so a
	// terminal quote can never move again.
	CreateQuote(ctx context.Context, q model.PriceQuote) (*model.PriceQuote, error)
	GetQuote(ctx context.Context, id string) (*model.PriceQuote, error)
	ListQuotes(ctx context.Context, filter QuoteFilter) ([]model.PriceQuote, error)
	TransitionQuote(ctx context.Context, id string, from, to model.QuoteStatus) error
	ExpireStaleQuotes(ctx context.Context) (int, error)

	// Experiments. TransitionExperiment is conditional on the current
	// status to guard against double-start/double-stop.
	CreateExperiment(ctx context.Context, e model.PricingExperiment) (*model.PricingExperiment, error)
	GetExperiment(ctx context.Context, id string) (*model.PricingExperiment, error)
	ListExperiments(ctx context.Context, filter ExperimentFilter) ([]model.PricingExperiment, error)
	TransitionExperiment(ctx context.Context, id string, from, to model.ExperimentStatus) error

	// Assignments. GetOrCreateAssignment is an atomic get-or-create:
	// concurrent first-time assignment of the same client resolves to a
	// single row.
	GetOrCreateAssignment(ctx context.Context, a model.ExperimentAssignment) (*model.ExperimentAssignment, error)
	GetAssignment(ctx context.Context, experimentID, clientID string) (*model.ExperimentAssignment, error)

	// Events. Append-only.
	AppendEvent(ctx context.Context, ev model.ExperimentEvent) error
	VariantStats(ctx context.Context, experimentID string) (map[string]model.VariantStats, error)

	// Optimizer reads (data written by collaborators).
	GetPriceElasticity(ctx context.Context, contentType string, window time.Duration) (*model.ElasticityEstimate, error)
	GetCompetitorAnalysis(ctx context.Context, contentType string) (*model.CompetitorAnalysis, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
