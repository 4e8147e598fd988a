package model

import (
	"time"
)

// PricingModel is the versioned base-pricing configuration for one
// content category. Models are immutable per version: a change creates
// a new version and deactivates the old one, nothing is edited in place.
type PricingModel struct {
	ID          string    `json:"id"`
	ContentType string    `json:"content_type"`
	BasePrice   Money     `json:"base_price"`
	PerWord     bool      `json:"per_word"` // base price is per word, scaled by spec word count
	Version     int       `json:"version"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// MarketData is a point-in-time market observation for a content
// category and segment, collected elsewhere and consumed here.
type MarketData struct {
	ContentType  string         `json:"content_type"`
	Segment      string         `json:"segment"`
	AveragePrice Money          `json:"average_price"`
	MedianPrice  Money          `json:"median_price"`
	MinPrice     Money          `json:"min_price"`
	MaxPrice     Money          `json:"max_price"`
	SampleSize   int            `json:"sample_size"`
	Demand       DemandLevel    `json:"demand"`
	Trend        TrendDirection `json:"trend"`
	Confidence   float64        `json:"confidence"` // 0.0-1.0
	CollectedAt  time.Time      `json:"collected_at"`
}

// IsStale reports whether the observation is older than maxAge and must
// not influence pricing.
func (m *MarketData) IsStale(maxAge time.Duration) bool {
	return time.Since(m.CollectedAt) > maxAge
}

// ClientPricingProfile holds per-client pricing attributes. One profile
// per client; updates are last-write-wins.
type ClientPricingProfile struct {
	ClientID           string       `json:"client_id"`
	Tier               ClientTier   `json:"tier"`
	Risk               RiskLevel    `json:"risk"`
	Terms              PaymentTerms `json:"terms"`
	LoyaltyDiscountPct float64      `json:"loyalty_discount_pct"` // 0.10 = 10%
	CreditLimit        Money        `json:"credit_limit"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// PriceAdjustment is a single named modification to a price. Adjustments
// are pure value objects: produced once, appended to a quote's audit
// trail, never mutated.
type PriceAdjustment struct {
	Type        AdjustmentType `json:"type"`
	Reason      string         `json:"reason"`
	Amount      Money          `json:"amount"` // additive component; zero amount allowed
	Factor      float64        `json:"factor"` // multiplicative component; <= 0 means none
	Description string         `json:"description"`
}

// ContentSpec describes the requested content. It may be absent from a
// price request, in which case no complexity adjustments apply.
type ContentSpec struct {
	WordCount           int             `json:"word_count"`
	Complexity          ComplexityLevel `json:"complexity"`
	Research            ResearchDepth   `json:"research"`
	Technical           TechnicalLevel  `json:"technical"`
	SpecialRequirements []string        `json:"special_requirements,omitempty"`
}

// PriceQuote is the persisted outcome of a price calculation. Once a
// quote reaches a terminal status it is never modified again.
type PriceQuote struct {
	ID          string      `json:"id"`
	ClientID    string      `json:"client_id"`
	ContentType string      `json:"content_type"`
	ProjectRef  string      `json:"project_ref,omitempty"`
	Price       Money       `json:"price"`
	Status      QuoteStatus `json:"status"`
	ValidUntil  time.Time   `json:"valid_until"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// ElasticityEstimate is a collaborator-supplied price-elasticity score
// for a content type over a trailing window.
type ElasticityEstimate struct {
	ContentType string    `json:"content_type"`
	Score       float64   `json:"score"` // signed; |score|>1 elastic, <1 inelastic
	Confidence  float64   `json:"confidence"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
}

// CompetitorAnalysis is a collaborator-supplied competitor price survey.
type CompetitorAnalysis struct {
	ContentType  string    `json:"content_type"`
	AveragePrice Money     `json:"average_price"`
	Competitors  int       `json:"competitors"`
	CollectedAt  time.Time `json:"collected_at"`
}
