package model

// ComplexityLevel grades how demanding a content request is.
type ComplexityLevel string

const (
	ComplexityBasic    ComplexityLevel = "basic"
	ComplexityStandard ComplexityLevel = "standard"
	ComplexityAdvanced ComplexityLevel = "advanced"
	ComplexityExpert   ComplexityLevel = "expert"
)

// ResearchDepth grades how much background research a request needs.
type ResearchDepth string

const (
	ResearchNone     ResearchDepth = "none"
	ResearchLight    ResearchDepth = "light"
	ResearchModerate ResearchDepth = "moderate"
	ResearchDeep     ResearchDepth = "deep"
)

// TechnicalLevel grades the subject-matter expertise required.
type TechnicalLevel string

const (
	TechnicalGeneral      TechnicalLevel = "general"
	TechnicalIntermediate TechnicalLevel = "intermediate"
	TechnicalSpecialist   TechnicalLevel = "specialist"
	TechnicalExpert       TechnicalLevel = "expert"
)

// ClientTier segments clients for tier pricing.
type ClientTier string

const (
	TierBasic      ClientTier = "basic"
	TierPremium    ClientTier = "premium"
	TierEnterprise ClientTier = "enterprise"
	TierVIP        ClientTier = "vip"
)

// RiskLevel grades a client's payment/default risk.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// PaymentTerms describes when a client pays.
type PaymentTerms string

const (
	TermsPrepaid PaymentTerms = "prepaid"
	TermsNet15   PaymentTerms = "net15"
	TermsNet30   PaymentTerms = "net30"
	TermsNet60   PaymentTerms = "net60"
)

// DemandLevel grades observed market demand for a content segment.
type DemandLevel string

const (
	DemandVeryLow  DemandLevel = "very_low"
	DemandLow      DemandLevel = "low"
	DemandModerate DemandLevel = "moderate"
	DemandHigh     DemandLevel = "high"
	DemandVeryHigh DemandLevel = "very_high"
)

// TrendDirection describes where segment prices are heading.
type TrendDirection string

const (
	TrendDown     TrendDirection = "down"
	TrendStable   TrendDirection = "stable"
	TrendUp       TrendDirection = "up"
	TrendVolatile TrendDirection = "volatile"
)

// MarketPosition buckets a base price against the market median.
type MarketPosition string

const (
	PositionLowest      MarketPosition = "lowest"
	PositionBelowMarket MarketPosition = "below_market"
	PositionMarketRate  MarketPosition = "market_rate"
	PositionAboveMarket MarketPosition = "above_market"
	PositionHighest     MarketPosition = "highest"
)

// AdjustmentType categorizes a price adjustment for the audit trail.
type AdjustmentType string

const (
	AdjustmentComplexity AdjustmentType = "complexity"
	AdjustmentMarket     AdjustmentType = "market"
	AdjustmentClient     AdjustmentType = "client"
)

// QuoteStatus is the lifecycle state of a persisted price quote.
type QuoteStatus string

const (
	QuotePending  QuoteStatus = "pending"
	QuoteAccepted QuoteStatus = "accepted"
	QuoteRejected QuoteStatus = "rejected"
	QuoteExpired  QuoteStatus = "expired"
)

// Terminal reports whether a quote status admits no further transition.
func (s QuoteStatus) Terminal() bool {
	return s == QuoteAccepted || s == QuoteRejected || s == QuoteExpired
}

// ExperimentStatus is the lifecycle state of a pricing experiment.
type ExperimentStatus string

const (
	ExperimentDraft    ExperimentStatus = "draft"
	ExperimentRunning  ExperimentStatus = "running"
	ExperimentStopped  ExperimentStatus = "stopped"
	ExperimentAnalyzed ExperimentStatus = "analyzed"
)

// Terminal reports whether an experiment status is final.
func (s ExperimentStatus) Terminal() bool {
	return s == ExperimentStopped || s == ExperimentAnalyzed
}

// EventType classifies an experiment event.
type EventType string

const (
	EventImpression EventType = "impression"
	EventConversion EventType = "conversion"
	EventRevenue    EventType = "revenue"
)

// Valid reports whether the event type is one the store recognizes.
func (t EventType) Valid() bool {
	switch t {
	case EventImpression, EventConversion, EventRevenue:
		return true
	}
	return false
}

// TargetMetric names what an experiment is trying to move.
type TargetMetric string

const (
	MetricConversionRate  TargetMetric = "conversion_rate"
	MetricAcceptanceRate  TargetMetric = "acceptance_rate"
	MetricRevenuePerQuote TargetMetric = "revenue_per_quote"
	MetricAvgOrderValue   TargetMetric = "avg_order_value"
)

// IsProportion reports whether the metric is a rate (tested with a
// two-proportion test) rather than a mean (tested with a two-mean test).
func (m TargetMetric) IsProportion() bool {
	return m == MetricConversionRate || m == MetricAcceptanceRate
}

// Valid reports whether the metric is one the analyzer recognizes.
func (m TargetMetric) Valid() bool {
	switch m {
	case MetricConversionRate, MetricAcceptanceRate, MetricRevenuePerQuote, MetricAvgOrderValue:
		return true
	}
	return false
}
