package model

import "time"

// VariantOverrides are the parameter overrides a pricing variant applies
// to the calculation pipeline for enrolled clients.
type VariantOverrides struct {
	BasePriceFactor   float64 `json:"base_price_factor,omitempty"`  // scales the resolved base price; 0 = unset
	SurgeCap          float64 `json:"surge_cap,omitempty"`          // upper bound on the surge multiplier; 0 = unset
	DisableLoyalty    bool    `json:"disable_loyalty,omitempty"`    // suppress the additive loyalty discount
	DisableMarketAdj  bool    `json:"disable_market_adj,omitempty"` // price without market adjustments
	FlatDiscountPct   float64 `json:"flat_discount_pct,omitempty"`  // additive discount as fraction of base
}

// IsZero reports whether no override is set.
func (o VariantOverrides) IsZero() bool {
	return o == (VariantOverrides{})
}

// PricingVariant is one treatment arm of a pricing experiment.
type PricingVariant struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	TrafficShare float64          `json:"traffic_share"` // fraction of clients, 0.0-1.0
	IsControl    bool             `json:"is_control"`
	Overrides    VariantOverrides `json:"overrides"`
}

// PricingExperiment is an A/B pricing experiment. Lifecycle:
// draft -> running -> stopped | analyzed; terminal states are final.
type PricingExperiment struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name"`
	Hypothesis         string           `json:"hypothesis"`
	Metric             TargetMetric     `json:"metric"`
	Variants           []PricingVariant `json:"variants"` // ordered; bucketing depends on order
	Status             ExperimentStatus `json:"status"`
	RequiredSampleSize int              `json:"required_sample_size"`
	SignificanceLevel  float64          `json:"significance_level"` // alpha, e.g. 0.05
	StartedAt          *time.Time       `json:"started_at,omitempty"`
	EndedAt            *time.Time       `json:"ended_at,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
}

// Control returns the control variant, or nil if none is marked.
func (e *PricingExperiment) Control() *PricingVariant {
	for i := range e.Variants {
		if e.Variants[i].IsControl {
			return &e.Variants[i]
		}
	}
	return nil
}

// Variant returns the variant with the given ID, or nil.
func (e *PricingExperiment) Variant(id string) *PricingVariant {
	for i := range e.Variants {
		if e.Variants[i].ID == id {
			return &e.Variants[i]
		}
	}
	return nil
}

// ActiveWindow reports whether t falls inside the experiment's running
// window. An experiment with no end time is open-ended.
func (e *PricingExperiment) ActiveWindow(t time.Time) bool {
	if e.StartedAt == nil || t.Before(*e.StartedAt) {
		return false
	}
	if e.EndedAt != nil && t.After(*e.EndedAt) {
		return false
	}
	return true
}

// ExperimentAssignment maps (experiment, client) to a variant. The pair
// is unique: a client resolves to the same variant for the lifetime of
// the experiment.
type ExperimentAssignment struct {
	ExperimentID string    `json:"experiment_id"`
	ClientID     string    `json:"client_id"`
	VariantID    string    `json:"variant_id"`
	AssignedAt   time.Time `json:"assigned_at"`
}

// ExperimentEvent is one append-only observation attributed to a variant.
type ExperimentEvent struct {
	ID           string    `json:"id"`
	ExperimentID string    `json:"experiment_id"`
	VariantID    string    `json:"variant_id"`
	ClientID     string    `json:"client_id,omitempty"`
	Type         EventType `json:"type"`
	Value        float64   `json:"value"` // metric value; 0 for bare impressions
	OccurredAt   time.Time `json:"occurred_at"`
}

// VariantStats aggregates recorded events for one variant.
type VariantStats struct {
	VariantID   string  `json:"variant_id"`
	Impressions int     `json:"impressions"`
	Conversions int     `json:"conversions"`
	ValueSum    float64 `json:"value_sum"`
	ValueSumSq  float64 `json:"value_sum_sq"` // for variance of mean metrics
}

// ConversionRate returns conversions over impressions, 0 when empty.
func (s VariantStats) ConversionRate() float64 {
	if s.Impressions == 0 {
		return 0
	}
	return float64(s.Conversions) / float64(s.Impressions)
}

// MeanValue returns the average recorded value per conversion, 0 when empty.
func (s VariantStats) MeanValue() float64 {
	if s.Conversions == 0 {
		return 0
	}
	return s.ValueSum / float64(s.Conversions)
}
