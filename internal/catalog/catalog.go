// Package catalog holds the adjustment catalog: versioned lookup tables
// mapping discrete factor levels to price effects. The tables are
// configuration data injected into the calculation pipeline, not
// constants embedded in it.
package catalog

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/pricing-engine/internal/model"
)

// Catalog is one version of the full adjustment table set.
type Catalog struct {
	Version int `yaml:"version" json:"version"`

	Complexity map[model.ComplexityLevel]float64 `yaml:"complexity" json:"complexity"`
	Research   map[model.ResearchDepth]float64   `yaml:"research" json:"research"`
	Technical  map[model.TechnicalLevel]float64  `yaml:"technical" json:"technical"`
	Tier       map[model.ClientTier]float64      `yaml:"tier" json:"tier"`
	Risk       map[model.RiskLevel]float64       `yaml:"risk" json:"risk"`
	Terms      map[model.PaymentTerms]float64    `yaml:"terms" json:"terms"`
	Demand     map[model.DemandLevel]float64     `yaml:"demand" json:"demand"`
	Trend      map[model.TrendDirection]float64  `yaml:"trend" json:"trend"`
	Position   map[model.MarketPosition]float64  `yaml:"position" json:"position"`

	// Word-count scaling: +ScalingRate per ScalingStep words above Baseline.
	WordCount WordCountRules `yaml:"word_count" json:"word_count"`

	// Special requirements beyond FreeRequirements each add
	// RequirementSurchargePct of the base price.
	FreeRequirements        int     `yaml:"free_requirements" json:"free_requirements"`
	RequirementSurchargePct float64 `yaml:"requirement_surcharge_pct" json:"requirement_surcharge_pct"`

	// StandardDeliveryHours maps content type to its standard delivery
	// time in hours.
	StandardDeliveryHours map[string]int `yaml:"standard_delivery_hours" json:"standard_delivery_hours"`

	// Holidays are recognized dates (YYYY-MM-DD) carrying a timing premium.
	Holidays []string `yaml:"holidays" json:"holidays"`
}

// WordCountRules configures linear word-count scaling.
type WordCountRules struct {
	Baseline    int     `yaml:"baseline" json:"baseline"`
	ScalingStep int     `yaml:"scaling_step" json:"scaling_step"`
	ScalingRate float64 `yaml:"scaling_rate" json:"scaling_rate"`
}

// Default returns the built-in catalog version.
func Default() *Catalog {
	return &Catalog{
		Version: 1,
		Complexity: map[model.ComplexityLevel]float64{
			model.ComplexityBasic:    1.0,
			model.ComplexityStandard: 1.2,
			model.ComplexityAdvanced: 1.5,
			model.ComplexityExpert:   2.0,
		},
		Research: map[model.ResearchDepth]float64{
			model.ResearchNone:     1.0,
			model.ResearchLight:    1.1,
			model.ResearchModerate: 1.25,
			model.ResearchDeep:     1.5,
		},
		Technical: map[model.TechnicalLevel]float64{
			model.TechnicalGeneral:      1.0,
			model.TechnicalIntermediate: 1.15,
			model.TechnicalSpecialist:   1.3,
			model.TechnicalExpert:       1.5,
		},
		Tier: map[model.ClientTier]float64{
			model.TierBasic:      1.0,
			model.TierPremium:    0.95,
			model.TierEnterprise: 0.9,
			model.TierVIP:        0.85,
		},
		Risk: map[model.RiskLevel]float64{
			model.RiskLow:    1.0,
			model.RiskMedium: 1.1,
			model.RiskHigh:   1.25,
		},
		Terms: map[model.PaymentTerms]float64{
			model.TermsPrepaid: 0.97,
			model.TermsNet15:   1.0,
			model.TermsNet30:   1.02,
			model.TermsNet60:   1.05,
		},
		Demand: map[model.DemandLevel]float64{
			model.DemandVeryLow:  0.85,
			model.DemandLow:      0.95,
			model.DemandModerate: 1.0,
			model.DemandHigh:     1.15,
			model.DemandVeryHigh: 1.3,
		},
		Trend: map[model.TrendDirection]float64{
			model.TrendDown:     0.95,
			model.TrendStable:   1.0,
			model.TrendUp:       1.1,
			model.TrendVolatile: 1.05,
		},
		Position: map[model.MarketPosition]float64{
			model.PositionLowest:      1.1,
			model.PositionBelowMarket: 1.05,
			model.PositionMarketRate:  1.0,
			model.PositionAboveMarket: 0.95,
			model.PositionHighest:     0.9,
		},
		WordCount: WordCountRules{
			Baseline:    1000,
			ScalingStep: 1000,
			ScalingRate: 0.10,
		},
		FreeRequirements:        3,
		RequirementSurchargePct: 0.10,
		StandardDeliveryHours: map[string]int{
			"blog_post":   72,
			"article":     96,
			"whitepaper":  240,
			"case_study":  168,
			"social_post": 24,
		},
		Holidays: []string{
			"2026-01-01", "2026-07-04", "2026-11-26", "2026-12-25",
		},
	}
}

// LoadFile reads a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read %s", path)
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrapf(err, "catalog: parse %s", path)
	}
	if c.Version == 0 {
		return nil, eris.Errorf("catalog: %s missing version", path)
	}
	return &c, nil
}

// Unmapped levels are reported, not silently skipped: a spec with a level
// the catalog does not know is misconfigured input, and pricing it as if
// the level were neutral would hide the problem.

// ComplexityFactor returns the multiplier for a complexity level.
func (c *Catalog) ComplexityFactor(l model.ComplexityLevel) (float64, error) {
	f, ok := c.Complexity[l]
	if !ok {
		return 0, eris.Errorf("catalog: unmapped complexity level %q", l)
	}
	return f, nil
}

// ResearchFactor returns the multiplier for a research depth.
func (c *Catalog) ResearchFactor(d model.ResearchDepth) (float64, error) {
	f, ok := c.Research[d]
	if !ok {
		return 0, eris.Errorf("catalog: unmapped research depth %q", d)
	}
	return f, nil
}

// TechnicalFactor returns the multiplier for a technical level.
func (c *Catalog) TechnicalFactor(l model.TechnicalLevel) (float64, error) {
	f, ok := c.Technical[l]
	if !ok {
		return 0, eris.Errorf("catalog: unmapped technical level %q", l)
	}
	return f, nil
}

// TierFactor returns the multiplier for a client tier.
func (c *Catalog) TierFactor(t model.ClientTier) (float64, error) {
	f, ok := c.Tier[t]
	if !ok {
		return 0, eris.Errorf("catalog: unmapped client tier %q", t)
	}
	return f, nil
}

// RiskFactor returns the multiplier for a risk level.
func (c *Catalog) RiskFactor(r model.RiskLevel) (float64, error) {
	f, ok := c.Risk[r]
	if !ok {
		return 0, eris.Errorf("catalog: unmapped risk level %q", r)
	}
	return f, nil
}

// TermsFactor returns the multiplier for payment terms.
func (c *Catalog) TermsFactor(t model.PaymentTerms) (float64, error) {
	f, ok := c.Terms[t]
	if !ok {
		return 0, eris.Errorf("catalog: unmapped payment terms %q", t)
	}
	return f, nil
}

// DemandFactor returns the multiplier for a demand level.
func (c *Catalog) DemandFactor(d model.DemandLevel) (float64, error) {
	f, ok := c.Demand[d]
	if !ok {
		return 0, eris.Errorf("catalog: unmapped demand level %q", d)
	}
	return f, nil
}

// TrendFactor returns the multiplier for a trend direction.
func (c *Catalog) TrendFactor(t model.TrendDirection) (float64, error) {
	f, ok := c.Trend[t]
	if !ok {
		return 0, eris.Errorf("catalog: unmapped trend direction %q", t)
	}
	return f, nil
}

// PositionFactor returns the multiplier for a market position bucket.
func (c *Catalog) PositionFactor(p model.MarketPosition) (float64, error) {
	f, ok := c.Position[p]
	if !ok {
		return 0, eris.Errorf("catalog: unmapped market position %q", p)
	}
	return f, nil
}

// DeliveryStandard returns the standard delivery time for a content
// type, falling back to the "article" entry when the type is unknown so
// surge pricing still has a reference point.
func (c *Catalog) DeliveryStandard(contentType string) time.Duration {
	if h, ok := c.StandardDeliveryHours[contentType]; ok {
		return time.Duration(h) * time.Hour
	}
	if h, ok := c.StandardDeliveryHours["article"]; ok {
		return time.Duration(h) * time.Hour
	}
	return 96 * time.Hour
}

// IsHoliday reports whether the date of t is a recognized holiday.
func (c *Catalog) IsHoliday(t time.Time) bool {
	day := t.Format("2006-01-02")
	for _, h := range c.Holidays {
		if h == day {
			return true
		}
	}
	return false
}
