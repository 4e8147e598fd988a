package experiment

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pricing-engine/internal/model"
	"github.com/sells-group/pricing-engine/internal/store"
)

// VariantResult holds the statistical comparison of one variant against
// the control.
type VariantResult struct {
	VariantID   string  `json:"variant_id"`
	Name        string  `json:"name"`
	IsControl   bool    `json:"is_control"`
	SampleSize  int     `json:"sample_size"`
	MetricValue float64 `json:"metric_value"`
	ZScore      float64 `json:"z_score"`
	PValue      float64 `json:"p_value"`
	EffectSize  float64 `json:"effect_size"` // relative lift vs control
	Significant bool    `json:"significant"`
}

// Analysis is the full statistical readout of an experiment.
type Analysis struct {
	ExperimentID       string          `json:"experiment_id"`
	Metric             model.TargetMetric `json:"metric"`
	Alpha              float64         `json:"alpha"`
	RequiredSampleSize int             `json:"required_sample_size"`
	TotalSampleSize    int             `json:"total_sample_size"`
	Control            VariantResult   `json:"control"`
	Variants           []VariantResult `json:"variants"`
	AnalyzedAt         time.Time       `json:"analyzed_at"`
}

// Recommendation names the winning variant, or explains why there is none.
type Recommendation struct {
	ExperimentID string         `json:"experiment_id"`
	Winner       *VariantResult `json:"winner,omitempty"`
	Reason       string         `json:"reason"`
	Analysis     *Analysis      `json:"analysis"`
}

// Analyze computes per-variant significance against the control.
// Proportion metrics use the two-proportion z-test; mean metrics use a
// two-mean test over recorded values. A variant is significant only when
// its p-value beats the experiment's alpha AND the observed sample size
// (control plus variant) reaches the required minimum; one without the
// other never reports significance.
func (m *Manager) Analyze(ctx context.Context, id string) (*Analysis, error) {
	exp, err := m.store.GetExperiment(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "experiment: load %s", id)
	}
	if exp.Status == model.ExperimentDraft {
		return nil, eris.Wrapf(store.ErrConflict, "experiment: analyze draft experiment %s", id)
	}
	control := exp.Control()
	if control == nil {
		return nil, eris.Errorf("experiment: %s has no control variant", id)
	}

	stats, err := m.store.VariantStats(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "experiment: variant stats for %s", id)
	}

	an := &Analysis{
		ExperimentID:       id,
		Metric:             exp.Metric,
		Alpha:              exp.SignificanceLevel,
		RequiredSampleSize: exp.RequiredSampleSize,
		AnalyzedAt:         time.Now().UTC(),
	}

	cs := stats[control.ID]
	an.Control = VariantResult{
		VariantID:   control.ID,
		Name:        control.Name,
		IsControl:   true,
		SampleSize:  cs.Impressions,
		MetricValue: metricValue(exp.Metric, cs),
		PValue:      1,
	}
	an.TotalSampleSize = cs.Impressions

	for i := range exp.Variants {
		v := &exp.Variants[i]
		if v.IsControl {
			continue
		}
		vs := stats[v.ID]
		an.TotalSampleSize += vs.Impressions

		r := VariantResult{
			VariantID:   v.ID,
			Name:        v.Name,
			SampleSize:  vs.Impressions,
			MetricValue: metricValue(exp.Metric, vs),
		}

		if exp.Metric.IsProportion() {
			r.ZScore, r.PValue = TwoProportionTest(cs.Conversions, cs.Impressions, vs.Conversions, vs.Impressions)
		} else {
			r.ZScore, r.PValue = TwoMeanTest(
				cs.MeanValue(), sampleVariance(cs.ValueSum, cs.ValueSumSq, cs.Conversions), cs.Conversions,
				vs.MeanValue(), sampleVariance(vs.ValueSum, vs.ValueSumSq, vs.Conversions), vs.Conversions,
			)
		}
		if an.Control.MetricValue != 0 {
			r.EffectSize = (r.MetricValue - an.Control.MetricValue) / an.Control.MetricValue
		}

		sampleOK := cs.Impressions+vs.Impressions >= exp.RequiredSampleSize
		r.Significant = r.PValue < exp.SignificanceLevel && sampleOK

		an.Variants = append(an.Variants, r)
	}

	return an, nil
}

// RecommendWinner picks the best-performing variant among those found
// significant. With none significant (or the best significant variant
// not beating the control) it explicitly reports no winner instead of
// falling back to the control or the best raw number. A running
// experiment is marked analyzed; a stopped one keeps its status.
func (m *Manager) RecommendWinner(ctx context.Context, id string) (*Recommendation, error) {
	an, err := m.Analyze(ctx, id)
	if err != nil {
		return nil, err
	}

	rec := &Recommendation{ExperimentID: id, Analysis: an}

	var best *VariantResult
	for i := range an.Variants {
		v := &an.Variants[i]
		if !v.Significant {
			continue
		}
		if best == nil || v.MetricValue > best.MetricValue {
			best = v
		}
	}

	switch {
	case best == nil:
		rec.Reason = "no variant reached statistical significance"
	case best.MetricValue <= an.Control.MetricValue:
		rec.Reason = "significant variants all underperform the control"
	default:
		rec.Winner = best
		rec.Reason = "best metric value among statistically significant variants"
	}

	// Only a running experiment transitions; stopped stays terminal.
	exp, err := m.store.GetExperiment(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "experiment: load %s", id)
	}
	if exp.Status == model.ExperimentRunning {
		if err := m.store.TransitionExperiment(ctx, id, model.ExperimentRunning, model.ExperimentAnalyzed); err != nil {
			return nil, eris.Wrapf(err, "experiment: mark analyzed %s", id)
		}
	}

	zap.L().Info("experiment analyzed",
		zap.String("experiment_id", id),
		zap.Bool("has_winner", rec.Winner != nil),
		zap.String("reason", rec.Reason),
	)
	return rec, nil
}

// metricValue reads the experiment's target metric off a variant's stats.
func metricValue(metric model.TargetMetric, s model.VariantStats) float64 {
	if metric.IsProportion() {
		return s.ConversionRate()
	}
	return s.MeanValue()
}
