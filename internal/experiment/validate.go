package experiment

import (
	"fmt"
	"strings"

	"github.com/sells-group/pricing-engine/internal/model"
)

// ValidationError carries every problem found in an experiment design so
// a caller can fix all of them in one round-trip.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("experiment: invalid design: %s", strings.Join(e.Issues, "; "))
}

// Validate checks an experiment design. It returns a *ValidationError
// listing every distinct issue, or nil when the design is sound.
func Validate(exp model.PricingExperiment) error {
	var issues []string

	if strings.TrimSpace(exp.Name) == "" {
		issues = append(issues, "name is required")
	}
	if !exp.Metric.Valid() {
		issues = append(issues, fmt.Sprintf("unrecognized target metric %q", exp.Metric))
	}
	if len(exp.Variants) < 2 {
		issues = append(issues, "at least two variants are required")
	}
	if exp.RequiredSampleSize <= 0 {
		issues = append(issues, "required sample size must be positive")
	}
	if exp.SignificanceLevel <= 0 || exp.SignificanceLevel >= 1 {
		issues = append(issues, fmt.Sprintf("significance level %.3f outside (0,1)", exp.SignificanceLevel))
	}

	var totalShare float64
	controls := 0
	names := map[string]bool{}
	for i, v := range exp.Variants {
		label := v.Name
		if label == "" {
			label = fmt.Sprintf("variant %d", i)
			issues = append(issues, fmt.Sprintf("variant %d has no name", i))
		}
		if names[v.Name] && v.Name != "" {
			issues = append(issues, fmt.Sprintf("duplicate variant name %q", v.Name))
		}
		names[v.Name] = true

		if v.TrafficShare <= 0 {
			issues = append(issues, fmt.Sprintf("%s: traffic share must be positive", label))
		}
		totalShare += v.TrafficShare

		if v.IsControl {
			controls++
		} else if v.Overrides.IsZero() {
			issues = append(issues, fmt.Sprintf("%s: non-control variant has no parameter overrides", label))
		}
	}

	// Shares may sum below 1.0 (the remainder is a holdout) but never above.
	if totalShare > 1.0+1e-9 {
		issues = append(issues, fmt.Sprintf("variant traffic shares sum to %.3f, must be <= 1.0", totalShare))
	}
	if controls != 1 && len(exp.Variants) >= 2 {
		issues = append(issues, fmt.Sprintf("exactly one control variant required, found %d", controls))
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}
