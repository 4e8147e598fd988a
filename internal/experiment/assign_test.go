package experiment

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pricing-engine/internal/model"
)

func twoArmExperiment(shareA, shareB float64) *model.PricingExperiment {
	return &model.PricingExperiment{
		ID: "exp-bucketing",
		Variants: []model.PricingVariant{
			{ID: "v-control", Name: "control", TrafficShare: shareA, IsControl: true},
			{ID: "v-treat", Name: "treatment", TrafficShare: shareB},
		},
	}
}

func TestChooseVariantStable(t *testing.T) {
	t.Parallel()
	exp := twoArmExperiment(0.5, 0.5)

	first := ChooseVariant(exp, "client-42")
	require.NotNil(t, first)
	for i := 0; i < 100; i++ {
		again := ChooseVariant(exp, "client-42")
		require.NotNil(t, again)
		assert.Equal(t, first.ID, again.ID)
	}
}

func TestChooseVariantFullCoverage(t *testing.T) {
	t.Parallel()
	exp := twoArmExperiment(0.5, 0.5)

	counts := map[string]int{}
	const n = 5000
	for i := 0; i < n; i++ {
		v := ChooseVariant(exp, fmt.Sprintf("client-%d", i))
		require.NotNil(t, v, "shares sum to 1.0, no holdout expected")
		counts[v.ID]++
	}

	// A 50/50 split over 5000 clients should land near half each.
	assert.InDelta(t, n/2, counts["v-control"], n*0.05)
	assert.InDelta(t, n/2, counts["v-treat"], n*0.05)
}

func TestChooseVariantHoldout(t *testing.T) {
	t.Parallel()
	exp := twoArmExperiment(0.4, 0.4)

	holdout := 0
	const n = 5000
	for i := 0; i < n; i++ {
		if ChooseVariant(exp, fmt.Sprintf("client-%d", i)) == nil {
			holdout++
		}
	}

	// The 20% remainder is the holdout.
	assert.InDelta(t, n/5, holdout, n*0.05)
}

func TestChooseVariantDependsOnExperiment(t *testing.T) {
	t.Parallel()
	a := twoArmExperiment(0.5, 0.5)
	b := twoArmExperiment(0.5, 0.5)
	b.ID = "exp-other"

	moved := 0
	for i := 0; i < 1000; i++ {
		client := fmt.Sprintf("client-%d", i)
		va, vb := ChooseVariant(a, client), ChooseVariant(b, client)
		if va.Name != vb.Name {
			moved++
		}
	}

	// Bucketing hashes the experiment ID in, so two experiments must not
	// share a client partition.
	assert.Greater(t, moved, 100)
}
