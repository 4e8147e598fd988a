package experiment

import (
	"hash/fnv"

	"github.com/sells-group/pricing-engine/internal/model"
)

// bucketResolution fixes the granularity of hash bucketing. Shares finer
// than 1/100000 of traffic are below anything an experiment would configure.
const bucketResolution = 100000

// ChooseVariant deterministically maps (experiment, client) to a variant
// by hashing the pair and bucketing against cumulative traffic shares.
// The same inputs always yield the same variant, so assignment is
// idempotent without needing persisted state for correctness. A nil
// return means the client falls in the holdout remainder (shares summing
// below 1.0).
func ChooseVariant(exp *model.PricingExperiment, clientID string) *model.PricingVariant {
	h := fnv.New64a()
	h.Write([]byte(exp.ID))
	h.Write([]byte(":"))
	h.Write([]byte(clientID))
	bucket := float64(h.Sum64()%bucketResolution) / bucketResolution

	var cum float64
	for i := range exp.Variants {
		cum += exp.Variants[i].TrafficShare
		if bucket < cum {
			return &exp.Variants[i]
		}
	}
	return nil
}
