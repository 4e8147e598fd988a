package experiment

import "math"

// normalCDF is the standard normal cumulative distribution function.
func normalCDF(z float64) float64 {
	return 0.5 * math.Erfc(-z/math.Sqrt2)
}

// twoSidedP converts a z statistic to a two-sided p-value.
func twoSidedP(z float64) float64 {
	return 2 * (1 - normalCDF(math.Abs(z)))
}

// TwoProportionTest compares conversion counts between a control
// (x1 of n1) and a treatment (x2 of n2) using the pooled two-proportion
// z-test. It returns the z statistic and the two-sided p-value. With a
// degenerate input (empty arm, zero pooled variance) it reports z=0, p=1.
func TwoProportionTest(x1, n1, x2, n2 int) (z, p float64) {
	if n1 == 0 || n2 == 0 {
		return 0, 1
	}
	p1 := float64(x1) / float64(n1)
	p2 := float64(x2) / float64(n2)
	pooled := float64(x1+x2) / float64(n1+n2)
	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(n1) + 1/float64(n2)))
	if se == 0 {
		return 0, 1
	}
	z = (p2 - p1) / se
	return z, twoSidedP(z)
}

// TwoMeanTest compares sample means with Welch's unpooled standard
// error. Sample sizes in an experiment are large enough that the
// statistic is evaluated against the normal distribution.
func TwoMeanTest(mean1, var1 float64, n1 int, mean2, var2 float64, n2 int) (z, p float64) {
	if n1 < 2 || n2 < 2 {
		return 0, 1
	}
	se := math.Sqrt(var1/float64(n1) + var2/float64(n2))
	if se == 0 {
		return 0, 1
	}
	z = (mean2 - mean1) / se
	return z, twoSidedP(z)
}

// sampleVariance recovers the unbiased variance from a running sum and
// sum of squares.
func sampleVariance(sum, sumSq float64, n int) float64 {
	if n < 2 {
		return 0
	}
	fn := float64(n)
	v := (sumSq - sum*sum/fn) / (fn - 1)
	if v < 0 {
		return 0
	}
	return v
}
