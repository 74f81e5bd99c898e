package calibration

import (
	"math"

	"github.com/montanaflynn/stats"
)

// posteriorNormal combines a normal prior with window-restricted
// observations via precision weighting. With fewer than two usable
// observations the sample variance is undefined, so the prior variance
// stands in as the observation noise. The result is a pure function of
// (prior, observations): calibrating twice over the same window yields
// the same posterior, with no drift.
func posteriorNormal(mu0, sd0 float64, obs []float64) (mu, sd float64) {
	n := len(obs)
	if n == 0 || sd0 <= 0 {
		return mu0, sd0
	}
	xbar, _ := stats.Mean(obs)

	obsVar := sd0 * sd0
	if n >= 2 {
		if s2, err := stats.SampleVariance(obs); err == nil && s2 > 0 {
			obsVar = s2
		}
	}

	tau0 := 1 / (sd0 * sd0)
	tauObs := float64(n) / obsVar
	mu = (tau0*mu0 + tauObs*xbar) / (tau0 + tauObs)
	sd = math.Sqrt(1 / (tau0 + tauObs))
	return mu, sd
}

// posteriorBeta performs the conjugate pseudo-count update: each
// observation x in [0,1] contributes x to alpha and 1-x to beta.
// Out-of-range observations are clamped.
func posteriorBeta(alpha0, beta0 float64, obs []float64) (alpha, beta float64) {
	alpha, beta = alpha0, beta0
	for _, x := range obs {
		x = math.Min(math.Max(x, 0), 1)
		alpha += x
		beta += 1 - x
	}
	return alpha, beta
}

// posteriorLogNormal updates a lognormal prior by working in log space:
// the log of the observations is normal, so the normal update applies
// to (mu, sigma) directly. Non-positive observations carry no
// information for this family and are dropped.
func posteriorLogNormal(mu0, sigma0 float64, obs []float64) (mu, sigma float64) {
	var logs []float64
	for _, x := range obs {
		if x > 0 {
			logs = append(logs, math.Log(x))
		}
	}
	return posteriorNormal(mu0, sigma0, logs)
}
