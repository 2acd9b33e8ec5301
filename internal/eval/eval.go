package eval

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/policy"
)

// #region eval-harness
// EvalHarness validates parameters after an optimization step.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run checks the updated parameters and the losses that produced them.
// A failed result means the caller should restore the pre-update parameters.
func (h *EvalHarness) Run(params policy.Params, train policy.TrainResult) EvalResult {
	var metrics []EvalMetric
	passed := true
	var failReasons []string

	fail := func(format string, args ...interface{}) {
		passed = false
		failReasons = append(failReasons, fmt.Sprintf(format, args...))
	}

	// 1. Every weight finite
	finite := params.Finite()
	metrics = append(metrics, EvalMetric{Name: "params_finite", Value: boolValue(finite), Pass: finite})
	if !finite {
		fail("parameters contain NaN or Inf")
	}

	// 2. Full parameter norm
	norm := params.Norm()
	normPass := finite && norm <= h.config.MaxParamNorm
	metrics = append(metrics, EvalMetric{Name: "param_norm", Value: norm, Pass: normPass})
	if finite && !normPass {
		fail("param norm %.4f exceeds %.4f", norm, h.config.MaxParamNorm)
	}

	// 3. Per-network norms
	networks := []struct {
		name string
		norm func() float64
	}{
		{"actor", params.ActorNorm},
		{"critic", params.CriticNorm},
	}
	for _, n := range networks {
		v := n.norm()
		pass := finite && v <= h.config.MaxNetworkNorm
		metrics = append(metrics, EvalMetric{Name: fmt.Sprintf("%s_norm", n.name), Value: v, Pass: pass})
		if finite && !pass {
			fail("%s norm %.4f exceeds %.4f", n.name, v, h.config.MaxNetworkNorm)
		}
	}

	// 4. Loss finite and bounded
	loss := train.TotalLoss
	lossPass := !math.IsNaN(loss) && !math.IsInf(loss, 0) && math.Abs(loss) <= h.config.MaxLoss
	metrics = append(metrics, EvalMetric{Name: "total_loss", Value: loss, Pass: lossPass})
	if !lossPass {
		fail("total loss %g out of bounds", loss)
	}

	// 5. KL drift: informational only
	metrics = append(metrics, EvalMetric{
		Name:  "approx_kl",
		Value: train.ApproxKL,
		Pass:  math.Abs(train.ApproxKL) <= h.config.TargetKL,
	})

	reason := "all checks passed"
	if !passed {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}

	return EvalResult{
		Passed:  passed,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness

// #region helpers
func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
