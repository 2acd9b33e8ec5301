package policy

import "errors"

var (
	// ErrEmptyBatch is returned by Train for a batch with no transitions.
	ErrEmptyBatch = errors.New("empty batch")
	// ErrObservationDim is returned when a state vector does not match the
	// optimizer's input size.
	ErrObservationDim = errors.New("observation dimension mismatch")
	// ErrCorruptBlob is returned when a parameter blob cannot be decoded.
	ErrCorruptBlob = errors.New("corrupt parameter blob")
)

// #region config
// Config holds network shape and PPO hyperparameters.
type Config struct {
	HiddenSize       int
	HiddenLayers     int
	LearningRate     float64
	Gamma            float64
	ClipEpsilon      float64
	ValueCoef        float64
	EntropyCoef      float64
	AdvantageEpsilon float64
	MinStd           float64 // floor added to the softplus scale
	Beta1            float64
	Beta2            float64
	AdamEpsilon      float64
	Seed             uint64
}

// DefaultConfig returns the standard PPO settings.
func DefaultConfig() Config {
	return Config{
		HiddenSize:       64,
		HiddenLayers:     2,
		LearningRate:     3e-4,
		Gamma:            0.99,
		ClipEpsilon:      0.2,
		ValueCoef:        0.5,
		EntropyCoef:      0.01,
		AdvantageEpsilon: 1e-8,
		MinStd:           1e-3,
		Beta1:            0.9,
		Beta2:            0.999,
		AdamEpsilon:      1e-7,
		Seed:             1,
	}
}

// #endregion config

// #region train-result
// TrainResult reports the losses of one optimization step. ClipFraction and
// ApproxKL compare the updated actor against the pre-update snapshot.
type TrainResult struct {
	PolicyLoss    float64 `json:"policy_loss"`
	ValueLoss     float64 `json:"value_loss"`
	Entropy       float64 `json:"entropy"`
	TotalLoss     float64 `json:"total_loss"`
	ClipFraction  float64 `json:"clip_fraction"`
	ApproxKL      float64 `json:"approx_kl"`
	AdvantageMean float64 `json:"advantage_mean"`
	Samples       int     `json:"samples"`
	Steps         int     `json:"steps"` // optimizer steps taken so far
}

// #endregion train-result
