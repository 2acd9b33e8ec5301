package facade

// #region action
// ActionDim is the number of continuous controls the policy emits.
const ActionDim = 3

// Action is a raw policy output. Each component is expected in [0, 1];
// Clip enforces that before mapping.
type Action [ActionDim]float64

// Clip returns a copy with every component bounded to [0, 1].
func (a Action) Clip() Action {
	var out Action
	for i, v := range a {
		out[i] = clamp(v, 0, 1)
	}
	return out
}

// #endregion action

// #region adjustment
// Adjustment is an action expressed in engineering units.
type Adjustment struct {
	PanelCount int     `json:"panel_count"`
	Rotation   float64 `json:"rotation"` // degrees
	Depth      float64 `json:"depth"`    // metres
}

// Engineering ranges for each action dimension.
const (
	MinPanelCount = 10
	MaxPanelCount = 20
	MaxRotation   = 90.0
	MinDepth      = 0.1
	MaxDepth      = 0.5
)

// #endregion adjustment

// #region panel-record
// PanelRecord is one panel of a facade state. Time is the panel's actuation
// timestamp in seconds; all records of one state share Step.
type PanelRecord struct {
	Index    int     `json:"panel_id"`
	Step     int     `json:"step"`
	Time     float64 `json:"time"`
	Rotation float64 `json:"rotation"`
	Depth    float64 `json:"depth"`
	Velocity float64 `json:"velocity"`
}

// Aggregate summarises a facade state for the extended observation.
type Aggregate struct {
	MeanRotation float64
	MeanDepth    float64
	PanelCount   int
}

// #endregion panel-record

// #region observation
// Weather condition codes used in the observation vector.
const (
	ConditionClear  = 0
	ConditionClouds = 1
	ConditionRain   = 2
	ConditionSnow   = 3
)

// Observation dimensionalities.
const (
	BaseObservationDim     = 6
	ExtendedObservationDim = 9
)

// Observation is the state the policy sees at one decision point.
type Observation struct {
	Temperature   float64 `json:"temperature"`
	Humidity      float64 `json:"humidity"`
	WindSpeed     float64 `json:"wind_speed"`
	WindDirection float64 `json:"wind_direction"`
	CloudCover    float64 `json:"cloud_cover"`
	Condition     int     `json:"condition"`

	Extended     bool    `json:"extended"`
	MeanRotation float64 `json:"mean_rotation,omitempty"`
	MeanDepth    float64 `json:"mean_depth,omitempty"`
	PanelCount   int     `json:"panel_count,omitempty"`
}

// #endregion observation
