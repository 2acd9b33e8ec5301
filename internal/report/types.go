package report

// DefaultMaxRecords bounds each in-memory series.
const DefaultMaxRecords = 10000

// CSV file names written by Flush.
const (
	FacadeFile  = "facade_data.csv"
	EnergyFile  = "energy_data.csv"
	ComfortFile = "comfort_data.csv"
)

// #region records
// FacadeRecord is the weather seen and the adjustment applied at one step.
type FacadeRecord struct {
	Time          float64 `json:"time"` // unix seconds
	Episode       int     `json:"episode"`
	Step          int     `json:"step"`
	Temperature   float64 `json:"temperature"`
	Humidity      float64 `json:"humidity"`
	WindSpeed     float64 `json:"wind_speed"`
	WindDirection float64 `json:"wind_direction"`
	CloudCover    float64 `json:"cloudiness"`
	Condition     int     `json:"weather_condition"`
	PanelCount    int     `json:"panel_count"`
	Rotation      float64 `json:"rotation"`
	Depth         float64 `json:"depth"`
	Admissible    bool    `json:"admissible"`
}

// EnergyRecord is one evaluator result alongside the outdoor conditions.
type EnergyRecord struct {
	Time        float64 `json:"time"`
	Episode     int     `json:"episode"`
	Step        int     `json:"step"`
	EnergyUse   float64 `json:"energy_use"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

// ComfortRecord is one composite comfort score.
type ComfortRecord struct {
	Time         float64 `json:"time"`
	Episode      int     `json:"episode"`
	Step         int     `json:"step"`
	ComfortScore float64 `json:"comfort_score"`
}

// #endregion records
