package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// #region recorder
// Recorder keeps bounded in-memory series of facade, energy and comfort
// records. It is safe for concurrent use: the trainer writes while HTTP
// handlers read snapshots.
type Recorder struct {
	mu      sync.RWMutex
	max     int
	now     func() time.Time
	facade  []FacadeRecord
	energy  []EnergyRecord
	comfort []ComfortRecord
}

// NewRecorder creates a recorder keeping at most max records per series.
func NewRecorder(max int) *Recorder {
	if max <= 0 {
		max = DefaultMaxRecords
	}
	return &Recorder{max: max, now: time.Now}
}

// Now returns the timestamp used for new records.
func (r *Recorder) Now() float64 {
	return float64(r.now().UnixNano()) / 1e9
}

// AddFacade appends a facade record, stamping Time when zero.
func (r *Recorder) AddFacade(rec FacadeRecord) {
	if rec.Time == 0 {
		rec.Time = r.Now()
	}
	r.mu.Lock()
	r.facade = appendBounded(r.facade, rec, r.max)
	r.mu.Unlock()
}

// AddEnergy appends an energy record, stamping Time when zero.
func (r *Recorder) AddEnergy(rec EnergyRecord) {
	if rec.Time == 0 {
		rec.Time = r.Now()
	}
	r.mu.Lock()
	r.energy = appendBounded(r.energy, rec, r.max)
	r.mu.Unlock()
}

// AddComfort appends a comfort record, stamping Time when zero.
func (r *Recorder) AddComfort(rec ComfortRecord) {
	if rec.Time == 0 {
		rec.Time = r.Now()
	}
	r.mu.Lock()
	r.comfort = appendBounded(r.comfort, rec, r.max)
	r.mu.Unlock()
}

func appendBounded[T any](s []T, v T, max int) []T {
	s = append(s, v)
	if len(s) > max {
		s = append(s[:0:0], s[len(s)-max:]...)
	}
	return s
}

// #endregion recorder

// #region snapshots
// Facade returns a copy of the facade series.
func (r *Recorder) Facade() []FacadeRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]FacadeRecord(nil), r.facade...)
}

// Energy returns a copy of the energy series.
func (r *Recorder) Energy() []EnergyRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]EnergyRecord(nil), r.energy...)
}

// Comfort returns a copy of the comfort series.
func (r *Recorder) Comfort() []ComfortRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]ComfortRecord(nil), r.comfort...)
}

// LatestEnergy returns the most recent energy record, if any.
func (r *Recorder) LatestEnergy() (EnergyRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.energy) == 0 {
		return EnergyRecord{}, false
	}
	return r.energy[len(r.energy)-1], true
}

// LatestFacade returns the most recent facade record, if any.
func (r *Recorder) LatestFacade() (FacadeRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.facade) == 0 {
		return FacadeRecord{}, false
	}
	return r.facade[len(r.facade)-1], true
}

// #endregion snapshots

// #region csv
// WriteFacadeCSV writes the facade series with a header row.
func (r *Recorder) WriteFacadeCSV(w io.Writer) error {
	header := []string{"time", "episode", "step", "temperature", "humidity", "wind_speed", "wind_direction",
		"cloudiness", "weather_condition", "panel_count", "rotation", "depth", "admissible"}
	recs := r.Facade()
	rows := make([][]string, len(recs))
	for i, rec := range recs {
		rows[i] = []string{
			ff(rec.Time), strconv.Itoa(rec.Episode), strconv.Itoa(rec.Step),
			ff(rec.Temperature), ff(rec.Humidity), ff(rec.WindSpeed), ff(rec.WindDirection),
			ff(rec.CloudCover), strconv.Itoa(rec.Condition), strconv.Itoa(rec.PanelCount),
			ff(rec.Rotation), ff(rec.Depth), strconv.FormatBool(rec.Admissible),
		}
	}
	return writeCSV(w, header, rows)
}

// WriteEnergyCSV writes the energy series with a header row.
func (r *Recorder) WriteEnergyCSV(w io.Writer) error {
	header := []string{"time", "episode", "step", "energy_use", "temperature", "humidity"}
	recs := r.Energy()
	rows := make([][]string, len(recs))
	for i, rec := range recs {
		rows[i] = []string{
			ff(rec.Time), strconv.Itoa(rec.Episode), strconv.Itoa(rec.Step),
			ff(rec.EnergyUse), ff(rec.Temperature), ff(rec.Humidity),
		}
	}
	return writeCSV(w, header, rows)
}

// WriteComfortCSV writes the comfort series with a header row.
func (r *Recorder) WriteComfortCSV(w io.Writer) error {
	header := []string{"time", "episode", "step", "comfort_score"}
	recs := r.Comfort()
	rows := make([][]string, len(recs))
	for i, rec := range recs {
		rows[i] = []string{ff(rec.Time), strconv.Itoa(rec.Episode), strconv.Itoa(rec.Step), ff(rec.ComfortScore)}
	}
	return writeCSV(w, header, rows)
}

// Flush writes all three series into dir, replacing earlier files.
func (r *Recorder) Flush(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("CSV: cannot create directory: %w", err)
	}
	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{FacadeFile, r.WriteFacadeCSV},
		{EnergyFile, r.WriteEnergyCSV},
		{ComfortFile, r.WriteComfortCSV},
	}
	for _, f := range files {
		if err := writeFile(filepath.Join(dir, f.name), f.write); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("CSV: cannot open %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("CSV: %s: %w", path, err)
	}
	return f.Close()
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

func ff(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// #endregion csv
