package facade

// #region mapping
// MapAction converts a policy action into engineering units. The action is
// clipped first; each dimension is an independent affine transform.
func MapAction(a Action) Adjustment {
	c := a.Clip()
	return Adjustment{
		PanelCount: MinPanelCount + int(c[0]*float64(MaxPanelCount-MinPanelCount)),
		Rotation:   c[1] * MaxRotation,
		Depth:      MinDepth + c[2]*(MaxDepth-MinDepth),
	}
}

// #endregion mapping

// #region panels
// BuildPanels lays out adj.PanelCount identical panel records for a step.
// Panels are actuated in index order, spacing seconds apart, the first one
// at start.
func BuildPanels(adj Adjustment, step int, start, spacing float64) []PanelRecord {
	panels := make([]PanelRecord, adj.PanelCount)
	for i := range panels {
		panels[i] = PanelRecord{
			Index:    i,
			Step:     step,
			Time:     start + float64(i)*spacing,
			Rotation: adj.Rotation,
			Depth:    adj.Depth,
		}
	}
	return panels
}

// Summarize computes mean rotation, mean depth and count over panels.
// An empty facade summarises to zeros.
func Summarize(panels []PanelRecord) Aggregate {
	if len(panels) == 0 {
		return Aggregate{}
	}
	var rot, depth float64
	for _, p := range panels {
		rot += p.Rotation
		depth += p.Depth
	}
	n := float64(len(panels))
	return Aggregate{
		MeanRotation: rot / n,
		MeanDepth:    depth / n,
		PanelCount:   len(panels),
	}
}

// #endregion panels

// #region observation-vector
// Dim returns the length of the vector produced by Vector.
func (o Observation) Dim() int {
	if o.Extended {
		return ExtendedObservationDim
	}
	return BaseObservationDim
}

// Vector flattens the observation in the fixed field order the policy expects.
func (o Observation) Vector() []float64 {
	v := make([]float64, 0, o.Dim())
	v = append(v,
		o.Temperature,
		o.Humidity,
		o.WindSpeed,
		o.WindDirection,
		o.CloudCover,
		float64(o.Condition),
	)
	if o.Extended {
		v = append(v, o.MeanRotation, o.MeanDepth, float64(o.PanelCount))
	}
	return v
}

// WithAggregate returns o with the facade-derived fields set from agg.
func (o Observation) WithAggregate(agg Aggregate) Observation {
	o.MeanRotation = agg.MeanRotation
	o.MeanDepth = agg.MeanDepth
	o.PanelCount = agg.PanelCount
	return o
}

// #endregion observation-vector

// #region helpers
func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// #endregion helpers
