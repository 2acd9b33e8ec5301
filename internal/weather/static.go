package weather

import (
	"context"
	"sync"
)

// #region static

// Static returns the same reading on every fetch.
type Static struct {
	Reading Reading
}

// Fetch returns the fixed reading.
func (s Static) Fetch(ctx context.Context) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, err
	}
	return s.Reading, nil
}

// #endregion static

// #region sequence

// Sequence replays readings in order and wraps around, e.g. a recorded day
// of hourly observations.
type Sequence struct {
	mu       sync.Mutex
	readings []Reading
	next     int
}

// NewSequence creates a sequence source. An empty sequence always fails.
func NewSequence(readings []Reading) *Sequence {
	return &Sequence{readings: readings}
}

// Fetch returns the next reading.
func (s *Sequence) Fetch(ctx context.Context) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.readings) == 0 {
		return Reading{}, ErrUnavailable
	}
	r := s.readings[s.next]
	s.next = (s.next + 1) % len(s.readings)
	return r, nil
}

// #endregion sequence
