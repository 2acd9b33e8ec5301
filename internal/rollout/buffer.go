package rollout

import "github.com/danielpatrickdp/adaptive-facade/go-controller/internal/facade"

// #region transition
// Transition is one recorded (s, a, r, s', done) tuple. It is stored by value
// and never mutated after Add.
type Transition struct {
	State     []float64
	Action    facade.Action
	Reward    float64
	NextState []float64
	Done      bool
}

// #endregion transition

// #region batch
// Batch is the column view of a buffer handed to the optimizer.
type Batch struct {
	States     [][]float64
	Actions    []facade.Action
	Rewards    []float64
	NextStates [][]float64
	Dones      []bool
}

// Len returns the number of transitions in the batch.
func (b Batch) Len() int {
	return len(b.Rewards)
}

// #endregion batch

// #region buffer
// Buffer accumulates the transitions of one episode.
type Buffer struct {
	transitions []Transition
}

// NewBuffer creates a buffer with room for capacity transitions.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{transitions: make([]Transition, 0, capacity)}
}

// Add records a transition. State slices are copied.
func (b *Buffer) Add(t Transition) {
	t.State = append([]float64(nil), t.State...)
	t.NextState = append([]float64(nil), t.NextState...)
	b.transitions = append(b.transitions, t)
}

// Len returns the number of recorded transitions.
func (b *Buffer) Len() int {
	return len(b.transitions)
}

// Transitions returns a deep copy of the recorded transitions.
func (b *Buffer) Transitions() []Transition {
	out := make([]Transition, len(b.transitions))
	for i, t := range b.transitions {
		t.State = append([]float64(nil), t.State...)
		t.NextState = append([]float64(nil), t.NextState...)
		out[i] = t
	}
	return out
}

// Batch returns the transitions as columns, in insertion order. State rows
// are copies.
func (b *Buffer) Batch() Batch {
	n := len(b.transitions)
	batch := Batch{
		States:     make([][]float64, n),
		Actions:    make([]facade.Action, n),
		Rewards:    make([]float64, n),
		NextStates: make([][]float64, n),
		Dones:      make([]bool, n),
	}
	for i, t := range b.transitions {
		batch.States[i] = append([]float64(nil), t.State...)
		batch.Actions[i] = t.Action
		batch.Rewards[i] = t.Reward
		batch.NextStates[i] = append([]float64(nil), t.NextState...)
		batch.Dones[i] = t.Done
	}
	return batch
}

// TotalReward sums rewards over the buffer.
func (b *Buffer) TotalReward() float64 {
	var sum float64
	for _, t := range b.transitions {
		sum += t.Reward
	}
	return sum
}

// Reset empties the buffer, keeping its capacity.
func (b *Buffer) Reset() {
	b.transitions = b.transitions[:0]
}

// #endregion buffer
