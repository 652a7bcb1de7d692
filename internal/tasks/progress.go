package tasks

import (
	"sync"

	"github.com/desertthunder/dive/internal/models"
)

// ProgressUpdate represents a progress event during a run.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	RunID    string  // Run the update belongs to
	Stage    Stage   // Current stage
	Step     int     // Units settled within the stage
	Total    int     // Units the stage dispatched
	Fraction float64 // Overall run progress in [0, 1], never decreasing within a run
	Message  string  // Human-readable message for display
	Done     bool    // Stage finished
	Reset    bool    // Run ended; views should clear their progress
	Data     any     // Optional stage-specific data for richer UIs
}

// Tracker turns stage-local progress into the monotonic overall fraction.
//
// Each settled unit of a stage with n units advances the fraction by
// (1/n) * (weight/100). Finishing a stage snaps the fraction to the sum of the
// weights completed so far.
type Tracker struct {
	mu        sync.Mutex
	mode      models.Mode
	stage     Stage
	units     int
	settled   int
	completed float64
	fraction  float64
}

func NewTracker(mode models.Mode) *Tracker {
	return &Tracker{mode: mode}
}

// Begin starts stage with units pending (zero when not yet known).
func (t *Tracker) Begin(stage Stage, units int) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stage = stage
	t.units = units
	t.settled = 0
	return t.fraction
}

// SetUnits updates the unit count of the current stage once it becomes known.
func (t *Tracker) SetUnits(units int) {
	t.mu.Lock()
	t.units = units
	t.mu.Unlock()
}

// Step records one settled unit of the current stage.
func (t *Tracker) Step() (settled, units int, fraction float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.settled++
	if t.units > 0 && t.settled <= t.units {
		share := t.stage.Weight(t.mode) / 100
		t.advance(t.fraction + share/float64(t.units))
	}
	return t.settled, t.units, t.fraction
}

// Finish completes the current stage.
func (t *Tracker) Finish() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed += t.stage.Weight(t.mode) / 100
	t.advance(t.completed)
	return t.fraction
}

// Fraction is the overall progress.
func (t *Tracker) Fraction() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fraction
}

// Reset returns the tracker to zero for a new run.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stage, t.units, t.settled = FetchSourceTracks, 0, 0
	t.completed, t.fraction = 0, 0
}

func (t *Tracker) advance(to float64) {
	// stage totals are cumulative floats; clamp the rounding at the top
	if to > 1 {
		to = 1
	}
	if to > t.fraction {
		t.fraction = to
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
