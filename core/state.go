// Package core is the pure state machine of the meditation timer: display
// state, the actions that drive it, the effects it requests and Reduce.
//
// Nothing in this package performs I/O. The host feeds actions into Reduce
// and executes the returned effects.
package core

import (
	"fmt"

	"stillpoint/timer"
)

const (
	MinDurationMinutes = timer.MinDurationMinutes
	MaxDurationMinutes = timer.MaxDurationMinutes
)

var affirmations = [...]string{
	"Breathe in calm, breathe out tension.",
	"This moment is enough.",
	"Let thoughts pass like clouds.",
	"Return gently to the breath.",
	"Rest in what is here.",
}

// AffirmationCount is the length of the affirmation rotation.
const AffirmationCount = len(affirmations)

// DisplayState is everything a UI needs to render the timer screen.
type DisplayState struct {
	Phase                       timer.Phase `json:"phase"`
	SelectedMinutes             int         `json:"selected_minutes"`
	RemainingSeconds            int         `json:"remaining_seconds"`
	TotalSeconds                int         `json:"total_seconds"`
	RemainingPreparationSeconds int         `json:"remaining_preparation_seconds"`
	Progress                    float64     `json:"progress"`
	AffirmationIndex            int         `json:"affirmation_index"`

	// IntervalGongPlaying is set while the gong for the current interval is
	// in flight, and blocks duplicate triggers.
	IntervalGongPlaying bool `json:"interval_gong_playing"`
}

// NewDisplayState returns the idle state with the duration from settings.
func NewDisplayState(settings Settings) DisplayState {
	return DisplayState{
		Phase:           timer.PhaseIdle,
		SelectedMinutes: clampMinutes(settings.DurationMinutes),
	}
}

// FormattedRemaining renders the remaining session time as MM:SS.
func (s DisplayState) FormattedRemaining() string {
	return formatClock(s.RemainingSeconds)
}

// FormattedPreparation renders the remaining preparation time as MM:SS.
func (s DisplayState) FormattedPreparation() string {
	return formatClock(s.RemainingPreparationSeconds)
}

// Affirmation returns the text for AffirmationIndex.
func (s DisplayState) Affirmation() string {
	i := s.AffirmationIndex % AffirmationCount
	if i < 0 {
		i += AffirmationCount
	}
	return affirmations[i]
}

func formatClock(seconds int) string {
	seconds = max(seconds, 0)
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func clampMinutes(m int) int {
	return min(max(m, MinDurationMinutes), MaxDurationMinutes)
}
