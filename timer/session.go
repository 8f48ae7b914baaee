// Package timer holds the countdown model of a meditation session and the
// Scheduler that drives it once per second.
package timer

import (
	"errors"
	"fmt"
)

const (
	MinDurationMinutes = 1
	MaxDurationMinutes = 60
)

// ErrInvalidDuration is returned by New when the duration is outside
// [MinDurationMinutes, MaxDurationMinutes].
var ErrInvalidDuration = errors.New("invalid session duration")

// SessionTimer is an immutable countdown value. Every transition returns a
// new SessionTimer; the receiver is never modified.
type SessionTimer struct {
	durationMinutes             int
	remainingSeconds            int
	phase                       Phase
	remainingPreparationSeconds int
	preparationSeconds          int

	// lastIntervalGongAt is the remaining-seconds value recorded at the last
	// interval gong. hasIntervalGong is false until the first one fires.
	lastIntervalGongAt int
	hasIntervalGong    bool
}

// New returns an idle timer with the full duration remaining.
// Negative preparationSeconds are treated as 0.
func New(durationMinutes, preparationSeconds int) (SessionTimer, error) {
	if durationMinutes < MinDurationMinutes || durationMinutes > MaxDurationMinutes {
		return SessionTimer{}, fmt.Errorf("%w: %d minutes (must be %d-%d)",
			ErrInvalidDuration, durationMinutes, MinDurationMinutes, MaxDurationMinutes)
	}
	if preparationSeconds < 0 {
		preparationSeconds = 0
	}
	return SessionTimer{
		durationMinutes:    durationMinutes,
		remainingSeconds:   durationMinutes * 60,
		phase:              PhaseIdle,
		preparationSeconds: preparationSeconds,
	}, nil
}

func (t SessionTimer) DurationMinutes() int             { return t.durationMinutes }
func (t SessionTimer) RemainingSeconds() int            { return t.remainingSeconds }
func (t SessionTimer) Phase() Phase                     { return t.phase }
func (t SessionTimer) RemainingPreparationSeconds() int { return t.remainingPreparationSeconds }
func (t SessionTimer) PreparationSeconds() int          { return t.preparationSeconds }
func (t SessionTimer) TotalSeconds() int                { return t.durationMinutes * 60 }

// LastIntervalGongAt returns the remaining-seconds mark of the last interval
// gong, if one has fired in this run.
func (t SessionTimer) LastIntervalGongAt() (int, bool) {
	return t.lastIntervalGongAt, t.hasIntervalGong
}

// ElapsedSeconds is the running time consumed so far, excluding preparation.
func (t SessionTimer) ElapsedSeconds() int {
	return t.TotalSeconds() - t.remainingSeconds
}

// Progress is 1 - remaining/total, or 0 for a zero-length timer.
func (t SessionTimer) Progress() float64 {
	total := t.TotalSeconds()
	if total == 0 {
		return 0
	}
	return 1 - float64(t.remainingSeconds)/float64(total)
}

// Tick advances the timer by one second. Outside Preparation and Running it
// returns t unchanged.
func (t SessionTimer) Tick() SessionTimer {
	switch t.phase {
	case PhasePreparation:
		t.remainingPreparationSeconds = max(t.remainingPreparationSeconds-1, 0)
		if t.remainingPreparationSeconds == 0 {
			t.phase = PhaseRunning
		}
	case PhaseRunning:
		t.remainingSeconds = max(t.remainingSeconds-1, 0)
		if t.remainingSeconds == 0 {
			t.phase = PhaseCompleted
		}
	}
	return t
}

// StartPreparation enters the preparation countdown and clears the interval
// gong marker. With zero preparation seconds callers should use
// WithPhase(PhaseRunning) instead.
func (t SessionTimer) StartPreparation() SessionTimer {
	t.phase = PhasePreparation
	t.remainingPreparationSeconds = t.preparationSeconds
	t.lastIntervalGongAt = 0
	t.hasIntervalGong = false
	return t
}

// WithPhase returns a copy in the given phase; no other field changes.
func (t SessionTimer) WithPhase(p Phase) SessionTimer {
	t.phase = p
	return t
}

// MarkIntervalGongPlayed records the current remaining time as the mark the
// next interval is measured from.
func (t SessionTimer) MarkIntervalGongPlayed() SessionTimer {
	t.lastIntervalGongAt = t.remainingSeconds
	t.hasIntervalGong = true
	return t
}

// Reset returns an idle timer with the full duration and no gong marker.
func (t SessionTimer) Reset() SessionTimer {
	t.phase = PhaseIdle
	t.remainingSeconds = t.TotalSeconds()
	t.remainingPreparationSeconds = 0
	t.lastIntervalGongAt = 0
	t.hasIntervalGong = false
	return t
}

// ShouldPlayIntervalGong reports whether an interval gong is due.
//
// The window slides from the last gong rather than following fixed multiples
// of the interval, so time lost to pause/resume shifts later gongs. A gong
// never fires at remaining == 0; the completion sound owns that moment.
func (t SessionTimer) ShouldPlayIntervalGong(intervalMinutes int) bool {
	if t.phase != PhaseRunning || intervalMinutes <= 0 || t.remainingSeconds <= 0 {
		return false
	}
	interval := intervalMinutes * 60
	if !t.hasIntervalGong {
		return t.ElapsedSeconds() >= interval
	}
	return t.lastIntervalGongAt-t.remainingSeconds >= interval
}
