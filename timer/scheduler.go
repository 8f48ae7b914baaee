package timer

import (
	"sync"
	"time"
)

// Update is one published timer value.
type Update struct {
	Timer SessionTimer

	generation uint64
}

// Config contains runtime options for the Scheduler.
type Config struct {
	// TickInterval is the wall-clock length of one timer second. Tests shorten it.
	TickInterval time.Duration

	// UpdateBuffer is the capacity of the Updates channel.
	UpdateBuffer int
}

// Scheduler owns one SessionTimer and advances it on a repeating trigger.
//
// Every Start/Pause/Resume/Reset bumps a generation counter. A tick only
// mutates the timer when its generation is still current, and consumers drop
// updates for which IsCurrent is false, so a tick that raced a cancellation
// has no visible effect.
type Scheduler struct {
	mu          sync.Mutex
	options     Config
	timer       *SessionTimer
	resumePhase Phase
	generation  uint64
	stopCh      chan struct{}
	updates     chan Update
}

// NewScheduler creates an idle scheduler.
func NewScheduler(options Config) *Scheduler {
	if options.TickInterval <= 0 {
		options.TickInterval = time.Second
	}
	if options.UpdateBuffer <= 0 {
		options.UpdateBuffer = 16
	}
	return &Scheduler{
		options: options,
		updates: make(chan Update, options.UpdateBuffer),
	}
}

// Updates delivers timer values: the initial value of every Start/Resume and
// one value per tick.
func (s *Scheduler) Updates() <-chan Update {
	return s.updates
}

// IsCurrent reports whether u was produced by the live run.
func (s *Scheduler) IsCurrent(u Update) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil && u.generation == s.generation
}

// Current returns the timer held by the scheduler, if any.
func (s *Scheduler) Current() (SessionTimer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil {
		return SessionTimer{}, false
	}
	return *s.timer, true
}

// Start replaces any existing timer with a fresh one and begins ticking.
// The session enters Preparation, or Running directly when preparationSeconds is 0.
func (s *Scheduler) Start(durationMinutes, preparationSeconds int) error {
	t, err := New(durationMinutes, preparationSeconds)
	if err != nil {
		return err
	}
	if t.PreparationSeconds() > 0 {
		t = t.StartPreparation()
	} else {
		t = t.WithPhase(PhaseRunning)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
	s.timer = &t
	s.launchLocked()
	return nil
}

// Pause stops the trigger and marks the timer Paused. State is kept for Resume.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil || !s.timer.Phase().Tickable() {
		return
	}
	s.cancelLocked()
	s.resumePhase = s.timer.Phase()
	paused := s.timer.WithPhase(PhasePaused)
	s.timer = &paused
}

// Resume restores the phase Pause interrupted and restarts the trigger.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil || s.timer.Phase() != PhasePaused {
		return
	}
	resumed := s.timer.WithPhase(s.resumePhase)
	s.timer = &resumed
	s.launchLocked()
}

// Reset discards the timer and cancels the trigger.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
	s.timer = nil
}

// Stop is Reset under the name hosts use at shutdown.
func (s *Scheduler) Stop() {
	s.Reset()
}

// MarkIntervalGongPlayed records an interval gong on the current timer.
func (s *Scheduler) MarkIntervalGongPlayed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil {
		return
	}
	marked := s.timer.MarkIntervalGongPlayed()
	s.timer = &marked
}

// MarkIntervalGongIfDue marks an interval gong on the live timer if one is
// due and reports whether it did. Check and mark happen under one lock, so
// updates published before the mark cannot fire the same gong again.
func (s *Scheduler) MarkIntervalGongIfDue(intervalMinutes int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil || !s.timer.ShouldPlayIntervalGong(intervalMinutes) {
		return false
	}
	marked := s.timer.MarkIntervalGongPlayed()
	s.timer = &marked
	return true
}

func (s *Scheduler) cancelLocked() {
	s.generation++
	if s.stopCh != nil {
		close(s.stopCh)
		s.stopCh = nil
	}
}

func (s *Scheduler) launchLocked() {
	s.generation++
	stopCh := make(chan struct{})
	s.stopCh = stopCh
	go s.run(s.generation, stopCh)
}

func (s *Scheduler) run(generation uint64, stopCh <-chan struct{}) {
	if t, ok := s.snapshot(generation); ok {
		if !s.publish(Update{Timer: t, generation: generation}, stopCh) {
			return
		}
	}

	ticker := time.NewTicker(s.options.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			t, ok := s.tick(generation)
			if !ok {
				return
			}
			if !s.publish(Update{Timer: t, generation: generation}, stopCh) {
				return
			}
			if t.Phase() == PhaseCompleted {
				return
			}
		}
	}
}

func (s *Scheduler) snapshot(generation uint64) (SessionTimer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil || generation != s.generation {
		return SessionTimer{}, false
	}
	return *s.timer, true
}

func (s *Scheduler) tick(generation uint64) (SessionTimer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil || generation != s.generation || !s.timer.Phase().Tickable() {
		return SessionTimer{}, false
	}
	next := s.timer.Tick()
	s.timer = &next
	return next, true
}

func (s *Scheduler) publish(u Update, stopCh <-chan struct{}) bool {
	select {
	case <-stopCh:
		return false
	default:
	}
	select {
	case s.updates <- u:
		return true
	case <-stopCh:
		return false
	}
}
