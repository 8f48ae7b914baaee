package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"stillpoint/audiosession"
	"stillpoint/core"
	"stillpoint/ipc"
	"stillpoint/timer"
)

// fakePlayback is a test double for a sound in progress.
type fakePlayback struct {
	sound Sound
	done  chan struct{}
	once  sync.Once

	mu      sync.Mutex
	paused  bool
	stopped bool
}

func (p *fakePlayback) finish()                { p.once.Do(func() { close(p.done) }) }
func (p *fakePlayback) Done() <-chan struct{} { return p.done }

func (p *fakePlayback) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = true
	return nil
}

func (p *fakePlayback) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = false
	return nil
}

func (p *fakePlayback) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.finish()
}

func (p *fakePlayback) isPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *fakePlayback) isStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// fakePlayer records every Play. One-shot sounds finish immediately unless
// their id is in hold; looping sounds run until stopped.
type fakePlayer struct {
	hold map[string]bool

	mu    sync.Mutex
	plays []*fakePlayback
}

func (f *fakePlayer) Play(_ context.Context, s Sound) (Playback, error) {
	pb := &fakePlayback{sound: s, done: make(chan struct{})}
	f.mu.Lock()
	f.plays = append(f.plays, pb)
	f.mu.Unlock()
	if !s.Loop && !f.hold[s.ID] {
		pb.finish()
	}
	return pb, nil
}

func (f *fakePlayer) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.plays))
	for i, pb := range f.plays {
		out[i] = pb.sound.ID
	}
	return out
}

func (f *fakePlayer) played(id string) []*fakePlayback {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*fakePlayback
	for _, pb := range f.plays {
		if pb.sound.ID == id {
			out = append(out, pb)
		}
	}
	return out
}

func (f *fakePlayer) count(id string) int { return len(f.played(id)) }

type testDaemon struct {
	inbox     chan ipc.Message
	snapshots chan chan core.DisplayState
	player    *fakePlayer
	coord     *audiosession.Coordinator
	store     *settingsStore
	journal   *journal
	guided    *guidedFeature

	mu        sync.Mutex
	published []core.DisplayState
}

func testSessionSettings() core.Settings {
	s := core.DefaultSettings()
	s.DurationMinutes = 1
	s.PreparationEnabled = false
	s.BackgroundSoundID = "rain"
	return s
}

// startTestDaemon runs a daemon loop against a fake player and an in-memory
// journal.
func startTestDaemon(t *testing.T, settings core.Settings, tick time.Duration) *testDaemon {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	ctx, cancel := context.WithCancel(context.Background())

	j, err := openJournal(":memory:")
	if err != nil {
		t.Fatalf("openJournal: %v", err)
	}

	audio := DefaultConfig().Audio
	audio.SoundsDir = t.TempDir()

	h := &testDaemon{
		inbox:     make(chan ipc.Message),
		snapshots: make(chan chan core.DisplayState),
		player:    &fakePlayer{hold: map[string]bool{"guided": true}},
		coord:     audiosession.New(logger),
		store:     &settingsStore{path: filepath.Join(t.TempDir(), "settings.yaml"), current: settings},
		journal:   j,
	}

	actions := make(chan core.Action, actionsBuffer)

	scheduler := timer.NewScheduler(timer.Config{TickInterval: tick, UpdateBuffer: updateBuffer})
	exec := newExecutor(ctx, executorDeps{
		Logger:    logger,
		Player:    h.player,
		Audio:     audio,
		Scheduler: scheduler,
		Coord:     h.coord,
		Store:     h.store,
		Journal:   j,
		Actions:   actions,
	})
	h.guided = newGuidedFeature(ctx, logger, h.player, h.coord)

	if err := h.coord.Register(audiosession.SourceTimer, exec); err != nil {
		t.Fatalf("register timer: %v", err)
	}
	if err := h.coord.Register(audiosession.SourceGuidedMeditation, h.guided); err != nil {
		t.Fatalf("register guided: %v", err)
	}

	d := newDaemon(logger, scheduler, exec, h.guided, h.coord, h.store, h.record)

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.run(ctx, h.inbox, actions, h.snapshots)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Errorf("timeout waiting for daemon to stop")
		}
		_ = j.Close()
	})
	return h
}

func (h *testDaemon) record(s core.DisplayState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.published = append(h.published, s)
}

func (h *testDaemon) publishedStates() []core.DisplayState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]core.DisplayState(nil), h.published...)
}

// send delivers m and waits until the loop has handled it.
func (h *testDaemon) send(t *testing.T, m ipc.Message) {
	t.Helper()
	select {
	case h.inbox <- m:
	case <-time.After(time.Second):
		t.Fatalf("timeout sending %T to daemon", m)
	}
	_ = h.state(t)
}

func (h *testDaemon) state(t *testing.T) core.DisplayState {
	t.Helper()
	reply := make(chan core.DisplayState, 1)
	select {
	case h.snapshots <- reply:
	case <-time.After(time.Second):
		t.Fatalf("timeout requesting snapshot")
	}
	select {
	case s := <-reply:
		return s
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for snapshot")
	}
	return core.DisplayState{}
}

func (h *testDaemon) waitState(t *testing.T, timeout time.Duration, cond func(core.DisplayState) bool, msg string) core.DisplayState {
	t.Helper()
	var last core.DisplayState
	waitUntil(t, timeout, func() bool {
		last = h.state(t)
		return cond(last)
	}, msg)
	return last
}

func (h *testDaemon) owner() audiosession.Source {
	src, _ := h.coord.ActiveSource()
	return src
}

func phaseIs(p timer.Phase) func(core.DisplayState) bool {
	return func(s core.DisplayState) bool { return s.Phase == p }
}

func lastSession(t *testing.T, j *journal) SessionRecord {
	t.Helper()
	recs, err := j.Recent(context.Background(), 1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected a journal entry, got %d", len(recs))
	}
	return recs[0]
}

func TestDaemon_SessionRunsToCompletion(t *testing.T) {
	h := startTestDaemon(t, testSessionSettings(), 2*time.Millisecond)

	h.send(t, ipc.ActionMessage{Action: core.StartPressed{}})

	final := h.waitState(t, 3*time.Second, phaseIs(timer.PhaseCompleted), "session did not complete")
	if final.Progress != 1 || final.RemainingSeconds != 0 {
		t.Fatalf("unexpected final state: %+v", final)
	}

	ids := h.player.ids()
	if len(ids) < 3 || ids[0] != "rain" || ids[1] != "temple_bell" {
		t.Fatalf("unexpected play order: %v", ids)
	}
	if h.player.count("completion_bell") != 1 {
		t.Fatalf("expected one completion sound, got plays %v", ids)
	}
	if !h.player.played("rain")[0].isStopped() {
		t.Fatalf("background sound should stop on completion")
	}

	waitUntil(t, time.Second, func() bool { return h.owner() == "" }, "audio session not released after completion sound")

	rec := lastSession(t, h.journal)
	if rec.Status != sessionCompleted || rec.DurationMinutes != 1 || rec.EndedAt == nil {
		t.Fatalf("unexpected journal entry: %+v", rec)
	}

	// Play/pause on a completed session returns to idle.
	h.send(t, ipc.ButtonPlayPause{})
	if s := h.state(t); s.Phase != timer.PhaseIdle || s.SelectedMinutes != 1 {
		t.Fatalf("expected idle after reset, got %+v", s)
	}
	if rec := lastSession(t, h.journal); rec.Status != sessionCompleted {
		t.Fatalf("reset after completion must not rewrite the entry: %+v", rec)
	}
}

func TestDaemon_PreparationPlaysStartGongWhenItEnds(t *testing.T) {
	settings := testSessionSettings()
	settings.PreparationEnabled = true
	settings.PreparationSeconds = 5
	h := startTestDaemon(t, settings, 20*time.Millisecond)

	h.send(t, ipc.ButtonPlayPause{})
	if s := h.state(t); s.Phase != timer.PhasePreparation {
		t.Fatalf("expected preparation right after start, got %v", s.Phase)
	}
	if n := h.player.count("temple_bell"); n != 0 {
		t.Fatalf("start gong must wait for preparation, got %d plays", n)
	}

	// Play/pause does nothing during preparation.
	h.send(t, ipc.ButtonPlayPause{})

	h.waitState(t, 3*time.Second, phaseIs(timer.PhaseRunning), "preparation did not finish")
	if n := h.player.count("temple_bell"); n != 1 {
		t.Fatalf("expected one start gong after preparation, got %d", n)
	}

	sawPrep := false
	for _, s := range h.publishedStates() {
		if s.Phase == timer.PhasePreparation && s.RemainingPreparationSeconds == 5 {
			sawPrep = true
		}
	}
	if !sawPrep {
		t.Fatalf("expected a published preparation state with 5s remaining")
	}
}

func TestDaemon_IntervalGongs(t *testing.T) {
	settings := testSessionSettings()
	settings.DurationMinutes = 10
	settings.BackgroundSoundID = silentSoundID
	settings.IntervalGongsEnabled = true
	settings.IntervalMinutes = 3
	h := startTestDaemon(t, settings, time.Millisecond)

	h.send(t, ipc.ActionMessage{Action: core.StartPressed{}})
	h.waitState(t, 10*time.Second, phaseIs(timer.PhaseCompleted), "session did not complete")

	// One start gong plus gongs near 7:00, 4:00 and 1:00 remaining.
	if n := h.player.count("temple_bell"); n != 4 {
		t.Fatalf("expected 4 gongs, got %d (plays %v)", n, h.player.ids())
	}
	if h.player.count("rain") != 0 {
		t.Fatalf("silent background must not play anything")
	}
	if s := h.state(t); s.IntervalGongPlaying {
		t.Fatalf("interval gong flag left set")
	}
}

func TestDaemon_PauseResumeAndReset(t *testing.T) {
	h := startTestDaemon(t, testSessionSettings(), 20*time.Millisecond)

	h.send(t, ipc.ButtonPlayPause{})
	h.waitState(t, 2*time.Second, func(s core.DisplayState) bool {
		return s.Phase == timer.PhaseRunning && s.RemainingSeconds <= 58
	}, "timer did not tick")

	h.send(t, ipc.ButtonPlayPause{})
	paused := h.state(t)
	if paused.Phase != timer.PhasePaused {
		t.Fatalf("expected paused, got %v", paused.Phase)
	}
	bg := h.player.played("rain")[0]
	if !bg.isPaused() {
		t.Fatalf("background should be paused")
	}

	time.Sleep(100 * time.Millisecond)
	if s := h.state(t); s.RemainingSeconds != paused.RemainingSeconds {
		t.Fatalf("remaining moved while paused: %d -> %d", paused.RemainingSeconds, s.RemainingSeconds)
	}

	h.send(t, ipc.ButtonPlayPause{})
	h.waitState(t, 2*time.Second, func(s core.DisplayState) bool {
		return s.Phase == timer.PhaseRunning && s.RemainingSeconds < paused.RemainingSeconds
	}, "timer did not resume")
	if bg.isPaused() {
		t.Fatalf("background should be resumed")
	}

	h.send(t, ipc.ActionMessage{Action: core.ResetPressed{}})
	s := h.state(t)
	if s.Phase != timer.PhaseIdle || s.RemainingSeconds != 0 || s.Progress != 0 {
		t.Fatalf("expected idle after reset, got %+v", s)
	}
	if !bg.isStopped() {
		t.Fatalf("background should stop on reset")
	}
	if h.owner() != "" {
		t.Fatalf("audio session should be released on reset, owner %q", h.owner())
	}
	if rec := lastSession(t, h.journal); rec.Status != sessionAbandoned {
		t.Fatalf("expected abandoned entry, got %+v", rec)
	}

	// Ticks queued before the reset must not revive the session.
	time.Sleep(60 * time.Millisecond)
	if s := h.state(t); s.Phase != timer.PhaseIdle {
		t.Fatalf("stale tick changed phase to %v", s.Phase)
	}
}

func TestDaemon_GuidedMeditationTakesOverFromTimer(t *testing.T) {
	h := startTestDaemon(t, testSessionSettings(), 20*time.Millisecond)

	h.send(t, ipc.ButtonPlayPause{})
	h.waitState(t, time.Second, phaseIs(timer.PhaseRunning), "timer not running")
	if h.owner() != audiosession.SourceTimer {
		t.Fatalf("timer should own the session, owner %q", h.owner())
	}

	track := filepath.Join(t.TempDir(), "body_scan.ogg")
	if err := os.WriteFile(track, []byte("x"), 0o644); err != nil {
		t.Fatalf("write track: %v", err)
	}

	h.send(t, ipc.GuidedPlay{Path: track})
	h.waitState(t, time.Second, phaseIs(timer.PhaseIdle), "timer not reset by guided playback")

	if h.owner() != audiosession.SourceGuidedMeditation {
		t.Fatalf("guided feature should own the session, owner %q", h.owner())
	}
	if !h.player.played("rain")[0].isStopped() {
		t.Fatalf("timer background should stop when guided playback starts")
	}
	if rec := lastSession(t, h.journal); rec.Status != sessionAbandoned {
		t.Fatalf("expected abandoned entry, got %+v", rec)
	}
	if path, ok := h.guided.Playing(); !ok || path != track {
		t.Fatalf("guided track not playing: %q %v", path, ok)
	}

	// Starting the timer again stops the guided track.
	h.send(t, ipc.ButtonPlayPause{})
	if s := h.state(t); s.Phase != timer.PhaseRunning {
		t.Fatalf("expected running, got %v", s.Phase)
	}
	if h.owner() != audiosession.SourceTimer {
		t.Fatalf("timer should own the session again, owner %q", h.owner())
	}
	if _, ok := h.guided.Playing(); ok {
		t.Fatalf("guided track should stop when the timer starts")
	}
	if !h.player.played("guided")[0].isStopped() {
		t.Fatalf("guided playback not stopped")
	}
}

func TestDaemon_GuidedStopReleasesSession(t *testing.T) {
	h := startTestDaemon(t, testSessionSettings(), 20*time.Millisecond)

	track := filepath.Join(t.TempDir(), "breath.ogg")
	if err := os.WriteFile(track, []byte("x"), 0o644); err != nil {
		t.Fatalf("write track: %v", err)
	}

	h.send(t, ipc.GuidedPlay{Path: track})
	if h.owner() != audiosession.SourceGuidedMeditation {
		t.Fatalf("guided feature should own the session, owner %q", h.owner())
	}

	h.send(t, ipc.GuidedPause{})
	pb := h.player.played("guided")[0]
	if !pb.isPaused() {
		t.Fatalf("guided track should be paused")
	}
	h.send(t, ipc.GuidedResume{})
	if pb.isPaused() {
		t.Fatalf("guided track should be resumed")
	}

	h.send(t, ipc.GuidedStop{})
	if !pb.isStopped() || h.owner() != "" {
		t.Fatalf("guided stop should stop playback and release, owner %q", h.owner())
	}

	h.send(t, ipc.GuidedPlay{Path: filepath.Join(t.TempDir(), "missing.ogg")})
	if h.owner() != "" || h.player.count("guided") != 1 {
		t.Fatalf("missing track must not take the session")
	}
}

func TestDaemon_InterruptionPausesTimer(t *testing.T) {
	h := startTestDaemon(t, testSessionSettings(), 20*time.Millisecond)

	h.send(t, ipc.ButtonPlayPause{})
	h.waitState(t, time.Second, phaseIs(timer.PhaseRunning), "timer not running")

	h.send(t, ipc.AudioInterrupted{})
	h.waitState(t, time.Second, phaseIs(timer.PhasePaused), "interruption did not pause the timer")

	if h.owner() != audiosession.SourceTimer {
		t.Fatalf("interruption must not change ownership, owner %q", h.owner())
	}
	if !h.player.played("rain")[0].isPaused() {
		t.Fatalf("background should be paused on interruption")
	}
}

func TestDaemon_InterruptionDuringPreparationLeavesAudioPlaying(t *testing.T) {
	settings := testSessionSettings()
	settings.PreparationEnabled = true
	settings.PreparationSeconds = 5
	h := startTestDaemon(t, settings, 50*time.Millisecond)

	h.send(t, ipc.ButtonPlayPause{})
	if s := h.state(t); s.Phase != timer.PhasePreparation {
		t.Fatalf("expected preparation, got %v", s.Phase)
	}

	h.send(t, ipc.AudioInterrupted{})
	if s := h.state(t); s.Phase != timer.PhasePreparation {
		t.Fatalf("pause must not apply during preparation, got %v", s.Phase)
	}
	bg := h.player.played("rain")[0]
	if bg.isPaused() {
		t.Fatalf("background paused although the session did not pause")
	}

	h.waitState(t, 3*time.Second, func(s core.DisplayState) bool {
		return s.Phase == timer.PhaseRunning && s.RemainingSeconds < 60
	}, "session did not reach running")
	if bg.isPaused() {
		t.Fatalf("background still paused while the session runs")
	}
	if h.owner() != audiosession.SourceTimer {
		t.Fatalf("timer should still own the session, owner %q", h.owner())
	}
}

func TestDaemon_ControlMessages(t *testing.T) {
	h := startTestDaemon(t, testSessionSettings(), 20*time.Millisecond)

	h.send(t, ipc.ButtonDuration{Delta: 5})
	if s := h.state(t); s.SelectedMinutes != 6 {
		t.Fatalf("SelectedMinutes = %d, want 6", s.SelectedMinutes)
	}
	h.send(t, ipc.ButtonDuration{Delta: -100})
	if s := h.state(t); s.SelectedMinutes != core.MinDurationMinutes {
		t.Fatalf("SelectedMinutes = %d, want clamp to %d", s.SelectedMinutes, core.MinDurationMinutes)
	}

	// Timer observations are not accepted from outside.
	h.send(t, ipc.ActionMessage{Action: core.Tick{Remaining: 5, Total: 60, Phase: timer.PhaseRunning}})
	if s := h.state(t); s.Phase != timer.PhaseIdle || s.RemainingSeconds != 0 {
		t.Fatalf("external tick changed state: %+v", s)
	}

	next := testSessionSettings()
	next.DurationMinutes = 25
	next.GongVolume = 0.5
	h.send(t, ipc.UpdateSettings{Settings: next})
	if s := h.state(t); s.SelectedMinutes != 25 {
		t.Fatalf("SelectedMinutes = %d, want 25 after settings update", s.SelectedMinutes)
	}
	if got := h.store.Current(); got.DurationMinutes != 25 || got.GongVolume != 0.5 {
		t.Fatalf("settings not stored: %+v", got)
	}

	bad := next
	bad.IntervalMinutes = 7
	h.send(t, ipc.UpdateSettings{Settings: bad})
	if got := h.store.Current(); got.IntervalMinutes != next.IntervalMinutes {
		t.Fatalf("invalid settings must be rejected, got interval %d", got.IntervalMinutes)
	}

	h.send(t, ipc.ButtonPlayPause{})
	h.waitState(t, time.Second, func(s core.DisplayState) bool {
		return s.Phase == timer.PhaseRunning && s.TotalSeconds == 25*60
	}, "session did not start")
	h.send(t, ipc.ButtonDuration{Delta: 1})
	if s := h.state(t); s.SelectedMinutes != 25 {
		t.Fatalf("duration must not change while a session runs: %+v", s)
	}
}

func TestPlayPauseAction(t *testing.T) {
	tests := []struct {
		phase timer.Phase
		want  core.Action
		ok    bool
	}{
		{timer.PhaseIdle, core.StartPressed{}, true},
		{timer.PhaseRunning, core.PausePressed{}, true},
		{timer.PhasePaused, core.ResumePressed{}, true},
		{timer.PhaseCompleted, core.ResetPressed{}, true},
		{timer.PhasePreparation, nil, false},
	}
	for _, tt := range tests {
		got, ok := playPauseAction(tt.phase)
		if ok != tt.ok || got != tt.want {
			t.Errorf("playPauseAction(%v) = %v, %v; want %v, %v", tt.phase, got, ok, tt.want, tt.ok)
		}
	}
}
