package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"stillpoint/audiosession"
	"stillpoint/core"
	"stillpoint/timer"
)

// executor runs reducer-emitted Effects against the player, the scheduler,
// the settings store and the journal. It is also the timer feature's
// audio session client.
//
// Design rules:
//   - This is the only place timer-side effects perform I/O.
//   - It never calls Reduce; observations go back to the daemon loop as actions,
//     either synchronously through onAction or later on the actions queue.
//   - It never holds its own lock while calling the Coordinator.
type executor struct {
	ctx       context.Context
	logger    *slog.Logger
	player    Player
	audio     AudioConfig
	scheduler *timer.Scheduler
	coord     *audiosession.Coordinator
	store     *settingsStore
	journal   *journal // nil when the journal is disabled
	actions   chan<- core.Action

	mu         sync.Mutex
	background Playback
	oneShots   map[Playback]struct{}
	sessionID  string
	// seq changes whenever a session starts or ends, so late completions of
	// an older session can tell they are stale.
	seq uint64
}

type executorDeps struct {
	Logger    *slog.Logger
	Player    Player
	Audio     AudioConfig
	Scheduler *timer.Scheduler
	Coord     *audiosession.Coordinator
	Store     *settingsStore
	Journal   *journal
	Actions   chan<- core.Action
}

func newExecutor(ctx context.Context, d executorDeps) *executor {
	return &executor{
		ctx:       ctx,
		logger:    d.Logger,
		player:    d.Player,
		audio:     d.Audio,
		scheduler: d.Scheduler,
		coord:     d.Coord,
		store:     d.Store,
		journal:   d.Journal,
		actions:   d.Actions,
		oneShots:  make(map[Playback]struct{}),
	}
}

// run executes a single Effect.
func (x *executor) run(e core.Effect, onAction func(core.Action)) {
	x.logger.Debug("effect", "effect", e.String())

	switch eff := e.(type) {
	case core.ConfigureAudioSession:
		x.requestSession()

	case core.StartBackgroundAudio:
		x.requestSession()
		x.startBackground(eff.SoundID)

	case core.StopBackgroundAudio:
		x.stopBackground()

	case core.PauseBackgroundAudio:
		if pb := x.currentBackground(); pb != nil {
			if err := pb.Pause(); err != nil {
				x.logger.Warn("pause background audio failed", "error", err)
			}
		}

	case core.ResumeBackgroundAudio:
		if pb := x.currentBackground(); pb != nil {
			if err := pb.Resume(); err != nil {
				x.logger.Warn("resume background audio failed", "error", err)
			}
		}

	case core.PlayStartGong:
		settings := x.store.Current()
		x.playOneShot(settings.GongSoundID, settings.GongVolume, nil)

	case core.PlayIntervalGong:
		settings := x.store.Current()
		played := x.playOneShot(settings.GongSoundID, settings.GongVolume, func() {
			x.deliver(core.IntervalGongPlayed{})
		})
		if !played && onAction != nil {
			onAction(core.IntervalGongPlayed{})
		}

	case core.PlayCompletionSound:
		x.finishSession(sessionCompleted)
		seq := x.currentSeq()
		release := func() {
			if x.currentSeq() == seq {
				x.releaseSession()
			}
		}
		if !x.playOneShot(x.audio.CompletionSoundID, x.store.Current().GongVolume, release) {
			release()
		}

	case core.StartTimer:
		if err := x.scheduler.Start(eff.Minutes, eff.PreparationSeconds); err != nil {
			x.logger.Error("start timer failed", "error", err, "minutes", eff.Minutes)
			return
		}
		x.beginSession(eff.Minutes)

	case core.PauseTimer:
		x.scheduler.Pause()

	case core.ResumeTimer:
		x.scheduler.Resume()

	case core.ResetTimer:
		x.stopAll()
		x.scheduler.Reset()
		x.finishSession(sessionAbandoned)
		x.releaseSession()

	case core.SaveSettings:
		if err := x.store.Save(eff.Settings); err != nil {
			x.logger.Error("save settings failed", "error", err)
		}

	default:
		x.logger.Warn("unknown effect type", "effect", e.String())
	}
}

// OnAudioConflict is called when the guided feature takes the audio session.
// The running session is abandoned and the reducer is told to reset.
func (x *executor) OnAudioConflict() {
	x.logger.Info("audio session taken by another feature; resetting timer")
	x.stopAll()
	x.scheduler.Reset()
	x.finishSession(sessionAbandoned)
	x.post(core.ResetPressed{})
}

// OnAudioPause is called on a transient interruption. Playback is paused by
// the reducer's PauseBackgroundAudio, so nothing stops when the pause does
// not apply to the current phase.
func (x *executor) OnAudioPause() {
	x.post(core.PausePressed{})
}

// post queues a for the daemon loop without blocking. It is used from the
// loop goroutine itself (audio session handlers), which must never wait on
// its own queue.
func (x *executor) post(a core.Action) {
	select {
	case x.actions <- a:
	default:
		x.logger.Warn("actions queue full, dropping action", "type", core.ActionTypeName(a))
	}
}

// deliver queues a from a playback goroutine, waiting for room until the
// executor's context ends.
func (x *executor) deliver(a core.Action) {
	select {
	case x.actions <- a:
	case <-x.ctx.Done():
	}
}

func (x *executor) requestSession() {
	if err := x.coord.RequestAudioSession(audiosession.SourceTimer); err != nil {
		x.logger.Error("request audio session failed", "error", err)
	}
}

func (x *executor) releaseSession() {
	if err := x.coord.ReleaseAudioSession(audiosession.SourceTimer); err != nil {
		x.logger.Error("release audio session failed", "error", err)
	}
}

func (x *executor) ownsSession() bool {
	src, ok := x.coord.ActiveSource()
	return ok && src == audiosession.SourceTimer
}

func (x *executor) currentBackground() Playback {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.background
}

func (x *executor) currentSeq() uint64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.seq
}

func (x *executor) startBackground(soundID string) {
	x.stopBackground()

	path, ok := x.audio.SoundPath(soundID)
	if !ok {
		if soundID != silentSoundID {
			x.logger.Warn("unknown background sound", "sound_id", soundID)
		}
		return
	}
	if !x.ownsSession() {
		x.logger.Warn("background audio skipped; audio session not owned", "sound_id", soundID)
		return
	}

	pb, err := x.player.Play(x.ctx, Sound{
		ID:     soundID,
		Path:   path,
		Volume: x.store.Current().BackgroundVolume,
		Loop:   true,
	})
	if err != nil {
		x.logger.Error("start background audio failed", "error", err, "sound_id", soundID)
		return
	}

	x.mu.Lock()
	x.background = pb
	x.mu.Unlock()
}

func (x *executor) stopBackground() {
	x.mu.Lock()
	pb := x.background
	x.background = nil
	x.mu.Unlock()

	if pb != nil {
		pb.Stop()
	}
}

// playOneShot plays a sound once. onDone, if non-nil, runs after the sound
// ends for any reason. It reports whether playback started.
func (x *executor) playOneShot(soundID string, volume float64, onDone func()) bool {
	path, ok := x.audio.SoundPath(soundID)
	if !ok {
		x.logger.Warn("no file for sound", "sound_id", soundID)
		return false
	}
	if !x.ownsSession() {
		x.logger.Warn("sound skipped; audio session not owned", "sound_id", soundID)
		return false
	}

	pb, err := x.player.Play(x.ctx, Sound{ID: soundID, Path: path, Volume: volume})
	if err != nil {
		x.logger.Error("play sound failed", "error", err, "sound_id", soundID)
		return false
	}

	x.mu.Lock()
	x.oneShots[pb] = struct{}{}
	x.mu.Unlock()

	go func() {
		<-pb.Done()
		x.mu.Lock()
		delete(x.oneShots, pb)
		x.mu.Unlock()
		if onDone != nil {
			onDone()
		}
	}()
	return true
}

func (x *executor) stopAll() {
	x.stopBackground()

	x.mu.Lock()
	shots := make([]Playback, 0, len(x.oneShots))
	for pb := range x.oneShots {
		shots = append(shots, pb)
	}
	x.mu.Unlock()

	for _, pb := range shots {
		pb.Stop()
	}
}

func (x *executor) beginSession(minutes int) {
	x.mu.Lock()
	x.seq++
	x.sessionID = ""
	x.mu.Unlock()

	if x.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(x.ctx), journalTimeout)
	defer cancel()
	id, err := x.journal.Begin(ctx, minutes, time.Now())
	if err != nil {
		x.logger.Error("journal begin failed", "error", err)
		return
	}

	x.mu.Lock()
	x.sessionID = id
	x.mu.Unlock()
	x.logger.Info("session started", "session_id", id, "minutes", minutes)
}

func (x *executor) finishSession(status string) {
	x.mu.Lock()
	id := x.sessionID
	x.sessionID = ""
	if status == sessionAbandoned {
		x.seq++
	}
	x.mu.Unlock()

	if x.journal == nil || id == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(x.ctx), journalTimeout)
	defer cancel()
	if err := x.journal.Finish(ctx, id, status, time.Now()); err != nil {
		x.logger.Error("journal finish failed", "error", err, "session_id", id)
		return
	}
	x.logger.Info("session finished", "session_id", id, "status", status)
}
