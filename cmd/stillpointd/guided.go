package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"stillpoint/audiosession"
)

// guidedFeature plays guided meditation tracks. It is the second audio
// session client next to the timer executor.
type guidedFeature struct {
	ctx    context.Context
	logger *slog.Logger
	player Player
	coord  *audiosession.Coordinator

	mu      sync.Mutex
	current Playback
	path    string
	paused  bool
	seq     uint64
}

func newGuidedFeature(ctx context.Context, logger *slog.Logger, player Player, coord *audiosession.Coordinator) *guidedFeature {
	return &guidedFeature{ctx: ctx, logger: logger, player: player, coord: coord}
}

// Play starts path, replacing any track already playing. The audio session is
// requested first, which stops a running timer session.
func (g *guidedFeature) Play(path string) error {
	path = ExpandPath(path)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("guided track: %w", err)
	}

	// Outside g.mu: the previous owner's conflict handler may run here.
	if err := g.coord.RequestAudioSession(audiosession.SourceGuidedMeditation); err != nil {
		return err
	}

	g.mu.Lock()
	prev := g.current
	g.current = nil
	g.seq++
	seq := g.seq
	g.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}

	pb, err := g.player.Play(g.ctx, Sound{ID: "guided", Path: path, Volume: 1})
	if err != nil {
		g.release(seq)
		return err
	}

	g.mu.Lock()
	if g.seq != seq {
		// Stopped or replaced while starting.
		g.mu.Unlock()
		pb.Stop()
		return errors.New("guided track replaced while starting")
	}
	g.current = pb
	g.path = path
	g.paused = false
	g.mu.Unlock()

	g.logger.Info("guided meditation started", "path", path)

	go func() {
		<-pb.Done()
		g.mu.Lock()
		if g.seq == seq {
			g.current = nil
			g.path = ""
		}
		g.mu.Unlock()
		g.release(seq)
	}()
	return nil
}

// release gives the session back if seq is still the latest run.
func (g *guidedFeature) release(seq uint64) {
	g.mu.Lock()
	stale := g.seq != seq
	g.mu.Unlock()
	if stale {
		return
	}
	if err := g.coord.ReleaseAudioSession(audiosession.SourceGuidedMeditation); err != nil {
		g.logger.Error("release audio session failed", "error", err)
	}
}

func (g *guidedFeature) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == nil || g.paused {
		return
	}
	if err := g.current.Pause(); err != nil {
		g.logger.Warn("pause guided track failed", "error", err)
		return
	}
	g.paused = true
}

func (g *guidedFeature) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == nil || !g.paused {
		return
	}
	if err := g.current.Resume(); err != nil {
		g.logger.Warn("resume guided track failed", "error", err)
		return
	}
	g.paused = false
}

// Stop ends the current track and releases the audio session.
func (g *guidedFeature) Stop() {
	g.stopPlayback()
	if err := g.coord.ReleaseAudioSession(audiosession.SourceGuidedMeditation); err != nil {
		g.logger.Error("release audio session failed", "error", err)
	}
}

// stopPlayback stops the track without touching the session. It reports
// whether anything was playing.
func (g *guidedFeature) stopPlayback() bool {
	g.mu.Lock()
	pb := g.current
	path := g.path
	g.current = nil
	g.path = ""
	g.paused = false
	g.seq++
	g.mu.Unlock()

	if pb == nil {
		return false
	}
	pb.Stop()
	g.logger.Info("guided meditation stopped", "path", path)
	return true
}

// Playing returns the path of the current track.
func (g *guidedFeature) Playing() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.path, g.current != nil
}

// OnAudioConflict stops the track; the timer is taking over.
func (g *guidedFeature) OnAudioConflict() {
	g.stopPlayback()
}

// OnAudioPause pauses the track on a transient interruption.
func (g *guidedFeature) OnAudioPause() {
	g.Pause()
}
