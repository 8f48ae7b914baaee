package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"stillpoint/audiosession"
	"stillpoint/core"
	"stillpoint/timer"
)

func newTestExecutor(t *testing.T, player Player, actions chan<- core.Action) (*executor, *audiosession.Coordinator) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	coord := audiosession.New(logger)
	scheduler := timer.NewScheduler(timer.Config{TickInterval: time.Hour})
	t.Cleanup(scheduler.Stop)

	x := newExecutor(ctx, executorDeps{
		Logger:    logger,
		Player:    player,
		Audio:     DefaultConfig().Audio,
		Scheduler: scheduler,
		Coord:     coord,
		Store:     &settingsStore{path: filepath.Join(t.TempDir(), "settings.yaml"), current: core.DefaultSettings()},
		Actions:   actions,
	})
	return x, coord
}

func TestExecutor_IntervalGongPlayedWaitsForQueueRoom(t *testing.T) {
	player := &fakePlayer{hold: map[string]bool{"temple_bell": true}}
	actions := make(chan core.Action, 1)
	x, coord := newTestExecutor(t, player, actions)

	if err := coord.RequestAudioSession(audiosession.SourceTimer); err != nil {
		t.Fatalf("RequestAudioSession: %v", err)
	}

	// Fill the queue so the report cannot be sent right away.
	actions <- core.StartPressed{}

	var reported []core.Action
	x.run(core.PlayIntervalGong{}, func(a core.Action) { reported = append(reported, a) })
	if len(reported) != 0 {
		t.Fatalf("gong played, so no synchronous report expected: %v", reported)
	}

	gongs := player.played("temple_bell")
	if len(gongs) != 1 {
		t.Fatalf("expected one gong, got %d", len(gongs))
	}
	gongs[0].finish()
	time.Sleep(20 * time.Millisecond)

	if a := <-actions; a != (core.StartPressed{}) {
		t.Fatalf("unexpected queued action %T", a)
	}
	select {
	case a := <-actions:
		if _, ok := a.(core.IntervalGongPlayed); !ok {
			t.Fatalf("expected IntervalGongPlayed, got %T", a)
		}
	case <-time.After(time.Second):
		t.Fatalf("IntervalGongPlayed dropped while the queue was full")
	}
}

func TestExecutor_IntervalGongReportedSynchronouslyWhenNotPlayed(t *testing.T) {
	player := &fakePlayer{}
	actions := make(chan core.Action, 1)
	x, _ := newTestExecutor(t, player, actions)

	// No audio session owned: the gong is skipped.
	var reported []core.Action
	x.run(core.PlayIntervalGong{}, func(a core.Action) { reported = append(reported, a) })

	if len(reported) != 1 {
		t.Fatalf("expected one synchronous report, got %v", reported)
	}
	if _, ok := reported[0].(core.IntervalGongPlayed); !ok {
		t.Fatalf("expected IntervalGongPlayed, got %T", reported[0])
	}
	if n := player.count("temple_bell"); n != 0 {
		t.Fatalf("gong played without the audio session: %d", n)
	}
}
