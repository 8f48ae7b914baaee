package main

import (
	"context"
	"fmt"
	"log/slog"

	"stillpoint/audiosession"
	"stillpoint/core"
	"stillpoint/ipc"
	"stillpoint/timer"
)

// ============================================================================
// Central Daemon Loop
// ============================================================================
//
// Design rules enforced here:
//   - The daemon goroutine is the only owner of DisplayState and the only
//     caller of Reduce.
//   - Effects are executed from explicit queues; an observation reported by
//     the executor is reduced after the effect that produced it returns,
//     never from inside it.
//   - Scheduler updates are translated into timer actions here, after the
//     stale-generation check.
//
// ============================================================================

type daemon struct {
	logger    *slog.Logger
	scheduler *timer.Scheduler
	exec      *executor
	guided    *guidedFeature
	coord     *audiosession.Coordinator
	store     *settingsStore

	// publish is called with every new state. It must not block.
	publish func(core.DisplayState)

	state core.DisplayState

	// timerPhase is the phase of the last accepted scheduler update, used to
	// detect the Preparation -> Running edge.
	timerPhase timer.Phase
}

func newDaemon(
	logger *slog.Logger,
	scheduler *timer.Scheduler,
	exec *executor,
	guided *guidedFeature,
	coord *audiosession.Coordinator,
	store *settingsStore,
	publish func(core.DisplayState),
) *daemon {
	if publish == nil {
		publish = func(core.DisplayState) {}
	}
	return &daemon{
		logger:     logger,
		scheduler:  scheduler,
		exec:       exec,
		guided:     guided,
		coord:      coord,
		store:      store,
		publish:    publish,
		state:      core.NewDisplayState(store.Current()),
		timerPhase: timer.PhaseIdle,
	}
}

// run is the main loop. It:
//   - receives control messages (IPC, buttons)
//   - receives actions posted asynchronously by the audio features
//   - turns scheduler updates into Tick and friends
//   - answers state snapshot requests
//
// It exits when ctx is canceled or inbox is closed.
func (d *daemon) run(
	ctx context.Context,
	inbox <-chan ipc.Message,
	actions <-chan core.Action,
	snapshots <-chan chan core.DisplayState,
) {
	d.logger.Info("daemon starting",
		"phase", d.state.Phase,
		"selected_minutes", d.state.SelectedMinutes,
	)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("daemon stopping (context canceled)")
			d.shutdown()
			return

		case msg, ok := <-inbox:
			if !ok {
				d.logger.Info("daemon stopping (inbox closed)")
				d.shutdown()
				return
			}
			d.handleMessage(msg)

		case a := <-actions:
			d.dispatch(a)

		case u := <-d.scheduler.Updates():
			d.handleUpdate(u)

		case reply := <-snapshots:
			// Never block the loop on a slow requester.
			select {
			case reply <- d.state:
			default:
				d.logger.Warn("state snapshot reply channel not ready; dropping snapshot")
			}
		}
	}
}

func (d *daemon) shutdown() {
	d.guided.Stop()
	d.dispatch(core.ResetPressed{})
	d.scheduler.Stop()
}

// dispatch reduces a and runs the resulting effects, and any follow-up
// actions they report, until both queues are empty.
func (d *daemon) dispatch(actions ...core.Action) {
	before := d.state

	// Explicit queues:
	// - actionQueue holds actions awaiting reduction
	// - effectQueue holds effects awaiting execution
	actionQueue := append([]core.Action(nil), actions...)
	var effectQueue []core.Effect

	enqueueAction := func(a core.Action) {
		actionQueue = append(actionQueue, a)
	}

	flushActions := func() {
		for len(actionQueue) > 0 {
			a := actionQueue[0]
			actionQueue = actionQueue[1:]

			rr := core.Reduce(d.state, a, d.store.Current())
			d.state = rr.State
			effectQueue = append(effectQueue, rr.Effects...)
		}
	}

	flushEffects := func() {
		for len(effectQueue) > 0 {
			e := effectQueue[0]
			effectQueue = effectQueue[1:]

			switch e.(type) {
			case core.StartTimer, core.ResetTimer:
				d.timerPhase = timer.PhaseIdle
			}
			d.exec.run(e, enqueueAction)

			flushActions()
		}
	}

	flushActions()
	flushEffects()

	if d.state != before {
		d.publish(d.state)
	}
}

// handleUpdate turns a scheduler update into timer actions.
func (d *daemon) handleUpdate(u timer.Update) {
	if !d.scheduler.IsCurrent(u) {
		return
	}

	t := u.Timer
	prev := d.timerPhase
	d.timerPhase = t.Phase()

	actions := []core.Action{core.TickFrom(t)}

	switch t.Phase() {
	case timer.PhaseRunning:
		if prev == timer.PhasePreparation {
			actions = append(actions, core.PreparationFinished{})
		}
		settings := d.store.Current()
		if settings.IntervalGongsEnabled && d.scheduler.MarkIntervalGongIfDue(settings.IntervalMinutes) {
			actions = append(actions, core.IntervalGongTriggered{})
		}

	case timer.PhaseCompleted:
		if prev != timer.PhaseCompleted {
			actions = append(actions, core.TimerCompleted{})
		}
	}

	d.dispatch(actions...)
}

// handleMessage applies one control message.
func (d *daemon) handleMessage(m ipc.Message) {
	switch msg := m.(type) {
	case ipc.ActionMessage:
		if !isUserAction(msg.Action) {
			d.logger.Warn("ignoring timer action from control channel", "type", core.ActionTypeName(msg.Action))
			return
		}
		d.dispatch(msg.Action)

	case ipc.ButtonPlayPause:
		if a, ok := playPauseAction(d.state.Phase); ok {
			d.dispatch(a)
		}

	case ipc.ButtonDuration:
		if d.state.Phase != timer.PhaseIdle {
			return
		}
		d.dispatch(core.SelectDuration{Minutes: d.state.SelectedMinutes + msg.Delta})

	case ipc.AudioInterrupted:
		d.coord.NotifyInterruption()

	case ipc.GuidedPlay:
		if err := d.guided.Play(msg.Path); err != nil {
			d.logger.Error("guided play failed", "error", err, "path", msg.Path)
		}
	case ipc.GuidedPause:
		d.guided.Pause()
	case ipc.GuidedResume:
		d.guided.Resume()
	case ipc.GuidedStop:
		d.guided.Stop()

	case ipc.UpdateSettings:
		if err := msg.Settings.Validate(); err != nil {
			d.logger.Warn("rejecting settings update", "error", err)
			return
		}
		if err := d.store.Save(msg.Settings); err != nil {
			d.logger.Error("save settings failed", "error", err)
		}
		if d.state.Phase == timer.PhaseIdle {
			d.dispatch(core.SelectDuration{Minutes: msg.Settings.DurationMinutes})
		}

	default:
		d.logger.Warn("unknown message type", "type", fmt.Sprintf("%T", m))
	}
}

// isUserAction reports whether a may come from outside the daemon. Timer
// observations are produced by the loop itself.
func isUserAction(a core.Action) bool {
	switch a.(type) {
	case core.SelectDuration, core.StartPressed, core.PausePressed, core.ResumePressed, core.ResetPressed:
		return true
	default:
		return false
	}
}

// playPauseAction maps the play/pause button to an action for the current phase.
func playPauseAction(p timer.Phase) (core.Action, bool) {
	switch p {
	case timer.PhaseIdle:
		return core.StartPressed{}, true
	case timer.PhaseRunning:
		return core.PausePressed{}, true
	case timer.PhasePaused:
		return core.ResumePressed{}, true
	case timer.PhaseCompleted:
		return core.ResetPressed{}, true
	default:
		// Preparation: the button does nothing until the session runs.
		return nil, false
	}
}
