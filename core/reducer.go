package core

import "stillpoint/timer"

// ReduceResult is the output of Reduce: next state plus the effects to run, in order.
type ReduceResult struct {
	State   DisplayState
	Effects []Effect
}

// Reduce is the pure reducer.
//
// Rules:
// - Must not perform I/O
// - Must not block
// - Same inputs give the same outputs
//
// An action whose precondition does not hold leaves the state unchanged and
// yields no effects. The host executes Effects and feeds observations back as
// Actions; Reduce never calls out.
func Reduce(s DisplayState, a Action, settings Settings) ReduceResult {
	var effects []Effect

	switch act := a.(type) {
	case SelectDuration:
		s.SelectedMinutes = clampMinutes(act.Minutes)

	case StartPressed:
		if s.Phase != timer.PhaseIdle || s.SelectedMinutes <= 0 {
			break
		}
		prep := settings.EffectivePreparationSeconds()
		if prep > 0 {
			s.Phase = timer.PhasePreparation
		} else {
			s.Phase = timer.PhaseRunning
		}
		s.AffirmationIndex = (s.AffirmationIndex + 1) % AffirmationCount
		s.IntervalGongPlaying = false

		saved := settings
		saved.DurationMinutes = s.SelectedMinutes
		effects = append(effects,
			ConfigureAudioSession{},
			StartBackgroundAudio{SoundID: settings.BackgroundSoundID},
			StartTimer{Minutes: s.SelectedMinutes, PreparationSeconds: prep},
			SaveSettings{Settings: saved},
		)
		if prep == 0 {
			effects = append(effects, PlayStartGong{})
		}

	case PausePressed:
		if s.Phase != timer.PhaseRunning {
			break
		}
		s.Phase = timer.PhasePaused
		effects = append(effects, PauseBackgroundAudio{}, PauseTimer{})

	case ResumePressed:
		if s.Phase != timer.PhasePaused {
			break
		}
		s.Phase = timer.PhaseRunning
		effects = append(effects, ResumeBackgroundAudio{}, ResumeTimer{})

	case ResetPressed:
		if s.Phase == timer.PhaseIdle {
			break
		}
		s.Phase = timer.PhaseIdle
		s.RemainingSeconds = 0
		s.TotalSeconds = 0
		s.RemainingPreparationSeconds = 0
		s.Progress = 0
		s.IntervalGongPlaying = false
		effects = append(effects, StopBackgroundAudio{}, ResetTimer{})

	case Tick:
		s.RemainingSeconds = act.Remaining
		s.TotalSeconds = act.Total
		s.RemainingPreparationSeconds = act.RemainingPreparation
		s.Progress = act.Progress
		s.Phase = act.Phase

	case PreparationFinished:
		s.Phase = timer.PhaseRunning
		effects = append(effects, PlayStartGong{})

	case TimerCompleted:
		s.Phase = timer.PhaseCompleted
		s.Progress = 1.0
		effects = append(effects, PlayCompletionSound{}, StopBackgroundAudio{})

	case IntervalGongTriggered:
		if !settings.IntervalGongsEnabled || s.IntervalGongPlaying {
			break
		}
		s.IntervalGongPlaying = true
		effects = append(effects, PlayIntervalGong{})

	case IntervalGongPlayed:
		s.IntervalGongPlaying = false

	default:
		// Unknown or nil action: no-op.
	}

	if s.TotalSeconds == 0 {
		s.Progress = 0
	}

	return ReduceResult{State: s, Effects: effects}
}
