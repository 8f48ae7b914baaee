package core

import (
	"encoding/json"
	"fmt"

	"stillpoint/timer"
)

// ============================================================================
// Actions
// ============================================================================
// Actions are the inputs to Reduce: user intent (buttons, IPC) and clock
// observations translated by the host from scheduler updates.
// ============================================================================

// Action is a marker interface for all reducer inputs.
type Action interface {
	actionMarker()
}

// SelectDuration picks the session length in minutes. Out-of-range values are clamped.
type SelectDuration struct {
	Minutes int `json:"minutes"`
}

func (SelectDuration) actionMarker() {}

type StartPressed struct{}
type PausePressed struct{}
type ResumePressed struct{}
type ResetPressed struct{}

func (StartPressed) actionMarker()  {}
func (PausePressed) actionMarker()  {}
func (ResumePressed) actionMarker() {}
func (ResetPressed) actionMarker()  {}

// Tick mirrors one scheduler update into the display state.
type Tick struct {
	Remaining            int         `json:"remaining"`
	Total                int         `json:"total"`
	RemainingPreparation int         `json:"remaining_preparation"`
	Progress             float64     `json:"progress"`
	Phase                timer.Phase `json:"phase"`
}

func (Tick) actionMarker() {}

// TickFrom builds a Tick from a timer value.
func TickFrom(t timer.SessionTimer) Tick {
	return Tick{
		Remaining:            t.RemainingSeconds(),
		Total:                t.TotalSeconds(),
		RemainingPreparation: t.RemainingPreparationSeconds(),
		Progress:             t.Progress(),
		Phase:                t.Phase(),
	}
}

type PreparationFinished struct{}
type TimerCompleted struct{}
type IntervalGongTriggered struct{}

// IntervalGongPlayed reports that the interval gong finished playing.
type IntervalGongPlayed struct{}

func (PreparationFinished) actionMarker()   {}
func (TimerCompleted) actionMarker()        {}
func (IntervalGongTriggered) actionMarker() {}
func (IntervalGongPlayed) actionMarker()    {}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================

// ActionEnvelope wraps an action with a type discriminator for JSON marshaling.
type ActionEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ActionTypeName returns the wire name of a, or "" for unknown actions.
func ActionTypeName(a Action) string {
	switch a.(type) {
	case SelectDuration:
		return "select_duration"
	case StartPressed:
		return "start_pressed"
	case PausePressed:
		return "pause_pressed"
	case ResumePressed:
		return "resume_pressed"
	case ResetPressed:
		return "reset_pressed"
	case Tick:
		return "tick"
	case PreparationFinished:
		return "preparation_finished"
	case TimerCompleted:
		return "timer_completed"
	case IntervalGongTriggered:
		return "interval_gong_triggered"
	case IntervalGongPlayed:
		return "interval_gong_played"
	default:
		return ""
	}
}

// UnmarshalAction decodes an envelope into a concrete Action.
func UnmarshalAction(data []byte) (Action, error) {
	var env ActionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return DecodeAction(env)
}

// DecodeAction converts an already-parsed envelope into a concrete Action.
func DecodeAction(env ActionEnvelope) (Action, error) {
	switch env.Type {
	case "select_duration":
		var a SelectDuration
		if err := decodeData(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal SelectDuration: %w", err)
		}
		return a, nil

	case "start_pressed":
		return StartPressed{}, nil
	case "pause_pressed":
		return PausePressed{}, nil
	case "resume_pressed":
		return ResumePressed{}, nil
	case "reset_pressed":
		return ResetPressed{}, nil

	case "tick":
		var a Tick
		if err := decodeData(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal Tick: %w", err)
		}
		return a, nil

	case "preparation_finished":
		return PreparationFinished{}, nil
	case "timer_completed":
		return TimerCompleted{}, nil
	case "interval_gong_triggered":
		return IntervalGongTriggered{}, nil
	case "interval_gong_played":
		return IntervalGongPlayed{}, nil

	default:
		return nil, fmt.Errorf("unknown action type: %q", env.Type)
	}
}

// MarshalAction encodes a into a JSON envelope.
func MarshalAction(a Action) ([]byte, error) {
	name := ActionTypeName(a)
	if name == "" {
		return nil, fmt.Errorf("unsupported action type: %T", a)
	}
	env := ActionEnvelope{Type: name}

	switch a.(type) {
	case SelectDuration, Tick:
		data, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("marshal %T: %w", a, err)
		}
		env.Data = data
	}

	return json.Marshal(env)
}

// decodeData treats a missing payload as the zero value.
func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
