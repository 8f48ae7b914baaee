package timer

import "fmt"

// Phase is the life-cycle stage of a session timer.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePreparation
	PhaseRunning
	PhasePaused
	PhaseCompleted
)

// String returns the lower-case wire name of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePreparation:
		return "preparation"
	case PhaseRunning:
		return "running"
	case PhasePaused:
		return "paused"
	case PhaseCompleted:
		return "completed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ParsePhase is the inverse of String.
func ParsePhase(s string) (Phase, error) {
	switch s {
	case "idle":
		return PhaseIdle, nil
	case "preparation":
		return PhasePreparation, nil
	case "running":
		return PhaseRunning, nil
	case "paused":
		return PhasePaused, nil
	case "completed":
		return PhaseCompleted, nil
	default:
		return PhaseIdle, fmt.Errorf("unknown phase: %q", s)
	}
}

// Tickable reports whether Tick advances a timer in this phase.
func (p Phase) Tickable() bool {
	return p == PhasePreparation || p == PhaseRunning
}

// MarshalText encodes the phase by name so JSON and YAML stay readable.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(b []byte) error {
	v, err := ParsePhase(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
