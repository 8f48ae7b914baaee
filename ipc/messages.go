// Package ipc is the control protocol of stillpointd: line-delimited JSON
// envelopes over a Unix domain socket.
//
// Protocol:
//   - Client sends: {"type": "message_name", "data": {...}}
//   - Server responds: {"status": "ok"} or {"status": "error", "error": "msg"}
//
// Every core action is accepted under its own type name. The host-level
// messages below cover the guided-meditation player, hardware buttons and
// settings updates, which are not reducer inputs.
package ipc

import (
	"encoding/json"
	"fmt"

	"stillpoint/core"
)

// Message is anything the daemon accepts over IPC.
type Message interface {
	messageMarker()
}

// ActionMessage carries a reducer action.
type ActionMessage struct {
	Action core.Action
}

// GuidedPlay starts a guided meditation track from a local file.
type GuidedPlay struct {
	Path string `json:"path"`
}

type GuidedPause struct{}
type GuidedResume struct{}
type GuidedStop struct{}

// AudioInterrupted reports a transient interruption of the audio output.
type AudioInterrupted struct{}

// ButtonPlayPause is the context-dependent play/pause button.
type ButtonPlayPause struct{}

// ButtonDuration nudges the selected duration by Delta minutes.
type ButtonDuration struct {
	Delta int `json:"delta"`
}

// UpdateSettings replaces the stored user settings.
type UpdateSettings struct {
	Settings core.Settings `json:"settings"`
}

func (ActionMessage) messageMarker()    {}
func (GuidedPlay) messageMarker()       {}
func (GuidedPause) messageMarker()      {}
func (GuidedResume) messageMarker()     {}
func (GuidedStop) messageMarker()       {}
func (AudioInterrupted) messageMarker() {}
func (ButtonPlayPause) messageMarker()  {}
func (ButtonDuration) messageMarker()   {}
func (UpdateSettings) messageMarker()   {}

// Response is the server's reply to each message.
type Response struct {
	Status string `json:"status"`          // "ok" or "error"
	Error  string `json:"error,omitempty"` // error message if status == "error"
}

// UnmarshalMessage decodes one envelope. Unknown host types fall through to
// the core action codec.
func UnmarshalMessage(data []byte) (Message, error) {
	var env core.ActionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "guided_play":
		var m GuidedPlay
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return nil, fmt.Errorf("unmarshal GuidedPlay: %w", err)
		}
		if m.Path == "" {
			return nil, fmt.Errorf("guided_play: path is required")
		}
		return m, nil

	case "guided_pause":
		return GuidedPause{}, nil
	case "guided_resume":
		return GuidedResume{}, nil
	case "guided_stop":
		return GuidedStop{}, nil
	case "audio_interrupted":
		return AudioInterrupted{}, nil
	case "button_play_pause":
		return ButtonPlayPause{}, nil

	case "button_duration":
		var m ButtonDuration
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return nil, fmt.Errorf("unmarshal ButtonDuration: %w", err)
		}
		return m, nil

	case "update_settings":
		var m UpdateSettings
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return nil, fmt.Errorf("unmarshal UpdateSettings: %w", err)
		}
		return m, nil
	}

	a, err := core.DecodeAction(env)
	if err != nil {
		return nil, err
	}
	return ActionMessage{Action: a}, nil
}

// MarshalMessage encodes m into an envelope.
func MarshalMessage(m Message) ([]byte, error) {
	env := core.ActionEnvelope{}

	switch msg := m.(type) {
	case ActionMessage:
		return core.MarshalAction(msg.Action)

	case GuidedPlay:
		env.Type = "guided_play"
		data, err := json.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("marshal GuidedPlay: %w", err)
		}
		env.Data = data

	case GuidedPause:
		env.Type = "guided_pause"
	case GuidedResume:
		env.Type = "guided_resume"
	case GuidedStop:
		env.Type = "guided_stop"
	case AudioInterrupted:
		env.Type = "audio_interrupted"
	case ButtonPlayPause:
		env.Type = "button_play_pause"

	case ButtonDuration:
		env.Type = "button_duration"
		data, err := json.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("marshal ButtonDuration: %w", err)
		}
		env.Data = data

	case UpdateSettings:
		env.Type = "update_settings"
		data, err := json.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("marshal UpdateSettings: %w", err)
		}
		env.Data = data

	default:
		return nil, fmt.Errorf("unsupported message type: %T", m)
	}

	return json.Marshal(env)
}
