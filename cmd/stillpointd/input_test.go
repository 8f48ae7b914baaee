package main

import (
	"testing"

	"stillpoint/core"
	"stillpoint/ipc"
)

func TestTranslateInput(t *testing.T) {
	tests := []struct {
		name string
		ev   inputEvent
		want ipc.Message
	}{
		{"play/pause press", inputEvent{Type: EV_KEY, Code: KEY_PLAYPAUSE, Value: evValuePress}, ipc.ButtonPlayPause{}},
		{"play press", inputEvent{Type: EV_KEY, Code: KEY_PLAYCD, Value: evValuePress}, ipc.ButtonPlayPause{}},
		{"pause press", inputEvent{Type: EV_KEY, Code: KEY_PAUSECD, Value: evValuePress}, ipc.ButtonPlayPause{}},
		{"play/pause release", inputEvent{Type: EV_KEY, Code: KEY_PLAYPAUSE, Value: evValueRelease}, nil},
		{"play/pause repeat", inputEvent{Type: EV_KEY, Code: KEY_PLAYPAUSE, Value: evValueRepeat}, nil},
		{"stop press", inputEvent{Type: EV_KEY, Code: KEY_STOPCD, Value: evValuePress}, ipc.ActionMessage{Action: core.ResetPressed{}}},
		{"volume up press", inputEvent{Type: EV_KEY, Code: KEY_VOLUMEUP, Value: evValuePress}, ipc.ButtonDuration{Delta: 1}},
		{"volume up repeat", inputEvent{Type: EV_KEY, Code: KEY_VOLUMEUP, Value: evValueRepeat}, ipc.ButtonDuration{Delta: 1}},
		{"volume down press", inputEvent{Type: EV_KEY, Code: KEY_VOLUMEDOWN, Value: evValuePress}, ipc.ButtonDuration{Delta: -1}},
		{"volume down release", inputEvent{Type: EV_KEY, Code: KEY_VOLUMEDOWN, Value: evValueRelease}, nil},
		{"unknown key", inputEvent{Type: EV_KEY, Code: 30, Value: evValuePress}, nil},
		{"non-key event", inputEvent{Type: 0x02, Code: KEY_PLAYPAUSE, Value: evValuePress}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := translateInput(tt.ev)
			if tt.want == nil {
				if ok {
					t.Fatalf("translateInput = %#v, want nothing", got)
				}
				return
			}
			if !ok {
				t.Fatalf("translateInput returned nothing, want %#v", tt.want)
			}
			if got != tt.want {
				t.Fatalf("translateInput = %#v, want %#v", got, tt.want)
			}
		})
	}
}
