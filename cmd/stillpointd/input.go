package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"stillpoint/core"
	"stillpoint/ipc"
)

// inputEvent represents a Linux input event structure
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// translateInput maps a key event to a control message.
func translateInput(ev inputEvent) (ipc.Message, bool) {
	if ev.Type != EV_KEY {
		return nil, false
	}

	switch ev.Code {
	case KEY_PLAYPAUSE, KEY_PLAYCD, KEY_PAUSECD:
		if ev.Value == evValuePress {
			return ipc.ButtonPlayPause{}, true
		}

	case KEY_STOPCD:
		if ev.Value == evValuePress {
			return ipc.ActionMessage{Action: core.ResetPressed{}}, true
		}

	case KEY_VOLUMEUP:
		if ev.Value == evValuePress || ev.Value == evValueRepeat {
			return ipc.ButtonDuration{Delta: 1}, true
		}

	case KEY_VOLUMEDOWN:
		if ev.Value == evValuePress || ev.Value == evValueRepeat {
			return ipc.ButtonDuration{Delta: -1}, true
		}
	}
	return nil, false
}

// runInput reads the hardware button devices and forwards translated
// messages to out until ctx is canceled.
func runInput(ctx context.Context, devices []string, out chan<- ipc.Message, logger *slog.Logger) error {
	files := make([]*os.File, 0, len(devices))
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()
	for _, dev := range devices {
		f, err := os.Open(dev)
		if err != nil {
			return fmt.Errorf("open input device %s (run as root or add user to 'input' group): %w", dev, err)
		}
		files = append(files, f)
	}

	events := make(chan inputEvent, 64)
	readErr := make(chan error, 1)
	go readInputEvents(ctx, files, events, readErr)

	logger.Info("input devices open", "devices", devices)

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-readErr:
			if err == nil || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("input reader stopped: %w", err)

		case ev := <-events:
			msg, ok := translateInput(ev)
			if !ok {
				continue
			}
			select {
			case out <- msg:
			default:
				logger.Warn("inbox full, dropping button press", "code", ev.Code)
			}
		}
	}
}
