package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"stillpoint/core"
	"stillpoint/ipc"
)

// ============================================================================
// stillpoint-ctl - Command-line IPC Client
// ============================================================================
// Sends one control message to stillpointd over its Unix socket.
//
// Usage:
//   stillpoint-ctl start
//   stillpoint-ctl duration 20
//   stillpoint-ctl guided ~/meditations/body-scan.mp3
//   stillpoint-ctl settings ~/my-settings.yaml
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/stillpoint.sock)
// ============================================================================

var errUsage = errors.New("usage")

func main() {
	socketPath := flag.String("socket", ipc.DefaultSocketPath, "Unix domain socket path")
	timeout := flag.Duration("timeout", 5*time.Second, "Time to wait for the daemon's reply")
	flag.Usage = printUsage
	flag.Parse()

	msg, err := parseCommand(flag.Args())
	if errors.Is(err, errUsage) {
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if msg == nil {
		printUsage()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := ipc.Send(ctx, *socketPath, msg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("ok")
}

// parseCommand turns command-line arguments into a message. A nil message
// with a nil error means help was requested.
func parseCommand(args []string) (ipc.Message, error) {
	if len(args) == 0 {
		return nil, errUsage
	}

	switch args[0] {
	case "start":
		return ipc.ActionMessage{Action: core.StartPressed{}}, nil

	case "pause":
		return ipc.ActionMessage{Action: core.PausePressed{}}, nil

	case "resume":
		return ipc.ActionMessage{Action: core.ResumePressed{}}, nil

	case "reset", "stop":
		return ipc.ActionMessage{Action: core.ResetPressed{}}, nil

	case "toggle", "play-pause":
		return ipc.ButtonPlayPause{}, nil

	case "duration":
		if len(args) < 2 {
			return nil, errors.New("duration requires a number of minutes")
		}
		minutes, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, fmt.Errorf("invalid minutes %q: %w", args[1], err)
		}
		return ipc.ActionMessage{Action: core.SelectDuration{Minutes: minutes}}, nil

	case "guided":
		if len(args) < 2 {
			return nil, errors.New("guided requires a file path")
		}
		return ipc.GuidedPlay{Path: args[1]}, nil

	case "guided-pause":
		return ipc.GuidedPause{}, nil

	case "guided-resume":
		return ipc.GuidedResume{}, nil

	case "guided-stop":
		return ipc.GuidedStop{}, nil

	case "interrupt":
		return ipc.AudioInterrupted{}, nil

	case "settings":
		if len(args) < 2 {
			return nil, errors.New("settings requires a YAML file path")
		}
		settings, err := readSettings(args[1])
		if err != nil {
			return nil, err
		}
		return ipc.UpdateSettings{Settings: settings}, nil

	case "help", "-h", "--help":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown command: %s", args[0])
	}
}

// readSettings loads a settings file. Fields it leaves out keep their
// defaults.
func readSettings(path string) (core.Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return core.Settings{}, fmt.Errorf("read settings file: %w", err)
	}
	settings := core.DefaultSettings()
	if err := yaml.Unmarshal(raw, &settings); err != nil {
		return core.Settings{}, fmt.Errorf("parse settings yaml: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return core.Settings{}, err
	}
	return settings, nil
}

func printUsage() {
	fmt.Println("stillpoint-ctl - Control stillpointd via IPC")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  stillpoint-ctl [OPTIONS] COMMAND [ARGS]")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -socket PATH      Unix domain socket path (default: /tmp/stillpoint.sock)")
	fmt.Println("  -timeout DUR      Time to wait for a reply (default: 5s)")
	fmt.Println()
	fmt.Println("COMMANDS:")
	fmt.Println("  start             Start a session with the selected duration")
	fmt.Println("  pause             Pause the running session")
	fmt.Println("  resume            Resume a paused session")
	fmt.Println("  reset, stop       Abandon the session and return to idle")
	fmt.Println("  toggle            Same as the play/pause button")
	fmt.Println("  duration MINUTES  Select the session length (1-60)")
	fmt.Println("  guided PATH       Play a guided meditation file")
	fmt.Println("  guided-pause      Pause the guided meditation")
	fmt.Println("  guided-resume     Resume the guided meditation")
	fmt.Println("  guided-stop       Stop the guided meditation")
	fmt.Println("  interrupt         Simulate an audio interruption")
	fmt.Println("  settings FILE     Replace the meditation settings from a YAML file")
	fmt.Println("  help              Show this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  stillpoint-ctl duration 20")
	fmt.Println("  stillpoint-ctl start")
	fmt.Println("  stillpoint-ctl -socket /run/stillpoint.sock reset")
}
