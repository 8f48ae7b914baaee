package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Sound is one thing to play.
type Sound struct {
	ID     string
	Path   string
	Volume float64 // 0..1
	Loop   bool
}

// Playback is a sound in progress.
type Playback interface {
	// Done is closed when playback ends, for any reason.
	Done() <-chan struct{}
	Pause() error
	Resume() error
	Stop()
}

// Player starts sounds. Playback ends when ctx is canceled.
type Player interface {
	Play(ctx context.Context, s Sound) (Playback, error)
}

// ============================================================================
// execPlayer: one external player process per sound
// ============================================================================

// minLoopRun is the shortest run after which a looping sound is restarted.
// A player that exits faster than this is treated as broken.
const minLoopRun = time.Second

type execPlayer struct {
	command string
	args    []string
	logger  *slog.Logger
}

func newExecPlayer(command string, args []string, logger *slog.Logger) *execPlayer {
	return &execPlayer{command: command, args: args, logger: logger}
}

// expandArgs substitutes {file} and {volume} in the argument template.
func expandArgs(tmpl []string, s Sound) []string {
	vol := min(max(s.Volume, 0), 1)
	paVolume := strconv.Itoa(int(vol * 65536))
	out := make([]string, len(tmpl))
	for i, a := range tmpl {
		a = strings.ReplaceAll(a, "{file}", s.Path)
		a = strings.ReplaceAll(a, "{volume}", paVolume)
		out[i] = a
	}
	return out
}

func (p *execPlayer) Play(ctx context.Context, s Sound) (Playback, error) {
	if s.Path == "" {
		return nil, fmt.Errorf("play %s: no file", s.ID)
	}
	args := expandArgs(p.args, s)

	pctx, cancel := context.WithCancel(ctx)
	pb := &execPlayback{cancel: cancel, done: make(chan struct{})}

	// Start the first process synchronously so a missing binary is reported to the caller.
	cmd := exec.CommandContext(pctx, p.command, args...)
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start %s: %w", p.command, err)
	}
	pb.setCmd(cmd)

	p.logger.Debug("sound started", "sound_id", s.ID, "file", s.Path, "loop", s.Loop, "pid", cmd.Process.Pid)

	go func() {
		defer close(pb.done)
		defer cancel()
		for {
			started := time.Now()
			err := cmd.Wait()
			if pctx.Err() != nil || !s.Loop {
				if err != nil && pctx.Err() == nil {
					p.logger.Warn("player exited with error", "sound_id", s.ID, "error", err)
				}
				return
			}
			if err != nil && time.Since(started) < minLoopRun {
				p.logger.Warn("looping sound failed, giving up", "sound_id", s.ID, "error", err)
				return
			}

			cmd = exec.CommandContext(pctx, p.command, args...)
			if err := cmd.Start(); err != nil {
				p.logger.Warn("restart looping sound failed", "sound_id", s.ID, "error", err)
				return
			}
			pb.setCmd(cmd)
		}
	}()

	return pb, nil
}

type execPlayback struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	cmd    *exec.Cmd
	paused bool
}

func (pb *execPlayback) setCmd(cmd *exec.Cmd) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.cmd = cmd
	if pb.paused && cmd.Process != nil {
		_ = unix.Kill(cmd.Process.Pid, unix.SIGSTOP)
	}
}

func (pb *execPlayback) Done() <-chan struct{} { return pb.done }

func (pb *execPlayback) signal(sig unix.Signal, paused bool) error {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.paused = paused
	if pb.cmd == nil || pb.cmd.Process == nil {
		return errors.New("player process not running")
	}
	if err := unix.Kill(pb.cmd.Process.Pid, sig); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("signal player: %w", err)
	}
	return nil
}

// Pause stops the player process in place (SIGSTOP).
func (pb *execPlayback) Pause() error { return pb.signal(unix.SIGSTOP, true) }

// Resume continues a paused player process (SIGCONT).
func (pb *execPlayback) Resume() error { return pb.signal(unix.SIGCONT, false) }

// Stop kills the player and waits for it to exit.
func (pb *execPlayback) Stop() {
	pb.cancel()
	<-pb.done
}
