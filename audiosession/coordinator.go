// Package audiosession arbitrates the single audio output between the
// features that produce sound. At most one Source owns the session; a new
// owner displaces the old one only after the old owner's conflict handler
// has returned.
package audiosession

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Source identifies an audio-producing feature.
type Source string

const (
	SourceTimer            Source = "timer"
	SourceGuidedMeditation Source = "guided_meditation"
)

// ErrUnknownSource is returned for a Source outside the known set.
var ErrUnknownSource = errors.New("unknown audio source")

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	return s == SourceTimer || s == SourceGuidedMeditation
}

func (s Source) String() string { return string(s) }

// Client is a feature that reacts to losing or interrupting the session.
type Client interface {
	// OnAudioConflict is called when another source takes the session.
	// It must stop the client's playback before returning.
	OnAudioConflict()
	// OnAudioPause is called on a transient interruption. Ownership is kept.
	OnAudioPause()
}

// Coordinator is the exclusive audio-session arbiter. It is safe for
// concurrent use.
//
// Handlers are invoked without holding the state lock, so a handler may call
// ReleaseAudioSession, ActiveSource or the Register methods. A conflict handler
// must not call RequestAudioSession synchronously.
type Coordinator struct {
	logger *slog.Logger

	// handoff serializes ownership changes and is held while a conflict
	// handler runs.
	handoff sync.Mutex

	mu       sync.Mutex
	active   Source
	conflict map[Source]func()
	pause    map[Source]func()
}

// New creates a Coordinator with no owner. A nil logger discards output.
func New(logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Coordinator{
		logger:   logger,
		conflict: make(map[Source]func()),
		pause:    make(map[Source]func()),
	}
}

func checkSource(src Source) error {
	if !src.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownSource, string(src))
	}
	return nil
}

// Register installs both handlers of c for src, replacing earlier ones.
func (c *Coordinator) Register(src Source, client Client) error {
	if err := checkSource(src); err != nil {
		return err
	}
	if client == nil {
		return fmt.Errorf("register %s: nil client", src)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conflict[src] = client.OnAudioConflict
	c.pause[src] = client.OnAudioPause
	return nil
}

// RegisterConflictHandler replaces the conflict handler for src. A nil
// handler removes it.
func (c *Coordinator) RegisterConflictHandler(src Source, handler func()) error {
	if err := checkSource(src); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if handler == nil {
		delete(c.conflict, src)
		return nil
	}
	c.conflict[src] = handler
	return nil
}

// RegisterPauseHandler replaces the pause handler for src. A nil handler
// removes it.
func (c *Coordinator) RegisterPauseHandler(src Source, handler func()) error {
	if err := checkSource(src); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if handler == nil {
		delete(c.pause, src)
		return nil
	}
	c.pause[src] = handler
	return nil
}

// RequestAudioSession makes src the owner. Requesting while already the owner
// is a no-op. If another source owns the session, its conflict handler runs to
// completion before src becomes visible as the owner.
func (c *Coordinator) RequestAudioSession(src Source) error {
	if err := checkSource(src); err != nil {
		return err
	}

	c.handoff.Lock()
	defer c.handoff.Unlock()

	c.mu.Lock()
	prev := c.active
	if prev == src {
		c.mu.Unlock()
		return nil
	}
	var handler func()
	if prev != "" {
		handler = c.conflict[prev]
	}
	c.mu.Unlock()

	if handler != nil {
		c.logger.Info("audio session conflict", "owner", prev, "requester", src)
		handler()
	}

	c.mu.Lock()
	c.active = src
	c.mu.Unlock()

	c.logger.Debug("audio session acquired", "source", src, "previous", prev)
	return nil
}

// ReleaseAudioSession gives up ownership. It is a no-op unless src is the owner.
func (c *Coordinator) ReleaseAudioSession(src Source) error {
	if err := checkSource(src); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != src {
		return nil
	}
	c.active = ""
	c.logger.Debug("audio session released", "source", src)
	return nil
}

// NotifyInterruption delivers a transient interruption (an incoming call, a
// system alert) to the owner's pause handler. Ownership is unchanged.
func (c *Coordinator) NotifyInterruption() {
	c.mu.Lock()
	owner := c.active
	handler := c.pause[owner]
	c.mu.Unlock()

	if owner == "" || handler == nil {
		return
	}
	c.logger.Info("audio session interrupted", "owner", owner)
	handler()
}

// ActiveSource returns the current owner, if any.
func (c *Coordinator) ActiveSource() (Source, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active, c.active != ""
}
