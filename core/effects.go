package core

import "fmt"

// ==============================
// Effects (side effects)
// ==============================

// Effect is a side effect requested by Reduce and executed by the host.
// Effects are fire-and-forget; none of them carries audio ownership.
type Effect interface {
	effectMarker()
	String() string
}

// ConfigureAudioSession asks the host to acquire and configure audio output.
type ConfigureAudioSession struct{}

func (ConfigureAudioSession) effectMarker()  {}
func (ConfigureAudioSession) String() string { return "ConfigureAudioSession()" }

// StartBackgroundAudio starts the looping background sound.
type StartBackgroundAudio struct {
	SoundID string
}

func (StartBackgroundAudio) effectMarker() {}
func (e StartBackgroundAudio) String() string {
	return fmt.Sprintf("StartBackgroundAudio(sound_id=%s)", e.SoundID)
}

type StopBackgroundAudio struct{}

func (StopBackgroundAudio) effectMarker()  {}
func (StopBackgroundAudio) String() string { return "StopBackgroundAudio()" }

type PauseBackgroundAudio struct{}

func (PauseBackgroundAudio) effectMarker()  {}
func (PauseBackgroundAudio) String() string { return "PauseBackgroundAudio()" }

type ResumeBackgroundAudio struct{}

func (ResumeBackgroundAudio) effectMarker()  {}
func (ResumeBackgroundAudio) String() string { return "ResumeBackgroundAudio()" }

type PlayStartGong struct{}

func (PlayStartGong) effectMarker()  {}
func (PlayStartGong) String() string { return "PlayStartGong()" }

type PlayIntervalGong struct{}

func (PlayIntervalGong) effectMarker()  {}
func (PlayIntervalGong) String() string { return "PlayIntervalGong()" }

type PlayCompletionSound struct{}

func (PlayCompletionSound) effectMarker()  {}
func (PlayCompletionSound) String() string { return "PlayCompletionSound()" }

// StartTimer starts the session countdown. PreparationSeconds is 0 when the
// session goes straight to Running.
type StartTimer struct {
	Minutes            int
	PreparationSeconds int
}

func (StartTimer) effectMarker() {}
func (e StartTimer) String() string {
	return fmt.Sprintf("StartTimer(minutes=%d, preparation_s=%d)", e.Minutes, e.PreparationSeconds)
}

type PauseTimer struct{}

func (PauseTimer) effectMarker()  {}
func (PauseTimer) String() string { return "PauseTimer()" }

type ResumeTimer struct{}

func (ResumeTimer) effectMarker()  {}
func (ResumeTimer) String() string { return "ResumeTimer()" }

type ResetTimer struct{}

func (ResetTimer) effectMarker()  {}
func (ResetTimer) String() string { return "ResetTimer()" }

// SaveSettings persists the given settings.
type SaveSettings struct {
	Settings Settings
}

func (SaveSettings) effectMarker() {}
func (e SaveSettings) String() string {
	return fmt.Sprintf("SaveSettings(duration_minutes=%d)", e.Settings.DurationMinutes)
}
