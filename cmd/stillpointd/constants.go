package main

import "time"

// Linux input event types and codes (from <linux/input.h>)
const (
	EV_KEY = 0x01

	KEY_VOLUMEDOWN = 114
	KEY_VOLUMEUP   = 115
	KEY_PLAYPAUSE  = 164
	KEY_STOPCD     = 166
	KEY_PLAYCD     = 200
	KEY_PAUSECD    = 201
)

// Input event value constants
const (
	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

const (
	defaultTickMS          = 1000
	defaultHTTPListenAddr  = ":3002"
	defaultStatePath       = "/ws/state"
	defaultPlayerCommand   = "paplay"
	defaultSoundsDir       = "~/.local/share/stillpoint/sounds"
	defaultSettingsPath    = "~/.config/stillpoint/settings.yaml"
	defaultJournalPath     = "~/.local/share/stillpoint/journal.db"
	defaultCompletionSound = "completion_bell"

	// silentSoundID selects "no background sound".
	silentSoundID = "silent"

	// recentSessionsLimit caps GET /sessions.
	recentSessionsLimit = 50

	journalTimeout = 2 * time.Second

	// Queue sizes between the transports and the daemon loop.
	inboxBuffer   = 64
	actionsBuffer = 64
	updateBuffer  = 16
)
