package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"stillpoint/audiosession"
	"stillpoint/core"
	"stillpoint/ipc"
	"stillpoint/timer"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("stillpointd v%s\n", version)
	fmt.Println("Meditation timer daemon")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  stillpointd [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Runs meditation sessions: countdown with preparation, interval gongs,")
	fmt.Println("  background sound and a completion bell. A guided meditation track can")
	fmt.Println("  be played instead; the two never sound at the same time.")
	fmt.Println("  Controlled over a Unix socket (stillpoint-ctl) and hardware buttons;")
	fmt.Println("  state is published over a WebSocket (stillpoint-watch).")
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Start with a config file")
	fmt.Println("  stillpointd -config ~/.config/stillpoint/config.yaml")
	fmt.Println()
	fmt.Println("  # Use a different player and enable a button device")
	fmt.Println("  stillpointd -player pw-play -input-device /dev/input/event3")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - Reading input devices requires root or membership of the 'input' group")
	fmt.Println("  - Player arguments support {file} and {volume} placeholders (config file)")
	fmt.Println()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath    = flag.String("config", "", "Path to YAML config file")
		playerCommand = flag.String("player", defaultPlayerCommand, "Audio player command run once per sound")
		soundsDir     = flag.String("sounds-dir", defaultSoundsDir, "Directory containing sound files")
		tickMS        = flag.Int("tick-ms", defaultTickMS, "Length of one timer second in milliseconds")
		ipcSocketPath = flag.String("ipc-socket", ipc.DefaultSocketPath, "Unix domain socket path for IPC")
		httpListen    = flag.String("http-listen", defaultHTTPListenAddr, "HTTP listen address for the state WebSocket (empty disables)")
		inputDevice   = flag.String("input-device", "", "Linux input event device for hardware buttons (enables input)")
		settingsPath  = flag.String("settings", defaultSettingsPath, "Path to the meditation settings file")
		journalPath   = flag.String("journal", defaultJournalPath, "Path to the session journal database")
		noJournal     = flag.Bool("no-journal", false, "Disable the session journal")
		logLevelStr   = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		logFormat     = flag.String("log-format", "text", "Log format: text, json")
		showVersion   = flag.Bool("version", false, "Print version and exit")
		showHelp      = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	if *showHelp {
		printUsage()
		return nil
	}
	if *showVersion {
		printVersion()
		return nil
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	// Only flags given on the command line override the file.
	var o FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "player":
			o.PlayerCommand = playerCommand
		case "sounds-dir":
			o.SoundsDir = soundsDir
		case "tick-ms":
			o.TickMS = tickMS
		case "ipc-socket":
			o.IPCSocketPath = ipcSocketPath
		case "http-listen":
			o.HTTPListen = httpListen
		case "input-device":
			o.InputDevice = inputDevice
		case "settings":
			o.SettingsPath = settingsPath
		case "journal":
			o.JournalPath = journalPath
		case "no-journal":
			o.NoJournal = noJournal
		case "log-level":
			o.LogLevel = logLevelStr
		case "log-format":
			o.LogFormat = logFormat
		}
	})
	o.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}

	logLevel, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	logger := setupLogger(os.Stdout, logLevel, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runServices(ctx, cfg, logger)
}

// runServices wires the daemon and runs it until ctx is canceled or a
// service fails.
func runServices(ctx context.Context, cfg Config, logger *slog.Logger) error {
	store, err := loadSettingsStore(cfg.Settings.Path)
	if err != nil {
		return err
	}

	var j *journal
	if cfg.Journal.Enabled {
		j, err = openJournal(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer j.Close()
	}

	g, gctx := errgroup.WithContext(ctx)

	inbox := make(chan ipc.Message, inboxBuffer)
	actions := make(chan core.Action, actionsBuffer)
	snapshots := make(chan chan core.DisplayState)

	player := newExecPlayer(cfg.Audio.PlayerCommand, cfg.Audio.PlayerArgs, logger)
	coord := audiosession.New(logger)
	scheduler := timer.NewScheduler(timer.Config{
		TickInterval: cfg.TickInterval(),
		UpdateBuffer: updateBuffer,
	})

	exec := newExecutor(gctx, executorDeps{
		Logger:    logger,
		Player:    player,
		Audio:     cfg.Audio,
		Scheduler: scheduler,
		Coord:     coord,
		Store:     store,
		Journal:   j,
		Actions:   actions,
	})
	guided := newGuidedFeature(gctx, logger, player, coord)

	if err := coord.Register(audiosession.SourceTimer, exec); err != nil {
		return err
	}
	if err := coord.Register(audiosession.SourceGuidedMeditation, guided); err != nil {
		return err
	}

	ws := NewServer(logger, snapshots, ServerConfig{})
	d := newDaemon(logger, scheduler, exec, guided, coord, store, ws.PublishState)

	g.Go(func() error {
		ws.Hub().Run(gctx)
		return nil
	})
	g.Go(func() error {
		d.run(gctx, inbox, actions, snapshots)
		return nil
	})
	g.Go(func() error {
		return ipc.Serve(gctx, cfg.IPC.SocketPath, inbox, logger)
	})
	if cfg.HTTP.ListenAddr != "" {
		g.Go(func() error {
			return runHTTPServer(gctx, cfg.HTTP.ListenAddr, newHTTPHandler(ws, cfg.HTTP.StatePath, j, logger), logger)
		})
	}
	if cfg.Input.Enabled {
		g.Go(func() error {
			return runInput(gctx, cfg.Input.Devices, inbox, logger)
		})
	}

	logger.Info("stillpointd started",
		"version", version,
		"ipc", cfg.IPC.SocketPath,
		"http", cfg.HTTP.ListenAddr,
		"input_enabled", cfg.Input.Enabled,
		"journal_enabled", cfg.Journal.Enabled,
		"tick_ms", cfg.Timer.TickMS,
	)

	err = g.Wait()
	logger.Info("stillpointd stopped")
	return err
}
