// Package main provides the terminal player entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/sidebox/internal/app/favorites"
	"github.com/osa030/sidebox/internal/app/playback"
	"github.com/osa030/sidebox/internal/app/session"
	"github.com/osa030/sidebox/internal/domain/catalog"
	"github.com/osa030/sidebox/internal/infra/audio"
	"github.com/osa030/sidebox/internal/infra/config"
	"github.com/osa030/sidebox/internal/infra/logger"
	"github.com/osa030/sidebox/internal/infra/storage"
	"github.com/osa030/sidebox/internal/ui/tui"
)

var (
	app         = kingpin.New("sidebox-player", "sidebox terminal playlist player")
	configPath  = app.Flag("config", "Path to config file").Short('c').String()
	catalogPath = app.Flag("catalog", "Path to catalog file (default: built-in catalog)").String()
	sessionID   = app.Flag("session", "Session ID scoping saved favorites").Envar("SIDEBOX_SESSION_ID").String()
	mute        = app.Flag("mute-output", "Use the silent clock-driven output instead of the speaker").Bool()
	verbose     = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile     = app.Flag("logfile", "Path to log file").String()

	// playlists command
	playlistsCmd = app.Command("playlists", "List playlists with track counts and exit")
)

func init() {
	app.Command("play", "Start the player (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg)

	closer, err := logger.Init(logger.Config{
		Output: cfg.Log.Output,
		Level:  cfg.Log.Level,
		File:   cfg.Log.File,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	// run returns before exit so its deferred cleanup executes
	err = run(command, cfg)
	if err != nil {
		zlog.Error().Msgf("player error: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	_ = closer.Close()
	if err != nil {
		os.Exit(1)
	}
}

// applyFlags lets command-line flags win over the config file.
func applyFlags(cfg *config.Config) {
	if *catalogPath != "" {
		cfg.Catalog.Path = *catalogPath
	}
	if *sessionID != "" {
		cfg.Storage.SessionID = *sessionID
	}
	if *mute {
		cfg.Audio.Output = "silent"
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logfile != "" {
		cfg.Log.Output = "file"
		cfg.Log.File = *logfile
	}
}

func run(command string, cfg *config.Config) error {
	if cfg.Storage.SessionID == "" {
		cfg.Storage.SessionID = uuid.New().String()
		if cfg.Storage.Type != "memory" {
			zlog.Warn().Msgf("no session id configured; favorites are saved under %s", cfg.Storage.SessionID)
		}
	}

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	zlog.Info().Msgf("catalog loaded: tracks=%d playlists=%d", cat.Len(), len(cat.Playlists()))

	ctx := context.Background()
	backend, err := storage.New(ctx, storage.Config{
		Type:      cfg.Storage.Type,
		SessionID: cfg.Storage.SessionID,
		Settings:  cfg.Storage.Settings,
	})
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer backend.Close()

	favs := favorites.NewStore(ctx, backend)

	if command == playlistsCmd.FullCommand() {
		printPlaylists(cat, favs)
		return nil
	}

	output := newOutput(cfg.Audio)
	facade := session.New(cat, favs, output, session.Config{
		SessionID: cfg.Storage.SessionID,
		Playback:  playback.Config{
			DefaultVolume:    cfg.Playback.DefaultVolume,
			WrapOnRepeatNone: cfg.Playback.WrapOnRepeatNone,
		},
	})
	facade.Start()
	defer facade.Close()

	return tui.Run(facade)
}

// newOutput opens the speaker, falling back to the silent output when no
// audio device can be used.
func newOutput(cfg config.AudioConfig) audio.Output {
	opts := audio.Options{
		BaseDir:            cfg.BaseDir,
		SampleRate:         cfg.SampleRate,
		BufferSize:         cfg.Buffer(),
		TimeUpdateInterval: cfg.TimeUpdateInterval(),
		HTTPTimeout:        cfg.FetchTimeout(),
	}

	if cfg.Output == "silent" {
		zlog.Info().Msg("audio output: silent")
		return audio.NewSilentOutput(opts)
	}
	if !audio.Available {
		zlog.Warn().Msg("audio output: speaker not supported by this build, using silent output")
		return audio.NewSilentOutput(opts)
	}

	out, err := audio.NewSpeakerOutput(opts)
	if err != nil {
		zlog.Warn().Err(err).Msg("audio output: speaker unavailable, using silent output")
		return audio.NewSilentOutput(opts)
	}
	zlog.Info().Msgf("audio output: speaker sample_rate=%d", cfg.SampleRate)
	return out
}

func printPlaylists(cat *catalog.Catalog, favs *favorites.Store) {
	fmt.Println("Playlists:")
	for _, p := range cat.Playlists() {
		fmt.Printf("  %-12s %-20s %3d tracks\n", p.ID, p.Name, cat.Count(p.ID, favs.IsFavorite))
	}
}
