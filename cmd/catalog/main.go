// Package main provides the catalog tool entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/sidebox/internal/domain/catalog"
	"github.com/osa030/sidebox/internal/domain/playlist"
	"github.com/osa030/sidebox/internal/infra/config"
	"github.com/osa030/sidebox/internal/infra/logger"
	"github.com/osa030/sidebox/internal/infra/spotify"
)

var (
	app        = kingpin.New("sidebox-catalog", "sidebox catalog tool")
	configPath = app.Flag("config", "Path to config file").Short('c').String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()

	// import command
	importCmd      = app.Command("import", "Import a Spotify playlist as a catalog file")
	importPlaylist = importCmd.Arg("playlist", "Playlist URL, URI or ID").Required().String()
	importTag      = importCmd.Flag("tag", "Playlist ID the imported tracks are tagged with").Default("imported").String()
	importName     = importCmd.Flag("name", "Display name of the playlist").Default("Imported").String()
	importOut      = importCmd.Flag("out", "Output file (default: stdout)").Short('o').String()
	importTimeout  = importCmd.Flag("timeout", "Import timeout").Default("2m").Duration()

	// validate command
	validateCmd  = app.Command("validate", "Validate a catalog file")
	validateFile = validateCmd.Arg("file", "Catalog file").Required().ExistingFile()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{Output: "stderr", Level: "info"}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if _, err := logger.Init(loggerConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	var err error
	switch command {
	case importCmd.FullCommand():
		err = runImport()
	case validateCmd.FullCommand():
		err = runValidate(*validateFile)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runImport() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.ValidateSpotify(); err != nil {
		return err
	}
	if playlist.IsVirtualID(*importTag) {
		return fmt.Errorf("%q is a virtual playlist and cannot be used as a tag", *importTag)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *importTimeout)
	defer cancel()

	client, err := spotify.New(ctx, spotify.Config{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		Market:       cfg.Spotify.Market,
	})
	if err != nil {
		return fmt.Errorf("failed to create Spotify client: %w", err)
	}

	entries, skipped, err := client.PlaylistTracks(ctx, *importPlaylist, *importTag)
	if err != nil {
		return err
	}
	for _, s := range skipped {
		zlog.Warn().Msgf("skipped %s %q: %s", s.ID, s.Name, s.Reason)
	}

	doc := spotify.Document(*importTag, *importName, entries)
	// Round-trip through the loader so the tool never writes an unloadable file.
	if _, err := catalog.New(doc); err != nil {
		return err
	}
	data, err := catalog.Encode(doc)
	if err != nil {
		return err
	}

	if *importOut == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(*importOut, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", *importOut, err)
	}
	zlog.Info().Msgf("wrote %d tracks to %s", len(entries), *importOut)
	return nil
}

func runValidate(path string) error {
	start := time.Now()
	cat, err := catalog.Load(path)
	if err != nil {
		return err
	}

	fmt.Printf("%s: ok (%d tracks, validated in %s)\n", path, cat.Len(), time.Since(start).Round(time.Millisecond))
	var total time.Duration
	for _, t := range cat.Tracks() {
		total += t.Duration
	}
	fmt.Printf("  total duration: %s\n", total.Round(time.Second))
	for _, p := range cat.Playlists() {
		if p.ID == playlist.FavoritesID {
			continue
		}
		fmt.Printf("  %-12s %-20s %3d tracks\n", p.ID, p.Name, cat.Count(p.ID, nil))
	}
	return nil
}
