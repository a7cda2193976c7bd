package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/spots/internal/services"
	"github.com/desertthunder/spots/internal/tasks"
	"github.com/urfave/cli/v3"
)

// progress prints updates until the returned stop func is called.
func (r *Runner) progress(size int) (chan<- tasks.ProgressUpdate, func()) {
	ch := make(chan tasks.ProgressUpdate, size)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range ch {
			switch update.Phase {
			case tasks.PrepareLibrary, tasks.FetchPlaylist:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.ImportTracks, tasks.ExportPlaylist:
				r.writePlain("   %s\n", update.Message)
			case tasks.AddToPlaylist:
				r.writePlain("\n📝 %s\n", update.Message)
			}
		}
	}()
	return ch, func() {
		close(ch)
		<-done
	}
}

// Import streams a manifest into the library.
func (r *Runner) Import(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("manifest")
	playlist := cmd.String("playlist")
	if playlist == "" {
		playlist = r.config.Import.Playlist
	}
	rateLimit := cmd.Float64("rate")
	if rateLimit <= 0 {
		rateLimit = r.config.Import.RateLimit
	}

	if err := r.open(ctx); err != nil {
		return err
	}
	defer r.Close()

	r.logger.Info("starting import", "manifest", path, "playlist", playlist)

	prog, stop := r.progress(50)
	result, err := r.tasks.Import(ctx, prog, services.NewManifestStreamer(path), tasks.ImportOpts{
		PlaylistID: playlist,
		RateLimit:  rateLimit,
	})
	stop()

	if result != nil {
		r.writePlain("\n═══════════════════════════════════════\n")
		r.writePlain("Import into %s\n", result.PlaylistID)
		r.writePlain("═══════════════════════════════════════\n")
		r.writePlain("Added: %d  Skipped: %d  Failed: %d\n", len(result.Added), result.Skipped, len(result.Failed))
		for _, f := range result.Failed {
			r.writePlain("  %s %s: %s\n", r.styles.Err("✗"), f.Src, f.Error)
		}
	}
	return err
}

// Export writes playlists to files, every playlist the user can see when no --id is given.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}
	defer r.Close()

	ids := cmd.StringSlice("id")
	if len(ids) == 0 {
		userID, err := r.userID("")
		if err != nil {
			return err
		}
		playlists, err := r.library.GetAllPlaylists(ctx, userID)
		if err != nil {
			return err
		}
		for _, p := range playlists {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		return r.writeWarn("No playlists to export")
	}

	prog, stop := r.progress(len(ids) * 2)
	result, err := r.tasks.BulkExport(ctx, prog, ids, tasks.BulkExportOpts{
		Format:     cmd.String("format"),
		OutputDir:  cmd.String("output"),
		NumWorkers: int(cmd.Int("workers")),
	})
	stop()
	if err != nil {
		return err
	}

	r.writePlainln("Exported %d/%d playlists to %s", result.SuccessfulExports, result.TotalPlaylists, result.OutputDirectory)
	for _, res := range result.Results {
		if !res.Success {
			r.writePlain("  %s %s: %v\n", r.styles.Err("✗"), res.PlaylistName, res.Error)
		}
	}
	if result.ManifestPath != "" {
		r.writePlain("%s\n", r.styles.Help(fmt.Sprintf("manifest: %s", result.ManifestPath)))
	}
	return nil
}
