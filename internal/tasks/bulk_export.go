package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/spots/internal/formatter"
	"github.com/desertthunder/spots/internal/models"
	"golang.org/x/time/rate"
)

// BulkExportOpts contains configuration for bulk playlist exports.
type BulkExportOpts struct {
	Format     string  // Export format: json, csv, markdown, txt
	OutputDir  string  // Base output directory (default: spots_export_{epoch})
	NumWorkers int     // Concurrent file writers (default: 5, max: 10)
	RateLimit  float64 // Playlist reads per second (default: 5)
}

// PlaylistExportJob is a playlist read from the library waiting to be written.
type PlaylistExportJob struct {
	PlaylistID string
	Export     *models.PlaylistExport
}

// BulkExport exports multiple playlists concurrently with rate limiting and progress tracking.
//
// Playlists are read from the library one at a time and handed to a pool of
// workers that write the files. A playlist that cannot be read or written is
// recorded as failed; the rest carry on. A manifest summarizing the run is
// written to the output directory.
func (e *LibraryEngine) BulkExport(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	ids []string,
	opts BulkExportOpts,
) (*formatter.BulkExportResult, error) {
	if opts.Format == "" {
		opts.Format = "json"
	}
	if !slices.Contains([]string{"json", "csv", "markdown", "txt"}, opts.Format) {
		return nil, fmt.Errorf("unsupported export format %q", opts.Format)
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("spots_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &formatter.BulkExportResult{
		TotalPlaylists:  len(ids),
		OutputDirectory: opts.OutputDir,
		Results:         make([]formatter.PlaylistExportResult, 0, len(ids)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan PlaylistExportJob, len(ids))
	results := make(chan formatter.PlaylistExportResult, len(ids))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, jobs, results, opts)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(jobs)
		e.sendProgress(prog, fetchingPlaylistsUpdate(1, len(ids)))
		for i, playlistID := range ids {
			if err := limiter.Wait(ctx); err != nil {
				return
			}

			playlist, tracks, err := e.lib.GetPlaylistTracks(ctx, playlistID)
			if err != nil {
				results <- formatter.PlaylistExportResult{
					PlaylistID:   playlistID,
					PlaylistName: fmt.Sprintf("Unknown (%s)", playlistID),
					Success:      false,
					Error:        fmt.Errorf("failed to read playlist: %w", err),
				}
				continue
			}

			jobs <- PlaylistExportJob{
				PlaylistID: playlistID,
				Export:     &models.PlaylistExport{Playlist: playlist, Tracks: tracks},
			}

			e.sendProgress(prog, exportingPlaylistUpdate(i+1, len(ids), playlist.Name))
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Success {
			result.SuccessfulExports++
			e.sendProgress(prog, exportCompletedUpdate(completed, len(ids), res.PlaylistName, len(res.Files)))
		} else {
			result.FailedExports++
			e.sendProgress(prog, exportFailedUpdate(completed, len(ids), res.PlaylistName, res.Error))
		}
	}

	order := make(map[string]int, len(ids))
	for i, id := range ids {
		order[id] = i
	}
	slices.SortStableFunc(result.Results, func(a, b formatter.PlaylistExportResult) int {
		return order[a.PlaylistID] - order[b.PlaylistID]
	})

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("export interrupted: %w", err)
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := formatter.WriteBulkExportManifest(result, opts.Format, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath

	e.logger.Info("export finished",
		"format", opts.Format,
		"dir", opts.OutputDir,
		"succeeded", result.SuccessfulExports,
		"failed", result.FailedExports,
	)
	return result, nil
}

// exportWorker is a worker goroutine that exports playlists from the jobs channel.
func (e *LibraryEngine) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan PlaylistExportJob,
	results chan<- formatter.PlaylistExportResult,
	opts BulkExportOpts,
) {
	defer wg.Done()

	for job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		results <- e.exportSinglePlaylist(job, opts)
	}
}

// exportSinglePlaylist exports a single playlist to the appropriate format.
func (e *LibraryEngine) exportSinglePlaylist(j PlaylistExportJob, opts BulkExportOpts) formatter.PlaylistExportResult {
	result := formatter.PlaylistExportResult{
		PlaylistID:   j.PlaylistID,
		PlaylistName: j.Export.Playlist.Name,
		Success:      false,
		Files:        []string{},
	}
	base := fileBase(j.Export.Playlist.ID)

	switch opts.Format {
	case "csv":
		baseFilepath := filepath.Join(opts.OutputDir, base)
		csvRes, err := formatter.WriteCSVExport(j.Export, baseFilepath)
		if err != nil {
			result.Error = fmt.Errorf("CSV export failed: %w", err)
			return result
		}
		result.Files = []string{csvRes.TracksFile, csvRes.MetadataFile}
	case "markdown":
		outputDir := filepath.Join(opts.OutputDir, base)
		mdRes, err := formatter.WriteMarkdownExport(j.Export, outputDir)
		if err != nil {
			result.Error = fmt.Errorf("markdown export failed: %w", err)
			return result
		}
		for _, w := range mdRes.Warnings {
			e.logger.Warn(w, "playlist", j.PlaylistID)
		}
		result.Files = mdRes.Files
	case "txt":
		txtPath := filepath.Join(opts.OutputDir, base+"_tracks.txt")
		path, err := formatter.WriteTextExport(j.Export, txtPath)
		if err != nil {
			result.Error = fmt.Errorf("text export failed: %w", err)
			return result
		}
		result.Files = []string{path}
	default:
		jsonPath := filepath.Join(opts.OutputDir, base+".json")
		path, err := formatter.WriteJSONExport(j.Export, jsonPath)
		if err != nil {
			result.Error = fmt.Errorf("JSON export failed: %w", err)
			return result
		}
		result.Files = []string{path}
	}
	result.Success = true
	return result
}

// fileBase makes a playlist id safe to use as a file name.
func fileBase(id string) string {
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(id)
}
