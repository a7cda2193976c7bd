package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/desertthunder/spots/internal/models"
	"github.com/desertthunder/spots/internal/shared"
)

// setupTestEngine opens an in-memory store migrated to the latest schema.
func setupTestEngine(t *testing.T) *Engine {
	t.Helper()

	e, err := Open(context.Background(), Options{Path: ":memory:", Name: "spots-test", Version: 1})
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func expectKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	if KindOf(err) != kind {
		t.Fatalf("expected %s, got %v", kind, err)
	}
}

func TestOpen(t *testing.T) {
	t.Run("Ready", func(t *testing.T) {
		e := setupTestEngine(t)

		if !e.IsReady() {
			t.Error("store should be ready after open")
		}

		state := e.State()
		if state.Name != "spots-test" || state.SchemaVersion != 1 || !state.IsReady {
			t.Errorf("unexpected state %+v", state)
		}
	})

	t.Run("Catalog", func(t *testing.T) {
		e := setupTestEngine(t)

		tc := []struct {
			table   string
			keyPath string
			index   string
		}{
			{table: models.UsersTable, keyPath: "username", index: "idx_users_isAuthenticated"},
			{table: models.PlaylistsTable, keyPath: "id", index: "idx_playlists_createdBy"},
			{table: models.TracksTable, keyPath: "id", index: "idx_tracks_src"},
		}

		for _, tt := range tc {
			t.Run(tt.table, func(t *testing.T) {
				info, ok := e.Catalog().Table(tt.table)
				if !ok {
					t.Fatalf("table %s missing from catalog", tt.table)
				}
				if info.KeyPath != tt.keyPath {
					t.Errorf("expected key path %s, got %s", tt.keyPath, info.KeyPath)
				}
				if _, ok := info.Indexes[tt.index]; !ok {
					t.Errorf("expected index %s", tt.index)
				}
			})
		}
	})

	t.Run("Unavailable Version", func(t *testing.T) {
		_, err := Open(context.Background(), Options{Path: ":memory:", Version: 2})
		expectKind(t, err, KindSchemaError)
	})
}

func TestTable(t *testing.T) {
	ctx := context.Background()

	t.Run("Create And Read", func(t *testing.T) {
		e := setupTestEngine(t)
		tracks := Tracks(e)

		track := &models.Track{ID: "A-0", Src: "a.mp3", Title: "A", Artist: "X"}
		if err := tracks.Create(ctx, track); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}

		got, err := tracks.Read(ctx, "A-0")
		if err != nil {
			t.Fatalf("failed to read track: %v", err)
		}
		if *got != *track {
			t.Errorf("expected %+v, got %+v", track, got)
		}
	})

	t.Run("Read Missing", func(t *testing.T) {
		e := setupTestEngine(t)

		_, err := Tracks(e).Read(ctx, "nope")
		expectKind(t, err, KindNotFound)
		if !errors.Is(err, ErrNotFound) {
			t.Error("expected errors.Is to match ErrNotFound")
		}
	})

	t.Run("Duplicate Key", func(t *testing.T) {
		e := setupTestEngine(t)
		users := Users(e)

		if err := users.Create(ctx, &models.User{ID: "1", Username: "alice", PasswordHash: "h"}); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}

		err := users.Create(ctx, &models.User{ID: "2", Username: "alice", PasswordHash: "h"})
		expectKind(t, err, KindDuplicateKey)
	})

	t.Run("Unique Index", func(t *testing.T) {
		e := setupTestEngine(t)
		users := Users(e)

		if err := users.Create(ctx, &models.User{ID: "1", Username: "alice", PasswordHash: "h"}); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}

		err := users.Create(ctx, &models.User{ID: "1", Username: "bob", PasswordHash: "h"})
		expectKind(t, err, KindDuplicateKey)
	})

	t.Run("Invalid Record", func(t *testing.T) {
		e := setupTestEngine(t)

		err := Tracks(e).Create(ctx, &models.Track{ID: "A-0"})
		expectKind(t, err, KindSchemaError)
	})

	t.Run("Update", func(t *testing.T) {
		e := setupTestEngine(t)
		tracks := Tracks(e)

		track := &models.Track{ID: "A-0", Src: "a.mp3"}
		if err := tracks.Create(ctx, track); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}

		track.Title = "Renamed"
		if err := tracks.Update(ctx, "A-0", track); err != nil {
			t.Fatalf("failed to update track: %v", err)
		}

		got, _ := tracks.Read(ctx, "A-0")
		if got.Title != "Renamed" {
			t.Errorf("expected updated title, got %q", got.Title)
		}

		err := tracks.Update(ctx, "B-1", &models.Track{ID: "B-1", Src: "b.mp3"})
		expectKind(t, err, KindNotFound)

		err = tracks.Update(ctx, "A-0", &models.Track{ID: "B-1", Src: "b.mp3"})
		expectKind(t, err, KindSchemaError)
	})

	t.Run("Delete", func(t *testing.T) {
		e := setupTestEngine(t)
		tracks := Tracks(e)

		if err := tracks.Create(ctx, &models.Track{ID: "A-0", Src: "a.mp3"}); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}

		removed, err := tracks.Delete(ctx, "A-0")
		if err != nil {
			t.Fatalf("failed to delete track: %v", err)
		}
		if removed.Src != "a.mp3" {
			t.Errorf("expected deleted record to be returned, got %+v", removed)
		}

		_, err = tracks.Delete(ctx, "A-0")
		expectKind(t, err, KindNotFound)
	})

	t.Run("ReadAll Keeps Insertion Order", func(t *testing.T) {
		e := setupTestEngine(t)
		tracks := Tracks(e)

		for _, id := range []string{"c", "a", "b"} {
			if err := tracks.Create(ctx, &models.Track{ID: id, Src: id + ".mp3"}); err != nil {
				t.Fatalf("failed to create track %s: %v", id, err)
			}
		}

		all, err := tracks.ReadAll(ctx)
		if err != nil {
			t.Fatalf("failed to read tracks: %v", err)
		}
		if len(all) != 3 || all[0].ID != "c" || all[1].ID != "a" || all[2].ID != "b" {
			t.Errorf("unexpected order: %+v", all)
		}
	})

	t.Run("FindBy", func(t *testing.T) {
		e := setupTestEngine(t)
		users := Users(e)

		for _, u := range []*models.User{
			{ID: "1", Username: "alice", PasswordHash: "h", IsAuthenticated: true},
			{ID: "2", Username: "bob", PasswordHash: "h"},
		} {
			if err := users.Create(ctx, u); err != nil {
				t.Fatalf("failed to create user: %v", err)
			}
		}

		found, err := users.FindBy(ctx, "idx_users_isAuthenticated", true)
		if err != nil {
			t.Fatalf("failed to find users: %v", err)
		}
		if len(found) != 1 || found[0].Username != "alice" {
			t.Errorf("expected alice, got %+v", found)
		}

		byID, err := users.FindBy(ctx, "idx_users_id", "2")
		if err != nil || len(byID) != 1 || byID[0].Username != "bob" {
			t.Errorf("expected bob by id, got %+v (%v)", byID, err)
		}

		_, err = users.FindBy(ctx, "idx_users_email", "x")
		expectKind(t, err, KindSchemaError)
	})

	t.Run("Unknown Table", func(t *testing.T) {
		e := setupTestEngine(t)

		_, err := NewTable[*models.Track](e, "albums").ReadAll(ctx)
		expectKind(t, err, KindSchemaError)
	})
}

func TestTransactions(t *testing.T) {
	ctx := context.Background()

	t.Run("Multi Table Commit", func(t *testing.T) {
		e := setupTestEngine(t)

		err := e.Update(ctx, []string{models.TracksTable, models.PlaylistsTable}, func(tx *Tx) error {
			if err := Tracks(e).In(tx).Create(&models.Track{ID: "A-0", Src: "a.mp3"}); err != nil {
				return err
			}
			p := models.NewPlaylist("0", models.AllTracksPlaylistName, models.SystemUserID)
			p.TrackIDs = []string{"A-0"}
			return Playlists(e).In(tx).Create(p)
		})
		if err != nil {
			t.Fatalf("transaction failed: %v", err)
		}

		p, err := Playlists(e).Read(ctx, "0")
		if err != nil || len(p.TrackIDs) != 1 {
			t.Errorf("expected committed playlist with one track, got %+v (%v)", p, err)
		}
	})

	t.Run("Rollback On Error", func(t *testing.T) {
		e := setupTestEngine(t)
		sentinel := errors.New("stop")

		err := e.Update(ctx, []string{models.TracksTable}, func(tx *Tx) error {
			if err := Tracks(e).In(tx).Create(&models.Track{ID: "A-0", Src: "a.mp3"}); err != nil {
				return err
			}
			return sentinel
		})
		if !errors.Is(err, sentinel) {
			t.Fatalf("expected callback error to be returned unchanged, got %v", err)
		}

		_, err = Tracks(e).Read(ctx, "A-0")
		expectKind(t, err, KindNotFound)
	})

	t.Run("Out Of Scope Table", func(t *testing.T) {
		e := setupTestEngine(t)

		err := e.View(ctx, []string{models.TracksTable}, func(tx *Tx) error {
			_, err := Playlists(e).In(tx).ReadAll()
			return err
		})
		expectKind(t, err, KindSchemaError)
	})

	t.Run("Write In Read Only", func(t *testing.T) {
		e := setupTestEngine(t)

		err := e.View(ctx, []string{models.TracksTable}, func(tx *Tx) error {
			return Tracks(e).In(tx).Create(&models.Track{ID: "A-0", Src: "a.mp3"})
		})
		expectKind(t, err, KindTransactionAborted)
	})

	t.Run("Empty Scope", func(t *testing.T) {
		e := setupTestEngine(t)

		err := e.View(ctx, nil, func(tx *Tx) error { return nil })
		expectKind(t, err, KindSchemaError)
	})

	t.Run("NextSequence", func(t *testing.T) {
		e := setupTestEngine(t)

		var got []int
		for range 3 {
			err := e.Update(ctx, []string{models.TracksTable}, func(tx *Tx) error {
				n, err := tx.NextSequence(models.TracksTable)
				got = append(got, n)
				return err
			})
			if err != nil {
				t.Fatalf("failed to advance sequence: %v", err)
			}
		}
		if got[0] != 0 || got[1] != 1 || got[2] != 2 {
			t.Errorf("expected 0,1,2 got %v", got)
		}

		err := e.Update(ctx, []string{models.PlaylistsTable}, func(tx *Tx) error {
			n, err := tx.NextSequence(models.PlaylistsTable)
			if err == nil && n != 0 {
				t.Errorf("a fresh sequence should start at 0, got %d", n)
			}
			return err
		})
		if err != nil {
			t.Fatalf("failed to advance sequence: %v", err)
		}
	})

	t.Run("Concurrent Sequences Are Distinct", func(t *testing.T) {
		e := setupTestEngine(t)

		const workers = 8
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			seen = make(map[int]bool)
		)
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := e.Update(ctx, []string{models.TracksTable}, func(tx *Tx) error {
					n, err := tx.NextSequence(models.TracksTable)
					if err != nil {
						return err
					}
					mu.Lock()
					seen[n] = true
					mu.Unlock()
					return nil
				})
				if err != nil {
					t.Errorf("sequence failed: %v", err)
				}
			}()
		}
		wg.Wait()

		if len(seen) != workers {
			t.Errorf("expected %d distinct values, got %d", workers, len(seen))
		}
	})
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	e, err := Open(ctx, Options{Path: ":memory:", Version: 1})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	if err := e.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
	if e.IsReady() {
		t.Error("closed store should not be ready")
	}

	_, err = Tracks(e).ReadAll(ctx)
	expectKind(t, err, KindNotReady)

	expectKind(t, e.Close(), KindNotReady)
}

func TestMigrations(t *testing.T) {
	ctx := context.Background()

	t.Run("loadMigrations", func(t *testing.T) {
		migrations, err := loadMigrations()
		if err != nil {
			t.Fatalf("failed to load migrations: %v", err)
		}

		if len(migrations) == 0 {
			t.Fatal("expected at least one migration")
		}

		for i, m := range migrations {
			if m.Version != i+1 {
				t.Errorf("expected version %d at position %d, got %d", i+1, i, m.Version)
			}
			if m.Up == "" || m.Down == "" {
				t.Errorf("migration version %d missing SQL", m.Version)
			}
		}

		if migrations[0].Name != "create_tables" {
			t.Errorf("expected first migration to be create_tables, got %q", migrations[0].Name)
		}
	})

	t.Run("Reopen Keeps Records", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "spots.db")

		e, err := Open(ctx, Options{Path: path, Version: 1})
		if err != nil {
			t.Fatalf("failed to open store: %v", err)
		}
		if err := Users(e).Create(ctx, &models.User{ID: "1", Username: "alice", PasswordHash: "h"}); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}
		e.Close()

		e, err = Open(ctx, Options{Path: path, Version: 1})
		if err != nil {
			t.Fatalf("failed to reopen store: %v", err)
		}
		defer e.Close()

		if _, err := Users(e).Read(ctx, "alice"); err != nil {
			t.Errorf("expected user to survive reopen: %v", err)
		}

		applied, err := e.Migrations().Applied(ctx)
		if err != nil {
			t.Fatalf("failed to list applied migrations: %v", err)
		}
		if len(applied) != 1 {
			t.Errorf("expected migration to be applied once, got %d", len(applied))
		}
	})

	t.Run("Reapply Fails Loudly", func(t *testing.T) {
		e := setupTestEngine(t)

		err := e.Migrations().Reapply(ctx, 1)
		expectKind(t, err, KindSchemaError)

		if _, ok := e.Catalog().Table(models.UsersTable); !ok {
			t.Error("catalog should be intact after failed reapply")
		}
	})

	t.Run("Stored Version Newer", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "spots.db")

		e, err := Open(ctx, Options{Path: path, Version: 1})
		if err != nil {
			t.Fatalf("failed to open store: %v", err)
		}
		e.Close()

		db, err := shared.NewDatabase(path)
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		if _, err := db.Exec("INSERT INTO schema_migrations (version, name) VALUES (2, 'future')"); err != nil {
			t.Fatalf("failed to record future migration: %v", err)
		}
		db.Close()

		_, err = Open(ctx, Options{Path: path, Version: 1})
		expectKind(t, err, KindSchemaError)
	})

	t.Run("Rollback", func(t *testing.T) {
		db, err := shared.NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()
		shared.ConfigureDatabase(db, 1, 1)

		runner, err := NewMigrationRunner(db, nil)
		if err != nil {
			t.Fatalf("failed to create runner: %v", err)
		}
		if runner.State() != Uninitialized {
			t.Errorf("expected uninitialized, got %s", runner.State())
		}

		if err := runner.Run(ctx, runner.Latest()); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
		if runner.State() != Ready {
			t.Errorf("expected ready, got %s", runner.State())
		}

		version, err := runner.Rollback(ctx)
		if err != nil {
			t.Fatalf("failed to rollback: %v", err)
		}
		if version != 1 {
			t.Errorf("expected to roll back version 1, got %d", version)
		}

		if _, err := db.Exec("SELECT 1 FROM users LIMIT 1"); err == nil {
			t.Error("users table should be gone after rollback")
		}

		if _, err := runner.Rollback(ctx); KindOf(err) != KindSchemaError {
			t.Errorf("expected schema error with nothing to roll back, got %v", err)
		}

		if err := runner.Run(ctx, 1); err != nil {
			t.Fatalf("failed to re-run migrations after rollback: %v", err)
		}
	})
}
