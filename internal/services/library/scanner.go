// Package library keeps the song catalog in sync with a directory of
// audio files on disk.
package library

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"jukebox/internal/domain"
	"jukebox/internal/domain/ports"
	"jukebox/internal/metrics"
	"jukebox/internal/services/library/ffprobe"
)

var audioExtensions = map[string]struct{}{
	".mp3":  {},
	".flac": {},
	".ogg":  {},
	".opus": {},
	".m4a":  {},
	".wav":  {},
	".aac":  {},
}

// MetadataProber reads title, artist and duration from an audio file.
type MetadataProber interface {
	Probe(ctx context.Context, path string) (ffprobe.TrackInfo, error)
}

// Scanner walks the library directory and mirrors it into the song store.
// Files that fail probing are skipped, songs whose files vanished are
// removed.
type Scanner struct {
	dir      string
	songs    ports.SongStore
	prober   MetadataProber
	logger   *slog.Logger
	debounce time.Duration
}

type ScannerOption func(*Scanner)

// WithDebounce overrides the delay between a filesystem event and the
// rescan it triggers.
func WithDebounce(d time.Duration) ScannerOption {
	return func(s *Scanner) { s.debounce = d }
}

func NewScanner(dir string, songs ports.SongStore, prober MetadataProber, logger *slog.Logger, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		dir:      dir,
		songs:    songs,
		prober:   prober,
		logger:   logger,
		debounce: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan walks the directory once. New files are probed and upserted, songs
// whose paths no longer exist on disk are deleted.
func (s *Scanner) Scan(ctx context.Context) error {
	seen := make(map[string]struct{})

	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := audioExtensions[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}
		seen[path] = struct{}{}
		if upErr := s.upsertPath(ctx, path); upErr != nil {
			s.logger.Warn("skipping library file", "path", path, "error", upErr)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", s.dir, err)
	}

	known, err := s.songs.SongPaths(ctx)
	if err != nil {
		return err
	}
	for _, path := range known {
		if _, ok := seen[path]; ok {
			continue
		}
		if err := s.songs.DeleteSongByPath(ctx, path); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		s.logger.Info("removed vanished song", "path", path)
	}

	count, err := s.songs.CountSongs(ctx)
	if err != nil {
		return err
	}
	metrics.LibrarySongs.Set(float64(count))
	s.logger.Info("library scan complete", "dir", s.dir, "songs", count)
	return nil
}

func (s *Scanner) upsertPath(ctx context.Context, path string) error {
	// Already-known files keep their stored metadata. Probing every file
	// on each rescan would hammer ffprobe for nothing.
	if _, err := s.songs.SongByPath(ctx, path); err == nil {
		return nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	info, err := s.prober.Probe(ctx, path)
	if err != nil {
		return err
	}
	title := info.Title
	if title == "" {
		base := filepath.Base(path)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return s.songs.UpsertSong(ctx, domain.Song{
		ID:      uuid.NewString(),
		Path:    path,
		Title:   title,
		Artist:  info.Artist,
		Length:  info.Duration,
		AddedAt: time.Now().UTC(),
	})
}

// Watch rescans whenever files under the library directory change. It
// blocks until the context is cancelled.
func (s *Scanner) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	err = filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			// New subdirectories need their own watch.
			if event.Has(fsnotify.Create) {
				_ = watcher.Add(event.Name)
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(s.debounce, func() {
				if err := s.Scan(ctx); err != nil && !errors.Is(err, context.Canceled) {
					s.logger.Error("library rescan failed", "error", err)
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("library watcher error", "error", err)
		}
	}
}
