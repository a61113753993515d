package tasks

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/repositories"
	"github.com/desertthunder/tunebox/internal/shared"
	"github.com/dhowden/tag"
	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 2 * time.Second

// audioTypes maps the file extensions the scanner indexes to their MIME type.
var audioTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".flac": "audio/flac",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/opus",
	".wav":  "audio/wav",
	".wma":  "audio/x-ms-wma",
	".aiff": "audio/aiff",
	".dsf":  "audio/dsf",
}

// IsAudioFile reports whether the scanner indexes files named like name.
func IsAudioFile(name string) bool {
	_, ok := audioTypes[strings.ToLower(filepath.Ext(name))]
	return ok
}

// ScannerOpts configures a [Scanner].
type ScannerOpts struct {
	Library  *repositories.LibraryRepository
	Paths    []string
	Debounce time.Duration // quiet period before a watched change triggers a scan
	Logger   *log.Logger
}

// Scanner keeps the library index in sync with the audio files under the library paths.
type Scanner struct {
	library  *repositories.LibraryRepository
	paths    []string
	debounce time.Duration
	logger   *log.Logger
}

// FileError is a file the scanner could not index.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }

// ScanResult counts what a scan changed.
type ScanResult struct {
	Added     int
	Updated   int
	Unchanged int
	Removed   int
	Failed    []FileError
}

func NewScanner(opts ScannerOpts) (*Scanner, error) {
	if opts.Library == nil {
		return nil, fmt.Errorf("%w: scanner needs a library repository", shared.ErrInvalidInput)
	}
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	paths := make([]string, 0, len(opts.Paths))
	for _, p := range opts.Paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("%w: library path %q: %w", shared.ErrInvalidInput, p, err)
		}
		if !slices.Contains(paths, abs) {
			paths = append(paths, abs)
		}
	}

	return &Scanner{
		library:  opts.Library,
		paths:    paths,
		debounce: debounce,
		logger:   shared.WithLogger(logger, "component", "scanner"),
	}, nil
}

// Paths returns the absolute library paths.
func (s *Scanner) Paths() []string { return slices.Clone(s.paths) }

// Scan indexes new and changed audio files and drops files that are gone.
//
// A file is unchanged when its size and modification time match the index. A library path that
// does not exist is reported as failed and its index is left alone, so an unmounted volume does
// not empty the library.
func (s *Scanner) Scan(ctx context.Context, progress chan<- ProgressUpdate) (*ScanResult, error) {
	result := &ScanResult{}
	for i, root := range s.paths {
		send(progress, scanRootUpdate(i+1, len(s.paths), root))
		if err := s.scanRoot(ctx, root, result, progress); err != nil {
			return result, err
		}
	}

	s.logger.Info("scan complete",
		"added", result.Added, "updated", result.Updated, "unchanged", result.Unchanged,
		"removed", result.Removed, "failed", len(result.Failed))
	send(progress, scanCompleteUpdate(result))
	return result, nil
}

func (s *Scanner) scanRoot(ctx context.Context, root string, result *ScanResult, progress chan<- ProgressUpdate) error {
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		if err == nil {
			err = fmt.Errorf("not a directory")
		}
		s.logger.Warn("library path unavailable", "path", root, "error", err)
		result.Failed = append(result.Failed, FileError{Path: root, Err: err})
		return nil
	}

	indexed, err := s.library.IndexedFiles(root)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(indexed))
	step := 0
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			s.logger.Debug("skipping unreadable entry", "path", path, "error", err)
			result.Failed = append(result.Failed, FileError{Path: path, Err: err})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !IsAudioFile(path) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			result.Failed = append(result.Failed, FileError{Path: path, Err: err})
			return nil
		}
		seen[path] = true

		previous, known := indexed[path]
		if known && previous.Size == info.Size() && previous.ModTime.Unix() == info.ModTime().Unix() {
			result.Unchanged++
			return nil
		}

		track := readTrack(path, info, s.logger)
		if err := s.library.UpsertTrack(track); err != nil {
			result.Failed = append(result.Failed, FileError{Path: path, Err: err})
			return nil
		}
		if known {
			result.Updated++
		} else {
			result.Added++
		}
		step++
		send(progress, indexFileUpdate(step, path))
		return nil
	})
	if err != nil {
		return err
	}

	var missing []string
	for path, file := range indexed {
		if !seen[path] {
			missing = append(missing, file.ID)
		}
	}
	removed, err := s.library.DeleteTracks(missing...)
	if err != nil {
		return err
	}
	result.Removed += removed
	if removed > 0 {
		send(progress, removeMissingUpdate(removed, root))
	}
	return nil
}

// readTrack builds the index entry of an audio file. A file without readable tags is still
// indexed, titled after its file name.
func readTrack(path string, info fs.FileInfo, logger *log.Logger) *models.LibraryTrack {
	track := &models.LibraryTrack{
		Path:     path,
		MimeType: audioTypes[strings.ToLower(filepath.Ext(path))],
		Size:     info.Size(),
		ModTime:  info.ModTime(),
	}

	if meta, err := readTags(path); err != nil {
		logger.Debug("no tags", "path", path, "error", err)
	} else {
		track.Title = strings.TrimSpace(meta.Title())
		track.Artist = strings.TrimSpace(meta.Artist())
		track.AlbumArtist = strings.TrimSpace(meta.AlbumArtist())
		track.Album = strings.TrimSpace(meta.Album())
		track.Genre = strings.TrimSpace(meta.Genre())
		track.Year = meta.Year()
		track.TrackNumber, _ = meta.Track()
		track.DiscNumber, _ = meta.Disc()
	}

	if track.Title == "" {
		track.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return track
}

func readTags(path string) (tag.Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return tag.ReadFrom(f)
}

// Watch re-scans the library after audio files or folders under the library paths change. Bursts
// of events are coalesced into one scan once the library has been quiet for the debounce period.
// Watch returns nil when ctx is cancelled.
func (s *Scanner) Watch(ctx context.Context, progress chan<- ProgressUpdate) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	folders := 0
	for _, root := range s.paths {
		n, err := s.watchTree(watcher, root)
		if err != nil {
			s.logger.Warn("cannot watch library path", "path", root, "error", err)
			continue
		}
		folders += n
	}
	if folders == 0 {
		return fmt.Errorf("%w: no library path can be watched", shared.ErrInvalidInput)
	}
	s.logger.Info("watching library", "folders", folders)
	send(progress, watchingUpdate(folders))

	var rescan <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !s.relevant(watcher, event) {
				continue
			}
			s.logger.Debug("library changed", "path", event.Name, "op", event.Op)
			rescan = time.After(s.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", "error", err)

		case <-rescan:
			rescan = nil
			if _, err := s.Scan(ctx, progress); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("rescan failed", "error", err)
			}
		}
	}
}

// relevant reports whether event should trigger a scan. New folders are watched as they appear.
func (s *Scanner) relevant(watcher *fsnotify.Watcher, event fsnotify.Event) bool {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if _, err := s.watchTree(watcher, event.Name); err != nil {
				s.logger.Warn("cannot watch new folder", "path", event.Name, "error", err)
			}
			return true
		}
	}
	if IsAudioFile(event.Name) {
		return event.Op != fsnotify.Chmod
	}
	return event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}

// watchTree adds root and every non-hidden folder below it to watcher.
func (s *Scanner) watchTree(watcher *fsnotify.Watcher, root string) (int, error) {
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return fs.SkipDir
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return fs.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		count++
		return nil
	})
	return count, err
}
