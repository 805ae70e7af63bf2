package detect

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher re-runs detection whenever a candidate version file in the watched
// directory is created or rewritten, and emits each new result.
type Watcher struct {
	detector *Detector
	fs       *fsnotify.Watcher
	dir      string
	watched  map[string]bool
	events   chan Detection
	logger   zerolog.Logger
}

// NewWatcher builds a watcher over dir for the detector's tool.
func NewWatcher(detector *Detector, dir string, logger zerolog.Logger) (*Watcher, error) {
	files, err := detector.Candidates()
	if err != nil {
		return nil, err
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		fs.Close()
		return nil, err
	}
	if err := fs.Add(abs); err != nil {
		fs.Close()
		return nil, err
	}

	watched := make(map[string]bool, len(files))
	for _, file := range files {
		watched[file] = true
	}

	return &Watcher{
		detector: detector,
		fs:       fs,
		dir:      abs,
		watched:  watched,
		events:   make(chan Detection, 1),
		logger:   logger.With().Str("component", "detect-watch").Logger(),
	}, nil
}

// Detections is the stream of results. Closed when Run returns.
func (w *Watcher) Detections() <-chan Detection {
	return w.events
}

// Run blocks until ctx is cancelled or the underlying watcher fails. Each
// relevant filesystem event triggers a fresh walk from the watched directory.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.events)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fs.Events:
			if !ok {
				return ErrWatcherClosed
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !w.watched[filepath.Base(event.Name)] {
				continue
			}

			found, err := w.detector.DetectFrom(w.dir)
			if errors.Is(err, ErrNotDetected) {
				continue
			}
			if err != nil {
				w.logger.Warn().Err(err).Str("file", event.Name).Msg("Detection failed after change")
				continue
			}

			select {
			case w.events <- *found:
			case <-ctx.Done():
				return ctx.Err()
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return ErrWatcherClosed
			}
			w.logger.Warn().Err(err).Msg("Watcher error")
		}
	}
}

// Close releases the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
