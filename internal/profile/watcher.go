package profile

import (
	"context"
	"path/filepath"
	"time"

	"codeberg.org/mutker/tdpctl/internal/errors"
	"codeberg.org/mutker/tdpctl/internal/logger"
	"github.com/fsnotify/fsnotify"
	"k8s.io/utils/clock"
)

const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads the catalog file into a Store when it changes on disk.
// The parent directory is watched so editors that replace the file by
// rename are picked up.
type Watcher struct {
	store    *Store
	path     string
	debounce time.Duration
	clock    clock.Clock
	log      logger.Logger
}

// NewWatcher returns a watcher for the catalog at path.
func NewWatcher(store *Store, path string, log logger.Logger) *Watcher {
	if log == nil {
		log = logger.Nop()
	}

	return &Watcher{
		store:    store,
		path:     filepath.Clean(path),
		debounce: DefaultDebounce,
		clock:    clock.RealClock{},
		log:      log,
	}
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	errFactory := errors.New()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errFactory.Wrap(ErrWatchFailed, err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return errFactory.Wrap(ErrWatchFailed, err)
	}

	w.log.Info().Str("path", w.path).Msg("Watching catalog for changes")

	var (
		timer   clock.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}

			w.log.Debug().Str("op", ev.Op.String()).Msg("Catalog changed")

			if timer == nil {
				timer = w.clock.NewTimer(w.debounce)
			} else {
				timer.Stop()
				timer.Reset(w.debounce)
			}
			pending = timer.C()

		case <-pending:
			pending = nil
			// A failed load keeps the previous catalog; the store logs it.
			_, _ = w.store.LoadFile(w.path)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("Catalog watcher error")
		}
	}
}
