package overlay

import (
	"context"
	"os"
	"path/filepath"

	"codeberg.org/mutker/tdpctl/internal/display"
	"codeberg.org/mutker/tdpctl/internal/errors"
	"codeberg.org/mutker/tdpctl/internal/logger"
)

// Writer keeps a text file in sync with the latest display snapshot for an
// on-screen display to read. The file is replaced atomically on every change
// and removed by Close.
type Writer struct {
	path   string
	log    logger.Logger
	latest display.Snapshot
	last   string
	failed bool
}

func NewWriter(path string, log logger.Logger) *Writer {
	if log == nil {
		log = logger.Nop()
	}
	return &Writer{path: path, log: log}
}

func (w *Writer) HandleUpdate(_ context.Context, u display.Update) {
	switch u.Kind {
	case display.KindState:
		w.latest.State, w.latest.HasState = u.State, true
	case display.KindSample:
		w.latest.Sample, w.latest.HasSample = u.Sample, true
	case display.KindStatus:
		w.latest.Status, w.latest.HasStatus = u.Status, true
	}

	text := Render(w.latest)
	if text == w.last {
		return
	}

	if err := w.write(text); err != nil {
		// Log once per failure streak; the overlay is best effort.
		if !w.failed {
			w.log.Warn().Err(err).Str("path", w.path).Msg("Failed to update overlay")
		}
		w.failed = true
		return
	}

	if w.failed {
		w.log.Info().Str("path", w.path).Msg("Overlay updates resumed")
	}
	w.failed = false
	w.last = text
}

func (w *Writer) write(text string) error {
	errFactory := errors.New()

	dir := filepath.Dir(w.path)
	tmp, err := os.CreateTemp(dir, ".overlay-*")
	if err != nil {
		return errFactory.Wrap(ErrWriteOverlay, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		return errFactory.Wrap(ErrWriteOverlay, err)
	}
	if err := tmp.Close(); err != nil {
		return errFactory.Wrap(ErrWriteOverlay, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return errFactory.Wrap(ErrWriteOverlay, err)
	}
	if err := os.Rename(tmp.Name(), w.path); err != nil {
		return errFactory.Wrap(ErrWriteOverlay, err)
	}

	return nil
}

// Close removes the overlay file if it was ever written.
func (w *Writer) Close() error {
	if w.last == "" {
		return nil
	}
	if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
		return errors.New().Wrap(ErrWriteOverlay, err)
	}
	return nil
}
