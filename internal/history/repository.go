package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/tdpctl/internal/errors"
	"codeberg.org/mutker/tdpctl/internal/logger"
	_ "github.com/mattn/go-sqlite3"
	"k8s.io/utils/clock"
)

type repository struct {
	db     *sql.DB
	logger logger.Logger
	cfg    Config

	mu     sync.Mutex
	buffer []Transition

	flushTicker   clock.Ticker
	shutdownChan  chan struct{}
	flushDoneChan chan struct{}
	closeOnce     sync.Once
	closeErr      error
}

// NewRepository opens (or creates) the journal database. Transitions are
// buffered and written in batches of cfg.BatchSize or every
// cfg.BatchTimeout, whichever comes first; a zero batch size writes every
// record immediately.
func NewRepository(cfg Config, clk clock.WithTicker, log logger.Logger) (Repository, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	if log == nil {
		log = logger.Nop()
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.DBPath,
			Error: err.Error(),
		})
	}

	dsn := cfg.DBPath + "?_journal=WAL&_auto_vacuum=2"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}

	if err := ValidateAndUpdateSchema(db, cfg.backupDir(), log); err != nil {
		db.Close()
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	log.Info().
		Str("path", cfg.DBPath).
		Int("schema_version", SchemaVersion).
		Int("batch_size", cfg.BatchSize).
		Dur("batch_timeout", cfg.BatchTimeout).
		Msg("History repository initialized")

	repo := &repository{
		db:            db,
		logger:        log,
		cfg:           cfg,
		buffer:        make([]Transition, 0, cfg.BatchSize),
		shutdownChan:  make(chan struct{}),
		flushDoneChan: make(chan struct{}),
	}

	if cfg.BatchSize > 0 && cfg.BatchTimeout > 0 {
		repo.flushTicker = clk.NewTicker(cfg.BatchTimeout)
		go repo.flusher()
	} else {
		close(repo.flushDoneChan)
	}

	return repo, nil
}

func (r *repository) Record(t Transition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buffer = append(r.buffer, t)

	if len(r.buffer) >= r.cfg.BatchSize {
		return r.flush()
	}

	return nil
}

// Recent returns up to limit transitions, newest first. Buffered records are
// flushed first so the result is complete.
func (r *repository) Recent(ctx context.Context, limit int) ([]Transition, error) {
	errFactory := errors.New()

	r.mu.Lock()
	err := r.flush()
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, recentTransitionsSQL, limit)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var (
			t                Transition
			ts               int64
			manual, degraded int
			sustained, fast  int64
			slow, skinTemp   int64
		)
		if err := rows.Scan(&ts, &t.Generation, &t.Phase, &t.Profile, &t.Trigger,
			&manual, &degraded, &t.Err, &sustained, &fast, &slow, &skinTemp); err != nil {
			return nil, errFactory.Wrap(ErrStorageAccess, err)
		}

		t.Timestamp = time.UnixMilli(ts)
		t.Manual, t.Degraded = manual == 1, degraded == 1
		t.Sustained, t.Fast, t.Slow, t.SkinTemp = uint32(sustained), uint32(fast), uint32(slow), uint32(skinTemp)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	return out, nil
}

func (r *repository) Close() error {
	r.closeOnce.Do(func() {
		close(r.shutdownChan)
		<-r.flushDoneChan

		r.mu.Lock()
		err := r.flush()
		r.mu.Unlock()
		if err != nil {
			r.logger.Warn().Err(err).Msg("Dropping unflushed transitions")
		}

		if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			r.closeErr = errors.New().WithData(ErrStorageClose, struct {
				Phase string
				Error string
			}{
				Phase: "checkpoint_wal",
				Error: err.Error(),
			})
			r.db.Close()
			return
		}

		if err := r.db.Close(); err != nil {
			r.closeErr = errors.New().WithData(ErrStorageClose, struct {
				Phase string
				Error string
			}{
				Phase: "close_database",
				Error: err.Error(),
			})
			return
		}

		r.logger.Info().Msg("History repository closed")
	})

	return r.closeErr
}

func (r *repository) flusher() {
	defer close(r.flushDoneChan)
	defer r.flushTicker.Stop()

	for {
		select {
		case <-r.flushTicker.C():
			r.mu.Lock()
			if err := r.flush(); err != nil {
				r.logger.Warn().Err(err).Msg("Periodic history flush failed")
			}
			r.mu.Unlock()
		case <-r.shutdownChan:
			return
		}
	}
}

// flush writes the buffer in one transaction. The caller holds r.mu. On
// failure the buffer is kept for the next attempt.
func (r *repository) flush() error {
	if len(r.buffer) == 0 {
		return nil
	}

	errFactory := errors.New()

	tx, err := r.db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	stmt, err := tx.Prepare(insertTransitionSQL)
	if err != nil {
		if err := tx.Rollback(); err != nil {
			r.logger.Error().Err(err).Msg("Failed to roll back transaction")
		}
		return errFactory.Wrap(ErrTransactionFailed, err)
	}
	defer stmt.Close()

	for _, t := range r.buffer {
		values := []interface{}{
			t.Timestamp.UnixMilli(),
			int64(t.Generation),
			t.Phase,
			t.Profile,
			t.Trigger,
			boolToInt(t.Manual),
			boolToInt(t.Degraded),
			t.Err,
			int64(t.Sustained),
			int64(t.Fast),
			int64(t.Slow),
			int64(t.SkinTemp),
		}

		if _, err := stmt.Exec(values...); err != nil {
			if err := tx.Rollback(); err != nil {
				r.logger.Error().Err(err).Msg("Failed to roll back transaction")
			}
			return errFactory.Wrap(ErrTransactionFailed, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	r.logger.Debug().Int("records", len(r.buffer)).Msg("Flushed transitions to database")
	r.buffer = r.buffer[:0]

	return nil
}
