package profile

import (
	"io"
	"os"
	"sync"
	"sync/atomic"

	"codeberg.org/mutker/tdpctl/internal/errors"
	"codeberg.org/mutker/tdpctl/internal/logger"
)

// Store holds the active catalog. Loads are atomic: readers see either the
// previous or the new catalog, never a partial one.
type Store struct {
	current atomic.Pointer[Catalog]
	loadMu  sync.Mutex
	log     logger.Logger

	subMu sync.Mutex
	subs  []chan struct{}
}

// NewStore returns a store with an empty catalog.
func NewStore(log logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}

	s := &Store{log: log}
	s.current.Store(&Catalog{byName: map[string]Profile{}, options: DefaultOptions})

	return s
}

// Load parses r and, if valid, replaces the active catalog. On error the
// previous catalog stays active.
func (s *Store) Load(r io.Reader) (*Catalog, error) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	c, err := ParseCatalog(r)
	if err != nil {
		s.log.Warn().Err(err).Msg("Catalog rejected, keeping previous catalog")
		return nil, err
	}

	s.current.Store(c)
	s.log.Info().
		Int("profiles", len(c.profiles)).
		Int("triggers", len(c.triggers)).
		Int("devices", len(c.devices)).
		Str("default", c.defaultName).
		Msg("Catalog loaded")
	s.notify()

	return c, nil
}

// LoadFile loads the catalog at path.
func (s *Store) LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("Catalog unreadable, keeping previous catalog")
		return nil, errors.New().Wrap(ErrReadCatalog, err)
	}
	defer f.Close()

	return s.Load(f)
}

// Catalog returns the active catalog.
func (s *Store) Catalog() *Catalog {
	return s.current.Load()
}

// Resolve looks name up in the active catalog.
func (s *Store) Resolve(name string) (Profile, bool) {
	return s.Catalog().Resolve(name)
}

// Default returns the default profile of the active catalog.
func (s *Store) Default() (Profile, bool) {
	return s.Catalog().Default()
}

// CapabilityFor returns the capability of deviceID in the active catalog.
func (s *Store) CapabilityFor(deviceID string) DeviceCapability {
	return s.Catalog().CapabilityFor(deviceID)
}

// Match matches image against the active catalog's triggers.
func (s *Store) Match(image string) (Trigger, bool) {
	return s.Catalog().Match(image)
}

// Subscribe returns a channel signalled after every successful load.
// Signals coalesce; a slow reader sees one pending signal.
func (s *Store) Subscribe() <-chan struct{} {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	ch := make(chan struct{}, 1)
	s.subs = append(s.subs, ch)

	return ch
}

func (s *Store) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
