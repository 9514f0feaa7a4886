package theme

import (
	"errors"

	"pkt.systems/pslog"

	"webterm/internal/storage"
)

// DefaultKey is the storage key the active theme name is saved under.
const DefaultKey = "webterm-theme"

// Default is the theme used when nothing valid has been saved.
const Default = "dark"

// Persister saves and loads the active theme name.
type Persister interface {
	GetItem(key string) (string, error)
	SetItem(key, value string) error
}

// Applier is told about every activation, including the one at startup.
type Applier func(Theme)

// Store tracks the active theme. Exactly one theme is active at a time.
type Store struct {
	current  Theme
	persist  Persister
	key      string
	appliers []Applier
	log      pslog.Logger
}

// NewStore returns a store with the default theme active. p may be nil.
func NewStore(p Persister, log pslog.Logger) *Store {
	t, _ := Lookup(Default)
	return &Store{current: t, persist: p, key: DefaultKey, log: log}
}

// OnChange registers an applier. Appliers run in registration order.
func (s *Store) OnChange(a Applier) {
	s.appliers = append(s.appliers, a)
}

// Current returns the active theme.
func (s *Store) Current() Theme { return s.current }

// Set activates the named theme, persists the choice and notifies appliers.
// Unknown names are ignored and leave the active theme unchanged.
func (s *Store) Set(name string) bool {
	t, ok := Lookup(name)
	if !ok {
		return false
	}
	s.current = t
	if s.persist != nil {
		if err := s.persist.SetItem(s.key, name); err != nil && s.log != nil {
			s.log.Warn("failed to save theme", "theme", name, "err", err)
		}
	}
	for _, apply := range s.appliers {
		apply(t)
	}
	return true
}

// Cycle activates the next theme in the fixed order.
func (s *Store) Cycle() Theme {
	next := Next(s.current.Name)
	s.Set(next.Name)
	return s.current
}

// Load activates the saved theme, falling back to fallback (or Default when
// fallback is unknown) if nothing valid was saved.
func (s *Store) Load(fallback string) Theme {
	if _, ok := Lookup(fallback); !ok {
		fallback = Default
	}
	name := fallback
	if s.persist != nil {
		saved, err := s.persist.GetItem(s.key)
		switch {
		case err == nil && saved != "":
			name = saved
		case err != nil && !errors.Is(err, storage.ErrNotFound) && s.log != nil:
			s.log.Warn("failed to load theme", "err", err)
		}
	}
	if !s.Set(name) {
		s.Set(fallback)
	}
	return s.current
}
