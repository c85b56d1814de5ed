package config

import "sync/atomic"

// Store holds the published printer map. Readers get a consistent immutable
// snapshot; updates replace the whole map rather than mutating entries, so an
// in-flight request never observes a partial reload.
type Store struct {
	v atomic.Value // map[string]Printer
}

// NewStore publishes the initial printer map.
func NewStore(printers map[string]Printer) *Store {
	s := &Store{}
	s.Replace(printers)
	return s
}

// Get looks up a printer by id in the current snapshot.
func (s *Store) Get(id string) (Printer, bool) {
	p, ok := s.snapshot()[id]
	return p, ok
}

// Snapshot returns the current printer map. Callers must treat it as
// read-only.
func (s *Store) Snapshot() map[string]Printer {
	return s.snapshot()
}

// Len reports the number of configured printers.
func (s *Store) Len() int {
	return len(s.snapshot())
}

// Replace swaps in a new printer map.
func (s *Store) Replace(printers map[string]Printer) {
	if printers == nil {
		printers = map[string]Printer{}
	}
	s.v.Store(printers)
}

func (s *Store) snapshot() map[string]Printer {
	return s.v.Load().(map[string]Printer)
}
