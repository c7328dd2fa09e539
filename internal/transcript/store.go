// Package transcript holds finalized transcript lines and the live interim slot.
package transcript

import (
	"strings"
	"sync"
	"time"
)

// Line is one finalized recognition result. Lines are never mutated after Append.
type Line struct {
	ID        int
	Text      string
	Timestamp time.Time
}

// Snapshot is a consistent read-only view of the store.
type Snapshot struct {
	Lines   []Line
	Interim string
}

// Store is an append-only log of finalized lines plus one mutable interim slot.
type Store struct {
	mu      sync.RWMutex
	lines   []Line
	interim string
	nextID  int
}

// NewStore returns an empty store whose next line id is 0.
func NewStore() *Store {
	return &Store{}
}

// Append records trimmed text as a new line. Empty text after trimming is rejected.
func (s *Store) Append(text string, ts time.Time) (Line, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Line{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	line := Line{ID: s.nextID, Text: text, Timestamp: ts}
	s.nextID++
	s.lines = append(s.lines, line)
	return line, true
}

// SetInterim replaces the interim slot. Empty text means no speech in flight.
func (s *Store) SetInterim(text string) {
	s.mu.Lock()
	s.interim = text
	s.mu.Unlock()
}

// ClearAll empties the log and interim slot and restarts ids at 0.
func (s *Store) ClearAll() {
	s.mu.Lock()
	s.lines = nil
	s.interim = ""
	s.nextID = 0
	s.mu.Unlock()
}

// Len reports the number of finalized lines.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lines)
}

// Snapshot copies lines and interim under one lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lines := make([]Line, len(s.lines))
	copy(lines, s.lines)
	return Snapshot{Lines: lines, Interim: s.interim}
}
