// Package baseline persists the best run of each repetition test so later
// runs can be compared against it.
//
// The file format is one entry per line:
//
//	test:targetBytes:minSeconds:unixTimestamp
//
// Blank lines and lines starting with '#' are ignored. Entries are written
// sorted by test name, then target size.
package baseline

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	// ErrInvalidEntry is returned by Import for a malformed line.
	ErrInvalidEntry = errors.New("perfaware/baseline: invalid entry")

	// ErrInvalidName is returned for test names that cannot be written to a
	// baseline file.
	ErrInvalidName = errors.New("perfaware/baseline: invalid test name")
)

// Key identifies one measured operation.
type Key struct {
	Test        string
	TargetBytes uint64
}

// Entry is the best known run for a Key.
type Entry struct {
	Key        Key
	MinSeconds float64
	Timestamp  time.Time
}

// Store holds baseline entries. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries map[Key]Entry
}

// New returns an empty store.
func New() *Store {
	return &Store{entries: make(map[Key]Entry)}
}

// Store adds or replaces the entry for e.Key.
func (s *Store) Store(e Entry) error {
	if err := validName(e.Key.Test); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[e.Key] = e

	return nil
}

// Record stores a run if it beats the current entry for k, or if there is
// none. It reports whether the entry changed.
func (s *Store) Record(k Key, minSeconds float64, at time.Time) (bool, error) {
	if err := validName(k.Test); err != nil {
		return false, err
	}

	if minSeconds <= 0 {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.entries[k]; ok && prev.MinSeconds <= minSeconds {
		return false, nil
	}

	s.entries[k] = Entry{Key: k, MinSeconds: minSeconds, Timestamp: at}

	return true, nil
}

// Lookup returns the entry for k.
func (s *Store) Lookup(k Key) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[k]

	return e, ok
}

// Compare returns the relative change of minSeconds against the stored entry,
// e.g. 0.05 for a run 5% slower than the baseline.
func (s *Store) Compare(k Key, minSeconds float64) (float64, bool) {
	e, ok := s.Lookup(k)
	if !ok || e.MinSeconds <= 0 {
		return 0, false
	}

	return (minSeconds - e.MinSeconds) / e.MinSeconds, true
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// Clear removes all entries.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[Key]Entry)
}

// Entries returns all entries in file order.
func (s *Store) Entries() []Entry {
	s.mu.RLock()

	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}

	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Test != out[j].Key.Test {
			return out[i].Key.Test < out[j].Key.Test
		}

		return out[i].Key.TargetBytes < out[j].Key.TargetBytes
	})

	return out
}

// Export writes all entries to w.
func (s *Store) Export(w io.Writer) error {
	bw := bufio.NewWriter(w)

	for _, e := range s.Entries() {
		_, err := fmt.Fprintf(bw, "%s:%d:%s:%d\n",
			e.Key.Test, e.Key.TargetBytes,
			strconv.FormatFloat(e.MinSeconds, 'g', -1, 64),
			e.Timestamp.Unix())
		if err != nil {
			return err
		}
	}

	return bw.Flush()
}

// Import merges the entries read from r into the store. Imported entries
// replace existing ones with the same key.
func (s *Store) Import(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		e, err := parseEntry(line)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}

		if err := s.Store(e); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
	}

	return scanner.Err()
}

func parseEntry(line string) (Entry, error) {
	parts := strings.Split(line, ":")
	if len(parts) != 4 {
		return Entry{}, fmt.Errorf("%w: want 4 fields, got %d", ErrInvalidEntry, len(parts))
	}

	target, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: target bytes: %w", ErrInvalidEntry, err)
	}

	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: seconds: %w", ErrInvalidEntry, err)
	}

	unix, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: timestamp: %w", ErrInvalidEntry, err)
	}

	return Entry{
		Key:        Key{Test: parts[0], TargetBytes: target},
		MinSeconds: seconds,
		Timestamp:  time.Unix(unix, 0),
	}, nil
}

func validName(name string) error {
	if name == "" || strings.ContainsAny(name, ":\n#") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	return nil
}

// Load reads a baseline file. A missing file yields an empty store.
func Load(filename string) (*Store, error) {
	s := New()

	f, err := os.Open(filename)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open baseline file: %w", err)
	}

	defer f.Close()

	if err := s.Import(f); err != nil {
		return nil, fmt.Errorf("failed to import baseline: %w", err)
	}

	return s, nil
}

// Save writes the store to filename, replacing it.
func (s *Store) Save(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create baseline file: %w", err)
	}

	if err := s.Export(file); err != nil {
		file.Close()
		return fmt.Errorf("failed to export baseline: %w", err)
	}

	return file.Close()
}
