package manifest

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Manifest is a keyed collection of entries that remembers insertion order,
// plus the version string of the file set it describes.
//
// A Manifest is not safe for concurrent mutation. The sync pipeline is its
// only writer and runs on a single goroutine.
type Manifest struct {
	Version string

	index   map[string]int // path -> position in entries
	entries []Entry
}

func New(version string, entries ...Entry) *Manifest {
	m := &Manifest{
		Version: version,
		index:   make(map[string]int, len(entries)),
		entries: make([]Entry, 0, len(entries)),
	}
	for _, e := range entries {
		m.Put(e)
	}
	return m
}

func (m *Manifest) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

func (m *Manifest) Get(path string) (Entry, bool) {
	if m == nil {
		return Entry{}, false
	}
	i, ok := m.index[path]
	if !ok {
		return Entry{}, false
	}
	return m.entries[i], true
}

func (m *Manifest) Has(path string) bool {
	_, ok := m.Get(path)
	return ok
}

// Put inserts e, or replaces the entry with the same path in place.
func (m *Manifest) Put(e Entry) {
	if m.index == nil {
		m.index = make(map[string]int)
	}
	if i, ok := m.index[e.Path]; ok {
		m.entries[i] = e
		return
	}
	m.index[e.Path] = len(m.entries)
	m.entries = append(m.entries, e)
}

// Delete removes path and reports whether it was present.
func (m *Manifest) Delete(path string) bool {
	i, ok := m.index[path]
	if !ok {
		return false
	}

	m.entries = append(m.entries[:i], m.entries[i+1:]...)
	delete(m.index, path)
	for j := i; j < len(m.entries); j++ {
		m.index[m.entries[j].Path] = j
	}
	return true
}

// Paths returns the keys in insertion order.
func (m *Manifest) Paths() []string {
	if m == nil {
		return nil
	}
	paths := make([]string, len(m.entries))
	for i, e := range m.entries {
		paths[i] = e.Path
	}
	return paths
}

// Entries returns a copy of the entries in insertion order.
func (m *Manifest) Entries() []Entry {
	if m == nil {
		return nil
	}
	return append([]Entry(nil), m.entries...)
}

func (m *Manifest) TotalSize() uint64 {
	var total uint64
	for _, e := range m.Entries() {
		total += e.Size
	}
	return total
}

func (m *Manifest) Clone() *Manifest {
	if m == nil {
		return New("")
	}
	return New(m.Version, m.entries...)
}

// Equal compares entries and their order. Versions are not compared.
func (m *Manifest) Equal(other *Manifest) bool {
	if m.Len() != other.Len() {
		return false
	}
	for i, e := range m.Entries() {
		if other.entries[i] != e {
			return false
		}
	}
	return true
}

// SerializeAll renders the file-list format: the entry count on the first
// line followed by one entry per line.
func (m *Manifest) SerializeAll() string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(m.Len()))
	for _, e := range m.Entries() {
		sb.WriteByte('\n')
		sb.WriteString(e.String())
	}
	return sb.String()
}

// ParseAll reads the file-list format and keeps going past damage: malformed
// entry lines are dropped and a count that disagrees with the number of
// entry lines is logged. Only an unreadable count header fails the parse.
func ParseAll(text string) (*Manifest, error) {
	return parseAll(text, false)
}

// ParseAllStrict is ParseAll without the tolerance: the first malformed line
// or a count mismatch is returned as an error.
func ParseAllStrict(text string) (*Manifest, error) {
	return parseAll(text, true)
}

// Salvage keeps the entry lines of a file list whose count header is
// unreadable. Damaged entry lines are dropped as in ParseAll.
func Salvage(text string) *Manifest {
	lines := splitLines(text)
	if len(lines) == 0 {
		return New("")
	}
	m, _ := parseBody(lines[1:], false)
	return m
}

func parseAll(text string, strict bool) (*Manifest, error) {
	lines := splitLines(text)
	if len(lines) == 0 {
		return New(""), nil
	}

	header := strings.TrimSpace(lines[0])
	count, err := strconv.Atoi(header)
	if err != nil || count < 0 {
		return nil, &LineError{Line: 1, Text: lines[0], Err: ErrMalformedHeader}
	}

	body := lines[1:]
	m, err := parseBody(body, strict)
	if err != nil {
		return nil, err
	}

	if lineCount := nonEmpty(body); lineCount != count {
		if strict {
			return nil, fmt.Errorf("%w: header says %d, found %d lines", ErrCountMismatch, count, lineCount)
		}
		slog.Warn("manifest count mismatch", "header", count, "lines", lineCount)
	}

	return m, nil
}

// parseBody reads the entry lines that follow the count header. Capacity
// comes from the lines actually present, never from the header.
func parseBody(body []string, strict bool) (*Manifest, error) {
	m := New("")
	m.entries = make([]Entry, 0, len(body))

	for i, line := range body {
		if line == "" {
			continue
		}
		e, err := ParseEntry(line)
		if err != nil {
			lineErr := &LineError{Line: i + 2, Text: line, Err: err}
			if strict {
				return nil, lineErr
			}
			slog.Warn("manifest dropped line", "line", lineErr.Line, "error", err)
			continue
		}
		m.Put(e)
	}
	return m, nil
}

func splitLines(text string) []string {
	text = strings.TrimRight(text, "\r\n")
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

func nonEmpty(lines []string) int {
	n := 0
	for _, l := range lines {
		if l != "" {
			n++
		}
	}
	return n
}
