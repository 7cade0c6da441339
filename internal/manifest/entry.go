package manifest

import (
	"fmt"
	"strconv"
	"strings"
)

const fieldSep = "\t"

// Entry describes one versioned file. Entries are plain values: two entries
// are the same record when `==` holds.
type Entry struct {
	Path string
	Size uint64
	Hash string
}

// Matches reports whether other has the same content as e. Paths are not
// compared, callers look entries up by path first.
func (e Entry) Matches(other Entry) bool {
	return e.Size == other.Size && e.Hash == other.Hash
}

// String returns the tab separated on-disk form without a trailing newline.
func (e Entry) String() string {
	return e.Path + fieldSep + strconv.FormatUint(e.Size, 10) + fieldSep + e.Hash
}

// ParseEntry parses a single `path\tsize\thash` line.
func ParseEntry(line string) (Entry, error) {
	line = strings.TrimSuffix(line, "\r")

	fields := strings.Split(line, fieldSep)
	if len(fields) != 3 {
		return Entry{}, fmt.Errorf("%w: want 3 fields, got %d", ErrMalformedEntry, len(fields))
	}

	path := fields[0]
	if path == "" {
		return Entry{}, fmt.Errorf("%w: empty path", ErrMalformedEntry)
	}

	size, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: size %q", ErrMalformedEntry, fields[1])
	}

	return Entry{Path: path, Size: size, Hash: fields[2]}, nil
}
