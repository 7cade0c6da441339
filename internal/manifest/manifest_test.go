package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleManifest() *Manifest {
	return New("1.2",
		Entry{Path: "b.txt", Size: 20, Hash: "h2"},
		Entry{Path: "a.txt", Size: 10, Hash: "h1"},
		Entry{Path: "c/d.bin", Size: 30, Hash: "h3"},
	)
}

func TestManifest_KeepsInsertionOrder(t *testing.T) {
	m := sampleManifest()
	assert.Equal(t, []string{"b.txt", "a.txt", "c/d.bin"}, m.Paths())
	assert.Equal(t, 3, m.Len())
	assert.Equal(t, uint64(60), m.TotalSize())
}

func TestManifest_PutReplacesInPlace(t *testing.T) {
	m := sampleManifest()
	m.Put(Entry{Path: "a.txt", Size: 11, Hash: "h1b"})

	assert.Equal(t, []string{"b.txt", "a.txt", "c/d.bin"}, m.Paths())
	e, ok := m.Get("a.txt")
	require.True(t, ok)
	assert.Equal(t, uint64(11), e.Size)
}

func TestManifest_Delete(t *testing.T) {
	m := sampleManifest()

	assert.True(t, m.Delete("b.txt"))
	assert.False(t, m.Delete("b.txt"))
	assert.Equal(t, []string{"a.txt", "c/d.bin"}, m.Paths())

	// index must follow the shifted entries
	e, ok := m.Get("c/d.bin")
	require.True(t, ok)
	assert.Equal(t, "h3", e.Hash)

	m.Put(Entry{Path: "b.txt", Size: 1, Hash: "x"})
	assert.Equal(t, []string{"a.txt", "c/d.bin", "b.txt"}, m.Paths())
}

func TestManifest_ZeroValueAndNil(t *testing.T) {
	var nilManifest *Manifest
	assert.Equal(t, 0, nilManifest.Len())
	assert.False(t, nilManifest.Has("a"))
	assert.Empty(t, nilManifest.Paths())

	var m Manifest
	m.Put(Entry{Path: "a", Size: 1, Hash: "h"})
	assert.True(t, m.Has("a"))
}

func TestManifest_CloneIsIndependent(t *testing.T) {
	m := sampleManifest()
	c := m.Clone()
	c.Delete("a.txt")

	assert.True(t, m.Has("a.txt"))
	assert.Equal(t, m.Version, c.Version)
}

func TestSerializeAll(t *testing.T) {
	m := sampleManifest()
	assert.Equal(t, "3\nb.txt\t20\th2\na.txt\t10\th1\nc/d.bin\t30\th3", m.SerializeAll())
	assert.Equal(t, "0", New("").SerializeAll())
}

func TestParseAll_RoundTrip(t *testing.T) {
	inputs := []string{
		"3\nb.txt\t20\th2\na.txt\t10\th1\nc/d.bin\t30\th3",
		"3\nb.txt\t20\th2\na.txt\t10\th1\nc/d.bin\t30\th3\n",
		"2\r\nx\t1\ta\r\ny\t2\tb\r\n",
		"0",
		"",
		// damaged input still round-trips to the same tolerant result
		"5\na.txt\t10\th1\nbroken line\nb.txt\tNaN\th2\nc.txt\t3\th3",
	}

	for _, text := range inputs {
		first, err := ParseAll(text)
		require.NoError(t, err, text)

		second, err := ParseAll(first.SerializeAll())
		require.NoError(t, err, text)

		assert.True(t, first.Equal(second), "round trip changed %q", text)
	}
}

func TestParseAll_ToleratesDamage(t *testing.T) {
	m, err := ParseAll("4\na.txt\t10\th1\nnot an entry\nb.txt\t20\th2")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, m.Paths())
}

func TestParseAll_DuplicatePathLastWins(t *testing.T) {
	m, err := ParseAll("2\na.txt\t10\th1\na.txt\t11\th2")
	require.NoError(t, err)
	require.Equal(t, 1, m.Len())
	e, _ := m.Get("a.txt")
	assert.Equal(t, "h2", e.Hash)
}

func TestParseAll_BadHeader(t *testing.T) {
	_, err := ParseAll("lots\na.txt\t10\th1")
	assert.ErrorIs(t, err, ErrMalformedHeader)

	var lineErr *LineError
	require.ErrorAs(t, err, &lineErr)
	assert.Equal(t, 1, lineErr.Line)
}

func TestParseAllStrict(t *testing.T) {
	_, err := ParseAllStrict("2\na.txt\t10\th1")
	assert.ErrorIs(t, err, ErrCountMismatch)

	_, err = ParseAllStrict("1\na.txt\t10\th1\nb.txt\t20\th2")
	assert.ErrorIs(t, err, ErrCountMismatch)

	_, err = ParseAllStrict("2\na.txt\t10\th1\nbad")
	assert.ErrorIs(t, err, ErrMalformedEntry)
	var lineErr *LineError
	require.ErrorAs(t, err, &lineErr)
	assert.Equal(t, 3, lineErr.Line)

	m, err := ParseAllStrict("1\na.txt\t10\th1\n")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())
}

func TestVersionMarker(t *testing.T) {
	assert.Equal(t, "2.3", ParseVersionMarker("2.3\n"))
	assert.Equal(t, "2.3", ParseVersionMarker("  2.3  \nignored"))
	assert.Equal(t, "", ParseVersionMarker(""))
	assert.Equal(t, "2.3\n", FormatVersionMarker(" 2.3"))
}

func TestHashBytes(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", HashBytes(nil))
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", HashBytes([]byte("hello")))
}

func TestParseAll_HugeCountHeader(t *testing.T) {
	for _, header := range []string{"99999999999999999", "1000000000"} {
		var m *Manifest
		var err error
		assert.NotPanics(t, func() {
			m, err = ParseAll(header + "\na.txt\t1\th")
		}, header)
		require.NoError(t, err, header)
		assert.Equal(t, []string{"a.txt"}, m.Paths(), header)
	}

	_, err := ParseAllStrict("99999999999999999\na.txt\t1\th")
	assert.ErrorIs(t, err, ErrCountMismatch)
}

func TestSalvage_KeepsEntriesBehindBadHeader(t *testing.T) {
	m := Salvage("lots\na.txt\t10\th1\nnot an entry\nb.txt\t20\th2\n")
	assert.Equal(t, []string{"a.txt", "b.txt"}, m.Paths())

	assert.Equal(t, 0, Salvage("").Len())
	assert.Equal(t, 0, Salvage("garbage\n").Len())
}
