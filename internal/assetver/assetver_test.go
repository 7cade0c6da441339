package assetver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		remote, local string
		full          Result
		major         MajorResult
	}{
		{"2.3", "2.3", Same, SameMajor},
		{"3.0", "2.9", RemoteHigher, RemoteHigherMajor},
		{"2.1", "2.9", LocalHigher, SameMajor},
		{"2.10", "2.9", RemoteHigher, SameMajor},
		{"1.9", "2.0", LocalHigher, LocalHigherMajor},
		{"2", "2.0", Same, SameMajor},
		{"2.3.7", "2.3", Same, SameMajor},
		{"x.y", "0.0", Same, SameMajor},
		{"1.0", "", RemoteHigher, RemoteHigherMajor},
		{"0.0", "", RemoteHigher, RemoteHigherMajor},
		{"", "0.0", LocalHigher, LocalHigherMajor},
		{"", "", Same, SameMajor},
		{" 4.1 ", "4.1", Same, SameMajor},
	}

	for _, tt := range tests {
		t.Run(tt.remote+"_vs_"+tt.local, func(t *testing.T) {
			full, major := Compare(tt.remote, tt.local)
			assert.Equal(t, tt.full, full)
			assert.Equal(t, tt.major, major)
		})
	}
}

func TestParse(t *testing.T) {
	assert.Equal(t, Version{Major: 2, Minor: 3, Present: true}, Parse("2.3"))
	assert.Equal(t, Version{Major: 0, Minor: 5, Present: true}, Parse("-1.5"))
	assert.Equal(t, Version{}, Parse("   "))
	assert.Equal(t, "2.3", Parse("2.3").String())
	assert.Equal(t, "", Parse("").String())
}

func TestResultStrings(t *testing.T) {
	assert.Equal(t, "remote_higher", RemoteHigher.String())
	assert.Equal(t, "local_higher_major", LocalHigherMajor.String())
	assert.Equal(t, "unknown", Result(0).String())
}
