package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrings(t *testing.T) {
	assert.NotEmpty(t, Version)
	assert.NotEmpty(t, Revision)
	assert.Equal(t, "AssetSync", AppName)

	assert.Contains(t, Short(), Version)
	assert.True(t, strings.HasPrefix(ShortWithApp(), AppName+" "))
	assert.Contains(t, Detailed(), "/")
	assert.True(t, strings.HasPrefix(DetailedWithApp(), AppName+" "))
	assert.True(t, strings.HasPrefix(UserAgent(), AppName+"/"+Version))
}

func TestApplyBuildInfo(t *testing.T) {
	oldV, oldR, oldD := Version, Revision, BuildDate
	t.Cleanup(func() { Version, Revision, BuildDate = oldV, oldR, oldD })

	Version, Revision, BuildDate = devVersion, "HEAD", ""
	applyBuildInfo("v1.2.3", map[string]string{
		"vcs.revision": "abc123",
		"vcs.modified": "true",
		"vcs.time":     "2024-01-01T00:00:00Z",
	})
	assert.Equal(t, "1.2.3", Version)
	assert.Equal(t, "abc123-dirty", Revision)
	assert.Equal(t, "2024-01-01T00:00:00Z", BuildDate)

	Version = "9.9.9"
	applyBuildInfo("(devel)", nil)
	assert.Equal(t, "9.9.9", Version)
}
