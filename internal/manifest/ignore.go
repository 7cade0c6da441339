package manifest

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFileName is read from the root of a directory being published.
const IgnoreFileName = ".assetignore"

var defaultIgnoreLines = []string{
	IgnoreFileName,
	// editor and engine droppings
	"*.meta",
	"*.tmp",
	"*.log",
	".vscode",
	".idea",
	".git",
	".assetsync",
	// OS-specific
	".DS_Store",
	"Thumbs.db",
	"desktop.ini",
}

// IgnoreList decides which files under a root never make it into a manifest.
type IgnoreList struct {
	baseDir string
	ignore  *gitignore.GitIgnore
}

func NewIgnoreList(baseDir string, extra ...string) *IgnoreList {
	il := &IgnoreList{baseDir: baseDir}
	il.load(extra)
	return il
}

func (il *IgnoreList) load(extra []string) {
	lines := append([]string{}, defaultIgnoreLines...)
	lines = append(lines, extra...)

	ignorePath := filepath.Join(il.baseDir, IgnoreFileName)
	if file, err := os.Open(ignorePath); err == nil {
		defer file.Close()

		rules := 0
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			if line := scanner.Text(); line != "" {
				lines = append(lines, line)
				rules++
			}
		}
		if err := scanner.Err(); err != nil {
			slog.Warn("assetignore read", "path", ignorePath, "error", err)
		} else {
			slog.Debug("assetignore loaded", "path", ignorePath, "rules", rules)
		}
	}

	il.ignore = gitignore.CompileIgnoreLines(lines...)
}

// ShouldIgnore takes a slash separated path relative to the base dir.
func (il *IgnoreList) ShouldIgnore(relPath string) bool {
	return il.ignore.MatchesPath(relPath)
}
