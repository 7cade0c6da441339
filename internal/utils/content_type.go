package utils

import (
	"mime"
	"path/filepath"
	"strings"
)

// DetectContentType guesses from the extension, treating manifests and
// config-like files as UTF-8 text.
func DetectContentType(key string) string {
	if isTextLike(key) {
		return "text/plain; charset=utf-8"
	} else if mimeType := mime.TypeByExtension(filepath.Ext(key)); mimeType != "" {
		return mimeType
	}
	return "application/octet-stream"
}

func isTextLike(key string) bool {
	switch strings.ToLower(filepath.Ext(key)) {
	case ".txt", ".yaml", ".yml", ".toml", ".md", ".csv":
		return true
	}
	return false
}
