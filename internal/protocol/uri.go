package protocol

import (
	"path/filepath"
	"strings"
)

// URIToPath converts a file:// URI to a file path.
func URIToPath(uri string) string {
	path := strings.TrimPrefix(uri, "file:///")
	path = strings.TrimPrefix(path, "file://")
	// Handle Windows drive letters
	if len(path) >= 3 && path[1] == ':' {
		return filepath.FromSlash(path)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return filepath.FromSlash(path)
}

// PathToURI converts a file path to a file:// URI.
func PathToURI(path string) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	absPath = filepath.ToSlash(absPath)
	if !strings.HasPrefix(absPath, "/") {
		// Windows path
		return "file:///" + absPath
	}
	return "file://" + absPath
}
