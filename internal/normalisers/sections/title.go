package sections

import (
	"path/filepath"
	"strings"
)

// TitleFromURI derives a human-readable title from a file name or URL path.
func TitleFromURI(uri string) string {
	uri = strings.TrimRight(uri, "/")
	if i := strings.IndexAny(uri, "?#"); i >= 0 {
		uri = uri[:i]
	}
	filename := filepath.Base(uri)
	if filename == "." || filename == "/" {
		return ""
	}
	if ext := filepath.Ext(filename); ext != "" {
		filename = strings.TrimSuffix(filename, ext)
	}
	filename = strings.ReplaceAll(filename, "_", " ")
	filename = strings.ReplaceAll(filename, "-", " ")
	return Normalise(filename)
}
