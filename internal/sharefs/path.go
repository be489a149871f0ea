// Package sharefs resolves request paths against the share root.
package sharefs

import (
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned when a request path escapes the share root.
var ErrOutsideRoot = errors.New("path outside share root")

// Resolve maps a slash-separated request path onto a filesystem path under root.
func Resolve(root, name string) (string, error) {
	clean := path.Clean("/" + name)
	full := filepath.Join(root, filepath.FromSlash(clean))

	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrOutsideRoot
	}
	return full, nil
}

// IsHidden reports whether a name is hidden from listings.
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// IsImageFile reports whether ext (lowercase, with dot) names an image the
// thumbnailer can decode.
func IsImageFile(ext string) bool {
	imageExts := []string{".jpg", ".jpeg", ".png", ".gif"}
	for _, e := range imageExts {
		if ext == e {
			return true
		}
	}
	return false
}

// PathExists reports whether p exists. Errors other than not-exist are returned.
func PathExists(p string) (bool, error) {
	_, err := os.Stat(p)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
