package server

import (
	"errors"
	"net/http"
	"os"

	"lanshare/internal/sharefs"
)

// ErrIsDirectory is returned by a StaticFileResponder when the requested
// path names a directory. Nothing has been written to the response.
var ErrIsDirectory = errors.New("is a directory")

// StaticFileResponder streams a file below the share root.
// On error nothing must have been written, so the caller can reply itself.
type StaticFileResponder interface {
	ServeFile(w http.ResponseWriter, r *http.Request, name string) error
}

// DirResponder serves files from a directory on disk.
type DirResponder struct {
	Root string
}

// NewDirResponder returns a responder rooted at root.
func NewDirResponder(root string) *DirResponder {
	return &DirResponder{Root: root}
}

// ServeFile resolves name (a decoded, slash-separated URL path) against the
// root and streams it with content type and length.
func (d *DirResponder) ServeFile(w http.ResponseWriter, r *http.Request, name string) error {
	filePath, err := sharefs.Resolve(d.Root, name)
	if err != nil {
		return err
	}

	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return ErrIsDirectory
	}

	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	return nil
}
