package models

import "time"

// DirectoryEntry represents one visible entry of a listing.
// It is computed per request and never stored.
type DirectoryEntry struct {
	Name        string
	Size        int64
	ModTime     time.Time
	IsDir       bool
	IsImage     bool
	DisplaySize string // human-readable size, e.g. "2.0 KB"
	Modified    string // local time, "2006-01-02 15:04:05"
	Href        string // percent-encoded link target
}

// Info returns the trailing "<size> | <timestamp>" string shown next to the link.
func (e DirectoryEntry) Info() string {
	return e.DisplaySize + " | " + e.Modified
}
