// Package listing renders the HTML directory page served at the share root.
package listing

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"lanshare/internal/models"
	"lanshare/internal/sharefs"
)

// ErrDirectoryNotFound is returned when a directory cannot be enumerated.
var ErrDirectoryNotFound = errors.New("Directory not found")

// TimeLayout is the layout of the modification time shown for each entry.
const TimeLayout = "2006-01-02 15:04:05"

const (
	kilobyte = 1024
	megabyte = 1024 * 1024
)

// FormatSize renders a byte count as "<n> B", "<n.n> KB" or "<n.n> MB".
func FormatSize(size int64) string {
	if size < kilobyte {
		return fmt.Sprintf("%d B", size)
	}
	if size < megabyte {
		return fmt.Sprintf("%.1f KB", float64(size)/kilobyte)
	}
	return fmt.Sprintf("%.1f MB", float64(size)/megabyte)
}

// EscapeName percent-encodes every byte of name outside the unreserved set.
func EscapeName(name string) string {
	return strings.ReplaceAll(url.QueryEscape(name), "+", "%20")
}

// ReadEntries enumerates dir and returns its visible entries sorted by name.
// base is prepended to every href; the share root uses "".
func ReadEntries(dir, base string) ([]models.DirectoryEntry, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryNotFound, err)
	}

	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name())
	}
	sort.Strings(names)

	entries := make([]models.DirectoryEntry, 0, len(names))
	for _, name := range names {
		if sharefs.IsHidden(name) {
			continue
		}

		fullname := filepath.Join(dir, name)
		info, err := os.Stat(fullname)
		if err != nil {
			// dangling symlink: describe the link itself
			info, err = os.Lstat(fullname)
			if err != nil {
				continue
			}
		}

		modTime := info.ModTime().Local()
		entries = append(entries, models.DirectoryEntry{
			Name:        name,
			Size:        info.Size(),
			ModTime:     modTime,
			IsDir:       info.IsDir(),
			IsImage:     !info.IsDir() && sharefs.IsImageFile(strings.ToLower(filepath.Ext(name))),
			DisplaySize: FormatSize(info.Size()),
			Modified:    modTime.Format(TimeLayout),
			Href:        base + EscapeName(name),
		})
	}
	return entries, nil
}

// Options toggles the optional parts of the listing page.
type Options struct {
	// Live adds a script that reloads the page when the directory changes.
	Live bool
	// Thumbnails adds a preview image next to every image entry.
	Thumbnails bool
}

// Renderer produces listing pages. It is safe for concurrent use.
type Renderer struct {
	tmpl *template.Template
	opts Options
}

// NewRenderer parses the page template.
func NewRenderer(opts Options) *Renderer {
	return &Renderer{
		tmpl: template.Must(template.New("listing").Funcs(template.FuncMap{
			"thumbURL": thumbURL,
		}).Parse(listingTemplate)),
		opts: opts,
	}
}

type page struct {
	Path       string
	LiveURL    string
	Entries    []models.DirectoryEntry
	Live       bool
	Thumbnails bool
}

// Render writes the listing of dir to w. urlPath is the request path the
// listing is served under, "/" for the share root.
func (r *Renderer) Render(w io.Writer, dir, urlPath string) error {
	base := ""
	if urlPath != "/" {
		base = hrefBase(urlPath)
	}

	entries, err := ReadEntries(dir, base)
	if err != nil {
		return err
	}

	return r.tmpl.Execute(w, page{
		Path:       urlPath,
		LiveURL:    LivePath,
		Entries:    entries,
		Live:       r.opts.Live,
		Thumbnails: r.opts.Thumbnails,
	})
}

// hrefBase turns a nested listing path into an absolute, escaped prefix
// ending in a slash, e.g. "/my docs" -> "/my%20docs/".
func hrefBase(urlPath string) string {
	var b strings.Builder
	for _, seg := range strings.Split(urlPath, "/") {
		if seg == "" {
			continue
		}
		b.WriteString("/")
		b.WriteString(EscapeName(seg))
	}
	b.WriteString("/")
	return b.String()
}

// thumbURL maps an entry href onto the thumbnail route.
func thumbURL(href string) string {
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return ThumbPrefix + href
}
