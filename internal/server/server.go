// Package server routes requests between the directory listing and the
// static file responder.
package server

import (
	"bytes"
	"errors"
	"log"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"lanshare/internal/config"
	"lanshare/internal/listing"
	"lanshare/internal/sharefs"
	"lanshare/internal/thumbnail"
	ws "lanshare/internal/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // any device on the network may open the listing
	},
}

// Options enables the optional features. Nil fields are disabled.
type Options struct {
	Hub        *ws.Hub
	Thumbnails *thumbnail.Generator
}

// Dispatcher is the http.Handler of the share server.
type Dispatcher struct {
	cfg      *config.Config
	files    StaticFileResponder
	renderer *listing.Renderer
	hub      *ws.Hub
	thumbs   *thumbnail.Generator
}

// New creates a Dispatcher serving cfg.Directory. Requests other than the
// root listing are handed to files.
func New(cfg *config.Config, files StaticFileResponder, opts Options) *Dispatcher {
	return &Dispatcher{
		cfg:   cfg,
		files: files,
		renderer: listing.NewRenderer(listing.Options{
			Live:       opts.Hub != nil,
			Thumbnails: opts.Thumbnails != nil,
		}),
		hub:    opts.Hub,
		thumbs: opts.Thumbnails,
	}
}

// ServeHTTP implements http.Handler.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// r.URL.Path is already percent-decoded
	p := r.URL.Path

	switch {
	case p == "/":
		d.serveListing(w, d.cfg.Directory, p)
	case d.hub != nil && p == listing.LivePath:
		d.handleLive(w, r)
	case d.thumbs != nil && strings.HasPrefix(p, listing.ThumbPrefix+"/"):
		d.handleThumbnail(w, strings.TrimPrefix(p, listing.ThumbPrefix))
	default:
		d.serveFile(w, r, p)
	}
}

func (d *Dispatcher) serveFile(w http.ResponseWriter, r *http.Request, p string) {
	err := d.files.ServeFile(w, r, p)
	if err == nil {
		return
	}

	if errors.Is(err, ErrIsDirectory) {
		if dir, rerr := sharefs.Resolve(d.cfg.Directory, p); rerr == nil {
			d.serveListing(w, dir, p)
			return
		}
	}
	http.Error(w, "File not found: "+p, http.StatusNotFound)
}

// serveListing renders into a buffer first so a read failure can still
// become a 404.
func (d *Dispatcher) serveListing(w http.ResponseWriter, dir, urlPath string) {
	var buf bytes.Buffer
	if err := d.renderer.Render(&buf, dir, urlPath); err != nil {
		if !errors.Is(err, listing.ErrDirectoryNotFound) {
			log.Printf("Failed to render listing for %s: %v", urlPath, err)
		}
		http.Error(w, "Directory not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (d *Dispatcher) handleThumbnail(w http.ResponseWriter, rel string) {
	filePath, err := sharefs.Resolve(d.cfg.Directory, rel)
	if err != nil {
		http.Error(w, "File not found: "+rel, http.StatusNotFound)
		return
	}

	data, err := d.thumbs.Thumbnail(filePath)
	if err != nil {
		http.Error(w, "File not found: "+rel, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

func (d *Dispatcher) handleLive(w http.ResponseWriter, r *http.Request) {
	watched := r.URL.Query().Get("path")
	watched = path.Clean("/" + watched)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an error status
		return
	}

	client := ws.NewClient(d.hub, conn, watched)
	if !d.hub.Join(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
