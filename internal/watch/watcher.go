// Package watch polls the directories that open listing pages show and
// notifies the hub when one of them changes.
package watch

import (
	"context"
	"hash/fnv"
	"strconv"
	"time"

	"lanshare/internal/listing"
	"lanshare/internal/sharefs"
)

// Notifier receives change notifications for listing paths.
type Notifier interface {
	Paths() []string
	Notify(path string) bool
}

// Watcher fingerprints watched directories on every tick.
type Watcher struct {
	root     string
	notifier Notifier
	interval time.Duration

	// owned by the polling goroutine
	last map[string]uint64
}

// New returns a Watcher for directories under root.
func New(root string, notifier Notifier, interval time.Duration) *Watcher {
	return &Watcher{
		root:     root,
		notifier: notifier,
		interval: interval,
		last:     make(map[string]uint64),
	}
}

// Run polls until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Poll()
		}
	}
}

// Poll checks every watched path once and returns the paths that changed.
// A path seen for the first time records its fingerprint without notifying.
func (w *Watcher) Poll() []string {
	var changed []string
	seen := make(map[string]bool)

	for _, p := range w.notifier.Paths() {
		seen[p] = true

		fp := w.fingerprint(p)
		prev, ok := w.last[p]
		w.last[p] = fp
		if ok && prev != fp {
			w.notifier.Notify(p)
			changed = append(changed, p)
		}
	}

	for p := range w.last {
		if !seen[p] {
			delete(w.last, p)
		}
	}
	return changed
}

// fingerprint hashes what the listing of p would show. An unreadable
// directory hashes to 0, so disappearing and reappearing both count as changes.
func (w *Watcher) fingerprint(p string) uint64 {
	dir, err := sharefs.Resolve(w.root, p)
	if err != nil {
		return 0
	}
	entries, err := listing.ReadEntries(dir, "")
	if err != nil {
		return 0
	}

	h := fnv.New64a()
	h.Write([]byte{1})
	for _, e := range entries {
		h.Write([]byte(e.Name))
		h.Write([]byte{0})
		h.Write([]byte(strconv.FormatInt(e.Size, 10)))
		h.Write([]byte{0})
		h.Write([]byte(strconv.FormatInt(e.ModTime.UnixNano(), 10)))
		h.Write([]byte{0})
	}
	return h.Sum64()
}
