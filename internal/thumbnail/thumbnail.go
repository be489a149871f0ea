// Package thumbnail produces small JPEG previews of shared images.
package thumbnail

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nfnt/resize"

	"lanshare/internal/sharefs"
)

// ErrNotImage is returned for files without a supported image extension.
var ErrNotImage = errors.New("not an image file")

// Store persists thumbnails between runs.
type Store interface {
	LoadThumbnail(key string) ([]byte, bool, error)
	SaveThumbnail(key string, data []byte) error
}

// Generator creates thumbnails and caches them in memory and, when a Store
// is configured, on disk.
type Generator struct {
	size  uint
	store Store

	cache map[string][]byte
	mu    sync.RWMutex
}

// NewGenerator returns a Generator fitting thumbnails into a size x size box.
// store may be nil.
func NewGenerator(size uint, store Store) *Generator {
	return &Generator{
		size:  size,
		store: store,
		cache: make(map[string][]byte),
	}
}

// Thumbnail returns JPEG bytes for the image at filePath.
func (g *Generator) Thumbnail(filePath string) ([]byte, error) {
	if !sharefs.IsImageFile(strings.ToLower(filepath.Ext(filePath))) {
		return nil, ErrNotImage
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrNotImage
	}

	// keyed by size and mtime so an edited image is regenerated
	cacheKey := fmt.Sprintf("%s|%d|%d|%d", filePath, info.Size(), info.ModTime().UnixNano(), g.size)

	g.mu.RLock()
	cached, ok := g.cache[cacheKey]
	g.mu.RUnlock()
	if ok {
		return cached, nil
	}

	if g.store != nil {
		data, ok, err := g.store.LoadThumbnail(cacheKey)
		if err != nil {
			log.Printf("Failed to load cached thumbnail for %s: %v", filePath, err)
		} else if ok {
			g.remember(cacheKey, data)
			return data, nil
		}
	}

	data, err := g.generate(filePath)
	if err != nil {
		return nil, err
	}

	g.remember(cacheKey, data)
	if g.store != nil {
		if err := g.store.SaveThumbnail(cacheKey, data); err != nil {
			log.Printf("Failed to persist thumbnail for %s: %v", filePath, err)
		}
	}
	return data, nil
}

func (g *Generator) generate(filePath string) ([]byte, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(filePath), err)
	}

	thumb := resize.Thumbnail(g.size, g.size, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *Generator) remember(key string, data []byte) {
	g.mu.Lock()
	g.cache[key] = data
	g.mu.Unlock()
}
