// Package config builds the immutable server configuration from command line
// flags and an optional TOML or YAML file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DefaultQRFile is written to the working directory on every start.
const DefaultQRFile = "share_link_qr.png"

var (
	// ErrDirectoryNotFound is returned when the share directory does not exist.
	ErrDirectoryNotFound = errors.New("does not exist")
	// ErrNotADirectory is returned when the share path is not a directory.
	ErrNotADirectory = errors.New("is not a directory")
)

// Config is constructed once at startup and never modified afterwards.
type Config struct {
	Port          int
	Directory     string // absolute share root
	QRFile        string
	TerminalQR    bool
	Live          bool
	PollInterval  time.Duration
	Thumbnails    bool
	ThumbnailSize uint
	CacheDB       string
}

// DirectoryError reports a share directory that cannot be served.
type DirectoryError struct {
	Path string
	Err  error
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("Directory '%s' %v", e.Path, e.Err)
}

func (e *DirectoryError) Unwrap() error { return e.Err }

// fileConfig mirrors the keys accepted in a config file.
type fileConfig struct {
	Port          *int    `toml:"port" yaml:"port"`
	Directory     *string `toml:"directory" yaml:"directory"`
	QRFile        *string `toml:"qr_file" yaml:"qr_file"`
	TerminalQR    *bool   `toml:"terminal_qr" yaml:"terminal_qr"`
	Live          *bool   `toml:"live" yaml:"live"`
	PollInterval  *string `toml:"poll_interval" yaml:"poll_interval"`
	Thumbnails    *bool   `toml:"thumbnails" yaml:"thumbnails"`
	ThumbnailSize *uint   `toml:"thumbnail_size" yaml:"thumbnail_size"`
	CacheDB       *string `toml:"cache_db" yaml:"cache_db"`
}

// Load parses args (without the program name). Values from --config are
// applied first; flags given explicitly on the command line win.
func Load(args []string, output io.Writer) (*Config, error) {
	fs := flag.NewFlagSet("lanshare", flag.ContinueOnError)
	fs.SetOutput(output)

	port := fs.Int("port", 8000, "Port to serve on")
	dir := fs.String("directory", ".", "Directory to share")
	configFile := fs.String("config", "", "Optional TOML or YAML config file")
	qrFile := fs.String("qr-file", DefaultQRFile, "Where to write the QR code image")
	terminalQR := fs.Bool("terminal-qr", false, "Also print the QR code to the terminal")
	live := fs.Bool("live", false, "Reload open listings when the directory changes")
	pollInterval := fs.Duration("poll-interval", 2*time.Second, "Directory polling interval for --live")
	thumbnails := fs.Bool("thumbnails", false, "Show image thumbnails in the listing")
	thumbnailSize := fs.Uint("thumbnail-size", 200, "Thumbnail bounding box in pixels")
	cacheDB := fs.String("cache-db", "", "SQLite file for persistent thumbnails (empty: memory only)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:          *port,
		Directory:     *dir,
		QRFile:        *qrFile,
		TerminalQR:    *terminalQR,
		Live:          *live,
		PollInterval:  *pollInterval,
		Thumbnails:    *thumbnails,
		ThumbnailSize: *thumbnailSize,
		CacheDB:       *cacheDB,
	}

	if *configFile != "" {
		fc, err := readFile(*configFile)
		if err != nil {
			return nil, err
		}
		set := map[string]bool{}
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
		if err := fc.apply(cfg, set); err != nil {
			return nil, fmt.Errorf("config %s: %w", *configFile, err)
		}
	}

	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("invalid poll interval %s", cfg.PollInterval)
	}
	if cfg.ThumbnailSize == 0 {
		return nil, errors.New("thumbnail size must be positive")
	}

	abs, err := ResolveDirectory(cfg.Directory)
	if err != nil {
		return nil, err
	}
	cfg.Directory = abs

	return cfg, nil
}

// ResolveDirectory makes dir absolute and checks that it is an existing directory.
func ResolveDirectory(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve directory %s: %w", dir, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &DirectoryError{Path: abs, Err: ErrDirectoryNotFound}
		}
		return "", &DirectoryError{Path: abs, Err: err}
	}
	if !info.IsDir() {
		return "", &DirectoryError{Path: abs, Err: ErrNotADirectory}
	}
	return abs, nil
}

func readFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	fc := &fileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, fc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, fc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	return fc, nil
}

// apply copies file values into cfg unless the flag was set explicitly.
func (fc *fileConfig) apply(cfg *Config, set map[string]bool) error {
	if fc.Port != nil && !set["port"] {
		cfg.Port = *fc.Port
	}
	if fc.Directory != nil && !set["directory"] {
		cfg.Directory = *fc.Directory
	}
	if fc.QRFile != nil && !set["qr-file"] {
		cfg.QRFile = *fc.QRFile
	}
	if fc.TerminalQR != nil && !set["terminal-qr"] {
		cfg.TerminalQR = *fc.TerminalQR
	}
	if fc.Live != nil && !set["live"] {
		cfg.Live = *fc.Live
	}
	if fc.PollInterval != nil && !set["poll-interval"] {
		d, err := time.ParseDuration(*fc.PollInterval)
		if err != nil {
			return fmt.Errorf("poll_interval: %w", err)
		}
		cfg.PollInterval = d
	}
	if fc.Thumbnails != nil && !set["thumbnails"] {
		cfg.Thumbnails = *fc.Thumbnails
	}
	if fc.ThumbnailSize != nil && !set["thumbnail-size"] {
		cfg.ThumbnailSize = *fc.ThumbnailSize
	}
	if fc.CacheDB != nil && !set["cache-db"] {
		cfg.CacheDB = *fc.CacheDB
	}
	return nil
}
