package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fatih/color"

	"lanshare/internal/config"
	"lanshare/internal/presenter"
	"lanshare/internal/server"
	"lanshare/internal/storage"
	"lanshare/internal/thumbnail"
	"lanshare/internal/watch"
	ws "lanshare/internal/websocket"
)

const (
	shutdownTimeout = 3 * time.Second
	// cached thumbnails older than this are dropped at startup
	thumbnailRetention = 30 * 24 * time.Hour
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run starts the server and blocks until ctx is cancelled. It returns the
// process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	errColor := color.New(color.FgRed)

	cfg, err := config.Load(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		errColor.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	ln, err := net.Listen("tcp", ":"+strconv.Itoa(cfg.Port))
	if err != nil {
		errColor.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	// the listener is closed by srv.Shutdown, or below on early exit
	port := ln.Addr().(*net.TCPAddr).Port

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := server.Options{}
	if cfg.Thumbnails {
		var store thumbnail.Store
		if cfg.CacheDB != "" {
			db, err := storage.InitDB(cfg.CacheDB)
			if err != nil {
				ln.Close()
				errColor.Fprintf(stderr, "Error: %v\n", err)
				return 1
			}
			defer db.Close()
			if _, err := db.PruneThumbnails(time.Now().Add(-thumbnailRetention)); err != nil {
				log.Printf("Failed to prune thumbnail cache: %v", err)
			}
			if n, err := db.CountThumbnails(); err == nil {
				log.Printf("Loaded thumbnail cache with %d entries", n)
			}
			store = db
		}
		opts.Thumbnails = thumbnail.NewGenerator(cfg.ThumbnailSize, store)
	}
	if cfg.Live {
		hub := ws.NewHub()
		go hub.Run(ctx)
		go watch.New(cfg.Directory, hub, cfg.PollInterval).Run(ctx)
		opts.Hub = hub
	}

	link := presenter.NewShareLink(presenter.ResolveLocalAddress(), port)
	if err := presenter.WriteQRCode(link.URL, cfg.QRFile); err != nil {
		ln.Close()
		errColor.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	presenter.Banner(stdout, cfg.Directory, link, cfg.QRFile)
	if cfg.TerminalQR {
		presenter.PrintTerminalQR(stdout, link.URL)
	}

	srv := &http.Server{
		Handler:           server.New(cfg, server.NewDirResponder(cfg.Directory), opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		errColor.Fprintf(stderr, "Error: %v\n", err)
		return 1
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown: %v", err)
	}

	presenter.Stopped(stdout)
	return 0
}
