package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gorilla/websocket"

	"lanshare/internal/config"
	"lanshare/internal/listing"
	"lanshare/internal/thumbnail"
	ws "lanshare/internal/websocket"
)

// setupShare creates a share root with the given files.
func setupShare(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return root
}

// setupTestServer creates a Dispatcher over root with the default responder.
func setupTestServer(t *testing.T, root string, opts Options) *Dispatcher {
	t.Helper()
	cfg := &config.Config{Port: 8000, Directory: root}
	return New(cfg, NewDirResponder(root), opts)
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_RootListing(t *testing.T) {
	root := setupShare(t, map[string]string{
		"b.txt":     "bbb",
		"a b&c.txt": "hello",
		".env":      "SECRET=1",
	})
	srv := setupTestServer(t, root, Options{})

	rec := get(t, srv, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}

	doc, err := goquery.NewDocumentFromReader(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	doc.Find("a.file-link").Each(func(_ int, s *goquery.Selection) {
		names = append(names, s.Text())
	})
	if strings.Join(names, ",") != "a b&c.txt,b.txt" {
		t.Errorf("listed = %v", names)
	}
}

func TestServer_RootListingIgnoresQuery(t *testing.T) {
	root := setupShare(t, map[string]string{"a.txt": "a"})
	srv := setupTestServer(t, root, Options{})

	if rec := get(t, srv, "/?sort=name"); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestServer_ListingIsIdempotent(t *testing.T) {
	root := setupShare(t, map[string]string{"x.txt": "1", "y.txt": "22"})
	srv := setupTestServer(t, root, Options{})

	first := get(t, srv, "/").Body.Bytes()
	second := get(t, srv, "/").Body.Bytes()
	if !bytes.Equal(first, second) {
		t.Error("two GET / responses differ")
	}
}

func TestServer_LinkRoundTrip(t *testing.T) {
	root := setupShare(t, map[string]string{"a b&c.txt": "exact contents"})
	srv := setupTestServer(t, root, Options{})

	doc, err := goquery.NewDocumentFromReader(get(t, srv, "/").Body)
	if err != nil {
		t.Fatal(err)
	}
	href, ok := doc.Find("a.file-link").Attr("href")
	if !ok || href != "a%20b%26c.txt" {
		t.Fatalf("href = %q", href)
	}

	rec := get(t, srv, "/"+href)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "exact contents" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q", ct)
	}
	if cl := rec.Header().Get("Content-Length"); cl != "14" {
		t.Errorf("Content-Length = %q, want 14", cl)
	}
}

func TestServer_NotFound(t *testing.T) {
	root := setupShare(t, map[string]string{"present.txt": "x"})
	srv := setupTestServer(t, root, Options{})

	rec := get(t, srv, "/missing.txt")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "File not found: /missing.txt") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestServer_NotFoundDecodedPath(t *testing.T) {
	srv := setupTestServer(t, t.TempDir(), Options{})

	rec := get(t, srv, "/no%20such%20file.txt")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/no such file.txt") {
		t.Errorf("body = %q, want decoded path", rec.Body.String())
	}
}

func TestServer_TraversalStaysInRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "share")
	if err := os.Mkdir(root, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(parent, "outside.txt"), []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}
	srv := setupTestServer(t, root, Options{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.URL.Path = "/../outside.txt"
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "secret") {
		t.Error("file outside the share root was served")
	}
}

func TestServer_MissingRootDirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "gone")
	srv := setupTestServer(t, root, Options{})

	rec := get(t, srv, "/")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Directory not found") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestServer_NestedListing(t *testing.T) {
	root := setupShare(t, map[string]string{
		"my docs/report.pdf": "pdf",
		"my docs/.hidden":    "h",
	})
	srv := setupTestServer(t, root, Options{})

	for _, target := range []string{"/my%20docs", "/my%20docs/"} {
		rec := get(t, srv, target)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, want 200", target, rec.Code)
		}
		doc, err := goquery.NewDocumentFromReader(rec.Body)
		if err != nil {
			t.Fatal(err)
		}
		links := doc.Find("a.file-link")
		if links.Length() != 1 {
			t.Fatalf("%s: links = %d, want 1", target, links.Length())
		}
		if href, _ := links.Attr("href"); href != "/my%20docs/report.pdf" {
			t.Errorf("%s: href = %q", target, href)
		}
	}

	if rec := get(t, srv, "/my%20docs/report.pdf"); rec.Body.String() != "pdf" {
		t.Errorf("nested file body = %q", rec.Body.String())
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv := setupTestServer(t, t.TempDir(), Options{})

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("x"))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestServer_HeadRoot(t *testing.T) {
	root := setupShare(t, map[string]string{"a.txt": "a"})
	srv := setupTestServer(t, root, Options{})

	req := httptest.NewRequest(http.MethodHead, "/", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

// stubResponder records the names it was asked for.
type stubResponder struct {
	names []string
}

func (s *stubResponder) ServeFile(w http.ResponseWriter, r *http.Request, name string) error {
	s.names = append(s.names, name)
	if name == "/ok" {
		io.WriteString(w, "stub")
		return nil
	}
	return os.ErrNotExist
}

func TestServer_DelegatesToResponder(t *testing.T) {
	stub := &stubResponder{}
	cfg := &config.Config{Directory: t.TempDir()}
	srv := New(cfg, stub, Options{})

	if rec := get(t, srv, "/ok"); rec.Body.String() != "stub" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if rec := get(t, srv, "/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	get(t, srv, "/")

	if strings.Join(stub.names, ",") != "/ok,/nope" {
		t.Errorf("responder saw %v; root must not be delegated", stub.names)
	}
}

func writeTestPNG(t *testing.T, path string) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 40, 20))); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestServer_Thumbnails(t *testing.T) {
	root := setupShare(t, map[string]string{"notes.txt": "n"})
	writeTestPNG(t, filepath.Join(root, "pic.png"))

	srv := setupTestServer(t, root, Options{Thumbnails: thumbnail.NewGenerator(16, nil)})

	doc, err := goquery.NewDocumentFromReader(get(t, srv, "/").Body)
	if err != nil {
		t.Fatal(err)
	}
	src, ok := doc.Find("img.file-thumb").Attr("src")
	if !ok {
		t.Fatal("listing has no thumbnail")
	}

	rec := get(t, srv, src)
	if rec.Code != http.StatusOK {
		t.Fatalf("thumbnail status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q", ct)
	}

	if rec := get(t, srv, listing.ThumbPrefix+"/notes.txt"); rec.Code != http.StatusNotFound {
		t.Errorf("non-image thumbnail status = %d, want 404", rec.Code)
	}
}

func TestServer_ThumbnailRouteDisabled(t *testing.T) {
	root := t.TempDir()
	writeTestPNG(t, filepath.Join(root, "pic.png"))
	srv := setupTestServer(t, root, Options{})

	if rec := get(t, srv, listing.ThumbPrefix+"/pic.png"); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when thumbnails are off", rec.Code)
	}
}

func TestServer_LiveUpdates(t *testing.T) {
	root := t.TempDir()
	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	ts := httptest.NewServer(setupTestServer(t, root, Options{Hub: hub}))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + listing.LivePath + "?path=%2F"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for len(hub.Paths()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := hub.Paths(); len(got) != 1 || got[0] != "/" {
		t.Fatalf("hub paths = %v", got)
	}

	hub.Notify("/")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg ws.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	if msg.Type != ws.MSG_LISTING_CHANGED || msg.Path != "/" {
		t.Errorf("message = %+v", msg)
	}
}
