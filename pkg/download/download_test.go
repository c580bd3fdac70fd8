package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"sound-scraper/pkg/utils"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testDownloader(client *http.Client) *Downloader {
	return NewDownloader(client, "sound-scraper-test", testLogger())
}

// assertNoLeftovers fails if dir contains anything besides the expected names.
func assertNoLeftovers(t *testing.T, dir string, expected ...string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading dir: %v", err)
	}
	want := make(map[string]bool, len(expected))
	for _, name := range expected {
		want[name] = true
	}
	for _, entry := range entries {
		if !want[entry.Name()] {
			t.Errorf("unexpected leftover file: %s", entry.Name())
		}
	}
}

func TestDownload_Success(t *testing.T) {
	payload := strings.Repeat("abcdefgh", 20000) // ~160KB, several chunks
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprint(len(payload)))
		io.WriteString(w, payload)
	}))
	t.Cleanup(server.Close)

	dir := t.TempDir()
	dest := filepath.Join(dir, "wolf.mp3")

	var calls int
	var lastWritten, lastTotal int64
	progress := func(written, total int64) {
		calls++
		if written < lastWritten {
			t.Errorf("progress went backwards: %d -> %d", lastWritten, written)
		}
		lastWritten, lastTotal = written, total
	}

	written, err := testDownloader(server.Client()).Download(context.Background(), server.URL+"/wolf.mp3", dest, progress)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if written != int64(len(payload)) {
		t.Errorf("expected %d bytes written, got %d", len(payload), written)
	}
	info, statErr := os.Stat(dest)
	if statErr != nil {
		t.Fatalf("destination missing: %v", statErr)
	}
	// File size equals the declared content length
	if info.Size() != int64(len(payload)) {
		t.Errorf("expected file size %d, got %d", len(payload), info.Size())
	}
	if calls == 0 {
		t.Error("expected progress callbacks")
	}
	if lastWritten != int64(len(payload)) || lastTotal != int64(len(payload)) {
		t.Errorf("expected final progress (%d, %d), got (%d, %d)", len(payload), len(payload), lastWritten, lastTotal)
	}
	assertNoLeftovers(t, dir, "wolf.mp3")
}

func TestDownload_NoContentLength(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		// Chunked transfer: no Content-Length header
		io.WriteString(w, "some audio bytes")
		flusher.Flush()
	}))
	t.Cleanup(server.Close)

	dir := t.TempDir()
	dest := filepath.Join(dir, "elk.mp3")

	var sawIndeterminate bool
	progress := func(written, total int64) {
		if total == -1 {
			sawIndeterminate = true
		}
	}

	written, err := testDownloader(server.Client()).Download(context.Background(), server.URL, dest, progress)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if written != int64(len("some audio bytes")) {
		t.Errorf("unexpected byte count: %d", written)
	}
	if !sawIndeterminate {
		t.Error("expected indeterminate progress (total -1) without Content-Length")
	}
}

func TestDownload_MidStreamDisconnect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Declare more bytes than will be sent, then drop the connection
		w.Header().Set("Content-Length", fmt.Sprint(1<<20))
		io.WriteString(w, strings.Repeat("x", 64*1024))
		hj := w.(http.Hijacker)
		conn, _, err := hj.Hijack()
		if err != nil {
			t.Errorf("hijack failed: %v", err)
			return
		}
		conn.Close()
	}))
	t.Cleanup(server.Close)

	dir := t.TempDir()
	dest := filepath.Join(dir, "bison.mp3")

	_, err := testDownloader(server.Client()).Download(context.Background(), server.URL, dest, nil)
	if err == nil {
		t.Fatal("expected error for mid-stream disconnect")
	}
	if !errors.Is(err, utils.ErrDownloadFailed) {
		t.Errorf("expected ErrDownloadFailed, got: %v", err)
	}
	// Destination must not exist and no partial temp file may remain
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Error("destination must not exist after failed download")
	}
	assertNoLeftovers(t, dir)
}

func TestDownload_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	dir := t.TempDir()
	dest := filepath.Join(dir, "missing.mp3")

	_, err := testDownloader(server.Client()).Download(context.Background(), server.URL, dest, nil)
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if !errors.Is(err, utils.ErrDownloadFailed) {
		t.Errorf("expected ErrDownloadFailed, got: %v", err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Error("destination must not exist after HTTP error")
	}
	assertNoLeftovers(t, dir)
}

func TestDownload_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprint(1<<20))
		io.WriteString(w, strings.Repeat("x", 32*1024))
		w.(http.Flusher).Flush()
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		server.Close()
	})

	dir := t.TempDir()
	dest := filepath.Join(dir, "stalled.mp3")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := testDownloader(server.Client()).Download(ctx, server.URL, dest, func(written, total int64) {
			cancel() // Cancel as soon as the first chunk lands
		})
		done <- err
	}()

	err := <-done
	if err == nil {
		t.Fatal("expected error for cancelled download")
	}
	if !errors.Is(err, utils.ErrDownloadFailed) {
		t.Errorf("expected ErrDownloadFailed, got: %v", err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Error("destination must not exist after cancelled download")
	}
	assertNoLeftovers(t, dir)
}
