// Package download streams remote assets to disk. Transfers never buffer the
// whole body in memory and never leave a partial file under the destination
// path: bytes are written to a uniquely named temp file that is renamed into
// place only on success.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"sound-scraper/pkg/utils"
)

// chunkSize is the fixed transfer block size.
const chunkSize = 32 * 1024

// ProgressFunc receives cumulative transfer progress. total is the declared
// Content-Length, or -1 when the server omitted it (indeterminate progress).
// State is per call: repeated downloads never share progress state.
type ProgressFunc func(written, total int64)

// Downloader streams files from URLs to local paths.
type Downloader struct {
	client    *http.Client
	userAgent string
	log       *logrus.Logger
}

// NewDownloader creates a Downloader sharing the crawl's HTTP client and
// identifying header.
func NewDownloader(client *http.Client, userAgent string, log *logrus.Logger) *Downloader {
	return &Downloader{
		client:    client,
		userAgent: userAgent,
		log:       log,
	}
}

// Download GETs sourceURL and streams the body to destPath in fixed-size
// chunks, reporting cumulative progress after each chunk. The destination's
// parent directory must already exist. On any failure the destination path
// does not exist afterwards and the error wraps utils.ErrDownloadFailed.
// Returns the number of bytes written on success.
func (d *Downloader) Download(ctx context.Context, sourceURL, destPath string, progress ProgressFunc) (int64, error) {
	dlLog := d.log.WithFields(logrus.Fields{"url": sourceURL, "dest": destPath})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %w: for '%s': %w", utils.ErrDownloadFailed, utils.ErrRequestCreation, sourceURL, err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: fetching '%s': %w", utils.ErrDownloadFailed, sourceURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return 0, fmt.Errorf("%w: fetching '%s': status %d %s", utils.ErrDownloadFailed, sourceURL, resp.StatusCode, resp.Status)
	}

	total := resp.ContentLength // -1 when the server omits the header

	// Write to a uniquely named temp file next to the destination so a crash
	// or transfer error never leaves a partial file under the final name
	tmpPath := fmt.Sprintf("%s.%s.part", destPath, uuid.NewString())
	outFile, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("%w: %w: creating '%s': %w", utils.ErrDownloadFailed, utils.ErrFilesystem, tmpPath, err)
	}

	written, copyErr := d.copyChunks(outFile, resp.Body, total, progress)

	closeErr := outFile.Close()
	if copyErr == nil && closeErr != nil {
		copyErr = fmt.Errorf("%w: closing '%s': %w", utils.ErrFilesystem, tmpPath, closeErr)
	}
	if copyErr != nil {
		if rmErr := os.Remove(tmpPath); rmErr != nil && !os.IsNotExist(rmErr) {
			dlLog.Warnf("Could not remove partial temp file: %v", rmErr)
		}
		return 0, fmt.Errorf("%w: transferring '%s' (%d bytes written): %w", utils.ErrDownloadFailed, sourceURL, written, copyErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		if rmErr := os.Remove(tmpPath); rmErr != nil && !os.IsNotExist(rmErr) {
			dlLog.Warnf("Could not remove temp file after failed rename: %v", rmErr)
		}
		return 0, fmt.Errorf("%w: %w: renaming '%s' into place: %w", utils.ErrDownloadFailed, utils.ErrFilesystem, destPath, err)
	}

	dlLog.WithField("bytes", written).Debug("Download complete")
	return written, nil
}

// copyChunks transfers src to dst in chunkSize blocks, invoking progress with
// the cumulative byte count after each block.
func (d *Downloader) copyChunks(dst io.Writer, src io.Reader, total int64, progress ProgressFunc) (int64, error) {
	buf := make([]byte, chunkSize)
	var written int64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			wn, writeErr := dst.Write(buf[:n])
			written += int64(wn)
			if writeErr != nil {
				return written, writeErr
			}
			if wn < n {
				return written, io.ErrShortWrite
			}
			if progress != nil {
				progress(written, total)
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}
