package crawler

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"sound-scraper/pkg/download"
	"sound-scraper/pkg/extract"
	"sound-scraper/pkg/models"
	"sound-scraper/pkg/utils"
)

// ProcessCategory handles one discovered category end to end: skip check,
// directory creation, detail page fetch, extraction, and the audio/image
// download legs. All failures stay scoped to this category.
func (c *Crawler) ProcessCategory(ctx context.Context, link models.CategoryLink) models.CategoryResult {
	catLog := c.log.WithField("category", link.Name)
	dirPath := filepath.Join(c.cfg.OutputDir, link.Name)

	// Skip rule: a populated directory means a prior run already finished this
	// category; return without any network access so re-runs are idempotent
	if entries, err := os.ReadDir(dirPath); err == nil && len(entries) > 0 {
		catLog.Info("Already populated, skipping")
		return models.CategoryResult{Category: link.Name, Status: models.CategoryStatusSkipped}
	}

	// Idempotent: an existing (empty) directory is fine
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		wrapped := fmt.Errorf("%w: creating directory '%s': %w", utils.ErrFilesystem, dirPath, err)
		catLog.Error(wrapped)
		return c.failed(link.Name, wrapped)
	}

	catLog.Infof("Fetching sound page %s", link.DetailURL)
	record, err := c.fetchRecord(ctx, link.DetailURL)
	if err != nil {
		catLog.Warnf("Could not obtain sound record: %v", err)
		return c.failed(link.Name, err)
	}

	// Both legs are attempted independently; an image failure never masks an
	// audio success and vice versa
	audioErr := c.downloadAsset(ctx, record.AudioURL, filepath.Join(dirPath, record.AudioFilename()), catLog)
	var imageErr error
	if record.HasImage() {
		imageErr = c.downloadAsset(ctx, record.ImageURL, filepath.Join(dirPath, record.ImageFilename()), catLog)
		if imageErr != nil {
			catLog.Warnf("Image download failed: %v", imageErr)
		}
	}

	if audioErr != nil {
		catLog.Warnf("Audio download failed: %v", audioErr)
		return c.failed(link.Name, audioErr)
	}
	if imageErr != nil {
		return models.CategoryResult{
			Category:  link.Name,
			Status:    models.CategoryStatusPartial,
			ErrorType: utils.CategorizeError(imageErr),
		}
	}

	catLog.Info("Category complete")
	return models.CategoryResult{Category: link.Name, Status: models.CategoryStatusSuccess}
}

// fetchRecord fetches the detail page (throttled, with retry inside the
// Fetcher) and extracts the sound record from it.
func (c *Crawler) fetchRecord(ctx context.Context, detailURL string) (*models.SoundRecord, error) {
	u, err := url.Parse(detailURL)
	if err != nil {
		return nil, fmt.Errorf("%w: URL '%s': %w", utils.ErrParsing, detailURL, err)
	}
	if !c.robots.Allowed(ctx, u) {
		return nil, fmt.Errorf("%w: %s", utils.ErrRobotsDisallowed, detailURL)
	}

	doc, err := c.throttledFetch(ctx, detailURL)
	if err != nil {
		return nil, err
	}

	base := doc.Url
	if base == nil {
		base = u
	}
	return extract.Extract(doc, base)
}

// downloadAsset runs one download leg: robots gate, politeness delay, then
// the streaming transfer with per-call progress reporting.
func (c *Crawler) downloadAsset(ctx context.Context, sourceURL, destPath string, catLog *logrus.Entry) error {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return fmt.Errorf("%w: %w: URL '%s': %w", utils.ErrDownloadFailed, utils.ErrParsing, sourceURL, err)
	}
	if !c.robots.Allowed(ctx, u) {
		return fmt.Errorf("%w: %w: %s", utils.ErrDownloadFailed, utils.ErrRobotsDisallowed, sourceURL)
	}
	if waitErr := c.throttle.Wait(ctx, u.Hostname()); waitErr != nil {
		return fmt.Errorf("%w: %w", utils.ErrDownloadFailed, waitErr)
	}

	progress := download.LogProgress(catLog, filepath.Base(destPath))
	written, dlErr := c.downloader.Download(ctx, sourceURL, destPath, progress)
	c.throttle.UpdateLastRequestTime(u.Hostname())
	if dlErr != nil {
		return dlErr
	}

	catLog.WithFields(logrus.Fields{"file": filepath.Base(destPath), "bytes": written}).Info("Saved file")
	return nil
}

func (c *Crawler) failed(category string, err error) models.CategoryResult {
	return models.CategoryResult{
		Category:  category,
		Status:    models.CategoryStatusFailed,
		ErrorType: utils.CategorizeError(err),
	}
}
