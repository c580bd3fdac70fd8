// Package crawler orchestrates the sound-library crawl: listing discovery,
// one sequential pass per category, and the post-crawl duplicate resolution.
package crawler

import (
	"context"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"sound-scraper/pkg/config"
	"sound-scraper/pkg/dedup"
	"sound-scraper/pkg/download"
	"sound-scraper/pkg/fetch"
	"sound-scraper/pkg/models"
	"sound-scraper/pkg/utils"
)

// Crawler runs the full fetch-extract-download pipeline for the sound library.
type Crawler struct {
	cfg        *config.AppConfig
	fetcher    *fetch.Fetcher
	throttle   *fetch.Throttle
	robots     *fetch.RobotsGate
	downloader *download.Downloader
	dedup      *dedup.Deduplicator
	log        *logrus.Logger
}

// NewCrawler wires a Crawler from its collaborators.
func NewCrawler(
	cfg *config.AppConfig,
	fetcher *fetch.Fetcher,
	throttle *fetch.Throttle,
	robots *fetch.RobotsGate,
	downloader *download.Downloader,
	deduplicator *dedup.Deduplicator,
	log *logrus.Logger,
) *Crawler {
	return &Crawler{
		cfg:        cfg,
		fetcher:    fetcher,
		throttle:   throttle,
		robots:     robots,
		downloader: downloader,
		dedup:      deduplicator,
		log:        log,
	}
}

// Summary reports the outcome of one crawl run.
type Summary struct {
	Results        []models.CategoryResult
	DuplicatePairs int
}

// Counts returns the number of successful, partial, skipped, and failed
// categories in the summary.
func (s *Summary) Counts() (success, partial, skipped, failed int) {
	for _, r := range s.Results {
		switch r.Status {
		case models.CategoryStatusSuccess:
			success++
		case models.CategoryStatusPartial:
			partial++
		case models.CategoryStatusSkipped:
			skipped++
		case models.CategoryStatusFailed:
			failed++
		}
	}
	return
}

// Run crawls the whole library: discover categories, process each one in
// turn, then resolve duplicate audio content unless the pass is disabled.
// Failures stay scoped to their category; only listing discovery failure (or
// context cancellation) returns an error.
func (c *Crawler) Run(ctx context.Context) (*Summary, error) {
	c.log.Info("Starting sound library crawl...")

	links, err := c.DiscoverCategories(ctx)
	if err != nil {
		return nil, err
	}
	c.log.Infof("Found %d sound categories", len(links))

	summary := &Summary{}
	for _, link := range links {
		if ctx.Err() != nil {
			c.log.Warnf("Crawl cancelled after %d of %d categories: %v", len(summary.Results), len(links), ctx.Err())
			return summary, ctx.Err()
		}
		summary.Results = append(summary.Results, c.ProcessCategory(ctx, link))
	}

	if c.cfg.SkipDedup {
		c.log.Info("Skipping duplicate check (disabled)")
	} else {
		pairs, dedupErr := c.dedup.Run(ctx, c.cfg.OutputDir)
		if dedupErr != nil {
			// The crawl itself finished; a failed dedup pass is reported, not fatal
			c.log.Errorf("Duplicate check failed: %v", dedupErr)
		}
		summary.DuplicatePairs = pairs
	}

	c.logSummary(summary)
	return summary, nil
}

// logSummary writes the human-readable per-category outcome report.
func (c *Crawler) logSummary(summary *Summary) {
	for _, r := range summary.Results {
		entry := c.log.WithFields(logrus.Fields{"category": r.Category, "status": r.Status.String()})
		switch r.Status {
		case models.CategoryStatusFailed, models.CategoryStatusPartial:
			entry.WithField("error_type", r.ErrorType).Warn("Category result")
		default:
			entry.Info("Category result")
		}
	}
	success, partial, skipped, failed := summary.Counts()
	c.log.Infof("Crawl finished: %d succeeded, %d partial, %d skipped, %d failed, %d duplicate pair(s) resolved",
		success, partial, skipped, failed, summary.DuplicatePairs)
}

// throttledFetch applies the politeness delay for the URL's host, fetches the
// document, and records the request time for the next delay calculation.
func (c *Crawler) throttledFetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: URL '%s': %w", utils.ErrParsing, pageURL, err)
	}
	if waitErr := c.throttle.Wait(ctx, u.Hostname()); waitErr != nil {
		return nil, waitErr
	}
	doc, fetchErr := c.fetcher.FetchDocument(ctx, pageURL)
	c.throttle.UpdateLastRequestTime(u.Hostname())
	return doc, fetchErr
}
