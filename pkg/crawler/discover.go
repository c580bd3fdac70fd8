package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sound-scraper/pkg/fetch"
	"sound-scraper/pkg/models"
	"sound-scraper/pkg/utils"
)

// soundLinkSelector matches the listing entries for individual sound pages,
// which carry ids following the "sounds-<category>" convention.
const soundLinkSelector = `[id^="sounds-"]`

// DiscoverCategories fetches the listing page once and extracts the category
// links in document order. A listing fetch failure is fatal to the run and
// wraps utils.ErrListingUnreachable; retry for transient failures already
// happened inside the Fetcher.
func (c *Crawler) DiscoverCategories(ctx context.Context) ([]models.CategoryLink, error) {
	listingURL, err := fetch.ResolveURL(c.cfg.BaseURL, c.cfg.ListingURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrListingUnreachable, err)
	}

	if u, parseErr := url.Parse(listingURL); parseErr == nil {
		if !c.robots.Allowed(ctx, u) {
			return nil, fmt.Errorf("%w: %w: %s", utils.ErrListingUnreachable, utils.ErrRobotsDisallowed, listingURL)
		}
	}

	doc, err := c.throttledFetch(ctx, listingURL)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching '%s': %w", utils.ErrListingUnreachable, listingURL, err)
	}

	var links []models.CategoryLink
	doc.Find(soundLinkSelector).Each(func(_ int, sel *goquery.Selection) {
		href, hasHref := sel.Attr("href")
		if !hasHref || href == "" {
			c.log.Warnf("Listing entry '%s' has no href, skipping", sel.AttrOr("id", "?"))
			return
		}
		name := utils.SanitizeFilename(strings.TrimRight(sel.Text(), " \t\r\n"))

		detailURL, resolveErr := fetch.ResolveURL(c.cfg.BaseURL, href)
		if resolveErr != nil {
			c.log.Warnf("Cannot resolve listing href '%s': %v", href, resolveErr)
			return
		}
		links = append(links, models.CategoryLink{Name: name, DetailURL: detailURL})
	})

	return links, nil
}
