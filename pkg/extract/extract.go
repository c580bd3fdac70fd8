// Package extract pulls the structured sound record out of a fetched detail
// page. Lookups are tolerant: optional elements yield empty fields, only the
// page title and the audio source are required.
package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sound-scraper/pkg/models"
	"sound-scraper/pkg/utils"
)

var (
	datePattern     = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`) // Date-taken text inside a <dd>
	imageSrcPattern = regexp.MustCompile(`images.*\.jpg`)     // Content images live under an "images" path
)

// Extract reads a SoundRecord from a parsed detail page. Relative asset URLs
// are resolved against base (the final URL of the page). Returns
// utils.ErrMissingTitle when no page-title element exists and
// utils.ErrNoAudioFound when the page carries no usable audio source.
func Extract(doc *goquery.Document, base *url.URL) (*models.SoundRecord, error) {
	titleSel := doc.Find(".page-title").First()
	if titleSel.Length() == 0 {
		return nil, utils.ErrMissingTitle
	}
	title := utils.SanitizeFilename(strings.TrimSpace(titleSel.Text()))

	audioSrc := findAudioSource(doc)
	if audioSrc == "" {
		return nil, utils.ErrNoAudioFound
	}
	audioURL, err := resolve(base, audioSrc)
	if err != nil {
		return nil, err
	}

	record := &models.SoundRecord{
		Title:    title,
		AudioURL: audioURL,
	}

	// Optional companion image: must look like a content photo, not a
	// decorative asset, so alt and title attributes are required
	if imgSrc := findContentImage(doc); imgSrc != "" {
		imageURL, err := resolve(base, imgSrc)
		if err != nil {
			// A bad image URL never fails the page; the audio is the payload
			record.ImageURL = ""
		} else {
			record.ImageURL = imageURL
		}

		// Credit and date only matter when there is an image to name
		if credit := doc.Find("p.figcredit").First(); credit.Length() > 0 {
			text := strings.ReplaceAll(strings.TrimSpace(credit.Text()), "/", "_")
			record.Credit = utils.SanitizeFilename(text)
		}
		doc.Find("dd").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			if match := datePattern.FindString(sel.Text()); match != "" {
				record.DateTaken = match
				return false
			}
			return true
		})
	}

	return record, nil
}

// findAudioSource returns the src of the first <source> element carrying an
// mp3 with the exact MIME type "audio/mp3", or "" if none exists.
func findAudioSource(doc *goquery.Document) string {
	var found string
	doc.Find("source").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		src, srcOk := sel.Attr("src")
		mimeType, typeOk := sel.Attr("type")
		if !srcOk || !typeOk {
			return true
		}
		if mimeType != "audio/mp3" {
			return true
		}
		if !strings.HasSuffix(trimQuery(src), ".mp3") {
			return true
		}
		found = src
		return false
	})
	return found
}

// findContentImage returns the src of the first <img> whose src matches the
// content-image path shape and which carries non-empty alt and title
// attributes, or "" if none exists.
func findContentImage(doc *goquery.Document) string {
	var found string
	doc.Find("img").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		src, srcOk := sel.Attr("src")
		if !srcOk || !imageSrcPattern.MatchString(src) {
			return true
		}
		alt, altOk := sel.Attr("alt")
		imgTitle, titleOk := sel.Attr("title")
		if !altOk || !titleOk || strings.TrimSpace(alt) == "" || strings.TrimSpace(imgTitle) == "" {
			return true
		}
		found = src
		return false
	})
	return found
}

// trimQuery strips a query string or fragment so suffix checks see the path.
func trimQuery(src string) string {
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		return src[:i]
	}
	return src
}

func resolve(base *url.URL, href string) (string, error) {
	if base == nil {
		// No base known; href must already be absolute
		u, err := url.Parse(href)
		if err != nil || !u.IsAbs() {
			return "", fmt.Errorf("%w: cannot resolve relative URL '%s' without a base", utils.ErrParsing, href)
		}
		return href, nil
	}
	ref, err := base.Parse(href)
	if err != nil {
		return "", fmt.Errorf("%w: URL '%s': %w", utils.ErrParsing, href, err)
	}
	return ref.String(), nil
}
