package crawler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sound-scraper/pkg/config"
	"sound-scraper/pkg/dedup"
	"sound-scraper/pkg/download"
	"sound-scraper/pkg/fetch"
	"sound-scraper/pkg/models"
	"sound-scraper/pkg/utils"
)

const listingHTML = `
<html><body>
  <ul>
    <li><a id="sounds-wolf" href="/yell/sounds-wolf.htm">Wolf </a></li>
    <li><a id="sounds-silent" href="/yell/sounds-silent.htm">Silent Spring</a></li>
    <li><a id="sounds-done" href="/yell/sounds-done.htm">Done Before</a></li>
  </ul>
  <a id="other-link" href="/yell/other.htm">Not a sound</a>
</body></html>`

const wolfHTML = `
<html><body>
  <h1 class="page-title">Gray Wolf</h1>
  <figure>
    <img src="/uploads/images/wolf.jpg" alt="A wolf" title="Gray wolf">
    <p class="figcredit">NPS</p>
  </figure>
  <dl><dd>2016-02-14</dd></dl>
  <audio><source src="/av/wolf.mp3" type="audio/mp3"></audio>
</body></html>`

const bearHTML = `
<html><body>
  <h1 class="page-title">Black Bear</h1>
  <figure>
    <img src="/uploads/images/bear.jpg" alt="A black bear" title="Black bear">
    <p class="figcredit">NPS</p>
  </figure>
  <dl><dd>2017-05-03</dd></dl>
  <audio><source src="/av/bear.mp3" type="audio/mp3"></audio>
</body></html>`

const silentHTML = `
<html><body>
  <h1 class="page-title">Silent Spring</h1>
  <p>No recording available.</p>
</body></html>`

// testSite runs an httptest server mimicking the sound library, tracking
// request counts per path.
type testSite struct {
	server *httptest.Server
	mu     sync.Mutex
	hits   map[string]int
}

func newTestSite(t *testing.T) *testSite {
	t.Helper()
	site := &testSite{hits: make(map[string]int)}
	site.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		site.mu.Lock()
		site.hits[r.URL.Path]++
		site.mu.Unlock()

		switch r.URL.Path {
		case "/listing.htm":
			io.WriteString(w, listingHTML)
		case "/yell/sounds-wolf.htm":
			io.WriteString(w, wolfHTML)
		case "/yell/sounds-silent.htm":
			io.WriteString(w, silentHTML)
		case "/yell/sounds-bear.htm":
			io.WriteString(w, bearHTML)
		case "/av/bear.mp3":
			io.WriteString(w, "BEAR-AUDIO-BYTES")
		// /uploads/images/bear.jpg is deliberately not served
		case "/yell/sounds-done.htm":
			io.WriteString(w, wolfHTML)
		case "/av/wolf.mp3":
			io.WriteString(w, "WOLF-AUDIO-BYTES")
		case "/uploads/images/wolf.jpg":
			io.WriteString(w, "WOLF-JPEG-BYTES")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(site.server.Close)
	return site
}

func (s *testSite) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func boolPtr(b bool) *bool { return &b }

// newTestCrawler wires a Crawler against the test site with fast settings.
func newTestCrawler(t *testing.T, site *testSite, outDir string) *Crawler {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := &config.AppConfig{
		BaseURL:           site.server.URL,
		ListingURL:        site.server.URL + "/listing.htm",
		UserAgent:         "sound-scraper-test",
		OutputDir:         outDir,
		RequestDelay:      time.Millisecond,
		MaxRetries:        1,
		InitialRetryDelay: time.Millisecond,
		MaxRetryDelay:     5 * time.Millisecond,
		RespectRobots:     boolPtr(false),
	}

	client := site.server.Client()
	fetcher := fetch.NewFetcher(client, cfg, log)
	throttle := fetch.NewThrottle(cfg.RequestDelay, log)
	robots := fetch.NewRobotsGate(client, cfg.UserAgent, cfg.RobotsEnabled(), log)
	downloader := download.NewDownloader(client, cfg.UserAgent, log)
	deduplicator := dedup.NewDeduplicator(log)

	return NewCrawler(cfg, fetcher, throttle, robots, downloader, deduplicator, log)
}

func TestDiscoverCategories(t *testing.T) {
	site := newTestSite(t)
	crawl := newTestCrawler(t, site, t.TempDir())

	links, err := crawl.DiscoverCategories(context.Background())
	require.NoError(t, err)

	require.Len(t, links, 3)
	// Document order, trailing whitespace stripped, hrefs made absolute
	assert.Equal(t, "Wolf", links[0].Name)
	assert.Equal(t, site.server.URL+"/yell/sounds-wolf.htm", links[0].DetailURL)
	assert.Equal(t, "Silent Spring", links[1].Name)
	assert.Equal(t, "Done Before", links[2].Name)
}

func TestDiscoverCategories_ListingUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	site := &testSite{server: server, hits: make(map[string]int)}
	crawl := newTestCrawler(t, site, t.TempDir())

	_, err := crawl.DiscoverCategories(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrListingUnreachable)
}

func TestProcessCategory_Success(t *testing.T) {
	site := newTestSite(t)
	outDir := t.TempDir()
	crawl := newTestCrawler(t, site, outDir)

	result := crawl.ProcessCategory(context.Background(), models.CategoryLink{
		Name:      "Wolf",
		DetailURL: site.server.URL + "/yell/sounds-wolf.htm",
	})

	assert.Equal(t, models.CategoryStatusSuccess, result.Status)

	audio, err := os.ReadFile(filepath.Join(outDir, "Wolf", "Gray Wolf.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "WOLF-AUDIO-BYTES", string(audio))

	image, err := os.ReadFile(filepath.Join(outDir, "Wolf", "Gray Wolf_NPS_2016-02-14.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "WOLF-JPEG-BYTES", string(image))
}

func TestProcessCategory_PartialWhenImageLegFails(t *testing.T) {
	site := newTestSite(t)
	outDir := t.TempDir()
	crawl := newTestCrawler(t, site, outDir)

	result := crawl.ProcessCategory(context.Background(), models.CategoryLink{
		Name:      "Bear",
		DetailURL: site.server.URL + "/yell/sounds-bear.htm",
	})

	// A failed image leg never masks a successful audio leg
	assert.Equal(t, models.CategoryStatusPartial, result.Status)
	assert.Equal(t, "Download_Failed", result.ErrorType)

	audio, err := os.ReadFile(filepath.Join(outDir, "Bear", "Black Bear.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "BEAR-AUDIO-BYTES", string(audio))
	assert.NoFileExists(t, filepath.Join(outDir, "Bear", "Black Bear_NPS_2017-05-03.jpg"))
}

func TestProcessCategory_SkipPopulatedDirectory(t *testing.T) {
	site := newTestSite(t)
	outDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(outDir, "Wolf"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(outDir, "Wolf", "old.mp3"), []byte("x"), 0644))

	crawl := newTestCrawler(t, site, outDir)
	result := crawl.ProcessCategory(context.Background(), models.CategoryLink{
		Name:      "Wolf",
		DetailURL: site.server.URL + "/yell/sounds-wolf.htm",
	})

	assert.Equal(t, models.CategoryStatusSkipped, result.Status)
	// Zero network requests for a populated category
	assert.Zero(t, site.hitCount("/yell/sounds-wolf.htm"))
	assert.Zero(t, site.hitCount("/av/wolf.mp3"))
}

func TestProcessCategory_EmptyDirectoryNotSkipped(t *testing.T) {
	site := newTestSite(t)
	outDir := t.TempDir()
	// An empty directory (crash leftover) must be re-crawled
	require.NoError(t, os.MkdirAll(filepath.Join(outDir, "Wolf"), 0755))

	crawl := newTestCrawler(t, site, outDir)
	result := crawl.ProcessCategory(context.Background(), models.CategoryLink{
		Name:      "Wolf",
		DetailURL: site.server.URL + "/yell/sounds-wolf.htm",
	})

	assert.Equal(t, models.CategoryStatusSuccess, result.Status)
	assert.Equal(t, 1, site.hitCount("/yell/sounds-wolf.htm"))
}

func TestProcessCategory_NoAudio(t *testing.T) {
	site := newTestSite(t)
	outDir := t.TempDir()
	crawl := newTestCrawler(t, site, outDir)

	result := crawl.ProcessCategory(context.Background(), models.CategoryLink{
		Name:      "Silent Spring",
		DetailURL: site.server.URL + "/yell/sounds-silent.htm",
	})

	assert.Equal(t, models.CategoryStatusFailed, result.Status)
	assert.Equal(t, "Page_NoAudio", result.ErrorType)
	// The page was fetched, but no download was attempted
	assert.Equal(t, 1, site.hitCount("/yell/sounds-silent.htm"))
	assert.Zero(t, site.hitCount("/av/wolf.mp3"))
}

func TestProcessCategory_UnreachablePage(t *testing.T) {
	site := newTestSite(t)
	crawl := newTestCrawler(t, site, t.TempDir())

	result := crawl.ProcessCategory(context.Background(), models.CategoryLink{
		Name:      "Ghost",
		DetailURL: site.server.URL + "/yell/sounds-ghost.htm", // 404s
	})

	assert.Equal(t, models.CategoryStatusFailed, result.Status)
	assert.Equal(t, "HTTP_404", result.ErrorType)
}

func TestRun_EndToEnd(t *testing.T) {
	site := newTestSite(t)
	outDir := t.TempDir()

	// "Done Before" is already populated from a prior run
	require.NoError(t, os.MkdirAll(filepath.Join(outDir, "Done Before"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(outDir, "Done Before", "done.mp3"), []byte("prior"), 0644))

	crawl := newTestCrawler(t, site, outDir)
	summary, err := crawl.Run(context.Background())
	require.NoError(t, err)

	success, partial, skipped, failed := summary.Counts()
	assert.Equal(t, 1, success, "Wolf should succeed")
	assert.Zero(t, partial)
	assert.Equal(t, 1, skipped, "Done Before should be skipped")
	assert.Equal(t, 1, failed, "Silent Spring should fail")

	// Exactly one new audio and one new image on disk
	assert.FileExists(t, filepath.Join(outDir, "Wolf", "Gray Wolf.mp3"))
	assert.FileExists(t, filepath.Join(outDir, "Wolf", "Gray Wolf_NPS_2016-02-14.jpg"))
	assert.FileExists(t, filepath.Join(outDir, "Done Before", "done.mp3"))

	// Wolf audio and prior audio differ, so dedup resolves nothing
	assert.Zero(t, summary.DuplicatePairs)
}

func TestRun_CancelledContext(t *testing.T) {
	site := newTestSite(t)
	crawl := newTestCrawler(t, site, t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := crawl.Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled) || errors.Is(err, utils.ErrListingUnreachable))
}
