package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
)

// RobotsGate manages fetching, parsing, caching, and checking robots.txt data.
// A fetch or parse failure fails open: the URL is treated as allowed.
type RobotsGate struct {
	client        *http.Client
	userAgent     string
	enabled       bool
	robotsCache   map[string]*robotstxt.RobotsData // hostname -> parsed data (or nil)
	robotsCacheMu sync.Mutex
	log           *logrus.Logger
}

// NewRobotsGate creates a RobotsGate. When enabled is false, Allowed always
// returns true without any network access.
func NewRobotsGate(client *http.Client, userAgent string, enabled bool, log *logrus.Logger) *RobotsGate {
	return &RobotsGate{
		client:      client,
		userAgent:   userAgent,
		enabled:     enabled,
		robotsCache: make(map[string]*robotstxt.RobotsData),
		log:         log,
	}
}

// Allowed checks whether the configured user agent may fetch targetURL
// according to the host's robots.txt, fetching and caching the rules on
// first contact with each host.
func (rg *RobotsGate) Allowed(ctx context.Context, targetURL *url.URL) bool {
	if !rg.enabled {
		return true
	}

	data := rg.robotsData(ctx, targetURL)
	if data == nil {
		// Assume allowed if robots data could not be obtained
		return true
	}
	return data.TestAgent(targetURL.RequestURI(), rg.userAgent)
}

// robotsData retrieves robots.txt data for the targetURL's host, using the
// cache or fetching. Returns parsed data or nil on any error.
func (rg *RobotsGate) robotsData(ctx context.Context, targetURL *url.URL) *robotstxt.RobotsData {
	host := targetURL.Hostname()
	hostLog := rg.log.WithField("host", host)

	rg.robotsCacheMu.Lock()
	data, found := rg.robotsCache[host]
	rg.robotsCacheMu.Unlock()
	if found {
		return data // Cached result, possibly nil
	}

	robotsURL := &url.URL{Scheme: targetURL.Scheme, Host: targetURL.Host, Path: "/robots.txt"}
	if robotsURL.Scheme != "http" && robotsURL.Scheme != "https" {
		robotsURL.Scheme = "https"
	}
	hostLog.WithField("robots_url", robotsURL.String()).Debug("Fetching robots.txt...")

	data = rg.fetchRobots(ctx, robotsURL.String(), hostLog)

	rg.robotsCacheMu.Lock()
	rg.robotsCache[host] = data // Cache nil on failure too, one attempt per host
	rg.robotsCacheMu.Unlock()
	return data
}

func (rg *RobotsGate) fetchRobots(ctx context.Context, robotsURL string, hostLog *logrus.Entry) *robotstxt.RobotsData {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		hostLog.Errorf("Error creating robots.txt request: %v", err)
		return nil
	}
	req.Header.Set("User-Agent", rg.userAgent)

	resp, err := rg.client.Do(req)
	if err != nil {
		hostLog.Warnf("Fetching robots.txt failed: %v", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		hostLog.Debugf("robots.txt returned status %d, assuming allowed", resp.StatusCode)
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		hostLog.Warnf("Error reading robots.txt body: %v", err)
		return nil
	}

	data, err := robotstxt.FromBytes(bodyBytes)
	if err != nil {
		hostLog.Warnf("Error parsing robots.txt: %v", err)
		return nil
	}

	hostLog.Debug("Successfully fetched and parsed robots.txt")
	return data
}
