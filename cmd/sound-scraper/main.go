package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"sound-scraper/pkg/config"
	"sound-scraper/pkg/crawler"
	"sound-scraper/pkg/dedup"
	"sound-scraper/pkg/download"
	"sound-scraper/pkg/fetch"
)

func main() {
	// --- Early Initialization & Flags ---
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel) // Default level

	configFileFlag := flag.String("config", "", "Path to optional YAML config file")
	listingFlag := flag.String("listing", "", "Listing page URL (overrides config)")
	outDirFlag := flag.String("out", "", "Output root directory (overrides config)")
	sleepFlag := flag.Duration("sleep", 2*time.Second, "Delay between page requests")
	retriesFlag := flag.Int("retries", 3, "Max retries for transient fetch failures")
	skipDedupFlag := flag.Bool("skip-dedup", false, "Skip the duplicate audio check after the crawl")
	logLevelFlag := flag.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")
	verboseFlag := flag.Bool("v", false, "Shorthand for -loglevel debug")
	flag.Parse()

	// --- Logger Configuration ---
	level, err := logrus.ParseLevel(*logLevelFlag)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", *logLevelFlag, err)
	} else {
		log.SetLevel(level)
	}
	if *verboseFlag {
		log.SetLevel(logrus.DebugLevel)
	}

	// --- Load Application Configuration ---
	appCfg, err := config.Load(*configFileFlag)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	// Flags override file values when explicitly set
	setFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	if setFlags["listing"] {
		appCfg.ListingURL = *listingFlag
	}
	if setFlags["out"] {
		appCfg.OutputDir = *outDirFlag
	}
	if setFlags["sleep"] || appCfg.RequestDelay == 0 {
		appCfg.RequestDelay = *sleepFlag
	}
	if setFlags["retries"] || appCfg.MaxRetries == 0 {
		appCfg.MaxRetries = *retriesFlag
	}
	if setFlags["skip-dedup"] {
		appCfg.SkipDedup = *skipDedupFlag
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	log.Infof("Listing: %s, output: %s, delay: %v, retries: %d, dedup: %t",
		appCfg.ListingURL, appCfg.OutputDir, appCfg.RequestDelay, appCfg.MaxRetries, !appCfg.SkipDedup)

	// --- Global Context & Signal Handling ---
	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		sig := <-sigChan
		log.Warnf("Received signal: %v. Finishing current file then stopping...", sig)
		cancelRun()
		sig = <-sigChan
		log.Warnf("Received second signal: %v. Forcing exit.", sig)
		os.Exit(1)
	}()

	// --- Initialize Components ---
	httpClient := fetch.NewClient(appCfg.HTTPClient, log)
	fetcher := fetch.NewFetcher(httpClient, &appCfg, log)
	throttle := fetch.NewThrottle(appCfg.RequestDelay, log)
	robotsGate := fetch.NewRobotsGate(httpClient, appCfg.UserAgent, appCfg.RobotsEnabled(), log)
	downloader := download.NewDownloader(httpClient, appCfg.UserAgent, log)
	deduplicator := dedup.NewDeduplicator(log)

	crawl := crawler.NewCrawler(&appCfg, fetcher, throttle, robotsGate, downloader, deduplicator, log)

	// --- Run ---
	_, err = crawl.Run(runCtx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("Crawl cancelled.")
			os.Exit(0)
		}
		log.Errorf("Crawl aborted: %v", err)
		os.Exit(1)
	}

	log.Info("Crawl complete!")
}
