// Package dedup removes byte-identical audio files that appear under more
// than one category directory. Identity is decided by a streaming content
// hash, never by filename.
package dedup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"sound-scraper/pkg/utils"
)

var imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// Deduplicator performs the post-crawl duplicate resolution pass.
type Deduplicator struct {
	log *logrus.Logger
}

// NewDeduplicator creates a Deduplicator.
func NewDeduplicator(log *logrus.Logger) *Deduplicator {
	return &Deduplicator{log: log}
}

// fingerprintedFile pairs an audio file path with its content hash.
type fingerprintedFile struct {
	path        string
	fingerprint string
}

// duplicate records one audio file whose content hash was already seen.
type duplicate struct {
	path        string
	fingerprint string
}

// Run walks the category directories one level deep, fingerprints every mp3,
// and resolves duplicate content by the keep/delete policy. Returns the
// number of duplicate pairs resolved. Individual deletion failures are logged
// and skipped; only an unreadable root aborts the pass.
func (d *Deduplicator) Run(ctx context.Context, root string) (int, error) {
	d.log.Info("Checking for duplicate audio files...")

	audioFiles, err := d.collectAudioFiles(root)
	if err != nil {
		return 0, err
	}

	fingerprinted, err := d.fingerprintAll(ctx, audioFiles)
	if err != nil {
		return 0, err
	}

	// First-seen mapping in enumeration order; later files with a known
	// fingerprint become duplicates
	fingerprintToPath := make(map[string]string)
	var duplicates []duplicate
	for _, ff := range fingerprinted {
		if ff.fingerprint == "" {
			continue // Hashing failed, already logged
		}
		if original, seen := fingerprintToPath[ff.fingerprint]; seen {
			d.log.WithFields(logrus.Fields{"duplicate": ff.path, "original": original}).Info("Found duplicate audio file")
			duplicates = append(duplicates, duplicate{path: ff.path, fingerprint: ff.fingerprint})
		} else {
			fingerprintToPath[ff.fingerprint] = ff.path
		}
	}

	if len(duplicates) == 0 {
		d.log.Info("No duplicate audio files found")
		return 0, nil
	}

	for _, dup := range duplicates {
		d.resolvePair(dup, fingerprintToPath)
	}

	d.log.Infof("Duplicate check complete, resolved %d duplicate pair(s)", len(duplicates))
	return len(duplicates), nil
}

// collectAudioFiles enumerates <root>/<category>/<file>.mp3 one level deep,
// in whatever order the filesystem yields directories and entries.
func (d *Deduplicator) collectAudioFiles(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("%w: reading root directory '%s': %w", utils.ErrFilesystem, root, err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dirPath := filepath.Join(root, entry.Name())
		dirEntries, err := os.ReadDir(dirPath)
		if err != nil {
			d.log.Warnf("Skipping unreadable directory '%s': %v", dirPath, err)
			continue
		}
		for _, de := range dirEntries {
			if de.IsDir() {
				continue
			}
			if strings.EqualFold(filepath.Ext(de.Name()), ".mp3") {
				files = append(files, filepath.Join(dirPath, de.Name()))
			}
		}
	}
	return files, nil
}

// fingerprintAll hashes the files with bounded parallelism. Hashing is local
// disk I/O only, so it may overlap; results keep enumeration order so the
// first-seen mapping is unaffected.
func (d *Deduplicator) fingerprintAll(ctx context.Context, paths []string) ([]fingerprintedFile, error) {
	results := make([]fingerprintedFile, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fp, err := utils.FileFingerprint(path)
			if err != nil {
				// A file that cannot be hashed is excluded from the pass
				d.log.Warnf("Could not fingerprint '%s': %v", path, err)
				fp = ""
			}
			results[i] = fingerprintedFile{path: path, fingerprint: fp}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// resolvePair applies the keep/delete policy to one duplicate. The original
// is whatever the live mapping currently points at for the fingerprint. A
// directory holding an image wins over one that does not; otherwise the
// first-seen file is kept.
func (d *Deduplicator) resolvePair(dup duplicate, fingerprintToPath map[string]string) {
	original := fingerprintToPath[dup.fingerprint]

	duplicateHasImage := dirHasImage(filepath.Dir(dup.path))
	originalHasImage := dirHasImage(filepath.Dir(original))

	toDelete := dup.path
	toKeep := original
	if duplicateHasImage && !originalHasImage {
		// Swap roles: keep the copy whose directory carries an image
		toDelete = original
		toKeep = dup.path
		fingerprintToPath[dup.fingerprint] = dup.path
	}
	d.log.WithFields(logrus.Fields{"keep": toKeep, "delete": toDelete}).Info("Resolving duplicate pair")

	if err := os.Remove(toDelete); err != nil {
		if os.IsNotExist(err) {
			d.log.Debugf("Duplicate '%s' already gone", toDelete)
		} else {
			d.log.Errorf("Could not delete duplicate '%s': %v", toDelete, err)
		}
		return
	}

	// Remove the containing directory too if the deletion emptied it
	dirPath := filepath.Dir(toDelete)
	remaining, err := os.ReadDir(dirPath)
	if err != nil {
		d.log.Warnf("Could not re-read directory '%s' after deletion: %v", dirPath, err)
		return
	}
	if len(remaining) == 0 {
		d.log.Infof("Removing empty directory '%s'", dirPath)
		if err := os.Remove(dirPath); err != nil {
			d.log.Errorf("Could not remove empty directory '%s': %v", dirPath, err)
		}
	}
}

// dirHasImage reports whether a directory directly contains an image file.
func dirHasImage(dirPath string) bool {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			return true
		}
	}
	return false
}
