package utils

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// fingerprintBlockSize is the read block size used when hashing file content.
const fingerprintBlockSize = 64 * 1024

// FileFingerprint computes the MD5 content hash of a file, streaming it in
// fixed-size blocks so large audio files are never held in memory. Two files
// with equal fingerprints are treated as identical content regardless of name.
func FileFingerprint(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("%w: opening '%s' for hashing: %w", ErrFilesystem, filePath, err)
	}
	defer file.Close()

	hash := md5.New()
	buf := make([]byte, fingerprintBlockSize)
	if _, err := io.CopyBuffer(hash, file, buf); err != nil {
		return "", fmt.Errorf("%w: hashing '%s': %w", ErrFilesystem, filePath, err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
