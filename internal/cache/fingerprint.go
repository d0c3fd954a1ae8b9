package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sort"

	"filesage/internal/scan"
)

// Fingerprint digests a file set's identifying attributes: name, size and
// modification time. Enumeration order is irrelevant (entries are sorted
// by name first); any single attribute change anywhere changes the digest.
func Fingerprint(files []scan.FileDescriptor) string {
	sorted := make([]scan.FileDescriptor, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	h := sha256.New()
	for _, f := range sorted {
		fmt.Fprintf(h, "%s|%d|%d\n", f.Name, f.Size, f.ModTime.UnixMilli())
	}
	return hex.EncodeToString(h.Sum(nil))
}

// keyLength bounds persisted file names; 16 hex chars of SHA-256 keep
// collisions implausible for the handful of directories a user organizes.
const keyLength = 16

// Key derives the cache key for a directory: a fixed-width hash of the
// canonicalized absolute path, so persisted file names stay short and free
// of unsafe characters.
func Key(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = filepath.Clean(dir)
	}
	sum := sha256.Sum256([]byte(abs))
	return hex.EncodeToString(sum[:])[:keyLength]
}
