// Package library computes content signatures of the media directories so
// the watcher can detect library edits between polling cycles.
package library

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/jmylchreest/loopcast/internal/media"
)

// Signature is an opaque digest of the watched directories' contents.
// Two signatures are equal iff the underlying file sets and their
// size/mtime are identical. Signatures are compared within one polling
// cycle and never persisted.
type Signature []byte

// Equal reports byte-equality of two signatures.
func (s Signature) Equal(other Signature) bool {
	return bytes.Equal(s, other)
}

// String returns the hex form of the digest for logging.
func (s Signature) String() string {
	return hex.EncodeToString(s)
}

// Detector computes LibrarySignatures over a set of directories.
type Detector struct {
	Dirs      []string
	Recursive bool
}

// NewDetector creates a Detector over the given directories. Empty
// directory entries are ignored.
func NewDetector(recursive bool, dirs ...string) *Detector {
	var kept []string
	for _, d := range dirs {
		if d != "" {
			kept = append(kept, d)
		}
	}
	return &Detector{Dirs: kept, Recursive: recursive}
}

// Compute walks the configured directories and hashes the sorted list of
// (resolved absolute path, size, mtime) tuples across all recognized media
// files. A file that disappears between listing and stat is silently
// excluded rather than failing the computation; transient races during
// library edits must not abort a polling cycle. The result is deterministic
// regardless of OS iteration order.
func (d *Detector) Compute() (Signature, error) {
	var tuples []string

	for _, dir := range d.Dirs {
		paths, err := d.list(dir)
		if err != nil {
			return nil, err
		}
		for _, path := range paths {
			abs, err := filepath.Abs(path)
			if err != nil {
				continue
			}
			info, err := os.Stat(abs)
			if err != nil {
				// Already gone; skip it.
				continue
			}
			tuples = append(tuples, fmt.Sprintf("%s|%d|%d", abs, info.Size(), info.ModTime().Unix()))
		}
	}

	sort.Strings(tuples)

	h := sha256.New()
	for _, t := range tuples {
		h.Write([]byte(t))
		h.Write([]byte{'\n'})
	}
	return h.Sum(nil), nil
}

// list returns the recognized media file paths under dir.
func (d *Detector) list(dir string) ([]string, error) {
	var paths []string

	if d.Recursive {
		err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				// A subtree vanishing mid-walk is the same race as a
				// disappearing file; exclude it.
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			if entry.IsDir() {
				return nil
			}
			if media.IsMedia(path) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", dir, err)
		}
		return paths, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if media.IsMedia(path) {
			paths = append(paths, path)
		}
	}
	return paths, nil
}
