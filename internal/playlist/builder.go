// Package playlist builds ordered playback plans from the media library and
// persists them in the concat format the transcode engine consumes.
package playlist

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jmylchreest/loopcast/internal/media"
)

// ErrEmptyLibrary is returned when a scan produces a plan with zero entries.
// Callers must not start a pipeline against an empty plan.
var ErrEmptyLibrary = errors.New("media library contains no matching files")

// Builder scans the configured library directories and produces persisted
// playback plans. A failed build leaves any partially written output in
// place; the caller treats the failure as fatal to that restart attempt.
type Builder struct {
	VideoDir    string
	AudioDir    string
	Recursive   bool
	Shuffle     bool
	RandomStart bool

	logger *slog.Logger
	randFn func(n int) int // swappable for deterministic tests
}

// NewBuilder creates a Builder for the given library directories.
func NewBuilder(videoDir, audioDir string) *Builder {
	return &Builder{
		VideoDir: videoDir,
		AudioDir: audioDir,
		logger:   slog.Default(),
		randFn:   rand.Intn,
	}
}

// WithLogger sets the logger.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// Build scans both directories and writes the video plan to videoOut and the
// audio plan to audioOut. Both plans must be non-empty or the build fails
// with ErrEmptyLibrary.
func (b *Builder) Build(videoOut, audioOut string) error {
	videoPlan, err := b.BuildKind(media.KindVideo)
	if err != nil {
		return err
	}
	audioPlan, err := b.BuildKind(media.KindAudio)
	if err != nil {
		return err
	}

	if err := WritePlan(videoOut, videoPlan); err != nil {
		return fmt.Errorf("persisting video plan: %w", err)
	}
	if err := WritePlan(audioOut, audioPlan); err != nil {
		return fmt.Errorf("persisting audio plan: %w", err)
	}

	b.logger.Info("playback plans written",
		slog.Int("video_entries", len(videoPlan)),
		slog.Int("audio_entries", len(audioPlan)),
		slog.String("video_plan", videoOut),
		slog.String("audio_plan", audioOut),
	)
	return nil
}

// BuildVideo scans only the video directory and writes its plan.
func (b *Builder) BuildVideo(videoOut string) error {
	plan, err := b.BuildKind(media.KindVideo)
	if err != nil {
		return err
	}
	if err := WritePlan(videoOut, plan); err != nil {
		return fmt.Errorf("persisting video plan: %w", err)
	}
	b.logger.Info("playback plan written",
		slog.Int("entries", len(plan)),
		slog.String("plan", videoOut),
	)
	return nil
}

// BuildKind produces the ordered entry list for one kind without persisting.
func (b *Builder) BuildKind(kind media.Kind) ([]string, error) {
	dir := b.VideoDir
	if kind == media.KindAudio {
		dir = b.AudioDir
	}

	items, err := b.scan(dir, kind)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no %s files under %s", ErrEmptyLibrary, kind, dir)
	}

	sortItems(items)

	entries := make([]string, len(items))
	for i, item := range items {
		entries[i] = item.Path
	}

	if b.Shuffle {
		shuffle(entries, b.randFn)
	} else if b.RandomStart && len(entries) > 1 {
		rotate(entries, b.randFn(len(entries)))
	}

	return entries, nil
}

// scan walks dir collecting media items of the requested kind. Paths are
// resolved to absolute so plans stay valid regardless of working directory.
func (b *Builder) scan(dir string, kind media.Kind) ([]media.Item, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: no %s directory configured", ErrEmptyLibrary, kind)
	}

	var items []media.Item
	appendItem := func(path string) error {
		if !media.IsKind(path, kind) {
			return nil
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", path, err)
		}
		items = append(items, media.Item{Path: abs, Kind: kind})
		return nil
	}

	if b.Recursive {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			return appendItem(path)
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", dir, err)
		}
		return items, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := appendItem(filepath.Join(dir, entry.Name())); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// sortItems orders items case-insensitively on full path, with a
// case-sensitive tiebreak so ordering is total and deterministic.
func sortItems(items []media.Item) {
	sort.Slice(items, func(i, j int) bool {
		li, lj := strings.ToLower(items[i].Path), strings.ToLower(items[j].Path)
		if li != lj {
			return li < lj
		}
		return items[i].Path < items[j].Path
	})
}

// shuffle applies a uniform Fisher-Yates shuffle.
func shuffle(entries []string, randFn func(int) int) {
	for i := len(entries) - 1; i > 0; i-- {
		j := randFn(i + 1)
		entries[i], entries[j] = entries[j], entries[i]
	}
}

// rotate shifts the start of the plan to offset, preserving cyclic order.
func rotate(entries []string, offset int) {
	if len(entries) == 0 {
		return
	}
	offset %= len(entries)
	if offset == 0 {
		return
	}
	rotated := make([]string, 0, len(entries))
	rotated = append(rotated, entries[offset:]...)
	rotated = append(rotated, entries[:offset]...)
	copy(entries, rotated)
}
