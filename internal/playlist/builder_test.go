package playlist

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/loopcast/internal/media"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func makeLibrary(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		touch(t, filepath.Join(dir, name))
	}
	return dir
}

func TestBuilder_BuildKind_Ordering(t *testing.T) {
	dir := makeLibrary(t, "c.mov", "a.mp4", "b.mkv", "notes.txt")

	b := NewBuilder(dir, "")
	entries, err := b.BuildKind(media.KindVideo)
	require.NoError(t, err)

	require.Len(t, entries, 3)
	assert.Equal(t, filepath.Join(dir, "a.mp4"), entries[0])
	assert.Equal(t, filepath.Join(dir, "b.mkv"), entries[1])
	assert.Equal(t, filepath.Join(dir, "c.mov"), entries[2])
}

func TestBuilder_BuildKind_CaseInsensitiveOrder(t *testing.T) {
	dir := makeLibrary(t, "B.mp4", "a.mp4", "C.mp4")

	b := NewBuilder(dir, "")
	entries, err := b.BuildKind(media.KindVideo)
	require.NoError(t, err)

	require.Len(t, entries, 3)
	assert.Equal(t, filepath.Join(dir, "a.mp4"), entries[0])
	assert.Equal(t, filepath.Join(dir, "B.mp4"), entries[1])
	assert.Equal(t, filepath.Join(dir, "C.mp4"), entries[2])
}

func TestBuilder_BuildKind_EmptyLibrary(t *testing.T) {
	dir := makeLibrary(t, "readme.txt", "cover.jpg")

	b := NewBuilder(dir, "")
	_, err := b.BuildKind(media.KindVideo)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyLibrary))
}

func TestBuilder_BuildKind_NoDirConfigured(t *testing.T) {
	b := NewBuilder(t.TempDir(), "")
	_, err := b.BuildKind(media.KindAudio)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyLibrary))
}

func TestBuilder_BuildKind_Recursive(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "top.mp4"))
	touch(t, filepath.Join(dir, "sub", "nested.mp4"))
	touch(t, filepath.Join(dir, "sub", "deeper", "deep.mkv"))

	flat := NewBuilder(dir, "")
	entries, err := flat.BuildKind(media.KindVideo)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	rec := NewBuilder(dir, "")
	rec.Recursive = true
	entries, err = rec.BuildKind(media.KindVideo)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestBuilder_BuildKind_Shuffle(t *testing.T) {
	dir := makeLibrary(t, "a.mp4", "b.mp4", "c.mp4", "d.mp4")

	b := NewBuilder(dir, "")
	b.Shuffle = true
	// Reverse-order permutation: always swap with index 0.
	b.randFn = func(n int) int { return 0 }

	entries, err := b.BuildKind(media.KindVideo)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	sorted, err := NewBuilder(dir, "").BuildKind(media.KindVideo)
	require.NoError(t, err)
	assert.ElementsMatch(t, sorted, entries)
	assert.NotEqual(t, sorted, entries)
}

func TestBuilder_BuildKind_RandomStart(t *testing.T) {
	dir := makeLibrary(t, "a.mp4", "b.mp4", "c.mp4")

	b := NewBuilder(dir, "")
	b.RandomStart = true
	b.randFn = func(n int) int { return 1 }

	entries, err := b.BuildKind(media.KindVideo)
	require.NoError(t, err)

	require.Len(t, entries, 3)
	assert.Equal(t, filepath.Join(dir, "b.mp4"), entries[0])
	assert.Equal(t, filepath.Join(dir, "c.mp4"), entries[1])
	assert.Equal(t, filepath.Join(dir, "a.mp4"), entries[2])
}

func TestBuilder_Build_WritesBothPlans(t *testing.T) {
	videoDir := makeLibrary(t, "a.mp4", "b.mkv")
	audioDir := makeLibrary(t, "x.mp3", "y.flac")
	out := t.TempDir()

	videoPlan := filepath.Join(out, "video.plan")
	audioPlan := filepath.Join(out, "audio.plan")

	b := NewBuilder(videoDir, audioDir)
	require.NoError(t, b.Build(videoPlan, audioPlan))

	video, err := ReadPlan(videoPlan)
	require.NoError(t, err)
	assert.Len(t, video, 2)

	audio, err := ReadPlan(audioPlan)
	require.NoError(t, err)
	assert.Len(t, audio, 2)
}

func TestBuilder_Build_EmptyAudioFailsWholeBuild(t *testing.T) {
	videoDir := makeLibrary(t, "a.mp4")
	audioDir := t.TempDir()
	out := t.TempDir()

	b := NewBuilder(videoDir, audioDir)
	err := b.Build(filepath.Join(out, "video.plan"), filepath.Join(out, "audio.plan"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyLibrary))
}

func TestBuilder_BuildVideo(t *testing.T) {
	videoDir := makeLibrary(t, "a.mp4")
	plan := filepath.Join(t.TempDir(), "video.plan")

	b := NewBuilder(videoDir, "")
	require.NoError(t, b.BuildVideo(plan))

	entries, err := ReadPlan(plan)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRotate(t *testing.T) {
	entries := []string{"a", "b", "c", "d"}
	rotate(entries, 2)
	assert.Equal(t, []string{"c", "d", "a", "b"}, entries)

	entries = []string{"a", "b"}
	rotate(entries, 0)
	assert.Equal(t, []string{"a", "b"}, entries)

	entries = []string{"a", "b", "c"}
	rotate(entries, 4)
	assert.Equal(t, []string{"b", "c", "a"}, entries)
}
