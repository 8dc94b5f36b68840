package resolver

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRunner scripts responses per format preference.
type stubRunner struct {
	responses map[string]string // preference -> stdout; missing means error
	calls     []string
}

func (s *stubRunner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	// args are: -g -f <pref> <url>
	pref := args[2]
	s.calls = append(s.calls, pref)
	out, ok := s.responses[pref]
	if !ok {
		return nil, fmt.Errorf("no format matching %q", pref)
	}
	return []byte(out), nil
}

func newTestResolver(runner Runner) *Resolver {
	return New("yt-dlp", "https://example.com/live", []string{
		"bestaudio[ext=m4a]", "bestaudio", "best",
	}, 10*time.Millisecond).WithRunner(runner)
}

func TestResolver_Resolve_FirstPreferenceWins(t *testing.T) {
	runner := &stubRunner{responses: map[string]string{
		"bestaudio[ext=m4a]": "https://cdn.example.com/audio.m4a\n",
		"bestaudio":          "https://cdn.example.com/other\n",
	}}

	handle, err := newTestResolver(runner).Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/audio.m4a", handle.URL)
	assert.Equal(t, "bestaudio[ext=m4a]", handle.Preference)
	assert.False(t, handle.ResolvedAt.IsZero())
	assert.Equal(t, []string{"bestaudio[ext=m4a]"}, runner.calls)
}

func TestResolver_Resolve_FallsThroughFailures(t *testing.T) {
	runner := &stubRunner{responses: map[string]string{
		"best": "https://cdn.example.com/fallback\n",
	}}

	handle, err := newTestResolver(runner).Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/fallback", handle.URL)
	assert.Equal(t, "best", handle.Preference)
	assert.Equal(t, []string{"bestaudio[ext=m4a]", "bestaudio", "best"}, runner.calls)
}

func TestResolver_Resolve_EmptyOutputTreatedAsFailure(t *testing.T) {
	runner := &stubRunner{responses: map[string]string{
		"bestaudio[ext=m4a]": "\n\n",
		"bestaudio":          "https://cdn.example.com/audio\n",
	}}

	handle, err := newTestResolver(runner).Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bestaudio", handle.Preference)
}

func TestResolver_Resolve_AllFail(t *testing.T) {
	runner := &stubRunner{responses: map[string]string{}}

	_, err := newTestResolver(runner).Resolve(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrResolutionFailed))
	assert.Len(t, runner.calls, 3)
}

func TestResolver_Resolve_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &stubRunner{responses: map[string]string{}}
	_, err := newTestResolver(runner).Resolve(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, runner.calls)
}

// flakyRunner fails every attempt until the countdown reaches zero.
type flakyRunner struct {
	failuresLeft int
	url          string
}

func (f *flakyRunner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return nil, fmt.Errorf("transient failure")
	}
	return []byte(f.url + "\n"), nil
}

func TestResolver_ResolveWithRetry_EventuallySucceeds(t *testing.T) {
	// Fail the first full pass (3 preferences), succeed on the second.
	runner := &flakyRunner{failuresLeft: 3, url: "https://cdn.example.com/audio"}

	handle, err := newTestResolver(runner).ResolveWithRetry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/audio", handle.URL)
}

func TestResolver_ResolveWithRetry_StopsOnCancel(t *testing.T) {
	runner := &stubRunner{responses: map[string]string{}}
	r := newTestResolver(runner)

	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := r.ResolveWithRetry(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), time.Second)
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "a", firstLine("a\nb\n"))
	assert.Equal(t, "a", firstLine("\n  \na\n"))
	assert.Equal(t, "trimmed", firstLine("  trimmed  \n"))
	assert.Equal(t, "", firstLine("\n\n"))
	assert.Equal(t, "", firstLine(""))
}
