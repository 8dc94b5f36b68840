package ffmpeg

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandBuilder_Build(t *testing.T) {
	cmd := NewCommandBuilder("/usr/bin/ffmpeg").
		HideBanner().
		Overwrite().
		Realtime().ConcatInput("/plans/video.plan").
		Realtime().ConcatInput("/plans/audio.plan").
		Map("0:v:0").
		Map("1:a:0").
		VideoCodec("libx264").
		CRF(23).
		VideoPreset("veryfast").
		GOPSize(60).
		AudioCodec("aac").
		AudioBitrate("128k").
		Output("/out/index.m3u8").
		Build()

	assert.Equal(t, "/usr/bin/ffmpeg", cmd.Binary)

	joined := strings.Join(cmd.Args, " ")
	assert.Contains(t, joined, "-loglevel error")
	assert.Contains(t, joined, "-hide_banner")
	assert.Contains(t, joined, "-y")
	assert.Contains(t, joined, "-re -f concat -safe 0 -stream_loop -1 -i /plans/video.plan")
	assert.Contains(t, joined, "-re -f concat -safe 0 -stream_loop -1 -i /plans/audio.plan")
	assert.Contains(t, joined, "-map 0:v:0")
	assert.Contains(t, joined, "-map 1:a:0")
	assert.Contains(t, joined, "-c:v libx264")
	assert.Contains(t, joined, "-crf 23")
	assert.Contains(t, joined, "-preset veryfast")
	assert.Contains(t, joined, "-g 60")
	assert.Contains(t, joined, "-c:a aac")
	assert.Contains(t, joined, "-b:a 128k")
	assert.True(t, strings.HasSuffix(joined, "/out/index.m3u8"))
}

func TestCommandBuilder_InputOrdering(t *testing.T) {
	cmd := NewCommandBuilder("ffmpeg").
		Realtime().Input("/a.mp4").
		Input("https://cdn.example.com/audio").
		Build()

	joined := strings.Join(cmd.Args, " ")
	// -re binds to the first input only.
	assert.Contains(t, joined, "-re -i /a.mp4 -i https://cdn.example.com/audio")
}

func TestCommandBuilder_MaxHeight(t *testing.T) {
	cmd := NewCommandBuilder("ffmpeg").
		Input("/a.mp4").
		MaxHeight(720).
		Output("/out.ts").
		Build()

	joined := strings.Join(cmd.Args, " ")
	assert.Contains(t, joined, "-vf scale=-2:'min(720,ih)'")

	noScale := NewCommandBuilder("ffmpeg").
		Input("/a.mp4").
		MaxHeight(0).
		Output("/out.ts").
		Build()
	assert.NotContains(t, strings.Join(noScale.Args, " "), "-vf")
}

func TestCommandBuilder_HLSArgs(t *testing.T) {
	cmd := NewCommandBuilder("ffmpeg").
		Input("/a.mp4").
		HLSArgs(4, 6).
		Output("/out/index.m3u8").
		Build()

	joined := strings.Join(cmd.Args, " ")
	assert.Contains(t, joined, "-f hls")
	assert.Contains(t, joined, "-hls_time 4")
	assert.Contains(t, joined, "-hls_list_size 6")
	assert.Contains(t, joined, "-hls_flags delete_segments+append_list")
}

func TestCommandBuilder_MpegtsOutput(t *testing.T) {
	cmd := NewCommandBuilder("ffmpeg").
		Input("/a.mp4").
		MpegtsArgs().
		FlushPackets().
		Output("udp://127.0.0.1:12000?pkt_size=1316").
		Build()

	joined := strings.Join(cmd.Args, " ")
	assert.Contains(t, joined, "-f mpegts")
	assert.Contains(t, joined, "-flush_packets 1")
	assert.True(t, strings.HasSuffix(joined, "udp://127.0.0.1:12000?pkt_size=1316"))
}

func TestCommandBuilder_LogLevel(t *testing.T) {
	cmd := NewCommandBuilder("ffmpeg").LogLevel("warning").Input("/a.mp4").Build()
	assert.Contains(t, strings.Join(cmd.Args, " "), "-loglevel warning")
}

func TestCommand_String(t *testing.T) {
	cmd := NewCommand("ffmpeg", "-i", "/a.mp4", "out.ts")
	assert.Equal(t, "ffmpeg -i /a.mp4 out.ts", cmd.String())
}

func TestCommand_RunCapturesStderr(t *testing.T) {
	cmd := NewCommand("sh", "-c", "echo first >&2; echo second >&2; exit 3")
	err := cmd.Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, []string{"first", "second"}, cmd.StderrLines())
	assert.Equal(t, "second", cmd.LastStderrLine())
}

func TestCommand_StartWaitPID(t *testing.T) {
	cmd := NewCommand("sh", "-c", "exit 0")
	require.NoError(t, cmd.Start(context.Background()))
	assert.Greater(t, cmd.PID(), 0)
	require.NoError(t, cmd.Wait())
}

func TestCommand_WaitWithoutStart(t *testing.T) {
	cmd := NewCommand("sh", "-c", "exit 0")
	require.Error(t, cmd.Wait())
}

func TestCommand_SignalWithoutStart(t *testing.T) {
	cmd := NewCommand("sh", "-c", "exit 0")
	assert.NoError(t, cmd.Signal(nil))
	assert.NoError(t, cmd.Kill())
	assert.Equal(t, 0, cmd.PID())
}
