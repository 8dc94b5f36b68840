package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Command represents one external process invocation. It is generic over
// the binary so supervisor tests can substitute stub commands.
type Command struct {
	Binary string
	Args   []string

	cmd     *exec.Cmd
	started time.Time
	mu      sync.RWMutex

	// Recent stderr lines for diagnosing crashes.
	stderrLines []string
	stderrMu    sync.RWMutex
	stderrDone  chan struct{}
}

// CommandBuilder builds FFmpeg commands with a fluent API.
type CommandBuilder struct {
	binary     string
	globalArgs []string
	inputArgs  []string
	inputs     []input
	filterArgs []string
	outputArgs []string
	output     string
	logLevel   string
	overwrite  bool
}

// input pairs per-input args with the input URL or path.
type input struct {
	args []string
	src  string
}

// NewCommandBuilder creates a new FFmpeg command builder.
func NewCommandBuilder(ffmpegPath string) *CommandBuilder {
	return &CommandBuilder{
		binary:   ffmpegPath,
		logLevel: "error",
	}
}

// LogLevel sets the FFmpeg log level.
func (b *CommandBuilder) LogLevel(level string) *CommandBuilder {
	b.logLevel = level
	return b
}

// HideBanner hides the FFmpeg banner.
func (b *CommandBuilder) HideBanner() *CommandBuilder {
	b.globalArgs = append(b.globalArgs, "-hide_banner")
	return b
}

// Overwrite enables output file overwriting.
func (b *CommandBuilder) Overwrite() *CommandBuilder {
	b.overwrite = true
	return b
}

// Realtime rate-limits input reading to native frame rate. Required for a
// live channel fed from files.
func (b *CommandBuilder) Realtime() *CommandBuilder {
	return b.InputArgs("-re")
}

// InputArgs adds arguments applying to the next input.
func (b *CommandBuilder) InputArgs(args ...string) *CommandBuilder {
	b.inputArgs = append(b.inputArgs, args...)
	return b
}

// Input adds an input source, consuming any pending input args.
func (b *CommandBuilder) Input(src string) *CommandBuilder {
	b.inputs = append(b.inputs, input{args: b.inputArgs, src: src})
	b.inputArgs = nil
	return b
}

// ConcatInput adds a concat-demuxer plan file input that loops forever,
// consuming any pending input args.
func (b *CommandBuilder) ConcatInput(planPath string) *CommandBuilder {
	b.inputArgs = append(b.inputArgs,
		"-f", "concat",
		"-safe", "0",
		"-stream_loop", "-1")
	return b.Input(planPath)
}

// VideoCodec sets the video codec.
func (b *CommandBuilder) VideoCodec(codec string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-c:v", codec)
	return b
}

// AudioCodec sets the audio codec.
func (b *CommandBuilder) AudioCodec(codec string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-c:a", codec)
	return b
}

// NoVideo disables the video stream.
func (b *CommandBuilder) NoVideo() *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-vn")
	return b
}

// NoAudio disables the audio stream.
func (b *CommandBuilder) NoAudio() *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-an")
	return b
}

// CRF sets the constant rate factor.
func (b *CommandBuilder) CRF(crf int) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-crf", strconv.Itoa(crf))
	return b
}

// VideoPreset sets the encoding preset.
func (b *CommandBuilder) VideoPreset(preset string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-preset", preset)
	return b
}

// GOPSize sets the keyframe interval in frames.
func (b *CommandBuilder) GOPSize(frames int) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-g", strconv.Itoa(frames))
	return b
}

// MaxHeight adds a scale filter capping output height while preserving
// aspect ratio. Widths are forced even for encoder compatibility.
func (b *CommandBuilder) MaxHeight(height int) *CommandBuilder {
	if height > 0 {
		b.filterArgs = append(b.filterArgs,
			fmt.Sprintf("scale=-2:'min(%d,ih)'", height))
	}
	return b
}

// AudioBitrate sets the audio bitrate.
func (b *CommandBuilder) AudioBitrate(bitrate string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-b:a", bitrate)
	return b
}

// SampleRate sets the audio sample rate.
func (b *CommandBuilder) SampleRate(rate int) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-ar", strconv.Itoa(rate))
	return b
}

// AudioChannels sets the number of audio channels.
func (b *CommandBuilder) AudioChannels(channels int) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-ac", strconv.Itoa(channels))
	return b
}

// Map selects a stream from an input, e.g. Map("0:v").
func (b *CommandBuilder) Map(spec string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-map", spec)
	return b
}

// OutputArgs adds arbitrary output arguments.
func (b *CommandBuilder) OutputArgs(args ...string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, args...)
	return b
}

// HLSArgs adds HLS segmenter output arguments. segmentSeconds is the target
// segment duration and listSize the number of segments retained in the
// index; old segments are deleted as the window advances.
func (b *CommandBuilder) HLSArgs(segmentSeconds, listSize int) *CommandBuilder {
	b.outputArgs = append(b.outputArgs,
		"-f", "hls",
		"-hls_time", strconv.Itoa(segmentSeconds),
		"-hls_list_size", strconv.Itoa(listSize),
		"-hls_flags", "delete_segments+append_list")
	return b
}

// MpegtsArgs adds MPEG-TS output arguments for socket or UDP delivery.
func (b *CommandBuilder) MpegtsArgs() *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-f", "mpegts")
	return b
}

// FlushPackets enables immediate packet flushing for low latency.
func (b *CommandBuilder) FlushPackets() *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-flush_packets", "1")
	return b
}

// Output sets the output destination.
func (b *CommandBuilder) Output(output string) *CommandBuilder {
	b.output = output
	return b
}

// Build builds the command.
func (b *CommandBuilder) Build() *Command {
	var args []string

	args = append(args, "-loglevel", b.logLevel)
	args = append(args, b.globalArgs...)

	if b.overwrite {
		args = append(args, "-y")
	}

	for _, in := range b.inputs {
		args = append(args, in.args...)
		args = append(args, "-i", in.src)
	}

	if len(b.filterArgs) > 0 {
		args = append(args, "-vf", strings.Join(b.filterArgs, ","))
	}

	args = append(args, b.outputArgs...)
	args = append(args, b.output)

	return NewCommand(b.binary, args...)
}

// NewCommand wraps an arbitrary binary invocation in a Command.
func NewCommand(binary string, args ...string) *Command {
	return &Command{
		Binary:      binary,
		Args:        args,
		stderrLines: make([]string, 0, 50),
	}
}

// String returns the command as a string.
func (c *Command) String() string {
	return c.Binary + " " + strings.Join(c.Args, " ")
}

// Start starts the command without waiting. Stderr is captured to an
// in-memory ring of recent lines for crash diagnosis.
func (c *Command) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cmd = exec.CommandContext(ctx, c.Binary, c.Args...)
	c.started = time.Now()

	stderr, err := c.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("getting stderr pipe: %w", err)
	}

	if err := c.cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", c.Binary, err)
	}

	c.stderrDone = make(chan struct{})
	go c.captureStderr(stderr, c.stderrDone)

	return nil
}

// Run executes the command and waits for completion.
func (c *Command) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	return c.Wait()
}

// Wait waits for the command to complete and reaps it.
func (c *Command) Wait() error {
	c.mu.RLock()
	cmd := c.cmd
	done := c.stderrDone
	c.mu.RUnlock()

	if cmd == nil {
		return fmt.Errorf("command not started")
	}

	if done != nil {
		<-done
	}
	return cmd.Wait()
}

// Signal sends a signal to the process. A nil process is not an error; the
// command may already be fully reaped.
func (c *Command) Signal(sig os.Signal) error {
	c.mu.RLock()
	cmd := c.cmd
	c.mu.RUnlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return cmd.Process.Signal(sig)
}

// Kill forcibly terminates the process.
func (c *Command) Kill() error {
	c.mu.RLock()
	cmd := c.cmd
	c.mu.RUnlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

// PID returns the process ID, or 0 if not started.
func (c *Command) PID() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.cmd == nil || c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

// Duration returns how long the command has been running.
func (c *Command) Duration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.started.IsZero() {
		return 0
	}
	return time.Since(c.started)
}

// captureStderr keeps the most recent stderr lines in memory.
func (c *Command) captureStderr(stderr io.ReadCloser, done chan struct{}) {
	defer close(done)

	scanner := bufio.NewScanner(stderr)
	const maxLines = 50

	for scanner.Scan() {
		line := scanner.Text()

		c.stderrMu.Lock()
		if len(c.stderrLines) >= maxLines {
			c.stderrLines = c.stderrLines[1:]
		}
		c.stderrLines = append(c.stderrLines, line)
		c.stderrMu.Unlock()
	}
}

// StderrLines returns the recent stderr lines captured from the process.
func (c *Command) StderrLines() []string {
	c.stderrMu.RLock()
	defer c.stderrMu.RUnlock()

	lines := make([]string, len(c.stderrLines))
	copy(lines, c.stderrLines)
	return lines
}

// LastStderrLine returns the final captured stderr line, or "".
func (c *Command) LastStderrLine() string {
	c.stderrMu.RLock()
	defer c.stderrMu.RUnlock()

	if len(c.stderrLines) == 0 {
		return ""
	}
	return c.stderrLines[len(c.stderrLines)-1]
}
