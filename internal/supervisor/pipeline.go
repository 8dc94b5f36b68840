package supervisor

import (
	"fmt"
	"path/filepath"

	"github.com/jmylchreest/loopcast/internal/config"
	"github.com/jmylchreest/loopcast/internal/ffmpeg"
	"github.com/jmylchreest/loopcast/internal/resolver"
)

// Pipeline describes the subprocess graph spawned for one generation.
type Pipeline interface {
	// Primary builds the generation's primary process: the muxer in split
	// topology, the single combined process otherwise. handle is non-nil
	// only in external-audio mode.
	Primary(handle *resolver.Handle) (*ffmpeg.Command, error)
	// Feeders returns the looping feeder roles to run alongside the
	// primary. Empty for single-process topologies.
	Feeders() []*Feeder
}

// Options carries everything needed to build the production pipelines.
type Options struct {
	FFmpegPath string
	VideoPlan  string
	AudioPlan  string
	OutputDir  string
	ListenAddr string // non-empty selects a listening MPEG-TS socket over HLS
	Encode     config.EncodeConfig
	Segment    config.SegmentConfig
	VideoPort  int
	AudioPort  int
}

// applyOutput attaches the configured output stage to a builder whose
// encode (or copy) args are already set.
func (o Options) applyOutput(b *ffmpeg.CommandBuilder) *ffmpeg.CommandBuilder {
	if o.ListenAddr != "" {
		return b.MpegtsArgs().
			FlushPackets().
			Output(fmt.Sprintf("tcp://%s?listen=1", o.ListenAddr))
	}
	return b.
		OutputArgs("-hls_segment_filename", filepath.Join(o.OutputDir, "segment%05d.ts")).
		HLSArgs(int(o.Segment.Duration.Seconds()), o.Segment.Retention).
		Output(filepath.Join(o.OutputDir, "index.m3u8"))
}

// applyVideoEncode adds the fixed video encode parameters.
func (o Options) applyVideoEncode(b *ffmpeg.CommandBuilder) *ffmpeg.CommandBuilder {
	return b.
		VideoCodec("libx264").
		CRF(o.Encode.CRF).
		VideoPreset(o.Encode.Preset).
		GOPSize(o.Encode.GOPSize).
		MaxHeight(o.Encode.MaxHeight)
}

// applyAudioEncode adds the fixed audio encode parameters.
func (o Options) applyAudioEncode(b *ffmpeg.CommandBuilder) *ffmpeg.CommandBuilder {
	return b.
		AudioCodec("aac").
		AudioBitrate(o.Encode.AudioBitrate).
		SampleRate(o.Encode.SampleRate).
		AudioChannels(o.Encode.AudioChannels)
}

// SinglePipeline is the one-process topology: a single transcode consuming
// both plans via the concat demuxer and producing the output stream.
type SinglePipeline struct {
	Options
}

// NewSinglePipeline creates the single-process topology.
func NewSinglePipeline(opts Options) *SinglePipeline {
	return &SinglePipeline{Options: opts}
}

func (p *SinglePipeline) Primary(_ *resolver.Handle) (*ffmpeg.Command, error) {
	b := ffmpeg.NewCommandBuilder(p.FFmpegPath).
		HideBanner().
		Overwrite().
		Realtime().ConcatInput(p.VideoPlan).
		Realtime().ConcatInput(p.AudioPlan).
		Map("0:v:0").
		Map("1:a:0")
	b = p.applyVideoEncode(b)
	b = p.applyAudioEncode(b)
	return p.applyOutput(b).Build(), nil
}

func (p *SinglePipeline) Feeders() []*Feeder {
	return nil
}

// RadioPipeline is the external-audio topology: looping local video muxed
// with a live remote audio stream resolved per generation.
type RadioPipeline struct {
	Options
}

// NewRadioPipeline creates the external-audio topology.
func NewRadioPipeline(opts Options) *RadioPipeline {
	return &RadioPipeline{Options: opts}
}

func (p *RadioPipeline) Primary(handle *resolver.Handle) (*ffmpeg.Command, error) {
	if handle == nil || handle.URL == "" {
		return nil, fmt.Errorf("radio pipeline requires a resolved audio handle")
	}

	b := ffmpeg.NewCommandBuilder(p.FFmpegPath).
		HideBanner().
		Overwrite().
		Realtime().ConcatInput(p.VideoPlan).
		Input(handle.URL).
		Map("0:v:0").
		Map("1:a:0")
	b = p.applyVideoEncode(b)
	b = p.applyAudioEncode(b)
	return p.applyOutput(b).Build(), nil
}

func (p *RadioPipeline) Feeders() []*Feeder {
	return nil
}

// SplitPipeline is the three-process topology: independent video and audio
// feeder loops writing pre-encoded MPEG-TS to loopback UDP transports, and
// a muxer combining both transports into the final output. The transports
// use bounded FIFOs that drop on overrun rather than block, so the feeders
// stay decoupled from the muxer's pacing.
type SplitPipeline struct {
	Options
}

// NewSplitPipeline creates the feeder+muxer topology.
func NewSplitPipeline(opts Options) *SplitPipeline {
	return &SplitPipeline{Options: opts}
}

// transportURL is the loopback address a feeder writes to.
func transportURL(port int) string {
	return fmt.Sprintf("udp://127.0.0.1:%d?pkt_size=1316", port)
}

// transportInputURL is the matching muxer input: bounded FIFO, overruns
// dropped instead of fatal.
func transportInputURL(port int) string {
	return fmt.Sprintf("udp://127.0.0.1:%d?fifo_size=65536&overrun_nonfatal=1", port)
}

func (p *SplitPipeline) Primary(_ *resolver.Handle) (*ffmpeg.Command, error) {
	// Feeders already encoded; the muxer only re-containers.
	b := ffmpeg.NewCommandBuilder(p.FFmpegPath).
		HideBanner().
		Overwrite().
		Input(transportInputURL(p.VideoPort)).
		Input(transportInputURL(p.AudioPort)).
		Map("0:v:0").
		Map("1:a:0").
		VideoCodec("copy").
		AudioCodec("copy")
	return p.applyOutput(b).Build(), nil
}

func (p *SplitPipeline) Feeders() []*Feeder {
	videoOut := transportURL(p.VideoPort)
	audioOut := transportURL(p.AudioPort)

	videoFeeder := NewFeeder(RoleVideoLoop, p.VideoPlan, func(item string) *ffmpeg.Command {
		b := ffmpeg.NewCommandBuilder(p.FFmpegPath).
			HideBanner().
			Realtime().Input(item).
			NoAudio()
		b = p.applyVideoEncode(b)
		return b.MpegtsArgs().FlushPackets().Output(videoOut).Build()
	})

	audioFeeder := NewFeeder(RoleAudioLoop, p.AudioPlan, func(item string) *ffmpeg.Command {
		b := ffmpeg.NewCommandBuilder(p.FFmpegPath).
			HideBanner().
			Realtime().Input(item).
			NoVideo()
		b = p.applyAudioEncode(b)
		return b.MpegtsArgs().FlushPackets().Output(audioOut).Build()
	})

	return []*Feeder{videoFeeder, audioFeeder}
}
