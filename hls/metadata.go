package hls

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"video-site/ffmpeg"
)

const (
	MasterManifest  = "master.m3u8"
	ProgressiveFile = "progressive.mp4"
)

var ErrManifestMissing = errors.New("master manifest not found")

// Prober is satisfied by ffmpeg.Prober.
type Prober interface {
	Probe(ctx context.Context, path string) (ffmpeg.ProbeResult, error)
}

type CodecInfo struct {
	CodecName     *string `json:"codecName"`
	CodecLongName *string `json:"codecLongName"`
	Profile       *string `json:"profile"`
	PixelFormat   *string `json:"pixelFormat,omitempty"`
	Level         *int    `json:"level,omitempty"`
	SampleRate    *int    `json:"sampleRate,omitempty"`
	Channels      *int    `json:"channels,omitempty"`
	BitRateKbps   *int64  `json:"bitRateKbps"`
}

type VariantInfo struct {
	ID              *string    `json:"id"`
	Path            string     `json:"path"`
	BandwidthKbps   *int64     `json:"bandwidthKbps"`
	AvgMeasuredKbps *int64     `json:"avgMeasuredKbps"`
	SizeBytes       *int64     `json:"sizeBytes"`
	DurationSeconds *int       `json:"durationSeconds"`
	Resolution      *string    `json:"resolution"`
	Width           *int       `json:"width"`
	Height          *int       `json:"height"`
	FPS             *float64   `json:"fps"`
	Codecs          *string    `json:"codecs"`
	VideoCodec      *CodecInfo `json:"videoCodec"`
	AudioCodec      *CodecInfo `json:"audioCodec"`
}

type ProgressiveInfo struct {
	Path            string     `json:"path"`
	SizeBytes       *int64     `json:"sizeBytes"`
	MeasuredKbps    *int64     `json:"measuredKbps"`
	DurationSeconds *int       `json:"durationSeconds"`
	Width           *int       `json:"width"`
	Height          *int       `json:"height"`
	FPS             *float64   `json:"fps"`
	PixelFormat     *string    `json:"pixelFormat"`
	VideoCodec      *CodecInfo `json:"videoCodec"`
	AudioCodec      *CodecInfo `json:"audioCodec"`
}

type Playlists struct {
	Master   string        `json:"master"`
	Variants []VariantInfo `json:"variants"`
}

// Metadata is everything derived from one transcode output directory.
type Metadata struct {
	Name        string          `json:"name"`
	OutputDir   string          `json:"outputDir"`
	HLS         Playlists       `json:"hls"`
	Progressive ProgressiveInfo `json:"progressive"`
}

// Builder derives Metadata from an output directory containing
// master.m3u8, its variant manifests and progressive.mp4.
type Builder struct {
	Prober Prober
}

// Build fails with ErrManifestMissing when the master manifest is absent.
// Unreadable segments and failed probes only blank the affected fields.
func (b Builder) Build(ctx context.Context, outDir string) (*Metadata, error) {
	outputDir, err := filepath.Abs(outDir)
	if err != nil {
		return nil, err
	}
	masterPath := filepath.Join(outputDir, MasterManifest)

	f, err := os.Open(masterPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w at %s", ErrManifestMissing, masterPath)
	}
	if err != nil {
		return nil, err
	}
	streams, err := ParseMaster(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", masterPath, err)
	}

	variants := make([]VariantInfo, 0, len(streams))
	for _, stream := range streams {
		variants = append(variants, b.variant(ctx, outputDir, stream))
	}

	return &Metadata{
		Name:      filepath.Base(outputDir),
		OutputDir: outputDir,
		HLS: Playlists{
			Master:   masterPath,
			Variants: variants,
		},
		Progressive: b.progressive(ctx, filepath.Join(outputDir, ProgressiveFile)),
	}, nil
}

func (b Builder) variant(ctx context.Context, outputDir string, stream StreamInf) VariantInfo {
	info := VariantInfo{
		ID:   strPtr(stream.ID),
		Path: stream.URI,
	}
	attrs := stream.Attributes
	if bandwidth, ok := attrs.Int("BANDWIDTH"); ok {
		info.BandwidthKbps = int64Ptr(int64(math.Round(float64(bandwidth) / 1000)))
	}
	if res, ok := attrs.String("RESOLUTION"); ok {
		info.Resolution = &res
	}
	if w, h, ok := attrs.Resolution("RESOLUTION"); ok {
		info.Width, info.Height = intPtr(w), intPtr(h)
	}
	if fps, ok := attrs.Float("FRAME-RATE"); ok {
		info.FPS = &fps
	}
	if codecs, ok := attrs.String("CODECS"); ok {
		info.Codecs = &codecs
	}

	manifestPath := filepath.Join(outputDir, filepath.FromSlash(stream.URI))
	totals, err := SumVariant(manifestPath)
	if err != nil {
		log.Warnf("variant %s: %v", stream.URI, err)
	} else {
		info.SizeBytes = int64Ptr(totals.Bytes)
		if totals.DurationMs > 0 {
			seconds := float64(totals.DurationMs) / 1000
			info.DurationSeconds = intPtr(int(math.Round(seconds)))
			info.AvgMeasuredKbps = int64Ptr(int64(math.Round(float64(totals.Bytes) * 8 / seconds / 1000)))
		}
	}

	probe, err := b.Prober.Probe(ctx, manifestPath)
	if err != nil {
		log.Warnf("probe variant %s: %v", stream.URI, err)
		return info
	}
	if len(probe.Streams) == 0 {
		return info
	}
	if v := probe.FirstStream("video"); v != nil {
		if info.Width == nil && v.Width > 0 {
			info.Width = intPtr(v.Width)
		}
		if info.Height == nil && v.Height > 0 {
			info.Height = intPtr(v.Height)
		}
		if info.FPS == nil {
			if fps, ok := v.FPS(); ok {
				rounded := math.Round(fps*1000) / 1000
				info.FPS = &rounded
			}
		}
	}
	info.VideoCodec = videoCodec(probe)
	info.AudioCodec = audioCodec(probe)
	return info
}

func (b Builder) progressive(ctx context.Context, path string) ProgressiveInfo {
	info := ProgressiveInfo{Path: filepath.Base(path)}
	if size := statSize(path); size > 0 {
		info.SizeBytes = &size
	}

	probe, err := b.Prober.Probe(ctx, path)
	if err != nil {
		log.Warnf("probe progressive %s: %v", path, err)
		return info
	}

	video := probe.FirstStream("video")
	if bps, ok := ffmpeg.ParseBitRate(probe.Format.BitRate); ok {
		info.MeasuredKbps = kbps(bps)
	} else {
		for _, s := range probe.Streams {
			if s.CodecType != "video" {
				continue
			}
			if bps, ok := ffmpeg.ParseBitRate(s.BitRate); ok {
				info.MeasuredKbps = kbps(bps)
				break
			}
		}
	}
	if d, ok := probe.DurationSeconds(); ok {
		info.DurationSeconds = intPtr(int(math.Round(d)))
	}
	if video != nil {
		if video.Width > 0 {
			info.Width = intPtr(video.Width)
		}
		if video.Height > 0 {
			info.Height = intPtr(video.Height)
		}
		if fps, ok := video.FPS(); ok {
			info.FPS = &fps
		}
		info.PixelFormat = strPtr(video.PixFmt)
	}
	info.VideoCodec = videoCodec(probe)
	info.AudioCodec = audioCodec(probe)
	return info
}

func videoCodec(probe ffmpeg.ProbeResult) *CodecInfo {
	v := probe.FirstStream("video")
	if v == nil {
		return nil
	}
	info := &CodecInfo{
		CodecName:     strPtr(v.CodecName),
		CodecLongName: strPtr(v.CodecLongName),
		Profile:       strPtr(v.Profile),
		PixelFormat:   strPtr(v.PixFmt),
		Level:         v.Level,
	}
	if bps, ok := ffmpeg.ParseBitRate(v.BitRate); ok {
		info.BitRateKbps = kbps(bps)
	}
	return info
}

func audioCodec(probe ffmpeg.ProbeResult) *CodecInfo {
	a := probe.FirstStream("audio")
	if a == nil {
		return nil
	}
	info := &CodecInfo{
		CodecName:     strPtr(a.CodecName),
		CodecLongName: strPtr(a.CodecLongName),
		Profile:       strPtr(a.Profile),
	}
	if rate, err := strconv.Atoi(a.SampleRate); err == nil {
		info.SampleRate = &rate
	}
	if a.Channels > 0 {
		info.Channels = intPtr(a.Channels)
	}
	if bps, ok := ffmpeg.ParseBitRate(a.BitRate); ok {
		info.BitRateKbps = kbps(bps)
	}
	return info
}

func kbps(bps int64) *int64 {
	return int64Ptr(int64(math.Round(float64(bps) / 1000)))
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func intPtr(v int) *int {
	return &v
}

func int64Ptr(v int64) *int64 {
	return &v
}
