package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// ProbeResult is the parsed JSON report of an ffprobe inspection.
type ProbeResult struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index         int    `json:"index"`
	CodecType     string `json:"codec_type"`
	CodecName     string `json:"codec_name"`
	CodecLongName string `json:"codec_long_name"`
	Profile       string `json:"profile"`
	PixFmt        string `json:"pix_fmt"`
	Level         *int   `json:"level"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	AvgFrameRate  string `json:"avg_frame_rate"`
	RFrameRate    string `json:"r_frame_rate"`
	SampleRate    string `json:"sample_rate"`
	Channels      int    `json:"channels"`
	BitRate       string `json:"bit_rate"`
}

// Format captures container-level metadata.
type Format struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

// Prober inspects media files with ffprobe.
type Prober struct {
	Runner Runner
}

func NewProber(binary string) Prober {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	return Prober{Runner: Runner{Binary: binary}}
}

// Probe runs ffprobe against path and decodes its JSON report. Failures are
// returned as *ProbeError.
func (p Prober) Probe(ctx context.Context, path string) (ProbeResult, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return ProbeResult{}, &ProbeError{Err: errors.New("empty path")}
	}
	stdout, stderr, err := p.Runner.Run(ctx,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path)
	if err != nil {
		return ProbeResult{}, &ProbeError{Path: path, Stderr: strings.TrimSpace(string(stderr)), Err: err}
	}
	return ParseProbe(path, stdout)
}

// ParseProbe decodes an ffprobe JSON report.
func ParseProbe(path string, data []byte) (ProbeResult, error) {
	var result ProbeResult
	if err := json.Unmarshal(data, &result); err != nil {
		return ProbeResult{}, &ProbeError{Path: path, Err: err}
	}
	return result, nil
}

// FirstStream returns the first stream of the given codec type, or nil.
func (r ProbeResult) FirstStream(codecType string) *Stream {
	for i := range r.Streams {
		if strings.EqualFold(r.Streams[i].CodecType, codecType) {
			return &r.Streams[i]
		}
	}
	return nil
}

// FPS prefers the average frame rate over the nominal one.
func (s Stream) FPS() (float64, bool) {
	if fps, ok := ParseFrameRate(s.AvgFrameRate); ok {
		return fps, true
	}
	return ParseFrameRate(s.RFrameRate)
}

// ParseFrameRate accepts "30", "29.97" or "30000/1001". Zero denominators and
// zero rates ("0/0" is common for audio-only probes) are rejected.
func ParseFrameRate(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	num, den, isFraction := strings.Cut(value, "/")
	if !isFraction {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f <= 0 || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0, false
	}
	if n/d <= 0 {
		return 0, false
	}
	return n / d, true
}

// ParseBitRate parses a decimal integer bit rate in bits per second.
func ParseBitRate(value string) (int64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// DurationSeconds returns the container duration, or false when unavailable.
func (r ProbeResult) DurationSeconds() (float64, bool) {
	d, err := strconv.ParseFloat(strings.TrimSpace(r.Format.Duration), 64)
	if err != nil || math.IsNaN(d) {
		return 0, false
	}
	return d, true
}
