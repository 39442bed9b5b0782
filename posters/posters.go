package posters

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sync/errgroup"
)

// LosslessPoster is the still frame the encoder leaves in every output tree.
const LosslessPoster = "poster_lossless.png"

var ErrPosterSourceMissing = errors.New("poster source missing")

// Runner runs ffmpeg; ffmpeg.Runner satisfies it.
type Runner interface {
	Run(ctx context.Context, args ...string) ([]byte, []byte, error)
}

// Spec is one AVIF rendition. Quality is 0-100 (higher is better), Effort
// 0-8 (higher is slower and smaller).
type Spec struct {
	Name    string
	Width   int
	Quality int
	Effort  int
}

type Profile []Spec

// PipelineProfile is rendered from the encoder's lossless frame.
var PipelineProfile = Profile{
	{Name: "poster_480p", Width: 854, Quality: 80, Effort: 6},
	{Name: "poster_720p", Width: 1280, Quality: 80, Effort: 6},
	{Name: "poster_1080p", Width: 1920, Quality: 80, Effort: 6},
	{Name: "poster_1440p", Width: 2560, Quality: 82, Effort: 7},
	{Name: "poster_2160p", Width: 3840, Quality: 82, Effort: 7},
}

// OverrideProfile is rendered from an image uploaded by an admin, while the
// request waits.
var OverrideProfile = Profile{
	{Name: "poster_override_480p", Width: 854, Quality: 75, Effort: 4},
	{Name: "poster_override_720p", Width: 1280, Quality: 75, Effort: 4},
	{Name: "poster_override_1080p", Width: 1920, Quality: 75, Effort: 4},
	{Name: "poster_override_1440p", Width: 2560, Quality: 75, Effort: 4},
	{Name: "poster_override_2160p", Width: 3840, Quality: 75, Effort: 4},
}

type Output struct {
	Spec Spec
	Path string
}

// Service renders a Profile from one source image.
type Service struct {
	Ffmpeg Runner
}

// Derive writes one <Name>.avif per spec into dstDir, concurrently. Widths
// are upper bounds: the source is never upscaled and keeps its aspect ratio.
func (s Service) Derive(ctx context.Context, src, dstDir string, profile Profile) ([]Output, error) {
	info, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPosterSourceMissing, src, err)
	}
	if !info.Mode().IsRegular() || info.Size() == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrPosterSourceMissing, src)
	}

	outputs := make([]Output, len(profile))
	g, ctx := errgroup.WithContext(ctx)
	for i, spec := range profile {
		spec := spec
		dst := filepath.Join(dstDir, spec.Name+".avif")
		outputs[i] = Output{Spec: spec, Path: dst}
		g.Go(func() error {
			if _, _, err := s.Ffmpeg.Run(ctx, avifArgs(src, dst, spec)...); err != nil {
				return fmt.Errorf("render %s: %w", spec.Name, err)
			}
			log.Debugf("rendered %s", dst)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}

func avifArgs(src, dst string, spec Spec) []string {
	return []string{
		"-y", "-v", "error",
		"-i", src,
		"-vf", fmt.Sprintf("scale='min(%d,iw)':-2:flags=lanczos", spec.Width),
		"-frames:v", "1",
		"-c:v", "libaom-av1",
		"-still-picture", "1",
		"-crf", strconv.Itoa(qualityToCRF(spec.Quality)),
		"-cpu-used", strconv.Itoa(effortToCPUUsed(spec.Effort)),
		dst,
	}
}

// libaom crf runs 0 (lossless) to 63.
func qualityToCRF(quality int) int {
	quality = clamp(quality, 0, 100)
	return 63 - quality*63/100
}

func effortToCPUUsed(effort int) int {
	return clamp(8-effort, 0, 8)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
