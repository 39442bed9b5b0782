package transcodes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"video-site/ffmpeg"
	"video-site/hls"
	"video-site/media"
	"video-site/notifications"
	"video-site/posters"
)

const lockFile = ".transcode.lock"

var (
	ErrNoStoragePath = errors.New("upload has no storage path")
	ErrNoPublicID    = errors.New("video has no public id")
	ErrOutputBusy    = errors.New("output directory is locked by another job")
)

type Encoder interface {
	Run(ctx context.Context, input, outputDir string, opts ffmpeg.EncodeOptions) (ffmpeg.EncodeResult, error)
}

type PosterDeriver interface {
	Derive(ctx context.Context, src, dstDir string, profile posters.Profile) ([]posters.Output, error)
}

type MetadataBuilder interface {
	Build(ctx context.Context, outDir string) (*hls.Metadata, error)
}

type ProgressRecorder interface {
	UpdateProgress(ctx context.Context, id string, p ffmpeg.Progress) error
}

// Orchestrator runs one queued job through encode, posters, metadata and
// persistence, then notifies users.
type Orchestrator struct {
	VideosDir string
	Encoder   Encoder
	Posters   PosterDeriver
	Metadata  MetadataBuilder
	Store     Store
	Notifier  notifications.Service
	Progress  ProgressRecorder
	Broker    *Broker

	// minimum time between progress writes to the queue row
	ProgressInterval time.Duration

	announcements sync.WaitGroup
}

// OutputDir is where the encoder writes the tree for a video.
func (o *Orchestrator) OutputDir(publicID string) string {
	return filepath.Join(o.VideosDir, publicID)
}

// Process returns nil only when every rendition row was written and the
// video was marked ready. The video is marked unready before encoding starts. The TranscodeJob row always ends up completed or
// failed once it has been created.
func (o *Orchestrator) Process(ctx context.Context, qj *QueuedJob) error {
	job, err := qj.Job()
	if err != nil {
		return err
	}
	if strings.TrimSpace(job.Upload.StoragePath) == "" {
		return fmt.Errorf("job %s: %w", qj.ID, ErrNoStoragePath)
	}
	video := job.VideoEntry
	if video.PublicID == "" {
		return fmt.Errorf("job %s: %w", qj.ID, ErrNoPublicID)
	}
	outputDir := o.OutputDir(video.PublicID)

	record := &media.TranscodeJob{
		UploadID:   job.UploadEntry.ID,
		InputPath:  job.Upload.StoragePath,
		OutputPath: outputDir,
		State:      media.TranscodeTranscoding,
	}
	if err := o.Store.CreateJob(ctx, record); err != nil {
		return fmt.Errorf("create transcode job: %w", err)
	}
	log.Infof("job %s: transcoding %s (%s) into %s", qj.ID, video.PublicID, job.Upload.Filename(), outputDir)

	var logs []string
	runErr := o.run(ctx, qj, job, outputDir, &logs)

	record.Result = strings.Join(logs, "\n")
	if runErr != nil {
		record.State = media.TranscodeFailed
		record.Error = runErr.Error()
	} else {
		record.State = media.TranscodeCompleted
	}
	if err := o.Store.FinishJob(context.WithoutCancel(ctx), record); err != nil {
		log.Errorf("job %s: finish transcode job %d: %v", qj.ID, record.ID, err)
		if runErr == nil {
			runErr = fmt.Errorf("finish transcode job: %w", err)
		}
	}
	if runErr != nil {
		log.Errorf("job %s: %v", qj.ID, runErr)
		return runErr
	}
	log.Infof("job %s: done", qj.ID)
	return nil
}

func (o *Orchestrator) run(ctx context.Context, qj *QueuedJob, job Job, outputDir string, logs *[]string) error {
	video := job.VideoEntry

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	lock := flock.New(filepath.Join(outputDir, lockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock output dir: %w", err)
	}
	if !locked {
		return fmt.Errorf("%w: %s", ErrOutputBusy, outputDir)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Warnf("unlock %s: %v", outputDir, err)
		}
	}()

	// a re-run rewrites the tree and the rows of a video that may be served
	if err := o.Store.MarkUnready(ctx, video.ID); err != nil {
		return fmt.Errorf("mark video unready: %w", err)
	}

	result, err := o.Encoder.Run(ctx, job.Upload.StoragePath, outputDir, ffmpeg.EncodeOptions{
		OnProgress: o.progressFunc(ctx, qj.ID, video),
		Sink: func(line string) {
			log.Debugln(qj.ID, line)
		},
	})
	*logs = append(*logs, result.Logs...)
	if err != nil {
		return err
	}

	lossless := filepath.Join(outputDir, posters.LosslessPoster)
	if outputs, err := o.Posters.Derive(ctx, lossless, outputDir, posters.PipelineProfile); err != nil {
		log.Warnf("job %s: posters: %v", qj.ID, err)
		*logs = append(*logs, "[posters] "+err.Error())
	} else {
		log.Debugf("job %s: wrote %d posters", qj.ID, len(outputs))
	}

	meta, err := o.Metadata.Build(ctx, outputDir)
	if err != nil {
		return fmt.Errorf("build metadata: %w", err)
	}

	rows, err := Renditions(video.ID, meta)
	if err != nil {
		return err
	}
	if err := o.Store.ClearRenditions(ctx, video.ID); err != nil {
		return fmt.Errorf("clear renditions: %w", err)
	}
	var insertErrs []error
	for i := range rows {
		if err := o.Store.InsertRendition(ctx, &rows[i]); err != nil {
			log.Errorf("job %s: insert rendition %s: %v", qj.ID, rows[i].Path, err)
			insertErrs = append(insertErrs, fmt.Errorf("rendition %s: %w", rows[i].Path, err))
		}
	}
	if err := errors.Join(insertErrs...); err != nil {
		return err
	}

	if err := o.Store.MarkReady(ctx, video.ID); err != nil {
		return fmt.Errorf("mark video ready: %w", err)
	}

	o.notify(ctx, video)
	return nil
}

func (o *Orchestrator) progressFunc(ctx context.Context, jobID string, video media.Video) func(ffmpeg.Progress) {
	var last time.Time
	return func(p ffmpeg.Progress) {
		o.Broker.Publish(video.UserID, Event{
			Kind:     EventProgress,
			JobID:    jobID,
			VideoID:  video.ID,
			Status:   StatusActive,
			Progress: &p,
		})
		if o.Progress == nil {
			return
		}
		now := time.Now()
		if !p.Done && now.Sub(last) < o.ProgressInterval {
			return
		}
		last = now
		if err := o.Progress.UpdateProgress(ctx, jobID, p); err != nil {
			log.Warnf("job %s: record progress: %v", jobID, err)
		}
	}
}

func (o *Orchestrator) notify(ctx context.Context, video media.Video) {
	if o.Notifier == nil {
		return
	}
	if err := o.Notifier.NotifyVideoProcessed(ctx, video.ID, video.UserID); err != nil {
		log.Warnf("notify uploader of video %s: %v", video.PublicID, err)
	}
	if !video.VisibilityState.Announced() {
		return
	}
	o.announcements.Add(1)
	go func() {
		defer o.announcements.Done()
		if err := o.Notifier.NotifyNewVideo(context.WithoutCancel(ctx), video.ID, video.UserID); err != nil {
			log.Warnf("announce video %s: %v", video.PublicID, err)
		}
	}()
}

// Wait blocks until background announcements have been sent.
func (o *Orchestrator) Wait() {
	o.announcements.Wait()
}

// Renditions converts built metadata into rows: the progressive file first,
// then the HLS variants in manifest order.
func Renditions(videoID uint, meta *hls.Metadata) ([]media.TranscodeInfo, error) {
	rows := make([]media.TranscodeInfo, 0, len(meta.HLS.Variants)+1)

	p := meta.Progressive
	doc, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	pixFmt := p.PixelFormat
	if p.VideoCodec != nil && p.VideoCodec.PixelFormat != nil {
		pixFmt = p.VideoCodec.PixelFormat
	}
	rows = append(rows, media.TranscodeInfo{
		VideoID:     videoID,
		Kind:        media.RenditionProgressive,
		Path:        p.Path,
		Duration:    p.DurationSeconds,
		SizeBytes:   p.SizeBytes,
		BitrateKbps: p.MeasuredKbps,
		VideoCodec:  codecName(p.VideoCodec),
		AudioCodec:  codecName(p.AudioCodec),
		PixelFormat: pixFmt,
		Width:       p.Width,
		Height:      p.Height,
		FPS:         p.FPS,
		Metadata:    string(doc),
	})

	for _, v := range meta.HLS.Variants {
		doc, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		var pixFmt *string
		if v.VideoCodec != nil {
			pixFmt = v.VideoCodec.PixelFormat
		}
		rows = append(rows, media.TranscodeInfo{
			VideoID:     videoID,
			Kind:        media.RenditionVariant,
			Path:        v.Path,
			Duration:    v.DurationSeconds,
			SizeBytes:   v.SizeBytes,
			BitrateKbps: v.BandwidthKbps,
			VideoCodec:  codecName(v.VideoCodec),
			AudioCodec:  codecName(v.AudioCodec),
			PixelFormat: pixFmt,
			Width:       v.Width,
			Height:      v.Height,
			FPS:         v.FPS,
			Metadata:    string(doc),
		})
	}
	return rows, nil
}

func codecName(c *hls.CodecInfo) *string {
	if c == nil {
		return nil
	}
	return c.CodecName
}
