package transcodes

import (
	"context"
	"time"

	"gorm.io/gorm"

	"video-site/media"
)

// Store is the persistence used by the Orchestrator. Each call is its own
// statement; a job's writes are not one transaction.
type Store interface {
	CreateJob(ctx context.Context, job *media.TranscodeJob) error
	FinishJob(ctx context.Context, job *media.TranscodeJob) error
	MarkUnready(ctx context.Context, videoID uint) error
	ClearRenditions(ctx context.Context, videoID uint) error
	InsertRendition(ctx context.Context, info *media.TranscodeInfo) error
	MarkReady(ctx context.Context, videoID uint) error
}

type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return gormStore{db: db}
}

func (s gormStore) CreateJob(ctx context.Context, job *media.TranscodeJob) error {
	return s.db.WithContext(ctx).Create(job).Error
}

func (s gormStore) FinishJob(ctx context.Context, job *media.TranscodeJob) error {
	now := time.Now()
	job.FinishedAt = &now
	return s.db.WithContext(ctx).Model(&media.TranscodeJob{}).
		Where("id = ?", job.ID).
		Updates(map[string]interface{}{
			"state":       job.State,
			"result":      job.Result,
			"error":       job.Error,
			"finished_at": now,
		}).Error
}

func (s gormStore) MarkUnready(ctx context.Context, videoID uint) error {
	return media.SetVideoUnready(s.db.WithContext(ctx), videoID)
}

// ClearRenditions removes rows left by an earlier attempt for the video.
func (s gormStore) ClearRenditions(ctx context.Context, videoID uint) error {
	return s.db.WithContext(ctx).Unscoped().
		Where("video_id = ?", videoID).
		Delete(&media.TranscodeInfo{}).Error
}

func (s gormStore) InsertRendition(ctx context.Context, info *media.TranscodeInfo) error {
	return s.db.WithContext(ctx).Create(info).Error
}

func (s gormStore) MarkReady(ctx context.Context, videoID uint) error {
	return media.SetVideoReady(s.db.WithContext(ctx), videoID)
}
