package transcodes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"video-site/ffmpeg"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

func ParseStatus(s string) (Status, error) {
	switch status := Status(s); status {
	case StatusPending, StatusActive, StatusCompleted, StatusFailed:
		return status, nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

var (
	ErrJobNotFound    = errors.New("job not found")
	ErrNotRequeueable = errors.New("job is still pending or active")
	ErrVideoBusy      = errors.New("video already has a pending or active job")
)

// QueuedJob is one row of the transcode queue.
type QueuedJob struct {
	ID         string `gorm:"primaryKey"`
	Status     Status `gorm:"index"`
	UserID     uint   `gorm:"index"`
	VideoID    uint
	Payload    string
	Progress   string
	Error      string
	Attempts   int
	CreatedAt  time.Time
	UpdatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

func (QueuedJob) TableName() string {
	return "transcode_queue"
}

func (q QueuedJob) Job() (Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(q.Payload), &job); err != nil {
		return Job{}, fmt.Errorf("decode job %s: %w", q.ID, err)
	}
	return job, nil
}

// LastProgress returns nil if the encoder has not reported yet.
func (q QueuedJob) LastProgress() (*ffmpeg.Progress, error) {
	if q.Progress == "" {
		return nil, nil
	}
	var p ffmpeg.Progress
	if err := json.Unmarshal([]byte(q.Progress), &p); err != nil {
		return nil, fmt.Errorf("decode progress of job %s: %w", q.ID, err)
	}
	return &p, nil
}

// Queue is a durable FIFO of transcode jobs stored next to the rest of the
// site's data.
type Queue struct {
	db *gorm.DB
}

func NewQueue(db *gorm.DB) (*Queue, error) {
	if err := db.AutoMigrate(&QueuedJob{}); err != nil {
		return nil, fmt.Errorf("migrate transcode queue: %w", err)
	}
	return &Queue{db: db}, nil
}

func (q *Queue) Enqueue(ctx context.Context, job Job) (QueuedJob, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return QueuedJob{}, err
	}
	row := QueuedJob{
		ID:      uuid.Must(uuid.NewV7()).String(),
		Status:  StatusPending,
		UserID:  job.VideoEntry.UserID,
		VideoID: job.VideoEntry.ID,
		Payload: string(payload),
	}
	err = q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkVideoIdle(tx, row.VideoID, ""); err != nil {
			return err
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return QueuedJob{}, err
	}
	log.Debugln("enqueued job", row.ID, "for video", row.VideoID)
	return row, nil
}

// Claim moves the oldest pending job to active and returns it, or returns
// nil when nothing is pending.
func (q *Queue) Claim(ctx context.Context) (*QueuedJob, error) {
	var claimed *QueuedJob
	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row QueuedJob
		err := tx.Where("status = ?", StatusPending).
			Order("created_at, id").
			First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		} else if err != nil {
			return err
		}

		now := time.Now()
		res := tx.Model(&QueuedJob{}).
			Where("id = ? AND status = ?", row.ID, StatusPending).
			Updates(map[string]interface{}{
				"status":      StatusActive,
				"attempts":    gorm.Expr("attempts + 1"),
				"started_at":  now,
				"finished_at": nil,
				"error":       "",
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		row.Status = StatusActive
		row.Attempts++
		row.StartedAt = &now
		row.FinishedAt = nil
		row.Error = ""
		claimed = &row
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return claimed, nil
}

func (q *Queue) UpdateProgress(ctx context.Context, id string, p ffmpeg.Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return q.db.WithContext(ctx).Model(&QueuedJob{}).
		Where("id = ?", id).
		Update("progress", string(data)).Error
}

func (q *Queue) Complete(ctx context.Context, id string) error {
	return q.finish(ctx, id, StatusCompleted, "")
}

func (q *Queue) Fail(ctx context.Context, id string, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return q.finish(ctx, id, StatusFailed, msg)
}

func (q *Queue) finish(ctx context.Context, id string, status Status, msg string) error {
	res := q.db.WithContext(ctx).Model(&QueuedJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      status,
			"error":       msg,
			"finished_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return nil
}

// checkVideoIdle fails with ErrVideoBusy when another job for videoID is
// pending or active. except names a job to ignore.
func checkVideoIdle(tx *gorm.DB, videoID uint, except string) error {
	var open int64
	err := tx.Model(&QueuedJob{}).
		Where("video_id = ? AND status IN ? AND id <> ?", videoID, []string{string(StatusPending), string(StatusActive)}, except).
		Count(&open).Error
	if err != nil {
		return err
	}
	if open > 0 {
		return fmt.Errorf("%w: video %d", ErrVideoBusy, videoID)
	}
	return nil
}

// Requeue puts a completed or failed job back into pending. Progress from the
// previous attempt is cleared. It fails with ErrVideoBusy while another job
// for the same video is open.
func (q *Queue) Requeue(ctx context.Context, id string) (QueuedJob, error) {
	row, err := q.Get(ctx, id)
	if err != nil {
		return QueuedJob{}, err
	}
	if row.Status == StatusPending || row.Status == StatusActive {
		return row, fmt.Errorf("%w: %s is %s", ErrNotRequeueable, id, row.Status)
	}
	err = q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkVideoIdle(tx, row.VideoID, id); err != nil {
			return err
		}
		return tx.Model(&QueuedJob{}).
			Where("id = ? AND status = ?", id, row.Status).
			Updates(map[string]interface{}{
				"status":      StatusPending,
				"progress":    "",
				"error":       "",
				"finished_at": nil,
			}).Error
	})
	if err != nil {
		return row, err
	}
	log.Infoln("requeued job", id)
	return q.Get(ctx, id)
}

// ResetStale returns jobs left active by a previous process to pending.
func (q *Queue) ResetStale(ctx context.Context) (int64, error) {
	res := q.db.WithContext(ctx).Model(&QueuedJob{}).
		Where("status = ?", StatusActive).
		Updates(map[string]interface{}{
			"status":   StatusPending,
			"progress": "",
		})
	return res.RowsAffected, res.Error
}

func (q *Queue) Get(ctx context.Context, id string) (QueuedJob, error) {
	var row QueuedJob
	err := q.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return QueuedJob{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return row, err
}

// List returns jobs newest first. An empty status matches every job and a
// non-positive limit returns all rows.
func (q *Queue) List(ctx context.Context, status Status, limit int) ([]QueuedJob, error) {
	tx := q.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if status != "" {
		tx = tx.Where("status = ?", status)
	}
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var rows []QueuedJob
	err := tx.Find(&rows).Error
	return rows, err
}
