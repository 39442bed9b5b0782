package media

import (
	"time"

	"gorm.io/gorm"
)

type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityShareable Visibility = "shareable"
	VisibilityUsers     Visibility = "users"
	VisibilityFriends   Visibility = "friends"
	VisibilityPrivate   Visibility = "private"
)

// Announced reports whether a video with this visibility is announced to
// every other user once it becomes ready.
func (v Visibility) Announced() bool {
	return v == VisibilityPublic || v == VisibilityUsers
}

type UploadState string

const (
	UploadCreated           UploadState = "created"
	UploadPartiallyUploaded UploadState = "partially_uploaded"
	UploadCompleted         UploadState = "completed"
)

type TranscodeState string

const (
	TranscodeCreated     TranscodeState = "created"
	TranscodeTranscoding TranscodeState = "transcoding"
	TranscodeCompleted   TranscodeState = "completed"
	TranscodeFailed      TranscodeState = "failed"
)

type RenditionKind string

const (
	RenditionProgressive RenditionKind = "progressive"
	RenditionVariant     RenditionKind = "variant"
)

type Video struct {
	gorm.Model
	PublicID        string `gorm:"uniqueIndex"`
	Title           string
	Description     string
	PosterImage     string
	UserID          uint
	VisibilityState Visibility `gorm:"default:private"`
	Ready           bool       `gorm:"default:false"`
}

type Upload struct {
	gorm.Model
	VideoID uint
	UserID  uint
	TusID   string
	State   UploadState `gorm:"default:created"`
}

// TranscodeJob records one run of the pipeline for an upload.
type TranscodeJob struct {
	gorm.Model
	UploadID   uint
	InputPath  string
	OutputPath string
	State      TranscodeState `gorm:"default:created"`
	Result     string         // joined encoder log
	Error      string         // set when State is failed
	FinishedAt *time.Time
}

// TranscodeInfo describes one rendition (output file) of a video. Rows are
// replaced as a set each time a metadata build succeeds.
type TranscodeInfo struct {
	gorm.Model
	VideoID     uint `gorm:"index"`
	Kind        RenditionKind
	Path        string
	Duration    *int
	SizeBytes   *int64
	BitrateKbps *int64
	VideoCodec  *string
	AudioCodec  *string
	PixelFormat *string
	Width       *int
	Height      *int
	FPS         *float64
	Metadata    string // JSON document of the full derived metadata
}

func SetVideoReady(db *gorm.DB, videoID uint) error {
	return db.Model(&Video{}).Where("id = ?", videoID).Update("ready", true).Error
}

func SetVideoUnready(db *gorm.DB, videoID uint) error {
	return db.Model(&Video{}).Where("id = ?", videoID).Update("ready", false).Error
}

func FindVideoByPublicID(db *gorm.DB, publicID string) (Video, error) {
	var video Video
	err := db.Where("public_id = ?", publicID).First(&video).Error
	return video, err
}

func RenditionsForVideo(db *gorm.DB, videoID uint) ([]TranscodeInfo, error) {
	var infos []TranscodeInfo
	err := db.Where("video_id = ?", videoID).Order("id").Find(&infos).Error
	return infos, err
}
