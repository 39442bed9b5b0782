package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"video-site/media"
	"video-site/transcodes"
)

type transcodeRequest struct {
	StoragePath string            `json:"storagePath"`
	Metadata    map[string]string `json:"metadata"`
}

var errOutsideUploads = errors.New("storagePath is not an upload")

// uploadPath resolves a storage path from a request to a regular file under
// the uploads directory. Relative paths are taken from the uploads directory.
func (h *Handlers) uploadPath(storagePath string) (string, error) {
	if h.UploadsDir == "" {
		return "", errors.New("uploads directory is not configured")
	}
	root, err := filepath.Abs(h.UploadsDir)
	if err != nil {
		return "", err
	}
	root, err = filepath.EvalSymlinks(root)
	if err != nil {
		return "", fmt.Errorf("uploads directory: %w", err)
	}

	p := strings.TrimSpace(storagePath)
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	p, err = filepath.EvalSymlinks(filepath.Clean(p))
	if err != nil {
		return "", fmt.Errorf("%w: %v", errOutsideUploads, err)
	}
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errOutsideUploads
	}
	info, err := os.Stat(p)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errOutsideUploads, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: not a regular file", errOutsideUploads)
	}
	return p, nil
}

// TranscodePost is called once an upload has been fully received. It marks
// the upload completed and queues the transcode. The storage path must name a
// file under the uploads directory, and the video must not have a job
// pending or running.
func (h *Handlers) TranscodePost(c echo.Context) error {
	user := CurrentUser(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid upload id")
	}

	var req transcodeRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if strings.TrimSpace(req.StoragePath) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "storagePath is required")
	}

	storagePath, err := h.uploadPath(req.StoragePath)
	if errors.Is(err, errOutsideUploads) {
		log.Warnf("user %d: rejected storage path %q: %v", user.ID, req.StoragePath, err)
		return echo.NewHTTPError(http.StatusBadRequest, errOutsideUploads.Error())
	} else if err != nil {
		return err
	}

	var upload media.Upload
	err = h.DB.First(&upload, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "no such upload")
	} else if err != nil {
		return err
	}
	if upload.UserID != user.ID && !user.Admin {
		return echo.NewHTTPError(http.StatusNotFound, "no such upload")
	}

	var video media.Video
	if err := h.DB.First(&video, upload.VideoID).Error; err != nil {
		log.Errorf("upload %d references video %d: %v", upload.ID, upload.VideoID, err)
		return echo.NewHTTPError(http.StatusConflict, "upload has no video")
	}

	upload.State = media.UploadCompleted
	row, err := h.Queue.Enqueue(c.Request().Context(), transcodes.Job{
		Upload:      transcodes.UploadRef{StoragePath: storagePath, Metadata: req.Metadata},
		UploadEntry: upload,
		VideoEntry:  video,
	})
	if errors.Is(err, transcodes.ErrVideoBusy) {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	} else if err != nil {
		return err
	}
	err = h.DB.Model(&media.Upload{}).Where("id = ?", upload.ID).Update("state", media.UploadCompleted).Error
	if err != nil {
		return err
	}
	log.Infof("queued job %s for upload %d (video %s)", row.ID, upload.ID, video.PublicID)
	return c.JSON(http.StatusAccepted, newJobView(row))
}
