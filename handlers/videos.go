package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"video-site/media"
	"video-site/posters"
)

const (
	posterOverrideFile = "poster_override.png"
	posterOverrideMain = "poster_override_1080p"
	maxPosterBytes     = 32 << 20
)

func setEventStreamHeaders(res *echo.Response) {
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
}

// VideosEvents streams the caller's job events as server-sent events until
// the client goes away.
func (h *Handlers) VideosEvents(c echo.Context) error {
	user := CurrentUser(c)
	req := c.Request()
	res := c.Response()

	setEventStreamHeaders(res)
	res.WriteHeader(http.StatusOK)
	res.Flush()

	sub := h.Broker.Subscribe(user.ID)
	defer h.Broker.Unsubscribe(sub)

	done := req.Context().Done()
	for {
		select {
		case <-done:
			return nil
		case event := <-sub.Ch:
			jsonData, err := json.Marshal(event)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", event.Kind, jsonData); err != nil {
				return err
			}
			res.Flush()
		}
	}
}

func (h *Handlers) videoByPublicID(c echo.Context) (media.Video, error) {
	video, err := media.FindVideoByPublicID(h.DB, c.Param("publicId"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return video, echo.NewHTTPError(http.StatusNotFound, "no such video")
	}
	return video, err
}

type renditionView struct {
	Kind        media.RenditionKind `json:"kind"`
	Path        string              `json:"path"`
	Size        string              `json:"size,omitempty"`
	DurationSec *int                `json:"durationSeconds"`
	SizeBytes   *int64              `json:"sizeBytes"`
	BitrateKbps *int64              `json:"bitrateKbps"`
	VideoCodec  *string             `json:"videoCodec"`
	AudioCodec  *string             `json:"audioCodec"`
	PixelFormat *string             `json:"pixelFormat"`
	Width       *int                `json:"width"`
	Height      *int                `json:"height"`
	FPS         *float64            `json:"fps"`
	Metadata    json.RawMessage     `json:"metadata,omitempty"`
}

// RenditionsGet lists the renditions of a ready video. Videos that are not
// ready yet are reported as missing.
func (h *Handlers) RenditionsGet(c echo.Context) error {
	video, err := h.videoByPublicID(c)
	if err != nil {
		return err
	}
	if !video.Ready {
		return echo.NewHTTPError(http.StatusNotFound, "video is not ready")
	}

	infos, err := media.RenditionsForVideo(h.DB, video.ID)
	if err != nil {
		return err
	}
	views := make([]renditionView, 0, len(infos))
	for _, info := range infos {
		view := renditionView{
			Kind:        info.Kind,
			Path:        info.Path,
			DurationSec: info.Duration,
			SizeBytes:   info.SizeBytes,
			BitrateKbps: info.BitrateKbps,
			VideoCodec:  info.VideoCodec,
			AudioCodec:  info.AudioCodec,
			PixelFormat: info.PixelFormat,
			Width:       info.Width,
			Height:      info.Height,
			FPS:         info.FPS,
		}
		if info.SizeBytes != nil {
			view.Size = humanize.Bytes(uint64(*info.SizeBytes))
		}
		if json.Valid([]byte(info.Metadata)) {
			view.Metadata = json.RawMessage(info.Metadata)
		}
		views = append(views, view)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"publicId":    video.PublicID,
		"posterImage": video.PosterImage,
		"renditions":  views,
	})
}

// PosterPost replaces a video's poster with an uploaded image. The override
// ladder is rendered before the response is sent.
func (h *Handlers) PosterPost(c echo.Context) error {
	video, err := h.videoByPublicID(c)
	if err != nil {
		return err
	}

	fileHeader, err := c.FormFile("poster")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing poster file")
	}
	if fileHeader.Size > maxPosterBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("poster is %s, limit is %s", humanize.Bytes(uint64(fileHeader.Size)), humanize.Bytes(maxPosterBytes)))
	}

	outputDir := filepath.Join(h.VideosDir, video.PublicID)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}
	src := filepath.Join(outputDir, posterOverrideFile)
	if err := saveUpload(fileHeader, src); err != nil {
		return err
	}

	outputs, err := h.Posters.Derive(c.Request().Context(), src, outputDir, posters.OverrideProfile)
	if errors.Is(err, posters.ErrPosterSourceMissing) {
		return echo.NewHTTPError(http.StatusBadRequest, "poster file is empty")
	} else if err != nil {
		log.Errorf("poster override for %s: %v", video.PublicID, err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to render poster")
	}

	posterImage := filepath.ToSlash(filepath.Join(video.PublicID, posterOverrideMain+".avif"))
	err = h.DB.Model(&media.Video{}).Where("id = ?", video.ID).Update("poster_image", posterImage).Error
	if err != nil {
		return err
	}
	log.Infof("poster override for %s: %d renditions", video.PublicID, len(outputs))

	files := make([]string, 0, len(outputs))
	for _, out := range outputs {
		files = append(files, filepath.Base(out.Path))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"posterImage": posterImage,
		"files":       files,
	})
}

func saveUpload(fileHeader *multipart.FileHeader, dst string) error {
	src, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	tmp := dst + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
