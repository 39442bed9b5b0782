package handlers

import (
	"context"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"video-site/transcodes"
)

type VersionReporter interface {
	Version(ctx context.Context) (string, error)
}

// Handlers serves the JSON API. All fields are required except Ffmpeg and
// Ffprobe, which only feed the status page.
type Handlers struct {
	DB         *gorm.DB
	Queue      *transcodes.Queue
	Broker     *transcodes.Broker
	Posters    transcodes.PosterDeriver
	DataDir    string
	UploadsDir string
	VideosDir  string
	Ffmpeg     VersionReporter
	Ffprobe    VersionReporter
}

func (h *Handlers) Register(e *echo.Echo) {
	e.POST("/login", h.LoginPost)
	e.GET("/logout", h.LogoutGet)
	e.GET("/status", h.StatusGet, h.AuthMiddleware)

	api := e.Group("/api", h.AuthMiddleware)
	api.POST("/uploads/:id/transcode", h.TranscodePost)
	api.GET("/jobs/:id", h.JobGet)
	api.POST("/jobs/:id/requeue", h.JobRequeuePost)
	api.GET("/videos/:publicId/renditions", h.RenditionsGet)
	api.POST("/videos/:publicId/poster", h.PosterPost, AdminMiddleware)
	api.GET("/events", h.VideosEvents)
}
