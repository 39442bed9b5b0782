package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"video-site/ffmpeg"
	"video-site/transcodes"
)

type jobView struct {
	ID         string            `json:"id"`
	Status     transcodes.Status `json:"status"`
	VideoID    uint              `json:"videoId"`
	Attempts   int               `json:"attempts"`
	Error      string            `json:"error,omitempty"`
	Progress   *ffmpeg.Progress  `json:"progress,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	StartedAt  *time.Time        `json:"startedAt,omitempty"`
	FinishedAt *time.Time        `json:"finishedAt,omitempty"`
}

func newJobView(row transcodes.QueuedJob) jobView {
	progress, err := row.LastProgress()
	if err != nil {
		log.Warnln(err)
	}
	return jobView{
		ID:         row.ID,
		Status:     row.Status,
		VideoID:    row.VideoID,
		Attempts:   row.Attempts,
		Error:      row.Error,
		Progress:   progress,
		CreatedAt:  row.CreatedAt,
		StartedAt:  row.StartedAt,
		FinishedAt: row.FinishedAt,
	}
}

// ownedJob loads a job visible to the current user; other users' jobs look
// like missing ones.
func (h *Handlers) ownedJob(c echo.Context) (transcodes.QueuedJob, error) {
	user := CurrentUser(c)
	row, err := h.Queue.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, transcodes.ErrJobNotFound) {
		return row, echo.NewHTTPError(http.StatusNotFound, "no such job")
	} else if err != nil {
		return row, err
	}
	if row.UserID != user.ID && !user.Admin {
		return row, echo.NewHTTPError(http.StatusNotFound, "no such job")
	}
	return row, nil
}

func (h *Handlers) JobGet(c echo.Context) error {
	row, err := h.ownedJob(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newJobView(row))
}

func (h *Handlers) JobRequeuePost(c echo.Context) error {
	row, err := h.ownedJob(c)
	if err != nil {
		return err
	}
	row, err = h.Queue.Requeue(c.Request().Context(), row.ID)
	if errors.Is(err, transcodes.ErrNotRequeueable) || errors.Is(err, transcodes.ErrVideoBusy) {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	} else if err != nil {
		return err
	}
	h.Broker.Publish(row.UserID, transcodes.Event{
		Kind:    transcodes.EventStatus,
		JobID:   row.ID,
		VideoID: row.VideoID,
		Status:  row.Status,
	})
	return c.JSON(http.StatusOK, newJobView(row))
}
