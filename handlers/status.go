package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
	"golang.org/x/sys/unix"
)

// GetFreeSpace returns the free space in bytes for the filesystem containing the given directory
func getFreeSpace(dir string) (uint64, error) {
	var stat unix.Statfs_t
	err := unix.Statfs(dir, &stat)
	if err != nil {
		return 0, fmt.Errorf("error getting filesystem stats: %v", err)
	}

	// Calculate free space
	freeSpace := stat.Bavail * uint64(stat.Bsize)
	return freeSpace, nil
}

// GetDirectorySize calculates the total size of a directory in bytes
func getDirectorySize(dir string) (int64, error) {
	var size int64
	err := filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("error walking directory: %v", err)
	}
	return size, nil
}

type statusResponse struct {
	Ffmpeg    string    `json:"ffmpeg"`
	Ffprobe   string    `json:"ffprobe"`
	Free      string    `json:"free"`
	Used      string    `json:"used"`
	FreeBytes uint64    `json:"freeBytes"`
	UsedBytes int64     `json:"usedBytes"`
	Build     BuildInfo `json:"build"`
}

func (h *Handlers) StatusGet(c echo.Context) error {
	ctx := c.Request().Context()
	resp := statusResponse{Build: MakeBuildInfo()}

	if h.Ffmpeg != nil {
		version, err := h.Ffmpeg.Version(ctx)
		if err != nil {
			log.Errorln(err)
		}
		resp.Ffmpeg = version
	}
	if h.Ffprobe != nil {
		version, err := h.Ffprobe.Version(ctx)
		if err != nil {
			log.Errorln(err)
		}
		resp.Ffprobe = version
	}

	free, err := getFreeSpace(h.DataDir)
	if err != nil {
		log.Errorln(err)
	}
	used, err := getDirectorySize(h.DataDir)
	if err != nil {
		log.Errorln(err)
	}
	resp.FreeBytes, resp.UsedBytes = free, used
	resp.Free = humanize.IBytes(free)
	resp.Used = humanize.IBytes(uint64(used))

	return c.JSON(http.StatusOK, resp)
}
