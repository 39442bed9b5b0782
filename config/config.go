package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var gitSHA string
var buildDate string

// LoadDotEnv loads a .env file from the working directory if one exists.
// Variables already present in the environment win.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func GetDataDir() string {
	value, exists := os.LookupEnv("VIDEO_SITE_DATA_DIR")
	if exists {
		return value
	}
	return "data"
}

// defaults to GetDataDir() / config
func GetConfigDir() string {
	value, exists := os.LookupEnv("VIDEO_SITE_CONFIG_DIR")
	if exists {
		return value
	}
	return filepath.Join(GetDataDir(), "config")
}

// root of the per-video output trees, defaults to GetDataDir() / videos
func GetVideosDir() string {
	value, exists := os.LookupEnv("VIDEO_SITE_VIDEOS_DIR")
	if exists {
		return value
	}
	return filepath.Join(GetDataDir(), "videos")
}

// where completed uploads are stored, defaults to GetDataDir() / uploads.
// Transcodes are only accepted for files under this directory.
func GetUploadsDir() string {
	value, exists := os.LookupEnv("VIDEO_SITE_UPLOADS_DIR")
	if exists {
		return value
	}
	return filepath.Join(GetDataDir(), "uploads")
}

func GetDatabasePath() string {
	return filepath.Join(GetConfigDir(), "videos.db")
}

func GetEncoderScript() string {
	value, exists := os.LookupEnv("VIDEO_SITE_ENCODER_SCRIPT")
	if exists {
		return value
	}
	return "./scripts/transcode.sh"
}

func GetFfmpeg() string {
	value, exists := os.LookupEnv("VIDEO_SITE_FFMPEG")
	if exists {
		return value
	}
	return "ffmpeg"
}

func GetFfprobe() string {
	value, exists := os.LookupEnv("VIDEO_SITE_FFPROBE")
	if exists {
		return value
	}
	return "ffprobe"
}

// number of jobs transcoded at once
func GetWorkers() int {
	return getPositiveInt("VIDEO_SITE_WORKERS", 1)
}

func GetPollInterval() time.Duration {
	return time.Duration(getPositiveInt("VIDEO_SITE_POLL_INTERVAL", 10)) * time.Second
}

func GetNtfyTopic() string {
	return strings.TrimSpace(os.Getenv("VIDEO_SITE_NTFY_TOPIC"))
}

func GetNtfyTimeout() time.Duration {
	return time.Duration(getPositiveInt("VIDEO_SITE_NTFY_TIMEOUT", 10)) * time.Second
}

// absolute base URL used in notification links, empty to omit links
func GetPublicURL() string {
	return strings.TrimSpace(os.Getenv("VIDEO_SITE_PUBLIC_URL"))
}

func GetListenAddress() string {
	value, exists := os.LookupEnv("VIDEO_SITE_LISTEN")
	if exists {
		return value
	}
	return ":8080"
}

func GetLogLevel() string {
	value, exists := os.LookupEnv("VIDEO_SITE_LOG_LEVEL")
	if exists {
		return value
	}
	return "info"
}

func GetAdminInitialPassword() (string, error) {
	key := "VIDEO_SITE_ADMIN_INITIAL_PASSWORD"
	value, exists := os.LookupEnv(key)
	if exists {
		return value, nil
	}
	return "", fmt.Errorf("please set %s", key)
}

func GetSessionAuthKey() ([]byte, error) {
	key := "VIDEO_SITE_SESSION_AUTH_KEY"
	value, exists := os.LookupEnv(key)
	if exists {
		return []byte(value), nil
	}
	return []byte{}, fmt.Errorf("please set %s", key)
}

func GetSecure() bool {
	key := "VIDEO_SITE_SECURE"
	if value, exists := os.LookupEnv(key); exists {
		lower := strings.ToLower(value)
		if lower == "on" || lower == "1" || lower == "true" || lower == "yes" {
			return true
		}
	}
	return false
}

func GetGitSHA() string {
	if gitSHA == "" {
		return "<not provided>"
	} else {
		return gitSHA
	}
}

func GetBuildDate() string {
	if buildDate == "" {
		return "<not provided>"
	} else {
		return buildDate
	}
}

func getPositiveInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
