package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDirectoryDefaults(t *testing.T) {
	t.Setenv("VIDEO_SITE_DATA_DIR", "/srv/site")
	for _, key := range []string{"VIDEO_SITE_CONFIG_DIR", "VIDEO_SITE_VIDEOS_DIR", "VIDEO_SITE_UPLOADS_DIR"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	if got := GetConfigDir(); got != "/srv/site/config" {
		t.Fatalf("config dir = %q", got)
	}
	if got := GetVideosDir(); got != "/srv/site/videos" {
		t.Fatalf("videos dir = %q", got)
	}
	if got := GetUploadsDir(); got != "/srv/site/uploads" {
		t.Fatalf("uploads dir = %q", got)
	}
	if got := GetDatabasePath(); got != "/srv/site/config/videos.db" {
		t.Fatalf("database path = %q", got)
	}
}

func TestPositiveIntFallbacks(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"4", 4},
		{" 2 ", 2},
		{"0", 1},
		{"-3", 1},
		{"many", 1},
	}
	for _, tc := range tests {
		t.Setenv("VIDEO_SITE_WORKERS", tc.value)
		if got := GetWorkers(); got != tc.want {
			t.Fatalf("workers(%q) = %d, want %d", tc.value, got, tc.want)
		}
	}

	t.Setenv("VIDEO_SITE_POLL_INTERVAL", "3")
	if got := GetPollInterval(); got != 3*time.Second {
		t.Fatalf("poll interval = %v", got)
	}
}

func TestGetSecure(t *testing.T) {
	for value, want := range map[string]bool{"yes": true, "ON": true, "1": true, "off": false, "": false} {
		t.Setenv("VIDEO_SITE_SECURE", value)
		if got := GetSecure(); got != want {
			t.Fatalf("secure(%q) = %v", value, got)
		}
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := LoadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}

	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("VIDEO_SITE_TEST_DOTENV=loaded\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("VIDEO_SITE_TEST_DOTENV") })
	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := os.Getenv("VIDEO_SITE_TEST_DOTENV"); got != "loaded" {
		t.Fatalf("dotenv value = %q", got)
	}
}
