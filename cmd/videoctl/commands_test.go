package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"video-site/database"
	"video-site/media"
	"video-site/transcodes"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func requireContains(t *testing.T, out, want string) {
	t.Helper()
	if !strings.Contains(out, want) {
		t.Fatalf("output missing %q:\n%s", want, out)
	}
}

// seedQueue creates one pending and one failed job and returns the failed
// job's id.
func seedQueue(t *testing.T, dbPath string) string {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer closeDB(db)
	q, err := transcodes.NewQueue(db)
	if err != nil {
		t.Fatal(err)
	}

	job := func(id uint) transcodes.Job {
		video := media.Video{PublicID: "v"}
		video.ID = id
		return transcodes.Job{Upload: transcodes.UploadRef{StoragePath: "/in"}, VideoEntry: video}
	}
	if _, err := q.Enqueue(ctx, job(1)); err != nil {
		t.Fatal(err)
	}
	claimed, err := q.Claim(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v", err)
	}
	if err := q.Fail(ctx, claimed.ID, errors.New("encoder exited 1")); err != nil {
		t.Fatal(err)
	}
	if _, err := q.Enqueue(ctx, job(2)); err != nil {
		t.Fatal(err)
	}
	return claimed.ID
}

func TestJobsAndRequeue(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "videos.db")
	failedID := seedQueue(t, dbPath)

	out, err := runCLI(t, "jobs", "--db", dbPath)
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	requireContains(t, out, failedID)
	requireContains(t, out, "pending")
	requireContains(t, out, "encoder exited 1")

	out, err = runCLI(t, "jobs", "--db", dbPath, "--status", "FAILED")
	if err != nil {
		t.Fatalf("jobs --status: %v", err)
	}
	requireContains(t, out, failedID)
	if strings.Contains(out, "pending") {
		t.Fatalf("filter leaked pending jobs:\n%s", out)
	}

	if _, err := runCLI(t, "jobs", "--db", dbPath, "--status", "done"); err == nil {
		t.Fatal("expected error for unknown status")
	}

	out, err = runCLI(t, "requeue", failedID, "--db", dbPath)
	if err != nil {
		t.Fatalf("requeue: %v", err)
	}
	requireContains(t, out, "Requeued job "+failedID)

	out, err = runCLI(t, "jobs", "--db", dbPath, "--status", "failed")
	if err != nil {
		t.Fatal(err)
	}
	requireContains(t, out, "No jobs")

	if _, err := runCLI(t, "requeue", failedID, "--db", dbPath); !errors.Is(err, transcodes.ErrNotRequeueable) {
		t.Fatalf("second requeue: %v", err)
	}
}

func TestMetadataCommand(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "abc")
	files := map[string]string{
		"master.m3u8":     "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1280000,RESOLUTION=1280x720\n0/index.m3u8\n",
		"0/index.m3u8":    "#EXTM3U\n#EXTINF:4.0,\nseg0.m4s\n#EXT-X-ENDLIST\n",
		"0/seg0.m4s":      strings.Repeat("x", 1000),
		"progressive.mp4": "mp4",
	}
	for name, content := range files {
		path := filepath.Join(out, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	ffprobe := filepath.Join(dir, "ffprobe")
	if err := os.WriteFile(ffprobe, []byte("#!/bin/sh\necho 'no such file' >&2\nexit 1\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	stdout, err := runCLI(t, "metadata", out, "--ffprobe", ffprobe)
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	var meta struct {
		Name string `json:"name"`
		HLS  struct {
			Variants []struct {
				Path          string `json:"path"`
				BandwidthKbps int64  `json:"bandwidthKbps"`
				Width         int    `json:"width"`
			} `json:"variants"`
		} `json:"hls"`
	}
	if err := json.Unmarshal([]byte(stdout), &meta); err != nil {
		t.Fatalf("decode %q: %v", stdout, err)
	}
	if meta.Name != "abc" || len(meta.HLS.Variants) != 1 {
		t.Fatalf("unexpected metadata %+v", meta)
	}
	v := meta.HLS.Variants[0]
	if v.Path != "0/index.m3u8" || v.BandwidthKbps != 1280 || v.Width != 1280 {
		t.Fatalf("unexpected variant %+v", v)
	}

	if _, err := runCLI(t, "metadata", dir, "--ffprobe", ffprobe); err == nil {
		t.Fatal("expected error for a directory without a master manifest")
	}
}
