package transcodes

import (
	"context"
	"testing"

	"video-site/media"
)

func TestStoreReplacesRenditions(t *testing.T) {
	db := openTestDB(t)
	if err := db.AutoMigrate(&media.Video{}, &media.TranscodeJob{}, &media.TranscodeInfo{}); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	store := NewStore(db)

	video := media.Video{PublicID: "abc"}
	if err := db.Create(&video).Error; err != nil {
		t.Fatal(err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		if err := store.ClearRenditions(ctx, video.ID); err != nil {
			t.Fatal(err)
		}
		for _, path := range []string{"progressive.mp4", "0/index.m3u8"} {
			if err := store.InsertRendition(ctx, &media.TranscodeInfo{VideoID: video.ID, Path: path}); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := store.MarkReady(ctx, video.ID); err != nil {
		t.Fatal(err)
	}

	rows, err := media.RenditionsForVideo(db, video.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	var got media.Video
	if err := db.First(&got, video.ID).Error; err != nil {
		t.Fatal(err)
	}
	if !got.Ready {
		t.Fatal("video not marked ready")
	}
}

func TestStoreFinishJob(t *testing.T) {
	db := openTestDB(t)
	if err := db.AutoMigrate(&media.TranscodeJob{}); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	store := NewStore(db)

	job := &media.TranscodeJob{UploadID: 4, State: media.TranscodeTranscoding}
	if err := store.CreateJob(ctx, job); err != nil {
		t.Fatal(err)
	}
	job.State = media.TranscodeFailed
	job.Error = "encoder exited 1"
	if err := store.FinishJob(ctx, job); err != nil {
		t.Fatal(err)
	}

	var got media.TranscodeJob
	if err := db.First(&got, job.ID).Error; err != nil {
		t.Fatal(err)
	}
	if got.State != media.TranscodeFailed || got.Error != "encoder exited 1" || got.FinishedAt == nil {
		t.Fatalf("job = %+v", got)
	}
}
