package notifications

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"video-site/media"
	"video-site/users"
)

type captured struct {
	path    string
	title   string
	click   string
	tags    string
	message string
}

func newCaptureServer(t *testing.T) (*httptest.Server, func() []captured) {
	t.Helper()
	var mu sync.Mutex
	var got []captured
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, captured{
			path:    r.URL.Path,
			title:   r.Header.Get("Title"),
			click:   r.Header.Get("Click"),
			tags:    r.Header.Get("Tags"),
			message: string(body),
		})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []captured {
		mu.Lock()
		defer mu.Unlock()
		return append([]captured(nil), got...)
	}
}

func newService(t *testing.T, db *gorm.DB, opts Options) Service {
	t.Helper()
	svc, err := NewService(db, opts)
	if err != nil {
		t.Fatal(err)
	}
	return svc
}

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "n.db")), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(&users.User{}, &media.Video{}); err != nil {
		t.Fatal(err)
	}
	return db
}

func TestNewServiceWithoutTopicIsNoop(t *testing.T) {
	svc, err := NewService(nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := svc.(noopService); !ok {
		t.Fatalf("expected noopService, got %T", svc)
	}
	if err := svc.NotifyVideoProcessed(context.Background(), 1, 1); err != nil {
		t.Fatal(err)
	}
}

func TestNotifyVideoProcessed(t *testing.T) {
	db := openDB(t)
	video := media.Video{PublicID: "abc123", UserID: 7}
	if err := db.Create(&video).Error; err != nil {
		t.Fatal(err)
	}
	srv, requests := newCaptureServer(t)

	svc := newService(t, db, Options{Topic: srv.URL + "/videos", PublicURL: "https://tube.example/", Timeout: time.Second})
	if err := svc.NotifyVideoProcessed(context.Background(), video.ID, 7); err != nil {
		t.Fatalf("notify: %v", err)
	}

	got := requests()
	if len(got) != 1 {
		t.Fatalf("expected 1 request, got %d", len(got))
	}
	req := got[0]
	if req.path != "/videos-user7" {
		t.Fatalf("path = %q", req.path)
	}
	if req.click != "https://tube.example/video/abc123" {
		t.Fatalf("click = %q", req.click)
	}
	if !strings.Contains(req.message, `"Untitled"`) {
		t.Fatalf("message = %q", req.message)
	}
}

func TestNotifyNewVideo(t *testing.T) {
	db := openDB(t)
	uploader, err := users.Create(db, "carol", "pw", false)
	if err != nil {
		t.Fatal(err)
	}
	video := media.Video{PublicID: "xyz", Title: "Holiday", UserID: uploader.ID}
	if err := db.Create(&video).Error; err != nil {
		t.Fatal(err)
	}
	srv, requests := newCaptureServer(t)

	svc := newService(t, db, Options{Topic: srv.URL + "/videos/"})
	if err := svc.NotifyNewVideo(context.Background(), video.ID, uploader.ID); err != nil {
		t.Fatalf("notify: %v", err)
	}
	got := requests()
	if len(got) != 1 || got[0].path != "/videos" {
		t.Fatalf("unexpected requests %+v", got)
	}
	if got[0].title != "New video from carol" || got[0].message != "Holiday" {
		t.Fatalf("unexpected payload %+v", got[0])
	}
	if got[0].click != "" {
		t.Fatal("no click url without a public url")
	}
}

func TestNotifyReportsServerErrors(t *testing.T) {
	db := openDB(t)
	video := media.Video{PublicID: "p"}
	if err := db.Create(&video).Error; err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	svc := newService(t, db, Options{Topic: srv.URL + "/videos"})
	err := svc.NotifyVideoProcessed(context.Background(), video.ID, 1)
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected 429 error, got %v", err)
	}

	if err := svc.NotifyVideoProcessed(context.Background(), 999, 1); err == nil {
		t.Fatal("expected error for unknown video")
	}
}

func TestNewServiceRejectsTopicWithoutPath(t *testing.T) {
	for _, topic := range []string{"http://127.0.0.1:8080", "https://ntfy.sh/", "ntfy.sh/videos"} {
		if _, err := NewService(nil, Options{Topic: topic}); !errors.Is(err, ErrInvalidTopic) {
			t.Errorf("topic %q: err = %v, want ErrInvalidTopic", topic, err)
		}
	}
}

func TestUploaderTopicKeepsHostAndQuery(t *testing.T) {
	svc := newService(t, nil, Options{Topic: "http://127.0.0.1:8080/videos?auth=tok"}).(*ntfyService)
	if got := svc.endpoint("-user4"); got != "http://127.0.0.1:8080/videos-user4?auth=tok" {
		t.Fatalf("endpoint = %q", got)
	}
}
