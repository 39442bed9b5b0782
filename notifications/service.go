package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gorm.io/gorm"

	"video-site/media"
	"video-site/users"
)

const userAgent = "video-site/1.0"

var ErrInvalidTopic = errors.New("ntfy topic must be an absolute URL with a topic path")

// Service is the notification surface used by the transcode pipeline.
type Service interface {
	// NotifyVideoProcessed tells the uploader their video is ready.
	NotifyVideoProcessed(ctx context.Context, videoID, userID uint) error
	// NotifyNewVideo announces a ready video to everyone but the uploader.
	NotifyNewVideo(ctx context.Context, videoID, uploaderID uint) error
}

type Options struct {
	// Topic is the full ntfy topic URL, e.g. https://ntfy.sh/my-videos.
	// Uploaders are notified on <Topic>-user<ID>.
	Topic     string
	Timeout   time.Duration
	PublicURL string
}

// NewService builds an ntfy-backed service, or a noop one when no topic is
// configured. A topic without a path is rejected with ErrInvalidTopic.
func NewService(db *gorm.DB, opts Options) (Service, error) {
	topic := strings.TrimSpace(opts.Topic)
	if topic == "" {
		return noopService{}, nil
	}
	u, err := url.Parse(topic)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTopic, err)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	if u.Scheme == "" || u.Host == "" || u.Path == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	u.RawPath = ""
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		db:        db,
		topic:     u,
		publicURL: strings.TrimRight(opts.PublicURL, "/"),
		client:    &http.Client{Timeout: timeout},
	}, nil
}

type payload struct {
	endpoint string
	title    string
	message  string
	click    string
	tags     []string
	priority string
}

type ntfyService struct {
	db        *gorm.DB
	topic     *url.URL
	publicURL string
	client    *http.Client
}

func (n *ntfyService) NotifyVideoProcessed(ctx context.Context, videoID, userID uint) error {
	video, err := n.video(ctx, videoID)
	if err != nil {
		return err
	}
	data := payload{
		endpoint: n.endpoint(fmt.Sprintf("-user%d", userID)),
		title:    "Video Ready!",
		message:  fmt.Sprintf("Your video %q has finished processing", videoTitle(video)),
		click:    n.videoURL(video),
		tags:     []string{"white_check_mark", "video", "processed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyNewVideo(ctx context.Context, videoID, uploaderID uint) error {
	video, err := n.video(ctx, videoID)
	if err != nil {
		return err
	}
	var uploader users.User
	if err := n.db.WithContext(ctx).First(&uploader, uploaderID).Error; err != nil {
		return fmt.Errorf("uploader %d: %w", uploaderID, err)
	}
	name := strings.TrimSpace(uploader.DisplayName)
	if name == "" {
		name = uploader.Username
	}
	data := payload{
		endpoint: n.endpoint(""),
		title:    fmt.Sprintf("New video from %s", name),
		message:  videoTitle(video),
		click:    n.videoURL(video),
		tags:     []string{"movie_camera", "video", "new"},
	}
	return n.send(ctx, data)
}

// endpoint appends suffix to the topic name, leaving host and query alone.
func (n *ntfyService) endpoint(suffix string) string {
	u := *n.topic
	u.Path += suffix
	return u.String()
}

func (n *ntfyService) video(ctx context.Context, videoID uint) (media.Video, error) {
	var video media.Video
	if err := n.db.WithContext(ctx).First(&video, videoID).Error; err != nil {
		return media.Video{}, fmt.Errorf("video %d: %w", videoID, err)
	}
	return video, nil
}

func (n *ntfyService) videoURL(video media.Video) string {
	if n.publicURL == "" {
		return ""
	}
	return n.publicURL + "/video/" + video.PublicID
}

func videoTitle(video media.Video) string {
	if title := strings.TrimSpace(video.Title); title != "" {
		return title
	}
	return "Untitled"
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, data.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if data.click != "" {
		req.Header.Set("Click", data.click)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyVideoProcessed(context.Context, uint, uint) error { return nil }
func (noopService) NotifyNewVideo(context.Context, uint, uint) error       { return nil }
