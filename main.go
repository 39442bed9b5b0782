package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"video-site/config"
	"video-site/database"
	"video-site/ffmpeg"
	"video-site/handlers"
	"video-site/hls"
	"video-site/notifications"
	"video-site/posters"
	"video-site/transcodes"
	"video-site/users"
)

func main() {

	if err := config.LoadDotEnv(""); err != nil {
		fmt.Fprintln(os.Stderr, "load .env:", err)
	}
	initLogger()

	log.Infof("GitSHA: %s", config.GetGitSHA())
	log.Infof("BuildDate: %s", config.GetBuildDate())

	ffmpeg.Init(log)
	hls.Init(log)
	posters.Init(log)
	transcodes.Init(log)
	if err := handlers.Init(log); err != nil {
		log.Panicln(err)
	}

	// Initialize database
	dbPath := config.GetDatabasePath()
	db, err := database.Open(dbPath)
	if err != nil {
		log.Panicf("failed to open database %s: %v", dbPath, err)
	}
	database.Init(db, log)
	defer database.Fini()

	// create a user
	err = users.EnsureAdmin(db, config.GetAdminInitialPassword)
	if err != nil {
		log.Panicf("failed to create admin user: %v", err)
	}

	queue, err := transcodes.NewQueue(db)
	if err != nil {
		log.Panicln(err)
	}
	broker := transcodes.NewBroker()

	videosDir := config.GetVideosDir()
	if err := os.MkdirAll(videosDir, 0o755); err != nil {
		log.Panicf("failed to create videos dir %s", videosDir)
	}
	if err := os.MkdirAll(config.GetUploadsDir(), 0o755); err != nil {
		log.Panicf("failed to create uploads dir %s", config.GetUploadsDir())
	}

	ffmpegRunner := ffmpeg.NewRunner(config.GetFfmpeg())
	prober := ffmpeg.NewProber(config.GetFfprobe())
	posterService := posters.Service{Ffmpeg: ffmpegRunner}

	notifier, err := notifications.NewService(db, notifications.Options{
		Topic:     config.GetNtfyTopic(),
		Timeout:   config.GetNtfyTimeout(),
		PublicURL: config.GetPublicURL(),
	})
	if err != nil {
		log.Panicln(err)
	}

	orchestrator := &transcodes.Orchestrator{
		VideosDir:        videosDir,
		Encoder:          ffmpeg.Encoder{Script: config.GetEncoderScript()},
		Posters:          posterService,
		Metadata:         hls.Builder{Prober: prober},
		Store:            transcodes.NewStore(db),
		Notifier:         notifier,
		Progress:         queue,
		Broker:           broker,
		ProgressInterval: time.Second,
	}
	pool := &transcodes.Pool{
		Queue:        queue,
		Processor:    orchestrator,
		Broker:       broker,
		Concurrency:  config.GetWorkers(),
		PollInterval: config.GetPollInterval(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// start the transcode workers
	poolDone := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(poolDone)
	}()

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	h := &handlers.Handlers{
		DB:         db,
		Queue:      queue,
		Broker:     broker,
		Posters:    posterService,
		DataDir:    config.GetDataDir(),
		UploadsDir: config.GetUploadsDir(),
		VideosDir:  videosDir,
		Ffmpeg:     ffmpegRunner,
		Ffprobe:    prober.Runner,
	}
	h.Register(e)

	videosGroup := e.Group("/videos")
	videosGroup.Use(h.AuthMiddleware)
	videosGroup.Static("/", videosDir)

	// Start server
	go func() {
		if err := e.Start(config.GetListenAddress()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorln(err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Infoln("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Errorln(err)
	}
	<-poolDone
	orchestrator.Wait()
}
