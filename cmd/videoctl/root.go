package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"video-site/config"
	"video-site/database"
	"video-site/ffmpeg"
	"video-site/hls"
	"video-site/transcodes"
)

type commandContext struct {
	dbPath  string
	ffprobe string
	verbose bool
}

func (c *commandContext) logger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	if c.verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

// withQueue opens the site database for the duration of fn.
func (c *commandContext) withQueue(fn func(q *transcodes.Queue) error) error {
	transcodes.Init(c.logger())
	path := c.dbPath
	if path == "" {
		path = config.GetDatabasePath()
	}
	db, err := database.Open(path)
	if err != nil {
		return fmt.Errorf("open database %s: %w", path, err)
	}
	defer closeDB(db)

	q, err := transcodes.NewQueue(db)
	if err != nil {
		return err
	}
	return fn(q)
}

func (c *commandContext) builder() hls.Builder {
	logger := c.logger()
	ffmpeg.Init(logger)
	hls.Init(logger)
	binary := c.ffprobe
	if binary == "" {
		binary = config.GetFfprobe()
	}
	return hls.Builder{Prober: ffmpeg.NewProber(binary)}
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "videoctl",
		Short:         "Inspect transcode jobs and outputs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv("")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&ctx.dbPath, "db", "", "Database path (default from VIDEO_SITE_CONFIG_DIR)")
	rootCmd.PersistentFlags().StringVar(&ctx.ffprobe, "ffprobe", "", "ffprobe binary (default from VIDEO_SITE_FFPROBE)")
	rootCmd.PersistentFlags().BoolVarP(&ctx.verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(newMetadataCommand(ctx))
	rootCmd.AddCommand(newJobsCommand(ctx))
	rootCmd.AddCommand(newRequeueCommand(ctx))

	return rootCmd
}
