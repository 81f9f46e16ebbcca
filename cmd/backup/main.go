// Command backup exports a user's habit data as a JSON snapshot, either to a
// local file or to the configured S3-compatible bucket.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"habitsync/internal/backup"
	"habitsync/internal/config"
	"habitsync/internal/logger"
	"habitsync/internal/store"
)

func main() {
	userID := flag.String("user", "", "User id to export (required)")
	output := flag.String("output", "", "Write the snapshot to a local file instead of object storage")
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "Error: -user flag is required")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", "error", err)
	}
	defer db.Close()

	documents := store.NewPostgresStore(db, nil)

	if *output != "" {
		if dir := filepath.Dir(*output); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				logger.Fatal("create output directory failed", "error", err)
			}
		}
		file, err := os.Create(*output)
		if err != nil {
			logger.Fatal("create output file failed", "error", err)
		}
		defer file.Close()

		service := backup.NewService(documents, nil)
		if err := service.ExportToWriter(ctx, *userID, file); err != nil {
			logger.Fatal("export failed", "error", err)
		}
		logger.Info("snapshot written", "user", *userID, "file", *output)
		return
	}

	if cfg.S3Endpoint == "" {
		logger.Fatal("object storage is not configured; set HABITSYNC_S3_ENDPOINT or use -output")
	}
	uploader, err := backup.NewMinioUploader(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3UseSSL)
	if err != nil {
		logger.Fatal("object storage connection failed", "error", err)
	}
	if err := uploader.EnsureBucket(ctx); err != nil {
		logger.Fatal("bucket setup failed", "error", err)
	}

	service := backup.NewService(documents, uploader)
	objectName, err := service.Run(ctx, *userID)
	if err != nil {
		logger.Fatal("export failed", "error", err)
	}
	logger.Info("snapshot uploaded", "user", *userID, "object", objectName)
}
