// Package backup exports a user's habit data as a JSON snapshot and ships it
// to S3-compatible object storage.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"habitsync/internal/habits"
	"habitsync/internal/logger"
	"habitsync/internal/remote"
)

const snapshotVersion = "1.0"

// Snapshot is a complete export of one user's data.
type Snapshot struct {
	Version     string              `json:"version"`
	UserID      string              `json:"user_id"`
	ExportedAt  time.Time           `json:"exported_at"`
	Habits      []habits.Habit      `json:"habits"`
	Completions []habits.Completion `json:"completions"`
}

// Uploader ships a serialized snapshot to its destination.
type Uploader interface {
	Upload(ctx context.Context, objectName string, data []byte) error
}

// MinioUploader stores snapshots in an S3-compatible bucket.
type MinioUploader struct {
	client *minio.Client
	bucket string
}

func NewMinioUploader(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioUploader, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to object storage: %w", err)
	}
	return &MinioUploader{client: client, bucket: bucket}, nil
}

// EnsureBucket creates the destination bucket when it does not exist yet.
func (u *MinioUploader) EnsureBucket(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", u.bucket, err)
	}
	if exists {
		return nil
	}
	if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", u.bucket, err)
	}
	return nil
}

func (u *MinioUploader) Upload(ctx context.Context, objectName string, data []byte) error {
	_, err := u.client.PutObject(ctx, u.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", objectName, err)
	}
	return nil
}

// Service assembles and ships snapshots.
type Service struct {
	store    remote.Store
	uploader Uploader
	now      func() time.Time
}

func NewService(store remote.Store, uploader Uploader) *Service {
	return &Service{store: store, uploader: uploader, now: time.Now}
}

// Export assembles a snapshot of the user's habits and completion log.
// Undecodable documents are skipped with a warning rather than aborting the
// export.
func (s *Service) Export(ctx context.Context, userID string) (Snapshot, error) {
	snapshot := Snapshot{
		Version:     snapshotVersion,
		UserID:      userID,
		ExportedAt:  s.now(),
		Habits:      []habits.Habit{},
		Completions: []habits.Completion{},
	}

	habitDocs, err := s.store.List(ctx, habits.CollectionHabits, habits.HabitsQuery(userID)...)
	if err != nil {
		return Snapshot{}, fmt.Errorf("export habits: %w", err)
	}
	for _, doc := range habitDocs {
		habit, err := habits.DecodeHabit(doc)
		if err != nil {
			logger.Warn("skipping undecodable habit", "document", doc.ID, "error", err)
			continue
		}
		snapshot.Habits = append(snapshot.Habits, habit)
	}

	completionDocs, err := s.store.List(ctx, habits.CollectionCompletions, habits.CompletionsQuery(userID)...)
	if err != nil {
		return Snapshot{}, fmt.Errorf("export completions: %w", err)
	}
	for _, doc := range completionDocs {
		completion, err := habits.DecodeCompletion(doc)
		if err != nil {
			logger.Warn("skipping undecodable completion", "document", doc.ID, "error", err)
			continue
		}
		snapshot.Completions = append(snapshot.Completions, completion)
	}

	return snapshot, nil
}

// ExportToWriter writes the snapshot as indented JSON, for local file exports.
func (s *Service) ExportToWriter(ctx context.Context, userID string, w io.Writer) error {
	snapshot, err := s.Export(ctx, userID)
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(snapshot)
}

// Run exports the user and uploads the snapshot, named by user and timestamp.
func (s *Service) Run(ctx context.Context, userID string) (string, error) {
	snapshot, err := s.Export(ctx, userID)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	objectName := fmt.Sprintf("habitsync/%s/%s.json", userID, snapshot.ExportedAt.UTC().Format("20060102-150405"))
	if err := s.uploader.Upload(ctx, objectName, data); err != nil {
		return "", err
	}

	logger.Info("snapshot uploaded", "user", userID, "object", objectName,
		"habits", len(snapshot.Habits), "completions", len(snapshot.Completions))
	return objectName, nil
}
