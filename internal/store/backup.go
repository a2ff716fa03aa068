package store

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"
)

// BackupTarget is where BackupDecorator ships encrypted tokens.db snapshots,
// It is satisfied by *minio.Client for S3-compatible
// object storage (AWS S3, minio, R2, ...).
type BackupTarget interface {
	PutObject(ctx context.Context, bucket, object string, reader *bytes.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// NewBackupTarget builds a minio client for endpoint/bucket using static
// credentials, as configured by StoreConfig.BackupS3.
func NewBackupTarget(endpoint, accessKey, secretKey string, useSSL bool) (*minio.Client, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("store: init s3 backup client: %w", err)
	}
	return client, nil
}

// BackupDecorator wraps a TokenStore and best-effort mirrors the encrypted
// tokens.db file to an S3-compatible bucket after every mutating call. It
// never blocks or fails the underlying operation: a backup upload failure is
// logged, not returned, since losing the backup copy is recoverable but
// failing a login/refresh because an object store hiccuped is not.
type BackupDecorator struct {
	TokenStore
	target   BackupTarget
	bucket   string
	object   string
	snapshot func(ctx context.Context) ([]byte, error)
}

// NewBackupDecorator wraps store, uploading the result of snapshot to
// bucket/object after each mutation.
func NewBackupDecorator(store TokenStore, target BackupTarget, bucket, object string, snapshot func(ctx context.Context) ([]byte, error)) *BackupDecorator {
	return &BackupDecorator{TokenStore: store, target: target, bucket: bucket, object: object, snapshot: snapshot}
}

func (b *BackupDecorator) upload(ctx context.Context) {
	data, err := b.snapshot(ctx)
	if err != nil {
		log.WithError(err).Warn("store: snapshot for backup failed")
		return
	}
	uploadCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := b.target.PutObject(uploadCtx, b.bucket, b.object, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	}); err != nil {
		log.WithError(err).Warn("store: s3 backup upload failed")
	}
}

func (b *BackupDecorator) Put(ctx context.Context, account Account) error {
	if err := b.TokenStore.Put(ctx, account); err != nil {
		return err
	}
	go b.upload(context.Background())
	return nil
}

func (b *BackupDecorator) SetActive(ctx context.Context, provider ProviderID, accountID string) error {
	if err := b.TokenStore.SetActive(ctx, provider, accountID); err != nil {
		return err
	}
	go b.upload(context.Background())
	return nil
}

func (b *BackupDecorator) Delete(ctx context.Context, provider ProviderID, accountID string) error {
	if err := b.TokenStore.Delete(ctx, provider, accountID); err != nil {
		return err
	}
	go b.upload(context.Background())
	return nil
}

// SnapshotFile reads path whole, for use as a BackupDecorator snapshot function
// against a *FileStore's underlying tokens.db.
func SnapshotFile(path string) func(ctx context.Context) ([]byte, error) {
	return func(_ context.Context) ([]byte, error) {
		expanded, err := expandHome(path)
		if err != nil {
			return nil, err
		}
		return os.ReadFile(expanded)
	}
}
