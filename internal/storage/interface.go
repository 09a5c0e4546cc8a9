package storage

import "context"

// BackupUploader uploads a database snapshot produced by Store.Backup to
// remote storage. Abstracted so the store's Export path can be exercised
// against a fake in tests.
type BackupUploader interface {
	UploadBackup(ctx context.Context, localPath, objectKey string) (*UploadResult, error)
}

// Ensure S3Uploader implements BackupUploader.
var _ BackupUploader = (*S3Uploader)(nil)
