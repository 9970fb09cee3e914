package storage

import (
	"context"
	"errors"
	"io"
)

var ErrStorageDisabled = errors.New("file storage is not configured")

type disabledUploader struct{}

// NewDisabledUploader returns an uploader that rejects every operation.
// Used when the R2 credentials are absent, so the rest of the API can run
// without object storage.
func NewDisabledUploader() FileUploader {
	return disabledUploader{}
}

func (disabledUploader) Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error) {
	return nil, ErrStorageDisabled
}

func (disabledUploader) Delete(ctx context.Context, key string) error {
	return ErrStorageDisabled
}

func (disabledUploader) GetPublicURL(key string) string {
	return ""
}
