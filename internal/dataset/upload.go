package dataset

import (
	"context"
	"errors"
)

var ErrNotImplemented = errors.New("dataset upload is not implemented")

// UploadForm is the buffered upload form. The file itself is never parsed;
// only its name is kept.
type UploadForm struct {
	DatasetName string `json:"dataset_name"`
	Description string `json:"description"`
	FileName    string `json:"file_name"`
}

// Uploader accepts a new dataset upload.
type Uploader interface {
	Upload(ctx context.Context, uploadedBy string, form UploadForm) (*Dataset, error)
}

type unimplementedUploader struct{}

// NewUploader returns the placeholder uploader; every call fails with
// ErrNotImplemented.
func NewUploader() Uploader {
	return unimplementedUploader{}
}

func (unimplementedUploader) Upload(ctx context.Context, uploadedBy string, form UploadForm) (*Dataset, error) {
	return nil, ErrNotImplemented
}
