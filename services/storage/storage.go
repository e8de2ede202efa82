// Package storage persists call recordings to durable object storage.
package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

const recordingFolder = "call-recordings"

// StorageService defines the interface for recording storage operations.
type StorageService interface {
	// UploadRecording stores an audio payload under a stable public id and
	// returns its public URL. Re-uploading under the same id overwrites,
	// so retries are safe.
	UploadRecording(ctx context.Context, publicID string, audio []byte) (string, error)
}

// CloudinaryStorage implements StorageService using Cloudinary.
type CloudinaryStorage struct {
	cld *cloudinary.Cloudinary
}

// NewCloudinaryStorage initializes a Cloudinary-backed storage service.
func NewCloudinaryStorage(cloudName, apiKey, apiSecret string) (*CloudinaryStorage, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("storage: cloudinary credentials not set in configuration")
	}
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to initialize Cloudinary: %w", err)
	}
	return &CloudinaryStorage{cld: cld}, nil
}

// UploadRecording uploads the audio bytes. Cloudinary files audio under the
// "video" resource type.
func (s *CloudinaryStorage) UploadRecording(ctx context.Context, publicID string, audio []byte) (string, error) {
	result, err := s.cld.Upload.Upload(ctx, bytes.NewReader(audio), uploader.UploadParams{
		PublicID:     publicID,
		Folder:       recordingFolder,
		ResourceType: "video",
		Overwrite:    api.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("storage: failed to upload recording %s: %w", publicID, err)
	}
	if result.SecureURL == "" {
		return "", fmt.Errorf("storage: no URL returned for recording %s", publicID)
	}
	return result.SecureURL, nil
}
