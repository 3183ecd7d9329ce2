// Package cloudinary archives processing results so they outlive the chat message.
package cloudinary

import (
	"bytes"
	"context"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/cloudinary/cloudinary-go/v2/config"
)

// Archiver stores a result image and returns its delivery URL.
type Archiver interface {
	Archive(ctx context.Context, image []byte, publicID string) (string, error)
}

// Delivery params for archived results.
const (
	ImageQuality = "auto"
	ImageWidth   = 1280
)

// BuildImageURL returns an optimized delivery URL for an archived public id.
func BuildImageURL(cloudName, folder, publicID string, width int) string {
	if width <= 0 {
		width = ImageWidth
	}
	if folder != "" {
		publicID = folder + "/" + publicID
	}
	return fmt.Sprintf("https://res.cloudinary.com/%s/image/upload/q_auto,f_auto,w_%d/%s",
		cloudName, width, publicID)
}

type clientImpl struct {
	cloudName string
	folder    string
	uploader  *uploader.API
}

var overwrite = true

func (c *clientImpl) Archive(ctx context.Context, image []byte, publicID string) (string, error) {
	result, err := c.uploader.Upload(ctx, bytes.NewReader(image), uploader.UploadParams{
		Folder:    c.folder,
		PublicID:  publicID,
		Overwrite: &overwrite,
	})
	if err != nil {
		return "", err
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("cloudinary: %s", result.Error.Message)
	}
	if result.SecureURL != "" {
		return result.SecureURL, nil
	}
	return BuildImageURL(c.cloudName, c.folder, publicID, 0), nil
}

// NewClientFromParams builds an Archiver from Cloudinary cloud name, API key, and secret.
func NewClientFromParams(cloudName, apiKey, apiSecret, folder string) (Archiver, error) {
	cfg, err := config.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, err
	}
	up, err := uploader.NewWithConfiguration(cfg)
	if err != nil {
		return nil, err
	}
	return &clientImpl{cloudName: cloudName, folder: folder, uploader: up}, nil
}

// Nop discards results. Used when archiving is not configured.
type Nop struct{}

func (Nop) Archive(context.Context, []byte, string) (string, error) { return "", nil }
