package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
)

// Storage is the object-store boundary: uploaded files live behind it and
// the chat proxy reads attachments back through it.
type Storage interface {
	// Save stores a file at the given key.
	Save(ctx context.Context, key string, reader io.Reader, contentType string) error

	// Get retrieves a file by key.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes a file by key.
	Delete(ctx context.Context, key string) error

	// Exists checks whether a file exists at the key.
	Exists(ctx context.Context, key string) (bool, error)

	// GetURL returns a public URL for the file.
	GetURL(ctx context.Context, key string) (string, error)
}

// Config holds storage configuration.
type Config struct {
	Type       string // local, s3
	BasePath   string // for local storage
	BaseURL    string // public URL base
	Bucket     string // for S3
	Region     string // for S3
	AccessKey  string // for S3
	SecretKey  string // for S3
	Endpoint   string // for custom S3 (MinIO)
	UseSSL     bool
	PublicRead bool
}

// New creates a storage instance based on configuration.
func New(cfg Config) (Storage, error) {
	switch cfg.Type {
	case "local":
		return NewLocalStorage(cfg)
	case "s3":
		return NewS3Storage(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// FetchAsDataURL reads an object and encodes it as a data: URL, the format
// the LLM provider accepts for inline attachments.
func FetchAsDataURL(ctx context.Context, s Storage, key, mimeType string) (string, error) {
	rc, err := s.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("fetch attachment %s: %w", key, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("read attachment %s: %w", key, err)
	}

	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data)), nil
}
