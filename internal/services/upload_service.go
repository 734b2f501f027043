package services

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/google/uuid"

	"lumen_backend/internal/models"
	"lumen_backend/internal/repositories"
	"lumen_backend/internal/storage"
	"lumen_backend/pkg/apperrors"
)

type UploadService interface {
	Upload(ctx context.Context, userID, fileName, mimeType string, size int64, reader io.Reader) (*models.FileUpload, error)
	GetUpload(ctx context.Context, userID, id string) (*models.FileUpload, error)
	ListUploads(ctx context.Context, userID string, offset, limit int) ([]models.FileUpload, error)
	DeleteUpload(ctx context.Context, userID, id string) error
}

type UploadServiceImpl struct {
	repo         repositories.UploadRepository
	store        storage.Storage
	maxSize      int64
	allowedTypes map[string]bool
}

func NewUploadService(repo repositories.UploadRepository, store storage.Storage, maxSize int64, allowedTypes []string) UploadService {
	allowed := make(map[string]bool, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[t] = true
	}
	return &UploadServiceImpl{
		repo:         repo,
		store:        store,
		maxSize:      maxSize,
		allowedTypes: allowed,
	}
}

func (s *UploadServiceImpl) Upload(ctx context.Context, userID, fileName, mimeType string, size int64, reader io.Reader) (*models.FileUpload, error) {
	if s.maxSize > 0 && size > s.maxSize {
		return nil, apperrors.NewBadRequestError("File is too large")
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	if len(s.allowedTypes) > 0 && !s.allowedTypes[mimeType] {
		return nil, apperrors.NewBadRequestError("File type is not allowed")
	}

	key := fmt.Sprintf("uploads/%s/%s%s", userID, uuid.NewString(), filepath.Ext(fileName))
	if err := s.store.Save(ctx, key, reader, mimeType); err != nil {
		return nil, apperrors.InternalError(err)
	}

	url, err := s.store.GetURL(ctx, key)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	upload := &models.FileUpload{
		UserID:   userID,
		Key:      key,
		FileName: fileName,
		MimeType: mimeType,
		Size:     size,
		URL:      url,
	}
	if err := s.repo.Create(ctx, upload); err != nil {
		// Don't leave an orphaned object behind.
		_ = s.store.Delete(ctx, key)
		return nil, apperrors.InternalError(err)
	}
	return upload, nil
}

func (s *UploadServiceImpl) GetUpload(ctx context.Context, userID, id string) (*models.FileUpload, error) {
	upload, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if apperrors.Is(err, repositories.ErrUploadNotFound) {
			return nil, apperrors.NewNotFoundError("upload", "Upload not found")
		}
		return nil, apperrors.InternalError(err)
	}
	if upload.UserID != userID {
		return nil, apperrors.NewForbiddenError("You don't have access to this upload")
	}
	return upload, nil
}

func (s *UploadServiceImpl) ListUploads(ctx context.Context, userID string, offset, limit int) ([]models.FileUpload, error) {
	uploads, err := s.repo.GetByUserID(ctx, userID, offset, limit)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return uploads, nil
}

func (s *UploadServiceImpl) DeleteUpload(ctx context.Context, userID, id string) error {
	upload, err := s.GetUpload(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, upload.Key); err != nil {
		return apperrors.InternalError(err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return apperrors.InternalError(err)
	}
	return nil
}
