package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"lumen_backend/internal/models"
)

type UploadRepository interface {
	Create(ctx context.Context, upload *models.FileUpload) error
	GetByID(ctx context.Context, id string) (*models.FileUpload, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.FileUpload, error)
	GetByUserID(ctx context.Context, userID string, offset, limit int) ([]models.FileUpload, error)
	Delete(ctx context.Context, id string) error
}

type UploadRepositoryImpl struct {
	db *gorm.DB
}

func NewUploadRepository(db *gorm.DB) UploadRepository {
	return &UploadRepositoryImpl{db: db}
}

func (r *UploadRepositoryImpl) Create(ctx context.Context, upload *models.FileUpload) error {
	return r.db.WithContext(ctx).Create(upload).Error
}

func (r *UploadRepositoryImpl) GetByID(ctx context.Context, id string) (*models.FileUpload, error) {
	var upload models.FileUpload
	err := r.db.WithContext(ctx).First(&upload, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUploadNotFound
		}
		return nil, err
	}
	return &upload, nil
}

func (r *UploadRepositoryImpl) GetByIDs(ctx context.Context, ids []string) ([]models.FileUpload, error) {
	var uploads []models.FileUpload
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&uploads).Error
	return uploads, err
}

func (r *UploadRepositoryImpl) GetByUserID(ctx context.Context, userID string, offset, limit int) ([]models.FileUpload, error) {
	var uploads []models.FileUpload
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&uploads).Error
	return uploads, err
}

func (r *UploadRepositoryImpl) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.FileUpload{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUploadNotFound
	}
	return nil
}
