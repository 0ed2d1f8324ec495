package repository

import (
	"context"
	"time"

	"buildtrack/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type XmlFileRepository interface {
	Create(ctx context.Context, file *model.XmlFile) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.XmlFile, error)
	ListBySection(ctx context.Context, sectionID uuid.UUID) ([]model.XmlFile, error)
	ReplaceActive(ctx context.Context, sectionID uuid.UUID) (int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.XmlFileStatus) error
	LatestUpload(ctx context.Context, sectionID uuid.UUID) (*time.Time, error)
	ListExpired(ctx context.Context, before time.Time) ([]model.XmlFile, error)
	ClearStoragePath(ctx context.Context, id uuid.UUID) error
}

type xmlFileRepository struct {
	db *gorm.DB
}

func NewXmlFileRepository(db *gorm.DB) XmlFileRepository {
	return &xmlFileRepository{db: db}
}

func (r *xmlFileRepository) Create(ctx context.Context, file *model.XmlFile) error {
	return GetDB(ctx, r.db).Create(file).Error
}

func (r *xmlFileRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.XmlFile, error) {
	var file model.XmlFile
	if err := GetDB(ctx, r.db).First(&file, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *xmlFileRepository) ListBySection(ctx context.Context, sectionID uuid.UUID) ([]model.XmlFile, error) {
	var files []model.XmlFile
	err := GetDB(ctx, r.db).
		Where("section_id = ? AND status <> ?", sectionID, model.XmlFileDeleted).
		Order("uploaded_at desc").
		Find(&files).Error
	return files, err
}

// ReplaceActive marks the section's active file(s) as replaced.
func (r *xmlFileRepository) ReplaceActive(ctx context.Context, sectionID uuid.UUID) (int64, error) {
	res := GetDB(ctx, r.db).Model(&model.XmlFile{}).
		Where("section_id = ? AND status = ?", sectionID, model.XmlFileActive).
		Update("status", model.XmlFileReplaced)
	return res.RowsAffected, res.Error
}

func (r *xmlFileRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.XmlFileStatus) error {
	return GetDB(ctx, r.db).Model(&model.XmlFile{}).Where("id = ?", id).Update("status", status).Error
}

func (r *xmlFileRepository) LatestUpload(ctx context.Context, sectionID uuid.UUID) (*time.Time, error) {
	var files []model.XmlFile
	if err := GetDB(ctx, r.db).
		Where("section_id = ? AND status = ?", sectionID, model.XmlFileActive).
		Order("uploaded_at desc").Limit(1).
		Find(&files).Error; err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}
	return &files[0].UploadedAt, nil
}

// ListExpired returns replaced or deleted files uploaded before the cutoff that
// still have a stored blob.
func (r *xmlFileRepository) ListExpired(ctx context.Context, before time.Time) ([]model.XmlFile, error) {
	var files []model.XmlFile
	err := GetDB(ctx, r.db).
		Where("status IN ? AND uploaded_at < ? AND storage_path <> ''",
			[]model.XmlFileStatus{model.XmlFileReplaced, model.XmlFileDeleted}, before).
		Order("uploaded_at asc").
		Find(&files).Error
	return files, err
}

func (r *xmlFileRepository) ClearStoragePath(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Model(&model.XmlFile{}).Where("id = ?", id).Update("storage_path", "").Error
}
