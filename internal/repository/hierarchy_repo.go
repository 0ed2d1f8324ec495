package repository

import (
	"context"
	"time"

	"buildtrack/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ObjectSummary is an Object with the number of queues below it.
type ObjectSummary struct {
	model.Object
	QueueCount int64 `json:"queue_count"`
}

// SectionSummary is a Section with its schedule file state.
type SectionSummary struct {
	model.Section
	ActiveFiles int64      `json:"active_files"`
	LastUpload  *time.Time `json:"last_upload"`
}

// HierarchyRepository persists objects, queues and sections.
type HierarchyRepository interface {
	CreateObject(ctx context.Context, obj *model.Object) error
	FindObjectByID(ctx context.Context, id uuid.UUID) (*model.Object, error)
	ListObjects(ctx context.Context) ([]ObjectSummary, error)
	DeleteObject(ctx context.Context, id uuid.UUID) (int64, error)

	CreateQueue(ctx context.Context, queue *model.Queue) error
	FindQueueByID(ctx context.Context, id uuid.UUID) (*model.Queue, error)
	QueueNumberExists(ctx context.Context, objectID uuid.UUID, number int) (bool, error)
	ListQueues(ctx context.Context, objectID uuid.UUID) ([]model.Queue, error)
	DeleteQueue(ctx context.Context, id uuid.UUID) (int64, error)

	CreateSection(ctx context.Context, section *model.Section) error
	FindSectionByID(ctx context.Context, id uuid.UUID) (*model.Section, error)
	FindSectionByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Section, error)
	SectionNumberExists(ctx context.Context, queueID uuid.UUID, number int) (bool, error)
	ListSections(ctx context.Context, queueID uuid.UUID) ([]SectionSummary, error)
	DeleteSection(ctx context.Context, id uuid.UUID) (int64, error)
}

type hierarchyRepository struct {
	db *gorm.DB
}

func NewHierarchyRepository(db *gorm.DB) HierarchyRepository {
	return &hierarchyRepository{db: db}
}

func (r *hierarchyRepository) CreateObject(ctx context.Context, obj *model.Object) error {
	return GetDB(ctx, r.db).Create(obj).Error
}

func (r *hierarchyRepository) FindObjectByID(ctx context.Context, id uuid.UUID) (*model.Object, error) {
	var obj model.Object
	if err := GetDB(ctx, r.db).First(&obj, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &obj, nil
}

func (r *hierarchyRepository) ListObjects(ctx context.Context) ([]ObjectSummary, error) {
	var objects []model.Object
	db := GetDB(ctx, r.db)
	if err := db.Order("created_at desc").Find(&objects).Error; err != nil {
		return nil, err
	}

	var counts []struct {
		ObjectID string
		Count    int64
	}
	if err := db.Model(&model.Queue{}).
		Select("object_id, COUNT(*) as count").
		Group("object_id").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	byObject := make(map[string]int64, len(counts))
	for _, c := range counts {
		byObject[c.ObjectID] = c.Count
	}

	res := make([]ObjectSummary, 0, len(objects))
	for _, o := range objects {
		res = append(res, ObjectSummary{Object: o, QueueCount: byObject[o.ID.String()]})
	}
	return res, nil
}

func (r *hierarchyRepository) DeleteObject(ctx context.Context, id uuid.UUID) (int64, error) {
	res := GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Object{})
	return res.RowsAffected, res.Error
}

func (r *hierarchyRepository) CreateQueue(ctx context.Context, queue *model.Queue) error {
	return GetDB(ctx, r.db).Create(queue).Error
}

func (r *hierarchyRepository) FindQueueByID(ctx context.Context, id uuid.UUID) (*model.Queue, error) {
	var queue model.Queue
	if err := GetDB(ctx, r.db).First(&queue, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &queue, nil
}

func (r *hierarchyRepository) QueueNumberExists(ctx context.Context, objectID uuid.UUID, number int) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Queue{}).
		Where("object_id = ? AND number = ?", objectID, number).
		Count(&count).Error
	return count > 0, err
}

func (r *hierarchyRepository) ListQueues(ctx context.Context, objectID uuid.UUID) ([]model.Queue, error) {
	var queues []model.Queue
	err := GetDB(ctx, r.db).Where("object_id = ?", objectID).Order("number asc").Find(&queues).Error
	return queues, err
}

func (r *hierarchyRepository) DeleteQueue(ctx context.Context, id uuid.UUID) (int64, error) {
	res := GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Queue{})
	return res.RowsAffected, res.Error
}

func (r *hierarchyRepository) CreateSection(ctx context.Context, section *model.Section) error {
	return GetDB(ctx, r.db).Create(section).Error
}

func (r *hierarchyRepository) FindSectionByID(ctx context.Context, id uuid.UUID) (*model.Section, error) {
	var section model.Section
	if err := GetDB(ctx, r.db).First(&section, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &section, nil
}

// FindSectionByIDForUpdate locks the section row so schedule imports for the
// same section run one after another.
func (r *hierarchyRepository) FindSectionByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Section, error) {
	var section model.Section
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&section).Error; err != nil {
		return nil, err
	}
	return &section, nil
}

func (r *hierarchyRepository) SectionNumberExists(ctx context.Context, queueID uuid.UUID, number int) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Section{}).
		Where("queue_id = ? AND number = ?", queueID, number).
		Count(&count).Error
	return count > 0, err
}

func (r *hierarchyRepository) ListSections(ctx context.Context, queueID uuid.UUID) ([]SectionSummary, error) {
	var sections []model.Section
	db := GetDB(ctx, r.db)
	if err := db.Where("queue_id = ?", queueID).Order("number asc").Find(&sections).Error; err != nil {
		return nil, err
	}

	res := make([]SectionSummary, 0, len(sections))
	for _, s := range sections {
		summary := SectionSummary{Section: s}
		if err := db.Model(&model.XmlFile{}).
			Where("section_id = ? AND status = ?", s.ID, model.XmlFileActive).
			Count(&summary.ActiveFiles).Error; err != nil {
			return nil, err
		}
		var last model.XmlFile
		err := db.Where("section_id = ? AND status <> ?", s.ID, model.XmlFileDeleted).
			Order("uploaded_at desc").Limit(1).Find(&last).Error
		if err != nil {
			return nil, err
		}
		if last.ID != uuid.Nil {
			uploaded := last.UploadedAt
			summary.LastUpload = &uploaded
		}
		res = append(res, summary)
	}
	return res, nil
}

func (r *hierarchyRepository) DeleteSection(ctx context.Context, id uuid.UUID) (int64, error) {
	res := GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Section{})
	return res.RowsAffected, res.Error
}
