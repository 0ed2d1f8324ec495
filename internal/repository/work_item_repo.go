package repository

import (
	"context"
	"time"

	"buildtrack/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WorkItemFilter narrows a section's work item list. Zero values match everything.
type WorkItemFilter struct {
	Floor         string
	WorkType      string
	ActiveFrom    *time.Time // items whose window overlaps [ActiveFrom, ActiveTo]
	ActiveTo      *time.Time
	CompletedOnly bool
}

type WorkItemRepository interface {
	Create(ctx context.Context, item *model.WorkItem) error
	Update(ctx context.Context, item *model.WorkItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.WorkItem, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.WorkItem, error)
	FindByKeyForUpdate(ctx context.Context, sectionID uuid.UUID, floor, workType string) (*model.WorkItem, error)
	ListBySection(ctx context.Context, sectionID uuid.UUID, filter WorkItemFilter) ([]model.WorkItem, error)
	AddCompletedVolume(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error
}

type workItemRepository struct {
	db *gorm.DB
}

func NewWorkItemRepository(db *gorm.DB) WorkItemRepository {
	return &workItemRepository{db: db}
}

func (r *workItemRepository) Create(ctx context.Context, item *model.WorkItem) error {
	return GetDB(ctx, r.db).Create(item).Error
}

// Update writes the schedule fields of an item. CompletedVolume is never
// written here; it only moves through AddCompletedVolume.
func (r *workItemRepository) Update(ctx context.Context, item *model.WorkItem) error {
	return GetDB(ctx, r.db).Model(item).
		Select("xml_file_id", "start_date", "end_date", "total_volume", "unit", "daily_target", "updated_at").
		Updates(map[string]interface{}{
			"xml_file_id":  item.XmlFileID,
			"start_date":   item.StartDate,
			"end_date":     item.EndDate,
			"total_volume": item.TotalVolume,
			"unit":         item.Unit,
			"daily_target": item.DailyTarget,
			"updated_at":   time.Now(),
		}).Error
}

func (r *workItemRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.WorkItem, error) {
	var item model.WorkItem
	if err := GetDB(ctx, r.db).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *workItemRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.WorkItem, error) {
	var item model.WorkItem
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *workItemRepository) FindByKeyForUpdate(ctx context.Context, sectionID uuid.UUID, floor, workType string) (*model.WorkItem, error) {
	var item model.WorkItem
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("section_id = ? AND floor = ? AND work_type = ?", sectionID, floor, workType).
		First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *workItemRepository) ListBySection(ctx context.Context, sectionID uuid.UUID, filter WorkItemFilter) ([]model.WorkItem, error) {
	query := GetDB(ctx, r.db).Where("section_id = ?", sectionID)
	if filter.Floor != "" {
		query = query.Where("floor = ?", filter.Floor)
	}
	if filter.WorkType != "" {
		query = query.Where("work_type = ?", filter.WorkType)
	}
	if filter.ActiveFrom != nil {
		query = query.Where("end_date >= ?", *filter.ActiveFrom)
	}
	if filter.ActiveTo != nil {
		query = query.Where("start_date <= ?", *filter.ActiveTo)
	}
	if filter.CompletedOnly {
		query = query.Where("completed_volume > 0")
	}

	var items []model.WorkItem
	err := query.Order("floor asc, start_date asc, work_type asc").Find(&items).Error
	return items, err
}

// AddCompletedVolume increments the approved accumulator in place.
func (r *workItemRepository) AddCompletedVolume(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error {
	return GetDB(ctx, r.db).Model(&model.WorkItem{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"completed_volume": gorm.Expr("completed_volume + ?", delta),
			"updated_at":       time.Now(),
		}).Error
}
