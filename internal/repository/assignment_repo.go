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

type AssignmentRepository interface {
	CreateBatch(ctx context.Context, assignments []model.Assignment) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Assignment, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Assignment, error)
	ReservedVolume(ctx context.Context, workItemID uuid.UUID) (decimal.Decimal, error)
	VolumesByWorkItems(ctx context.Context, workItemIDs []uuid.UUID) (map[uuid.UUID]model.WorkItemVolumes, error)
	UpdateProgress(ctx context.Context, id uuid.UUID, approved decimal.Decimal, status model.AssignmentStatus) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.AssignmentStatus) error
	ListBySubcontractor(ctx context.Context, subcontractorID uuid.UUID, status model.AssignmentStatus) ([]model.Assignment, error)
	ListByForeman(ctx context.Context, foremanID uuid.UUID) ([]model.Assignment, error)
	ListByWorkItem(ctx context.Context, workItemID uuid.UUID) ([]model.Assignment, error)
	SectionID(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	NormalizeLegacyStatus(ctx context.Context) (int64, error)
}

type assignmentRepository struct {
	db *gorm.DB
}

func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) CreateBatch(ctx context.Context, assignments []model.Assignment) error {
	return GetDB(ctx, r.db).Create(&assignments).Error
}

func (r *assignmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Assignment, error) {
	var a model.Assignment
	if err := GetDB(ctx, r.db).First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *assignmentRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Assignment, error) {
	var a model.Assignment
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// ReservedVolume is the outstanding (assigned minus approved) volume of the
// work item's non-terminal assignments, read fresh from the current rows.
func (r *assignmentRepository) ReservedVolume(ctx context.Context, workItemID uuid.UUID) (decimal.Decimal, error) {
	var reserved decimal.Decimal
	err := GetDB(ctx, r.db).Model(&model.Assignment{}).
		Select("COALESCE(SUM(assigned_volume - approved_volume), 0)").
		Where("work_item_id = ? AND status IN ?", workItemID, model.NonTerminalAssignmentStatuses).
		Row().Scan(&reserved)
	return reserved.Round(2), err
}

// VolumesByWorkItems aggregates assignment volumes for many work items in one grouped query.
func (r *assignmentRepository) VolumesByWorkItems(ctx context.Context, workItemIDs []uuid.UUID) (map[uuid.UUID]model.WorkItemVolumes, error) {
	res := make(map[uuid.UUID]model.WorkItemVolumes, len(workItemIDs))
	if len(workItemIDs) == 0 {
		return res, nil
	}

	var rows []model.WorkItemVolumes
	err := GetDB(ctx, r.db).Model(&model.Assignment{}).
		Select(`work_item_id,
			COALESCE(SUM(CASE WHEN status IN ? THEN assigned_volume ELSE 0 END), 0) AS assigned_total,
			COALESCE(SUM(CASE WHEN status IN ? THEN assigned_volume - approved_volume ELSE 0 END), 0) AS reserved_volume,
			COUNT(*) AS assignments_count`,
			model.NonTerminalAssignmentStatuses, model.NonTerminalAssignmentStatuses).
		Where("work_item_id IN ?", workItemIDs).
		Group("work_item_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		id, parseErr := uuid.Parse(row.WorkItemID)
		if parseErr != nil {
			continue
		}
		row.AssignedTotal = row.AssignedTotal.Round(2)
		row.ReservedVolume = row.ReservedVolume.Round(2)
		res[id] = row
	}
	return res, nil
}

func (r *assignmentRepository) UpdateProgress(ctx context.Context, id uuid.UUID, approved decimal.Decimal, status model.AssignmentStatus) error {
	return GetDB(ctx, r.db).Model(&model.Assignment{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"approved_volume": approved,
			"status":          status,
			"updated_at":      time.Now(),
		}).Error
}

func (r *assignmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.AssignmentStatus) error {
	return GetDB(ctx, r.db).Model(&model.Assignment{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}

func (r *assignmentRepository) ListBySubcontractor(ctx context.Context, subcontractorID uuid.UUID, status model.AssignmentStatus) ([]model.Assignment, error) {
	query := GetDB(ctx, r.db).Preload("WorkItem").Where("subcontractor_id = ?", subcontractorID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var assignments []model.Assignment
	err := query.Order("assigned_at desc").Find(&assignments).Error
	return assignments, err
}

func (r *assignmentRepository) ListByForeman(ctx context.Context, foremanID uuid.UUID) ([]model.Assignment, error) {
	var assignments []model.Assignment
	err := GetDB(ctx, r.db).Preload("WorkItem").Preload("Subcontractor").
		Where("foreman_id = ?", foremanID).
		Order("assigned_at desc").
		Find(&assignments).Error
	return assignments, err
}

func (r *assignmentRepository) ListByWorkItem(ctx context.Context, workItemID uuid.UUID) ([]model.Assignment, error) {
	var assignments []model.Assignment
	err := GetDB(ctx, r.db).Where("work_item_id = ?", workItemID).Order("assigned_at asc").Find(&assignments).Error
	return assignments, err
}

// SectionID resolves the section of the assignment's work item.
func (r *assignmentRepository) SectionID(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var ids []string
	err := GetDB(ctx, r.db).Table("work_items").
		Joins("JOIN assignments ON assignments.work_item_id = work_items.id").
		Where("assignments.id = ?", id).
		Pluck("work_items.section_id", &ids).Error
	if err != nil {
		return uuid.Nil, err
	}
	if len(ids) == 0 {
		return uuid.Nil, gorm.ErrRecordNotFound
	}
	return uuid.Parse(ids[0])
}

// NormalizeLegacyStatus rewrites the old "pending" status to "assigned".
func (r *assignmentRepository) NormalizeLegacyStatus(ctx context.Context) (int64, error) {
	res := GetDB(ctx, r.db).Model(&model.Assignment{}).
		Where("status = ?", model.AssignmentLegacyPending).
		Update("status", model.AssignmentAssigned)
	return res.RowsAffected, res.Error
}
