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

// WorkHistoryFilter bounds a subcontractor's report history by work date.
type WorkHistoryFilter struct {
	From *time.Time
	To   *time.Time
}

type CompletedWorkRepository interface {
	Create(ctx context.Context, cw *model.CompletedWork) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.CompletedWork, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.CompletedWork, error)
	ReportedVolume(ctx context.Context, assignmentID uuid.UUID) (decimal.Decimal, error)
	ReportedByAssignments(ctx context.Context, assignmentIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)
	CountPending(ctx context.Context, assignmentID uuid.UUID) (int64, error)
	SaveReview(ctx context.Context, cw *model.CompletedWork) error
	ListPendingByForeman(ctx context.Context, foremanID uuid.UUID) ([]model.CompletedWork, error)
	ListBySubcontractor(ctx context.Context, subcontractorID uuid.UUID, filter WorkHistoryFilter) ([]model.CompletedWork, error)
}

type completedWorkRepository struct {
	db *gorm.DB
}

func NewCompletedWorkRepository(db *gorm.DB) CompletedWorkRepository {
	return &completedWorkRepository{db: db}
}

func (r *completedWorkRepository) Create(ctx context.Context, cw *model.CompletedWork) error {
	return GetDB(ctx, r.db).Create(cw).Error
}

func (r *completedWorkRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.CompletedWork, error) {
	var cw model.CompletedWork
	if err := GetDB(ctx, r.db).First(&cw, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &cw, nil
}

func (r *completedWorkRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.CompletedWork, error) {
	var cw model.CompletedWork
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&cw).Error; err != nil {
		return nil, err
	}
	return &cw, nil
}

// reportedExpr sums the volume subcontractors reported on submitted and
// approved rows. An adjustment on approval does not give reporting capacity
// back; rejected reports count nothing.
const reportedExpr = `COALESCE(SUM(CASE
	WHEN status IN ('submitted', 'approved') THEN completed_volume
	ELSE 0 END), 0)`

func (r *completedWorkRepository) ReportedVolume(ctx context.Context, assignmentID uuid.UUID) (decimal.Decimal, error) {
	var reported decimal.Decimal
	err := GetDB(ctx, r.db).Model(&model.CompletedWork{}).
		Select(reportedExpr).
		Where("assignment_id = ?", assignmentID).
		Row().Scan(&reported)
	return reported.Round(2), err
}

func (r *completedWorkRepository) ReportedByAssignments(ctx context.Context, assignmentIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	res := make(map[uuid.UUID]decimal.Decimal, len(assignmentIDs))
	if len(assignmentIDs) == 0 {
		return res, nil
	}

	var rows []struct {
		AssignmentID string
		Reported     decimal.Decimal
	}
	if err := GetDB(ctx, r.db).Model(&model.CompletedWork{}).
		Select("assignment_id, "+reportedExpr+" AS reported").
		Where("assignment_id IN ?", assignmentIDs).
		Group("assignment_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		if id, err := uuid.Parse(row.AssignmentID); err == nil {
			res[id] = row.Reported.Round(2)
		}
	}
	return res, nil
}

func (r *completedWorkRepository) CountPending(ctx context.Context, assignmentID uuid.UUID) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.CompletedWork{}).
		Where("assignment_id = ? AND status = ?", assignmentID, model.CompletedWorkSubmitted).
		Count(&count).Error
	return count, err
}

// SaveReview persists the outcome of a review on a report.
func (r *completedWorkRepository) SaveReview(ctx context.Context, cw *model.CompletedWork) error {
	return GetDB(ctx, r.db).Model(cw).
		Select("status", "verified_by", "verified_at", "notes", "adjusted_volume", "updated_at").
		Updates(map[string]interface{}{
			"status":          cw.Status,
			"verified_by":     cw.VerifiedBy,
			"verified_at":     cw.VerifiedAt,
			"notes":           cw.Notes,
			"adjusted_volume": cw.AdjustedVolume,
			"updated_at":      time.Now(),
		}).Error
}

func (r *completedWorkRepository) ListPendingByForeman(ctx context.Context, foremanID uuid.UUID) ([]model.CompletedWork, error) {
	var works []model.CompletedWork
	err := GetDB(ctx, r.db).
		Select("completed_works.*").
		Preload("Assignment").Preload("Assignment.WorkItem").Preload("Assignment.Subcontractor").
		Joins("JOIN assignments ON assignments.id = completed_works.assignment_id").
		Where("assignments.foreman_id = ? AND completed_works.status = ?", foremanID, model.CompletedWorkSubmitted).
		Order("completed_works.created_at asc").
		Find(&works).Error
	return works, err
}

func (r *completedWorkRepository) ListBySubcontractor(ctx context.Context, subcontractorID uuid.UUID, filter WorkHistoryFilter) ([]model.CompletedWork, error) {
	query := GetDB(ctx, r.db).
		Select("completed_works.*").
		Preload("Assignment").Preload("Assignment.WorkItem").
		Joins("JOIN assignments ON assignments.id = completed_works.assignment_id").
		Where("assignments.subcontractor_id = ?", subcontractorID)
	if filter.From != nil {
		query = query.Where("completed_works.work_date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("completed_works.work_date <= ?", *filter.To)
	}

	var works []model.CompletedWork
	err := query.Order("completed_works.work_date desc, completed_works.created_at desc").Find(&works).Error
	return works, err
}
