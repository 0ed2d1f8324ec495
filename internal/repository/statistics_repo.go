package repository

import (
	"context"
	"fmt"

	"buildtrack/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReportVolumes sums a subcontractor's reports by review state.
type ReportVolumes struct {
	Approved decimal.Decimal
	Pending  decimal.Decimal
	Rejected decimal.Decimal
}

type StatisticsRepository interface {
	AssignmentCounts(ctx context.Context, subcontractorID uuid.UUID) ([]model.StatusCount, error)
	ReportCounts(ctx context.Context, subcontractorID uuid.UUID) ([]model.StatusCount, error)
	AssignedVolume(ctx context.Context, subcontractorID uuid.UUID) (decimal.Decimal, error)
	ReportVolumes(ctx context.Context, subcontractorID uuid.UUID) (ReportVolumes, error)
}

type statisticsRepository struct {
	db *gorm.DB
}

func NewStatisticsRepository(db *gorm.DB) StatisticsRepository {
	return &statisticsRepository{db: db}
}

func (r *statisticsRepository) AssignmentCounts(ctx context.Context, subcontractorID uuid.UUID) ([]model.StatusCount, error) {
	var counts []model.StatusCount
	if err := GetDB(ctx, r.db).Model(&model.Assignment{}).
		Select("status, COUNT(*) as count").
		Where("subcontractor_id = ?", subcontractorID).
		Group("status").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to count assignments: %w", err)
	}
	return counts, nil
}

func (r *statisticsRepository) ReportCounts(ctx context.Context, subcontractorID uuid.UUID) ([]model.StatusCount, error) {
	var counts []model.StatusCount
	if err := GetDB(ctx, r.db).Table("completed_works").
		Select("completed_works.status, COUNT(*) as count").
		Joins("JOIN assignments ON assignments.id = completed_works.assignment_id").
		Where("assignments.subcontractor_id = ?", subcontractorID).
		Group("completed_works.status").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to count reports: %w", err)
	}
	return counts, nil
}

func (r *statisticsRepository) AssignedVolume(ctx context.Context, subcontractorID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := GetDB(ctx, r.db).Model(&model.Assignment{}).
		Select("COALESCE(SUM(assigned_volume), 0)").
		Where("subcontractor_id = ? AND status <> ?", subcontractorID, model.AssignmentRejected).
		Row().Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum assigned volume: %w", err)
	}
	return total.Round(2), nil
}

func (r *statisticsRepository) ReportVolumes(ctx context.Context, subcontractorID uuid.UUID) (ReportVolumes, error) {
	var result struct {
		Approved decimal.Decimal
		Pending  decimal.Decimal
		Rejected decimal.Decimal
	}
	if err := GetDB(ctx, r.db).Table("completed_works").
		Select(`COALESCE(SUM(CASE WHEN completed_works.status = 'approved' THEN COALESCE(completed_works.adjusted_volume, completed_works.completed_volume) ELSE 0 END), 0) AS approved,
			COALESCE(SUM(CASE WHEN completed_works.status = 'submitted' THEN completed_works.completed_volume ELSE 0 END), 0) AS pending,
			COALESCE(SUM(CASE WHEN completed_works.status = 'rejected' THEN completed_works.completed_volume ELSE 0 END), 0) AS rejected`).
		Joins("JOIN assignments ON assignments.id = completed_works.assignment_id").
		Where("assignments.subcontractor_id = ?", subcontractorID).
		Scan(&result).Error; err != nil {
		return ReportVolumes{}, fmt.Errorf("failed to sum report volumes: %w", err)
	}
	return ReportVolumes{
		Approved: result.Approved.Round(2),
		Pending:  result.Pending.Round(2),
		Rejected: result.Rejected.Round(2),
	}, nil
}
