package service

import (
	"context"
	"fmt"
	"time"

	"buildtrack/internal/core/volume"
	"buildtrack/internal/model"
	"buildtrack/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type WorkItemQuery struct {
	Floor         string
	WorkType      string
	ActiveFrom    string
	ActiveTo      string
	CompletedOnly bool
}

// WorkItemProgress is a work item with its volumes derived from current rows.
type WorkItemProgress struct {
	model.WorkItem
	ActualCompleted  decimal.Decimal `json:"actual_completed"`
	AssignedTotal    decimal.Decimal `json:"assigned_total"`
	ReservedVolume   decimal.Decimal `json:"reserved_volume"`
	Remaining        decimal.Decimal `json:"remaining"`
	AssignmentsCount int64           `json:"assignments_count"`
	ProgressPercent  decimal.Decimal `json:"progress_percent"`
	CanAssign        bool            `json:"can_assign"`
}

// --- Interface ---

type ProgressService interface {
	ListWorkItems(ctx context.Context, sectionID string, query WorkItemQuery) ([]WorkItemProgress, error)
	SubcontractorStatistics(ctx context.Context, subcontractorID string) (*model.SubcontractorStatistics, error)
}

type progressService struct {
	hierarchyRepo  repository.HierarchyRepository
	workItemRepo   repository.WorkItemRepository
	assignmentRepo repository.AssignmentRepository
	statsRepo      repository.StatisticsRepository
}

func NewProgressService(
	hierarchyRepo repository.HierarchyRepository,
	workItemRepo repository.WorkItemRepository,
	assignmentRepo repository.AssignmentRepository,
	statsRepo repository.StatisticsRepository,
) ProgressService {
	return &progressService{
		hierarchyRepo:  hierarchyRepo,
		workItemRepo:   workItemRepo,
		assignmentRepo: assignmentRepo,
		statsRepo:      statsRepo,
	}
}

// --- Implementation ---

func (s *progressService) ListWorkItems(ctx context.Context, sectionID string, query WorkItemQuery) ([]WorkItemProgress, error) {
	secID, err := parseID(sectionID, "section")
	if err != nil {
		return nil, err
	}
	if _, err := s.hierarchyRepo.FindSectionByID(ctx, secID); err != nil {
		return nil, lookupErr(err, "section", sectionID)
	}

	filter := repository.WorkItemFilter{
		Floor:         query.Floor,
		WorkType:      query.WorkType,
		CompletedOnly: query.CompletedOnly,
	}
	if query.ActiveFrom != "" {
		from, err := parseDay(query.ActiveFrom, "active_from")
		if err != nil {
			return nil, err
		}
		filter.ActiveFrom = &from
	}
	if query.ActiveTo != "" {
		to, err := parseDay(query.ActiveTo, "active_to")
		if err != nil {
			return nil, err
		}
		end := to.Add(24*time.Hour - time.Nanosecond)
		filter.ActiveTo = &end
	}

	items, err := s.workItemRepo.ListBySection(ctx, secID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list work items: %w", err)
	}
	return s.withVolumes(ctx, items)
}

func (s *progressService) withVolumes(ctx context.Context, items []model.WorkItem) ([]WorkItemProgress, error) {
	ids := make([]uuid.UUID, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	volumes, err := s.assignmentRepo.VolumesByWorkItems(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate assignments: %w", err)
	}

	result := make([]WorkItemProgress, 0, len(items))
	for _, item := range items {
		v := volumes[item.ID]
		remaining := volume.Remaining(item.TotalVolume, item.CompletedVolume, v.ReservedVolume)
		result = append(result, WorkItemProgress{
			WorkItem:         item,
			ActualCompleted:  item.CompletedVolume,
			AssignedTotal:    v.AssignedTotal,
			ReservedVolume:   v.ReservedVolume,
			Remaining:        remaining,
			AssignmentsCount: v.AssignmentsCount,
			ProgressPercent:  volume.ProgressPercent(item.TotalVolume, item.CompletedVolume),
			CanAssign:        remaining.IsPositive(),
		})
	}
	return result, nil
}
