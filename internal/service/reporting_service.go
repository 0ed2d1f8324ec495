package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"buildtrack/internal/core/volume"
	"buildtrack/internal/model"
	"buildtrack/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type SubmitWorkRequest struct {
	AssignmentID    string          `json:"assignment_id" binding:"required"`
	CompletedVolume decimal.Decimal `json:"completed_volume"`
	WorkDate        string          `json:"work_date" binding:"required"` // YYYY-MM-DD
	Notes           string          `json:"notes"`
}

// AssignmentProgress is an assignment as its subcontractor sees it.
type AssignmentProgress struct {
	model.Assignment
	Reported  decimal.Decimal `json:"reported_volume"`
	Available decimal.Decimal `json:"available_volume"`
}

type WorkHistoryFilter struct {
	From string
	To   string
}

// --- Interface ---

type ReportingService interface {
	SubmitWork(ctx context.Context, subcontractorID string, req SubmitWorkRequest) (*model.CompletedWork, error)
	ListAssignments(ctx context.Context, subcontractorID, status string) ([]AssignmentProgress, error)
	WorkHistory(ctx context.Context, subcontractorID string, filter WorkHistoryFilter) ([]model.CompletedWork, error)
}

type reportingService struct {
	assignmentRepo repository.AssignmentRepository
	reportRepo     repository.CompletedWorkRepository
	auditRepo      repository.AuditRepository
	txManager      repository.TransactionManager
	events         Publisher
}

func NewReportingService(
	assignmentRepo repository.AssignmentRepository,
	reportRepo repository.CompletedWorkRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	events Publisher,
) ReportingService {
	return &reportingService{
		assignmentRepo: assignmentRepo,
		reportRepo:     reportRepo,
		auditRepo:      auditRepo,
		txManager:      txManager,
		events:         publisherOrNop(events),
	}
}

// --- Implementation ---

func (s *reportingService) SubmitWork(ctx context.Context, subcontractorID string, req SubmitWorkRequest) (*model.CompletedWork, error) {
	assignmentID, err := parseID(req.AssignmentID, "assignment")
	if err != nil {
		return nil, err
	}
	sub, err := parseID(subcontractorID, "subcontractor")
	if err != nil {
		return nil, err
	}
	requested := volume.Normalize(req.CompletedVolume)
	if !requested.IsPositive() {
		return nil, invalidInput("completed volume must be greater than zero")
	}
	workDate, err := parseDay(req.WorkDate, "work_date")
	if err != nil {
		return nil, err
	}

	var (
		report    model.CompletedWork
		sectionID uuid.UUID
	)
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		a, err := s.assignmentRepo.FindByIDForUpdate(txCtx, assignmentID)
		if err != nil {
			return lookupErr(err, "assignment", req.AssignmentID)
		}
		if a.SubcontractorID != sub {
			return fmt.Errorf("%w: assignment %s is not assigned to you", ErrNotAuthorized, req.AssignmentID)
		}
		if sectionID, err = s.assignmentRepo.SectionID(txCtx, assignmentID); err != nil {
			return fmt.Errorf("failed to resolve section: %w", err)
		}

		check := volume.ReportContext{
			AssignmentID:   req.AssignmentID,
			Status:         a.Status,
			AssignedVolume: a.AssignedVolume,
			Requested:      requested,
		}
		if guard := volume.CanReportStatus(check); !guard.Allowed {
			return fmt.Errorf("%w: %s", ErrInvalidTransition, guard.Reason)
		}

		check.AlreadyReported, err = s.reportRepo.ReportedVolume(txCtx, assignmentID)
		if err != nil {
			return fmt.Errorf("failed to sum reported volume: %w", err)
		}
		// An approval adjusted upwards books more than was reported.
		check.AlreadyReported = decimal.Max(check.AlreadyReported, a.ApprovedVolume)
		if guard := volume.CanReportVolume(check); !guard.Allowed {
			return &CapacityError{
				Scope:     "assignment:" + req.AssignmentID,
				Total:     a.AssignedVolume,
				Committed: check.AlreadyReported,
				Requested: requested,
				Remaining: a.AssignedVolume.Sub(check.AlreadyReported),
				Reason:    guard.Reason,
			}
		}

		report = model.CompletedWork{
			AssignmentID:    assignmentID,
			CompletedVolume: requested,
			WorkDate:        workDate,
			Notes:           strings.TrimSpace(req.Notes),
			SubmittedBy:     sub,
			Status:          model.CompletedWorkSubmitted,
		}
		if err := s.reportRepo.Create(txCtx, &report); err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}

		if next := volume.StatusAfterReport(a.Status); next != a.Status {
			if err := s.assignmentRepo.UpdateStatus(txCtx, assignmentID, next); err != nil {
				return fmt.Errorf("failed to advance assignment: %w", err)
			}
		}

		return writeAudit(txCtx, s.auditRepo, &sub, model.ActionSubmitWork, report.ID.String(), req.AssignmentID, map[string]interface{}{
			"completed_volume": requested,
			"work_date":        workDate.Format("2006-01-02"),
		})
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(EventWorkSubmitted, sectionID, map[string]interface{}{
		"assignment_id":     req.AssignmentID,
		"completed_work_id": report.ID,
		"completed_volume":  requested,
	})
	return &report, nil
}

func (s *reportingService) ListAssignments(ctx context.Context, subcontractorID, status string) ([]AssignmentProgress, error) {
	sub, err := parseID(subcontractorID, "subcontractor")
	if err != nil {
		return nil, err
	}
	st := model.AssignmentStatus(status)
	if status != "" && !st.Valid() {
		return nil, invalidInput("unknown assignment status %q", status)
	}

	assignments, err := s.assignmentRepo.ListBySubcontractor(ctx, sub, st)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	ids := make([]uuid.UUID, len(assignments))
	for i := range assignments {
		ids[i] = assignments[i].ID
	}
	reported, err := s.reportRepo.ReportedByAssignments(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to sum reported volume: %w", err)
	}

	result := make([]AssignmentProgress, 0, len(assignments))
	for _, a := range assignments {
		row := AssignmentProgress{Assignment: a, Reported: reported[a.ID]}
		if !a.Status.IsTerminal() {
			row.Available = a.AssignedVolume.Sub(decimal.Max(row.Reported, a.ApprovedVolume))
		}
		result = append(result, row)
	}
	return result, nil
}

func (s *reportingService) WorkHistory(ctx context.Context, subcontractorID string, filter WorkHistoryFilter) ([]model.CompletedWork, error) {
	sub, err := parseID(subcontractorID, "subcontractor")
	if err != nil {
		return nil, err
	}

	var repoFilter repository.WorkHistoryFilter
	if filter.From != "" {
		from, err := parseDay(filter.From, "from")
		if err != nil {
			return nil, err
		}
		repoFilter.From = &from
	}
	if filter.To != "" {
		to, err := parseDay(filter.To, "to")
		if err != nil {
			return nil, err
		}
		end := to.Add(24*time.Hour - time.Nanosecond)
		repoFilter.To = &end
	}
	if repoFilter.From != nil && repoFilter.To != nil && repoFilter.To.Before(*repoFilter.From) {
		return nil, invalidInput("to must not be before from")
	}

	works, err := s.reportRepo.ListBySubcontractor(ctx, sub, repoFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to load work history: %w", err)
	}
	return works, nil
}
