package service

import (
	"context"
	"fmt"

	"buildtrack/internal/core/volume"
	"buildtrack/internal/model"
	"buildtrack/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type AssignmentInput struct {
	SubcontractorID string          `json:"subcontractor_id" binding:"required"`
	AssignedVolume  decimal.Decimal `json:"assigned_volume"`
}

type AssignWorkRequest struct {
	WorkItemID  string            `json:"work_item_id" binding:"required"`
	Assignments []AssignmentInput `json:"assignments" binding:"required,min=1,dive"`
}

type SentAssignment struct {
	model.Assignment
	SubcontractorName string          `json:"subcontractor_name"`
	CompanyName       string          `json:"company_name"`
	Reported          decimal.Decimal `json:"reported_volume"`
}

// --- Interface ---

type AssignmentService interface {
	AssignWork(ctx context.Context, foremanID string, req AssignWorkRequest) ([]model.Assignment, error)
	CancelAssignment(ctx context.Context, foremanID, assignmentID string) (*model.Assignment, error)
	ListForemanAssignments(ctx context.Context, foremanID string) ([]SentAssignment, error)
}

type assignmentService struct {
	workItemRepo   repository.WorkItemRepository
	assignmentRepo repository.AssignmentRepository
	reportRepo     repository.CompletedWorkRepository
	userRepo       repository.UserRepository
	auditRepo      repository.AuditRepository
	txManager      repository.TransactionManager
	events         Publisher
}

func NewAssignmentService(
	workItemRepo repository.WorkItemRepository,
	assignmentRepo repository.AssignmentRepository,
	reportRepo repository.CompletedWorkRepository,
	userRepo repository.UserRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	events Publisher,
) AssignmentService {
	return &assignmentService{
		workItemRepo:   workItemRepo,
		assignmentRepo: assignmentRepo,
		reportRepo:     reportRepo,
		userRepo:       userRepo,
		auditRepo:      auditRepo,
		txManager:      txManager,
		events:         publisherOrNop(events),
	}
}

// --- Implementation ---

// AssignWork splits part of a work item's remaining volume between
// subcontractors. Either every assignment is created or none is.
func (s *assignmentService) AssignWork(ctx context.Context, foremanID string, req AssignWorkRequest) ([]model.Assignment, error) {
	itemID, err := parseID(req.WorkItemID, "work item")
	if err != nil {
		return nil, err
	}
	foreman, err := parseID(foremanID, "foreman")
	if err != nil {
		return nil, err
	}
	if len(req.Assignments) == 0 {
		return nil, invalidInput("at least one assignment is required")
	}

	subIDs := make([]uuid.UUID, 0, len(req.Assignments))
	volumes := make([]decimal.Decimal, 0, len(req.Assignments))
	for i, in := range req.Assignments {
		subID, err := parseID(in.SubcontractorID, "subcontractor")
		if err != nil {
			return nil, err
		}
		v := volume.Normalize(in.AssignedVolume)
		if !v.IsPositive() {
			return nil, invalidInput("assignment %d: volume must be greater than zero", i+1)
		}
		subIDs = append(subIDs, subID)
		volumes = append(volumes, v)
	}

	var (
		created   []model.Assignment
		sectionID uuid.UUID
	)
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.checkSubcontractors(txCtx, subIDs); err != nil {
			return err
		}

		item, err := s.workItemRepo.FindByIDForUpdate(txCtx, itemID)
		if err != nil {
			return lookupErr(err, "work item", req.WorkItemID)
		}
		sectionID = item.SectionID
		reserved, err := s.assignmentRepo.ReservedVolume(txCtx, itemID)
		if err != nil {
			return fmt.Errorf("failed to sum reserved volume: %w", err)
		}

		check := volume.AssignContext{
			WorkItemID: item.ID.String(),
			Total:      item.TotalVolume,
			Completed:  item.CompletedVolume,
			Reserved:   reserved,
			Requested:  volumes,
		}
		if guard := volume.CanAssign(check); !guard.Allowed {
			return &CapacityError{
				Scope:     "work_item:" + item.ID.String(),
				Total:     item.TotalVolume,
				Committed: item.CompletedVolume.Add(reserved),
				Requested: check.RequestedTotal(),
				Remaining: volume.Remaining(item.TotalVolume, item.CompletedVolume, reserved),
				Reason:    guard.Reason,
			}
		}

		created = make([]model.Assignment, len(subIDs))
		for i := range subIDs {
			created[i] = model.Assignment{
				WorkItemID:      itemID,
				SubcontractorID: subIDs[i],
				ForemanID:       foreman,
				AssignedVolume:  volumes[i],
				ApprovedVolume:  decimal.Zero,
				Status:          model.AssignmentAssigned,
			}
		}
		if err := s.assignmentRepo.CreateBatch(txCtx, created); err != nil {
			return fmt.Errorf("failed to create assignments: %w", err)
		}

		return writeAudit(txCtx, s.auditRepo, &foreman, model.ActionAssignWork, item.ID.String(),
			item.Floor+" / "+item.WorkType, map[string]interface{}{
				"count":     len(created),
				"requested": check.RequestedTotal(),
			})
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(EventWorkAssigned, sectionID, map[string]interface{}{
		"work_item_id": req.WorkItemID,
		"assignments":  created,
	})
	return created, nil
}

func (s *assignmentService) checkSubcontractors(ctx context.Context, ids []uuid.UUID) error {
	users, err := s.userRepo.GetByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to load subcontractors: %w", err)
	}
	byID := make(map[uuid.UUID]model.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	for _, id := range ids {
		u, ok := byID[id]
		if !ok {
			return notFound("subcontractor", id)
		}
		if u.Role != model.RoleSubcontractor {
			return invalidInput("user %s is not a subcontractor", u.Username)
		}
	}
	return nil
}

// CancelAssignment withdraws an open assignment and frees its outstanding volume.
func (s *assignmentService) CancelAssignment(ctx context.Context, foremanID, assignmentID string) (*model.Assignment, error) {
	id, err := parseID(assignmentID, "assignment")
	if err != nil {
		return nil, err
	}
	foreman, err := parseID(foremanID, "foreman")
	if err != nil {
		return nil, err
	}

	var (
		cancelled *model.Assignment
		sectionID uuid.UUID
	)
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		peek, err := s.assignmentRepo.FindByID(txCtx, id)
		if err != nil {
			return lookupErr(err, "assignment", assignmentID)
		}
		// WorkItem before Assignment, the same order approvals take.
		item, err := s.workItemRepo.FindByIDForUpdate(txCtx, peek.WorkItemID)
		if err != nil {
			return lookupErr(err, "work item", peek.WorkItemID)
		}
		sectionID = item.SectionID
		a, err := s.assignmentRepo.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return lookupErr(err, "assignment", assignmentID)
		}
		if a.ForemanID != foreman {
			return fmt.Errorf("%w: assignment %s belongs to another foreman", ErrNotAuthorized, assignmentID)
		}

		pending, err := s.reportRepo.CountPending(txCtx, id)
		if err != nil {
			return fmt.Errorf("failed to count pending reports: %w", err)
		}
		guard := volume.CanCancel(volume.CancelContext{AssignmentID: assignmentID, Status: a.Status, PendingReports: pending})
		if !guard.Allowed {
			return fmt.Errorf("%w: %s", ErrInvalidTransition, guard.Reason)
		}

		if err := s.assignmentRepo.UpdateStatus(txCtx, id, model.AssignmentRejected); err != nil {
			return fmt.Errorf("failed to cancel assignment: %w", err)
		}
		a.Status = model.AssignmentRejected
		cancelled = a

		return writeAudit(txCtx, s.auditRepo, &foreman, model.ActionCancelAssignment, assignmentID, "", map[string]interface{}{
			"released": a.Outstanding(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(EventAssignmentCancelled, sectionID, map[string]interface{}{
		"assignment_id": assignmentID,
		"work_item_id":  cancelled.WorkItemID,
	})
	return cancelled, nil
}

func (s *assignmentService) ListForemanAssignments(ctx context.Context, foremanID string) ([]SentAssignment, error) {
	foreman, err := parseID(foremanID, "foreman")
	if err != nil {
		return nil, err
	}
	assignments, err := s.assignmentRepo.ListByForeman(ctx, foreman)
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

	result := make([]SentAssignment, 0, len(assignments))
	for _, a := range assignments {
		row := SentAssignment{Assignment: a, Reported: reported[a.ID]}
		if a.Subcontractor != nil {
			row.SubcontractorName = a.Subcontractor.Username
			row.CompanyName = a.Subcontractor.CompanyName
		}
		result = append(result, row)
	}
	return result, nil
}
