package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"buildtrack/internal/core/volume"
	"buildtrack/internal/model"
	"buildtrack/internal/repository"

	"github.com/shopspring/decimal"
)

// --- DTOs ---

type ApproveWorkRequest struct {
	CompletedWorkID string           `json:"completed_work_id" binding:"required"`
	Decision        string           `json:"decision" binding:"required,oneof=approved rejected"`
	AdjustedVolume  *decimal.Decimal `json:"adjusted_volume"`
	Notes           *string          `json:"notes"`
}

type ApprovalResult struct {
	CompletedWork model.CompletedWork `json:"completed_work"`
	Assignment    model.Assignment    `json:"assignment"`
	WorkItem      model.WorkItem      `json:"work_item"`
}

type PendingApproval struct {
	model.CompletedWork
	SubcontractorName string `json:"subcontractor_name"`
	Floor             string `json:"floor"`
	WorkType          string `json:"work_type"`
}

// --- Interface ---

type ApprovalService interface {
	ApproveWork(ctx context.Context, foremanID string, req ApproveWorkRequest) (*ApprovalResult, error)
	ListPendingApprovals(ctx context.Context, foremanID string) ([]PendingApproval, error)
}

type approvalService struct {
	workItemRepo   repository.WorkItemRepository
	assignmentRepo repository.AssignmentRepository
	reportRepo     repository.CompletedWorkRepository
	auditRepo      repository.AuditRepository
	txManager      repository.TransactionManager
	events         Publisher
}

func NewApprovalService(
	workItemRepo repository.WorkItemRepository,
	assignmentRepo repository.AssignmentRepository,
	reportRepo repository.CompletedWorkRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	events Publisher,
) ApprovalService {
	return &approvalService{
		workItemRepo:   workItemRepo,
		assignmentRepo: assignmentRepo,
		reportRepo:     reportRepo,
		auditRepo:      auditRepo,
		txManager:      txManager,
		events:         publisherOrNop(events),
	}
}

// --- Implementation ---

// ApproveWork records a foreman's decision on a submitted report. Approved
// volume is added to the work item and the assignment in the same transaction.
func (s *approvalService) ApproveWork(ctx context.Context, foremanID string, req ApproveWorkRequest) (*ApprovalResult, error) {
	reportID, err := parseID(req.CompletedWorkID, "completed work")
	if err != nil {
		return nil, err
	}
	foreman, err := parseID(foremanID, "foreman")
	if err != nil {
		return nil, err
	}
	decision := model.CompletedWorkStatus(req.Decision)
	if decision != model.CompletedWorkApproved && decision != model.CompletedWorkRejected {
		return nil, invalidInput("decision must be approved or rejected, got %q", req.Decision)
	}
	var adjusted decimal.NullDecimal
	if req.AdjustedVolume != nil {
		v := volume.Normalize(*req.AdjustedVolume)
		if !v.IsPositive() {
			return nil, invalidInput("adjusted volume must be greater than zero")
		}
		adjusted = decimal.NewNullDecimal(v)
	}

	var result ApprovalResult
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		// Resolve the chain unlocked, then lock WorkItem -> Assignment -> CompletedWork.
		peek, err := s.reportRepo.FindByID(txCtx, reportID)
		if err != nil {
			return lookupErr(err, "completed work", req.CompletedWorkID)
		}
		peekAssignment, err := s.assignmentRepo.FindByID(txCtx, peek.AssignmentID)
		if err != nil {
			return lookupErr(err, "assignment", peek.AssignmentID)
		}

		item, err := s.workItemRepo.FindByIDForUpdate(txCtx, peekAssignment.WorkItemID)
		if err != nil {
			return lookupErr(err, "work item", peekAssignment.WorkItemID)
		}
		a, err := s.assignmentRepo.FindByIDForUpdate(txCtx, peek.AssignmentID)
		if err != nil {
			return lookupErr(err, "assignment", peek.AssignmentID)
		}
		report, err := s.reportRepo.FindByIDForUpdate(txCtx, reportID)
		if err != nil {
			return lookupErr(err, "completed work", req.CompletedWorkID)
		}

		if guard := volume.CanReview(volume.ReviewContext{CompletedWorkID: req.CompletedWorkID, Status: report.Status}); !guard.Allowed {
			return fmt.Errorf("%w: %s", ErrInvalidTransition, guard.Reason)
		}
		if a.ForemanID != foreman {
			return fmt.Errorf("%w: assignment %s belongs to another foreman", ErrNotAuthorized, a.ID)
		}

		now := time.Now()
		report.Status = decision
		report.VerifiedBy = &foreman
		report.VerifiedAt = &now
		report.AdjustedVolume = adjusted
		if req.Notes != nil {
			report.Notes = strings.TrimSpace(*req.Notes)
		}

		if decision == model.CompletedWorkApproved {
			apply := report.EffectiveVolume()
			check := volume.ApplyContext{
				AssignedVolume:  a.AssignedVolume,
				ApprovedVolume:  a.ApprovedVolume,
				TotalVolume:     item.TotalVolume,
				CompletedVolume: item.CompletedVolume,
				Apply:           apply,
			}
			if guard := volume.CanApply(check); !guard.Allowed {
				return &CapacityError{
					Scope:     "assignment:" + a.ID.String(),
					Total:     a.AssignedVolume,
					Committed: a.ApprovedVolume,
					Requested: apply,
					Remaining: a.AssignedVolume.Sub(a.ApprovedVolume),
					Reason:    guard.Reason,
				}
			}

			if err := s.workItemRepo.AddCompletedVolume(txCtx, item.ID, apply); err != nil {
				return fmt.Errorf("failed to book completed volume: %w", err)
			}
			item.CompletedVolume = item.CompletedVolume.Add(apply)

			a.ApprovedVolume = a.ApprovedVolume.Add(apply)
			a.Status = volume.StatusAfterApproval(a.AssignedVolume, a.ApprovedVolume)
			if err := s.assignmentRepo.UpdateProgress(txCtx, a.ID, a.ApprovedVolume, a.Status); err != nil {
				return fmt.Errorf("failed to update assignment: %w", err)
			}
		}

		if err := s.reportRepo.SaveReview(txCtx, report); err != nil {
			return fmt.Errorf("failed to save review: %w", err)
		}

		action := model.ActionApproveWork
		if decision == model.CompletedWorkRejected {
			action = model.ActionRejectWork
		}
		if err := writeAudit(txCtx, s.auditRepo, &foreman, action, report.ID.String(), item.Floor+" / "+item.WorkType, map[string]interface{}{
			"completed_volume": report.CompletedVolume,
			"adjusted_volume":  adjusted,
		}); err != nil {
			return err
		}

		result = ApprovalResult{CompletedWork: *report, Assignment: *a, WorkItem: *item}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(EventWorkReviewed, result.WorkItem.SectionID, map[string]interface{}{
		"completed_work_id": result.CompletedWork.ID,
		"decision":          decision,
		"work_item_id":      result.WorkItem.ID,
		"completed_volume":  result.WorkItem.CompletedVolume,
	})
	return &result, nil
}

func (s *approvalService) ListPendingApprovals(ctx context.Context, foremanID string) ([]PendingApproval, error) {
	foreman, err := parseID(foremanID, "foreman")
	if err != nil {
		return nil, err
	}
	works, err := s.reportRepo.ListPendingByForeman(ctx, foreman)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending approvals: %w", err)
	}

	result := make([]PendingApproval, 0, len(works))
	for _, w := range works {
		row := PendingApproval{CompletedWork: w}
		if a := w.Assignment; a != nil {
			if a.Subcontractor != nil {
				row.SubcontractorName = a.Subcontractor.Username
			}
			if a.WorkItem != nil {
				row.Floor = a.WorkItem.Floor
				row.WorkType = a.WorkItem.WorkType
			}
		}
		result = append(result, row)
	}
	return result, nil
}
