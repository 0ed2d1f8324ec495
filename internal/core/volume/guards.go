// Package volume contains the pure capacity and transition rules of the
// assignment, reporting and approval workflow.
// Guards are pure functions that evaluate preconditions without side effects.
package volume

import (
	"fmt"
	"math"

	"buildtrack/internal/model"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places volumes are stored with.
const Scale = 2

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

func allow() GuardResult { return GuardResult{Allowed: true} }

func deny(format string, args ...any) GuardResult {
	return GuardResult{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}

// Normalize rounds a volume to the stored scale.
func Normalize(v decimal.Decimal) decimal.Decimal {
	return v.Round(Scale)
}

// Remaining is the volume of a work item that is neither completed nor held by
// an open assignment. It is negative only if the data is already inconsistent.
func Remaining(total, completed, reserved decimal.Decimal) decimal.Decimal {
	return total.Sub(completed).Sub(reserved)
}

// AssignContext provides context for assignment capacity guards.
type AssignContext struct {
	WorkItemID string
	Total      decimal.Decimal
	Completed  decimal.Decimal
	Reserved   decimal.Decimal // outstanding volume of non-terminal assignments
	Requested  []decimal.Decimal
}

// RequestedTotal sums the requested volumes.
func (c AssignContext) RequestedTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, v := range c.Requested {
		sum = sum.Add(v)
	}
	return sum
}

// CanAssign evaluates whether new assignments fit into a work item.
// Rules:
// - At least one volume is requested
// - Every requested volume is positive
// - The requested total does not exceed the remaining volume
func CanAssign(ctx AssignContext) GuardResult {
	if len(ctx.Requested) == 0 {
		return deny("no assignments requested for work item %s", ctx.WorkItemID)
	}
	for i, v := range ctx.Requested {
		if !v.IsPositive() {
			return deny("assignment %d: volume must be greater than zero (got %s)", i+1, v.String())
		}
	}

	remaining := Remaining(ctx.Total, ctx.Completed, ctx.Reserved)
	requested := ctx.RequestedTotal()
	if requested.GreaterThan(remaining) {
		return deny("work item %s: requested %s exceeds remaining %s", ctx.WorkItemID, requested.StringFixed(Scale), remaining.StringFixed(Scale))
	}
	return allow()
}

// ReportContext provides context for the reporting guard.
type ReportContext struct {
	AssignmentID    string
	Status          model.AssignmentStatus
	AssignedVolume  decimal.Decimal
	AlreadyReported decimal.Decimal // reported volume of submitted and approved reports
	Requested       decimal.Decimal
}

// CanReportStatus evaluates whether an assignment still accepts reports.
// A cancelled assignment is closed; a completed one is left to the volume
// check, which it fails because nothing is left to report.
func CanReportStatus(ctx ReportContext) GuardResult {
	if ctx.Status == model.AssignmentRejected {
		return deny("assignment %s was cancelled and accepts no more reports", ctx.AssignmentID)
	}
	return allow()
}

// CanReportVolume evaluates whether a report fits into the assignment.
// Rules:
// - Reported volume is positive
// - Already reported plus the new volume does not exceed the assigned volume
func CanReportVolume(ctx ReportContext) GuardResult {
	if !ctx.Requested.IsPositive() {
		return deny("completed volume must be greater than zero (got %s)", ctx.Requested.String())
	}
	if ctx.AlreadyReported.Add(ctx.Requested).GreaterThan(ctx.AssignedVolume) {
		return deny("assignment %s: reporting %s on top of %s exceeds assigned %s",
			ctx.AssignmentID, ctx.Requested.StringFixed(Scale), ctx.AlreadyReported.StringFixed(Scale), ctx.AssignedVolume.StringFixed(Scale))
	}
	return allow()
}

// ReviewContext provides context for approval guards.
type ReviewContext struct {
	CompletedWorkID string
	Status          model.CompletedWorkStatus
}

// CanReview evaluates whether a report may still be approved or rejected.
func CanReview(ctx ReviewContext) GuardResult {
	switch ctx.Status {
	case model.CompletedWorkSubmitted:
		return allow()
	case model.CompletedWorkApproved, model.CompletedWorkRejected:
		return deny("completed work %s is already %s", ctx.CompletedWorkID, ctx.Status)
	}
	return deny("completed work %s has unknown status %q", ctx.CompletedWorkID, ctx.Status)
}

// ApplyContext provides context for applying an approved volume.
type ApplyContext struct {
	AssignedVolume  decimal.Decimal
	ApprovedVolume  decimal.Decimal
	TotalVolume     decimal.Decimal
	CompletedVolume decimal.Decimal
	Apply           decimal.Decimal
}

// CanApply evaluates whether an approved volume may be booked.
// Rules:
// - The applied volume is positive
// - The assignment's approved total stays within its assigned volume
// - The work item's completed volume stays within its total volume
func CanApply(ctx ApplyContext) GuardResult {
	if !ctx.Apply.IsPositive() {
		return deny("approved volume must be greater than zero (got %s)", ctx.Apply.String())
	}
	if ctx.ApprovedVolume.Add(ctx.Apply).GreaterThan(ctx.AssignedVolume) {
		return deny("approving %s on top of %s exceeds assigned %s",
			ctx.Apply.StringFixed(Scale), ctx.ApprovedVolume.StringFixed(Scale), ctx.AssignedVolume.StringFixed(Scale))
	}
	if ctx.CompletedVolume.Add(ctx.Apply).GreaterThan(ctx.TotalVolume) {
		return deny("approving %s on top of %s exceeds work item total %s",
			ctx.Apply.StringFixed(Scale), ctx.CompletedVolume.StringFixed(Scale), ctx.TotalVolume.StringFixed(Scale))
	}
	return allow()
}

// StatusAfterApproval is the assignment status once approved reaches the given total.
func StatusAfterApproval(assigned, approved decimal.Decimal) model.AssignmentStatus {
	if approved.GreaterThanOrEqual(assigned) {
		return model.AssignmentCompleted
	}
	return model.AssignmentInProgress
}

// StatusAfterReport is the assignment status once a report has been filed.
func StatusAfterReport(current model.AssignmentStatus) model.AssignmentStatus {
	switch current {
	case model.AssignmentAssigned:
		return model.AssignmentInProgress
	case model.AssignmentInProgress, model.AssignmentCompleted, model.AssignmentRejected:
		return current
	}
	return current
}

// CancelContext provides context for cancelling an assignment.
type CancelContext struct {
	AssignmentID   string
	Status         model.AssignmentStatus
	PendingReports int64
}

// CanCancel evaluates whether an assignment may be withdrawn.
// Rules:
// - The assignment is not terminal
// - No report is waiting for review
func CanCancel(ctx CancelContext) GuardResult {
	if ctx.Status.IsTerminal() {
		return deny("assignment %s is already %s", ctx.AssignmentID, ctx.Status)
	}
	if ctx.PendingReports > 0 {
		return deny("assignment %s has %d report(s) awaiting review", ctx.AssignmentID, ctx.PendingReports)
	}
	return allow()
}

// ResizeContext provides context for changing a work item's total on re-import.
type ResizeContext struct {
	Floor     string
	WorkType  string
	NewTotal  decimal.Decimal
	Completed decimal.Decimal
	Reserved  decimal.Decimal
}

// CanResize evaluates whether a work item may take a new total volume.
func CanResize(ctx ResizeContext) GuardResult {
	if ctx.NewTotal.IsNegative() {
		return deny("%s / %s: total volume must not be negative", ctx.Floor, ctx.WorkType)
	}
	committed := ctx.Completed.Add(ctx.Reserved)
	if ctx.NewTotal.LessThan(committed) {
		return deny("%s / %s: new total %s is below committed %s",
			ctx.Floor, ctx.WorkType, ctx.NewTotal.StringFixed(Scale), committed.StringFixed(Scale))
	}
	return allow()
}

// DailyTarget spreads total evenly over the scheduled calendar days, at least one.
func DailyTarget(total decimal.Decimal, days float64) decimal.Decimal {
	d := math.Ceil(days)
	if d < 1 {
		d = 1
	}
	return total.Div(decimal.NewFromFloat(d)).Round(Scale)
}

// ProgressPercent is completed over total as a percentage with one decimal.
func ProgressPercent(total, completed decimal.Decimal) decimal.Decimal {
	if !total.IsPositive() {
		return decimal.Zero
	}
	return completed.Div(total).Mul(decimal.NewFromInt(100)).Round(1)
}
