package service

import (
	"errors"
	"sync"
	"testing"

	"buildtrack/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestAssignReportApproveFlow(t *testing.T) {
	f := newFixture(t)
	sectionID, itemID := f.seedSection(t)

	a := f.assignOne(t, itemID, f.sub1, 60)
	if a.Status != model.AssignmentAssigned {
		t.Fatalf("new assignment status = %s", a.Status)
	}
	item := f.concrete(t, sectionID)
	assertDec(t, "reserved", item.ReservedVolume, 60)
	assertDec(t, "remaining", item.Remaining, 40)

	report := f.submit(t, a, 25)
	if report.Status != model.CompletedWorkSubmitted {
		t.Fatalf("report status = %s", report.Status)
	}

	adjusted := dec(20)
	res, err := f.review(report, "approved", &adjusted)
	if err != nil {
		t.Fatalf("ApproveWork: %v", err)
	}
	assertDec(t, "work item completed", res.WorkItem.CompletedVolume, 20)
	assertDec(t, "assignment approved", res.Assignment.ApprovedVolume, 20)
	if res.Assignment.Status != model.AssignmentInProgress {
		t.Errorf("partially approved assignment status = %s, want in_progress", res.Assignment.Status)
	}

	item = f.concrete(t, sectionID)
	assertDec(t, "actual completed", item.ActualCompleted, 20)
	assertDec(t, "reserved after partial approval", item.ReservedVolume, 40)
	assertDec(t, "remaining after partial approval", item.Remaining, 40)

	// 25 was reported; trimming the approval to 20 does not reopen the other 5.
	_, err = f.reports.SubmitWork(f.ctx, f.sub1.ID.String(), SubmitWorkRequest{
		AssignmentID:    a.ID.String(),
		CompletedVolume: dec(40),
		WorkDate:        "2024-03-03",
	})
	var capErr *CapacityError
	if !errors.As(err, &capErr) {
		t.Fatalf("report past the assignment: expected *CapacityError, got %v", err)
	}
	assertDec(t, "capacity committed", capErr.Committed, 25)
	assertDec(t, "capacity remaining", capErr.Remaining, 35)

	rest := f.submit(t, a, 35)
	upwards := dec(40)
	res, err = f.review(rest, "approved", &upwards)
	if err != nil {
		t.Fatalf("ApproveWork: %v", err)
	}
	if res.Assignment.Status != model.AssignmentCompleted {
		t.Errorf("fully approved assignment status = %s, want completed", res.Assignment.Status)
	}

	// Completed assignments have nothing left to report.
	_, err = f.reports.SubmitWork(f.ctx, f.sub1.ID.String(), SubmitWorkRequest{
		AssignmentID:    a.ID.String(),
		CompletedVolume: dec(1),
		WorkDate:        "2024-03-04",
	})
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("report on a completed assignment: expected ErrCapacityExceeded, got %v", err)
	}

	item = f.concrete(t, sectionID)
	assertDec(t, "actual completed", item.ActualCompleted, 60)
	assertDec(t, "reserved", item.ReservedVolume, 0)
	assertDec(t, "remaining", item.Remaining, 40)
	if !item.ProgressPercent.Equal(dec(60)) {
		t.Errorf("progress = %s%%, want 60", item.ProgressPercent)
	}

	want := []string{EventScheduleImported, EventWorkAssigned, EventWorkSubmitted, EventWorkReviewed, EventWorkSubmitted, EventWorkReviewed}
	got := f.events.names()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
	for _, e := range f.events.events {
		if e.SectionID.String() != sectionID {
			t.Errorf("%s event routed to section %s, want %s", e.Name, e.SectionID, sectionID)
		}
	}
}

func TestSubmitWorkCannotExceedAssignment(t *testing.T) {
	f := newFixture(t)
	_, itemID := f.seedSection(t)
	a := f.assignOne(t, itemID, f.sub1, 10)
	f.submit(t, a, 8)

	_, err := f.reports.SubmitWork(f.ctx, f.sub1.ID.String(), SubmitWorkRequest{
		AssignmentID:    a.ID.String(),
		CompletedVolume: dec(3),
		WorkDate:        "2024-03-03",
	})
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	var capErr *CapacityError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected *CapacityError, got %T", err)
	}
	assertDec(t, "committed", capErr.Committed, 8)
	assertDec(t, "remaining", capErr.Remaining, 2)
}

func TestRejectedReportFreesReportedVolume(t *testing.T) {
	f := newFixture(t)
	sectionID, itemID := f.seedSection(t)
	a := f.assignOne(t, itemID, f.sub1, 10)
	report := f.submit(t, a, 8)

	res, err := f.review(report, "rejected", nil)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if res.CompletedWork.Status != model.CompletedWorkRejected {
		t.Errorf("report status = %s", res.CompletedWork.Status)
	}
	assertDec(t, "work item completed", res.WorkItem.CompletedVolume, 0)

	// The whole assignment is reportable again.
	f.submit(t, a, 10)

	item := f.concrete(t, sectionID)
	assertDec(t, "reserved", item.ReservedVolume, 10)
	assertDec(t, "completed", item.ActualCompleted, 0)
}

func TestReviewIsFinal(t *testing.T) {
	f := newFixture(t)
	_, itemID := f.seedSection(t)
	a := f.assignOne(t, itemID, f.sub1, 10)
	report := f.submit(t, a, 5)

	checked := "checked on site"
	if _, err := f.approvals.ApproveWork(f.ctx, f.foreman.ID.String(), ApproveWorkRequest{
		CompletedWorkID: report.ID.String(),
		Decision:        "approved",
		Notes:           &checked,
	}); err != nil {
		t.Fatalf("first approval: %v", err)
	}

	bigger := dec(9)
	second := "second look"
	for _, decision := range []string{"approved", "rejected"} {
		_, err := f.approvals.ApproveWork(f.ctx, f.foreman.ID.String(), ApproveWorkRequest{
			CompletedWorkID: report.ID.String(),
			Decision:        decision,
			AdjustedVolume:  &bigger,
			Notes:           &second,
		})
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("second %s: expected ErrInvalidTransition, got %v", decision, err)
		}
	}

	var (
		gotReport     model.CompletedWork
		gotAssignment model.Assignment
		gotItem       model.WorkItem
	)
	if err := f.db.First(&gotReport, "id = ?", report.ID).Error; err != nil {
		t.Fatalf("reload report: %v", err)
	}
	if err := f.db.First(&gotAssignment, "id = ?", a.ID).Error; err != nil {
		t.Fatalf("reload assignment: %v", err)
	}
	if err := f.db.First(&gotItem, "id = ?", a.WorkItemID).Error; err != nil {
		t.Fatalf("reload work item: %v", err)
	}

	if gotReport.Status != model.CompletedWorkApproved {
		t.Errorf("report status = %s, want approved", gotReport.Status)
	}
	if gotReport.AdjustedVolume.Valid {
		t.Errorf("adjusted volume = %s, want none", gotReport.AdjustedVolume.Decimal)
	}
	if gotReport.Notes != checked {
		t.Errorf("notes = %q, want %q", gotReport.Notes, checked)
	}
	if gotReport.VerifiedBy == nil || *gotReport.VerifiedBy != f.foreman.ID {
		t.Errorf("verified by = %v, want %s", gotReport.VerifiedBy, f.foreman.ID)
	}
	assertDec(t, "assignment approved", gotAssignment.ApprovedVolume, 5)
	if gotAssignment.Status != model.AssignmentInProgress {
		t.Errorf("assignment status = %s, want in_progress", gotAssignment.Status)
	}
	assertDec(t, "work item completed", gotItem.CompletedVolume, 5)
}

func TestApprovalRequiresAssigningForeman(t *testing.T) {
	f := newFixture(t)
	_, itemID := f.seedSection(t)
	a := f.assignOne(t, itemID, f.sub1, 10)
	report := f.submit(t, a, 5)

	_, err := f.approvals.ApproveWork(f.ctx, f.foreman2.ID.String(), ApproveWorkRequest{
		CompletedWorkID: report.ID.String(),
		Decision:        "approved",
	})
	if !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}

	pending, err := f.approvals.ListPendingApprovals(f.ctx, f.foreman.ID.String())
	if err != nil {
		t.Fatalf("ListPendingApprovals: %v", err)
	}
	if len(pending) != 1 || pending[0].SubcontractorName != "sub1" || pending[0].WorkType != "Concrete" {
		t.Errorf("unexpected pending list %+v", pending)
	}
	other, err := f.approvals.ListPendingApprovals(f.ctx, f.foreman2.ID.String())
	if err != nil {
		t.Fatalf("ListPendingApprovals: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("foreman2 should see nothing, got %d", len(other))
	}
}

func TestApproveWorkRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	_, itemID := f.seedSection(t)
	a := f.assignOne(t, itemID, f.sub1, 10)
	report := f.submit(t, a, 5)

	zero := decimal.Zero
	cases := map[string]ApproveWorkRequest{
		"unknown decision": {CompletedWorkID: report.ID.String(), Decision: "maybe"},
		"zero adjustment":  {CompletedWorkID: report.ID.String(), Decision: "approved", AdjustedVolume: &zero},
		"bad id":           {CompletedWorkID: "nope", Decision: "approved"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := f.approvals.ApproveWork(f.ctx, f.foreman.ID.String(), req); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}

	_, err := f.approvals.ApproveWork(f.ctx, f.foreman.ID.String(), ApproveWorkRequest{CompletedWorkID: uuid.NewString(), Decision: "approved"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSubmitWorkChecksOwnerAndStatus(t *testing.T) {
	f := newFixture(t)
	_, itemID := f.seedSection(t)
	a := f.assignOne(t, itemID, f.sub1, 10)

	_, err := f.reports.SubmitWork(f.ctx, f.sub2.ID.String(), SubmitWorkRequest{
		AssignmentID:    a.ID.String(),
		CompletedVolume: dec(1),
		WorkDate:        "2024-03-02",
	})
	if !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}

	if _, err := f.assign.CancelAssignment(f.ctx, f.foreman.ID.String(), a.ID.String()); err != nil {
		t.Fatalf("CancelAssignment: %v", err)
	}
	_, err = f.reports.SubmitWork(f.ctx, f.sub1.ID.String(), SubmitWorkRequest{
		AssignmentID:    a.ID.String(),
		CompletedVolume: dec(1),
		WorkDate:        "2024-03-02",
	})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on a cancelled assignment, got %v", err)
	}

	_, err = f.reports.SubmitWork(f.ctx, f.sub1.ID.String(), SubmitWorkRequest{
		AssignmentID:    a.ID.String(),
		CompletedVolume: dec(1),
		WorkDate:        "02.03.2024",
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for a bad date, got %v", err)
	}
}

func TestAssignWorkValidation(t *testing.T) {
	f := newFixture(t)
	_, itemID := f.seedSection(t)

	cases := []struct {
		name  string
		input []AssignmentInput
		want  error
	}{
		{"over capacity", []AssignmentInput{{SubcontractorID: f.sub1.ID.String(), AssignedVolume: dec(60)}, {SubcontractorID: f.sub2.ID.String(), AssignedVolume: dec(41)}}, ErrCapacityExceeded},
		{"zero volume", []AssignmentInput{{SubcontractorID: f.sub1.ID.String(), AssignedVolume: decimal.Zero}}, ErrInvalidInput},
		{"not a subcontractor", []AssignmentInput{{SubcontractorID: f.foreman2.ID.String(), AssignedVolume: dec(1)}}, ErrInvalidInput},
		{"unknown subcontractor", []AssignmentInput{{SubcontractorID: uuid.NewString(), AssignedVolume: dec(1)}}, ErrNotFound},
		{"empty", nil, ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.assign.AssignWork(f.ctx, f.foreman.ID.String(), AssignWorkRequest{WorkItemID: itemID, Assignments: tc.input})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	// Nothing from the failed batches was kept.
	sent, err := f.assign.ListForemanAssignments(f.ctx, f.foreman.ID.String())
	if err != nil {
		t.Fatalf("ListForemanAssignments: %v", err)
	}
	if len(sent) != 0 {
		t.Fatalf("expected no assignments, got %d", len(sent))
	}

	// Exactly the remaining volume fits.
	created, err := f.assign.AssignWork(f.ctx, f.foreman.ID.String(), AssignWorkRequest{
		WorkItemID: itemID,
		Assignments: []AssignmentInput{
			{SubcontractorID: f.sub1.ID.String(), AssignedVolume: dec(60)},
			{SubcontractorID: f.sub2.ID.String(), AssignedVolume: dec(40)},
		},
	})
	if err != nil {
		t.Fatalf("AssignWork: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("created %d assignments", len(created))
	}
}

func TestConcurrentAssignWorkCannotOverbook(t *testing.T) {
	f := newFixture(t)
	sectionID, itemID := f.seedSection(t)

	subs := []string{f.sub1.ID.String(), f.sub2.ID.String()}
	errs := make([]error, len(subs))
	var wg sync.WaitGroup
	for i, sub := range subs {
		wg.Add(1)
		go func(i int, sub string) {
			defer wg.Done()
			_, errs[i] = f.assign.AssignWork(f.ctx, f.foreman.ID.String(), AssignWorkRequest{
				WorkItemID:  itemID,
				Assignments: []AssignmentInput{{SubcontractorID: sub, AssignedVolume: dec(70)}},
			})
		}(i, sub)
	}
	wg.Wait()

	var ok, overbooked int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrCapacityExceeded):
			overbooked++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || overbooked != 1 {
		t.Fatalf("ok=%d overbooked=%d, want exactly one of each", ok, overbooked)
	}
	assertDec(t, "reserved", f.concrete(t, sectionID).ReservedVolume, 70)
}

func TestCancelAssignment(t *testing.T) {
	f := newFixture(t)
	sectionID, itemID := f.seedSection(t)
	a := f.assignOne(t, itemID, f.sub1, 30)
	report := f.submit(t, a, 5)

	if _, err := f.assign.CancelAssignment(f.ctx, f.foreman.ID.String(), a.ID.String()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("cancel with a pending report: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := f.review(report, "approved", nil); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := f.assign.CancelAssignment(f.ctx, f.foreman2.ID.String(), a.ID.String()); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("cancel by another foreman: expected ErrNotAuthorized, got %v", err)
	}

	cancelled, err := f.assign.CancelAssignment(f.ctx, f.foreman.ID.String(), a.ID.String())
	if err != nil {
		t.Fatalf("CancelAssignment: %v", err)
	}
	if cancelled.Status != model.AssignmentRejected {
		t.Errorf("status = %s, want rejected", cancelled.Status)
	}

	item := f.concrete(t, sectionID)
	assertDec(t, "completed kept", item.ActualCompleted, 5)
	assertDec(t, "reserved released", item.ReservedVolume, 0)
	assertDec(t, "remaining", item.Remaining, 95)

	if _, err := f.assign.CancelAssignment(f.ctx, f.foreman.ID.String(), a.ID.String()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second cancel: expected ErrInvalidTransition, got %v", err)
	}
}

func TestAssignmentListings(t *testing.T) {
	f := newFixture(t)
	_, itemID := f.seedSection(t)
	a := f.assignOne(t, itemID, f.sub1, 10)
	f.assignOne(t, itemID, f.sub2, 5)
	f.submit(t, a, 4)

	sent, err := f.assign.ListForemanAssignments(f.ctx, f.foreman.ID.String())
	if err != nil {
		t.Fatalf("ListForemanAssignments: %v", err)
	}
	if len(sent) != 2 {
		t.Fatalf("sent = %d, want 2", len(sent))
	}
	for _, s := range sent {
		if s.ID == a.ID {
			assertDec(t, "reported", s.Reported, 4)
			if s.SubcontractorName != "sub1" || s.CompanyName != "sub1 LLC" {
				t.Errorf("unexpected subcontractor %q / %q", s.SubcontractorName, s.CompanyName)
			}
		}
	}

	mine, err := f.reports.ListAssignments(f.ctx, f.sub1.ID.String(), "")
	if err != nil {
		t.Fatalf("ListAssignments: %v", err)
	}
	if len(mine) != 1 {
		t.Fatalf("sub1 assignments = %d", len(mine))
	}
	assertDec(t, "available", mine[0].Available, 6)

	inProgress, err := f.reports.ListAssignments(f.ctx, f.sub1.ID.String(), string(model.AssignmentInProgress))
	if err != nil {
		t.Fatalf("ListAssignments: %v", err)
	}
	if len(inProgress) != 1 {
		t.Errorf("reporting should move the assignment to in_progress, got %d rows", len(inProgress))
	}
	if _, err := f.reports.ListAssignments(f.ctx, f.sub1.ID.String(), "pending"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for an unknown status, got %v", err)
	}

	history, err := f.reports.WorkHistory(f.ctx, f.sub1.ID.String(), WorkHistoryFilter{From: "2024-03-02", To: "2024-03-02"})
	if err != nil {
		t.Fatalf("WorkHistory: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("history = %d rows, want 1", len(history))
	}
}

func TestSubcontractorStatistics(t *testing.T) {
	f := newFixture(t)
	_, itemID := f.seedSection(t)
	a := f.assignOne(t, itemID, f.sub1, 20)
	approved := f.submit(t, a, 6)
	rejected := f.submit(t, a, 3)
	f.submit(t, a, 2)

	if _, err := f.review(approved, "approved", nil); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := f.review(rejected, "rejected", nil); err != nil {
		t.Fatalf("reject: %v", err)
	}

	stats, err := f.progress.SubcontractorStatistics(f.ctx, f.sub1.ID.String())
	if err != nil {
		t.Fatalf("SubcontractorStatistics: %v", err)
	}
	assertDec(t, "assigned", stats.AssignedVolume, 20)
	assertDec(t, "approved", stats.ApprovedVolume, 6)
	assertDec(t, "pending", stats.PendingVolume, 2)
	assertDec(t, "rejected", stats.RejectedVolume, 3)
	if stats.AssignmentsByStatus[model.AssignmentInProgress] != 1 || stats.AssignmentsByStatus[model.AssignmentCompleted] != 0 {
		t.Errorf("assignment counts = %v", stats.AssignmentsByStatus)
	}
	if stats.ReportsByStatus[model.CompletedWorkSubmitted] != 1 ||
		stats.ReportsByStatus[model.CompletedWorkApproved] != 1 ||
		stats.ReportsByStatus[model.CompletedWorkRejected] != 1 {
		t.Errorf("report counts = %v", stats.ReportsByStatus)
	}

	empty, err := f.progress.SubcontractorStatistics(f.ctx, f.sub2.ID.String())
	if err != nil {
		t.Fatalf("SubcontractorStatistics: %v", err)
	}
	if len(empty.AssignmentsByStatus) != 4 || !empty.AssignedVolume.IsZero() {
		t.Errorf("empty statistics should list every status with zeros, got %+v", empty)
	}
}
