package volume

import (
	"testing"

	"buildtrack/internal/model"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCanAssign(t *testing.T) {
	tests := []struct {
		name        string
		ctx         AssignContext
		wantAllowed bool
		wantReason  string
	}{
		{
			name: "fits into an untouched work item",
			ctx: AssignContext{
				WorkItemID: "WI-1",
				Total:      d("100"),
				Requested:  []decimal.Decimal{d("60")},
			},
			wantAllowed: true,
		},
		{
			name: "exactly fills the remaining volume",
			ctx: AssignContext{
				WorkItemID: "WI-1",
				Total:      d("100"),
				Reserved:   d("60"),
				Requested:  []decimal.Decimal{d("40")},
			},
			wantAllowed: true,
		},
		{
			name: "exceeds the remaining volume",
			ctx: AssignContext{
				WorkItemID: "WI-1",
				Total:      d("100"),
				Reserved:   d("60"),
				Requested:  []decimal.Decimal{d("50")},
			},
			wantAllowed: false,
			wantReason:  "work item WI-1: requested 50.00 exceeds remaining 40.00",
		},
		{
			name: "completed volume counts against capacity",
			ctx: AssignContext{
				WorkItemID: "WI-1",
				Total:      d("100"),
				Completed:  d("30"),
				Reserved:   d("60"),
				Requested:  []decimal.Decimal{d("10.01")},
			},
			wantAllowed: false,
			wantReason:  "work item WI-1: requested 10.01 exceeds remaining 10.00",
		},
		{
			name: "split request is checked as a whole",
			ctx: AssignContext{
				WorkItemID: "WI-1",
				Total:      d("100"),
				Requested:  []decimal.Decimal{d("60"), d("50")},
			},
			wantAllowed: false,
			wantReason:  "work item WI-1: requested 110.00 exceeds remaining 100.00",
		},
		{
			name: "zero volume is rejected",
			ctx: AssignContext{
				WorkItemID: "WI-1",
				Total:      d("100"),
				Requested:  []decimal.Decimal{d("10"), d("0")},
			},
			wantAllowed: false,
			wantReason:  "assignment 2: volume must be greater than zero (got 0)",
		},
		{
			name:        "empty request is rejected",
			ctx:         AssignContext{WorkItemID: "WI-1", Total: d("100")},
			wantAllowed: false,
			wantReason:  "no assignments requested for work item WI-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CanAssign(tt.ctx)
			if result.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v", result.Allowed, tt.wantAllowed)
			}
			if !tt.wantAllowed && result.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", result.Reason, tt.wantReason)
			}
		})
	}
}

func TestCanReportVolume(t *testing.T) {
	tests := []struct {
		name        string
		ctx         ReportContext
		wantAllowed bool
	}{
		{
			name:        "first report within assignment",
			ctx:         ReportContext{AssignmentID: "A-1", AssignedVolume: d("60"), Requested: d("60")},
			wantAllowed: true,
		},
		{
			name:        "second report overflows assignment",
			ctx:         ReportContext{AssignmentID: "A-1", AssignedVolume: d("60"), AlreadyReported: d("50"), Requested: d("10.5")},
			wantAllowed: false,
		},
		{
			name:        "completed assignment has nothing left",
			ctx:         ReportContext{AssignmentID: "A-1", Status: model.AssignmentCompleted, AssignedVolume: d("60"), AlreadyReported: d("60"), Requested: d("1")},
			wantAllowed: false,
		},
		{
			name:        "negative volume",
			ctx:         ReportContext{AssignmentID: "A-1", AssignedVolume: d("60"), Requested: d("-1")},
			wantAllowed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CanReportVolume(tt.ctx)
			if result.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v (reason %q)", result.Allowed, tt.wantAllowed, result.Reason)
			}
		})
	}
}

func TestCanReportStatus(t *testing.T) {
	// Completed assignments pass here and fail on volume instead.
	for _, status := range []model.AssignmentStatus{model.AssignmentAssigned, model.AssignmentInProgress, model.AssignmentCompleted} {
		if r := CanReportStatus(ReportContext{AssignmentID: "A-1", Status: status}); !r.Allowed {
			t.Errorf("status %s: expected allowed, got %q", status, r.Reason)
		}
	}
	if r := CanReportStatus(ReportContext{AssignmentID: "A-1", Status: model.AssignmentRejected}); r.Allowed {
		t.Error("cancelled assignment: expected denied")
	}
}

func TestCanReview(t *testing.T) {
	if r := CanReview(ReviewContext{CompletedWorkID: "CW-1", Status: model.CompletedWorkSubmitted}); !r.Allowed {
		t.Fatalf("submitted report should be reviewable: %s", r.Reason)
	}

	r := CanReview(ReviewContext{CompletedWorkID: "CW-1", Status: model.CompletedWorkApproved})
	if r.Allowed {
		t.Fatal("approved report must not be reviewable again")
	}
	if r.Reason != "completed work CW-1 is already approved" {
		t.Errorf("unexpected reason %q", r.Reason)
	}

	if r := CanReview(ReviewContext{CompletedWorkID: "CW-1", Status: "bogus"}); r.Allowed {
		t.Error("unknown status must not be reviewable")
	}
}

func TestCanApply(t *testing.T) {
	base := ApplyContext{
		AssignedVolume:  d("60"),
		ApprovedVolume:  d("0"),
		TotalVolume:     d("100"),
		CompletedVolume: d("0"),
	}

	ok := base
	ok.Apply = d("50")
	if r := CanApply(ok); !r.Allowed {
		t.Errorf("expected allowed, got %q", r.Reason)
	}

	overAssignment := base
	overAssignment.ApprovedVolume = d("50")
	overAssignment.Apply = d("11")
	if r := CanApply(overAssignment); r.Allowed {
		t.Error("approval beyond assigned volume must be denied")
	}

	overTotal := base
	overTotal.CompletedVolume = d("95")
	overTotal.Apply = d("6")
	if r := CanApply(overTotal); r.Allowed {
		t.Error("approval beyond work item total must be denied")
	}

	zero := base
	if r := CanApply(zero); r.Allowed {
		t.Error("zero approval must be denied")
	}
}

func TestStatusAfterApproval(t *testing.T) {
	if got := StatusAfterApproval(d("60"), d("50")); got != model.AssignmentInProgress {
		t.Errorf("partial approval: got %s, want in_progress", got)
	}
	if got := StatusAfterApproval(d("60"), d("60")); got != model.AssignmentCompleted {
		t.Errorf("full approval: got %s, want completed", got)
	}
}

func TestStatusAfterReport(t *testing.T) {
	if got := StatusAfterReport(model.AssignmentAssigned); got != model.AssignmentInProgress {
		t.Errorf("got %s, want in_progress", got)
	}
	if got := StatusAfterReport(model.AssignmentInProgress); got != model.AssignmentInProgress {
		t.Errorf("got %s, want in_progress", got)
	}
}

func TestCanCancel(t *testing.T) {
	if r := CanCancel(CancelContext{AssignmentID: "A-1", Status: model.AssignmentAssigned}); !r.Allowed {
		t.Errorf("expected allowed, got %q", r.Reason)
	}
	if r := CanCancel(CancelContext{AssignmentID: "A-1", Status: model.AssignmentInProgress, PendingReports: 1}); r.Allowed {
		t.Error("assignment with pending report must not be cancellable")
	}
	if r := CanCancel(CancelContext{AssignmentID: "A-1", Status: model.AssignmentCompleted}); r.Allowed {
		t.Error("completed assignment must not be cancellable")
	}
}

func TestCanResize(t *testing.T) {
	if r := CanResize(ResizeContext{Floor: "F1", WorkType: "Concrete", NewTotal: d("120"), Completed: d("30")}); !r.Allowed {
		t.Errorf("growing total should be allowed: %s", r.Reason)
	}
	r := CanResize(ResizeContext{Floor: "F1", WorkType: "Concrete", NewTotal: d("50"), Completed: d("30"), Reserved: d("40")})
	if r.Allowed {
		t.Fatal("shrinking below committed volume must be denied")
	}
	if r.Reason != "F1 / Concrete: new total 50.00 is below committed 70.00" {
		t.Errorf("unexpected reason %q", r.Reason)
	}
}

func TestDailyTarget(t *testing.T) {
	tests := []struct {
		total string
		days  float64
		want  string
	}{
		{"100", 10, "10"},
		{"100", 3, "33.33"},
		{"100", 2.2, "33.33"},
		{"100", 0, "100"},
		{"0", 5, "0"},
	}
	for _, tt := range tests {
		got := DailyTarget(d(tt.total), tt.days)
		if !got.Equal(d(tt.want)) {
			t.Errorf("DailyTarget(%s, %v) = %s, want %s", tt.total, tt.days, got, tt.want)
		}
	}
}

func TestProgressPercent(t *testing.T) {
	if got := ProgressPercent(d("120"), d("30")); !got.Equal(d("25")) {
		t.Errorf("got %s, want 25", got)
	}
	if got := ProgressPercent(d("0"), d("0")); !got.IsZero() {
		t.Errorf("got %s, want 0", got)
	}
}
