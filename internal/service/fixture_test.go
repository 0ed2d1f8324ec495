package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"buildtrack/internal/config"
	"buildtrack/internal/database"
	"buildtrack/internal/model"
	"buildtrack/internal/repository"
	"buildtrack/internal/storage"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type recordedEvent struct {
	Name      string
	SectionID uuid.UUID
	Data      interface{}
}

type eventRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *eventRecorder) Publish(event string, sectionID uuid.UUID, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{Name: event, SectionID: sectionID, Data: data})
}

func (r *eventRecorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Name
	}
	return out
}

// fixture wires the full service graph on a private in-memory SQLite database.
type fixture struct {
	ctx    context.Context
	db     *gorm.DB
	events *eventRecorder

	hierarchy HierarchyService
	imports   ImportService
	progress  ProgressService
	export    ExportService
	assign    AssignmentService
	reports   ReportingService
	approvals ApprovalService
	audit     AuditService

	planner  model.User
	foreman  model.User
	foreman2 model.User
	sub1     model.User
	sub2     model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := database.NewConnection(&config.Config{DBDriver: config.DriverSQLite, DBPath: ":memory:", LogLevel: "silent"})
	if err != nil {
		t.Fatalf("NewConnection: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	store, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	txManager := repository.NewTransactionManager(db, 5*time.Second)
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	hierarchyRepo := repository.NewHierarchyRepository(db)
	fileRepo := repository.NewXmlFileRepository(db)
	workItemRepo := repository.NewWorkItemRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	reportRepo := repository.NewCompletedWorkRepository(db)
	statsRepo := repository.NewStatisticsRepository(db)

	f := &fixture{ctx: context.Background(), db: db, events: &eventRecorder{}}
	f.hierarchy = NewHierarchyService(hierarchyRepo, auditRepo, txManager)
	f.imports = NewImportService(hierarchyRepo, fileRepo, workItemRepo, assignmentRepo, auditRepo, txManager, store, f.events)
	f.progress = NewProgressService(hierarchyRepo, workItemRepo, assignmentRepo, statsRepo)
	f.export = NewExportService(f.hierarchy, f.progress)
	f.assign = NewAssignmentService(workItemRepo, assignmentRepo, reportRepo, userRepo, auditRepo, txManager, f.events)
	f.reports = NewReportingService(assignmentRepo, reportRepo, auditRepo, txManager, f.events)
	f.approvals = NewApprovalService(workItemRepo, assignmentRepo, reportRepo, auditRepo, txManager, f.events)
	f.audit = NewAuditService(auditRepo)

	for _, u := range []struct {
		dst  *model.User
		name string
		role string
	}{
		{&f.planner, "planner", model.RolePlanner},
		{&f.foreman, "foreman", model.RoleForeman},
		{&f.foreman2, "foreman2", model.RoleForeman},
		{&f.sub1, "sub1", model.RoleSubcontractor},
		{&f.sub2, "sub2", model.RoleSubcontractor},
	} {
		*u.dst = model.User{Username: u.name, Password: "x", Role: u.role, CompanyName: u.name + " LLC"}
		if err := userRepo.Create(f.ctx, u.dst); err != nil {
			t.Fatalf("create user %s: %v", u.name, err)
		}
	}
	return f
}

func scheduleXML(concreteTotal string) []byte {
	return []byte(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<ProjectData>
  <Object Name="North">
    <Stage Name="Queue 1">
      <Block Name="Section 1">
        <Floor Name="F1">
          <WorkType Name="Concrete" StartDate="2024-03-01" EndDate="2024-03-10" TotalVolume="%s" Unit="m3"/>
          <WorkType Name="Masonry" StartDate="2024-03-05" EndDate="2024-03-08" TotalVolume="40" Unit="m2"/>
        </Floor>
      </Block>
    </Stage>
  </Object>
</ProjectData>`, concreteTotal))
}

// seedSection creates object, queue and section, imports a schedule with a
// 100 m3 concrete line and returns the section and that line's id.
func (f *fixture) seedSection(t *testing.T) (string, string) {
	t.Helper()

	obj, err := f.hierarchy.CreateObject(f.ctx, f.planner.ID.String(), CreateObjectRequest{Name: "North"})
	if err != nil {
		t.Fatalf("CreateObject: %v", err)
	}
	queue, err := f.hierarchy.CreateQueue(f.ctx, f.planner.ID.String(), obj.ID.String(), CreateNumberedRequest{Number: 1, Name: "Queue 1"})
	if err != nil {
		t.Fatalf("CreateQueue: %v", err)
	}
	section, err := f.hierarchy.CreateSection(f.ctx, f.planner.ID.String(), queue.ID.String(), CreateNumberedRequest{Number: 1, Name: "Section 1"})
	if err != nil {
		t.Fatalf("CreateSection: %v", err)
	}
	sectionID := section.ID.String()

	if _, err := f.imports.ImportSchedule(f.ctx, f.planner.ID.String(), sectionID, "north.xml", scheduleXML("100")); err != nil {
		t.Fatalf("ImportSchedule: %v", err)
	}
	return sectionID, f.concrete(t, sectionID).ID.String()
}

func (f *fixture) concrete(t *testing.T, sectionID string) WorkItemProgress {
	t.Helper()
	items, err := f.progress.ListWorkItems(f.ctx, sectionID, WorkItemQuery{Floor: "F1", WorkType: "Concrete"})
	if err != nil {
		t.Fatalf("ListWorkItems: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one concrete line, got %d", len(items))
	}
	return items[0]
}

func (f *fixture) assignOne(t *testing.T, workItemID string, sub model.User, v int64) model.Assignment {
	t.Helper()
	created, err := f.assign.AssignWork(f.ctx, f.foreman.ID.String(), AssignWorkRequest{
		WorkItemID:  workItemID,
		Assignments: []AssignmentInput{{SubcontractorID: sub.ID.String(), AssignedVolume: decimal.NewFromInt(v)}},
	})
	if err != nil {
		t.Fatalf("AssignWork: %v", err)
	}
	return created[0]
}

func (f *fixture) submit(t *testing.T, a model.Assignment, v int64) *model.CompletedWork {
	t.Helper()
	report, err := f.reports.SubmitWork(f.ctx, a.SubcontractorID.String(), SubmitWorkRequest{
		AssignmentID:    a.ID.String(),
		CompletedVolume: decimal.NewFromInt(v),
		WorkDate:        "2024-03-02",
	})
	if err != nil {
		t.Fatalf("SubmitWork: %v", err)
	}
	return report
}

func (f *fixture) review(report *model.CompletedWork, decision string, adjusted *decimal.Decimal) (*ApprovalResult, error) {
	return f.approvals.ApproveWork(f.ctx, f.foreman.ID.String(), ApproveWorkRequest{
		CompletedWorkID: report.ID.String(),
		Decision:        decision,
		AdjustedVolume:  adjusted,
	})
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func assertDec(t *testing.T, what string, got decimal.Decimal, want int64) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Errorf("%s = %s, want %d", what, got, want)
	}
}
