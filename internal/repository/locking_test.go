package repository

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// sqlRecorder keeps every statement gorm builds.
type sqlRecorder struct {
	mu  sync.Mutex
	sql []string
}

func (r *sqlRecorder) LogMode(logger.LogLevel) logger.Interface { return r }
func (r *sqlRecorder) Info(context.Context, string, ...interface{}) {}
func (r *sqlRecorder) Warn(context.Context, string, ...interface{}) {}
func (r *sqlRecorder) Error(context.Context, string, ...interface{}) {}

func (r *sqlRecorder) Trace(_ context.Context, _ time.Time, fc func() (string, int64), _ error) {
	stmt, _ := fc()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sql = append(r.sql, stmt)
}

func (r *sqlRecorder) last(t *testing.T) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sql) == 0 {
		t.Fatal("no statement was built")
	}
	return r.sql[len(r.sql)-1]
}

// setupDryRunPostgres builds statements with the postgres dialect without
// connecting to a server.
func setupDryRunPostgres(t *testing.T) (*gorm.DB, *sqlRecorder) {
	t.Helper()
	rec := &sqlRecorder{}
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=buildtrack dbname=buildtrack sslmode=disable",
	}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               rec,
	})
	if err != nil {
		t.Fatalf("open dry-run postgres: %v", err)
	}
	return db, rec
}

func TestForUpdateLookupsLockRows(t *testing.T) {
	db, rec := setupDryRunPostgres(t)
	ctx := context.Background()
	id := uuid.New()

	workItems := NewWorkItemRepository(db)
	assignments := NewAssignmentRepository(db)
	reports := NewCompletedWorkRepository(db)
	hierarchy := NewHierarchyRepository(db)

	tests := []struct {
		name  string
		table string
		run   func()
	}{
		{"work item by id", "work_items", func() { _, _ = workItems.FindByIDForUpdate(ctx, id) }},
		{"work item by key", "work_items", func() { _, _ = workItems.FindByKeyForUpdate(ctx, id, "F1", "Concrete") }},
		{"assignment", "assignments", func() { _, _ = assignments.FindByIDForUpdate(ctx, id) }},
		{"completed work", "completed_works", func() { _, _ = reports.FindByIDForUpdate(ctx, id) }},
		{"section", "sections", func() { _, _ = hierarchy.FindSectionByIDForUpdate(ctx, id) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.run()
			stmt := rec.last(t)
			if !strings.Contains(stmt, `"`+tt.table+`"`) {
				t.Fatalf("statement does not read %s: %s", tt.table, stmt)
			}
			if !strings.HasSuffix(strings.TrimSpace(stmt), "FOR UPDATE") {
				t.Errorf("statement does not lock the row: %s", stmt)
			}
		})
	}
}

func TestPlainLookupsDoNotLock(t *testing.T) {
	db, rec := setupDryRunPostgres(t)
	ctx := context.Background()

	_, _ = NewAssignmentRepository(db).FindByID(ctx, uuid.New())
	if stmt := rec.last(t); strings.Contains(stmt, "FOR UPDATE") {
		t.Errorf("plain lookup locks the row: %s", stmt)
	}
}
