package service

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"buildtrack/internal/model"
	"buildtrack/internal/schedule"

	"github.com/google/uuid"
)

func TestReimportKeepsProgress(t *testing.T) {
	f := newFixture(t)
	sectionID, itemID := f.seedSection(t)
	a := f.assignOne(t, itemID, f.sub1, 30)
	report := f.submit(t, a, 20)
	if _, err := f.review(report, "approved", nil); err != nil {
		t.Fatalf("approve: %v", err)
	}

	res, err := f.imports.ImportSchedule(f.ctx, f.planner.ID.String(), sectionID, "north-v2.xml", scheduleXML("150"))
	if err != nil {
		t.Fatalf("re-import: %v", err)
	}
	if res.UpsertedCount != 2 || res.CreatedCount != 0 {
		t.Errorf("upserted=%d created=%d, want 2 and 0", res.UpsertedCount, res.CreatedCount)
	}

	item := f.concrete(t, sectionID)
	if item.ID.String() != itemID {
		t.Fatalf("re-import replaced the work item: %s != %s", item.ID, itemID)
	}
	assertDec(t, "total", item.TotalVolume, 150)
	assertDec(t, "completed kept", item.ActualCompleted, 20)
	assertDec(t, "reserved kept", item.ReservedVolume, 10)
	if item.XmlFileID == nil || *item.XmlFileID != res.XmlFile.ID {
		t.Errorf("work item should point at the new file")
	}

	files, err := f.imports.ListXmlFiles(f.ctx, sectionID)
	if err != nil {
		t.Fatalf("ListXmlFiles: %v", err)
	}
	active := 0
	for _, file := range files {
		switch file.Status {
		case model.XmlFileActive:
			active++
			if file.ID != res.XmlFile.ID {
				t.Errorf("active file = %s, want %s", file.ID, res.XmlFile.ID)
			}
		case model.XmlFileReplaced:
		default:
			t.Errorf("unexpected file status %s", file.Status)
		}
	}
	if len(files) != 2 || active != 1 {
		t.Errorf("files=%d active=%d, want 2 and 1", len(files), active)
	}
}

func TestReimportCannotShrinkBelowCommitted(t *testing.T) {
	f := newFixture(t)
	sectionID, itemID := f.seedSection(t)
	a := f.assignOne(t, itemID, f.sub1, 30)
	report := f.submit(t, a, 20)
	if _, err := f.review(report, "approved", nil); err != nil {
		t.Fatalf("approve: %v", err)
	}

	// 20 completed + 10 still reserved.
	_, err := f.imports.ImportSchedule(f.ctx, f.planner.ID.String(), sectionID, "small.xml", scheduleXML("25"))
	var capErr *CapacityError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected *CapacityError, got %v", err)
	}
	assertDec(t, "committed", capErr.Committed, 30)

	item := f.concrete(t, sectionID)
	assertDec(t, "total unchanged", item.TotalVolume, 100)

	files, err := f.imports.ListXmlFiles(f.ctx, sectionID)
	if err != nil {
		t.Fatalf("ListXmlFiles: %v", err)
	}
	if len(files) != 1 || files[0].Status != model.XmlFileActive {
		t.Errorf("failed import must not touch the files, got %+v", files)
	}

	if _, err := f.imports.ImportSchedule(f.ctx, f.planner.ID.String(), sectionID, "exact.xml", scheduleXML("30")); err != nil {
		t.Errorf("shrinking to exactly the committed volume should work: %v", err)
	}
}

func TestImportScheduleErrors(t *testing.T) {
	f := newFixture(t)
	sectionID, _ := f.seedSection(t)

	if _, err := f.imports.ImportSchedule(f.ctx, "", sectionID, "bad.xml", []byte("<nope")); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("broken xml: expected ErrInvalidInput, got %v", err)
	}
	if _, err := f.imports.ImportSchedule(f.ctx, "", uuid.NewString(), "x.xml", scheduleXML("10")); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown section: expected ErrNotFound, got %v", err)
	}
	if _, err := f.imports.ImportSchedule(f.ctx, "", "not-a-uuid", "x.xml", scheduleXML("10")); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad section id: expected ErrInvalidInput, got %v", err)
	}
}

func TestDeleteXmlFileAndCheckUpdates(t *testing.T) {
	f := newFixture(t)
	sectionID, _ := f.seedSection(t)

	status, err := f.imports.CheckUpdates(f.ctx, sectionID, nil)
	if err != nil {
		t.Fatalf("CheckUpdates: %v", err)
	}
	if !status.HasUpdates || status.LastUpload == nil {
		t.Fatalf("expected an update without since, got %+v", status)
	}

	later := status.LastUpload.Add(time.Minute)
	status, err = f.imports.CheckUpdates(f.ctx, sectionID, &later)
	if err != nil {
		t.Fatalf("CheckUpdates: %v", err)
	}
	if status.HasUpdates {
		t.Errorf("no upload after %s, got HasUpdates", later)
	}

	files, err := f.imports.ListXmlFiles(f.ctx, sectionID)
	if err != nil || len(files) != 1 {
		t.Fatalf("ListXmlFiles: %v (%d files)", err, len(files))
	}
	fileID := files[0].ID.String()
	if err := f.imports.DeleteXmlFile(f.ctx, f.planner.ID.String(), fileID); err != nil {
		t.Fatalf("DeleteXmlFile: %v", err)
	}
	if err := f.imports.DeleteXmlFile(f.ctx, f.planner.ID.String(), fileID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}

	// Work items outlive their file.
	items, err := f.progress.ListWorkItems(f.ctx, sectionID, WorkItemQuery{})
	if err != nil {
		t.Fatalf("ListWorkItems: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("work items = %d, want 2", len(items))
	}
}

func TestHierarchyNumbersAndCascade(t *testing.T) {
	f := newFixture(t)
	sectionID, itemID := f.seedSection(t)
	f.assignOne(t, itemID, f.sub1, 10)

	path, err := f.hierarchy.GetSectionPath(f.ctx, sectionID)
	if err != nil {
		t.Fatalf("GetSectionPath: %v", err)
	}
	objectID := path.Object.ID.String()
	queueID := path.Queue.ID.String()

	if _, err := f.hierarchy.CreateQueue(f.ctx, "", objectID, CreateNumberedRequest{Number: 1, Name: "again"}); !errors.Is(err, ErrDuplicateNumber) {
		t.Errorf("duplicate queue: expected ErrDuplicateNumber, got %v", err)
	}
	if _, err := f.hierarchy.CreateSection(f.ctx, "", queueID, CreateNumberedRequest{Number: 1, Name: "again"}); !errors.Is(err, ErrDuplicateNumber) {
		t.Errorf("duplicate section: expected ErrDuplicateNumber, got %v", err)
	}
	if _, err := f.hierarchy.CreateSection(f.ctx, "", queueID, CreateNumberedRequest{Number: 2, Name: "Section 2"}); err != nil {
		t.Errorf("second section: %v", err)
	}
	if _, err := f.hierarchy.CreateQueue(f.ctx, "", uuid.NewString(), CreateNumberedRequest{Number: 1, Name: "orphan"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("queue under missing object: expected ErrNotFound, got %v", err)
	}
	if _, err := f.hierarchy.CreateObject(f.ctx, "", CreateObjectRequest{Name: "  "}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("blank object name: expected ErrInvalidInput, got %v", err)
	}

	sections, err := f.hierarchy.ListSections(f.ctx, queueID)
	if err != nil {
		t.Fatalf("ListSections: %v", err)
	}
	if len(sections) != 2 {
		t.Fatalf("sections = %d, want 2", len(sections))
	}

	if err := f.hierarchy.DeleteObject(f.ctx, f.planner.ID.String(), objectID); err != nil {
		t.Fatalf("DeleteObject: %v", err)
	}
	if _, err := f.progress.ListWorkItems(f.ctx, sectionID, WorkItemQuery{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("section should be gone, got %v", err)
	}
	var left int64
	if err := f.db.Model(&model.Assignment{}).Count(&left).Error; err != nil {
		t.Fatalf("count assignments: %v", err)
	}
	if left != 0 {
		t.Errorf("%d assignments survived the object", left)
	}
	if err := f.hierarchy.DeleteObject(f.ctx, "", objectID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}

	logs, total, err := f.audit.GetAuditLogs(f.ctx, AuditQuery{Page: 1, Limit: 50})
	if err != nil {
		t.Fatalf("GetAuditLogs: %v", err)
	}
	if total == 0 || len(logs) == 0 {
		t.Fatal("audit trail is empty")
	}
	if logs[0].Action != model.ActionDeleteObject || logs[0].Username != "planner" {
		t.Errorf("newest audit entry should be the delete by planner, got %+v", logs[0])
	}

	queues, n, err := f.audit.GetAuditLogs(f.ctx, AuditQuery{Action: "create_queue", UserID: f.planner.ID.String()})
	if err != nil {
		t.Fatalf("GetAuditLogs by action: %v", err)
	}
	if n != 1 || len(queues) != 1 || queues[0].EntityName != "Queue 1" {
		t.Errorf("planner created one queue, got %d: %+v", n, queues)
	}
	if _, _, err := f.audit.GetAuditLogs(f.ctx, AuditQuery{UserID: "me"}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad user id: expected ErrInvalidInput, got %v", err)
	}
}

func TestExportSchedule(t *testing.T) {
	f := newFixture(t)
	sectionID, itemID := f.seedSection(t)

	if _, err := f.export.ExportSchedule(f.ctx, sectionID, ExportFactsOnly); !errors.Is(err, ErrNotFound) {
		t.Fatalf("facts export without progress: expected ErrNotFound, got %v", err)
	}
	if _, err := f.export.ExportSchedule(f.ctx, sectionID, "everything"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unknown mode: expected ErrInvalidInput, got %v", err)
	}

	a := f.assignOne(t, itemID, f.sub1, 30)
	report := f.submit(t, a, 12)
	if _, err := f.review(report, "approved", nil); err != nil {
		t.Fatalf("approve: %v", err)
	}

	full, err := f.export.ExportSchedule(f.ctx, sectionID, ExportFull)
	if err != nil {
		t.Fatalf("full export: %v", err)
	}
	if full.Filename != "North_q1_s1_full.xml" || full.ContentType != "application/xml" {
		t.Errorf("unexpected file %s (%s)", full.Filename, full.ContentType)
	}
	parsed, err := schedule.Parse(bytes.NewReader(full.Data))
	if err != nil {
		t.Fatalf("exported file does not parse: %v", err)
	}
	if len(parsed.Records) != 2 {
		t.Errorf("full export records = %d, want 2", len(parsed.Records))
	}

	facts, err := f.export.ExportSchedule(f.ctx, sectionID, "factsOnly")
	if err != nil {
		t.Fatalf("facts export: %v", err)
	}
	parsed, err = schedule.Parse(bytes.NewReader(facts.Data))
	if err != nil {
		t.Fatalf("facts file does not parse: %v", err)
	}
	if len(parsed.Records) != 1 {
		t.Fatalf("facts export records = %d, want 1", len(parsed.Records))
	}
	assertDec(t, "exported completed", parsed.Records[0].CompletedVolume, 12)

	book, err := f.export.ExportReport(f.ctx, sectionID)
	if err != nil {
		t.Fatalf("ExportReport: %v", err)
	}
	if len(book.Data) == 0 || book.Filename != "North_q1_s1_progress.xlsx" {
		t.Errorf("unexpected workbook %s (%d bytes)", book.Filename, len(book.Data))
	}

	pdf, err := f.export.ExportReportPDF(f.ctx, sectionID)
	if err != nil {
		t.Fatalf("ExportReportPDF: %v", err)
	}
	if !bytes.HasPrefix(pdf.Data, []byte("%PDF-")) || pdf.ContentType != "application/pdf" {
		t.Errorf("not a pdf: %s, %d bytes", pdf.ContentType, len(pdf.Data))
	}
}
