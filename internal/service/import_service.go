package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"buildtrack/internal/core/volume"
	"buildtrack/internal/model"
	"buildtrack/internal/repository"
	"buildtrack/internal/schedule"
	"buildtrack/internal/storage"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- DTOs ---

type ImportResult struct {
	XmlFile       model.XmlFile `json:"xml_file"`
	UpsertedCount int           `json:"upserted_count"`
	CreatedCount  int           `json:"created_count"`
}

type UpdateStatus struct {
	HasUpdates bool       `json:"has_updates"`
	LastUpload *time.Time `json:"last_upload"`
}

// --- Interface ---

type ImportService interface {
	ImportSchedule(ctx context.Context, userID, sectionID, filename string, data []byte) (*ImportResult, error)
	ListXmlFiles(ctx context.Context, sectionID string) ([]model.XmlFile, error)
	DeleteXmlFile(ctx context.Context, userID, id string) error
	CheckUpdates(ctx context.Context, sectionID string, since *time.Time) (*UpdateStatus, error)
}

type importService struct {
	hierarchyRepo  repository.HierarchyRepository
	fileRepo       repository.XmlFileRepository
	workItemRepo   repository.WorkItemRepository
	assignmentRepo repository.AssignmentRepository
	auditRepo      repository.AuditRepository
	txManager      repository.TransactionManager
	store          storage.FileStore
	events         Publisher
}

func NewImportService(
	hierarchyRepo repository.HierarchyRepository,
	fileRepo repository.XmlFileRepository,
	workItemRepo repository.WorkItemRepository,
	assignmentRepo repository.AssignmentRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	store storage.FileStore,
	events Publisher,
) ImportService {
	return &importService{
		hierarchyRepo:  hierarchyRepo,
		fileRepo:       fileRepo,
		workItemRepo:   workItemRepo,
		assignmentRepo: assignmentRepo,
		auditRepo:      auditRepo,
		txManager:      txManager,
		store:          store,
		events:         publisherOrNop(events),
	}
}

// --- Implementation ---

func (s *importService) ImportSchedule(ctx context.Context, userID, sectionID, filename string, data []byte) (*ImportResult, error) {
	secID, err := parseID(sectionID, "section")
	if err != nil {
		return nil, err
	}
	if filename == "" {
		filename = "schedule.xml"
	}

	parsed, err := schedule.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if _, err := s.hierarchyRepo.FindSectionByID(ctx, secID); err != nil {
		return nil, lookupErr(err, "section", sectionID)
	}

	now := time.Now()
	path, err := s.store.Save(ctx, storage.ObjectName(secID, filename, now), data)
	if err != nil {
		return nil, fmt.Errorf("failed to store schedule file: %w", err)
	}

	result := &ImportResult{}
	uploader := optionalUserID(userID)
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.hierarchyRepo.FindSectionByIDForUpdate(txCtx, secID); err != nil {
			return lookupErr(err, "section", sectionID)
		}
		if _, err := s.fileRepo.ReplaceActive(txCtx, secID); err != nil {
			return fmt.Errorf("failed to replace active file: %w", err)
		}

		file := model.XmlFile{
			SectionID:   secID,
			Filename:    filename,
			StoragePath: path,
			Size:        int64(len(data)),
			UploadedBy:  uploader,
			UploadedAt:  now,
			Status:      model.XmlFileActive,
		}
		if err := s.fileRepo.Create(txCtx, &file); err != nil {
			return fmt.Errorf("failed to record xml file: %w", err)
		}

		for _, rec := range parsed.Records {
			created, err := s.upsertRecord(txCtx, secID, file.ID, rec)
			if err != nil {
				return err
			}
			result.UpsertedCount++
			if created {
				result.CreatedCount++
			}
		}
		result.XmlFile = file

		return writeAudit(txCtx, s.auditRepo, uploader, model.ActionImportSchedule, file.ID.String(), filename, map[string]interface{}{
			"section_id": sectionID,
			"upserted":   result.UpsertedCount,
			"created":    result.CreatedCount,
		})
	})
	if err != nil {
		if delErr := s.store.Delete(context.Background(), path); delErr != nil {
			log.Printf("Failed to remove orphaned upload %s: %v", path, delErr)
		}
		return nil, err
	}

	s.events.Publish(EventScheduleImported, secID, map[string]interface{}{
		"section_id":  sectionID,
		"xml_file_id": result.XmlFile.ID,
		"upserted":    result.UpsertedCount,
	})
	return result, nil
}

// upsertRecord writes one schedule line. Progress on an existing line is kept.
func (s *importService) upsertRecord(ctx context.Context, sectionID, fileID uuid.UUID, rec schedule.Record) (bool, error) {
	total := volume.Normalize(rec.TotalVolume)
	target := volume.DailyTarget(total, rec.Days())
	fid := fileID

	item, err := s.workItemRepo.FindByKeyForUpdate(ctx, sectionID, rec.Floor, rec.WorkType)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		item = &model.WorkItem{
			SectionID:   sectionID,
			XmlFileID:   &fid,
			Floor:       rec.Floor,
			WorkType:    rec.WorkType,
			StartDate:   rec.StartDate,
			EndDate:     rec.EndDate,
			TotalVolume: total,
			Unit:        rec.Unit,
			DailyTarget: target,
		}
		if err := s.workItemRepo.Create(ctx, item); err != nil {
			return false, fmt.Errorf("failed to create work item %s / %s: %w", rec.Floor, rec.WorkType, err)
		}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load work item %s / %s: %w", rec.Floor, rec.WorkType, err)
	}

	reserved, err := s.assignmentRepo.ReservedVolume(ctx, item.ID)
	if err != nil {
		return false, fmt.Errorf("failed to sum reserved volume: %w", err)
	}
	guard := volume.CanResize(volume.ResizeContext{
		Floor:     rec.Floor,
		WorkType:  rec.WorkType,
		NewTotal:  total,
		Completed: item.CompletedVolume,
		Reserved:  reserved,
	})
	if !guard.Allowed {
		committed := item.CompletedVolume.Add(reserved)
		return false, &CapacityError{
			Scope:     "work_item:" + item.ID.String(),
			Total:     total,
			Committed: committed,
			Requested: total,
			Remaining: total.Sub(committed),
			Reason:    guard.Reason,
		}
	}

	item.XmlFileID = &fid
	item.StartDate = rec.StartDate
	item.EndDate = rec.EndDate
	item.TotalVolume = total
	item.Unit = rec.Unit
	item.DailyTarget = target
	if err := s.workItemRepo.Update(ctx, item); err != nil {
		return false, fmt.Errorf("failed to update work item %s / %s: %w", rec.Floor, rec.WorkType, err)
	}
	return false, nil
}

func (s *importService) ListXmlFiles(ctx context.Context, sectionID string) ([]model.XmlFile, error) {
	secID, err := parseID(sectionID, "section")
	if err != nil {
		return nil, err
	}
	if _, err := s.hierarchyRepo.FindSectionByID(ctx, secID); err != nil {
		return nil, lookupErr(err, "section", sectionID)
	}
	return s.fileRepo.ListBySection(ctx, secID)
}

// DeleteXmlFile hides a file from the section. Work items it produced stay.
func (s *importService) DeleteXmlFile(ctx context.Context, userID, id string) error {
	fileID, err := parseID(id, "xml file")
	if err != nil {
		return err
	}
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		file, err := s.fileRepo.FindByID(txCtx, fileID)
		if err != nil {
			return lookupErr(err, "xml file", id)
		}
		if file.Status == model.XmlFileDeleted {
			return notFound("xml file", id)
		}
		if err := s.fileRepo.UpdateStatus(txCtx, fileID, model.XmlFileDeleted); err != nil {
			return fmt.Errorf("failed to delete xml file: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, optionalUserID(userID), model.ActionDeleteXmlFile, id, file.Filename, nil)
	})
}

// CheckUpdates reports whether the section got a new active file after since.
func (s *importService) CheckUpdates(ctx context.Context, sectionID string, since *time.Time) (*UpdateStatus, error) {
	secID, err := parseID(sectionID, "section")
	if err != nil {
		return nil, err
	}
	if _, err := s.hierarchyRepo.FindSectionByID(ctx, secID); err != nil {
		return nil, lookupErr(err, "section", sectionID)
	}
	last, err := s.fileRepo.LatestUpload(ctx, secID)
	if err != nil {
		return nil, fmt.Errorf("failed to check uploads: %w", err)
	}

	status := &UpdateStatus{LastUpload: last}
	if last != nil {
		status.HasUpdates = since == nil || last.After(*since)
	}
	return status, nil
}
