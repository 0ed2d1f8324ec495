package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"buildtrack/internal/model"
	"buildtrack/internal/repository"

	"gorm.io/gorm"
)

// --- DTOs ---

type CreateObjectRequest struct {
	Name string `json:"name" binding:"required"`
}

type CreateNumberedRequest struct {
	Number int    `json:"number" binding:"required,gt=0"`
	Name   string `json:"name" binding:"required"`
}

// SectionPath is a section with its queue and object.
type SectionPath struct {
	Object  model.Object
	Queue   model.Queue
	Section model.Section
}

// --- Interface ---

type HierarchyService interface {
	CreateObject(ctx context.Context, userID string, req CreateObjectRequest) (*model.Object, error)
	ListObjects(ctx context.Context) ([]repository.ObjectSummary, error)
	DeleteObject(ctx context.Context, userID, id string) error

	CreateQueue(ctx context.Context, userID, objectID string, req CreateNumberedRequest) (*model.Queue, error)
	ListQueues(ctx context.Context, objectID string) ([]model.Queue, error)
	DeleteQueue(ctx context.Context, userID, id string) error

	CreateSection(ctx context.Context, userID, queueID string, req CreateNumberedRequest) (*model.Section, error)
	ListSections(ctx context.Context, queueID string) ([]repository.SectionSummary, error)
	DeleteSection(ctx context.Context, userID, id string) error

	GetSectionPath(ctx context.Context, sectionID string) (*SectionPath, error)
}

type hierarchyService struct {
	repo      repository.HierarchyRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
}

func NewHierarchyService(repo repository.HierarchyRepository, auditRepo repository.AuditRepository, txManager repository.TransactionManager) HierarchyService {
	return &hierarchyService{repo: repo, auditRepo: auditRepo, txManager: txManager}
}

// --- Implementation ---

func (s *hierarchyService) CreateObject(ctx context.Context, userID string, req CreateObjectRequest) (*model.Object, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, invalidInput("object name is required")
	}

	obj := model.Object{Name: name, CreatedBy: optionalUserID(userID)}
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.CreateObject(txCtx, &obj); err != nil {
			return fmt.Errorf("failed to create object: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, obj.CreatedBy, model.ActionCreateObject, obj.ID.String(), obj.Name, req)
	})
	if err != nil {
		return nil, err
	}
	return &obj, nil
}

func (s *hierarchyService) ListObjects(ctx context.Context) ([]repository.ObjectSummary, error) {
	objects, err := s.repo.ListObjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}
	return objects, nil
}

func (s *hierarchyService) DeleteObject(ctx context.Context, userID, id string) error {
	objectID, err := parseID(id, "object")
	if err != nil {
		return err
	}
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		obj, err := s.repo.FindObjectByID(txCtx, objectID)
		if err != nil {
			return lookupErr(err, "object", id)
		}
		if _, err := s.repo.DeleteObject(txCtx, objectID); err != nil {
			return fmt.Errorf("failed to delete object: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, optionalUserID(userID), model.ActionDeleteObject, id, obj.Name, nil)
	})
}

func (s *hierarchyService) CreateQueue(ctx context.Context, userID, objectID string, req CreateNumberedRequest) (*model.Queue, error) {
	parentID, err := parseID(objectID, "object")
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if req.Number <= 0 || name == "" {
		return nil, invalidInput("queue needs a positive number and a name")
	}

	queue := model.Queue{ObjectID: parentID, Number: req.Number, Name: name, CreatedBy: optionalUserID(userID)}
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.FindObjectByID(txCtx, parentID); err != nil {
			return lookupErr(err, "object", objectID)
		}
		exists, err := s.repo.QueueNumberExists(txCtx, parentID, req.Number)
		if err != nil {
			return fmt.Errorf("failed to check queue number: %w", err)
		}
		if exists {
			return fmt.Errorf("%w: queue %d already exists in this object", ErrDuplicateNumber, req.Number)
		}
		if err := s.repo.CreateQueue(txCtx, &queue); err != nil {
			return createErr(err, "queue", req.Number)
		}
		return writeAudit(txCtx, s.auditRepo, queue.CreatedBy, model.ActionCreateQueue, queue.ID.String(), queue.Name, req)
	})
	if err != nil {
		return nil, err
	}
	return &queue, nil
}

func (s *hierarchyService) ListQueues(ctx context.Context, objectID string) ([]model.Queue, error) {
	parentID, err := parseID(objectID, "object")
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.FindObjectByID(ctx, parentID); err != nil {
		return nil, lookupErr(err, "object", objectID)
	}
	return s.repo.ListQueues(ctx, parentID)
}

func (s *hierarchyService) DeleteQueue(ctx context.Context, userID, id string) error {
	queueID, err := parseID(id, "queue")
	if err != nil {
		return err
	}
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		queue, err := s.repo.FindQueueByID(txCtx, queueID)
		if err != nil {
			return lookupErr(err, "queue", id)
		}
		if _, err := s.repo.DeleteQueue(txCtx, queueID); err != nil {
			return fmt.Errorf("failed to delete queue: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, optionalUserID(userID), model.ActionDeleteQueue, id, queue.Name, nil)
	})
}

func (s *hierarchyService) CreateSection(ctx context.Context, userID, queueID string, req CreateNumberedRequest) (*model.Section, error) {
	parentID, err := parseID(queueID, "queue")
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if req.Number <= 0 || name == "" {
		return nil, invalidInput("section needs a positive number and a name")
	}

	section := model.Section{QueueID: parentID, Number: req.Number, Name: name, CreatedBy: optionalUserID(userID)}
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.FindQueueByID(txCtx, parentID); err != nil {
			return lookupErr(err, "queue", queueID)
		}
		exists, err := s.repo.SectionNumberExists(txCtx, parentID, req.Number)
		if err != nil {
			return fmt.Errorf("failed to check section number: %w", err)
		}
		if exists {
			return fmt.Errorf("%w: section %d already exists in this queue", ErrDuplicateNumber, req.Number)
		}
		if err := s.repo.CreateSection(txCtx, &section); err != nil {
			return createErr(err, "section", req.Number)
		}
		return writeAudit(txCtx, s.auditRepo, section.CreatedBy, model.ActionCreateSection, section.ID.String(), section.Name, req)
	})
	if err != nil {
		return nil, err
	}
	return &section, nil
}

func (s *hierarchyService) ListSections(ctx context.Context, queueID string) ([]repository.SectionSummary, error) {
	parentID, err := parseID(queueID, "queue")
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.FindQueueByID(ctx, parentID); err != nil {
		return nil, lookupErr(err, "queue", queueID)
	}
	return s.repo.ListSections(ctx, parentID)
}

func (s *hierarchyService) DeleteSection(ctx context.Context, userID, id string) error {
	sectionID, err := parseID(id, "section")
	if err != nil {
		return err
	}
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		section, err := s.repo.FindSectionByID(txCtx, sectionID)
		if err != nil {
			return lookupErr(err, "section", id)
		}
		if _, err := s.repo.DeleteSection(txCtx, sectionID); err != nil {
			return fmt.Errorf("failed to delete section: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, optionalUserID(userID), model.ActionDeleteSection, id, section.Name, nil)
	})
}

func (s *hierarchyService) GetSectionPath(ctx context.Context, sectionID string) (*SectionPath, error) {
	id, err := parseID(sectionID, "section")
	if err != nil {
		return nil, err
	}
	section, err := s.repo.FindSectionByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "section", sectionID)
	}
	queue, err := s.repo.FindQueueByID(ctx, section.QueueID)
	if err != nil {
		return nil, lookupErr(err, "queue", section.QueueID)
	}
	obj, err := s.repo.FindObjectByID(ctx, queue.ObjectID)
	if err != nil {
		return nil, lookupErr(err, "object", queue.ObjectID)
	}
	return &SectionPath{Object: *obj, Queue: *queue, Section: *section}, nil
}

// createErr maps a unique violation that slipped past the pre-check.
func createErr(err error, what string, number int) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s %d already exists", ErrDuplicateNumber, what, number)
	}
	return fmt.Errorf("failed to create %s: %w", what, err)
}
