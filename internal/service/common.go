package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"buildtrack/internal/model"
	"buildtrack/internal/repository"

	"github.com/google/uuid"
)

// Publisher pushes progress events to live clients watching sectionID. The
// websocket hub implements it.
type Publisher interface {
	Publish(event string, sectionID uuid.UUID, data interface{})
}

// Event names pushed after a committed change.
const (
	EventScheduleImported    = "schedule.imported"
	EventWorkAssigned        = "work.assigned"
	EventAssignmentCancelled = "assignment.cancelled"
	EventWorkSubmitted       = "work.submitted"
	EventWorkReviewed        = "work.reviewed"
)

type nopPublisher struct{}

func (nopPublisher) Publish(string, uuid.UUID, interface{}) {}

func publisherOrNop(p Publisher) Publisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}

func parseID(raw, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, invalidInput("invalid %s id %q", what, raw)
	}
	return id, nil
}

func optionalUserID(raw string) *uuid.UUID {
	if parsed, err := uuid.Parse(raw); err == nil {
		return &parsed
	}
	return nil
}

func parseDay(raw, field string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, invalidInput("%s is required", field)
	}
	if len(raw) > 10 {
		raw = raw[:10]
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, invalidInput("%s must be YYYY-MM-DD, got %q", field, raw)
	}
	return t, nil
}

func writeAudit(ctx context.Context, repo repository.AuditRepository, userID *uuid.UUID, action, entityID, entityName string, details interface{}) error {
	payload, _ := json.Marshal(details)
	entry := &model.AuditLog{
		UserID:     userID,
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(payload),
	}
	if err := repo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}
