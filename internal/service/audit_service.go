package service

import (
	"context"
	"fmt"
	"strings"

	"buildtrack/internal/repository"
)

type AuditLogResponse struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	Action     string `json:"action"`
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name"`
	Details    string `json:"details"`
	CreatedAt  string `json:"created_at"`
}

// AuditQuery selects one page of the trail. Action, EntityID and UserID are optional.
type AuditQuery struct {
	Page     int
	Limit    int
	Action   string
	EntityID string
	UserID   string
}

type AuditService interface {
	GetAuditLogs(ctx context.Context, query AuditQuery) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	repo repository.AuditRepository
}

// NewAuditService creates a new AuditService instance
func NewAuditService(repo repository.AuditRepository) AuditService {
	return &auditService{repo: repo}
}

// GetAuditLogs returns one page of the trail, newest first, with actor names resolved.
func (s *auditService) GetAuditLogs(ctx context.Context, query AuditQuery) ([]AuditLogResponse, int64, error) {
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 20
	}

	filter := repository.AuditFilter{
		Action:   strings.ToUpper(strings.TrimSpace(query.Action)),
		EntityID: strings.TrimSpace(query.EntityID),
		Offset:   (query.Page - 1) * query.Limit,
		Limit:    query.Limit,
	}
	if query.UserID != "" {
		id, err := parseID(query.UserID, "user")
		if err != nil {
			return nil, 0, err
		}
		filter.UserID = &id
	}

	logs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		username := "System"
		userID := ""
		if l.User != nil {
			username = l.User.Username
		}
		if l.UserID != nil {
			userID = l.UserID.String()
		}

		res = append(res, AuditLogResponse{
			ID:         l.ID.String(),
			UserID:     userID,
			Username:   username,
			Action:     l.Action,
			EntityID:   l.EntityID,
			EntityName: l.EntityName,
			Details:    l.Details,
			CreatedAt:  l.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	return res, total, nil
}
