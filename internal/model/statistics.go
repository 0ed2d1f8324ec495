package model

import (
	"github.com/shopspring/decimal"
)

// SubcontractorStatistics summarises one subcontractor's assignments and reports.
type SubcontractorStatistics struct {
	AssignmentsByStatus map[AssignmentStatus]int64    `json:"assignments_by_status"`
	ReportsByStatus     map[CompletedWorkStatus]int64 `json:"reports_by_status"`
	AssignedVolume      decimal.Decimal               `json:"assigned_volume"`
	ApprovedVolume      decimal.Decimal               `json:"approved_volume"`
	PendingVolume       decimal.Decimal               `json:"pending_volume"`
	RejectedVolume      decimal.Decimal               `json:"rejected_volume"`
}

// WorkItemVolumes is the assignment-side aggregate of one work item.
type WorkItemVolumes struct {
	WorkItemID       string          `json:"work_item_id"`
	AssignedTotal    decimal.Decimal `json:"assigned_total"`
	ReservedVolume   decimal.Decimal `json:"reserved_volume"`
	AssignmentsCount int64           `json:"assignments_count"`
}

// StatusCount is a scan target for grouped count queries.
type StatusCount struct {
	Status string
	Count  int64
}
