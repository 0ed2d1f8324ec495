package service

import (
	"context"

	"buildtrack/internal/model"
	"buildtrack/internal/repository"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// SubcontractorStatistics runs the independent aggregates concurrently.
func (s *progressService) SubcontractorStatistics(ctx context.Context, subcontractorID string) (*model.SubcontractorStatistics, error) {
	sub, err := parseID(subcontractorID, "subcontractor")
	if err != nil {
		return nil, err
	}

	var (
		assignmentCounts []model.StatusCount
		reportCounts     []model.StatusCount
		assigned         decimal.Decimal
		reported         repository.ReportVolumes
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		assignmentCounts, err = s.statsRepo.AssignmentCounts(gctx, sub)
		return err
	})
	g.Go(func() error {
		var err error
		reportCounts, err = s.statsRepo.ReportCounts(gctx, sub)
		return err
	})
	g.Go(func() error {
		var err error
		assigned, err = s.statsRepo.AssignedVolume(gctx, sub)
		return err
	})
	g.Go(func() error {
		var err error
		reported, err = s.statsRepo.ReportVolumes(gctx, sub)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := &model.SubcontractorStatistics{
		AssignmentsByStatus: map[model.AssignmentStatus]int64{
			model.AssignmentAssigned:   0,
			model.AssignmentInProgress: 0,
			model.AssignmentCompleted:  0,
			model.AssignmentRejected:   0,
		},
		ReportsByStatus: map[model.CompletedWorkStatus]int64{
			model.CompletedWorkSubmitted: 0,
			model.CompletedWorkApproved:  0,
			model.CompletedWorkRejected:  0,
		},
		AssignedVolume: assigned,
		ApprovedVolume: reported.Approved,
		PendingVolume:  reported.Pending,
		RejectedVolume: reported.Rejected,
	}
	for _, c := range assignmentCounts {
		stats.AssignmentsByStatus[model.AssignmentStatus(c.Status)] += c.Count
	}
	for _, c := range reportCounts {
		stats.ReportsByStatus[model.CompletedWorkStatus(c.Status)] += c.Count
	}
	return stats, nil
}
