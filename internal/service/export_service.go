package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"buildtrack/internal/schedule"
)

// Export modes.
const (
	ExportFull      = "full"
	ExportFactsOnly = "facts"
)

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

type ExportService interface {
	ExportSchedule(ctx context.Context, sectionID, mode string) (*ExportFile, error)
	ExportReport(ctx context.Context, sectionID string) (*ExportFile, error)
	ExportReportPDF(ctx context.Context, sectionID string) (*ExportFile, error)
}

type exportService struct {
	hierarchy HierarchyService
	progress  ProgressService
}

func NewExportService(hierarchy HierarchyService, progress ProgressService) ExportService {
	return &exportService{hierarchy: hierarchy, progress: progress}
}

// ExportSchedule renders the section back into a schedule file. The facts mode
// keeps only lines that have approved progress.
func (s *exportService) ExportSchedule(ctx context.Context, sectionID, mode string) (*ExportFile, error) {
	factsOnly := false
	switch mode {
	case "", ExportFull:
	case ExportFactsOnly, "factsOnly":
		factsOnly = true
	default:
		return nil, invalidInput("unknown export mode %q", mode)
	}

	path, err := s.hierarchy.GetSectionPath(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	items, err := s.progress.ListWorkItems(ctx, sectionID, WorkItemQuery{CompletedOnly: factsOnly})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		if factsOnly {
			return nil, notFound("completed work in section", sectionID)
		}
		return nil, notFound("work items in section", sectionID)
	}

	records := make([]schedule.Record, len(items))
	for i, item := range items {
		records[i] = recordOf(item)
	}
	data, err := schedule.Render(metaOf(path), records)
	if err != nil {
		return nil, fmt.Errorf("failed to render schedule: %w", err)
	}

	suffix := "full"
	if factsOnly {
		suffix = "facts"
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("%s_%s.xml", fileSlug(path), suffix),
		ContentType: "application/xml",
		Data:        data,
	}, nil
}

func (s *exportService) ExportReport(ctx context.Context, sectionID string) (*ExportFile, error) {
	path, rows, err := s.reportRows(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	data, err := schedule.RenderReport(metaOf(path), rows)
	if err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}
	return &ExportFile{
		Filename:    fileSlug(path) + "_progress.xlsx",
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Data:        data,
	}, nil
}

func (s *exportService) ExportReportPDF(ctx context.Context, sectionID string) (*ExportFile, error) {
	path, rows, err := s.reportRows(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	data, err := schedule.RenderReportPDF(metaOf(path), rows, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}
	return &ExportFile{
		Filename:    fileSlug(path) + "_progress.pdf",
		ContentType: "application/pdf",
		Data:        data,
	}, nil
}

func (s *exportService) reportRows(ctx context.Context, sectionID string) (*SectionPath, []schedule.ReportRow, error) {
	path, err := s.hierarchy.GetSectionPath(ctx, sectionID)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.progress.ListWorkItems(ctx, sectionID, WorkItemQuery{})
	if err != nil {
		return nil, nil, err
	}

	rows := make([]schedule.ReportRow, len(items))
	for i, item := range items {
		rows[i] = schedule.ReportRow{
			Record:          recordOf(item),
			AssignedTotal:   item.AssignedTotal,
			Remaining:       item.Remaining,
			ProgressPercent: item.ProgressPercent,
		}
	}
	return path, rows, nil
}

func recordOf(item WorkItemProgress) schedule.Record {
	return schedule.Record{
		Floor:           item.Floor,
		WorkType:        item.WorkType,
		StartDate:       item.StartDate,
		EndDate:         item.EndDate,
		TotalVolume:     item.TotalVolume,
		CompletedVolume: item.ActualCompleted,
		Unit:            item.Unit,
	}
}

func metaOf(path *SectionPath) schedule.Meta {
	return schedule.Meta{
		ObjectName: path.Object.Name,
		Stage:      path.Queue.Name,
		Block:      path.Section.Name,
	}
}

func fileSlug(path *SectionPath) string {
	name := fmt.Sprintf("%s_q%d_s%d", path.Object.Name, path.Queue.Number, path.Section.Number)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		}
		return '_'
	}, name)
}
