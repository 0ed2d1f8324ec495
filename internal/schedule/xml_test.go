package schedule

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const sampleSchedule = `<?xml version="1.0" encoding="UTF-8"?>
<ProjectData>
  <Object Name="Residential complex North">
    <Stage Name="Queue 1">
      <Block Name="Section 2">
        <Floor Name="F1">
          <WorkType Name="Concrete" StartDate="2024-03-01" EndDate="2024-03-11" TotalVolume="100" CompletedVolume="55" Unit="m3"/>
          <WorkType Name="Masonry" StartDate="2024-03-05T00:00:00" EndDate="2024-03-08T00:00:00" TotalVolume="42.5" Unit="m2"/>
        </Floor>
        <Floor Name="F2">
          <WorkType Name="Concrete" StartDate="2024-03-12" EndDate="2024-03-20" TotalVolume="80" Unit="m3"/>
        </Floor>
        <Floor Name="F1">
          <WorkType Name="Concrete" StartDate="2024-03-01" EndDate="2024-03-15" TotalVolume="120" Unit="m3"/>
        </Floor>
      </Block>
    </Stage>
  </Object>
</ProjectData>`

func TestParse(t *testing.T) {
	sched, err := Parse(strings.NewReader(sampleSchedule))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if sched.ObjectName != "Residential complex North" {
		t.Errorf("ObjectName = %q", sched.ObjectName)
	}
	if len(sched.Records) != 3 {
		t.Fatalf("expected 3 records after de-duplication, got %d", len(sched.Records))
	}

	first := sched.Records[0]
	if first.Floor != "F1" || first.WorkType != "Concrete" {
		t.Errorf("unexpected first record %s / %s", first.Floor, first.WorkType)
	}
	if !first.TotalVolume.Equal(decimal.NewFromInt(120)) {
		t.Errorf("duplicate key should keep last occurrence, got total %s", first.TotalVolume)
	}
	if !first.EndDate.Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("EndDate = %s", first.EndDate)
	}

	masonry := sched.Records[1]
	if !masonry.StartDate.Equal(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("timestamp dates should be truncated to the day, got %s", masonry.StartDate)
	}
	if masonry.Days() != 3 {
		t.Errorf("Days = %v, want 3", masonry.Days())
	}
}

func TestParseRejectsBrokenFiles(t *testing.T) {
	cases := map[string]string{
		"not xml":       "hello",
		"no work types": `<ProjectData><Object Name="x"/></ProjectData>`,
		"bad volume":    `<ProjectData><Object Name="x"><Stage><Block><Floor Name="F1"><WorkType Name="A" StartDate="2024-01-01" EndDate="2024-01-02" TotalVolume="lots" Unit="m"/></Floor></Block></Stage></Object></ProjectData>`,
		"bad date":      `<ProjectData><Object Name="x"><Stage><Block><Floor Name="F1"><WorkType Name="A" StartDate="01/01/2024" EndDate="2024-01-02" TotalVolume="1" Unit="m"/></Floor></Block></Stage></Object></ProjectData>`,
		"reversed":      `<ProjectData><Object Name="x"><Stage><Block><Floor Name="F1"><WorkType Name="A" StartDate="2024-02-01" EndDate="2024-01-02" TotalVolume="1" Unit="m"/></Floor></Block></Stage></Object></ProjectData>`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(body))
			if !errors.Is(err, ErrInvalidSchedule) {
				t.Fatalf("expected ErrInvalidSchedule, got %v", err)
			}
		})
	}
}

func TestRenderParsesBack(t *testing.T) {
	records := []Record{
		{
			Floor:           "F1",
			WorkType:        "Concrete",
			StartDate:       time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			EndDate:         time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC),
			TotalVolume:     decimal.RequireFromString("100"),
			CompletedVolume: decimal.RequireFromString("30.5"),
			Unit:            "m3",
		},
		{
			Floor:           "F2",
			WorkType:        "Masonry & finishing",
			StartDate:       time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC),
			EndDate:         time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC),
			TotalVolume:     decimal.RequireFromString("80.25"),
			CompletedVolume: decimal.Zero,
			Unit:            "m2",
		},
	}

	out, err := Render(Meta{ObjectName: "North", Stage: "Queue 1", Block: "Section 2"}, records)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !bytes.Contains(out, []byte(`CompletedVolume="30.50"`)) {
		t.Errorf("volumes should be written with two decimals:\n%s", out)
	}

	sched, err := Parse(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("Parse of rendered output failed: %v", err)
	}
	if sched.ObjectName != "North" {
		t.Errorf("ObjectName = %q", sched.ObjectName)
	}
	if len(sched.Records) != len(records) {
		t.Fatalf("got %d records, want %d", len(sched.Records), len(records))
	}
	for i, got := range sched.Records {
		want := records[i]
		if got.Floor != want.Floor || got.WorkType != want.WorkType || got.Unit != want.Unit {
			t.Errorf("record %d: got %s/%s/%s, want %s/%s/%s", i, got.Floor, got.WorkType, got.Unit, want.Floor, want.WorkType, want.Unit)
		}
		if !got.StartDate.Equal(want.StartDate) || !got.EndDate.Equal(want.EndDate) {
			t.Errorf("record %d: dates differ", i)
		}
		if !got.TotalVolume.Equal(want.TotalVolume) || !got.CompletedVolume.Equal(want.CompletedVolume) {
			t.Errorf("record %d: volumes %s/%s, want %s/%s", i, got.TotalVolume, got.CompletedVolume, want.TotalVolume, want.CompletedVolume)
		}
		if got.Stage != "Queue 1" || got.Block != "Section 2" {
			t.Errorf("record %d: hierarchy %q/%q", i, got.Stage, got.Block)
		}
	}
}

func TestRenderReport(t *testing.T) {
	rows := []ReportRow{{
		Record: Record{
			Floor:           "F1",
			WorkType:        "Concrete",
			StartDate:       time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			EndDate:         time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC),
			TotalVolume:     decimal.NewFromInt(100),
			CompletedVolume: decimal.NewFromInt(25),
			Unit:            "m3",
		},
		AssignedTotal:   decimal.NewFromInt(60),
		Remaining:       decimal.NewFromInt(15),
		ProgressPercent: decimal.NewFromInt(25),
	}}

	out, err := RenderReport(Meta{ObjectName: "North", Stage: "Queue 1", Block: "Section 2"}, rows)
	if err != nil {
		t.Fatalf("RenderReport failed: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("workbook does not open: %v", err)
	}
	defer f.Close()

	if v, _ := f.GetCellValue(progressSheet, "B1"); v != "North" {
		t.Errorf("B1 = %q, want North", v)
	}
	if v, _ := f.GetCellValue(progressSheet, "A5"); v != "Floor" {
		t.Errorf("A5 = %q, want header", v)
	}
	if v, _ := f.GetCellValue(progressSheet, "B6"); v != "Concrete" {
		t.Errorf("B6 = %q, want Concrete", v)
	}
	if v, _ := f.GetCellValue(progressSheet, "G6"); v != "25" {
		t.Errorf("G6 = %q, want 25", v)
	}
}

func TestRenderReportPDF(t *testing.T) {
	rows := []ReportRow{{
		Record: Record{
			Floor:           "F1",
			WorkType:        "Concrete",
			StartDate:       time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			EndDate:         time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
			TotalVolume:     decimal.NewFromInt(100),
			CompletedVolume: decimal.NewFromInt(25),
			Unit:            "m3",
		},
		AssignedTotal:   decimal.NewFromInt(60),
		Remaining:       decimal.NewFromInt(15),
		ProgressPercent: decimal.NewFromInt(25),
	}}

	out, err := RenderReportPDF(Meta{ObjectName: "North", Stage: "Queue 1", Block: "Section 2"}, rows, time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("RenderReportPDF failed: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Fatalf("output is not a pdf: %q", out[:min(len(out), 16)])
	}
}
