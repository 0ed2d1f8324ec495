// Package schedule reads and writes Primavera P6 style schedule files
// (ProjectData/Object/Stage/Block/Floor/WorkType) and renders progress reports.
package schedule

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the date format used by schedule files.
const DateLayout = "2006-01-02"

// ErrInvalidSchedule is returned when a file cannot be read as a schedule.
var ErrInvalidSchedule = errors.New("invalid schedule file")

// Record is one work line of a schedule.
type Record struct {
	Stage           string
	Block           string
	Floor           string
	WorkType        string
	StartDate       time.Time
	EndDate         time.Time
	TotalVolume     decimal.Decimal
	CompletedVolume decimal.Decimal
	Unit            string
}

// Key identifies a record within a section.
func (r Record) Key() string {
	return r.Floor + "\x00" + r.WorkType
}

// Days is the length of the record's window in calendar days.
func (r Record) Days() float64 {
	return r.EndDate.Sub(r.StartDate).Hours() / 24
}

// Schedule is a parsed schedule file.
type Schedule struct {
	ObjectName string
	Records    []Record
}

// Meta names the hierarchy levels written around exported work lines.
type Meta struct {
	ObjectName string
	Stage      string
	Block      string
}

type xmlProject struct {
	XMLName xml.Name  `xml:"ProjectData"`
	Object  xmlObject `xml:"Object"`
}

type xmlObject struct {
	Name   string     `xml:"Name,attr"`
	Stages []xmlStage `xml:"Stage"`
}

type xmlStage struct {
	Name   string     `xml:"Name,attr"`
	Blocks []xmlBlock `xml:"Block"`
}

type xmlBlock struct {
	Name   string     `xml:"Name,attr"`
	Floors []xmlFloor `xml:"Floor"`
}

type xmlFloor struct {
	Name      string        `xml:"Name,attr"`
	WorkTypes []xmlWorkType `xml:"WorkType"`
}

type xmlWorkType struct {
	Name            string `xml:"Name,attr"`
	StartDate       string `xml:"StartDate,attr"`
	EndDate         string `xml:"EndDate,attr"`
	TotalVolume     string `xml:"TotalVolume,attr"`
	CompletedVolume string `xml:"CompletedVolume,attr,omitempty"`
	Unit            string `xml:"Unit,attr"`
}

// Parse reads a schedule. When the same (floor, work type) pair occurs more
// than once the last occurrence wins.
func Parse(r io.Reader) (*Schedule, error) {
	var project xmlProject
	if err := xml.NewDecoder(r).Decode(&project); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}

	sched := &Schedule{ObjectName: strings.TrimSpace(project.Object.Name)}
	index := make(map[string]int)

	for _, stage := range project.Object.Stages {
		for _, block := range stage.Blocks {
			for _, floor := range block.Floors {
				for _, wt := range floor.WorkTypes {
					rec, err := toRecord(stage.Name, block.Name, floor.Name, wt)
					if err != nil {
						return nil, err
					}
					if i, ok := index[rec.Key()]; ok {
						sched.Records[i] = rec
						continue
					}
					index[rec.Key()] = len(sched.Records)
					sched.Records = append(sched.Records, rec)
				}
			}
		}
	}

	if len(sched.Records) == 0 {
		return nil, fmt.Errorf("%w: no work types found", ErrInvalidSchedule)
	}
	return sched, nil
}

func toRecord(stage, block, floor string, wt xmlWorkType) (Record, error) {
	rec := Record{
		Stage:    strings.TrimSpace(stage),
		Block:    strings.TrimSpace(block),
		Floor:    strings.TrimSpace(floor),
		WorkType: strings.TrimSpace(wt.Name),
		Unit:     strings.TrimSpace(wt.Unit),
	}
	if rec.Floor == "" || rec.WorkType == "" {
		return Record{}, fmt.Errorf("%w: work type without floor or name", ErrInvalidSchedule)
	}

	var err error
	if rec.StartDate, err = parseDate(wt.StartDate); err != nil {
		return Record{}, fmt.Errorf("%w: %s / %s: start date: %v", ErrInvalidSchedule, rec.Floor, rec.WorkType, err)
	}
	if rec.EndDate, err = parseDate(wt.EndDate); err != nil {
		return Record{}, fmt.Errorf("%w: %s / %s: end date: %v", ErrInvalidSchedule, rec.Floor, rec.WorkType, err)
	}
	if rec.EndDate.Before(rec.StartDate) {
		return Record{}, fmt.Errorf("%w: %s / %s: end date before start date", ErrInvalidSchedule, rec.Floor, rec.WorkType)
	}

	if rec.TotalVolume, err = decimal.NewFromString(strings.TrimSpace(wt.TotalVolume)); err != nil {
		return Record{}, fmt.Errorf("%w: %s / %s: total volume %q", ErrInvalidSchedule, rec.Floor, rec.WorkType, wt.TotalVolume)
	}
	if rec.TotalVolume.IsNegative() {
		return Record{}, fmt.Errorf("%w: %s / %s: negative total volume", ErrInvalidSchedule, rec.Floor, rec.WorkType)
	}
	rec.TotalVolume = rec.TotalVolume.Round(2)

	if v := strings.TrimSpace(wt.CompletedVolume); v != "" {
		if rec.CompletedVolume, err = decimal.NewFromString(v); err != nil {
			return Record{}, fmt.Errorf("%w: %s / %s: completed volume %q", ErrInvalidSchedule, rec.Floor, rec.WorkType, wt.CompletedVolume)
		}
	}
	return rec, nil
}

// parseDate accepts plain dates and full timestamps, keeping only the day.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	return time.Parse(DateLayout, s)
}

// Render writes records as a schedule file, grouping them by floor in order of
// first appearance.
func Render(meta Meta, records []Record) ([]byte, error) {
	floors := make([]xmlFloor, 0)
	floorIndex := make(map[string]int)
	for _, rec := range records {
		i, ok := floorIndex[rec.Floor]
		if !ok {
			i = len(floors)
			floorIndex[rec.Floor] = i
			floors = append(floors, xmlFloor{Name: rec.Floor})
		}
		floors[i].WorkTypes = append(floors[i].WorkTypes, xmlWorkType{
			Name:            rec.WorkType,
			StartDate:       rec.StartDate.Format(DateLayout),
			EndDate:         rec.EndDate.Format(DateLayout),
			TotalVolume:     rec.TotalVolume.StringFixed(2),
			CompletedVolume: rec.CompletedVolume.StringFixed(2),
			Unit:            rec.Unit,
		})
	}

	project := xmlProject{
		Object: xmlObject{
			Name: meta.ObjectName,
			Stages: []xmlStage{{
				Name: meta.Stage,
				Blocks: []xmlBlock{{
					Name:   meta.Block,
					Floors: floors,
				}},
			}},
		},
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(project); err != nil {
		return nil, fmt.Errorf("failed to encode schedule: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
