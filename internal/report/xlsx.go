// Package report renders the assignment ledger as a spreadsheet.
package report

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"exam-allocation/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	assignmentSheet = "Assignments"
	summarySheet    = "Rooms"
)

var assignmentHeader = []string{"ID", "Examinee ID", "Room ID", "Room", "Course", "Exam Date", "Created At"}

var summaryHeader = []string{"Room ID", "Room", "Courses", "Assigned"}

// AssignmentsXLSX renders the ledger. rooms maps room ids to display names;
// unknown ids render with an empty name.
func AssignmentsXLSX(assignments []*models.Assignment, rooms map[int64]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(assignmentSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	if err := writeHeader(f, assignmentSheet, assignmentHeader, headerStyle); err != nil {
		return nil, err
	}
	if err := writeHeader(f, summarySheet, summaryHeader, headerStyle); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(assignmentSheet, "A", "G", 16); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	type roomTotals struct {
		courses  map[string]bool
		assigned int
	}
	totals := map[int64]*roomTotals{}

	for i, a := range assignments {
		row := []any{
			a.ID,
			a.ExamineeID,
			a.RoomID,
			rooms[a.RoomID],
			a.CourseLabel,
			a.ExamDate.Format("2006-01-02"),
			a.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		if err := writeRow(f, assignmentSheet, i+2, row); err != nil {
			return nil, err
		}
		t, ok := totals[a.RoomID]
		if !ok {
			t = &roomTotals{courses: map[string]bool{}}
			totals[a.RoomID] = t
		}
		t.courses[a.CourseLabel] = true
		t.assigned++
	}

	roomIDs := make([]int64, 0, len(totals))
	for id := range totals {
		roomIDs = append(roomIDs, id)
	}
	sort.Slice(roomIDs, func(i, j int) bool { return roomIDs[i] < roomIDs[j] })
	for i, id := range roomIDs {
		t := totals[id]
		courses := make([]string, 0, len(t.courses))
		for c := range t.courses {
			courses = append(courses, c)
		}
		sort.Strings(courses)
		if err := writeRow(f, summarySheet, i+2, []any{id, rooms[id], strings.Join(courses, ", "), t.assigned}); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeHeader(f *excelize.File, sheet string, header []string, style int) error {
	for col, h := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}
