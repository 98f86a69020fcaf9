// Package report builds the host's attendance list: records joined with
// student profiles, sorted, grouped by course and year/section, and exported
// to a spreadsheet.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"attendance-server-go/models"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet written by WriteExcel.
const SheetName = "Attendance"

var headers = []interface{}{"Course", "Year/Section", "Last Name", "First Name", "Scanned At"}

// Row is one attendance entry with the student's profile.
type Row struct {
	RecordID    string    `json:"recordId"`
	StudentID   string    `json:"studentId"`
	LastName    string    `json:"lastName"`
	FirstName   string    `json:"firstName"`
	Course      string    `json:"course"`
	YearSection string    `json:"yearSection"`
	ScannedAt   time.Time `json:"scannedAt"`
}

// Group is the "<course> - <yearSection>" label used for filtering.
func (r Row) Group() string {
	return GroupKey(r.Course, r.YearSection)
}

// GroupKey formats a group label.
func GroupKey(course, yearSection string) string {
	return course + " - " + yearSection
}

// Report is a sorted attendance list and its distinct groups.
type Report struct {
	Rows   []Row    `json:"rows"`
	Groups []string `json:"groups"`
}

// Build joins records with students. Records whose student is unknown are
// kept with empty profile fields. Rows are ordered by course, year/section,
// last name, then scan time.
func Build(records []models.AttendanceRecord, students map[string]models.Student) Report {
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		st := students[rec.StudentID]
		rows = append(rows, Row{
			RecordID:    rec.ID,
			StudentID:   rec.StudentID,
			LastName:    st.LastName,
			FirstName:   st.FirstName,
			Course:      st.Course,
			YearSection: st.YearSection,
			ScannedAt:   rec.ScannedAt,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Course != b.Course {
			return a.Course < b.Course
		}
		if a.YearSection != b.YearSection {
			return a.YearSection < b.YearSection
		}
		if c := strings.Compare(strings.ToLower(a.LastName), strings.ToLower(b.LastName)); c != 0 {
			return c < 0
		}
		return a.ScannedAt.Before(b.ScannedAt)
	})

	groups := make([]string, 0)
	seen := make(map[string]bool)
	for _, r := range rows {
		g := r.Group()
		if !seen[g] {
			seen[g] = true
			groups = append(groups, g)
		}
	}
	return Report{Rows: rows, Groups: groups}
}

// StudentIDs returns the distinct student IDs referenced by records.
func StudentIDs(records []models.AttendanceRecord) []string {
	seen := make(map[string]bool, len(records))
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		if !seen[rec.StudentID] {
			seen[rec.StudentID] = true
			ids = append(ids, rec.StudentID)
		}
	}
	return ids
}

// Filter returns the rows of one group; an empty group returns all rows.
func (r Report) Filter(group string) []Row {
	if group == "" {
		return r.Rows
	}
	out := make([]Row, 0)
	for _, row := range r.Rows {
		if row.Group() == group {
			out = append(out, row)
		}
	}
	return out
}

// WriteExcel renders rows as an xlsx workbook. Scan times are shown in loc.
func WriteExcel(w io.Writer, rows []Row, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetSheetRow(SheetName, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{r.Course, r.YearSection, r.LastName, r.FirstName, r.ScannedAt.In(loc).Format("2006-01-02 15:04:05")}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	if err := f.SetColWidth(SheetName, "A", "E", 18); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
