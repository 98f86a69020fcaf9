package db

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"attendance-server-go/models"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

// StudentAdder is the write side of a student store
type StudentAdder interface {
	AddStudent(ctx context.Context, st models.Student) error
}

// ImportStudentsFromExcel reads a roster from the first sheet of an Excel
// stream and registers each row. Columns: Last Name, First Name, Course,
// Year/Section, and an optional Student ID; rows without an ID get a new one.
// The first row is a header. Returns the students that were added.
func ImportStudentsFromExcel(ctx context.Context, file io.Reader, store StudentAdder, now time.Time) ([]models.Student, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		log.Printf("[import] error opening Excel reader: %v", err)
		return nil, fmt.Errorf("failed to open excel file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("[import] error closing excel file: %v", err)
		}
	}()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, errors.New("excel file does not contain any sheets")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows from sheet %s: %w", sheetName, err)
	}

	cell := func(row []string, i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	toAdd := make([]models.Student, 0, len(rows))
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		st := models.Student{
			LastName:    cell(row, 0),
			FirstName:   cell(row, 1),
			Course:      cell(row, 2),
			YearSection: cell(row, 3),
			ID:          cell(row, 4),
			CreatedAt:   now,
		}
		if st.LastName == "" || st.FirstName == "" || st.Course == "" || st.YearSection == "" {
			log.Printf("[import] skipping row %d: missing name, course or year/section", i+1)
			continue
		}
		if st.ID == "" {
			st.ID = uuid.NewString()
		}
		toAdd = append(toAdd, st)
	}

	log.Printf("[import] adding %d students from sheet %q", len(toAdd), sheetName)
	added := make([]models.Student, 0, len(toAdd))
	for _, st := range toAdd {
		if err := store.AddStudent(ctx, st); err != nil {
			log.Printf("[import] error adding student %s, %s (%s): %v", st.LastName, st.FirstName, st.ID, err)
			continue
		}
		added = append(added, st)
	}
	return added, nil
}
