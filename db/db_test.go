package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"attendance-server-go/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "attendance_student_host_unique"}
	assert.True(t, IsUniqueViolation(dup))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", dup)))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
}

func TestIsNoRows(t *testing.T) {
	assert.True(t, IsNoRows(fmt.Errorf("scan: %w", pgx.ErrNoRows)))
	assert.False(t, IsNoRows(errors.New("boom")))
}

func TestMigrations_AttendanceHasUniquePair(t *testing.T) {
	var found bool
	for _, m := range migrations {
		if strings.Contains(m.up, "UNIQUE (student_id, host_id)") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestKeyHelpers(t *testing.T) {
	assert.Equal(t, "student:S1", getStudentInfoKey("S1"))
	assert.Equal(t, "attendance:host:H1", getHostAttendanceKey("H1"))
	assert.Equal(t, "session:tok", getSessionKey("tok"))
}

func TestMemoryStudentStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStudentStore()

	st := models.Student{ID: "S1", LastName: "Cruz", FirstName: "Ana", Course: "BSIT", YearSection: "1A"}
	require.NoError(t, store.AddStudent(ctx, st))
	assert.ErrorIs(t, store.AddStudent(ctx, st), ErrStudentExists)

	got, err := store.GetStudentByID(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, "Cruz", got.LastName)

	missing, err := store.GetStudentByID(ctx, "S2")
	require.NoError(t, err)
	assert.Nil(t, missing)

	byID, err := store.GetStudentsByIDs(ctx, []string{"S1", "S2"})
	require.NoError(t, err)
	assert.Len(t, byID, 1)

	n, err := store.CountStudents(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func rosterWorkbook(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellName, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

func TestImportStudentsFromExcel(t *testing.T) {
	roster := rosterWorkbook(t, [][]interface{}{
		{"Last Name", "First Name", "Course", "Year/Section", "Student ID"},
		{"Cruz", "Ana", "BSIT", "1A", "S100"},
		{"Reyes", "Ben", "BSCS", "2A"},
		{"", "NoLast", "BSBA", "3A"},
		{"Dup", "Row", "BSIT", "1A", "S100"},
	})

	store := NewMemoryStudentStore()
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	added, err := ImportStudentsFromExcel(context.Background(), roster, store, now)
	require.NoError(t, err)

	require.Len(t, added, 2)
	assert.Equal(t, "S100", added[0].ID)
	assert.Equal(t, "Reyes", added[1].LastName)
	assert.NotEmpty(t, added[1].ID)
	assert.Equal(t, now, added[1].CreatedAt)
}

func TestImportStudentsFromExcel_NotAWorkbook(t *testing.T) {
	_, err := ImportStudentsFromExcel(context.Background(), strings.NewReader("not excel"), NewMemoryStudentStore(), time.Now())
	assert.Error(t, err)
}
