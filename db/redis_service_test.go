package db

import (
	"context"
	"sync"
	"testing"
	"time"

	"attendance-server-go/attendance"
	"attendance-server-go/config"
	"attendance-server-go/models"
	"attendance-server-go/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisService(t *testing.T) (*RedisService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := InitializeRedisClient(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisService(client), mr
}

func TestRedisService_AddStudentRejectsTakenID(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestRedisService(t)

	first := models.Student{ID: "S100", LastName: "Cruz", FirstName: "Ana", Course: "BSIT", YearSection: "1A"}
	require.NoError(t, svc.AddStudent(ctx, first))

	dup := models.Student{ID: "S100", LastName: "Dup", FirstName: "Row", Course: "BSIT", YearSection: "1A"}
	assert.ErrorIs(t, svc.AddStudent(ctx, dup), ErrStudentExists)

	got, err := svc.GetStudentByID(ctx, "S100")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Cruz", got.LastName)

	n, err := svc.CountStudents(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestRedisService_Students(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestRedisService(t)

	created := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	require.NoError(t, svc.AddStudent(ctx, models.Student{
		ID: "S1", LastName: "Cruz", FirstName: "Ana", Course: "BSIT", YearSection: "1A", CreatedAt: created,
	}))

	missing, err := svc.GetStudentByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	byID, err := svc.GetStudentsByIDs(ctx, []string{"S1", "nope"})
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, "1A", byID["S1"].YearSection)
	assert.True(t, byID["S1"].CreatedAt.Equal(created))
}

func TestRedisService_ImportSkipsRepeatedID(t *testing.T) {
	svc, _ := newTestRedisService(t)
	roster := rosterWorkbook(t, [][]interface{}{
		{"Last Name", "First Name", "Course", "Year/Section", "Student ID"},
		{"Cruz", "Ana", "BSIT", "1A", "S100"},
		{"Dup", "Row", "BSIT", "1A", "S100"},
	})

	added, err := ImportStudentsFromExcel(context.Background(), roster, svc, time.Now())
	require.NoError(t, err)
	require.Len(t, added, 1)

	got, err := svc.GetStudentByID(context.Background(), "S100")
	require.NoError(t, err)
	assert.Equal(t, "Cruz", got.LastName)
}

func TestRedisService_Records(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestRedisService(t)
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	rec, err := svc.FindRecord(ctx, "S1", "H1")
	require.NoError(t, err)
	assert.Nil(t, rec)

	_, err = svc.InsertRecord(ctx, "S2", "H1", at.Add(time.Minute))
	require.NoError(t, err)
	first, err := svc.InsertRecord(ctx, "S1", "H1", at)
	require.NoError(t, err)

	_, err = svc.InsertRecord(ctx, "S1", "H1", at.Add(time.Hour))
	assert.ErrorIs(t, err, attendance.ErrDuplicateRecord)

	// Same student, other host.
	_, err = svc.InsertRecord(ctx, "S1", "H2", at)
	require.NoError(t, err)

	rec, err = svc.FindRecord(ctx, "S1", "H1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, first.ID, rec.ID)
	assert.True(t, rec.ScannedAt.Equal(at))

	list, err := svc.ListRecords(ctx, "H1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "S1", list[0].StudentID)
	assert.Equal(t, "S2", list[1].StudentID)
}

func TestRedisService_SessionExpires(t *testing.T) {
	ctx := context.Background()
	svc, mr := newTestRedisService(t)

	now := time.Now()
	sess := session.HostSession{
		Token:     "tok",
		Host:      models.Host{ID: "H1", Name: "Room 101"},
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, svc.SaveSession(ctx, sess))

	ttl := mr.TTL(getSessionKey("tok"))
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Hour)

	got, err := svc.GetSession(ctx, "tok")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "H1", got.Host.ID)

	mr.FastForward(2 * time.Hour)
	got, err = svc.GetSession(ctx, "tok")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisService_DeleteSession(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestRedisService(t)

	sess := session.HostSession{Token: "tok", Host: models.Host{ID: "H1"}, ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, svc.SaveSession(ctx, sess))
	require.NoError(t, svc.DeleteSession(ctx, "tok"))

	got, err := svc.GetSession(ctx, "tok")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisService_ConcurrentMarkOneRecord(t *testing.T) {
	svc, _ := newTestRedisService(t)
	assertOneRecordUnderRace(t, svc, "H1")

	list, err := svc.ListRecords(context.Background(), "H1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

// checkBarrier holds every FindRecord until n callers have checked, so all
// of them reach the insert believing the pair is free.
type checkBarrier struct {
	attendance.Store
	wg sync.WaitGroup
}

func newCheckBarrier(store attendance.Store, n int) *checkBarrier {
	b := &checkBarrier{Store: store}
	b.wg.Add(n)
	return b
}

func (b *checkBarrier) FindRecord(ctx context.Context, studentID, hostID string) (*models.AttendanceRecord, error) {
	rec, err := b.Store.FindRecord(ctx, studentID, hostID)
	b.wg.Done()
	b.wg.Wait()
	return rec, err
}

// assertOneRecordUnderRace runs two concurrent marks for the same pair and
// expects the store to let exactly one through.
func assertOneRecordUnderRace(t *testing.T, store attendance.Store, hostID string) {
	t.Helper()
	m := attendance.NewMarker(newCheckBarrier(store, 2))
	host := models.Host{ID: hostID}

	results := make([]attendance.Status, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = m.Mark(context.Background(), "S123", host)
		}(i)
	}
	wg.Wait()

	var marked, duplicates int
	for _, st := range results {
		switch {
		case st.Kind == attendance.KindMarked:
			marked++
		case st.Kind == attendance.KindInsertFailed && st.Duplicate:
			duplicates++
		}
	}
	assert.Equal(t, 1, marked)
	assert.Equal(t, 1, duplicates)
}
