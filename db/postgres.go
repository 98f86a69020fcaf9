package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"attendance-server-go/attendance"
	"attendance-server-go/config"
	"attendance-server-go/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps students and attendance records in PostgreSQL. The
// attendance table carries UNIQUE (student_id, host_id); a lost insert race
// surfaces as attendance.ErrDuplicateRecord.
type PostgresStore struct {
	pool         pgxPool
	queryTimeout time.Duration
}

// pgxPool is the subset of *pgxpool.Pool the store uses.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// NewPostgresStore connects, pings and returns a store. Call Migrate before use.
func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: failed to ping database: %w", err)
	}

	log.Printf("[postgres] connected (max conns %d)", poolConfig.MaxConns)
	return newPostgresStore(pool, cfg.QueryTimeout), nil
}

func newPostgresStore(pool pgxPool, queryTimeout time.Duration) *PostgresStore {
	return &PostgresStore{pool: pool, queryTimeout: queryTimeout}
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// withTimeout bounds a single round trip; the debounce timer is not a store deadline.
func (s *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

// --- Migrations ---

type migration struct {
	version int
	name    string
	up      string
}

var migrations = []migration{
	{
		version: 1,
		name:    "create_students",
		up: `
CREATE TABLE IF NOT EXISTS students (
    id TEXT PRIMARY KEY,
    last_name TEXT NOT NULL,
    first_name TEXT NOT NULL,
    course TEXT NOT NULL,
    year_section TEXT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);`,
	},
	{
		version: 2,
		name:    "create_attendance",
		up: `
CREATE TABLE IF NOT EXISTS attendance (
    id UUID PRIMARY KEY,
    student_id TEXT NOT NULL,
    host_id TEXT NOT NULL,
    scanned_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    CONSTRAINT attendance_student_host_unique UNIQUE (student_id, host_id)
);
CREATE INDEX IF NOT EXISTS idx_attendance_host_scanned ON attendance(host_id, scanned_at);`,
	},
}

// Migrate applies pending migrations, each in its own transaction.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, m := range migrations {
		err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			var applied bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, m.version,
			).Scan(&applied); err != nil {
				return err
			}
			if applied {
				return nil
			}
			if _, err := tx.Exec(ctx, m.up); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.version, m.name)
			if err == nil {
				log.Printf("[postgres] applied migration %03d_%s", m.version, m.name)
			}
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.name, err)
		}
	}
	return nil
}

// --- Attendance Operations ---

// FindRecord implements attendance.Store.
func (s *PostgresStore) FindRecord(ctx context.Context, studentID, hostID string) (*models.AttendanceRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var rec models.AttendanceRecord
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, student_id, host_id, scanned_at
		FROM attendance
		WHERE student_id = $1 AND host_id = $2`, studentID, hostID,
	).Scan(&rec.ID, &rec.StudentID, &rec.HostID, &rec.ScannedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find attendance record: %w", err)
	}
	return &rec, nil
}

// InsertRecord implements attendance.Store.
func (s *PostgresStore) InsertRecord(ctx context.Context, studentID, hostID string, at time.Time) (*models.AttendanceRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rec := models.AttendanceRecord{
		ID:        uuid.NewString(),
		StudentID: studentID,
		HostID:    hostID,
		ScannedAt: at,
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO attendance (id, student_id, host_id, scanned_at)
		VALUES ($1, $2, $3, $4)`, rec.ID, rec.StudentID, rec.HostID, rec.ScannedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, fmt.Errorf("student %s host %s: %w", studentID, hostID, attendance.ErrDuplicateRecord)
		}
		return nil, fmt.Errorf("failed to insert attendance record: %w", err)
	}
	return &rec, nil
}

// ListRecords returns all records for a host ordered by scan time
func (s *PostgresStore) ListRecords(ctx context.Context, hostID string) ([]models.AttendanceRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT id::text, student_id, host_id, scanned_at
		FROM attendance
		WHERE host_id = $1
		ORDER BY scanned_at ASC`, hostID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}
	defer rows.Close()

	records := make([]models.AttendanceRecord, 0)
	for rows.Next() {
		var rec models.AttendanceRecord
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.HostID, &rec.ScannedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attendance row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// --- Student Operations ---

// AddStudent inserts a student profile.
func (s *PostgresStore) AddStudent(ctx context.Context, st models.Student) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO students (id, last_name, first_name, course, year_section, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		st.ID, st.LastName, st.FirstName, st.Course, st.YearSection, st.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("student %s: %w", st.ID, ErrStudentExists)
		}
		return fmt.Errorf("failed to add student: %w", err)
	}
	return nil
}

// GetStudentByID returns nil, nil for unknown students.
func (s *PostgresStore) GetStudentByID(ctx context.Context, id string) (*models.Student, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var st models.Student
	err := s.pool.QueryRow(ctx, `
		SELECT id, last_name, first_name, course, year_section, created_at
		FROM students WHERE id = $1`, id,
	).Scan(&st.ID, &st.LastName, &st.FirstName, &st.Course, &st.YearSection, &st.CreatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	return &st, nil
}

// GetStudentsByIDs fetches several profiles in one query.
func (s *PostgresStore) GetStudentsByIDs(ctx context.Context, ids []string) (map[string]models.Student, error) {
	out := make(map[string]models.Student, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT id, last_name, first_name, course, year_section, created_at
		FROM students WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get students: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var st models.Student
		if err := rows.Scan(&st.ID, &st.LastName, &st.FirstName, &st.Course, &st.YearSection, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan student row: %w", err)
		}
		out[st.ID] = st
	}
	return out, rows.Err()
}

// CountStudents returns the number of registered students.
func (s *PostgresStore) CountStudents(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM students`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count students: %w", err)
	}
	return n, nil
}

// --- Error helpers ---

// ErrStudentExists is returned when a student ID is already taken.
var ErrStudentExists = errors.New("student already exists")

// IsUniqueViolation checks if the error is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

// IsNoRows checks if the error is a "no rows" error.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
