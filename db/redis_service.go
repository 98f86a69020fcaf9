package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"attendance-server-go/attendance"
	"attendance-server-go/config"
	"attendance-server-go/models"
	"attendance-server-go/session"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	studentsKey          = "students"         // Set: all student IDs
	studentInfoPrefix    = "student:"         // Hash prefix: student:{id} -> student details
	hostAttendancePrefix = "attendance:host:" // Hash prefix: attendance:host:{hostId} -> studentId -> record JSON
	sessionPrefix        = "session:"         // String prefix: session:{token} -> session JSON
)

// RedisService keeps students, host sessions and attendance records in Redis
type RedisService struct {
	Client *redis.Client
}

// NewRedisService creates a new RedisService instance
func NewRedisService(client *redis.Client) *RedisService {
	return &RedisService{Client: client}
}

func getStudentInfoKey(studentID string) string {
	return studentInfoPrefix + studentID
}

func getHostAttendanceKey(hostID string) string {
	return hostAttendancePrefix + hostID
}

func getSessionKey(token string) string {
	return sessionPrefix + token
}

// --- Student Operations ---

// AddStudent stores a student's profile. SADD on the students set claims the
// ID; a taken ID fails with ErrStudentExists and leaves the profile untouched.
func (s *RedisService) AddStudent(ctx context.Context, student models.Student) error {
	if student.ID == "" || student.LastName == "" || student.FirstName == "" {
		return errors.New("student ID, LastName and FirstName cannot be empty")
	}

	added, err := s.Client.SAdd(ctx, studentsKey, student.ID).Result()
	if err != nil {
		return fmt.Errorf("failed to add student to Redis: %w", err)
	}
	if added == 0 {
		return fmt.Errorf("student %s: %w", student.ID, ErrStudentExists)
	}

	err = s.Client.HSet(ctx, getStudentInfoKey(student.ID), map[string]interface{}{
		"id":          student.ID,
		"lastName":    student.LastName,
		"firstName":   student.FirstName,
		"course":      student.Course,
		"yearSection": student.YearSection,
		"createdAt":   student.CreatedAt.UTC().Format(time.RFC3339Nano),
	}).Err()
	if err != nil {
		log.Printf("[redis] error adding student %s: %v", student.ID, err)
		if rerr := s.Client.SRem(ctx, studentsKey, student.ID).Err(); rerr != nil {
			log.Printf("[redis] error releasing student id %s: %v", student.ID, rerr)
		}
		return fmt.Errorf("failed to add student to Redis: %w", err)
	}
	return nil
}

func studentFromHash(data map[string]string) *models.Student {
	if len(data) == 0 {
		return nil
	}
	createdAt, _ := time.Parse(time.RFC3339Nano, data["createdAt"])
	return &models.Student{
		ID:          data["id"],
		LastName:    data["lastName"],
		FirstName:   data["firstName"],
		Course:      data["course"],
		YearSection: data["yearSection"],
		CreatedAt:   createdAt,
	}
}

// GetStudentByID retrieves a student by their ID; nil, nil when unknown
func (s *RedisService) GetStudentByID(ctx context.Context, studentID string) (*models.Student, error) {
	data, err := s.Client.HGetAll(ctx, getStudentInfoKey(studentID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get student from Redis: %w", err)
	}
	return studentFromHash(data), nil
}

// GetStudentsByIDs fetches several profiles in one round trip. Unknown IDs are skipped.
func (s *RedisService) GetStudentsByIDs(ctx context.Context, ids []string) (map[string]models.Student, error) {
	out := make(map[string]models.Student, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	pipe := s.Client.Pipeline()
	cmds := make([]*redis.StringStringMapCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, getStudentInfoKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get students from Redis: %w", err)
	}

	for _, cmd := range cmds {
		if st := studentFromHash(cmd.Val()); st != nil {
			out[st.ID] = *st
		}
	}
	return out, nil
}

// CountStudents returns the number of registered students
func (s *RedisService) CountStudents(ctx context.Context) (int64, error) {
	n, err := s.Client.SCard(ctx, studentsKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("failed to count students: %w", err)
	}
	return n, nil
}

// --- Attendance Operations ---

// FindRecord implements attendance.Store.
func (s *RedisService) FindRecord(ctx context.Context, studentID, hostID string) (*models.AttendanceRecord, error) {
	raw, err := s.Client.HGet(ctx, getHostAttendanceKey(hostID), studentID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get attendance from Redis: %w", err)
	}
	var rec models.AttendanceRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("corrupt attendance record for student %s: %w", studentID, err)
	}
	return &rec, nil
}

// InsertRecord implements attendance.Store. HSETNX is atomic, so the
// per-host hash field is the uniqueness constraint.
func (s *RedisService) InsertRecord(ctx context.Context, studentID, hostID string, at time.Time) (*models.AttendanceRecord, error) {
	if studentID == "" || hostID == "" {
		return nil, errors.New("student ID and host ID cannot be empty")
	}
	rec := models.AttendanceRecord{
		ID:        uuid.NewString(),
		StudentID: studentID,
		HostID:    hostID,
		ScannedAt: at.UTC(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode attendance record: %w", err)
	}

	created, err := s.Client.HSetNX(ctx, getHostAttendanceKey(hostID), studentID, data).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to insert attendance into Redis: %w", err)
	}
	if !created {
		return nil, fmt.Errorf("student %s host %s: %w", studentID, hostID, attendance.ErrDuplicateRecord)
	}
	return &rec, nil
}

// ListRecords returns all records for a host ordered by scan time
func (s *RedisService) ListRecords(ctx context.Context, hostID string) ([]models.AttendanceRecord, error) {
	data, err := s.Client.HGetAll(ctx, getHostAttendanceKey(hostID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to list attendance from Redis: %w", err)
	}

	records := make([]models.AttendanceRecord, 0, len(data))
	for studentID, raw := range data {
		var rec models.AttendanceRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			log.Printf("[redis] skipping corrupt attendance record host=%s student=%s: %v", hostID, studentID, err)
			continue
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ScannedAt.Before(records[j].ScannedAt)
	})
	return records, nil
}

// --- Session Operations ---

// SaveSession implements session.Store; the key expires with the session.
func (s *RedisService) SaveSession(ctx context.Context, sess session.HostSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	key := getSessionKey(sess.Token)
	pipe := s.Client.TxPipeline()
	pipe.Set(ctx, key, data, 0)
	pipe.ExpireAt(ctx, key, sess.ExpiresAt)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// GetSession implements session.Store.
func (s *RedisService) GetSession(ctx context.Context, token string) (*session.HostSession, error) {
	raw, err := s.Client.Get(ctx, getSessionKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	var sess session.HostSession
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("corrupt session %s: %w", token, err)
	}
	return &sess, nil
}

// DeleteSession implements session.Store.
func (s *RedisService) DeleteSession(ctx context.Context, token string) error {
	if err := s.Client.Del(ctx, getSessionKey(token)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// --- Utility ---

// InitializeRedisClient creates and tests a Redis client connection
func InitializeRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("could not connect to Redis at %s: %w", cfg.Addr, err)
	}

	log.Printf("[redis] connected to %s db %d", cfg.Addr, cfg.DB)
	return rdb, nil
}
