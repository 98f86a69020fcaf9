package handlers

import (
	"bytes"
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"attendance-server-go/attendance"
	"attendance-server-go/db"
	"attendance-server-go/models"
	"attendance-server-go/report"
	"attendance-server-go/session"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	// RecordNotFoundMessage is the 404 body of an attendance lookup with no record.
	RecordNotFoundMessage = "Attendance record not found"
)

// StudentStore holds student profiles
type StudentStore interface {
	AddStudent(ctx context.Context, st models.Student) error
	GetStudentByID(ctx context.Context, id string) (*models.Student, error)
	GetStudentsByIDs(ctx context.Context, ids []string) (map[string]models.Student, error)
}

// RecordStore is the attendance table including the host listing used by reports
type RecordStore interface {
	attendance.Store
	ListRecords(ctx context.Context, hostID string) ([]models.AttendanceRecord, error)
}

// APIHandler holds the dependencies for API handlers
type APIHandler struct {
	Students StudentStore
	Records  RecordStore
	Sessions session.Store
	Marker   *attendance.Marker
	Location *time.Location
	Now      func() time.Time

	validate *validator.Validate
}

// NewAPIHandler creates a new APIHandler
func NewAPIHandler(students StudentStore, records RecordStore, sessions session.Store, marker *attendance.Marker, loc *time.Location) *APIHandler {
	if loc == nil {
		loc = time.Local
	}
	return &APIHandler{
		Students: students,
		Records:  records,
		Sessions: sessions,
		Marker:   marker,
		Location: loc,
		Now:      time.Now,
		validate: validator.New(),
	}
}

// --- Student Handlers ---

type registerStudentRequest struct {
	LastName    string `json:"lastName" validate:"required,max=100"`
	FirstName   string `json:"firstName" validate:"required,max=100"`
	Course      string `json:"course" validate:"required,max=32"`
	YearSection string `json:"yearSection" validate:"required,max=16"`
}

// RegisterStudent handles POST /api/students
func (h *APIHandler) RegisterStudent(c *gin.Context) {
	var req registerStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	req.LastName = strings.TrimSpace(req.LastName)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.Course = strings.TrimSpace(req.Course)
	req.YearSection = strings.TrimSpace(req.YearSection)
	if err := h.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please complete all fields: " + err.Error()})
		return
	}

	now := h.Now()
	student := models.Student{
		ID:          uuid.NewString(),
		LastName:    req.LastName,
		FirstName:   req.FirstName,
		Course:      req.Course,
		YearSection: req.YearSection,
		CreatedAt:   now,
	}
	if err := h.Students.AddStudent(c.Request.Context(), student); err != nil {
		log.Printf("Error in RegisterStudent handler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save student info"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"student":    student,
		"payload":    attendance.EncodePayload(student.ID),
		"validUntil": session.NextMidnight(now, h.Location),
	})
}

// GetStudent handles GET /api/students/:studentId
func (h *APIHandler) GetStudent(c *gin.Context) {
	studentID := c.Param("studentId")
	student, err := h.Students.GetStudentByID(c.Request.Context(), studentID)
	if err != nil {
		log.Printf("Error in GetStudent handler for ID %s: %v", studentID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve student"})
		return
	}
	if student == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Student not found"})
		return
	}
	c.JSON(http.StatusOK, student)
}

// ImportStudents handles POST /api/import/students
func (h *APIHandler) ImportStudents(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error retrieving uploaded file: " + err.Error()})
		return
	}
	defer file.Close()

	log.Printf("Received roster upload: %s", header.Filename)

	added, err := db.ImportStudentsFromExcel(c.Request.Context(), file, h.Students, h.Now())
	if err != nil {
		log.Printf("Error importing students from file %s: %v", header.Filename, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to import students: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Import successful",
		"importedCount": len(added),
		"students":      added,
	})
}

// --- Host Session Handlers ---

type loginRequest struct {
	HostID string `json:"hostId" validate:"omitempty,max=64"`
	Name   string `json:"name" validate:"required,max=100"`
}

// LoginHost handles POST /api/hosts/login
func (h *APIHandler) LoginHost(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	req.HostID = strings.TrimSpace(req.HostID)
	req.Name = strings.TrimSpace(req.Name)
	if err := h.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Host name is required: " + err.Error()})
		return
	}

	host := models.Host{ID: req.HostID, Name: req.Name}
	if host.ID == "" {
		host.ID = uuid.NewString()
	}
	sess := session.NewHostSession(host, h.Now(), h.Location)
	if err := h.Sessions.SaveSession(c.Request.Context(), sess); err != nil {
		log.Printf("Error in LoginHost handler: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to start session"})
		return
	}
	c.JSON(http.StatusCreated, sess)
}

// GetHostSession handles GET /api/hosts/session
func (h *APIHandler) GetHostSession(c *gin.Context) {
	c.JSON(http.StatusOK, hostSession(c))
}

// LogoutHost handles DELETE /api/hosts/session
func (h *APIHandler) LogoutHost(c *gin.Context) {
	sess := hostSession(c)
	if err := h.Sessions.DeleteSession(c.Request.Context(), sess.Token); err != nil {
		log.Printf("Error in LogoutHost handler: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to end session"})
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Attendance Handlers ---

type scanRequest struct {
	Payload string `json:"payload"`
}

type statusResponse struct {
	Kind      string `json:"kind"`
	StudentID string `json:"studentId,omitempty"`
	Message   string `json:"message"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

func scanHTTPStatus(st attendance.Status) int {
	switch st.Kind {
	case attendance.KindMarked:
		return http.StatusCreated
	case attendance.KindAlreadyMarked:
		return http.StatusOK
	case attendance.KindInvalidPayload:
		return http.StatusBadRequest
	case attendance.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	case attendance.KindInsertFailed:
		if st.Duplicate {
			return http.StatusConflict
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Scan handles POST /api/scan: runs the attendance marker for the session host
func (h *APIHandler) Scan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	st := h.Marker.Mark(c.Request.Context(), req.Payload, hostSession(c).CurrentHost())
	c.JSON(scanHTTPStatus(st), statusResponse{
		Kind:      st.Kind.String(),
		StudentID: st.StudentID,
		Message:   st.Message(),
		Duplicate: st.Duplicate,
	})
}

// sameHost rejects requests naming a host other than the session's.
func sameHost(c *gin.Context, hostID string) bool {
	if hostID != "" && hostID != hostSession(c).Host.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Host does not match session"})
		return false
	}
	return true
}

// FindAttendance handles GET /api/attendance/:studentId
func (h *APIHandler) FindAttendance(c *gin.Context) {
	if !sameHost(c, c.Query("hostId")) {
		return
	}
	studentID := c.Param("studentId")
	rec, err := h.Records.FindRecord(c.Request.Context(), studentID, hostSession(c).Host.ID)
	if err != nil {
		log.Printf("Error in FindAttendance handler for student %s: %v", studentID, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Attendance store unavailable"})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": RecordNotFoundMessage})
		return
	}
	c.JSON(http.StatusOK, rec)
}

type insertAttendanceRequest struct {
	StudentID string    `json:"studentId" validate:"required,max=64"`
	HostID    string    `json:"hostId"`
	ScannedAt time.Time `json:"scannedAt"`
}

// InsertAttendance handles POST /api/attendance
func (h *APIHandler) InsertAttendance(c *gin.Context) {
	var req insertAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	req.StudentID = strings.TrimSpace(req.StudentID)
	if err := h.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Student ID is required"})
		return
	}
	if !sameHost(c, req.HostID) {
		return
	}

	at := req.ScannedAt
	if at.IsZero() {
		at = h.Now()
	}
	rec, err := h.Records.InsertRecord(c.Request.Context(), req.StudentID, hostSession(c).Host.ID, at)
	if err != nil {
		if errors.Is(err, attendance.ErrDuplicateRecord) {
			c.JSON(http.StatusConflict, gin.H{"error": "Attendance already marked", "duplicate": true})
			return
		}
		log.Printf("Error in InsertAttendance handler for student %s: %v", req.StudentID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark attendance"})
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// --- Report Handlers ---

func (h *APIHandler) buildReport(c *gin.Context) (report.Report, bool) {
	ctx := c.Request.Context()
	hostID := hostSession(c).Host.ID

	records, err := h.Records.ListRecords(ctx, hostID)
	if err != nil {
		log.Printf("Error listing attendance for host %s: %v", hostID, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to retrieve attendance"})
		return report.Report{}, false
	}
	students, err := h.Students.GetStudentsByIDs(ctx, report.StudentIDs(records))
	if err != nil {
		log.Printf("Error loading students for host %s: %v", hostID, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to retrieve students"})
		return report.Report{}, false
	}
	return report.Build(records, students), true
}

// GetReport handles GET /api/report?group=
func (h *APIHandler) GetReport(c *gin.Context) {
	rep, ok := h.buildReport(c)
	if !ok {
		return
	}
	group := c.Query("group")
	c.JSON(http.StatusOK, gin.H{
		"group":  group,
		"groups": rep.Groups,
		"rows":   rep.Filter(group),
		"total":  len(rep.Rows),
	})
}

// ExportReport handles GET /api/report/export?group=&all=true
func (h *APIHandler) ExportReport(c *gin.Context) {
	rep, ok := h.buildReport(c)
	if !ok {
		return
	}

	filename := "attendance.xlsx"
	rows := rep.Filter(c.Query("group"))
	if c.Query("all") == "true" {
		filename = "attendance_all.xlsx"
		rows = rep.Rows
	}
	if len(rows) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No attendance recorded for this group"})
		return
	}

	var buf bytes.Buffer
	if err := report.WriteExcel(&buf, rows, h.Location); err != nil {
		log.Printf("Error exporting attendance: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export attendance"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// --- Ping Handler ---
func PingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Pong!"})
}
