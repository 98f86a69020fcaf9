package models

import "time"

// Host is the identity of a scanning station/operator
type Host struct {
	ID   string `json:"id"`             // Unique host ID
	Name string `json:"name,omitempty"` // Display name shown on the dashboard
}

// Student represents a registrant
type Student struct {
	ID          string    `json:"id"`          // Unique student ID, encoded in the QR payload
	LastName    string    `json:"lastName"`    // Family name
	FirstName   string    `json:"firstName"`   // Given name
	Course      string    `json:"course"`      // e.g. BSIT
	YearSection string    `json:"yearSection"` // e.g. 1A
	CreatedAt   time.Time `json:"createdAt"`
}

// AttendanceRecord is a single (student, host, timestamp) event.
// At most one record exists per (StudentID, HostID) pair.
type AttendanceRecord struct {
	ID        string    `json:"id"`
	StudentID string    `json:"studentId"`
	HostID    string    `json:"hostId"`
	ScannedAt time.Time `json:"scannedAt"`
}
