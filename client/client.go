// Package client talks to the attendance server on behalf of a scanning
// station. Client implements attendance.Store, so the station runs the
// debouncer, in-flight guard and marker locally and each store call is one
// HTTP round trip.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"attendance-server-go/attendance"
	"attendance-server-go/models"
	"attendance-server-go/session"
)

const (
	sessionHeader = "X-Session-Token"
	// recordNotFound matches the server's 404 body for a missing record.
	// Any other 404 (wrong base URL, unmatched route) is an error.
	recordNotFound = "Attendance record not found"
)

// Client is an HTTP client bound to one host session.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a Client. timeout bounds each request.
func New(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

type apiError struct {
	Error     string `json:"error"`
	Duplicate bool   `json:"duplicate"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set(sessionHeader, c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out != nil && len(data) > 0 {
			if err := json.Unmarshal(data, out); err != nil {
				return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
			}
		}
		return resp.StatusCode, nil
	}

	var apiErr apiError
	_ = json.Unmarshal(data, &apiErr)
	if apiErr.Error == "" {
		apiErr.Error = http.StatusText(resp.StatusCode)
	}
	return resp.StatusCode, errors.New(apiErr.Error)
}

func sessionError(status int, err error) error {
	if status == http.StatusUnauthorized {
		return fmt.Errorf("%w: %v", session.ErrSessionExpired, err)
	}
	return err
}

// Session returns the host session bound to the token.
func (c *Client) Session(ctx context.Context) (*session.HostSession, error) {
	var sess session.HostSession
	status, err := c.do(ctx, http.MethodGet, "/api/hosts/session", nil, &sess)
	if err != nil {
		return nil, sessionError(status, err)
	}
	return &sess, nil
}

// FindRecord implements attendance.Store.
func (c *Client) FindRecord(ctx context.Context, studentID, hostID string) (*models.AttendanceRecord, error) {
	path := "/api/attendance/" + url.PathEscape(studentID) + "?hostId=" + url.QueryEscape(hostID)
	var rec models.AttendanceRecord
	status, err := c.do(ctx, http.MethodGet, path, nil, &rec)
	if err != nil {
		if status == http.StatusNotFound && err.Error() == recordNotFound {
			return nil, nil
		}
		return nil, sessionError(status, err)
	}
	return &rec, nil
}

// InsertRecord implements attendance.Store.
func (c *Client) InsertRecord(ctx context.Context, studentID, hostID string, at time.Time) (*models.AttendanceRecord, error) {
	body := map[string]any{
		"studentId": studentID,
		"hostId":    hostID,
		"scannedAt": at,
	}
	var rec models.AttendanceRecord
	status, err := c.do(ctx, http.MethodPost, "/api/attendance", body, &rec)
	if err != nil {
		if status == http.StatusConflict {
			return nil, fmt.Errorf("student %s host %s: %w", studentID, hostID, attendance.ErrDuplicateRecord)
		}
		return nil, sessionError(status, err)
	}
	return &rec, nil
}
