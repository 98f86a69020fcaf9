package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"attendance-server-go/session"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// SessionHeader carries the host session token.
	SessionHeader   = "X-Session-Token"
	requestIDHeader = "X-Request-ID"
	hostSessionKey  = "hostSession"
	requestIDKey    = "requestId"
)

// RequestID tags each request with an ID, reusing the caller's when present.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Set(requestIDKey, id)
		c.Next()
	}
}

// RequestLogger writes gin's access log with the request ID on each line.
func RequestLogger(out io.Writer) gin.HandlerFunc {
	return gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: requestLogFormatter,
		Output:    out,
	})
}

func requestLogFormatter(p gin.LogFormatterParams) string {
	id, _ := p.Keys[requestIDKey].(string)
	return fmt.Sprintf("[GIN] %v | %3d | %13v | %15s | %-7s %#v | req=%s\n%s",
		p.TimeStamp.Format("2006/01/02 - 15:04:05"),
		p.StatusCode,
		p.Latency,
		p.ClientIP,
		p.Method,
		p.Path,
		id,
		p.ErrorMessage,
	)
}

// RequestTimeout bounds the request context.
func RequestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireHostSession resolves the session token into the host context.
func (h *APIHandler) RequireHostSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := session.Resolve(c.Request.Context(), h.Sessions, c.GetHeader(SessionHeader), h.Now())
		if err != nil {
			switch {
			case errors.Is(err, session.ErrSessionNotFound):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Host login required"})
			case errors.Is(err, session.ErrSessionExpired):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Host session expired, please log in again"})
			default:
				log.Printf("Error resolving host session: %v", err)
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Session store unavailable"})
			}
			return
		}
		c.Set(hostSessionKey, sess)
		c.Next()
	}
}

func hostSession(c *gin.Context) *session.HostSession {
	return c.MustGet(hostSessionKey).(*session.HostSession)
}
