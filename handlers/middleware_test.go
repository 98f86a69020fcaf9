package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRequestLogger_IncludesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var out bytes.Buffer

	router := gin.New()
	router.Use(RequestID(), RequestLogger(&out))
	router.GET("/ping", PingHandler)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(requestIDHeader, "req-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get(requestIDHeader))
	assert.Contains(t, out.String(), "req=req-123")
	assert.Contains(t, out.String(), `"/ping"`)
}

func TestRequestLogger_GeneratedID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var out bytes.Buffer

	router := gin.New()
	router.Use(RequestID(), RequestLogger(&out))
	router.GET("/ping", PingHandler)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	id := w.Header().Get(requestIDHeader)
	assert.NotEmpty(t, id)
	assert.Contains(t, out.String(), "req="+id)
}
