package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
)

// SetupRouter wires the API routes.
func SetupRouter(h *APIHandler, requestTimeout time.Duration) *gin.Engine {
	router := gin.New()
	// Student IDs may contain an escaped '/'; match on the raw path.
	router.UseRawPath = true
	router.Use(RequestID(), RequestLogger(gin.DefaultWriter), gin.Recovery(), RequestTimeout(requestTimeout))

	api := router.Group("/api")
	{
		api.GET("/ping", PingHandler)

		// Student routes
		api.POST("/students", h.RegisterStudent)
		api.GET("/students/:studentId", h.GetStudent)

		// Host login
		api.POST("/hosts/login", h.LoginHost)

		host := api.Group("", h.RequireHostSession())
		{
			host.GET("/hosts/session", h.GetHostSession)
			host.DELETE("/hosts/session", h.LogoutHost)

			// Attendance marking
			host.POST("/scan", h.Scan)
			host.GET("/attendance/:studentId", h.FindAttendance)
			host.POST("/attendance", h.InsertAttendance)

			// Reports
			host.GET("/report", h.GetReport)
			host.GET("/report/export", h.ExportReport)

			host.POST("/import/students", h.ImportStudents)
		}
	}
	return router
}
