package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"attendance-server-go/attendance"
	"attendance-server-go/config"
	"attendance-server-go/db"
	"attendance-server-go/handlers"
	"attendance-server-go/models"
	"attendance-server-go/session"
	"github.com/gin-gonic/gin"
)

// backend is everything a store backend provides to the API.
type backend struct {
	students handlers.StudentStore
	records  handlers.RecordStore
	sessions session.Store
	counter  studentCounter
	closeFn  func()
}

type studentCounter interface {
	CountStudents(ctx context.Context) (int64, error)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	gin.SetMode(cfg.HTTP.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, err := openBackend(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.Store.Backend, err)
	}
	defer be.closeFn()

	if cfg.SeedDemoData {
		checkAndSeedData(ctx, be.counter, be.students)
	}

	format, err := attendance.ParsePayloadFormat(cfg.Scan.PayloadFormat)
	if err != nil {
		log.Fatalf("Invalid payload format: %v", err)
	}
	marker := attendance.NewMarker(be.records, attendance.WithPayloadFormat(format))

	apiHandler := handlers.NewAPIHandler(be.students, be.records, be.sessions, marker, cfg.Location)
	router := handlers.SetupRouter(apiHandler, cfg.HTTP.RequestTimeout)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("Starting server on %s (store=%s, payload=%s)", cfg.HTTP.Addr, cfg.Store.Backend, format)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to run server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited")
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	switch cfg.Store.Backend {
	case config.BackendRedis:
		client, err := db.InitializeRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		svc := db.NewRedisService(client)
		return &backend{
			students: svc,
			records:  svc,
			sessions: svc,
			counter:  svc,
			closeFn: func() {
				if err := client.Close(); err != nil {
					log.Printf("Error closing Redis client: %v", err)
				}
			},
		}, nil

	case config.BackendPostgres:
		pg, err := db.NewPostgresStore(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		// Sessions expire nightly; keep them in memory unless Redis is the backend.
		return &backend{
			students: pg,
			records:  pg,
			sessions: session.NewMemoryStore(),
			counter:  pg,
			closeFn:  pg.Close,
		}, nil

	default:
		students := db.NewMemoryStudentStore()
		return &backend{
			students: students,
			records:  attendance.NewMemoryStore(),
			sessions: session.NewMemoryStore(),
			counter:  students,
			closeFn:  func() {},
		}, nil
	}
}

// checkAndSeedData adds demo students when the store is empty
func checkAndSeedData(ctx context.Context, counter studentCounter, students handlers.StudentStore) {
	count, err := counter.CountStudents(ctx)
	if err != nil {
		log.Printf("Warning: could not check for existing students: %v. Skipping demo data.", err)
		return
	}
	if count > 0 {
		log.Printf("Found %d existing students. Skipping demo data.", count)
		return
	}
	log.Println("No students found. Adding demo data...")
	seedInitialData(ctx, students)
}

func seedInitialData(ctx context.Context, s handlers.StudentStore) {
	now := time.Now()
	demo := []models.Student{
		{ID: "S_DEMO_001", LastName: "Dela Cruz", FirstName: "Juan", Course: "BSIT", YearSection: "1A"},
		{ID: "S_DEMO_002", LastName: "Santos", FirstName: "Maria", Course: "BSIT", YearSection: "1A"},
		{ID: "S_DEMO_003", LastName: "Reyes", FirstName: "Jose", Course: "BSCS", YearSection: "2B"},
	}
	for _, st := range demo {
		st.CreatedAt = now
		if err := s.AddStudent(ctx, st); err != nil {
			log.Printf("Error adding demo student %s: %v", st.ID, err)
		}
	}
	log.Println("Demo data added.")
}
