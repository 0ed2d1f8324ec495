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

	_ "buildtrack/api/swagger" // swagger docs
	"buildtrack/internal/config"
	"buildtrack/internal/database"
	"buildtrack/internal/handler"
	"buildtrack/internal/jobs"
	"buildtrack/internal/middleware"
	"buildtrack/internal/repository"
	"buildtrack/internal/service"
	"buildtrack/internal/storage"
	"buildtrack/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           BuildTrack API
// @version         1.0
// @description     Construction progress tracking: schedules, assignments, reports and approvals.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.Load()

	db, err := database.NewConnection(cfg)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Println("WARNING: Failed to auto-migrate models:", err)
	}
	log.Printf("Connected to %s successfully.", cfg.DBDriver)

	ctx := context.Background()
	store, closeStore, err := storage.Open(ctx, cfg.StorageBackend, cfg.UploadDir, cfg.GCSBucket)
	if err != nil {
		log.Fatalf("File storage setup failed: %v", err)
	}
	defer closeStore()

	// Set up WebSocket Hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db, cfg.TxTimeout)
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	hierarchyRepo := repository.NewHierarchyRepository(db)
	fileRepo := repository.NewXmlFileRepository(db)
	workItemRepo := repository.NewWorkItemRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	reportRepo := repository.NewCompletedWorkRepository(db)
	statsRepo := repository.NewStatisticsRepository(db)

	userService := service.NewUserService(userRepo, middleware.GetJWTSecret())
	auditService := service.NewAuditService(auditRepo)
	hierarchyService := service.NewHierarchyService(hierarchyRepo, auditRepo, txManager)
	importService := service.NewImportService(hierarchyRepo, fileRepo, workItemRepo, assignmentRepo, auditRepo, txManager, store, wsHub)
	progressService := service.NewProgressService(hierarchyRepo, workItemRepo, assignmentRepo, statsRepo)
	exportService := service.NewExportService(hierarchyService, progressService)
	assignmentService := service.NewAssignmentService(workItemRepo, assignmentRepo, reportRepo, userRepo, auditRepo, txManager, wsHub)
	reportingService := service.NewReportingService(assignmentRepo, reportRepo, auditRepo, txManager, wsHub)
	approvalService := service.NewApprovalService(workItemRepo, assignmentRepo, reportRepo, auditRepo, txManager, wsHub)

	// Initialize Handlers
	userHandler := handler.NewUserHandler(userService)
	auditHandler := handler.NewAuditHandler(auditService)
	plannerHandler := handler.NewPlannerHandler(hierarchyService, importService, progressService, exportService)
	foremanHandler := handler.NewForemanHandler(assignmentService, approvalService, importService, progressService)
	subcontractorHandler := handler.NewSubcontractorHandler(reportingService, progressService)

	// Maintenance
	retention := jobs.NewFileRetentionJob(fileRepo, store, cfg.RetentionAge())
	scheduler, err := jobs.NewScheduler(cfg.RetentionCron, retention)
	if err != nil {
		log.Fatalf("Failed to schedule maintenance jobs: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Set up Gin Router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, middleware.GetJWTSecret())
	})

	// API Routing
	userHandler.RegisterRoutes(router.Group(""))
	auditHandler.RegisterRoutes(router.Group(""))
	plannerHandler.RegisterRoutes(router.Group(""))
	foremanHandler.RegisterRoutes(router.Group(""))
	subcontractorHandler.RegisterRoutes(router.Group(""))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
}
