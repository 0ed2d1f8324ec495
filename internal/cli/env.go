// Package cli holds the trackctl subcommands.
package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"gorm.io/gorm"

	"buildtrack/internal/config"
	"buildtrack/internal/database"
	"buildtrack/internal/repository"
	"buildtrack/internal/service"
	"buildtrack/internal/storage"
)

// env is what a command needs to talk to the database.
type env struct {
	cfg *config.Config
	db  *gorm.DB
}

func openEnv() (*env, error) {
	cfg := config.Load()
	db, err := database.NewConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.DBDriver, err)
	}
	return &env{cfg: cfg, db: db}, nil
}

func (e *env) close() {
	if sqlDB, err := e.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// services builds the subset of the service graph the CLI uses.
func (e *env) services(ctx context.Context) (service.ImportService, service.ExportService, func(), error) {
	store, closeStore, err := storage.Open(ctx, e.cfg.StorageBackend, e.cfg.UploadDir, e.cfg.GCSBucket)
	if err != nil {
		return nil, nil, nil, err
	}

	txManager := repository.NewTransactionManager(e.db, e.cfg.TxTimeout)
	auditRepo := repository.NewAuditRepository(e.db)
	hierarchyRepo := repository.NewHierarchyRepository(e.db)
	workItemRepo := repository.NewWorkItemRepository(e.db)
	assignmentRepo := repository.NewAssignmentRepository(e.db)

	importer := service.NewImportService(hierarchyRepo, repository.NewXmlFileRepository(e.db), workItemRepo, assignmentRepo, auditRepo, txManager, store, nil)
	hierarchy := service.NewHierarchyService(hierarchyRepo, auditRepo, txManager)
	progress := service.NewProgressService(hierarchyRepo, workItemRepo, assignmentRepo, repository.NewStatisticsRepository(e.db))
	return importer, service.NewExportService(hierarchy, progress), closeStore, nil
}

var (
	okMark   = color.New(color.FgGreen).Sprint("✓")
	warnText = color.New(color.FgYellow).SprintFunc()
)
