package cron

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	fileservice "github.com/gitstash/relay/internal/file/service"
	"github.com/gitstash/relay/internal/retention"
	"github.com/gitstash/relay/pkg/logger"
)

// Timeout for the scheduled retention sweep
const cleanupTimeout = 10 * time.Minute

// Manager manages cron jobs
type Manager struct {
	cron          *cron.Cron
	logger        *logger.Logger
	fileService   *fileservice.FileService
	retentionDays int
}

// NewManager creates a new cron manager
func NewManager(logger *logger.Logger, fileService *fileservice.FileService, retentionDays int) *Manager {
	return &Manager{
		cron:          cron.New(cron.WithLogger(cron.DefaultLogger)),
		logger:        logger,
		fileService:   fileService,
		retentionDays: retentionDays,
	}
}

// Start starts the cron manager
func (m *Manager) Start() {
	// Run the retention sweep daily at 2 AM
	_, err := m.cron.AddFunc("0 2 * * *", m.cleanupFiles)
	if err != nil {
		m.logger.Fatal("Failed to add cleanup job: %v", err)
	}

	m.cron.Start()
	m.logger.Info("Cron manager started")
}

// Stop stops the cron manager
func (m *Manager) Stop() {
	m.cron.Stop()
	m.logger.Info("Cron manager stopped")
}

// cleanupFiles runs the scheduled retention sweep
func (m *Manager) cleanupFiles() {
	m.logger.Info("Running scheduled cleanup (retention: %d days)", m.retentionDays)
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	result, err := m.fileService.Cleanup(ctx, retention.ByAge(m.retentionDays))
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			m.logger.Error("Scheduled cleanup timed out after %v", cleanupTimeout)
		} else {
			m.logger.Error("Scheduled cleanup failed: %v", err)
		}
		return
	}

	m.logger.Info("Scheduled cleanup deleted %d files, skipped %d", len(result.Deleted), len(result.Skipped))
}
