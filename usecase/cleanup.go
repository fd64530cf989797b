package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// CleanupService runs the periodic expiry sweep over the avatar session
// table.
type CleanupService struct {
	service  *AvatarService
	logger   *zap.Logger
	interval time.Duration
	stopChan chan struct{}
}

// NewCleanupService creates a new session cleanup service. A zero interval
// defaults to five minutes.
func NewCleanupService(service *AvatarService, interval time.Duration, logger *zap.Logger) *CleanupService {
	if interval == 0 {
		interval = 5 * time.Minute
	}
	return &CleanupService{
		service:  service,
		logger:   logger,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the background cleanup process
func (s *CleanupService) Start() {
	go s.cleanupLoop()
	s.logger.Info("Session cleanup service started",
		zap.Duration("interval", s.interval))
}

// Stop gracefully stops the cleanup service
func (s *CleanupService) Stop() {
	close(s.stopChan)
	s.logger.Info("Session cleanup service stopped")
}

// cleanupLoop runs the cleanup process periodically
func (s *CleanupService) cleanupLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run an initial sweep shortly after startup.
	initialTimer := time.NewTimer(time.Minute)
	defer initialTimer.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-initialTimer.C:
			s.runCleanup()
		case <-ticker.C:
			s.runCleanup()
		}
	}
}

func (s *CleanupService) runCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	s.logger.Debug("Starting expired session sweep")
	s.service.CleanupExpired(ctx)
}
