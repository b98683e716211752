// Package jobs schedules the background maintenance work.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tileboardhq/tileboard/pkg/gueststore"
	"github.com/tileboardhq/tileboard/pkg/logger"
	"github.com/tileboardhq/tileboard/pkg/metrics"
	"github.com/tileboardhq/tileboard/pkg/models"
	"gorm.io/gorm"
)

// CronManager manages scheduled jobs
type CronManager struct {
	cron    *cron.Cron
	db      *gorm.DB
	guests  *gueststore.Store
	metrics *metrics.Metrics
	logger  logger.Logger
}

// NewCronManager creates a new cron manager
func NewCronManager(db *gorm.DB, guests *gueststore.Store, m *metrics.Metrics, log logger.Logger) *CronManager {
	if log == nil {
		log = logger.Default()
	}

	return &CronManager{
		cron:    cron.New(),
		db:      db,
		guests:  guests,
		metrics: m,
		logger:  log,
	}
}

// SetupJobs configures all scheduled jobs
func (cm *CronManager) SetupJobs() error {
	cm.logger.Info("setting up cron jobs")

	// Every 10 minutes: evict idle guest stores
	_, err := cm.cron.AddFunc("*/10 * * * *", func() {
		evicted := cm.guests.Sweep()
		if evicted > 0 {
			cm.metrics.RecordGuestsSwept(evicted)
			cm.logger.Info("guest store sweep finished",
				"evicted", evicted, "remaining", cm.guests.Len())
		}
	})
	if err != nil {
		return err
	}

	// Daily at 4 AM: purge soft-deleted accounts older than 30 days
	_, err = cm.cron.AddFunc("0 4 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		cutoff := time.Now().AddDate(0, 0, -30)
		res := cm.db.WithContext(ctx).
			Unscoped().
			Where("deleted_at IS NOT NULL AND deleted_at < ?", cutoff).
			Delete(&models.User{})
		if res.Error != nil {
			cm.logger.Error("account purge failed", "error", res.Error)
			return
		}
		if res.RowsAffected > 0 {
			cm.logger.Info("purged soft-deleted accounts", "count", res.RowsAffected)
		}
	})
	if err != nil {
		return err
	}

	return nil
}

// Start begins executing scheduled jobs
func (cm *CronManager) Start() {
	cm.cron.Start()
	cm.logger.Info("cron scheduler started")
}

// Stop halts the scheduler and waits for running jobs
func (cm *CronManager) Stop() {
	ctx := cm.cron.Stop()
	<-ctx.Done()
	cm.logger.Info("cron scheduler stopped")
}
