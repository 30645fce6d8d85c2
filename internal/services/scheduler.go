package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/postul/feedback-pipeline/internal/config"
	"github.com/postul/feedback-pipeline/internal/models"
	"github.com/postul/feedback-pipeline/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

const sweepTimeout = 10 * time.Minute

// Scheduler drives the periodic pipeline passes: the reward recompute sweep,
// the daily stats snapshot and system-log cleanup. A DB lock keyed by time
// window keeps multiple server processes from running the same sweep.
type Scheduler struct {
	db         *gorm.DB
	cfg        *config.Config
	reward     *RewardService
	stats      *StatsService
	syslog     *SystemLogService
	cron       *cron.Cron
	instanceID string
}

func NewScheduler(db *gorm.DB, cfg *config.Config, reward *RewardService) *Scheduler {
	return &Scheduler{
		db:         db,
		cfg:        cfg,
		reward:     reward,
		stats:      NewStatsService(db),
		syslog:     NewSystemLogService(db),
		instanceID: uuid.NewString()[:8],
	}
}

func (s *Scheduler) Start() {
	s.cron = cron.New()

	interval := s.cfg.Aggregation.SweepInterval
	sweepSpec := fmt.Sprintf("@every %dm", interval)
	if _, err := s.cron.AddFunc(sweepSpec, s.runSweep); err != nil {
		logger.Errorf("[Scheduler] Failed to register sweep: %v", err)
	}

	if _, err := s.cron.AddFunc("30 3 * * *", s.runLogCleanup); err != nil {
		logger.Errorf("[Scheduler] Failed to register log cleanup: %v", err)
	}

	if _, err := s.cron.AddFunc("0 6 * * *", s.runStatsSnapshot); err != nil {
		logger.Errorf("[Scheduler] Failed to register stats snapshot: %v", err)
	}

	s.cron.Start()
	logger.Infof("[Scheduler] Started (sweep every %dm, instance %s)", interval, s.instanceID)
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

func (s *Scheduler) runSweep() {
	window := time.Now().UTC().Truncate(time.Duration(s.cfg.Aggregation.SweepInterval) * time.Minute)
	if !s.acquireLock("reward_sweep", window.Format(time.RFC3339), sweepTimeout) {
		logger.Debug().Msg("sweep lock held by another instance, skipping")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	start := time.Now()
	if err := s.reward.Sweep(ctx); err != nil {
		logger.Errorf("[Scheduler] Sweep failed: %v", err)
		LogError("Scheduler", "SweepFailed", err.Error(), "", nil)
		return
	}
	logger.Infof("[Scheduler] Sweep finished in %v", time.Since(start).Round(time.Millisecond))
}

func (s *Scheduler) runLogCleanup() {
	if !s.acquireLock("log_cleanup", time.Now().UTC().Format("2006-01-02"), time.Hour) {
		return
	}
	if _, err := s.syslog.Cleanup(s.cfg.Log.RetentionDays); err != nil {
		logger.Errorf("[Scheduler] Log cleanup failed: %v", err)
	}
}

func (s *Scheduler) runStatsSnapshot() {
	if !s.acquireLock("stats_snapshot", time.Now().UTC().Format("2006-01-02"), time.Hour) {
		return
	}
	snapshot, err := s.stats.Collect(context.Background())
	if err != nil {
		logger.Errorf("[Scheduler] Stats snapshot failed: %v", err)
		return
	}
	LogInfo("Scheduler", "DailyStats", "pipeline snapshot", "", snapshot)
}

// acquireLock claims a (name, key) lock via the unique constraint: exactly
// one instance wins the insert. Expired rows are cleared first so crashed
// holders do not wedge the schedule.
func (s *Scheduler) acquireLock(name, key string, ttl time.Duration) bool {
	now := time.Now()
	s.db.Where("expires_at < ?", now).Delete(&models.SchedulerLock{})

	lock := &models.SchedulerLock{
		LockName:  name,
		LockKey:   key,
		LockedBy:  s.instanceID,
		LockedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	err := s.db.Create(lock).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false
		}
		logger.Errorf("[Scheduler] Lock acquisition error for %s: %v", name, err)
		return false
	}
	return true
}
