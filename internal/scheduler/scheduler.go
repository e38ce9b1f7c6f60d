package scheduler

import (
	"context"
	"iter"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"estatechain/server/internal/metrics"
	"estatechain/server/internal/models"
)

// JobType represents the trigger of a sync run
type JobType int

const (
	JobTypeStartup JobType = iota
	JobTypeScheduled
	JobTypeManual
)

// String returns the string representation of a JobType
func (j JobType) String() string {
	switch j {
	case JobTypeStartup:
		return "startup"
	case JobTypeScheduled:
		return "scheduled"
	case JobTypeManual:
		return "manual"
	default:
		return "unknown"
	}
}

// Source reads tokenized properties from the registry.
type Source interface {
	ListProperties(ctx context.Context) (iter.Seq[uint64], uint64, error)
	GetPropertyDetails(ctx context.Context, propertyID uint64) (*models.Property, error)
}

// SnapshotStore persists on-chain snapshots into the journal.
type SnapshotStore interface {
	SaveSnapshot(property models.Property) error
}

// SyncResult summarizes one sync run.
type SyncResult struct {
	Total  uint64
	Synced int
	Failed int
}

// Scheduler periodically mirrors registry state into the journal
type Scheduler struct {
	source   Source
	store    SnapshotStore
	metrics  *metrics.Metrics
	logger   *logrus.Logger
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	wg       sync.WaitGroup
	jobMutex sync.Mutex // Ensures sequential job execution
}

// NewScheduler creates a new scheduler
func NewScheduler(source Source, store SnapshotStore, interval time.Duration, m *metrics.Metrics, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
		logger.SetLevel(logrus.InfoLevel)
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		source:   source,
		store:    store,
		metrics:  m,
		logger:   logger,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start runs a sync immediately and then on every interval
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.runScheduler()
}

func (s *Scheduler) runScheduler() {
	defer s.wg.Done()

	s.runJob(s.ctx, JobTypeStartup)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runJob(s.ctx, JobTypeScheduled)
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context, job JobType) (SyncResult, error) {
	logger := s.logger.WithField("job_type", job.String())
	logger.Debug("Starting chain sync")

	result, err := s.RunOnce(ctx)
	if err != nil {
		logger.WithError(err).Error("Chain sync failed")
		return result, err
	}

	logger.WithFields(logrus.Fields{
		"total":  result.Total,
		"synced": result.Synced,
		"failed": result.Failed,
	}).Info("Chain sync completed")
	return result, nil
}

// RunManual runs a sync on request. It waits for a run already in progress.
func (s *Scheduler) RunManual(ctx context.Context) (SyncResult, error) {
	return s.runJob(ctx, JobTypeManual)
}

// RunOnce refreshes every listed property. Failures on individual properties
// are logged and counted; only a failure to list aborts the run.
func (s *Scheduler) RunOnce(ctx context.Context) (SyncResult, error) {
	s.jobMutex.Lock()
	defer s.jobMutex.Unlock()

	ids, total, err := s.source.ListProperties(ctx)
	if err != nil {
		return SyncResult{}, err
	}

	result := SyncResult{Total: total}
	for id := range ids {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		property, err := s.source.GetPropertyDetails(ctx, id)
		if err != nil {
			result.Failed++
			s.logger.WithError(err).WithField("property_id", id).Warn("Failed to read property")
			continue
		}

		if err := s.store.SaveSnapshot(*property); err != nil {
			result.Failed++
			s.logger.WithError(err).WithField("property_id", id).Error("Failed to save snapshot")
			continue
		}

		result.Synced++
		s.metrics.IncrementSynced()
	}

	return result, nil
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	s.stopOnce.Do(s.cancel)
	s.wg.Wait()
}
