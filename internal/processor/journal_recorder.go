package processor

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"estatechain/server/config"
	"estatechain/server/internal/database"
	"estatechain/server/internal/metrics"
	"estatechain/server/internal/models"
	"estatechain/server/internal/queue"
)

// Transactor runs fc inside a database transaction. *gorm.DB satisfies it.
type Transactor interface {
	Transaction(fc func(*gorm.DB) error, opts ...*sql.TxOptions) error
}

// JournalRecorder persists property events from the queue
type JournalRecorder struct {
	db         Transactor
	logger     *logrus.Logger
	queue      *queue.EventQueue
	metrics    *metrics.Metrics
	maxRetries int
	retryDelay time.Duration
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewJournalRecorder creates a new journal recorder instance
func NewJournalRecorder(db Transactor, queue *queue.EventQueue, cfg *config.Config, m *metrics.Metrics, logger *logrus.Logger) *JournalRecorder {
	ctx, cancel := context.WithCancel(context.Background())
	return &JournalRecorder{
		db:         db,
		queue:      queue,
		metrics:    m,
		logger:     logger,
		maxRetries: cfg.Journal.MaxRetries,
		retryDelay: cfg.Journal.RetryDelay,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start subscribes the recorder to the queue
func (p *JournalRecorder) Start() {
	p.queue.Subscribe(p.processEvent)
}

// Stop aborts any pending retry
func (p *JournalRecorder) Stop() {
	p.cancel()
}

// processEvent writes one event inside a transaction, retrying on failure
func (p *JournalRecorder) processEvent(event models.PropertyEvent) error {
	logger := p.logger.WithFields(logrus.Fields{
		"property_id": event.PropertyID,
		"stage":       event.Stage.String(),
		"event_id":    event.ID.String(),
	})

	var err error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			logger.Infof("Retrying journal write, attempt %d of %d", attempt, p.maxRetries)
			select {
			case <-p.ctx.Done():
				return fmt.Errorf("journal write for property %d abandoned: %w", event.PropertyID, p.ctx.Err())
			case <-time.After(p.retryDelay):
			}
		}

		err = p.db.Transaction(func(tx *gorm.DB) error {
			if err := database.RecordEvent(tx, event); err != nil {
				return fmt.Errorf("failed to record event: %w", err)
			}
			return nil
		})
		p.metrics.ObserveJournalWrite(err)

		if err == nil {
			logger.Debug("Recorded property event")
			return nil
		}

		logger.WithError(err).Error("Journal write failed")
	}

	return fmt.Errorf("failed to record event after %d attempts: %w", p.maxRetries+1, err)
}
