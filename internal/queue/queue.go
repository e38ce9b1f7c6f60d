package queue

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"estatechain/server/internal/models"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

// Handler consumes one property event.
type Handler func(models.PropertyEvent) error

// EventQueue is a bounded in-memory fan-out of confirmed property transitions.
type EventQueue struct {
	items    chan models.PropertyEvent
	done     chan struct{}
	stopped  chan struct{}
	maxSize  int
	closed   bool
	started  bool
	mu       sync.RWMutex
	logger   *logrus.Logger
	handlers []Handler
}

// NewEventQueue creates a new event queue with the specified buffer size
func NewEventQueue(bufferSize int, logger *logrus.Logger) *EventQueue {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &EventQueue{
		items:    make(chan models.PropertyEvent, bufferSize),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		maxSize:  bufferSize,
		logger:   logger,
		handlers: make([]Handler, 0),
	}
}

// Push adds an event to the queue without blocking
func (q *EventQueue) Push(event models.PropertyEvent) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.items <- event:
		q.logger.WithFields(logrus.Fields{
			"property_id": event.PropertyID,
			"stage":       event.Stage.String(),
		}).Debug("Pushed event to queue")
		return nil
	default:
		return ErrQueueFull
	}
}

// Subscribe adds a handler that will be called for each event
func (q *EventQueue) Subscribe(handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, handler)
}

// Start begins processing events in the queue
func (q *EventQueue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true
	go q.process()
}

func (q *EventQueue) process() {
	defer close(q.stopped)
	for {
		select {
		case <-q.done:
			q.drain()
			return
		case event := <-q.items:
			q.dispatch(event)
		}
	}
}

// drain delivers events that were accepted before Close.
func (q *EventQueue) drain() {
	for {
		select {
		case event := <-q.items:
			q.dispatch(event)
		default:
			return
		}
	}
}

func (q *EventQueue) dispatch(event models.PropertyEvent) {
	q.mu.RLock()
	handlers := q.handlers
	q.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(event); err != nil {
			q.logger.WithError(err).WithFields(logrus.Fields{
				"property_id": event.PropertyID,
				"stage":       event.Stage.String(),
			}).Error("Handler failed to process event")
		}
	}
}

// Close stops accepting events, delivers the ones already queued and waits
// for the processing loop to exit.
func (q *EventQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	started := q.started
	close(q.done)
	q.mu.Unlock()

	if started {
		<-q.stopped
	}
	return nil
}

// Len returns the current number of events in the queue
func (q *EventQueue) Len() int {
	return len(q.items)
}

// IsClosed returns whether the queue has been closed
func (q *EventQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
