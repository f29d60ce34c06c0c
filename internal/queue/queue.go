package queue

import (
	"errors"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/PabloReca/busca-pisos/internal/models"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

// NotificationQueue is an in-memory queue of listings waiting to be announced
type NotificationQueue struct {
	items    chan models.Listing
	done     chan struct{}
	wg       sync.WaitGroup
	maxSize  int
	closed   bool
	started  bool
	mu       sync.RWMutex
	logger   *logrus.Logger
	handlers []func(models.Listing) error
}

// NewNotificationQueue creates a queue holding at most bufferSize listings
func NewNotificationQueue(bufferSize int, logger *logrus.Logger) *NotificationQueue {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &NotificationQueue{
		items:    make(chan models.Listing, bufferSize),
		done:     make(chan struct{}),
		maxSize:  bufferSize,
		logger:   logger,
		handlers: make([]func(models.Listing) error, 0),
	}
}

// Push adds a listing to the queue without blocking
func (q *NotificationQueue) Push(listing models.Listing) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.items <- listing:
		q.logger.WithField("web_slug", listing.WebSlug).Debug("Queued notification")
		return nil
	default:
		return ErrQueueFull
	}
}

// Subscribe adds a handler called for every queued listing
func (q *NotificationQueue) Subscribe(handler func(models.Listing) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, handler)
}

// Start begins processing items in the queue. Calling it twice is a no-op.
func (q *NotificationQueue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true
	q.wg.Add(1)
	go q.process()
}

func (q *NotificationQueue) process() {
	defer q.wg.Done()
	for {
		select {
		case <-q.done:
			return
		case listing := <-q.items:
			q.dispatch(listing)
		}
	}
}

func (q *NotificationQueue) dispatch(listing models.Listing) {
	q.mu.RLock()
	handlers := q.handlers
	q.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(listing); err != nil {
			q.logger.WithError(err).WithField("web_slug", listing.WebSlug).Error("Handler failed to process listing")
		}
	}
}

// Close stops the queue and waits for the listing being handled, if any.
// Listings still buffered are dropped.
func (q *NotificationQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.done)
	q.mu.Unlock()

	q.wg.Wait()

	if dropped := len(q.items); dropped > 0 {
		q.logger.WithField("dropped", dropped).Warn("Notification queue closed with pending listings")
	}
	return nil
}

// Len returns the current number of listings in the queue
func (q *NotificationQueue) Len() int {
	return len(q.items)
}
