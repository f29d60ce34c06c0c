package processor

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/PabloReca/busca-pisos/internal/models"
	"github.com/PabloReca/busca-pisos/internal/queue"
)

// Sender delivers one new-listing message
type Sender interface {
	NotifyNewListing(ctx context.Context, listing models.Listing) error
}

// NotificationProcessor drains the notification queue and hands each listing
// to the sender, retrying failed sends
type NotificationProcessor struct {
	sender     Sender
	queue      *queue.NotificationQueue
	logger     *logrus.Logger
	maxRetries int
	retryDelay time.Duration
	startOnce  sync.Once
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewNotificationProcessor creates a processor reading from q
func NewNotificationProcessor(sender Sender, q *queue.NotificationQueue, maxRetries int, retryDelay time.Duration, logger *logrus.Logger) *NotificationProcessor {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &NotificationProcessor{
		sender:     sender,
		queue:      q,
		logger:     logger,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start subscribes to the queue and begins consuming it
func (p *NotificationProcessor) Start() {
	p.startOnce.Do(func() {
		p.queue.Subscribe(func(listing models.Listing) error {
			return p.send(listing)
		})
		p.queue.Start()
	})
}

// Stop aborts pending retries and shuts the queue down
func (p *NotificationProcessor) Stop() {
	p.cancel()
	p.queue.Close()
}

// Notify queues listing for delivery. It reports false when the listing
// could not be queued.
func (p *NotificationProcessor) Notify(ctx context.Context, listing models.Listing) bool {
	if err := p.queue.Push(listing); err != nil {
		p.logger.WithError(err).WithField("web_slug", listing.WebSlug).Warn("Notification not queued")
		return false
	}
	p.logger.WithFields(logrus.Fields{
		"web_slug": listing.WebSlug,
		"pending":  p.queue.Len(),
	}).Debug("Notification queued")
	return true
}

// send delivers one listing with retry logic
func (p *NotificationProcessor) send(listing models.Listing) error {
	log := p.logger.WithField("web_slug", listing.WebSlug)

	var err error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			log.Infof("Retrying notification, attempt %d of %d", attempt, p.maxRetries)
			select {
			case <-p.ctx.Done():
				return fmt.Errorf("notification cancelled: %w", p.ctx.Err())
			case <-time.After(p.retryDelay):
			}
		}

		err = p.sender.NotifyNewListing(p.ctx, listing)
		if err == nil {
			log.Info("Notification sent")
			return nil
		}

		log.WithError(err).Warn("Notification failed")
	}

	return fmt.Errorf("failed to send notification after %d attempts: %w", p.maxRetries+1, err)
}
