// Package refresh runs the fetch, classify, reconcile and commit pipeline for
// each configured category and reports what changed.
package refresh

import (
	"context"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/PabloReca/busca-pisos/config"
	"github.com/PabloReca/busca-pisos/internal/classifier"
	"github.com/PabloReca/busca-pisos/internal/models"
	"github.com/PabloReca/busca-pisos/internal/normalizer"
	"github.com/PabloReca/busca-pisos/internal/reconcile"
)

// Fetcher retrieves every page of one search.
type Fetcher interface {
	FetchAll(ctx context.Context, params url.Values, maxPages int) ([]models.RawItem, int)
}

// Store reads and writes one category's stored listings.
type Store interface {
	ListFingerprints(ctx context.Context, category models.Category) (models.StoredIndex, error)
	ApplyMutations(ctx context.Context, category models.Category, muts []reconcile.Mutation) error
}

// Notifier announces a new listing. It never fails the caller.
type Notifier interface {
	Notify(ctx context.Context, listing models.Listing) bool
}

type Options struct {
	Categories           []models.Category
	MaxPages             int
	NotificationMaxPrice float64
	Parallel             bool
}

type Service struct {
	fetcher    Fetcher
	store      Store
	notifier   Notifier
	classifier *classifier.Classifier
	profile    config.SearchProfile
	opts       Options
	logger     *logrus.Logger

	mu    sync.Mutex
	locks map[models.Category]*sync.Mutex
}

func NewService(fetcher Fetcher, store Store, notifier Notifier, cls *classifier.Classifier, profile config.SearchProfile, opts Options, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &Service{
		fetcher:    fetcher,
		store:      store,
		notifier:   notifier,
		classifier: cls,
		profile:    profile,
		opts:       opts,
		logger:     logger,
		locks:      make(map[models.Category]*sync.Mutex),
	}
}

// RefreshAll runs one cycle per configured category. A failed category is
// reported in its result and does not stop the others.
func (s *Service) RefreshAll(ctx context.Context) models.RefreshSummary {
	summary := models.RefreshSummary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Results:   make([]models.CategoryResult, len(s.opts.Categories)),
	}
	log := s.logger.WithFields(logrus.Fields{"run_id": summary.RunID})
	log.WithFields(logrus.Fields{
		"categories": len(s.opts.Categories),
		"parallel":   s.opts.Parallel,
	}).Info("Starting refresh")

	if s.opts.Parallel {
		var wg sync.WaitGroup
		for i, category := range s.opts.Categories {
			wg.Add(1)
			go func(i int, category models.Category) {
				defer wg.Done()
				summary.Results[i] = s.RefreshCategory(ctx, category)
			}(i, category)
		}
		wg.Wait()
	} else {
		for i, category := range s.opts.Categories {
			summary.Results[i] = s.RefreshCategory(ctx, category)
		}
	}

	summary.Success = true
	for _, r := range summary.Results {
		if r.Failed() {
			summary.Success = false
		}
	}
	summary.DurationSeconds = roundSeconds(time.Since(summary.StartedAt))

	log.WithFields(logrus.Fields{
		"success":  summary.Success,
		"duration": summary.DurationSeconds,
	}).Info("Refresh finished")
	return summary
}

// RefreshCategory runs one cycle for category. Cycles of the same category
// never overlap.
func (s *Service) RefreshCategory(ctx context.Context, category models.Category) models.CategoryResult {
	lock := s.categoryLock(category)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	result := models.CategoryResult{PropertyType: category}
	log := s.logger.WithFields(logrus.Fields{"property_type": category})

	raw, pages := s.fetcher.FetchAll(ctx, s.profile.QueryFor(string(category)), s.opts.MaxPages)
	result.PagesFetched = pages
	result.Fetched = len(raw)

	listings := make([]models.Listing, 0, len(raw))
	for _, item := range raw {
		l, err := normalizer.Normalize(item, category)
		if err != nil {
			log.WithError(err).Warn("Skipping item that could not be normalized")
			result.Skipped++
			continue
		}
		listings = append(listings, l)
	}

	filtered := s.classifier.Filter(listings)
	result.FilteredTemporary = filtered.FilteredTemporary
	result.FilteredPrice = filtered.FilteredPrice
	result.Total = len(filtered.Kept)

	stored, err := s.store.ListFingerprints(ctx, category)
	if err != nil {
		return s.fail(log, result, start, err)
	}

	cs, muts := reconcile.Reconcile(category, stored, filtered.Kept)
	result.Unchanged = cs.Unchanged
	result.Duplicates = cs.Duplicates
	result.Skipped += cs.Skipped

	if cs.Empty() {
		log.Debug("No changes to commit")
	} else if err := s.store.ApplyMutations(ctx, category, muts); err != nil {
		return s.fail(log, result, start, err)
	}

	result.New = len(cs.New)
	result.Updated = len(cs.Updated)
	result.Removed = len(cs.Removed)

	// Only committed listings are announced.
	for _, l := range cs.New {
		if !s.shouldNotify(&l) {
			continue
		}
		if s.notifier.Notify(ctx, l) {
			result.Notified++
		} else {
			result.NotifyFailed++
			log.WithFields(logrus.Fields{"web_slug": l.WebSlug}).Warn("Failed to queue notification")
		}
	}

	result.DurationSeconds = roundSeconds(time.Since(start))
	log.WithFields(logrus.Fields{
		"pages":              result.PagesFetched,
		"fetched":            result.Fetched,
		"total":              result.Total,
		"filtered_temporary": result.FilteredTemporary,
		"filtered_price":     result.FilteredPrice,
		"new":                result.New,
		"updated":            result.Updated,
		"removed":            result.Removed,
		"notified":           result.Notified,
	}).Info("Category refreshed")
	return result
}

func (s *Service) shouldNotify(l *models.Listing) bool {
	price := l.PriceOrZero()
	return price > 0 && price <= s.opts.NotificationMaxPrice
}

func (s *Service) fail(log *logrus.Entry, result models.CategoryResult, start time.Time, err error) models.CategoryResult {
	log.WithError(err).Error("Category refresh failed")
	result.Error = err.Error()
	result.New, result.Updated, result.Removed = 0, 0, 0
	result.DurationSeconds = roundSeconds(time.Since(start))
	return result
}

func (s *Service) categoryLock(category models.Category) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[category]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[category] = lock
	}
	return lock
}

func roundSeconds(d time.Duration) float64 {
	return float64(d.Round(time.Millisecond)) / float64(time.Second)
}
