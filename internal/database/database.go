package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/PabloReca/busca-pisos/internal/models"
	"github.com/PabloReca/busca-pisos/internal/reconcile"
)

// ErrCategoryMismatch is returned when a mutation batch touches a category
// other than the one being committed.
var ErrCategoryMismatch = errors.New("mutation category does not match commit category")

type Database struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewDatabase opens the store at url. A postgres:// or postgresql:// URL
// connects to Postgres; anything else is treated as a SQLite path.
func NewDatabase(url string, logger *logrus.Logger) (*Database, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	dialector, driver := dialectorFor(url)
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	if driver == "sqlite" {
		// SQLite allows one writer; an in-memory database only exists on a
		// single connection.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	logger.WithFields(logrus.Fields{
		"driver": driver,
	}).Info("Database opened")

	return &Database{db: db, logger: logger}, nil
}

func dialectorFor(url string) (gorm.Dialector, string) {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return postgres.Open(url), "postgres"
	}
	return sqlite.Open(url), "sqlite"
}

// ListFingerprints returns identity -> fingerprint for one category.
func (d *Database) ListFingerprints(ctx context.Context, category models.Category) (models.StoredIndex, error) {
	var rows []struct {
		WebSlug string
		Hash    string
	}
	err := d.db.WithContext(ctx).
		Model(&models.Listing{}).
		Select("web_slug", "hash").
		Where("property_type = ?", category).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list fingerprints for %s: %w", category, err)
	}

	index := make(models.StoredIndex, len(rows))
	for _, r := range rows {
		index[r.WebSlug] = r.Hash
	}
	return index, nil
}

// ApplyMutations writes all mutations for category in one transaction.
// Either every mutation is applied or none is.
func (d *Database) ApplyMutations(ctx context.Context, category models.Category, muts []reconcile.Mutation) error {
	for _, m := range muts {
		if m.Category != category {
			return fmt.Errorf("%w: %s mutation for %s in %s commit", ErrCategoryMismatch, m.Op, m.Category, category)
		}
		if m.Op == reconcile.OpUpsert && (m.Listing == nil || m.Listing.PropertyType != category) {
			return fmt.Errorf("%w: upsert of %s carries a listing of another category", ErrCategoryMismatch, m.Identity)
		}
	}
	if len(muts) == 0 {
		return nil
	}

	start := time.Now()
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range muts {
			switch m.Op {
			case reconcile.OpDelete:
				if err := tx.Where("web_slug = ? AND property_type = ?", m.Identity, category).
					Delete(&models.Listing{}).Error; err != nil {
					return fmt.Errorf("failed to delete %s: %w", m.Identity, err)
				}
			case reconcile.OpUpsert:
				if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).
					Create(m.Listing).Error; err != nil {
					return fmt.Errorf("failed to upsert %s: %w", m.Identity, err)
				}
			default:
				return fmt.Errorf("unknown mutation op %d for %s", m.Op, m.Identity)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to commit %s changes: %w", category, err)
	}

	d.logger.WithFields(logrus.Fields{
		"property_type": category,
		"mutations":     len(muts),
		"duration":      time.Since(start).String(),
	}).Debug("Mutations committed")
	return nil
}

// Listings returns stored listings, restricted to category unless it is empty.
func (d *Database) Listings(ctx context.Context, category models.Category) ([]models.Listing, error) {
	query := d.db.WithContext(ctx).Order("property_type").Order("web_slug")
	if category != "" {
		query = query.Where("property_type = ?", category)
	}

	var listings []models.Listing
	if err := query.Find(&listings).Error; err != nil {
		return nil, fmt.Errorf("failed to load listings: %w", err)
	}
	return listings, nil
}

func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
