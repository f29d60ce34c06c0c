package database

import (
	"fmt"

	"github.com/PabloReca/busca-pisos/internal/models"
)

func (d *Database) RunMigrations() error {
	if err := d.db.AutoMigrate(&models.Listing{}); err != nil {
		return fmt.Errorf("failed to migrate listings: %w", err)
	}

	// Listing queries filter by type and price
	if err := d.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_listings_type_price
		ON listings(property_type, price);
	`).Error; err != nil {
		return fmt.Errorf("failed to create listings index: %w", err)
	}

	return nil
}
