package models

import "time"

// Category is the property-type partition a listing belongs to.
// Identities are only unique within one category.
type Category string

const (
	CategoryApartment Category = "apartment"
	CategoryHouse     Category = "house"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryApartment, CategoryHouse:
		return true
	default:
		return false
	}
}

// RawItem is one search result exactly as decoded from the source API.
// Numbers are kept as json.Number.
type RawItem map[string]interface{}

// Listing is the canonical stored record.
type Listing struct {
	WebSlug      string   `gorm:"primaryKey;column:web_slug" json:"web_slug"`
	PropertyType Category `gorm:"primaryKey;column:property_type;size:16" json:"property_type"`
	Hash         string   `gorm:"column:hash;size:64;not null" json:"-"`

	Title       *string  `gorm:"column:title" json:"title"`
	Description *string  `gorm:"column:description" json:"description"`
	Price       *float64 `gorm:"column:price" json:"price"`
	Images      []string `gorm:"column:images;serializer:json" json:"images"`
	Reserved    bool     `gorm:"column:reserved;default:false" json:"reserved"`

	Latitude    *float64 `gorm:"column:latitude" json:"latitude"`
	Longitude   *float64 `gorm:"column:longitude" json:"longitude"`
	PostalCode  *string  `gorm:"column:postal_code" json:"postal_code"`
	City        *string  `gorm:"column:city" json:"city"`
	Region      *string  `gorm:"column:region" json:"region"`
	CountryCode *string  `gorm:"column:country_code;size:2" json:"country_code"`

	Operation *string  `gorm:"column:operation" json:"operation"`
	Surface   *float64 `gorm:"column:surface" json:"surface"`
	Rooms     *int     `gorm:"column:rooms" json:"rooms"`
	Bathrooms *int     `gorm:"column:bathrooms" json:"bathrooms"`

	// Source timestamps. Named apart from CreatedAt/UpdatedAt so gorm never
	// fills them with the insert time.
	ListedAt   *time.Time `gorm:"column:created_at" json:"created_at"`
	ModifiedAt *time.Time `gorm:"column:modified_at" json:"modified_at"`
}

func (Listing) TableName() string {
	return "listings"
}

// PriceOrZero returns the price, treating an unknown price as 0.
func (l *Listing) PriceOrZero() float64 {
	if l.Price == nil {
		return 0
	}
	return *l.Price
}

// StoredIndex maps identity to fingerprint for one category.
type StoredIndex map[string]string
