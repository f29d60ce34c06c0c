// Package listings shapes stored listings for the HTTP API: the nested view,
// query filters, sorting, pagination and summary statistics.
package listings

import (
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/PabloReca/busca-pisos/internal/models"
)

type Location struct {
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	PostalCode  *string  `json:"postal_code"`
	City        *string  `json:"city"`
	Region      *string  `json:"region"`
	CountryCode *string  `json:"country_code"`
}

type TypeAttributes struct {
	Operation *string  `json:"operation"`
	Surface   *float64 `json:"surface"`
	Rooms     *int     `json:"rooms"`
	Bathrooms *int     `json:"bathrooms"`
}

// View is a stored listing as served by the API.
type View struct {
	WebSlug        string          `json:"web_slug"`
	PropertyType   models.Category `json:"property_type"`
	Title          *string         `json:"title"`
	Description    *string         `json:"description"`
	Price          *float64        `json:"price"`
	Images         []string        `json:"images"`
	Reserved       bool            `json:"reserved"`
	Location       Location        `json:"location"`
	TypeAttributes TypeAttributes  `json:"type_attributes"`
	CreatedAt      *string         `json:"created_at"`
	ModifiedAt     *string         `json:"modified_at"`
	DistanceKm     *float64        `json:"distance_km"`
}

// NewView builds the API view of l, measuring its distance from base.
// base is an orb point, so longitude comes first.
func NewView(l models.Listing, base orb.Point) View {
	images := l.Images
	if images == nil {
		images = []string{}
	}

	return View{
		WebSlug:      l.WebSlug,
		PropertyType: l.PropertyType,
		Title:        l.Title,
		Description:  l.Description,
		Price:        l.Price,
		Images:       images,
		Reserved:     l.Reserved,
		Location: Location{
			Latitude:    l.Latitude,
			Longitude:   l.Longitude,
			PostalCode:  l.PostalCode,
			City:        l.City,
			Region:      l.Region,
			CountryCode: l.CountryCode,
		},
		TypeAttributes: TypeAttributes{
			Operation: l.Operation,
			Surface:   l.Surface,
			Rooms:     l.Rooms,
			Bathrooms: l.Bathrooms,
		},
		CreatedAt:  isoTime(l.ListedAt),
		ModifiedAt: isoTime(l.ModifiedAt),
		DistanceKm: DistanceKm(base, l.Latitude, l.Longitude),
	}
}

// NewViews converts a slice of listings.
func NewViews(ls []models.Listing, base orb.Point) []View {
	views := make([]View, len(ls))
	for i, l := range ls {
		views[i] = NewView(l, base)
	}
	return views
}

// DistanceKm is the great-circle distance from base in kilometres, rounded
// to one decimal. Missing or zero coordinates give nil.
func DistanceKm(base orb.Point, latitude, longitude *float64) *float64 {
	if latitude == nil || longitude == nil || *latitude == 0 || *longitude == 0 {
		return nil
	}
	meters := geo.DistanceHaversine(base, orb.Point{*longitude, *latitude})
	km := math.Round(meters/100) / 10
	return &km
}

func isoTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func (v *View) priceOrZero() float64 {
	if v.Price == nil {
		return 0
	}
	return *v.Price
}

func (v *View) roomsOrZero() int {
	if v.TypeAttributes.Rooms == nil {
		return 0
	}
	return *v.TypeAttributes.Rooms
}

func (v *View) bathroomsOrZero() int {
	if v.TypeAttributes.Bathrooms == nil {
		return 0
	}
	return *v.TypeAttributes.Bathrooms
}
