package listings

import (
	"sort"

	"github.com/PabloReca/busca-pisos/internal/models"
)

const (
	SortByPrice    = "price"
	SortByDistance = "distance"
	SortByDate     = "date"

	// Listings without a distance sort as if this far away.
	unknownDistance = 999.0
)

// Query holds the listing filters, sort and page parameters. Unset filters
// are nil.
type Query struct {
	PropertyType string   `form:"property_type"`
	MinPrice     *float64 `form:"min_price"`
	MaxPrice     *float64 `form:"max_price"`
	MinRooms     *int     `form:"min_rooms"`
	MaxRooms     *int     `form:"max_rooms"`
	MinBathrooms *int     `form:"min_bathrooms"`
	MaxBathrooms *int     `form:"max_bathrooms"`
	MaxDistance  *float64 `form:"max_distance"`

	SortBy    string `form:"sort_by,default=price"`
	SortOrder string `form:"sort_order,default=asc"`

	Page     int `form:"page,default=1" binding:"min=1"`
	PageSize int `form:"page_size,default=20" binding:"min=1,max=100"`
}

// Page is one page of filtered and sorted listings.
type Page struct {
	Total    int    `json:"total"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Pages    int    `json:"pages"`
	Listings []View `json:"listings"`
}

// Filter keeps the views matching q. Unknown price, rooms and bathrooms
// compare as 0; max_distance drops views without a distance.
func Filter(views []View, q Query) []View {
	out := make([]View, 0, len(views))
	for i := range views {
		if matches(&views[i], q) {
			out = append(out, views[i])
		}
	}
	return out
}

func matches(v *View, q Query) bool {
	if q.PropertyType != "" && v.PropertyType != models.Category(q.PropertyType) {
		return false
	}
	if q.MinPrice != nil && v.priceOrZero() < *q.MinPrice {
		return false
	}
	if q.MaxPrice != nil && v.priceOrZero() > *q.MaxPrice {
		return false
	}
	if q.MinRooms != nil && v.roomsOrZero() < *q.MinRooms {
		return false
	}
	if q.MaxRooms != nil && v.roomsOrZero() > *q.MaxRooms {
		return false
	}
	if q.MinBathrooms != nil && v.bathroomsOrZero() < *q.MinBathrooms {
		return false
	}
	if q.MaxBathrooms != nil && v.bathroomsOrZero() > *q.MaxBathrooms {
		return false
	}
	if q.MaxDistance != nil && (v.DistanceKm == nil || *v.DistanceKm > *q.MaxDistance) {
		return false
	}
	return true
}

// Sort orders views in place. The sort is stable and an unknown sort key
// leaves the order untouched.
func Sort(views []View, sortBy, sortOrder string) {
	var less func(a, b *View) bool
	switch sortBy {
	case SortByPrice:
		less = func(a, b *View) bool { return a.priceOrZero() < b.priceOrZero() }
	case SortByDistance:
		less = func(a, b *View) bool { return distanceKey(a) < distanceKey(b) }
	case SortByDate:
		less = func(a, b *View) bool { return dateKey(a) < dateKey(b) }
	default:
		return
	}

	desc := sortOrder == "desc"
	sort.SliceStable(views, func(i, j int) bool {
		if desc {
			return less(&views[j], &views[i])
		}
		return less(&views[i], &views[j])
	})
}

func distanceKey(v *View) float64 {
	if v.DistanceKm == nil {
		return unknownDistance
	}
	return *v.DistanceKm
}

func dateKey(v *View) string {
	if v.ModifiedAt == nil {
		return ""
	}
	return *v.ModifiedAt
}

// Paginate returns page (1-based) of views with pageSize entries.
func Paginate(views []View, page, pageSize int) Page {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}

	total := len(views)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return Page{
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Pages:    (total + pageSize - 1) / pageSize,
		Listings: views[start:end],
	}
}

// Run filters, sorts and paginates views according to q.
func Run(views []View, q Query) Page {
	filtered := Filter(views, q)
	Sort(filtered, q.SortBy, q.SortOrder)
	return Paginate(filtered, q.Page, q.PageSize)
}
