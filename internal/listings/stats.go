package listings

import "github.com/PabloReca/busca-pisos/internal/models"

type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type Stats struct {
	Total      int   `json:"total"`
	Apartments int   `json:"apartments"`
	Houses     int   `json:"houses"`
	Price      Range `json:"price"`
	Rooms      Range `json:"rooms"`
	Bathrooms  Range `json:"bathrooms"`
	Distance   Range `json:"distance"`
}

// rangeOf tracks min and max over known, non-zero values.
type rangeOf struct {
	r    Range
	seen bool
}

func (t *rangeOf) add(v float64) {
	if v == 0 {
		return
	}
	if !t.seen {
		t.r = Range{Min: v, Max: v}
		t.seen = true
		return
	}
	if v < t.r.Min {
		t.r.Min = v
	}
	if v > t.r.Max {
		t.r.Max = v
	}
}

// ComputeStats summarises views. Ranges with no known values are 0..0.
func ComputeStats(views []View) Stats {
	var price, rooms, bathrooms, distance rangeOf
	stats := Stats{Total: len(views)}

	for i := range views {
		v := &views[i]
		switch v.PropertyType {
		case models.CategoryApartment:
			stats.Apartments++
		case models.CategoryHouse:
			stats.Houses++
		}

		price.add(v.priceOrZero())
		rooms.add(float64(v.roomsOrZero()))
		bathrooms.add(float64(v.bathroomsOrZero()))
		if v.DistanceKm != nil {
			distance.add(*v.DistanceKm)
		}
	}

	stats.Price = price.r
	stats.Rooms = rooms.r
	stats.Bathrooms = bathrooms.r
	stats.Distance = distance.r
	return stats
}
