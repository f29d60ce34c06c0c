// Package classifier drops listings that are out of scope before they are
// compared against stored state.
package classifier

import (
	"strings"

	"github.com/PabloReca/busca-pisos/internal/models"
)

type Classifier struct {
	keywords []string
	minPrice float64
}

// Result is the outcome of filtering one batch.
type Result struct {
	Kept              []models.Listing
	FilteredTemporary int
	FilteredPrice     int
}

func New(keywords []string, minPrice float64) *Classifier {
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lowered = append(lowered, k)
		}
	}
	return &Classifier{keywords: lowered, minPrice: minPrice}
}

// IsTemporaryRental reports whether title or description mention any of the
// keywords. A listing that merely names a month is caught too.
func (c *Classifier) IsTemporaryRental(l *models.Listing) bool {
	var title, description string
	if l.Title != nil {
		title = *l.Title
	}
	if l.Description != nil {
		description = *l.Description
	}
	text := strings.ToLower(title + " " + description)

	for _, k := range c.keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// MeetsPriceFloor reports whether the price reaches the configured minimum.
// An unknown price counts as 0.
func (c *Classifier) MeetsPriceFloor(l *models.Listing) bool {
	return l.PriceOrZero() >= c.minPrice
}

func (c *Classifier) InScope(l *models.Listing) bool {
	return !c.IsTemporaryRental(l) && c.MeetsPriceFloor(l)
}

// Filter applies the temporary-rental check first and the price floor to
// what is left, so each dropped listing is counted once.
func (c *Classifier) Filter(listings []models.Listing) Result {
	res := Result{Kept: make([]models.Listing, 0, len(listings))}
	for i := range listings {
		l := &listings[i]
		switch {
		case c.IsTemporaryRental(l):
			res.FilteredTemporary++
		case !c.MeetsPriceFloor(l):
			res.FilteredPrice++
		default:
			res.Kept = append(res.Kept, *l)
		}
	}
	return res
}
