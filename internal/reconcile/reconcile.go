// Package reconcile compares one category's freshly fetched listings with
// the fingerprints already stored for that category and works out the
// smallest set of store mutations that brings the store up to date.
//
// Reconcile does no I/O. Callers read the StoredIndex, apply the returned
// mutations in a single transaction and only then act on the changeset.
package reconcile

import (
	"sort"

	"github.com/PabloReca/busca-pisos/internal/models"
)

// Op is the kind of store mutation.
type Op int

const (
	OpUpsert Op = iota
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpUpsert:
		return "upsert"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Mutation is one store write. Listing is set for upserts only.
type Mutation struct {
	Op       Op
	Identity string
	Category models.Category
	Listing  *models.Listing
}

// Changeset classifies the current listings against the stored state.
// New, Updated and Removed never share an identity.
type Changeset struct {
	New     []models.Listing
	Updated []models.Listing
	Removed []string

	Unchanged  int
	Duplicates int
	Skipped    int
}

// Empty reports whether the changeset requires no store writes.
func (c *Changeset) Empty() bool {
	return len(c.New) == 0 && len(c.Updated) == 0 && len(c.Removed) == 0
}

// Reconcile computes the changeset for category and the mutations that apply
// it. Listings of another category, listings without an identity and repeated
// identities (first one wins) never produce mutations.
//
// An updated listing yields a delete followed by an upsert so the stored row
// is fully replaced. Removed identities are emitted in sorted order.
func Reconcile(category models.Category, stored models.StoredIndex, current []models.Listing) (Changeset, []Mutation) {
	var (
		cs   Changeset
		muts []Mutation
	)
	seen := make(map[string]struct{}, len(current))

	for i := range current {
		l := current[i]
		if l.WebSlug == "" || l.PropertyType != category {
			cs.Skipped++
			continue
		}
		if _, dup := seen[l.WebSlug]; dup {
			cs.Duplicates++
			continue
		}
		seen[l.WebSlug] = struct{}{}

		hash, known := stored[l.WebSlug]
		switch {
		case !known:
			cs.New = append(cs.New, l)
			muts = append(muts, upsert(category, l))
		case hash != l.Hash:
			cs.Updated = append(cs.Updated, l)
			muts = append(muts,
				Mutation{Op: OpDelete, Identity: l.WebSlug, Category: category},
				upsert(category, l),
			)
		default:
			cs.Unchanged++
		}
	}

	for id := range stored {
		if _, ok := seen[id]; !ok {
			cs.Removed = append(cs.Removed, id)
		}
	}
	sort.Strings(cs.Removed)
	for _, id := range cs.Removed {
		muts = append(muts, Mutation{Op: OpDelete, Identity: id, Category: category})
	}

	return cs, muts
}

func upsert(category models.Category, l models.Listing) Mutation {
	return Mutation{Op: OpUpsert, Identity: l.WebSlug, Category: category, Listing: &l}
}

// Apply returns the index that results from applying muts to stored. It is
// what the store holds for the category after a successful commit.
func Apply(stored models.StoredIndex, muts []Mutation) models.StoredIndex {
	next := make(models.StoredIndex, len(stored))
	for k, v := range stored {
		next[k] = v
	}
	for _, m := range muts {
		switch m.Op {
		case OpDelete:
			delete(next, m.Identity)
		case OpUpsert:
			next[m.Identity] = m.Listing.Hash
		}
	}
	return next
}
