package cache

import (
	"context"

	"github.com/emrgen/rard/internal/model"
)

// LinkCache caches the ordered link listing of each antiquarian scope. Every committed
// mutation invalidates the whole cache, since a single edit can reorder many scopes.
//
// Listings live under a generation. A reader takes the generation once, before it reads the
// database, and stores what it read under that generation, so a listing loaded before a
// concurrent commit lands under a generation nobody reads anymore.
type LinkCache interface {
	// Generation returns the current generation.
	Generation(ctx context.Context) (int64, error)
	// GetLinks returns the listing of a scope cached under generation; ok is false on a miss.
	GetLinks(ctx context.Context, generation int64, kind model.EvidenceKind, antiquarianID *uint) (links []*model.Link, ok bool, err error)
	// SetLinks stores the listing of a scope under generation.
	SetLinks(ctx context.Context, generation int64, kind model.EvidenceKind, antiquarianID *uint, links []*model.Link) error
	// Invalidate starts a new generation, dropping every cached listing.
	Invalidate(ctx context.Context) error
}

var _ LinkCache = Nop{}

// Nop caches nothing.
type Nop struct{}

func NewNop() Nop {
	return Nop{}
}

func (Nop) Generation(context.Context) (int64, error) {
	return 0, nil
}

func (Nop) GetLinks(context.Context, int64, model.EvidenceKind, *uint) ([]*model.Link, bool, error) {
	return nil, false, nil
}

func (Nop) SetLinks(context.Context, int64, model.EvidenceKind, *uint, []*model.Link) error {
	return nil
}

func (Nop) Invalidate(context.Context) error {
	return nil
}
