package service

import (
	"cmp"
	"context"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/emrgen/rard/internal/model"
	"github.com/emrgen/rard/internal/ordering"
	"github.com/emrgen/rard/internal/store"
	"github.com/sirupsen/logrus"
)

func (s *CatalogueService) GetAntiquarian(ctx context.Context, id uint) (*model.Antiquarian, error) {
	return s.store.GetAntiquarian(ctx, id)
}

func (s *CatalogueService) ListAntiquarians(ctx context.Context) ([]*model.Antiquarian, error) {
	return s.store.ListAntiquarians(ctx)
}

func (s *CatalogueService) GetWork(ctx context.Context, id uint) (*model.Work, error) {
	return s.store.GetWork(ctx, id)
}

func (s *CatalogueService) ListEvidence(ctx context.Context, kind model.EvidenceKind) ([]*model.Evidence, error) {
	if !kind.Valid() {
		return nil, invalid("kind", model.ErrInvalidKind)
	}
	return s.store.ListEvidence(ctx, kind)
}

// ListAntiquarianWorks returns the work associations of an antiquarian in display order,
// the Unknown Work last.
func (s *CatalogueService) ListAntiquarianWorks(ctx context.Context, antiquarianID uint) ([]*model.WorkLink, error) {
	if _, err := s.store.GetAntiquarian(ctx, antiquarianID); err != nil {
		return nil, err
	}
	links, err := s.store.ListWorkLinks(ctx, antiquarianID)
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(links, func(a, b *model.WorkLink) int {
		return ordering.CompareWorkLinks(
			ordering.WorkLinkKey{Order: a.Order, Unknown: a.Unknown()},
			ordering.WorkLinkKey{Order: b.Order, Unknown: b.Unknown()},
		)
	})
	return links, nil
}

// ListBooks returns the books of a work in display order, the Unknown Book last.
func (s *CatalogueService) ListBooks(ctx context.Context, workID uint) ([]*model.Book, error) {
	if _, err := s.store.GetWork(ctx, workID); err != nil {
		return nil, err
	}
	books, err := s.store.ListBooks(ctx, workID)
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(books, func(a, b *model.Book) int {
		return ordering.CompareBooks(
			ordering.BookKey{ID: a.ID, Order: a.Order, Number: a.Number, Unknown: a.Unknown},
			ordering.BookKey{ID: b.ID, Order: b.Order, Number: b.Number, Unknown: b.Unknown},
		)
	})
	return books, nil
}

// ListAntiquarianLinks returns the links of one kind held by an antiquarian, or the
// unattributed links when antiquarianID is nil, by order. Listings are served from the
// link cache when possible.
func (s *CatalogueService) ListAntiquarianLinks(ctx context.Context, kind model.EvidenceKind, antiquarianID *uint) ([]*model.Link, error) {
	if !kind.Valid() {
		return nil, invalid("kind", model.ErrInvalidKind)
	}

	// the generation is taken before the database read, see cache.LinkCache
	generation, err := s.cache.Generation(ctx)
	cached := err == nil
	if err != nil {
		logrus.Warnf("link cache unavailable: %v", err)
	}
	if cached {
		links, ok, err := s.cache.GetLinks(ctx, generation, kind, antiquarianID)
		if err != nil {
			logrus.Warnf("link cache read failed: %v", err)
		}
		if ok {
			return links, nil
		}
	}

	if antiquarianID != nil {
		if _, err := s.store.GetAntiquarian(ctx, *antiquarianID); err != nil {
			return nil, err
		}
	}
	links, err := s.store.ListLinks(ctx, kind, store.AntiquarianScope(antiquarianID))
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(links, func(a, b *model.Link) int {
		return cmp.Or(cmp.Compare(a.Order, b.Order), cmp.Compare(a.ID, b.ID))
	})

	if cached {
		if err := s.cache.SetLinks(ctx, generation, kind, antiquarianID, links); err != nil {
			logrus.Warnf("link cache write failed: %v", err)
		}
	}
	return links, nil
}

// ListWorkLinks returns the links of one kind through a work, by work order.
func (s *CatalogueService) ListWorkLinks(ctx context.Context, kind model.EvidenceKind, workID uint) ([]*model.Link, error) {
	if !kind.Valid() {
		return nil, invalid("kind", model.ErrInvalidKind)
	}
	links, err := s.store.ListLinks(ctx, kind, store.LinkFilter{WorkID: &workID})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(links, func(a, b *model.Link) int {
		return cmp.Or(cmp.Compare(a.WorkOrder, b.WorkOrder), cmp.Compare(a.ID, b.ID))
	})
	return links, nil
}

// ListBookLinks returns the links of one kind in a book, by order in book.
func (s *CatalogueService) ListBookLinks(ctx context.Context, kind model.EvidenceKind, bookID uint) ([]*model.Link, error) {
	if !kind.Valid() {
		return nil, invalid("kind", model.ErrInvalidKind)
	}
	links, err := s.store.ListLinks(ctx, kind, store.LinkFilter{BookID: &bookID})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(links, func(a, b *model.Link) int {
		return ordering.ComparePositions(
			ordering.PositionKey{ID: a.ID, Position: a.OrderInBook},
			ordering.PositionKey{ID: b.ID, Position: b.OrderInBook},
		)
	})
	return links, nil
}

// Targets lists the antiquarians, works and books an evidence item is attributed to.
type Targets struct {
	Antiquarians []uint `json:"antiquarians"`
	Works        []uint `json:"works"`
	Books        []uint `json:"books"`
}

// Attribution splits the attributions of an evidence item by certainty. Unknown Works and
// Unknown Books are placeholders and never reported.
type Attribution struct {
	Ref      model.EvidenceRef `json:"ref"`
	Definite Targets           `json:"definite"`
	Possible Targets           `json:"possible"`
}

type targetSets struct {
	antiquarians, works, books mapset.Set[uint]
}

func newTargetSets() targetSets {
	return targetSets{
		antiquarians: mapset.NewThreadUnsafeSet[uint](),
		works:        mapset.NewThreadUnsafeSet[uint](),
		books:        mapset.NewThreadUnsafeSet[uint](),
	}
}

func (t targetSets) targets() Targets {
	return Targets{
		Antiquarians: sorted(t.antiquarians),
		Works:        sorted(t.works),
		Books:        sorted(t.books),
	}
}

func (s *CatalogueService) Attributions(ctx context.Context, ref model.EvidenceRef) (*Attribution, error) {
	if !ref.Kind.Valid() {
		return nil, invalid("kind", model.ErrInvalidKind)
	}
	if _, err := s.store.GetEvidence(ctx, ref); err != nil {
		return nil, err
	}
	links, err := s.store.ListLinks(ctx, ref.Kind, store.LinkFilter{EvidenceID: &ref.ID})
	if err != nil {
		return nil, err
	}

	placeholders, err := s.placeholders(ctx, links)
	if err != nil {
		return nil, err
	}

	definite, possible := newTargetSets(), newTargetSets()
	pick := func(isDefinite bool) targetSets {
		if isDefinite {
			return definite
		}
		return possible
	}
	for _, l := range links {
		if l.AntiquarianID != nil {
			pick(l.DefiniteAntiquarian).antiquarians.Add(*l.AntiquarianID)
		}
		if l.WorkID != nil && !placeholders.works.Contains(*l.WorkID) {
			pick(l.DefiniteWork).works.Add(*l.WorkID)
		}
		if l.BookID != nil && !placeholders.books.Contains(*l.BookID) {
			pick(l.DefiniteBook).books.Add(*l.BookID)
		}
	}

	// a target both definite and possible through different links counts as definite
	possible.antiquarians = possible.antiquarians.Difference(definite.antiquarians)
	possible.works = possible.works.Difference(definite.works)
	possible.books = possible.books.Difference(definite.books)

	return &Attribution{Ref: ref, Definite: definite.targets(), Possible: possible.targets()}, nil
}

// placeholders collects the Unknown Works and Unknown Books referenced by the links.
func (s *CatalogueService) placeholders(ctx context.Context, links []*model.Link) (targetSets, error) {
	out := newTargetSets()
	workIDs, bookIDs := mapset.NewThreadUnsafeSet[uint](), mapset.NewThreadUnsafeSet[uint]()
	for _, l := range links {
		if l.WorkID != nil {
			workIDs.Add(*l.WorkID)
		}
		if l.BookID != nil {
			bookIDs.Add(*l.BookID)
		}
	}

	if workIDs.Cardinality() > 0 {
		works, err := s.store.ListWorksByIDs(ctx, sorted(workIDs))
		if err != nil {
			return out, err
		}
		for _, w := range works {
			if w.Unknown {
				out.works.Add(w.ID)
			}
		}
	}
	if bookIDs.Cardinality() > 0 {
		books, err := s.store.ListBooksByIDs(ctx, sorted(bookIDs))
		if err != nil {
			return out, err
		}
		for _, b := range books {
			if b.Unknown {
				out.books.Add(b.ID)
			}
		}
	}
	return out, nil
}

func sorted(s mapset.Set[uint]) []uint {
	ids := s.ToSlice()
	slices.Sort(ids)
	return ids
}
