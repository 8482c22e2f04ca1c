package reconcile

import (
	"context"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/emrgen/rard/internal/event"
	"github.com/emrgen/rard/internal/model"
	"github.com/emrgen/rard/internal/ordering"
	"github.com/emrgen/rard/internal/store"
	"github.com/sirupsen/logrus"
)

// ReindexEvidenceLinks prunes the links of an antiquarian that point at works it no longer
// holds, renumbers the remaining links of every kind and then renumbers the unattributed
// links, which may have gained orphans.
func (e *Engine) ReindexEvidenceLinks(ctx context.Context, tx store.Store, antiquarianID uint) (int, error) {
	writes, err := e.reindexEvidence(ctx, tx, antiquarianID)
	if err != nil {
		return writes, err
	}

	n, err := e.ReindexNullLinks(ctx, tx)
	return writes + n, err
}

// reindexEvidence is ReindexEvidenceLinks without the final pass over unattributed links,
// so a dispatch touching many antiquarians runs that pass once.
//
// A stale link is deleted when other antiquarians still hold its work (they keep their own
// copies) or when it is an exclusive appositum; otherwise it is orphaned by clearing its
// antiquarian and the certainty about it.
func (e *Engine) reindexEvidence(ctx context.Context, tx store.Store, antiquarianID uint) (int, error) {
	slots, err := e.workSlots(ctx, tx, antiquarianID)
	if err != nil {
		return 0, wrap("reindex evidence links", err)
	}

	holders := make(map[uint]int)
	writes := 0
	for _, kind := range model.AllKinds {
		links, err := tx.ListLinks(ctx, kind, store.LinkFilter{AntiquarianID: &antiquarianID})
		if err != nil {
			return writes, wrap("reindex evidence links", err)
		}

		kept := make([]*model.Link, 0, len(links))
		removed := newScopes()
		for _, link := range links {
			if link.WorkID == nil {
				kept = append(kept, link)
				continue
			}
			if _, ok := slots[*link.WorkID]; ok {
				kept = append(kept, link)
				continue
			}

			count, err := e.holderCount(ctx, tx, *link.WorkID, holders)
			if err != nil {
				return writes, wrap("reindex evidence links", err)
			}
			if count > 0 || (kind == model.KindAppositum && link.Exclusive) {
				if err := tx.DeleteLink(ctx, kind, link.ID); err != nil {
					return writes, wrap("reindex evidence links", err)
				}
				logrus.Debugf("pruned %s link %d of antiquarian %d", kind, link.ID, antiquarianID)
				removed.add(link)
				writes++
				continue
			}

			if err := tx.UpdateLinkFields(ctx, kind, link.ID, map[string]any{"antiquarian_id": nil, "definite_antiquarian": false}); err != nil {
				return writes, wrap("reindex evidence links", err)
			}
			logrus.Debugf("orphaned %s link %d of antiquarian %d", kind, link.ID, antiquarianID)
			writes++
		}

		n, err := e.repair(ctx, tx, kind, removed)
		writes += n
		if err != nil {
			return writes, err
		}

		n, err = e.renumberLinks(ctx, tx, kind, kept, linkKey(slots))
		writes += n
		if err != nil {
			return writes, wrap("reindex evidence links", err)
		}
	}

	return writes, nil
}

func (e *Engine) holderCount(ctx context.Context, tx store.Store, workID uint, cache map[uint]int) (int, error) {
	if n, ok := cache[workID]; ok {
		return n, nil
	}
	links, err := tx.ListWorkLinksByWorks(ctx, []uint{workID})
	if err != nil {
		return 0, err
	}
	cache[workID] = len(links)
	return len(links), nil
}

// ReindexNullLinks renumbers, per kind, the links with no antiquarian. A work ranks by the
// lowest association order it has among its holders; works nobody holds rank last. A link
// without an antiquarian cannot be definite about one, so that flag is cleared.
func (e *Engine) ReindexNullLinks(ctx context.Context, tx store.Store) (int, error) {
	writes := 0
	for _, kind := range model.AllKinds {
		links, err := tx.ListLinks(ctx, kind, store.LinkFilter{NullAntiquarian: true})
		if err != nil {
			return writes, wrap("reindex null links", err)
		}
		if len(links) == 0 {
			continue
		}

		for _, l := range links {
			if !l.DefiniteAntiquarian {
				continue
			}
			if err := tx.UpdateLinkFields(ctx, kind, l.ID, map[string]any{"definite_antiquarian": false}); err != nil {
				return writes, wrap("reindex null links", err)
			}
			l.DefiniteAntiquarian = false
			writes++
		}

		slots, err := e.nullSlots(ctx, tx, links)
		if err != nil {
			return writes, wrap("reindex null links", err)
		}

		n, err := e.renumberLinks(ctx, tx, kind, links, linkKey(slots))
		writes += n
		if err != nil {
			return writes, wrap("reindex null links", err)
		}
	}

	return writes, nil
}

func (e *Engine) nullSlots(ctx context.Context, tx store.Store, links []*model.Link) (map[uint]workSlot, error) {
	ids := mapset.NewThreadUnsafeSet[uint]()
	for _, l := range links {
		if l.WorkID != nil {
			ids.Add(*l.WorkID)
		}
	}
	slots := make(map[uint]workSlot, ids.Cardinality())
	if ids.Cardinality() == 0 {
		return slots, nil
	}

	workIDs := sortedIDs(ids)
	works, err := tx.ListWorksByIDs(ctx, workIDs)
	if err != nil {
		return nil, err
	}
	for _, w := range works {
		slots[w.ID] = workSlot{rank: ordering.Unranked, unknown: w.Unknown}
	}

	holders, err := tx.ListWorkLinksByWorks(ctx, workIDs)
	if err != nil {
		return nil, err
	}
	for _, wl := range holders {
		slot, ok := slots[wl.WorkID]
		if !ok || slot.unknown {
			continue
		}
		if wl.Order < slot.rank {
			slot.rank = wl.Order
			slots[wl.WorkID] = slot
		}
	}

	return slots, nil
}

// ReindexWorkOrder renumbers the WorkOrder of the links of one work, keeping their
// relative order.
func (e *Engine) ReindexWorkOrder(ctx context.Context, tx store.Store, kind model.EvidenceKind, workID uint) (int, error) {
	links, err := tx.ListLinks(ctx, kind, store.LinkFilter{WorkID: &workID})
	if err != nil {
		return 0, wrap("reindex work order", err)
	}
	sortByWorkOrder(links)

	n, err := e.writeWorkOrder(ctx, tx, kind, links)
	return n, wrap("reindex work order", err)
}

// ReindexBookOrder renumbers the OrderInBook of the links of one book.
func (e *Engine) ReindexBookOrder(ctx context.Context, tx store.Store, kind model.EvidenceKind, bookID uint) (int, error) {
	links, err := tx.ListLinks(ctx, kind, store.LinkFilter{BookID: &bookID})
	if err != nil {
		return 0, wrap("reindex book order", err)
	}
	sortByBookOrder(links)

	n, err := e.writeBookOrder(ctx, tx, kind, links)
	return n, wrap("reindex book order", err)
}

// RegroupWorkByBooks rewrites the WorkOrder of the links of one work so that they follow
// the order of their books, links without a book last.
func (e *Engine) RegroupWorkByBooks(ctx context.Context, tx store.Store, kind model.EvidenceKind, workID uint) (int, error) {
	books, err := tx.ListBooks(ctx, workID)
	if err != nil {
		return 0, wrap("regroup work by books", err)
	}
	rank := make(map[uint]int, len(books))
	for _, b := range books {
		rank[b.ID] = b.Order
	}

	links, err := tx.ListLinks(ctx, kind, store.LinkFilter{WorkID: &workID})
	if err != nil {
		return 0, wrap("regroup work by books", err)
	}
	slices.SortStableFunc(links, func(a, b *model.Link) int {
		return ordering.CompareBookGroups(bookGroupKey(a, rank), bookGroupKey(b, rank))
	})

	n, err := e.writeWorkOrder(ctx, tx, kind, links)
	return n, wrap("regroup work by books", err)
}

func bookGroupKey(l *model.Link, rank map[uint]int) ordering.BookGroupKey {
	key := ordering.BookGroupKey{
		ID:          l.ID,
		BookRank:    ordering.Unranked,
		OrderInBook: l.OrderInBook,
		WorkOrder:   l.WorkOrder,
	}
	if l.BookID != nil {
		if r, ok := rank[*l.BookID]; ok {
			key.BookRank = r
		}
	}
	return key
}

// PlaceLink positions a link that is about to join an antiquarian, a work and a book after
// every link already there. It must run before the link is saved with its new scopes.
func (e *Engine) PlaceLink(ctx context.Context, tx store.Store, kind model.EvidenceKind, link *model.Link, antiquarian, work, book bool) error {
	if antiquarian {
		next, err := e.nextPosition(ctx, tx, kind, store.AntiquarianScope(link.AntiquarianID), link.ID, func(l *model.Link) *int {
			return &l.Order
		})
		if err != nil {
			return wrap("place link", err)
		}
		link.Order = next
	}

	if work && link.WorkID != nil {
		next, err := e.nextPosition(ctx, tx, kind, store.LinkFilter{WorkID: link.WorkID}, link.ID, func(l *model.Link) *int {
			return &l.WorkOrder
		})
		if err != nil {
			return wrap("place link", err)
		}
		link.WorkOrder = next
	}

	if book {
		if link.BookID == nil {
			link.OrderInBook = nil
			return nil
		}
		next, err := e.nextPosition(ctx, tx, kind, store.LinkFilter{BookID: link.BookID}, link.ID, func(l *model.Link) *int {
			return l.OrderInBook
		})
		if err != nil {
			return wrap("place link", err)
		}
		link.OrderInBook = model.Ptr(next)
	}

	return nil
}

// nextPosition returns one past the highest position in the scope, ignoring the link itself.
func (e *Engine) nextPosition(ctx context.Context, tx store.Store, kind model.EvidenceKind, filter store.LinkFilter, self uint, pos func(*model.Link) *int) (int, error) {
	links, err := tx.ListLinks(ctx, kind, filter)
	if err != nil {
		return 0, err
	}

	next := 0
	for _, l := range links {
		if self != 0 && l.ID == self {
			continue
		}
		if p := pos(l); p != nil && *p >= next {
			next = *p + 1
		}
	}
	return next, nil
}

// MoveLink moves a link to the given position inside its work or its book.
func (e *Engine) MoveLink(ctx context.Context, tx store.Store, kind model.EvidenceKind, linkID uint, scope event.MoveScope, position int) (int, error) {
	link, err := tx.GetLink(ctx, kind, linkID)
	if err != nil {
		return 0, wrap("move link", err)
	}

	switch scope {
	case event.ScopeBook:
		if link.BookID == nil {
			return 0, wrap("move link", ErrNotInScope)
		}
		links, err := tx.ListLinks(ctx, kind, store.LinkFilter{BookID: link.BookID})
		if err != nil {
			return 0, wrap("move link", err)
		}
		sortByBookOrder(links)
		links = move(links, indexOf(links, linkID), position)
		n, err := e.writeBookOrder(ctx, tx, kind, links)
		return n, wrap("move link", err)
	default:
		if link.WorkID == nil {
			return 0, wrap("move link", ErrNotInScope)
		}
		links, err := tx.ListLinks(ctx, kind, store.LinkFilter{WorkID: link.WorkID})
		if err != nil {
			return 0, wrap("move link", err)
		}
		sortByWorkOrder(links)
		links = move(links, indexOf(links, linkID), position)
		n, err := e.writeWorkOrder(ctx, tx, kind, links)
		return n, wrap("move link", err)
	}
}

// ClearStrayBookOrders drops the OrderInBook of links of a work that have no book.
func (e *Engine) ClearStrayBookOrders(ctx context.Context, tx store.Store, kind model.EvidenceKind, workID uint) (int, error) {
	links, err := tx.ListLinks(ctx, kind, store.LinkFilter{WorkID: &workID})
	if err != nil {
		return 0, wrap("clear book orders", err)
	}

	writes := 0
	for _, l := range links {
		if l.BookID != nil || l.OrderInBook == nil {
			continue
		}
		if err := tx.UpdateLinkFields(ctx, kind, l.ID, map[string]any{"order_in_book": nil}); err != nil {
			return writes, wrap("clear book orders", err)
		}
		writes++
	}
	return writes, nil
}

func (e *Engine) writeWorkOrder(ctx context.Context, tx store.Store, kind model.EvidenceKind, links []*model.Link) (int, error) {
	writes := 0
	for i, link := range links {
		if link.WorkOrder == i {
			continue
		}
		if err := tx.UpdateLinkFields(ctx, kind, link.ID, map[string]any{"work_order": i}); err != nil {
			return writes, err
		}
		link.WorkOrder = i
		writes++
	}
	return writes, nil
}

func (e *Engine) writeBookOrder(ctx context.Context, tx store.Store, kind model.EvidenceKind, links []*model.Link) (int, error) {
	writes := 0
	for i, link := range links {
		if link.OrderInBook != nil && *link.OrderInBook == i {
			continue
		}
		if err := tx.UpdateLinkFields(ctx, kind, link.ID, map[string]any{"order_in_book": i}); err != nil {
			return writes, err
		}
		link.OrderInBook = model.Ptr(i)
		writes++
	}
	return writes, nil
}

func sortByWorkOrder(links []*model.Link) {
	slices.SortStableFunc(links, func(a, b *model.Link) int {
		return ordering.ComparePositions(
			ordering.PositionKey{ID: a.ID, Position: &a.WorkOrder},
			ordering.PositionKey{ID: b.ID, Position: &b.WorkOrder},
		)
	})
}

func sortByBookOrder(links []*model.Link) {
	slices.SortStableFunc(links, func(a, b *model.Link) int {
		return ordering.ComparePositions(
			ordering.PositionKey{ID: a.ID, Position: a.OrderInBook},
			ordering.PositionKey{ID: b.ID, Position: b.OrderInBook},
		)
	})
}

func indexOf(links []*model.Link, id uint) int {
	return slices.IndexFunc(links, func(l *model.Link) bool { return l.ID == id })
}

// scopes collects the works and books whose positions need repair.
type scopes struct {
	works mapset.Set[uint]
	books mapset.Set[uint]
}

func newScopes() scopes {
	return scopes{
		works: mapset.NewThreadUnsafeSet[uint](),
		books: mapset.NewThreadUnsafeSet[uint](),
	}
}

func (s scopes) add(l *model.Link) {
	if l.WorkID != nil {
		s.works.Add(*l.WorkID)
	}
	if l.BookID != nil {
		s.books.Add(*l.BookID)
	}
}

// repair renumbers every collected work and book of one kind.
func (e *Engine) repair(ctx context.Context, tx store.Store, kind model.EvidenceKind, s scopes) (int, error) {
	writes := 0
	for _, id := range sortedIDs(s.works) {
		n, err := e.ReindexWorkOrder(ctx, tx, kind, id)
		writes += n
		if err != nil {
			return writes, err
		}
	}
	for _, id := range sortedIDs(s.books) {
		n, err := e.ReindexBookOrder(ctx, tx, kind, id)
		writes += n
		if err != nil {
			return writes, err
		}
	}
	return writes, nil
}

func sortedIDs(s mapset.Set[uint]) []uint {
	ids := s.ToSlice()
	slices.Sort(ids)
	return ids
}
