package reconcile

import (
	"context"
	"slices"

	"github.com/emrgen/rard/internal/model"
	"github.com/emrgen/rard/internal/ordering"
	"github.com/emrgen/rard/internal/store"
	"github.com/sirupsen/logrus"
)

// Engine runs the reconciliation procedures. It holds no state; every procedure works on
// the transaction it is given and returns the number of rows it wrote.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// ReindexWorkLinks renumbers the known works of an antiquarian 0..n-1, keeping their
// relative order. The Unknown Work sorts after them and keeps its own order value.
func (e *Engine) ReindexWorkLinks(ctx context.Context, tx store.Store, antiquarianID uint) (int, error) {
	links, err := tx.ListWorkLinks(ctx, antiquarianID)
	if err != nil {
		return 0, wrap("reindex work links", err)
	}

	slices.SortStableFunc(links, func(a, b *model.WorkLink) int {
		return ordering.CompareWorkLinks(workLinkKey(a), workLinkKey(b))
	})

	writes := 0
	for i, link := range links {
		if link.Unknown() || link.Order == i {
			continue
		}
		if err := tx.UpdateWorkLinkOrder(ctx, link.ID, i); err != nil {
			return writes, wrap("reindex work links", err)
		}
		link.Order = i
		writes++
	}

	return writes, nil
}

// MoveWorkLink moves a known work to the given position among the known works of an
// antiquarian. Positions out of range are clamped.
func (e *Engine) MoveWorkLink(ctx context.Context, tx store.Store, antiquarianID, workID uint, position int) (int, error) {
	links, err := tx.ListWorkLinks(ctx, antiquarianID)
	if err != nil {
		return 0, wrap("move work link", err)
	}

	known := make([]*model.WorkLink, 0, len(links))
	for _, l := range links {
		if l.WorkID == workID && l.Unknown() {
			return 0, wrap("move work link", ErrPlaceholder)
		}
		if !l.Unknown() {
			known = append(known, l)
		}
	}
	slices.SortStableFunc(known, func(a, b *model.WorkLink) int {
		return ordering.CompareWorkLinks(workLinkKey(a), workLinkKey(b))
	})

	from := slices.IndexFunc(known, func(l *model.WorkLink) bool { return l.WorkID == workID })
	if from < 0 {
		return 0, wrap("move work link", ErrNotInScope)
	}
	known = move(known, from, position)

	writes := 0
	for i, link := range known {
		if link.Order == i {
			continue
		}
		if err := tx.UpdateWorkLinkOrder(ctx, link.ID, i); err != nil {
			return writes, wrap("move work link", err)
		}
		writes++
	}

	return writes, nil
}

func workLinkKey(l *model.WorkLink) ordering.WorkLinkKey {
	return ordering.WorkLinkKey{Order: l.Order, Unknown: l.Unknown()}
}

// workSlot is the rank of one work inside an antiquarian scope.
type workSlot struct {
	rank    int
	unknown bool
}

// workSlots maps every work of an antiquarian to its association order.
func (e *Engine) workSlots(ctx context.Context, tx store.Store, antiquarianID uint) (map[uint]workSlot, error) {
	links, err := tx.ListWorkLinks(ctx, antiquarianID)
	if err != nil {
		return nil, err
	}

	slots := make(map[uint]workSlot, len(links))
	for _, wl := range links {
		if wl.Unknown() {
			slots[wl.WorkID] = workSlot{rank: ordering.Unranked, unknown: true}
			continue
		}
		slots[wl.WorkID] = workSlot{rank: wl.Order}
	}

	return slots, nil
}

// linkKey builds the antiquarian-scope sort key of a link from the work ranks of the scope.
func linkKey(slots map[uint]workSlot) func(*model.Link) ordering.LinkKey {
	return func(l *model.Link) ordering.LinkKey {
		key := ordering.LinkKey{
			ID:        l.ID,
			WorkRank:  ordering.Unranked,
			WorkOrder: l.WorkOrder,
			Order:     l.Order,
		}
		if l.WorkID != nil {
			key.HasWork = true
			key.WorkID = *l.WorkID
			if slot, ok := slots[*l.WorkID]; ok {
				key.WorkRank = slot.rank
				key.UnknownWork = slot.unknown
			}
		}
		return key
	}
}

// renumberLinks sorts the links of one antiquarian scope with the comparator of the kind
// and writes Order 0..n-1.
func (e *Engine) renumberLinks(ctx context.Context, tx store.Store, kind model.EvidenceKind, links []*model.Link, key func(*model.Link) ordering.LinkKey) (int, error) {
	compare := ordering.LinkComparator(kind)
	keys := make(map[uint]ordering.LinkKey, len(links))
	for _, l := range links {
		keys[l.ID] = key(l)
	}
	slices.SortStableFunc(links, func(a, b *model.Link) int {
		return compare(keys[a.ID], keys[b.ID])
	})

	writes := 0
	for i, link := range links {
		if link.Order == i {
			continue
		}
		if err := tx.UpdateLinkFields(ctx, kind, link.ID, map[string]any{"order": i}); err != nil {
			return writes, err
		}
		logrus.Debugf("%s link %d: order %d -> %d", kind, link.ID, link.Order, i)
		link.Order = i
		writes++
	}

	return writes, nil
}

// move returns items with the element at from moved to position to, clamped to the slice.
func move[T any](items []T, from, to int) []T {
	to = max(0, min(to, len(items)-1))
	if from == to {
		return items
	}
	item := items[from]
	items = slices.Delete(items, from, from+1)
	return slices.Insert(items, to, item)
}
