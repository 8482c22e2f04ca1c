package reconcile

import (
	"context"
	"slices"

	"github.com/emrgen/rard/internal/model"
	"github.com/emrgen/rard/internal/store"
	"github.com/sirupsen/logrus"
)

// CopyLinksForWork gives an antiquarian that just gained a work its own copy of every
// attribution already made through that work. Copies keep the certainty flags and are
// appended to the work and book. An attribution the antiquarian already holds is not
// duplicated, and exclusive apposita stay with their antiquarian. Links of the work that
// had been orphaned are removed once copied.
func (e *Engine) CopyLinksForWork(ctx context.Context, tx store.Store, antiquarianID, workID uint) (int, error) {
	writes := 0
	for _, kind := range model.AllKinds {
		n, err := e.copyKind(ctx, tx, kind, antiquarianID, workID)
		writes += n
		if err != nil {
			return writes, wrap("copy links for work", err)
		}
	}
	return writes, nil
}

func (e *Engine) copyKind(ctx context.Context, tx store.Store, kind model.EvidenceKind, antiquarianID, workID uint) (int, error) {
	links, err := tx.ListLinks(ctx, kind, store.LinkFilter{WorkID: &workID})
	if err != nil {
		return 0, err
	}
	sortByWorkOrder(links)

	var held, orphans []*model.Link
	for _, l := range links {
		switch {
		case l.HeldBy(antiquarianID):
			held = append(held, l)
		case l.AntiquarianID == nil:
			orphans = append(orphans, l)
		}
	}

	workNext := 0
	if len(links) > 0 {
		workNext = links[len(links)-1].WorkOrder + 1
	}
	bookNext := make(map[uint]int)
	nextInBook := func(bookID uint) (int, error) {
		if n, ok := bookNext[bookID]; ok {
			return n, nil
		}
		return e.nextPosition(ctx, tx, kind, store.LinkFilter{BookID: &bookID}, 0, func(l *model.Link) *int {
			return l.OrderInBook
		})
	}

	writes := 0
	for _, src := range links {
		if src.HeldBy(antiquarianID) {
			continue
		}
		if kind == model.KindAppositum && src.Exclusive {
			continue
		}
		if slices.ContainsFunc(held, src.Equivalent) {
			continue
		}

		copied := src.CopyFor(antiquarianID)
		copied.WorkOrder = workNext
		workNext++
		if copied.BookID != nil {
			n, err := nextInBook(*copied.BookID)
			if err != nil {
				return writes, err
			}
			copied.OrderInBook = model.Ptr(n)
			bookNext[*copied.BookID] = n + 1
		}

		if err := tx.CreateLink(ctx, kind, copied); err != nil {
			return writes, err
		}
		held = append(held, copied)
		writes++
	}

	if len(orphans) == 0 {
		return writes, nil
	}

	removed := newScopes()
	for _, l := range orphans {
		if err := tx.DeleteLink(ctx, kind, l.ID); err != nil {
			return writes, err
		}
		removed.add(l)
		writes++
	}
	logrus.Debugf("removed %d orphaned %s links of work %d", len(orphans), kind, workID)

	n, err := e.repair(ctx, tx, kind, removed)
	return writes + n, err
}
