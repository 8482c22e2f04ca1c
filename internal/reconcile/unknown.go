package reconcile

import (
	"cmp"
	"context"
	"slices"

	"github.com/emrgen/rard/internal/model"
	"github.com/emrgen/rard/internal/store"
	"github.com/sirupsen/logrus"
)

// CreateUnknownWork gives an antiquarian its Unknown Work, with its Unknown Book, unless
// it already has one.
func (e *Engine) CreateUnknownWork(ctx context.Context, tx store.Store, antiquarianID uint) (int, error) {
	links, err := tx.ListWorkLinks(ctx, antiquarianID)
	if err != nil {
		return 0, wrap("create unknown work", err)
	}
	for _, wl := range links {
		if wl.Unknown() {
			return 0, nil
		}
	}

	work := &model.Work{Name: model.UnknownWorkName, Unknown: true}
	if err := tx.CreateWork(ctx, work); err != nil {
		return 0, wrap("create unknown work", err)
	}
	writes := 1

	n, err := e.EnsureUnknownBook(ctx, tx, work.ID)
	writes += n
	if err != nil {
		return writes, err
	}

	if err := tx.CreateWorkLink(ctx, &model.WorkLink{AntiquarianID: antiquarianID, WorkID: work.ID}); err != nil {
		return writes, wrap("create unknown work", err)
	}
	writes++

	logrus.Debugf("created unknown work %d for antiquarian %d", work.ID, antiquarianID)
	return writes, nil
}

// EnsureUnknownBook gives a work its Unknown Book unless it already has one.
func (e *Engine) EnsureUnknownBook(ctx context.Context, tx store.Store, workID uint) (int, error) {
	_, created, err := e.unknownBook(ctx, tx, workID)
	if err != nil {
		return 0, wrap("ensure unknown book", err)
	}
	if created {
		return 1, nil
	}
	return 0, nil
}

func (e *Engine) unknownBook(ctx context.Context, tx store.Store, workID uint) (*model.Book, bool, error) {
	books, err := tx.ListBooks(ctx, workID)
	if err != nil {
		return nil, false, err
	}
	for _, b := range books {
		if b.Unknown {
			return b, false, nil
		}
	}

	book := &model.Book{
		WorkID:   workID,
		Subtitle: model.UnknownBookSubtitle,
		Unknown:  true,
		Order:    len(books),
	}
	if err := tx.CreateBook(ctx, book); err != nil {
		return nil, false, err
	}
	return book, true, nil
}

// CollateUnknown merges the Unknown Works of an antiquarian into the one with the lowest
// id. The links of the duplicates move to the end of the surviving work and of its Unknown
// Book; the duplicates are then deleted with their books and work links.
func (e *Engine) CollateUnknown(ctx context.Context, tx store.Store, antiquarianID uint) (int, error) {
	links, err := tx.ListWorkLinks(ctx, antiquarianID)
	if err != nil {
		return 0, wrap("collate unknown", err)
	}

	var unknown []uint
	for _, wl := range links {
		if wl.Unknown() {
			unknown = append(unknown, wl.WorkID)
		}
	}
	if len(unknown) < 2 {
		return 0, nil
	}
	slices.Sort(unknown)
	canonical, duplicates := unknown[0], unknown[1:]

	logrus.WithFields(logrus.Fields{
		"antiquarian": antiquarianID,
		"canonical":   canonical,
		"duplicates":  duplicates,
	}).Warn("collating duplicate unknown works")

	book, created, err := e.unknownBook(ctx, tx, canonical)
	if err != nil {
		return 0, wrap("collate unknown", err)
	}
	writes := 0
	if created {
		writes++
	}

	for _, kind := range model.AllKinds {
		n, err := e.absorbLinks(ctx, tx, kind, canonical, book.ID, duplicates)
		writes += n
		if err != nil {
			return writes, wrap("collate unknown", err)
		}
	}

	for _, id := range duplicates {
		if err := tx.DeleteWork(ctx, id); err != nil {
			return writes, wrap("collate unknown", err)
		}
		writes++
	}

	for _, kind := range model.AllKinds {
		n, err := e.ReindexWorkOrder(ctx, tx, kind, canonical)
		writes += n
		if err != nil {
			return writes, err
		}
		n, err = e.ReindexBookOrder(ctx, tx, kind, book.ID)
		writes += n
		if err != nil {
			return writes, err
		}
	}

	return writes, nil
}

// absorbLinks repoints the links of the duplicate works of one kind to the canonical work,
// appending them after its links. Links that had a book land in the canonical Unknown Book.
func (e *Engine) absorbLinks(ctx context.Context, tx store.Store, kind model.EvidenceKind, canonical, bookID uint, duplicates []uint) (int, error) {
	moved, err := tx.ListLinks(ctx, kind, store.LinkFilter{WorkIDs: duplicates})
	if err != nil {
		return 0, err
	}
	if len(moved) == 0 {
		return 0, nil
	}

	workNext, err := e.nextPosition(ctx, tx, kind, store.LinkFilter{WorkID: &canonical}, 0, func(l *model.Link) *int {
		return &l.WorkOrder
	})
	if err != nil {
		return 0, err
	}
	bookNext, err := e.nextPosition(ctx, tx, kind, store.LinkFilter{BookID: &bookID}, 0, func(l *model.Link) *int {
		return l.OrderInBook
	})
	if err != nil {
		return 0, err
	}

	// keep the relative order of each duplicate, duplicates in id order
	slices.SortStableFunc(moved, func(a, b *model.Link) int {
		return cmp.Or(cmp.Compare(*a.WorkID, *b.WorkID), cmp.Compare(a.WorkOrder, b.WorkOrder))
	})

	writes := 0
	for _, l := range moved {
		fields := map[string]any{
			"work_id":    canonical,
			"work_order": workNext,
		}
		workNext++
		if l.BookID != nil {
			fields["book_id"] = bookID
			fields["order_in_book"] = bookNext
			bookNext++
		}
		if err := tx.UpdateLinkFields(ctx, kind, l.ID, fields); err != nil {
			return writes, err
		}
		writes++
	}

	return writes, nil
}
