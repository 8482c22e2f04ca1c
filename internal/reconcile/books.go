package reconcile

import (
	"context"
	"slices"

	"github.com/emrgen/rard/internal/model"
	"github.com/emrgen/rard/internal/ordering"
	"github.com/emrgen/rard/internal/store"
)

// ReindexBooks renumbers the books of a work 0..n-1 with the Unknown Book last.
func (e *Engine) ReindexBooks(ctx context.Context, tx store.Store, workID uint) (int, error) {
	books, err := tx.ListBooks(ctx, workID)
	if err != nil {
		return 0, wrap("reindex books", err)
	}
	sortBooks(books)

	n, err := writeBookPositions(ctx, tx, books)
	return n, wrap("reindex books", err)
}

// MoveBook moves a known book to the given position among the known books of its work.
func (e *Engine) MoveBook(ctx context.Context, tx store.Store, bookID uint, position int) (int, error) {
	book, err := tx.GetBook(ctx, bookID)
	if err != nil {
		return 0, wrap("move book", err)
	}
	if book.Unknown {
		return 0, wrap("move book", ErrPlaceholder)
	}

	books, err := tx.ListBooks(ctx, book.WorkID)
	if err != nil {
		return 0, wrap("move book", err)
	}
	sortBooks(books)

	known := 0
	for _, b := range books {
		if !b.Unknown {
			known++
		}
	}
	from := slices.IndexFunc(books, func(b *model.Book) bool { return b.ID == bookID })
	// unknown books stay at the tail, so only the known prefix is rearranged
	books = append(move(books[:known:known], from, position), books[known:]...)

	n, err := writeBookPositions(ctx, tx, books)
	return n, wrap("move book", err)
}

func sortBooks(books []*model.Book) {
	slices.SortStableFunc(books, func(a, b *model.Book) int {
		return ordering.CompareBooks(bookKey(a), bookKey(b))
	})
}

func bookKey(b *model.Book) ordering.BookKey {
	return ordering.BookKey{ID: b.ID, Order: b.Order, Number: b.Number, Unknown: b.Unknown}
}

func writeBookPositions(ctx context.Context, tx store.Store, books []*model.Book) (int, error) {
	writes := 0
	for i, b := range books {
		if b.Order == i {
			continue
		}
		if err := tx.UpdateBookOrder(ctx, b.ID, i); err != nil {
			return writes, err
		}
		b.Order = i
		writes++
	}
	return writes, nil
}
