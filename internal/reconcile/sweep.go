package reconcile

import (
	"context"

	"github.com/emrgen/rard/internal/model"
	"github.com/emrgen/rard/internal/store"
	"github.com/sirupsen/logrus"
)

// ReconcileAll rebuilds every index of the graph from scratch. Each antiquarian and each
// work is settled in its own transaction so a failure leaves earlier scopes committed.
// On a consistent graph it writes nothing.
func (e *Engine) ReconcileAll(ctx context.Context, st store.Store) (int, error) {
	antiquarians, err := st.ListAntiquarians(ctx)
	if err != nil {
		return 0, wrap("reconcile all", err)
	}

	writes := 0
	step := func(f func(tx store.Store) (int, error)) error {
		return st.Transaction(ctx, func(tx store.Store) error {
			n, err := f(tx)
			writes += n
			return err
		})
	}

	for _, a := range antiquarians {
		err := step(func(tx store.Store) (int, error) {
			n, err := e.CreateUnknownWork(ctx, tx, a.ID)
			if err != nil {
				return n, err
			}
			m, err := e.CollateUnknown(ctx, tx, a.ID)
			if err != nil {
				return n + m, err
			}
			k, err := e.ReindexWorkLinks(ctx, tx, a.ID)
			return n + m + k, err
		})
		if err != nil {
			return writes, err
		}
	}

	// listed after collation, which deletes duplicate unknown works
	works, err := st.ListWorks(ctx)
	if err != nil {
		return writes, wrap("reconcile all", err)
	}
	for _, w := range works {
		err := step(func(tx store.Store) (int, error) {
			return e.reconcileWork(ctx, tx, w.ID)
		})
		if err != nil {
			return writes, err
		}
	}

	for _, a := range antiquarians {
		err := step(func(tx store.Store) (int, error) {
			return e.reindexEvidence(ctx, tx, a.ID)
		})
		if err != nil {
			return writes, err
		}
	}

	if err := step(func(tx store.Store) (int, error) { return e.ReindexNullLinks(ctx, tx) }); err != nil {
		return writes, err
	}

	logrus.WithFields(logrus.Fields{
		"antiquarians": len(antiquarians),
		"works":        len(works),
		"writes":       writes,
	}).Info("reconciled all scopes")

	return writes, nil
}

func (e *Engine) reconcileWork(ctx context.Context, tx store.Store, workID uint) (int, error) {
	writes, err := e.EnsureUnknownBook(ctx, tx, workID)
	if err != nil {
		return writes, err
	}
	n, err := e.ReindexBooks(ctx, tx, workID)
	writes += n
	if err != nil {
		return writes, err
	}

	books, err := tx.ListBooks(ctx, workID)
	if err != nil {
		return writes, wrap("reconcile work", err)
	}
	for _, kind := range model.AllKinds {
		n, err := e.ClearStrayBookOrders(ctx, tx, kind, workID)
		writes += n
		if err != nil {
			return writes, err
		}
		n, err = e.ReindexWorkOrder(ctx, tx, kind, workID)
		writes += n
		if err != nil {
			return writes, err
		}
		for _, b := range books {
			n, err := e.ReindexBookOrder(ctx, tx, kind, b.ID)
			writes += n
			if err != nil {
				return writes, err
			}
		}
	}
	return writes, nil
}
