package service

import (
	"context"
	"errors"

	"github.com/emrgen/rard/internal/cache"
	"github.com/emrgen/rard/internal/event"
	"github.com/emrgen/rard/internal/model"
	"github.com/emrgen/rard/internal/queue"
	"github.com/emrgen/rard/internal/reconcile"
	"github.com/emrgen/rard/internal/store"
	"github.com/sirupsen/logrus"
)

// NewCatalogueService creates a new CatalogueService.
func NewCatalogueService(store store.Store, dispatcher *reconcile.Dispatcher, cache cache.LinkCache, publisher queue.Publisher) *CatalogueService {
	return &CatalogueService{
		store:      store,
		dispatcher: dispatcher,
		cache:      cache,
		publisher:  publisher,
	}
}

// CatalogueService applies curator edits to the antiquarian, work, book and link graph.
// Every mutation validates its input, writes, and reconciles the indices it disturbed in
// one transaction. Once committed, the link cache is invalidated and the change events
// are published.
type CatalogueService struct {
	store      store.Store
	dispatcher *reconcile.Dispatcher
	cache      cache.LinkCache
	publisher  queue.Publisher
}

func (s *CatalogueService) engine() *reconcile.Engine {
	return s.dispatcher.Engine()
}

// mutation writes inside tx and returns the events describing what it changed.
type mutation func(tx store.Store) ([]event.Event, error)

func (s *CatalogueService) apply(ctx context.Context, f mutation) (*reconcile.Report, error) {
	var (
		events []event.Event
		report *reconcile.Report
	)
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		var err error
		events, err = f(tx)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}
		report, err = s.dispatcher.Dispatch(ctx, tx, events...)
		if err != nil {
			return err
		}
		return reload(ctx, tx, events)
	})
	if err != nil {
		return nil, err
	}

	if len(events) > 0 {
		s.committed(ctx, events)
	}
	return report, nil
}

// reload replaces the links carried by events with their reconciled rows, so published
// events hold the committed positions. Removed links keep their last state.
func reload(ctx context.Context, tx store.Store, events []event.Event) error {
	fresh := func(kind model.EvidenceKind, l *model.Link) error {
		got, err := tx.GetLink(ctx, kind, l.ID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		*l = *got
		return nil
	}

	for i, ev := range events {
		switch e := ev.(type) {
		case event.LinkCreated:
			if err := fresh(e.Kind, &e.Link); err != nil {
				return err
			}
			events[i] = e
		case event.LinkUpdated:
			if err := fresh(e.Kind, &e.After); err != nil {
				return err
			}
			events[i] = e
		case event.LinkMoved:
			if err := fresh(e.Kind, &e.Link); err != nil {
				return err
			}
			events[i] = e
		case event.LinkSetChanged:
			for j := range e.Added {
				if err := fresh(e.Kind, &e.Added[j]); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// committed runs the side effects of a committed mutation. Their failures are logged
// only, the edit itself already succeeded.
func (s *CatalogueService) committed(ctx context.Context, events []event.Event) {
	if err := s.cache.Invalidate(ctx); err != nil {
		logrus.Errorf("failed to invalidate link cache: %v", err)
	}

	envelopes := make([]*event.Envelope, 0, len(events))
	for _, e := range events {
		envelope, err := event.NewEnvelope(e)
		if err != nil {
			logrus.Errorf("failed to encode %s: %v", e.Name(), err)
			continue
		}
		envelopes = append(envelopes, envelope)
	}
	if err := s.publisher.Publish(ctx, envelopes...); err != nil {
		logrus.Errorf("failed to publish %d change events: %v", len(envelopes), err)
	}
}

// CreateAntiquarian creates an antiquarian together with its Unknown Work.
func (s *CatalogueService) CreateAntiquarian(ctx context.Context, req *CreateAntiquarianRequest) (*model.Antiquarian, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	antiquarian := &model.Antiquarian{Name: req.Name, SortName: req.SortName}
	if antiquarian.SortName == "" {
		antiquarian.SortName = req.Name
	}
	_, err := s.apply(ctx, func(tx store.Store) ([]event.Event, error) {
		if err := tx.CreateAntiquarian(ctx, antiquarian); err != nil {
			return nil, err
		}
		return []event.Event{event.AntiquarianCreated{AntiquarianID: antiquarian.ID}}, nil
	})
	if err != nil {
		return nil, err
	}

	logrus.Infof("created antiquarian %d %q", antiquarian.ID, antiquarian.Name)
	return antiquarian, nil
}

// DeleteAntiquarian deletes an antiquarian, its links, its work associations and its
// Unknown Work. Works it shared keep their other holders.
func (s *CatalogueService) DeleteAntiquarian(ctx context.Context, id uint) error {
	_, err := s.apply(ctx, func(tx store.Store) ([]event.Event, error) {
		if _, err := tx.GetAntiquarian(ctx, id); err != nil {
			return nil, err
		}
		links, err := tx.ListWorkLinks(ctx, id)
		if err != nil {
			return nil, err
		}

		var known, unknown []uint
		for _, wl := range links {
			if wl.Unknown() {
				unknown = append(unknown, wl.WorkID)
			} else {
				known = append(known, wl.WorkID)
			}
		}

		if err := tx.DeleteAntiquarian(ctx, id); err != nil {
			return nil, err
		}
		for _, workID := range unknown {
			if err := tx.DeleteWork(ctx, workID); err != nil {
				return nil, err
			}
		}

		return []event.Event{event.AntiquarianDeleted{AntiquarianID: id, WorkIDs: known}}, nil
	})
	return err
}

// CreateWork creates a work with its Unknown Book and associates it with the given
// antiquarians.
func (s *CatalogueService) CreateWork(ctx context.Context, req *CreateWorkRequest) (*model.Work, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	work := &model.Work{Name: req.Name, Subtitle: req.Subtitle}
	_, err := s.apply(ctx, func(tx store.Store) ([]event.Event, error) {
		if err := tx.CreateWork(ctx, work); err != nil {
			return nil, err
		}
		events := []event.Event{event.WorkCreated{WorkID: work.ID}}

		for _, antiquarianID := range req.AntiquarianIDs {
			added, err := s.associate(ctx, tx, antiquarianID, work)
			if err != nil {
				return nil, err
			}
			events = append(events, added...)
		}
		return events, nil
	})
	if err != nil {
		return nil, err
	}

	return work, nil
}

// DeleteWork deletes a known work with its books and links.
func (s *CatalogueService) DeleteWork(ctx context.Context, id uint) error {
	_, err := s.apply(ctx, func(tx store.Store) ([]event.Event, error) {
		work, err := tx.GetWork(ctx, id)
		if err != nil {
			return nil, err
		}
		if work.Unknown {
			return nil, invalid("work_id", ErrUnknownWorkImmutable)
		}

		holders, err := tx.ListWorkLinksByWorks(ctx, []uint{id})
		if err != nil {
			return nil, err
		}
		ids := make([]uint, 0, len(holders))
		for _, wl := range holders {
			ids = append(ids, wl.AntiquarianID)
		}

		if err := tx.DeleteWork(ctx, id); err != nil {
			return nil, err
		}
		return []event.Event{event.WorkDeleted{WorkID: id, AntiquarianIDs: ids}}, nil
	})
	return err
}

// AddWork associates a work with an antiquarian. The antiquarian receives its own copy of
// every attribution already made through the work. Adding a held work does nothing.
func (s *CatalogueService) AddWork(ctx context.Context, antiquarianID, workID uint) error {
	_, err := s.apply(ctx, func(tx store.Store) ([]event.Event, error) {
		work, err := tx.GetWork(ctx, workID)
		if err != nil {
			return nil, err
		}
		return s.associate(ctx, tx, antiquarianID, work)
	})
	return err
}

func (s *CatalogueService) associate(ctx context.Context, tx store.Store, antiquarianID uint, work *model.Work) ([]event.Event, error) {
	if work.Unknown {
		return nil, invalid("work_id", ErrUnknownWorkImmutable)
	}
	if _, err := tx.GetAntiquarian(ctx, antiquarianID); err != nil {
		return nil, err
	}

	_, err := tx.GetWorkLink(ctx, antiquarianID, work.ID)
	if err == nil {
		return nil, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	held, err := tx.ListWorkLinks(ctx, antiquarianID)
	if err != nil {
		return nil, err
	}
	next := 0
	for _, wl := range held {
		if !wl.Unknown() && wl.Order >= next {
			next = wl.Order + 1
		}
	}

	err = tx.CreateWorkLink(ctx, &model.WorkLink{AntiquarianID: antiquarianID, WorkID: work.ID, Order: next})
	if err != nil {
		return nil, err
	}
	return []event.Event{event.WorkAssociationChanged{
		AntiquarianID: antiquarianID,
		WorkID:        work.ID,
		Action:        event.WorkAdded,
	}}, nil
}

// RemoveWork detaches a work from an antiquarian. The antiquarian's links through the
// work are deleted when others still hold it, and left unattributed otherwise.
func (s *CatalogueService) RemoveWork(ctx context.Context, antiquarianID, workID uint) error {
	_, err := s.apply(ctx, func(tx store.Store) ([]event.Event, error) {
		wl, err := tx.GetWorkLink(ctx, antiquarianID, workID)
		if err != nil {
			return nil, err
		}
		if wl.Unknown() {
			return nil, invalid("work_id", ErrUnknownWorkImmutable)
		}

		if err := tx.DeleteWorkLink(ctx, wl.ID); err != nil {
			return nil, err
		}
		return []event.Event{event.WorkAssociationChanged{
			AntiquarianID: antiquarianID,
			WorkID:        workID,
			Action:        event.WorkRemoved,
		}}, nil
	})
	return err
}

// MoveWork moves a work to a new position among the known works of an antiquarian.
func (s *CatalogueService) MoveWork(ctx context.Context, antiquarianID, workID uint, position int) error {
	if position < 0 {
		return invalid("position", ErrInvalidInput)
	}

	_, err := s.apply(ctx, func(tx store.Store) ([]event.Event, error) {
		wl, err := tx.GetWorkLink(ctx, antiquarianID, workID)
		if err != nil {
			return nil, err
		}
		if wl.Unknown() {
			return nil, invalid("work_id", ErrUnknownWorkImmutable)
		}

		if _, err := s.engine().MoveWorkLink(ctx, tx, antiquarianID, workID, position); err != nil {
			return nil, err
		}
		return []event.Event{event.WorkReordered{AntiquarianID: antiquarianID}}, nil
	})
	return err
}

// CreateBook adds a book to a work, before the work's Unknown Book.
func (s *CatalogueService) CreateBook(ctx context.Context, req *CreateBookRequest) (*model.Book, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	book := &model.Book{WorkID: req.WorkID, Number: req.Number, Subtitle: req.Subtitle}
	_, err := s.apply(ctx, func(tx store.Store) ([]event.Event, error) {
		if _, err := tx.GetWork(ctx, req.WorkID); err != nil {
			return nil, err
		}
		books, err := tx.ListBooks(ctx, req.WorkID)
		if err != nil {
			return nil, err
		}
		for _, b := range books {
			if !b.Unknown && b.Order >= book.Order {
				book.Order = b.Order + 1
			}
		}

		if err := tx.CreateBook(ctx, book); err != nil {
			return nil, err
		}
		return []event.Event{event.BookCreated{WorkID: book.WorkID, BookID: book.ID}}, nil
	})
	if err != nil {
		return nil, err
	}

	return book, nil
}

// MoveBook moves a book among the known books of its work. The links of the work are
// regrouped so that their work order follows the new book order.
func (s *CatalogueService) MoveBook(ctx context.Context, bookID uint, position int) error {
	if position < 0 {
		return invalid("position", ErrInvalidInput)
	}

	_, err := s.apply(ctx, func(tx store.Store) ([]event.Event, error) {
		book, err := tx.GetBook(ctx, bookID)
		if err != nil {
			return nil, err
		}
		if book.Unknown {
			return nil, invalid("book_id", ErrUnknownBookImmutable)
		}

		if _, err := s.engine().MoveBook(ctx, tx, bookID, position); err != nil {
			return nil, err
		}
		return []event.Event{event.BookReordered{WorkID: book.WorkID}}, nil
	})
	return err
}

// DeleteBook deletes a known book with its links.
func (s *CatalogueService) DeleteBook(ctx context.Context, bookID uint) error {
	_, err := s.apply(ctx, func(tx store.Store) ([]event.Event, error) {
		book, err := tx.GetBook(ctx, bookID)
		if err != nil {
			return nil, err
		}
		if book.Unknown {
			return nil, invalid("book_id", ErrUnknownBookImmutable)
		}

		if err := tx.DeleteBook(ctx, bookID); err != nil {
			return nil, err
		}
		return []event.Event{event.BookDeleted{WorkID: book.WorkID, BookID: bookID}}, nil
	})
	return err
}

// Reconcile rebuilds every index of the graph and drops the cached listings.
func (s *CatalogueService) Reconcile(ctx context.Context) (int, error) {
	writes, err := s.engine().ReconcileAll(ctx, s.store)
	if err != nil {
		return writes, err
	}
	if writes > 0 {
		if err := s.cache.Invalidate(ctx); err != nil {
			logrus.Errorf("failed to invalidate link cache: %v", err)
		}
	}
	return writes, nil
}

// Check reports every broken invariant without writing.
func (s *CatalogueService) Check(ctx context.Context) ([]reconcile.Violation, error) {
	return s.engine().Check(ctx, s.store)
}
