package service

import (
	"context"
	"encoding/json"
	"errors"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/emrgen/rard/internal/event"
	"github.com/emrgen/rard/internal/model"
	"github.com/emrgen/rard/internal/store"
	"gorm.io/datatypes"
)

// CreateEvidence creates a fragment, testimonium or anonymous fragment. Evidence carries
// no position, so nothing is reconciled.
func (s *CatalogueService) CreateEvidence(ctx context.Context, req *CreateEvidenceRequest) (*model.Evidence, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	evidence := &model.Evidence{Name: req.Name}
	if req.Meta != nil {
		meta, err := json.Marshal(req.Meta)
		if err != nil {
			return nil, invalid("meta", err)
		}
		evidence.Meta = datatypes.JSON(meta)
	}

	if err := s.store.CreateEvidence(ctx, req.Kind, evidence); err != nil {
		return nil, err
	}
	return evidence, nil
}

// DeleteEvidence deletes an evidence item with its links.
func (s *CatalogueService) DeleteEvidence(ctx context.Context, ref model.EvidenceRef) error {
	if !ref.Kind.Valid() {
		return invalid("kind", model.ErrInvalidKind)
	}

	_, err := s.apply(ctx, func(tx store.Store) ([]event.Event, error) {
		if _, err := tx.GetEvidence(ctx, ref); err != nil {
			return nil, err
		}
		links, err := tx.ListLinks(ctx, ref.Kind, store.LinkFilter{EvidenceID: &ref.ID})
		if err != nil {
			return nil, err
		}

		if err := tx.DeleteEvidence(ctx, ref); err != nil {
			return nil, err
		}
		return []event.Event{event.EvidenceDeleted{Ref: ref, Links: values(links)}}, nil
	})
	return err
}

// CreateLink attributes an evidence item. The link is appended to its work and book; its
// position inside the antiquarian follows from the work order.
func (s *CatalogueService) CreateLink(ctx context.Context, req *LinkRequest) (*model.Link, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	link := req.link()
	_, err := s.apply(ctx, func(tx store.Store) ([]event.Event, error) {
		if err := s.createLink(ctx, tx, req.Kind, link); err != nil {
			return nil, err
		}
		return []event.Event{event.LinkCreated{Kind: req.Kind, Link: *link}}, nil
	})
	if err != nil {
		return nil, err
	}

	return s.store.GetLink(ctx, req.Kind, link.ID)
}

func (s *CatalogueService) createLink(ctx context.Context, tx store.Store, kind model.EvidenceKind, link *model.Link) error {
	if err := s.validateLink(ctx, tx, kind, link); err != nil {
		return err
	}
	if err := s.engine().PlaceLink(ctx, tx, kind, link, true, true, true); err != nil {
		return err
	}
	return tx.CreateLink(ctx, kind, link)
}

// UpdateLink replaces the attribution of a link. A link that changes work or book leaves
// the old scope, which is renumbered, and is appended to the new one.
func (s *CatalogueService) UpdateLink(ctx context.Context, id uint, req *LinkRequest) (*model.Link, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	_, err := s.apply(ctx, func(tx store.Store) ([]event.Event, error) {
		before, err := tx.GetLink(ctx, req.Kind, id)
		if err != nil {
			return nil, err
		}
		if before.EvidenceID != req.EvidenceID {
			return nil, invalid("evidence_id", ErrInvalidInput)
		}

		after := req.link()
		after.ID = before.ID
		after.Order = before.Order
		after.WorkOrder = before.WorkOrder
		after.OrderInBook = before.OrderInBook
		if err := s.validateLink(ctx, tx, req.Kind, after); err != nil {
			return nil, err
		}

		antiquarianChanged := !sameRef(before.AntiquarianID, after.AntiquarianID)
		workChanged := !sameRef(before.WorkID, after.WorkID)
		bookChanged := workChanged || !sameRef(before.BookID, after.BookID)
		if err := s.engine().PlaceLink(ctx, tx, req.Kind, after, antiquarianChanged, workChanged, bookChanged); err != nil {
			return nil, err
		}

		err = tx.UpdateLinkFields(ctx, req.Kind, id, map[string]any{
			"antiquarian_id":       after.AntiquarianID,
			"order":                after.Order,
			"work_id":              after.WorkID,
			"book_id":              after.BookID,
			"work_order":           after.WorkOrder,
			"order_in_book":        after.OrderInBook,
			"definite_antiquarian": after.DefiniteAntiquarian,
			"definite_work":        after.DefiniteWork,
			"definite_book":        after.DefiniteBook,
			"exclusive":            after.Exclusive,
		})
		if err != nil {
			return nil, err
		}
		return []event.Event{event.LinkUpdated{Kind: req.Kind, Before: *before, After: *after}}, nil
	})
	if err != nil {
		return nil, err
	}

	return s.store.GetLink(ctx, req.Kind, id)
}

// DeleteLink deletes a link and closes the gaps it leaves.
func (s *CatalogueService) DeleteLink(ctx context.Context, kind model.EvidenceKind, id uint) error {
	if !kind.Valid() {
		return invalid("kind", model.ErrInvalidKind)
	}

	_, err := s.apply(ctx, func(tx store.Store) ([]event.Event, error) {
		link, err := tx.GetLink(ctx, kind, id)
		if err != nil {
			return nil, err
		}
		if err := tx.DeleteLink(ctx, kind, id); err != nil {
			return nil, err
		}
		return []event.Event{event.LinkDeleted{Kind: kind, Link: *link}}, nil
	})
	return err
}

// MoveLink moves a link to a new position inside its work or its book.
func (s *CatalogueService) MoveLink(ctx context.Context, req *MoveLinkRequest) error {
	if err := validateRequest(req); err != nil {
		return err
	}

	_, err := s.apply(ctx, func(tx store.Store) ([]event.Event, error) {
		link, err := tx.GetLink(ctx, req.Kind, req.LinkID)
		if err != nil {
			return nil, err
		}
		if req.Scope == event.ScopeWork && link.WorkID == nil {
			return nil, invalid("scope", ErrInvalidInput)
		}
		if req.Scope == event.ScopeBook && link.BookID == nil {
			return nil, invalid("scope", ErrBookWithoutWork)
		}

		if _, err := s.engine().MoveLink(ctx, tx, req.Kind, req.LinkID, req.Scope, req.Position); err != nil {
			return nil, err
		}
		return []event.Event{event.LinkMoved{Kind: req.Kind, Scope: req.Scope, Link: *link}}, nil
	})
	return err
}

// SetAntiquarianEvidence makes the evidence of one kind attributed to an antiquarian exactly
// the given set. Missing items get a direct attribution; links to items outside the set
// are deleted.
func (s *CatalogueService) SetAntiquarianEvidence(ctx context.Context, kind model.EvidenceKind, antiquarianID uint, evidenceIDs []uint) error {
	if !kind.Valid() {
		return invalid("kind", model.ErrInvalidKind)
	}

	_, err := s.apply(ctx, func(tx store.Store) ([]event.Event, error) {
		if _, err := tx.GetAntiquarian(ctx, antiquarianID); err != nil {
			return nil, err
		}
		current, err := tx.ListLinks(ctx, kind, store.LinkFilter{AntiquarianID: &antiquarianID})
		if err != nil {
			return nil, err
		}

		want := mapset.NewThreadUnsafeSet(evidenceIDs...)
		have := mapset.NewThreadUnsafeSet[uint]()
		change := event.LinkSetChanged{Kind: kind}
		for _, l := range current {
			have.Add(l.EvidenceID)
			if !want.Contains(l.EvidenceID) {
				if err := tx.DeleteLink(ctx, kind, l.ID); err != nil {
					return nil, err
				}
				change.Removed = append(change.Removed, *l)
			}
		}

		missing := want.Difference(have).ToSlice()
		slices.Sort(missing)
		for _, evidenceID := range missing {
			link := &model.Link{EvidenceID: evidenceID, AntiquarianID: model.Ptr(antiquarianID)}
			if err := s.createLink(ctx, tx, kind, link); err != nil {
				return nil, err
			}
			change.Added = append(change.Added, *link)
		}

		if len(change.Added) == 0 && len(change.Removed) == 0 {
			return nil, nil
		}
		return []event.Event{change}, nil
	})
	return err
}

// SetEvidenceAntiquarians makes the antiquarians an evidence item is attributed to exactly
// the given set. Unattributed links of the item are left alone.
func (s *CatalogueService) SetEvidenceAntiquarians(ctx context.Context, ref model.EvidenceRef, antiquarianIDs []uint) error {
	if !ref.Kind.Valid() {
		return invalid("kind", model.ErrInvalidKind)
	}

	_, err := s.apply(ctx, func(tx store.Store) ([]event.Event, error) {
		if _, err := tx.GetEvidence(ctx, ref); err != nil {
			return nil, err
		}
		current, err := tx.ListLinks(ctx, ref.Kind, store.LinkFilter{EvidenceID: &ref.ID})
		if err != nil {
			return nil, err
		}

		want := mapset.NewThreadUnsafeSet(antiquarianIDs...)
		have := mapset.NewThreadUnsafeSet[uint]()
		change := event.LinkSetChanged{Kind: ref.Kind}
		for _, l := range current {
			if l.AntiquarianID == nil {
				continue
			}
			have.Add(*l.AntiquarianID)
			if !want.Contains(*l.AntiquarianID) {
				if err := tx.DeleteLink(ctx, ref.Kind, l.ID); err != nil {
					return nil, err
				}
				change.Removed = append(change.Removed, *l)
			}
		}

		missing := want.Difference(have).ToSlice()
		slices.Sort(missing)
		for _, antiquarianID := range missing {
			link := &model.Link{EvidenceID: ref.ID, AntiquarianID: model.Ptr(antiquarianID)}
			if err := s.createLink(ctx, tx, ref.Kind, link); err != nil {
				return nil, err
			}
			change.Added = append(change.Added, *link)
		}

		if len(change.Added) == 0 && len(change.Removed) == 0 {
			return nil, nil
		}
		return []event.Event{change}, nil
	})
	return err
}

// validateLink checks the attribution of a link before it is written. A fragment or
// appositum link naming only an antiquarian is attached to the antiquarian's Unknown Work
// and its Unknown Book.
func (s *CatalogueService) validateLink(ctx context.Context, tx store.Store, kind model.EvidenceKind, link *model.Link) error {
	if !kind.Valid() {
		return invalid("kind", model.ErrInvalidKind)
	}
	if _, err := tx.GetEvidence(ctx, model.EvidenceRef{Kind: kind, ID: link.EvidenceID}); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return invalid("evidence_id", err)
		}
		return err
	}
	if link.Exclusive && kind != model.KindAppositum {
		return invalid("exclusive", ErrExclusiveNotAppositum)
	}
	if link.AntiquarianID == nil && link.WorkID == nil {
		return invalid("antiquarian_id", ErrAntiquarianRequired)
	}
	if link.BookID != nil && link.WorkID == nil {
		return invalid("book_id", ErrBookWithoutWork)
	}

	if link.AntiquarianID != nil {
		if _, err := tx.GetAntiquarian(ctx, *link.AntiquarianID); err != nil {
			return lookupError("antiquarian_id", err)
		}
		if link.WorkID == nil && kind != model.KindTestimonium {
			if err := s.attachUnknown(ctx, tx, link); err != nil {
				return err
			}
		}
	} else if link.DefiniteAntiquarian {
		return invalid("definite_antiquarian", ErrDefiniteWithoutTarget)
	}

	if link.WorkID == nil {
		if link.DefiniteWork || link.DefiniteBook {
			return invalid("definite_work", ErrDefiniteWithoutTarget)
		}
		return nil
	}

	work, err := tx.GetWork(ctx, *link.WorkID)
	if err != nil {
		return lookupError("work_id", err)
	}
	if link.AntiquarianID != nil {
		if _, err := tx.GetWorkLink(ctx, *link.AntiquarianID, work.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return invalid("work_id", ErrWorkNotLinked)
			}
			return err
		}
	} else {
		holders, err := tx.ListWorkLinksByWorks(ctx, []uint{work.ID})
		if err != nil {
			return err
		}
		if len(holders) > 0 {
			return invalid("antiquarian_id", ErrAntiquarianRequired)
		}
	}
	if link.DefiniteWork && work.Unknown {
		return invalid("definite_work", ErrDefiniteUnknownWork)
	}

	if link.BookID == nil {
		if link.DefiniteBook {
			return invalid("definite_book", ErrDefiniteWithoutTarget)
		}
		return nil
	}
	book, err := tx.GetBook(ctx, *link.BookID)
	if err != nil {
		return lookupError("book_id", err)
	}
	if book.WorkID != work.ID {
		return invalid("book_id", ErrBookNotInWork)
	}
	if link.DefiniteBook && book.Unknown {
		return invalid("definite_book", ErrDefiniteUnknownBook)
	}

	return nil
}

func (s *CatalogueService) attachUnknown(ctx context.Context, tx store.Store, link *model.Link) error {
	held, err := tx.ListWorkLinks(ctx, *link.AntiquarianID)
	if err != nil {
		return err
	}
	for _, wl := range held {
		if !wl.Unknown() {
			continue
		}
		books, err := tx.ListBooks(ctx, wl.WorkID)
		if err != nil {
			return err
		}
		link.WorkID = model.Ptr(wl.WorkID)
		for _, b := range books {
			if b.Unknown {
				link.BookID = model.Ptr(b.ID)
				break
			}
		}
		return nil
	}
	return nil
}

func lookupError(field string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return invalid(field, err)
	}
	return err
}

func sameRef(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func values(links []*model.Link) []model.Link {
	out := make([]model.Link, 0, len(links))
	for _, l := range links {
		out = append(out, *l)
	}
	return out
}
