package reconcile

import (
	"context"
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/emrgen/rard/internal/event"
	"github.com/emrgen/rard/internal/metrics"
	"github.com/emrgen/rard/internal/model"
	"github.com/emrgen/rard/internal/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Dispatcher routes change events to the engine. It must be called with the transaction
// that made the change, after the change and before the commit.
type Dispatcher struct {
	engine *Engine
}

func NewDispatcher(engine *Engine) *Dispatcher {
	return &Dispatcher{engine: engine}
}

func (d *Dispatcher) Engine() *Engine {
	return d.engine
}

// Report summarises one dispatch.
type Report struct {
	ID     uuid.UUID
	Events int
	Writes int
	// Antiquarians lists the antiquarians whose link order was reconciled.
	Antiquarians []uint
}

// Dispatch handles the events in order and then settles every scope they touched.
func (d *Dispatcher) Dispatch(ctx context.Context, tx store.Store, events ...event.Event) (*Report, error) {
	start := time.Now()
	report := &Report{ID: uuid.New(), Events: len(events)}
	log := logrus.WithField("dispatch", report.ID)

	p := newPlan()
	for _, ev := range events {
		n, err := d.handle(ctx, tx, ev, p)
		report.Writes += n
		metrics.EventsDispatched.WithLabelValues(ev.Name()).Inc()
		metrics.ReconcileWrites.WithLabelValues(ev.Name()).Add(float64(n))
		if err != nil {
			log.WithField("event", ev.Name()).Errorf("reconcile failed: %v", err)
			return report, wrap(ev.Name(), err)
		}
		log.WithField("event", ev.Name()).Debugf("handled with %d writes", n)
	}

	n, err := d.settle(ctx, tx, p)
	report.Writes += n
	report.Antiquarians = sortedIDs(p.antiquarians.Difference(p.deleted))
	metrics.DispatchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		log.Errorf("settle failed: %v", err)
		return report, err
	}

	log.WithFields(logrus.Fields{
		"events":       report.Events,
		"writes":       report.Writes,
		"antiquarians": report.Antiquarians,
	}).Debug("dispatch settled")

	return report, nil
}

// plan records the scopes touched by the handled events.
type plan struct {
	workLinks    mapset.Set[uint]
	antiquarians mapset.Set[uint]
	deleted      mapset.Set[uint]
	bookLists    mapset.Set[uint]
	regroup      mapset.Set[uint]
	// fullWorks need the work order and the order of every book repaired in every kind.
	fullWorks mapset.Set[uint]
	scopes    map[model.EvidenceKind]scopes
}

func newPlan() *plan {
	p := &plan{
		workLinks:    mapset.NewThreadUnsafeSet[uint](),
		antiquarians: mapset.NewThreadUnsafeSet[uint](),
		deleted:      mapset.NewThreadUnsafeSet[uint](),
		bookLists:    mapset.NewThreadUnsafeSet[uint](),
		regroup:      mapset.NewThreadUnsafeSet[uint](),
		fullWorks:    mapset.NewThreadUnsafeSet[uint](),
		scopes:       make(map[model.EvidenceKind]scopes, len(model.AllKinds)),
	}
	for _, kind := range model.AllKinds {
		p.scopes[kind] = newScopes()
	}
	return p
}

func (p *plan) antiquarian(id uint) {
	p.workLinks.Add(id)
	p.antiquarians.Add(id)
}

func (p *plan) link(kind model.EvidenceKind, l model.Link) {
	p.scopes[kind].add(&l)
	if l.AntiquarianID != nil {
		p.antiquarians.Add(*l.AntiquarianID)
	}
}

func (d *Dispatcher) handle(ctx context.Context, tx store.Store, ev event.Event, p *plan) (int, error) {
	e := d.engine

	switch ev := ev.(type) {
	case event.AntiquarianCreated:
		p.antiquarian(ev.AntiquarianID)
		n, err := e.CreateUnknownWork(ctx, tx, ev.AntiquarianID)
		if err != nil {
			return n, err
		}
		m, err := e.CollateUnknown(ctx, tx, ev.AntiquarianID)
		return n + m, err

	case event.AntiquarianDeleted:
		p.deleted.Add(ev.AntiquarianID)
		p.fullWorks.Append(ev.WorkIDs...)
		return 0, d.addHolders(ctx, tx, p, ev.WorkIDs...)

	case event.WorkCreated:
		p.bookLists.Add(ev.WorkID)
		return e.EnsureUnknownBook(ctx, tx, ev.WorkID)

	case event.WorkDeleted:
		for _, id := range ev.AntiquarianIDs {
			p.antiquarian(id)
		}
		return 0, nil

	case event.WorkAssociationChanged:
		p.antiquarian(ev.AntiquarianID)
		p.fullWorks.Add(ev.WorkID)
		if ev.Action == event.WorkRemoved {
			return 0, nil
		}
		n, err := e.EnsureUnknownBook(ctx, tx, ev.WorkID)
		if err != nil {
			return n, err
		}
		m, err := e.CopyLinksForWork(ctx, tx, ev.AntiquarianID, ev.WorkID)
		return n + m, err

	case event.WorkReordered:
		p.antiquarian(ev.AntiquarianID)
		return 0, nil

	case event.BookCreated:
		p.bookLists.Add(ev.WorkID)
		return 0, nil

	case event.BookReordered:
		p.bookLists.Add(ev.WorkID)
		p.regroup.Add(ev.WorkID)
		return 0, d.addHolders(ctx, tx, p, ev.WorkID)

	case event.BookDeleted:
		p.bookLists.Add(ev.WorkID)
		p.fullWorks.Add(ev.WorkID)
		return 0, d.addHolders(ctx, tx, p, ev.WorkID)

	case event.LinkCreated:
		p.link(ev.Kind, ev.Link)
		return 0, nil

	case event.LinkUpdated:
		p.link(ev.Kind, ev.Before)
		p.link(ev.Kind, ev.After)
		return 0, nil

	case event.LinkDeleted:
		p.link(ev.Kind, ev.Link)
		return 0, nil

	case event.LinkMoved:
		p.link(ev.Kind, ev.Link)
		if ev.Scope == event.ScopeWork && ev.Link.WorkID != nil {
			return 0, d.addHolders(ctx, tx, p, *ev.Link.WorkID)
		}
		return 0, nil

	case event.LinkSetChanged:
		for _, l := range ev.Added {
			p.link(ev.Kind, l)
		}
		for _, l := range ev.Removed {
			p.link(ev.Kind, l)
		}
		return 0, nil

	case event.EvidenceDeleted:
		for _, l := range ev.Links {
			p.link(ev.Ref.Kind, l)
		}
		return 0, nil

	default:
		return 0, fmt.Errorf("%w: %T", ErrUnhandledEvent, ev)
	}
}

// addHolders schedules the antiquarians holding the works, whose link order depends on
// the positions inside those works.
func (d *Dispatcher) addHolders(ctx context.Context, tx store.Store, p *plan, workIDs ...uint) error {
	if len(workIDs) == 0 {
		return nil
	}
	holders, err := tx.ListWorkLinksByWorks(ctx, workIDs)
	if err != nil {
		return err
	}
	for _, wl := range holders {
		p.antiquarians.Add(wl.AntiquarianID)
	}
	return nil
}

// settle repairs the touched scopes from the leaves up.
func (d *Dispatcher) settle(ctx context.Context, tx store.Store, p *plan) (int, error) {
	e := d.engine
	writes := 0
	run := func(n int, err error) error {
		writes += n
		return err
	}

	for _, id := range sortedIDs(p.bookLists) {
		if err := run(e.ReindexBooks(ctx, tx, id)); err != nil {
			return writes, err
		}
	}

	for _, id := range sortedIDs(p.fullWorks) {
		books, err := tx.ListBooks(ctx, id)
		if err != nil {
			return writes, wrap("settle", err)
		}
		for _, kind := range model.AllKinds {
			p.scopes[kind].works.Add(id)
			for _, b := range books {
				p.scopes[kind].books.Add(b.ID)
			}
		}
	}

	for _, kind := range model.AllKinds {
		if err := run(e.repair(ctx, tx, kind, p.scopes[kind])); err != nil {
			return writes, err
		}
		for _, id := range sortedIDs(p.regroup) {
			if err := run(e.RegroupWorkByBooks(ctx, tx, kind, id)); err != nil {
				return writes, err
			}
		}
	}

	for _, id := range sortedIDs(p.workLinks.Difference(p.deleted)) {
		if err := run(e.ReindexWorkLinks(ctx, tx, id)); err != nil {
			return writes, err
		}
	}

	for _, id := range sortedIDs(p.antiquarians.Difference(p.deleted)) {
		if err := run(e.reindexEvidence(ctx, tx, id)); err != nil {
			return writes, err
		}
	}

	err := run(e.ReindexNullLinks(ctx, tx))
	return writes, err
}
