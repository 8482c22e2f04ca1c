package reconcile

import (
	"cmp"
	"context"
	"os"
	"slices"
	"testing"

	"github.com/emrgen/rard/internal/model"
	"github.com/emrgen/rard/internal/store"
	"github.com/emrgen/rard/internal/tester"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	tester.Quiet()
	os.Exit(m.Run())
}

// graph builds link graphs directly through the store, bypassing the service checks.
type graph struct {
	t      *testing.T
	ctx    context.Context
	st     *store.GormStore
	engine *Engine
}

func newGraph(t *testing.T) *graph {
	return &graph{t: t, ctx: context.Background(), st: tester.TestStore(t), engine: NewEngine()}
}

func (g *graph) antiquarian(name string) uint {
	a := &model.Antiquarian{Name: name, SortName: name}
	require.NoError(g.t, g.st.CreateAntiquarian(g.ctx, a))
	_, err := g.engine.CreateUnknownWork(g.ctx, g.st, a.ID)
	require.NoError(g.t, err)
	return a.ID
}

// work creates a work with its Unknown Book and appends it to each holder.
func (g *graph) work(name string, holders ...uint) uint {
	w := &model.Work{Name: name}
	require.NoError(g.t, g.st.CreateWork(g.ctx, w))
	_, err := g.engine.EnsureUnknownBook(g.ctx, g.st, w.ID)
	require.NoError(g.t, err)
	for _, a := range holders {
		g.hold(a, w.ID)
	}
	return w.ID
}

func (g *graph) hold(antiquarianID, workID uint) {
	held, err := g.st.ListWorkLinks(g.ctx, antiquarianID)
	require.NoError(g.t, err)
	next := 0
	for _, wl := range held {
		if !wl.Unknown() {
			next++
		}
	}
	require.NoError(g.t, g.st.CreateWorkLink(g.ctx, &model.WorkLink{AntiquarianID: antiquarianID, WorkID: workID, Order: next}))
}

func (g *graph) release(antiquarianID, workID uint) {
	wl, err := g.st.GetWorkLink(g.ctx, antiquarianID, workID)
	require.NoError(g.t, err)
	require.NoError(g.t, g.st.DeleteWorkLink(g.ctx, wl.ID))
}

// book adds a known book before the Unknown Book.
func (g *graph) book(workID uint, number int) uint {
	books, err := g.st.ListBooks(g.ctx, workID)
	require.NoError(g.t, err)
	b := &model.Book{WorkID: workID, Number: model.Ptr(number), Order: len(books) - 1}
	require.NoError(g.t, g.st.CreateBook(g.ctx, b))
	_, err = g.engine.ReindexBooks(g.ctx, g.st, workID)
	require.NoError(g.t, err)
	return b.ID
}

func (g *graph) unknownWork(antiquarianID uint) uint {
	held, err := g.st.ListWorkLinks(g.ctx, antiquarianID)
	require.NoError(g.t, err)
	for _, wl := range held {
		if wl.Unknown() {
			return wl.WorkID
		}
	}
	g.t.Fatalf("antiquarian %d has no unknown work", antiquarianID)
	return 0
}

func (g *graph) unknownBook(workID uint) uint {
	books, err := g.st.ListBooks(g.ctx, workID)
	require.NoError(g.t, err)
	for _, b := range books {
		if b.Unknown {
			return b.ID
		}
	}
	g.t.Fatalf("work %d has no unknown book", workID)
	return 0
}

func (g *graph) evidence(kind model.EvidenceKind, name string) uint {
	e := &model.Evidence{Name: name}
	require.NoError(g.t, g.st.CreateEvidence(g.ctx, kind, e))
	return e.ID
}

// link places and saves a link for a fresh evidence item.
func (g *graph) link(kind model.EvidenceKind, antiquarianID, workID, bookID *uint) *model.Link {
	l := &model.Link{
		EvidenceID:    g.evidence(kind, "evidence"),
		AntiquarianID: antiquarianID,
		WorkID:        workID,
		BookID:        bookID,
	}
	require.NoError(g.t, g.engine.PlaceLink(g.ctx, g.st, kind, l, true, true, true))
	require.NoError(g.t, g.st.CreateLink(g.ctx, kind, l))
	return l
}

// ordered returns the ids of the links of a scope by order.
func (g *graph) ordered(kind model.EvidenceKind, antiquarianID *uint) []uint {
	links, err := g.st.ListLinks(g.ctx, kind, store.AntiquarianScope(antiquarianID))
	require.NoError(g.t, err)
	slices.SortFunc(links, func(a, b *model.Link) int { return cmp.Compare(a.Order, b.Order) })
	ids := make([]uint, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.ID)
	}
	return ids
}

func (g *graph) get(kind model.EvidenceKind, id uint) *model.Link {
	l, err := g.st.GetLink(g.ctx, kind, id)
	require.NoError(g.t, err)
	return l
}

func (g *graph) requireConsistent() {
	violations, err := g.engine.Check(g.ctx, g.st)
	require.NoError(g.t, err)
	require.Empty(g.t, violations)
}

func ptr(id uint) *uint {
	return &id
}
