package reconcile

import (
	"errors"
	"testing"

	"github.com/emrgen/rard/internal/model"
	"github.com/emrgen/rard/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_ReindexWorkLinks(t *testing.T) {
	g := newGraph(t)
	a := g.antiquarian("Varro")
	w1 := g.work("De lingua Latina", a)
	w2 := g.work("Antiquitates", a)
	w3 := g.work("Imagines", a)

	for workID, order := range map[uint]int{w1: 7, w2: 3, w3: 12} {
		wl, err := g.st.GetWorkLink(g.ctx, a, workID)
		require.NoError(t, err)
		require.NoError(t, g.st.UpdateWorkLinkOrder(g.ctx, wl.ID, order))
	}

	writes, err := g.engine.ReindexWorkLinks(g.ctx, g.st, a)
	require.NoError(t, err)
	assert.Equal(t, 3, writes)

	links, err := g.st.ListWorkLinks(g.ctx, a)
	require.NoError(t, err)
	got := map[uint]int{}
	for _, wl := range links {
		if !wl.Unknown() {
			got[wl.WorkID] = wl.Order
		}
	}
	assert.Equal(t, map[uint]int{w2: 0, w1: 1, w3: 2}, got)

	writes, err = g.engine.ReindexWorkLinks(g.ctx, g.st, a)
	require.NoError(t, err)
	assert.Zero(t, writes)
}

func TestEngine_MoveWorkLink(t *testing.T) {
	g := newGraph(t)
	a := g.antiquarian("Varro")
	w1 := g.work("W1", a)
	w2 := g.work("W2", a)
	w3 := g.work("W3", a)

	_, err := g.engine.MoveWorkLink(g.ctx, g.st, a, w3, 0)
	require.NoError(t, err)

	for workID, want := range map[uint]int{w3: 0, w1: 1, w2: 2} {
		wl, err := g.st.GetWorkLink(g.ctx, a, workID)
		require.NoError(t, err)
		assert.Equal(t, want, wl.Order, "work %d", workID)
	}

	_, err = g.engine.MoveWorkLink(g.ctx, g.st, a, g.unknownWork(a), 0)
	assert.ErrorIs(t, err, ErrPlaceholder)

	other := g.work("W4")
	_, err = g.engine.MoveWorkLink(g.ctx, g.st, a, other, 0)
	assert.ErrorIs(t, err, ErrNotInScope)
}

func TestEngine_ReindexEvidenceLinks_Placement(t *testing.T) {
	tests := []struct {
		kind model.EvidenceKind
		// want lists the link names in expected order
		want []string
	}{
		{kind: model.KindFragment, want: []string{"w1", "w2a", "w2b", "unknown", "none"}},
		{kind: model.KindAppositum, want: []string{"w1", "w2a", "w2b", "unknown", "none"}},
		{kind: model.KindTestimonium, want: []string{"none", "unknown", "w1", "w2a", "w2b"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			g := newGraph(t)
			a := g.antiquarian("Varro")
			w1 := g.work("W1", a)
			w2 := g.work("W2", a)
			u := g.unknownWork(a)

			// created out of display order on purpose
			names := map[uint]string{}
			add := func(name string, workID *uint) {
				names[g.link(tt.kind, ptr(a), workID, nil).ID] = name
			}
			add("unknown", ptr(u))
			add("w2a", ptr(w2))
			add("none", nil)
			add("w1", ptr(w1))
			add("w2b", ptr(w2))

			_, err := g.engine.ReindexEvidenceLinks(g.ctx, g.st, a)
			require.NoError(t, err)

			var got []string
			for _, id := range g.ordered(tt.kind, ptr(a)) {
				got = append(got, names[id])
			}
			assert.Equal(t, tt.want, got)

			writes, err := g.engine.ReindexEvidenceLinks(g.ctx, g.st, a)
			require.NoError(t, err)
			assert.Zero(t, writes)
			g.requireConsistent()
		})
	}
}

func TestEngine_ReindexEvidenceLinks_FollowsWorkOrder(t *testing.T) {
	g := newGraph(t)
	a := g.antiquarian("Varro")
	w1 := g.work("W1", a)
	w2 := g.work("W2", a)

	l1 := g.link(model.KindFragment, ptr(a), ptr(w1), nil)
	l2 := g.link(model.KindFragment, ptr(a), ptr(w2), nil)
	_, err := g.engine.ReindexEvidenceLinks(g.ctx, g.st, a)
	require.NoError(t, err)
	assert.Equal(t, []uint{l1.ID, l2.ID}, g.ordered(model.KindFragment, ptr(a)))

	_, err = g.engine.MoveWorkLink(g.ctx, g.st, a, w2, 0)
	require.NoError(t, err)
	_, err = g.engine.ReindexEvidenceLinks(g.ctx, g.st, a)
	require.NoError(t, err)
	assert.Equal(t, []uint{l2.ID, l1.ID}, g.ordered(model.KindFragment, ptr(a)))
}

func TestEngine_ReindexEvidenceLinks_PruneAndOrphan(t *testing.T) {
	g := newGraph(t)
	a := g.antiquarian("Varro")
	b := g.antiquarian("Verrius Flaccus")
	shared := g.work("Shared", a, b)
	solo := g.work("Solo", a)

	f1 := g.link(model.KindFragment, ptr(a), ptr(shared), nil)
	f2 := g.link(model.KindFragment, ptr(b), ptr(shared), nil)
	f3 := g.link(model.KindFragment, ptr(a), ptr(solo), nil)
	require.NoError(t, g.st.UpdateLinkFields(g.ctx, model.KindFragment, f3.ID, map[string]any{"definite_antiquarian": true}))
	x1 := g.link(model.KindAppositum, ptr(a), ptr(solo), nil)
	require.NoError(t, g.st.UpdateLinkFields(g.ctx, model.KindAppositum, x1.ID, map[string]any{"exclusive": true}))
	x2 := g.link(model.KindAppositum, ptr(a), ptr(solo), nil)
	for _, id := range []uint{a, b} {
		_, err := g.engine.ReindexEvidenceLinks(g.ctx, g.st, id)
		require.NoError(t, err)
	}

	g.release(a, shared)
	g.release(a, solo)
	_, err := g.engine.ReindexEvidenceLinks(g.ctx, g.st, a)
	require.NoError(t, err)

	_, err = g.st.GetLink(g.ctx, model.KindFragment, f1.ID)
	assert.ErrorIs(t, err, store.ErrNotFound, "link on a work still held by others is deleted")
	_, err = g.st.GetLink(g.ctx, model.KindAppositum, x1.ID)
	assert.ErrorIs(t, err, store.ErrNotFound, "exclusive appositum is deleted")

	orphan := g.get(model.KindFragment, f3.ID)
	assert.Nil(t, orphan.AntiquarianID)
	assert.False(t, orphan.DefiniteAntiquarian, "an orphan is not definite about an antiquarian")
	assert.Equal(t, 0, orphan.Order)
	assert.Nil(t, g.get(model.KindAppositum, x2.ID).AntiquarianID)

	kept := g.get(model.KindFragment, f2.ID)
	assert.Equal(t, 0, kept.WorkOrder, "work order closes the gap left by the pruned link")
	assert.Equal(t, []uint{f2.ID}, g.ordered(model.KindFragment, ptr(b)))

	_, err = g.engine.ReindexWorkLinks(g.ctx, g.st, a)
	require.NoError(t, err)
	g.requireConsistent()
}

func TestEngine_ReindexNullLinks(t *testing.T) {
	g := newGraph(t)
	a := g.antiquarian("Varro")
	w1 := g.work("W1")
	w2 := g.work("W2")
	held := g.work("Held", a)

	onW2 := g.link(model.KindFragment, nil, ptr(w2), nil)
	onW1 := g.link(model.KindFragment, nil, ptr(w1), nil)
	onW1b := g.link(model.KindFragment, nil, ptr(w1), nil)
	// a null link on a held work ranks by the association order of that work
	onHeld := g.link(model.KindFragment, nil, ptr(held), nil)

	_, err := g.engine.ReindexNullLinks(g.ctx, g.st)
	require.NoError(t, err)
	assert.Equal(t, []uint{onHeld.ID, onW1.ID, onW1b.ID, onW2.ID}, g.ordered(model.KindFragment, nil))

	writes, err := g.engine.ReindexNullLinks(g.ctx, g.st)
	require.NoError(t, err)
	assert.Zero(t, writes)
}

func TestEngine_CollateUnknown(t *testing.T) {
	g := newGraph(t)
	a := g.antiquarian("Varro")
	canonical := g.unknownWork(a)

	duplicate := &model.Work{Name: model.UnknownWorkName, Unknown: true}
	require.NoError(t, g.st.CreateWork(g.ctx, duplicate))
	_, err := g.engine.EnsureUnknownBook(g.ctx, g.st, duplicate.ID)
	require.NoError(t, err)
	require.NoError(t, g.st.CreateWorkLink(g.ctx, &model.WorkLink{AntiquarianID: a, WorkID: duplicate.ID}))

	l1 := g.link(model.KindFragment, ptr(a), ptr(canonical), ptr(g.unknownBook(canonical)))
	l2 := g.link(model.KindFragment, ptr(a), ptr(duplicate.ID), ptr(g.unknownBook(duplicate.ID)))
	l3 := g.link(model.KindFragment, ptr(a), ptr(duplicate.ID), nil)

	_, err = g.engine.CollateUnknown(g.ctx, g.st, a)
	require.NoError(t, err)

	_, err = g.st.GetWork(g.ctx, duplicate.ID)
	assert.True(t, errors.Is(err, store.ErrNotFound))
	assert.Equal(t, canonical, g.unknownWork(a))

	book := g.unknownBook(canonical)
	for i, id := range []uint{l1.ID, l2.ID, l3.ID} {
		l := g.get(model.KindFragment, id)
		assert.Equal(t, canonical, *l.WorkID)
		assert.Equal(t, i, l.WorkOrder)
	}
	assert.Equal(t, book, *g.get(model.KindFragment, l2.ID).BookID)
	assert.Equal(t, 1, *g.get(model.KindFragment, l2.ID).OrderInBook)
	assert.Nil(t, g.get(model.KindFragment, l3.ID).BookID)

	writes, err := g.engine.CollateUnknown(g.ctx, g.st, a)
	require.NoError(t, err)
	assert.Zero(t, writes)
	writes, err = g.engine.CreateUnknownWork(g.ctx, g.st, a)
	require.NoError(t, err)
	assert.Zero(t, writes)

	_, err = g.engine.ReindexEvidenceLinks(g.ctx, g.st, a)
	require.NoError(t, err)
	g.requireConsistent()
}

func TestEngine_CopyLinksForWork(t *testing.T) {
	g := newGraph(t)
	a := g.antiquarian("Varro")
	b := g.antiquarian("Verrius Flaccus")
	w := g.work("De verborum significatu", b)
	k := g.book(w, 1)

	f1 := g.link(model.KindFragment, ptr(b), ptr(w), ptr(k))
	f2 := g.link(model.KindFragment, ptr(b), ptr(w), nil)
	x1 := g.link(model.KindAppositum, ptr(b), ptr(w), nil)
	require.NoError(t, g.st.UpdateLinkFields(g.ctx, model.KindAppositum, x1.ID, map[string]any{"exclusive": true}))
	x2 := g.link(model.KindAppositum, ptr(b), ptr(w), nil)

	g.hold(a, w)
	writes, err := g.engine.CopyLinksForWork(g.ctx, g.st, a, w)
	require.NoError(t, err)
	assert.Equal(t, 3, writes)

	copies, err := g.st.ListLinks(g.ctx, model.KindFragment, store.LinkFilter{AntiquarianID: ptr(a)})
	require.NoError(t, err)
	require.Len(t, copies, 2)
	assert.Equal(t, f1.EvidenceID, copies[0].EvidenceID)
	assert.Equal(t, 2, copies[0].WorkOrder)
	assert.Equal(t, k, *copies[0].BookID)
	assert.Equal(t, 1, *copies[0].OrderInBook)
	assert.Equal(t, f2.EvidenceID, copies[1].EvidenceID)
	assert.Equal(t, 3, copies[1].WorkOrder)
	assert.Nil(t, copies[1].OrderInBook)

	apposita, err := g.st.ListLinks(g.ctx, model.KindAppositum, store.LinkFilter{AntiquarianID: ptr(a)})
	require.NoError(t, err)
	require.Len(t, apposita, 1, "exclusive apposita are not shared")
	assert.Equal(t, x2.EvidenceID, apposita[0].EvidenceID)

	writes, err = g.engine.CopyLinksForWork(g.ctx, g.st, a, w)
	require.NoError(t, err)
	assert.Zero(t, writes)

	for _, id := range []uint{a, b} {
		_, err := g.engine.ReindexEvidenceLinks(g.ctx, g.st, id)
		require.NoError(t, err)
	}
	g.requireConsistent()
}

func TestEngine_CopyLinksForWork_ReplacesOrphans(t *testing.T) {
	g := newGraph(t)
	a := g.antiquarian("Varro")
	w := g.work("Orphaned")
	orphan := g.link(model.KindFragment, nil, ptr(w), nil)

	g.hold(a, w)
	_, err := g.engine.CopyLinksForWork(g.ctx, g.st, a, w)
	require.NoError(t, err)

	_, err = g.st.GetLink(g.ctx, model.KindFragment, orphan.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, g.ordered(model.KindFragment, nil))

	copies, err := g.st.ListLinks(g.ctx, model.KindFragment, store.LinkFilter{WorkID: ptr(w)})
	require.NoError(t, err)
	require.Len(t, copies, 1)
	assert.True(t, copies[0].HeldBy(a))
	assert.Equal(t, orphan.EvidenceID, copies[0].EvidenceID)
	assert.Equal(t, 0, copies[0].WorkOrder)
}

func TestEngine_MoveBookRegroupsWork(t *testing.T) {
	g := newGraph(t)
	a := g.antiquarian("Varro")
	w := g.work("W", a)
	k1 := g.book(w, 1)
	k2 := g.book(w, 2)

	l1 := g.link(model.KindFragment, ptr(a), ptr(w), ptr(k1))
	l2 := g.link(model.KindFragment, ptr(a), ptr(w), ptr(k2))
	l3 := g.link(model.KindFragment, ptr(a), ptr(w), ptr(k1))

	_, err := g.engine.MoveBook(g.ctx, g.st, k2, 0)
	require.NoError(t, err)
	_, err = g.engine.RegroupWorkByBooks(g.ctx, g.st, model.KindFragment, w)
	require.NoError(t, err)

	books, err := g.st.ListBooksByIDs(g.ctx, []uint{k1, k2})
	require.NoError(t, err)
	for _, b := range books {
		if b.ID == k2 {
			assert.Equal(t, 0, b.Order)
		} else {
			assert.Equal(t, 1, b.Order)
		}
	}

	assert.Equal(t, 0, g.get(model.KindFragment, l2.ID).WorkOrder)
	assert.Equal(t, 1, g.get(model.KindFragment, l1.ID).WorkOrder)
	assert.Equal(t, 2, g.get(model.KindFragment, l3.ID).WorkOrder)
	assert.Equal(t, 1, *g.get(model.KindFragment, l3.ID).OrderInBook)

	_, err = g.engine.MoveBook(g.ctx, g.st, g.unknownBook(w), 0)
	assert.ErrorIs(t, err, ErrPlaceholder)
}

func TestEngine_MoveLink(t *testing.T) {
	g := newGraph(t)
	a := g.antiquarian("Varro")
	w := g.work("W", a)
	k := g.book(w, 1)

	l1 := g.link(model.KindTestimonium, ptr(a), ptr(w), ptr(k))
	l2 := g.link(model.KindTestimonium, ptr(a), ptr(w), ptr(k))
	l3 := g.link(model.KindTestimonium, ptr(a), ptr(w), ptr(k))

	_, err := g.engine.MoveLink(g.ctx, g.st, model.KindTestimonium, l3.ID, "work", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, g.get(model.KindTestimonium, l3.ID).WorkOrder)
	assert.Equal(t, 1, g.get(model.KindTestimonium, l1.ID).WorkOrder)
	assert.Equal(t, 2, g.get(model.KindTestimonium, l2.ID).WorkOrder)

	_, err = g.engine.MoveLink(g.ctx, g.st, model.KindTestimonium, l1.ID, "book", 99)
	require.NoError(t, err)
	assert.Equal(t, 2, *g.get(model.KindTestimonium, l1.ID).OrderInBook)
	assert.Equal(t, 0, *g.get(model.KindTestimonium, l2.ID).OrderInBook)
	assert.Equal(t, 1, *g.get(model.KindTestimonium, l3.ID).OrderInBook)
}

func TestEngine_ReconcileAll(t *testing.T) {
	g := newGraph(t)
	a := g.antiquarian("Varro")
	b := g.antiquarian("Cato")
	w := g.work("Origines", a, b)
	k := g.book(w, 1)
	l1 := g.link(model.KindFragment, ptr(a), ptr(w), ptr(k))
	l2 := g.link(model.KindFragment, ptr(b), ptr(w), nil)
	g.link(model.KindTestimonium, ptr(a), nil, nil)

	// scramble every index
	require.NoError(t, g.st.UpdateLinkFields(g.ctx, model.KindFragment, l1.ID, map[string]any{"order": 9, "work_order": 4, "order_in_book": 6}))
	require.NoError(t, g.st.UpdateLinkFields(g.ctx, model.KindFragment, l2.ID, map[string]any{"order": 3, "work_order": 8}))
	require.NoError(t, g.st.UpdateBookOrder(g.ctx, k, 5))
	wl, err := g.st.GetWorkLink(g.ctx, b, w)
	require.NoError(t, err)
	require.NoError(t, g.st.UpdateWorkLinkOrder(g.ctx, wl.ID, 2))

	violations, err := g.engine.Check(g.ctx, g.st)
	require.NoError(t, err)
	assert.NotEmpty(t, violations)

	writes, err := g.engine.ReconcileAll(g.ctx, g.st)
	require.NoError(t, err)
	assert.Positive(t, writes)
	g.requireConsistent()

	writes, err = g.engine.ReconcileAll(g.ctx, g.st)
	require.NoError(t, err)
	assert.Zero(t, writes)
}
