package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/emrgen/rard/internal/event"
	"github.com/emrgen/rard/internal/model"
	"github.com/emrgen/rard/internal/queue"
	"github.com/emrgen/rard/internal/reconcile"
	"github.com/emrgen/rard/internal/store"
	"github.com/emrgen/rard/internal/tester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryCache is a LinkCache kept in process.
type memoryCache struct {
	mu         sync.Mutex
	generation int64
	listings   map[string][]*model.Link
}

func newMemoryCache() *memoryCache {
	return &memoryCache{listings: make(map[string][]*model.Link)}
}

func memoryKey(generation int64, kind model.EvidenceKind, antiquarianID *uint) string {
	if antiquarianID == nil {
		return fmt.Sprintf("%d:%s:null", generation, kind)
	}
	return fmt.Sprintf("%d:%s:%d", generation, kind, *antiquarianID)
}

func (m *memoryCache) Generation(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation, nil
}

func (m *memoryCache) GetLinks(_ context.Context, generation int64, kind model.EvidenceKind, antiquarianID *uint) ([]*model.Link, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	links, ok := m.listings[memoryKey(generation, kind, antiquarianID)]
	return links, ok, nil
}

func (m *memoryCache) SetLinks(_ context.Context, generation int64, kind model.EvidenceKind, antiquarianID *uint, links []*model.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listings[memoryKey(generation, kind, antiquarianID)] = links
	return nil
}

func (m *memoryCache) Invalidate(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	return nil
}

// interleavedStore runs afterList once, right after the next ListLinks outside a transaction.
type interleavedStore struct {
	store.Store
	afterList func()
}

func (s *interleavedStore) ListLinks(ctx context.Context, kind model.EvidenceKind, filter store.LinkFilter) ([]*model.Link, error) {
	links, err := s.Store.ListLinks(ctx, kind, filter)
	if f := s.afterList; f != nil {
		s.afterList = nil
		f()
	}
	return links, err
}

// failingStore fails every link update made inside its transactions.
type failingStore struct {
	store.Store
	err error
}

func (s *failingStore) Transaction(ctx context.Context, f func(tx store.Store) error) error {
	return s.Store.Transaction(ctx, func(tx store.Store) error {
		return f(&failingStore{Store: tx, err: s.err})
	})
}

func (s *failingStore) UpdateLinkFields(context.Context, model.EvidenceKind, uint, map[string]any) error {
	return s.err
}

func TestCatalogue_WorklessTestimoniaKeepCreationOrder(t *testing.T) {
	h := newHarness(t)
	a := h.antiquarian("Varro")
	w := h.work("Antiquitates", a)
	onWork := h.link(LinkRequest{Kind: model.KindTestimonium, EvidenceID: h.evidence(model.KindTestimonium, "W"), AntiquarianID: &a, WorkID: &w})

	var created []uint
	for _, name := range []string{"T1", "T2", "T3", "T4"} {
		e := h.evidence(model.KindTestimonium, name)
		h.link(LinkRequest{Kind: model.KindTestimonium, EvidenceID: e, AntiquarianID: &a})
		created = append(created, e)
	}

	listed := h.links(model.KindTestimonium, &a)
	assert.Equal(t, append(append([]uint{}, created...), onWork.EvidenceID), evidenceIDs(listed))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, orders(listed))

	// bulk additions are appended to the work-less group as well
	for _, name := range []string{"T5", "T6"} {
		created = append(created, h.evidence(model.KindTestimonium, name))
	}
	require.NoError(t, h.svc.SetAntiquarianEvidence(h.ctx, model.KindTestimonium, a, append(append([]uint{}, created...), onWork.EvidenceID)))

	listed = h.links(model.KindTestimonium, &a)
	assert.Equal(t, append(append([]uint{}, created...), onWork.EvidenceID), evidenceIDs(listed))
	h.requireConsistent()
}

func TestCatalogue_OrphanDropsAntiquarianCertainty(t *testing.T) {
	h := newHarness(t)
	a := h.antiquarian("Varro")
	solo := h.work("Solo", a)
	l := h.link(LinkRequest{
		Kind:                model.KindFragment,
		EvidenceID:          h.evidence(model.KindFragment, "F"),
		AntiquarianID:       &a,
		WorkID:              &solo,
		DefiniteAntiquarian: true,
		DefiniteWork:        true,
	})

	require.NoError(t, h.svc.RemoveWork(h.ctx, a, solo))
	orphan := h.get(model.KindFragment, l.ID)
	assert.Nil(t, orphan.AntiquarianID)
	assert.False(t, orphan.DefiniteAntiquarian)
	assert.True(t, orphan.DefiniteWork)
	h.requireConsistent()

	// the orphan's own attribution is a valid update
	updated, err := h.svc.UpdateLink(h.ctx, l.ID, &LinkRequest{
		Kind:                model.KindFragment,
		EvidenceID:          orphan.EvidenceID,
		WorkID:              orphan.WorkID,
		BookID:              orphan.BookID,
		DefiniteAntiquarian: orphan.DefiniteAntiquarian,
		DefiniteWork:        orphan.DefiniteWork,
		DefiniteBook:        orphan.DefiniteBook,
	})
	require.NoError(t, err)
	assert.Equal(t, orphan.WorkOrder, updated.WorkOrder)
	assert.Equal(t, orphan.Order, updated.Order)
	h.requireConsistent()
}

func TestCatalogue_PublishedLinksCarryCommittedPositions(t *testing.T) {
	h := newHarness(t)
	a := h.antiquarian("Varro")
	w := h.work("Antiquitates", a)
	direct := h.link(LinkRequest{Kind: model.KindFragment, EvidenceID: h.evidence(model.KindFragment, "F1"), AntiquarianID: &a})

	h.published.Reset()
	onWork := h.link(LinkRequest{Kind: model.KindFragment, EvidenceID: h.evidence(model.KindFragment, "F2"), AntiquarianID: &a, WorkID: &w})

	envelopes := h.published.Envelopes()
	require.Len(t, envelopes, 1)
	require.Equal(t, "link.created", envelopes[0].Name)
	var created event.LinkCreated
	require.NoError(t, json.Unmarshal(envelopes[0].Payload, &created))

	// the link on a known work moves ahead of the Unknown Work link during reconciliation
	assert.Equal(t, 0, onWork.Order)
	assert.Equal(t, onWork.Order, created.Link.Order)
	assert.Equal(t, onWork.WorkOrder, created.Link.WorkOrder)
	assert.Equal(t, 1, h.get(model.KindFragment, direct.ID).Order)
}

func TestCatalogue_FailedReconciliationRollsBackEdit(t *testing.T) {
	h := newHarness(t)
	a := h.antiquarian("Varro")
	w := h.work("Antiquitates", a)
	var ids []uint
	for _, name := range []string{"F1", "F2", "F3"} {
		l := h.link(LinkRequest{Kind: model.KindFragment, EvidenceID: h.evidence(model.KindFragment, name), AntiquarianID: &a, WorkID: &w})
		ids = append(ids, l.ID)
	}

	errWrite := errors.New("write failed")
	recorder := queue.NewRecorder()
	broken := NewCatalogueService(&failingStore{Store: h.st, err: errWrite}, reconcile.NewDispatcher(reconcile.NewEngine()), newMemoryCache(), recorder)

	err := broken.DeleteLink(h.ctx, model.KindFragment, ids[0])
	require.ErrorIs(t, err, errWrite)
	assert.Empty(t, recorder.Names())

	// the delete is undone together with the failed renumbering
	h.get(model.KindFragment, ids[0])
	works, err := h.svc.ListWorkLinks(h.ctx, model.KindFragment, w)
	require.NoError(t, err)
	require.Len(t, works, 3)
	for i, l := range works {
		assert.Equal(t, ids[i], l.ID)
		assert.Equal(t, i, l.WorkOrder)
	}
	h.requireConsistent()
}

func TestCatalogue_ListingLoadedBeforeCommitIsNotCached(t *testing.T) {
	ctx := context.Background()
	interleaved := &interleavedStore{Store: tester.TestStore(t)}
	svc := NewCatalogueService(interleaved, reconcile.NewDispatcher(reconcile.NewEngine()), newMemoryCache(), queue.NewNop())

	a, err := svc.CreateAntiquarian(ctx, &CreateAntiquarianRequest{Name: "Varro"})
	require.NoError(t, err)
	link := func(name string) {
		e, err := svc.CreateEvidence(ctx, &CreateEvidenceRequest{Kind: model.KindTestimonium, Name: name})
		require.NoError(t, err)
		_, err = svc.CreateLink(ctx, &LinkRequest{Kind: model.KindTestimonium, EvidenceID: e.ID, AntiquarianID: &a.ID})
		require.NoError(t, err)
	}
	link("T1")

	// another edit commits between the database read and the cache write
	interleaved.afterList = func() { link("T2") }
	first, err := svc.ListAntiquarianLinks(ctx, model.KindTestimonium, &a.ID)
	require.NoError(t, err)
	assert.Len(t, first, 1)

	second, err := svc.ListAntiquarianLinks(ctx, model.KindTestimonium, &a.ID)
	require.NoError(t, err)
	assert.Len(t, second, 2)

	// the fresh listing is cached from now on
	third, err := svc.ListAntiquarianLinks(ctx, model.KindTestimonium, &a.ID)
	require.NoError(t, err)
	assert.Equal(t, second, third)
}
