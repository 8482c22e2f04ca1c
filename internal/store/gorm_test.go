package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/emrgen/rard/internal/model"
	"github.com/emrgen/rard/internal/store"
	"github.com/emrgen/rard/internal/tester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormStore_LinkTablesAreSeparate(t *testing.T) {
	ctx := context.Background()
	st := tester.TestStore(t)

	e := &model.Evidence{Name: "Gellius 1.16.3"}
	require.NoError(t, st.CreateEvidence(ctx, model.KindFragment, e))

	link := &model.Link{EvidenceID: e.ID, AntiquarianID: model.Ptr(uint(1)), OrderInBook: model.Ptr(0)}
	require.NoError(t, st.CreateLink(ctx, model.KindFragment, link))

	_, err := st.GetLink(ctx, model.KindFragment, link.ID)
	require.NoError(t, err)
	_, err = st.GetLink(ctx, model.KindTestimonium, link.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = st.GetEvidence(ctx, model.EvidenceRef{Kind: model.KindAppositum, ID: e.ID})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGormStore_LinkFilter(t *testing.T) {
	ctx := context.Background()
	st := tester.TestStore(t)

	a := model.Ptr(uint(1))
	w := model.Ptr(uint(2))
	links := []*model.Link{
		{EvidenceID: 1, AntiquarianID: a, WorkID: w},
		{EvidenceID: 2, AntiquarianID: a},
		{EvidenceID: 1, WorkID: w},
	}
	for _, l := range links {
		require.NoError(t, st.CreateLink(ctx, model.KindAppositum, l))
	}

	held, err := st.ListLinks(ctx, model.KindAppositum, store.AntiquarianScope(a))
	require.NoError(t, err)
	assert.Len(t, held, 2)

	unattributed, err := st.ListLinks(ctx, model.KindAppositum, store.AntiquarianScope(nil))
	require.NoError(t, err)
	require.Len(t, unattributed, 1)
	assert.Equal(t, links[2].ID, unattributed[0].ID)

	count, err := st.CountLinks(ctx, model.KindAppositum, store.LinkFilter{WorkIDs: []uint{*w}, EvidenceID: model.Ptr(uint(1))})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestGormStore_UpdateOrderColumn(t *testing.T) {
	ctx := context.Background()
	st := tester.TestStore(t)

	l := &model.Link{EvidenceID: 1}
	require.NoError(t, st.CreateLink(ctx, model.KindFragment, l))
	require.NoError(t, st.UpdateLinkFields(ctx, model.KindFragment, l.ID, map[string]any{"order": 4, "work_order": 2}))

	got, err := st.GetLink(ctx, model.KindFragment, l.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Order)
	assert.Equal(t, 2, got.WorkOrder)
}

func TestGormStore_TransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	st := tester.TestStore(t)
	boom := errors.New("boom")

	err := st.Transaction(ctx, func(tx store.Store) error {
		if err := tx.CreateAntiquarian(ctx, &model.Antiquarian{Name: "Varro"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	antiquarians, err := st.ListAntiquarians(ctx)
	require.NoError(t, err)
	assert.Empty(t, antiquarians)
}

func TestGormStore_DeleteWorkCascades(t *testing.T) {
	ctx := context.Background()
	st := tester.TestStore(t)

	a := &model.Antiquarian{Name: "Varro"}
	require.NoError(t, st.CreateAntiquarian(ctx, a))
	w := &model.Work{Name: "Antiquitates"}
	require.NoError(t, st.CreateWork(ctx, w))
	require.NoError(t, st.CreateWorkLink(ctx, &model.WorkLink{AntiquarianID: a.ID, WorkID: w.ID}))
	b := &model.Book{WorkID: w.ID}
	require.NoError(t, st.CreateBook(ctx, b))
	for _, kind := range model.AllKinds {
		require.NoError(t, st.CreateLink(ctx, kind, &model.Link{EvidenceID: 1, AntiquarianID: &a.ID, WorkID: &w.ID, BookID: &b.ID}))
	}

	wl, err := st.GetWorkLink(ctx, a.ID, w.ID)
	require.NoError(t, err)
	require.NotNil(t, wl.Work)
	assert.False(t, wl.Unknown())

	require.NoError(t, st.DeleteWork(ctx, w.ID))

	for _, kind := range model.AllKinds {
		count, err := st.CountLinks(ctx, kind, store.LinkFilter{})
		require.NoError(t, err)
		assert.Zero(t, count, kind)
	}
	_, err = st.GetBook(ctx, b.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.GetWorkLink(ctx, a.ID, w.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
