package fixture

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/emrgen/rard/internal/cache"
	"github.com/emrgen/rard/internal/model"
	"github.com/emrgen/rard/internal/queue"
	"github.com/emrgen/rard/internal/reconcile"
	"github.com/emrgen/rard/internal/service"
	"github.com/emrgen/rard/internal/tester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatalogue(t *testing.T) *service.CatalogueService {
	tester.Quiet()
	return service.NewCatalogueService(tester.TestStore(t), reconcile.NewDispatcher(reconcile.NewEngine()), cache.NewNop(), queue.NewNop())
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	svc := newCatalogue(t)

	file, err := os.Open("testdata/varro.yml")
	require.NoError(t, err)
	defer file.Close()

	res, err := Import(ctx, svc, file)
	require.NoError(t, err)
	assert.Len(t, res.Antiquarians, 2)
	assert.Len(t, res.Works, 2)
	assert.Len(t, res.Books, 2)
	assert.Len(t, res.Evidence, 5)
	assert.Equal(t, 6, res.Links)

	varro := res.Antiquarians["varro"]
	fragments, err := svc.ListAntiquarianLinks(ctx, model.KindFragment, &varro)
	require.NoError(t, err)
	require.Len(t, fragments, 3)
	for i, l := range fragments {
		assert.Equal(t, i, l.Order)
	}

	inBook, err := svc.ListBookLinks(ctx, model.KindFragment, res.Books["ant1"])
	require.NoError(t, err)
	require.Len(t, inBook, 2)
	assert.Equal(t, res.Evidence["gell-1"].ID, inBook[0].EvidenceID)
	assert.Equal(t, res.Evidence["aug-1"].ID, inBook[1].EvidenceID)

	testimonia, err := svc.ListAntiquarianLinks(ctx, model.KindTestimonium, &varro)
	require.NoError(t, err)
	require.Len(t, testimonia, 1)
	assert.Nil(t, testimonia[0].WorkID)

	violations, err := svc.Check(ctx)
	require.NoError(t, err)
	assert.Empty(t, violations)

	writes, err := svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, writes)
}

func TestImport_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{
			name: "duplicate antiquarian",
			doc: `
antiquarians:
  - {key: a, name: A}
  - {key: a, name: B}`,
			want: ErrDuplicateKey,
		},
		{
			name: "unknown holder",
			doc: `
works:
  - {key: w, name: W, antiquarians: [nobody]}`,
			want: ErrUnknownKey,
		},
		{
			name: "unknown evidence",
			doc: `
antiquarians:
  - {key: a, name: A}
links:
  - {evidence: f, antiquarian: a}`,
			want: ErrUnknownKey,
		},
		{
			name: "invalid attribution",
			doc: `
antiquarians:
  - {key: a, name: A}
evidence:
  - {key: f, kind: fragment, name: F}
links:
  - {evidence: f, antiquarian: a, exclusive: true}`,
			want: service.ErrExclusiveNotAppositum,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Import(context.Background(), newCatalogue(t), strings.NewReader(tt.doc))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParse(t *testing.T) {
	f, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, f.Antiquarians)

	_, err = Parse(strings.NewReader("antiquarians:\n  - {key: a, nickname: A}\n"))
	assert.Error(t, err, "unknown fields are rejected")
}
