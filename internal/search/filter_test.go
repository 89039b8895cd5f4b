package search

import (
	"testing"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_EmptyBuildsNil(t *testing.T) {
	var f Filter

	assert.Nil(t, f.Build())
	assert.Nil(t, f.With(Must, nil).Build(), "unset criteria must not add clauses")
}

func TestFilter_WithDoesNotAlias(t *testing.T) {
	a := TermQuery("f", "a")
	b := TermQuery("f", "b")
	c := TermQuery("f", "c")

	base := Filter{}.With(Must, a)
	first := base.With(Must, b)
	second := base.With(MustNot, c)

	assert.Equal(t, 1, base.Len())
	require.Equal(t, 2, first.Len())
	require.Equal(t, 2, second.Len())
	assert.Same(t, b, first.Clauses()[1].Query)
	assert.Same(t, c, second.Clauses()[1].Query)
	assert.Equal(t, MustNot, second.Clauses()[1].Occur)
}

func TestFilter_SingleMustIsUnwrapped(t *testing.T) {
	q := TermQuery("f", "a")

	assert.Same(t, q, Filter{}.With(Must, q).Build())
}

func TestFilter_CombinesOccurrences(t *testing.T) {
	f := Filter{}.
		With(Must, TermQuery("f", "a")).
		With(MustNot, TermQuery("f", "b")).
		With(Should, TermQuery("f", "c")).
		With(Should, TermQuery("f", "d"))

	bq, ok := f.Build().(*query.BooleanQuery)
	require.True(t, ok)
	assert.NotNil(t, bq.Must)
	assert.NotNil(t, bq.MustNot)
}

func TestFilter_OnlyMustNotMatchesEverythingElse(t *testing.T) {
	bq, ok := Filter{}.With(MustNot, TermQuery("f", "a")).Build().(*query.BooleanQuery)
	require.True(t, ok)

	must, ok := bq.Must.(*query.ConjunctionQuery)
	require.True(t, ok)
	require.Len(t, must.Conjuncts, 1)
	assert.IsType(t, bleve.NewMatchAllQuery(), must.Conjuncts[0])
}

func TestAnd(t *testing.T) {
	a := TermQuery("f", "a")

	assert.Nil(t, And(nil, nil))
	assert.Same(t, a, And(nil, a))
	assert.IsType(t, &query.ConjunctionQuery{}, And(a, TermQuery("f", "b")))
}

func TestSearchTermsQuery(t *testing.T) {
	assert.Nil(t, SearchTermsQuery([]string{"a"}, nil))
	assert.Nil(t, SearchTermsQuery([]string{"a"}, []string{"  ", "*"}))

	single := SearchTermsQuery([]string{"a", "b"}, []string{"Jane*"})
	disjunction, ok := single.(*query.DisjunctionQuery)
	require.True(t, ok)
	require.Len(t, disjunction.Disjuncts, 2)
	prefix, ok := disjunction.Disjuncts[0].(*query.PrefixQuery)
	require.True(t, ok)
	assert.Equal(t, "jane", prefix.Prefix)

	multi := SearchTermsQuery([]string{"a"}, []string{"jane citizen"})
	assert.IsType(t, &query.ConjunctionQuery{}, multi)
}

func TestPaginate(t *testing.T) {
	items := make([]int, 25)
	for i := range items {
		items[i] = i
	}

	tests := []struct {
		name     string
		page     int
		pageSize int
		want     int
		first    int
	}{
		{"first page", 1, 10, 10, 0},
		{"default page", 0, 10, 10, 0},
		{"partial last page", 3, 10, 5, 20},
		{"past the end", 4, 10, 0, -1},
		{"whole set", 1, 100, 25, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := Paginate(items, tt.page, tt.pageSize)
			assert.Len(t, page, tt.want)
			if tt.first >= 0 {
				assert.Equal(t, tt.first, page[0])
			}
		})
	}
}

func TestSortHits(t *testing.T) {
	hits := []Hit{
		{ID: "b", Fields: map[string]interface{}{"n": float64(2), "s": "beta"}},
		{ID: "none", Fields: map[string]interface{}{}},
		{ID: "a", Fields: map[string]interface{}{"n": float64(1), "s": "Alpha"}},
		{ID: "c", Fields: map[string]interface{}{"n": float64(3), "s": "gamma"}},
	}

	SortHits(hits, SortField{Field: "n", Type: SortInt64}, true)
	assert.Equal(t, []string{"c", "b", "a", "none"}, hitIDs(hits))

	SortHits(hits, SortField{Field: "s", Type: SortString}, false)
	assert.Equal(t, []string{"a", "b", "c", "none"}, hitIDs(hits))
}

func hitIDs(hits []Hit) []string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return ids
}
