package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Occur is how a clause takes part in a composite filter.
type Occur int

const (
	// Must clauses all have to match
	Must Occur = iota
	// MustNot clauses exclude matching documents
	MustNot
	// Should clauses are alternatives; at least one has to match
	Should
)

// Clause is one criterion of a composite filter.
type Clause struct {
	Occur Occur
	Query query.Query
}

// Filter is an immutable set of clauses. With returns a new filter, so a
// base filter can be extended many times without the extensions seeing each other.
type Filter struct {
	clauses []Clause
}

// With returns a copy of f extended by a clause. A nil query leaves the
// criterion unset and the filter unchanged.
func (f Filter) With(occur Occur, q query.Query) Filter {
	if q == nil {
		return f
	}
	clauses := make([]Clause, len(f.clauses), len(f.clauses)+1)
	copy(clauses, f.clauses)
	return Filter{clauses: append(clauses, Clause{Occur: occur, Query: q})}
}

// Len returns the number of clauses.
func (f Filter) Len() int {
	return len(f.clauses)
}

// Clauses returns a copy of the filter's clauses.
func (f Filter) Clauses() []Clause {
	out := make([]Clause, len(f.clauses))
	copy(out, f.clauses)
	return out
}

// Build combines the clauses into one query. A filter without clauses
// returns nil, which callers treat as match-all.
func (f Filter) Build() query.Query {
	if len(f.clauses) == 0 {
		return nil
	}

	var must, mustNot, should []query.Query
	for _, c := range f.clauses {
		switch c.Occur {
		case Must:
			must = append(must, c.Query)
		case MustNot:
			mustNot = append(mustNot, c.Query)
		case Should:
			should = append(should, c.Query)
		}
	}

	if len(should) > 0 {
		must = append(must, bleve.NewDisjunctionQuery(should...))
	}
	if len(mustNot) == 0 && len(must) == 1 {
		return must[0]
	}
	if len(must) == 0 {
		must = append(must, bleve.NewMatchAllQuery())
	}

	bq := bleve.NewBooleanQuery()
	bq.AddMust(must...)
	if len(mustNot) > 0 {
		bq.AddMustNot(mustNot...)
	}
	return bq
}

// And combines queries conjunctively, skipping nil ones. It returns nil when
// every query is nil.
func And(queries ...query.Query) query.Query {
	var present []query.Query
	for _, q := range queries {
		if q != nil {
			present = append(present, q)
		}
	}
	switch len(present) {
	case 0:
		return nil
	case 1:
		return present[0]
	default:
		return bleve.NewConjunctionQuery(present...)
	}
}
