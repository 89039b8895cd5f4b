package search

import (
	"math"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/google/uuid"
	"github.com/sha1n/policy-search-server/internal/domain"
	"github.com/sha1n/policy-search-server/internal/index"
)

// TermQuery matches documents whose field holds exactly value.
func TermQuery(field, value string) query.Query {
	q := bleve.NewTermQuery(value)
	q.SetField(field)
	return q
}

// TermsQuery matches documents whose field holds any of values exactly.
// It returns nil when values is empty.
func TermsQuery(field string, values []string) query.Query {
	if len(values) == 0 {
		return nil
	}
	if len(values) == 1 {
		return TermQuery(field, values[0])
	}
	queries := make([]query.Query, 0, len(values))
	for _, v := range values {
		queries = append(queries, TermQuery(field, v))
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// IDQuery matches documents whose identifier field equals id as a whole value.
// The zero uuid leaves the criterion unset.
func IDQuery(field string, id uuid.UUID) query.Query {
	if id == uuid.Nil {
		return nil
	}
	return TermQuery(field, index.FormatID(id))
}

// IDsQuery matches documents whose identifier field equals any of ids.
func IDsQuery(field string, ids []uuid.UUID) query.Query {
	values := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != uuid.Nil {
			values = append(values, index.FormatID(id))
		}
	}
	return TermsQuery(field, values)
}

// BoolQuery matches a flag field. A nil flag leaves the criterion unset.
func BoolQuery(field string, value *bool) query.Query {
	if value == nil {
		return nil
	}
	return TermQuery(field, index.FormatBool(*value))
}

// TicksRangeQuery matches ticks strictly between after and before. A missing
// lower bound means the epoch, a missing upper bound the greatest instant.
func TicksRangeQuery(field string, after, before *int64) query.Query {
	lower := int64(0)
	upper := domain.MaxTicks
	if after != nil {
		lower = *after
	}
	if before != nil {
		upper = *before
	}
	return ticksTermRange(field, &lower, &upper, false, false)
}

// TicksAfterQuery matches ticks strictly greater than after.
func TicksAfterQuery(field string, after int64) query.Query {
	return ticksTermRange(field, &after, nil, false, false)
}

// TicksAtOrBeforeQuery matches ticks less than or equal to before.
func TicksAtOrBeforeQuery(field string, before int64) query.Query {
	return ticksTermRange(field, nil, &before, false, true)
}

// TicksBetweenQuery matches ticks at or after from and before to.
func TicksBetweenQuery(field string, from, to int64) query.Query {
	return ticksTermRange(field, &from, &to, true, false)
}

// ticksTermRange ranges over the exact keyword copy of a tick field, whose
// terms sort like the ticks themselves.
func ticksTermRange(field string, lower, upper *int64, lowerInclusive, upperInclusive bool) query.Query {
	from := index.FormatExactInt64(math.MinInt64)
	if lower != nil {
		from = index.FormatExactInt64(*lower)
	} else {
		lowerInclusive = true
	}
	// An empty upper term leaves the range open.
	var to string
	if upper != nil {
		to = index.FormatExactInt64(*upper)
	}
	q := bleve.NewTermRangeInclusiveQuery(from, to, &lowerInclusive, &upperInclusive)
	q.SetField(index.ExactField(field))
	return q
}

// HasValueQuery matches documents holding any numeric value in field.
func HasValueQuery(field string) query.Query {
	lower := float64(math.MinInt64)
	upper := float64(domain.MaxTicks)
	inclusive := true
	q := bleve.NewNumericRangeInclusiveQuery(&lower, &upper, &inclusive, &inclusive)
	q.SetField(field)
	return q
}

// MissingValueQuery matches documents with no numeric value in field.
func MissingValueQuery(field string) query.Query {
	bq := bleve.NewBooleanQuery()
	bq.AddMust(bleve.NewMatchAllQuery())
	bq.AddMustNot(HasValueQuery(field))
	return bq
}

// SearchTermsQuery requires every term to match, as a prefix, at least one
// of fields. It returns nil when there are no usable terms.
func SearchTermsQuery(fields []string, terms []string) query.Query {
	var perTerm []query.Query
	for _, raw := range terms {
		for _, term := range strings.Fields(strings.ToLower(raw)) {
			term = strings.TrimRight(term, "*")
			if term == "" {
				continue
			}
			alternatives := make([]query.Query, 0, len(fields))
			for _, field := range fields {
				q := bleve.NewPrefixQuery(term)
				q.SetField(field)
				alternatives = append(alternatives, q)
			}
			perTerm = append(perTerm, bleve.NewDisjunctionQuery(alternatives...))
		}
	}
	if len(perTerm) == 0 {
		return nil
	}
	return And(perTerm...)
}
