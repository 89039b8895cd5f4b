package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	bsearch "github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/google/uuid"
	"github.com/sha1n/policy-search-server/internal/domain"
	"github.com/sha1n/policy-search-server/internal/index"
	"github.com/sha1n/policy-search-server/internal/storage"
)

// DefaultPageSize is used when a search does not ask for a page size
const DefaultPageSize = 100

// SortType is how a sort field's values compare.
type SortType int

const (
	// SortInt64 compares numeric values
	SortInt64 SortType = iota
	// SortString compares text values case-insensitively
	SortString
)

// SortField is the physical field behind a logical sort property.
type SortField struct {
	Field string
	Type  SortType
}

// EntityConfig describes how one entity type is indexed and queried.
type EntityConfig struct {
	Schema index.Schema

	// DateFields maps logical date property names to ticks fields.
	DateFields map[string]string

	// SortFields maps logical sort property names to fields.
	SortFields map[string]SortField

	// SearchFields are matched by free-text search terms.
	SearchFields []string

	// LastUpdatedFields are compared to find when the index last changed.
	LastUpdatedFields []string
}

// Hit is one stored document returned by a search.
type Hit struct {
	ID     string
	Fields index.StoredFields
}

// Engine implements the indexing and query operations shared by every
// entity type. W is the write model the index is built from.
type Engine[W any] struct {
	config   EntityConfig
	mapping  mapping.IndexMapping
	build    func(W, int64) *index.Document
	facade   *storage.Facade
	cache    *TimestampCache
	clock    domain.Clock
	pageSize int
}

// NewEngine creates an engine for one entity type.
func NewEngine[W any](
	config EntityConfig,
	build func(W, int64) *index.Document,
	facade *storage.Facade,
	cache *TimestampCache,
	clock domain.Clock,
	pageSize int,
) (*Engine[W], error) {
	m, err := index.NewIndexMapping(config.Schema)
	if err != nil {
		return nil, err
	}
	if cache == nil {
		cache = NewTimestampCache(DefaultCacheSize, DefaultCacheTTL)
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return &Engine[W]{
		config:   config,
		mapping:  m,
		build:    build,
		facade:   facade,
		cache:    cache,
		clock:    clock,
		pageSize: pageSize,
	}, nil
}

// Entity returns the entity type the engine indexes.
func (e *Engine[W]) Entity() domain.EntityType {
	return e.config.Schema.Entity
}

// Clock returns the engine's clock.
func (e *Engine[W]) Clock() domain.Clock {
	return e.clock
}

// Location returns the storage location of a tenant's index in env.
func (e *Engine[W]) Location(tenant domain.Tenant, env domain.Environment) storage.Location {
	return storage.Location{
		TenantAlias: tenant.Alias,
		Environment: env,
		Entity:      e.Entity(),
	}
}

// CommonFilter translates the criteria every entity type shares into a
// filter. Organisation membership is left to the caller, which decides its
// polarity.
func (e *Engine[W]) CommonFilter(filters domain.EntityFilters) (Filter, error) {
	var f Filter
	f = f.With(Must, IDsQuery(index.FieldProductID, filters.ProductIDs))
	f = f.With(Must, IDQuery(index.FieldCustomerID, filters.CustomerID))
	f = f.With(Must, IDQuery(index.FieldOwnerUserID, filters.OwnerUserID))
	f = f.With(Must, BoolQuery(index.FieldIsTestData, filters.IsTestData))
	f = f.With(Must, BoolQuery(index.FieldIsDiscarded, filters.IsDiscarded))

	dateQuery, err := e.DateRangeQuery(filters.DateFilteringPropertyName, filters.AfterTicks, filters.BeforeTicks)
	if err != nil {
		return Filter{}, err
	}
	return f.With(Must, dateQuery), nil
}

// DateRangeQuery resolves a logical date property and bounds it. Without
// bounds the criterion is unset.
func (e *Engine[W]) DateRangeQuery(property string, after, before *int64) (query.Query, error) {
	if after == nil && before == nil {
		return nil, nil
	}
	field, ok := lookup(e.config.DateFields, property)
	if !ok {
		return nil, &domain.UnknownDateFilterPropertyError{Entity: e.Entity(), Property: property}
	}
	return TicksRangeQuery(field, after, before), nil
}

// SearchTermQuery matches every term as a prefix of some searchable field.
func (e *Engine[W]) SearchTermQuery(terms []string) query.Query {
	return SearchTermsQuery(e.config.SearchFields, terms)
}

// ResolveSort resolves a logical sort property. An empty property means
// no explicit ordering.
func (e *Engine[W]) ResolveSort(property string) (SortField, bool, error) {
	if strings.TrimSpace(property) == "" {
		return SortField{}, false, nil
	}
	field, ok := lookup(e.config.SortFields, property)
	if !ok {
		return SortField{}, false, &domain.UnknownSortPropertyError{Entity: e.Entity(), Property: property}
	}
	return field, true, nil
}

// SortOrder returns the index ordering for a resolved sort field.
func SortOrder(field SortField, sorted, descending bool) bsearch.SortOrder {
	if !sorted {
		return bsearch.SortOrder{&bsearch.SortDocID{}}
	}
	name := field.Field
	if field.Type == SortInt64 {
		name = index.ExactField(field.Field)
	}
	return bsearch.SortOrder{
		&bsearch.SortField{
			Field:   name,
			Type:    bsearch.SortFieldAsString,
			Desc:    descending,
			Missing: bsearch.SortFieldMissingLast,
		},
		&bsearch.SortDocID{},
	}
}

// SortHits orders hits in memory by a sort field's stored values. Hits
// without a value go last; ties keep their relative order.
func SortHits(hits []Hit, field SortField, descending bool) {
	sort.SliceStable(hits, func(i, j int) bool {
		c, ok := compareHits(hits[i], hits[j], field)
		if !ok {
			return c < 0
		}
		if descending {
			return c > 0
		}
		return c < 0
	})
}

// compareHits returns the ordering of a and b. The boolean is false when at
// least one value is missing, in which case c already places missing last.
func compareHits(a, b Hit, field SortField) (int, bool) {
	if field.Type == SortInt64 {
		av, aok := a.Fields.Int64(field.Field)
		bv, bok := b.Fields.Int64(field.Field)
		if !aok || !bok {
			return missingLast(aok, bok), false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		default:
			return 0, true
		}
	}

	av := strings.ToLower(a.Fields.String(field.Field))
	bv := strings.ToLower(b.Fields.String(field.Field))
	if av == "" || bv == "" {
		return missingLast(av != "", bv != ""), false
	}
	return strings.Compare(av, bv), true
}

func missingLast(aok, bok bool) int {
	switch {
	case aok && !bok:
		return -1
	case !aok && bok:
		return 1
	default:
		return 0
	}
}

// Paginate returns the 1-based page of items. Out-of-range pages are empty.
func Paginate[T any](items []T, page, pageSize int) []T {
	if page <= 0 {
		page = 1
	}
	start := pageSize * (page - 1)
	if pageSize <= 0 || start >= len(items) {
		return []T{}
	}
	end := min(start+pageSize, len(items))
	return items[start:end]
}

// PageSize returns the requested page size, or the engine default.
func (e *Engine[W]) PageSize(requested int) int {
	if requested <= 0 {
		return e.pageSize
	}
	return requested
}

// Search runs q against the live index and returns every matching document
// in the given order. A nil query matches everything. Nothing indexed yet
// yields no hits.
func (e *Engine[W]) Search(ctx context.Context, loc storage.Location, q query.Query, order bsearch.SortOrder) ([]Hit, error) {
	dir, ok, err := e.facade.GetLatestLiveIndexDirectory(loc)
	if err != nil {
		return nil, err
	}
	if !ok {
		slog.Info("No live index yet, returning no results", "location", loc.String())
		return nil, nil
	}

	searcher, err := e.facade.CreateIndexSearcher(dir, e.mapping)
	if err != nil {
		return nil, err
	}
	defer closeSearcher(searcher)

	count, err := searcher.DocCount()
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	if count == 0 {
		return nil, nil
	}

	if q == nil {
		q = bleve.NewMatchAllQuery()
	}
	req := bleve.NewSearchRequestOptions(q, int(count), 0, false)
	req.Fields = []string{"*"}
	if len(order) > 0 {
		req.SortByCustom(order)
	}

	res, err := searcher.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, Hit{ID: h.ID, Fields: index.StoredFields(h.Fields)})
	}
	return hits, nil
}

// AddItemsToIndex writes items into the live index, creating it on first use.
func (e *Engine[W]) AddItemsToIndex(ctx context.Context, tenant domain.Tenant, env domain.Environment, items []W) error {
	loc := e.Location(tenant, env)
	dir, err := e.facade.GetOrCreateLiveIndexDirectory(loc)
	if err != nil {
		return err
	}

	defer e.cache.Invalidate(loc.TenantAlias, loc.Environment, loc.Entity)
	return e.write(ctx, dir, items)
}

// AddItemsToRegenerationIndex writes items into the regeneration index in progress.
func (e *Engine[W]) AddItemsToRegenerationIndex(ctx context.Context, tenant domain.Tenant, env domain.Environment, items []W) error {
	loc := e.Location(tenant, env)
	dir, err := e.facade.GetOrCreateRegenerationIndexDirectory(loc)
	if err != nil {
		return err
	}

	defer e.cache.Invalidate(loc.TenantAlias, loc.Environment, loc.Entity)
	return e.write(ctx, dir, items)
}

// write upserts items through one writer. On failure the pending batch is
// dropped, the error is wrapped with the failing document, and what was
// already flushed stays in the index.
func (e *Engine[W]) write(ctx context.Context, dir string, items []W) (err error) {
	writer, err := e.facade.CreateIndexWriter(ctx, dir, e.mapping)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := writer.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close index writer: %w", closeErr)
		}
	}()

	now := domain.NowTicks(e.clock)
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			writer.Discard()
			return err
		}

		doc := e.build(item, now)
		if upsertErr := writer.Upsert(doc); upsertErr != nil {
			writer.Discard()
			return e.indexingError(doc, upsertErr)
		}
	}

	if flushErr := writer.Flush(); flushErr != nil {
		return e.indexingError(nil, flushErr)
	}

	slog.Debug("Indexed documents", "entity", e.Entity(), "dir", dir, "count", len(items))
	return nil
}

func (e *Engine[W]) indexingError(doc *index.Document, cause error) error {
	serialized := ""
	if doc != nil {
		if data, err := json.Marshal(doc); err == nil {
			serialized = string(data)
		}
	}
	return &domain.IndexingError{Entity: e.Entity(), Document: serialized, Err: cause}
}

// DeleteItemsFromIndex removes the documents of ids from the live index.
func (e *Engine[W]) DeleteItemsFromIndex(ctx context.Context, tenant domain.Tenant, env domain.Environment, ids []uuid.UUID) (err error) {
	if len(ids) == 0 {
		return &domain.EmptyIDListError{Entity: e.Entity()}
	}

	loc := e.Location(tenant, env)
	dir, ok, err := e.facade.GetLatestLiveIndexDirectory(loc)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	writer, err := e.facade.CreateIndexWriter(ctx, dir, e.mapping)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := writer.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close index writer: %w", closeErr)
		}
	}()
	defer e.cache.Invalidate(loc.TenantAlias, loc.Environment, loc.Entity)

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, index.FormatID(id))
	}
	if err := writer.Delete(keys...); err != nil {
		return err
	}
	return writer.Flush()
}

// MakeRegenerationIndexTheLiveIndex promotes the regeneration index.
func (e *Engine[W]) MakeRegenerationIndexTheLiveIndex(tenant domain.Tenant, env domain.Environment) error {
	loc := e.Location(tenant, env)
	defer e.cache.Invalidate(loc.TenantAlias, loc.Environment, loc.Entity)
	return e.facade.MakeRegenerationIndexTheLiveIndex(loc)
}

// MakeSureRegenerationFolderIsEmptyBeforeRegeneration discards any partial regeneration.
func (e *Engine[W]) MakeSureRegenerationFolderIsEmptyBeforeRegeneration(tenant domain.Tenant, env domain.Environment) error {
	return e.facade.ClearRegeneration(e.Location(tenant, env))
}

// GetIndexLastUpdatedTicksSinceEpoch returns the newest modification time in
// the live index, or nil if nothing has been indexed.
func (e *Engine[W]) GetIndexLastUpdatedTicksSinceEpoch(ctx context.Context, tenant domain.Tenant, env domain.Environment) (*int64, error) {
	return e.LastUpdated(ctx, tenant, env, e.config.LastUpdatedFields...)
}

// LastUpdated returns the greatest value of fields across the live index.
// Results are cached until the index changes or the entry expires.
func (e *Engine[W]) LastUpdated(ctx context.Context, tenant domain.Tenant, env domain.Environment, fields ...string) (*int64, error) {
	loc := e.Location(tenant, env)
	key := NewCacheKey(loc.TenantAlias, loc.Environment, loc.Entity, fields...)
	if ticks, ok := e.cache.Get(key); ok {
		return &ticks, nil
	}

	var newest *int64
	for _, field := range fields {
		order := bsearch.SortOrder{&bsearch.SortField{
			Field:   index.ExactField(field),
			Type:    bsearch.SortFieldAsString,
			Desc:    true,
			Missing: bsearch.SortFieldMissingLast,
		}}
		ticks, err := e.newest(ctx, loc, field, order)
		if err != nil {
			return nil, err
		}
		if ticks != nil && (newest == nil || *ticks > *newest) {
			newest = ticks
		}
	}

	if newest != nil {
		e.cache.Set(key, *newest)
	}
	return newest, nil
}

func (e *Engine[W]) newest(ctx context.Context, loc storage.Location, field string, order bsearch.SortOrder) (*int64, error) {
	dir, ok, err := e.facade.GetLatestLiveIndexDirectory(loc)
	if err != nil || !ok {
		return nil, err
	}

	searcher, err := e.facade.CreateIndexSearcher(dir, e.mapping)
	if err != nil {
		return nil, err
	}
	defer closeSearcher(searcher)

	req := bleve.NewSearchRequestOptions(HasValueQuery(field), 1, 0, false)
	req.Fields = []string{field, index.ExactField(field)}
	req.SortByCustom(order)

	res, err := searcher.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to read newest %s: %w", field, err)
	}
	if len(res.Hits) == 0 {
		return nil, nil
	}
	return index.StoredFields(res.Hits[0].Fields).OptionalInt64(field), nil
}

// GetEntityIndexCountBetweenDates counts the live documents created at or
// after fromTicks and before toTicks.
func (e *Engine[W]) GetEntityIndexCountBetweenDates(ctx context.Context, tenant domain.Tenant, env domain.Environment, fromTicks, toTicks int64) (int, error) {
	loc := e.Location(tenant, env)
	dir, ok, err := e.facade.GetLatestLiveIndexDirectory(loc)
	if err != nil || !ok {
		return 0, err
	}

	searcher, err := e.facade.CreateIndexSearcher(dir, e.mapping)
	if err != nil {
		return 0, err
	}
	defer closeSearcher(searcher)

	q := TicksBetweenQuery(index.FieldCreatedTimestamp, fromTicks, toTicks)
	res, err := searcher.Search(ctx, bleve.NewSearchRequestOptions(q, 0, 0, false))
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return int(res.Total), nil
}

// DocCount returns the number of documents in the live index.
func (e *Engine[W]) DocCount(tenant domain.Tenant, env domain.Environment) (uint64, error) {
	dir, ok, err := e.facade.GetLatestLiveIndexDirectory(e.Location(tenant, env))
	if err != nil || !ok {
		return 0, err
	}

	searcher, err := e.facade.CreateIndexSearcher(dir, e.mapping)
	if err != nil {
		return 0, err
	}
	defer closeSearcher(searcher)

	return searcher.DocCount()
}

func closeSearcher(s *storage.Searcher) {
	if err := s.Close(); err != nil {
		slog.Warn("Failed to close index searcher", "dir", s.Dir(), "error", err)
	}
}

// lookup finds a property case-insensitively.
func lookup[V any](m map[string]V, property string) (V, bool) {
	if v, ok := m[property]; ok {
		return v, true
	}
	for name, v := range m {
		if strings.EqualFold(name, property) {
			return v, true
		}
	}
	var zero V
	return zero, false
}

// DedupeHits appends hits to into, skipping ids already present in seen.
func DedupeHits(into []Hit, seen map[string]bool, hits []Hit) []Hit {
	for _, h := range hits {
		if seen[h.ID] {
			continue
		}
		seen[h.ID] = true
		into = append(into, h)
	}
	return into
}
