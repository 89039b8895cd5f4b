package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/google/uuid"
	"github.com/sha1n/policy-search-server/internal/domain"
	"github.com/sha1n/policy-search-server/internal/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLocation = Location{
	TenantAlias: "acme",
	Environment: domain.Production,
	Entity:      domain.EntityTypeQuote,
}

type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time {
	return c.now
}

func newTestFacade(t *testing.T) (*Facade, *stepClock) {
	t.Helper()
	clock := &stepClock{now: time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)}
	f := NewFacade(Config{
		BaseDir:     t.TempDir(),
		BatchSize:   2,
		LockTimeout: 200 * time.Millisecond,
	}, clock)
	return f, clock
}

func quoteMapping(t *testing.T) mapping.IndexMapping {
	t.Helper()
	m, err := index.NewIndexMapping(index.QuoteSchema)
	require.NoError(t, err)
	return m
}

func quoteDoc(id uuid.UUID, title string) *index.Document {
	return index.BuildQuoteDocument(domain.QuoteWriteModel{
		ID:                id,
		QuoteTitle:        title,
		QuoteState:        "Incomplete",
		CreatedTicks:      1,
		LastModifiedTicks: 1,
	}, 1)
}

func writeDocs(t *testing.T, f *Facade, dir string, docs ...*index.Document) {
	t.Helper()
	w, err := f.CreateIndexWriter(context.Background(), dir, quoteMapping(t))
	require.NoError(t, err)
	for _, doc := range docs {
		require.NoError(t, w.Upsert(doc))
	}
	require.NoError(t, w.Close())
}

func docCount(t *testing.T, f *Facade, dir string) uint64 {
	t.Helper()
	s, err := f.CreateIndexSearcher(dir, quoteMapping(t))
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()
	n, err := s.DocCount()
	require.NoError(t, err)
	return n
}

func TestFacade_GetLatestLiveIndexDirectory_NothingIndexed(t *testing.T) {
	f, _ := newTestFacade(t)

	dir, ok, err := f.GetLatestLiveIndexDirectory(testLocation)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, dir)
}

func TestFacade_DirectoryLayout(t *testing.T) {
	f, _ := newTestFacade(t)

	live, err := f.CreateNewLiveDirectory(testLocation)
	require.NoError(t, err)
	regen, err := f.CreateRegenerationIndexDirectory(testLocation)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(f.BaseDir(), "Live", "acme", "Production", "Quote", "20240501-093000"), live)
	assert.Equal(t, filepath.Join(f.BaseDir(), "Regeneration", "acme", "Production", "Quote", "20240501-093001"), regen)
}

func TestFacade_LatestIsLexicographicMax(t *testing.T) {
	f, clock := newTestFacade(t)

	first, err := f.CreateNewLiveDirectory(testLocation)
	require.NoError(t, err)
	clock.now = clock.now.Add(time.Hour)
	second, err := f.CreateNewLiveDirectory(testLocation)
	require.NoError(t, err)

	latest, ok, err := f.GetLatestLiveIndexDirectory(testLocation)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second, latest)
	assert.Less(t, filepath.Base(first), filepath.Base(second))
}

func TestFacade_GetOrCreateRegenerationIndexDirectory_ReusesExisting(t *testing.T) {
	f, _ := newTestFacade(t)

	first, err := f.GetOrCreateRegenerationIndexDirectory(testLocation)
	require.NoError(t, err)
	second, err := f.GetOrCreateRegenerationIndexDirectory(testLocation)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestFacade_CreateIndexWriter_NilDirectory(t *testing.T) {
	f, _ := newTestFacade(t)

	_, err := f.CreateIndexWriter(context.Background(), "", quoteMapping(t))
	assert.ErrorIs(t, err, ErrNilDirectory)

	_, err = f.CreateIndexSearcher("", quoteMapping(t))
	assert.ErrorIs(t, err, ErrNilDirectory)
}

func TestFacade_CreateIndexSearcher_CreatesEmptyIndex(t *testing.T) {
	f, _ := newTestFacade(t)
	dir := filepath.Join(f.BaseDir(), "Live", "acme", "Production", "Quote", "20240101-000000")

	assert.Equal(t, uint64(0), docCount(t, f, dir))

	_, err := os.Stat(filepath.Join(dir, IndexDirName))
	assert.NoError(t, err)
}

func TestWriter_UpsertReplacesDocument(t *testing.T) {
	f, _ := newTestFacade(t)
	dir, err := f.CreateNewLiveDirectory(testLocation)
	require.NoError(t, err)
	id := uuid.New()

	writeDocs(t, f, dir, quoteDoc(id, "first title"))
	writeDocs(t, f, dir, quoteDoc(id, "second title"))

	s, err := f.CreateIndexSearcher(dir, quoteMapping(t))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	q := bleve.NewTermQuery(index.FormatID(id))
	q.SetField(index.FieldID)
	req := bleve.NewSearchRequest(q)
	req.Fields = []string{index.FieldQuoteTitle}
	res, err := s.Search(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, uint64(1), res.Total)
	assert.Equal(t, "second title", index.StoredFields(res.Hits[0].Fields).String(index.FieldQuoteTitle))
}

func TestWriter_FlushesInBatches(t *testing.T) {
	f, _ := newTestFacade(t)
	dir, err := f.CreateNewLiveDirectory(testLocation)
	require.NoError(t, err)

	w, err := f.CreateIndexWriter(context.Background(), dir, quoteMapping(t))
	require.NoError(t, err)

	require.NoError(t, w.Upsert(quoteDoc(uuid.New(), "a")))
	assert.Equal(t, 1, w.Pending())
	require.NoError(t, w.Upsert(quoteDoc(uuid.New(), "b")))
	assert.Equal(t, 0, w.Pending(), "batch size 2 should trigger a flush")
	require.NoError(t, w.Upsert(quoteDoc(uuid.New(), "c")))
	require.NoError(t, w.Close())

	assert.Equal(t, uint64(3), docCount(t, f, dir))
}

func TestWriter_Delete(t *testing.T) {
	f, _ := newTestFacade(t)
	dir, err := f.CreateNewLiveDirectory(testLocation)
	require.NoError(t, err)
	keep, drop := uuid.New(), uuid.New()
	writeDocs(t, f, dir, quoteDoc(keep, "keep"), quoteDoc(drop, "drop"))

	w, err := f.CreateIndexWriter(context.Background(), dir, quoteMapping(t))
	require.NoError(t, err)
	require.NoError(t, w.Delete(index.FormatID(drop)))
	require.NoError(t, w.Close())

	assert.Equal(t, uint64(1), docCount(t, f, dir))
}

func TestFacade_CreateIndexWriter_LockTimeout(t *testing.T) {
	f, _ := newTestFacade(t)
	dir, err := f.CreateNewLiveDirectory(testLocation)
	require.NoError(t, err)

	w1, err := f.CreateIndexWriter(context.Background(), dir, quoteMapping(t))
	require.NoError(t, err)
	defer func() { _ = w1.Close() }()

	_, err = f.CreateIndexWriter(context.Background(), dir, quoteMapping(t))
	assert.ErrorIs(t, err, ErrLockTimeout)
}

func TestFacade_CreateIndexWriter_RecoversStaleLock(t *testing.T) {
	f, _ := newTestFacade(t)
	dir, err := f.CreateNewLiveDirectory(testLocation)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, WriteLockName), []byte("99999\n2024-01-01T00:00:00Z\n"), 0644))

	w, err := f.CreateIndexWriter(context.Background(), dir, quoteMapping(t))
	require.NoError(t, err)
	require.NoError(t, w.Upsert(quoteDoc(uuid.New(), "after crash")))
	require.NoError(t, w.Close())

	assert.Nil(t, ReadLockOwner(filepath.Join(dir, WriteLockName)))
	assert.Equal(t, uint64(1), docCount(t, f, dir))
}

func TestFacade_MakeRegenerationIndexTheLiveIndex(t *testing.T) {
	f, clock := newTestFacade(t)

	oldLive, err := f.CreateNewLiveDirectory(testLocation)
	require.NoError(t, err)
	writeDocs(t, f, oldLive, quoteDoc(uuid.New(), "old"))

	clock.now = clock.now.Add(time.Minute)
	regen, err := f.GetOrCreateRegenerationIndexDirectory(testLocation)
	require.NoError(t, err)
	writeDocs(t, f, regen, quoteDoc(uuid.New(), "new 1"), quoteDoc(uuid.New(), "new 2"))

	require.NoError(t, f.MakeRegenerationIndexTheLiveIndex(testLocation))
	assertPromoted(t, f, filepath.Base(regen), 2)

	// A retried promotion leaves the same end state
	require.NoError(t, f.MakeRegenerationIndexTheLiveIndex(testLocation))
	assertPromoted(t, f, filepath.Base(regen), 2)
}

func assertPromoted(t *testing.T, f *Facade, name string, docs uint64) {
	t.Helper()

	names, err := listTimestampDirs(f.liveRoot(testLocation))
	require.NoError(t, err)
	assert.Equal(t, []string{name}, names)

	_, err = os.Stat(f.regenerationRoot(testLocation))
	assert.True(t, os.IsNotExist(err), "regeneration subtree should be gone")

	latest, ok, err := f.GetLatestLiveIndexDirectory(testLocation)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, docs, docCount(t, f, latest))
}

func TestFacade_MakeRegenerationIndexTheLiveIndex_DefersDeletionWhileSearching(t *testing.T) {
	f, clock := newTestFacade(t)

	oldLive, err := f.CreateNewLiveDirectory(testLocation)
	require.NoError(t, err)
	writeDocs(t, f, oldLive, quoteDoc(uuid.New(), "old"))

	s, err := f.CreateIndexSearcher(oldLive, quoteMapping(t))
	require.NoError(t, err)

	clock.now = clock.now.Add(time.Minute)
	regen, err := f.CreateRegenerationIndexDirectory(testLocation)
	require.NoError(t, err)
	writeDocs(t, f, regen, quoteDoc(uuid.New(), "new"))

	require.NoError(t, f.MakeRegenerationIndexTheLiveIndex(testLocation))

	// The in-flight searcher still reads the superseded index
	n, err := s.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
	_, err = os.Stat(oldLive)
	assert.NoError(t, err)

	require.NoError(t, s.Close())
	_, err = os.Stat(oldLive)
	assert.True(t, os.IsNotExist(err), "superseded directory should be removed on last release")
	assert.Equal(t, 0, f.handles.openCount())
}

func TestFacade_SupersededLiveDirectoryIsNotResolvedWhileOpen(t *testing.T) {
	f, clock := newTestFacade(t)

	regen, err := f.CreateRegenerationIndexDirectory(testLocation)
	require.NoError(t, err)
	writeDocs(t, f, regen, quoteDoc(uuid.New(), "rebuilt"), quoteDoc(uuid.New(), "rebuilt"))

	// A live directory created during the rebuild sorts after it
	clock.now = clock.now.Add(time.Minute)
	newerLive, err := f.CreateNewLiveDirectory(testLocation)
	require.NoError(t, err)
	writeDocs(t, f, newerLive, quoteDoc(uuid.New(), "interim"))

	s, err := f.CreateIndexSearcher(newerLive, quoteMapping(t))
	require.NoError(t, err)

	require.NoError(t, f.MakeRegenerationIndexTheLiveIndex(testLocation))
	promoted := filepath.Join(f.liveRoot(testLocation), filepath.Base(regen))

	_, err = os.Stat(newerLive)
	require.NoError(t, err, "removal waits for the open searcher")

	latest, ok, err := f.GetLatestLiveIndexDirectory(testLocation)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, promoted, latest)

	dir, err := f.GetOrCreateLiveIndexDirectory(testLocation)
	require.NoError(t, err)
	assert.Equal(t, promoted, dir)
	assert.Equal(t, uint64(2), docCount(t, f, dir))

	require.NoError(t, s.Close())
	_, err = os.Stat(newerLive)
	assert.True(t, os.IsNotExist(err))
	assert.False(t, f.handles.superseded(newerLive))
}

func TestFacade_MakeRegenerationIndexTheLiveIndex_RefusesOpenRegeneration(t *testing.T) {
	f, _ := newTestFacade(t)

	regen, err := f.CreateRegenerationIndexDirectory(testLocation)
	require.NoError(t, err)
	w, err := f.CreateIndexWriter(context.Background(), regen, quoteMapping(t))
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	err = f.MakeRegenerationIndexTheLiveIndex(testLocation)
	assert.True(t, errors.Is(err, ErrIndexInUse))
}

func TestFacade_MakeRegenerationIndexTheLiveIndex_NothingToPromote(t *testing.T) {
	f, _ := newTestFacade(t)

	require.NoError(t, f.MakeRegenerationIndexTheLiveIndex(testLocation))

	_, ok, err := f.GetLatestLiveIndexDirectory(testLocation)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFacade_ClearRegeneration(t *testing.T) {
	f, _ := newTestFacade(t)
	regen, err := f.CreateRegenerationIndexDirectory(testLocation)
	require.NoError(t, err)
	writeDocs(t, f, regen, quoteDoc(uuid.New(), "partial"))

	require.NoError(t, f.ClearRegeneration(testLocation))

	_, ok, err := f.GetLatestRegenerationIndexDirectory(testLocation)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocation_Validate(t *testing.T) {
	tests := []struct {
		name    string
		loc     Location
		wantErr bool
	}{
		{"valid", testLocation, false},
		{"missing alias", Location{Environment: domain.Staging, Entity: domain.EntityTypePolicy}, true},
		{"path traversal", Location{TenantAlias: "../x", Environment: domain.Staging, Entity: domain.EntityTypePolicy}, true},
		{"no environment", Location{TenantAlias: "acme", Entity: domain.EntityTypePolicy}, true},
		{"unknown entity", Location{TenantAlias: "acme", Environment: domain.Staging, Entity: "Claim"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.loc.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
