package portfolio_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SeoYoonHo/yiseoyoon/pkg/portfolio"
	"github.com/SeoYoonHo/yiseoyoon/pkg/portfolio/storage/memory"
)

// countingStore wraps a store and counts writes
type countingStore struct {
	portfolio.DocumentStore
	puts atomic.Int32
}

func (s *countingStore) Put(ctx context.Context, key string, data []byte, opts portfolio.PutOptions) (portfolio.Version, error) {
	s.puts.Add(1)
	return s.DocumentStore.Put(ctx, key, data, opts)
}

// conflictingStore rejects every conditional write
type conflictingStore struct {
	portfolio.DocumentStore
	puts atomic.Int32
}

func (s *conflictingStore) Put(ctx context.Context, key string, data []byte, opts portfolio.PutOptions) (portfolio.Version, error) {
	s.puts.Add(1)
	return portfolio.VersionAbsent, portfolio.ErrConditionFailed
}

// brokenStore fails every call
type brokenStore struct{}

var errBackend = errors.New("503 service unavailable")

func (brokenStore) Get(context.Context, string) (*portfolio.Object, error) {
	return nil, errBackend
}

func (brokenStore) Put(context.Context, string, []byte, portfolio.PutOptions) (portfolio.Version, error) {
	return portfolio.VersionAbsent, errBackend
}

func (brokenStore) List(context.Context, string) ([]portfolio.ObjectMeta, error) {
	return nil, errBackend
}

func (brokenStore) Delete(context.Context, string) error {
	return errBackend
}

type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (o *recordingObserver) ObserveLoad(collection, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, "load:"+outcome)
}

func (o *recordingObserver) ObserveCommit(collection, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, "commit:"+outcome)
}

func newRegistry(t *testing.T, store portfolio.DocumentStore, opts ...portfolio.RegistryOption) *portfolio.Registry {
	t.Helper()
	opts = append([]portfolio.RegistryOption{portfolio.WithConflictBackoff(time.Millisecond, 5*time.Millisecond)}, opts...)
	r, err := portfolio.NewRegistry(store, opts...)
	require.NoError(t, err)
	return r
}

func sketch(id, title string, created time.Time) portfolio.ContentRecord {
	return portfolio.ContentRecord{ID: id, Title: title, CreatedAt: created}
}

var jan1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestNewRegistry(t *testing.T) {
	_, err := portfolio.NewRegistry(nil)
	assert.Error(t, err)

	_, err = portfolio.NewRegistry(memory.New(nil), portfolio.WithRetryBudget(0))
	assert.Error(t, err)

	r, err := portfolio.NewRegistry(memory.New(nil))
	require.NoError(t, err)
	assert.Equal(t, "drawings/metadata.json", r.DocumentKey("drawings"))
}

func TestEmptyCollectionAppendCommitLoad(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, memory.New(nil))

	doc, err := r.Load(ctx, "drawings")
	require.NoError(t, err)
	assert.Empty(t, doc.Items)
	assert.Equal(t, portfolio.VersionAbsent, doc.Version)

	next, err := portfolio.Append(doc, sketch("a1", "Sketch 1", jan1))
	require.NoError(t, err)

	version, err := r.Commit(ctx, "drawings", next)
	require.NoError(t, err)
	assert.False(t, version.IsAbsent())

	loaded, err := r.Load(ctx, "drawings")
	require.NoError(t, err)
	require.Len(t, loaded.Items, 1)
	assert.Equal(t, "a1", loaded.Items[0].ID)
	assert.Equal(t, "Sketch 1", loaded.Items[0].Title)
	assert.Equal(t, version, loaded.Version)
}

func TestAppendThenLoadKeepsAllFields(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, memory.New(nil))

	seq := 4
	rec := portfolio.ContentRecord{
		ID:           "p1",
		Title:        "Harbour",
		Description:  "oil on canvas",
		PrimaryKey:   "paintings/p1/harbour.jpg",
		ThumbnailKey: "paintings/p1/thumb/harbour.jpg",
		ContentType:  "image/jpeg",
		CreatedAt:    jan1,
		UpdatedAt:    jan1.Add(time.Hour),
		Sequence:     &seq,
		Metadata:     map[string]string{"size": "60x90"},
	}

	doc, err := r.Load(ctx, "paintings")
	require.NoError(t, err)
	next, err := portfolio.Append(doc, rec)
	require.NoError(t, err)
	_, err = r.Commit(ctx, "paintings", next)
	require.NoError(t, err)

	loaded, err := r.Load(ctx, "paintings")
	require.NoError(t, err)
	if diff := cmp.Diff([]portfolio.ContentRecord{rec}, loaded.Items); diff != "" {
		t.Errorf("loaded record differs (-want +got):\n%s", diff)
	}
}

func TestTwoWritersSecondConflictsThenRetries(t *testing.T) {
	ctx := context.Background()
	store := memory.New(nil)
	r := newRegistry(t, store)

	seed, err := portfolio.Append(portfolio.NewDocument(), sketch("seed", "Seed", jan1))
	require.NoError(t, err)
	v1, err := r.Commit(ctx, "drawings", seed)
	require.NoError(t, err)

	first, err := r.Load(ctx, "drawings")
	require.NoError(t, err)
	second, err := r.Load(ctx, "drawings")
	require.NoError(t, err)
	assert.Equal(t, v1, first.Version)
	assert.Equal(t, v1, second.Version)

	firstNext, err := portfolio.Append(first, sketch("a", "A", jan1))
	require.NoError(t, err)
	secondNext, err := portfolio.Append(second, sketch("b", "B", jan1))
	require.NoError(t, err)

	v2, err := r.Commit(ctx, "drawings", firstNext)
	require.NoError(t, err)

	_, err = r.Commit(ctx, "drawings", secondNext)
	assert.ErrorIs(t, err, portfolio.ErrConflict)

	reloaded, err := r.Load(ctx, "drawings")
	require.NoError(t, err)
	assert.Equal(t, v2, reloaded.Version)
	_, found := reloaded.Find("a")
	assert.True(t, found)

	retried, err := portfolio.Append(reloaded, sketch("b", "B", jan1))
	require.NoError(t, err)
	_, err = r.Commit(ctx, "drawings", retried)
	require.NoError(t, err)

	final, err := r.Load(ctx, "drawings")
	require.NoError(t, err)
	assert.Len(t, final.Items, 3)
	for _, id := range []string{"seed", "a", "b"} {
		_, ok := final.Find(id)
		assert.True(t, ok, "missing %s", id)
	}
}

func TestConcurrentCommitsExactlyOneWins(t *testing.T) {
	for _, start := range []string{"absent", "existing"} {
		t.Run(start, func(t *testing.T) {
			ctx := context.Background()
			r := newRegistry(t, memory.New(nil))

			if start == "existing" {
				_, err := r.Commit(ctx, "drawings", portfolio.NewDocument())
				require.NoError(t, err)
			}
			base, err := r.Load(ctx, "drawings")
			require.NoError(t, err)

			const writers = 12
			var committed, conflicted atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					next, err := portfolio.Append(base, sketch(fmt.Sprintf("w%d", i), "W", jan1))
					if !assert.NoError(t, err) {
						return
					}
					_, err = r.Commit(ctx, "drawings", next)
					switch {
					case err == nil:
						committed.Add(1)
					case errors.Is(err, portfolio.ErrConflict):
						conflicted.Add(1)
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}(i)
			}
			wg.Wait()

			assert.Equal(t, int32(1), committed.Load())
			assert.Equal(t, int32(writers-1), conflicted.Load())

			final, err := r.Load(ctx, "drawings")
			require.NoError(t, err)
			assert.Len(t, final.Items, 1)
		})
	}
}

func TestCommitWritesNothingOnFailure(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{DocumentStore: memory.New(nil)}
	r := newRegistry(t, store)

	_, err := r.Commit(ctx, "drawings", nil)
	assert.ErrorIs(t, err, portfolio.ErrInvalidInput)

	invalid := &portfolio.Document{Items: []portfolio.ContentRecord{{ID: "x"}}}
	_, err = r.Commit(ctx, "drawings", invalid)
	assert.ErrorIs(t, err, portfolio.ErrInvalidInput)

	dup := &portfolio.Document{Items: []portfolio.ContentRecord{sketch("x", "1", jan1), sketch("x", "2", jan1)}}
	_, err = r.Commit(ctx, "drawings", dup)
	assert.ErrorIs(t, err, portfolio.ErrDuplicateID)

	assert.Equal(t, int32(0), store.puts.Load())

	_, err = r.Commit(ctx, "drawings", &portfolio.Document{Version: "stale"})
	assert.ErrorIs(t, err, portfolio.ErrConflict)
	assert.Equal(t, int32(1), store.puts.Load())

	_, err = r.Load(ctx, "drawings")
	require.NoError(t, err)
	_, err = store.Get(ctx, "drawings/metadata.json")
	assert.ErrorIs(t, err, portfolio.ErrNotFound, "conflicting commit must not create the document")
}

func TestLoadCorruptDocumentIsNotEmpty(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{DocumentStore: memory.New(nil)}
	_, err := store.Put(ctx, "texts/metadata.json", []byte(`{"items": "oops"}`), portfolio.PutOptions{})
	require.NoError(t, err)
	r := newRegistry(t, store)

	_, err = r.Load(ctx, "texts")
	assert.ErrorIs(t, err, portfolio.ErrDecodeFailure)

	var regErr *portfolio.RegistryError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, "texts", regErr.Collection)
	assert.Equal(t, "load", regErr.Op)

	_, err = r.Update(ctx, "texts", func(doc *portfolio.Document) (*portfolio.Document, error) {
		return portfolio.Append(doc, sketch("t1", "T", jan1))
	})
	assert.ErrorIs(t, err, portfolio.ErrDecodeFailure)
	assert.Equal(t, int32(1), store.puts.Load(), "corrupt document must not be overwritten")
}

func TestLoadRejectsRecordsCommitWouldRefuse(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{DocumentStore: memory.New(nil)}
	_, err := store.Put(ctx, "drawings/metadata.json", []byte(`{"items":[{"id":"legacy","title":"Old"}]}`), portfolio.PutOptions{})
	require.NoError(t, err)
	r := newRegistry(t, store)

	_, err = r.Load(ctx, "drawings")
	assert.ErrorIs(t, err, portfolio.ErrDecodeFailure)
	assert.NotErrorIs(t, err, portfolio.ErrInvalidInput)

	_, err = r.Update(ctx, "drawings", func(doc *portfolio.Document) (*portfolio.Document, error) {
		return portfolio.Append(doc, sketch("new", "New", jan1))
	})
	assert.ErrorIs(t, err, portfolio.ErrDecodeFailure)
	assert.NotErrorIs(t, err, portfolio.ErrInvalidInput)
	assert.Equal(t, int32(1), store.puts.Load())
}

func TestStorageUnavailable(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, brokenStore{})

	_, err := r.Load(ctx, "drawings")
	assert.ErrorIs(t, err, portfolio.ErrStorageUnavailable)
	assert.ErrorIs(t, err, errBackend)

	_, err = r.Commit(ctx, "drawings", portfolio.NewDocument())
	assert.ErrorIs(t, err, portfolio.ErrStorageUnavailable)
	assert.NotErrorIs(t, err, portfolio.ErrConflict)
}

func TestUpdateRetriesAfterConflict(t *testing.T) {
	ctx := context.Background()
	store := memory.New(nil)
	r := newRegistry(t, store)

	calls := 0
	doc, err := r.Update(ctx, "drawings", func(doc *portfolio.Document) (*portfolio.Document, error) {
		calls++
		if calls == 1 {
			// another writer sneaks in between load and commit
			other, err := portfolio.Append(doc, sketch("other", "Other", jan1))
			require.NoError(t, err)
			_, err = r.Commit(ctx, "drawings", other)
			require.NoError(t, err)
		}
		return portfolio.Append(doc, sketch("mine", "Mine", jan1))
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Len(t, doc.Items, 2)

	loaded, err := r.Load(ctx, "drawings")
	require.NoError(t, err)
	assert.Equal(t, doc.Version, loaded.Version)
	_, ok := loaded.Find("other")
	assert.True(t, ok)
}

func TestUpdateGivesUpAfterBudget(t *testing.T) {
	ctx := context.Background()
	store := &conflictingStore{DocumentStore: memory.New(nil)}
	r := newRegistry(t, store, portfolio.WithRetryBudget(3))

	calls := 0
	_, err := r.Update(ctx, "drawings", func(doc *portfolio.Document) (*portfolio.Document, error) {
		calls++
		return portfolio.Append(doc, sketch("a", "A", jan1))
	})
	assert.ErrorIs(t, err, portfolio.ErrTooManyConflicts)
	assert.Equal(t, 3, calls)
	assert.Equal(t, int32(3), store.puts.Load())
}

func TestUpdateMutationErrorAborts(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{DocumentStore: memory.New(nil)}
	r := newRegistry(t, store)

	_, err := r.Update(ctx, "drawings", func(doc *portfolio.Document) (*portfolio.Document, error) {
		return portfolio.Replace(doc, sketch("missing", "X", jan1))
	})
	assert.ErrorIs(t, err, portfolio.ErrItemNotFound)
	assert.Equal(t, int32(0), store.puts.Load())
}

func TestUpdateUnchangedSkipsWrite(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{DocumentStore: memory.New(nil)}
	r := newRegistry(t, store)

	doc, err := r.Update(ctx, "drawings", func(doc *portfolio.Document) (*portfolio.Document, error) {
		return doc, nil
	})
	require.NoError(t, err)
	assert.True(t, doc.Version.IsAbsent())
	assert.Equal(t, int32(0), store.puts.Load())
}

func TestConcurrentUpdatesLoseNothing(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, memory.New(nil), portfolio.WithRetryBudget(100))

	const writers = 10
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := r.Update(ctx, "paintings", func(doc *portfolio.Document) (*portfolio.Document, error) {
				return portfolio.Append(doc, sketch(fmt.Sprintf("p%d", i), "P", jan1))
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	doc, err := r.Load(ctx, "paintings")
	require.NoError(t, err)
	assert.Len(t, doc.Items, writers)
}

func TestUpdateHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := newRegistry(t, &conflictingStore{DocumentStore: memory.New(nil)})

	_, err := r.Update(ctx, "drawings", func(doc *portfolio.Document) (*portfolio.Document, error) {
		return portfolio.Append(doc, sketch("a", "A", jan1))
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, portfolio.ErrTooManyConflicts)
}

func TestObserverOutcomes(t *testing.T) {
	ctx := context.Background()
	obs := &recordingObserver{}
	r := newRegistry(t, memory.New(nil), portfolio.WithObserver(obs))

	doc, err := r.Load(ctx, "cv")
	require.NoError(t, err)
	_, err = r.Commit(ctx, "cv", doc)
	require.NoError(t, err)
	_, err = r.Commit(ctx, "cv", doc)
	require.ErrorIs(t, err, portfolio.ErrConflict)
	_, err = r.Load(ctx, "cv")
	require.NoError(t, err)

	assert.Equal(t, []string{"load:absent", "commit:committed", "commit:conflict", "load:loaded"}, obs.events)
}
