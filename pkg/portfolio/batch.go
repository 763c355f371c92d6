package portfolio

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// deleteKeys removes keys from the blob store with bounded parallelism.
// It never stops early: every key ends up in Succeeded or Failed. Keys that
// are not assets of the collection fail without touching the store.
func (s *service) deleteKeys(ctx context.Context, collection string, keys []string) *BatchResult {
	result := &BatchResult{Failed: []FailedKey{}}
	var mu sync.Mutex
	fail := func(key string, err error) {
		mu.Lock()
		defer mu.Unlock()
		result.Failed = append(result.Failed, FailedKey{Key: key, Error: err.Error()})
	}

	g := new(errgroup.Group)
	g.SetLimit(s.deleteConcurrency)

	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if !s.layout.Owns(collection, key) {
			fail(key, InvalidInputf("key is not an asset of collection %s", collection))
			continue
		}

		key := key
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				fail(key, err)
				return nil
			}
			if err := s.blobs.Delete(ctx, key); err != nil {
				s.logger.Error("failed to delete blob", "collection", collection, "key", key, "err", err)
				fail(key, err)
				return nil
			}
			mu.Lock()
			result.Succeeded++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(result.Failed, func(i, j int) bool { return result.Failed[i].Key < result.Failed[j].Key })
	return result
}
