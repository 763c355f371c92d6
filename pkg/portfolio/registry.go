package portfolio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lestrrat-go/backoff/v2"
)

// DefaultRetryBudget is the number of commit attempts Update makes before
// giving up with ErrTooManyConflicts.
const DefaultRetryBudget = 3

// KeyFunc maps a collection name to the key of its registry document.
type KeyFunc func(collection string) string

// Registry loads and conditionally commits registry documents.
type Registry struct {
	store       DocumentStore
	key         KeyFunc
	retryBudget int
	minBackoff  time.Duration
	maxBackoff  time.Duration
	observer    Observer
	logger      *slog.Logger
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithDocumentKey sets how collection names map to document keys
func WithDocumentKey(fn KeyFunc) RegistryOption {
	return func(r *Registry) {
		r.key = fn
	}
}

// WithRetryBudget sets the number of attempts Update makes
func WithRetryBudget(attempts int) RegistryOption {
	return func(r *Registry) {
		r.retryBudget = attempts
	}
}

// WithConflictBackoff sets the wait between Update attempts after a conflict
func WithConflictBackoff(min, max time.Duration) RegistryOption {
	return func(r *Registry) {
		r.minBackoff = min
		r.maxBackoff = max
	}
}

// WithObserver reports load and commit outcomes
func WithObserver(o Observer) RegistryOption {
	return func(r *Registry) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithRegistryLogger sets the logger
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates a registry over store.
func NewRegistry(store DocumentStore, opts ...RegistryOption) (*Registry, error) {
	if store == nil {
		return nil, errors.New("document store is required")
	}
	r := &Registry{
		store:       store,
		key:         func(collection string) string { return collection + "/metadata.json" },
		retryBudget: DefaultRetryBudget,
		minBackoff:  20 * time.Millisecond,
		maxBackoff:  500 * time.Millisecond,
		observer:    noopObserver{},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.retryBudget < 1 {
		return nil, fmt.Errorf("retry budget must be at least 1, got %d", r.retryBudget)
	}
	return r, nil
}

// DocumentKey returns the store key holding the collection's document.
func (r *Registry) DocumentKey(collection string) string {
	return r.key(collection)
}

// Load reads the collection document. An absent document is returned as an
// empty document with VersionAbsent; a corrupt one fails with ErrDecodeFailure.
func (r *Registry) Load(ctx context.Context, collection string) (*Document, error) {
	obj, err := r.store.Get(ctx, r.key(collection))
	if errors.Is(err, ErrNotFound) {
		r.observer.ObserveLoad(collection, OutcomeAbsent)
		return NewDocument(), nil
	}
	if err != nil {
		r.observer.ObserveLoad(collection, OutcomeStorageFailed)
		return nil, &RegistryError{Collection: collection, Op: "load", Err: Unavailable(err)}
	}

	doc, err := DecodeDocument(obj.Data, obj.Version)
	if err != nil {
		r.observer.ObserveLoad(collection, OutcomeDecodeFailure)
		r.logger.Error("registry document is corrupt", "collection", collection, "version", obj.Version.String(), "err", err)
		return nil, &RegistryError{Collection: collection, Op: "load", Err: err}
	}
	r.observer.ObserveLoad(collection, OutcomeLoaded)
	return doc, nil
}

// Commit writes doc only if the stored version still equals doc.Version and
// returns the new version. A concurrent modification yields ErrConflict and
// nothing is written. Commit never retries.
func (r *Registry) Commit(ctx context.Context, collection string, doc *Document) (Version, error) {
	if doc == nil {
		r.observer.ObserveCommit(collection, OutcomeInvalid)
		return VersionAbsent, &RegistryError{Collection: collection, Op: "commit", Err: InvalidInputf("document is nil")}
	}
	if err := validateDocument(doc); err != nil {
		r.observer.ObserveCommit(collection, OutcomeInvalid)
		return VersionAbsent, &RegistryError{Collection: collection, Op: "commit", Err: err}
	}

	data, err := EncodeDocument(doc)
	if err != nil {
		r.observer.ObserveCommit(collection, OutcomeInvalid)
		return VersionAbsent, &RegistryError{Collection: collection, Op: "commit", Err: InvalidInputf("encode: %v", err)}
	}

	opts := PutOptions{ContentType: "application/json"}
	if doc.Version.IsAbsent() {
		opts.IfAbsent = true
	} else {
		opts.IfMatch = doc.Version
	}

	version, err := r.store.Put(ctx, r.key(collection), data, opts)
	switch {
	case errors.Is(err, ErrConditionFailed):
		r.observer.ObserveCommit(collection, OutcomeConflict)
		return VersionAbsent, &RegistryError{Collection: collection, Op: "commit", Err: ErrConflict}
	case err != nil:
		r.observer.ObserveCommit(collection, OutcomeStorageFailed)
		return VersionAbsent, &RegistryError{Collection: collection, Op: "commit", Err: Unavailable(err)}
	}

	r.observer.ObserveCommit(collection, OutcomeCommitted)
	r.logger.Debug("registry document committed", "collection", collection,
		"previous", doc.Version.String(), "version", version.String(), "items", len(doc.Items))
	return version, nil
}

// MutateFunc computes the next document from a freshly loaded one.
// It must not keep references to doc between calls; Update may call it once
// per attempt. Returning doc itself means nothing changed and skips the write.
type MutateFunc func(doc *Document) (*Document, error)

// Update runs load, mutate and commit, reloading and reapplying mutate after
// each conflict until the retry budget is spent. The committed document is
// returned with its new version.
func (r *Registry) Update(ctx context.Context, collection string, mutate MutateFunc) (*Document, error) {
	policy := backoff.Exponential(
		backoff.WithMinInterval(r.minBackoff),
		backoff.WithMaxInterval(r.maxBackoff),
		backoff.WithJitterFactor(0.2),
		backoff.WithMaxRetries(r.retryBudget+1),
	)
	bctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ctrl := policy.Start(bctx)

	attempts := 0
	for backoff.Continue(ctrl) {
		attempts++

		doc, err := r.Load(ctx, collection)
		if err != nil {
			return nil, err
		}
		next, err := mutate(doc)
		if err != nil {
			return nil, &RegistryError{Collection: collection, Op: "update", Err: err}
		}
		if next == doc {
			return doc, nil
		}
		next.Version = doc.Version

		version, err := r.Commit(ctx, collection, next)
		if err == nil {
			next.Version = version
			return next, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}

		r.logger.Warn("registry commit conflicted", "collection", collection, "attempt", attempts, "budget", r.retryBudget)
		if attempts >= r.retryBudget {
			break
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, &RegistryError{Collection: collection, Op: "update", Err: err}
	}
	return nil, &RegistryError{
		Collection: collection,
		Op:         "update",
		Err:        fmt.Errorf("%w: gave up after %d attempts", ErrTooManyConflicts, attempts),
	}
}

func validateDocument(doc *Document) error {
	seen := make(map[string]struct{}, len(doc.Items))
	for _, item := range doc.Items {
		if err := ValidateRecord(item); err != nil {
			return err
		}
		if _, dup := seen[item.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateID, item.ID)
		}
		seen[item.ID] = struct{}{}
	}
	return nil
}
