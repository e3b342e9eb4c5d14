package commission

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"commissionflow/catalog"
	"commissionflow/identity"
)

var (
	// ErrInvalidRecord signals a record that cannot be stored as-is.
	ErrInvalidRecord = errors.New("commission: invalid record")
	// ErrStatusOutOfRange signals a status index outside the record type's
	// progression. This is a caller bug surfaced as an error rather than a
	// silent write of a broken invariant.
	ErrStatusOutOfRange = errors.New("commission: status out of range")
)

// Store is the in-memory authoritative view of the commission set. All
// durable writes go through the Provider; the in-memory snapshot is updated
// exclusively by provider snapshot notifications, never by the mutation path
// itself, so local and durable state converge in one direction only.
//
// Concurrent writes to the same id are not sequenced: last acknowledgment
// wins, with no version check.
type Store struct {
	provider Provider
	ensurer  identity.Ensurer
	now      func() time.Time

	mu      sync.RWMutex
	records map[string]Record
	subs    map[string]func([]Record)
	cancel  func()
}

// NewStore builds a store over the chosen backend. The ensurer gates every
// mutation: no write is attempted without an established caller identity.
func NewStore(provider Provider, ensurer identity.Ensurer) *Store {
	return &Store{
		provider: provider,
		ensurer:  ensurer,
		now:      time.Now,
		records:  make(map[string]Record),
		subs:     make(map[string]func([]Record)),
	}
}

// WithClock overrides the store's time source for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Start begins consuming the provider's snapshot feed. It must be called once
// before mutations are issued; without it the in-memory view never refreshes.
func (s *Store) Start(ctx context.Context, onError func(error)) error {
	cancel, err := s.provider.Subscribe(ctx, s.applySnapshot, onError)
	if err != nil {
		return fmt.Errorf("commission: subscribe provider: %w", err)
	}
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	return nil
}

// Close tears down the provider subscription. In-flight writes still complete.
func (s *Store) Close() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// applySnapshot replaces the in-memory set wholesale and fans the new snapshot
// out to subscribers. Delivery is at-least-once full-replace; subscribers must
// re-render, not patch.
func (s *Store) applySnapshot(recs []Record) {
	next := make(map[string]Record, len(recs))
	for _, rec := range recs {
		next[rec.ID] = rec
	}

	s.mu.Lock()
	s.records = next
	subs := make([]func([]Record), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}

// Subscribe registers an observer of the full record set. The current
// snapshot is delivered immediately, then again on every change. The returned
// function unregisters the observer.
func (s *Store) Subscribe(fn func([]Record)) func() {
	key := uuid.NewString()

	s.mu.Lock()
	s.subs[key] = fn
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	fn(snapshot)

	return func() {
		s.mu.Lock()
		delete(s.subs, key)
		s.mu.Unlock()
	}
}

// Create upserts a record by id, last write wins. The provider write must be
// acknowledged before the operation reports success; on failure the in-memory
// state is untouched and the caller decides whether to retry.
func (s *Store) Create(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidRecord)
	}
	if !catalog.Valid(rec.Type) {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidRecord, rec.Type)
	}
	if !catalog.ValidStatus(rec.Type, rec.Status) {
		return fmt.Errorf("%w: status %d for type %s", ErrStatusOutOfRange, rec.Status, rec.Type)
	}

	if _, err := s.ensurer.Ensure(ctx); err != nil {
		return fmt.Errorf("commission: establish identity: %w", err)
	}
	if err := s.provider.Write(ctx, rec.ID, rec); err != nil {
		return fmt.Errorf("commission: write record: %w", err)
	}
	return nil
}

// UpdateStatus moves a record to a new step of its progression, forward or
// backward, and refreshes UpdatedAt. An unknown id is silently ignored.
func (s *Store) UpdateStatus(ctx context.Context, id string, newStatus int) error {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	if !catalog.ValidStatus(rec.Type, newStatus) {
		return fmt.Errorf("%w: status %d for type %s", ErrStatusOutOfRange, newStatus, rec.Type)
	}

	if _, err := s.ensurer.Ensure(ctx); err != nil {
		return fmt.Errorf("commission: establish identity: %w", err)
	}

	rec.Status = newStatus
	rec.UpdatedAt = s.now().UnixMilli()
	if err := s.provider.Write(ctx, id, rec); err != nil {
		return fmt.Errorf("commission: write status update: %w", err)
	}
	return nil
}

// Delete permanently removes a record from both the durable backend and, via
// the resulting snapshot, the in-memory set. Deleting an unknown id is a
// no-op. Confirmation is the caller's concern.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.ensurer.Ensure(ctx); err != nil {
		return fmt.Errorf("commission: establish identity: %w", err)
	}
	if err := s.provider.Remove(ctx, id); err != nil {
		return fmt.Errorf("commission: remove record: %w", err)
	}
	return nil
}

// Get returns the record with the given id from the current snapshot.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	return rec, ok
}

// Snapshot returns a copy of the current record set, ordered by creation time
// then id.
func (s *Store) Snapshot() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() []Record {
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SearchByClientName returns every record whose client nickname contains the
// query, case-insensitively. This is the public lookup path.
func (s *Store) SearchByClientName(query string) []Record {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	var out []Record
	for _, rec := range s.Snapshot() {
		if strings.Contains(strings.ToLower(rec.ClientName), q) {
			out = append(out, rec)
		}
	}
	return out
}

// ListByOwner returns the records belonging to one operator's namespace.
func (s *Store) ListByOwner(ownerID string) []Record {
	var out []Record
	for _, rec := range s.Snapshot() {
		if rec.OwnerID == ownerID {
			out = append(out, rec)
		}
	}
	return out
}
