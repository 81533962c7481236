// Package cart holds the shopping cart state: an ordered collection of line
// items shared by every user of the device, mirrored to a durable slot after
// each change.
//
// Two identity rules apply. Add merges on (item id, user id). UpdateQuantity,
// Remove and RemoveSelected match on item id alone and therefore touch the
// entries of every user holding that item.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"CandleShop/internal/kvstore"
)

// DefaultKey is the durable slot the cart is mirrored to.
const DefaultKey = "cart"

var (
	ErrNotLoaded        = errors.New("cart not loaded")
	ErrSelectionChanged = errors.New("selected items changed")
)

type Options struct {
	Log     *zap.Logger
	Metrics *Metrics
	// Key overrides DefaultKey.
	Key string
}

// Store owns the cart. It is safe for concurrent use; mutations are applied
// in the order their calls acquire the store.
type Store struct {
	kv      kvstore.Store
	key     string
	log     *zap.Logger
	metrics *Metrics

	mu      sync.Mutex
	items   []LineItem
	loaded  bool
	pending []mutation
	version uint64

	obsMu     sync.Mutex
	observers map[int]func([]LineItem)
	nextObs   int

	// seqMu serializes mutations end to end so storage and observers see
	// changes in the order they were applied. Taken before mu.
	seqMu sync.Mutex

	ready chan struct{}
	w     *writer
}

// Open creates the store and starts loading the persisted snapshot in the
// background. Until the load finishes the cart reads as empty; mutations
// issued meanwhile are buffered and replayed on top of the loaded snapshot.
func Open(ctx context.Context, kv kvstore.Store, opts Options) *Store {
	s := &Store{
		kv:        kv,
		key:       opts.Key,
		log:       opts.Log,
		metrics:   opts.Metrics,
		observers: map[int]func([]LineItem){},
		ready:     make(chan struct{}),
	}
	if s.key == "" {
		s.key = DefaultKey
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}

	s.w = newWriter(s.save)
	go s.w.run()
	go s.load(ctx)

	return s
}

// Ready is closed once the initial load has finished, whether or not it
// succeeded.
func (s *Store) Ready() <-chan struct{} { return s.ready }

// WaitReady blocks until the initial load finished or ctx is done.
func (s *Store) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Add merges item into the entry with the same item and user id, summing
// quantities, or appends it. The quantity is not checked against stock:
// keeping 1 <= quantity <= stock is the caller's job.
func (s *Store) Add(item LineItem) { s.mutate(addItem(item)) }

// UpdateQuantity sets quantity on every entry with the given item id. No
// bounds are enforced.
func (s *Store) UpdateQuantity(itemID int64, quantity int) {
	s.mutate(setQuantity(itemID, quantity))
}

// Remove deletes every entry with the given item id. Absent ids are a no-op.
func (s *Store) Remove(itemID int64) { s.mutate(removeItem(itemID)) }

// RemoveSelected deletes every entry whose item id appears in selected.
func (s *Store) RemoveSelected(selected []LineItem) { s.mutate(removeSelected(selected)) }

// AddIf merges item like Add, but only when check accepts the entry item
// would merge into (zero value and false when there is none). check runs
// under the store lock and must not call back into the store. AddIf is not
// buffered: before the initial load it returns ErrNotLoaded.
func (s *Store) AddIf(item LineItem, check func(current LineItem, found bool) error) error {
	return s.mutateIf(addItem(item), func(items []LineItem) error {
		for _, it := range items {
			if it.SameEntry(item) {
				return check(it, true)
			}
		}
		return check(LineItem{}, false)
	})
}

// TakeSelected removes the selection like RemoveSelected, provided every
// selected entry is still held with the same quantity, and returns every
// entry it removed. Otherwise the cart is left alone and ErrSelectionChanged
// is returned.
func (s *Store) TakeSelected(selected []LineItem) ([]LineItem, error) {
	var taken []LineItem
	err := s.mutateIf(removeSelected(selected), func(items []LineItem) error {
		for _, want := range selected {
			if !holds(items, want) {
				return ErrSelectionChanged
			}
		}
		ids := make(map[int64]struct{}, len(selected))
		for _, it := range selected {
			ids[it.ItemID] = struct{}{}
		}
		for _, it := range items {
			if _, hit := ids[it.ItemID]; hit {
				taken = append(taken, it)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return taken, nil
}

func holds(items []LineItem, want LineItem) bool {
	for _, it := range items {
		if it.SameEntry(want) {
			return it.Quantity == want.Quantity
		}
	}
	return false
}

// Items returns a copy of the cart in insertion order.
func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]LineItem, len(s.items))
	copy(out, s.items)
	return out
}

// ItemsForUser returns the entries owned by userID in insertion order.
func (s *Store) ItemsForUser(userID string) []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]LineItem, 0, len(s.items))
	for _, it := range s.items {
		if it.UserID == userID {
			out = append(out, it)
		}
	}
	return out
}

// Subscribe registers fn to receive the cart after every change. fn runs on
// the mutating goroutine, in mutation order, and must not mutate the store.
func (s *Store) Subscribe(fn func([]LineItem)) (unsubscribe func()) {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.obsMu.Unlock()

	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

// Flush waits until every change made so far has been handed to storage.
// Storage failures are not reported here; they are logged and counted.
func (s *Store) Flush(ctx context.Context) error {
	if err := s.WaitReady(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	v := s.version
	s.mu.Unlock()

	return s.w.wait(ctx, v)
}

// Close flushes and stops the persistence writer. Later mutations still
// change memory but are no longer persisted.
func (s *Store) Close(ctx context.Context) error {
	err := s.Flush(ctx)
	s.w.close()
	return err
}

func (s *Store) mutate(m mutation) {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	s.mu.Lock()
	if !s.loaded {
		s.pending = append(s.pending, m)
		s.mu.Unlock()
		s.metrics.buffered(m.op)
		return
	}
	snap, v := s.applyLocked(m)
	s.mu.Unlock()

	s.publish(m.op, v, snap)
}

// mutateIf applies m only when the cart is loaded and check accepts its
// current contents.
func (s *Store) mutateIf(m mutation, check func([]LineItem) error) error {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return ErrNotLoaded
	}
	if err := check(s.items); err != nil {
		s.mu.Unlock()
		return err
	}
	snap, v := s.applyLocked(m)
	s.mu.Unlock()

	s.publish(m.op, v, snap)
	return nil
}

// applyLocked requires mu.
func (s *Store) applyLocked(m mutation) ([]LineItem, uint64) {
	s.items = m.apply(s.items)
	s.version++
	return s.items, s.version
}

func (s *Store) publish(op string, v uint64, snap []LineItem) {
	s.metrics.mutated(op, len(snap))
	s.w.enqueue(v, snap)
	s.notify(snap)
}

func (s *Store) load(ctx context.Context) {
	defer close(s.ready)

	items, err := s.readSnapshot(ctx)
	if err != nil {
		s.log.Error("load cart failed", zap.String("key", s.key), zap.Error(err))
		s.metrics.loadFailed()
		items = nil
	}

	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	s.mu.Lock()
	s.items = items
	for _, m := range s.pending {
		s.items = m.apply(s.items)
	}
	replayed := len(s.pending)
	s.pending = nil
	s.loaded = true
	if replayed > 0 {
		s.version++
	}
	snap, v := s.items, s.version
	s.mu.Unlock()

	s.metrics.loaded(len(snap))
	if replayed == 0 {
		return
	}

	s.log.Info("replayed buffered cart mutations", zap.Int("count", replayed))
	s.w.enqueue(v, snap)
	s.notify(snap)
}

func (s *Store) readSnapshot(ctx context.Context) ([]LineItem, error) {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return nil, nil
	}

	var items []LineItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decode cart snapshot: %w", err)
	}
	return items, nil
}

func (s *Store) save(ctx context.Context, items []LineItem) {
	if items == nil {
		items = []LineItem{}
	}

	b, err := json.Marshal(items)
	if err == nil {
		err = s.kv.Set(ctx, s.key, string(b))
	}
	if err != nil {
		s.log.Error("save cart failed", zap.String("key", s.key), zap.Int("items", len(items)), zap.Error(err))
		s.metrics.persistFailed()
	}
}

func (s *Store) notify(items []LineItem) {
	s.obsMu.Lock()
	fns := make([]func([]LineItem), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()

	for _, fn := range fns {
		out := make([]LineItem, len(items))
		copy(out, items)
		fn(out)
	}
}
