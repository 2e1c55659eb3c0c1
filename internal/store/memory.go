package store

import (
	"sort"
	"sync"
)

// subscriberBuffer is the per-subscriber channel capacity. Updates beyond it
// are dropped for that subscriber.
const subscriberBuffer = 100

// MemoryStore is an in-memory implementation of [Store].
//
// Records are keyed by descriptor name; a newer record replaces the older
// one whichever dispatch produced it. Subscribers get every update on a
// buffered channel, and a subscriber whose buffer is full misses updates
// instead of stalling the collector that feeds the store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]OutcomeRecord

	// subs maps the receive side handed to callers to the send side kept
	// here, so Unsubscribe is a lookup.
	subsMu sync.RWMutex
	subs   map[<-chan OutcomeRecord]chan OutcomeRecord
}

// NewMemoryStore creates an empty [MemoryStore], ready for use.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]OutcomeRecord),
		subs:    make(map[<-chan OutcomeRecord]chan OutcomeRecord),
	}
}

// Update stores record under its Name and publishes it to subscribers.
func (m *MemoryStore) Update(record OutcomeRecord) {
	m.mu.Lock()
	m.records[record.Name] = record
	m.mu.Unlock()

	m.publish(record)
}

// GetAll returns a copy of the stored records, sorted by name.
func (m *MemoryStore) GetAll() []OutcomeRecord {
	m.mu.RLock()
	out := make([]OutcomeRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Subscribe returns a channel receiving every subsequent update.
// Call [MemoryStore.Unsubscribe] when done.
func (m *MemoryStore) Subscribe() <-chan OutcomeRecord {
	ch := make(chan OutcomeRecord, subscriberBuffer)

	m.subsMu.Lock()
	m.subs[ch] = ch
	m.subsMu.Unlock()

	return ch
}

// Unsubscribe removes the subscription and closes its channel.
// Unknown or already removed channels are ignored.
func (m *MemoryStore) Unsubscribe(ch <-chan OutcomeRecord) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	send, ok := m.subs[ch]
	if !ok {
		return
	}
	delete(m.subs, ch)
	close(send)
}

// publish never blocks; a full subscriber misses the record.
func (m *MemoryStore) publish(record OutcomeRecord) {
	m.subsMu.RLock()
	defer m.subsMu.RUnlock()

	for _, send := range m.subs {
		select {
		case send <- record:
		default:
		}
	}
}
