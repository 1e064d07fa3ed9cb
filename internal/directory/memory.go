
package directory

import (
	"sort"
	"sync"

	"github.com/meetwire/lounge/internal/proto"
)

// Memory is the in-process Store. Entries are stored by value; mutation
// goes through copy-out/copy-in under the mutex.
type Memory struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewMemory() *Memory {
	return &Memory{entries: map[string]Entry{}}
}

func (m *Memory) Put(e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ID] = e
}

func (m *Memory) Get(id string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	return e, ok
}

func (m *Memory) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return false
	}
	delete(m.entries, id)
	return true
}

func (m *Memory) SetStatus(id, status, peerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return false
	}
	e.Status = status
	e.PeerID = peerID
	m.entries[id] = e
	return true
}

func (m *Memory) Snapshot() []proto.PresenceEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]proto.PresenceEntry, 0, len(m.entries))
	for id, e := range m.entries {
		out = append(out, proto.PresenceEntry{UserID: id, Status: e.Status})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
