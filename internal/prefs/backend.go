package prefs

import (
	"sort"
	"sync"
)

// Backend is raw string key/value storage. Get reports ok=false for
// missing keys; an error means the storage itself failed.
type Backend interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
}

// Namespacer hands out isolated views of one storage, one per visitor.
type Namespacer interface {
	Namespace(name string) Backend
}

// Memory keeps preferences in process memory. The zero value is not
// usable; call NewMemory.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string]string
	ns   string
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string]string)}
}

// Namespace returns a view sharing the same underlying map.
func (m *Memory) Namespace(name string) Backend {
	return &memoryView{m: m, ns: name}
}

func (m *Memory) Get(key string) (string, bool, error) { return m.get(m.ns, key) }

func (m *Memory) Set(key, value string) error { return m.set(m.ns, key, value) }

// Raw returns a copy of one namespace's stored entries.
func (m *Memory) Raw(namespace string) map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.data[namespace]))
	for k, v := range m.data[namespace] {
		out[k] = v
	}
	return out
}

// Keys lists a namespace's keys in sorted order.
func (m *Memory) Keys(namespace string) []string {
	raw := m.Raw(namespace)
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *Memory) get(ns, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[ns][key]
	return v, ok, nil
}

func (m *Memory) set(ns, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket := m.data[ns]
	if bucket == nil {
		bucket = make(map[string]string)
		m.data[ns] = bucket
	}
	bucket[key] = value
	return nil
}

type memoryView struct {
	m  *Memory
	ns string
}

func (v *memoryView) Get(key string) (string, bool, error) { return v.m.get(v.ns, key) }

func (v *memoryView) Set(key, value string) error { return v.m.set(v.ns, key, value) }
