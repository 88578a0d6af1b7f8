package armband

import (
	"sync"
	"time"
)

// Registry maps connected handles to their Records, in connection order.
//
// A handle is present if and only if the device is currently connected.
// Removal happens synchronously with the disconnect, so a reused handle can
// never reach a stale record. Every connect is also assigned a generation;
// callers that validate a handle and mutate it later use UpdateGeneration so
// the mutation cannot land on a later connection of the same handle.
//
// All public methods are thread-safe and return copies; callers can keep
// and modify what they get back.
type Registry struct {
	mu      sync.RWMutex
	records map[Handle]*Record
	gens    map[Handle]uint64
	nextGen uint64
	order   []Handle // connection order
	sensors int
	now     func() time.Time
}

// NewRegistry creates an empty registry whose records carry sensors EMG
// channels. A non-positive count falls back to DefaultSensors.
func NewRegistry(sensors int) *Registry {
	if sensors < 1 {
		sensors = DefaultSensors
	}
	return &Registry{
		records: make(map[Handle]*Record),
		gens:    make(map[Handle]uint64),
		sensors: sensors,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Sensors returns the fixed EMG channel count of every record.
func (r *Registry) Sensors() int {
	return r.sensors
}

// Upsert creates a record for handle if none exists.
// It returns true if a record was created and false for a duplicate connect,
// in which case the existing record is left untouched.
func (r *Registry) Upsert(h Handle, id Identity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[h]; exists {
		return false
	}
	r.records[h] = newRecord(h, id, r.sensors, r.now())
	r.nextGen++
	r.gens[h] = r.nextGen
	r.order = append(r.order, h)
	return true
}

// Remove deletes the record for handle and returns a copy of it.
// The second value is false if the handle was not present.
func (r *Registry) Remove(h Handle) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.records[h]
	if !exists {
		return Record{}, false
	}
	delete(r.records, h)
	delete(r.gens, h)
	for i, oh := range r.order {
		if oh == h {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return *rec, true
}

// Get returns a copy of the record for handle.
func (r *Registry) Get(h Handle) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.records[h]
	if !exists {
		return Record{}, false
	}
	return *rec.DeepCopy(), true
}

// Contains reports whether handle is currently registered.
func (r *Registry) Contains(h Handle) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.records[h]
	return exists
}

// Generation returns the generation of handle's current connection.
// Generations are never reused within a Registry.
func (r *Registry) Generation(h Handle) (uint64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	gen, exists := r.gens[h]
	return gen, exists
}

// UpdateGeneration is Update restricted to the connection identified by gen.
// It returns false, without calling fn, if handle has since disconnected or
// reconnected.
func (r *Registry) UpdateGeneration(h Handle, gen uint64, fn func(*Record)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.records[h]
	if !exists || r.gens[h] != gen {
		return false
	}
	fn(rec)
	return true
}

// Update applies fn to the live record for handle under the exclusive lock.
// fn must only replace fields and must not keep the pointer.
// It returns false, without calling fn, if the handle is not present.
func (r *Registry) Update(h Handle, fn func(*Record)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.records[h]
	if !exists {
		return false
	}
	fn(rec)
	return true
}

// Snapshot returns copies of all records in connection order.
// The result is one consistent view of the registry.
func (r *Registry) Snapshot() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Record, 0, len(r.order))
	for _, h := range r.order {
		out = append(out, *r.records[h].DeepCopy())
	}
	return out
}

// Handles returns the registered handles in connection order.
func (r *Registry) Handles() []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Handle, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Clear removes every record.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = make(map[Handle]*Record)
	r.gens = make(map[Handle]uint64)
	r.order = nil
}
