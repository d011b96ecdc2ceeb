package state

import (
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-react/internal/values"
)

// Logger defines the logging interface used by the Store.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Entity is the current state of one entity.
type Entity struct {
	ID          string         `json:"entity_id"`
	State       any            `json:"state"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	LastChanged time.Time      `json:"last_changed"`
}

// DeepCopy returns a copy that shares no maps with e.
func (e Entity) DeepCopy() Entity {
	e.Attributes = values.CopyMap(e.Attributes)
	e.State = values.Copy(e.State)
	return e
}

// WatchFunc is called with the id of an entity that changed.
type WatchFunc func(entity string)

type watch struct {
	id        uint64
	entities  map[string]bool
	all       bool
	fn        WatchFunc
	cancelled bool
}

// Store holds live entity state and notifies watchers on change.
//
// Watchers are called synchronously from Set, after the store lock is
// released, in the order they subscribed. A watcher may call back into
// the store, including cancelling itself or others.
//
// All public methods are thread-safe.
type Store struct {
	mu       sync.RWMutex
	entities map[string]Entity
	watches  []*watch
	nextID   uint64
	now      func() time.Time
	logger   Logger
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		entities: make(map[string]Entity),
		now:      time.Now,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// SetClock overrides the time source used for LastChanged.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Set records the state and attributes of an entity and notifies watchers.
// It returns false, without notifying, when nothing changed.
func (s *Store) Set(id string, state any, attrs map[string]any) bool {
	s.mu.Lock()
	prev, existed := s.entities[id]
	if existed && reflect.DeepEqual(prev.State, state) && reflect.DeepEqual(prev.Attributes, attrs) {
		s.mu.Unlock()
		return false
	}
	s.entities[id] = Entity{
		ID:          id,
		State:       values.Copy(state),
		Attributes:  values.CopyMap(attrs),
		LastChanged: s.now(),
	}
	targets := s.matching(id)
	s.mu.Unlock()

	s.logger.Debug("entity state changed", "entity", id, "state", state)
	s.notify(targets, id)
	return true
}

// Remove deletes an entity and notifies watchers.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	if _, ok := s.entities[id]; !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.entities, id)
	targets := s.matching(id)
	s.mu.Unlock()

	s.notify(targets, id)
	return true
}

// Get returns a copy of an entity.
func (s *Store) Get(id string) (Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok {
		return Entity{}, false
	}
	return e.DeepCopy(), true
}

// State returns the state value of an entity.
func (s *Store) State(id string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	return values.Copy(e.State), ok
}

// States returns a snapshot map of entity id to state.
func (s *Store) States() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.entities))
	for id, e := range s.entities {
		out[id] = values.Copy(e.State)
	}
	return out
}

// Attributes returns a copy of an entity's attributes (nil when unknown).
func (s *Store) Attributes(id string) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return values.CopyMap(s.entities[id].Attributes)
}

// List returns copies of all entities sorted by id.
func (s *Store) List() []Entity {
	s.mu.RLock()
	out := make([]Entity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, e.DeepCopy())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Watch calls fn whenever one of entities changes, or any entity when all is set.
// The returned function cancels the watch; it is safe to call more than once.
func (s *Store) Watch(entities []string, all bool, fn WatchFunc) (cancel func()) {
	w := &watch{
		entities: make(map[string]bool, len(entities)),
		all:      all,
		fn:       fn,
	}
	for _, e := range entities {
		w.entities[e] = true
	}

	s.mu.Lock()
	s.nextID++
	w.id = s.nextID
	s.watches = append(s.watches, w)
	s.mu.Unlock()

	return func() { s.unwatch(w.id) }
}

// WatchCount returns the number of active watches.
func (s *Store) WatchCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.watches)
}

func (s *Store) unwatch(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, w := range s.watches {
		if w.id == id {
			w.cancelled = true
			s.watches = append(s.watches[:i], s.watches[i+1:]...)
			return
		}
	}
}

// matching returns the watches interested in entity. Caller holds s.mu.
func (s *Store) matching(entity string) []*watch {
	var out []*watch
	for _, w := range s.watches {
		if w.all || w.entities[entity] {
			out = append(out, w)
		}
	}
	return out
}

func (s *Store) notify(targets []*watch, entity string) {
	for _, w := range targets {
		s.mu.RLock()
		cancelled := w.cancelled
		s.mu.RUnlock()
		if !cancelled {
			w.fn(entity)
		}
	}
}
