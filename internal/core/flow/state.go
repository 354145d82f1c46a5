package flow

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/fleetops/fleetbot/internal/core/domain"
)

// Tag identifies which multi-step flow a user is currently inside.
type Tag string

const (
	TagAddVehicle      Tag = "add_vehicle"
	TagNewService      Tag = "new_service"
	TagEditVehicle     Tag = "edit_vehicle"
	TagRejectService   Tag = "reject_service"
	TagCompleteService Tag = "complete_service"
)

// State is one user's in-progress flow: the flow tag, the step awaiting
// input, and every field collected so far. Values are kept as strings so the
// state survives a round-trip through any backing store.
type State struct {
	Tag    Tag               `json:"tag"`
	Step   string            `json:"step"`
	Fields map[string]string `json:"fields"`
}

func newState(tag Tag, step string) *State {
	return &State{Tag: tag, Step: step, Fields: make(map[string]string)}
}

func (st *State) set(key, value string) {
	if st.Fields == nil {
		st.Fields = make(map[string]string)
	}
	st.Fields[key] = value
}

// field returns a previously collected value, or ErrStaleFlow when the flow
// state no longer holds it (e.g. after a backing-store loss).
func (st *State) field(key string) (string, error) {
	v, ok := st.Fields[key]
	if !ok {
		return "", fmt.Errorf("%w: missing %s", domain.ErrStaleFlow, key)
	}
	return v, nil
}

func (st *State) intField(key string) (int, error) {
	raw, err := st.field(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: corrupt %s", domain.ErrStaleFlow, key)
	}
	return n, nil
}

func (st *State) int64Field(key string) (int64, error) {
	raw, err := st.field(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: corrupt %s", domain.ErrStaleFlow, key)
	}
	return n, nil
}

func (st *State) floatField(key string) (float64, error) {
	raw, err := st.field(key)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: corrupt %s", domain.ErrStaleFlow, key)
	}
	return f, nil
}

// Store holds at most one State per chat. Implementations must treat a
// missing entry as (nil, nil), never as an error.
type Store interface {
	Get(ctx context.Context, chatID int64) (*State, error)
	Put(ctx context.Context, chatID int64, st *State) error
	Clear(ctx context.Context, chatID int64) error
}

// MemoryStore is the in-process Store used in tests and as a fallback when no
// persistent backing is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[int64]*State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[int64]*State)}
}

func (m *MemoryStore) Get(_ context.Context, chatID int64) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[chatID]
	if !ok {
		return nil, nil
	}
	clone := *st
	clone.Fields = make(map[string]string, len(st.Fields))
	for k, v := range st.Fields {
		clone.Fields[k] = v
	}
	return &clone, nil
}

func (m *MemoryStore) Put(_ context.Context, chatID int64, st *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[chatID] = st
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, chatID)
	return nil
}
