package trader

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gregtusar/perptrader/pkg/models"
)

// StrategyState is the progress of one running strategy. Only the loop that
// created it writes to it; readers get copies.
type StrategyState struct {
	ID        string               `json:"id"`
	Kind      string               `json:"kind"`
	Asset     string               `json:"asset"`
	Step      int                  `json:"step"`
	Steps     int                  `json:"steps"`
	LastOid   uint64               `json:"lastOid,omitempty"`
	Deadline  *time.Time           `json:"deadline,omitempty"`
	Ratio     float64              `json:"ratio,omitempty"`
	Phase     models.PairPhase     `json:"phase,omitempty"`
	Fills     []models.OrderStatus `json:"fills,omitempty"`
	StartedAt time.Time            `json:"startedAt"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

func (s StrategyState) clone() StrategyState {
	out := s
	out.Fills = append([]models.OrderStatus(nil), s.Fills...)
	if s.Deadline != nil {
		d := *s.Deadline
		out.Deadline = &d
	}
	return out
}

// Registry tracks the strategies running in this process. A strategy is
// removed as soon as it terminates.
type Registry struct {
	mu     sync.RWMutex
	states map[string]*StrategyState
}

func NewRegistry() *Registry {
	return &Registry{states: make(map[string]*StrategyState)}
}

func (r *Registry) start(kind, asset string, steps int, now time.Time) string {
	id := uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[id] = &StrategyState{
		ID:        id,
		Kind:      kind,
		Asset:     asset,
		Steps:     steps,
		StartedAt: now,
		UpdatedAt: now,
	}
	return id
}

func (r *Registry) update(id string, now time.Time, fn func(*StrategyState)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.states[id]; ok {
		fn(s)
		s.UpdatedAt = now
	}
}

func (r *Registry) finish(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, id)
}

func (r *Registry) Get(id string) (StrategyState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.states[id]
	if !ok {
		return StrategyState{}, false
	}
	return s.clone(), true
}

// List returns all running strategies, oldest first.
func (r *Registry) List() []StrategyState {
	r.mu.RLock()
	out := make([]StrategyState, 0, len(r.states))
	for _, s := range r.states {
		out = append(out, s.clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}
