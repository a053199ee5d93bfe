package clip

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrClipNotFound is returned when a clip id is not registered.
	ErrClipNotFound = errors.New("clip not found")
	// ErrClipExists is returned when registering an id that is already taken.
	ErrClipExists = errors.New("clip already registered")
)

// ClipInfo summarises a registered clip for listings.
type ClipInfo struct {
	ID         string   `json:"id"`
	Duration   int      `json:"duration"`
	Loop       string   `json:"loop"`
	Properties []string `json:"properties"`
	Colors     []string `json:"colors,omitempty"`
}

// Registry holds clips by id. Other components keep only the id and look the
// clip up on use, so clips can be replaced or removed safely.
type Registry struct {
	mu    sync.RWMutex
	clips map[string]*Clip
}

// NewRegistry creates an empty clip registry.
func NewRegistry() *Registry {
	return &Registry{
		clips: make(map[string]*Clip),
	}
}

// Register adds c under its id. Registering an existing id fails.
func (r *Registry) Register(c *Clip) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clips[c.ID]; ok {
		return fmt.Errorf("register %q: %w", c.ID, ErrClipExists)
	}
	r.clips[c.ID] = c
	return nil
}

// Put adds or replaces c under its id.
func (r *Registry) Put(c *Clip) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clips[c.ID] = c
}

// Get returns the clip registered under id.
func (r *Registry) Get(id string) (*Clip, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clips[id]
	if !ok {
		return nil, fmt.Errorf("clip %q: %w", id, ErrClipNotFound)
	}
	return c, nil
}

// Remove unregisters id.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clips[id]; !ok {
		return fmt.Errorf("clip %q: %w", id, ErrClipNotFound)
	}
	delete(r.clips, id)
	return nil
}

// IDs returns the registered clip ids sorted for deterministic evaluation order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.clips))
	for id := range r.clips {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// List returns information about all registered clips, sorted by id for a
// stable API response.
func (r *Registry) List() []ClipInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ClipInfo, 0, len(r.clips))
	for id, c := range r.clips {
		infos = append(infos, ClipInfo{
			ID:         id,
			Duration:   c.Duration,
			Loop:       string(c.Loop),
			Properties: c.Properties(),
			Colors:     c.ColorProperties(),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ID < infos[j].ID
	})
	return infos
}

// Evaluate evaluates every clip at frame. Property keys are namespaced as
// "clip.property" so clips never collide.
func (r *Registry) Evaluate(frame int) (map[string]float64, map[string]string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	values := make(map[string]float64)
	colors := make(map[string]string)
	for id, c := range r.clips {
		for p, v := range c.Evaluate(frame) {
			values[id+"."+p] = v
		}
		for p, v := range c.EvaluateColors(frame) {
			colors[id+"."+p] = v
		}
	}
	return values, colors
}
