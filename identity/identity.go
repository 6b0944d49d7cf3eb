// Package identity tracks miner id keys and their rotations as blocks are scanned
package identity

import (
	"sort"
	"sync"

	"github.com/tonicpow/go-minerid/minerid"
)

// Identity refers to a single miner id key as it relates to the chain
type Identity struct {
	MinerID        string `json:"minerId"`
	PrevMinerID    string `json:"prevMinerId"`
	NextMinerID    string `json:"nextMinerId,omitempty"`
	DynamicMinerID string `json:"dynamicMinerId,omitempty"`
	FirstSeen      int32  `json:"firstSeen"`
	LastSeen       int32  `json:"lastSeen"`
	Blocks         int    `json:"blocks"`
	DataRefs       int    `json:"dataRefs"`
}

// Rotated reports whether this key was introduced by a previous key
func (i *Identity) Rotated() bool {
	return i.PrevMinerID != "" && i.PrevMinerID != i.MinerID
}

// State is the rotation chain of one miner, oldest key first
type State struct {
	CurrentMinerID string     `json:"currentMinerId"`
	History        []Identity `json:"history"`
}

// Registry is an in-memory index of miner ids seen in coinbase documents.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	ids     map[string]*Identity
	heights map[string]map[int32]struct{}
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{
		ids:     make(map[string]*Identity),
		heights: make(map[string]map[int32]struct{}),
	}
}

// Record adds a miner id found at height. Recording the same key at the
// same height again is a no-op.
func (r *Registry) Record(height int32, m *minerid.MinerID) {
	doc := m.Document()
	key := doc.MinerID()

	r.mu.Lock()
	defer r.mu.Unlock()

	seen := r.heights[key]
	if seen == nil {
		seen = make(map[int32]struct{})
		r.heights[key] = seen
	}
	if _, dup := seen[height]; dup {
		return
	}
	seen[height] = struct{}{}

	id, ok := r.ids[key]
	if !ok {
		id = &Identity{MinerID: key, PrevMinerID: doc.PrevMinerID(), FirstSeen: height, LastSeen: height}
		r.ids[key] = id
	}
	if height < id.FirstSeen {
		id.FirstSeen = height
		id.PrevMinerID = doc.PrevMinerID()
	}
	if height >= id.LastSeen {
		id.LastSeen = height
		id.DynamicMinerID = m.DynamicMinerID()
		refs, _ := doc.DataRefs()
		id.DataRefs = len(refs)
	}
	id.Blocks++

	if id.Rotated() {
		if prev, ok := r.ids[id.PrevMinerID]; ok && prev.NextMinerID == "" {
			prev.NextMinerID = key
		}
	}
	// a rotation recorded before its predecessor was seen
	for _, other := range r.ids {
		if other.Rotated() && other.PrevMinerID == key && id.NextMinerID == "" {
			id.NextMinerID = other.MinerID
		}
	}
}

// Get returns the record of one key
func (r *Registry) Get(minerID string) (Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.ids[minerID]
	if !ok {
		return Identity{}, false
	}
	return *id, true
}

// Lookup returns the full rotation chain containing minerID
func (r *Registry) Lookup(minerID string) (*State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.ids[minerID]
	if !ok {
		return nil, false
	}

	// walk back to the oldest known key
	seen := map[string]bool{id.MinerID: true}
	for id.Rotated() {
		prev, ok := r.ids[id.PrevMinerID]
		if !ok || seen[prev.MinerID] {
			break
		}
		seen[prev.MinerID] = true
		id = prev
	}

	// then forward to the current one
	state := &State{}
	seen = map[string]bool{}
	for id != nil && !seen[id.MinerID] {
		seen[id.MinerID] = true
		state.History = append(state.History, *id)
		state.CurrentMinerID = id.MinerID
		id = r.ids[id.NextMinerID]
	}
	return state, true
}

// All returns every known key ordered by first sighting
func (r *Registry) All() []Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Identity, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, *id)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FirstSeen != out[j].FirstSeen {
			return out[i].FirstSeen < out[j].FirstSeen
		}
		return out[i].MinerID < out[j].MinerID
	})
	return out
}

// Len is the number of known keys
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ids)
}
