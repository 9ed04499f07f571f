// Package vectorstore is the sole persistence for embeddings (C2). It backs
// two logical, cosine-similarity collections — "memories" and
// "code_entities" — each an in-process HNSW graph plus a payload map used
// to apply metadata filters at query time. The relational layer
// (internal/storage) holds only a reference flag; vectors and their
// filterable payload live here exclusively.
package vectorstore

import (
	"fmt"
	"math"
	"sync"

	"github.com/coder/hnsw"

	memerrors "github.com/memctx/memctx/internal/errors"
)

// Payload is the metadata stored alongside a vector, used to evaluate
// Filter without touching the relational store.
type Payload struct {
	Category    string
	Tags        []string
	FilePath    string
	Worked      *bool
	IsPermanent bool
}

// Filter restricts Search results by payload.
type Filter struct {
	Categories []string
	TagsAny    []string
	FilePath   string
}

func (f Filter) matches(p Payload) bool {
	if len(f.Categories) > 0 && !containsString(f.Categories, p.Category) {
		return false
	}
	if len(f.TagsAny) > 0 && !intersects(f.TagsAny, p.Tags) {
		return false
	}
	if f.FilePath != "" && f.FilePath != p.FilePath {
		return false
	}
	return true
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}

// Result is one scored search hit. Score is cosine similarity in [-1,1];
// callers treat only [0,1] as meaningful per the collection contract.
type Result struct {
	ID    string
	Score float64
}

// Collection is one named HNSW graph with id<->key mapping and payloads,
// following the teacher's lazy-deletion HNSWStore: deleting the last live
// node of a coder/hnsw graph is unsafe, so deletes only orphan the id/key
// mapping rather than mutating the graph.
type Collection struct {
	mu      sync.RWMutex
	name    string
	dim     int
	graph   *hnsw.Graph[uint64]
	idMap   map[string]uint64
	keyMap  map[uint64]string
	payload map[string]Payload
	vectors map[string][]float32
	nextKey uint64
}

func newCollection(name string, dim int) *Collection {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	return &Collection{
		name:    name,
		dim:     dim,
		graph:   graph,
		idMap:   make(map[string]uint64),
		keyMap:  make(map[uint64]string),
		payload: make(map[string]Payload),
		vectors: make(map[string][]float32),
	}
}

// Upsert inserts or replaces the vector and payload for id.
func (c *Collection) Upsert(id string, vector []float32, payload Payload) error {
	if len(vector) != c.dim {
		return memerrors.Validationf("vectorstore.Upsert",
			"%s: expected %d dimensions, got %d", c.name, c.dim, len(vector))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existingKey, ok := c.idMap[id]; ok {
		delete(c.keyMap, existingKey)
		delete(c.idMap, id)
	}

	vec := make([]float32, len(vector))
	copy(vec, vector)
	normalize(vec)

	key := c.nextKey
	c.nextKey++

	c.graph.Add(hnsw.MakeNode(key, vec))
	c.idMap[id] = key
	c.keyMap[key] = id
	c.payload[id] = payload
	c.vectors[id] = vec

	return nil
}

// Search returns up to k nearest neighbors to query matching filter.
// HNSW is always asked for 4*k candidates (capped at the graph size) and
// the filter is applied afterwards, since HNSW approximate search doesn't
// know about the filter ahead of time; a restrictive filter can leave
// fewer than k results.
func (c *Collection) Search(query []float32, k int, filter Filter) ([]Result, error) {
	if len(query) != c.dim {
		return nil, memerrors.Validationf("vectorstore.Search",
			"%s: expected %d dimensions, got %d", c.name, c.dim, len(query))
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.graph.Len() == 0 {
		return nil, nil
	}

	q := make([]float32, len(query))
	copy(q, query)
	normalize(q)

	// Oversample to absorb post-filter drop-out; cap to avoid pathological
	// scans on a small, heavily filtered graph.
	searchK := k * 4
	if searchK > c.graph.Len() {
		searchK = c.graph.Len()
	}
	if searchK < k {
		searchK = k
	}

	nodes := c.graph.Search(q, searchK)

	results := make([]Result, 0, k)
	for _, node := range nodes {
		id, ok := c.keyMap[node.Key]
		if !ok {
			continue
		}
		p, ok := c.payload[id]
		if !ok || !filter.matches(p) {
			continue
		}

		distance := c.graph.Distance(q, node.Value)
		score := 1 - distance // coder/hnsw's CosineDistance is 1-cos_sim; invert back to [-1,1]

		results = append(results, Result{ID: id, Score: score})
		if len(results) >= k {
			break
		}
	}

	return results, nil
}

// Delete orphans id's mapping; the underlying graph node is left in place
// (lazy deletion), matching the teacher's documented coder/hnsw workaround.
func (c *Collection) Delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if key, ok := c.idMap[id]; ok {
		delete(c.keyMap, key)
		delete(c.idMap, id)
	}
	delete(c.payload, id)
	delete(c.vectors, id)
}

// Contains reports whether id has a live vector.
func (c *Collection) Contains(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.idMap[id]
	return ok
}

// Count returns the number of live (non-orphaned) vectors.
func (c *Collection) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.idMap)
}

// Dim returns the collection's fixed embedding dimension.
func (c *Collection) Dim() int {
	return c.dim
}

// VectorFor returns the normalized vector stored for id, used by export to
// round-trip embeddings without re-encoding.
func (c *Collection) VectorFor(id string) ([]float32, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	vec, ok := c.vectors[id]
	if !ok {
		return nil, memerrors.NotFoundf("vectorstore.VectorFor", "%s: no vector for id %q", c.name, id)
	}
	out := make([]float32, len(vec))
	copy(out, vec)
	return out, nil
}

func normalize(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range v {
		v[i] /= norm
	}
}

// Store holds the two fixed logical collections the spec names.
type Store struct {
	Memories     *Collection
	CodeEntities *Collection
}

// New creates both collections at the given embedding dimension.
func New(dim int) *Store {
	return &Store{
		Memories:     newCollection("memories", dim),
		CodeEntities: newCollection("code_entities", dim),
	}
}

// Collection looks up a named collection; memctx only ever names
// "memories" or "code_entities".
func (s *Store) Collection(name string) (*Collection, error) {
	switch name {
	case "memories":
		return s.Memories, nil
	case "code_entities":
		return s.CodeEntities, nil
	default:
		return nil, fmt.Errorf("unknown vector collection %q", name)
	}
}
