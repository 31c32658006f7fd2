package vector

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// Index is an HNSW-backed vector index with per-entry payloads.
// One instance is shared process-wide; it is safe for concurrent use.
type Index struct {
	mu         sync.RWMutex
	graph      *hnsw.Graph[uint64]
	dimensions int

	// ID mapping (string <-> uint64)
	idMap    map[string]uint64
	keyMap   map[uint64]string
	payloads map[string]Payload
	nextKey  uint64

	closed bool
}

// indexMetadata stores ID mappings and payloads for persistence.
type indexMetadata struct {
	IDMap      map[string]uint64
	Payloads   map[string]Payload
	NextKey    uint64
	Dimensions int
}

// NewIndex creates an empty index. A dimensions of 0 adopts the
// dimension of the first vector upserted.
func NewIndex(dimensions int) *Index {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	return &Index{
		graph:      graph,
		dimensions: dimensions,
		idMap:      make(map[string]uint64),
		keyMap:     make(map[uint64]string),
		payloads:   make(map[string]Payload),
	}
}

// Dimensions returns the index's vector dimension (0 until first upsert)
func (ix *Index) Dimensions() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.dimensions
}

// Upsert inserts or replaces the vector and payload stored under id.
// Replacement uses lazy deletion: the old graph node is orphaned rather
// than removed, since deleting nodes destabilizes the graph.
func (ix *Index) Upsert(id string, vec []float32, payload Payload) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		return fmt.Errorf("index is closed")
	}
	if len(vec) == 0 {
		return fmt.Errorf("empty vector for id %s", id)
	}
	if ix.dimensions == 0 {
		ix.dimensions = len(vec)
	}
	if len(vec) != ix.dimensions {
		return ErrDimensionMismatch{Expected: ix.dimensions, Got: len(vec)}
	}

	if existingKey, exists := ix.idMap[id]; exists {
		delete(ix.keyMap, existingKey)
		delete(ix.idMap, id)
	}

	key := ix.nextKey
	ix.nextKey++

	normalized := make([]float32, len(vec))
	copy(normalized, vec)
	normalizeVectorInPlace(normalized)

	ix.graph.Add(hnsw.MakeNode(key, normalized))
	ix.idMap[id] = key
	ix.keyMap[key] = id
	ix.payloads[id] = payload

	return nil
}

// Search returns up to limit nearest entries by cosine similarity in
// descending score order. A non-empty projectID restricts results to
// that project's payloads; entries of other projects never leak
// through the filter.
func (ix *Index) Search(query []float32, limit int, projectID string) ([]Result, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if limit <= 0 {
		return []Result{}, nil
	}
	if ix.graph.Len() == 0 {
		return []Result{}, nil
	}
	if len(query) != ix.dimensions {
		return nil, ErrDimensionMismatch{Expected: ix.dimensions, Got: len(query)}
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeVectorInPlace(normalized)

	// Filtering and lazy deletion both drop candidates after the graph
	// search, so over-fetch whenever either can shrink the result set.
	k := limit
	if projectID != "" || ix.graph.Len() > len(ix.idMap) {
		k = ix.graph.Len()
	}

	nodes := ix.graph.Search(normalized, k)

	results := make([]Result, 0, limit)
	for _, node := range nodes {
		id, exists := ix.keyMap[node.Key]
		if !exists {
			continue // lazily deleted
		}
		payload := ix.payloads[id]
		if projectID != "" && payload.ProjectID != projectID {
			continue
		}

		distance := ix.graph.Distance(normalized, node.Value)
		results = append(results, Result{
			ID:      id,
			Score:   1.0 - distance/2.0,
			Payload: payload,
		})
		if len(results) == limit {
			break
		}
	}

	return results, nil
}

// DeleteProject removes every entry whose payload belongs to projectID
func (ix *Index) DeleteProject(projectID string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		return fmt.Errorf("index is closed")
	}

	for id, payload := range ix.payloads {
		if payload.ProjectID != projectID {
			continue
		}
		if key, exists := ix.idMap[id]; exists {
			delete(ix.keyMap, key)
			delete(ix.idMap, id)
		}
		delete(ix.payloads, id)
	}
	return nil
}

// Contains checks if id exists
func (ix *Index) Contains(id string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return false
	}
	_, exists := ix.idMap[id]
	return exists
}

// Count returns the number of live entries
func (ix *Index) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return 0
	}
	return len(ix.idMap)
}

// Save persists the index atomically: the graph goes to path, the ID
// mappings and payloads to path+".meta", each via temp file + rename.
func (ix *Index) Save(path string) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.closed {
		return fmt.Errorf("index is closed")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	if err := ix.graph.Export(file); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename index file: %w", err)
	}

	return ix.saveMetadata(path + ".meta")
}

func (ix *Index) saveMetadata(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create metadata file: %w", err)
	}

	meta := indexMetadata{
		IDMap:      ix.idMap,
		Payloads:   ix.payloads,
		NextKey:    ix.nextKey,
		Dimensions: ix.dimensions,
	}
	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close metadata file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Load restores an index previously written by Save
func (ix *Index) Load(path string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		return fmt.Errorf("index is closed")
	}

	if err := ix.loadMetadata(path + ".meta"); err != nil {
		return fmt.Errorf("load metadata: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()

	// coder/hnsw Import requires an io.ByteReader
	if err := ix.graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}
	return nil
}

func (ix *Index) loadMetadata(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open metadata file: %w", err)
	}
	defer file.Close()

	var meta indexMetadata
	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}

	ix.idMap = meta.IDMap
	ix.payloads = meta.Payloads
	ix.nextKey = meta.NextKey
	ix.dimensions = meta.Dimensions
	ix.keyMap = make(map[uint64]string, len(meta.IDMap))
	for id, key := range ix.idMap {
		ix.keyMap[key] = id
	}
	if ix.payloads == nil {
		ix.payloads = make(map[string]Payload)
	}
	return nil
}

// Close releases the index
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return nil
	}
	ix.closed = true
	ix.graph = nil
	return nil
}

// normalizeVectorInPlace normalizes a vector to unit length in place
func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}
