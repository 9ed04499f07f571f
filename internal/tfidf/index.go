package tfidf

import (
	"math"
	"sort"
	"sync"
)

// TagBoostFactor multiplies the term frequency of tokens that come from a
// document's tags, per spec §4.3. Exposed as a var so callers can wire it
// from config.SearchConfig.TagBoostFactor rather than hardcoding it.
var TagBoostFactor = 3.0

// document holds one indexed item's raw term counts; the TF-IDF vector and
// its norm are derived lazily from this plus the shared IDF table.
type document struct {
	termCounts map[string]float64
}

// Result is one scored hit from Query.
type Result struct {
	ID    string
	Score float64
}

// Index is a pure in-memory TF-IDF index, rebuilt from the relational
// store on demand (see Memory manager's rebuild_index). It is safe for
// concurrent use.
type Index struct {
	mu    sync.RWMutex
	docs  map[string]*document
	df    map[string]int // document frequency per term
	idf   map[string]float64
	dirty bool
}

// New returns an empty index.
func New() *Index {
	return &Index{
		docs: make(map[string]*document),
		df:   make(map[string]int),
		idf:  make(map[string]float64),
	}
}

// Add indexes (or replaces) document id with text and tags. Each tag's
// token term-frequency contribution is multiplied by TagBoostFactor before
// being merged with the text's token counts.
func (idx *Index) Add(id, text string, tags []string) {
	counts := make(map[string]float64)
	for _, tok := range Tokenize(text) {
		counts[tok]++
	}
	for _, tag := range tags {
		for _, tok := range Tokenize(tag) {
			counts[tok] += TagBoostFactor
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if existing, ok := idx.docs[id]; ok {
		idx.removeLocked(existing)
	}

	doc := &document{termCounts: counts}
	idx.docs[id] = doc
	for term := range counts {
		idx.df[term]++
	}
	idx.dirty = true
}

// Delete removes document id from the index.
func (idx *Index) Delete(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	doc, ok := idx.docs[id]
	if !ok {
		return
	}
	idx.removeLocked(doc)
	delete(idx.docs, id)
	idx.dirty = true
}

func (idx *Index) removeLocked(doc *document) {
	for term := range doc.termCounts {
		if idx.df[term] > 0 {
			idx.df[term]--
			if idx.df[term] == 0 {
				delete(idx.df, term)
			}
		}
	}
}

// Size returns the number of indexed documents, used by C5 to decide
// whether the corpus is small enough to prefer this lane over FTS.
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

// Clear empties the index, used before a full rebuild.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.docs = make(map[string]*document)
	idx.df = make(map[string]int)
	idx.idf = make(map[string]float64)
	idx.dirty = false
}

// recomputeIDF rebuilds the IDF table. Must be called with idx.mu held
// for writing. Uses smoothed IDF: ln(N/(1+df)) + 1, always positive.
func (idx *Index) recomputeIDF() {
	n := float64(len(idx.docs))
	idx.idf = make(map[string]float64, len(idx.df))
	for term, df := range idx.df {
		idx.idf[term] = math.Log(n/(1+float64(df))) + 1
	}
	idx.dirty = false
}

func (idx *Index) tfidfVector(counts map[string]float64) (map[string]float64, float64) {
	vec := make(map[string]float64, len(counts))
	var normSq float64
	for term, tf := range counts {
		weight := tf * idx.idf[term]
		vec[term] = weight
		normSq += weight * weight
	}
	return vec, math.Sqrt(normSq)
}

// Query returns up to topK documents scoring above threshold on cosine
// similarity between the query's TF-IDF vector and each document's.
func (idx *Index) Query(text string, topK int, threshold float64) []Result {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	queryCounts := make(map[string]float64)
	for _, tok := range tokens {
		queryCounts[tok]++
	}

	idx.mu.Lock()
	if idx.dirty {
		idx.recomputeIDF()
	}
	queryVec, queryNorm := idx.tfidfVector(queryCounts)

	results := make([]Result, 0, len(idx.docs))
	for id, doc := range idx.docs {
		docVec, docNorm := idx.tfidfVector(doc.termCounts)
		if queryNorm == 0 || docNorm == 0 {
			continue
		}

		var dot float64
		// Iterate the smaller vector for efficiency.
		small, large := queryVec, docVec
		if len(docVec) < len(queryVec) {
			small, large = docVec, queryVec
		}
		for term, w := range small {
			dot += w * large[term]
		}

		score := dot / (queryNorm * docNorm)
		if score >= threshold {
			results = append(results, Result{ID: id, Score: score})
		}
	}
	idx.mu.Unlock()

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}
