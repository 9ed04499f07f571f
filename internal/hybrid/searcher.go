package hybrid

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/memctx/memctx/internal/config"
	memerrors "github.com/memctx/memctx/internal/errors"
	"github.com/memctx/memctx/internal/embedder"
	"github.com/memctx/memctx/internal/storage"
	"github.com/memctx/memctx/internal/tfidf"
	"github.com/memctx/memctx/internal/vectorstore"
)

// Searcher runs the fused candidate-retrieval pipeline over a single
// project's storage, lexical index, and vector store.
type Searcher struct {
	Store    *storage.Store
	TFIDF    *tfidf.Index
	Vectors  *vectorstore.Store
	Embedder embedder.Embedder
	Config   config.SearchConfig
}

// recallK is the per-lane oversample factor ahead of fusion/filtering, per
// spec's "k = 3*limit".
const recallK = 3

// Recall runs the full §4.5 pipeline: retrieve, normalize, fuse, decay,
// filter, diversity-cap, and paginate.
func (s *Searcher) Recall(ctx context.Context, query string, f Filter) (*Bundle, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = s.Config.DefaultLimit
	}
	k := recallK * limit

	fused, err := s.retrieveFused(ctx, query, k, f)
	if err != nil {
		return nil, err
	}
	if len(fused) == 0 {
		return &Bundle{Results: []Result{}, Total: 0, HasMore: false}, nil
	}

	results, err := s.materialize(ctx, fused)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	filtered := make([]Result, 0, len(results))
	for _, r := range results {
		if !matchesFilter(r.Memory, f) {
			continue
		}
		r.Score = decayAndOutcome(r.Memory, r.Score, now, s.Config)
		filtered = append(filtered, r)
	}

	sortResults(filtered)
	filtered = applyDiversity(filtered, s.Config.DiversityMaxPerFile)

	total := len(filtered)
	offset := f.Offset
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	return &Bundle{
		Results: filtered[offset:end],
		Total:   total,
		HasMore: total > offset+limit,
	}, nil
}

// Search is the flat variant: same candidate retrieval, no metadata
// filters beyond excluding archived memories, no decay and no diversity cap.
func (s *Searcher) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = s.Config.DefaultLimit
	}
	k := recallK * limit

	fused, err := s.retrieveFused(ctx, query, k, Filter{})
	if err != nil {
		return nil, err
	}
	if len(fused) == 0 {
		return []Result{}, nil
	}

	results, err := s.materialize(ctx, fused)
	if err != nil {
		return nil, err
	}

	filtered := make([]Result, 0, len(results))
	for _, r := range results {
		if matchesFilter(r.Memory, Filter{}) {
			filtered = append(filtered, r)
		}
	}

	sortResults(filtered)
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered, nil
}

func sortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if !results[i].Memory.UpdatedAt.Equal(results[j].Memory.UpdatedAt) {
			return results[i].Memory.UpdatedAt.After(results[j].Memory.UpdatedAt)
		}
		return results[i].Memory.ID < results[j].Memory.ID
	})
}

// retrieveFused runs lanes L/F and V concurrently and linearly fuses them.
// Lane failures are logged and contribute zero rather than failing the
// whole search, per spec's failure mode.
func (s *Searcher) retrieveFused(ctx context.Context, query string, k int, f Filter) (laneScores, error) {
	var lexical, vector laneScores

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		lexical = s.retrieveLexicalOrFTS(gctx, query, k)
		return nil
	})

	g.Go(func() error {
		vector = s.retrieveVector(gctx, query, k, f)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return fuse(normalizeLane(lexical), normalizeLane(vector), s.Config.HybridVectorWeight), nil
}

func (s *Searcher) retrieveLexicalOrFTS(ctx context.Context, query string, k int) laneScores {
	useFTS := s.Config.TFIDFMaxCorpus > 0 && s.TFIDF.Size() > s.Config.TFIDFMaxCorpus

	if !useFTS {
		hits := s.TFIDF.Query(query, k, s.Config.TFIDFThreshold)
		raw := make(laneScores, len(hits))
		for _, h := range hits {
			id, ok := parseMemoryID(h.ID)
			if !ok {
				continue
			}
			raw[id] = h.Score
		}
		return raw
	}

	hits, err := s.Store.SearchFTS(ctx, query, k)
	if err != nil {
		slog.Warn("hybrid_lane_fts_failed", "error", err)
		return laneScores{}
	}
	raw := make(laneScores, len(hits))
	for _, h := range hits {
		// modernc.org/sqlite's bm25(): lower (more negative) is a better
		// match. Invert so the lane's convention is higher-is-better,
		// matching lexical/vector.
		raw[h.MemoryID] = -h.RawScore
	}
	return raw
}

func (s *Searcher) retrieveVector(ctx context.Context, query string, k int, f Filter) laneScores {
	if s.Embedder == nil {
		return laneScores{}
	}

	vec, err := s.Embedder.Encode(ctx, query)
	if err != nil {
		slog.Warn("hybrid_lane_vector_encode_failed", "error", err)
		return laneScores{}
	}
	if vec == nil {
		return laneScores{}
	}

	hits, err := s.Vectors.Memories.Search(vec, k, toVectorFilter(f))
	if err != nil {
		slog.Warn("hybrid_lane_vector_search_failed", "error", err)
		return laneScores{}
	}

	raw := make(laneScores, len(hits))
	for _, h := range hits {
		id, ok := parseMemoryID(h.ID)
		if !ok {
			continue
		}
		if h.Score > s.Config.VectorThreshold {
			raw[id] = h.Score
		}
	}
	return raw
}

func toVectorFilter(f Filter) vectorstore.Filter {
	categories := make([]string, len(f.Categories))
	for i, c := range f.Categories {
		categories[i] = string(c)
	}
	return vectorstore.Filter{
		Categories: categories,
		TagsAny:    f.TagsAny,
		FilePath:   f.FilePath,
	}
}

// materialize loads the full memory row for each fused candidate id.
// Rows that have since been deleted are silently dropped.
func (s *Searcher) materialize(ctx context.Context, fused laneScores) ([]Result, error) {
	results := make([]Result, 0, len(fused))
	for id, score := range fused {
		m, err := s.Store.GetMemory(ctx, id)
		if err != nil {
			if memerrors.GetKind(err) != memerrors.NotFound {
				slog.Warn("hybrid_materialize_failed", "id", id, "error", err)
			}
			continue
		}
		results = append(results, Result{Memory: m, Score: score})
	}
	return results, nil
}
