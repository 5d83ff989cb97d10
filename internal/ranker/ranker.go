// Package ranker resolves a set of plan queries into a diversified,
// budget-ready list of chunk hits, per spec §4.6. It has no teacher
// analogue as a package, but follows the shape the teacher gives its
// pure numeric helpers in internal/cluster (pairwiseDistances,
// wardLinkage): stateless functions over data already loaded from the
// database, package-tested in isolation from the pipeline that calls
// them.
package ranker

import (
	"context"
	"sort"

	"github.com/patrickmvla/rift-copilot/internal/storage"
)

// Hit is one ranked chunk candidate.
type Hit struct {
	ID       string
	SourceID string
	Text     string
	Score    float64
	BM25     *float64
	Snippet  *string
}

// Options configures a single RankForQueries call.
type Options struct {
	Cap            int
	PerQueryTake   int
	PerSourceLimit int
	EnableRerank   bool
	TimeoutMs      int
}

func (o Options) withDefaults() Options {
	if o.Cap <= 0 {
		o.Cap = 24
	}
	if o.PerQueryTake <= 0 {
		o.PerQueryTake = 20
	}
	if o.PerSourceLimit <= 0 {
		o.PerSourceLimit = 3
	}
	return o
}

// Reranker cross-encoder-scores query/candidate pairs into [0,1]
// relevance. Implementations wrap an LLM gateway rerank model.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []string) ([]float64, error)
}

// Ranker resolves plan queries into ranked, diversified chunk hits.
type Ranker struct {
	db       *storage.DB
	reranker Reranker
}

// New constructs a Ranker. reranker may be nil.
func New(db *storage.DB, reranker Reranker) *Ranker {
	return &Ranker{db: db, reranker: reranker}
}

// RankForQueries implements the algorithm of §4.6.
func (r *Ranker) RankForQueries(ctx context.Context, queries []string, opts Options) ([]Hit, error) {
	opts = opts.withDefaults()

	merged := make(map[string]Hit)
	anyHits := false

	for _, q := range queries {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		hits, err := r.searchOneQuery(ctx, q, opts)
		if err != nil {
			return nil, err
		}
		if len(hits) > 0 {
			anyHits = true
		}
		mergeMax(merged, hits)
	}

	if !anyHits {
		if err := r.db.RebuildFTS(); err == nil {
			for _, q := range queries {
				hits, err := r.searchOneQuery(ctx, q, opts)
				if err != nil {
					return nil, err
				}
				if len(hits) > 0 {
					anyHits = true
				}
				mergeMax(merged, hits)
			}
		}
	}

	if !anyHits {
		fallback, err := r.likeFallback(queries, opts)
		if err != nil {
			return nil, err
		}
		mergeMax(merged, fallback)
	}

	ordered := sortedByScore(merged)
	return diversifyBySource(ordered, opts.Cap, opts.PerSourceLimit), nil
}

func (r *Ranker) searchOneQuery(ctx context.Context, query string, opts Options) ([]Hit, error) {
	expr := buildFTSQuery(query)
	ftsHits, err := r.db.SearchChunksFTS(expr, opts.PerQueryTake)
	if err != nil {
		// A malformed MATCH expression (rare, after our token cleanup)
		// contributes no hits for this query; RankForQueries runs the
		// LIKE fallback only when no query produced any FTS hits.
		return nil, nil
	}

	hits := make([]Hit, len(ftsHits))
	for i, h := range ftsHits {
		hits[i] = Hit{
			ID:       h.Chunk.ID,
			SourceID: h.Chunk.SourceID,
			Text:     h.Chunk.Text,
			Score:    normalizeBM25(h.BM25),
			BM25:     ptrFloat(h.BM25),
		}
	}

	if opts.EnableRerank && r.reranker != nil && len(hits) > 0 {
		texts := make([]string, len(hits))
		for i, h := range hits {
			texts[i] = h.Text
		}
		if relevance, err := r.reranker.Rerank(ctx, query, texts); err == nil && len(relevance) == len(hits) {
			for i := range hits {
				hits[i].Score = relevance[i]
			}
		}
		// on error, fall back silently to BM25-derived scores already set.
	}

	return hits, nil
}

func (r *Ranker) likeFallback(queries []string, opts Options) ([]Hit, error) {
	seen := map[string]bool{}
	var terms []string
	for _, q := range queries {
		for _, t := range likeTerms(q) {
			if !seen[t] {
				seen[t] = true
				terms = append(terms, t)
			}
		}
	}
	if len(terms) == 0 {
		return nil, nil
	}

	var chunks []storage.Chunk
	chunkSeen := map[string]bool{}
	for _, t := range terms {
		matches, err := r.db.SearchChunksLike(t, opts.PerQueryTake)
		if err != nil {
			return nil, err
		}
		for _, c := range matches {
			if !chunkSeen[c.ID] {
				chunkSeen[c.ID] = true
				chunks = append(chunks, c)
			}
		}
	}

	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Tokens > chunks[j].Tokens })

	hits := make([]Hit, len(chunks))
	for i, c := range chunks {
		hits[i] = Hit{ID: c.ID, SourceID: c.SourceID, Text: c.Text, Score: 0.5}
	}
	return hits, nil
}

func mergeMax(into map[string]Hit, hits []Hit) {
	for _, h := range hits {
		existing, ok := into[h.ID]
		if !ok || h.Score > existing.Score {
			into[h.ID] = h
		}
	}
}

func sortedByScore(m map[string]Hit) []Hit {
	out := make([]Hit, 0, len(m))
	for _, h := range m {
		out = append(out, h)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// diversifyBySource caps per-source occurrences while walking the
// score-descending list, then fills remaining slots from the
// remainder in score order until cap is reached, per §4.6 step 5.
func diversifyBySource(ordered []Hit, cap, perSourceLimit int) []Hit {
	chosen := make([]Hit, 0, cap)
	sourceCounts := make(map[string]int)
	var remainder []Hit

	for _, h := range ordered {
		if len(chosen) >= cap {
			break
		}
		if sourceCounts[h.SourceID] < perSourceLimit {
			chosen = append(chosen, h)
			sourceCounts[h.SourceID]++
		} else {
			remainder = append(remainder, h)
		}
	}

	for _, h := range remainder {
		if len(chosen) >= cap {
			break
		}
		chosen = append(chosen, h)
	}

	return chosen
}

func normalizeBM25(bm25 float64) float64 {
	if bm25 > 0 {
		return 1 / (1 + bm25)
	}
	return 0.5
}

func ptrFloat(f float64) *float64 { return &f }
