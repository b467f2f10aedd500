package retrieval

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/config"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/databases"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/embedders"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/observability"
)

// Pipeline runs one configured retrieval pipeline: embed fan-out,
// per-collection vector search, dedup, and the optional rerank and LLM
// filter stages.
type Pipeline struct {
	name     string
	cfg      config.PipelineConfig
	registry *embedders.Registry
	store    databases.Provider
	reranker *reranker
	filter   *llmFilter
	logger   *slog.Logger
}

func NewPipeline(name string, cfg config.PipelineConfig, registry *embedders.Registry, store databases.Provider) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, newError(name, "config", "invalid pipeline", err)
	}
	for _, m := range cfg.Models {
		if _, err := registry.GetEmbedder(m.Provider); err != nil {
			return nil, newError(name, "config", "unknown embedder", err)
		}
	}

	p := &Pipeline{
		name:     name,
		cfg:      cfg,
		registry: registry,
		store:    store,
		logger:   slog.Default().With("component", "retrieval", "pipeline", name),
	}
	if cfg.Rerank.Enabled() {
		p.reranker = newReranker(cfg.Rerank)
	}
	if cfg.LLMFilter.Enabled() {
		filter, err := newLLMFilter(cfg.LLMFilter)
		if err != nil {
			return nil, newError(name, "config", "failed to build llm filter", err)
		}
		p.filter = filter
	}
	return p, nil
}

func (p *Pipeline) Name() string { return p.name }

// Search runs the pipeline and surfaces at most topK chunks. A topK of
// zero or less uses the configured final_top_k.
func (p *Pipeline) Search(ctx context.Context, query string, topK int) ([]Chunk, error) {
	chunks, _, err := p.search(ctx, query, topK, false)
	return chunks, err
}

// SearchDebug additionally returns every stage's intermediate hits and
// wall-clock timings.
func (p *Pipeline) SearchDebug(ctx context.Context, query string, topK int) ([]Chunk, *Debug, error) {
	return p.search(ctx, query, topK, true)
}

func (p *Pipeline) search(ctx context.Context, query string, topK int, debugMode bool) ([]Chunk, *Debug, error) {
	if topK <= 0 || topK > p.cfg.Retrieval.FinalTopK {
		topK = p.cfg.Retrieval.FinalTopK
	}

	var debug *Debug
	if debugMode {
		debug = &Debug{}
	}
	record := func(stage string, start time.Time, hits []Hit, err error) {
		duration := time.Since(start)
		observability.GetGlobalMetrics().RecordRetrievalStage(ctx, p.name, stage, duration, err)
		if debug != nil {
			debug.Stages = append(debug.Stages, StageDebug{
				Stage: stage, Duration: duration, Hits: append([]Hit(nil), hits...),
			})
		}
	}

	start := time.Now()
	merged, err := p.fanOutSearch(ctx, query)
	record("search", start, merged, err)
	if err != nil {
		return nil, debug, err
	}

	start = time.Now()
	hits := dedupKeepClosest(merged)
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score < hits[j].Score })
	record("dedup", start, hits, nil)

	if p.reranker != nil {
		input := truncate(hits, min(p.cfg.ChunkSizes.RerankInput, p.cfg.Retrieval.RerankTopK))
		start = time.Now()
		reranked, err := p.reranker.Rerank(ctx, query, input, p.cfg.Retrieval.RerankTopK)
		record("rerank", start, reranked, err)
		if err != nil {
			return nil, debug, newError(p.name, "rerank", "reranker call failed", err)
		}
		hits = reranked
	}

	if p.filter != nil {
		input := truncate(hits, p.cfg.ChunkSizes.LLMFilterInput)
		start = time.Now()
		hits = p.filter.Filter(ctx, query, input, topK)
		record("llm_filter", start, hits, nil)
	}

	hits = truncate(hits, topK)
	chunks := make([]Chunk, len(hits))
	for i, h := range hits {
		chunks[i] = Chunk{ChunkID: h.ChunkID, Text: h.Text}
	}
	return chunks, debug, nil
}

// fanOutSearch embeds the query once per model and searches that
// model's collection. A failing model contributes zero hits; the stage
// fails only when every model does.
func (p *Pipeline) fanOutSearch(ctx context.Context, query string) ([]Hit, error) {
	limit := min(p.cfg.ChunkSizes.InitialSearch, p.cfg.Retrieval.TopKPerModel)

	var mu sync.Mutex
	var merged []Hit
	var lastErr error
	failures := 0

	g, gctx := errgroup.WithContext(ctx)
	for _, model := range p.cfg.Models {
		g.Go(func() error {
			hits, err := p.searchModel(gctx, model, query, limit)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				p.logger.Warn("Embedding model search failed",
					"provider", model.Provider, "model", model.Model, "error", err)
				failures++
				lastErr = err
				return nil
			}
			merged = append(merged, hits...)
			return nil
		})
	}
	_ = g.Wait()

	if failures == len(p.cfg.Models) {
		return nil, newError(p.name, "search", "all embedding models failed", lastErr)
	}
	return merged, nil
}

func (p *Pipeline) searchModel(ctx context.Context, model config.EmbeddingModelConfig, query string, limit int) ([]Hit, error) {
	embedder, err := p.registry.GetEmbedder(model.Provider)
	if err != nil {
		return nil, err
	}

	vector, err := embedder.Embed(ctx, query, model.Model)
	if err != nil {
		return nil, err
	}

	collection := model.Collection
	if collection == "" {
		collection = p.cfg.DefaultCollection
	}
	results, err := p.store.Search(ctx, collection, vector, limit)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		id, err := strconv.ParseInt(r.ID, 10, 64)
		if err != nil {
			p.logger.Warn("Dropping hit with non-integer id", "id", r.ID, "collection", collection)
			continue
		}
		hits = append(hits, Hit{ChunkID: id, Text: r.Text, Score: r.Distance})
	}
	return hits, nil
}

// dedupKeepClosest merges hits by chunk id, keeping the smallest
// distance seen for each.
func dedupKeepClosest(hits []Hit) []Hit {
	index := make(map[int64]int, len(hits))
	out := make([]Hit, 0, len(hits))
	for _, h := range hits {
		at, seen := index[h.ChunkID]
		if !seen {
			index[h.ChunkID] = len(out)
			out = append(out, h)
			continue
		}
		if h.Score < out[at].Score {
			out[at] = h
		}
	}
	return out
}

// Close releases the LLM filter's connection pool.
func (p *Pipeline) Close() error {
	if p.filter != nil {
		return p.filter.Close()
	}
	return nil
}
