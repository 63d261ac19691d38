package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ai-docassist-be/pkg/cache"
	"ai-docassist-be/pkg/docloader"
	"ai-docassist-be/pkg/graph"
	"ai-docassist-be/pkg/llm"
	"ai-docassist-be/pkg/prompts"
	"ai-docassist-be/pkg/utils"
	"ai-docassist-be/pkg/vector"
	"ai-docassist-be/pkg/websearch"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
)

const (
	// Retrieval widths. The web branch keeps a few vector chunks so a
	// web-flavored query still sees the document.
	webResultCount  = 5
	webVectorCount  = 3
	vectorOnlyCount = 8

	// maxRefines bounds the verify/refine loop before the fixed
	// fallback reply takes over.
	maxRefines = 3
)

// SummaryState is threaded through one summary or document Q&A run.
type SummaryState struct {
	runLog

	FileURL string
	Query   string
	Lang    string
	FileID  string

	IsSummary bool
	Cached    bool

	Chunks    []string
	needEmbed bool

	DocSummary  string
	NeedWeb     bool
	Retrieved   []string
	NeedRefine  bool
	RefineCount int
	Unrelated   bool

	Summary string
	Answer  string
}

// SummaryResult is the caller-facing view over the final state.
type SummaryResult struct {
	Log     []string `json:"log"`
	FileID  string   `json:"file_id"`
	Summary string   `json:"summary,omitempty"`
	Answer  string   `json:"answer,omitempty"`
	Cached  bool     `json:"cached"`
	Error   string   `json:"error,omitempty"`
}

const (
	routeSumSummarize graph.RouteKey = "summarize"
	routeSumRAG       graph.RouteKey = "rag_router"
	routeSumWeb       graph.RouteKey = "retrieve_web"
	routeSumVector    graph.RouteKey = "retrieve_vector"
	routeSumGenerate  graph.RouteKey = "generate"
	routeSumRefine    graph.RouteKey = "refine"
	routeSumEmbed     graph.RouteKey = "embed"
	routeSumTranslate graph.RouteKey = "translate"
	routeSumFinish    graph.RouteKey = "finish"
)

// SummaryPipeline summarizes a document or answers a question about it
// with corrective RAG. A SUMMARY_ALL query takes the summarize branch;
// anything else retrieves, grades, generates, verifies and refines until
// the answer passes, the refine budget runs out, or the query turns out
// to be off-document.
type SummaryPipeline struct {
	llm     llm.Chain
	vectors vector.Store
	cache   cache.Store
	loader  docloader.Loader
	web     websearch.Client

	// memo keeps freshly generated document summaries in process so the
	// refine loop and back-to-back questions skip the Redis round trip.
	memo *gocache.Cache

	runnable *graph.Runnable[*SummaryState]
}

func NewSummaryPipeline(chain llm.Chain, vectors vector.Store, cacheStore cache.Store, loader docloader.Loader, web websearch.Client) (*SummaryPipeline, error) {
	p := &SummaryPipeline{
		llm:     chain,
		vectors: vectors,
		cache:   cacheStore,
		loader:  loader,
		web:     web,
		memo:    gocache.New(15*time.Minute, 30*time.Minute),
	}

	g := graph.New[*SummaryState]()
	g.AddNode("entry", p.entry).
		AddNode("load", withRetry("load", p.load)).
		AddNode("embed", withRetry("embed", p.embed)).
		AddNode("summarize", withRetry("summarize", p.summarize)).
		AddNode("save", withRetry("save", p.save)).
		AddNode("rag_router", withRetry("rag_router", p.ragRouter)).
		AddNode("retrieve_web", withRetry("retrieve_web", p.retrieveWeb)).
		AddNode("retrieve_vector", withRetry("retrieve_vector", p.retrieveVector)).
		AddNode("grade", withRetry("grade", p.grade)).
		AddNode("generate", withRetry("generate", p.generate)).
		AddNode("verify", withRetry("verify", p.verify)).
		AddNode("refine", withRetry("refine", p.refine)).
		AddNode("translate", withRetry("translate", p.translate)).
		AddNode("finish", p.finish)

	g.AddEdge("entry", "load")

	g.AddConditionalEdges("load", func(st *SummaryState) graph.RouteKey {
		if st.failed() {
			return routeSumFinish
		}
		if st.Cached {
			return routeSumTranslate
		}
		return routeSumEmbed
	}, map[graph.RouteKey]string{
		routeSumEmbed:     "embed",
		routeSumTranslate: "translate",
		routeSumFinish:    "finish",
	})

	g.AddConditionalEdges("embed", func(st *SummaryState) graph.RouteKey {
		if st.failed() {
			return routeSumFinish
		}
		if st.IsSummary {
			return routeSumSummarize
		}
		return routeSumRAG
	}, map[graph.RouteKey]string{
		routeSumSummarize: "summarize",
		routeSumRAG:       "rag_router",
		routeSumFinish:    "finish",
	})

	g.AddEdge("summarize", "save").
		AddEdge("save", "translate")

	g.AddConditionalEdges("rag_router", func(st *SummaryState) graph.RouteKey {
		if st.failed() {
			return routeSumFinish
		}
		if st.NeedWeb {
			return routeSumWeb
		}
		return routeSumVector
	}, map[graph.RouteKey]string{
		routeSumWeb:    "retrieve_web",
		routeSumVector: "retrieve_vector",
		routeSumFinish: "finish",
	})

	g.AddEdge("retrieve_web", "grade").
		AddEdge("retrieve_vector", "grade")

	g.AddConditionalEdges("grade", func(st *SummaryState) graph.RouteKey {
		if st.failed() {
			return routeSumFinish
		}
		if st.Unrelated {
			return routeSumTranslate
		}
		return routeSumGenerate
	}, map[graph.RouteKey]string{
		routeSumGenerate:  "generate",
		routeSumTranslate: "translate",
		routeSumFinish:    "finish",
	})

	g.AddEdge("generate", "verify")

	g.AddConditionalEdges("verify", func(st *SummaryState) graph.RouteKey {
		if st.failed() {
			return routeSumFinish
		}
		if st.NeedRefine {
			return routeSumRefine
		}
		return routeSumTranslate
	}, map[graph.RouteKey]string{
		routeSumRefine:    "refine",
		routeSumTranslate: "translate",
		routeSumFinish:    "finish",
	})

	g.AddConditionalEdges("refine", func(st *SummaryState) graph.RouteKey {
		if st.failed() {
			return routeSumFinish
		}
		if st.Unrelated {
			return routeSumTranslate
		}
		return routeSumRAG
	}, map[graph.RouteKey]string{
		routeSumRAG:       "rag_router",
		routeSumTranslate: "translate",
		routeSumFinish:    "finish",
	})

	g.AddEdge("translate", "finish").
		SetEntryPoint("entry").
		SetFinishPoint("finish")

	runnable, err := g.Compile()
	if err != nil {
		return nil, fmt.Errorf("summary pipeline: %w", err)
	}
	p.runnable = runnable
	return p, nil
}

// Run executes the pipeline for one document URL and query.
func (p *SummaryPipeline) Run(ctx context.Context, fileURL, query, lang string) (*SummaryResult, error) {
	st, err := p.runnable.Invoke(ctx, &SummaryState{
		FileURL: fileURL,
		Query:   query,
		Lang:    lang,
	})
	if err != nil {
		return nil, err
	}

	res := &SummaryResult{
		Log:    st.Log,
		FileID: st.FileID,
		Cached: st.Cached,
		Error:  st.Error,
	}
	if st.Error != "" {
		return res, nil
	}
	if st.IsSummary {
		res.Summary = st.Summary
	} else {
		res.Answer = st.Answer
	}
	return res, nil
}

func (p *SummaryPipeline) entry(ctx context.Context, st *SummaryState) (*SummaryState, error) {
	st.FileID = utils.HashKey(st.FileURL)
	st.IsSummary = strings.EqualFold(strings.TrimSpace(st.Query), SummaryAllSentinel)
	// Marker only; a failing sink must not fail the run.
	_ = p.cache.AppendLog(ctx, st.FileID, st.FileURL, st.Query, st.Lang, "entry")
	return st, nil
}

// load resolves the document text. Cached summaries short-circuit the
// whole summarize branch; otherwise chunks come from the vector store
// when the document is already indexed, or from the loader when not.
func (p *SummaryPipeline) load(ctx context.Context, st *SummaryState) (*SummaryState, error) {
	if st.IsSummary {
		exists, err := p.cache.ExistsSummary(ctx, st.FileID)
		if err != nil {
			return st, err
		}
		if exists {
			summary, err := p.cache.GetSummary(ctx, st.FileID)
			if err != nil {
				return st, err
			}
			st.Summary = summary
			st.Cached = true
			return st, nil
		}
	}

	indexed, err := p.vectors.HasChunks(ctx, st.FileID)
	if err != nil {
		return st, err
	}
	if indexed {
		chunks, err := p.vectors.GetAll(ctx, st.FileID)
		if err != nil {
			return st, err
		}
		st.Chunks = chunks
		return st, nil
	}

	pages, err := p.loader.Load(ctx, st.FileURL, false)
	if err != nil {
		return st, err
	}
	st.Chunks = docloader.Texts(pages)
	st.needEmbed = true
	return st, nil
}

func (p *SummaryPipeline) embed(ctx context.Context, st *SummaryState) (*SummaryState, error) {
	if !st.needEmbed {
		return st, nil
	}
	if err := p.vectors.Upsert(ctx, st.Chunks, st.FileID); err != nil {
		return st, err
	}
	return st, nil
}

func (p *SummaryPipeline) summarize(ctx context.Context, st *SummaryState) (*SummaryState, error) {
	summary, err := p.llm.Summarize(ctx, st.Chunks)
	if err != nil {
		return st, err
	}
	st.Summary = summary
	return st, nil
}

func (p *SummaryPipeline) save(ctx context.Context, st *SummaryState) (*SummaryState, error) {
	if st.failed() || st.Summary == "" {
		return st, nil
	}
	if err := p.cache.SetSummary(ctx, st.FileID, st.Summary); err != nil {
		return st, err
	}
	p.memo.Set(st.FileID, st.Summary, gocache.DefaultExpiration)
	return st, nil
}

// ragRouter loads the document summary that grounds grading and
// refinement, then decides whether the query needs web augmentation.
func (p *SummaryPipeline) ragRouter(ctx context.Context, st *SummaryState) (*SummaryState, error) {
	if st.DocSummary == "" {
		summary, err := p.docSummary(ctx, st)
		if err != nil {
			return st, err
		}
		st.DocSummary = summary
	}

	verdict, err := p.llm.Complete(ctx, prompts.DetermineWeb(st.Query, st.DocSummary), true)
	if err != nil {
		return st, err
	}
	st.NeedWeb = strings.Contains(strings.ToLower(verdict), "true")
	st.appendLog(fmt.Sprintf("need_web: %v", st.NeedWeb))
	return st, nil
}

func (p *SummaryPipeline) docSummary(ctx context.Context, st *SummaryState) (string, error) {
	if v, ok := p.memo.Get(st.FileID); ok {
		if s, ok := v.(string); ok {
			return s, nil
		}
	}

	exists, err := p.cache.ExistsSummary(ctx, st.FileID)
	if err != nil {
		return "", err
	}
	if exists {
		summary, err := p.cache.GetSummary(ctx, st.FileID)
		if err != nil {
			return "", err
		}
		p.memo.Set(st.FileID, summary, gocache.DefaultExpiration)
		return summary, nil
	}

	summary, err := p.llm.Summarize(ctx, st.Chunks)
	if err != nil {
		return "", err
	}
	if err := p.cache.SetSummary(ctx, st.FileID, summary); err != nil {
		return "", err
	}
	p.memo.Set(st.FileID, summary, gocache.DefaultExpiration)
	return summary, nil
}

// retrieveWeb runs the web search and a narrow vector search in
// parallel. Vector chunks come first in the combined list so grading
// sees the document before the open web.
func (p *SummaryPipeline) retrieveWeb(ctx context.Context, st *SummaryState) (*SummaryState, error) {
	var webHits, vecHits []string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := p.web.Search(gctx, st.Query, webResultCount)
		if err != nil {
			return err
		}
		webHits = hits
		return nil
	})
	g.Go(func() error {
		hits, err := p.vectors.SimilaritySearch(gctx, st.FileID, st.Query, webVectorCount)
		if err != nil {
			return err
		}
		vecHits = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		return st, err
	}

	st.Retrieved = append(append([]string{}, vecHits...), webHits...)
	return st, nil
}

func (p *SummaryPipeline) retrieveVector(ctx context.Context, st *SummaryState) (*SummaryState, error) {
	hits, err := p.vectors.SimilaritySearch(ctx, st.FileID, st.Query, vectorOnlyCount)
	if err != nil {
		return st, err
	}
	st.Retrieved = hits
	return st, nil
}

// grade filters retrieved chunks to those the model judges relevant.
// When nothing survives the fixed fallback reply is the answer.
func (p *SummaryPipeline) grade(ctx context.Context, st *SummaryState) (*SummaryState, error) {
	var kept []string
	for _, chunk := range st.Retrieved {
		verdict, err := p.llm.Complete(ctx, prompts.Grade(st.Query, st.DocSummary, chunk), true)
		if err != nil {
			return st, err
		}
		if strings.Contains(strings.ToLower(verdict), "yes") {
			kept = append(kept, chunk)
		}
	}
	st.appendLog(fmt.Sprintf("grade: %d/%d relevant", len(kept), len(st.Retrieved)))

	if len(kept) == 0 {
		st.Answer = prompts.NoAnswerFallback
		st.Unrelated = true
		return st, nil
	}

	st.Retrieved = kept
	st.Unrelated = false
	return st, nil
}

func (p *SummaryPipeline) generate(ctx context.Context, st *SummaryState) (*SummaryState, error) {
	answer, err := p.llm.Complete(ctx, prompts.Generate(st.Query, strings.Join(st.Retrieved, "\n\n")), false)
	if err != nil {
		return st, err
	}
	st.Answer = answer
	return st, nil
}

func (p *SummaryPipeline) verify(ctx context.Context, st *SummaryState) (*SummaryState, error) {
	verdict, err := p.llm.Complete(ctx, prompts.Verify(st.Query, st.DocSummary, strings.Join(st.Retrieved, "\n\n"), st.Answer), true)
	if err != nil {
		return st, err
	}
	st.appendLog("verify: " + verdict)
	st.NeedRefine = !strings.Contains(strings.ToLower(verdict), "good")
	return st, nil
}

// refine spends one unit of the refine budget rewriting the query, or
// gives up with the fallback reply when the budget is gone or the model
// declares the query off-document.
func (p *SummaryPipeline) refine(ctx context.Context, st *SummaryState) (*SummaryState, error) {
	st.RefineCount++
	if st.RefineCount > maxRefines {
		st.appendLog("refine: budget exhausted")
		st.Answer = prompts.NoAnswerFallback
		st.Unrelated = true
		return st, nil
	}

	refined, err := p.llm.Complete(ctx, prompts.Refine(st.DocSummary, st.Query, strings.Join(st.Retrieved, "\n\n"), st.Answer), false)
	if err != nil {
		return st, err
	}

	lower := strings.ToLower(refined)
	if strings.Contains(lower, prompts.NotRelatedMarker) || strings.TrimSpace(refined) == prompts.NoAnswerFallback {
		st.Answer = prompts.NoAnswerFallback
		st.Unrelated = true
		return st, nil
	}

	st.appendLog("refine: new query")
	st.Query = strings.TrimSpace(refined)
	return st, nil
}

func (p *SummaryPipeline) translate(ctx context.Context, st *SummaryState) (*SummaryState, error) {
	text := st.Answer
	if st.IsSummary {
		text = st.Summary
	}
	translated, err := p.llm.Complete(ctx, prompts.Translate(st.Lang, text), false)
	if err != nil {
		return st, err
	}
	if st.IsSummary {
		st.Summary = translated
	} else {
		st.Answer = translated
	}
	return st, nil
}

// finish records the run in the log store. A logging failure never
// fails the run itself.
func (p *SummaryPipeline) finish(ctx context.Context, st *SummaryState) (*SummaryState, error) {
	msg := strings.Join(st.Log, "; ")
	if st.failed() {
		msg = st.Error
	}
	_ = p.cache.AppendLog(ctx, st.FileID, st.FileURL, st.Query, st.Lang, msg)
	return st, nil
}
