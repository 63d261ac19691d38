package pipeline

import (
	"context"
	"fmt"
	"strings"

	"ai-docassist-be/pkg/cache"
	"ai-docassist-be/pkg/docloader"
	"ai-docassist-be/pkg/graph"
	"ai-docassist-be/pkg/llm"
	"ai-docassist-be/pkg/prompts"
	"ai-docassist-be/pkg/segment"
	"ai-docassist-be/pkg/utils"
	"ai-docassist-be/pkg/vector"

	"golang.org/x/sync/errgroup"
)

const (
	// sectionCharLimit caps the material handed to one section prompt.
	sectionCharLimit = 6000

	// sectionConcurrency caps parallel section generation calls.
	sectionConcurrency = 4
)

// tutorialQueryTag is the query recorded in the run log for tutorials.
const tutorialQueryTag = "TUTORIAL"

// GuideState is threaded through one tutorial generation run.
type GuideState struct {
	runLog

	FileURL string
	Lang    string
	FileID  string

	Cached bool
	Pages  []docloader.PageChunk

	Tutorial string
}

// GuideResult is the caller-facing view over the final state.
type GuideResult struct {
	Log      []string `json:"log"`
	FileID   string   `json:"file_id"`
	Tutorial string   `json:"tutorial,omitempty"`
	Cached   bool     `json:"cached"`
	Error    string   `json:"error,omitempty"`
}

const (
	routeGuideEmbed  graph.RouteKey = "embed"
	routeGuideFinish graph.RouteKey = "finish"
)

// GuidePipeline turns a document into an ordered Markdown tutorial. The
// document is segmented into topic runs that never reorder the source;
// each segment becomes one "## Pages a-b" section with its figures and
// captions attached.
type GuidePipeline struct {
	llm     llm.Chain
	vectors vector.Store
	cache   cache.Store
	loader  docloader.Loader
	embedFn segment.EmbedFunc

	runnable *graph.Runnable[*GuideState]
}

func NewGuidePipeline(chain llm.Chain, vectors vector.Store, cacheStore cache.Store, loader docloader.Loader, embedFn segment.EmbedFunc) (*GuidePipeline, error) {
	p := &GuidePipeline{
		llm:     chain,
		vectors: vectors,
		cache:   cacheStore,
		loader:  loader,
		embedFn: embedFn,
	}

	g := graph.New[*GuideState]()
	g.AddNode("entry", p.entry).
		AddNode("load", withRetry("load", p.load)).
		AddNode("embed", withRetry("embed", p.embed)).
		AddNode("generate", withRetry("generate", p.generate)).
		AddNode("save", withRetry("save", p.save)).
		AddNode("finish", p.finish)

	g.AddEdge("entry", "load")

	g.AddConditionalEdges("load", func(st *GuideState) graph.RouteKey {
		if st.failed() {
			return routeGuideFinish
		}
		return routeGuideEmbed
	}, map[graph.RouteKey]string{
		routeGuideEmbed:  "embed",
		routeGuideFinish: "finish",
	})

	g.AddEdge("embed", "generate").
		AddEdge("generate", "save").
		AddEdge("save", "finish").
		SetEntryPoint("entry").
		SetFinishPoint("finish")

	runnable, err := g.Compile()
	if err != nil {
		return nil, fmt.Errorf("guide pipeline: %w", err)
	}
	p.runnable = runnable
	return p, nil
}

// Run builds the tutorial for one document URL. Cached reports whether
// a tutorial already existed for this document and language.
func (p *GuidePipeline) Run(ctx context.Context, fileURL, lang string) (*GuideResult, error) {
	st, err := p.runnable.Invoke(ctx, &GuideState{
		FileURL: fileURL,
		Lang:    lang,
	})
	if err != nil {
		return nil, err
	}

	res := &GuideResult{
		Log:    st.Log,
		FileID: st.FileID,
		Cached: st.Cached,
		Error:  st.Error,
	}
	if st.Error == "" {
		res.Tutorial = st.Tutorial
	}
	return res, nil
}

func (p *GuidePipeline) entry(ctx context.Context, st *GuideState) (*GuideState, error) {
	st.FileID = utils.HashKey(st.FileURL)
	return st, nil
}

// tutorialCacheID keys the cached tutorial. Tutorials are rendered in
// the reader's language, so the language is part of the key.
func (p *GuidePipeline) tutorialCacheID(st *GuideState) string {
	return "tutorial:" + st.Lang + ":" + st.FileID
}

// load fetches the document with figures. A cached tutorial only marks
// the state so save stays idempotent; the source is always re-fetched
// and re-rendered because figure crops only exist after a fetch.
func (p *GuidePipeline) load(ctx context.Context, st *GuideState) (*GuideState, error) {
	exists, err := p.cache.ExistsSummary(ctx, p.tutorialCacheID(st))
	if err != nil {
		return st, err
	}
	st.Cached = exists

	pages, err := p.loader.Load(ctx, st.FileURL, true)
	if err != nil {
		return st, err
	}
	st.Pages = pages
	return st, nil
}

// embed indexes the document so later questions about it skip loading.
func (p *GuidePipeline) embed(ctx context.Context, st *GuideState) (*GuideState, error) {
	indexed, err := p.vectors.HasChunks(ctx, st.FileID)
	if err != nil {
		return st, err
	}
	if indexed {
		return st, nil
	}
	return st, p.vectors.Upsert(ctx, docloader.Texts(st.Pages), st.FileID)
}

// generate segments the document and renders one tutorial section per
// segment, concurrently but reassembled in segment order.
func (p *GuidePipeline) generate(ctx context.Context, st *GuideState) (*GuideState, error) {
	segs, err := segment.InOrder(st.Pages, p.embedFn)
	if err != nil {
		return st, err
	}
	st.appendLog(fmt.Sprintf("segments: %d", len(segs)))

	sections := make([]string, len(segs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sectionConcurrency)
	for i, seg := range segs {
		g.Go(func() error {
			body, err := p.renderSection(gctx, st.Lang, seg)
			if err != nil {
				return fmt.Errorf("section %d: %w", i, err)
			}
			sections[i] = body
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return st, err
	}

	st.Tutorial = strings.Join(sections, "\n\n---\n\n") + "\n\n---\n\n"
	return st, nil
}

func (p *GuidePipeline) renderSection(ctx context.Context, lang string, seg segment.Segment) (string, error) {
	material := strings.Join(docloader.Texts(seg.Chunks), "\n\n")
	// Budget counts characters, not bytes; a byte cut could split a
	// multibyte rune and hand the model invalid UTF-8.
	if r := []rune(material); len(r) > sectionCharLimit {
		material = string(r[:sectionCharLimit])
	}

	body, err := p.llm.Complete(ctx, prompts.TutorialSection(lang, material), false)
	if err != nil {
		return "", err
	}

	first, last := seg.Pages[0], seg.Pages[0]
	for _, pg := range seg.Pages {
		if pg < first {
			first = pg
		}
		if pg > last {
			last = pg
		}
	}
	// Pages are stored 0-based; readers see 1-based.
	header := fmt.Sprintf("## Pages %d-%d", first+1, last+1)

	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteString("\n\n")
	sb.WriteString(body)

	seen := make(map[string]bool)
	for _, ck := range seg.Chunks {
		for _, fig := range ck.Figs {
			if fig.URL == "" || seen[fig.URL] {
				continue
			}
			seen[fig.URL] = true
			sb.WriteString(fmt.Sprintf("\n\n![figure](%s)\n\n**Tutor's note:** %s", fig.URL, fig.Caption))
		}
	}
	return sb.String(), nil
}

// save persists the tutorial unless one was already cached.
func (p *GuidePipeline) save(ctx context.Context, st *GuideState) (*GuideState, error) {
	if st.failed() || st.Cached || st.Tutorial == "" {
		return st, nil
	}
	return st, p.cache.SetSummary(ctx, p.tutorialCacheID(st), st.Tutorial)
}

// finish records the run; logging failures never fail the run.
func (p *GuidePipeline) finish(ctx context.Context, st *GuideState) (*GuideState, error) {
	msg := strings.Join(st.Log, "; ")
	if st.failed() {
		msg = st.Error
	}
	_ = p.cache.AppendLog(ctx, st.FileID, st.FileURL, tutorialQueryTag, st.Lang, msg)
	return st, nil
}
