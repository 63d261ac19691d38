package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"ai-docassist-be/pkg/docloader"
	"ai-docassist-be/pkg/prompts"
	"ai-docassist-be/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	retryDelay = time.Millisecond
	os.Exit(m.Run())
}

// fakeChain scripts the model. Responses dispatches on prompt content;
// Queue pops answers in call order when Responses is nil.
type fakeChain struct {
	Responses func(prompt string, think bool) (string, error)
	Queue     []string
	SummaryFn func(chunks []string) (string, error)

	completeCalls int
}

func (f *fakeChain) Complete(ctx context.Context, prompt string, think bool) (string, error) {
	f.completeCalls++
	if f.Responses != nil {
		return f.Responses(prompt, think)
	}
	if len(f.Queue) == 0 {
		return "", errors.New("fakeChain: queue empty")
	}
	out := f.Queue[0]
	f.Queue = f.Queue[1:]
	return out, nil
}

func (f *fakeChain) Summarize(ctx context.Context, chunks []string) (string, error) {
	if f.SummaryFn != nil {
		return f.SummaryFn(chunks)
	}
	return "doc summary", nil
}

type fakeVector struct {
	hasChunks bool
	all       []string
	hits      []string

	upserted     [][]string
	upsertedIDs  []string
	searchedKs   []int
	deletedFiles []string
}

func (f *fakeVector) Upsert(ctx context.Context, chunks []string, fileID string) error {
	f.upserted = append(f.upserted, chunks)
	f.upsertedIDs = append(f.upsertedIDs, fileID)
	return nil
}

func (f *fakeVector) HasChunks(ctx context.Context, fileID string) (bool, error) {
	return f.hasChunks, nil
}

func (f *fakeVector) SimilaritySearch(ctx context.Context, fileID, query string, k int) ([]string, error) {
	f.searchedKs = append(f.searchedKs, k)
	return f.hits, nil
}

func (f *fakeVector) GetAll(ctx context.Context, fileID string) ([]string, error) {
	return f.all, nil
}

func (f *fakeVector) DeleteDocument(ctx context.Context, fileID string) error {
	f.deletedFiles = append(f.deletedFiles, fileID)
	return nil
}

type fakeCache struct {
	summaries map[string]string
	logs      []string
	feedback  map[string][]map[string]any
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		summaries: map[string]string{},
		feedback:  map[string][]map[string]any{},
	}
}

func (f *fakeCache) ExistsSummary(ctx context.Context, fileID string) (bool, error) {
	_, ok := f.summaries[fileID]
	return ok, nil
}

func (f *fakeCache) GetSummary(ctx context.Context, fileID string) (string, error) {
	s, ok := f.summaries[fileID]
	if !ok {
		return "", fmt.Errorf("no summary for %s", fileID)
	}
	return s, nil
}

func (f *fakeCache) SetSummary(ctx context.Context, fileID, summary string) error {
	f.summaries[fileID] = summary
	return nil
}

func (f *fakeCache) DeleteSummary(ctx context.Context, fileID string) (bool, error) {
	_, ok := f.summaries[fileID]
	delete(f.summaries, fileID)
	return ok, nil
}

func (f *fakeCache) AppendLog(ctx context.Context, fileID, url, query, lang, msg string) error {
	f.logs = append(f.logs, fileID+"|"+query)
	return nil
}

func (f *fakeCache) AddFeedback(ctx context.Context, fileID, feedbackID string, payload map[string]any) error {
	f.feedback[fileID] = append(f.feedback[fileID], payload)
	return nil
}

func (f *fakeCache) GetFeedbacks(ctx context.Context, fileID string) ([]map[string]any, error) {
	return f.feedback[fileID], nil
}

type fakeLoader struct {
	pages []docloader.PageChunk

	calls       int
	withFigures []bool
}

func (f *fakeLoader) Load(ctx context.Context, url string, withFigures bool) ([]docloader.PageChunk, error) {
	f.calls++
	f.withFigures = append(f.withFigures, withFigures)
	return f.pages, nil
}

type fakeWeb struct {
	hits  []string
	calls int
}

func (f *fakeWeb) Search(ctx context.Context, query string, k int) ([]string, error) {
	f.calls++
	if len(f.hits) > k {
		return f.hits[:k], nil
	}
	return f.hits, nil
}

func TestWithRetrySucceedsOnThirdAttempt(t *testing.T) {
	attempts := 0
	step := withRetry("flaky", func(ctx context.Context, st *ChatState) (*ChatState, error) {
		attempts++
		if attempts < 3 {
			return st, errors.New("transient")
		}
		st.Answer = "ok"
		return st, nil
	})

	st, err := step(context.Background(), &ChatState{})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, "ok", st.Answer)
	assert.Empty(t, st.Error)
	require.Len(t, st.Log, 3)
	assert.True(t, strings.HasPrefix(st.Log[0], "flaky:1:"))
	assert.True(t, strings.HasPrefix(st.Log[2], "flaky:3:"))
}

func TestWithRetryExhaustionBecomesStateError(t *testing.T) {
	step := withRetry("broken", func(ctx context.Context, st *ChatState) (*ChatState, error) {
		return st, errors.New("unreachable host")
	})

	st, err := step(context.Background(), &ChatState{})
	require.NoError(t, err)
	assert.Equal(t, "broken failed after 3 tries: unreachable host", st.Error)
	assert.Len(t, st.Log, 3)
}

func TestWithRetrySkipsFailedState(t *testing.T) {
	called := false
	step := withRetry("later", func(ctx context.Context, st *ChatState) (*ChatState, error) {
		called = true
		return st, nil
	})

	st := &ChatState{}
	st.setError("earlier step failed")
	_, err := step(context.Background(), st)
	require.NoError(t, err)
	assert.False(t, called)
	assert.Empty(t, st.Log)
}

func TestChatSummaryAllBranch(t *testing.T) {
	chain := &fakeChain{
		Queue:     []string{"translated summary"},
		SummaryFn: func(chunks []string) (string, error) { return "raw summary", nil },
	}
	p, err := NewChatPipeline(chain)
	require.NoError(t, err)

	res, err := p.Run(context.Background(), []string{"hi", "hello"}, "  summary_all ", "Indonesian")
	require.NoError(t, err)
	assert.Empty(t, res.Error)
	assert.Equal(t, "translated summary", res.Summary)
	assert.Empty(t, res.Answer)
}

func TestChatUnrelatedAnswerGetsFixedReply(t *testing.T) {
	chain := &fakeChain{Responses: func(prompt string, think bool) (string, error) {
		switch {
		case strings.Contains(prompt, "verifies if an answer"):
			return "bad", nil
		case strings.Contains(prompt, "translate the answer"):
			// Echo so the fixed reply is observable after translation.
			return "tx:" + prompt[strings.Index(prompt, "Answer: ")+len("Answer: "):], nil
		default:
			return "some answer", nil
		}
	}}
	p, err := NewChatPipeline(chain)
	require.NoError(t, err)

	res, err := p.Run(context.Background(), []string{"we discussed trains"}, "what about planes?", "English")
	require.NoError(t, err)
	assert.Equal(t, "tx:"+ChatNoAnswerReply, res.Answer)
	assert.Contains(t, res.Log, "verify: bad")
}

func TestChatRefineLoopConverges(t *testing.T) {
	verifies := 0
	chain := &fakeChain{Responses: func(prompt string, think bool) (string, error) {
		switch {
		case strings.Contains(prompt, "verifies if an answer"):
			verifies++
			if verifies == 1 {
				return "false", nil
			}
			return "true", nil
		case strings.Contains(prompt, "refine the answer"):
			return "better answer", nil
		case strings.Contains(prompt, "translate the answer"):
			return "final answer", nil
		default:
			return "first answer", nil
		}
	}}
	p, err := NewChatPipeline(chain)
	require.NoError(t, err)

	res, err := p.Run(context.Background(), []string{"context"}, "question", "English")
	require.NoError(t, err)
	assert.Equal(t, 2, verifies)
	assert.Equal(t, "final answer", res.Answer)
}

func TestSummarySentinelGeneratesAndSaves(t *testing.T) {
	chain := &fakeChain{
		Queue:     []string{"translated"},
		SummaryFn: func(chunks []string) (string, error) { return "fresh summary", nil },
	}
	vectors := &fakeVector{hasChunks: false}
	cacheStore := newFakeCache()
	loader := &fakeLoader{pages: []docloader.PageChunk{
		docloader.NewPageChunk(0, "page one text", nil),
		docloader.NewPageChunk(1, "page two text", nil),
	}}

	p, err := NewSummaryPipeline(chain, vectors, cacheStore, loader, &fakeWeb{})
	require.NoError(t, err)

	url := "http://files/doc.pdf"
	res, err := p.Run(context.Background(), url, "SUMMARY_ALL", "English")
	require.NoError(t, err)
	assert.Empty(t, res.Error)
	assert.Equal(t, "translated", res.Summary)
	assert.False(t, res.Cached)

	fileID := utils.HashKey(url)
	assert.Equal(t, fileID, res.FileID)
	require.Len(t, vectors.upserted, 1)
	assert.Equal(t, []string{"page one text", "page two text"}, vectors.upserted[0])
	assert.Equal(t, "fresh summary", cacheStore.summaries[fileID])
	// One entry marker, one finish entry.
	require.Len(t, cacheStore.logs, 2)
	assert.Equal(t, fileID+"|SUMMARY_ALL", cacheStore.logs[1])
}

func TestSummaryCachedSummaryShortCircuits(t *testing.T) {
	chain := &fakeChain{Queue: []string{"translated cached"}}
	cacheStore := newFakeCache()
	loader := &fakeLoader{}

	url := "http://files/doc.pdf"
	fileID := utils.HashKey(url)
	cacheStore.summaries[fileID] = "cached summary"

	p, err := NewSummaryPipeline(chain, &fakeVector{}, cacheStore, loader, &fakeWeb{})
	require.NoError(t, err)

	res, err := p.Run(context.Background(), url, "summary_all", "English")
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Equal(t, "translated cached", res.Summary)
	assert.Zero(t, loader.calls)
	assert.Equal(t, 1, chain.completeCalls)
}

func TestSummaryAllChunksGradedIrrelevant(t *testing.T) {
	generated := false
	chain := &fakeChain{
		Responses: func(prompt string, think bool) (string, error) {
			switch {
			case strings.Contains(prompt, "extra information from the web"):
				return "false", nil
			case strings.Contains(prompt, "grader assessing relevance"):
				return "no", nil
			case strings.Contains(prompt, "translate the answer"):
				return "tx:" + prompt[strings.Index(prompt, "Answer: ")+len("Answer: "):], nil
			case strings.Contains(prompt, "generate a answer"):
				generated = true
				return "should not happen", nil
			default:
				return "", fmt.Errorf("unexpected prompt: %.40s", prompt)
			}
		},
	}
	vectors := &fakeVector{hasChunks: true, all: []string{"a", "b"}, hits: []string{"a", "b"}}

	p, err := NewSummaryPipeline(chain, vectors, newFakeCache(), &fakeLoader{}, &fakeWeb{})
	require.NoError(t, err)

	res, err := p.Run(context.Background(), "http://files/doc.pdf", "off-topic question", "English")
	require.NoError(t, err)
	assert.Empty(t, res.Error)
	assert.False(t, generated)
	assert.Equal(t, "tx:"+prompts.NoAnswerFallback, res.Answer)
	assert.Contains(t, res.Log, "grade: 0/2 relevant")
	assert.Equal(t, []int{vectorOnlyCount}, vectors.searchedKs)
}

func TestSummaryWebBranchWidths(t *testing.T) {
	chain := &fakeChain{
		Responses: func(prompt string, think bool) (string, error) {
			switch {
			case strings.Contains(prompt, "extra information from the web"):
				return "true", nil
			case strings.Contains(prompt, "grader assessing relevance"):
				return "yes", nil
			case strings.Contains(prompt, "verify the quality"):
				return "good", nil
			case strings.Contains(prompt, "translate the answer"):
				return "translated", nil
			default:
				return "generated answer", nil
			}
		},
	}
	vectors := &fakeVector{hasChunks: true, all: []string{"a"}, hits: []string{"vec1", "vec2", "vec3"}}
	web := &fakeWeb{hits: []string{"w1", "w2", "w3", "w4", "w5", "w6"}}

	p, err := NewSummaryPipeline(chain, vectors, newFakeCache(), &fakeLoader{}, web)
	require.NoError(t, err)

	res, err := p.Run(context.Background(), "http://files/doc.pdf", "what year was it signed?", "English")
	require.NoError(t, err)
	assert.Empty(t, res.Error)
	assert.Equal(t, "translated", res.Answer)
	assert.Equal(t, 1, web.calls)
	assert.Equal(t, []int{webVectorCount}, vectors.searchedKs)
	assert.Contains(t, res.Log, fmt.Sprintf("grade: %d/%d relevant", 3+webResultCount, 3+webResultCount))
}

func TestSummaryRefineBudgetTerminates(t *testing.T) {
	chain := &fakeChain{
		Responses: func(prompt string, think bool) (string, error) {
			switch {
			case strings.Contains(prompt, "extra information from the web"):
				return "false", nil
			case strings.Contains(prompt, "grader assessing relevance"):
				return "yes", nil
			case strings.Contains(prompt, "verify the quality"):
				return "bad", nil
			case strings.Contains(prompt, "two things"):
				return "a sharper query", nil
			case strings.Contains(prompt, "translate the answer"):
				return "tx:" + prompt[strings.Index(prompt, "Answer: ")+len("Answer: "):], nil
			default:
				return "generated answer", nil
			}
		},
	}
	vectors := &fakeVector{hasChunks: true, all: []string{"a"}, hits: []string{"chunk"}}

	p, err := NewSummaryPipeline(chain, vectors, newFakeCache(), &fakeLoader{}, &fakeWeb{})
	require.NoError(t, err)

	res, err := p.Run(context.Background(), "http://files/doc.pdf", "impossible question", "English")
	require.NoError(t, err)
	assert.Empty(t, res.Error)
	assert.Equal(t, "tx:"+prompts.NoAnswerFallback, res.Answer)
	assert.Contains(t, res.Log, "refine: budget exhausted")

	refines := 0
	for _, entry := range res.Log {
		if strings.HasPrefix(entry, "refine:1:") {
			refines++
		}
	}
	assert.Equal(t, maxRefines+1, refines)
}

func TestSummaryRefineDetectsUnrelatedQuery(t *testing.T) {
	chain := &fakeChain{
		Responses: func(prompt string, think bool) (string, error) {
			switch {
			case strings.Contains(prompt, "extra information from the web"):
				return "false", nil
			case strings.Contains(prompt, "grader assessing relevance"):
				return "yes", nil
			case strings.Contains(prompt, "verify the quality"):
				return "bad", nil
			case strings.Contains(prompt, "two things"):
				return "This query is " + prompts.NotRelatedMarker + ".", nil
			case strings.Contains(prompt, "translate the answer"):
				return "tx:" + prompt[strings.Index(prompt, "Answer: ")+len("Answer: "):], nil
			default:
				return "generated answer", nil
			}
		},
	}
	vectors := &fakeVector{hasChunks: true, all: []string{"a"}, hits: []string{"chunk"}}

	p, err := NewSummaryPipeline(chain, vectors, newFakeCache(), &fakeLoader{}, &fakeWeb{})
	require.NoError(t, err)

	res, err := p.Run(context.Background(), "http://files/doc.pdf", "unrelated", "English")
	require.NoError(t, err)
	assert.Equal(t, "tx:"+prompts.NoAnswerFallback, res.Answer)
	// One refine round, no second retrieval.
	assert.Equal(t, []int{vectorOnlyCount}, vectors.searchedKs)
}

func TestSummaryStepFailureStopsExternalCalls(t *testing.T) {
	chain := &fakeChain{Responses: func(prompt string, think bool) (string, error) {
		return "", errors.New("model down")
	}}
	vectors := &fakeVector{hasChunks: true, all: []string{"a"}, hits: []string{"chunk"}}
	cacheStore := newFakeCache()

	p, err := NewSummaryPipeline(chain, vectors, cacheStore, &fakeLoader{}, &fakeWeb{})
	require.NoError(t, err)

	res, err := p.Run(context.Background(), "http://files/doc.pdf", "question", "English")
	require.NoError(t, err)
	assert.Contains(t, res.Error, "rag_router failed after 3 tries")
	assert.Empty(t, res.Answer)
	// Failures still land in the run log store.
	require.Len(t, cacheStore.logs, 2)
	// No retrieval happened after the failure.
	assert.Empty(t, vectors.searchedKs)
}

func TestGuideCachedTutorialRegeneratesButSkipsSave(t *testing.T) {
	cacheStore := newFakeCache()
	loader := &fakeLoader{pages: []docloader.PageChunk{
		docloader.NewPageChunk(0, "fresh material", nil),
	}}
	chain := &fakeChain{Responses: func(prompt string, think bool) (string, error) {
		return "fresh section", nil
	}}

	url := "http://files/doc.pdf"
	key := "tutorial:English:" + utils.HashKey(url)
	cacheStore.summaries[key] = "stale tutorial"

	p, err := NewGuidePipeline(chain, &fakeVector{}, cacheStore, loader, func(string) ([]float32, error) {
		return []float32{1, 0}, nil
	})
	require.NoError(t, err)

	res, err := p.Run(context.Background(), url, "English")
	require.NoError(t, err)
	assert.True(t, res.Cached)

	// The source is always re-fetched and re-rendered; the cache only
	// suppresses the duplicate save.
	assert.Equal(t, 1, loader.calls)
	assert.Contains(t, res.Tutorial, "fresh section")
	assert.Equal(t, "stale tutorial", cacheStore.summaries[key])
}

func TestGuideGeneratesOrderedSections(t *testing.T) {
	fig := docloader.Figure{URL: "/static/fig/abc/1.png", Caption: "a bar chart"}
	loader := &fakeLoader{pages: []docloader.PageChunk{
		docloader.NewPageChunk(0, "alpha part one", []docloader.Figure{fig}),
		docloader.NewPageChunk(0, "alpha part two", []docloader.Figure{fig}),
		docloader.NewPageChunk(5, "beta material", []docloader.Figure{fig}),
	}}
	chain := &fakeChain{Responses: func(prompt string, think bool) (string, error) {
		if strings.Contains(prompt, "alpha") {
			return "section about alpha", nil
		}
		return "section about beta", nil
	}}
	cacheStore := newFakeCache()
	vectors := &fakeVector{hasChunks: false}

	p, err := NewGuidePipeline(chain, vectors, cacheStore, loader, func(string) ([]float32, error) {
		return []float32{1, 0}, nil
	})
	require.NoError(t, err)

	url := "http://files/doc.pdf"
	res, err := p.Run(context.Background(), url, "English")
	require.NoError(t, err)
	assert.Empty(t, res.Error)
	assert.False(t, res.Cached)

	// Figures requested from the loader, document indexed for later Q&A.
	assert.Equal(t, []bool{true}, loader.withFigures)
	require.Len(t, vectors.upserted, 1)

	// The page gap splits the segments even with identical embeddings.
	alphaIdx := strings.Index(res.Tutorial, "## Pages 1-1")
	betaIdx := strings.Index(res.Tutorial, "## Pages 6-6")
	require.GreaterOrEqual(t, alphaIdx, 0)
	require.Greater(t, betaIdx, alphaIdx)
	assert.Contains(t, res.Tutorial, "section about alpha")
	assert.Contains(t, res.Tutorial, "section about beta")
	assert.True(t, strings.HasSuffix(res.Tutorial, "\n\n---\n\n"))

	// The shared figure appears once per segment, not once per chunk.
	assert.Equal(t, 2, strings.Count(res.Tutorial, "**Tutor's note:** a bar chart"))

	// The run was cached for the next request.
	assert.Equal(t, res.Tutorial, cacheStore.summaries["tutorial:English:"+utils.HashKey(url)])
}

func TestGuideSectionBudgetCountsRunes(t *testing.T) {
	loader := &fakeLoader{pages: []docloader.PageChunk{
		docloader.NewPageChunk(0, strings.Repeat("漢", sectionCharLimit+500), nil),
	}}

	var sectionPrompt string
	chain := &fakeChain{Responses: func(prompt string, think bool) (string, error) {
		sectionPrompt = prompt
		return "section", nil
	}}

	p, err := NewGuidePipeline(chain, &fakeVector{}, newFakeCache(), loader, func(string) ([]float32, error) {
		return []float32{1, 0}, nil
	})
	require.NoError(t, err)

	res, err := p.Run(context.Background(), "http://files/cjk.pdf", "Chinese")
	require.NoError(t, err)
	assert.Empty(t, res.Error)

	// A byte-wise cut of three-byte runes would mangle the tail and
	// shrink the budget to a third.
	assert.True(t, utf8.ValidString(sectionPrompt))
	assert.Equal(t, sectionCharLimit, strings.Count(sectionPrompt, "漢"))
}
