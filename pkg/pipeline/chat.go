package pipeline

import (
	"context"
	"fmt"
	"strings"

	"ai-docassist-be/pkg/graph"
	"ai-docassist-be/pkg/llm"
	"ai-docassist-be/pkg/prompts"
)

// ChatNoAnswerReply is returned when verification judges the answer
// unrelated to the chat history.
const ChatNoAnswerReply = "I'm sorry, I don't know the answer to that question because it's not related to the chat history. Please try again."

// ChatState is threaded through one chat-summary run.
type ChatState struct {
	runLog

	Messages []string
	Query    string
	Lang     string

	Summary    string
	Answer     string
	IsSummary  bool
	NeedRefine bool
}

// ChatResult is the caller-facing view over the final state.
type ChatResult struct {
	Log     []string `json:"log"`
	Summary string   `json:"summary,omitempty"`
	Answer  string   `json:"answer,omitempty"`
	Error   string   `json:"error,omitempty"`
}

const (
	routeChatSummarize graph.RouteKey = "summarize"
	routeChatAnswer    graph.RouteKey = "answer"
	routeChatVerify    graph.RouteKey = "verify"
	routeChatRefine    graph.RouteKey = "refine"
	routeChatTranslate graph.RouteKey = "translate"
	routeChatFinish    graph.RouteKey = "finish"
)

// ChatPipeline answers questions over a chat transcript, or summarizes
// the whole transcript when the query is the SUMMARY_ALL sentinel.
//
// entry -> {summarize | answer} -> verify <-> refine -> translate -> finish
//
// The verify/refine loop carries no counter of its own; the graph
// engine's transition ceiling is the bound.
type ChatPipeline struct {
	llm      llm.Chain
	runnable *graph.Runnable[*ChatState]
}

func NewChatPipeline(chain llm.Chain) (*ChatPipeline, error) {
	p := &ChatPipeline{llm: chain}

	g := graph.New[*ChatState]()
	g.AddNode("entry", p.entry).
		AddNode("summarize", withRetry("summarize", p.summarize)).
		AddNode("answer", withRetry("answer", p.answer)).
		AddNode("verify", withRetry("verify", p.verify)).
		AddNode("refine", withRetry("refine", p.refine)).
		AddNode("translate", p.translate).
		AddNode("finish", p.finish)

	g.AddConditionalEdges("entry", func(st *ChatState) graph.RouteKey {
		if st.IsSummary {
			return routeChatSummarize
		}
		return routeChatAnswer
	}, map[graph.RouteKey]string{
		routeChatSummarize: "summarize",
		routeChatAnswer:    "answer",
	})

	g.AddEdge("summarize", "translate").
		AddEdge("answer", "verify")

	g.AddConditionalEdges("verify", func(st *ChatState) graph.RouteKey {
		if st.failed() {
			return routeChatFinish
		}
		if st.NeedRefine {
			return routeChatRefine
		}
		return routeChatTranslate
	}, map[graph.RouteKey]string{
		routeChatRefine:    "refine",
		routeChatTranslate: "translate",
		routeChatFinish:    "finish",
	})

	g.AddConditionalEdges("refine", func(st *ChatState) graph.RouteKey {
		if st.failed() {
			return routeChatFinish
		}
		return routeChatVerify
	}, map[graph.RouteKey]string{
		routeChatVerify: "verify",
		routeChatFinish: "finish",
	})

	g.AddEdge("translate", "finish").
		SetEntryPoint("entry").
		SetFinishPoint("finish")

	runnable, err := g.Compile()
	if err != nil {
		return nil, fmt.Errorf("chat pipeline: %w", err)
	}
	p.runnable = runnable
	return p, nil
}

// Run executes the pipeline over an ordered transcript.
func (p *ChatPipeline) Run(ctx context.Context, messages []string, query, lang string) (*ChatResult, error) {
	st, err := p.runnable.Invoke(ctx, &ChatState{
		Messages: messages,
		Query:    query,
		Lang:     lang,
	})
	if err != nil {
		return nil, err
	}

	res := &ChatResult{Log: st.Log, Error: st.Error}
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

func (p *ChatPipeline) entry(ctx context.Context, st *ChatState) (*ChatState, error) {
	st.IsSummary = strings.EqualFold(strings.TrimSpace(st.Query), SummaryAllSentinel)
	return st, nil
}

func (p *ChatPipeline) summarize(ctx context.Context, st *ChatState) (*ChatState, error) {
	summary, err := p.llm.Summarize(ctx, st.Messages)
	if err != nil {
		return st, err
	}
	st.Summary = summary
	return st, nil
}

func (p *ChatPipeline) answer(ctx context.Context, st *ChatState) (*ChatState, error) {
	prompt := prompts.ChatAnswer(st.Query, strings.Join(st.Messages, "\n"))
	answer, err := p.llm.Complete(ctx, prompt, false)
	if err != nil {
		return st, err
	}
	st.Answer = answer
	return st, nil
}

func (p *ChatPipeline) verify(ctx context.Context, st *ChatState) (*ChatState, error) {
	prompt := prompts.ChatVerify(st.Query, strings.Join(st.Messages, "\n"), st.Answer)
	verdict, err := p.llm.Complete(ctx, prompt, true)
	if err != nil {
		return st, err
	}
	st.appendLog("verify: " + verdict)

	lower := strings.ToLower(verdict)
	switch {
	case strings.Contains(lower, "bad"):
		// Unrelated question: fixed reply, no further refinement.
		st.Answer = ChatNoAnswerReply
		st.NeedRefine = false
	case strings.Contains(lower, "true"):
		st.NeedRefine = false
	default:
		st.NeedRefine = true
	}
	return st, nil
}

func (p *ChatPipeline) refine(ctx context.Context, st *ChatState) (*ChatState, error) {
	prompt := prompts.ChatRefine(st.Query, strings.Join(st.Messages, "\n"), st.Answer)
	refined, err := p.llm.Complete(ctx, prompt, false)
	if err != nil {
		return st, err
	}
	st.Answer = refined
	return st, nil
}

func (p *ChatPipeline) translate(ctx context.Context, st *ChatState) (*ChatState, error) {
	if st.failed() {
		return st, nil
	}

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

func (p *ChatPipeline) finish(ctx context.Context, st *ChatState) (*ChatState, error) {
	return st, nil
}
