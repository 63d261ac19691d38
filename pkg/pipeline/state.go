// Package pipeline defines the three document-understanding pipelines
// (chat summarization, summary/RAG Q&A, tutorial generation) on top of
// the graph engine. Each pipeline compiles its graph once at
// construction and threads a single state record per run; external
// collaborators are injected through narrow interfaces.
package pipeline

// SummaryAllSentinel marks a query as a summarize-everything request.
// Compared case-insensitively after trimming.
const SummaryAllSentinel = "SUMMARY_ALL"

// runLog carries the per-run step log and the terminal error. Embedded
// by every pipeline state so the retry wrapper can treat them uniformly.
type runLog struct {
	Log   []string
	Error string
}

func (l *runLog) appendLog(entry string) {
	l.Log = append(l.Log, entry)
}

func (l *runLog) setError(msg string) {
	l.Error = msg
}

func (l *runLog) failed() bool {
	return l.Error != ""
}
