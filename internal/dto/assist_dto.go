package dto

// Chat summary endpoint

type ChatMessage struct {
	Sender    string `json:"sender" validate:"required"`
	Text      string `json:"text" validate:"required,max=1000"`
	Timestamp string `json:"timestamp" validate:"required"`
}

type ChatSummaryRequest struct {
	Messages []ChatMessage `json:"messages" validate:"required,min=1,max=200,dive"`
	Query    string        `json:"query" validate:"required,max=2000"`
	Lang     string        `json:"lang" validate:"required"`
}

type ChatSummaryResponse struct {
	Summary string   `json:"summary,omitempty"`
	Answer  string   `json:"answer,omitempty"`
	Log     []string `json:"log"`
}

// Document summary / Q&A endpoint

type SummaryRequest struct {
	FileURL string `json:"file_url" validate:"required,url"`
	Query   string `json:"query" validate:"required,max=2000"`
	Lang    string `json:"lang" validate:"required"`
}

type SummaryResponse struct {
	FileID  string   `json:"file_id"`
	Summary string   `json:"summary,omitempty"`
	Answer  string   `json:"answer,omitempty"`
	Cached  bool     `json:"cached"`
	Log     []string `json:"log"`
}

// Tutorial endpoint

type TutorialRequest struct {
	FileURL string `json:"file_url" validate:"required,url"`
	Lang    string `json:"lang" validate:"required"`
}

type TutorialResponse struct {
	FileID   string   `json:"file_id"`
	Tutorial string   `json:"tutorial,omitempty"`
	Cached   bool     `json:"cached"`
	Log      []string `json:"log"`
}

// Feedback endpoints

type FeedbackRequest struct {
	FileID   string   `json:"file_id" validate:"required,startswith=fid_,max=100"`
	Rating   int      `json:"rating" validate:"required,min=1,max=5"`
	Comment  string   `json:"comment" validate:"max=2000"`
	UsageLog []string `json:"usage_log" validate:"max=10"`
}

type FeedbackResponse struct {
	FeedbackID string `json:"feedback_id"`
}

type FeedbackListResponse struct {
	FileID    string           `json:"file_id"`
	Feedbacks []map[string]any `json:"feedbacks"`
}

// Document deletion

type DeleteDocumentResponse struct {
	FileID       string `json:"file_id"`
	CacheDeleted bool   `json:"cache_deleted"`
	StoreDeleted bool   `json:"store_deleted"`
}

// PublishRunMessage is the payload relayed over the internal event bus
// after every pipeline run.
type PublishRunMessage struct {
	RunID      string `json:"run_id"`
	Kind       string `json:"kind"` // "CHAT", "SUMMARY" or "TUTORIAL"
	FileID     string `json:"file_id,omitempty"`
	Query      string `json:"query,omitempty"`
	Lang       string `json:"lang"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}
