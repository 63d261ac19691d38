package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"ai-docassist-be/internal/dto"
	"ai-docassist-be/internal/pkg/logger"
	"ai-docassist-be/pkg/pipeline"

	"github.com/google/uuid"
)

type IChatService interface {
	ChatSummary(ctx context.Context, req *dto.ChatSummaryRequest) (*dto.ChatSummaryResponse, error)
}

type chatService struct {
	pipe      *pipeline.ChatPipeline
	publisher IPublisherService
	logger    logger.ILogger
}

func NewChatService(pipe *pipeline.ChatPipeline, publisher IPublisherService, logger logger.ILogger) IChatService {
	return &chatService{
		pipe:      pipe,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *chatService) ChatSummary(ctx context.Context, req *dto.ChatSummaryRequest) (*dto.ChatSummaryResponse, error) {
	start := time.Now()

	res, err := s.pipe.Run(ctx, formatTranscript(req.Messages), req.Query, req.Lang)
	if err != nil {
		return nil, fmt.Errorf("chat run: %w", err)
	}

	s.publishRun(dto.PublishRunMessage{
		RunID:      uuid.NewString(),
		Kind:       "CHAT",
		Query:      req.Query,
		Lang:       req.Lang,
		Error:      res.Error,
		DurationMs: time.Since(start).Milliseconds(),
	})

	if res.Error != "" {
		s.logger.Warn("chat", "run ended with error state", map[string]interface{}{
			"error": res.Error,
			"log":   res.Log,
		})
		return nil, fmt.Errorf("%s", res.Error)
	}

	return &dto.ChatSummaryResponse{
		Summary: res.Summary,
		Answer:  res.Answer,
		Log:     res.Log,
	}, nil
}

// formatTranscript orders the messages chronologically and renders the
// "[timestamp] sender: text" lines the pipeline consumes. Messages with
// unparseable timestamps sort after the parseable ones, keeping their
// relative input order.
func formatTranscript(messages []dto.ChatMessage) []string {
	type stamped struct {
		msg    dto.ChatMessage
		at     time.Time
		parsed bool
	}

	sorted := make([]stamped, len(messages))
	for i, m := range messages {
		at, err := time.Parse(time.RFC3339, m.Timestamp)
		sorted[i] = stamped{msg: m, at: at, parsed: err == nil}
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].parsed != sorted[j].parsed {
			return sorted[i].parsed
		}
		return sorted[i].parsed && sorted[i].at.Before(sorted[j].at)
	})

	lines := make([]string, len(sorted))
	for i, s := range sorted {
		lines[i] = fmt.Sprintf("[%s] %s: %s", s.msg.Timestamp, s.msg.Sender, s.msg.Text)
	}
	return lines
}

func (s *chatService) publishRun(msg dto.PublishRunMessage) {
	if err := s.publisher.PublishRun(msg); err != nil {
		s.logger.Warn("chat", "failed to publish run event", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
