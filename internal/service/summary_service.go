package service

import (
	"context"
	"fmt"
	"time"

	"ai-docassist-be/internal/dto"
	"ai-docassist-be/internal/pkg/logger"
	"ai-docassist-be/pkg/pipeline"

	"github.com/google/uuid"
)

type ISummaryService interface {
	Summarize(ctx context.Context, req *dto.SummaryRequest) (*dto.SummaryResponse, error)
}

type summaryService struct {
	pipe      *pipeline.SummaryPipeline
	publisher IPublisherService
	logger    logger.ILogger
}

func NewSummaryService(pipe *pipeline.SummaryPipeline, publisher IPublisherService, logger logger.ILogger) ISummaryService {
	return &summaryService{
		pipe:      pipe,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *summaryService) Summarize(ctx context.Context, req *dto.SummaryRequest) (*dto.SummaryResponse, error) {
	start := time.Now()

	res, err := s.pipe.Run(ctx, req.FileURL, req.Query, req.Lang)
	if err != nil {
		return nil, fmt.Errorf("summary run: %w", err)
	}

	s.publishRun(dto.PublishRunMessage{
		RunID:      uuid.NewString(),
		Kind:       "SUMMARY",
		FileID:     res.FileID,
		Query:      req.Query,
		Lang:       req.Lang,
		Error:      res.Error,
		DurationMs: time.Since(start).Milliseconds(),
	})

	if res.Error != "" {
		s.logger.Warn("summary", "run ended with error state", map[string]interface{}{
			"file_id": res.FileID,
			"error":   res.Error,
			"log":     res.Log,
		})
		return nil, fmt.Errorf("%s", res.Error)
	}

	return &dto.SummaryResponse{
		FileID:  res.FileID,
		Summary: res.Summary,
		Answer:  res.Answer,
		Cached:  res.Cached,
		Log:     res.Log,
	}, nil
}

func (s *summaryService) publishRun(msg dto.PublishRunMessage) {
	if err := s.publisher.PublishRun(msg); err != nil {
		s.logger.Warn("summary", "failed to publish run event", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
