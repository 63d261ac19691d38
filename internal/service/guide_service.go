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

type IGuideService interface {
	Tutorial(ctx context.Context, req *dto.TutorialRequest) (*dto.TutorialResponse, error)
}

type guideService struct {
	pipe      *pipeline.GuidePipeline
	publisher IPublisherService
	logger    logger.ILogger
}

func NewGuideService(pipe *pipeline.GuidePipeline, publisher IPublisherService, logger logger.ILogger) IGuideService {
	return &guideService{
		pipe:      pipe,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *guideService) Tutorial(ctx context.Context, req *dto.TutorialRequest) (*dto.TutorialResponse, error) {
	start := time.Now()

	res, err := s.pipe.Run(ctx, req.FileURL, req.Lang)
	if err != nil {
		return nil, fmt.Errorf("tutorial run: %w", err)
	}

	s.publishRun(dto.PublishRunMessage{
		RunID:      uuid.NewString(),
		Kind:       "TUTORIAL",
		FileID:     res.FileID,
		Lang:       req.Lang,
		Error:      res.Error,
		DurationMs: time.Since(start).Milliseconds(),
	})

	if res.Error != "" {
		s.logger.Warn("guide", "run ended with error state", map[string]interface{}{
			"file_id": res.FileID,
			"error":   res.Error,
			"log":     res.Log,
		})
		return nil, fmt.Errorf("%s", res.Error)
	}

	return &dto.TutorialResponse{
		FileID:   res.FileID,
		Tutorial: res.Tutorial,
		Cached:   res.Cached,
		Log:      res.Log,
	}, nil
}

func (s *guideService) publishRun(msg dto.PublishRunMessage) {
	if err := s.publisher.PublishRun(msg); err != nil {
		s.logger.Warn("guide", "failed to publish run event", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
