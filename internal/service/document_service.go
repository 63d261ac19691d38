package service

import (
	"context"
	"fmt"

	"ai-docassist-be/internal/dto"
	"ai-docassist-be/internal/pkg/logger"
	"ai-docassist-be/pkg/cache"
	"ai-docassist-be/pkg/vector"

	"github.com/google/uuid"
)

type IDocumentService interface {
	AddFeedback(ctx context.Context, req *dto.FeedbackRequest) (*dto.FeedbackResponse, error)
	GetFeedbacks(ctx context.Context, fileID string) (*dto.FeedbackListResponse, error)
	DeleteDocument(ctx context.Context, fileID string) (*dto.DeleteDocumentResponse, error)
}

type documentService struct {
	cache   cache.Store
	vectors vector.Store
	logger  logger.ILogger
}

func NewDocumentService(cacheStore cache.Store, vectors vector.Store, logger logger.ILogger) IDocumentService {
	return &documentService{
		cache:   cacheStore,
		vectors: vectors,
		logger:  logger,
	}
}

func (s *documentService) AddFeedback(ctx context.Context, req *dto.FeedbackRequest) (*dto.FeedbackResponse, error) {
	feedbackID := uuid.NewString()

	// Usage log lines are capped so one feedback entry cannot bloat the hash.
	usageLog := make([]string, 0, len(req.UsageLog))
	for _, line := range req.UsageLog {
		if len(line) > 1000 {
			line = line[:1000]
		}
		usageLog = append(usageLog, line)
	}

	payload := map[string]any{
		"rating":    req.Rating,
		"comment":   req.Comment,
		"usage_log": usageLog,
	}
	if err := s.cache.AddFeedback(ctx, req.FileID, feedbackID, payload); err != nil {
		return nil, fmt.Errorf("add feedback: %w", err)
	}

	s.logger.Info("feedback", "feedback stored", map[string]interface{}{
		"file_id":     req.FileID,
		"feedback_id": feedbackID,
		"rating":      req.Rating,
	})
	return &dto.FeedbackResponse{FeedbackID: feedbackID}, nil
}

func (s *documentService) GetFeedbacks(ctx context.Context, fileID string) (*dto.FeedbackListResponse, error) {
	feedbacks, err := s.cache.GetFeedbacks(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("get feedbacks: %w", err)
	}
	if feedbacks == nil {
		feedbacks = []map[string]any{}
	}
	return &dto.FeedbackListResponse{
		FileID:    fileID,
		Feedbacks: feedbacks,
	}, nil
}

// DeleteDocument removes the document from both the summary cache and
// the vector store. Partial deletion is reported, not treated as failure.
func (s *documentService) DeleteDocument(ctx context.Context, fileID string) (*dto.DeleteDocumentResponse, error) {
	cacheDeleted, err := s.cache.DeleteSummary(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("delete cached summary: %w", err)
	}

	storeDeleted := true
	if err := s.vectors.DeleteDocument(ctx, fileID); err != nil {
		storeDeleted = false
		s.logger.Warn("document", "failed to delete vector rows", map[string]interface{}{
			"file_id": fileID,
			"error":   err.Error(),
		})
	}

	s.logger.Info("document", "document deleted", map[string]interface{}{
		"file_id":       fileID,
		"cache_deleted": cacheDeleted,
		"store_deleted": storeDeleted,
	})
	return &dto.DeleteDocumentResponse{
		FileID:       fileID,
		CacheDeleted: cacheDeleted,
		StoreDeleted: storeDeleted,
	}, nil
}
