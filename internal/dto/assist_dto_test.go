package dto_test

import (
	"testing"

	"ai-docassist-be/internal/dto"
	"ai-docassist-be/internal/pkg/serverutils"
	"ai-docassist-be/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Feedback is filed against the file ids the pipelines hand out, so a
// pipeline-derived id must pass request validation as-is.
func TestFeedbackRequestAcceptsPipelineFileID(t *testing.T) {
	req := &dto.FeedbackRequest{
		FileID: utils.HashKey("http://files/doc.pdf"),
		Rating: 4,
	}
	require.NoError(t, serverutils.ValidateRequest(req))
}

func TestFeedbackRequestRejectsForeignFileID(t *testing.T) {
	tests := []struct {
		name string
		req  dto.FeedbackRequest
	}{
		{"unprefixed id", dto.FeedbackRequest{FileID: "0123456789abcdef", Rating: 4}},
		{"missing rating", dto.FeedbackRequest{FileID: utils.HashKey("x")}},
		{"rating out of range", dto.FeedbackRequest{FileID: utils.HashKey("x"), Rating: 6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, serverutils.ValidateRequest(&tt.req))
		})
	}
}
