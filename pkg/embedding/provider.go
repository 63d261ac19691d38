package embedding

// EmbeddingProvider defines the interface for generating text embeddings
type EmbeddingProvider interface {
	Generate(text string, taskType string) (*EmbeddingResponse, error)
}

// Vector returns the raw embedding values.
func (r *EmbeddingResponse) Vector() []float32 {
	return r.Embedding.Values
}

// Func adapts a provider to the plain text -> vector signature used by
// the segmentation algorithm. taskType follows the provider convention
// ("RETRIEVAL_DOCUMENT" for content being indexed or grouped).
func Func(p EmbeddingProvider, taskType string) func(text string) ([]float32, error) {
	return func(text string) ([]float32, error) {
		res, err := p.Generate(text, taskType)
		if err != nil {
			return nil, err
		}
		return res.Vector(), nil
	}
}
