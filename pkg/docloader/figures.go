package docloader

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FigureStore persists figure crops to disk and hands back the URL path
// they are served under by the static file route.
type FigureStore struct {
	baseDir   string
	urlPrefix string
}

func NewFigureStore(baseDir string) *FigureStore {
	if baseDir == "" {
		baseDir = "./static/fig"
	}
	return &FigureStore{
		baseDir:   baseDir,
		urlPrefix: "/static/fig",
	}
}

// SaveMany writes each image as <baseDir>/<fileKey>/<uuid>.png and
// returns the matching URL paths in input order.
func (s *FigureStore) SaveMany(fileKey string, images [][]byte) ([]string, error) {
	dir := filepath.Join(s.baseDir, fileKey)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("figure store: mkdir %s: %w", dir, err)
	}

	urls := make([]string, 0, len(images))
	for _, img := range images {
		name := uuid.NewString() + ".png"
		if err := os.WriteFile(filepath.Join(dir, name), img, 0o644); err != nil {
			return nil, fmt.Errorf("figure store: write %s: %w", name, err)
		}
		urls = append(urls, fmt.Sprintf("%s/%s/%s", s.urlPrefix, fileKey, name))
	}
	return urls, nil
}
