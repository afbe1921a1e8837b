// Package rehost copies publisher images into owned storage so stored
// articles keep rendering after the source takes an image down. Rehosting
// is strictly best-effort: every failure falls back to the original URL.
package rehost

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/newsfold/newsfold/internal/logging"
)

// maxImageBytes caps a single rehosted image download.
const maxImageBytes = 5 << 20

// Storage persists rehosted image bytes.
type Storage interface {
	Save(ctx context.Context, id, contentType string, data []byte) error
}

// Service downloads a source image and stores it under a stable id.
type Service struct {
	storage Storage
	client  *http.Client
	// publicPrefix is the URL prefix hosted images are served from,
	// e.g. "/api/images/".
	publicPrefix string
	timeout      time.Duration
	logger       *logging.Logger
}

func NewService(storage Storage, publicPrefix string, timeout time.Duration, logger *logging.Logger) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		storage:      storage,
		client:       &http.Client{},
		publicPrefix: publicPrefix,
		timeout:      timeout,
		logger:       logger,
	}
}

// Rehost downloads sourceURL and stores the bytes, returning the hosted URL.
// On any failure it returns sourceURL unchanged; an image-hosting problem
// must never block an article write.
func (s *Service) Rehost(ctx context.Context, sourceURL string) string {
	hosted, err := s.rehost(ctx, sourceURL)
	if err != nil {
		s.logger.Debug("Image rehost failed, keeping original URL", logging.WithFields(map[string]interface{}{
			"url":   sourceURL,
			"error": err.Error(),
		}))
		return sourceURL
	}
	return hosted
}

func (s *Service) rehost(ctx context.Context, sourceURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("not an image: %s", contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("empty image body")
	}

	id := uuid.NewString()
	if err := s.storage.Save(ctx, id, contentType, data); err != nil {
		return "", err
	}

	return s.publicPrefix + id, nil
}
