package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/newsfold/newsfold/internal/aggregator"
	"github.com/newsfold/newsfold/internal/auth"
	"github.com/newsfold/newsfold/internal/database"
	"github.com/newsfold/newsfold/internal/logging"
	"github.com/newsfold/newsfold/internal/models"
	"github.com/newsfold/newsfold/internal/ranking"
	"github.com/newsfold/newsfold/internal/ratelimit"
)

// refreshTimeout bounds the background work started by the admin refresh
// trigger.
const refreshTimeout = 2 * time.Minute

// CategoryLister is the slice of the category store the API needs.
type CategoryLister interface {
	List(ctx context.Context) ([]models.Category, error)
}

// ClickRecorder writes click telemetry.
type ClickRecorder interface {
	Record(ctx context.Context, articleID int64) error
}

// ImageLoader serves rehosted article images.
type ImageLoader interface {
	Load(ctx context.Context, id string) (string, []byte, error)
}

type Server struct {
	agg            *aggregator.Aggregator
	categories     CategoryLister
	clicks         ClickRecorder
	images         ImageLoader
	authMiddleware *auth.Middleware
	refreshLimiter ratelimit.RateLimiter
	logger         *logging.Logger
	server         *http.Server
}

func New(agg *aggregator.Aggregator, categories CategoryLister, clicks ClickRecorder, images ImageLoader, authMiddleware *auth.Middleware, refreshLimiter ratelimit.RateLimiter, logger *logging.Logger) *Server {
	return &Server{
		agg:            agg,
		categories:     categories,
		clicks:         clicks,
		images:         images,
		authMiddleware: authMiddleware,
		refreshLimiter: refreshLimiter,
		logger:         logger,
	}
}

func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()

	// Reading feed routes
	mux.HandleFunc("/api/articles", s.corsMiddleware(s.handleGetArticles))
	mux.HandleFunc("/api/articles/popular", s.corsMiddleware(s.handleGetPopular))
	mux.HandleFunc("/api/ads/text", s.corsMiddleware(s.handleGetTextAds))
	mux.HandleFunc("/api/categories", s.corsMiddleware(s.handleGetCategories))
	mux.HandleFunc("/api/sources", s.corsMiddleware(s.handleGetSources))
	mux.HandleFunc("/api/clicks", s.corsMiddleware(s.handleRecordClick))
	mux.HandleFunc("/api/images/", s.corsMiddleware(s.handleGetImage))

	// Admin routes
	mux.HandleFunc("/api/admin/refresh/", s.corsMiddleware(s.authMiddleware.RequireAdmin(s.handleRefreshCategory)))

	// Health check
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	s.logger.Info("HTTP API server starting", logging.WithField("addr", addr))
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func (s *Server) handleGetArticles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()

	page := 1
	if p := query.Get("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil && parsed > 0 {
			page = parsed
		}
	}

	params := models.FilterParams{
		Category: query.Get("category"),
		Query:    query.Get("q"),
		Page:     page,
		PageSize: ranking.PageSize,
	}

	result, err := s.agg.GetPage(r.Context(), params)
	if err != nil {
		s.logger.Error("Failed to load articles", logging.WithField("error", err.Error()))
		// Explicit error state with cleared results; never stale data.
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"error":    "failed to load articles",
			"articles": []models.Article{},
		})
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetPopular(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	popular, err := s.agg.GetPopular(r.Context())
	if err != nil {
		s.logger.Error("Failed to load popular articles", logging.WithField("error", err.Error()))
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "failed to load popular articles",
		})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"articles": popular,
		"count":    len(popular),
	})
}

func (s *Server) handleGetTextAds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ads, err := s.agg.GetTextAds(r.Context())
	if err != nil {
		s.logger.Error("Failed to load text ads", logging.WithField("error", err.Error()))
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "failed to load ads",
		})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"ads":   ads,
		"count": len(ads),
	})
}

func (s *Server) handleGetCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	categories, err := s.categories.List(r.Context())
	if err != nil {
		s.logger.Error("Failed to load categories", logging.WithField("error", err.Error()))
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "failed to load categories",
		})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"count":      len(categories),
	})
}

func (s *Server) handleGetSources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sources := s.agg.GetSources()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"sources": sources,
		"count":   len(sources),
	})
}

func (s *Server) handleRecordClick(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload struct {
		ArticleID int64 `json:"articleId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.ArticleID <= 0 {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "articleId required"})
		return
	}

	if err := s.clicks.Record(r.Context(), payload.ArticleID); err != nil {
		s.logger.Warn("Failed to record click", logging.WithFields(map[string]interface{}{
			"articleId": payload.ArticleID,
			"error":     err.Error(),
		}))
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to record click"})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/images/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}

	contentType, data, err := s.images.Load(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrImageNotFound) {
			http.NotFound(w, r)
			return
		}
		s.logger.Warn("Failed to load image", logging.WithField("error", err.Error()))
		http.Error(w, "failed to load image", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleRefreshCategory accepts the refresh immediately and performs the
// fetch+reconcile cycle in the background.
func (s *Server) handleRefreshCategory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	category := strings.TrimPrefix(r.URL.Path, "/api/admin/refresh/")
	if category == "" || strings.Contains(category, "/") {
		s.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"message": "category slug required",
		})
		return
	}

	if s.refreshLimiter != nil && !s.refreshLimiter.Allow("category:"+category) {
		s.writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"success": false,
			"message": "refresh already requested recently for " + category,
		})
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()

		written, err := s.agg.RefreshCategory(ctx, category)
		if err != nil {
			s.logger.Warn("Background refresh failed", logging.WithFields(map[string]interface{}{
				"category": category,
				"error":    err.Error(),
			}))
			return
		}
		s.logger.Info("Background refresh complete", logging.WithFields(map[string]interface{}{
			"category": category,
			"written":  written,
		}))
	}()

	s.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"success": true,
		"message": "refresh started for " + category,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode response", logging.WithField("error", err.Error()))
	}
}
