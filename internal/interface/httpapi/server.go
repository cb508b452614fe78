// Package httpapi はジョブの登録・参照を行うHTTP APIを提供する
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/jinford/blog-rag/internal/core/job"
	"github.com/jinford/blog-rag/internal/platform/metrics"
)

const (
	readHeaderTimeout = 10 * time.Second
)

// Server はHTTP APIサーバ
type Server struct {
	jobs   *job.Service
	logger *slog.Logger
	srv    *http.Server
}

// NewServer は新しい Server を作成する
func NewServer(jobs *job.Service, port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		jobs:   jobs,
		logger: logger,
	}

	router := mux.NewRouter()
	router.Use(s.loggingMiddleware)

	router.HandleFunc("/generate-plan/{session_id}", s.handleGeneratePlan).Methods(http.MethodPost)
	router.HandleFunc("/plan/{job_id}", s.handleGetPlan).Methods(http.MethodGet)
	router.HandleFunc("/generate-blog/{session_id}", s.handleGenerateBlog).Methods(http.MethodPost)
	router.HandleFunc("/blog/{job_id}", s.handleGetBlog).Methods(http.MethodGet)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return s
}

// Router はテスト用にハンドラを返す
func (s *Server) Router() http.Handler {
	return s.srv.Handler
}

// Start はHTTPサーバを起動し、Shutdownが呼ばれるまでブロックする
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.srv.Addr)

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown は接続をドレインしてサーバを停止する
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.srv.Shutdown(ctx)
}
