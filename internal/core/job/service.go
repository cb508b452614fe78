package job

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/jinford/blog-rag/internal/core/plan"
)

// Service はAPI境界から呼ばれるジョブ作成・参照のビジネスロジックを提供する
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService は新しい Service を作成する
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// CreatePlanJob はキーワードを検証し、プラン生成ジョブを登録する
// 検証エラー時はジョブレコードを書き込まない
func (s *Service) CreatePlanJob(ctx context.Context, sessionID, keyword string) (*Job, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, ErrEmptyKeyword
	}

	j := NewPlanJob(sessionID, keyword)
	if err := s.store.Create(ctx, j); err != nil {
		return nil, fmt.Errorf("failed to create plan job: %w", err)
	}

	s.logger.Info("plan job created", "job_id", j.ID, "keyword", keyword, "session_id", sessionID)

	return j, nil
}

// CreateBlogJob はプランを検証し、ブログ生成ジョブを登録する
// プランはプランジョブ完了後にユーザーが編集したものでも構わない
func (s *Service) CreateBlogJob(ctx context.Context, sessionID string, p *plan.BlogPlan, planJobID *uuid.UUID) (*Job, error) {
	if p == nil {
		return nil, ErrInvalidPlan
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}

	j := NewBlogJob(sessionID, p, planJobID)
	if err := s.store.Create(ctx, j); err != nil {
		return nil, fmt.Errorf("failed to create blog job: %w", err)
	}

	s.logger.Info("blog job created",
		"job_id", j.ID,
		"sections", p.SectionCount(),
		"session_id", sessionID,
	)

	return j, nil
}

// Get はジョブを取得する
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Job, error) {
	return s.store.Get(ctx, id)
}
