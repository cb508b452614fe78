package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

const (
	// DefaultMaxResults は検索プロバイダから取得する最大ドキュメント数のデフォルト
	DefaultMaxResults = 10
)

var (
	// ErrEmptyQuery は検索クエリが空の場合のエラー
	ErrEmptyQuery = errors.New("search query must not be empty")

	// ErrNoDocuments は検索結果が0件だった場合のエラー
	// 空の結果でパイプラインを続行しない（サイレントフォールバック禁止）
	ErrNoDocuments = errors.New("no research documents found")
)

// Searcher は外部Web検索プロバイダへの問い合わせインターフェース
type Searcher interface {
	// Search はクエリに関連するドキュメントを最大maxResults件返す
	Search(ctx context.Context, query string, maxResults int) ([]Document, error)
}

// Service は調査ステージのビジネスロジックを提供する
type Service struct {
	searcher   Searcher
	maxResults int
	logger     *slog.Logger
}

// Option は Service 構築時のオプション
type Option func(*Service)

// WithMaxResults は取得ドキュメント数の上限を上書きする
func WithMaxResults(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxResults = n
		}
	}
}

// WithLogger はロガーを差し替える
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService は新しい Service を作成する
func NewService(searcher Searcher, opts ...Option) *Service {
	s := &Service{
		searcher:   searcher,
		maxResults: DefaultMaxResults,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Research はキーワードに関連するドキュメントを収集する
// プロバイダのエラーおよび0件の結果はステージ失敗として呼び出し元に返す
func (s *Service) Research(ctx context.Context, query string) ([]Document, error) {
	if query == "" {
		return nil, ErrEmptyQuery
	}

	docs, err := s.searcher.Search(ctx, query, s.maxResults)
	if err != nil {
		return nil, fmt.Errorf("search provider failed for %q: %w", query, err)
	}

	// コンテンツが空のドキュメントは除外する
	// プロバイダが返したスライスを書き換えないよう新しく確保する
	filtered := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if doc.Content != "" {
			filtered = append(filtered, doc)
		}
	}

	if len(filtered) == 0 {
		return nil, fmt.Errorf("%w: query %q", ErrNoDocuments, query)
	}

	// プロバイダが上限を無視した場合でも件数上限は決定的に適用する
	if len(filtered) > s.maxResults {
		filtered = filtered[:s.maxResults]
	}

	s.logger.Debug("research completed", "query", query, "documents", len(filtered))

	return filtered, nil
}
