// Package container はアプリケーション全体の依存関係を組み立てる
package container

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jinford/blog-rag/internal/core/draft"
	"github.com/jinford/blog-rag/internal/core/job"
	"github.com/jinford/blog-rag/internal/core/llm"
	"github.com/jinford/blog-rag/internal/core/plan"
	"github.com/jinford/blog-rag/internal/core/research"
	"github.com/jinford/blog-rag/internal/core/retrieval"
	"github.com/jinford/blog-rag/internal/core/worker"
	"github.com/jinford/blog-rag/internal/infra/memory"
	"github.com/jinford/blog-rag/internal/infra/openai"
	"github.com/jinford/blog-rag/internal/infra/postgres"
	"github.com/jinford/blog-rag/internal/infra/tavily"
	"github.com/jinford/blog-rag/internal/platform/database"
	"github.com/jinford/blog-rag/pkg/config"
)

// ServiceContainer はサービス群と共有リソースを保持する
type ServiceContainer struct {
	JobService *job.Service
	JobStore   job.Store
	Worker     *worker.Worker

	logger   *slog.Logger
	database *database.Database
}

type containerOptions struct {
	logger    *slog.Logger
	store     job.Store
	searcher  research.Searcher
	embedder  retrieval.Embedder
	llmClient llm.Client
	archiver  worker.ResearchArchiver
	inMemory  bool
}

// ContainerOption は ServiceContainer 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithContainerStore はジョブストアを差し替える
func WithContainerStore(store job.Store) ContainerOption {
	return func(opts *containerOptions) {
		opts.store = store
	}
}

// WithContainerSearcher は検索プロバイダを差し替える
func WithContainerSearcher(searcher research.Searcher) ContainerOption {
	return func(opts *containerOptions) {
		opts.searcher = searcher
	}
}

// WithContainerEmbedder はカスタム Embedder を注入する
func WithContainerEmbedder(embedder retrieval.Embedder) ContainerOption {
	return func(opts *containerOptions) {
		opts.embedder = embedder
	}
}

// WithContainerLLMClient は LLM クライアントを差し替える
func WithContainerLLMClient(client llm.Client) ContainerOption {
	return func(opts *containerOptions) {
		opts.llmClient = client
	}
}

// WithContainerArchiver は調査結果のアーカイブ先を差し替える
func WithContainerArchiver(archiver worker.ResearchArchiver) ContainerOption {
	return func(opts *containerOptions) {
		opts.archiver = archiver
	}
}

// WithInMemoryStore はPostgreSQLの代わりにインメモリストアを使う（開発・テスト用）
func WithInMemoryStore() ContainerOption {
	return func(opts *containerOptions) {
		opts.inMemory = true
	}
}

// NewContainer は設定からコンテナを生成する
func NewContainer(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (*ServiceContainer, error) {
	options := containerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	// JobStore (PostgreSQL / インメモリ)
	var db *database.Database
	store := options.store
	archiver := options.archiver
	if store == nil {
		if options.inMemory {
			store = memory.NewJobStore()
		} else {
			var err error
			db, err = database.New(ctx, cfg.Database)
			if err != nil {
				return nil, fmt.Errorf("データベース初期化に失敗しました: %w", err)
			}
			store = postgres.NewJobRepository(db)
			if archiver == nil {
				archiver = postgres.NewResearchArchive(db)
			}
		}
	}

	// 検索プロバイダ (Tavily)
	searcher := options.searcher
	if searcher == nil {
		tavilyClient, err := tavily.NewClient(
			cfg.Tavily.APIKey,
			tavily.WithBaseURL(cfg.Tavily.BaseURL),
			tavily.WithHTTPTimeout(cfg.Tavily.RequestTimeout),
		)
		if err != nil {
			return nil, fmt.Errorf("Tavilyクライアント初期化に失敗しました: %w", err)
		}
		searcher = tavilyClient
	}

	// Embedder (OpenAI)
	embedder := options.embedder
	if embedder == nil {
		embedder = openai.NewEmbedder(
			cfg.OpenAI.APIKey,
			openai.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
			openai.WithEmbeddingDimension(cfg.OpenAI.EmbeddingDimension),
		)
	}

	// LLMClient (OpenAI)
	llmClient := options.llmClient
	if llmClient == nil {
		client, err := openai.NewClient(
			cfg.OpenAI.APIKey,
			openai.WithModel(cfg.OpenAI.LLMModel),
			openai.WithTimeout(cfg.OpenAI.RequestTimeout),
			openai.WithMinRequestInterval(cfg.OpenAI.MinRequestInterval),
		)
		if err != nil {
			return nil, fmt.Errorf("OpenAIクライアント初期化に失敗しました: %w", err)
		}
		llmClient = client
	}

	// チャンカーとインデックスビルダー
	chunker, err := retrieval.NewChunker(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("Chunker初期化に失敗しました: %w", err)
	}
	builder := retrieval.NewBuilder(chunker, embedder, options.logger)

	// コアサービス群
	researchService := research.NewService(
		searcher,
		research.WithMaxResults(cfg.Retrieval.MaxSearchResults),
		research.WithLogger(options.logger),
	)
	synthesizer := plan.NewSynthesizer(
		llmClient,
		plan.WithTemperature(cfg.OpenAI.Temperature),
		plan.WithMaxTokens(cfg.OpenAI.MaxTokens),
		plan.WithLogger(options.logger),
	)
	drafter := draft.NewDrafter(
		researchService,
		builder,
		llmClient,
		draft.WithTopK(cfg.Retrieval.TopK),
		draft.WithWordBudget(cfg.Retrieval.SectionWordBudget),
		draft.WithTemperature(cfg.OpenAI.Temperature),
		draft.WithLogger(options.logger),
	)

	// パイプラインとワーカー
	pipelineOpts := []worker.PipelineOption{
		worker.WithPipelineTopK(cfg.Retrieval.TopK),
		worker.WithPipelineLogger(options.logger),
	}
	if archiver != nil {
		pipelineOpts = append(pipelineOpts, worker.WithResearchArchiver(archiver))
	}
	pipeline := worker.NewPipeline(researchService, builder, synthesizer, drafter, pipelineOpts...)

	w := worker.New(
		store,
		pipeline,
		worker.WithPollInterval(cfg.Worker.PollInterval),
		worker.WithJobTimeout(cfg.Worker.JobTimeout),
		worker.WithClaimBatchSize(cfg.Worker.ClaimBatchSize),
		worker.WithShutdownGrace(cfg.Worker.ShutdownGrace),
		worker.WithLogger(options.logger),
	)

	return &ServiceContainer{
		JobService: job.NewService(store, options.logger),
		JobStore:   store,
		Worker:     w,
		logger:     options.logger,
		database:   db,
	}, nil
}

// Close は内部リソースを解放する
func (c *ServiceContainer) Close() {
	if c != nil && c.database != nil {
		c.database.Close()
	}
}

// Logger はロガーを返す
func (c *ServiceContainer) Logger() *slog.Logger {
	if c == nil || c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

// Database はデータベースを返す（インメモリ構成ではnil）
func (c *ServiceContainer) Database() *database.Database {
	if c == nil {
		return nil
	}
	return c.database
}
