package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jinford/blog-rag/internal/core/draft"
	"github.com/jinford/blog-rag/internal/core/job"
	"github.com/jinford/blog-rag/internal/core/plan"
	"github.com/jinford/blog-rag/internal/core/research"
	"github.com/jinford/blog-rag/internal/core/retrieval"
	"github.com/jinford/blog-rag/internal/platform/metrics"
)

// ResearchArchiver は調査チャンクをジョブに紐づけて保存する
// 保存はベストエフォートで、失敗してもジョブは継続する
type ResearchArchiver interface {
	ArchiveChunks(ctx context.Context, jobID uuid.UUID, chunks []retrieval.Chunk) error
}

// noopArchiver はアーカイブ無効時のResearchArchiver
type noopArchiver struct{}

func (noopArchiver) ArchiveChunks(context.Context, uuid.UUID, []retrieval.Chunk) error {
	return nil
}

// Pipeline はジョブ種別ごとのステージ列を実行する
type Pipeline struct {
	research    *research.Service
	builder     *retrieval.Builder
	synthesizer *plan.Synthesizer
	drafter     *draft.Drafter
	archiver    ResearchArchiver
	topK        int
	logger      *slog.Logger
}

// PipelineOption は Pipeline 構築時のオプション
type PipelineOption func(*Pipeline)

// WithResearchArchiver は調査結果のアーカイブ先を設定する
func WithResearchArchiver(archiver ResearchArchiver) PipelineOption {
	return func(p *Pipeline) {
		if archiver != nil {
			p.archiver = archiver
		}
	}
}

// WithPipelineTopK はプラン生成時の検索チャンク数を上書きする
func WithPipelineTopK(k int) PipelineOption {
	return func(p *Pipeline) {
		if k > 0 {
			p.topK = k
		}
	}
}

// WithPipelineLogger はロガーを差し替える
func WithPipelineLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// NewPipeline は新しい Pipeline を作成する
func NewPipeline(
	researchSvc *research.Service,
	builder *retrieval.Builder,
	synthesizer *plan.Synthesizer,
	drafter *draft.Drafter,
	opts ...PipelineOption,
) *Pipeline {
	p := &Pipeline{
		research:    researchSvc,
		builder:     builder,
		synthesizer: synthesizer,
		drafter:     drafter,
		archiver:    noopArchiver{},
		topK:        retrieval.DefaultTopK,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ Executor = (*Pipeline)(nil)

// Execute はジョブ種別に応じたパイプラインを実行する
func (p *Pipeline) Execute(ctx context.Context, j *job.Job) (job.Result, error) {
	switch j.Kind {
	case job.KindPlan:
		return p.executePlan(ctx, j)
	case job.KindBlog:
		return p.executeBlog(ctx, j)
	default:
		return job.Result{}, fmt.Errorf("unknown job kind %q", j.Kind)
	}
}

// executePlan は 調査 → インデックス構築 → プラン合成 を直列に実行する
func (p *Pipeline) executePlan(ctx context.Context, j *job.Job) (job.Result, error) {
	keyword := j.Input.Keyword

	docs, err := timedStage("research", func() ([]research.Document, error) {
		return p.research.Research(ctx, keyword)
	})
	if err != nil {
		return job.Result{}, err
	}

	index, err := timedStage("index_build", func() (*retrieval.Index, error) {
		return p.builder.Build(ctx, toRetrievalDocs(docs))
	})
	if err != nil {
		return job.Result{}, err
	}

	p.archive(ctx, j.ID, index)

	contexts, err := index.Query(ctx, keyword, p.topK)
	if err != nil {
		return job.Result{}, fmt.Errorf("retrieval failed for keyword %q: %w", keyword, err)
	}

	generated, err := timedStage("plan_synthesis", func() (*plan.BlogPlan, error) {
		return p.synthesizer.Synthesize(ctx, keyword, contexts)
	})
	if err != nil {
		return job.Result{}, err
	}

	return job.Result{Plan: generated}, nil
}

// executeBlog はドラフト生成を実行する
// ドラフタは内部でセクションごとの調査とインデックス再構築を行う
func (p *Pipeline) executeBlog(ctx context.Context, j *job.Job) (job.Result, error) {
	generated, err := timedStage("draft", func() (*draft.GeneratedBlog, error) {
		return p.drafter.Draft(ctx, j.Input.Plan)
	})
	if err != nil {
		return job.Result{}, err
	}

	return job.Result{Blog: generated}, nil
}

// archive は構築済みインデックスのチャンクをベストエフォートで保存する
func (p *Pipeline) archive(ctx context.Context, jobID uuid.UUID, index *retrieval.Index) {
	if err := p.archiver.ArchiveChunks(ctx, jobID, index.Chunks()); err != nil {
		p.logger.Warn("failed to archive research chunks", "job_id", jobID, "error", err)
	}
}

// timedStage はステージ実行時間をメトリクスに記録する
func timedStage[T any](name string, fn func() (T, error)) (T, error) {
	start := time.Now()
	result, err := fn()

	status := "success"
	if err != nil {
		status = "failed"
	}
	metrics.RecordStage(name, status, time.Since(start).Seconds())

	return result, err
}

// toRetrievalDocs は調査ドキュメントをインデックス構築用の形へ変換する
func toRetrievalDocs(docs []research.Document) []retrieval.Document {
	out := make([]retrieval.Document, 0, len(docs))
	for _, d := range docs {
		out = append(out, retrieval.Document{
			URL:     d.URL,
			Title:   d.Title,
			Content: d.Content,
		})
	}
	return out
}
