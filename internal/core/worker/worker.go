package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/jinford/blog-rag/internal/core/job"
	"github.com/jinford/blog-rag/internal/platform/metrics"
)

const (
	// DefaultPollInterval は未クレームジョブのポーリング間隔のデフォルト
	DefaultPollInterval = 2 * time.Second

	// DefaultJobTimeout は1ジョブあたりの実行タイムアウトのデフォルト
	DefaultJobTimeout = 5 * time.Minute

	// DefaultClaimBatchSize は1回のポーリングでクレームを試みる最大ジョブ数
	DefaultClaimBatchSize = 5

	// DefaultShutdownGrace は停止時に実行中ジョブを待つ猶予時間のデフォルト
	DefaultShutdownGrace = 30 * time.Second

	// storageRetryMaxElapsed は終端遷移の書き込みリトライを打ち切るまでの時間
	// 使い切った場合ジョブはRUNNINGのまま残る（誤った終端レコードを作らない）
	storageRetryMaxElapsed = 15 * time.Second
)

// Executor はクレーム済みジョブのパイプラインを実行する
type Executor interface {
	Execute(ctx context.Context, j *job.Job) (job.Result, error)
}

// Worker はジョブストアをポーリングし、クレームしたジョブを実行する
//
// 複数のWorkerが同じストアを共有してよい。排他はストアの原子的な
// Claimだけに依存し、それ以外のワーカー間協調は行わない。
type Worker struct {
	id       string
	store    job.Store
	executor Executor

	pollInterval  time.Duration
	jobTimeout    time.Duration
	claimBatch    int
	shutdownGrace time.Duration

	logger *slog.Logger

	// loopCancel はポーリングループを止める（新規クレーム停止）
	loopCancel context.CancelFunc
	// jobCancel は実行中ジョブを打ち切る（猶予時間超過時のみ）
	jobCancel context.CancelFunc
	jobCtx    context.Context

	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// Option は Worker 構築時のオプション
type Option func(*Worker)

// WithPollInterval はポーリング間隔を上書きする
func WithPollInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithJobTimeout は1ジョブの実行タイムアウトを上書きする
func WithJobTimeout(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.jobTimeout = d
		}
	}
}

// WithClaimBatchSize は1回のポーリングでのクレーム上限を上書きする
func WithClaimBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.claimBatch = n
		}
	}
}

// WithShutdownGrace は停止時の猶予時間を上書きする
func WithShutdownGrace(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.shutdownGrace = d
		}
	}
}

// WithLogger はロガーを差し替える
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// New は新しい Worker を作成する
func New(store job.Store, executor Executor, opts ...Option) *Worker {
	w := &Worker{
		id:            fmt.Sprintf("worker-%s", uuid.NewString()[:8]),
		store:         store,
		executor:      executor,
		pollInterval:  DefaultPollInterval,
		jobTimeout:    DefaultJobTimeout,
		claimBatch:    DefaultClaimBatchSize,
		shutdownGrace: DefaultShutdownGrace,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("worker_id", w.id)
	return w
}

// Start はスケジューリングループを起動する
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true

	loopCtx, loopCancel := context.WithCancel(ctx)
	w.loopCancel = loopCancel

	// 実行中ジョブはループ停止後も猶予時間まで走り続けられるよう、
	// ループとは独立したコンテキストにぶら下げる
	jobCtx, jobCancel := context.WithCancel(context.WithoutCancel(ctx))
	w.jobCtx = jobCtx
	w.jobCancel = jobCancel

	w.wg.Add(1)
	go w.run(loopCtx)

	w.logger.Info("worker started",
		"poll_interval", w.pollInterval.String(),
		"job_timeout", w.jobTimeout.String(),
	)
}

// Stop は新規クレームを止め、実行中ジョブの完了を猶予時間まで待つ
// 猶予を超えた実行中ジョブは打ち切られ、shutdown理由でfailedになる
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	w.loopCancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(w.shutdownGrace):
		w.logger.Warn("shutdown grace exceeded, aborting in-flight jobs")
		w.jobCancel()
		<-done
	}

	w.jobCancel()
	w.logger.Info("worker stopped")
}

// run は停止されるまで一定間隔で未クレームジョブを処理する
func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll は未クレームジョブを列挙し、クレームに成功したものを順に実行する
// ポーリング1回の中の実行は直列で、ジョブ内の並列化は行わない
func (w *Worker) poll(ctx context.Context) {
	pending, err := w.store.ListPending(ctx, w.claimBatch)
	if err != nil {
		w.logger.Error("failed to list pending jobs", "error", err)
		return
	}
	metrics.SetPendingJobs(len(pending))

	for _, j := range pending {
		if ctx.Err() != nil {
			return
		}

		claimed, err := w.store.Claim(ctx, j.ID, w.id)
		if err != nil {
			metrics.RecordClaim("error")
			w.logger.Error("claim failed", "job_id", j.ID, "error", err)
			continue
		}
		if !claimed {
			// 別のワーカーが先にクレームした
			metrics.RecordClaim("lost")
			continue
		}
		metrics.RecordClaim("won")

		w.process(j)
	}
}

// process はクレーム済みジョブのパイプラインをタイムアウト付きで実行し、
// 結果を終端状態としてストアに書き込む
// ステージの失敗はこのジョブのfailedで完結し、ループには波及しない
func (w *Worker) process(j *job.Job) {
	start := time.Now()

	logger := w.logger.With("job_id", j.ID, "kind", string(j.Kind))
	logger.Info("processing job")

	ctx, cancel := context.WithTimeout(w.jobCtx, w.jobTimeout)
	defer cancel()

	result, err := w.executor.Execute(ctx, j)

	elapsed := time.Since(start)

	if err != nil {
		message := failureMessage(ctx, err, w.jobTimeout)
		w.transition(func(tctx context.Context) error {
			return w.store.Fail(tctx, j.ID, message)
		}, j.ID, "fail")

		metrics.RecordJob(string(j.Kind), string(job.StatusFailed), elapsed.Seconds())
		logger.Error("job failed", "error", message, "duration_ms", elapsed.Milliseconds())
		return
	}

	w.transition(func(tctx context.Context) error {
		return w.store.Complete(tctx, j.ID, result)
	}, j.ID, "complete")

	metrics.RecordJob(string(j.Kind), string(job.StatusCompleted), elapsed.Seconds())
	logger.Info("job completed", "duration_ms", elapsed.Milliseconds())
}

// transition は終端遷移の書き込みを有限のバックオフ付きでリトライする
// リトライを使い切った場合はログに残し、ジョブはRUNNINGのまま放置する
func (w *Worker) transition(fn func(context.Context) error, jobID uuid.UUID, op string) {
	// 実行コンテキストはタイムアウト済みの可能性があるため独立したものを使う
	ctx, cancel := context.WithTimeout(context.Background(), storageRetryMaxElapsed)
	defer cancel()

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = storageRetryMaxElapsed

	err := backoff.Retry(func() error {
		return fn(ctx)
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		w.logger.Error("terminal transition failed, job left running",
			"job_id", jobID,
			"op", op,
			"error", err,
		)
	}
}

// failureMessage は実行エラーをジョブに保存するメッセージへ変換する
func failureMessage(ctx context.Context, err error, timeout time.Duration) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded) && errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Sprintf("job execution timed out after %s", timeout)
	case errors.Is(err, context.Canceled):
		return "job aborted by worker shutdown"
	default:
		return err.Error()
	}
}
