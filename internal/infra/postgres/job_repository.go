// Package postgres は PostgreSQL をバックエンドとする永続化アダプタを提供する
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jinford/blog-rag/internal/core/job"
	"github.com/jinford/blog-rag/internal/platform/database"
)

// JobRepository は job.Store インターフェースを実装する PostgreSQL リポジトリです
type JobRepository struct {
	db *database.Database
}

// NewJobRepository は新しい JobRepository を作成します
func NewJobRepository(db *database.Database) *JobRepository {
	return &JobRepository{db: db}
}

// コンパイル時の型チェック
var _ job.Store = (*JobRepository)(nil)

const jobColumns = `id, kind, session_id, input, status, result, error, claimed_at, created_at, updated_at`

func (r *JobRepository) Create(ctx context.Context, j *job.Job) error {
	inputJSON, err := json.Marshal(j.Input)
	if err != nil {
		return fmt.Errorf("failed to marshal job input: %w", err)
	}

	_, err = r.db.Pool().Exec(ctx, `
		INSERT INTO jobs (id, kind, session_id, input, status, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		j.ID, string(j.Kind), j.SessionID, inputJSON, string(j.Status), j.Error, j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (r *JobRepository) Get(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	row := r.db.Pool().QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)

	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, job.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return j, nil
}

// Claim は未クレームのprocessingジョブにリースを設定する
// WHERE句の条件付きUPDATEにより、同一ジョブのクレームに成功するワーカーは1つだけになる
func (r *JobRepository) Claim(ctx context.Context, id uuid.UUID, owner string) (bool, error) {
	tag, err := r.db.Pool().Exec(ctx, `
		UPDATE jobs
		SET claimed_at = now(), claimed_by = $2, updated_at = now()
		WHERE id = $1 AND status = 'processing' AND claimed_at IS NULL`,
		id, owner,
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim job: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	// 行が更新されなかった場合、ジョブ不在とクレーム競合負けを区別する
	var exists bool
	if err := r.db.Pool().QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM jobs WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check job existence: %w", err)
	}
	if !exists {
		return false, job.ErrNotFound
	}
	return false, nil
}

// Complete はジョブを completed に遷移させる（すでに終端状態ならno-op）
func (r *JobRepository) Complete(ctx context.Context, id uuid.UUID, result job.Result) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal job result: %w", err)
	}

	tag, err := r.db.Pool().Exec(ctx, `
		UPDATE jobs
		SET status = 'completed', result = $2, error = '', updated_at = now()
		WHERE id = $1 AND status = 'processing'`,
		id, resultJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.ensureExists(ctx, id)
	}
	return nil
}

// Fail はジョブを failed に遷移させる（すでに終端状態ならno-op）
func (r *JobRepository) Fail(ctx context.Context, id uuid.UUID, message string) error {
	tag, err := r.db.Pool().Exec(ctx, `
		UPDATE jobs
		SET status = 'failed', result = NULL, error = $2, updated_at = now()
		WHERE id = $1 AND status = 'processing'`,
		id, message,
	)
	if err != nil {
		return fmt.Errorf("failed to mark job as failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.ensureExists(ctx, id)
	}
	return nil
}

func (r *JobRepository) ListPending(ctx context.Context, limit int) ([]*job.Job, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE status = 'processing' AND claimed_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending jobs: %w", err)
	}
	return jobs, nil
}

func (r *JobRepository) ensureExists(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.db.Pool().QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM jobs WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check job existence: %w", err)
	}
	if !exists {
		return job.ErrNotFound
	}
	return nil
}

func scanJob(row pgx.Row) (*job.Job, error) {
	var (
		j          job.Job
		kind       string
		status     string
		inputJSON  []byte
		resultJSON []byte
		claimedAt  *time.Time
	)
	if err := row.Scan(&j.ID, &kind, &j.SessionID, &inputJSON, &status, &resultJSON, &j.Error, &claimedAt, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}

	j.Kind = job.Kind(kind)
	j.Status = job.Status(status)
	j.ClaimedAt = claimedAt

	if err := json.Unmarshal(inputJSON, &j.Input); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job input: %w", err)
	}
	if len(resultJSON) > 0 {
		var result job.Result
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal job result: %w", err)
		}
		j.Result = &result
	}
	return &j, nil
}
