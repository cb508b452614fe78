package job

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jinford/blog-rag/internal/core/draft"
	"github.com/jinford/blog-rag/internal/core/plan"
)

// Kind はジョブの種別
type Kind string

const (
	// KindPlan はキーワードからプランを生成するジョブ
	KindPlan Kind = "plan"
	// KindBlog はプランからブログ本文を生成するジョブ
	KindBlog Kind = "blog"
)

// Status はジョブの状態
// processing → completed | failed の一方向にのみ遷移する
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var (
	// ErrNotFound は指定されたジョブが存在しない場合のエラー
	ErrNotFound = errors.New("job not found")

	// ErrEmptyKeyword はキーワードが空の場合のエラー
	ErrEmptyKeyword = errors.New("keyword must not be empty")

	// ErrInvalidPlan はブログジョブのプランが不正な場合のエラー
	ErrInvalidPlan = errors.New("invalid blog plan")
)

// Input はジョブ種別ごとのペイロードを持つタグ付きユニオン
// KindPlan は Keyword のみ、KindBlog は Plan（と任意の PlanJobID）のみを使う
type Input struct {
	Keyword   string         `json:"keyword,omitempty"`
	Plan      *plan.BlogPlan `json:"plan,omitempty"`
	PlanJobID *uuid.UUID     `json:"plan_job_id,omitempty"`
}

// Result は完了ジョブの成果物
// PlanとBlogはジョブ種別に応じて排他的に設定される
type Result struct {
	Plan *plan.BlogPlan       `json:"plan,omitempty"`
	Blog *draft.GeneratedBlog `json:"blog,omitempty"`
}

// Job は非同期生成ジョブの1レコードを表す
// 不変条件:
//   - 終端状態（completed/failed）に入った後は一切変化しない
//   - UpdatedAt >= CreatedAt であり、遷移のたびに厳密に増加する
//   - 終端状態では Result と Error のどちらか一方だけが設定される
type Job struct {
	ID        uuid.UUID
	Kind      Kind
	SessionID string
	Input     Input
	Status    Status
	Result    *Result
	Error     string
	// ClaimedAt はワーカーがリースを取った時刻（未クレームならnil）
	ClaimedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewPlanJob は新しいプラン生成ジョブを作成する
func NewPlanJob(sessionID, keyword string) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        uuid.New(),
		Kind:      KindPlan,
		SessionID: sessionID,
		Input:     Input{Keyword: keyword},
		Status:    StatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewBlogJob は新しいブログ生成ジョブを作成する
// planJobID は由来するプランジョブの参照（任意、来歴のみに使う）
func NewBlogJob(sessionID string, p *plan.BlogPlan, planJobID *uuid.UUID) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        uuid.New(),
		Kind:      KindBlog,
		SessionID: sessionID,
		Input:     Input{Plan: p, PlanJobID: planJobID},
		Status:    StatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Terminal はジョブが終端状態かどうかを返す
func (j *Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Claimed はジョブがワーカーにクレーム済みかどうかを返す
func (j *Job) Claimed() bool {
	return j.ClaimedAt != nil
}
