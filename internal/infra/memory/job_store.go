// Package memory はプロセス内メモリ上のジョブストア実装を提供する
// 単一プロセスの開発モードとテストで使用し、永続性は持たない
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jinford/blog-rag/internal/core/job"
)

// JobStore は job.Store のインメモリ実装
// 読み取りは常にレコードのコピーを返すため、呼び出し側から内部状態は変更できない
type JobStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*job.Job
}

// NewJobStore は新しい JobStore を作成する
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[uuid.UUID]*job.Job),
	}
}

var _ job.Store = (*JobStore)(nil)

// Create は新しいジョブを保存する
func (s *JobStore) Create(_ context.Context, j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *j
	s.jobs[j.ID] = &stored
	return nil
}

// Get はジョブのスナップショットを返す
func (s *JobStore) Get(_ context.Context, id uuid.UUID) (*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.jobs[id]
	if !ok {
		return nil, job.ErrNotFound
	}

	snapshot := *stored
	return &snapshot, nil
}

// Claim は未クレームのprocessingジョブにリースを設定する
// ロック内のcheck-and-setなので、同一ジョブで成功するのは1回だけ
func (s *JobStore) Claim(_ context.Context, id uuid.UUID, owner string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.jobs[id]
	if !ok {
		return false, job.ErrNotFound
	}
	if stored.Terminal() || stored.Claimed() {
		return false, nil
	}

	now := s.monotonicNow(stored)
	stored.ClaimedAt = &now
	stored.UpdatedAt = now
	return true, nil
}

// Complete はジョブを completed に遷移させる（終端状態ならno-op）
func (s *JobStore) Complete(_ context.Context, id uuid.UUID, result job.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.jobs[id]
	if !ok {
		return job.ErrNotFound
	}
	if stored.Terminal() {
		return nil
	}

	stored.Status = job.StatusCompleted
	stored.Result = &result
	stored.Error = ""
	stored.UpdatedAt = s.monotonicNow(stored)
	return nil
}

// Fail はジョブを failed に遷移させる（終端状態ならno-op）
func (s *JobStore) Fail(_ context.Context, id uuid.UUID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.jobs[id]
	if !ok {
		return job.ErrNotFound
	}
	if stored.Terminal() {
		return nil
	}

	stored.Status = job.StatusFailed
	stored.Result = nil
	stored.Error = message
	stored.UpdatedAt = s.monotonicNow(stored)
	return nil
}

// ListPending は未クレームのprocessingジョブを作成順に返す
func (s *JobStore) ListPending(_ context.Context, limit int) ([]*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []*job.Job
	for _, stored := range s.jobs {
		if stored.Status == job.StatusProcessing && !stored.Claimed() {
			snapshot := *stored
			pending = append(pending, &snapshot)
		}
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

// monotonicNow はUpdatedAtが遷移のたびに厳密に増加することを保証する
func (s *JobStore) monotonicNow(j *job.Job) time.Time {
	now := time.Now().UTC()
	if !now.After(j.UpdatedAt) {
		now = j.UpdatedAt.Add(time.Nanosecond)
	}
	return now
}
