package job

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/blog-rag/internal/core/plan"
)

// stubStore は書き込まれたジョブを記録する
type stubStore struct {
	created   []*Job
	createErr error
}

func (s *stubStore) Create(_ context.Context, j *Job) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, j)
	return nil
}

func (s *stubStore) Get(context.Context, uuid.UUID) (*Job, error)     { return nil, ErrNotFound }
func (s *stubStore) Claim(context.Context, uuid.UUID, string) (bool, error) { return false, nil }
func (s *stubStore) Complete(context.Context, uuid.UUID, Result) error      { return nil }
func (s *stubStore) Fail(context.Context, uuid.UUID, string) error          { return nil }
func (s *stubStore) ListPending(context.Context, int) ([]*Job, error)       { return nil, nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestService_CreatePlanJob(t *testing.T) {
	store := &stubStore{}
	svc := NewService(store, discardLogger())

	j, err := svc.CreatePlanJob(context.Background(), "session-1", "  Go generics  ")
	require.NoError(t, err)

	assert.Equal(t, KindPlan, j.Kind)
	assert.Equal(t, StatusProcessing, j.Status)
	assert.Equal(t, "session-1", j.SessionID)
	// キーワードはトリムして保存する
	assert.Equal(t, "Go generics", j.Input.Keyword)
	assert.False(t, j.Claimed())
	require.Len(t, store.created, 1)
}

func TestService_CreatePlanJobRejectsEmptyKeyword(t *testing.T) {
	store := &stubStore{}
	svc := NewService(store, discardLogger())

	_, err := svc.CreatePlanJob(context.Background(), "session-1", "   ")
	require.ErrorIs(t, err, ErrEmptyKeyword)
	// 検証エラー時はレコードを書き込まない
	assert.Empty(t, store.created)
}

func TestService_CreateBlogJob(t *testing.T) {
	store := &stubStore{}
	svc := NewService(store, discardLogger())

	planJobID := uuid.New()
	p := &plan.BlogPlan{Title: "t", Sections: []plan.Section{{Heading: "h"}}}

	j, err := svc.CreateBlogJob(context.Background(), "session-1", p, &planJobID)
	require.NoError(t, err)
	assert.Equal(t, KindBlog, j.Kind)
	assert.Equal(t, p, j.Input.Plan)
	require.NotNil(t, j.Input.PlanJobID)
	assert.Equal(t, planJobID, *j.Input.PlanJobID)
}

func TestService_CreateBlogJobRejectsInvalidPlan(t *testing.T) {
	store := &stubStore{}
	svc := NewService(store, discardLogger())

	_, err := svc.CreateBlogJob(context.Background(), "session-1", nil, nil)
	require.ErrorIs(t, err, ErrInvalidPlan)

	_, err = svc.CreateBlogJob(context.Background(), "session-1", &plan.BlogPlan{}, nil)
	require.ErrorIs(t, err, ErrInvalidPlan)
	assert.Empty(t, store.created)
}

func TestService_CreatePlanJobPropagatesStoreError(t *testing.T) {
	storeErr := errors.New("connection lost")
	svc := NewService(&stubStore{createErr: storeErr}, discardLogger())

	_, err := svc.CreatePlanJob(context.Background(), "session-1", "keyword")
	require.ErrorIs(t, err, storeErr)
}

func TestJob_Terminal(t *testing.T) {
	j := NewPlanJob("s", "k")
	assert.False(t, j.Terminal())

	j.Status = StatusCompleted
	assert.True(t, j.Terminal())

	j.Status = StatusFailed
	assert.True(t, j.Terminal())
}
