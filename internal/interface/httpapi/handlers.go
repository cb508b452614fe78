package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/jinford/blog-rag/internal/core/draft"
	"github.com/jinford/blog-rag/internal/core/job"
	"github.com/jinford/blog-rag/internal/core/plan"
)

type generatePlanRequest struct {
	Keyword string `json:"keyword"`
}

type generateBlogRequest struct {
	Plan      *plan.BlogPlan `json:"plan"`
	PlanJobID *uuid.UUID     `json:"plan_job_id,omitempty"`
}

type jobAcceptedResponse struct {
	JobID   uuid.UUID `json:"job_id"`
	Status  string    `json:"status"`
	Message string    `json:"message"`
}

type planJobResponse struct {
	JobID     uuid.UUID      `json:"job_id"`
	Status    string         `json:"status"`
	Keyword   string         `json:"keyword"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Plan      *plan.BlogPlan `json:"plan"`
	Error     *string        `json:"error"`
}

type blogJobResponse struct {
	JobID     uuid.UUID                    `json:"job_id"`
	Status    string                       `json:"status"`
	CreatedAt time.Time                    `json:"created_at"`
	UpdatedAt time.Time                    `json:"updated_at"`
	Blog      *string                      `json:"blog"`
	Sections  []draft.GeneratedBlogSection `json:"sections,omitempty"`
	Citations []string                     `json:"citations,omitempty"`
	PlanJobID *uuid.UUID                   `json:"plan_job_id,omitempty"`
	Error     *string                      `json:"error"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleGeneratePlan はプラン生成ジョブを登録する
func (s *Server) handleGeneratePlan(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]

	var req generatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	j, err := s.jobs.CreatePlanJob(r.Context(), sessionID, req.Keyword)
	if err != nil {
		if errors.Is(err, job.ErrEmptyKeyword) {
			writeError(w, http.StatusBadRequest, "keyword must not be empty")
			return
		}
		s.logger.Error("failed to create plan job", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	writeJSON(w, http.StatusCreated, jobAcceptedResponse{
		JobID:   j.ID,
		Status:  string(j.Status),
		Message: "plan generation started",
	})
}

// handleGetPlan はプラン生成ジョブの状態と成果物を返す
func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	j, ok := s.fetchJob(w, r, job.KindPlan)
	if !ok {
		return
	}

	resp := planJobResponse{
		JobID:     j.ID,
		Status:    string(j.Status),
		Keyword:   j.Input.Keyword,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
		Error:     errorField(j),
	}
	if j.Result != nil {
		resp.Plan = j.Result.Plan
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleGenerateBlog はブログ生成ジョブを登録する
// プランはユーザーが編集したものでもよく、plan_job_idは来歴としてのみ保持される
func (s *Server) handleGenerateBlog(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]

	var req generateBlogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	j, err := s.jobs.CreateBlogJob(r.Context(), sessionID, req.Plan, req.PlanJobID)
	if err != nil {
		if errors.Is(err, job.ErrInvalidPlan) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("failed to create blog job", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	writeJSON(w, http.StatusCreated, jobAcceptedResponse{
		JobID:   j.ID,
		Status:  string(j.Status),
		Message: "blog generation started",
	})
}

// handleGetBlog はブログ生成ジョブの状態と成果物を返す
func (s *Server) handleGetBlog(w http.ResponseWriter, r *http.Request) {
	j, ok := s.fetchJob(w, r, job.KindBlog)
	if !ok {
		return
	}

	resp := blogJobResponse{
		JobID:     j.ID,
		Status:    string(j.Status),
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
		PlanJobID: j.Input.PlanJobID,
		Error:     errorField(j),
	}
	if j.Result != nil && j.Result.Blog != nil {
		resp.Blog = &j.Result.Blog.Markdown
		resp.Sections = j.Result.Blog.Sections
		resp.Citations = j.Result.Blog.Citations
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// fetchJob はパスのjob_idを解決し、種別が一致するジョブを返す
// 不正なID、未知のID、種別違いはいずれも404として扱う
func (s *Server) fetchJob(w http.ResponseWriter, r *http.Request, kind job.Kind) (*job.Job, bool) {
	id, err := uuid.Parse(mux.Vars(r)["job_id"])
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return nil, false
	}

	j, err := s.jobs.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return nil, false
		}
		s.logger.Error("failed to get job", "job_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get job")
		return nil, false
	}

	if j.Kind != kind {
		writeError(w, http.StatusNotFound, "job not found")
		return nil, false
	}
	return j, true
}

func errorField(j *job.Job) *string {
	if j.Status != job.StatusFailed {
		return nil
	}
	msg := j.Error
	return &msg
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
