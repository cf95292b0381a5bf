package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/scriptoria/litreview/internal/domain"
)

const (
	// maxRequestBodySize bounds request bodies.
	maxRequestBodySize = 1 << 20

	// defaultMaxTopicLength applies when the config leaves it unset.
	defaultMaxTopicLength = 500
)

// startReviewRequest is the JSON request body for starting a review run.
type startReviewRequest struct {
	Topic         string `json:"topic" validate:"required"`
	MinReferences int    `json:"min_references" validate:"required,gt=0"`
}

// startReviewResponse acknowledges an accepted run.
type startReviewResponse struct {
	RunID     string    `json:"run_id"`
	Status    RunStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// reviewStatusResponse is the poll response for one run.
type reviewStatusResponse struct {
	RunID          string         `json:"run_id"`
	Topic          string         `json:"topic"`
	MinReferences  int            `json:"min_references"`
	Status         RunStatus      `json:"status"`
	Error          string         `json:"error,omitempty"`
	Papers         []domain.Paper `json:"papers,omitempty"`
	Narrative      string         `json:"narrative,omitempty"`
	Bibliography   []string       `json:"bibliography,omitempty"`
	FullText       string         `json:"full_text,omitempty"`
	CitationOrder  []int          `json:"citation_order,omitempty"`
	CitationsValid *bool          `json:"citations_valid,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
}

// startReview handles POST /literature-reviews. It validates the request,
// registers a pending run, and executes it in the background.
func (s *Server) startReview(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req startReviewRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "topic and a positive min_references are required")
		return
	}

	req.Topic = strings.TrimSpace(req.Topic)
	maxTopic := s.config.MaxTopicLength
	if maxTopic == 0 {
		maxTopic = defaultMaxTopicLength
	}
	if len(req.Topic) > maxTopic {
		writeError(w, http.StatusBadRequest, "topic is too long")
		return
	}

	review := domain.ReviewRequest{
		ID:            uuid.New(),
		Topic:         req.Topic,
		MinReferences: req.MinReferences,
		CreatedAt:     time.Now().UTC(),
	}
	if err := review.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}

	state := s.registry.Create(review)
	go s.executeRun(review)

	writeJSON(w, http.StatusAccepted, startReviewResponse{
		RunID:     state.ID.String(),
		Status:    state.Status,
		CreatedAt: state.CreatedAt,
	})
}

// executeRun drives one run to completion in the background. The run
// outlives the originating request, so it gets its own context.
func (s *Server) executeRun(review domain.ReviewRequest) {
	ctx := context.Background()
	if s.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RunTimeout)
		defer cancel()
	}

	s.registry.MarkRunning(review.ID)

	result, err := s.runner.Run(ctx, review)
	if err != nil {
		s.registry.MarkFailed(review.ID, err)
		return
	}
	s.registry.MarkCompleted(review.ID, result)
}

// getReview handles GET /literature-reviews/{runID}.
func (s *Server) getReview(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	state, ok := s.registry.Get(runID)
	if !ok {
		writeDomainError(w, domain.NewNotFoundError("run", runID.String()))
		return
	}

	writeJSON(w, http.StatusOK, runStateToResponse(state))
}

func runStateToResponse(state RunState) reviewStatusResponse {
	resp := reviewStatusResponse{
		RunID:         state.ID.String(),
		Topic:         state.Topic,
		MinReferences: state.MinReferences,
		Status:        state.Status,
		Error:         state.Error,
		CreatedAt:     state.CreatedAt,
		CompletedAt:   state.CompletedAt,
	}
	if state.Result != nil {
		resp.Papers = state.Result.Papers
		resp.Narrative = state.Result.Document.Narrative
		resp.Bibliography = state.Result.Document.Bibliography
		resp.FullText = state.Result.FullText()
		resp.CitationOrder = state.Result.CitationOrder
		valid := state.Result.CitationsValid
		resp.CitationsValid = &valid
	}
	return resp
}
