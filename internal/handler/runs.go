package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/build-sandbox/internal/apperror"
	"github.com/sakif/build-sandbox/internal/auth"
	"github.com/sakif/build-sandbox/internal/model"
	"github.com/sakif/build-sandbox/internal/repository"
	"github.com/sakif/build-sandbox/internal/service"
)

// RunService is the part of service.RunService the handlers use.
type RunService interface {
	Submit(ctx context.Context, req service.SubmitRequest, progress io.Writer) (*model.Run, error)
	Get(ctx context.Context, id string) (*model.Run, error)
	List(ctx context.Context, opts repository.ListOptions) ([]model.Run, error)
}

type RunHandler struct {
	runs   RunService
	logger *slog.Logger
}

func NewRunHandler(runs RunService, logger *slog.Logger) *RunHandler {
	return &RunHandler{runs: runs, logger: logger}
}

// SubmitRunRequest is the body of POST /api/runs and of a WebSocket submit
// message.
type SubmitRunRequest struct {
	Name    string `json:"name"`
	Package string `json:"package,omitempty"`
	Code    string `json:"code"`
}

func (req SubmitRunRequest) toService(ctx context.Context) service.SubmitRequest {
	subject, _ := auth.SubjectFromContext(ctx)
	return service.SubmitRequest{
		Name:        req.Name,
		Package:     req.Package,
		Code:        req.Code,
		SubmittedBy: subject,
	}
}

// maxSubmitBody leaves room for JSON escaping of the longest accepted code.
const maxSubmitBody = 2*service.MaxCodeLength + 64<<10

// HandleSubmit runs the pipeline synchronously and answers 201 with the
// recorded run, whether or not every stage succeeded.
func (h *RunHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSubmitBody)

	var req SubmitRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, apperror.ValidationFailed("code",
				fmt.Sprintf("code must be %d characters or less", service.MaxCodeLength)))
			return
		}
		writeError(w, apperror.ValidationFailed("body", "invalid JSON"))
		return
	}

	run, err := h.runs.Submit(r.Context(), req.toService(r.Context()), nil)
	if err != nil {
		h.logger.Warn("run submission failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, run)
}

func (h *RunHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// HandleList serves GET /api/runs?limit=&offset=&submittedBy=.
func (h *RunHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := repository.ListOptions{SubmittedBy: q.Get("submittedBy")}

	var err error
	if opts.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, apperror.ValidationFailed("limit", "limit must be an integer"))
		return
	}
	if opts.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, apperror.ValidationFailed("offset", "offset must be an integer"))
		return
	}

	runs, err := h.runs.List(r.Context(), opts)
	if err != nil {
		h.logger.Error("listing runs failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

// HandleHealth is the liveness probe.
func HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
