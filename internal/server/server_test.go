package server

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/build-sandbox/internal/apperror"
	"github.com/sakif/build-sandbox/internal/auth"
	"github.com/sakif/build-sandbox/internal/model"
	"github.com/sakif/build-sandbox/internal/repository"
	"github.com/sakif/build-sandbox/internal/service"
)

type stubRuns struct {
	submittedBy string
}

func (s *stubRuns) Submit(_ context.Context, req service.SubmitRequest, _ io.Writer) (*model.Run, error) {
	s.submittedBy = req.SubmittedBy
	return &model.Run{ID: "r1", Name: req.Name}, nil
}

func (s *stubRuns) Get(_ context.Context, id string) (*model.Run, error) {
	return nil, apperror.NotFound("run", id)
}

func (s *stubRuns) List(context.Context, repository.ListOptions) ([]model.Run, error) {
	return []model.Run{}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRoutes_Open(t *testing.T) {
	runs := &stubRuns{}
	h := New(DefaultConfig(), runs, nil, quietLogger()).Handler()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/runs", bytes.NewBufferString(`{"name":"A","code":"x"}`)))
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Empty(t, runs.submittedBy)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/runs/nope", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRoutes_RequireToken(t *testing.T) {
	tokens, err := auth.NewTokenService("server-test-secret-0123456789")
	require.NoError(t, err)
	token, err := tokens.Generate("ci-bot", time.Hour)
	require.NoError(t, err)

	runs := &stubRuns{}
	h := New(DefaultConfig(), runs, tokens, quietLogger()).Handler()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code, "health stays open")

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/runs", bytes.NewBufferString(`{"name":"A","code":"x"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "ci-bot", runs.submittedBy)
}

func TestStart_StopsOnCancel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Port = 0
	s := New(cfg, &stubRuns{}, nil, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
