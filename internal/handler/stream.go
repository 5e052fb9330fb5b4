package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sakif/build-sandbox/internal/apperror"
	"github.com/sakif/build-sandbox/internal/model"
)

// writeWait bounds every write to the peer. A client that stops reading
// without closing breaks the stream instead of stalling the run.
const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	// Bearer tokens, not cookies, authenticate the stream, so cross-origin
	// pages gain nothing from connecting.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message types of the stream protocol.
const (
	MsgSubmit   = "submit"
	MsgProgress = "progress"
	MsgDone     = "done"
	MsgError    = "error"
)

// StreamIncoming is the one message a client sends: a submit.
type StreamIncoming struct {
	Type string `json:"type"`
	SubmitRunRequest
}

// StreamOutgoing is every message the server sends.
type StreamOutgoing struct {
	Type    string     `json:"type"`
	Content string     `json:"content,omitempty"`
	Run     *model.Run `json:"run,omitempty"`
}

// HandleStream serves GET /api/runs/stream. The client sends one submit
// message; the server answers with progress lines (stage banners and the
// build log), then a done message carrying the run or an error message, and
// closes the connection. Disconnecting cancels the run.
func (h *RunHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	out := &streamWriter{conn: conn, logger: h.logger}

	var msg StreamIncoming
	if err := conn.ReadJSON(&msg); err != nil {
		if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			h.logger.Warn("websocket read failed", slog.String("error", err.Error()))
		}
		return
	}
	if msg.Type != MsgSubmit {
		out.send(StreamOutgoing{Type: MsgError, Content: "first message must be a submit"})
		out.close()
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	// Any read error after the submit means the client went away.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	run, err := h.runs.Submit(ctx, msg.toService(r.Context()), out)
	if err != nil {
		out.send(StreamOutgoing{Type: MsgError, Content: errorMessage(err)})
	} else {
		out.send(StreamOutgoing{Type: MsgDone, Run: run})
	}
	out.close()
}

// streamWriter turns each Write into one progress message. Writes come from
// the pipeline and the process output copier, so they are serialized.
type streamWriter struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	logger *slog.Logger
	broken bool
}

func (s *streamWriter) Write(p []byte) (int, error) {
	s.send(StreamOutgoing{Type: MsgProgress, Content: strings.TrimRight(string(p), "\n")})
	return len(p), nil
}

func (s *streamWriter) send(msg StreamOutgoing) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("websocket marshal failed", slog.String("error", err.Error()))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.broken = true
		s.logger.Debug("websocket write failed", slog.String("error", err.Error()))
	}
}

func (s *streamWriter) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return
	}
	deadline := time.Now().Add(time.Second)
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
}

// errorMessage keeps AppError messages and hides everything else.
func errorMessage(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "An internal error occurred"
}
