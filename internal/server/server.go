// Package server exposes the capture controls over HTTP and streams state,
// results and notices over a WebSocket.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/GriffinCanCode/textcam/internal/camera"
	"github.com/GriffinCanCode/textcam/internal/contrast"
	apperrors "github.com/GriffinCanCode/textcam/internal/errors"
	"github.com/GriffinCanCode/textcam/internal/orchestrator"
	"github.com/GriffinCanCode/textcam/internal/orchestrator/capture"
	"github.com/GriffinCanCode/textcam/internal/orchestrator/events"
	"github.com/GriffinCanCode/textcam/internal/still"
	"github.com/GriffinCanCode/textcam/internal/trace"
)

// Service is the orchestrator as seen by the control surface.
type Service interface {
	Capture(ctx context.Context) (capture.Result, error)
	SetAutoCapture(enabled bool)
	SetThreshold(v float64) float64
	SwitchFacing(ctx context.Context, f camera.Facing) error
	ToggleFacing(ctx context.Context) (camera.Facing, error)
	Result() (capture.Result, bool)
	Text() string
	Image() (still.Image, bool)
	ClearText() bool
	Status() orchestrator.Status
	Subscribe() (<-chan events.Event, func())
	Notices() []events.Notice
}

// Command is a control message sent by a WebSocket client.
type Command struct {
	Type    string   `json:"type"` // capture, auto, threshold, facing, clear
	Enabled *bool    `json:"enabled,omitempty"`
	Value   *float64 `json:"value,omitempty"`
	Scale   string   `json:"scale,omitempty"`
	Facing  string   `json:"facing,omitempty"`
}

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error struct {
		Code     string            `json:"code"`
		Message  string            `json:"message"`
		Metadata map[string]string `json:"metadata,omitempty"`
		TraceID  string            `json:"trace_id,omitempty"`
	} `json:"error"`
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-RateLimitWindow)

	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}

	r.timestamps = append(r.timestamps, now)
	return true
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	svc Service
}

// New creates a new server.
func New(svc Service) *Server {
	return &Server{svc: svc}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.HandleFunc("POST /api/capture", s.handleCapture)
	mux.HandleFunc("PUT /api/auto", s.handleAuto)
	mux.HandleFunc("PUT /api/threshold", s.handleThreshold)
	mux.HandleFunc("POST /api/camera/facing", s.handleFacing)
	mux.HandleFunc("GET /api/result", s.handleResult)
	mux.HandleFunc("GET /api/text", s.handleText)
	mux.HandleFunc("DELETE /api/text", s.handleClearText)
	mux.HandleFunc("GET /api/image", s.handleImage)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/notices", s.handleNotices)

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		w.Header().Set("Access-Control-Expose-Headers", trace.TraceIDKey+", Content-Disposition")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.svc.Status()
	code := http.StatusOK
	if !st.EngineReady {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"engine":       st.Engine,
		"engine_state": st.EngineState,
		"camera":       st.CameraActive,
	})
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Capture(r.Context())
	if err != nil && r.Context().Err() != nil {
		// The client went away; nobody is left to read the response.
		trace.Logger(r.Context()).Debug("capture abandoned", "error", err)
		return
	}
	if err != nil && res.ID == "" {
		writeError(w, r, err)
		return
	}
	// A recognition failure still produced a still; the result carries the
	// error and the status reflects it.
	code := http.StatusOK
	if err != nil {
		code = statusOf(err)
	}
	writeJSON(w, code, res)
}

func (s *Server) handleAuto(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.Enabled == nil {
		writeError(w, r, apperrors.New(apperrors.InvalidArgument, "enabled is required"))
		return
	}
	s.svc.SetAutoCapture(*body.Enabled)
	writeJSON(w, http.StatusOK, s.svc.Status())
}

func (s *Server) handleThreshold(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value *float64 `json:"value"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	v, err := thresholdValue(body.Value, r.URL.Query().Get("scale"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	applied := s.svc.SetThreshold(v)
	writeJSON(w, http.StatusOK, map[string]float64{"threshold": applied})
}

// thresholdValue maps a raw or slider value into the variance domain.
func thresholdValue(v *float64, scale string) (float64, error) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, apperrors.New(apperrors.InvalidArgument, "value must be a finite number")
	}
	switch scale {
	case "", "variance":
		return *v, nil
	case "slider":
		return *v / SliderMax * contrast.MaxThreshold, nil
	default:
		return 0, apperrors.Newf(apperrors.InvalidArgument, "unknown scale %q", scale)
	}
}

func (s *Server) handleFacing(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Facing string `json:"facing"`
	}
	if r.ContentLength != 0 {
		if err := decode(r, &body); err != nil {
			writeError(w, r, err)
			return
		}
	}

	facing, err := s.switchFacing(r.Context(), body.Facing)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]camera.Facing{"facing": facing})
}

// switchFacing selects facing by name, or toggles when name is empty.
func (s *Server) switchFacing(ctx context.Context, name string) (camera.Facing, error) {
	if name == "" {
		return s.svc.ToggleFacing(ctx)
	}
	f, err := camera.ParseFacing(name)
	if err != nil {
		return "", err
	}
	return f, s.svc.SwitchFacing(ctx, f)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	res, ok := s.svc.Result()
	if !ok {
		writeError(w, r, apperrors.New(apperrors.NotFound, "nothing captured yet"))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, s.svc.Text())
}

func (s *Server) handleClearText(w http.ResponseWriter, r *http.Request) {
	s.svc.ClearText()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	img, ok := s.svc.Image()
	if !ok {
		writeError(w, r, apperrors.New(apperrors.NotFound, "no image captured yet"))
		return
	}
	w.Header().Set("Content-Type", img.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", img.Filename()))
	_, _ = w.Write(img.Data)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Status())
}

func (s *Server) handleNotices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Notices())
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	log := trace.Logger(ctx)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	evts, unsubscribe := s.svc.Subscribe()
	defer unsubscribe()

	// Initial snapshot so a fresh page can render without polling.
	_ = writeEvent(ctx, conn, events.Event{Type: events.TypeSettings, Time: time.Now(), Data: s.svc.Status()})
	if res, ok := s.svc.Result(); ok {
		_ = writeEvent(ctx, conn, events.Event{Type: events.TypeResult, Time: time.Now(), Data: res})
	}

	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-evts:
				if !ok {
					return
				}
				if err := writeEvent(ctx, conn, e); err != nil {
					log.Debug("websocket write error", "error", err)
					return
				}
			}
		}
	}()

	rl := &rateLimiter{}
	for {
		var cmd Command
		if err := wsjson.Read(ctx, conn, &cmd); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}
		if !rl.allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			_ = writeEvent(ctx, conn, events.Event{Type: events.TypeNotice, Time: time.Now(), Data: events.Notice{
				Level: events.LevelWarn, Message: "rate limit exceeded",
			}})
			continue
		}
		s.handleCommand(ctx, conn, cmd)
	}
}

// handleCommand applies a WebSocket command. Outcomes reach the client as
// hub events; only malformed commands are answered directly.
func (s *Server) handleCommand(ctx context.Context, conn *websocket.Conn, cmd Command) {
	ctx, span := trace.StartSpan(ctx, "ws_command")
	defer span.End()
	span.SetAttr("type", cmd.Type)

	var err error
	switch cmd.Type {
	case "capture":
		// Detached: the result is broadcast when recognition finishes.
		go func() { _, _ = s.svc.Capture(trace.Detach(ctx)) }()
	case "auto":
		if cmd.Enabled == nil {
			err = apperrors.New(apperrors.InvalidArgument, "enabled is required")
			break
		}
		s.svc.SetAutoCapture(*cmd.Enabled)
	case "threshold":
		var v float64
		if v, err = thresholdValue(cmd.Value, cmd.Scale); err == nil {
			s.svc.SetThreshold(v)
		}
	case "facing":
		_, err = s.switchFacing(ctx, cmd.Facing)
		// Camera failures are already broadcast as notices.
		if !apperrors.IsCode(err, apperrors.InvalidArgument) {
			err = nil
		}
	case "clear":
		s.svc.ClearText()
	default:
		err = apperrors.Newf(apperrors.InvalidArgument, "unknown command %q", cmd.Type)
	}

	if err != nil {
		_ = writeEvent(ctx, conn, events.Event{Type: events.TypeNotice, Time: time.Now(), Data: events.NoticeFromError(err)})
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, e events.Event) error {
	ctx, cancel := context.WithTimeout(ctx, WriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, e)
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return apperrors.Wrap(err, apperrors.InvalidArgument, "invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func statusOf(err error) int {
	if app, ok := apperrors.As(err); ok {
		return app.HTTPStatus()
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var body ErrorBody
	body.Error.Code = apperrors.CodeOf(err).String()
	body.Error.Message = err.Error()
	if app, ok := apperrors.As(err); ok {
		body.Error.Message = app.Message
		body.Error.Metadata = app.Metadata
	}
	if tc, ok := trace.FromContext(r.Context()); ok {
		body.Error.TraceID = tc.TraceID
	}

	code := statusOf(err)
	if code >= http.StatusInternalServerError {
		trace.Logger(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, code, body)
}
