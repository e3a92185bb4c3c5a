package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ppiankov/verisum/internal/answer"
	"github.com/ppiankov/verisum/internal/app"
	"github.com/ppiankov/verisum/internal/logger"
	"github.com/ppiankov/verisum/internal/metrics"
	"github.com/ppiankov/verisum/internal/model"
	"github.com/ppiankov/verisum/internal/page"
)

const maxBodyBytes = 4 << 20

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // The extension connects from its own origin
	},
}

// errorHandler writes a response if err matches. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server exposes the app over HTTP
type Server struct {
	app           *app.App
	logger        *zap.Logger
	router        chi.Router
	errorHandlers []errorHandler
}

// IndexRequest is the body of POST /v1/documents.
// Parts may be omitted, in which case the page is fetched from URL.
type IndexRequest struct {
	URL   string       `json:"url"`
	Parts []model.Part `json:"parts,omitempty"`
}

// IndexResponse reports what was indexed
type IndexResponse struct {
	URL   string      `json:"url"`
	Title string      `json:"title,omitempty"`
	Stats model.Stats `json:"stats"`
}

// QueryRequest is the body of POST /v1/retrieve and POST /v1/ask
type QueryRequest struct {
	Query string `json:"query"`
	Title string `json:"title,omitempty"`
}

// ScanRequest is the body of POST /v1/scan
type ScanRequest struct {
	URL string `json:"url"`
}

// ErrorResponse is the JSON body of every error
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewServer creates the API server and its routes
func NewServer(a *app.App, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{app: a, logger: log}
	s.errorHandlers = []errorHandler{
		sentinelHandler(model.ErrInvalidInput, http.StatusBadRequest, "invalid_input"),
		sentinelHandler(model.ErrNotInitialized, http.StatusConflict, "not_initialized"),
		sentinelHandler(model.ErrModelUnavailable, http.StatusBadGateway, "model_unavailable"),
		sentinelHandler(app.ErrAnswerDisabled, http.StatusServiceUnavailable, "answer_disabled"),
		sentinelHandler(page.ErrDisallowed, http.StatusForbidden, "disallowed"),
		sentinelHandler(context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(metrics.Middleware())
	r.Use(s.withLogger)

	r.Get("/healthz", s.Health)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/documents", s.IndexDocument)
		r.Post("/retrieve", s.Retrieve)
		r.Get("/ask", s.AskStream)
		r.Post("/ask", s.Ask)
		r.Post("/claims", s.FlagClaim)
		r.Get("/claims", s.ListClaims)
		r.Delete("/claims", s.ClearClaims)
		r.Delete("/cache", s.ClearCache)
		r.Post("/scan", s.Scan)
	})
	return r
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string, readTimeout, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: readTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("api shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) withLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := s.logger.With(zap.String("method", r.Method), zap.String("path", r.URL.Path))
		next.ServeHTTP(w, r.WithContext(logger.ContextWithLogger(r.Context(), log)))
	})
}

// Health handles GET /healthz
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"entries":      s.app.Retrieval.Len(),
		"cache_bytes":  s.app.CacheBytes(),
		"answer_ready": s.app.Answerer != nil,
	})
}

// IndexDocument handles POST /v1/documents
func (s *Server) IndexDocument(w http.ResponseWriter, r *http.Request) {
	var req IndexRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "url is required")
		return
	}

	if len(req.Parts) > 0 {
		stats, err := s.app.BuildOrGetDocumentIndex(r.Context(), req.URL, req.Parts, nil)
		if err != nil {
			s.handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, IndexResponse{URL: req.URL, Stats: stats})
		return
	}

	pg, stats, err := s.app.IndexURL(r.Context(), req.URL, nil)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, IndexResponse{URL: pg.URL, Title: pg.Title, Stats: stats})
}

// Retrieve handles POST /v1/retrieve
func (s *Server) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := s.app.Retrieve(r.Context(), req.Query)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Ask handles POST /v1/ask and returns only the final answer
func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ch, err := s.app.Ask(r.Context(), req.Title, req.Query)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	snap, err := answer.Final(ch)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// AskStream handles GET /v1/ask?q=...&title=... over a websocket.
// Each message is a snapshot of the answer so far; the last one has done set.
func (s *Server) AskStream(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	title := r.URL.Query().Get("title")

	if s.app.Answerer == nil {
		s.handleError(w, r, app.ErrAnswerDisabled)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The client only ever closes; a read error means it went away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ch, err := s.app.Ask(ctx, title, query)
	if err != nil {
		_ = conn.WriteJSON(answer.Snapshot{Done: true, Error: err.Error()})
		return
	}

	for snap := range ch {
		if err := conn.WriteJSON(snap); err != nil {
			s.logger.Debug("websocket write failed", zap.Error(err))
			cancel()
			continue // drain so the producer can exit
		}
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}

// FlagClaim handles POST /v1/claims
func (s *Server) FlagClaim(w http.ResponseWriter, r *http.Request) {
	var req model.FlagRequest
	if !decodeBody(w, r, &req) {
		return
	}
	claim, err := s.app.Verify(r.Context(), req)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, claim)
}

// ListClaims handles GET /v1/claims?url=...
func (s *Server) ListClaims(w http.ResponseWriter, r *http.Request) {
	claims, err := s.app.ListClaims(r.URL.Query().Get("url"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if claims == nil {
		claims = []model.Claim{}
	}
	writeJSON(w, http.StatusOK, claims)
}

// ClearClaims handles DELETE /v1/claims
func (s *Server) ClearClaims(w http.ResponseWriter, r *http.Request) {
	if err := s.app.ClearAllClaims(); err != nil {
		s.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearCache handles DELETE /v1/cache
func (s *Server) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := s.app.ClearCache(); err != nil {
		s.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Scan handles POST /v1/scan
func (s *Server) Scan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "url is required")
		return
	}
	report, err := s.app.Scan(r.Context(), req.URL)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// sentinelHandler returns an errorHandler that matches a single sentinel error
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, err.Error())
		return true
	}
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("request failed", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}
