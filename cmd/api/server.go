package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/WessleyAI/faqbot/engine/domain"
	"github.com/WessleyAI/faqbot/engine/qa"
	"github.com/WessleyAI/faqbot/engine/semantic"
	"github.com/WessleyAI/faqbot/pkg/metrics"
	"github.com/WessleyAI/faqbot/pkg/mid"
	"github.com/WessleyAI/faqbot/pkg/natsutil"
	"github.com/WessleyAI/faqbot/pkg/resilience"
)

// maxQueryBody caps a /query request body. A question is a single short line.
const maxQueryBody = 8 << 10

// answerPublisher announces answered queries.
type answerPublisher interface {
	Publish(ctx context.Context, ev domain.AnswerEvent) error
}

type natsPublisher struct {
	nc *nats.Conn
}

func (p natsPublisher) Publish(ctx context.Context, ev domain.AnswerEvent) error {
	return natsutil.Publish(ctx, p.nc, domain.SubjectAnswered, ev)
}

// server owns the process-wide query state. It is built once in run before
// the listener starts and handlers never mutate it except through reindex.
type server struct {
	qa      *qa.Service
	index   *semantic.Index
	load    func() ([]domain.Entry, error)
	topK    int
	reindex bool
	events  answerPublisher // nil disables events
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func (s *server) routes(cfg Config) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("GET /test-search", s.handleTestSearch)
	mux.HandleFunc("POST /reindex", s.handleReindex)
	mux.Handle("GET /metrics", s.metrics.Handler())

	return mid.Chain(mux,
		mid.Recover(s.logger),
		mid.OTel("faqbot-api"),
		mid.Logger(s.logger),
		mid.Metrics(s.metrics),
		mid.CORS(cfg.CORSOrigin),
		mid.RateLimit(cfg.RateLimitRPS, cfg.RateBurst),
	)
}

// StatusResponse is the body of the root and health endpoints.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// QueryRequest is the JSON body for POST /query.
type QueryRequest struct {
	Question string `json:"question"`
}

// SearchResponse is the body of GET /test-search.
type SearchResponse struct {
	Query   string       `json:"query"`
	Results []domain.Hit `json:"results"`
}

func (s *server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok", Message: "Perso.ai Q&A Chatbot API is running"})
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "healthy", Message: "All systems operational"})
}

func (s *server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxQueryBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := domain.ValidateQuestion(req.Question); err != nil {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	start := time.Now()
	res, err := s.qa.Answer(r.Context(), req.Question)
	if err != nil {
		s.logger.Error("query failed", "err", err)
		writeError(w, statusFor(err), "failed to answer question")
		return
	}

	resp := res.Response()
	s.publish(r.Context(), req.Question, res, time.Since(start))
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleTestSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if err := domain.ValidateQuestion(q); err != nil {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	k := s.topK
	if v := r.URL.Query().Get("k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "k must be a positive integer")
			return
		}
		k = n
	}

	hits, err := s.qa.Search(r.Context(), q, k)
	if err != nil {
		s.logger.Error("test search failed", "err", err)
		writeError(w, statusFor(err), "search failed")
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Query: q, Results: hits})
}

func (s *server) handleReindex(w http.ResponseWriter, r *http.Request) {
	if !s.reindex {
		http.NotFound(w, r)
		return
	}
	entries, err := s.load()
	if err != nil {
		s.logger.Error("reindex: load knowledge", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load knowledge set")
		return
	}
	if err := s.index.Build(r.Context(), entries); err != nil {
		s.logger.Error("reindex: build", "err", err)
		writeError(w, statusFor(err), "failed to rebuild index")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "entries": s.index.Len()})
}

func (s *server) publish(ctx context.Context, query string, res qa.Result, d time.Duration) {
	if s.events == nil {
		return
	}
	ev := domain.AnswerEvent{Query: query, At: time.Now().UTC(), Duration: float64(d.Microseconds()) / 1000}
	switch v := res.(type) {
	case qa.Found:
		ev.Matched, ev.Score, ev.Found = v.Question, v.Score, true
	case qa.NotFound:
		ev.Score = v.Score
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn("publish answer event failed", "err", err)
	}
}

// statusFor maps a request failure to an HTTP status.
func statusFor(err error) int {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, resilience.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
