// Package ops exposes the operator console surface: manual "run now" triggers
// for both pipeline jobs, persona management, the sourced topic queue, the run
// audit trail, and prometheus metrics.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradefeed/joblock"
	"tradefeed/persona"
	"tradefeed/reply"
	"tradefeed/topic"
)

// TopicRefresher triggers a sourcing run.
type TopicRefresher interface {
	Refresh(ctx context.Context) (topic.RefreshSummary, error)
}

// ReplyRunner triggers an orchestrator run.
type ReplyRunner interface {
	Run(ctx context.Context) (reply.RunSummary, error)
}

// RunLister reads the run audit trail.
type RunLister interface {
	ListRecent(ctx context.Context, limit int) ([]joblock.Run, error)
}

// PersonaAdmin manages the synthetic identity roster.
type PersonaAdmin interface {
	ListActive(ctx context.Context) ([]persona.Persona, error)
	Create(ctx context.Context, params persona.CreateParams) (persona.Persona, error)
	Retire(ctx context.Context, id string) error
}

// TopicQueue reads the sourced topic queue for the composition flow.
type TopicQueue interface {
	ListUnconsumed(ctx context.Context, limit int) ([]topic.Topic, error)
}

// Server handles the operator HTTP surface.
type Server struct {
	topics   TopicRefresher
	replies  ReplyRunner
	runs     RunLister
	personas PersonaAdmin
	queue    TopicQueue
	tokens   *TokenService
	logger   *slog.Logger
}

func NewServer(topics TopicRefresher, replies ReplyRunner, runs RunLister, personas PersonaAdmin, queue TopicQueue, tokens *TokenService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		topics:   topics,
		replies:  replies,
		runs:     runs,
		personas: personas,
		queue:    queue,
		tokens:   tokens,
		logger:   logger.With("component", "ops"),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/token", s.handleToken)
	mux.Handle("POST /jobs/seed-topics/run", s.requireOperator(s.handleSeedTopics))
	mux.Handle("POST /jobs/ghost-replies/run", s.requireOperator(s.handleGhostReplies))
	mux.Handle("GET /jobs/runs", s.requireOperator(s.handleRuns))
	mux.Handle("GET /personas", s.requireOperator(s.handleListPersonas))
	mux.Handle("POST /personas", s.requireOperator(s.handleCreatePersona))
	mux.Handle("POST /personas/{id}/retire", s.requireOperator(s.handleRetirePersona))
	mux.Handle("GET /topics", s.requireOperator(s.handleTopics))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OperatorKey string `json:"operator_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	token, err := s.tokens.Issue(req.OperatorKey)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid operator key")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleSeedTopics(w http.ResponseWriter, r *http.Request) {
	summary, err := s.topics.Refresh(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "seed-topics trigger failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleGhostReplies(w http.ResponseWriter, r *http.Request) {
	summary, err := s.replies.Run(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "ghost-replies trigger failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	runs, err := s.runs.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type runView struct {
		ID         string          `json:"id"`
		JobKind    string          `json:"job_kind"`
		RunDate    string          `json:"run_date"`
		Status     string          `json:"status"`
		Summary    json.RawMessage `json:"summary,omitempty"`
		StartedAt  string          `json:"started_at"`
		FinishedAt string          `json:"finished_at,omitempty"`
	}

	views := make([]runView, 0, len(runs))
	for _, run := range runs {
		view := runView{
			ID:        run.ID,
			JobKind:   run.JobKind,
			RunDate:   run.RunDate.Format("2006-01-02"),
			Status:    run.Status,
			Summary:   run.Summary,
			StartedAt: run.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
		if run.FinishedAt != nil {
			view.FinishedAt = run.FinishedAt.Format("2006-01-02T15:04:05Z07:00")
		}
		views = append(views, view)
	}

	writeJSON(w, http.StatusOK, views)
}

type personaView struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Handle         string `json:"handle"`
	Trade          string `json:"trade"`
	BadgeLabel     string `json:"badge_label,omitempty"`
	BadgeColor     string `json:"badge_color,omitempty"`
	Active         bool   `json:"active"`
	LastActivityAt string `json:"last_activity_at,omitempty"`
}

func viewPersona(p persona.Persona) personaView {
	view := personaView{
		ID:         p.ID,
		Name:       p.Name,
		Handle:     p.Handle,
		Trade:      p.Trade,
		BadgeLabel: p.BadgeLabel,
		BadgeColor: p.BadgeColor,
		Active:     p.Active,
	}
	if p.LastActivityAt != nil {
		view.LastActivityAt = p.LastActivityAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return view
}

func (s *Server) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	personas, err := s.personas.ListActive(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	views := make([]personaView, 0, len(personas))
	for _, p := range personas {
		views = append(views, viewPersona(p))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleCreatePersona(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string `json:"name"`
		Handle     string `json:"handle"`
		Trade      string `json:"trade"`
		BadgeLabel string `json:"badge_label"`
		BadgeColor string `json:"badge_color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	created, err := s.personas.Create(r.Context(), persona.CreateParams{
		Name:       req.Name,
		Handle:     req.Handle,
		Trade:      req.Trade,
		BadgeLabel: req.BadgeLabel,
		BadgeColor: req.BadgeColor,
	})
	switch {
	case errors.Is(err, persona.ErrMissingFields):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, persona.ErrDuplicateHandle):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusCreated, viewPersona(created))
	}
}

func (s *Server) handleRetirePersona(w http.ResponseWriter, r *http.Request) {
	err := s.personas.Retire(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, persona.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]bool{"retired": true})
	}
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	topics, err := s.queue.ListUnconsumed(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type topicView struct {
		ID              string `json:"id"`
		Source          string `json:"source"`
		Content         string `json:"content"`
		EngagementScore int    `json:"engagement_score"`
		CreatedAt       string `json:"created_at"`
	}

	views := make([]topicView, 0, len(topics))
	for _, item := range topics {
		views = append(views, topicView{
			ID:              item.ID,
			Source:          item.Source,
			Content:         item.Content,
			EngagementScore: item.EngagementScore,
			CreatedAt:       item.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) requireOperator(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok || s.tokens.Verify(token) != nil {
			writeError(w, http.StatusUnauthorized, "operator token required")
			return
		}
		next(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", false
	}
	return token, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
