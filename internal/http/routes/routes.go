// Package routes wires the HTTP surface over the qualification data
// layer: browsing the derived view, selection, deletion with
// confirmation, stats, export dispatch and cache control.
package routes

import (
	"encoding/json"
	"net/http"
	"strconv"

	scs "github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/rleiva/taxqual/internal/assistant"
	"github.com/rleiva/taxqual/internal/export"
	appmw "github.com/rleiva/taxqual/internal/http/middleware"
	"github.com/rleiva/taxqual/internal/jobs"
	"github.com/rleiva/taxqual/internal/qualification"
)

type Server struct {
	Router         *chi.Mux
	Sess           *scs.SessionManager
	Svc            *qualification.Service
	Exports        *export.Registry
	Assistant      *assistant.Context
	Queue          *asynq.Client // nil disables background enqueueing
	Metrics        http.Handler
	Log            zerolog.Logger
	RetentionHours int
}

type ServerOptions struct {
	Sess           *scs.SessionManager
	Svc            *qualification.Service
	Exports        *export.Registry
	Assistant      *assistant.Context
	Queue          *asynq.Client
	Metrics        http.Handler
	Log            zerolog.Logger
	RetentionHours int
}

func New(opts ServerOptions) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	s := &Server{
		Router:         r,
		Sess:           opts.Sess,
		Svc:            opts.Svc,
		Exports:        opts.Exports,
		Assistant:      opts.Assistant,
		Queue:          opts.Queue,
		Metrics:        opts.Metrics,
		Log:            opts.Log,
		RetentionHours: opts.RetentionHours,
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	if s.Metrics != nil {
		r.Handle("/metrics", s.Metrics)
	}

	r.Group(func(pr chi.Router) {
		pr.Use(s.sessionToContext)
		pr.Use(appmw.RequireActor)

		pr.Get("/qualifications", s.handleList)
		pr.Get("/qualifications/export", s.handleExport)
		pr.Post("/qualifications/{id}/delete", s.handleRequestDelete)
		pr.Post("/qualifications/delete-selected", s.handleRequestDeleteSelected)
		pr.Post("/qualifications/delete/confirm", s.handleConfirmDelete)
		pr.Post("/qualifications/delete/cancel", s.handleCancelDelete)

		pr.Post("/selection/toggle", s.handleToggleSelection)
		pr.Post("/selection/all", s.handleSelectAll)
		pr.Post("/selection/clear", s.handleClearSelection)

		pr.Get("/stats", s.handleStats)
		pr.Get("/assistant/context", s.handleAssistantContext)

		pr.Post("/cache/invalidate", s.handleInvalidateCache)
		pr.Post("/cache/clear", s.handleClearCache)
		pr.Post("/audit/purge", s.handleEnqueueAuditPurge)
	})

	return s
}

// sessionToContext resolves the operator identity. The identity proxy in
// front of this service sets the X-Actor-* headers on first contact;
// afterwards the identity lives in the session.
func (s *Server) sessionToContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor := qualification.Actor{
			ID:    s.Sess.GetString(ctx, "actor_id"),
			Email: s.Sess.GetString(ctx, "actor_email"),
			Name:  s.Sess.GetString(ctx, "actor_name"),
		}
		if actor.ID == "" {
			if id := r.Header.Get("X-Actor-Id"); id != "" {
				actor = qualification.Actor{
					ID:    id,
					Email: r.Header.Get("X-Actor-Email"),
					Name:  r.Header.Get("X-Actor-Name"),
				}
				s.Sess.Put(ctx, "actor_id", actor.ID)
				s.Sess.Put(ctx, "actor_email", actor.Email)
				s.Sess.Put(ctx, "actor_name", actor.Name)
			}
		}
		if actor.ID != "" {
			r = r.WithContext(appmw.WithActor(ctx, actor))
		}
		next.ServeHTTP(w, r)
	})
}

// workspaceToken keys the operator's workspace. The actor id is stable
// from the very first request; the session token only exists after the
// first response committed the session.
func (s *Server) workspaceToken(r *http.Request) string {
	if actor, ok := appmw.ActorFromContext(r.Context()); ok {
		return actor.ID
	}
	return s.Sess.Token(r.Context())
}

func (s *Server) ownerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	owner, err := uuid.Parse(r.URL.Query().Get("owner"))
	if err != nil {
		http.Error(w, "invalid owner id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return owner, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Log.Error().Err(err).Msg("encode response failed")
	}
}

// handleList applies the request's filter/sort/page inputs to the
// session workspace and returns the derived view.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	ws := s.Svc.Workspace(s.workspaceToken(r))

	q := r.URL.Query()
	ws.SetFilter(qualification.Filter{
		Text:      q.Get("text"),
		Market:    q.Get("market"),
		Period:    q.Get("period"),
		Status:    qualification.Status(q.Get("status")),
		MinAmount: q.Get("min_amount"),
		MaxAmount: q.Get("max_amount"),
	})
	if field := q.Get("sort"); field != "" {
		// With an explicit direction the request is idempotent and a page
		// reload keeps its sort. Without one the field toggles, which is
		// the header-click behavior.
		switch dir := qualification.Direction(q.Get("direction")); dir {
		case qualification.Ascending, qualification.Descending:
			ws.SetSort(qualification.Field(field), dir)
		default:
			ws.SortBy(qualification.Field(field))
		}
	}
	if raw := q.Get("page"); raw != "" {
		if page, err := strconv.Atoi(raw); err == nil {
			ws.SetPage(page)
		}
	}

	view, err := s.Svc.View(r.Context(), owner, s.workspaceToken(r))
	if err != nil {
		s.Log.Error().Err(err).Msg("list qualifications failed")
		http.Error(w, "could not load qualifications", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleRequestDelete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid qualification id", http.StatusBadRequest)
		return
	}
	if err := s.Svc.RequestDelete(id); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "confirming"})
}

func (s *Server) handleRequestDeleteSelected(w http.ResponseWriter, r *http.Request) {
	if err := s.Svc.RequestDeleteSelected(s.workspaceToken(r)); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "confirming"})
}

// handleConfirmDelete executes the staged deletion. Per the error
// policy the response only distinguishes success from failure; the root
// cause stays in the diagnostic log.
func (s *Server) handleConfirmDelete(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	actor, _ := appmw.ActorFromContext(r.Context())
	result := s.Svc.ConfirmDelete(r.Context(), owner, actor)
	if result.Err != nil {
		http.Error(w, "could not delete the requested qualifications", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleCancelDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.Svc.CancelDelete(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "idle"})
}

func (s *Server) handleToggleSelection(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ID == uuid.Nil {
		http.Error(w, "invalid selection payload", http.StatusBadRequest)
		return
	}
	ws := s.Svc.Workspace(s.workspaceToken(r))
	ws.Toggle(body.ID)
	s.writeJSON(w, http.StatusOK, map[string]int{"selected": len(ws.SelectedIDs())})
}

func (s *Server) handleSelectAll(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	token := s.workspaceToken(r)
	if err := s.Svc.SelectAll(r.Context(), owner, token); err != nil {
		s.Log.Error().Err(err).Msg("select all failed")
		http.Error(w, "could not load qualifications", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"selected": len(s.Svc.Workspace(token).SelectedIDs())})
}

func (s *Server) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	s.Svc.Workspace(s.workspaceToken(r)).ClearSelection()
	s.writeJSON(w, http.StatusOK, map[string]int{"selected": 0})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	stats, err := s.Svc.Stats(r.Context(), owner)
	if err != nil {
		s.Log.Error().Err(err).Msg("stats failed")
		http.Error(w, "could not load stats", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAssistantContext(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(s.Assistant.Render()))
}

// handleExport streams the full filtered+sorted view — not just the
// current page — through the requested encoder.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	enc, exists := s.Exports.Get(r.URL.Query().Get("format"))
	if !exists {
		http.Error(w, "unknown export format", http.StatusBadRequest)
		return
	}
	view, err := s.Svc.View(r.Context(), owner, s.workspaceToken(r))
	if err != nil {
		s.Log.Error().Err(err).Msg("export failed")
		http.Error(w, "could not load qualifications", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", enc.ContentType())
	if err := enc.Encode(w, view.Matched); err != nil {
		s.Log.Error().Err(err).Msg("export encoding failed")
	}
}

func (s *Server) handleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Keys []string `json:"keys"`
	}
	// An empty or absent body invalidates every collection key.
	_ = json.NewDecoder(r.Body).Decode(&body)
	s.Svc.Invalidate(body.Keys...)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	s.Svc.ClearCache()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleEnqueueAuditPurge(w http.ResponseWriter, r *http.Request) {
	if s.Queue == nil {
		http.Error(w, "background queue not configured", http.StatusServiceUnavailable)
		return
	}
	task, err := jobs.NewAuditPurgeTask(s.RetentionHours)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := s.Queue.Enqueue(task); err != nil {
		s.Log.Error().Err(err).Msg("enqueue audit purge failed")
		http.Error(w, "could not schedule purge", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "scheduled"})
}
