// Package content provides HTTP handlers for association content endpoints.
//
// Purpose:
//   This package serves the small content API that sits behind the session
//   boundary: news posts and club profiles. Reads are public, news mutations
//   are admin-only, and club profile edits are allowed to admins or the
//   club's own representative.
//
// Dependencies:
//   - github.com/go-chi/chi/v5: HTTP router for route registration
//   - internal/httpapi/resolver: session and role middleware
//   - internal/storage/postgres: content persistence
//
// Error Handling:
//   - Unknown IDs: 404. Authorization failures: 401/403 JSON via the resolver.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/unionhub/auth-gateway/internal/audit"
	"github.com/unionhub/auth-gateway/internal/httpapi/resolver"
	"github.com/unionhub/auth-gateway/internal/session"
	"github.com/unionhub/auth-gateway/internal/storage/postgres"
)

// Store is the persistence surface the handlers need. *postgres.Store
// satisfies it; tests use an in-memory fake.
type Store interface {
	CreateNewsPost(ctx context.Context, params postgres.CreateNewsPostParams) (postgres.NewsPost, error)
	GetNewsPost(ctx context.Context, id uuid.UUID) (postgres.NewsPost, error)
	ListNewsPosts(ctx context.Context, publishedOnly bool, limit int) ([]postgres.NewsPost, error)
	UpdateNewsPost(ctx context.Context, params postgres.UpdateNewsPostParams) (postgres.NewsPost, error)
	DeleteNewsPost(ctx context.Context, id uuid.UUID) error
	ListClubs(ctx context.Context) ([]postgres.Club, error)
	GetClub(ctx context.Context, id string) (postgres.Club, error)
	UpdateClub(ctx context.Context, params postgres.UpdateClubParams) (postgres.Club, error)
}

// RegisterRoutes mounts the content routes beneath /api/v1.
func RegisterRoutes(router chi.Router, h *Handler) {
	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/news", h.ListNews)
		r.Get("/news/{id}", h.GetNews)
		r.Get("/clubs", h.ListClubs)
		r.Get("/clubs/{id}", h.GetClub)

		r.Group(func(r chi.Router) {
			r.Use(h.resolver.RequireRoleAPI(session.RoleAdmin))
			r.Post("/news", h.CreateNews)
			r.Put("/news/{id}", h.UpdateNews)
			r.Delete("/news/{id}", h.DeleteNews)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.resolver.RequireSessionAPI)
			r.Put("/clubs/{id}", h.UpdateClub)
		})
	})
}

// Handler serves the content endpoints.
type Handler struct {
	store    Store
	resolver *resolver.Resolver
	audit    audit.Emitter
	logger   zerolog.Logger
}

// NewHandler builds a Handler.
func NewHandler(store Store, res *resolver.Resolver, emitter audit.Emitter, logger zerolog.Logger) *Handler {
	if emitter == nil {
		emitter = audit.NewNoopEmitter()
	}
	return &Handler{
		store:    store,
		resolver: res,
		audit:    emitter,
		logger:   logger.With().Str("component", "content").Logger(),
	}
}

type newsPostRequest struct {
	Title     string  `json:"title"`
	Body      string  `json:"body"`
	ClubID    *string `json:"clubId,omitempty"`
	Published bool    `json:"published"`
}

type newsPostResponse struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Body          string  `json:"body"`
	AuthorSubject string  `json:"authorSubject"`
	ClubID        *string `json:"clubId,omitempty"`
	Published     bool    `json:"published"`
	CreatedAt     string  `json:"createdAt"`
	UpdatedAt     string  `json:"updatedAt"`
}

type clubRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Website     *string `json:"website,omitempty"`
}

type clubResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Website     *string `json:"website,omitempty"`
	RepSubject  *string `json:"repSubject,omitempty"`
	UpdatedAt   string  `json:"updatedAt"`
}

// ListNews returns published posts. Admins also see drafts.
func (h *Handler) ListNews(w http.ResponseWriter, r *http.Request) {
	publishedOnly := true
	if sess := h.resolver.Resolve(r); sess != nil && sess.HasRole(session.RoleAdmin) {
		publishedOnly = false
	}

	posts, err := h.store.ListNewsPosts(r.Context(), publishedOnly, 50)
	if err != nil {
		h.internalError(w, err, "listing news posts")
		return
	}
	out := make([]newsPostResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, toNewsResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetNews returns a single post. Drafts are only visible to admins.
func (h *Handler) GetNews(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid post id", http.StatusBadRequest)
		return
	}
	post, err := h.store.GetNewsPost(r.Context(), id)
	if err != nil {
		h.storeError(w, err, "fetching news post")
		return
	}
	if !post.Published {
		sess := h.resolver.Resolve(r)
		if sess == nil || !sess.HasRole(session.RoleAdmin) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
	}
	writeJSON(w, http.StatusOK, toNewsResponse(post))
}

// CreateNews creates a post. Admin only (enforced by route middleware).
func (h *Handler) CreateNews(w http.ResponseWriter, r *http.Request) {
	sess := resolver.SessionFromContext(r.Context())

	var payload newsPostRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.Title) == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}

	post, err := h.store.CreateNewsPost(r.Context(), postgres.CreateNewsPostParams{
		Title:         payload.Title,
		Body:          payload.Body,
		AuthorSubject: sess.Subject,
		ClubID:        payload.ClubID,
		Published:     payload.Published,
	})
	if err != nil {
		h.internalError(w, err, "creating news post")
		return
	}

	h.emitAudit(r, audit.BuildEvent(sess.Subject, string(sess.Role), audit.ActionNewsCreate, audit.TargetTypeNewsPost, post.ID.String()))
	writeJSON(w, http.StatusCreated, toNewsResponse(post))
}

// UpdateNews rewrites a post. Admin only.
func (h *Handler) UpdateNews(w http.ResponseWriter, r *http.Request) {
	sess := resolver.SessionFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid post id", http.StatusBadRequest)
		return
	}
	var payload newsPostRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.Title) == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}

	post, err := h.store.UpdateNewsPost(r.Context(), postgres.UpdateNewsPostParams{
		ID:        id,
		Title:     payload.Title,
		Body:      payload.Body,
		Published: payload.Published,
	})
	if err != nil {
		h.storeError(w, err, "updating news post")
		return
	}

	h.emitAudit(r, audit.BuildEvent(sess.Subject, string(sess.Role), audit.ActionNewsUpdate, audit.TargetTypeNewsPost, post.ID.String()))
	writeJSON(w, http.StatusOK, toNewsResponse(post))
}

// DeleteNews removes a post. Admin only.
func (h *Handler) DeleteNews(w http.ResponseWriter, r *http.Request) {
	sess := resolver.SessionFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid post id", http.StatusBadRequest)
		return
	}
	if err := h.store.DeleteNewsPost(r.Context(), id); err != nil {
		h.storeError(w, err, "deleting news post")
		return
	}

	h.emitAudit(r, audit.BuildEvent(sess.Subject, string(sess.Role), audit.ActionNewsDelete, audit.TargetTypeNewsPost, id.String()))
	w.WriteHeader(http.StatusNoContent)
}

// ListClubs returns all club profiles.
func (h *Handler) ListClubs(w http.ResponseWriter, r *http.Request) {
	clubs, err := h.store.ListClubs(r.Context())
	if err != nil {
		h.internalError(w, err, "listing clubs")
		return
	}
	out := make([]clubResponse, 0, len(clubs))
	for _, c := range clubs {
		out = append(out, toClubResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetClub returns a single club profile.
func (h *Handler) GetClub(w http.ResponseWriter, r *http.Request) {
	club, err := h.store.GetClub(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, err, "fetching club")
		return
	}
	writeJSON(w, http.StatusOK, toClubResponse(club))
}

// UpdateClub rewrites a club profile. Admins may edit any club; a club
// representative may only edit their own.
func (h *Handler) UpdateClub(w http.ResponseWriter, r *http.Request) {
	sess := resolver.SessionFromContext(r.Context())
	clubID := chi.URLParam(r, "id")

	if !sess.CanManageClub(clubID) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "insufficient role"})
		return
	}

	var payload clubRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.Name) == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	club, err := h.store.UpdateClub(r.Context(), postgres.UpdateClubParams{
		ID:          clubID,
		Name:        payload.Name,
		Description: payload.Description,
		Website:     payload.Website,
	})
	if err != nil {
		h.storeError(w, err, "updating club")
		return
	}

	h.emitAudit(r, audit.BuildEvent(sess.Subject, string(sess.Role), audit.ActionClubUpdate, audit.TargetTypeClub, clubID))
	writeJSON(w, http.StatusOK, toClubResponse(club))
}

func (h *Handler) storeError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, postgres.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	h.internalError(w, err, msg)
}

func (h *Handler) internalError(w http.ResponseWriter, err error, msg string) {
	h.logger.Error().Err(err).Msg(msg)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func (h *Handler) emitAudit(r *http.Request, event audit.Event) {
	event = audit.BuildEventFromRequest(event, r)
	if err := h.audit.Emit(r.Context(), event); err != nil {
		h.logger.Warn().Err(err).Str("action", event.Action).Msg("audit emit failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func toNewsResponse(p postgres.NewsPost) newsPostResponse {
	return newsPostResponse{
		ID:            p.ID.String(),
		Title:         p.Title,
		Body:          p.Body,
		AuthorSubject: p.AuthorSubject,
		ClubID:        p.ClubID,
		Published:     p.Published,
		CreatedAt:     p.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toClubResponse(c postgres.Club) clubResponse {
	return clubResponse{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Website:     c.Website,
		RepSubject:  c.RepSubject,
		UpdatedAt:   c.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
