package content

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unionhub/auth-gateway/internal/httpapi/resolver"
	"github.com/unionhub/auth-gateway/internal/session"
	"github.com/unionhub/auth-gateway/internal/storage/postgres"
)

// memoryStore is an in-memory Store for handler tests.
type memoryStore struct {
	mu    sync.Mutex
	posts map[uuid.UUID]postgres.NewsPost
	clubs map[string]postgres.Club
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		posts: map[uuid.UUID]postgres.NewsPost{},
		clubs: map[string]postgres.Club{},
	}
}

func (m *memoryStore) CreateNewsPost(_ context.Context, params postgres.CreateNewsPostParams) (postgres.NewsPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	post := postgres.NewsPost{
		ID:            uuid.New(),
		Title:         params.Title,
		Body:          params.Body,
		AuthorSubject: params.AuthorSubject,
		ClubID:        params.ClubID,
		Published:     params.Published,
	}
	m.posts[post.ID] = post
	return post, nil
}

func (m *memoryStore) GetNewsPost(_ context.Context, id uuid.UUID) (postgres.NewsPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	post, ok := m.posts[id]
	if !ok {
		return postgres.NewsPost{}, postgres.ErrNotFound
	}
	return post, nil
}

func (m *memoryStore) ListNewsPosts(_ context.Context, publishedOnly bool, _ int) ([]postgres.NewsPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []postgres.NewsPost
	for _, p := range m.posts {
		if publishedOnly && !p.Published {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *memoryStore) UpdateNewsPost(_ context.Context, params postgres.UpdateNewsPostParams) (postgres.NewsPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	post, ok := m.posts[params.ID]
	if !ok {
		return postgres.NewsPost{}, postgres.ErrNotFound
	}
	post.Title = params.Title
	post.Body = params.Body
	post.Published = params.Published
	m.posts[params.ID] = post
	return post, nil
}

func (m *memoryStore) DeleteNewsPost(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[id]; !ok {
		return postgres.ErrNotFound
	}
	delete(m.posts, id)
	return nil
}

func (m *memoryStore) ListClubs(_ context.Context) ([]postgres.Club, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []postgres.Club
	for _, c := range m.clubs {
		out = append(out, c)
	}
	return out, nil
}

func (m *memoryStore) GetClub(_ context.Context, id string) (postgres.Club, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	club, ok := m.clubs[id]
	if !ok {
		return postgres.Club{}, postgres.ErrNotFound
	}
	return club, nil
}

func (m *memoryStore) UpdateClub(_ context.Context, params postgres.UpdateClubParams) (postgres.Club, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	club, ok := m.clubs[params.ID]
	if !ok {
		return postgres.Club{}, postgres.ErrNotFound
	}
	club.Name = params.Name
	club.Description = params.Description
	club.Website = params.Website
	m.clubs[params.ID] = club
	return club, nil
}

// fakeVerifier maps cookie values to sessions.
type fakeVerifier struct {
	sessions map[string]*session.Session
}

func (f *fakeVerifier) VerifySessionCookie(_ context.Context, raw string, _ bool) (*session.Session, error) {
	if sess, ok := f.sessions[raw]; ok {
		return sess, nil
	}
	return nil, errors.New("verification failed")
}

func setupContent(t *testing.T) (*memoryStore, http.Handler) {
	t.Helper()

	store := newMemoryStore()
	verifier := &fakeVerifier{sessions: map[string]*session.Session{
		"admin-cookie":  {Subject: "admin-1", Role: session.RoleAdmin},
		"member-cookie": {Subject: "member-1", Role: session.RoleMember},
		"chess-rep":     {Subject: "rep-1", Role: session.RoleClubRep, ClubID: "chess"},
	}}
	res := resolver.New(resolver.Options{
		Verifier:   verifier,
		CookieName: "__unionhub_session",
		Logger:     zerolog.Nop(),
	})
	handler := NewHandler(store, res, nil, zerolog.Nop())

	router := chi.NewRouter()
	RegisterRoutes(router, handler)
	return store, router
}

func do(handler http.Handler, method, target, body, cookie string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: "__unionhub_session", Value: cookie})
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestCreateNewsRequiresAdmin(t *testing.T) {
	_, handler := setupContent(t)
	body := `{"title":"Elections","body":"Vote this week","published":true}`

	w := do(handler, "POST", "/api/v1/news", body, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(handler, "POST", "/api/v1/news", body, "member-cookie")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(handler, "POST", "/api/v1/news", body, "admin-cookie")
	assert.Equal(t, http.StatusCreated, w.Code)

	var created newsPostResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "Elections", created.Title)
	assert.Equal(t, "admin-1", created.AuthorSubject)
}

func TestCreateNewsValidation(t *testing.T) {
	_, handler := setupContent(t)

	w := do(handler, "POST", "/api/v1/news", `{"title":"","body":"x"}`, "admin-cookie")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(handler, "POST", "/api/v1/news", `not json`, "admin-cookie")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListNewsHidesDraftsFromNonAdmins(t *testing.T) {
	store, handler := setupContent(t)

	ctx := context.Background()
	_, err := store.CreateNewsPost(ctx, postgres.CreateNewsPostParams{Title: "Draft", AuthorSubject: "admin-1"})
	require.NoError(t, err)
	_, err = store.CreateNewsPost(ctx, postgres.CreateNewsPostParams{Title: "Live", AuthorSubject: "admin-1", Published: true})
	require.NoError(t, err)

	var posts []newsPostResponse

	w := do(handler, "GET", "/api/v1/news", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &posts))
	require.Len(t, posts, 1)
	assert.Equal(t, "Live", posts[0].Title)

	w = do(handler, "GET", "/api/v1/news", "", "admin-cookie")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &posts))
	assert.Len(t, posts, 2)
}

func TestGetNewsDraftVisibility(t *testing.T) {
	store, handler := setupContent(t)

	draft, err := store.CreateNewsPost(context.Background(), postgres.CreateNewsPostParams{Title: "Draft", AuthorSubject: "admin-1"})
	require.NoError(t, err)

	w := do(handler, "GET", "/api/v1/news/"+draft.ID.String(), "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(handler, "GET", "/api/v1/news/"+draft.ID.String(), "", "admin-cookie")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(handler, "GET", "/api/v1/news/not-a-uuid", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(handler, "GET", "/api/v1/news/"+uuid.NewString(), "", "admin-cookie")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteNews(t *testing.T) {
	store, handler := setupContent(t)

	post, err := store.CreateNewsPost(context.Background(), postgres.CreateNewsPostParams{Title: "Gone soon", AuthorSubject: "admin-1", Published: true})
	require.NoError(t, err)

	w := do(handler, "DELETE", "/api/v1/news/"+post.ID.String(), "", "member-cookie")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(handler, "DELETE", "/api/v1/news/"+post.ID.String(), "", "admin-cookie")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(handler, "DELETE", "/api/v1/news/"+post.ID.String(), "", "admin-cookie")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateClubAuthorization(t *testing.T) {
	store, handler := setupContent(t)
	store.clubs["chess"] = postgres.Club{ID: "chess", Name: "Chess Club"}
	store.clubs["debate"] = postgres.Club{ID: "debate", Name: "Debate Society"}

	body := `{"name":"Chess Society","description":"Twice weekly"}`

	// No session: 401.
	w := do(handler, "PUT", "/api/v1/clubs/chess", body, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Plain member: 403.
	w = do(handler, "PUT", "/api/v1/clubs/chess", body, "member-cookie")
	assert.Equal(t, http.StatusForbidden, w.Code)

	// The chess rep may edit chess but not debate.
	w = do(handler, "PUT", "/api/v1/clubs/chess", body, "chess-rep")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(handler, "PUT", "/api/v1/clubs/debate", body, "chess-rep")
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Admins may edit any club.
	w = do(handler, "PUT", "/api/v1/clubs/debate", `{"name":"Debate Union","description":""}`, "admin-cookie")
	assert.Equal(t, http.StatusOK, w.Code)

	var club clubResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &club))
	assert.Equal(t, "Debate Union", club.Name)
}

func TestListAndGetClubs(t *testing.T) {
	store, handler := setupContent(t)
	store.clubs["chess"] = postgres.Club{ID: "chess", Name: "Chess Club"}

	w := do(handler, "GET", "/api/v1/clubs", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(handler, "GET", "/api/v1/clubs/chess", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(handler, "GET", "/api/v1/clubs/missing", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
