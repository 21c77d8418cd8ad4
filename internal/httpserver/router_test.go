package httpserver_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat_backend/internal/config"
	"chat_backend/internal/domain"
	"chat_backend/internal/httpserver"
	"chat_backend/internal/realtime"
	"chat_backend/internal/security"
	"chat_backend/internal/service"
	"chat_backend/internal/store/memory"
)

type testAPI struct {
	handler http.Handler
	tokens  *security.TokenService
}

func newAPI(t *testing.T) *testAPI {
	t.Helper()
	cfg := config.Defaults()
	cfg.JWTSecret = "secret"
	cfg.TrustQueryIdentity = true
	cfg.Database.Driver = "memory"

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := memory.NewStore()
	rt := realtime.NewRouter(st, logger, realtime.Options{MaxTextChars: cfg.MaxMessageChars})
	tokens := security.NewTokenService(cfg.JWTSecret, time.Hour)

	return &testAPI{
		handler: httpserver.NewRouter(cfg, httpserver.Deps{
			Realtime: rt,
			Messages: service.NewMessageService(st.Messages(), st.Groups()),
			Groups:   service.NewGroupService(st.Groups(), rt),
			Tokens:   tokens,
			Logger:   logger,
		}),
		tokens: tokens,
	}
}

func (a *testAPI) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	api := newAPI(t)
	rec := api.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestAPIRequiresIdentity(t *testing.T) {
	api := newAPI(t)
	rec := api.do(t, http.MethodGet, "/api/groups", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tok, err := api.tokens.CreateForUser("u1")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/groups", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/groups", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec = httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDirectMessagesEndpoints(t *testing.T) {
	api := newAPI(t)

	rec := api.do(t, http.MethodPost, "/api/messages/u2", "u1", map[string]string{"text": "hi"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sent domain.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sent))
	assert.Equal(t, domain.StatusSent, sent.Status)

	rec = api.do(t, http.MethodPost, "/api/messages/u2", "u1", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/messages/u1", "u2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []domain.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.Equal(t, sent.ID, history[0].ID)
}

func TestGroupEndpoints(t *testing.T) {
	api := newAPI(t)

	rec := api.do(t, http.MethodPost, "/api/groups", "u1", map[string]any{"name": "team", "members": []string{"u2"}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var g domain.Group
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &g))
	assert.Equal(t, []string{"u1", "u2"}, g.Members)

	rec = api.do(t, http.MethodPost, "/api/groups/"+g.ID+"/messages", "u2", map[string]string{"text": "hey"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodPost, "/api/groups/"+g.ID+"/messages", "u3", map[string]string{"text": "hey"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/groups/"+g.ID+"/messages", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var msgs []domain.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	assert.Len(t, msgs, 1)

	rec = api.do(t, http.MethodGet, "/api/groups", "u2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var groups []domain.Group
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &groups))
	assert.Len(t, groups, 1)

	rec = api.do(t, http.MethodPut, "/api/groups/"+g.ID, "u2", map[string]any{"name": "mine"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodDelete, "/api/groups/"+g.ID, "u1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/groups/"+g.ID, "u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
