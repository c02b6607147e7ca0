package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/pulsefeed/internal/domain"
	"github.com/vedran77/pulsefeed/internal/service"
	"github.com/vedran77/pulsefeed/internal/transport/http/middleware"
	"go.uber.org/zap"
)

const secret = "test-secret"

type messageStore struct {
	mu       sync.Mutex
	messages []domain.Message
}

func (s *messageStore) Create(_ context.Context, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, *msg)
	return nil
}

func (s *messageStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ID == id.String() {
			return &m, nil
		}
	}
	return nil, nil
}

func (s *messageStore) ListByConversation(_ context.Context, conversationID string, before *uuid.UUID, limit int) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Message
	for _, m := range s.messages {
		if m.ConversationID != conversationID {
			continue
		}
		if before != nil && m.ID >= before.String() {
			continue
		}
		out = append(out, m)
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type accountStore struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
}

func (s *accountStore) Create(_ context.Context, a *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.Username] = a
	return nil
}

func (s *accountStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, nil
}

func (s *accountStore) GetByUsername(_ context.Context, username string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[username], nil
}

type testServer struct {
	mux      *http.ServeMux
	messages *service.MessageService
	auth     *service.AuthService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	messages := service.NewMessageService(&messageStore{})
	auth := service.NewAuthService(&accountStore{accounts: map[string]*domain.Account{}}, secret)

	mh := NewMessageHandler(messages, zap.NewNop())
	ah := NewAuthHandler(auth, zap.NewNop())

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/register", ah.Register)
	mux.HandleFunc("POST /api/v1/auth/login", ah.Login)
	mux.HandleFunc("GET /api/v1/conversations/{id}", mh.List)
	mux.HandleFunc("GET /api/v1/conversations/{id}/{before}", mh.List)
	mux.Handle("POST /api/v1/conversations/{id}/messages", middleware.OptionalAuth(secret)(http.HandlerFunc(mh.Send)))

	return &testServer{mux: mux, messages: messages, auth: auth}
}

func (s *testServer) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) seed(t *testing.T, conversationID string, n int) []*domain.Message {
	t.Helper()
	out := make([]*domain.Message, n)
	for i := range out {
		msg, err := s.messages.Send(context.Background(), nil, conversationID, service.SendMessageInput{Content: "msg"})
		require.NoError(t, err)
		out[i] = msg
	}
	return out
}

func decodeMessages(t *testing.T, rec *httptest.ResponseRecorder) []domain.Message {
	t.Helper()
	var out []domain.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestList_EmptyConversationIsEmptyArray(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/conversations/general", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestList_NewestAndBeforeCursor(t *testing.T) {
	s := newTestServer(t)
	sent := s.seed(t, "general", 5)
	s.seed(t, "random", 2)

	rec := s.do(t, http.MethodGet, "/api/v1/conversations/general?limit=3", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	newest := decodeMessages(t, rec)
	require.Len(t, newest, 3)
	assert.Equal(t, sent[2].ID, newest[0].ID)
	assert.Equal(t, sent[4].ID, newest[2].ID)

	rec = s.do(t, http.MethodGet, "/api/v1/conversations/general/"+newest[0].ID+"?limit=3", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	older := decodeMessages(t, rec)
	require.Len(t, older, 2)
	assert.Equal(t, sent[0].ID, older[0].ID)
	assert.Equal(t, sent[1].ID, older[1].ID)
}

func TestList_LimitAboveMaximumIsClamped(t *testing.T) {
	s := newTestServer(t)
	sent := s.seed(t, "general", service.MaxPageSize+20)

	rec := s.do(t, http.MethodGet, "/api/v1/conversations/general?limit=110", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	page := decodeMessages(t, rec)
	require.Len(t, page, service.MaxPageSize)
	assert.Equal(t, sent[len(sent)-1].ID, page[len(page)-1].ID)
}

func TestList_InvalidCursor(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/conversations/general/not-a-uuid", "", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_ID")
}

func TestSend_AnonymousKeepsSeed(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/conversations/general/messages", `{"content":"hello","user_seed":42}`, "")

	require.Equal(t, http.StatusCreated, rec.Code)
	var msg domain.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	require.NotNil(t, msg.UserSeed)
	assert.Equal(t, int64(42), *msg.UserSeed)
	assert.Nil(t, msg.User)
	assert.Equal(t, "general", msg.ConversationID)
}

func TestSend_ValidatesContent(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/conversations/general/messages", `{"content":"   "}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")

	rec = s.do(t, http.MethodPost, "/api/v1/conversations/general/messages", `{`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_JSON")
}

func TestRegisterLoginAndSendAuthenticated(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/auth/register", `{"username":"Ana_K","display_name":"Ana","password":"Secret123"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/auth/register", `{"username":"ana_k","display_name":"Ana","password":"Secret123"}`, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/auth/login", `{"username":"ana_k","password":"wrong"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/auth/login", `{"username":"ana_k","password":"Secret123"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var auth service.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &auth))
	require.NotEmpty(t, auth.AccessToken)

	rec = s.do(t, http.MethodPost, "/api/v1/conversations/general/messages", `{"content":"signed"}`, auth.AccessToken)
	require.Equal(t, http.StatusCreated, rec.Code)
	var msg domain.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	require.NotNil(t, msg.User)
	assert.Equal(t, auth.User.ID, msg.User.ID)
	assert.Equal(t, "Ana", msg.User.DisplayName)
	assert.Nil(t, msg.UserSeed)
}

func TestRegister_ValidationErrors(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/auth/register", `{"username":"a","password":"short"}`, "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body struct {
		Error struct {
			Code   string            `json:"code"`
			Fields map[string]string `json:"fields"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	assert.Contains(t, body.Error.Fields, "username")
	assert.Contains(t, body.Error.Fields, "display_name")
	assert.Contains(t, body.Error.Fields, "password")
}
