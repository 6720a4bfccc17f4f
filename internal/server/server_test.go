package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/0xsamyy/callpoll/internal/dashboard"
	"github.com/0xsamyy/callpoll/internal/health"
	"github.com/0xsamyy/callpoll/internal/store"
	"github.com/0xsamyy/callpoll/internal/telegram"
)

type fakeDispatcher struct {
	got []int64
	err error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, u *models.Update) error {
	f.got = append(f.got, u.ID)
	return f.err
}

type fakeWebhook struct{ err error }

func (f fakeWebhook) Register(context.Context) (telegram.Registration, error) {
	return telegram.Registration{Webhook: true, Commands: true, URL: "https://bot.example/telegram"}, f.err
}

func (f fakeWebhook) Status(context.Context) (*models.WebhookInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.WebhookInfo{URL: "https://bot.example/telegram", PendingUpdateCount: 3}, nil
}

func newServer(t *testing.T, d Deps) (*Server, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.CreatePoll(context.Background(), &store.PollRecord{
		ChatID: 1, ContractAddress: "A", SenderUsername: "alice", CreatedAt: time.Now(),
	}))
	if d.Dispatcher == nil {
		d.Dispatcher = &fakeDispatcher{}
	}
	d.Health = health.New(st, "memory", "memory", nil)
	d.Stats = dashboard.NewStats(st)
	d.Logger = zap.NewNop()
	return New(":0", d), st
}

func do(s *Server, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestRoot(t *testing.T) {
	s, _ := newServer(t, Deps{})
	w := do(s, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","bot":"callpoll"}`, w.Body.String())
}

func TestWebhookUpdate(t *testing.T) {
	disp := &fakeDispatcher{}
	s, _ := newServer(t, Deps{Dispatcher: disp, Secret: "s3cret"})
	update := `{"update_id":77,"message":{"message_id":1,"date":0,"chat":{"id":100,"type":"group"},"text":"gm"}}`

	w := do(s, http.MethodPost, "/telegram", update, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(s, http.MethodPost, "/telegram", update, map[string]string{SecretHeader: "s3cret"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{77}, disp.got)

	w = do(s, http.MethodPost, "/telegram", "{not json", map[string]string{SecretHeader: "s3cret"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	disp.err = errors.New("store down")
	w = do(s, http.MethodPost, "/telegram", update, map[string]string{SecretHeader: "s3cret"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "store down")
}

func TestWebhookAdmin(t *testing.T) {
	s, _ := newServer(t, Deps{Webhook: fakeWebhook{}})
	w := do(s, http.MethodGet, "/webhook/register", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"webhook":true,"commands":true,"url":"https://bot.example/telegram"}`, w.Body.String())

	w = do(s, http.MethodGet, "/webhook/status", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"pending_update_count":3`)

	failing, _ := newServer(t, Deps{Webhook: fakeWebhook{err: errors.New("telegram says no")}})
	assert.Equal(t, http.StatusInternalServerError, do(failing, http.MethodGet, "/webhook/register", "", nil).Code)

	polling, _ := newServer(t, Deps{})
	assert.Equal(t, http.StatusConflict, do(polling, http.MethodGet, "/webhook/register", "", nil).Code)
}

func TestHealthAndStats(t *testing.T) {
	s, _ := newServer(t, Deps{})

	w := do(s, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rep health.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
	assert.Equal(t, store.Counts{Total: 1, Open: 1}, rep.Polls)
	assert.Equal(t, "memory", rep.StoreDriver)

	w = do(s, http.MethodGet, "/api/stats", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var snap dashboard.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, 1, snap.TotalPolls)
	assert.Equal(t, 1, snap.OpenPolls)
	assert.Len(t, snap.Daily, 30)
}

func TestCORS(t *testing.T) {
	s, _ := newServer(t, Deps{})
	req := httptest.NewRequest(http.MethodOptions, "/api/stats", nil)
	req.Header.Set("Origin", "https://dash.example")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
