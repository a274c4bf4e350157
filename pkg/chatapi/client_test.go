package chatapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/bharatgo/chat-widget/pkg/kv"
	"github.com/bharatgo/chat-widget/pkg/session"
)

// recordingServer captures request bodies and replies with a scripted
// response per call.
type recordingServer struct {
	mu        sync.Mutex
	requests  []map[string]any
	responses []scriptedResponse
	srv       *httptest.Server
}

type scriptedResponse struct {
	status int
	body   string
}

func newRecordingServer(t *testing.T, responses ...scriptedResponse) *recordingServer {
	t.Helper()
	rs := &recordingServer{responses: responses}
	rs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		rs.mu.Lock()
		rs.requests = append(rs.requests, body)
		idx := len(rs.requests) - 1
		rs.mu.Unlock()

		resp := scriptedResponse{status: http.StatusOK, body: `{"response":"ok"}`}
		if idx < len(rs.responses) {
			resp = rs.responses[idx]
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.status)
		_, _ = w.Write([]byte(resp.body))
	}))
	t.Cleanup(rs.srv.Close)
	return rs
}

func (rs *recordingServer) request(i int) map[string]any {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.requests[i]
}

// anonToken pins the manager to anonymous mode so tests control identity
// explicitly.
func anonToken() session.Option {
	return session.WithTokenFunc(func(context.Context) string { return "" })
}

func newTestManager() *session.Manager {
	return session.NewManager(kv.NewMemoryStore(), anonToken())
}

func TestClient_RoundTripEstablishesSession(t *testing.T) {
	rs := newRecordingServer(t,
		scriptedResponse{status: http.StatusOK, body: `{"response":"Hello","session_id":"s1"}`},
	)
	sessions := newTestManager()
	client, err := NewClient(rs.srv.URL, sessions)
	require.NoError(t, err)
	ctx := context.Background()

	answer, err := client.Ask(ctx, "Hi")
	require.NoError(t, err)
	require.Equal(t, "Hello", answer.Answer)
	require.Equal(t, "s1", answer.SessionID)

	id, ok := sessions.SessionID(ctx)
	require.True(t, ok)
	require.Equal(t, "s1", id)

	// No session or user info existed, so neither field was sent.
	req := rs.request(0)
	require.Equal(t, "Hi", req["question"])
	_, hasSession := req["session_id"]
	require.False(t, hasSession)
	_, hasUserInfo := req["user_info"]
	require.False(t, hasUserInfo)
}

func TestClient_ReusedSessionIsSentAndTouched(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sessions := session.NewManager(kv.NewMemoryStore(),
		session.WithNow(func() time.Time { return now }),
		anonToken(),
	)
	rs := newRecordingServer(t,
		scriptedResponse{status: http.StatusOK, body: `{"response":"a","session_id":"s1"}`},
		scriptedResponse{status: http.StatusOK, body: `{"response":"b","session_id":"s1"}`},
	)
	client, err := NewClient(rs.srv.URL, sessions)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = client.Ask(ctx, "first")
	require.NoError(t, err)

	// Ten minutes later the same id is reused; the exchange must refresh
	// the expiry rather than rotate.
	now = now.Add(10 * time.Minute)
	_, err = client.Ask(ctx, "second")
	require.NoError(t, err)

	require.Equal(t, "s1", rs.request(1)["session_id"])

	rec, ok := sessions.Stored(ctx)
	require.True(t, ok)
	require.NotNil(t, rec.Exp)
	require.Equal(t, now.Add(session.DefaultTTL).UnixMilli(), *rec.Exp)
}

func TestClient_ServerRotationResetsHistory(t *testing.T) {
	sessions := newTestManager()
	rs := newRecordingServer(t,
		scriptedResponse{status: http.StatusOK, body: `{"response":"a","session_id":"s1"}`},
		scriptedResponse{status: http.StatusOK, body: `{"response":"b","session_id":"s2"}`},
	)
	client, err := NewClient(rs.srv.URL, sessions)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = client.Ask(ctx, "first")
	require.NoError(t, err)
	sessions.AppendMessage(ctx, session.Message{ID: "m1", Role: session.RoleUser, Content: "first"})
	require.NotEmpty(t, sessions.History(ctx))

	answer, err := client.Ask(ctx, "second")
	require.NoError(t, err)
	require.Equal(t, "s2", answer.SessionID)

	id, ok := sessions.SessionID(ctx)
	require.True(t, ok)
	require.Equal(t, "s2", id)
	require.Empty(t, sessions.History(ctx))
}

func TestClient_AuthFailureClearsSession(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, StatusLoginTimeout} {
		sessions := newTestManager()
		rs := newRecordingServer(t,
			scriptedResponse{status: http.StatusOK, body: `{"response":"a","session_id":"s1"}`},
			scriptedResponse{status: status, body: `{"error":"expired"}`},
		)
		client, err := NewClient(rs.srv.URL, sessions)
		require.NoError(t, err)
		ctx := context.Background()

		_, err = client.Ask(ctx, "first")
		require.NoError(t, err)

		_, err = client.Ask(ctx, "second")
		require.Error(t, err)
		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		require.Equal(t, status, statusErr.Status)

		_, ok := sessions.SessionID(ctx)
		require.False(t, ok, "status %d must clear the session", status)
	}
}

func TestClient_ServerErrorKeepsSession(t *testing.T) {
	sessions := newTestManager()
	rs := newRecordingServer(t,
		scriptedResponse{status: http.StatusOK, body: `{"response":"a","session_id":"s1"}`},
		scriptedResponse{status: http.StatusBadGateway, body: "upstream exploded"},
	)
	client, err := NewClient(rs.srv.URL, sessions)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = client.Ask(ctx, "first")
	require.NoError(t, err)

	_, err = client.Ask(ctx, "second")
	require.Error(t, err)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusBadGateway, statusErr.Status)
	require.Contains(t, statusErr.Body, "upstream exploded")

	// A plain 5xx is not an auth failure; the session survives.
	_, ok := sessions.SessionID(ctx)
	require.True(t, ok)
}

func TestClient_EmptyQuestionRejectedWithoutRequest(t *testing.T) {
	rs := newRecordingServer(t)
	client, err := NewClient(rs.srv.URL, newTestManager())
	require.NoError(t, err)

	_, err = client.Ask(context.Background(), "   ")
	require.Error(t, err)
	rs.mu.Lock()
	defer rs.mu.Unlock()
	require.Empty(t, rs.requests)
}

func TestClient_ResponseUserInfoIsPersisted(t *testing.T) {
	sessions := newTestManager()
	rs := newRecordingServer(t,
		scriptedResponse{
			status: http.StatusOK,
			body:   `{"response":"a","session_id":"s1","user_info":{"name":"A","email":"a@x.com"}}`,
		},
	)
	client, err := NewClient(rs.srv.URL, sessions)
	require.NoError(t, err)
	ctx := context.Background()

	answer, err := client.Ask(ctx, "Hi")
	require.NoError(t, err)
	require.NotNil(t, answer.UserInfo)

	info := sessions.UserInfo(ctx)
	require.NotNil(t, info)
	require.Equal(t, "a@x.com", info.Email)
}

func TestClient_ProfileSourceUsedWhenAuthenticated(t *testing.T) {
	sessions := session.NewManager(kv.NewMemoryStore(),
		session.WithTokenFunc(func(context.Context) string { return "tok" }),
	)
	rs := newRecordingServer(t,
		scriptedResponse{status: http.StatusOK, body: `{"response":"a","session_id":"s1"}`},
	)
	client, err := NewClient(rs.srv.URL, sessions,
		WithProfileSource(ProfileFunc(func(context.Context) (*session.UserInfo, error) {
			return &session.UserInfo{Name: "Fresh", Email: "fresh@x.com"}, nil
		})),
	)
	require.NoError(t, err)

	_, err = client.Ask(context.Background(), "Hi")
	require.NoError(t, err)

	sent, ok := rs.request(0)["user_info"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "fresh@x.com", sent["email"])
}

func TestClient_ProfileFailureFallsBackToPersisted(t *testing.T) {
	store := kv.NewMemoryStore()
	sessions := session.NewManager(store,
		session.WithTokenFunc(func(context.Context) string { return "tok" }),
	)
	rs := newRecordingServer(t,
		scriptedResponse{status: http.StatusOK, body: `{"response":"a","session_id":"s1","user_info":{"name":"Stored","email":"stored@x.com"}}`},
		scriptedResponse{status: http.StatusOK, body: `{"response":"b","session_id":"s1"}`},
	)
	client, err := NewClient(rs.srv.URL, sessions,
		WithProfileSource(ProfileFunc(func(context.Context) (*session.UserInfo, error) {
			return nil, errors.New("dashboard down")
		})),
	)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = client.Ask(ctx, "first")
	require.NoError(t, err)

	_, err = client.Ask(ctx, "second")
	require.NoError(t, err)

	sent, ok := rs.request(1)["user_info"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "stored@x.com", sent["email"])
}

func TestClient_RelaysContactCaptureSignals(t *testing.T) {
	rs := newRecordingServer(t,
		scriptedResponse{
			status: http.StatusOK,
			body:   `{"response":"a","session_id":"s1","requires_user_info":true,"missing_fields":["name","email"],"has_contact_form":true}`,
		},
	)
	client, err := NewClient(rs.srv.URL, newTestManager())
	require.NoError(t, err)

	answer, err := client.Ask(context.Background(), "Hi")
	require.NoError(t, err)
	require.True(t, answer.RequiresUserInfo)
	require.Equal(t, []string{"name", "email"}, answer.MissingFields)
	require.True(t, answer.HasContactForm)
}
