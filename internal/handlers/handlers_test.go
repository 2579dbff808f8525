package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	relay "github.com/AZ-204-Projects/event-relay"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T, opts *relay.QueueOptions) *relay.Queue {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "relay.db") + "?_busy_timeout=5000&_journal_mode=WAL"
	db, err := sqlx.Open("sqlite3", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)
	client, err := relay.NewClient(db)
	require.NoError(t, err)
	q, err := client.NewQueue(opts)
	require.NoError(t, err)
	return q
}

func newTestRouter(q *relay.Queue) *chi.Mux {
	h := NewHandler(q)
	r := chi.NewRouter()
	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Post("/events", h.PostEvent)
	r.Route("/queue", func(r chi.Router) {
		r.Post("/dequeue", h.Dequeue)
		r.Delete("/messages/{id}", h.Acknowledge)
		r.Get("/peek", h.Peek)
		r.Get("/dead-letters", h.DeadLetters)
	})
	return r
}

func do(t *testing.T, router http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestPostEventEnqueues(t *testing.T) {
	q := newTestQueue(t, nil)
	router := newTestRouter(q)

	rec := do(t, router, http.MethodPost, "/events", []byte(`{"kind":"provisioned"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp PostEventResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	_, err := uuid.Parse(resp.MessageID)
	require.NoError(t, err)

	msgs, err := q.Peek(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, []byte(`{"kind":"provisioned"}`), msgs[0].Body)
}

func TestPostEventRejectsEmptyBody(t *testing.T) {
	router := newTestRouter(newTestQueue(t, nil))

	rec := do(t, router, http.MethodPost, "/events", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Contains(t, resp["error"], "empty")
}

func TestPostEventRejectsOversizePayload(t *testing.T) {
	q := newTestQueue(t, &relay.QueueOptions{MaxPayloadBytes: 64})
	router := newTestRouter(q)

	rec := do(t, router, http.MethodPost, "/events", bytes.Repeat([]byte("x"), 65))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	msgs, err := q.Peek(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, msgs, "rejected event must not be enqueued")
}

func TestPostEventWithDelay(t *testing.T) {
	router := newTestRouter(newTestQueue(t, nil))

	rec := do(t, router, http.MethodPost, "/events?delay=1m", []byte("later"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodPost, "/queue/dequeue", nil)
	require.Equal(t, http.StatusNoContent, rec.Code, "delayed event must not be deliverable yet")

	rec = do(t, router, http.MethodPost, "/events?delay=banana", []byte("x"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostEventStoreUnavailable(t *testing.T) {
	// a queue whose database has been closed under it
	dsn := "file:" + filepath.Join(t.TempDir(), "gone.db")
	db, err := sqlx.Open("sqlite3", dsn)
	require.NoError(t, err)
	client, err := relay.NewClient(db)
	require.NoError(t, err)
	q, err := client.NewQueue(nil)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	rec := do(t, newTestRouter(q), http.MethodPost, "/events", []byte("orphan"))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDequeueDeliversAndLeases(t *testing.T) {
	q := newTestQueue(t, nil)
	router := newTestRouter(q)

	enqueued, err := q.Enqueue(context.Background(), []byte("deliver me"))
	require.NoError(t, err)

	rec := do(t, router, http.MethodPost, "/queue/dequeue?lease=1m", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DequeueResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, enqueued.ID, resp.Message.ID)
	require.Equal(t, []byte("deliver me"), resp.Message.Body)
	require.Equal(t, 1, resp.Message.DequeueCount)

	rec = do(t, router, http.MethodPost, "/queue/dequeue", nil)
	require.Equal(t, http.StatusNoContent, rec.Code, "leased message should be invisible")
}

func TestDequeueRejectsInvalidLease(t *testing.T) {
	router := newTestRouter(newTestQueue(t, nil))

	for _, lease := range []string{"banana", "-5s", "0s"} {
		rec := do(t, router, http.MethodPost, "/queue/dequeue?lease="+lease, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code, "lease %q should be rejected", lease)
	}
}

func TestAcknowledgeRoundtrip(t *testing.T) {
	q := newTestQueue(t, nil)
	router := newTestRouter(q)

	_, err := q.Enqueue(context.Background(), []byte("ack me"))
	require.NoError(t, err)

	rec := do(t, router, http.MethodPost, "/queue/dequeue?lease=1m", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp DequeueResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	rec = do(t, router, http.MethodDelete, "/queue/messages/"+resp.Message.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, router, http.MethodDelete, "/queue/messages/"+resp.Message.ID, nil)
	require.Equal(t, http.StatusNotFound, rec.Code, "second acknowledge should miss")
}

func TestAcknowledgeRejectsMalformedID(t *testing.T) {
	router := newTestRouter(newTestQueue(t, nil))

	rec := do(t, router, http.MethodDelete, "/queue/messages/not-a-uuid", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPeekEndpoint(t *testing.T) {
	q := newTestQueue(t, nil)
	router := newTestRouter(q)

	for _, p := range []string{"a", "b", "c"} {
		_, err := q.Enqueue(context.Background(), []byte(p))
		require.NoError(t, err)
	}

	rec := do(t, router, http.MethodGet, "/queue/peek?count=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp PeekResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 2)
	require.Equal(t, []byte("a"), resp.Messages[0].Body)
	require.Equal(t, []byte("b"), resp.Messages[1].Body)

	rec = do(t, router, http.MethodGet, "/queue/peek?count=zero", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeadLettersEndpoint(t *testing.T) {
	q := newTestQueue(t, &relay.QueueOptions{PoisonThreshold: 1})
	router := newTestRouter(q)
	ctx := context.Background()

	m, err := q.Enqueue(ctx, []byte("poison"))
	require.NoError(t, err)
	_, err = q.Dequeue(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		moved, err := q.SweepPoison(ctx)
		require.NoError(t, err)
		return moved == 1
	}, 2*time.Second, 5*time.Millisecond)

	rec := do(t, router, http.MethodGet, "/queue/dead-letters", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp DeadLettersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.DeadLetters, 1)
	require.Equal(t, m.ID, resp.DeadLetters[0].ID)
	require.NotEmpty(t, resp.DeadLetters[0].Reason)
}

func TestHealthReportsQueueCensus(t *testing.T) {
	q := newTestQueue(t, nil)
	router := newTestRouter(q)

	_, err := q.Enqueue(context.Background(), []byte("pending"))
	require.NoError(t, err)

	rec := do(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "healthy", resp.Status)
	require.Equal(t, "pass", resp.Checks["store"].Status)
	require.NotNil(t, resp.Queue)
	require.Equal(t, int64(1), resp.Queue.Visible)
}

func TestHealthDegradedWhenStoreDown(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "relay.db")
	db, err := sqlx.Open("sqlite3", dsn)
	require.NoError(t, err)
	client, err := relay.NewClient(db)
	require.NoError(t, err)
	q, err := client.NewQueue(nil)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	rec := do(t, newTestRouter(q), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "degraded", resp.Status)
	require.Equal(t, "fail", resp.Checks["store"].Status)
}

func TestRootIdentifiesService(t *testing.T) {
	rec := do(t, newTestRouter(newTestQueue(t, nil)), http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RootResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "event-relay", resp.Name)
	require.NotEmpty(t, resp.Version)
}

// Ingest three events, consume and acknowledge them all over HTTP, and make
// sure the queue drains in order.
func TestRelayRoundtrip(t *testing.T) {
	router := newTestRouter(newTestQueue(t, nil))

	payloads := [][]byte{[]byte("created"), []byte("updated"), []byte("deleted")}
	for _, p := range payloads {
		rec := do(t, router, http.MethodPost, "/events", p)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	for _, want := range payloads {
		rec := do(t, router, http.MethodPost, "/queue/dequeue?lease=1m", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp DequeueResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, want, resp.Message.Body)

		rec = do(t, router, http.MethodDelete, "/queue/messages/"+resp.Message.ID, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)
	}

	rec := do(t, router, http.MethodPost, "/queue/dequeue", nil)
	require.Equal(t, http.StatusNoContent, rec.Code, "queue should be drained")
}
