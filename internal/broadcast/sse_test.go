package broadcast

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/joao-fontenele/orderboard/internal/domain"
)

// syncRecorder is a flushable response writer safe to inspect while the
// streaming handler is still writing.
type syncRecorder struct {
	mu     sync.Mutex
	header http.Header
	body   bytes.Buffer
	status int
}

func newSyncRecorder() *syncRecorder {
	return &syncRecorder{header: make(http.Header)}
}

func (r *syncRecorder) Header() http.Header { return r.header }

func (r *syncRecorder) Write(b []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body.Write(b)
}

func (r *syncRecorder) WriteHeader(status int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
}

func (r *syncRecorder) Flush() {}

func (r *syncRecorder) bodyString() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body.String()
}

func TestSSEHandler(t *testing.T) {
	hub := NewHub(nil, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	handler := NewSSEHandler(hub, testLogger())

	reqCtx, cancelReq := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(reqCtx)
	rec := newSyncRecorder()

	done := make(chan struct{})
	go func() {
		handler.ServeHTTP(rec, req)
		close(done)
	}()

	// Wait for the stream to register as an observer.
	deadline := time.After(time.Second)
	for hub.SubscriberCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for subscription")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	hub.Inbound() <- domain.Event{
		Type:       domain.EventOrderStatusChanged,
		OrderID:    "order-42",
		Order:      &domain.Order{ID: "order-42", Status: domain.OrderStatusReady},
		OccurredAt: time.Now().UTC(),
	}

	deadline = time.After(time.Second)
	for !strings.Contains(rec.bodyString(), "order-42") {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for event frame, body: %q", rec.bodyString())
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	cancelReq()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not stop after client disconnect")
	}

	body := rec.bodyString()
	if !strings.Contains(body, "event: order.status_changed\n") {
		t.Errorf("missing event line in %q", body)
	}
	if !strings.Contains(body, `"order_id":"order-42"`) {
		t.Errorf("missing payload in %q", body)
	}
	if rec.Header().Get("Content-Type") != "text/event-stream" {
		t.Errorf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}

	if hub.SubscriberCount() != 0 {
		t.Errorf("expected unsubscribe on disconnect, got %d subscribers", hub.SubscriberCount())
	}
}

func TestSSEHandlerRequiresFlusher(t *testing.T) {
	hub := NewHub(nil, testLogger())
	handler := NewSSEHandler(hub, testLogger())

	rec := &plainWriter{header: make(http.Header)}
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)

	handler.ServeHTTP(rec, req)

	if rec.status != http.StatusInternalServerError {
		t.Errorf("expected 500 for non-flushing writer, got %d", rec.status)
	}

	if hub.SubscriberCount() != 0 {
		t.Errorf("expected no subscription, got %d", hub.SubscriberCount())
	}
}

// plainWriter deliberately does not implement http.Flusher.
type plainWriter struct {
	header http.Header
	status int
}

func (w *plainWriter) Header() http.Header         { return w.header }
func (w *plainWriter) Write(b []byte) (int, error) { return len(b), nil }
func (w *plainWriter) WriteHeader(status int)      { w.status = status }
