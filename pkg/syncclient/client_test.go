package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeServer struct {
	mu       sync.Mutex
	direct   []thread
	groups   []thread
	failures int
	reads    []string
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/conversations", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failures > 0 {
			f.failures--
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(f.direct)
	})
	mux.HandleFunc("GET /api/v1/groups", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		json.NewEncoder(w).Encode(f.groups)
	})
	mux.HandleFunc("POST /api/v1/conversations/{id}/read", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.reads = append(f.reads, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /api/v1/groups/{id}/read", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.reads = append(f.reads, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func collectOnce(t *testing.T, c *Client) []Badge {
	t.Helper()

	got := make(chan []Badge, 1)
	c.OnUpdate = func(badges []Badge) {
		select {
		case got <- badges:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case badges := <-got:
		cancel()
		<-done
		return badges
	case <-time.After(2 * time.Second):
		t.Fatal("no poll update within deadline")
		return nil
	}
}

func TestSelfAuthoredTailExcluded(t *testing.T) {
	me, other := uuid.New(), uuid.New()
	mine := uuid.New()
	theirs := uuid.New()

	srv := httptest.NewServer((&fakeServer{
		direct: []thread{
			{ID: mine, LastMessage: &lastMessage{ID: uuid.New(), SenderID: me, CreatedAt: time.Now()}, UnreadCount: 0},
			{ID: theirs, LastMessage: &lastMessage{ID: uuid.New(), SenderID: other, CreatedAt: time.Now()}, UnreadCount: 2},
		},
	}).handler())
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, UserID: me, Interval: 10 * time.Millisecond}
	badges := collectOnce(t, c)

	if len(badges) != 1 {
		t.Fatalf("badges = %d, want 1", len(badges))
	}
	if badges[0].ThreadID != theirs || badges[0].Unread != 2 {
		t.Fatalf("unexpected badge: %+v", badges[0])
	}
}

func TestFirstContactSurfacesWithoutWatermark(t *testing.T) {
	me, other := uuid.New(), uuid.New()
	threadID := uuid.New()

	// Server reports zero unread (e.g. a stale count) but the last
	// message is someone else's and the thread was never viewed.
	srv := httptest.NewServer((&fakeServer{
		direct: []thread{
			{ID: threadID, LastMessage: &lastMessage{ID: uuid.New(), SenderID: other, CreatedAt: time.Now()}, UnreadCount: 0},
		},
	}).handler())
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, UserID: me, Interval: 10 * time.Millisecond}
	badges := collectOnce(t, c)

	if len(badges) != 1 || badges[0].Unread != 1 {
		t.Fatalf("never-viewed thread should surface once: %+v", badges)
	}
}

func TestMarkViewedSuppressesBadge(t *testing.T) {
	me, other := uuid.New(), uuid.New()
	threadID := uuid.New()

	fake := &fakeServer{
		groups: []thread{
			{ID: threadID, LastMessage: &lastMessage{ID: uuid.New(), SenderID: other, CreatedAt: time.Now()}, UnreadCount: 3},
		},
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, UserID: me, Interval: 10 * time.Millisecond}

	if err := c.MarkViewed(context.Background(), ThreadGroup, threadID); err != nil {
		t.Fatalf("mark viewed: %v", err)
	}

	fake.mu.Lock()
	reads := len(fake.reads)
	fake.mu.Unlock()
	if reads != 1 {
		t.Fatalf("server read calls = %d, want 1", reads)
	}

	badges := collectOnce(t, c)
	if len(badges) != 0 {
		t.Fatalf("viewed thread should not surface: %+v", badges)
	}
}

func TestNewActivityAfterViewSurfaces(t *testing.T) {
	me, other := uuid.New(), uuid.New()
	threadID := uuid.New()

	fake := &fakeServer{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, UserID: me, Interval: 10 * time.Millisecond}
	if err := c.MarkViewed(context.Background(), ThreadDirect, threadID); err != nil {
		t.Fatalf("mark viewed: %v", err)
	}

	// A message arriving after the view moves the tail past the
	// watermark.
	fake.mu.Lock()
	fake.direct = []thread{
		{ID: threadID, LastMessage: &lastMessage{ID: uuid.New(), SenderID: other, CreatedAt: time.Now().Add(time.Second)}, UnreadCount: 1},
	}
	fake.mu.Unlock()

	badges := collectOnce(t, c)
	if len(badges) != 1 {
		t.Fatalf("new activity should surface: %+v", badges)
	}
}

func TestPollFailuresAreSwallowed(t *testing.T) {
	me, other := uuid.New(), uuid.New()
	threadID := uuid.New()

	fake := &fakeServer{
		failures: 2,
		direct: []thread{
			{ID: threadID, LastMessage: &lastMessage{ID: uuid.New(), SenderID: other, CreatedAt: time.Now()}, UnreadCount: 1},
		},
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, UserID: me, Interval: 5 * time.Millisecond}

	// The first two polls fail; Run keeps ticking and eventually
	// delivers an update.
	badges := collectOnce(t, c)
	if len(badges) != 1 {
		t.Fatalf("expected recovery after failures: %+v", badges)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer((&fakeServer{}).handler())
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, Interval: 5 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
