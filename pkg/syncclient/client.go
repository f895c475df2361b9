// Package syncclient polls the messaging API and tracks which threads
// have activity the local user has not seen yet. It is meant to back a
// badge or inbox indicator in a client application.
package syncclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const DefaultInterval = 2 * time.Second

type ThreadKind string

const (
	ThreadDirect ThreadKind = "direct"
	ThreadGroup  ThreadKind = "group"
)

// Badge is one thread with unseen activity.
type Badge struct {
	ThreadID uuid.UUID
	Kind     ThreadKind
	Unread   int
}

type lastMessage struct {
	ID        uuid.UUID `json:"id"`
	SenderID  uuid.UUID `json:"sender_id"`
	CreatedAt time.Time `json:"created_at"`
}

type thread struct {
	ID          uuid.UUID    `json:"id"`
	LastMessage *lastMessage `json:"last_message"`
	UnreadCount int          `json:"unread_count"`
}

// Client polls the conversation and group listings on a fixed
// interval. All methods are safe for concurrent use.
type Client struct {
	BaseURL    string
	Token      string
	UserID     uuid.UUID
	HTTPClient *http.Client
	Interval   time.Duration
	Logger     zerolog.Logger

	// OnUpdate is invoked after every successful poll with the
	// current set of threads that have unseen activity. It runs on
	// the polling goroutine.
	OnUpdate func(badges []Badge)

	mu       sync.Mutex
	viewedAt map[uuid.UUID]time.Time
}

// Run polls until ctx is cancelled. Individual poll failures are
// logged and skipped; the next tick tries again.
func (c *Client) Run(ctx context.Context) error {
	interval := c.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := c.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.Logger.Debug().Err(err).Msg("poll failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// MarkViewed records that the user has seen a thread as of now and
// tells the server to clear its unread state.
func (c *Client) MarkViewed(ctx context.Context, kind ThreadKind, threadID uuid.UUID) error {
	c.mu.Lock()
	if c.viewedAt == nil {
		c.viewedAt = make(map[uuid.UUID]time.Time)
	}
	c.viewedAt[threadID] = time.Now()
	c.mu.Unlock()

	path := fmt.Sprintf("/api/v1/conversations/%s/read", threadID)
	if kind == ThreadGroup {
		path = fmt.Sprintf("/api/v1/groups/%s/read", threadID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("mark read: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) poll(ctx context.Context) error {
	var direct, groups []thread

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.fetch(gctx, "/api/v1/conversations", &direct)
	})
	g.Go(func() error {
		return c.fetch(gctx, "/api/v1/groups", &groups)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	var badges []Badge
	for _, t := range direct {
		if n := c.unseen(t); n > 0 {
			badges = append(badges, Badge{ThreadID: t.ID, Kind: ThreadDirect, Unread: n})
		}
	}
	for _, t := range groups {
		if n := c.unseen(t); n > 0 {
			badges = append(badges, Badge{ThreadID: t.ID, Kind: ThreadGroup, Unread: n})
		}
	}

	if c.OnUpdate != nil {
		c.OnUpdate(badges)
	}
	return nil
}

// unseen decides whether a thread should surface. A thread whose last
// message is the user's own never counts; a thread viewed after its
// last message never counts. Anything else shows the server's unread
// count.
func (c *Client) unseen(t thread) int {
	if t.LastMessage == nil {
		return 0
	}
	if t.LastMessage.SenderID == c.UserID {
		return 0
	}

	c.mu.Lock()
	viewed, ok := c.viewedAt[t.ID]
	c.mu.Unlock()

	if ok && !t.LastMessage.CreatedAt.After(viewed) {
		return 0
	}

	if t.UnreadCount > 0 {
		return t.UnreadCount
	}
	return 1
}

func (c *Client) fetch(ctx context.Context, path string, out *[]thread) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: unexpected status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}
