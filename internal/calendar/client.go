package calendar

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	appLog "islandbot/internal/log"
	"islandbot/internal/model"
)

const (
	// DefaultEndpoint is the Lost Ark OpenAPI game calendar.
	DefaultEndpoint = "https://developer-lostark.game.onstove.com/gamecontents/calendar"

	defaultTimeout = 20 * time.Second
)

// Options configures a Client.
type Options struct {
	// Endpoint is the calendar URL. Empty means DefaultEndpoint.
	Endpoint string
	// Token is the OpenAPI JWT sent as "authorization: bearer <token>".
	Token string
	// Location is the fixed zone used to decide which day a snapshot
	// belongs to. Nil means time.Local.
	Location *time.Location
	// Timeout bounds a single request. Zero means 20s.
	Timeout time.Duration
	// MinInterval, if positive, is the minimum spacing between two network
	// calls. Calls arriving sooner fail with ErrRateLimited.
	MinInterval time.Duration
}

// Client downloads the calendar and keeps one snapshot per calendar date.
//
// A single mutex serializes downloads; readers go through an atomic pointer
// and may keep using an older snapshot while a refresh is in flight.
type Client struct {
	http     *resty.Client
	endpoint string
	loc      *time.Location
	limiter  *rate.Limiter

	mu   sync.Mutex
	snap atomic.Pointer[Snapshot]
}

// NewClient creates a calendar Client.
func NewClient(opts Options) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	hc := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("accept", "application/json").
		SetAuthScheme("bearer").
		SetAuthToken(opts.Token)

	c := &Client{
		http:     hc,
		endpoint: opts.Endpoint,
		loc:      opts.Location,
	}
	if opts.MinInterval > 0 {
		c.limiter = rate.NewLimiter(rate.Every(opts.MinInterval), 1)
	}
	return c
}

// Location returns the fixed zone the client buckets snapshots by.
func (c *Client) Location() *time.Location {
	return c.loc
}

// Current returns the live snapshot, or nil if none has been fetched.
func (c *Client) Current() *Snapshot {
	return c.snap.Load()
}

// Invalidate drops the live snapshot so the next Fetch hits the network.
func (c *Client) Invalidate() {
	c.snap.Store(nil)
}

// Fetch returns the snapshot for the calendar date of now, downloading it
// only when the cached snapshot belongs to another date (or is missing).
func (c *Client) Fetch(ctx context.Context, now time.Time) (*Snapshot, error) {
	today := model.DateOf(now, c.loc)
	if s := c.snap.Load(); s != nil && s.Date == today {
		return s, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another caller may have completed the download while we waited.
	if s := c.snap.Load(); s != nil && s.Date == today {
		return s, nil
	}
	return c.download(ctx, now, today)
}

// Refresh downloads a new snapshot regardless of the cache.
func (c *Client) Refresh(ctx context.Context, now time.Time) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.download(ctx, now, model.DateOf(now, c.loc))
}

func (c *Client) download(ctx context.Context, now time.Time, today model.Date) (*Snapshot, error) {
	if c.limiter != nil && !c.limiter.Allow() {
		return nil, &FetchError{Err: ErrRateLimited}
	}

	appLog.Info("calendar fetch start", "url", redactURL(c.endpoint), "date", today.String())

	resp, err := c.http.R().SetContext(ctx).Get(c.endpoint)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	if !resp.IsSuccess() {
		return nil, &FetchError{StatusCode: resp.StatusCode(), Err: errors.New(resp.Status())}
	}

	entries, err := decodeEntries(resp.Body())
	if err != nil {
		return nil, &FetchError{StatusCode: resp.StatusCode(), Err: err}
	}

	snap := &Snapshot{
		Date:      today,
		Entries:   entries,
		FetchedAt: now,
	}
	c.snap.Store(snap)

	appLog.Info("calendar fetch success", "date", today.String(), "entries", len(entries), "status", resp.StatusCode())
	return snap, nil
}

// redactURL keeps scheme, host and path and drops anything after them.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "(redacted)"
	}
	return u.Scheme + "://" + u.Host + u.Path
}
