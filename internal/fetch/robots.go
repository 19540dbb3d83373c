package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

// robotsTTL bounds how long a site's robots.txt is trusted
const robotsTTL = time.Hour

// RobotsChecker answers whether a news site lets us fetch a page. Each
// site's robots.txt is downloaded at most once per robotsTTL, even when
// many batch workers hit the same site at once.
type RobotsChecker struct {
	client  *http.Client
	agent   string
	byHost  *gocache.Cache
	loading singleflight.Group
}

// NewRobotsChecker creates a checker that matches rules against the product
// token of userAgent. A nil client gets a 10s timeout.
func NewRobotsChecker(userAgent string, client *http.Client) *RobotsChecker {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RobotsChecker{
		client: client,
		agent:  NormalizeUserAgent(userAgent),
		byHost: gocache.New(robotsTTL, 2*robotsTTL),
	}
}

// CanFetch reports whether rawURL may be fetched and the crawl delay the
// site asks for. A robots.txt that cannot be retrieved permits everything.
func (r *RobotsChecker) CanFetch(ctx context.Context, rawURL string) (bool, time.Duration, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, 0, fmt.Errorf("parse URL: %w", err)
	}

	rules, err := r.rules(ctx, u)
	if err != nil {
		return false, 0, err
	}
	if rules == nil {
		return true, 0, nil
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}

	var delay time.Duration
	if group := rules.FindGroup(r.agent); group != nil {
		delay = group.CrawlDelay
	}
	return rules.TestAgent(path, r.agent), delay, nil
}

// rules returns the parsed robots.txt for the URL's site, or nil when the
// site has none we could read. Failures are remembered too. The shared
// download outlives the caller that started it and is bounded by the client
// timeout, so one cancelled caller cannot decide the answer for the rest.
func (r *RobotsChecker) rules(ctx context.Context, u *url.URL) (*robotstxt.RobotsData, error) {
	site := u.Scheme + "://" + strings.ToLower(u.Host)
	if cached, ok := r.byHost.Get(site); ok {
		data, _ := cached.(*robotstxt.RobotsData)
		return data, nil
	}

	shared := context.WithoutCancel(ctx)
	loaded := r.loading.DoChan(site, func() (any, error) {
		data, err := r.download(shared, site+"/robots.txt")
		if err != nil {
			data = nil
		}
		r.byHost.SetDefault(site, data)
		return data, nil
	})

	select {
	case res := <-loaded:
		data, _ := res.Val.(*robotstxt.RobotsData)
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *RobotsChecker) download(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", r.agent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	return robotstxt.FromResponse(resp)
}

// Forget drops every remembered robots.txt
func (r *RobotsChecker) Forget() {
	r.byHost.Flush()
}

// NormalizeUserAgent reduces a user agent to its product token
// ("biaslens/0.1 (+https://...)" -> "biaslens") for robots.txt matching
func NormalizeUserAgent(ua string) string {
	token, _, _ := strings.Cut(strings.TrimSpace(ua), " ")
	token, _, _ = strings.Cut(token, "/")
	return token
}
