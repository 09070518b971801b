package lichess

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/gambitworks/squire/internal/obslog"
	"github.com/gambitworks/squire/internal/probecache"
	"github.com/gambitworks/squire/pkg/liapi"
)

const (
	defaultExplorerURL  = "https://explorer.lichess.ovh"
	defaultTablebaseURL = "https://tablebase.lichess.ovh"

	defaultTimeout = 10 * time.Second
	retryMax       = 3
)

// Client talks to the lichess bot API plus the explorer and tablebase
// side services. Bounded lookups (explorer, cloud eval, tablebase) take
// an explicit timeout: the call returns within it, success or not.
type Client struct {
	baseURL      string
	explorerURL  string
	tablebaseURL string
	token        string
	userAgent    string

	http  *fasthttp.Client
	cache *probecache.Cache
}

type Option func(*Client)

func WithCache(cache *probecache.Cache) Option {
	return func(c *Client) { c.cache = cache }
}

func WithExplorerURL(u string) Option {
	return func(c *Client) { c.explorerURL = strings.TrimRight(u, "/") }
}

func WithTablebaseURL(u string) Option {
	return func(c *Client) { c.tablebaseURL = strings.TrimRight(u, "/") }
}

func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		explorerURL:  defaultExplorerURL,
		tablebaseURL: defaultTablebaseURL,
		token:        token,
		userAgent:    "squire",
		http: &fasthttp.Client{
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    10 * time.Second,
			MaxConnsPerHost: 16,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Account fetches the bot's own profile.
func (c *Client) Account(ctx context.Context) (*liapi.Account, error) {
	var account liapi.Account
	deadline := c.deadlineFor(ctx, defaultTimeout)
	if err := c.doJSON(fasthttp.MethodGet, c.baseURL+"/api/account", nil, &account, deadline, true); err != nil {
		return nil, err
	}
	return &account, nil
}

func (c *Client) AcceptChallenge(ctx context.Context, challengeID string) error {
	deadline := c.deadlineFor(ctx, defaultTimeout)
	endpoint := fmt.Sprintf("%s/api/challenge/%s/accept", c.baseURL, challengeID)
	return c.doJSON(fasthttp.MethodPost, endpoint, nil, nil, deadline, true)
}

func (c *Client) DeclineChallenge(ctx context.Context, challengeID, reason string) error {
	deadline := c.deadlineFor(ctx, defaultTimeout)
	endpoint := fmt.Sprintf("%s/api/challenge/%s/decline", c.baseURL, challengeID)
	form := url.Values{}
	if reason != "" {
		form.Set("reason", reason)
	}
	return c.doForm(fasthttp.MethodPost, endpoint, form, deadline)
}

// SendMove plays a move in UCI notation, optionally with a draw offer
// attached.
func (c *Client) SendMove(ctx context.Context, gameID, move string, offerDraw bool) error {
	deadline := c.deadlineFor(ctx, defaultTimeout)
	endpoint := fmt.Sprintf("%s/api/bot/game/%s/move/%s", c.baseURL, gameID, move)
	if offerDraw {
		endpoint += "?offeringDraw=true"
	}
	return c.doJSON(fasthttp.MethodPost, endpoint, nil, nil, deadline, true)
}

func (c *Client) ResignGame(ctx context.Context, gameID string) error {
	deadline := c.deadlineFor(ctx, defaultTimeout)
	endpoint := fmt.Sprintf("%s/api/bot/game/%s/resign", c.baseURL, gameID)
	return c.doJSON(fasthttp.MethodPost, endpoint, nil, nil, deadline, false)
}

func (c *Client) AbortGame(ctx context.Context, gameID string) error {
	deadline := c.deadlineFor(ctx, defaultTimeout)
	endpoint := fmt.Sprintf("%s/api/bot/game/%s/abort", c.baseURL, gameID)
	return c.doJSON(fasthttp.MethodPost, endpoint, nil, nil, deadline, false)
}

// SendChat posts a chat message to the player or spectator room.
func (c *Client) SendChat(ctx context.Context, gameID, room, text string) error {
	deadline := c.deadlineFor(ctx, defaultTimeout)
	endpoint := fmt.Sprintf("%s/api/bot/game/%s/chat", c.baseURL, gameID)
	form := url.Values{}
	form.Set("room", room)
	form.Set("text", text)
	return c.doForm(fasthttp.MethodPost, endpoint, form, deadline)
}

// OpeningExplorer queries the game statistics for a position, scoped to
// one player's games with one color.
func (c *Client) OpeningExplorer(ctx context.Context, q liapi.ExplorerQuery, timeout time.Duration) (*liapi.ExplorerResponse, error) {
	params := url.Values{}
	params.Set("variant", "standard")
	params.Set("fen", q.FEN)
	params.Set("player", q.Player)
	params.Set("color", q.Color)
	params.Set("recentGames", "0")
	endpoint := c.explorerURL + "/player?" + params.Encode()
	var resp liapi.ExplorerResponse
	deadline := c.deadlineFor(ctx, timeout)
	if err := c.doJSON(fasthttp.MethodGet, endpoint, nil, &resp, deadline, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CloudEval queries the cached lichess analysis for a position.
func (c *Client) CloudEval(ctx context.Context, fen string, timeout time.Duration) (*liapi.CloudEvalResponse, error) {
	var resp liapi.CloudEvalResponse
	if hit, err := c.cache.GetCloudEval(ctx, fen, &resp); err != nil {
		obslog.L().Warn("cloud eval cache read failed", zap.Error(err))
	} else if hit {
		return &resp, nil
	}

	endpoint := fmt.Sprintf("%s/api/cloud-eval?fen=%s", c.baseURL, url.QueryEscape(fen))
	deadline := c.deadlineFor(ctx, timeout)
	if err := c.doJSON(fasthttp.MethodGet, endpoint, nil, &resp, deadline, false); err != nil {
		return nil, err
	}
	if resp.Error == "" {
		if err := c.cache.PutCloudEval(ctx, fen, &resp); err != nil {
			obslog.L().Warn("cloud eval cache write failed", zap.Error(err))
		}
	}
	return &resp, nil
}

// Tablebase queries the online endgame tablebase for a position.
func (c *Client) Tablebase(ctx context.Context, fen string, timeout time.Duration) (*liapi.TablebaseResponse, error) {
	var resp liapi.TablebaseResponse
	if hit, err := c.cache.GetTablebase(ctx, fen, &resp); err != nil {
		obslog.L().Warn("tablebase cache read failed", zap.Error(err))
	} else if hit {
		return &resp, nil
	}

	endpoint := fmt.Sprintf("%s/standard?fen=%s", c.tablebaseURL, url.QueryEscape(fen))
	deadline := c.deadlineFor(ctx, timeout)
	if err := c.doJSON(fasthttp.MethodGet, endpoint, nil, &resp, deadline, false); err != nil {
		return nil, err
	}
	if err := c.cache.PutTablebase(ctx, fen, &resp); err != nil {
		obslog.L().Warn("tablebase cache write failed", zap.Error(err))
	}
	return &resp, nil
}

func (c *Client) doForm(method, endpoint string, form url.Values, deadline time.Time) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(endpoint)
	req.Header.SetContentType("application/x-www-form-urlencoded")
	c.setAuth(req)
	req.SetBodyString(form.Encode())

	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if status := resp.StatusCode(); status < 200 || status >= 300 {
		return fmt.Errorf("lichess api error: status=%d body=%s", status, truncate(string(resp.Body()), 512))
	}
	return nil
}

func (c *Client) doJSON(method, endpoint string, in, out any, deadline time.Time, retry bool) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(endpoint)
	req.Header.SetContentType("application/json")
	c.setAuth(req)

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry {
		attempts = retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := c.http.DoDeadline(req, resp, deadline)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			if attempt == attempts || time.Until(deadline) < backoffDuration(attempt) {
				return lastErr
			}
			time.Sleep(backoffDuration(attempt))
			continue
		}

		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			lastErr = fmt.Errorf("lichess api error: status=%d body=%s", status, truncate(string(resp.Body()), 512))
			if attempt == attempts || !shouldRetryStatus(status) {
				return lastErr
			}
			time.Sleep(backoffDuration(attempt))
			continue
		}

		if out != nil {
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}
	return lastErr
}

func (c *Client) setAuth(req *fasthttp.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("User-Agent", c.userAgent)
}

// deadlineFor clamps the per-call budget to the context deadline.
func (c *Client) deadlineFor(ctx context.Context, budget time.Duration) time.Time {
	deadline := time.Now().Add(budget)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		return dl
	}
	return deadline
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
