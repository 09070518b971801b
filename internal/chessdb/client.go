// Package chessdb queries the chessdb.cn position database.
package chessdb

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

const defaultBaseURL = "https://www.chessdb.cn/cdb.php"

// Client issues cdb.php queries. Every call is bounded by the caller's
// timeout; the database is best-effort and frequently slow.
type Client struct {
	baseURL string
	http    *fasthttp.Client
	cache   *probecache.Cache
}

type Option func(*Client)

func WithCache(cache *probecache.Cache) Option {
	return func(c *Client) { c.cache = cache }
}

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		http: &fasthttp.Client{
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    5 * time.Second,
			MaxConnsPerHost: 4,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Query runs one cdb.php action (query, querybest, querypv) for a
// position and normalizes the reply.
func (c *Client) Query(ctx context.Context, action, fen string, timeout time.Duration) (*liapi.ChessDBResponse, error) {
	cacheKey := action + ":" + fen
	var resp liapi.ChessDBResponse
	if hit, err := c.cache.GetChessDB(ctx, cacheKey, &resp); err != nil {
		obslog.L().Warn("chessdb cache read failed", zap.Error(err))
	} else if hit {
		return &resp, nil
	}

	endpoint := fmt.Sprintf("%s?action=%s&board=%s&json=1",
		c.baseURL, url.QueryEscape(action), url.QueryEscape(fen))

	body, err := c.fetch(ctx, endpoint, timeout)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode chessdb response: %w", err)
	}

	if resp.Status == "ok" {
		if err := c.cache.PutChessDB(ctx, cacheKey, &resp); err != nil {
			obslog.L().Warn("chessdb cache write failed", zap.Error(err))
		}
	}
	return &resp, nil
}

func (c *Client) fetch(ctx context.Context, endpoint string, timeout time.Duration) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(endpoint)

	deadline := time.Now().Add(timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("chessdb request failed: %w", err)
	}
	if status := resp.StatusCode(); status != fasthttp.StatusOK {
		return nil, fmt.Errorf("chessdb error: status=%d", status)
	}
	return append([]byte(nil), resp.Body()...), nil
}
