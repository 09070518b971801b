package lichess

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/gambitworks/squire/internal/obslog"
	"github.com/gambitworks/squire/pkg/liapi"
)

// streamBufferSize bounds one ndjson line; gameFull payloads with long
// move lists are the largest we see.
const streamBufferSize = 1 << 20

// GameStreamHandler receives the typed entries of one game's ndjson
// stream in arrival order.
type GameStreamHandler interface {
	OnGameFull(full *liapi.GameFull) error
	OnGameState(state liapi.GameState) error
	OnChatLine(line liapi.ChatLine) error
	OnOpponentGone(gone liapi.OpponentGone) error
}

// The streaming endpoints hold a connection open indefinitely, so they
// run over net/http rather than the pooled request/response client.
var streamHTTP = &http.Client{}

// StreamEvents consumes the account event stream, invoking handle for
// every entry. It returns when the stream ends or ctx is cancelled.
func (c *Client) StreamEvents(ctx context.Context, handle func(liapi.Event) error) error {
	body, err := c.openStream(ctx, c.baseURL+"/api/stream/event")
	if err != nil {
		return err
	}
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 4096), streamBufferSize)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue // keep-alive
		}
		var event liapi.Event
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			obslog.L().Warn("malformed event stream entry", zap.Error(err))
			continue
		}
		if err := handle(event); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("event stream: %w", err)
	}
	return nil
}

// StreamGame consumes one game's stream, dispatching entries to the
// handler by type.
func (c *Client) StreamGame(ctx context.Context, gameID string, handler GameStreamHandler) error {
	body, err := c.openStream(ctx, fmt.Sprintf("%s/api/bot/game/stream/%s", c.baseURL, gameID))
	if err != nil {
		return err
	}
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 4096), streamBufferSize)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := dispatchGameLine([]byte(line), handler); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("game stream %s: %w", gameID, err)
	}
	return nil
}

func dispatchGameLine(line []byte, handler GameStreamHandler) error {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(line, &probe); err != nil {
		obslog.L().Warn("malformed game stream entry", zap.Error(err))
		return nil
	}

	switch probe.Type {
	case "gameFull":
		var full liapi.GameFull
		if err := json.Unmarshal(line, &full); err != nil {
			return fmt.Errorf("decode gameFull: %w", err)
		}
		return handler.OnGameFull(&full)
	case "gameState":
		var state liapi.GameState
		if err := json.Unmarshal(line, &state); err != nil {
			return fmt.Errorf("decode gameState: %w", err)
		}
		return handler.OnGameState(state)
	case "chatLine":
		var chat liapi.ChatLine
		if err := json.Unmarshal(line, &chat); err != nil {
			return nil
		}
		return handler.OnChatLine(chat)
	case "opponentGone":
		var gone liapi.OpponentGone
		if err := json.Unmarshal(line, &gone); err != nil {
			return nil
		}
		return handler.OnOpponentGone(gone)
	default:
		return nil
	}
}

func (c *Client) openStream(ctx context.Context, endpoint string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := streamHTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("open stream: status=%d", resp.StatusCode)
	}
	return resp.Body, nil
}
