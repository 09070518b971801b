package play

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gambitworks/squire/internal/config"
	"github.com/gambitworks/squire/internal/obslog"
	"github.com/gambitworks/squire/internal/uci"
	"github.com/gambitworks/squire/pkg/liapi"
)

// CloudEvalClient queries the lichess cloud evaluation database.
type CloudEvalClient interface {
	CloudEval(ctx context.Context, fen string, timeout time.Duration) (*liapi.CloudEvalResponse, error)
}

// CloudSource plays the first move of a deep enough cached cloud
// analysis line.
type CloudSource struct {
	cfg    config.CloudConfig
	client CloudEvalClient

	// hasBook mirrors whether opening books are configured; with
	// only_without_book set, the cloud is skipped in that case.
	hasBook bool
}

func NewCloudSource(cfg config.CloudConfig, client CloudEvalClient, hasBook bool) *CloudSource {
	return &CloudSource{cfg: cfg, client: client, hasBook: hasBook}
}

func (c *CloudSource) Kind() SourceKind { return SourceCloud }

func (c *CloudSource) TryMove(ctx context.Context, s *GameSession) (*MoveCandidate, error) {
	if c.cfg.OnlyWithoutBook && c.hasBook {
		return nil, nil
	}
	gate := Gate{Enabled: c.cfg.Enabled, MaxDepth: c.cfg.MaxDepth, MinTimeSec: c.cfg.MinTime}
	if !gate.Allows(s, &s.Cloud) {
		return nil, nil
	}

	timeout := time.Duration(c.cfg.Timeout) * time.Second
	resp, err := c.client.CloudEval(ctx, s.FEN(), timeout)
	if err != nil {
		// Transport trouble costs clock time; the cache may well have
		// the position next turn, so no miss is charged.
		s.ReduceOwnTime(timeout.Milliseconds())
		obslog.L().Warn("cloud eval query failed",
			zap.String("game_id", s.ID), zap.Error(err))
		return nil, nil
	}

	if resp.Error != "" || resp.Depth < c.cfg.MinEvalDepth || len(resp.PVs) == 0 {
		s.Cloud.Miss()
		return nil, nil
	}

	s.Cloud.Reset()
	pv := resp.PVs[0]
	moves := strings.Fields(pv.Moves)
	if len(moves) == 0 {
		s.Cloud.Miss()
		return nil, nil
	}
	move := moves[0]
	if !s.IsLegal(move) || s.WouldRepeat(move) {
		s.Cloud.Miss()
		return nil, nil
	}

	// Cloud scores are from white's point of view.
	score := uci.Score{CP: pv.CP}
	if pv.Mate != 0 {
		score = uci.Score{Mate: pv.Mate, IsMate: true}
	}
	value := ScoreValue(score)
	if !s.IsWhite {
		value = -value
	}

	return &MoveCandidate{
		Move:    move,
		Kind:    SourceCloud,
		Comment: fmt.Sprintf("Cloud: %s (depth %d, %s)", s.SAN(move), resp.Depth, formatValue(value)),
	}, nil
}

// formatValue renders a score value the way engines report it in chat:
// pawns for quiet positions, mate distance otherwise.
func formatValue(value int) string {
	switch {
	case value > mateScoreValue-1000:
		return fmt.Sprintf("#%d", mateScoreValue-value)
	case value < -mateScoreValue+1000:
		return fmt.Sprintf("#-%d", mateScoreValue+value)
	default:
		return fmt.Sprintf("%+.2f", float64(value)/100.0)
	}
}
