package play

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gambitworks/squire/internal/config"
	"github.com/gambitworks/squire/internal/obslog"
	"github.com/gambitworks/squire/pkg/liapi"
)

// ExplorerClient queries the lichess opening explorer. The deadline is a
// hard cap: the call must return, one way or the other, within it.
type ExplorerClient interface {
	OpeningExplorer(ctx context.Context, q liapi.ExplorerQuery, timeout time.Duration) (*liapi.ExplorerResponse, error)
}

// ExplorerSource picks moves from the opening explorer statistics of
// previously played games. Normally it mines our own games; with anti
// set it mines the opponent's games with the opposite color instead,
// steering into lines the opponent has fared badly in.
type ExplorerSource struct {
	cfg    config.ExplorerConfig
	client ExplorerClient
}

func NewExplorerSource(cfg config.ExplorerConfig, client ExplorerClient) *ExplorerSource {
	return &ExplorerSource{cfg: cfg, client: client}
}

func (e *ExplorerSource) Kind() SourceKind { return SourceExplorer }

// query decides whose games to mine: ours, or the opponent's in anti
// mode.
func (e *ExplorerSource) query(s *GameSession) liapi.ExplorerQuery {
	q := liapi.ExplorerQuery{FEN: s.FEN(), Color: "white", Player: s.WhiteName}
	if s.IsWhite == e.cfg.Anti {
		q.Color = "black"
		q.Player = s.BlackName
	}
	return q
}

func (e *ExplorerSource) TryMove(ctx context.Context, s *GameSession) (*MoveCandidate, error) {
	gate := Gate{Enabled: e.cfg.Enabled, MaxDepth: e.cfg.MaxDepth, MinTimeSec: e.cfg.MinTime}
	if !gate.Allows(s, &s.Explorer) {
		return nil, nil
	}

	timeout := time.Duration(e.cfg.Timeout) * time.Second
	resp, err := e.client.OpeningExplorer(ctx, e.query(s), timeout)
	if err != nil {
		// A stalled query costs clock time but says nothing about
		// whether the position is in anyone's repertoire, so the
		// source stays eligible.
		s.ReduceOwnTime(timeout.Milliseconds())
		obslog.L().Warn("explorer query failed",
			zap.String("game_id", s.ID), zap.Error(err))
		return nil, nil
	}

	minGames := int64(e.cfg.MinGames)
	if minGames < 1 {
		minGames = 1
	}
	if resp.TotalGames() < minGames || len(resp.Moves) == 0 {
		s.Explorer.Miss()
		return nil, nil
	}

	top := e.pick(resp.Moves, s.WhiteToMove())
	wins := top.Black
	if s.WhiteToMove() {
		wins = top.White
	}
	if e.cfg.OnlyWithWins && wins == 0 {
		s.Explorer.Miss()
		return nil, nil
	}

	s.Explorer.Reset()
	if !s.IsLegal(top.UCI) || s.WouldRepeat(top.UCI) {
		s.Explorer.Miss()
		return nil, nil
	}

	return &MoveCandidate{
		Move: top.UCI,
		Kind: SourceExplorer,
		Comment: fmt.Sprintf("Explorer: %s (%d games, performance %d)",
			top.SAN, top.White+top.Draws+top.Black, top.Performance),
	}, nil
}

// pick returns the top move under the configured selection policy.
func (e *ExplorerSource) pick(moves []liapi.ExplorerMove, whiteToMove bool) liapi.ExplorerMove {
	best := moves[0]
	bestScore := e.score(moves[0], whiteToMove)
	for _, mv := range moves[1:] {
		if score := e.score(mv, whiteToMove); score > bestScore {
			best = mv
			bestScore = score
		}
	}
	return best
}

func (e *ExplorerSource) score(mv liapi.ExplorerMove, whiteToMove bool) float64 {
	if e.cfg.Selection == config.SelectionWinRate {
		games := mv.White + mv.Draws + mv.Black
		if games == 0 {
			return 0
		}
		wins := mv.Black
		if whiteToMove {
			wins = mv.White
		}
		return float64(wins) / float64(games)
	}
	return float64(mv.Performance)
}
