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

// ChessDBClient queries the chessdb.cn endgame and analysis database.
type ChessDBClient interface {
	Query(ctx context.Context, action, fen string, timeout time.Duration) (*liapi.ChessDBResponse, error)
}

// ChessDBSource plays moves from the chessdb.cn database. The selection
// maps to the database's query actions: good asks for the best known
// move, all accepts any known move, pv follows the stored analysis line.
type ChessDBSource struct {
	cfg    config.ChessDBConfig
	client ChessDBClient
}

func NewChessDBSource(cfg config.ChessDBConfig, client ChessDBClient) *ChessDBSource {
	return &ChessDBSource{cfg: cfg, client: client}
}

func (c *ChessDBSource) Kind() SourceKind { return SourceChessDB }

func (c *ChessDBSource) action() string {
	switch c.cfg.Selection {
	case config.SelectionAll:
		return "query"
	case config.SelectionPV:
		return "querypv"
	default:
		return "querybest"
	}
}

func (c *ChessDBSource) TryMove(ctx context.Context, s *GameSession) (*MoveCandidate, error) {
	// Tablebase territory: with seven or fewer pieces the local and
	// online tablebases further down the chain give proven answers,
	// so the database is not consulted at all.
	if s.PieceCount() <= onlineEGTBMaxPieces {
		return nil, nil
	}
	gate := Gate{Enabled: c.cfg.Enabled, MaxDepth: c.cfg.MaxDepth, MinTimeSec: c.cfg.MinTime}
	if !gate.Allows(s, &s.ChessDB) {
		return nil, nil
	}

	timeout := time.Duration(c.cfg.Timeout) * time.Second
	resp, err := c.client.Query(ctx, c.action(), s.FEN(), timeout)
	if err != nil {
		// Clock debit only; a stalled server does not count against
		// the source.
		s.ReduceOwnTime(timeout.Milliseconds())
		obslog.L().Warn("chessdb query failed",
			zap.String("game_id", s.ID), zap.Error(err))
		return nil, nil
	}

	if resp.Status != "ok" {
		s.ChessDB.Miss()
		return nil, nil
	}
	// Responses without a depth pass: the database only omits it for
	// positions it has analysed exhaustively.
	depth := 50
	if resp.Depth != nil {
		depth = *resp.Depth
	}
	if depth < c.cfg.MinEvalDepth {
		s.ChessDB.Miss()
		return nil, nil
	}

	s.ChessDB.Reset()
	move := resp.Move
	if move == "" && len(resp.PV) > 0 {
		move = resp.PV[0]
	}
	if move == "" || !s.IsLegal(move) || s.WouldRepeat(move) {
		s.ChessDB.Miss()
		return nil, nil
	}

	candidate := &MoveCandidate{Move: move, Kind: SourceChessDB}
	// The pv action carries a side-to-move evaluation; surface it in
	// the comment.
	if c.cfg.Selection == config.SelectionPV && resp.Depth != nil {
		candidate.Comment = fmt.Sprintf("ChessDB: %s (depth %d, %s)",
			s.SAN(move), depth, formatValue(resp.Score))
	} else {
		candidate.Comment = fmt.Sprintf("ChessDB: %s", s.SAN(move))
	}
	return candidate, nil
}
