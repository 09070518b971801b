package play

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gambitworks/squire/internal/config"
	"github.com/gambitworks/squire/internal/obslog"
	"github.com/gambitworks/squire/pkg/liapi"
)

// onlineEGTBMaxPieces is the coverage of the lichess tablebase service.
const onlineEGTBMaxPieces = 7

// OnlineTablebaseClient queries the lichess endgame tablebase service.
type OnlineTablebaseClient interface {
	Tablebase(ctx context.Context, fen string, timeout time.Duration) (*liapi.TablebaseResponse, error)
}

// OnlineTablebaseSource plays proven endgame moves from the remote
// tablebase. Unlike the other remote sources it has no miss counter:
// once a position is in tablebase range it stays there, so a single
// answer settles the rest of the game.
type OnlineTablebaseSource struct {
	cfg    config.EGTBConfig
	client OnlineTablebaseClient
}

func NewOnlineTablebaseSource(cfg config.EGTBConfig, client OnlineTablebaseClient) *OnlineTablebaseSource {
	return &OnlineTablebaseSource{cfg: cfg, client: client}
}

func (o *OnlineTablebaseSource) Kind() SourceKind { return SourceOnlineEGTB }

func (o *OnlineTablebaseSource) TryMove(ctx context.Context, s *GameSession) (*MoveCandidate, error) {
	if !o.cfg.Enabled || s.PieceCount() > onlineEGTBMaxPieces || hasCastlingRights(s.FEN()) {
		return nil, nil
	}
	if o.cfg.MinTime > 0 && !s.HasTime(o.cfg.MinTime) {
		return nil, nil
	}

	timeout := time.Duration(o.cfg.Timeout) * time.Second
	resp, err := o.client.Tablebase(ctx, s.FEN(), timeout)
	if err != nil {
		s.ReduceOwnTime(timeout.Milliseconds())
		obslog.L().Warn("online tablebase query failed",
			zap.String("game_id", s.ID), zap.Error(err))
		return nil, nil
	}
	if len(resp.Moves) == 0 {
		return nil, nil
	}

	// Moves come back ordered best-first for the side to move.
	best := resp.Moves[0]
	if !s.IsLegal(best.UCI) {
		return nil, nil
	}

	candidate := &MoveCandidate{
		Move:    best.UCI,
		Kind:    SourceOnlineEGTB,
		Comment: fmt.Sprintf("EGTB: %s (%s, dtz %d)", best.SAN, resp.Category, resp.DTZ),
	}
	switch resp.Category {
	case "draw", "blessed-loss":
		candidate.OfferDraw = true
	case "loss":
		candidate.Resign = true
	}
	return candidate, nil
}

// hasCastlingRights reads the castling field of a FEN. Tablebases only
// cover positions where no castling is possible.
func hasCastlingRights(fen string) bool {
	fields := strings.Fields(fen)
	return len(fields) >= 3 && fields[2] != "-"
}
