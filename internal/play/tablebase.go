package play

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	nchess "github.com/corentings/chess/v2"
	"go.uber.org/zap"

	"github.com/gambitworks/squire/internal/config"
	"github.com/gambitworks/squire/internal/obslog"
)

// ErrPositionNotCovered is returned by a prober for positions outside
// the tablebase's piece range or missing table files.
var ErrPositionNotCovered = errors.New("position not covered by tablebase")

// DistanceProber probes a proven distance for a position, from the
// point of view of the side to move. Positive means the side to move
// wins. Syzygy probers report distance to zeroing, gaviota probers
// distance to mate; the selector treats both the same way.
type DistanceProber interface {
	MaxPieces() int
	Probe(ctx context.Context, fen string) (int, error)
}

// LocalTablebaseSource picks the proven-best move by probing every
// legal successor against a local tablebase.
type LocalTablebaseSource struct {
	kind   SourceKind
	cfg    config.TablebaseConfig
	prober DistanceProber
	rng    *rand.Rand
}

func NewSyzygySource(cfg config.TablebaseConfig, prober DistanceProber, seed int64) *LocalTablebaseSource {
	return &LocalTablebaseSource{kind: SourceSyzygy, cfg: cfg, prober: prober, rng: rand.New(rand.NewSource(seed))}
}

func NewGaviotaSource(cfg config.TablebaseConfig, prober DistanceProber, seed int64) *LocalTablebaseSource {
	return &LocalTablebaseSource{kind: SourceGaviota, cfg: cfg, prober: prober, rng: rand.New(rand.NewSource(seed))}
}

func (t *LocalTablebaseSource) Kind() SourceKind { return t.kind }

func (t *LocalTablebaseSource) maxPieces() int {
	limit := t.cfg.MaxPieces
	if t.prober.MaxPieces() < limit {
		limit = t.prober.MaxPieces()
	}
	return limit
}

func (t *LocalTablebaseSource) TryMove(ctx context.Context, s *GameSession) (*MoveCandidate, error) {
	if !t.cfg.Enabled || !t.cfg.InstantPlay || t.prober == nil {
		return nil, nil
	}
	if s.PieceCount() > t.maxPieces() || hasCastlingRights(s.FEN()) {
		return nil, nil
	}

	type probed struct {
		move     string
		distance int
	}
	var (
		best      []probed
		bestClass Outcome
		bestComp  int
		found     bool
	)

	for _, mv := range s.Game().ValidMoves() {
		clone := s.Game().Clone()
		uciMove := mv.String()
		if err := clone.PushNotationMove(uciMove, nchess.UCINotation{}, nil); err != nil {
			continue
		}

		distance, class, err := t.scoreSuccessor(ctx, clone)
		if err != nil {
			if errors.Is(err, ErrPositionNotCovered) {
				return nil, nil
			}
			obslog.L().Warn("tablebase probe failed",
				zap.String("game_id", s.ID), zap.String("source", string(t.kind)), zap.Error(err))
			return nil, nil
		}

		comp := BiasAtZeroClock(distance, halfmoveClockFromFEN(clone.FEN()), class)
		switch {
		case !found || class > bestClass || (class == bestClass && comp < bestComp):
			best = []probed{{uciMove, distance}}
			bestClass = class
			bestComp = comp
			found = true
		case class == bestClass && comp == bestComp:
			best = append(best, probed{uciMove, distance})
		}
	}
	if !found {
		return nil, nil
	}

	// In a won position never walk into a repetition; in a drawn or
	// lost one repeating costs nothing.
	if bestClass > OutcomeDraw {
		kept := best[:0:0]
		for _, p := range best {
			if !s.WouldRepeat(p.move) {
				kept = append(kept, p)
			}
		}
		if len(kept) == 0 {
			return nil, nil
		}
		best = kept
	}

	choice := best[t.rng.Intn(len(best))]
	label := "Syzygy"
	metric := "dtz"
	if t.kind == SourceGaviota {
		label = "Gaviota"
		metric = "dtm"
	}
	return &MoveCandidate{
		Move:           choice.move,
		Kind:           t.kind,
		OfferDraw:      bestClass == OutcomeDraw,
		Resign:         bestClass == OutcomeLoss,
		SuppressPonder: true,
		Comment: fmt.Sprintf("%s: %s (%s, %s %d)",
			label, s.SAN(choice.move), bestClass, metric, choice.distance),
	}, nil
}

// scoreSuccessor evaluates the position after one of our moves, from
// our point of view. Terminal positions are decided without probing.
func (t *LocalTablebaseSource) scoreSuccessor(ctx context.Context, clone *nchess.Game) (int, Outcome, error) {
	if clone.Outcome() != nchess.NoOutcome {
		if clone.Method() == nchess.Checkmate {
			// The game is over on the spot; no distance remains.
			return 0, OutcomeWin, nil
		}
		return 0, OutcomeDraw, nil
	}

	theirs, err := t.prober.Probe(ctx, clone.FEN())
	if err != nil {
		return 0, OutcomeDraw, err
	}
	distance := -theirs
	return distance, Classify(distance, halfmoveClockFromFEN(clone.FEN())), nil
}
