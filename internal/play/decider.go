package play

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/gambitworks/squire/internal/obslog"
	"github.com/gambitworks/squire/internal/uci"
)

// Searcher is the engine surface the decision cycle needs: a bounded
// search plus ponder control.
type Searcher interface {
	Play(ctx context.Context, fen string, moves []string, limits uci.Limits) (uci.PlayResult, error)
	StartAnalysis(ctx context.Context, fen string, moves []string) error
	StopAnalysis(ctx context.Context) error
}

// Decision is the final verdict for one of our turns.
type Decision struct {
	Move      string
	Kind      SourceKind
	OfferDraw bool
	Resign    bool
	Comment   string

	Info    uci.Info
	HasInfo bool
}

// Decider walks the fallback chain for each move: the configured
// sources in order, then the engine. It owns the draw/resign windows
// and the ponder state for one game.
type Decider struct {
	sources   []MoveSource
	engine    Searcher
	evaluator *DrawResignEvaluator

	offerDrawEnabled bool
	resignEnabled    bool

	ponder    bool
	ponderOff bool
}

// NewDecider builds the decision cycle for one game. sources are
// consulted in the given order before falling back to the engine.
func NewDecider(sources []MoveSource, engine Searcher, evaluator *DrawResignEvaluator,
	offerDrawEnabled, resignEnabled, ponder bool) *Decider {
	return &Decider{
		sources:          sources,
		engine:           engine,
		evaluator:        evaluator,
		offerDrawEnabled: offerDrawEnabled,
		resignEnabled:    resignEnabled,
		ponder:           ponder,
	}
}

// Decide produces the move for the session's current position. It must
// only be called on our turn.
func (d *Decider) Decide(ctx context.Context, s *GameSession) (Decision, error) {
	if err := d.engine.StopAnalysis(ctx); err != nil {
		return Decision{}, fmt.Errorf("stop pondering: %w", err)
	}

	for _, source := range d.sources {
		candidate, err := source.TryMove(ctx, s)
		if err != nil {
			return Decision{}, fmt.Errorf("source %s: %w", source.Kind(), err)
		}
		if candidate == nil {
			continue
		}
		return d.accept(s, candidate), nil
	}

	return d.searchMove(ctx, s)
}

// accept turns a source candidate into a decision. The draw/resign
// windows are untouched: they track engine searches only, so a stretch
// of book or cloud moves never triggers an offer.
func (d *Decider) accept(s *GameSession, candidate *MoveCandidate) Decision {
	decision := Decision{
		Move:      candidate.Move,
		Kind:      candidate.Kind,
		Comment:   candidate.Comment,
		OfferDraw: candidate.OfferDraw && d.offerDrawEnabled,
		Resign:    candidate.Resign && d.resignEnabled,
	}
	if candidate.SuppressPonder {
		d.ponderOff = true
	}
	obslog.L().Info("move decided",
		zap.String("game_id", s.ID),
		zap.String("source", string(candidate.Kind)),
		zap.String("move", candidate.Move),
		zap.Bool("offer_draw", decision.OfferDraw),
		zap.Bool("resign", decision.Resign))
	return decision
}

// searchMove is the final fallback: ask the engine. Failure here is
// fatal for the game, there is nothing further down the chain.
func (d *Decider) searchMove(ctx context.Context, s *GameSession) (Decision, error) {
	result, err := d.engine.Play(ctx, s.InitialFEN(), s.Moves(), s.SearchLimits())
	if err != nil {
		return Decision{}, fmt.Errorf("engine search: %w", err)
	}
	if result.BestMove == "" {
		return Decision{}, ErrEngineNoMove
	}

	decision := Decision{
		Move:    result.BestMove,
		Kind:    SourceEngine,
		Info:    result.Info,
		HasInfo: result.HasInfo,
	}
	if result.HasInfo {
		value := ScoreValue(result.Info.Score)
		d.evaluator.Observe(value)
		decision.OfferDraw = d.evaluator.ShouldOfferDraw(s.FullMoveNumber())
		decision.Resign = d.evaluator.ShouldResign()
		decision.Comment = fmt.Sprintf("Engine: %s (depth %d, %s)",
			s.SAN(result.BestMove), result.Info.Depth, formatValue(value))
	} else {
		decision.Comment = fmt.Sprintf("Engine: %s", s.SAN(result.BestMove))
	}
	obslog.L().Info("move decided",
		zap.String("game_id", s.ID),
		zap.String("source", string(SourceEngine)),
		zap.String("move", result.BestMove),
		zap.Int("depth", result.Info.Depth),
		zap.Int64("nodes", result.Info.Nodes),
		zap.Bool("offer_draw", decision.OfferDraw),
		zap.Bool("resign", decision.Resign))
	return decision, nil
}

// StartPonder begins analysing the current position on the opponent's
// time, unless pondering is off for this game.
func (d *Decider) StartPonder(ctx context.Context, s *GameSession) {
	if !d.ponder || d.ponderOff {
		return
	}
	if err := d.engine.StartAnalysis(ctx, s.InitialFEN(), s.Moves()); err != nil {
		obslog.L().Warn("start pondering failed",
			zap.String("game_id", s.ID), zap.Error(err))
	}
}
