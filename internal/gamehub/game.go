package gamehub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gambitworks/squire/internal/archive"
	"github.com/gambitworks/squire/internal/config"
	"github.com/gambitworks/squire/internal/lichess"
	"github.com/gambitworks/squire/internal/obslog"
	"github.com/gambitworks/squire/internal/play"
	"github.com/gambitworks/squire/internal/uci"
	"github.com/gambitworks/squire/pkg/liapi"
)

// errGameFinished stops the game stream cleanly once the game is over.
var errGameFinished = errors.New("game finished")

// GameWorker plays one game from its stream. A worker owns one engine
// session for the duration of the game and returns it to the pool when
// done.
type GameWorker struct {
	client *lichess.Client
	cfg    *config.AppConfig
	botID  string

	engine  *uci.Session
	sources []play.MoveSource
	repo    archive.Repository

	traceID   string
	gameID    string
	startedAt time.Time

	session *play.GameSession
	decider *play.Decider
	ctx     context.Context
}

// NewGameWorker wires a worker for one game. sources is the fallback
// chain consulted before the engine, in order.
func NewGameWorker(client *lichess.Client, cfg *config.AppConfig, botID string,
	engine *uci.Session, sources []play.MoveSource, repo archive.Repository) *GameWorker {
	return &GameWorker{
		client:  client,
		cfg:     cfg,
		botID:   botID,
		engine:  engine,
		sources: sources,
		repo:    repo,
	}
}

// Run streams the game to completion. The returned error is nil for a
// normally finished game.
func (w *GameWorker) Run(ctx context.Context, gameID string) error {
	w.ctx = ctx
	w.gameID = gameID
	w.traceID = uuid.NewString()
	w.startedAt = time.Now()

	log := obslog.L().With(zap.String("game_id", gameID), zap.String("trace_id", w.traceID))
	log.Info("game started")

	if err := w.engine.NewGame(ctx); err != nil {
		return fmt.Errorf("reset engine: %w", err)
	}
	// The engine goes back to the pool when the stream ends; a search
	// left running would burn CPU under the next game.
	defer func() {
		if w.engine.Pondering() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := w.engine.StopAnalysis(stopCtx); err != nil {
				log.Warn("stop analysis on exit failed", zap.Error(err))
			}
			cancel()
		}
	}()

	err := w.client.StreamGame(ctx, gameID, w)
	if errors.Is(err, errGameFinished) {
		err = nil
	}
	if err != nil {
		log.Error("game stream failed", zap.Error(err))
		return err
	}
	log.Info("game finished")
	return nil
}

func (w *GameWorker) OnGameFull(full *liapi.GameFull) error {
	session, err := play.NewGameSession(full, w.botID, w.cfg.MoveOverheadMultiplier)
	if err != nil {
		return fmt.Errorf("build game session: %w", err)
	}
	w.session = session

	engineCfg := w.cfg.Engine
	evaluator := play.NewDrawResignEvaluator(
		engineCfg.OfferDraw.Enabled,
		engineCfg.OfferDraw.Score,
		engineCfg.OfferDraw.ConsecutiveMoves,
		engineCfg.OfferDraw.MinGameLength,
		engineCfg.Resign.Enabled,
		engineCfg.Resign.Score,
		engineCfg.Resign.ConsecutiveMoves,
	)
	w.decider = play.NewDecider(w.sources, w.engine, evaluator,
		engineCfg.OfferDraw.Enabled, engineCfg.Resign.Enabled, engineCfg.Ponder)

	obslog.L().Info("game ready",
		zap.String("game_id", session.ID),
		zap.String("white", session.WhiteName),
		zap.String("black", session.BlackName),
		zap.Bool("playing_white", session.IsWhite),
		zap.String("variant", session.Variant))

	if session.Status.Finished() {
		return w.finish()
	}
	if session.IsOurTurn() {
		return w.makeMove()
	}
	w.decider.StartPonder(w.ctx, session)
	return nil
}

func (w *GameWorker) OnGameState(state liapi.GameState) error {
	if w.session == nil {
		return errors.New("gameState before gameFull")
	}
	updated, err := w.session.Update(state)
	if err != nil {
		return fmt.Errorf("apply game state: %w", err)
	}
	if w.session.Status.Finished() {
		return w.finish()
	}
	if !updated {
		return nil
	}
	if w.session.IsOurTurn() {
		return w.makeMove()
	}
	w.decider.StartPonder(w.ctx, w.session)
	return nil
}

func (w *GameWorker) OnChatLine(line liapi.ChatLine) error {
	obslog.L().Debug("chat",
		zap.String("game_id", w.gameID),
		zap.String("room", line.Room),
		zap.String("user", line.Username),
		zap.String("text", line.Text))
	if line.Username != w.botID && strings.EqualFold(strings.TrimSpace(line.Text), "!recent") {
		w.chat(line.Room, w.recentGamesSummary())
	}
	return nil
}

func (w *GameWorker) OnOpponentGone(gone liapi.OpponentGone) error {
	if !gone.Gone {
		return nil
	}
	obslog.L().Info("opponent gone", zap.String("game_id", w.gameID))
	if w.session != nil && abortOnGone(gone, w.session.Ply()) {
		if err := w.client.AbortGame(w.ctx, w.gameID); err != nil {
			obslog.L().Warn("abort failed",
				zap.String("game_id", w.gameID), zap.Error(err))
		}
	}
	return nil
}

// abortOnGone decides whether a vanished opponent ends the game as an
// abort: only before both sides have moved, when no result is at stake.
func abortOnGone(gone liapi.OpponentGone, ply int) bool {
	return gone.Gone && ply < 2
}

// recentGamesSummary renders the last archived games as one chat line.
func (w *GameWorker) recentGamesSummary() string {
	if w.repo == nil {
		return "No game archive is configured."
	}
	ctx, cancel := context.WithTimeout(w.ctx, 5*time.Second)
	defer cancel()
	records, err := w.repo.RecentGames(ctx, 5)
	if err != nil {
		obslog.L().Warn("recent games lookup failed",
			zap.String("game_id", w.gameID), zap.Error(err))
		return ""
	}
	return formatRecentGames(records)
}

func formatRecentGames(records []*archive.Record) string {
	if len(records) == 0 {
		return "No games on record yet."
	}
	parts := make([]string, 0, len(records))
	for _, rec := range records {
		score := "1/2-1/2"
		switch rec.Winner {
		case "white":
			score = "1-0"
		case "black":
			score = "0-1"
		}
		parts = append(parts, fmt.Sprintf("%s %s %s", rec.White, score, rec.Black))
	}
	return "Recent games: " + strings.Join(parts, " | ")
}

func (w *GameWorker) makeMove() error {
	decision, err := w.decider.Decide(w.ctx, w.session)
	if err != nil {
		if errors.Is(err, play.ErrEngineNoMove) {
			// Nothing left to try; concede rather than flag.
			if resignErr := w.client.ResignGame(w.ctx, w.gameID); resignErr != nil {
				obslog.L().Error("resign failed",
					zap.String("game_id", w.gameID), zap.Error(resignErr))
			}
		}
		return err
	}

	if decision.Resign {
		return w.client.ResignGame(w.ctx, w.gameID)
	}
	if err := w.client.SendMove(w.ctx, w.gameID, decision.Move, decision.OfferDraw); err != nil {
		return fmt.Errorf("send move %s: %w", decision.Move, err)
	}
	if decision.Comment != "" {
		w.chat("spectator", decision.Comment)
	}
	return nil
}

// finish announces the result, archives the game and ends the stream.
func (w *GameWorker) finish() error {
	message := w.session.ResultMessage(w.session.Winner)
	w.chat("player", message)
	w.chat("spectator", message)
	w.archiveGame()
	return errGameFinished
}

func (w *GameWorker) chat(room, text string) {
	if text == "" {
		return
	}
	if err := w.client.SendChat(w.ctx, w.gameID, room, text); err != nil {
		obslog.L().Debug("chat send failed",
			zap.String("game_id", w.gameID), zap.Error(err))
	}
}

func (w *GameWorker) archiveGame() {
	if w.repo == nil {
		return
	}
	playedAs := "black"
	if w.session.IsWhite {
		playedAs = "white"
	}
	rec := &archive.Record{
		GameID:    w.gameID,
		TraceID:   w.traceID,
		White:     w.session.WhiteName,
		Black:     w.session.BlackName,
		PlayedAs:  playedAs,
		Variant:   w.session.Variant,
		Status:    string(w.session.Status),
		Winner:    w.session.Winner,
		Result:    w.session.ResultMessage(w.session.Winner),
		Moves:     strings.Join(w.session.Moves(), " "),
		FinalFEN:  w.session.FEN(),
		InitialMS: w.session.InitialMS,
		StartedAt: w.startedAt,
		EndedAt:   time.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := w.repo.InsertGame(ctx, rec); err != nil && !errors.Is(err, archive.ErrDuplicateGame) {
		obslog.L().Warn("archive game failed",
			zap.String("game_id", w.gameID), zap.Error(err))
	}
}
