// Package gamehub runs the account event loop and one worker per game.
package gamehub

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gambitworks/squire/internal/archive"
	"github.com/gambitworks/squire/internal/config"
	"github.com/gambitworks/squire/internal/lichess"
	"github.com/gambitworks/squire/internal/obslog"
	"github.com/gambitworks/squire/internal/play"
	"github.com/gambitworks/squire/internal/uci"
	"github.com/gambitworks/squire/pkg/liapi"
)

// streamRetryDelay paces reconnects after the event stream drops.
const streamRetryDelay = 5 * time.Second

// SourceFactory builds a fresh fallback chain for one game. Each game
// gets its own chain so per-game randomness never races.
type SourceFactory func() []play.MoveSource

// Hub consumes the account event stream, vets challenges and runs a
// worker per started game, bounded by the engine pool.
type Hub struct {
	client     *lichess.Client
	cfg        *config.AppConfig
	pool       *uci.Pool
	repo       archive.Repository
	validator  *ChallengeValidator
	newSources SourceFactory
	botID      string

	mu     sync.Mutex
	active map[string]struct{}
}

func New(client *lichess.Client, cfg *config.AppConfig, pool *uci.Pool,
	repo archive.Repository, newSources SourceFactory, botID string) *Hub {
	return &Hub{
		client:     client,
		cfg:        cfg,
		pool:       pool,
		repo:       repo,
		validator:  NewChallengeValidator(cfg.Challenge),
		newSources: newSources,
		botID:      botID,
		active:     make(map[string]struct{}),
	}
}

// Run blocks until ctx is cancelled, reconnecting the event stream as
// needed. Game workers run on an errgroup so a shutdown waits for the
// games in flight.
func (h *Hub) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		for {
			err := h.client.StreamEvents(ctx, func(event liapi.Event) error {
				h.handleEvent(ctx, group, event)
				return nil
			})
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				obslog.L().Warn("event stream dropped", zap.Error(err))
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(streamRetryDelay):
			}
		}
	})

	err := group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (h *Hub) handleEvent(ctx context.Context, group *errgroup.Group, event liapi.Event) {
	switch event.Type {
	case "challenge":
		h.handleChallenge(ctx, event.Challenge)
	case "challengeCanceled", "challengeDeclined":
		if event.Challenge != nil {
			obslog.L().Debug("challenge withdrawn",
				zap.String("challenge_id", event.Challenge.ID), zap.String("event", event.Type))
		}
	case "gameStart":
		if event.Game != nil {
			h.startGame(ctx, group, event.Game.ID)
		}
	case "gameFinish":
		// The worker observes the final state on its own stream.
	default:
		obslog.L().Debug("unhandled event", zap.String("type", event.Type))
	}
}

func (h *Hub) handleChallenge(ctx context.Context, ch *liapi.Challenge) {
	if ch == nil || ch.Challenger.ID == h.botID {
		return
	}
	log := obslog.L().With(
		zap.String("challenge_id", ch.ID),
		zap.String("challenger", ch.Challenger.Name),
		zap.String("variant", ch.Variant.Key),
		zap.Bool("rated", ch.Rated))

	ok, reason := h.validator.Check(ch, h.activeCount())
	if !ok {
		log.Info("declining challenge", zap.String("reason", reason))
		if err := h.client.DeclineChallenge(ctx, ch.ID, reason); err != nil {
			log.Warn("decline failed", zap.Error(err))
		}
		return
	}
	log.Info("accepting challenge")
	if err := h.client.AcceptChallenge(ctx, ch.ID); err != nil {
		log.Warn("accept failed", zap.Error(err))
	}
}

func (h *Hub) startGame(ctx context.Context, group *errgroup.Group, gameID string) {
	h.mu.Lock()
	if _, running := h.active[gameID]; running {
		h.mu.Unlock()
		return
	}
	h.active[gameID] = struct{}{}
	h.mu.Unlock()

	group.Go(func() error {
		defer func() {
			h.mu.Lock()
			delete(h.active, gameID)
			h.mu.Unlock()
		}()

		engine, err := h.pool.Acquire(ctx)
		if err != nil {
			obslog.L().Error("no engine for game",
				zap.String("game_id", gameID), zap.Error(err))
			return nil
		}

		worker := NewGameWorker(h.client, h.cfg, h.botID, engine, h.newSources(), h.repo)
		runErr := worker.Run(ctx, gameID)
		h.pool.Release(engine, runErr)
		if runErr != nil && !errors.Is(runErr, context.Canceled) {
			obslog.L().Error("game worker failed",
				zap.String("game_id", gameID), zap.Error(runErr))
		}
		// A lost game is not a reason to stop the bot.
		return nil
	})
}

func (h *Hub) activeCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.active)
}
