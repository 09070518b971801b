package play

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gambitworks/squire/internal/config"
	"github.com/gambitworks/squire/pkg/liapi"
)

type fakeExplorer struct {
	calls     int
	lastQuery liapi.ExplorerQuery
	resp      *liapi.ExplorerResponse
	err       error
}

func (f *fakeExplorer) OpeningExplorer(_ context.Context, q liapi.ExplorerQuery, _ time.Duration) (*liapi.ExplorerResponse, error) {
	f.calls++
	f.lastQuery = q
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func explorerCfg() config.ExplorerConfig {
	return config.ExplorerConfig{
		OnlineSourceConfig: config.OnlineSourceConfig{Enabled: true, MinTime: 0, Timeout: 5},
		MinGames:           5,
		Selection:          config.SelectionPerformance,
	}
}

func midgameSession(t *testing.T) *GameSession {
	t.Helper()
	return newTestSession(t, sessionFixture{
		moves:     "e2e4 e7e5",
		initialMS: 600000,
		whiteMS:   120000,
		blackMS:   120000,
		botWhite:  true,
	})
}

func TestExplorerPicksByPerformance(t *testing.T) {
	s := midgameSession(t)
	client := &fakeExplorer{resp: &liapi.ExplorerResponse{
		White: 100, Draws: 50, Black: 60,
		Moves: []liapi.ExplorerMove{
			{UCI: "g1f3", SAN: "Nf3", White: 50, Draws: 20, Black: 30, Performance: 2500},
			{UCI: "f1c4", SAN: "Bc4", White: 30, Draws: 20, Black: 10, Performance: 2650},
		},
	}}
	src := NewExplorerSource(explorerCfg(), client)

	candidate, err := src.TryMove(context.Background(), s)
	require.NoError(t, err)
	require.NotNil(t, candidate)
	assert.Equal(t, "f1c4", candidate.Move)
	assert.Equal(t, "Squire", client.lastQuery.Player, "mines our own games")
	assert.Equal(t, "white", client.lastQuery.Color)
}

func TestExplorerPicksByWinRateForSideToMove(t *testing.T) {
	s := midgameSession(t)
	// Nf3 wins more often for white even though Bc4 scores better
	// overall; with white to move the white rate decides.
	client := &fakeExplorer{resp: &liapi.ExplorerResponse{
		White: 100, Draws: 50, Black: 60,
		Moves: []liapi.ExplorerMove{
			{UCI: "g1f3", SAN: "Nf3", White: 80, Draws: 10, Black: 10, Performance: 2500},
			{UCI: "f1c4", SAN: "Bc4", White: 30, Draws: 70, Black: 0, Performance: 2650},
		},
	}}
	cfg := explorerCfg()
	cfg.Selection = config.SelectionWinRate
	src := NewExplorerSource(cfg, client)

	candidate, err := src.TryMove(context.Background(), s)
	require.NoError(t, err)
	require.NotNil(t, candidate)
	assert.Equal(t, "g1f3", candidate.Move)
}

func TestExplorerAntiMinesOpponentGames(t *testing.T) {
	s := midgameSession(t)
	client := &fakeExplorer{resp: &liapi.ExplorerResponse{
		White: 100, Draws: 50, Black: 60,
		Moves: []liapi.ExplorerMove{
			{UCI: "g1f3", SAN: "Nf3", White: 50, Draws: 20, Black: 30, Performance: 2500},
		},
	}}
	cfg := explorerCfg()
	cfg.Anti = true
	src := NewExplorerSource(cfg, client)

	candidate, err := src.TryMove(context.Background(), s)
	require.NoError(t, err)
	require.NotNil(t, candidate)

	// We play white, so anti asks for the opponent's games as black:
	// lines the opponent has already lost from the other side.
	assert.Equal(t, "Opponent", client.lastQuery.Player)
	assert.Equal(t, "black", client.lastQuery.Color)
}

func TestExplorerTransportFailureDebitsClockOnly(t *testing.T) {
	s := midgameSession(t)
	client := &fakeExplorer{err: errors.New("deadline exceeded")}
	src := NewExplorerSource(explorerCfg(), client)

	before := s.WhiteMS
	for i := 0; i < maxSourceMisses+2; i++ {
		candidate, err := src.TryMove(context.Background(), s)
		require.NoError(t, err)
		assert.Nil(t, candidate)
	}

	// Lost queries cost clock time but never count against the source:
	// it keeps being asked.
	assert.Equal(t, before-int64(maxSourceMisses+2)*5000, s.WhiteMS)
	assert.Equal(t, int64(120000), s.BlackMS)
	assert.Equal(t, 0, s.Explorer.Misses())
	assert.False(t, s.Explorer.Disabled())
	assert.Equal(t, maxSourceMisses+2, client.calls)
}

func TestExplorerTooFewGamesDisablesAfterTenMisses(t *testing.T) {
	s := midgameSession(t)
	client := &fakeExplorer{resp: &liapi.ExplorerResponse{White: 1, Draws: 1, Black: 1}}
	src := NewExplorerSource(explorerCfg(), client)

	candidate, err := src.TryMove(context.Background(), s)
	require.NoError(t, err)
	assert.Nil(t, candidate)
	assert.Equal(t, 1, s.Explorer.Misses())
	assert.Equal(t, int64(120000), s.WhiteMS, "a served response costs nothing")

	for i := 0; i < maxSourceMisses-1; i++ {
		_, err := src.TryMove(context.Background(), s)
		require.NoError(t, err)
	}
	assert.True(t, s.Explorer.Disabled())
	assert.Equal(t, maxSourceMisses, client.calls)

	// Once disabled the source never queries again.
	_, err = src.TryMove(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, maxSourceMisses, client.calls)
}

func TestExplorerTopMoveWithoutWinsCountsAsMiss(t *testing.T) {
	s := midgameSession(t)
	client := &fakeExplorer{resp: &liapi.ExplorerResponse{
		White: 0, Draws: 40, Black: 30,
		Moves: []liapi.ExplorerMove{
			{UCI: "g1f3", SAN: "Nf3", White: 0, Draws: 40, Black: 30, Performance: 2400},
		},
	}}
	cfg := explorerCfg()
	cfg.OnlyWithWins = true
	src := NewExplorerSource(cfg, client)

	candidate, err := src.TryMove(context.Background(), s)
	require.NoError(t, err)
	assert.Nil(t, candidate)
	assert.Equal(t, 1, s.Explorer.Misses())
}

func TestExplorerRepeatingPickResetsThenMisses(t *testing.T) {
	// Position after the knights shuffle home: Nf3 now recreates an
	// earlier position, so the pick is vetoed after the reset.
	s := newTestSession(t, sessionFixture{
		moves:     "g1f3 g8f6 f3g1 f6g8",
		initialMS: 600000,
		whiteMS:   120000,
		blackMS:   120000,
		botWhite:  true,
	})
	s.Explorer.Miss()
	s.Explorer.Miss()

	client := &fakeExplorer{resp: &liapi.ExplorerResponse{
		White: 100, Draws: 50, Black: 60,
		Moves: []liapi.ExplorerMove{
			{UCI: "g1f3", SAN: "Nf3", White: 50, Draws: 20, Black: 30, Performance: 2500},
		},
	}}
	src := NewExplorerSource(explorerCfg(), client)

	candidate, err := src.TryMove(context.Background(), s)
	require.NoError(t, err)
	assert.Nil(t, candidate)

	// Passing the acceptance bar wiped the two old misses before the
	// repetition veto added one back.
	assert.Equal(t, 1, s.Explorer.Misses())
}
