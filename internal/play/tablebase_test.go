package play

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gambitworks/squire/internal/config"
)

// fakeProber serves distances keyed by FEN, with a default for
// everything else.
type fakeProber struct {
	byFEN       map[string]int
	fallback    int
	fallbackErr error
}

func (f *fakeProber) MaxPieces() int { return 6 }

func (f *fakeProber) Probe(_ context.Context, fen string) (int, error) {
	if d, ok := f.byFEN[fen]; ok {
		return d, nil
	}
	if f.fallbackErr != nil {
		return 0, f.fallbackErr
	}
	return f.fallback, nil
}

func tbConfig() config.TablebaseConfig {
	return config.TablebaseConfig{Enabled: true, MaxPieces: 6, InstantPlay: true}
}

func TestTablebasePrefersMateOverDraw(t *testing.T) {
	// White: Kf6, Qf7. Black: Kh8. Qg7 is mate; the prober calls
	// everything else drawn.
	s := newTestSession(t, sessionFixture{
		initialMS: 600000, whiteMS: 600000, blackMS: 600000, botWhite: true,
		fen: "7k/5Q2/5K2/8/8/8/8/8 w - - 0 1",
	})
	src := NewSyzygySource(tbConfig(), &fakeProber{fallback: 0}, 1)

	candidate, err := src.TryMove(context.Background(), s)
	require.NoError(t, err)
	require.NotNil(t, candidate)
	assert.Equal(t, "f7g7", candidate.Move)
	assert.True(t, candidate.SuppressPonder)
	assert.False(t, candidate.OfferDraw)
	assert.False(t, candidate.Resign)
	// Mate on the board leaves no distance to cover.
	assert.Contains(t, candidate.Comment, "dtz 0")
}

func TestTablebaseDrawnPositionOffersDraw(t *testing.T) {
	s := newTestSession(t, sessionFixture{
		initialMS: 600000, whiteMS: 600000, blackMS: 600000, botWhite: true,
		fen: "8/8/4k3/8/8/4K3/8/4B3 w - - 3 50",
	})
	src := NewSyzygySource(tbConfig(), &fakeProber{fallback: 0}, 1)

	candidate, err := src.TryMove(context.Background(), s)
	require.NoError(t, err)
	require.NotNil(t, candidate)
	assert.True(t, candidate.OfferDraw)
	assert.False(t, candidate.Resign)
}

func TestTablebaseLostPositionResigns(t *testing.T) {
	// Every successor is winning for the opponent.
	s := newTestSession(t, sessionFixture{
		initialMS: 600000, whiteMS: 600000, blackMS: 600000, botWhite: true,
		fen: "7r/8/8/8/8/8/2k5/K7 w - - 4 70",
	})
	src := NewSyzygySource(tbConfig(), &fakeProber{fallback: 8}, 1)

	candidate, err := src.TryMove(context.Background(), s)
	require.NoError(t, err)
	require.NotNil(t, candidate)
	assert.Equal(t, "a1a2", candidate.Move)
	assert.True(t, candidate.Resign)
	assert.False(t, candidate.OfferDraw)
}

func TestTablebaseSkipsOversizedPositions(t *testing.T) {
	s := newTestSession(t, sessionFixture{
		initialMS: 600000, whiteMS: 600000, blackMS: 600000, botWhite: true,
	})
	src := NewSyzygySource(tbConfig(), &fakeProber{fallback: 0}, 1)

	candidate, err := src.TryMove(context.Background(), s)
	require.NoError(t, err)
	assert.Nil(t, candidate, "32 pieces are far outside tablebase range")
}

func TestTablebaseUncoveredPositionFallsThrough(t *testing.T) {
	// K+R vs K successors are live positions, so every one of them
	// actually reaches the prober, which has no table for them.
	s := newTestSession(t, sessionFixture{
		initialMS: 600000, whiteMS: 600000, blackMS: 600000, botWhite: true,
		fen: "8/8/8/8/8/8/R7/K6k w - - 0 1",
	})
	src := NewSyzygySource(tbConfig(), &fakeProber{fallbackErr: ErrPositionNotCovered}, 1)

	candidate, err := src.TryMove(context.Background(), s)
	require.NoError(t, err)
	assert.Nil(t, candidate)
}

func TestTablebaseDisabledWithoutInstantPlay(t *testing.T) {
	cfg := tbConfig()
	cfg.InstantPlay = false
	s := newTestSession(t, sessionFixture{
		initialMS: 600000, whiteMS: 600000, blackMS: 600000, botWhite: true,
		fen: "8/8/4k3/8/8/4K3/8/4B3 w - - 3 50",
	})
	src := NewSyzygySource(cfg, &fakeProber{fallback: 0}, 1)

	candidate, err := src.TryMove(context.Background(), s)
	require.NoError(t, err)
	assert.Nil(t, candidate)
}
