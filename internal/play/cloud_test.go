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

type fakeCloud struct {
	resp *liapi.CloudEvalResponse
	err  error
}

func (f *fakeCloud) CloudEval(_ context.Context, _ string, _ time.Duration) (*liapi.CloudEvalResponse, error) {
	return f.resp, f.err
}

func cloudCfg() config.CloudConfig {
	return config.CloudConfig{
		OnlineSourceConfig: config.OnlineSourceConfig{Enabled: true, Timeout: 3},
		MinEvalDepth:       20,
	}
}

func TestCloudCommentScoreIsFromOurPointOfView(t *testing.T) {
	// Cloud scores are white-relative; playing black flips the sign in
	// the spectator comment. The score goes nowhere else.
	asBlack := newTestSession(t, sessionFixture{
		moves:     "e2e4",
		initialMS: 600000, whiteMS: 120000, blackMS: 120000,
		botWhite: false,
	})
	client := &fakeCloud{resp: &liapi.CloudEvalResponse{
		Depth: 25,
		PVs:   []liapi.CloudPV{{Moves: "c7c5 g1f3", CP: 40}},
	}}
	src := NewCloudSource(cloudCfg(), client, false)

	candidate, err := src.TryMove(context.Background(), asBlack)
	require.NoError(t, err)
	require.NotNil(t, candidate)
	assert.Equal(t, "c7c5", candidate.Move)
	assert.Equal(t, "Cloud: c5 (depth 25, -0.40)", candidate.Comment)
}

func TestCloudTransportFailureDebitsClockOnly(t *testing.T) {
	s := midgameSession(t)
	client := &fakeCloud{err: errors.New("connection reset")}
	src := NewCloudSource(cloudCfg(), client, false)

	candidate, err := src.TryMove(context.Background(), s)
	require.NoError(t, err)
	assert.Nil(t, candidate)
	assert.Equal(t, int64(120000-3000), s.WhiteMS)
	assert.Zero(t, s.Cloud.Misses(), "a lost query is not a miss")
}

func TestCloudRejectsShallowAnalysis(t *testing.T) {
	s := midgameSession(t)
	client := &fakeCloud{resp: &liapi.CloudEvalResponse{
		Depth: 12,
		PVs:   []liapi.CloudPV{{Moves: "g1f3", CP: 30}},
	}}
	src := NewCloudSource(cloudCfg(), client, false)

	candidate, err := src.TryMove(context.Background(), s)
	require.NoError(t, err)
	assert.Nil(t, candidate)
	assert.Equal(t, 1, s.Cloud.Misses())
}

func TestCloudSkippedWhenBooksConfigured(t *testing.T) {
	s := midgameSession(t)
	cfg := cloudCfg()
	cfg.OnlyWithoutBook = true
	src := NewCloudSource(cfg, &fakeCloud{}, true)

	candidate, err := src.TryMove(context.Background(), s)
	require.NoError(t, err)
	assert.Nil(t, candidate)
	assert.Zero(t, s.Cloud.Misses(), "a configured skip is not a miss")
}

func TestCloudMissPayloadCountsAsMiss(t *testing.T) {
	s := midgameSession(t)
	client := &fakeCloud{resp: &liapi.CloudEvalResponse{Error: "Not found"}}
	src := NewCloudSource(cloudCfg(), client, false)

	candidate, err := src.TryMove(context.Background(), s)
	require.NoError(t, err)
	assert.Nil(t, candidate)
	assert.Equal(t, 1, s.Cloud.Misses())
}
