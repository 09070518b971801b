package gamehub

import (
	"testing"

	"github.com/gambitworks/squire/internal/config"
	"github.com/gambitworks/squire/pkg/liapi"
)

func testChallengeConfig() config.ChallengeConfig {
	return config.ChallengeConfig{
		Concurrency:  2,
		AcceptRated:  true,
		AcceptCasual: true,
		Variants:     []string{"standard"},
		MinInitial:   60,
		MaxInitial:   10800,
		MinIncrement: 0,
		MaxIncrement: 180,
	}
}

func standardChallenge() *liapi.Challenge {
	return &liapi.Challenge{
		ID:          "abc",
		Challenger:  liapi.ChallengeUser{ID: "foe", Name: "Foe"},
		Variant:     liapi.Variant{Key: "standard"},
		Rated:       true,
		TimeControl: liapi.TimeControl{Type: "clock", Limit: 300, Increment: 3},
	}
}

func TestChallengeValidator(t *testing.T) {
	cases := []struct {
		name       string
		mutate     func(*config.ChallengeConfig, *liapi.Challenge)
		active     int
		wantOK     bool
		wantReason string
	}{
		{
			name:   "standard rated blitz accepted",
			mutate: func(*config.ChallengeConfig, *liapi.Challenge) {},
			wantOK: true,
		},
		{
			name:       "at concurrency limit",
			mutate:     func(*config.ChallengeConfig, *liapi.Challenge) {},
			active:     2,
			wantReason: declineLater,
		},
		{
			name: "unsupported variant",
			mutate: func(_ *config.ChallengeConfig, ch *liapi.Challenge) {
				ch.Variant.Key = "crazyhouse"
			},
			wantReason: declineVariant,
		},
		{
			name: "rated refused when casual only",
			mutate: func(cfg *config.ChallengeConfig, _ *liapi.Challenge) {
				cfg.AcceptRated = false
			},
			wantReason: declineCasual,
		},
		{
			name: "casual refused when rated only",
			mutate: func(cfg *config.ChallengeConfig, ch *liapi.Challenge) {
				cfg.AcceptCasual = false
				ch.Rated = false
			},
			wantReason: declineRated,
		},
		{
			name: "correspondence has no clock",
			mutate: func(_ *config.ChallengeConfig, ch *liapi.Challenge) {
				ch.TimeControl = liapi.TimeControl{Type: "unlimited"}
			},
			wantReason: declineTimeControl,
		},
		{
			name: "too fast",
			mutate: func(_ *config.ChallengeConfig, ch *liapi.Challenge) {
				ch.TimeControl.Limit = 30
			},
			wantReason: declineTimeControl,
		},
		{
			name: "increment too large",
			mutate: func(_ *config.ChallengeConfig, ch *liapi.Challenge) {
				ch.TimeControl.Increment = 300
			},
			wantReason: declineTimeControl,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testChallengeConfig()
			ch := standardChallenge()
			tc.mutate(&cfg, ch)

			ok, reason := NewChallengeValidator(cfg).Check(ch, tc.active)
			if ok != tc.wantOK {
				t.Fatalf("ok=%v, want %v (reason=%q)", ok, tc.wantOK, reason)
			}
			if !ok && reason != tc.wantReason {
				t.Fatalf("reason=%q, want %q", reason, tc.wantReason)
			}
		})
	}
}

func TestChallengeValidatorNilChallenge(t *testing.T) {
	ok, reason := NewChallengeValidator(testChallengeConfig()).Check(nil, 0)
	if ok || reason != declineGeneric {
		t.Fatalf("nil challenge: ok=%v reason=%q", ok, reason)
	}
}
