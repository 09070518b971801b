package gamehub

import (
	"github.com/gambitworks/squire/internal/config"
	"github.com/gambitworks/squire/pkg/liapi"
)

// Decline reasons understood by the challenge API.
const (
	declineGeneric     = "generic"
	declineLater       = "later"
	declineVariant     = "variant"
	declineTimeControl = "timeControl"
	declineRated       = "rated"
	declineCasual      = "casual"
)

// ChallengeValidator vets incoming challenges against the configured
// acceptance rules.
type ChallengeValidator struct {
	cfg config.ChallengeConfig
}

func NewChallengeValidator(cfg config.ChallengeConfig) *ChallengeValidator {
	return &ChallengeValidator{cfg: cfg}
}

// Check returns whether the challenge should be accepted, and the
// decline reason otherwise.
func (v *ChallengeValidator) Check(ch *liapi.Challenge, activeGames int) (bool, string) {
	if ch == nil {
		return false, declineGeneric
	}
	if activeGames >= v.cfg.Concurrency {
		return false, declineLater
	}
	if !v.variantAllowed(ch.Variant.Key) {
		return false, declineVariant
	}
	if ch.Rated && !v.cfg.AcceptRated {
		return false, declineCasual
	}
	if !ch.Rated && !v.cfg.AcceptCasual {
		return false, declineRated
	}
	if ch.TimeControl.Type != "clock" {
		return false, declineTimeControl
	}
	tc := ch.TimeControl
	if tc.Limit < v.cfg.MinInitial || tc.Limit > v.cfg.MaxInitial {
		return false, declineTimeControl
	}
	if tc.Increment < v.cfg.MinIncrement || tc.Increment > v.cfg.MaxIncrement {
		return false, declineTimeControl
	}
	return true, ""
}

func (v *ChallengeValidator) variantAllowed(key string) bool {
	for _, variant := range v.cfg.Variants {
		if variant == key {
			return true
		}
	}
	return false
}
