package play

import "github.com/gambitworks/squire/internal/uci"

// minMoveOverheadMS is the floor for the lag compensation subtracted
// from our clock before every search.
const minMoveOverheadMS = 1000

// openingMoveTimeMS is the fixed search time used for each side's first
// move, while the game clock has not started ticking.
const openingMoveTimeMS = 15000

// MoveOverhead computes the per-move lag compensation in milliseconds
// from the game's initial time budget.
func MoveOverhead(initialMS int64, multiplier float64) int64 {
	overhead := int64(float64(initialMS) / 60.0 * multiplier)
	if overhead < minMoveOverheadMS {
		return minMoveOverheadMS
	}
	return overhead
}

// SearchLimits derives the engine time controls for the current position.
// The first move on each side gets a fixed movetime. Afterwards the
// bot's own clock is reduced by the move overhead; if that would leave
// nothing, half the remaining clock is used instead.
func (s *GameSession) SearchLimits() uci.Limits {
	if s.Ply() < 2 {
		return uci.Limits{MoveTimeMillis: openingMoveTimeMS}
	}

	white := s.WhiteMS
	black := s.BlackMS
	if s.IsWhite {
		white -= s.moveOverheadMS
		if white <= 0 {
			white = s.WhiteMS / 2
		}
	} else {
		black -= s.moveOverheadMS
		if black <= 0 {
			black = s.BlackMS / 2
		}
	}

	return uci.Limits{
		WhiteMillis:    white,
		BlackMillis:    black,
		WhiteIncMillis: s.IncrementMS,
		BlackIncMillis: s.IncrementMS,
	}
}
