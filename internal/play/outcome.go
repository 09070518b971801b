package play

// Outcome is a five-way classification of a tablebase-backed position from
// the point of view of the side that just moved.
type Outcome int

const (
	OutcomeLoss        Outcome = -2
	OutcomeBlessedLoss Outcome = -1
	OutcomeDraw        Outcome = 0
	OutcomeCursedWin   Outcome = 1
	OutcomeWin         Outcome = 2
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWin:
		return "win"
	case OutcomeCursedWin:
		return "cursed win"
	case OutcomeDraw:
		return "draw"
	case OutcomeBlessedLoss:
		return "blessed loss"
	case OutcomeLoss:
		return "loss"
	default:
		return "unknown"
	}
}

// Classify turns a signed distance metric (to mate or to the next zeroing
// move) plus the halfmove clock into an outcome under fifty-move-rule
// semantics. A provable win that cannot be converted within the rule clock
// degrades to a cursed win, and symmetrically for losses.
func Classify(distance, halfmoveClock int) Outcome {
	switch {
	case distance > 0:
		if distance+halfmoveClock <= 100 {
			return OutcomeWin
		}
		return OutcomeCursedWin
	case distance < 0:
		if distance-halfmoveClock >= -100 {
			return OutcomeLoss
		}
		return OutcomeBlessedLoss
	default:
		return OutcomeDraw
	}
}

// BiasAtZeroClock returns the comparison distance for a DTZ value. When a
// move resets the halfmove clock the raw distance ties with non-resetting
// moves; the ±10000 offset forces those ties to resolve toward the move that
// actually banks the rule-clock reset. The reported distance stays unbiased.
func BiasAtZeroClock(distance, halfmoveClock int, class Outcome) int {
	if halfmoveClock != 0 {
		return distance
	}
	if class < 0 {
		return distance + 10000
	}
	if class > 0 {
		return distance - 10000
	}
	return distance
}
