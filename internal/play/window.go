package play

import "github.com/gambitworks/squire/internal/uci"

// mateScoreValue anchors mate scores well outside any centipawn range
// so they are never mistaken for quiet evaluations.
const mateScoreValue = 40000

// ScoreValue collapses an engine score to a single centipawn figure.
// Mates map to the anchor minus the distance, keeping shorter mates
// larger in magnitude than longer ones.
func ScoreValue(sc uci.Score) int {
	if !sc.IsMate {
		return sc.CP
	}
	if sc.Mate > 0 {
		return mateScoreValue - sc.Mate
	}
	return -mateScoreValue - sc.Mate
}

// ScoreWindow is a bounded FIFO of recent evaluations from the bot's
// point of view. Only engine searches push scores; moves served by
// books, databases or tablebases leave the window alone.
type ScoreWindow struct {
	size   int
	values []int
}

// NewScoreWindow returns a window holding the last size scores.
func NewScoreWindow(size int) *ScoreWindow {
	if size < 1 {
		size = 1
	}
	return &ScoreWindow{size: size}
}

// Push appends a score, evicting the oldest once the window is full.
func (w *ScoreWindow) Push(value int) {
	w.values = append(w.values, value)
	if len(w.values) > w.size {
		w.values = w.values[1:]
	}
}

// Full reports whether the window has accumulated size scores.
func (w *ScoreWindow) Full() bool {
	return len(w.values) >= w.size
}

// AllWithin reports whether every held score has magnitude at most limit.
func (w *ScoreWindow) AllWithin(limit int) bool {
	for _, v := range w.values {
		if v > limit || v < -limit {
			return false
		}
	}
	return true
}

// AllAtMost reports whether every held score is at most limit.
func (w *ScoreWindow) AllAtMost(limit int) bool {
	for _, v := range w.values {
		if v > limit {
			return false
		}
	}
	return true
}

// DrawResignEvaluator decides draw offers and resignations from the
// recent evaluation history of a game.
type DrawResignEvaluator struct {
	offerDraw     bool
	drawScore     int
	minGameLength int
	resign        bool
	resignScore   int

	drawWindow   *ScoreWindow
	resignWindow *ScoreWindow
}

// NewDrawResignEvaluator builds an evaluator from the configured
// thresholds. consecutiveDraw and consecutiveResign are the window
// lengths in moves.
func NewDrawResignEvaluator(offerDraw bool, drawScore, consecutiveDraw, minGameLength int,
	resign bool, resignScore, consecutiveResign int) *DrawResignEvaluator {
	return &DrawResignEvaluator{
		offerDraw:     offerDraw,
		drawScore:     drawScore,
		minGameLength: minGameLength,
		resign:        resign,
		resignScore:   resignScore,
		drawWindow:    NewScoreWindow(consecutiveDraw),
		resignWindow:  NewScoreWindow(consecutiveResign),
	}
}

// Observe records one evaluation from the bot's point of view.
func (e *DrawResignEvaluator) Observe(value int) {
	e.drawWindow.Push(value)
	e.resignWindow.Push(value)
}

// ShouldOfferDraw reports whether the recent evaluations justify
// offering a draw at the given full-move number.
func (e *DrawResignEvaluator) ShouldOfferDraw(fullMoveNumber int) bool {
	if !e.offerDraw || fullMoveNumber < e.minGameLength {
		return false
	}
	return e.drawWindow.Full() && e.drawWindow.AllWithin(e.drawScore)
}

// ShouldResign reports whether the recent evaluations justify resigning.
func (e *DrawResignEvaluator) ShouldResign() bool {
	if !e.resign {
		return false
	}
	return e.resignWindow.Full() && e.resignWindow.AllAtMost(e.resignScore)
}
