package play

import (
	"fmt"
	"strconv"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/gambitworks/squire/pkg/liapi"
)

// GameSession is the mutable per-game state. It is owned by the decision
// cycle: only Update and PushMove mutate it, always from the game's own loop.
type GameSession struct {
	ID        string
	WhiteName string
	BlackName string
	IsWhite   bool
	Variant   string
	Status    Status
	Winner    string

	InitialMS   int64
	IncrementMS int64
	WhiteMS     int64
	BlackMS     int64

	// Per-source consecutive-miss state.
	Book     SourceState
	Explorer SourceState
	Cloud    SourceState
	ChessDB  SourceState

	game           *nchess.Game
	initialFEN     string
	moves          []string
	positionKeys   []string
	moveOverheadMS int64
}

// NewGameSession builds a session from the gameFull stream payload. botID
// decides which side the bot plays.
func NewGameSession(full *liapi.GameFull, botID string, overheadMultiplier float64) (*GameSession, error) {
	s := &GameSession{
		ID:        full.ID,
		WhiteName: full.White.DisplayName(),
		BlackName: full.Black.DisplayName(),
		IsWhite:   full.White.ID == botID,
		Variant:   full.Variant.Key,
		Status:    Status(full.State.Status),
		Winner:    full.State.Winner,
		WhiteMS:   full.State.WhiteTime,
		BlackMS:   full.State.BlackTime,
	}
	if full.Clock != nil {
		s.InitialMS = full.Clock.Initial
		s.IncrementMS = full.Clock.Increment
	}
	s.moveOverheadMS = MoveOverhead(s.InitialMS, overheadMultiplier)

	if fen := strings.TrimSpace(full.InitialFen); fen != "" && fen != "startpos" {
		s.initialFEN = fen
	}

	game, err := buildGame(s.initialFEN, nil)
	if err != nil {
		return nil, err
	}
	s.game = game
	s.positionKeys = []string{repetitionKey(game.FEN())}

	for _, mv := range strings.Fields(full.State.Moves) {
		if err := s.PushMove(mv); err != nil {
			return nil, fmt.Errorf("replay move %q: %w", mv, err)
		}
	}
	return s, nil
}

func buildGame(fen string, moves []string) (*nchess.Game, error) {
	var game *nchess.Game
	if fen == "" {
		game = nchess.NewGame()
	} else {
		option, err := nchess.FEN(fen)
		if err != nil {
			return nil, fmt.Errorf("parse fen %q: %w", fen, err)
		}
		game = nchess.NewGame(option)
	}
	for _, mv := range moves {
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("apply move %q: %w", mv, err)
		}
	}
	return game, nil
}

// PushMove applies a UCI move to the session and records the resulting
// position for repetition tracking.
func (s *GameSession) PushMove(uciMove string) error {
	if err := s.game.PushNotationMove(uciMove, nchess.UCINotation{}, nil); err != nil {
		return fmt.Errorf("push move %q: %w", uciMove, err)
	}
	s.moves = append(s.moves, uciMove)
	s.positionKeys = append(s.positionKeys, repetitionKey(s.game.FEN()))
	return nil
}

// Update applies a gameState stream entry. It reports whether a new move
// arrived; clock and status updates happen either way.
func (s *GameSession) Update(state liapi.GameState) (bool, error) {
	s.Status = Status(state.Status)
	if state.Winner != "" {
		s.Winner = state.Winner
	}

	moves := strings.Fields(state.Moves)
	if len(moves) <= len(s.moves) {
		return false, nil
	}

	if err := s.PushMove(moves[len(moves)-1]); err != nil {
		return false, err
	}
	s.WhiteMS = state.WhiteTime
	s.BlackMS = state.BlackTime
	return true, nil
}

// IsLegal reports whether the move is legal in the current position.
func (s *GameSession) IsLegal(uciMove string) bool {
	clone := s.game.Clone()
	return clone.PushNotationMove(uciMove, nchess.UCINotation{}, nil) == nil
}

// WouldRepeat reports whether playing the move creates a two-fold
// repetition, i.e. a position the game has already been in once.
func (s *GameSession) WouldRepeat(uciMove string) bool {
	clone := s.game.Clone()
	if err := clone.PushNotationMove(uciMove, nchess.UCINotation{}, nil); err != nil {
		return false
	}
	key := repetitionKey(clone.FEN())
	for _, seen := range s.positionKeys {
		if seen == key {
			return true
		}
	}
	return false
}

func (s *GameSession) InitialFEN() string { return s.initialFEN }

func (s *GameSession) Moves() []string { return s.moves }

func (s *GameSession) FEN() string { return s.game.FEN() }

func (s *GameSession) Game() *nchess.Game { return s.game }

// Ply is the number of halfmoves played.
func (s *GameSession) Ply() int { return len(s.moves) }

func (s *GameSession) FullMoveNumber() int { return len(s.moves)/2 + 1 }

func (s *GameSession) WhiteToMove() bool {
	return s.game.Position().Turn() == nchess.White
}

func (s *GameSession) IsOurTurn() bool {
	return s.IsWhite == s.WhiteToMove()
}

// HalfmoveClock is taken from the FEN rather than tracked separately so it
// stays correct for games set up from an arbitrary position.
func (s *GameSession) HalfmoveClock() int {
	return halfmoveClockFromFEN(s.game.FEN())
}

func (s *GameSession) PieceCount() int {
	count := 0
	for _, piece := range s.game.Position().Board().SquareMap() {
		if piece != nchess.NoPiece {
			count++
		}
	}
	return count
}

// RemainingMS is the bot's own clock.
func (s *GameSession) RemainingMS() int64 {
	if s.IsWhite {
		return s.WhiteMS
	}
	return s.BlackMS
}

// HasTime reports whether the bot's clock holds at least minTime seconds.
// The first two plies are exempt: the clocks have not started yet.
func (s *GameSession) HasTime(minTimeSec int) bool {
	if len(s.moves) < 2 {
		return true
	}
	return s.RemainingMS() >= int64(minTimeSec)*1000
}

// ReduceOwnTime debits the bot's clock, modelling wall time burned by a
// stalled remote query.
func (s *GameSession) ReduceOwnTime(ms int64) {
	if s.IsWhite {
		s.WhiteMS -= ms
	} else {
		s.BlackMS -= ms
	}
}

// SAN renders a UCI move in algebraic notation for the current position.
func (s *GameSession) SAN(uciMove string) string {
	pos := s.game.Position()
	move, err := nchess.UCINotation{}.Decode(pos, uciMove)
	if err != nil {
		return uciMove
	}
	return nchess.AlgebraicNotation{}.Encode(pos, move)
}

// ResultMessage renders the game-over summary for a terminal status.
// winner is "white", "black" or empty.
func (s *GameSession) ResultMessage(winner string) string {
	winningName := s.WhiteName
	losingName := s.BlackName
	if winner == "black" {
		winningName = s.BlackName
		losingName = s.WhiteName
	}

	switch {
	case winner != "":
		msg := winningName + " won"
		switch s.Status {
		case StatusMate:
			msg += " by checkmate!"
		case StatusOutOfTime:
			msg += "! " + losingName + " ran out of time."
		case StatusTimeout:
			msg += "! " + losingName + " left the game."
		case StatusResign:
			msg += "! " + losingName + " resigned."
		case StatusVariantEnd:
			msg += " by variant rules!"
		}
		return msg
	case s.Status == StatusDraw:
		switch {
		case s.HalfmoveClock() >= 100:
			return "Game drawn by 50-move rule."
		case s.isRepetition():
			return "Game drawn by threefold repetition."
		case s.insufficientMaterial():
			return "Game drawn due to insufficient material."
		default:
			return "Game drawn by agreement."
		}
	case s.Status == StatusStalemate:
		return "Game drawn by stalemate."
	default:
		return "Game aborted."
	}
}

// isRepetition reports a threefold repetition of the current position.
func (s *GameSession) isRepetition() bool {
	if len(s.positionKeys) == 0 {
		return false
	}
	current := s.positionKeys[len(s.positionKeys)-1]
	count := 0
	for _, key := range s.positionKeys {
		if key == current {
			count++
		}
	}
	return count >= 3
}

func (s *GameSession) insufficientMaterial() bool {
	var minor int
	for _, piece := range s.game.Position().Board().SquareMap() {
		switch piece.Type() {
		case nchess.King:
		case nchess.Bishop, nchess.Knight:
			minor++
		default:
			return false
		}
	}
	return minor <= 1
}

// repetitionKey strips the move counters from a FEN so that identical
// placements with identical rights compare equal.
func repetitionKey(fen string) string {
	fields := strings.Fields(fen)
	if len(fields) < 4 {
		return fen
	}
	return strings.Join(fields[:4], " ")
}

func halfmoveClockFromFEN(fen string) int {
	fields := strings.Fields(fen)
	if len(fields) < 5 {
		return 0
	}
	clock, err := strconv.Atoi(fields[4])
	if err != nil {
		return 0
	}
	return clock
}
