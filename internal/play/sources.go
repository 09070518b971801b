package play

import (
	"context"
	"errors"
)

// SourceKind identifies where a move decision came from.
type SourceKind string

const (
	SourceBook       SourceKind = "book"
	SourceExplorer   SourceKind = "explorer"
	SourceCloud      SourceKind = "cloud"
	SourceChessDB    SourceKind = "chessdb"
	SourceGaviota    SourceKind = "gaviota"
	SourceSyzygy     SourceKind = "syzygy"
	SourceOnlineEGTB SourceKind = "online_egtb"
	SourceEngine     SourceKind = "engine"
)

// MoveCandidate is a move picked by one source, with the metadata the
// game loop needs to act on it. The draw/resign score windows only see
// engine searches; source evaluations appear in the comment alone.
type MoveCandidate struct {
	Move string
	Kind SourceKind

	// OfferDraw and Resign are set by sources that decide themselves
	// (tablebases); other sources leave them false.
	OfferDraw bool
	Resign    bool

	// SuppressPonder turns pondering off for the rest of the game.
	SuppressPonder bool

	// Comment is a short human-readable note for logs and chat.
	Comment string
}

// MoveSource produces a move for the session's current position, or
// (nil, nil) when it has nothing to offer and the next source in the
// chain should be consulted.
type MoveSource interface {
	Kind() SourceKind
	TryMove(ctx context.Context, s *GameSession) (*MoveCandidate, error)
}

// ErrEngineNoMove is returned when the engine fails to produce a move
// for a position it was asked to search. There is no fallback below the
// engine, so the game cannot continue.
var ErrEngineNoMove = errors.New("engine returned no move")
