package play

import (
	"context"
	"fmt"
	"math/rand"
	"os"

	nchess "github.com/corentings/chess/v2"
	"go.uber.org/zap"

	"github.com/gambitworks/squire/internal/config"
	"github.com/gambitworks/squire/internal/obslog"
)

// BookEntry is one move recorded for a position in an opening book.
type BookEntry struct {
	Move   string
	Weight uint16
	Learn  uint32
}

// BookReader looks up every recorded move for a position.
type BookReader interface {
	Name() string
	FindAll(fen string) ([]BookEntry, error)
}

// LearnData is the statistics packed into a polyglot learn field by
// book builders that use it for win/draw bookkeeping.
type LearnData struct {
	Performance int
	WinPercent  float64
	DrawPercent float64
}

// DecodeLearn unpacks a polyglot learn field: a 12-bit performance
// rating and two 10-bit outcome counts scaled by 1020.
func DecodeLearn(learn uint32) LearnData {
	return LearnData{
		Performance: int((learn >> 20) & 0xFFF),
		WinPercent:  float64((learn>>10)&0x3FF) / 1020.0 * 100.0,
		DrawPercent: float64(learn&0x3FF) / 1020.0 * 100.0,
	}
}

// PolyglotReader serves book lookups from a polyglot file loaded into
// memory.
type PolyglotReader struct {
	name   string
	book   *nchess.PolyglotBook
	hasher *nchess.ZobristHasher
}

// OpenPolyglot loads a polyglot book file.
func OpenPolyglot(path string) (*PolyglotReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open polyglot book %q: %w", path, err)
	}
	defer file.Close()

	book, err := nchess.LoadFromReader(file)
	if err != nil {
		return nil, fmt.Errorf("load polyglot book %q: %w", path, err)
	}
	return &PolyglotReader{name: path, book: book, hasher: nchess.NewZobristHasher()}, nil
}

func (r *PolyglotReader) Name() string { return r.name }

func (r *PolyglotReader) FindAll(fen string) ([]BookEntry, error) {
	hashStr, err := r.hasher.HashPosition(fen)
	if err != nil {
		return nil, fmt.Errorf("compute polyglot hash: %w", err)
	}
	raw := r.book.FindMoves(nchess.ZobristHashToUint64(hashStr))
	entries := make([]BookEntry, 0, len(raw))
	for _, entry := range raw {
		move := nchess.DecodeMove(entry.Move).ToMove()
		entries = append(entries, BookEntry{
			Move:   move.String(),
			Weight: entry.Weight,
			Learn:  entry.Learn,
		})
	}
	return entries, nil
}

// BookSource serves moves from configured opening books. Books are
// grouped under a key per side ("white", "black") with "standard" as
// the fallback; within a key the books are consulted in order.
type BookSource struct {
	cfg   config.BookConfig
	byKey map[string][]BookReader
	rng   *rand.Rand
}

// NewBookSource builds a book source over the already-opened readers.
func NewBookSource(cfg config.BookConfig, byKey map[string][]BookReader, seed int64) *BookSource {
	return &BookSource{cfg: cfg, byKey: byKey, rng: rand.New(rand.NewSource(seed))}
}

func (b *BookSource) Kind() SourceKind { return SourceBook }

func (b *BookSource) TryMove(_ context.Context, s *GameSession) (*MoveCandidate, error) {
	if !b.cfg.Enabled || s.Book.Disabled() {
		return nil, nil
	}
	if b.cfg.MaxDepth > 0 && s.Ply() >= b.cfg.MaxDepth {
		return nil, nil
	}

	for _, key := range b.lookupKeys(s) {
		for _, reader := range b.byKey[key] {
			entry, ok := b.pick(reader, s)
			if !ok {
				continue
			}
			s.Book.Reset()
			comment := fmt.Sprintf("Book: %s", s.SAN(entry.Move))
			if b.cfg.ReadLearn && entry.Learn != 0 {
				data := DecodeLearn(entry.Learn)
				comment = fmt.Sprintf("%s (win %.1f%%, draw %.1f%%)",
					comment, data.WinPercent, data.DrawPercent)
			}
			obslog.L().Debug("book move",
				zap.String("book", reader.Name()),
				zap.String("move", entry.Move),
				zap.Uint16("weight", entry.Weight))
			return &MoveCandidate{Move: entry.Move, Kind: SourceBook, Comment: comment}, nil
		}
	}
	// A run of out-of-book turns switches the whole source off so the
	// lookups stop once the game has clearly left the repertoire.
	s.Book.Miss()
	return nil, nil
}

func (b *BookSource) lookupKeys(s *GameSession) []string {
	side := "black"
	if s.IsWhite {
		side = "white"
	}
	return []string{side, "standard"}
}

// pick selects one entry from a book per the configured policy, then
// vets the pick: an illegal or repetition-producing selection rejects
// this book rather than falling back to a lesser entry.
func (b *BookSource) pick(reader BookReader, s *GameSession) (BookEntry, bool) {
	entries, err := reader.FindAll(s.FEN())
	if err != nil {
		obslog.L().Warn("book lookup failed",
			zap.String("book", reader.Name()), zap.Error(err))
		return BookEntry{}, false
	}
	if len(entries) == 0 {
		return BookEntry{}, false
	}

	entry := b.selectEntry(entries)
	if !s.IsLegal(entry.Move) || s.WouldRepeat(entry.Move) {
		return BookEntry{}, false
	}
	return entry, true
}

func (b *BookSource) selectEntry(entries []BookEntry) BookEntry {
	switch b.cfg.Selection {
	case config.SelectionUniformRandom:
		return entries[b.rng.Intn(len(entries))]
	case config.SelectionWeightedRandom:
		var total int
		for _, entry := range entries {
			total += int(entry.Weight)
		}
		if total == 0 {
			return entries[b.rng.Intn(len(entries))]
		}
		n := b.rng.Intn(total)
		for _, entry := range entries {
			n -= int(entry.Weight)
			if n < 0 {
				return entry
			}
		}
		return entries[len(entries)-1]
	default: // best move
		best := entries[0]
		for _, entry := range entries[1:] {
			if entry.Weight > best.Weight {
				best = entry
			}
		}
		return best
	}
}
