// Package archive persists finished games for later review.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

var ErrDuplicateGame = errors.New("game already archived")

// Record is one finished game.
type Record struct {
	GameID    string
	TraceID   string
	White     string
	Black     string
	PlayedAs  string
	Variant   string
	Status    string
	Winner    string
	Result    string
	Moves     string
	FinalFEN  string
	InitialMS int64
	StartedAt time.Time
	EndedAt   time.Time
}

type Repository interface {
	InsertGame(ctx context.Context, rec *Record) (int64, error)
	RecentGames(ctx context.Context, limit int) ([]*Record, error)
}

type repository struct {
	db *sql.DB
}

// Open connects to postgres and verifies the connection.
func Open(ctx context.Context, databaseURL string) (Repository, *sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewRepository(db), db, nil
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) InsertGame(ctx context.Context, rec *Record) (int64, error) {
	if rec == nil {
		return 0, fmt.Errorf("nil game record")
	}

	const query = `
		INSERT INTO games (
			game_id,
			trace_id,
			white_name,
			black_name,
			played_as,
			variant,
			status,
			winner,
			result,
			moves,
			final_fen,
			initial_ms,
			started_at,
			ended_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (game_id) DO NOTHING
		RETURNING id`

	var id sql.NullInt64
	err := r.db.QueryRowContext(
		ctx,
		query,
		rec.GameID,
		rec.TraceID,
		rec.White,
		rec.Black,
		rec.PlayedAs,
		rec.Variant,
		rec.Status,
		rec.Winner,
		rec.Result,
		rec.Moves,
		rec.FinalFEN,
		rec.InitialMS,
		rec.StartedAt,
		rec.EndedAt,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !id.Valid) {
		return 0, ErrDuplicateGame
	}
	if err != nil {
		return 0, fmt.Errorf("insert game: %w", err)
	}
	return id.Int64, nil
}

func (r *repository) RecentGames(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `
		SELECT
			game_id,
			trace_id,
			white_name,
			black_name,
			played_as,
			variant,
			status,
			winner,
			result,
			moves,
			final_fen,
			initial_ms,
			started_at,
			ended_at
		FROM games
		ORDER BY ended_at DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("select games: %w", err)
	}
	defer rows.Close()

	records := make([]*Record, 0, limit)
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.GameID,
			&rec.TraceID,
			&rec.White,
			&rec.Black,
			&rec.PlayedAs,
			&rec.Variant,
			&rec.Status,
			&rec.Winner,
			&rec.Result,
			&rec.Moves,
			&rec.FinalFEN,
			&rec.InitialMS,
			&rec.StartedAt,
			&rec.EndedAt,
		); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}
