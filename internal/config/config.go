package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

// Move selection policies referenced across the config.
const (
	SelectionBestMove       = "best_move"
	SelectionWeightedRandom = "weighted_random"
	SelectionUniformRandom  = "uniform_random"

	SelectionPerformance = "performance"
	SelectionWinRate     = "win_rate"

	SelectionGood = "good"
	SelectionAll  = "all"
	SelectionPV   = "pv"
)

type AppConfig struct {
	Token string `yaml:"token"`
	URL   string `yaml:"url"`

	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`

	MoveOverheadMultiplier float64 `yaml:"move_overhead_multiplier"`

	Engine    EngineConfig    `yaml:"engine"`
	Challenge ChallengeConfig `yaml:"challenge"`
}

type EngineConfig struct {
	Path          string            `yaml:"path"`
	Ponder        bool              `yaml:"ponder"`
	SilenceStderr bool              `yaml:"silence_stderr"`
	UCIOptions    map[string]string `yaml:"uci_options"`

	OpeningBooks BookConfig        `yaml:"opening_books"`
	OnlineMoves  OnlineMovesConfig `yaml:"online_moves"`
	OfferDraw    OfferDrawConfig   `yaml:"offer_draw"`
	Resign       ResignConfig      `yaml:"resign"`
	Syzygy       TablebaseConfig   `yaml:"syzygy"`
	Gaviota      TablebaseConfig   `yaml:"gaviota"`
}

type BookConfig struct {
	Enabled   bool                `yaml:"enabled"`
	MaxDepth  int                 `yaml:"max_depth"`
	Selection string              `yaml:"selection"`
	ReadLearn bool                `yaml:"read_learn"`
	Books     map[string][]string `yaml:"books"`
}

type OnlineMovesConfig struct {
	OpeningExplorer ExplorerConfig `yaml:"opening_explorer"`
	LichessCloud    CloudConfig    `yaml:"lichess_cloud"`
	ChessDB         ChessDBConfig  `yaml:"chessdb"`
	OnlineEGTB      EGTBConfig     `yaml:"online_egtb"`
}

// OnlineSourceConfig is the part every remote source shares: the eligibility
// gate thresholds and the hard query timeout. MinTime and Timeout are seconds.
type OnlineSourceConfig struct {
	Enabled  bool `yaml:"enabled"`
	MaxDepth int  `yaml:"max_depth"`
	MinTime  int  `yaml:"min_time"`
	Timeout  int  `yaml:"timeout"`
}

type ExplorerConfig struct {
	OnlineSourceConfig `yaml:",inline"`
	MinGames           int    `yaml:"min_games"`
	OnlyWithWins       bool   `yaml:"only_with_wins"`
	Selection          string `yaml:"selection"`
	Anti               bool   `yaml:"anti"`
}

type CloudConfig struct {
	OnlineSourceConfig `yaml:",inline"`
	MinEvalDepth       int  `yaml:"min_eval_depth"`
	OnlyWithoutBook    bool `yaml:"only_without_book"`
}

type ChessDBConfig struct {
	OnlineSourceConfig `yaml:",inline"`
	MinEvalDepth       int    `yaml:"min_eval_depth"`
	Selection          string `yaml:"selection"`
}

type EGTBConfig struct {
	OnlineSourceConfig `yaml:",inline"`
}

type OfferDrawConfig struct {
	Enabled          bool `yaml:"enabled"`
	Score            int  `yaml:"score"`
	ConsecutiveMoves int  `yaml:"consecutive_moves"`
	MinGameLength    int  `yaml:"min_game_length"`
}

type ResignConfig struct {
	Enabled          bool `yaml:"enabled"`
	Score            int  `yaml:"score"`
	ConsecutiveMoves int  `yaml:"consecutive_moves"`
}

type TablebaseConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Paths       []string `yaml:"paths"`
	MaxPieces   int      `yaml:"max_pieces"`
	InstantPlay bool     `yaml:"instant_play"`
}

type ChallengeConfig struct {
	Concurrency  int      `yaml:"concurrency"`
	AcceptRated  bool     `yaml:"accept_rated"`
	AcceptCasual bool     `yaml:"accept_casual"`
	Variants     []string `yaml:"variants"`
	MinInitial   int      `yaml:"min_initial"`
	MaxInitial   int      `yaml:"max_initial"`
	MinIncrement int      `yaml:"min_increment"`
	MaxIncrement int      `yaml:"max_increment"`
}

func defaults() *AppConfig {
	return &AppConfig{
		URL:                    "https://lichess.org",
		MoveOverheadMultiplier: 1.0,
		Engine: EngineConfig{
			Ponder: true,
			OpeningBooks: BookConfig{
				Selection: "best_move",
			},
			OnlineMoves: OnlineMovesConfig{
				OpeningExplorer: ExplorerConfig{
					OnlineSourceConfig: OnlineSourceConfig{MinTime: 20, Timeout: 5},
					MinGames:           5,
					Selection:          "performance",
				},
				LichessCloud: CloudConfig{
					OnlineSourceConfig: OnlineSourceConfig{MinTime: 20, Timeout: 3},
					MinEvalDepth:       20,
				},
				ChessDB: ChessDBConfig{
					OnlineSourceConfig: OnlineSourceConfig{MinTime: 20, Timeout: 5},
					MinEvalDepth:       20,
					Selection:          "good",
				},
				OnlineEGTB: EGTBConfig{
					OnlineSourceConfig: OnlineSourceConfig{MinTime: 10, Timeout: 3},
				},
			},
			OfferDraw: OfferDrawConfig{
				Score:            10,
				ConsecutiveMoves: 10,
				MinGameLength:    35,
			},
			Resign: ResignConfig{
				Score:            -1000,
				ConsecutiveMoves: 5,
			},
			Syzygy:  TablebaseConfig{MaxPieces: 6},
			Gaviota: TablebaseConfig{MaxPieces: 5},
		},
		Challenge: ChallengeConfig{
			Concurrency:  1,
			AcceptCasual: true,
			Variants:     []string{"standard"},
			MaxInitial:   10800,
			MaxIncrement: 180,
		},
	}
}

// Load reads the YAML config at path and applies env overrides for the
// values that should not live in the file.
func Load(path string) (*AppConfig, error) {
	cfg := defaults()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}

	if v := strings.TrimSpace(os.Getenv("LICHESS_TOKEN")); v != "" {
		cfg.Token = v
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_PATH")); v != "" {
		cfg.Engine.Path = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.Token) == "" {
		return errors.New("token is required (config or LICHESS_TOKEN)")
	}
	if strings.TrimSpace(c.Engine.Path) == "" {
		return errors.New("engine.path is required (config or ENGINE_PATH)")
	}
	if c.MoveOverheadMultiplier <= 0 {
		return fmt.Errorf("move_overhead_multiplier must be > 0: %v", c.MoveOverheadMultiplier)
	}

	switch c.Engine.OpeningBooks.Selection {
	case SelectionWeightedRandom, SelectionUniformRandom, SelectionBestMove:
	default:
		return fmt.Errorf("opening_books.selection %q not in weighted_random/uniform_random/best_move", c.Engine.OpeningBooks.Selection)
	}
	switch c.Engine.OnlineMoves.OpeningExplorer.Selection {
	case SelectionPerformance, SelectionWinRate:
	default:
		return fmt.Errorf("opening_explorer.selection %q not in performance/win_rate", c.Engine.OnlineMoves.OpeningExplorer.Selection)
	}
	switch c.Engine.OnlineMoves.ChessDB.Selection {
	case SelectionGood, SelectionAll, SelectionPV:
	default:
		return fmt.Errorf("chessdb.selection %q not in good/all/pv", c.Engine.OnlineMoves.ChessDB.Selection)
	}

	if c.Engine.OfferDraw.Enabled && c.Engine.OfferDraw.ConsecutiveMoves <= 0 {
		return errors.New("offer_draw.consecutive_moves must be > 0 when enabled")
	}
	if c.Engine.Resign.Enabled && c.Engine.Resign.ConsecutiveMoves <= 0 {
		return errors.New("resign.consecutive_moves must be > 0 when enabled")
	}
	if c.Engine.Syzygy.Enabled && len(c.Engine.Syzygy.Paths) == 0 {
		return errors.New("syzygy.paths must not be empty when enabled")
	}
	if c.Engine.Gaviota.Enabled && len(c.Engine.Gaviota.Paths) == 0 {
		return errors.New("gaviota.paths must not be empty when enabled")
	}
	if c.Challenge.Concurrency <= 0 {
		return errors.New("challenge.concurrency must be > 0")
	}
	return nil
}
