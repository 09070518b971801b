package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
token: lip_test
engine:
  path: /usr/bin/stockfish
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.URL != "https://lichess.org" {
		t.Fatalf("url default: %q", cfg.URL)
	}
	if cfg.MoveOverheadMultiplier != 1.0 {
		t.Fatalf("overhead multiplier default: %v", cfg.MoveOverheadMultiplier)
	}
	if !cfg.Engine.Ponder {
		t.Fatal("ponder should default on")
	}
	if cfg.Engine.OpeningBooks.Selection != SelectionBestMove {
		t.Fatalf("book selection default: %q", cfg.Engine.OpeningBooks.Selection)
	}
	if cfg.Engine.OnlineMoves.OpeningExplorer.Selection != SelectionPerformance {
		t.Fatalf("explorer selection default: %q", cfg.Engine.OnlineMoves.OpeningExplorer.Selection)
	}
	if cfg.Engine.OfferDraw.Score != 10 || cfg.Engine.OfferDraw.ConsecutiveMoves != 10 || cfg.Engine.OfferDraw.MinGameLength != 35 {
		t.Fatalf("offer draw defaults: %+v", cfg.Engine.OfferDraw)
	}
	if cfg.Engine.Resign.Score != -1000 || cfg.Engine.Resign.ConsecutiveMoves != 5 {
		t.Fatalf("resign defaults: %+v", cfg.Engine.Resign)
	}
	if cfg.Engine.Syzygy.MaxPieces != 6 || cfg.Engine.Gaviota.MaxPieces != 5 {
		t.Fatalf("tablebase defaults: syzygy=%d gaviota=%d", cfg.Engine.Syzygy.MaxPieces, cfg.Engine.Gaviota.MaxPieces)
	}
	if cfg.Challenge.Concurrency != 1 {
		t.Fatalf("concurrency default: %d", cfg.Challenge.Concurrency)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("LICHESS_TOKEN", "lip_env")
	t.Setenv("ENGINE_PATH", "/opt/engine")

	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Token != "lip_env" {
		t.Fatalf("token override: %q", cfg.Token)
	}
	if cfg.Engine.Path != "/opt/engine" {
		t.Fatalf("engine path override: %q", cfg.Engine.Path)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"missing token", func(c *AppConfig) { c.Token = "" }},
		{"missing engine path", func(c *AppConfig) { c.Engine.Path = "" }},
		{"zero overhead multiplier", func(c *AppConfig) { c.MoveOverheadMultiplier = 0 }},
		{"unknown book selection", func(c *AppConfig) { c.Engine.OpeningBooks.Selection = "always_best" }},
		{"unknown explorer selection", func(c *AppConfig) { c.Engine.OnlineMoves.OpeningExplorer.Selection = "elo" }},
		{"unknown chessdb selection", func(c *AppConfig) { c.Engine.OnlineMoves.ChessDB.Selection = "any" }},
		{"draw window without length", func(c *AppConfig) {
			c.Engine.OfferDraw.Enabled = true
			c.Engine.OfferDraw.ConsecutiveMoves = 0
		}},
		{"resign window without length", func(c *AppConfig) {
			c.Engine.Resign.Enabled = true
			c.Engine.Resign.ConsecutiveMoves = 0
		}},
		{"syzygy enabled without paths", func(c *AppConfig) { c.Engine.Syzygy.Enabled = true }},
		{"zero concurrency", func(c *AppConfig) { c.Challenge.Concurrency = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaults()
			cfg.Token = "lip_test"
			cfg.Engine.Path = "/usr/bin/stockfish"
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
}

func TestLoadParsesNestedSections(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
token: lip_test
move_overhead_multiplier: 2.5
engine:
  path: /usr/bin/stockfish
  ponder: false
  uci_options:
    Threads: "4"
    Hash: "512"
  opening_books:
    enabled: true
    max_depth: 12
    selection: weighted_random
    books:
      standard:
        - /books/main.bin
  online_moves:
    opening_explorer:
      enabled: true
      min_games: 10
    online_egtb:
      enabled: true
challenge:
  concurrency: 3
  variants: [standard]
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MoveOverheadMultiplier != 2.5 {
		t.Fatalf("multiplier: %v", cfg.MoveOverheadMultiplier)
	}
	if cfg.Engine.Ponder {
		t.Fatal("ponder should be off")
	}
	if cfg.Engine.UCIOptions["Threads"] != "4" {
		t.Fatalf("uci options: %+v", cfg.Engine.UCIOptions)
	}
	if !cfg.Engine.OpeningBooks.Enabled || cfg.Engine.OpeningBooks.MaxDepth != 12 {
		t.Fatalf("books: %+v", cfg.Engine.OpeningBooks)
	}
	if cfg.Engine.OnlineMoves.OpeningExplorer.MinGames != 10 {
		t.Fatalf("explorer: %+v", cfg.Engine.OnlineMoves.OpeningExplorer)
	}
	if !cfg.Engine.OnlineMoves.OnlineEGTB.Enabled {
		t.Fatal("egtb should be enabled")
	}
	if cfg.Engine.OnlineMoves.OnlineEGTB.MinTime != 10 {
		t.Fatalf("egtb min_time default: %d", cfg.Engine.OnlineMoves.OnlineEGTB.MinTime)
	}
	if cfg.Challenge.Concurrency != 3 {
		t.Fatalf("concurrency: %d", cfg.Challenge.Concurrency)
	}
}
