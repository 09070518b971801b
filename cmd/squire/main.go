package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gambitworks/squire/internal/archive"
	"github.com/gambitworks/squire/internal/chessdb"
	"github.com/gambitworks/squire/internal/config"
	"github.com/gambitworks/squire/internal/gamehub"
	"github.com/gambitworks/squire/internal/lichess"
	"github.com/gambitworks/squire/internal/obslog"
	"github.com/gambitworks/squire/internal/play"
	"github.com/gambitworks/squire/internal/probecache"
	"github.com/gambitworks/squire/internal/uci"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to the YAML config")
	flag.Parse()

	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("config error", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cache *probecache.Cache
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis url error", zap.Error(err))
		}
		rdb := redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err = rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Warn("redis unreachable, probe cache disabled", zap.Error(err))
		} else {
			cache = probecache.New(rdb)
			defer rdb.Close()
		}
	}

	var repo archive.Repository
	if cfg.DatabaseURL != "" {
		openCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		r, db, err := archive.Open(openCtx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			logger.Warn("postgres unreachable, archiving disabled", zap.Error(err))
		} else {
			repo = r
			defer db.Close()
		}
	}

	client := lichess.NewClient(cfg.URL, cfg.Token, lichess.WithCache(cache))
	account, err := client.Account(ctx)
	if err != nil {
		logger.Fatal("account lookup failed", zap.Error(err))
	}
	logger.Info("logged in", zap.String("username", account.Username), zap.String("title", account.Title))

	pool, err := uci.NewPool(uci.PoolConfig{
		BinaryPath: cfg.Engine.Path,
		Capacity:   cfg.Challenge.Concurrency,
		Options:    engineOptions(cfg.Engine),
	})
	if err != nil {
		logger.Fatal("engine pool init failed", zap.Error(err))
	}
	defer pool.Close()

	books, err := openBooks(cfg.Engine.OpeningBooks)
	if err != nil {
		logger.Fatal("opening books init failed", zap.Error(err))
	}

	cdb := chessdb.NewClient(chessdb.WithCache(cache))

	newSources := func() []play.MoveSource {
		seed := time.Now().UnixNano()
		online := cfg.Engine.OnlineMoves
		hasBook := cfg.Engine.OpeningBooks.Enabled && len(books) > 0
		return []play.MoveSource{
			play.NewBookSource(cfg.Engine.OpeningBooks, books, seed),
			play.NewExplorerSource(online.OpeningExplorer, client),
			play.NewCloudSource(online.LichessCloud, client, hasBook),
			play.NewChessDBSource(online.ChessDB, cdb),
			play.NewGaviotaSource(cfg.Engine.Gaviota, nil, seed),
			play.NewSyzygySource(cfg.Engine.Syzygy, nil, seed),
			play.NewOnlineTablebaseSource(online.OnlineEGTB, client),
		}
	}

	hub := gamehub.New(client, cfg, pool, repo, newSources, account.ID)
	if err := hub.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("hub stopped", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// engineOptions maps the config onto UCI setoptions. The well-known
// options get first-class fields, everything else passes through.
func engineOptions(engine config.EngineConfig) uci.Options {
	opt := uci.Options{
		SilenceStderr: engine.SilenceStderr,
		Extra:         make(map[string]string),
	}
	for name, value := range engine.UCIOptions {
		opt.Extra[name] = value
	}
	if engine.Syzygy.Enabled && len(engine.Syzygy.Paths) > 0 {
		opt.SyzygyPath = strings.Join(engine.Syzygy.Paths, ":")
		opt.SyzygyProbeLimit = engine.Syzygy.MaxPieces
	}
	return opt
}

func openBooks(cfg config.BookConfig) (map[string][]play.BookReader, error) {
	books := make(map[string][]play.BookReader)
	if !cfg.Enabled {
		return books, nil
	}
	for key, paths := range cfg.Books {
		for _, path := range paths {
			reader, err := play.OpenPolyglot(path)
			if err != nil {
				return nil, err
			}
			books[key] = append(books[key], reader)
		}
	}
	return books, nil
}
