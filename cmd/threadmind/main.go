// Command threadmind runs the memory-grounded chat server: a WebSocket
// gateway for conversational turns plus a small REST surface for accounts
// and chats.
package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/threadmind/threadmind/auth"
	"github.com/threadmind/threadmind/config"
	"github.com/threadmind/threadmind/engine"
	"github.com/threadmind/threadmind/gateway"
	"github.com/threadmind/threadmind/httpapi"
	"github.com/threadmind/threadmind/logging"
	"github.com/threadmind/threadmind/memory"
	embedcache "github.com/threadmind/threadmind/memory/embedder/cache"
	openaiembed "github.com/threadmind/threadmind/memory/embedder/openai"
	chromemindex "github.com/threadmind/threadmind/memory/index/chromem"
	anthropicmodel "github.com/threadmind/threadmind/model/anthropic"
	sqlitestore "github.com/threadmind/threadmind/store/sqlite"
)

func main() {
	cfg := config.Load()
	logger := logging.New(os.Stdout, cfg.LogFormat, slog.LevelInfo)

	st, err := sqlitestore.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	var index memory.Index
	if cfg.IndexDir != "" {
		index, err = chromemindex.NewPersistent(cfg.IndexDir)
	} else {
		index, err = chromemindex.New()
	}
	if err != nil {
		log.Fatalf("open vector index: %v", err)
	}
	defer index.Close()

	var embedder memory.Embedder = openaiembed.New(cfg.OpenAIAPIKey, func(o *openaiembed.Options) {
		o.Model = cfg.EmbedModel
		o.Dimensions = cfg.VectorDims
	})
	if cfg.EmbedCacheBytes > 0 {
		cached, err := embedcache.New(embedder, cfg.EmbedCacheBytes)
		if err != nil {
			log.Fatalf("embedding cache: %v", err)
		}
		defer cached.Close()
		embedder = cached
	}

	completer := anthropicmodel.New(cfg.AnthropicAPIKey, func(o *anthropicmodel.Options) {
		o.Model = cfg.GenModel
		o.Logger = logger
	})

	eng := engine.New(st, embedder, index, completer,
		engine.WithLogger(logger),
		engine.WithSTMLimit(cfg.STMLimit),
		engine.WithLTMTopK(cfg.LTMTopK),
	)

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret unset, all handshakes will be refused")
	}

	gw := gateway.New(eng, tokens, gateway.WithLogger(logger))
	api := httpapi.New(st, tokens, logger)

	logger.Info("server starting",
		"addr", cfg.ListenAddr,
		"db", cfg.DBPath,
		"stm_limit", cfg.STMLimit,
		"ltm_topk", cfg.LTMTopK)
	if err := http.ListenAndServe(cfg.ListenAddr, api.Routes(gw)); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
