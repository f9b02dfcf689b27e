// Package config loads server configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds everything the server binary needs to wire itself up.
type Config struct {
	// ListenAddr is the HTTP/WebSocket listen address.
	ListenAddr string

	// DBPath is the SQLite database file.
	DBPath string

	// IndexDir persists the vector index; empty keeps it in memory only.
	IndexDir string

	// JWTSecret signs connection credentials. Without it the auth
	// endpoints and every handshake fail closed.
	JWTSecret string

	// TokenTTL is the credential lifetime.
	TokenTTL time.Duration

	// AnthropicAPIKey enables generation; empty degrades to the fallback reply.
	AnthropicAPIKey string

	// OpenAIAPIKey enables embeddings; empty makes every turn fail.
	OpenAIAPIKey string

	// GenModel is the generative model name.
	GenModel string

	// EmbedModel is the embedding model name.
	EmbedModel string

	// VectorDims is the embedding dimensionality.
	VectorDims int

	// STMLimit bounds the short-term memory window.
	STMLimit int

	// LTMTopK bounds long-term memory retrieval.
	LTMTopK int

	// EmbedCacheBytes caps the embedding cache; 0 disables it.
	EmbedCacheBytes int64

	// LogFormat is "json" or "text".
	LogFormat string
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		ListenAddr:      getenv("THREADMIND_ADDR", ":8080"),
		DBPath:          getenv("THREADMIND_DB_PATH", "threadmind.db"),
		IndexDir:        os.Getenv("THREADMIND_INDEX_DIR"),
		JWTSecret:       os.Getenv("THREADMIND_JWT_SECRET"),
		TokenTTL:        getenvDuration("THREADMIND_TOKEN_TTL", 7*24*time.Hour),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		GenModel:        getenv("THREADMIND_GEN_MODEL", "claude-sonnet-4-20250514"),
		EmbedModel:      getenv("THREADMIND_EMBED_MODEL", "text-embedding-3-small"),
		VectorDims:      getenvInt("THREADMIND_VECTOR_DIMS", 768),
		STMLimit:        getenvInt("THREADMIND_STM_LIMIT", 20),
		LTMTopK:         getenvInt("THREADMIND_LTM_TOPK", 5),
		EmbedCacheBytes: int64(getenvInt("THREADMIND_EMBED_CACHE_BYTES", 64<<20)),
		LogFormat:       getenv("THREADMIND_LOG_FORMAT", "json"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
