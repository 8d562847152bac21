// Package portfolio wires the portfolio knowledge base service: the chat and
// admin HTTP server and the one-shot ingestion run.
package portfolio

import (
	contentopts "github.com/smaxiso/portfolio-rag/pkg/options/content"
	geminiopts "github.com/smaxiso/portfolio-rag/pkg/options/gemini"
	httpopts "github.com/smaxiso/portfolio-rag/pkg/options/http"
	jwtopts "github.com/smaxiso/portfolio-rag/pkg/options/jwt"
	logopts "github.com/smaxiso/portfolio-rag/pkg/options/logger"
	milvusopts "github.com/smaxiso/portfolio-rag/pkg/options/milvus"
	qdrantopts "github.com/smaxiso/portfolio-rag/pkg/options/qdrant"
	ragopts "github.com/smaxiso/portfolio-rag/pkg/options/rag"
	ratelimitopts "github.com/smaxiso/portfolio-rag/pkg/options/ratelimit"
	redisopts "github.com/smaxiso/portfolio-rag/pkg/options/redis"
	storeopts "github.com/smaxiso/portfolio-rag/pkg/options/store"
	tracingopts "github.com/smaxiso/portfolio-rag/pkg/options/tracing"
)

// Name is the name of the application.
const Name = "portfolio-rag"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions      *httpopts.Options
	LogOptions       *logopts.Options
	RAGOptions       *ragopts.Options
	StoreOptions     *storeopts.Options
	MilvusOptions    *milvusopts.Options
	QdrantOptions    *qdrantopts.Options
	GeminiOptions    *geminiopts.Options
	RedisOptions     *redisopts.Options
	ContentOptions   *contentopts.Options
	RateLimitOptions *ratelimitopts.Options
	TracingOptions   *tracingopts.Options
	JWTOptions       *jwtopts.Options
}
