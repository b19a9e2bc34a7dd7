// Package config loads schemacompat settings from environment variables and YAML
// files.
//
// # Configuration Structure
//
// Engine settings:
//
//	SCHEMACOMPAT_DEFAULT_MODE="BACKWARD"
//	SCHEMACOMPAT_MAX_TRANSITIVE_VERSIONS="100"
//	SCHEMACOMPAT_CONCURRENCY="8"
//	SCHEMACOMPAT_BATCH_TIMEOUT="30s"
//
// Matrix cache settings:
//
//	SCHEMACOMPAT_CACHE_ENABLED="true"
//	SCHEMACOMPAT_CACHE_MAX_ENTRIES="10000"
//	SCHEMACOMPAT_CACHE_TTL="1h"
//	SCHEMACOMPAT_CACHE_SHARDS="16"
//
// History settings:
//
//	SCHEMACOMPAT_HISTORY_BACKEND="postgres"  # memory, postgres, redis
//	SCHEMACOMPAT_POSTGRES_URL="postgres://localhost/schemas"
//	SCHEMACOMPAT_REDIS_URL="redis://localhost:6379"
//
// Observability settings:
//
//	SCHEMACOMPAT_LOG_LEVEL="info"  # debug, info, warn, error
//	SCHEMACOMPAT_METRICS_ENABLED="true"
//	SCHEMACOMPAT_OTEL_ENABLED="true"
//	SCHEMACOMPAT_OTEL_ENDPOINT="otel-collector:4317"
//
// The same settings can be given as YAML through LoadFile, using the section and
// field names of Config. Environment variables win over the file.
//
// # Usage Example
//
//	cfg, err := config.LoadFile("schemacompat.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	store, err := cfg.OpenHistory(ctx)
//	...
//	e, err := engine.New(cfg.EngineConfig())
package config
