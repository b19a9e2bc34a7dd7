// Package history stores registered schema versions and serves them back to the
// compatibility engine.
//
// Three stores are provided. MemoryStore keeps everything in process and suits tests
// and single-node tools. SQLStore persists to PostgreSQL through database/sql.
// RedisStore keeps one hash per subject. Every store returns a subject's history
// parsed into schema documents and sorted oldest to newest by semantic version, so
// each can be passed directly to engine.Check as its HistoryProvider.
package history
