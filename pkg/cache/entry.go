package cache

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/platinummonkey/schemacompat/pkg/compatibility"
	"github.com/platinummonkey/schemacompat/pkg/schema"
)

// Key identifies one pairwise comparison: the candidate's content hash, the
// historical version's content hash, and the non-transitive mode the pair was
// checked under.
type Key struct {
	HashA schema.Hash
	HashB schema.Hash
	Mode  compatibility.CompatibilityMode
}

// NewKey builds the cache key for comparing candidate against previous.
// Transitive modes share entries with their base mode.
func NewKey(candidate, previous *schema.Document, mode compatibility.CompatibilityMode) Key {
	return Key{HashA: candidate.Hash(), HashB: previous.Hash(), Mode: mode.Base()}
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s", k.HashA.Short(), k.HashB.Short(), k.Mode)
}

func (k Key) shard(n int) int {
	h := binary.BigEndian.Uint32(k.HashA[:4]) ^ binary.BigEndian.Uint32(k.HashB[4:8]) ^ uint32(k.Mode)
	return int(h % uint32(n))
}

func (k Key) references(h schema.Hash) bool {
	return k.HashA == h || k.HashB == h
}

// Entry is one cached pairwise result. Entries are replaced, never mutated.
type Entry struct {
	Key        Key
	Result     *compatibility.Result
	Subjects   []string
	InsertedAt time.Time
	TTL        time.Duration
}

// Expired reports whether the entry is past its TTL at now. A non-positive TTL
// never expires.
func (e *Entry) Expired(now time.Time) bool {
	return e.TTL > 0 && now.Sub(e.InsertedAt) >= e.TTL
}
