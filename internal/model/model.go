// Package model defines domain entities used by services and repositories.
package model

import (
	"fmt"
	"math"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/mirror-importer/internal/errs"
)

const (
	shardBits = 15
	realmBits = 16
	numBits   = 32

	shardMask = int64(1)<<shardBits - 1
	realmMask = int64(1)<<realmBits - 1
	numMask   = int64(1)<<numBits - 1
)

// EntityType is the kind of ledger entity a row describes.
type EntityType int

// EntityTypeAccount marks a crypto account row.
const EntityTypeAccount EntityType = 1

// EntityID is the packed shard.realm.num identifier used as the entity primary key.
type EntityID int64

// NewEntityID packs shard, realm and num, rejecting values that do not fit their bit widths.
func NewEntityID(shard, realm, num int64) (EntityID, error) {
	if shard < 0 || shard > shardMask || realm < 0 || realm > realmMask || num < 0 || num > numMask {
		return 0, fmt.Errorf("%d.%d.%d: %w", shard, realm, num, errs.ErrInvalidEntityID)
	}
	return EntityID(shard<<(realmBits+numBits) | realm<<numBits | num), nil
}

// Shard returns the shard component.
func (id EntityID) Shard() int64 { return int64(id) >> (realmBits + numBits) & shardMask }

// Realm returns the realm component.
func (id EntityID) Realm() int64 { return int64(id) >> numBits & realmMask }

// Num returns the entity number.
func (id EntityID) Num() int64 { return int64(id) & numMask }

// IsZero reports whether the id is 0.0.0, which the ledger uses to mean "no entity".
func (id EntityID) IsZero() bool { return id == 0 }

// String renders the id as shard.realm.num.
func (id EntityID) String() string {
	return fmt.Sprintf("%d.%d.%d", id.Shard(), id.Realm(), id.Num())
}

// ToEntity builds a new account row with default values for this id.
func (id EntityID) ToEntity() *Entity {
	return &Entity{
		ID:    id,
		Shard: id.Shard(),
		Realm: id.Realm(),
		Num:   id.Num(),
		Type:  EntityTypeAccount,
	}
}

// Timestamp is a seconds+nanos instant as carried by the archival format.
type Timestamp struct {
	Seconds int64
	Nanos   int32
}

// TimestampInNanosMax converts seconds+nanos to nanoseconds since epoch.
// Any overflow, in either direction, saturates at math.MaxInt64.
func TimestampInNanosMax(seconds int64, nanos int32) int64 {
	const nanosPerSecond = int64(time.Second)
	if seconds > math.MaxInt64/nanosPerSecond || seconds < math.MinInt64/nanosPerSecond {
		return math.MaxInt64
	}
	base := seconds * nanosPerSecond
	n := int64(nanos)
	if (n > 0 && base > math.MaxInt64-n) || (n < 0 && base < math.MinInt64-n) {
		return math.MaxInt64
	}
	return base + n
}

// AccountInfo is one decoded archival account record. Nil fields were absent in the archive.
type AccountInfo struct {
	AccountID       EntityID
	Key             []byte     // serialized key message, nil if absent
	AutoRenewPeriod *int64     // seconds
	ExpirationTime  *Timestamp
	Deleted         bool
	Memo            *string // present for every decoded record, possibly empty
	ProxyAccountID  *EntityID
}

// Entity is a persisted ledger entity row.
type Entity struct {
	ID                  EntityID // PK, immutable
	Shard               int64
	Realm               int64
	Num                 int64
	Type                EntityType
	Key                 []byte
	AutoRenewPeriod     *int64 // seconds
	Deleted             bool
	ExpirationTimestamp *int64 // nanos since epoch
	Memo                string
	ProxyAccountID      *EntityID
}

// JobRun is one completed execution of a one-time job.
type JobRun struct {
	ID        uuid.UUID
	Job       string
	Checksum  int
	Updated   int64
	Elapsed   time.Duration
	AppliedAt time.Time
}
