package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type EntityKind string

const (
	EntityKindAccount  EntityKind = "account"
	EntityKindContract EntityKind = "contract"
	EntityKindToken    EntityKind = "token"
	EntityKindTopic    EntityKind = "topic"
	EntityKindSchedule EntityKind = "schedule"
	EntityKindFile     EntityKind = "file"
	EntityKindNode     EntityKind = "node"
)

var entityKinds = []EntityKind{
	EntityKindAccount,
	EntityKindContract,
	EntityKindToken,
	EntityKindTopic,
	EntityKindSchedule,
	EntityKindFile,
	EntityKindNode,
}

func ParseEntityKind(s string) (EntityKind, error) {
	for _, k := range entityKinds {
		if strings.EqualFold(string(k), s) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown entity kind %q", s)
}

// EntityId is a ledger entity number in shard.realm.num form.
type EntityId struct {
	Shard int64
	Realm int64
	Num   int64
}

func NewEntityId(shard, realm, num int64) EntityId {
	return EntityId{Shard: shard, Realm: realm, Num: num}
}

// ParseEntityId accepts only the canonical "shard.realm.num" form with non-negative decimal parts.
func ParseEntityId(s string) (EntityId, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 3 {
		return EntityId{}, fmt.Errorf("malformed entity id %q: expected shard.realm.num", s)
	}
	var out [3]int64
	for i, p := range parts {
		if p == "" || strings.HasPrefix(p, "+") || strings.HasPrefix(p, "-") {
			return EntityId{}, fmt.Errorf("malformed entity id %q", s)
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return EntityId{}, fmt.Errorf("malformed entity id %q: %w", s, err)
		}
		out[i] = v
	}
	return EntityId{Shard: out[0], Realm: out[1], Num: out[2]}, nil
}

func MustParseEntityId(s string) EntityId {
	id, err := ParseEntityId(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (id EntityId) String() string {
	return fmt.Sprintf("%d.%d.%d", id.Shard, id.Realm, id.Num)
}

func (id EntityId) IsZero() bool {
	return id.Shard == 0 && id.Realm == 0 && id.Num == 0
}

func (id EntityId) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *EntityId) UnmarshalText(b []byte) error {
	parsed, err := ParseEntityId(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// EntityRef addresses one entity on either oracle. Nodes use Id.Num as the node id.
type EntityRef struct {
	Kind EntityKind
	Id   EntityId
}

func AccountRef(id EntityId) EntityRef  { return EntityRef{Kind: EntityKindAccount, Id: id} }
func ContractRef(id EntityId) EntityRef { return EntityRef{Kind: EntityKindContract, Id: id} }
func TokenRef(id EntityId) EntityRef    { return EntityRef{Kind: EntityKindToken, Id: id} }
func TopicRef(id EntityId) EntityRef    { return EntityRef{Kind: EntityKindTopic, Id: id} }
func ScheduleRef(id EntityId) EntityRef { return EntityRef{Kind: EntityKindSchedule, Id: id} }
func NodeRef(nodeId int64) EntityRef    { return EntityRef{Kind: EntityKindNode, Id: EntityId{Num: nodeId}} }

// ParseEntityRef builds a reference from a kind and an id; node ids may be given as a bare number.
func ParseEntityRef(kind, id string) (EntityRef, error) {
	k, err := ParseEntityKind(kind)
	if err != nil {
		return EntityRef{}, err
	}
	if k == EntityKindNode {
		if n, err := strconv.ParseInt(id, 10, 64); err == nil && n >= 0 {
			return NodeRef(n), nil
		}
	}
	eid, err := ParseEntityId(id)
	if err != nil {
		return EntityRef{}, err
	}
	return EntityRef{Kind: k, Id: eid}, nil
}

func (r EntityRef) String() string {
	if r.Kind == EntityKindNode {
		return fmt.Sprintf("node %d", r.Id.Num)
	}
	return fmt.Sprintf("%s %s", r.Kind, r.Id)
}

// TransactionId is payer@seconds.nanos.
type TransactionId struct {
	AccountId  EntityId
	ValidStart time.Time
}

func NewTransactionId(payer EntityId, validStart time.Time) TransactionId {
	return TransactionId{AccountId: payer, ValidStart: validStart}
}

func (t TransactionId) String() string {
	return fmt.Sprintf("%s@%d.%09d", t.AccountId, t.ValidStart.Unix(), t.ValidStart.Nanosecond())
}

// MirrorString renders the id the way the read-replica REST API expects it: payer-seconds-nanos.
func (t TransactionId) MirrorString() string {
	return fmt.Sprintf("%s-%d-%09d", t.AccountId, t.ValidStart.Unix(), t.ValidStart.Nanosecond())
}

func ParseTransactionId(s string) (TransactionId, error) {
	at := strings.IndexByte(s, '@')
	if at < 0 {
		return TransactionId{}, fmt.Errorf("malformed transaction id %q: missing '@'", s)
	}
	payer, err := ParseEntityId(s[:at])
	if err != nil {
		return TransactionId{}, err
	}
	ts, err := ParseTimestamp(s[at+1:])
	if err != nil {
		return TransactionId{}, fmt.Errorf("malformed transaction id %q: %w", s, err)
	}
	return TransactionId{AccountId: payer, ValidStart: ts}, nil
}

// ParseTimestamp parses "seconds.nanos" as used by both oracles. Empty input yields the zero time.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	secStr, nanoStr, _ := strings.Cut(s, ".")
	sec, err := strconv.ParseInt(secStr, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	var nanos int64
	if nanoStr != "" {
		if len(nanoStr) > 9 {
			return time.Time{}, fmt.Errorf("invalid timestamp %q: too many fractional digits", s)
		}
		nanoStr = nanoStr + strings.Repeat("0", 9-len(nanoStr))
		nanos, err = strconv.ParseInt(nanoStr, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
	}
	return time.Unix(sec, nanos).UTC(), nil
}
