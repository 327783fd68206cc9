package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntityId(t *testing.T) {
	id, err := ParseEntityId(" 1.2.3 ")
	require.NoError(t, err)
	assert.Equal(t, EntityId{Shard: 1, Realm: 2, Num: 3}, id)
	assert.Equal(t, "1.2.3", id.String())

	for _, bad := range []string{"", "3", "0.0", "0.0.abc", "0.0.-1", "0.0.+1", "0..1", "0.0.1.2"} {
		_, err := ParseEntityId(bad)
		assert.Error(t, err, bad)
	}
	assert.Panics(t, func() { MustParseEntityId("x") })
}

func TestEntityIdText(t *testing.T) {
	var id EntityId
	require.NoError(t, id.UnmarshalText([]byte("0.0.1001")))
	b, err := id.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "0.0.1001", string(b))
	assert.True(t, EntityId{}.IsZero())
	assert.Error(t, id.UnmarshalText([]byte("nope")))
}

func TestParseEntityRef(t *testing.T) {
	ref, err := ParseEntityRef("Token", "0.0.7")
	require.NoError(t, err)
	assert.Equal(t, TokenRef(MustParseEntityId("0.0.7")), ref)
	assert.Equal(t, "token 0.0.7", ref.String())

	node, err := ParseEntityRef("node", "3")
	require.NoError(t, err)
	assert.Equal(t, NodeRef(3), node)
	assert.Equal(t, "node 3", node.String())

	_, err = ParseEntityRef("wallet", "0.0.1")
	assert.Error(t, err)
	_, err = ParseEntityRef("account", "7")
	assert.Error(t, err)
}

func TestTransactionId(t *testing.T) {
	start := time.Unix(1700000000, 5).UTC()
	txId := NewTransactionId(MustParseEntityId("0.0.2"), start)
	assert.Equal(t, "0.0.2@1700000000.000000005", txId.String())
	assert.Equal(t, "0.0.2-1700000000-000000005", txId.MirrorString())

	parsed, err := ParseTransactionId(txId.String())
	require.NoError(t, err)
	assert.Equal(t, txId.AccountId, parsed.AccountId)
	assert.True(t, parsed.ValidStart.Equal(start))

	_, err = ParseTransactionId("0.0.2")
	assert.Error(t, err)
	_, err = ParseTransactionId("0.0.2@abc")
	assert.Error(t, err)
}

func TestParseTimestamp(t *testing.T) {
	ts, err := ParseTimestamp("1700000000.5")
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, time.Duration(ts.Nanosecond()))

	zero, err := ParseTimestamp("")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	_, err = ParseTimestamp("1.1234567890")
	assert.Error(t, err)
}

func TestSnapshotFields(t *testing.T) {
	acc := &AccountState{AccountId: MustParseEntityId("0.0.5"), Balance: 10}
	f := acc.Fields()
	assert.Equal(t, "0.0.5", f[FieldAccountId])
	assert.Nil(t, f[FieldStakedNodeId])
	assert.Equal(t, AccountRef(acc.AccountId), acc.Ref())

	n := int64(0)
	acc.StakedNodeId = &n
	assert.Equal(t, int64(0), acc.Fields()[FieldStakedNodeId])

	node := &NodeState{NodeId: 1, ServiceEndpoints: []string{"b:2", "a:1"}}
	assert.Equal(t, []string{"a:1", "b:2"}, node.Fields()[FieldServiceEndpoints])
	assert.Equal(t, []string{"b:2", "a:1"}, node.ServiceEndpoints, "Fields must not reorder the source")
}
