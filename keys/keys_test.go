package keys

import (
	"strings"
	"testing"

	"github.com/erpc/tck/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrivateKey_RoundTrip(t *testing.T) {
	for _, kt := range []KeyType{KeyTypeEd25519, KeyTypeEcdsaSecp256k1} {
		t.Run(string(kt), func(t *testing.T) {
			k, err := GeneratePrivateKey(kt)
			require.NoError(t, err)
			assert.Equal(t, kt, k.Type())
			assert.Len(t, k.StringRaw(), 64)

			parsed, err := ParsePrivateKey(k.StringDer())
			require.NoError(t, err)
			assert.Equal(t, kt, parsed.Type())
			assert.Equal(t, k.StringRaw(), parsed.StringRaw())
			assert.Equal(t, k.PublicKey().StringDer(), parsed.PublicKey().StringDer())

			msg := []byte("transfer 10 to 0.0.1001")
			sig := k.Sign(msg)
			assert.True(t, k.PublicKey().Verify(msg, sig))
			assert.False(t, k.PublicKey().Verify([]byte("tampered"), sig))
		})
	}
}

func TestParsePrivateKey_RawDefaultsToEd25519(t *testing.T) {
	raw := strings.Repeat("ab", 32)
	k, err := ParsePrivateKey(raw)
	require.NoError(t, err)
	assert.Equal(t, KeyTypeEd25519, k.Type())
	assert.Equal(t, raw, k.StringRaw())
	assert.True(t, strings.HasPrefix(k.StringDer(), ed25519PrivateDerPrefix))
}

func TestParsePrivateKey_Invalid(t *testing.T) {
	for _, s := range []string{"", "not-a-valid-key", "abcd", strings.Repeat("zz", 32)} {
		_, err := ParsePrivateKey(s)
		assert.Error(t, err, s)
	}
}

func TestParseKeyType(t *testing.T) {
	kt, err := ParseKeyType("ed25519")
	require.NoError(t, err)
	assert.Equal(t, KeyTypeEd25519, kt)

	kt, err = ParseKeyType("ecdsaSecp256k1PrivateKey")
	assert.Error(t, err)
	assert.Empty(t, kt)

	kt, err = ParseKeyType("ECDSA_SECP256K1")
	require.NoError(t, err)
	assert.Equal(t, KeyTypeEcdsaSecp256k1, kt)
}

func TestNormalizePublicKey(t *testing.T) {
	for _, kt := range []KeyType{KeyTypeEd25519, KeyTypeEcdsaSecp256k1} {
		k, err := GeneratePrivateKey(kt)
		require.NoError(t, err)
		pub := k.PublicKey()

		fromDer, err := NormalizePublicKey(pub.StringDer())
		require.NoError(t, err)
		fromRaw, err := NormalizePublicKey("0x" + strings.ToUpper(pub.StringRaw()))
		require.NoError(t, err)
		assert.Equal(t, fromDer, fromRaw)
		assert.Equal(t, pub.StringRaw(), fromDer)
	}

	empty, err := NormalizePublicKey("  ")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = NormalizePublicKey("xyz")
	assert.Error(t, err)
}

func TestIdentity(t *testing.T) {
	k, err := GeneratePrivateKey(KeyTypeEd25519)
	require.NoError(t, err)

	id, err := NewIdentity("0.0.1002", k.StringDer())
	require.NoError(t, err)
	assert.NoError(t, id.Validate())
	assert.Equal(t, common.NewEntityId(0, 0, 1002), id.AccountId)
	assert.Equal(t, "0.0.1002", id.String())

	_, err = NewIdentity("0.0", k.StringDer())
	assert.Error(t, err)

	assert.Error(t, Identity{}.Validate())
	assert.Error(t, Identity{AccountId: common.NewEntityId(0, 0, 2)}.Validate())
}
