package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/erpc/tck/common"
	"golang.org/x/crypto/sha3"
)

type KeyType string

const (
	KeyTypeEd25519        KeyType = "ED25519"
	KeyTypeEcdsaSecp256k1 KeyType = "ECDSA_SECP256K1"
)

func ParseKeyType(s string) (KeyType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ED25519", "ED25519_PRIVATE_KEY", "ED25519_PUBLIC_KEY":
		return KeyTypeEd25519, nil
	case "ECDSA_SECP256K1", "ECDSASECP256K1", "ECDSA", "SECP256K1", "ECDSA_SECP256K1_PRIVATE_KEY", "ECDSA_SECP256K1_PUBLIC_KEY":
		return KeyTypeEcdsaSecp256k1, nil
	}
	return "", fmt.Errorf("unknown key type %q", s)
}

// DER prefixes of the ASN.1 encodings the ledger tooling emits. The raw key bytes follow directly.
const (
	ed25519PrivateDerPrefix = "302e020100300506032b657004220420"
	ed25519PublicDerPrefix  = "302a300506032b6570032100"
	ecdsaPrivateDerPrefix   = "3030020100300706052b8104000a04220420"
	ecdsaPublicDerPrefix    = "302d300706052a8648ce3d020106052b8104000a032200"
)

type PrivateKey struct {
	keyType KeyType
	ed      ed25519.PrivateKey
	ec      *secp256k1.PrivateKey
}

type PublicKey struct {
	keyType KeyType
	ed      ed25519.PublicKey
	ec      *secp256k1.PublicKey
}

func GeneratePrivateKey(t KeyType) (*PrivateKey, error) {
	switch t {
	case KeyTypeEd25519:
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		return &PrivateKey{keyType: t, ed: priv}, nil
	case KeyTypeEcdsaSecp256k1:
		priv, err := secp256k1.GeneratePrivateKey()
		if err != nil {
			return nil, err
		}
		return &PrivateKey{keyType: t, ec: priv}, nil
	}
	return nil, fmt.Errorf("unsupported key type %q", t)
}

// ParsePrivateKey accepts DER hex for either key type, or raw 32-byte hex which is read as ED25519.
func ParsePrivateKey(s string) (*PrivateKey, error) {
	h := normalizeHex(s)
	switch {
	case strings.HasPrefix(h, ed25519PrivateDerPrefix):
		return ParseRawPrivateKey(KeyTypeEd25519, strings.TrimPrefix(h, ed25519PrivateDerPrefix))
	case strings.HasPrefix(h, ecdsaPrivateDerPrefix):
		return ParseRawPrivateKey(KeyTypeEcdsaSecp256k1, strings.TrimPrefix(h, ecdsaPrivateDerPrefix))
	}
	return ParseRawPrivateKey(KeyTypeEd25519, h)
}

func ParseRawPrivateKey(t KeyType, s string) (*PrivateKey, error) {
	b, err := hex.DecodeString(normalizeHex(s))
	if err != nil {
		return nil, fmt.Errorf("private key is not valid hex: %w", err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(b))
	}
	switch t {
	case KeyTypeEd25519:
		return &PrivateKey{keyType: t, ed: ed25519.NewKeyFromSeed(b)}, nil
	case KeyTypeEcdsaSecp256k1:
		return &PrivateKey{keyType: t, ec: secp256k1.PrivKeyFromBytes(b)}, nil
	}
	return nil, fmt.Errorf("unsupported key type %q", t)
}

func (k *PrivateKey) Type() KeyType { return k.keyType }

func (k *PrivateKey) raw() []byte {
	if k.keyType == KeyTypeEd25519 {
		return k.ed.Seed()
	}
	return k.ec.Serialize()
}

func (k *PrivateKey) StringRaw() string {
	return hex.EncodeToString(k.raw())
}

func (k *PrivateKey) StringDer() string {
	if k.keyType == KeyTypeEd25519 {
		return ed25519PrivateDerPrefix + k.StringRaw()
	}
	return ecdsaPrivateDerPrefix + k.StringRaw()
}

// String never reveals key material.
func (k *PrivateKey) String() string {
	return fmt.Sprintf("%s private key (public %s)", k.keyType, k.PublicKey().StringRaw())
}

func (k *PrivateKey) PublicKey() *PublicKey {
	if k.keyType == KeyTypeEd25519 {
		return &PublicKey{keyType: k.keyType, ed: k.ed.Public().(ed25519.PublicKey)}
	}
	return &PublicKey{keyType: k.keyType, ec: k.ec.PubKey()}
}

// Sign signs msg directly for ED25519 and its keccak256 digest for ECDSA.
func (k *PrivateKey) Sign(msg []byte) []byte {
	if k.keyType == KeyTypeEd25519 {
		return ed25519.Sign(k.ed, msg)
	}
	return secpecdsa.SignCompact(k.ec, keccak256(msg), false)
}

func ParsePublicKey(s string) (*PublicKey, error) {
	h := normalizeHex(s)
	switch {
	case strings.HasPrefix(h, ed25519PublicDerPrefix):
		return parseRawPublicKey(KeyTypeEd25519, strings.TrimPrefix(h, ed25519PublicDerPrefix))
	case strings.HasPrefix(h, ecdsaPublicDerPrefix):
		return parseRawPublicKey(KeyTypeEcdsaSecp256k1, strings.TrimPrefix(h, ecdsaPublicDerPrefix))
	}
	// 33-byte compressed secp256k1 keys start with 02/03; 32-byte keys are ED25519.
	if len(h) == 66 && (strings.HasPrefix(h, "02") || strings.HasPrefix(h, "03")) {
		return parseRawPublicKey(KeyTypeEcdsaSecp256k1, h)
	}
	return parseRawPublicKey(KeyTypeEd25519, h)
}

func parseRawPublicKey(t KeyType, h string) (*PublicKey, error) {
	b, err := hex.DecodeString(h)
	if err != nil {
		return nil, fmt.Errorf("public key is not valid hex: %w", err)
	}
	switch t {
	case KeyTypeEd25519:
		if len(b) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, len(b))
		}
		return &PublicKey{keyType: t, ed: ed25519.PublicKey(b)}, nil
	case KeyTypeEcdsaSecp256k1:
		pub, err := secp256k1.ParsePubKey(b)
		if err != nil {
			return nil, err
		}
		return &PublicKey{keyType: t, ec: pub}, nil
	}
	return nil, fmt.Errorf("unsupported key type %q", t)
}

func (k *PublicKey) Type() KeyType { return k.keyType }

func (k *PublicKey) StringRaw() string {
	if k.keyType == KeyTypeEd25519 {
		return hex.EncodeToString(k.ed)
	}
	return hex.EncodeToString(k.ec.SerializeCompressed())
}

func (k *PublicKey) StringDer() string {
	if k.keyType == KeyTypeEd25519 {
		return ed25519PublicDerPrefix + k.StringRaw()
	}
	return ecdsaPublicDerPrefix + k.StringRaw()
}

func (k *PublicKey) String() string { return k.StringDer() }

func (k *PublicKey) Verify(msg, sig []byte) bool {
	if k.keyType == KeyTypeEd25519 {
		return ed25519.Verify(k.ed, msg, sig)
	}
	pub, _, err := secpecdsa.RecoverCompact(sig, keccak256(msg))
	if err != nil {
		return false
	}
	return pub.IsEqual(k.ec)
}

// NormalizePublicKey strips any DER prefix and returns the raw key as lowercase hex, so that keys
// reported by different oracles in different encodings compare equal.
func NormalizePublicKey(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	k, err := ParsePublicKey(s)
	if err != nil {
		return "", err
	}
	return k.StringRaw(), nil
}

func keccak256(msg []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(msg)
	return h.Sum(nil)
}

func normalizeHex(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
}

// Identity is an account plus the key that controls it.
type Identity struct {
	AccountId  common.EntityId
	PrivateKey *PrivateKey
}

func NewIdentity(accountId string, privateKey string) (Identity, error) {
	id, err := common.ParseEntityId(accountId)
	if err != nil {
		return Identity{}, err
	}
	pk, err := ParsePrivateKey(privateKey)
	if err != nil {
		return Identity{}, err
	}
	return Identity{AccountId: id, PrivateKey: pk}, nil
}

func (i Identity) Validate() error {
	if i.AccountId.IsZero() {
		return fmt.Errorf("identity has no account id")
	}
	if i.PrivateKey == nil {
		return fmt.Errorf("identity %s has no private key", i.AccountId)
	}
	return nil
}

func (i Identity) String() string {
	return i.AccountId.String()
}
