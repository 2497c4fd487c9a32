package trustcrypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// entropy is the random source for key generation and RandomBytes.
var entropy io.Reader = rand.Reader

// Keypair is an Ed25519 key pair. PrivateKey is the full 64-byte Go form;
// Seed returns the 32-byte value that is exported and stored.
type Keypair struct {
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
}

// GenerateKeypair creates a new Ed25519 key pair from the entropy source.
func GenerateKeypair() (*Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(entropy)
	if err != nil {
		return nil, opFailed("generate keypair", err)
	}
	return &Keypair{PublicKey: pub, PrivateKey: priv}, nil
}

// KeypairFromSeed rebuilds a key pair from a 32-byte seed.
func KeypairFromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, opFailed("keypair from seed", fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed)))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Keypair{PublicKey: priv.Public().(ed25519.PublicKey), PrivateKey: priv}, nil
}

// Seed returns the 32-byte private seed.
func (k *Keypair) Seed() []byte {
	return k.PrivateKey.Seed()
}

// PublicKeyHex returns the hex-encoded public key.
func (k *Keypair) PublicKeyHex() string {
	return hex.EncodeToString(k.PublicKey)
}

// ParsePublicKey decodes a public key given as hex or standard base64.
func ParsePublicKey(s string) (ed25519.PublicKey, error) {
	s = strings.TrimSpace(s)
	if b, err := hex.DecodeString(s); err == nil && len(b) == ed25519.PublicKeySize {
		return ed25519.PublicKey(b), nil
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil && len(b) == ed25519.PublicKeySize {
		return ed25519.PublicKey(b), nil
	}
	return nil, opFailed("parse public key", fmt.Errorf("expected %d bytes as hex or base64", ed25519.PublicKeySize))
}

// privateKey accepts either a 32-byte seed or a 64-byte expanded key.
func privateKey(b []byte) (ed25519.PrivateKey, error) {
	switch len(b) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(b), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(b), nil
	default:
		return nil, fmt.Errorf("private key must be %d or %d bytes, got %d", ed25519.SeedSize, ed25519.PrivateKeySize, len(b))
	}
}
