package trustcrypto

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

// ErrBadPassphrase is returned by ImportPrivateKey when the envelope cannot
// be opened with the given passphrase.
var ErrBadPassphrase = errors.New("wrong passphrase or corrupted key envelope")

const (
	envelopeVersion = 1
	scryptN         = 1 << 15
	scryptR         = 8
	scryptP         = 1
)

// KeyEnvelope is the exported, passphrase-protected form of a private seed.
type KeyEnvelope struct {
	Version    int    `json:"version"`
	KDF        string `json:"kdf"`
	N          int    `json:"n"`
	R          int    `json:"r"`
	P          int    `json:"p"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
	PublicKey  string `json:"public_key"`
}

// ExportPrivateKey seals the 32-byte seed of privKey under a key derived from
// passphrase with scrypt, and returns the JSON envelope.
func ExportPrivateKey(privKey, passphrase []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, errors.New("export private key: passphrase is required")
	}
	priv, err := privateKey(privKey)
	if err != nil {
		return nil, opFailed("export private key", err)
	}

	salt, err := RandomBytes(16)
	if err != nil {
		return nil, err
	}
	nonceBytes, err := RandomBytes(24)
	if err != nil {
		return nil, err
	}
	key, err := deriveKey(passphrase, salt, scryptN, scryptR, scryptP)
	if err != nil {
		return nil, err
	}

	var nonce [24]byte
	copy(nonce[:], nonceBytes)
	sealed := secretbox.Seal(nil, priv.Seed(), &nonce, key)

	kp, _ := KeypairFromSeed(priv.Seed())
	env := KeyEnvelope{
		Version:    envelopeVersion,
		KDF:        "scrypt",
		N:          scryptN,
		R:          scryptR,
		P:          scryptP,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce[:]),
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
		PublicKey:  hex.EncodeToString(kp.PublicKey),
	}
	return json.MarshalIndent(env, "", "  ")
}

// ImportPrivateKey opens an envelope produced by ExportPrivateKey.
func ImportPrivateKey(data, passphrase []byte) (*Keypair, error) {
	var env KeyEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode key envelope: %w", err)
	}
	if env.Version != envelopeVersion || env.KDF != "scrypt" {
		return nil, fmt.Errorf("unsupported key envelope (version %d, kdf %q)", env.Version, env.KDF)
	}

	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	nonceBytes, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil || len(nonceBytes) != 24 {
		return nil, errors.New("decode nonce: invalid")
	}
	sealed, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}

	key, err := deriveKey(passphrase, salt, env.N, env.R, env.P)
	if err != nil {
		return nil, err
	}
	var nonce [24]byte
	copy(nonce[:], nonceBytes)
	seed, ok := secretbox.Open(nil, sealed, &nonce, key)
	if !ok {
		return nil, ErrBadPassphrase
	}

	kp, err := KeypairFromSeed(seed)
	if err != nil {
		return nil, err
	}
	if env.PublicKey != "" && env.PublicKey != kp.PublicKeyHex() {
		return nil, ErrBadPassphrase
	}
	return kp, nil
}

func deriveKey(passphrase, salt []byte, n, r, p int) (*[32]byte, error) {
	k, err := scrypt.Key(passphrase, salt, n, r, p, 32)
	if err != nil {
		return nil, opFailed("derive key", err)
	}
	var key [32]byte
	copy(key[:], k)
	return &key, nil
}
