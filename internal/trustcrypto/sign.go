package trustcrypto

import (
	"crypto/ed25519"
	"fmt"
)

// Data is anything that can be signed or hashed: strings are taken as their
// UTF-8 bytes.
type Data interface {
	~string | ~[]byte
}

// Sign produces an Ed25519 signature of data.
func Sign[D Data](data D, privKey []byte) ([]byte, error) {
	priv, err := privateKey(privKey)
	if err != nil {
		return nil, opFailed("sign", err)
	}
	return ed25519.Sign(priv, []byte(data)), nil
}

// Verify reports whether signature is a valid signature of data by publicKey.
// A mismatch returns false; only malformed keys or signatures return an error.
func Verify[D Data](signature []byte, data D, publicKey []byte) (bool, error) {
	if len(publicKey) != ed25519.PublicKeySize {
		return false, opFailed("verify", fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(publicKey)))
	}
	if len(signature) != ed25519.SignatureSize {
		return false, opFailed("verify", fmt.Errorf("signature must be %d bytes, got %d", ed25519.SignatureSize, len(signature)))
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), []byte(data), signature), nil
}
