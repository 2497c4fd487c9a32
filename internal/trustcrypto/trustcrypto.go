// Package trustcrypto holds the stateless cryptographic primitives used by the
// trust engine and the audit trail: Ed25519 keys and signatures, SHA-256
// hashing, RFC 8785 canonical JSON, hash-chain links and audit signatures.
//
// Every function is pure apart from reading the entropy source. Failures of
// the underlying primitives are reported as ErrCryptoOperationFailed; a
// signature that simply does not match is never an error.
package trustcrypto

import (
	"errors"
	"fmt"
)

// ErrCryptoOperationFailed is returned when an entropy source or signature
// primitive fails, or when a key or signature has the wrong shape.
var ErrCryptoOperationFailed = errors.New("crypto operation failed")

func opFailed(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrCryptoOperationFailed, err)
}
