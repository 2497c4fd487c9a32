package trustcrypto

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
)

// HashSize is the length in bytes of the digests produced by Hash.
const HashSize = sha256.Size

// Hash returns the hex-encoded SHA-256 digest of data.
func Hash[D Data](data D) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// RandomBytes returns n cryptographically secure random bytes.
func RandomBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, opFailed("random bytes", errors.New("negative length"))
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(entropy, buf); err != nil {
		return nil, opFailed("random bytes", err)
	}
	return buf, nil
}

// GenerateID returns a 32-character hex identifier drawn from 16 random bytes.
func GenerateID() (string, error) {
	b, err := RandomBytes(16)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
