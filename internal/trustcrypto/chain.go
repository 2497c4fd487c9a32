package trustcrypto

import (
	"crypto/subtle"
	"strings"
)

// GenesisHash is the previous-hash value of the first link in every chain:
// the all-zero hex string of a SHA-256 digest.
var GenesisHash = strings.Repeat("0", HashSize*2)

// CreateHashChain links data to previousHash:
// Hash(previousHash + ":" + canonicalJSON(data)).
func CreateHashChain(previousHash string, data any) (string, error) {
	canon, err := Canonicalize(data)
	if err != nil {
		return "", err
	}
	buf := make([]byte, 0, len(previousHash)+1+len(canon))
	buf = append(buf, previousHash...)
	buf = append(buf, ':')
	buf = append(buf, canon...)
	return Hash(buf), nil
}

// VerifyHashChain recomputes the link and compares it with expectedHash.
func VerifyHashChain(previousHash string, data any, expectedHash string) bool {
	got, err := CreateHashChain(previousHash, data)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(expectedHash)) == 1
}
