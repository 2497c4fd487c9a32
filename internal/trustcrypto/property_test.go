package trustcrypto

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestHashChainProperties checks that a link always verifies against its own
// inputs and that flipping any single byte of the data or previous hash breaks it.
func TestHashChainProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("link verifies against its own inputs", prop.ForAll(
		func(prev, data string) bool {
			h, err := CreateHashChain(prev, data)
			if err != nil {
				return false
			}
			return VerifyHashChain(prev, data, h)
		},
		gen.AnyString(),
		gen.AlphaString(),
	))

	properties.Property("single byte change in data breaks the link", prop.ForAll(
		func(data string, pos int) bool {
			if data == "" {
				return true
			}
			h, err := CreateHashChain(GenesisHash, data)
			if err != nil {
				return false
			}
			b := []byte(data)
			i := pos % len(b)
			b[i] ^= 0x01
			return !VerifyHashChain(GenesisHash, string(b), h)
		},
		gen.AlphaString(),
		gen.IntRange(0, 1<<16),
	))

	properties.Property("single byte change in previous hash breaks the link", prop.ForAll(
		func(pos int) bool {
			h, err := CreateHashChain(GenesisHash, "payload")
			if err != nil {
				return false
			}
			b := []byte(GenesisHash)
			b[pos%len(b)] = '1'
			return !VerifyHashChain(string(b), "payload", h)
		},
		gen.IntRange(0, 63),
	))

	properties.TestingRun(t)
}

func TestSignatureProperties(t *testing.T) {
	kp, err := GenerateKeypair()
	if err != nil {
		t.Fatal(err)
	}

	properties := gopter.NewProperties(gopter.DefaultTestParameters())
	properties.Property("sign then verify holds", prop.ForAll(
		func(data string) bool {
			sig, err := Sign(data, kp.PrivateKey)
			if err != nil {
				return false
			}
			ok, err := Verify(sig, data, kp.PublicKey)
			return err == nil && ok
		},
		gen.AnyString(),
	))
	properties.TestingRun(t)
}
