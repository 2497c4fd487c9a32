// Package trustledger implements the append-only, hash-chained audit trail.
//
// The trail is a set of independent chains, one per agent. The first entry of
// every chain links to GenesisHash (64 hex zeros); every later entry links to
// the hash of its predecessor:
//
//	hash = SHA256(previousHash + ":" + canonicalJSON(payload))
//
// and carries an Ed25519 signature over the same canonical payload, so a
// chain can be re-verified by anyone holding the signer's public key.
//
// Two implementations of the Ledger interface are provided:
//   - MemoryLedger: in-process, for testing and single-node deployments.
//   - PostgresLedger: durable, for production use.
package trustledger

import "github.com/jmerrifield20/NexusTrust/internal/trustcrypto"

// GenesisHash is the previous hash of the first entry in every chain.
var GenesisHash = trustcrypto.GenesisHash
