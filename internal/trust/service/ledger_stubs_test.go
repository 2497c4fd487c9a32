package service

import (
	"context"
	"crypto/ed25519"
	"errors"
	"sync"

	"github.com/jmerrifield20/NexusTrust/internal/trustcrypto"
	"github.com/jmerrifield20/NexusTrust/internal/trustledger"
)

// racingLedger lets a rival writer take the chain head just before the
// first append lands.
type racingLedger struct {
	*trustledger.MemoryLedger
	keys *trustcrypto.Keypair
	once sync.Once
}

func (l *racingLedger) Append(ctx context.Context, entry *trustledger.Entry) (*trustledger.Entry, error) {
	l.once.Do(func() {
		rival := trustledger.NewEntry(entry.ChainID, "rival-tx", "trust.rival", "rival", entry.ChainID, nil, entry.Timestamp)
		if err := rival.Sign(l.keys.PrivateKey); err != nil {
			panic(err)
		}
		rival.PreviousHash = entry.PreviousHash
		if _, err := l.MemoryLedger.Append(ctx, rival); err != nil {
			panic(err)
		}
	})
	return l.MemoryLedger.Append(ctx, entry)
}

// brokenLedger rejects every append with a storage error.
type brokenLedger struct {
	*trustledger.MemoryLedger
}

func (brokenLedger) Append(context.Context, *trustledger.Entry) (*trustledger.Entry, error) {
	return nil, errors.New("disk full")
}

// tamperingLedger corrupts the stored metadata of one entry before verifying.
type tamperingLedger struct {
	*trustledger.MemoryLedger
	index int
}

func (l *tamperingLedger) Verify(ctx context.Context, chainID string, pub ed25519.PublicKey) error {
	entries, err := l.Entries(ctx, chainID)
	if err != nil {
		return err
	}
	if l.index < len(entries) {
		entries[l.index].Metadata["localScore"] = 1.0
	}
	return trustledger.VerifyChain(entries, pub)
}
