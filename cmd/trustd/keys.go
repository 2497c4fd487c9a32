package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/jmerrifield20/NexusTrust/internal/trustcrypto"
)

// loadSigningKey returns the service keypair.
//
// With an empty path an ephemeral key is generated: everything signed by it
// becomes unverifiable after a restart, so this is only suitable for
// development. Otherwise the passphrase-encrypted envelope at path is opened,
// or created first when generate is set and the file does not exist.
func loadSigningKey(path, passphrase string, generate bool, logger *zap.Logger) (*trustcrypto.Keypair, error) {
	if path == "" {
		logger.Warn("no signing key configured, using an ephemeral key")
		return trustcrypto.GenerateKeypair()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		kp, err := trustcrypto.ImportPrivateKey(data, []byte(passphrase))
		if err != nil {
			return nil, fmt.Errorf("open signing key %s: %w", path, err)
		}
		logger.Info("signing key loaded", zap.String("path", path), zap.String("public_key", kp.PublicKeyHex()))
		return kp, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read signing key: %w", err)
	case !generate:
		return nil, fmt.Errorf("signing key %s does not exist (set signing.generate to create it)", path)
	}

	kp, err := trustcrypto.GenerateKeypair()
	if err != nil {
		return nil, err
	}
	env, err := trustcrypto.ExportPrivateKey(kp.PrivateKey, []byte(passphrase))
	if err != nil {
		return nil, fmt.Errorf("seal signing key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create key dir: %w", err)
	}
	if err := os.WriteFile(path, env, 0o600); err != nil {
		return nil, fmt.Errorf("write signing key: %w", err)
	}
	logger.Info("signing key generated", zap.String("path", path), zap.String("public_key", kp.PublicKeyHex()))
	return kp, nil
}
