package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	eth_crypto "github.com/ethereum/go-ethereum/crypto"
)

var ErrKeyExists = errors.New("key file already exists")

// Key is the executor account that signs module transactions.
type Key struct {
	privateKey *ecdsa.PrivateKey
}

func LoadFileKey(keyFilePath string) (*Key, error) {
	dat, err := os.ReadFile(keyFilePath)
	if err != nil {
		return nil, err
	}
	priv, err := eth_crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(string(dat)), "0x"))
	if err != nil {
		return nil, fmt.Errorf("error reading executor key from %v: %w", keyFilePath, err)
	}
	return &Key{privateKey: priv}, nil
}

// GenerateFileKey writes a new hex encoded key to keyFilePath. An existing
// file is never overwritten.
func GenerateFileKey(keyFilePath string) (*Key, error) {
	if _, err := os.Stat(keyFilePath); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrKeyExists, keyFilePath)
	}
	priv, err := eth_crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(keyFilePath), 0o700); err != nil {
		return nil, err
	}
	key := hex.EncodeToString(eth_crypto.FromECDSA(priv))
	if err := os.WriteFile(keyFilePath, []byte(key), 0o600); err != nil {
		return nil, err
	}
	return &Key{privateKey: priv}, nil
}

func (k *Key) PrivateKey() *ecdsa.PrivateKey {
	return k.privateKey
}

func (k *Key) Address() common.Address {
	return eth_crypto.PubkeyToAddress(k.privateKey.PublicKey)
}

func (k *Key) PublicKey() []byte {
	return eth_crypto.FromECDSAPub(&k.privateKey.PublicKey)
}

func (k *Key) Sign(hash []byte) ([]byte, error) {
	return eth_crypto.Sign(hash, k.privateKey)
}
