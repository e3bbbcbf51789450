package state

import (
	"bytes"
	"encoding/json"
	"fmt"

	"cosmossdk.io/log"
	"github.com/calehh/safesnap/types"
	"github.com/cosmos/iavl"
	dbm "github.com/cosmos/iavl/db"
)

// treeKV keeps records in an iavl tree and commits one tree version per put,
// so every saved document stays readable by version.
type treeKV struct {
	tree *iavl.MutableTree
}

func openTree(dir string, logger log.Logger) (*treeKV, error) {
	ldb, err := dbm.NewDB("safesnap", "goleveldb", dir)
	if err != nil {
		return nil, err
	}
	tree := iavl.NewMutableTree(ldb, 128, true, logger)
	version, err := tree.Load()
	if err != nil {
		return nil, err
	}
	logger.Info("load tree success", "version", version)
	return &treeKV{tree: tree}, nil
}

func (t *treeKV) get(key []byte) ([]byte, error) {
	dat, err := t.tree.Get(key)
	if err != nil {
		return nil, err
	}
	if dat == nil {
		return nil, errKeyNotFound
	}
	return dat, nil
}

func (t *treeKV) put(key, value []byte) error {
	if _, err := t.tree.Set(key, value); err != nil {
		return err
	}
	_, _, err := t.tree.SaveVersion()
	return err
}

func (t *treeKV) iterate(prefix []byte, fn func(key, value []byte) bool) error {
	_, err := t.tree.Iterate(func(key, value []byte) bool {
		if !bytes.HasPrefix(key, prefix) {
			return false
		}
		return !fn(key, value)
	})
	return err
}

func (t *treeKV) close() error {
	return t.tree.Close()
}

// LoadVersion returns the record as it was at the given tree version. It is
// only supported by the iavl backend.
func (db *StateDB) LoadVersion(proposalId string, version int64) (*types.RealityOracleProposal, error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	t, ok := db.kv.(*treeKV)
	if !ok {
		return nil, fmt.Errorf("backend %s keeps no history", db.backend)
	}
	dat, err := t.tree.GetVersioned(keyProposal(proposalId), version)
	if err != nil {
		return nil, err
	}
	if dat == nil {
		return nil, fmt.Errorf("proposal %s at version %d: %w", proposalId, version, types.ErrNotFound)
	}
	rec := new(types.RealityOracleProposal)
	if err := json.Unmarshal(dat, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// TreeVersion returns the latest committed tree version, or zero for
// backends without history.
func (db *StateDB) TreeVersion() int64 {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	if t, ok := db.kv.(*treeKV); ok {
		return t.tree.Version()
	}
	return 0
}
