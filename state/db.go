package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"cosmossdk.io/log"
	"github.com/calehh/safesnap/types"
)

const (
	BackendLevelDB = "goleveldb"
	BackendIAVL    = "iavl"
)

var KeyProposalPrefix = []byte("p/")

func keyProposal(proposalId string) []byte {
	return append(append([]byte(nil), KeyProposalPrefix...), proposalId...)
}

var errKeyNotFound = errors.New("key not found")

// kvStore is the durable byte store under StateDB. put must be durable when
// it returns.
type kvStore interface {
	get(key []byte) ([]byte, error)
	put(key, value []byte) error
	iterate(prefix []byte, fn func(key, value []byte) bool) error
	close() error
}

// StateDB persists RealityOracleProposal documents keyed by proposal id.
// Every Save replaces the whole document; a stale Version is refused.
type StateDB struct {
	mtx sync.RWMutex

	dir     string
	backend string
	logger  log.Logger
	kv      kvStore
}

func NewStateDB(dir string, backend string, logger log.Logger) (db *StateDB, err error) {
	logger = logger.With("module", "statedb")
	var kv kvStore
	switch backend {
	case BackendLevelDB, "":
		backend = BackendLevelDB
		kv, err = openLevelDB(dir)
	case BackendIAVL:
		kv, err = openTree(dir, logger)
	default:
		return nil, fmt.Errorf("unknown state backend %q", backend)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("open state db success", "dir", dir, "backend", backend)
	db = &StateDB{
		dir:     dir,
		backend: backend,
		logger:  logger,
		kv:      kv,
	}
	return
}

// NewMemStateDB returns a StateDB backed by in-memory leveldb storage.
func NewMemStateDB(logger log.Logger) *StateDB {
	return &StateDB{
		backend: BackendLevelDB,
		logger:  logger.With("module", "statedb"),
		kv:      openMemLevelDB(),
	}
}

func (db *StateDB) Close() (err error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	err = db.kv.close()
	return
}

func (db *StateDB) load(proposalId string) (*types.RealityOracleProposal, error) {
	dat, err := db.kv.get(keyProposal(proposalId))
	if errors.Is(err, errKeyNotFound) {
		return nil, fmt.Errorf("proposal %s: %w", proposalId, types.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	rec := new(types.RealityOracleProposal)
	if err := json.Unmarshal(dat, rec); err != nil {
		return nil, fmt.Errorf("decode proposal %s: %w", proposalId, err)
	}
	return rec, nil
}

// Load returns a private copy of the stored record.
func (db *StateDB) Load(proposalId string) (*types.RealityOracleProposal, error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	return db.load(proposalId)
}

// Save atomically replaces the stored record. rec.Version must equal the
// stored version (zero for a new record); on success it is incremented.
func (db *StateDB) Save(rec *types.RealityOracleProposal) error {
	db.mtx.Lock()
	defer db.mtx.Unlock()

	var stored uint64
	cur, err := db.load(rec.ProposalId)
	switch {
	case err == nil:
		stored = cur.Version
	case errors.Is(err, types.ErrNotFound):
	default:
		return err
	}
	if rec.Version != stored {
		return fmt.Errorf("proposal %s version %d, stored %d: %w", rec.ProposalId, rec.Version, stored, types.ErrVersionConflict)
	}

	next := rec.Clone()
	next.Version++
	next.UpdatedAt = time.Now().Unix()
	if next.CreatedAt == 0 {
		next.CreatedAt = next.UpdatedAt
	}
	dat, err := json.Marshal(next)
	if err != nil {
		return err
	}
	if err := db.kv.put(keyProposal(rec.ProposalId), dat); err != nil {
		db.logger.Error("save proposal fail", "proposal", rec.ProposalId, "err", err)
		return err
	}
	rec.Version = next.Version
	rec.UpdatedAt = next.UpdatedAt
	rec.CreatedAt = next.CreatedAt
	db.logger.Debug("proposal saved", "proposal", rec.ProposalId, "version", rec.Version, "status", rec.Status)
	return nil
}

func (db *StateDB) list(filter func(*types.RealityOracleProposal) bool) ([]*types.RealityOracleProposal, error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	recs := make([]*types.RealityOracleProposal, 0)
	var decodeErr error
	err := db.kv.iterate(KeyProposalPrefix, func(key, value []byte) bool {
		rec := new(types.RealityOracleProposal)
		if err := json.Unmarshal(value, rec); err != nil {
			decodeErr = fmt.Errorf("decode %s: %w", string(key), err)
			return false
		}
		if filter == nil || filter(rec) {
			recs = append(recs, rec)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].CreatedAt != recs[j].CreatedAt {
			return recs[i].CreatedAt < recs[j].CreatedAt
		}
		return recs[i].ProposalId < recs[j].ProposalId
	})
	return recs, nil
}

// ListPending returns every record not yet in a terminal state.
func (db *StateDB) ListPending() ([]*types.RealityOracleProposal, error) {
	return db.list(func(rec *types.RealityOracleProposal) bool {
		return !rec.Status.Terminal()
	})
}

func (db *StateDB) List() ([]*types.RealityOracleProposal, error) {
	return db.list(nil)
}
