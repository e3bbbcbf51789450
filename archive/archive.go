package archive

import (
	"errors"
	"fmt"
	"time"

	"cosmossdk.io/log"
	"github.com/calehh/safesnap/types"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

// Archive indexes terminal executions in sqlite for queries that the state
// store cannot answer cheaply (by dao, by status, paged).
type Archive struct {
	logger log.Logger
	db     *gorm.DB
}

func Open(dbPath string, logger log.Logger) (*Archive, error) {
	logger = logger.With("module", "archive")
	db, err := gorm.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Execution{}, &Transaction{}).Error; err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("open archive success", "path", dbPath)
	return &Archive{logger: logger, db: db}, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

// Index stores a terminal record, replacing any earlier entry of the same
// proposal.
func (a *Archive) Index(rec *types.RealityOracleProposal) error {
	if !rec.Status.Terminal() {
		return fmt.Errorf("proposal %s is %s: not terminal", rec.ProposalId, rec.Status)
	}
	exec := Execution{
		ProposalId:       rec.ProposalId,
		Network:          rec.Network,
		Dao:              rec.Dao.Hex(),
		RealityModule:    rec.RealityModule.Hex(),
		BatchHash:        rec.BatchHash.Hex(),
		QuestionId:       rec.QuestionId.Hex(),
		Status:           string(rec.Status),
		Bond:             rec.Bond().String(),
		Txs:              len(rec.Transactions),
		Executed:         rec.NextTxIndex,
		FailureReason:    rec.FailureReason,
		FinalizedAt:      rec.FinalizedAt,
		CreateTimestamp:  rec.CreatedAt,
		ArchiveTimestamp: time.Now().Unix(),
	}

	tx := a.db.Begin()
	var old Execution
	err := tx.Where("proposal_id = ?", rec.ProposalId).First(&old).Error
	switch {
	case err == nil:
		exec.Id = old.Id
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		tx.Rollback()
		return err
	}
	if err := tx.Save(&exec).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Where("proposal_id = ?", rec.ProposalId).Delete(&Transaction{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	for i, stx := range rec.Transactions {
		t := Transaction{
			ProposalId: rec.ProposalId,
			TxIndex:    i,
			Kind:       string(stx.Kind),
			To:         stx.To.Hex(),
			Value:      stx.Value,
			Operation:  uint8(stx.Operation),
			Nonce:      stx.Nonce,
		}
		if i < len(rec.TxHashes) {
			t.TxHash = rec.TxHashes[i].Hex()
		}
		if i < len(rec.BroadcastHashes) {
			t.BroadcastHash = rec.BroadcastHashes[i].Hex()
		}
		if err := tx.Create(&t).Error; err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit().Error; err != nil {
		return err
	}
	a.logger.Info("execution archived", "proposal", rec.ProposalId, "status", rec.Status)
	return nil
}

func (a *Archive) GetExecution(proposalId string) (*Execution, error) {
	var exec Execution
	err := a.db.Where("proposal_id = ?", proposalId).First(&exec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("archived proposal %s: %w", proposalId, types.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &exec, nil
}

func (a *Archive) GetExecutions(page int, pageSize int) ([]Execution, uint64, error) {
	var execs []Execution
	err := a.db.Order("id desc").Offset(page * pageSize).Limit(pageSize).Find(&execs).Error
	if err != nil {
		return nil, 0, err
	}
	var total uint64
	err = a.db.Model(&Execution{}).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}
	return execs, total, nil
}

func (a *Archive) GetExecutionsByStatus(status types.Status, page int, pageSize int) ([]Execution, uint64, error) {
	var execs []Execution
	err := a.db.Where("status = ?", string(status)).Order("id desc").Offset(page * pageSize).Limit(pageSize).Find(&execs).Error
	if err != nil {
		return nil, 0, err
	}
	var total uint64
	err = a.db.Model(&Execution{}).Where("status = ?", string(status)).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}
	return execs, total, nil
}

func (a *Archive) GetExecutionsByDao(dao string, page int, pageSize int) ([]Execution, uint64, error) {
	var execs []Execution
	err := a.db.Where("dao = ?", dao).Order("id desc").Offset(page * pageSize).Limit(pageSize).Find(&execs).Error
	if err != nil {
		return nil, 0, err
	}
	var total uint64
	err = a.db.Model(&Execution{}).Where("dao = ?", dao).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}
	return execs, total, nil
}

func (a *Archive) GetTransactions(proposalId string) ([]Transaction, error) {
	var txs []Transaction
	err := a.db.Where("proposal_id = ?", proposalId).Order("tx_index asc").Find(&txs).Error
	if err != nil {
		return nil, err
	}
	return txs, nil
}
