package app

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"cosmossdk.io/log"
	"github.com/calehh/safesnap/archive"
	"github.com/calehh/safesnap/chain"
	"github.com/calehh/safesnap/executor"
	"github.com/calehh/safesnap/oracle"
	"github.com/calehh/safesnap/state"
	"github.com/calehh/safesnap/tally"
	"github.com/calehh/safesnap/tx"
	"github.com/calehh/safesnap/tx/handler"
	"github.com/calehh/safesnap/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ErrUnknownNetwork  = errors.New("network not configured")
	ErrMultipleSafes   = errors.New("proposal executes on more than one safe")
	ErrPluginBatchHash = errors.New("plugin batch hash does not match transactions")
)

type Config struct {
	PollInterval  time.Duration
	SweepInterval time.Duration
	Workers       int
	Policy        tally.Policy
	Targets       map[string]oracle.Target
}

type Client interface {
	chain.OracleClient
	chain.ChainClient
}

// App owns the execution state of every proposal and drives each one from
// submission to a terminal state.
type App struct {
	cfg    Config
	logger log.Logger

	db       *state.StateDB
	archive  *archive.Archive
	oracle   *oracle.Manager
	seq      *executor.Sequencer
	txHdlrs  *handler.Handlers
	tallier  *tally.Tallier
	queriers map[string]Querier
	metrics  *metrics

	locks  *keyedMutex
	mtx    sync.Mutex
	active map[string]struct{}
	wg     sync.WaitGroup
	now    func() time.Time
}

func NewApp(cfg Config, db *state.StateDB, arc *archive.Archive, client Client, retrier *chain.Retrier, reg prometheus.Registerer, logger log.Logger) *App {
	logger = logger.With("module", "app")
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	app := &App{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		archive:  arc,
		oracle:   oracle.NewManager(db, client, retrier, cfg.Policy, logger),
		seq:      executor.NewSequencer(db, client, retrier, logger),
		txHdlrs:  handler.NewHandlers(logger),
		tallier:  tally.NewTallier(logger),
		queriers: make(map[string]Querier),
		metrics:  newMetrics(reg),
		locks:    newKeyedMutex(),
		active:   make(map[string]struct{}),
		now:      time.Now,
	}
	app.registerQuerier()
	return app
}

func (app *App) registerQuerier() {
	app.queriers["/proposals/"] = NewRecordQuerier(app.db, app.logger)
	app.queriers["/pending/"] = NewPendingQuerier(app.db, app.logger)
	app.queriers["/execution/"] = NewExecutionQuerier(app.db, app.logger)
}

func (app *App) DB() *state.StateDB {
	return app.db
}

func (app *App) Archive() *archive.Archive {
	return app.archive
}

func (app *App) Stop() {
	app.wg.Wait()
	if err := app.db.Close(); err != nil {
		app.logger.Error("close db fail", "err", err)
	}
	if app.archive != nil {
		if err := app.archive.Close(); err != nil {
			app.logger.Error("close archive fail", "err", err)
		}
	}
	app.logger.Info("app stopped")
}

func (app *App) target(network string, module common.Address) (oracle.Target, error) {
	t, ok := app.cfg.Targets[network]
	if !ok {
		return oracle.Target{}, fmt.Errorf("%w: %s", ErrUnknownNetwork, network)
	}
	if module != (common.Address{}) {
		t.RealityModule = module
	}
	return t, nil
}

// Batch derives the execution batch of a proposal from its execution plugin.
// Kind payloads are built into base calls before hashing.
func (app *App) Batch(p *types.Proposal) (*types.SafeModuleTransactionBatch, oracle.Target, error) {
	plugin, err := p.SafeSnap()
	if err != nil {
		return nil, oracle.Target{}, err
	}
	switch len(plugin.Safes) {
	case 0:
		return nil, oracle.Target{}, fmt.Errorf("proposal %s: %w", p.Id, types.ErrNoExecutionPlugin)
	case 1:
	default:
		return nil, oracle.Target{}, fmt.Errorf("proposal %s: %w", p.Id, ErrMultipleSafes)
	}
	safe := plugin.Safes[0]
	target, err := app.target(safe.Network, safe.RealityModule)
	if err != nil {
		return nil, oracle.Target{}, err
	}
	txs := make([]types.SafeTransaction, 0)
	for _, b := range safe.Txs {
		txs = append(txs, b.Transactions...)
	}
	if err := app.txHdlrs.Prepare(target.Dao, txs); err != nil {
		return nil, oracle.Target{}, err
	}
	batch, err := tx.NewHasher(new(big.Int).SetUint64(target.ChainId), target.RealityModule).NewBatch(txs)
	if err != nil {
		return nil, oracle.Target{}, err
	}
	if safe.Hash != nil && *safe.Hash != batch.Hash {
		return nil, oracle.Target{}, fmt.Errorf("proposal %s: %w: plugin %s, computed %s", p.Id, ErrPluginBatchHash, safe.Hash.Hex(), batch.Hash.Hex())
	}
	return &batch, target, nil
}

// Submit finalizes the tally of a closed proposal when votes are given and
// opens its oracle question.
func (app *App) Submit(ctx context.Context, p *types.Proposal, votes []types.Vote) (*types.RealityOracleProposal, error) {
	unlock := app.locks.Lock(p.Id)
	defer unlock()

	if p.ScoresState != types.ScoresStateFinal {
		if err := app.tallier.Finalize(p, votes, app.now().Unix()); err != nil {
			return nil, err
		}
	}
	batch, target, err := app.Batch(p)
	if err != nil {
		return nil, err
	}
	rec, err := app.oracle.Submit(ctx, p, batch, target)
	if err != nil {
		app.logger.Error("submit fail", "proposal", p.Id, "err", err)
		return rec, err
	}
	return rec, nil
}

func (app *App) Cancel(ctx context.Context, proposalId string) (*types.RealityOracleProposal, error) {
	unlock := app.locks.Lock(proposalId)
	defer unlock()
	rec, err := app.db.Load(proposalId)
	if err != nil {
		return nil, err
	}
	rec, err = app.oracle.Cancel(rec)
	if err != nil {
		return rec, err
	}
	app.archiveRecord(rec)
	return rec, nil
}

func (app *App) Bond(ctx context.Context, proposalId string, answer common.Hash, amount *big.Int) (*types.RealityOracleProposal, error) {
	unlock := app.locks.Lock(proposalId)
	defer unlock()
	rec, err := app.db.Load(proposalId)
	if err != nil {
		return nil, err
	}
	return app.oracle.Bond(ctx, rec, answer, amount, app.now().Unix())
}

// Step applies the next oracle or execution transition to the stored record
// of proposalId.
func (app *App) Step(ctx context.Context, proposalId string) (*types.RealityOracleProposal, error) {
	unlock := app.locks.Lock(proposalId)
	defer unlock()
	rec, err := app.db.Load(proposalId)
	if err != nil {
		return nil, err
	}
	if rec.Status.Terminal() {
		return rec, nil
	}
	next, err := app.step(ctx, rec)
	app.metrics.observe(rec, next, err)
	if errors.Is(err, types.ErrOracleUnreachable) {
		app.metrics.oracleReadFailures.Inc()
	}
	if next != nil && next.Status.Terminal() {
		app.archiveRecord(next)
	}
	return next, err
}

func (app *App) step(ctx context.Context, rec *types.RealityOracleProposal) (*types.RealityOracleProposal, error) {
	switch rec.Status {
	case types.StatusNotSubmitted, types.StatusQuestionOpen, types.StatusBonding, types.StatusCooldownPending:
		return app.oracle.Observe(ctx, rec, app.now().Unix())
	case types.StatusApproved:
		if !rec.ExecutionApproved {
			return app.oracle.RefreshGate(ctx, rec, app.now().Unix())
		}
		return app.seq.ExecuteNext(ctx, rec)
	}
	return rec, nil
}

func (app *App) archiveRecord(rec *types.RealityOracleProposal) {
	if app.archive == nil {
		return
	}
	if err := app.archive.Index(rec); err != nil {
		app.logger.Error("archive fail", "proposal", rec.ProposalId, "err", err)
	}
}

func errorClass(err error) string {
	switch {
	case errors.Is(err, types.ErrOracleUnreachable):
		return "oracle_unreachable"
	case errors.Is(err, types.ErrTransientNetwork):
		return "transient"
	case errors.Is(err, types.ErrInsufficientGas):
		return "insufficient_gas"
	case errors.Is(err, types.ErrRevertedTransaction):
		return "reverted"
	case errors.Is(err, types.ErrInvalidOracleAnswer):
		return "invalid_answer"
	case errors.Is(err, types.ErrVersionConflict):
		return "version_conflict"
	case errors.Is(err, types.ErrAnswerExpired):
		return "answer_expired"
	case errors.Is(err, types.ErrDuplicateTx), errors.Is(err, types.ErrTxLogMismatch):
		return "bad_batch"
	default:
		return "other"
	}
}
