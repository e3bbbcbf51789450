package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"cosmossdk.io/log"
	"github.com/calehh/safesnap/types"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const realityModuleABI = `[
{"type":"function","name":"addProposal","stateMutability":"nonpayable","inputs":[{"name":"proposalId","type":"string"},{"name":"txHashes","type":"bytes32[]"}],"outputs":[]},
{"type":"function","name":"executeProposalWithIndex","stateMutability":"nonpayable","inputs":[{"name":"proposalId","type":"string"},{"name":"txHashes","type":"bytes32[]"},{"name":"to","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"},{"name":"operation","type":"uint8"},{"name":"txIndex","type":"uint256"}],"outputs":[]},
{"type":"function","name":"buildQuestion","stateMutability":"view","inputs":[{"name":"proposalId","type":"string"},{"name":"txHashes","type":"bytes32[]"}],"outputs":[{"name":"","type":"string"}]},
{"type":"function","name":"questionIds","stateMutability":"view","inputs":[{"name":"","type":"bytes32"}],"outputs":[{"name":"","type":"bytes32"}]},
{"type":"function","name":"executedProposalTransactions","stateMutability":"view","inputs":[{"name":"","type":"bytes32"},{"name":"","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"questionCooldown","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint32"}]},
{"type":"function","name":"answerExpiration","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint32"}]},
{"type":"function","name":"minimumBond","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

const realityOracleABI = `[
{"type":"function","name":"getBond","stateMutability":"view","inputs":[{"name":"question_id","type":"bytes32"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"isFinalized","stateMutability":"view","inputs":[{"name":"question_id","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"resultFor","stateMutability":"view","inputs":[{"name":"question_id","type":"bytes32"}],"outputs":[{"name":"","type":"bytes32"}]},
{"type":"function","name":"getFinalizeTS","stateMutability":"view","inputs":[{"name":"question_id","type":"bytes32"}],"outputs":[{"name":"","type":"uint32"}]},
{"type":"function","name":"submitAnswer","stateMutability":"payable","inputs":[{"name":"question_id","type":"bytes32"},{"name":"answer","type":"bytes32"},{"name":"max_previous","type":"uint256"}],"outputs":[]}
]`

var (
	moduleABI = mustParseABI(realityModuleABI)
	oracleABI = mustParseABI(realityOracleABI)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// EthClient talks to the reality module and its oracle on one EVM network.
type EthClient struct {
	logger  log.Logger
	network string
	cli     *ethclient.Client
	chainId *big.Int
	key     *ecdsa.PrivateKey
	timeout time.Duration
}

func DialEth(ctx context.Context, network string, url string, key *ecdsa.PrivateKey, timeout time.Duration, logger log.Logger) (*EthClient, error) {
	cli, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", network, err)
	}
	chainId, err := cli.ChainID(ctx)
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("chain id of %s: %w", network, err)
	}
	logger = logger.With("module", "eth", "network", network)
	logger.Info("connected", "chainId", chainId)
	return &EthClient{
		logger:  logger,
		network: network,
		cli:     cli,
		chainId: chainId,
		key:     key,
		timeout: timeout,
	}, nil
}

func (c *EthClient) ChainId() *big.Int {
	return new(big.Int).Set(c.chainId)
}

func (c *EthClient) Close() {
	c.cli.Close()
}

func (c *EthClient) contract(addr common.Address, parsed abi.ABI) *bind.BoundContract {
	return bind.NewBoundContract(addr, parsed, c.cli, c.cli, c.cli)
}

func (c *EthClient) call(ctx context.Context, contract *bind.BoundContract, method string, params ...interface{}) ([]interface{}, error) {
	var out []interface{}
	err := contract.Call(&bind.CallOpts{Context: ctx}, &out, method, params...)
	if err != nil {
		return nil, fmt.Errorf("call %s: %v: %w", method, err, types.ErrTransientNetwork)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("call %s: empty result: %w", method, types.ErrTransientNetwork)
	}
	return out, nil
}

// classify maps node errors to the transport error taxonomy.
func classify(method string, err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient funds"),
		strings.Contains(msg, "intrinsic gas too low"),
		strings.Contains(msg, "gas required exceeds allowance"),
		strings.Contains(msg, "out of gas"):
		return fmt.Errorf("%s: %v: %w", method, err, types.ErrInsufficientGas)
	case strings.Contains(msg, "execution reverted"):
		return fmt.Errorf("%s: %v: %w", method, err, types.ErrRevertedTransaction)
	default:
		return fmt.Errorf("%s: %v: %w", method, err, types.ErrTransientNetwork)
	}
}

func (c *EthClient) transact(ctx context.Context, contract *bind.BoundContract, value *big.Int, method string, params ...interface{}) (common.Hash, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainId)
	if err != nil {
		return common.Hash{}, err
	}
	opts.Context = ctx
	opts.Value = value
	tx, err := contract.Transact(opts, method, params...)
	if err != nil {
		return common.Hash{}, classify(method, err)
	}
	c.logger.Info("transaction sent", "method", method, "tx", tx.Hash().Hex())
	wctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	receipt, err := bind.WaitMined(wctx, c.cli, tx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("wait %s: %v: %w", tx.Hash().Hex(), err, types.ErrTransientNetwork)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return common.Hash{}, fmt.Errorf("%s %s: %w", method, tx.Hash().Hex(), types.ErrRevertedTransaction)
	}
	return tx.Hash(), nil
}

func toBytes32(hashes []common.Hash) [][32]byte {
	out := make([][32]byte, len(hashes))
	for i, h := range hashes {
		out[i] = h
	}
	return out
}

func (c *EthClient) ReadQuestion(ctx context.Context, ref QuestionRef) (*QuestionState, error) {
	oracle := c.contract(ref.Oracle, oracleABI)
	out, err := c.call(ctx, oracle, "getBond", [32]byte(ref.Id))
	if err != nil {
		return nil, err
	}
	st := &QuestionState{CurrentBond: out[0].(*big.Int)}
	out, err = c.call(ctx, oracle, "isFinalized", [32]byte(ref.Id))
	if err != nil {
		return nil, err
	}
	st.IsFinalized = out[0].(bool)
	if !st.IsFinalized {
		return st, nil
	}
	out, err = c.call(ctx, oracle, "resultFor", [32]byte(ref.Id))
	if err != nil {
		return nil, err
	}
	st.Answer = common.Hash(out[0].([32]byte))
	return st, nil
}

func (c *EthClient) Bond(ctx context.Context, ref QuestionRef, answer common.Hash, amount *big.Int) error {
	oracle := c.contract(ref.Oracle, oracleABI)
	out, err := c.call(ctx, oracle, "getBond", [32]byte(ref.Id))
	if err != nil {
		return err
	}
	_, err = c.transact(ctx, oracle, amount, "submitAnswer", [32]byte(ref.Id), [32]byte(answer), out[0].(*big.Int))
	return err
}

func (c *EthClient) questionHash(ctx context.Context, module *bind.BoundContract, proposalId string, txHashes []common.Hash) (common.Hash, error) {
	out, err := c.call(ctx, module, "buildQuestion", proposalId, toBytes32(txHashes))
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash([]byte(out[0].(string))), nil
}

func (c *EthClient) AskQuestion(ctx context.Context, payload *QuestionPayload) (common.Hash, error) {
	module := c.contract(payload.RealityModule, moduleABI)
	qh, err := c.questionHash(ctx, module, payload.ProposalId, payload.TxHashes)
	if err != nil {
		return common.Hash{}, err
	}
	lookup := func() (common.Hash, error) {
		out, err := c.call(ctx, module, "questionIds", [32]byte(qh))
		if err != nil {
			return common.Hash{}, err
		}
		return common.Hash(out[0].([32]byte)), nil
	}
	id, err := lookup()
	if err != nil {
		return common.Hash{}, err
	}
	if id != (common.Hash{}) {
		c.logger.Info("question already asked", "proposal", payload.ProposalId, "question", id.Hex())
		return id, nil
	}
	if _, err := c.transact(ctx, module, nil, "addProposal", payload.ProposalId, toBytes32(payload.TxHashes)); err != nil {
		return common.Hash{}, err
	}
	return lookup()
}

// ExecutionApproved checks the module guards that sit on top of the oracle
// answer: minimum bond, cooldown since finalization and answer expiry.
func (c *EthClient) ExecutionApproved(ctx context.Context, ref QuestionRef) (bool, error) {
	module := c.contract(ref.RealityModule, moduleABI)
	oracle := c.contract(ref.Oracle, oracleABI)
	out, err := c.call(ctx, module, "minimumBond")
	if err != nil {
		return false, err
	}
	minBond := out[0].(*big.Int)
	out, err = c.call(ctx, oracle, "getBond", [32]byte(ref.Id))
	if err != nil {
		return false, err
	}
	if out[0].(*big.Int).Cmp(minBond) < 0 {
		return false, nil
	}
	out, err = c.call(ctx, oracle, "getFinalizeTS", [32]byte(ref.Id))
	if err != nil {
		return false, err
	}
	finalizeTS := int64(out[0].(uint32))
	out, err = c.call(ctx, module, "questionCooldown")
	if err != nil {
		return false, err
	}
	cooldown := int64(out[0].(uint32))
	out, err = c.call(ctx, module, "answerExpiration")
	if err != nil {
		return false, err
	}
	expiration := int64(out[0].(uint32))
	now := time.Now().Unix()
	if finalizeTS+cooldown >= now {
		return false, nil
	}
	if expiration > 0 && finalizeTS+expiration <= now {
		return false, nil
	}
	return true, nil
}

func (c *EthClient) Broadcast(ctx context.Context, req *BroadcastRequest) (common.Hash, error) {
	value, err := req.Tx.ValueWei()
	if err != nil {
		return common.Hash{}, err
	}
	module := c.contract(req.RealityModule, moduleABI)
	return c.transact(ctx, module, nil, "executeProposalWithIndex",
		req.ProposalId,
		toBytes32(req.TxHashes),
		req.Tx.To,
		value,
		[]byte(req.Tx.Data),
		uint8(req.Tx.Operation),
		big.NewInt(int64(req.Index)),
	)
}

func (c *EthClient) IsExecuted(ctx context.Context, req *BroadcastRequest) (bool, error) {
	if req.Index >= len(req.TxHashes) {
		return false, nil
	}
	module := c.contract(req.RealityModule, moduleABI)
	qh, err := c.questionHash(ctx, module, req.ProposalId, req.TxHashes)
	if err != nil {
		return false, err
	}
	out, err := c.call(ctx, module, "executedProposalTransactions", [32]byte(qh), [32]byte(req.TxHashes[req.Index]))
	if err != nil {
		return false, err
	}
	return out[0].(bool), nil
}
