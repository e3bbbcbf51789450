package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var _ OracleClient = &Router{}
var _ ChainClient = &Router{}
var _ ExecutionChecker = &Router{}

// Router dispatches transport calls to the client of the request network.
type Router struct {
	clients map[string]*EthClient
}

func NewRouter() *Router {
	return &Router{clients: make(map[string]*EthClient)}
}

func (r *Router) Add(network string, c *EthClient) {
	r.clients[network] = c
}

func (r *Router) Client(network string) (*EthClient, error) {
	c, ok := r.clients[network]
	if !ok {
		return nil, fmt.Errorf("network %q not configured", network)
	}
	return c, nil
}

func (r *Router) Close() {
	for _, c := range r.clients {
		c.Close()
	}
}

func (r *Router) ReadQuestion(ctx context.Context, ref QuestionRef) (*QuestionState, error) {
	c, err := r.Client(ref.Network)
	if err != nil {
		return nil, err
	}
	return c.ReadQuestion(ctx, ref)
}

func (r *Router) Bond(ctx context.Context, ref QuestionRef, answer common.Hash, amount *big.Int) error {
	c, err := r.Client(ref.Network)
	if err != nil {
		return err
	}
	return c.Bond(ctx, ref, answer, amount)
}

func (r *Router) AskQuestion(ctx context.Context, payload *QuestionPayload) (common.Hash, error) {
	c, err := r.Client(payload.Network)
	if err != nil {
		return common.Hash{}, err
	}
	return c.AskQuestion(ctx, payload)
}

func (r *Router) ExecutionApproved(ctx context.Context, ref QuestionRef) (bool, error) {
	c, err := r.Client(ref.Network)
	if err != nil {
		return false, err
	}
	return c.ExecutionApproved(ctx, ref)
}

func (r *Router) Broadcast(ctx context.Context, req *BroadcastRequest) (common.Hash, error) {
	c, err := r.Client(req.Network)
	if err != nil {
		return common.Hash{}, err
	}
	return c.Broadcast(ctx, req)
}

func (r *Router) IsExecuted(ctx context.Context, req *BroadcastRequest) (bool, error) {
	c, err := r.Client(req.Network)
	if err != nil {
		return false, err
	}
	return c.IsExecuted(ctx, req)
}
