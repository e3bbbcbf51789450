package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"cosmossdk.io/log"
	"github.com/calehh/safesnap/state"
	"github.com/calehh/safesnap/types"
)

const (
	CodeOK       uint32 = 0
	CodeError    uint32 = 1
	CodeNotFound uint32 = 404
)

type QueryRequest struct {
	Path string
	Data []byte
}

type QueryResponse struct {
	Code    uint32
	Log     string
	Value   []byte
	Version uint64
}

type Querier interface {
	Query(ctx context.Context, req *QueryRequest) (res *QueryResponse, err error)
}

func (app *App) Query(ctx context.Context, req *QueryRequest) (res *QueryResponse, err error) {
	path := req.Path
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	q, ok := app.queriers[path]
	if !ok {
		res = &QueryResponse{Code: CodeNotFound, Log: "unknown path"}
		return
	}
	res, err = q.Query(ctx, req)
	return
}

func loadError(res *QueryResponse, err error) {
	res.Log = err.Error()
	if errors.Is(err, types.ErrNotFound) {
		res.Code = CodeNotFound
	} else {
		res.Code = CodeError
	}
}

// RecordQuerier returns the stored record of the proposal id in Data.
type RecordQuerier struct {
	db     *state.StateDB
	logger log.Logger
}

func NewRecordQuerier(db *state.StateDB, logger log.Logger) (q *RecordQuerier) {
	q = &RecordQuerier{
		db:     db,
		logger: logger,
	}
	return
}

func (q *RecordQuerier) Query(ctx context.Context, req *QueryRequest) (res *QueryResponse, err error) {
	res = &QueryResponse{}
	rec, err := q.db.Load(string(req.Data))
	if err != nil {
		loadError(res, err)
		err = nil
		return
	}
	res.Version = rec.Version
	res.Value, err = json.Marshal(rec)
	return
}

type PendingQuerier struct {
	db     *state.StateDB
	logger log.Logger
}

func NewPendingQuerier(db *state.StateDB, logger log.Logger) (q *PendingQuerier) {
	q = &PendingQuerier{
		db:     db,
		logger: logger,
	}
	return
}

func (q *PendingQuerier) Query(ctx context.Context, req *QueryRequest) (res *QueryResponse, err error) {
	res = &QueryResponse{}
	recs, err := q.db.ListPending()
	if err != nil {
		q.logger.Error("list pending fail", "err", err)
		loadError(res, err)
		err = nil
		return
	}
	res.Value, err = json.Marshal(recs)
	return
}

// ExecutionQuerier projects the record of the proposal id in Data into its
// read-only execution descriptor.
type ExecutionQuerier struct {
	db     *state.StateDB
	logger log.Logger
}

func NewExecutionQuerier(db *state.StateDB, logger log.Logger) (q *ExecutionQuerier) {
	q = &ExecutionQuerier{
		db:     db,
		logger: logger,
	}
	return
}

func (q *ExecutionQuerier) Query(ctx context.Context, req *QueryRequest) (res *QueryResponse, err error) {
	res = &QueryResponse{}
	rec, err := q.db.Load(string(req.Data))
	if err != nil {
		loadError(res, err)
		err = nil
		return
	}
	res.Version = rec.Version
	res.Value, err = json.Marshal(rec.ExecutionData())
	return
}
