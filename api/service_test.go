package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/calehh/safesnap/app"
	"github.com/calehh/safesnap/archive"
	"github.com/calehh/safesnap/chain"
	"github.com/calehh/safesnap/state"
	"github.com/calehh/safesnap/tally"
	"github.com/calehh/safesnap/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *app.App) {
	gin.SetMode(gin.TestMode)
	logger := log.NewNopLogger()
	db := state.NewMemStateDB(logger)
	arc, err := archive.Open(filepath.Join(t.TempDir(), "archive.db"), logger)
	require.NoError(t, err)
	retrier := chain.NewRetrier(chain.RetryConfig{
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
		MaxElapsedTime:  10 * time.Millisecond,
	}, nil, logger)
	reg := prometheus.NewRegistry()
	a := app.NewApp(app.Config{Policy: tally.DefaultPolicy()}, db, arc, chain.NewMockClient(), retrier, reg, logger)
	t.Cleanup(a.Stop)
	return NewService("127.0.0.1:0", a, reg, logger), a
}

func post(t *testing.T, s *Service, path string, body any) *httptest.ResponseRecorder {
	dat, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(dat))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func saveRecord(t *testing.T, a *app.App, id string, status types.Status) *types.RealityOracleProposal {
	rec := &types.RealityOracleProposal{
		ProposalId:    id,
		Network:       "1",
		RealityModule: common.HexToAddress("0x1000000000000000000000000000000000000001"),
		Dao:           common.HexToAddress("0x3000000000000000000000000000000000000003"),
		BatchHash:     common.HexToHash("0xabcd"),
		Status:        status,
		Transactions:  []types.SafeTransaction{{To: common.HexToAddress("0xa1"), Value: "0"}},
	}
	require.NoError(t, a.DB().Save(rec))
	return rec
}

func TestGetExecution(t *testing.T) {
	s, a := newTestService(t)
	rec := saveRecord(t, a, "p1", types.StatusBonding)

	w := post(t, s, "/getExecution", ProposalReq{ProposalId: "p1"})
	require.Equal(t, http.StatusOK, w.Code)
	var data types.SafeExecutionData
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &data))
	require.NotNil(t, data.Hash)
	assert.Equal(t, rec.BatchHash, *data.Hash)
	assert.Equal(t, "1", data.Network)
	require.Len(t, data.Txs, 1)
	assert.Len(t, data.Txs[0].Transactions, 1)

	w = post(t, s, "/getExecution", ProposalReq{ProposalId: "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = post(t, s, "/getExecution", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRecordAndPending(t *testing.T) {
	s, a := newTestService(t)
	saveRecord(t, a, "p1", types.StatusBonding)
	saveRecord(t, a, "p2", types.StatusExecuted)

	w := post(t, s, "/getRecord", ProposalReq{ProposalId: "p2"})
	require.Equal(t, http.StatusOK, w.Code)
	var rec types.RealityOracleProposal
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, types.StatusExecuted, rec.Status)

	w = post(t, s, "/getPending", struct{}{})
	require.Equal(t, http.StatusOK, w.Code)
	var pending GetPendingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pending))
	assert.Equal(t, 1, pending.Total)
	assert.Equal(t, "p1", pending.Records[0].ProposalId)
}

func TestGetArchive(t *testing.T) {
	s, a := newTestService(t)
	rec := saveRecord(t, a, "p1", types.StatusExecuted)
	require.NoError(t, a.Archive().Index(rec))

	w := post(t, s, "/getArchive", GetArchiveReq{ProposalId: "p1"})
	require.Equal(t, http.StatusOK, w.Code)
	var res GetArchiveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res.Executions, 1)
	assert.Len(t, res.Executions[0].Transactions, 1)

	w = post(t, s, "/getArchive", GetArchiveReq{Dao: "0x3000000000000000000000000000000000000003"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, uint64(1), res.Total)

	w = post(t, s, "/getArchive", GetArchiveReq{Status: "rejected"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, uint64(0), res.Total)
	assert.Empty(t, res.Executions)

	w = post(t, s, "/getArchive", GetArchiveReq{Dao: "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(t, s, "/getArchive", GetArchiveReq{ProposalId: "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestService(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "safesnap_active_workers")
}
