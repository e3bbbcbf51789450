package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"cosmossdk.io/log"
	"github.com/calehh/safesnap/app"
	"github.com/calehh/safesnap/archive"
	"github.com/calehh/safesnap/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Service is the read-only HTTP projection of execution state.
type Service struct {
	engine     *gin.Engine
	app        *app.App
	logger     log.Logger
	listenAddr string
	server     *http.Server
}

func NewService(listenAddr string, a *app.App, gatherer prometheus.Gatherer, logger log.Logger) *Service {
	r := gin.New()
	r.Use(gin.Recovery())
	s := &Service{
		engine:     r,
		app:        a,
		logger:     logger.With("module", "api"),
		listenAddr: listenAddr,
	}
	s.engine.POST("/getExecution", s.handleGetExecution)
	s.engine.POST("/getRecord", s.handleGetRecord)
	s.engine.POST("/getPending", s.handleGetPending)
	s.engine.POST("/getArchive", s.handleGetArchive)
	if gatherer != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return s
}

func (s *Service) Handler() http.Handler {
	return s.engine
}

func (s *Service) Start() error {
	s.server = &http.Server{Addr: s.listenAddr, Handler: s.engine}
	s.logger.Info("api listening", "addr", s.listenAddr)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Service) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type ProposalReq struct {
	ProposalId string `json:"proposalId" binding:"required"`
}

func queryStatus(code uint32) int {
	switch code {
	case app.CodeOK:
		return http.StatusOK
	case app.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Service) query(c *gin.Context, path string, data []byte, out any) bool {
	res, err := s.app.Query(c.Request.Context(), &app.QueryRequest{Path: path, Data: data})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return false
	}
	if res.Code != app.CodeOK {
		c.JSON(queryStatus(res.Code), gin.H{"error": res.Log})
		return false
	}
	if err := json.Unmarshal(res.Value, out); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func (s *Service) handleGetExecution(c *gin.Context) {
	var requestData ProposalReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var data types.SafeExecutionData
	if !s.query(c, "/execution/", []byte(requestData.ProposalId), &data) {
		return
	}
	c.JSON(http.StatusOK, data)
}

func (s *Service) handleGetRecord(c *gin.Context) {
	var requestData ProposalReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var rec types.RealityOracleProposal
	if !s.query(c, "/proposals/", []byte(requestData.ProposalId), &rec) {
		return
	}
	c.JSON(http.StatusOK, rec)
}

type GetPendingResponse struct {
	Records []types.RealityOracleProposal `json:"records"`
	Total   int                           `json:"total"`
}

func (s *Service) handleGetPending(c *gin.Context) {
	var response GetPendingResponse
	if !s.query(c, "/pending/", nil, &response.Records) {
		return
	}
	if response.Records == nil {
		response.Records = make([]types.RealityOracleProposal, 0)
	}
	response.Total = len(response.Records)
	c.JSON(http.StatusOK, response)
}

type GetArchiveReq struct {
	ProposalId string `json:"proposalId"`
	Dao        string `json:"dao"`
	Status     string `json:"status"`
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
}

type ExecutionInfo struct {
	Execution    archive.Execution     `json:"execution"`
	Transactions []archive.Transaction `json:"transactions,omitempty"`
}

type GetArchiveResponse struct {
	Executions []ExecutionInfo `json:"executions"`
	Total      uint64          `json:"total"`
}

func (s *Service) handleGetArchive(c *gin.Context) {
	var response GetArchiveResponse
	response.Executions = make([]ExecutionInfo, 0)
	var requestData GetArchiveReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	arc := s.app.Archive()
	if arc == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "archive disabled"})
		return
	}
	if requestData.PageSize <= 0 || requestData.PageSize > 100 {
		requestData.PageSize = 20
	}

	if requestData.ProposalId != "" {
		exec, err := arc.GetExecution(requestData.ProposalId)
		if errors.Is(err, types.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		txs, err := arc.GetTransactions(requestData.ProposalId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		response.Executions = append(response.Executions, ExecutionInfo{Execution: *exec, Transactions: txs})
		response.Total = 1
		c.JSON(http.StatusOK, response)
		return
	}

	var (
		execs []archive.Execution
		total uint64
		err   error
	)
	switch {
	case requestData.Dao != "":
		if !common.IsHexAddress(requestData.Dao) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dao address"})
			return
		}
		execs, total, err = arc.GetExecutionsByDao(common.HexToAddress(requestData.Dao).Hex(), requestData.Page, requestData.PageSize)
	case requestData.Status != "":
		execs, total, err = arc.GetExecutionsByStatus(types.Status(requestData.Status), requestData.Page, requestData.PageSize)
	default:
		execs, total, err = arc.GetExecutions(requestData.Page, requestData.PageSize)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	response.Total = total
	for _, e := range execs {
		response.Executions = append(response.Executions, ExecutionInfo{Execution: e})
	}
	c.JSON(http.StatusOK, response)
}
