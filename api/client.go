package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"cosmossdk.io/log"
	"github.com/calehh/safesnap/types"
)

// Client talks to a running Service.
type Client struct {
	Url    string
	cli    *http.Client
	logger log.Logger
}

func NewClient(baseUrl string, logger log.Logger) *Client {
	return &Client{
		Url:    baseUrl,
		cli:    &http.Client{Timeout: 30 * time.Second},
		logger: logger.With("module", "api-client"),
	}
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	target, err := url.JoinPath(c.Url, path)
	if err != nil {
		c.logger.Error("join url fail", "err", err)
		return err
	}
	dat, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(dat))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.cli.Do(req)
	if err != nil {
		c.logger.Error("post fail", "url", target, "err", err)
		return err
	}
	defer res.Body.Close()
	buf, err := io.ReadAll(res.Body)
	if err != nil {
		c.logger.Error("read response body fail", "err", err)
		return err
	}
	if res.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(buf, &e)
		if res.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%s: %w", e.Error, types.ErrNotFound)
		}
		return fmt.Errorf("%s returned %d: %s", path, res.StatusCode, e.Error)
	}
	if err := json.Unmarshal(buf, out); err != nil {
		c.logger.Error("unmarshal response body fail", "err", err)
		return err
	}
	return nil
}

func (c *Client) GetRecord(ctx context.Context, proposalId string) (*types.RealityOracleProposal, error) {
	var rec types.RealityOracleProposal
	if err := c.post(ctx, "/getRecord", ProposalReq{ProposalId: proposalId}, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) GetExecution(ctx context.Context, proposalId string) (*types.SafeExecutionData, error) {
	var data types.SafeExecutionData
	if err := c.post(ctx, "/getExecution", ProposalReq{ProposalId: proposalId}, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (c *Client) GetPending(ctx context.Context) (*GetPendingResponse, error) {
	var res GetPendingResponse
	if err := c.post(ctx, "/getPending", struct{}{}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) GetArchive(ctx context.Context, req GetArchiveReq) (*GetArchiveResponse, error) {
	var res GetArchiveResponse
	if err := c.post(ctx, "/getArchive", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
