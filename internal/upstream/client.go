package upstream

import (
	"bytes"
	"context"
	"inboxlens/internal/types"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

const (
	analyzePath     = "/v1/analyze/batch"
	recordsPath     = "/v1/records"
	correctionsPath = "/v1/corrections"

	beaconTimeout = 10 * time.Second
)

// Client talks to the remote classification/analysis service. Every request
// carries the client credential headers; calls are rejected locally with
// types.ErrNoSession when credentials are not configured.
type Client struct {
	baseURL   string
	clientID  string
	clientKey string
	hc        *http.Client
}

func NewClient(baseURL, clientID, clientKey string) *Client {
	return &Client{
		baseURL:   baseURL,
		clientID:  clientID,
		clientKey: clientKey,
		hc:        &http.Client{Timeout: 30 * time.Second},
	}
}

type analyzeRequest struct {
	IDs []string `json:"ids"`
}

type analyzeResponse struct {
	Results []types.AnalysisResult `json:"results"`
}

type correctionsRequest struct {
	Edits     []types.Correction `json:"edits"`
	Propagate bool               `json:"propagate"`
}

// AnalyzeBatch submits all ids in one request.
func (c *Client) AnalyzeBatch(ctx context.Context, ids []string) ([]types.AnalysisResult, error) {
	var resp analyzeResponse
	if err := c.do(ctx, http.MethodPost, analyzePath, analyzeRequest{IDs: ids}, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// ListRecords fetches the server's full record list.
func (c *Client) ListRecords(ctx context.Context) ([]map[string]any, error) {
	var records []map[string]any
	if err := c.do(ctx, http.MethodGet, recordsPath, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// SubmitCorrections delivers all edits in one request and waits for the
// server to accept them.
func (c *Client) SubmitCorrections(ctx context.Context, edits []types.Correction) error {
	return c.do(ctx, http.MethodPost, correctionsPath, correctionsRequest{Edits: edits, Propagate: true}, nil)
}

// EnqueueCorrections fires the corrections request from a background sender
// with its own deadline, for the moment the hosting context is being torn
// down and an awaited round trip cannot be relied on. The response is not
// observed. Returns whether the enqueue was accepted.
func (c *Client) EnqueueCorrections(edits []types.Correction) bool {
	if c.clientID == "" || c.clientKey == "" {
		return false
	}
	body, err := json.Marshal(correctionsRequest{Edits: edits, Propagate: true})
	if err != nil {
		log.WithError(err).Error("failed to encode beacon corrections")
		return false
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), beaconTimeout)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+correctionsPath, bytes.NewReader(body))
		if err != nil {
			log.WithError(err).Error("failed to build beacon request")
			return
		}
		c.setHeaders(req)
		resp, err := c.hc.Do(req)
		if err != nil {
			log.WithError(err).Warn("beacon corrections send failed")
			return
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	return true
}

// do runs one authenticated JSON round trip. out may be nil when the
// response body is irrelevant.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if c.clientID == "" || c.clientKey == "" {
		return types.ErrNoSession
	}
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	c.setHeaders(req)
	resp, err := c.hc.Do(req)
	if err != nil {
		return types.Err(types.ErrUpstream, err, "")
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return types.Err(types.ErrUpstream, nil, "%s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(types.ClientIDHdrName, c.clientID)
	req.Header.Set(types.ClientKeyHdrName, c.clientKey)
}
