package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/arbitragex/engine/pkg/logger"
	"go.uber.org/zap"
)

// Bundle is the atomic transaction group submitted to a private relay.
type Bundle struct {
	Txs            []string // RLP-encoded, hex-prefixed signed transactions
	TargetBlock    uint64
	RefundRecipient string
}

// BundleStatus is the relay's answer to a bundle_status poll.
type BundleStatus struct {
	Included bool
	Block    uint64
	Reason   string
}

// RelayClient submits private bundles and polls their inclusion status,
// per SPEC_FULL.md's "Private relay / bundle endpoint" external interface.
type RelayClient interface {
	SubmitBundle(ctx context.Context, bundle Bundle) (bundleHash string, err error)
	BundleStatus(ctx context.Context, bundleHash string) (BundleStatus, error)
}

type jsonRPCRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      int         `json:"id"`
}

type jsonRPCResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	ID int `json:"id"`
}

// flashbotsStyleRelay talks eth_sendBundle / flashbots_getBundleStatsV2
// style JSON-RPC to a single relay endpoint.
type flashbotsStyleRelay struct {
	relayURL   string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewRelayClient builds a RelayClient against a Flashbots-compatible
// private relay endpoint.
func NewRelayClient(relayURL string, log *logger.Logger) RelayClient {
	if relayURL == "" {
		relayURL = "https://relay.flashbots.net"
	}
	return &flashbotsStyleRelay{
		relayURL:   relayURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     log.Named("relay-client"),
	}
}

func (c *flashbotsStyleRelay) SubmitBundle(ctx context.Context, bundle Bundle) (string, error) {
	req := jsonRPCRequest{
		JSONRPC: "2.0",
		Method:  "eth_sendBundle",
		Params: []map[string]interface{}{{
			"txs":         bundle.Txs,
			"blockNumber": fmt.Sprintf("0x%x", bundle.TargetBlock),
		}},
		ID: 1,
	}

	var resp struct {
		BundleHash string `json:"bundleHash"`
	}
	if err := c.call(ctx, req, &resp); err != nil {
		return "", fmt.Errorf("adapters: submit bundle: %w", err)
	}

	c.logger.Info("bundle submitted", zap.String("bundle_hash", resp.BundleHash), zap.Uint64("target_block", bundle.TargetBlock))
	return resp.BundleHash, nil
}

func (c *flashbotsStyleRelay) BundleStatus(ctx context.Context, bundleHash string) (BundleStatus, error) {
	req := jsonRPCRequest{
		JSONRPC: "2.0",
		Method:  "flashbots_getBundleStatsV2",
		Params:  []map[string]string{{"bundleHash": bundleHash}},
		ID:      1,
	}

	var resp struct {
		IsSimulated    bool   `json:"isSimulated"`
		IsSentToMiners bool   `json:"isSentToMiners"`
		ConsideredBlock string `json:"consideredBlock"`
	}
	if err := c.call(ctx, req, &resp); err != nil {
		return BundleStatus{}, fmt.Errorf("adapters: bundle status: %w", err)
	}

	return BundleStatus{Included: resp.IsSentToMiners}, nil
}

func (c *flashbotsStyleRelay) call(ctx context.Context, req jsonRPCRequest, out interface{}) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.relayURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var rpcResp jsonRPCResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return fmt.Errorf("decode relay response: %w", err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("relay error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return json.Unmarshal(rpcResp.Result, out)
}
