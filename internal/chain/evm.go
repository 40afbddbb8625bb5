package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// EVMClient is a minimal JSON-RPC client for EVM chains.
type EVMClient struct {
	url    string
	client *http.Client
	nextID atomic.Uint64
}

// CallMsg describes an eth_call / eth_estimateGas request.
type CallMsg struct {
	From  common.Address
	To    common.Address
	Data  []byte
	Value *big.Int
}

// Receipt holds the on-chain receipt of a mined transaction.
type Receipt struct {
	Hash        common.Hash
	Status      uint64 // 1 = success, 0 = reverted
	BlockNumber uint64
	GasUsed     uint64
}

// TxInfo is the subset of eth_getTransactionByHash the watcher needs.
type TxInfo struct {
	Hash        common.Hash
	From        common.Address
	To          *common.Address
	Input       []byte
	Value       *big.Int
	BlockNumber *uint64 // nil while the tx sits in the mempool
}

// RPCError is a JSON-RPC level error returned by the node.
type RPCError struct {
	Code    int
	Message string
	Data    string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// RevertError is returned when an eth_call executes and reverts.
type RevertError struct {
	Reason string
	Data   []byte
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return "execution reverted"
	}
	return "execution reverted: " + e.Reason
}

// NewEVMClient creates a new EVM JSON-RPC client pointed at url.
func NewEVMClient(url string) *EVMClient {
	return &EVMClient{
		url: url,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// URL returns the endpoint the client talks to.
func (c *EVMClient) URL() string { return c.url }

// BlockNumber returns the latest block number.
func (c *EVMClient) BlockNumber(ctx context.Context) (uint64, error) {
	var n hexutil.Uint64
	if err := c.call(ctx, &n, "eth_blockNumber"); err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// ChainID returns the chain's ID.
func (c *EVMClient) ChainID(ctx context.Context) (*big.Int, error) {
	var id hexutil.Big
	if err := c.call(ctx, &id, "eth_chainId"); err != nil {
		return nil, err
	}
	return id.ToInt(), nil
}

// SuggestGasPrice returns the current legacy gas price.
func (c *EVMClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	var gp hexutil.Big
	if err := c.call(ctx, &gp, "eth_gasPrice"); err != nil {
		return nil, err
	}
	return gp.ToInt(), nil
}

// SuggestGasTipCap returns eth_maxPriorityFeePerGas, falling back to the gas
// price on nodes that do not implement it (e.g. older dev nodes).
func (c *EVMClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	var tip hexutil.Big
	err := c.call(ctx, &tip, "eth_maxPriorityFeePerGas")
	if err == nil {
		return tip.ToInt(), nil
	}
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return c.SuggestGasPrice(ctx)
	}
	return nil, err
}

// PendingNonceAt returns the transaction count including queued transactions.
func (c *EVMClient) PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	var n hexutil.Uint64
	if err := c.call(ctx, &n, "eth_getTransactionCount", addr, "pending"); err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// EstimateGas estimates gas for msg against the latest block.
func (c *EVMClient) EstimateGas(ctx context.Context, msg CallMsg) (uint64, error) {
	var n hexutil.Uint64
	if err := c.call(ctx, &n, "eth_estimateGas", toCallArg(msg)); err != nil {
		return 0, asRevert(err)
	}
	return uint64(n), nil
}

// CallContract executes msg with eth_call. block nil means "latest".
// A reverting call returns *RevertError.
func (c *EVMClient) CallContract(ctx context.Context, msg CallMsg, block *big.Int) ([]byte, error) {
	tag := "latest"
	if block != nil {
		tag = hexutil.EncodeBig(block)
	}
	var out hexutil.Bytes
	if err := c.call(ctx, &out, "eth_call", toCallArg(msg), tag); err != nil {
		return nil, asRevert(err)
	}
	return out, nil
}

// SendRawTransaction broadcasts a signed raw transaction.
func (c *EVMClient) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	var hash common.Hash
	if err := c.call(ctx, &hash, "eth_sendRawTransaction", hexutil.Bytes(raw)); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

// TransactionReceipt fetches the receipt for hash.
// Returns nil, nil if the transaction is still pending.
func (c *EVMClient) TransactionReceipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	var r *struct {
		Status      hexutil.Uint64 `json:"status"`
		BlockNumber hexutil.Uint64 `json:"blockNumber"`
		GasUsed     hexutil.Uint64 `json:"gasUsed"`
	}
	if err := c.call(ctx, &r, "eth_getTransactionReceipt", hash); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, nil // still pending
	}
	return &Receipt{
		Hash:        hash,
		Status:      uint64(r.Status),
		BlockNumber: uint64(r.BlockNumber),
		GasUsed:     uint64(r.GasUsed),
	}, nil
}

// TransactionByHash returns a transaction by hash, or nil, nil when the node
// does not know it (never seen or dropped from the mempool).
func (c *EVMClient) TransactionByHash(ctx context.Context, hash common.Hash) (*TxInfo, error) {
	var rt *struct {
		Hash        common.Hash     `json:"hash"`
		From        common.Address  `json:"from"`
		To          *common.Address `json:"to"`
		Input       hexutil.Bytes   `json:"input"`
		Value       *hexutil.Big    `json:"value"`
		BlockNumber *hexutil.Uint64 `json:"blockNumber"`
	}
	if err := c.call(ctx, &rt, "eth_getTransactionByHash", hash); err != nil {
		return nil, err
	}
	if rt == nil {
		return nil, nil
	}
	info := &TxInfo{
		Hash:  rt.Hash,
		From:  rt.From,
		To:    rt.To,
		Input: rt.Input,
		Value: new(big.Int),
	}
	if rt.Value != nil {
		info.Value = rt.Value.ToInt()
	}
	if rt.BlockNumber != nil {
		n := uint64(*rt.BlockNumber)
		info.BlockNumber = &n
	}
	return info, nil
}

// RevertReason replays a mined transaction as an eth_call at the block it was
// included in and returns the decoded revert reason, or "" if none is found.
func (c *EVMClient) RevertReason(ctx context.Context, hash common.Hash, block uint64) (string, error) {
	tx, err := c.TransactionByHash(ctx, hash)
	if err != nil {
		return "", err
	}
	if tx == nil || tx.To == nil {
		return "", nil
	}
	_, err = c.CallContract(ctx, CallMsg{
		From:  tx.From,
		To:    *tx.To,
		Data:  tx.Input,
		Value: tx.Value,
	}, new(big.Int).SetUint64(block))
	var rev *RevertError
	if errors.As(err, &rev) {
		return rev.Reason, nil
	}
	return "", err
}

// Ping tests the RPC endpoint and returns latency + block number.
func (c *EVMClient) Ping(ctx context.Context) (latency time.Duration, blockNum uint64, err error) {
	start := time.Now()
	blockNum, err = c.BlockNumber(ctx)
	return time.Since(start), blockNum, err
}

// --- internal JSON-RPC plumbing ---

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      uint64        `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *EVMClient) call(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	if params == nil {
		params = []interface{}{}
	}
	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("RPC request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	if rpcResp.Error != nil {
		return &RPCError{
			Code:    rpcResp.Error.Code,
			Message: rpcResp.Error.Message,
			Data:    strings.Trim(string(rpcResp.Error.Data), `"`),
		}
	}

	if len(rpcResp.Result) == 0 {
		return fmt.Errorf("empty result for %s", method)
	}
	if err := json.Unmarshal(rpcResp.Result, result); err != nil {
		return fmt.Errorf("parsing result: %w", err)
	}
	return nil
}

func toCallArg(msg CallMsg) map[string]interface{} {
	arg := map[string]interface{}{
		"to": msg.To,
	}
	if msg.From != (common.Address{}) {
		arg["from"] = msg.From
	}
	if len(msg.Data) > 0 {
		arg["data"] = hexutil.Bytes(msg.Data)
	}
	if msg.Value != nil && msg.Value.Sign() > 0 {
		arg["value"] = (*hexutil.Big)(msg.Value)
	}
	return arg
}

// asRevert converts node errors that describe an execution revert into
// *RevertError. Other errors are returned unchanged.
func asRevert(err error) error {
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		return err
	}
	// geth reports reverts as code 3 with the revert payload in data.
	if rpcErr.Code == 3 || strings.Contains(rpcErr.Message, "revert") {
		rev := &RevertError{Reason: extractRevertReason(rpcErr.Message)}
		if data, decErr := hexutil.Decode(rpcErr.Data); decErr == nil {
			rev.Data = data
			if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
				rev.Reason = reason
			}
		}
		return rev
	}
	return err
}

// extractRevertReason tries to pull the revert reason out of an RPC error message.
func extractRevertReason(errMsg string) string {
	// Common pattern: "execution reverted: <reason>"
	if idx := strings.Index(errMsg, "execution reverted:"); idx >= 0 {
		return strings.TrimSpace(errMsg[idx+len("execution reverted:"):])
	}
	return ""
}
