// Package multicall batches many independent contract reads into a single
// aggregator-call (Multicall3 `aggregate3`) round trip, grounded on
// `kargakis/liquidatoor`'s `Multicall.Aggregate`/`abi.ConvertType` batching
// pattern. The full scanner (C9), liquidity probe (C3) and block trigger
// (C10) all share this client rather than hand-rolling aggregate3 encoding
// three times over.
package multicall

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/claucondor/more-liquidation-bot/internal/rpc"
)

func buildCallMsg(to common.Address, data []byte) ethereum.CallMsg {
	return ethereum.CallMsg{To: &to, Data: data}
}

const aggregatorABIJSON = `[{
	"inputs":[{"components":[
		{"internalType":"address","name":"target","type":"address"},
		{"internalType":"bool","name":"allowFailure","type":"bool"},
		{"internalType":"bytes","name":"callData","type":"bytes"}
	],"internalType":"struct Multicall3.Call3[]","name":"calls","type":"tuple[]"}],
	"name":"aggregate3",
	"outputs":[{"components":[
		{"internalType":"bool","name":"success","type":"bool"},
		{"internalType":"bytes","name":"returnData","type":"bytes"}
	],"internalType":"struct Multicall3.Result[]","name":"returnData","type":"tuple[]"}],
	"stateMutability":"payable","type":"function"
}]`

// Call3 mirrors Multicall3.Call3 — Go field names match the tuple
// component names case-insensitively, which go-ethereum's abi package
// requires for struct-based tuple packing (the same convention
// `kargakis/liquidatoor` relies on for its generated bindings).
type Call3 struct {
	Target       common.Address
	AllowFailure bool
	CallData     []byte
}

// Result3 mirrors Multicall3.Result.
type Result3 struct {
	Success    bool
	ReturnData []byte
}

// Client batches calls through a single Multicall3 deployment.
type Client struct {
	gateway *rpc.Gateway
	address common.Address
	abi     abi.ABI
}

// NewClient binds a multicall client to the aggregator contract's address.
func NewClient(gateway *rpc.Gateway, address common.Address) (*Client, error) {
	parsed, err := abi.JSON(strings.NewReader(aggregatorABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse aggregator abi: %w", err)
	}
	return &Client{gateway: gateway, address: address, abi: parsed}, nil
}

// Aggregate3 submits calls as a single batched eth_call and returns one
// Result3 per input call, in order. Individual call failures are reported
// per-element (Success=false) rather than failing the whole batch, since
// every call is built with AllowFailure=true.
func (c *Client) Aggregate3(ctx context.Context, calls []Call3) ([]Result3, error) {
	if len(calls) == 0 {
		return nil, nil
	}

	data, err := c.abi.Pack("aggregate3", calls)
	if err != nil {
		return nil, fmt.Errorf("pack aggregate3: %w", err)
	}

	out, err := c.gateway.CallContract(ctx, buildCallMsg(c.address, data), nil)
	if err != nil {
		return nil, fmt.Errorf("aggregate3 call: %w", err)
	}

	unpacked, err := c.abi.Unpack("aggregate3", out)
	if err != nil {
		return nil, fmt.Errorf("unpack aggregate3: %w", err)
	}
	if len(unpacked) != 1 {
		return nil, fmt.Errorf("aggregate3: unexpected output arity %d", len(unpacked))
	}

	results, ok := abi.ConvertType(unpacked[0], new([]Result3)).(*[]Result3)
	if !ok {
		return nil, fmt.Errorf("aggregate3: unexpected return type %T", unpacked[0])
	}
	return *results, nil
}

// BuildCall packs a (target, method, args...) read into a Call3 against the
// target's own ABI.
func BuildCall(target common.Address, targetABI *abi.ABI, method string, args ...interface{}) (Call3, error) {
	data, err := targetABI.Pack(method, args...)
	if err != nil {
		return Call3{}, fmt.Errorf("pack %s for %s: %w", method, target, err)
	}
	return Call3{Target: target, AllowFailure: true, CallData: data}, nil
}
