package chainrpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"bridgepay/pkg/chain"
)

const balanceOfABI = `[{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"}]`

// EVMReader implements Reader over JSON-RPC for EVM chains. Connections
// are dialed lazily, one per chain, and reused.
type EVMReader struct {
	registry *chain.Registry
	rpcURLs  map[string]string
	erc20    abi.ABI

	mu      sync.Mutex
	clients map[string]*ethclient.Client
}

// NewEVMReader builds a reader for the chains in registry. rpcURLs maps
// chain ids to endpoint overrides.
func NewEVMReader(registry *chain.Registry, rpcURLs map[string]string) (*EVMReader, error) {
	parsed, err := abi.JSON(strings.NewReader(balanceOfABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}
	return &EVMReader{
		registry: registry,
		rpcURLs:  rpcURLs,
		erc20:    parsed,
		clients:  make(map[string]*ethclient.Client),
	}, nil
}

// NativeBalance implements Reader.
func (r *EVMReader) NativeBalance(ctx context.Context, chainID, address string) (string, error) {
	meta, err := r.registry.MetadataFor(chainID)
	if err != nil {
		return "", err
	}
	client, err := r.client(chainID)
	if err != nil {
		return "", err
	}

	bal, err := client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return "", fmt.Errorf("failed to get balance on %s: %w", chainID, err)
	}
	return chain.FromUnits(bal, meta.NativeDecimals), nil
}

// StableBalance implements Reader.
func (r *EVMReader) StableBalance(ctx context.Context, chainID, address string) (string, error) {
	meta, err := r.registry.MetadataFor(chainID)
	if err != nil {
		return "", err
	}
	client, err := r.client(chainID)
	if err != nil {
		return "", err
	}

	data, err := r.erc20.Pack("balanceOf", common.HexToAddress(address))
	if err != nil {
		return "", fmt.Errorf("failed to pack balanceOf data: %w", err)
	}

	token := common.HexToAddress(meta.StableAddress)
	msg := ethereum.CallMsg{To: &token, Data: data}
	result, err := client.CallContract(ctx, msg, nil)
	if err != nil {
		return "", fmt.Errorf("failed to call balanceOf on %s: %w", chainID, err)
	}

	bal := new(big.Int).SetBytes(result)
	return chain.FromUnits(bal, meta.StableDecimals), nil
}

// TransactionStatus implements Reader. A transaction with no receipt yet is
// pending; a mined receipt resolves to confirmed or reverted.
func (r *EVMReader) TransactionStatus(ctx context.Context, chainID, txHash string) (TxState, error) {
	client, err := r.client(chainID)
	if err != nil {
		return "", err
	}

	receipt, err := client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if errors.Is(err, ethereum.NotFound) {
		return TxPending, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get receipt on %s: %w", chainID, err)
	}

	if receipt.Status == coretypes.ReceiptStatusSuccessful {
		return TxConfirmed, nil
	}
	return TxReverted, nil
}

// Close releases all RPC connections.
func (r *EVMReader) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clients {
		c.Close()
	}
	r.clients = make(map[string]*ethclient.Client)
}

func (r *EVMReader) client(chainID string) (*ethclient.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[chainID]; ok {
		return c, nil
	}

	meta, err := r.registry.MetadataFor(chainID)
	if err != nil {
		return nil, err
	}

	url := meta.DefaultRPCURL
	if override, ok := r.rpcURLs[chainID]; ok && override != "" {
		url = override
	}

	c, err := ethclient.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s RPC: %w", chainID, err)
	}
	r.clients[chainID] = c
	return c, nil
}
