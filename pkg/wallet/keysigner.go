package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"bridgepay/pkg/chain"
	"bridgepay/pkg/types"
)

// KeySigner is a local private-key implementation of Signer. It signs with
// EIP-155 against whichever chain is active and keeps one RPC connection
// per chain it has touched.
type KeySigner struct {
	registry *chain.Registry
	rpcURLs  map[string]string

	privateKey *ecdsa.PrivateKey
	address    common.Address

	mu          sync.Mutex
	activeChain string
	clients     map[string]*ethclient.Client
}

// NewKeySigner builds a signer from a hex private key. rpcURLs maps
// registry chain ids to endpoints; chains without an override use the
// registry default.
func NewKeySigner(registry *chain.Registry, privateKeyHex string, rpcURLs map[string]string, initialChain string) (*KeySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	if _, err := registry.MetadataFor(initialChain); err != nil {
		return nil, err
	}

	return &KeySigner{
		registry:    registry,
		rpcURLs:     rpcURLs,
		privateKey:  key,
		address:     crypto.PubkeyToAddress(key.PublicKey),
		activeChain: initialChain,
		clients:     make(map[string]*ethclient.Client),
	}, nil
}

// Connect implements Signer. A key signer has no session handshake; it
// just reports its address.
func (k *KeySigner) Connect(ctx context.Context) (string, error) {
	return k.address.Hex(), nil
}

// Address implements Signer.
func (k *KeySigner) Address() string {
	return k.address.Hex()
}

// ActiveChain implements Signer.
func (k *KeySigner) ActiveChain() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.activeChain
}

// RequestChainSwitch implements Signer. Switching only requires the target
// chain to be configured; the RPC connection is dialed lazily on first use.
func (k *KeySigner) RequestChainSwitch(ctx context.Context, chainID string) (bool, error) {
	if _, err := k.registry.MetadataFor(chainID); err != nil {
		return false, err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.activeChain = chainID
	return true, nil
}

// SignAndSend implements Signer. The call must target the active chain.
func (k *KeySigner) SignAndSend(ctx context.Context, call CallSpec) (string, error) {
	k.mu.Lock()
	active := k.activeChain
	k.mu.Unlock()

	if call.Chain != active {
		return "", types.NewChainMismatch(active, call.Chain)
	}

	meta, err := k.registry.MetadataFor(call.Chain)
	if err != nil {
		return "", err
	}

	client, err := k.client(call.Chain)
	if err != nil {
		return "", err
	}

	if !common.IsHexAddress(call.To) {
		return "", fmt.Errorf("invalid call recipient: %s", call.To)
	}
	to := common.HexToAddress(call.To)

	nonce, err := client.PendingNonceAt(ctx, k.address)
	if err != nil {
		return "", fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get gas price: %w", err)
	}

	gasLimit := call.GasLimit
	if gasLimit == 0 {
		msg := ethereum.CallMsg{
			From:  k.address,
			To:    &to,
			Value: call.Value,
			Data:  call.Data,
		}
		estimated, err := client.EstimateGas(ctx, msg)
		if err != nil {
			return "", fmt.Errorf("failed to estimate gas: %w", err)
		}
		gasLimit = estimated * 120 / 100 // 20% buffer
	}

	tx := coretypes.NewTransaction(nonce, to, call.Value, gasLimit, gasPrice, call.Data)

	signedTx, err := coretypes.SignTx(tx, coretypes.NewEIP155Signer(big.NewInt(meta.EVMChainID)), k.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := client.SendTransaction(ctx, signedTx); err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}

	return signedTx.Hash().Hex(), nil
}

// Close releases all RPC connections.
func (k *KeySigner) Close() {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, c := range k.clients {
		c.Close()
	}
	k.clients = make(map[string]*ethclient.Client)
}

func (k *KeySigner) client(chainID string) (*ethclient.Client, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if c, ok := k.clients[chainID]; ok {
		return c, nil
	}

	meta, err := k.registry.MetadataFor(chainID)
	if err != nil {
		return nil, err
	}

	url := meta.DefaultRPCURL
	if override, ok := k.rpcURLs[chainID]; ok && override != "" {
		url = override
	}

	c, err := ethclient.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s RPC: %w", chainID, err)
	}
	k.clients[chainID] = c
	return c, nil
}
