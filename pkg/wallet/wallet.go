package wallet

import (
	"context"
	"errors"
	"math/big"
	"sync"
)

// ErrRejected is returned by a Signer when the user declines a signature
// or chain-switch request. Callers treat it as a normal failure path, not
// an exceptional one.
var ErrRejected = errors.New("request rejected by user")

// CallSpec describes a single on-chain call to sign and broadcast.
type CallSpec struct {
	// Chain is the registry id of the network the call targets.
	Chain string
	// To is the recipient: a contract for calls with Data, an account for
	// plain value transfers.
	To string
	// Value is the native amount attached to the call, nil for none.
	Value *big.Int
	// Data is the ABI-encoded calldata, nil for plain transfers.
	Data []byte
	// GasLimit overrides gas estimation when non-zero.
	GasLimit uint64
}

// Signer is the wallet boundary. The signer is a singleton resource: only
// one signing request may be outstanding at a time, which the payment
// layer enforces.
type Signer interface {
	// Connect establishes the wallet session and returns the account
	// address.
	Connect(ctx context.Context) (string, error)
	// Address returns the connected account address, or "" if not
	// connected.
	Address() string
	// ActiveChain returns the registry id of the currently selected
	// network.
	ActiveChain() string
	// RequestChainSwitch asks the wallet to switch networks. It returns
	// false with a nil error when the user cancels.
	RequestChainSwitch(ctx context.Context, chainID string) (bool, error)
	// SignAndSend signs and broadcasts the call, returning the tx hash.
	SignAndSend(ctx context.Context, call CallSpec) (string, error)
}

// ConnState is the explicitly owned wallet-connection state shared between
// the orchestrator and the balance tracker. The wallet-connect flow is the
// single writer; everyone else only reads snapshots.
type ConnState struct {
	mu        sync.RWMutex
	connected bool
	address   string
	chainID   string
}

// SetConnected records a successful wallet connection.
func (s *ConnState) SetConnected(address, chainID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	s.address = address
	s.chainID = chainID
}

// SetChain records a network switch for an already connected wallet.
func (s *ConnState) SetChain(chainID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chainID = chainID
}

// Disconnect clears the session.
func (s *ConnState) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	s.address = ""
	s.chainID = ""
}

// Snapshot returns a consistent view of the connection state.
func (s *ConnState) Snapshot() (connected bool, address, chainID string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected, s.address, s.chainID
}
