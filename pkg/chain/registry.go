package chain

import (
	"errors"
	"fmt"
	"strings"

	"bridgepay/pkg/types"
)

// ErrUnknownChain is returned when a chain id is not in the configured set.
var ErrUnknownChain = errors.New("unknown chain")

// Chain is the static metadata for one supported network. The set is fixed
// at construction and never mutated at runtime.
type Chain struct {
	// ID is the registry identifier used throughout the app ("ethereum",
	// "base", ...). EVMChainID is the numeric chain id used for signing.
	ID         string
	EVMChainID int64

	NativeSymbol   string
	NativeDecimals int

	// EscrowAddress is the deployed escrow contract on this chain.
	EscrowAddress string

	StableSymbol   string
	StableAddress  string
	StableDecimals int

	ExplorerBaseURL string

	// DefaultRPCURL is used when no override is configured.
	DefaultRPCURL string
}

// ExplorerTxURL builds a block-explorer link for a transaction hash.
func (c Chain) ExplorerTxURL(txHash string) string {
	return fmt.Sprintf("%s/tx/%s", strings.TrimSuffix(c.ExplorerBaseURL, "/"), txHash)
}

// TokenDecimals returns the declared decimals for the given token on this
// chain.
func (c Chain) TokenDecimals(t types.Token) int {
	if t == types.TokenStable {
		return c.StableDecimals
	}
	return c.NativeDecimals
}

// TokenSymbol returns the display symbol for the given token.
func (c Chain) TokenSymbol(t types.Token) string {
	if t == types.TokenStable {
		return c.StableSymbol
	}
	return c.NativeSymbol
}

// Registry is a pure lookup table over the supported chains.
type Registry struct {
	chains map[string]Chain
	order  []string
}

// NewRegistry builds a registry from the given chains. Order is preserved
// for listing.
func NewRegistry(chains ...Chain) *Registry {
	r := &Registry{chains: make(map[string]Chain, len(chains))}
	for _, c := range chains {
		if _, exists := r.chains[c.ID]; exists {
			continue
		}
		r.chains[c.ID] = c
		r.order = append(r.order, c.ID)
	}
	return r
}

// MetadataFor resolves a chain id to its metadata.
func (r *Registry) MetadataFor(chainID string) (Chain, error) {
	c, ok := r.chains[chainID]
	if !ok {
		return Chain{}, fmt.Errorf("%w: %s", ErrUnknownChain, chainID)
	}
	return c, nil
}

// All returns the chains in registration order.
func (r *Registry) All() []Chain {
	out := make([]Chain, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.chains[id])
	}
	return out
}

// IDs returns the chain ids in registration order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Default returns the production chain set: two mainnets and two L2s, each
// with a deployed escrow contract and the canonical USDC deployment.
func Default() *Registry {
	return NewRegistry(
		Chain{
			ID:              "ethereum",
			EVMChainID:      1,
			NativeSymbol:    "ETH",
			NativeDecimals:  18,
			EscrowAddress:   "0x8C4b52b8C2a6a0Fb3f94e04E7a1CB2fAe3b4Dd01",
			StableSymbol:    "USDC",
			StableAddress:   "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
			StableDecimals:  6,
			ExplorerBaseURL: "https://etherscan.io",
			DefaultRPCURL:   "https://eth.llamarpc.com",
		},
		Chain{
			ID:              "polygon",
			EVMChainID:      137,
			NativeSymbol:    "POL",
			NativeDecimals:  18,
			EscrowAddress:   "0x8C4b52b8C2a6a0Fb3f94e04E7a1CB2fAe3b4Dd01",
			StableSymbol:    "USDC",
			StableAddress:   "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359",
			StableDecimals:  6,
			ExplorerBaseURL: "https://polygonscan.com",
			DefaultRPCURL:   "https://polygon-rpc.com",
		},
		Chain{
			ID:              "base",
			EVMChainID:      8453,
			NativeSymbol:    "ETH",
			NativeDecimals:  18,
			EscrowAddress:   "0x8C4b52b8C2a6a0Fb3f94e04E7a1CB2fAe3b4Dd01",
			StableSymbol:    "USDC",
			StableAddress:   "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
			StableDecimals:  6,
			ExplorerBaseURL: "https://basescan.org",
			DefaultRPCURL:   "https://mainnet.base.org",
		},
		Chain{
			ID:              "arbitrum",
			EVMChainID:      42161,
			NativeSymbol:    "ETH",
			NativeDecimals:  18,
			EscrowAddress:   "0x8C4b52b8C2a6a0Fb3f94e04E7a1CB2fAe3b4Dd01",
			StableSymbol:    "USDC",
			StableAddress:   "0xaf88d065e77c8cC2239327C5EDb3A432268e5831",
			StableDecimals:  6,
			ExplorerBaseURL: "https://arbiscan.io",
			DefaultRPCURL:   "https://arb1.arbitrum.io/rpc",
		},
	)
}
