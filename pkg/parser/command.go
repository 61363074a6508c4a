package parser

import (
	"fmt"
	"regexp"
	"strings"

	"bridgepay/pkg/types"
)

// Selection is a parsed transfer selection: how much of which token moves
// from which chain to which chain.
type Selection struct {
	Amount      string
	Token       types.Token
	SourceChain string
	DestChain   string
}

var transferPattern = regexp.MustCompile(`^(\d+\.?\d*)\s+([a-z0-9]+)\s+from\s+([a-z0-9-]+)\s+to\s+([a-z0-9-]+)$`)

// ParseTransferCommand parses a transfer selection from command text.
// Examples:
//   - "50 stable from base to arbitrum"
//   - "0.25 native from ethereum to base"
//   - "100 usdc from polygon to polygon"
func ParseTransferCommand(command string) (*Selection, error) {
	command = strings.ToLower(strings.TrimSpace(command))

	matches := transferPattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid transfer format. Expected: '<amount> <token> from <chain> to <chain>' (e.g., '50 stable from base to arbitrum')")
	}

	token, err := NormalizeToken(matches[2])
	if err != nil {
		return nil, err
	}

	return &Selection{
		Amount:      matches[1],
		Token:       token,
		SourceChain: matches[3],
		DestChain:   matches[4],
	}, nil
}

// NormalizeToken maps user-typed token names onto the two supported value
// units.
func NormalizeToken(name string) (types.Token, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "native", "eth", "pol":
		return types.TokenNative, nil
	case "stable", "usdc":
		return types.TokenStable, nil
	default:
		return "", fmt.Errorf("unknown token %q: use native or stable", name)
	}
}
