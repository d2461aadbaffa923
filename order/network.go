package order

import (
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Currency describes a network's native currency for wallet_addEthereumChain.
type Currency struct {
	Name     string
	Symbol   string
	Decimals int
}

// Network is the required-network descriptor: every order is chain-bound and
// no signature is ever requested while the wallet sits on another chain.
type Network struct {
	ChainID  int64
	Name     string
	RPCURL   string
	Currency Currency
}

func (n Network) HexChainID() string {
	return hexutil.EncodeUint64(uint64(n.ChainID))
}

// SwitchChainParams is the wallet_switchEthereumChain parameter object.
func (n Network) SwitchChainParams() map[string]any {
	return map[string]any{"chainId": n.HexChainID()}
}

// AddChainParams is the wallet_addEthereumChain parameter object, sent when
// the wallet reports the target chain as unrecognized.
func (n Network) AddChainParams() map[string]any {
	return map[string]any{
		"chainId":   n.HexChainID(),
		"chainName": n.Name,
		"rpcUrls":   []string{n.RPCURL},
		"nativeCurrency": map[string]any{
			"name":     n.Currency.Name,
			"symbol":   n.Currency.Symbol,
			"decimals": n.Currency.Decimals,
		},
	}
}

func parseChainID(hexID string) (int64, error) {
	s := strings.TrimPrefix(strings.ToLower(hexID), "0x")
	return strconv.ParseInt(s, 16, 64)
}

// Domain scopes the typed-data signature to one exchange deployment.
type Domain struct {
	Name              string
	Version           string
	VerifyingContract string
}
