package provider

import (
	"context"
	"encoding/json"
)

// RPC methods used on the wallet surface.
const (
	MethodAccounts        = "eth_accounts"
	MethodChainID         = "eth_chainId"
	MethodRequestAccounts = "eth_requestAccounts"
	MethodSwitchChain     = "wallet_switchEthereumChain"
	MethodAddChain        = "wallet_addEthereumChain"
	MethodSignTypedData   = "eth_signTypedData_v4"
)

// Events pushed by the wallet.
const (
	EventAccountsChanged = "accountsChanged"
	EventChainChanged    = "chainChanged"
)

type EventHandler func(payload json.RawMessage)

// Provider is the capability surface of an externally-supplied wallet.
// Request performs one RPC call and blocks until the wallet answers or the
// context is cancelled; a call may stall on user interaction in the wallet
// UI. On registers a handler for a pushed event, replacing any previous
// handler for that event.
type Provider interface {
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)
	On(event string, handler EventHandler)
	RemoveListener(event string)
}
