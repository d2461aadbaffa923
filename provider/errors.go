package provider

import (
	"errors"
	"fmt"
)

// Wallet RPC error codes (EIP-1193 / EIP-3326).
const (
	CodeUserRejected      = 4001
	CodeUnrecognizedChain = 4902
)

// RPCError is a structured rejection returned by the wallet.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("wallet rpc error %d: %s", e.Code, e.Message)
}

// IsUserRejection reports whether err is the user declining a wallet prompt.
func IsUserRejection(err error) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == CodeUserRejected
}

// IsUnrecognizedChain reports whether err means the wallet does not know the
// requested chain and it must be added before switching.
func IsUnrecognizedChain(err error) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == CodeUnrecognizedChain
}
