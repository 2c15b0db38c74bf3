package chain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrClosed is returned by a websocket client after Close.
var ErrClosed = errors.New("client closed")

// RPCError is a JSON-RPC 2.0 error object returned by the node or wallet.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// AsRPCError unwraps err into an *RPCError.
func AsRPCError(err error) (*RPCError, bool) {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr, true
	}
	return nil, false
}
