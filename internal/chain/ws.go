package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"novatok-explorer/internal/domain"
)

// WSClient defines the websocket log subscription interface.
type WSClient interface {
	// SubscribeLogs subscribes to logs matching the filter via eth_subscribe.
	// The channel is closed when the client is closed.
	SubscribeLogs(ctx context.Context, filter LogFilter) (<-chan domain.Log, error)

	// Close closes the websocket connection.
	Close() error
}

// LogFilter selects logs for a subscription.
type LogFilter struct {
	Addresses []common.Address
	// Topics follows eth_getLogs semantics: position-wise, OR within a position.
	Topics [][]common.Hash
}

func (f LogFilter) params() []any {
	criteria := make(map[string]any)
	if len(f.Addresses) > 0 {
		criteria["address"] = f.Addresses
	}
	if len(f.Topics) > 0 {
		criteria["topics"] = f.Topics
	}
	return []any{"logs", criteria}
}
