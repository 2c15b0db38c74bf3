package erc721

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"novatok-explorer/internal/chain"
	"novatok-explorer/internal/domain"
	"novatok-explorer/internal/logging"
	"novatok-explorer/internal/observability"
)

// DefaultPollInterval is how often AwaitConfirmation asks for the receipt.
const DefaultPollInterval = 2 * time.Second

// JSON-RPC error codes with special meaning for mints.
const (
	CodeUserRejected    = 4001 // EIP-1193 user rejected request
	CodeExecutionFailed = 3    // geth: execution reverted
)

// Mint errors.
var (
	ErrUserRejected = errors.New("user rejected the transaction")
	ErrReverted     = errors.New("transaction reverted")
)

// Mint outcomes recorded in metrics.
const (
	OutcomeConfirmed = "confirmed"
	OutcomeReverted  = "reverted"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// TxHandle identifies a submitted mint.
type TxHandle struct {
	Hash        common.Hash
	Method      string
	From        common.Address
	To          common.Address
	TokenURI    string
	SubmittedAt time.Time
}

// Minter submits mint transactions and waits for their receipts.
type Minter struct {
	client       chain.RPCClient
	contract     common.Address
	sender       Sender
	method       string
	pollInterval time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

// MinterOption configures Minter.
type MinterOption func(*Minter)

// WithMintMethod selects mint or safeMint.
func WithMintMethod(method string) MinterOption {
	return func(m *Minter) {
		m.method = method
	}
}

// WithPollInterval sets the receipt polling interval.
func WithPollInterval(d time.Duration) MinterOption {
	return func(m *Minter) {
		if d > 0 {
			m.pollInterval = d
		}
	}
}

// WithMinterLogger sets the logger.
func WithMinterLogger(l *zap.Logger) MinterOption {
	return func(m *Minter) {
		m.logger = logging.OrNop(l)
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) MinterOption {
	return func(m *Minter) {
		m.now = now
	}
}

// NewMinter creates a minter. Callers check the contract and sender are set.
func NewMinter(client chain.RPCClient, contract common.Address, sender Sender, opts ...MinterOption) (*Minter, error) {
	m := &Minter{
		client:       client,
		contract:     contract,
		sender:       sender,
		method:       MethodMint,
		pollInterval: DefaultPollInterval,
		logger:       zap.NewNop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if !IsMintMethod(m.method) {
		return nil, fmt.Errorf("unsupported mint method %q", m.method)
	}
	if sender == nil {
		return nil, errors.New("minter requires a sender")
	}
	return m, nil
}

// Method returns the contract method used for mints.
func (m *Minter) Method() string {
	return m.method
}

// From returns the sending account.
func (m *Minter) From() common.Address {
	return m.sender.From()
}

// SubmitMint sends mint(to, tokenURI) and returns as soon as the node
// accepts it. Errors are classified (see ClassifyError).
func (m *Minter) SubmitMint(ctx context.Context, to common.Address, tokenURI string) (TxHandle, error) {
	data, err := PackMint(m.method, to, tokenURI)
	if err != nil {
		return TxHandle{}, err
	}

	hash, err := m.sender.Send(ctx, m.contract, data)
	if err != nil {
		err = ClassifyError(err)
		outcome := OutcomeFailed
		if errors.Is(err, ErrUserRejected) {
			outcome = OutcomeRejected
		}
		observability.RecordMintOutcome(outcome)
		m.logger.Warn("mint submission failed",
			zap.String("method", m.method),
			zap.String("to", to.Hex()),
			zap.String("outcome", outcome),
			zap.Error(err))
		return TxHandle{}, fmt.Errorf("submit %s: %w", m.method, err)
	}

	observability.RecordMintSubmitted(m.method)
	h := TxHandle{
		Hash:        hash,
		Method:      m.method,
		From:        m.sender.From(),
		To:          to,
		TokenURI:    tokenURI,
		SubmittedAt: m.now(),
	}
	m.logger.Info("mint submitted",
		zap.String("tx", hash.Hex()),
		zap.String("method", m.method),
		zap.String("to", to.Hex()))
	return h, nil
}

// AwaitConfirmation polls for the receipt until it exists or ctx ends.
// A receipt with status 0 is returned together with ErrReverted.
func (m *Minter) AwaitConfirmation(ctx context.Context, h TxHandle) (*domain.MintReceipt, error) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := m.client.TransactionReceipt(ctx, h.Hash)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			m.logger.Debug("receipt poll failed", zap.String("tx", h.Hash.Hex()), zap.Error(err))
		case receipt != nil:
			return m.settle(h, receipt)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (m *Minter) settle(h TxHandle, receipt *domain.MintReceipt) (*domain.MintReceipt, error) {
	if !h.SubmittedAt.IsZero() {
		observability.RecordConfirmationDelay(m.now().Sub(h.SubmittedAt).Seconds())
	}

	if !receipt.Succeeded() {
		observability.RecordMintOutcome(OutcomeReverted)
		m.logger.Warn("mint reverted", zap.String("tx", h.Hash.Hex()), zap.Uint64("block", receipt.BlockNumber))
		return receipt, fmt.Errorf("%w: %s", ErrReverted, h.Hash.Hex())
	}

	observability.RecordMintOutcome(OutcomeConfirmed)
	m.logger.Info("mint confirmed", zap.String("tx", h.Hash.Hex()), zap.Uint64("block", receipt.BlockNumber))
	return receipt, nil
}

// ClassifyError maps raw node/wallet errors onto ErrUserRejected and
// ErrReverted. Other errors are returned unchanged.
func ClassifyError(err error) error {
	if err == nil || errors.Is(err, ErrUserRejected) || errors.Is(err, ErrReverted) {
		return err
	}

	if rpcErr, ok := chain.AsRPCError(err); ok {
		switch rpcErr.Code {
		case CodeUserRejected:
			return fmt.Errorf("%w: %w", ErrUserRejected, err)
		case CodeExecutionFailed:
			return fmt.Errorf("%w: %w", ErrReverted, err)
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "user rejected"), strings.Contains(msg, "user denied"):
		return fmt.Errorf("%w: %w", ErrUserRejected, err)
	case strings.Contains(msg, "execution reverted"):
		return fmt.Errorf("%w: %w", ErrReverted, err)
	}
	return err
}
