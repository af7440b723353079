package escrow

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"escrowOracle/internal/chain"
	"escrowOracle/internal/model"
)

// TxBackend sends transactions and polls for their receipts.
type TxBackend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Writer submits resolveEscrow transactions signed by the oracle key.
type Writer struct {
	bound          *bind.BoundContract
	backend        TxBackend
	signer         *chain.Signer
	confirmTimeout time.Duration
	logger         *zap.Logger
}

// NewWriter binds the escrow contract for writes.
func NewWriter(address common.Address, backend TxBackend, signer *chain.Signer, confirmTimeout time.Duration, logger *zap.Logger) (*Writer, error) {
	if backend == nil {
		return nil, fmt.Errorf("tx backend is nil")
	}
	if signer == nil {
		return nil, fmt.Errorf("signer is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	parsed, err := ABI()
	if err != nil {
		return nil, fmt.Errorf("parse escrow abi: %w", err)
	}
	if confirmTimeout <= 0 {
		confirmTimeout = 2 * time.Minute
	}
	return &Writer{
		bound:          bind.NewBoundContract(address, parsed, backend, backend, backend),
		backend:        backend,
		signer:         signer,
		confirmTimeout: confirmTimeout,
		logger:         logger,
	}, nil
}

// ResolveEscrow submits resolveEscrow(id, outcome) and waits for one
// confirmation. A mined but failed transaction returns its hash together with
// model.ErrTransactionReverted.
func (w *Writer) ResolveEscrow(ctx context.Context, id uint64, outcome bool) (common.Hash, error) {
	opts, err := w.signer.TransactOpts(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	tx, err := w.bound.Transact(opts, "resolveEscrow", new(big.Int).SetUint64(id), outcome)
	if err != nil {
		return common.Hash{}, fmt.Errorf("send resolveEscrow: %w", err)
	}
	w.logger.Info("resolution submitted",
		zap.Uint64("escrow_id", id),
		zap.Bool("outcome", outcome),
		zap.String("tx", tx.Hash().Hex()),
	)

	waitCtx, cancel := context.WithTimeout(ctx, w.confirmTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, w.backend, tx)
	if err != nil {
		return tx.Hash(), fmt.Errorf("wait receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return tx.Hash(), fmt.Errorf("escrow %d: %w", id, model.ErrTransactionReverted)
	}
	return tx.Hash(), nil
}
